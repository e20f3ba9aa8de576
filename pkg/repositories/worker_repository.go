package repositories

import (
	"context"

	"github.com/ekaya-inc/emistr-mcp/pkg/adapters/datasource"
	"github.com/ekaya-inc/emistr-mcp/pkg/apperrors"
	"github.com/ekaya-inc/emistr-mcp/pkg/models"
	"github.com/ekaya-inc/emistr-mcp/pkg/query"
	"github.com/ekaya-inc/emistr-mcp/pkg/schema"
)

const MsgWorkerNotFound = "Zaměstnanec nenalezen"

// workerStatsDays is the window of the worker detail statistics.
const workerStatsDays = 30

// defaultReaddataTimeColumn is used when readdata cannot be introspected.
const defaultReaddataTimeColumn = "datum"

// WorkerRepository reads employees (worker) and their time records (readdata).
type WorkerRepository interface {
	List(ctx context.Context, q datasource.Querier, opts models.WorkerListOptions) ([]datasource.Row, error)

	// GetDetail returns the worker with statistics over the last 30 days.
	GetDetail(ctx context.Context, q datasource.Querier, opts models.WorkerDetailOptions) (*models.WorkerDetail, error)
}

type workerRepository struct {
	dialect      datasource.Dialect
	runner       *query.Runner
	introspector *schema.Introspector
}

// NewWorkerRepository creates a new WorkerRepository.
func NewWorkerRepository(dialect datasource.Dialect, runner *query.Runner, introspector *schema.Introspector) WorkerRepository {
	return &workerRepository{dialect: dialect, runner: runner, introspector: introspector}
}

var _ WorkerRepository = (*workerRepository)(nil)

func (r *workerRepository) List(ctx context.Context, q datasource.Querier, opts models.WorkerListOptions) ([]datasource.Row, error) {
	stmt := query.New(r.dialect, "workers.list").
		Select(
			query.Col("w.id"),
			query.Col("w.name"),
			query.Col("w.bar_id"),
			query.Col("w.firstname"),
			query.Col("w.lastname"),
			query.Col("w.active"),
			query.Col("w.group_name"),
			query.Col("w.profese"),
			query.Col("w.misto_prace"),
			query.Col("w.email"),
			query.Col("w.telefon"),
			query.Col("w.start"),
			query.Col("w.finish"),
		).
		From("worker w")

	if opts.Status != nil {
		stmt.Where("w.active = ?", *opts.Status)
	}
	if opts.GroupName != nil {
		stmt.Where("w.group_name = ?", *opts.GroupName)
	}
	stmt.OrderBy("w.name").Limit(opts.Limit)

	return r.runner.Run(ctx, q, stmt)
}

func (r *workerRepository) GetDetail(ctx context.Context, q datasource.Querier, opts models.WorkerDetailOptions) (*models.WorkerDetail, error) {
	if opts.WorkerID <= 0 {
		return nil, apperrors.Validation("worker_id musí být kladné číslo")
	}

	header := query.New(r.dialect, "workers.detail").
		Select(
			query.Col("w.*"),
			query.As("wg.name", "group_full_name"),
		).
		From("worker w LEFT JOIN worker_group wg ON w.group_id = wg.id").
		Where("w.id = ?", opts.WorkerID)

	workers, err := r.runner.Run(ctx, q, header)
	if err != nil {
		return nil, err
	}
	if len(workers) == 0 {
		return nil, apperrors.NotFound(MsgWorkerNotFound)
	}

	timeCol, ok := r.introspector.TemporalColumn(ctx, q, "readdata")
	if !ok {
		timeCol = defaultReaddataTimeColumn
	}

	stats := query.New(r.dialect, "workers.stats").
		Select(
			query.As("COUNT(DISTINCT rd.order_id)", "orders_count"),
			query.Optional(1, "SUM(rd.real_time)", "total_hours", "0").On("readdata", "real_time"),
			query.Optional(1, "AVG(rd.real_time)", "avg_hours_per_order", "0").On("readdata", "real_time"),
			query.As("MAX(rd."+timeCol+")", "last_work_date"),
		).
		From("readdata rd").
		Where("rd.worker_id = ?", opts.WorkerID).
		WhereExpr("rd." + timeCol + " >= " + r.dialect.DaysAgo(workerStatsDays))

	statRows, err := r.runner.Run(ctx, q, stats)
	if err != nil {
		return nil, err
	}

	detail := &models.WorkerDetail{Worker: workers[0]}
	if len(statRows) > 0 {
		detail.Stats = statRows[0]
	}
	return detail, nil
}
