package repositories

import (
	"context"

	"github.com/ekaya-inc/emistr-mcp/pkg/adapters/datasource"
	"github.com/ekaya-inc/emistr-mcp/pkg/models"
	"github.com/ekaya-inc/emistr-mcp/pkg/query"
	"github.com/ekaya-inc/emistr-mcp/pkg/schema"
)

// topOperationsLimit bounds the operation ranking of the statistics.
const topOperationsLimit = 10

// ProductionRepository aggregates time records (readdata).
type ProductionRepository interface {
	// Stats returns daily hours, workers and orders plus the ten operations
	// with the most hours in [DateFrom, DateTo].
	Stats(ctx context.Context, q datasource.Querier, opts models.ProductionStatsOptions) (*models.ProductionStats, error)
}

type productionRepository struct {
	dialect      datasource.Dialect
	runner       *query.Runner
	introspector *schema.Introspector
}

// NewProductionRepository creates a new ProductionRepository.
func NewProductionRepository(dialect datasource.Dialect, runner *query.Runner, introspector *schema.Introspector) ProductionRepository {
	return &productionRepository{dialect: dialect, runner: runner, introspector: introspector}
}

var _ ProductionRepository = (*productionRepository)(nil)

func (r *productionRepository) Stats(ctx context.Context, q datasource.Querier, opts models.ProductionStatsOptions) (*models.ProductionStats, error) {
	timeCol, ok := r.introspector.TemporalColumn(ctx, q, "readdata")
	if !ok {
		timeCol = "start"
	}
	t := "rd." + timeCol
	day := r.dialect.DateOf(t)
	hours := "SUM(" + r.dialect.SecondsBetween("rd.start", "rd.finish") + ") / 3600.0"

	daily := query.New(r.dialect, "stats.daily").
		Select(
			query.As(day, "date"),
			query.As(hours, "total_hours"),
			query.As("COUNT(DISTINCT rd.worker_id)", "workers_count"),
			query.As("COUNT(DISTINCT rd.order_id)", "orders_count"),
		).
		From("readdata rd").
		Where(t+" >= ?", opts.DateFrom).
		Where(t+" <= ?", opts.DateTo).
		GroupBy(day).
		OrderBy(day)

	dailyRows, err := r.runner.Run(ctx, q, daily)
	if err != nil {
		return nil, err
	}

	top := query.New(r.dialect, "stats.top_operations").
		Select(
			query.As("op.name", "name"),
			query.As("COUNT(*)", "count"),
			query.As(hours, "total_hours"),
		).
		From("readdata rd LEFT JOIN operation op ON rd.operation_id = op.id").
		Where(t+" >= ?", opts.DateFrom).
		Where(t+" <= ?", opts.DateTo).
		GroupBy("op.name").
		OrderBy("total_hours DESC").
		Limit(topOperationsLimit)

	topRows, err := r.runner.Run(ctx, q, top)
	if err != nil {
		return nil, err
	}

	return &models.ProductionStats{
		Period:        models.Period{From: opts.DateFrom, To: opts.DateTo},
		DailyStats:    dailyRows,
		TopOperations: topRows,
	}, nil
}
