package repositories

import (
	"context"

	"github.com/ekaya-inc/emistr-mcp/pkg/adapters/datasource"
	"github.com/ekaya-inc/emistr-mcp/pkg/models"
	"github.com/ekaya-inc/emistr-mcp/pkg/query"
	"github.com/ekaya-inc/emistr-mcp/pkg/schema"
)

// MachineRepository reads machines (stroje) and their groups.
type MachineRepository interface {
	// List returns machines ordered by name. current_status is null on
	// installations without that column, and the status filter is ignored
	// there.
	List(ctx context.Context, q datasource.Querier, opts models.MachineListOptions) ([]datasource.Row, error)
}

type machineRepository struct {
	dialect      datasource.Dialect
	runner       *query.Runner
	introspector *schema.Introspector
}

// NewMachineRepository creates a new MachineRepository.
func NewMachineRepository(dialect datasource.Dialect, runner *query.Runner, introspector *schema.Introspector) MachineRepository {
	return &machineRepository{dialect: dialect, runner: runner, introspector: introspector}
}

var _ MachineRepository = (*machineRepository)(nil)

func (r *machineRepository) List(ctx context.Context, q datasource.Querier, opts models.MachineListOptions) ([]datasource.Row, error) {
	hasStatus := r.introspector.ColumnsPresent(ctx, q, "stroje", "current_status")["current_status"]

	status := query.As("NULL", "current_status")
	if hasStatus {
		status = query.As("s.current_status", "current_status")
	}

	stmt := query.New(r.dialect, "machines.list").
		Select(
			query.Col("s.id"),
			query.Col("s.name"),
			query.Col("s.group_id"),
			query.As("sg.name", "group_name"),
			status,
		).
		From("stroje s LEFT JOIN stroj_group sg ON sg.id = s.group_id")

	if hasStatus && opts.StatusFilter != nil {
		stmt.Where("s.current_status = ?", *opts.StatusFilter)
	}
	stmt.OrderBy("s.name").Limit(opts.Limit)

	return r.runner.Run(ctx, q, stmt)
}
