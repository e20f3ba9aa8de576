package repositories

import (
	"context"

	"github.com/ekaya-inc/emistr-mcp/pkg/adapters/datasource"
	"github.com/ekaya-inc/emistr-mcp/pkg/models"
	"github.com/ekaya-inc/emistr-mcp/pkg/query"
)

// OperationRepository reads the catalog of work operations.
type OperationRepository interface {
	List(ctx context.Context, q datasource.Querier, opts models.OperationListOptions) ([]datasource.Row, error)
}

type operationRepository struct {
	dialect datasource.Dialect
	runner  *query.Runner
}

// NewOperationRepository creates a new OperationRepository.
func NewOperationRepository(dialect datasource.Dialect, runner *query.Runner) OperationRepository {
	return &operationRepository{dialect: dialect, runner: runner}
}

var _ OperationRepository = (*operationRepository)(nil)

// List returns operations ordered by name. Older schemas without planned
// price and time report 0 for both.
func (r *operationRepository) List(ctx context.Context, q datasource.Querier, opts models.OperationListOptions) ([]datasource.Row, error) {
	stmt := query.New(r.dialect, "operations.list").
		Select(
			query.Col("op.id"),
			query.Col("op.name"),
			query.Col("op.bar_id"),
			query.Optional(1, "op.user_price", "user_price", "0").On("operation", "user_price"),
			query.Optional(1, "op.user_time", "user_time", "0").On("operation", "user_time"),
			query.Col("op.group_name"),
			query.As("og.name", "group_full_name"),
		).
		From("operation op LEFT JOIN operation_group og ON op.group_name = og.name")

	if opts.OperationGroup != nil {
		stmt.Where("op.group_name = ?", *opts.OperationGroup)
	}
	stmt.OrderBy("op.name").Limit(opts.Limit)

	return r.runner.Run(ctx, q, stmt)
}
