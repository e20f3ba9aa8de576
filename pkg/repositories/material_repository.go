package repositories

import (
	"context"

	"github.com/ekaya-inc/emistr-mcp/pkg/adapters/datasource"
	"github.com/ekaya-inc/emistr-mcp/pkg/jsonutil"
	"github.com/ekaya-inc/emistr-mcp/pkg/models"
	"github.com/ekaya-inc/emistr-mcp/pkg/query"
)

// MaterialRepository reads warehouse stock (sklad_material) and stock
// movements (sklad_material_pohyb).
type MaterialRepository interface {
	// List returns materials ordered by name. With LowStockOnly only the
	// fetched materials below their minimum quantity are kept.
	List(ctx context.Context, q datasource.Querier, opts models.MaterialListOptions) ([]datasource.Row, error)

	// ListMovements returns stock movements, newest first.
	ListMovements(ctx context.Context, q datasource.Querier, opts models.MaterialMovementOptions) ([]datasource.Row, error)
}

type materialRepository struct {
	dialect datasource.Dialect
	runner  *query.Runner
}

// NewMaterialRepository creates a new MaterialRepository.
func NewMaterialRepository(dialect datasource.Dialect, runner *query.Runner) MaterialRepository {
	return &materialRepository{dialect: dialect, runner: runner}
}

var _ MaterialRepository = (*materialRepository)(nil)

func (r *materialRepository) List(ctx context.Context, q datasource.Querier, opts models.MaterialListOptions) ([]datasource.Row, error) {
	stmt := query.New(r.dialect, "materials.list").
		Select(
			query.Col("sm.id"),
			query.Col("sm.name"),
			query.Col("sm.bar_id"),
			query.As("COALESCE(sm.count, 0)", "stock_quantity"),
			query.As("COALESCE(sm.limit_count, 0)", "min_quantity"),
			query.As("sm.unit", "jednotka"),
			query.As("COALESCE(sm.price, 0)", "cena_nakup"),
			query.As("sm.sklad_id", "warehouse_id"),
		).
		From("sklad_material sm")

	if opts.WarehouseID != nil {
		stmt.Where("sm.sklad_id = ?", *opts.WarehouseID)
	}
	stmt.OrderBy("sm.name").Limit(opts.Limit)

	rows, err := r.runner.Run(ctx, q, stmt)
	if err != nil {
		return nil, err
	}
	if !opts.LowStockOnly {
		return rows, nil
	}

	low := make([]datasource.Row, 0, len(rows))
	for _, row := range rows {
		if IsLowStock(row) {
			low = append(low, row)
		}
	}
	return low, nil
}

// IsLowStock reports whether a material row is below its minimum quantity.
func IsLowStock(row datasource.Row) bool {
	return jsonutil.Number(row.Value("stock_quantity")) < jsonutil.Number(row.Value("min_quantity"))
}

func (r *materialRepository) ListMovements(ctx context.Context, q datasource.Querier, opts models.MaterialMovementOptions) ([]datasource.Row, error) {
	stmt := query.New(r.dialect, "materials.movements").
		Select(
			query.Col("smp.id"),
			query.Col("smp.material_id"),
			query.As("sm.name", "material_name"),
			query.Col("smp.mnozstvi"),
			query.Col("smp.datum"),
			query.Col("smp.typ_pohybu"),
			query.Col("smp.order_id"),
			query.Col("smp.sklad_id"),
			query.Col("smp.cena"),
		).
		From("sklad_material_pohyb smp LEFT JOIN sklad_material sm ON smp.material_id = sm.id")

	if opts.MaterialID != nil {
		stmt.Where("smp.material_id = ?", *opts.MaterialID)
	}
	if opts.DateFrom != nil {
		stmt.Where("smp.datum >= ?", *opts.DateFrom)
	}
	if opts.DateTo != nil {
		stmt.Where("smp.datum <= ?", *opts.DateTo)
	}
	stmt.OrderBy("smp.datum DESC").Limit(opts.Limit)

	return r.runner.Run(ctx, q, stmt)
}
