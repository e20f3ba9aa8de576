package repositories

import (
	"context"

	"github.com/ekaya-inc/emistr-mcp/pkg/adapters/datasource"
	"github.com/ekaya-inc/emistr-mcp/pkg/apperrors"
	"github.com/ekaya-inc/emistr-mcp/pkg/models"
	"github.com/ekaya-inc/emistr-mcp/pkg/query"
)

// Messages shown to the caller for expected order lookup failures.
const (
	MsgOrderIdentifierRequired = "Musíte zadat order_id nebo order_code"
	MsgOrderNotFound           = "Zakázka nenalezena"
)

// OrderRepository reads production orders (c_order) and their work items.
type OrderRepository interface {
	// List returns one page of orders plus statistics over all orders of
	// the selected customer.
	List(ctx context.Context, q datasource.Querier, opts models.OrderListOptions) (*models.OrderList, error)

	// GetDetail returns the order header with operations and materials.
	// All three queries run on q.
	GetDetail(ctx context.Context, q datasource.Querier, opts models.OrderDetailOptions) (*models.OrderDetail, error)

	// Search matches the term against code, name, customer, purchase order
	// number and note, newest first.
	Search(ctx context.Context, q datasource.Querier, opts models.OrderSearchOptions) ([]datasource.Row, error)
}

type orderRepository struct {
	dialect datasource.Dialect
	runner  *query.Runner
}

// NewOrderRepository creates a new OrderRepository.
func NewOrderRepository(dialect datasource.Dialect, runner *query.Runner) OrderRepository {
	return &orderRepository{dialect: dialect, runner: runner}
}

var _ OrderRepository = (*orderRepository)(nil)

const orderFrom = "c_order o LEFT JOIN order_stav os ON os.name = o.active"

func (r *orderRepository) List(ctx context.Context, q datasource.Querier, opts models.OrderListOptions) (*models.OrderList, error) {
	stmt := query.New(r.dialect, "orders.list").
		Select(
			query.Col("o.id"),
			query.Col("o.bar_id"),
			query.Col("o.code"),
			query.Col("o.name"),
			query.Col("o.active"),
			query.Col("o.start"),
			query.Col("o.finish"),
			query.Col("o.customer_id"),
			query.Col("o.customer_name"),
			query.Col("o.kusu"),
			query.Col("o.prevedeno"),
			query.Col("o.user_time"),
			query.Col("o.real_time"),
			query.Col("o.user_price"),
			query.Col("o.real_price"),
			query.Col("o.priorita"),
			query.Col("o.datumExpedice"),
			query.Col("o.note"),
			query.As("os.name", "status_name"),
		).
		From(orderFrom)

	if opts.Status != nil {
		stmt.Where("o.active = ?", *opts.Status)
	}
	if opts.CustomerID != nil {
		stmt.Where("o.customer_id = ?", *opts.CustomerID)
	}
	if opts.DateFrom != nil {
		stmt.Where("o.start >= ?", *opts.DateFrom)
	}
	if opts.DateTo != nil {
		stmt.Where("o.finish <= ?", *opts.DateTo)
	}
	stmt.OrderBy("o.priorita DESC, o.start ASC").Limit(opts.Limit).Offset(opts.Offset)

	orders, err := r.runner.Run(ctx, q, stmt)
	if err != nil {
		return nil, err
	}

	stats := query.New(r.dialect, "orders.stats").
		Select(
			query.As("COUNT(*)", "total"),
			query.As("SUM(CASE WHEN o.active = 'ANO' THEN 1 ELSE 0 END)", "active_count"),
			query.As("SUM(CASE WHEN o.finish < "+r.dialect.Today()+" AND o.active = 'ANO' THEN 1 ELSE 0 END)", "delayed_count"),
		).
		From("c_order o")
	if opts.CustomerID != nil {
		stats.Where("o.customer_id = ?", *opts.CustomerID)
	}

	statRows, err := r.runner.Run(ctx, q, stats)
	if err != nil {
		return nil, err
	}

	result := &models.OrderList{Orders: orders}
	if len(statRows) > 0 {
		result.Stats = statRows[0]
	}
	return result, nil
}

func (r *orderRepository) GetDetail(ctx context.Context, q datasource.Querier, opts models.OrderDetailOptions) (*models.OrderDetail, error) {
	header := query.New(r.dialect, "orders.detail").
		Select(
			query.Col("o.*"),
			query.As("os.name", "status_name"),
			query.As("c.name", "customer_full_name"),
			query.As("c.ico", "ico"),
			query.As("c.dic", "dic"),
		).
		From(orderFrom + " LEFT JOIN customer c ON o.customer_id = c.id")

	switch {
	case opts.OrderID != nil:
		header.Where("o.id = ?", *opts.OrderID)
	case opts.OrderCode != nil:
		header.Where("o.code = ?", *opts.OrderCode)
	default:
		return nil, apperrors.Validation(MsgOrderIdentifierRequired)
	}

	orders, err := r.runner.Run(ctx, q, header)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, apperrors.NotFound(MsgOrderNotFound)
	}
	order := orders[0]
	orderID := order.Value("id")

	operations := query.New(r.dialect, "orders.operations").
		Select(
			query.Col("ow.id"),
			query.Col("ow.operation_id"),
			query.As("op.name", "operation_name"),
			query.As("op.bar_id", "operation_code"),
			query.Col("ow.user_time"),
			query.Col("ow.real_time"),
			query.Col("ow.odpracovano"),
			query.Col("ow.user_price"),
			query.Col("ow.real_price"),
			query.Col("ow.vyrobenocelkem"),
			query.Col("ow.units"),
			query.Col("ow.poradi"),
			query.Col("ow.start_req"),
			query.Col("ow.finish_req"),
			query.Col("ow.comment"),
		).
		From("order_work ow LEFT JOIN operation op ON ow.operation_id = op.id").
		Where("ow.order_id = ?", orderID).
		OrderBy("ow.poradi")

	opRows, err := r.runner.Run(ctx, q, operations)
	if err != nil {
		return nil, err
	}

	materials := query.New(r.dialect, "orders.materials").
		Select(
			query.Col("m.id"),
			query.Col("m.material_id"),
			query.As("mat.name", "material_name"),
			query.Col("m.mnozstvi"),
			query.Col("m.jednotka"),
			query.Optional(1, "m.vydano_mnozstvi", "vydano_mnozstvi", "0").On("material", "vydano_mnozstvi"),
			query.Optional(2, "m.cena_nakup", "cena_nakup", "0").On("material", "cena_nakup"),
			query.Optional(2, "m.cena_celkem", "cena_celkem", "0").On("material", "cena_celkem"),
		).
		From("material m LEFT JOIN sklad_material mat ON m.material_id = mat.id").
		Where("m.order_id = ?", orderID)

	matRows, err := r.runner.Run(ctx, q, materials)
	if err != nil {
		return nil, err
	}

	return &models.OrderDetail{Order: order, Operations: opRows, Materials: matRows}, nil
}

func (r *orderRepository) Search(ctx context.Context, q datasource.Querier, opts models.OrderSearchOptions) ([]datasource.Row, error) {
	stmt := query.New(r.dialect, "orders.search").
		Select(
			query.Col("o.id"),
			query.Col("o.code"),
			query.Col("o.name"),
			query.Col("o.customer_name"),
			query.Col("o.customer_id"),
			query.Col("o.active"),
			query.Col("o.start"),
			query.Col("o.finish"),
			query.Col("o.note"),
		).
		From("c_order o").
		Where("(o.code LIKE ? OR o.name LIKE ? OR o.customer_name LIKE ? OR o.cislo_objednavky LIKE ? OR o.note LIKE ?)",
			"%"+opts.SearchTerm+"%").
		OrderBy("o.start DESC").
		Limit(opts.Limit)

	return r.runner.Run(ctx, q, stmt)
}
