package models

// Pointer fields are optional filters: nil means no constraint.

// OrderListOptions are the arguments of get_orders.
type OrderListOptions struct {
	Status     *string  `json:"status,omitempty"`
	CustomerID *int64   `json:"customer_id,omitempty"`
	DateFrom   *string  `json:"date_from,omitempty"`
	DateTo     *string  `json:"date_to,omitempty"`
	Limit      int      `json:"limit"`
	Offset     int      `json:"offset"`
	Columns    []string `json:"columns,omitempty"`
}

// OrderDetailOptions identify one order by id or by code. The id wins when
// both are given.
type OrderDetailOptions struct {
	OrderID   *int64  `json:"order_id,omitempty"`
	OrderCode *string `json:"order_code,omitempty"`
}

// OrderSearchOptions are the arguments of search_orders.
type OrderSearchOptions struct {
	SearchTerm string `json:"search_term"`
	Limit      int    `json:"limit"`
}

// WorkerListOptions are the arguments of get_workers.
type WorkerListOptions struct {
	Status    *string `json:"status,omitempty"`
	GroupName *string `json:"group_name,omitempty"`
	Limit     int     `json:"limit"`
}

// WorkerDetailOptions are the arguments of get_worker_detail.
type WorkerDetailOptions struct {
	WorkerID int64 `json:"worker_id"`
}

// MaterialListOptions are the arguments of get_materials.
type MaterialListOptions struct {
	WarehouseID  *int64 `json:"sklad_id,omitempty"`
	LowStockOnly bool   `json:"low_stock_only"`
	Limit        int    `json:"limit"`
}

// MaterialMovementOptions are the arguments of get_material_movements.
type MaterialMovementOptions struct {
	MaterialID *int64  `json:"material_id,omitempty"`
	DateFrom   *string `json:"date_from,omitempty"`
	DateTo     *string `json:"date_to,omitempty"`
	Limit      int     `json:"limit"`
}

// OperationListOptions are the arguments of get_operations.
type OperationListOptions struct {
	OperationGroup *string `json:"operation_group,omitempty"`
	Limit          int     `json:"limit"`
}

// MachineListOptions are the arguments of get_machines.
type MachineListOptions struct {
	StatusFilter *string `json:"status_filter,omitempty"`
	Limit        int     `json:"limit"`
}

// ProductionStatsOptions are the arguments of get_production_stats.
type ProductionStatsOptions struct {
	DateFrom string `json:"date_from"`
	DateTo   string `json:"date_to"`
}
