package models

import "github.com/ekaya-inc/emistr-mcp/pkg/adapters/datasource"

// OrderList is the result of get_orders.
type OrderList struct {
	Orders []datasource.Row
	// Stats holds total, active_count and delayed_count over all orders
	// of the selected customer, independent of paging.
	Stats datasource.Row
}

// OrderDetail is an order header with its operations and materials.
type OrderDetail struct {
	Order      datasource.Row
	Operations []datasource.Row
	Materials  []datasource.Row
}

// WorkerDetail is a worker with statistics over the last 30 days.
type WorkerDetail struct {
	Worker datasource.Row
	Stats  datasource.Row
}

// Period is a closed date range.
type Period struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// ProductionStats is the result of get_production_stats.
type ProductionStats struct {
	Period        Period
	DailyStats    []datasource.Row
	TopOperations []datasource.Row
}
