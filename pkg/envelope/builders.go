package envelope

import (
	"fmt"

	"github.com/ekaya-inc/emistr-mcp/pkg/adapters/datasource"
	"github.com/ekaya-inc/emistr-mcp/pkg/models"
)

// Grid columns of the list windows.
var (
	OrderColumns = []ColumnInfo{
		{Key: "code", Label: "Kód zakázky", Type: "string"},
		{Key: "name", Label: "Název", Type: "string"},
		{Key: "customer_name", Label: "Zákazník", Type: "string"},
		{Key: "start", Label: "Zahájení", Type: "date"},
		{Key: "finish", Label: "Ukončení", Type: "date"},
		{Key: "kusu", Label: "Kusů", Type: "decimal"},
		{Key: "prevedeno", Label: "Převedeno", Type: "decimal"},
		{Key: "active", Label: "Stav", Type: "string"},
		{Key: "priorita", Label: "Priorita", Type: "integer"},
	}
	WorkerColumns = []ColumnInfo{
		{Key: "bar_id", Label: "Kód", Type: "string"},
		{Key: "name", Label: "Jméno", Type: "string"},
		{Key: "group_name", Label: "Skupina", Type: "string"},
		{Key: "profese", Label: "Profese", Type: "string"},
		{Key: "misto_prace", Label: "Místo práce", Type: "string"},
		{Key: "active", Label: "Aktivní", Type: "string"},
	}
	MaterialColumns = []ColumnInfo{
		{Key: "bar_id", Label: "Kód", Type: "string"},
		{Key: "name", Label: "Název", Type: "string"},
		{Key: "stock_quantity", Label: "Množství", Type: "decimal"},
		{Key: "min_quantity", Label: "Min. množství", Type: "decimal"},
		{Key: "jednotka", Label: "Jednotka", Type: "string"},
		{Key: "warehouse_id", Label: "Sklad", Type: "integer"},
	}
)

// Movement types of sklad_material_pohyb.typ_pohybu.
const (
	MovementIn  = "P"
	MovementOut = "V"
)

type OrdersSummary struct {
	TotalCount     int     `json:"total_count"`
	ActiveCount    float64 `json:"active_count"`
	DelayedCount   float64 `json:"delayed_count"`
	DisplayedCount int     `json:"displayed_count"`
}

type OrdersData struct {
	Items    []datasource.Row `json:"items"`
	Summary  OrdersSummary    `json:"summary"`
	Metadata Metadata         `json:"metadata"`
}

// Orders builds the order list envelope. When columns is not empty the items
// and the column metadata are reduced to those columns.
func (b *Builder) Orders(list *models.OrderList, filters map[string]any, columns []string) Envelope {
	items := rows(list.Orders)
	meta := OrderColumns
	if len(columns) > 0 {
		projected := make([]datasource.Row, len(items))
		for i, row := range items {
			projected[i] = row.Project(columns)
		}
		items = projected
		meta = selectColumns(OrderColumns, columns)
	}

	delayed := num(list.Stats, "delayed_count")
	summary := OrdersSummary{
		TotalCount:     len(items),
		ActiveCount:    num(list.Stats, "active_count"),
		DelayedCount:   delayed,
		DisplayedCount: len(items),
	}

	msg := fmt.Sprintf("Nalezeno %d zakázek", len(items))
	if delayed > 0 {
		msg += fmt.Sprintf(", %d zpožděno", int64(delayed))
	}

	return b.success(
		Action{Type: "open_window", Window: "order_list", Filters: filters},
		OrdersData{
			Items:    items,
			Summary:  summary,
			Metadata: Metadata{FiltersApplied: filters, Columns: meta},
		},
		msg,
	)
}

func selectColumns(all []ColumnInfo, keys []string) []ColumnInfo {
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	out := make([]ColumnInfo, 0, len(keys))
	for _, c := range all {
		if want[c.Key] {
			out = append(out, c)
		}
	}
	return out
}

type OrderDetailSummary struct {
	CompletionPercent   float64 `json:"completion_percent"`
	OperationsCount     int     `json:"operations_count"`
	OperationsCompleted int     `json:"operations_completed"`
	MaterialsCount      int     `json:"materials_count"`
	TotalHoursPlanned   float64 `json:"total_hours_planned"`
	TotalHoursActual    float64 `json:"total_hours_actual"`
	EfficiencyPercent   float64 `json:"efficiency_percent"`
}

type OrderDetailData struct {
	Order      datasource.Row     `json:"order"`
	Operations []datasource.Row   `json:"operations"`
	Materials  []datasource.Row   `json:"materials"`
	Summary    OrderDetailSummary `json:"summary"`
}

// OrderDetail derives completion from real_time/user_time and counts an
// operation as completed once vyrobenocelkem reaches units.
func (b *Builder) OrderDetail(d *models.OrderDetail) Envelope {
	planned := num(d.Order, "user_time")
	actual := num(d.Order, "real_time")

	completed := 0
	for _, op := range d.Operations {
		if num(op, "vyrobenocelkem") >= num(op, "units") {
			completed++
		}
	}

	return b.success(
		Action{
			Type:   "show_detail",
			Window: "order_detail",
			ItemID: d.Order.Value("id"),
			Tabs:   []string{"header", "operations", "materials", "documents"},
		},
		OrderDetailData{
			Order:      d.Order,
			Operations: rows(d.Operations),
			Materials:  rows(d.Materials),
			Summary: OrderDetailSummary{
				CompletionPercent:   percent(actual, planned),
				OperationsCount:     len(d.Operations),
				OperationsCompleted: completed,
				MaterialsCount:      len(d.Materials),
				TotalHoursPlanned:   planned,
				TotalHoursActual:    actual,
				EfficiencyPercent:   percent(planned, actual),
			},
		},
		fmt.Sprintf("Detail zakázky %v - %v", d.Order.Value("code"), d.Order.Value("name")),
	)
}

type SearchSummary struct {
	ResultsCount int    `json:"results_count"`
	SearchTerm   string `json:"search_term"`
}

type SearchData struct {
	Items   []datasource.Row `json:"items"`
	Summary SearchSummary    `json:"summary"`
}

func (b *Builder) Search(items []datasource.Row, term string) Envelope {
	items = rows(items)
	return b.success(
		Action{Type: "open_window", Window: "search_results", SearchTerm: term},
		SearchData{
			Items:   items,
			Summary: SearchSummary{ResultsCount: len(items), SearchTerm: term},
		},
		fmt.Sprintf("Nalezeno %d zakázek pro hledaný výraz '%s'", len(items), term),
	)
}

type WorkersSummary struct {
	TotalCount  int `json:"total_count"`
	ActiveCount int `json:"active_count"`
}

type WorkersData struct {
	Items    []datasource.Row `json:"items"`
	Summary  WorkersSummary   `json:"summary"`
	Metadata Metadata         `json:"metadata"`
}

func (b *Builder) Workers(items []datasource.Row, filters map[string]any) Envelope {
	items = rows(items)
	active := 0
	for _, w := range items {
		if w.Value("active") == "ANO" {
			active++
		}
	}
	return b.success(
		Action{Type: "open_window", Window: "worker_list", Filters: filters},
		WorkersData{
			Items:    items,
			Summary:  WorkersSummary{TotalCount: len(items), ActiveCount: active},
			Metadata: Metadata{Columns: WorkerColumns},
		},
		fmt.Sprintf("Nalezeno %d zaměstnanců", len(items)),
	)
}

type WorkerDetailSummary struct {
	OrdersLast30Days     float64 `json:"orders_last_30_days"`
	TotalHoursLast30Days float64 `json:"total_hours_last_30_days"`
	AvgHoursPerOrder     float64 `json:"avg_hours_per_order"`
	LastWorkDate         any     `json:"last_work_date"`
}

type WorkerDetailData struct {
	Worker  datasource.Row      `json:"worker"`
	Stats   datasource.Row      `json:"stats"`
	Summary WorkerDetailSummary `json:"summary"`
}

func (b *Builder) WorkerDetail(d *models.WorkerDetail) Envelope {
	return b.success(
		Action{Type: "show_detail", Window: "worker_detail", ItemID: d.Worker.Value("id")},
		WorkerDetailData{
			Worker: d.Worker,
			Stats:  d.Stats,
			Summary: WorkerDetailSummary{
				OrdersLast30Days:     num(d.Stats, "orders_count"),
				TotalHoursLast30Days: num(d.Stats, "total_hours"),
				AvgHoursPerOrder:     Round2(num(d.Stats, "avg_hours_per_order")),
				LastWorkDate:         d.Stats.Value("last_work_date"),
			},
		},
		fmt.Sprintf("Detail zaměstnance %v", d.Worker.Value("bar_id")),
	)
}

type MaterialsSummary struct {
	TotalCount    int     `json:"total_count"`
	LowStockCount int     `json:"low_stock_count"`
	TotalValue    float64 `json:"total_value"`
}

type MaterialsData struct {
	Items    []datasource.Row `json:"items"`
	Summary  MaterialsSummary `json:"summary"`
	Metadata Metadata         `json:"metadata"`
}

// Materials values the stock at purchase price and flags materials below
// their minimum quantity.
func (b *Builder) Materials(items []datasource.Row, filters map[string]any) Envelope {
	items = rows(items)
	low := 0
	value := 0.0
	for _, m := range items {
		stock := num(m, "stock_quantity")
		if stock < num(m, "min_quantity") {
			low++
		}
		value += stock * num(m, "cena_nakup")
	}
	highlight := low > 0

	msg := fmt.Sprintf("Nalezeno %d materiálů", len(items))
	if low > 0 {
		msg += fmt.Sprintf(", %d pod minimální zásobou", low)
	}

	return b.success(
		Action{Type: "open_window", Window: "material_list", Filters: filters, HighlightLowStock: &highlight},
		MaterialsData{
			Items:    items,
			Summary:  MaterialsSummary{TotalCount: len(items), LowStockCount: low, TotalValue: Round2(value)},
			Metadata: Metadata{Columns: MaterialColumns},
		},
		msg,
	)
}

type MovementsSummary struct {
	MovementsCount int     `json:"movements_count"`
	TotalIn        float64 `json:"total_in"`
	TotalOut       float64 `json:"total_out"`
}

type MovementsData struct {
	Items   []datasource.Row `json:"items"`
	Summary MovementsSummary `json:"summary"`
}

func (b *Builder) Movements(items []datasource.Row, filters map[string]any) Envelope {
	items = rows(items)
	var in, out float64
	for _, m := range items {
		switch m.Value("typ_pohybu") {
		case MovementIn:
			in += num(m, "mnozstvi")
		case MovementOut:
			out += num(m, "mnozstvi")
		}
	}
	return b.success(
		Action{Type: "open_window", Window: "material_movements", Filters: filters},
		MovementsData{
			Items:   items,
			Summary: MovementsSummary{MovementsCount: len(items), TotalIn: Round2(in), TotalOut: Round2(out)},
		},
		fmt.Sprintf("Nalezeno %d pohybů materiálu", len(items)),
	)
}

type CountSummary struct {
	TotalCount int `json:"total_count"`
}

type OperationsData struct {
	Items   []datasource.Row `json:"items"`
	Summary CountSummary     `json:"summary"`
}

func (b *Builder) Operations(items []datasource.Row, filters map[string]any) Envelope {
	items = rows(items)
	return b.success(
		Action{Type: "open_window", Window: "operation_list", Filters: filters},
		OperationsData{Items: items, Summary: CountSummary{TotalCount: len(items)}},
		fmt.Sprintf("Nalezeno %d operací", len(items)),
	)
}

type MachinesSummary struct {
	TotalCount int `json:"total_count"`
	BusyCount  int `json:"busy_count"`
	IdleCount  int `json:"idle_count"`
}

type MachinesData struct {
	Items   []datasource.Row `json:"items"`
	Summary MachinesSummary  `json:"summary"`
}

func (b *Builder) Machines(items []datasource.Row, filters map[string]any) Envelope {
	items = rows(items)
	var busy, idle int
	for _, m := range items {
		switch m.Value("current_status") {
		case "busy":
			busy++
		case "idle":
			idle++
		}
	}
	return b.success(
		Action{Type: "open_window", Window: "machine_list", Filters: filters},
		MachinesData{
			Items:   items,
			Summary: MachinesSummary{TotalCount: len(items), BusyCount: busy, IdleCount: idle},
		},
		fmt.Sprintf("Nalezeno %d strojů (%d v provozu, %d nečinných)", len(items), busy, idle),
	)
}

type StatsSummary struct {
	TotalHours           float64 `json:"total_hours"`
	AverageWorkersPerDay float64 `json:"average_workers_per_day"`
	DaysCount            int     `json:"days_count"`
	AverageHoursPerDay   float64 `json:"average_hours_per_day"`
}

type StatsData struct {
	DailyStats    []datasource.Row `json:"daily_stats"`
	TopOperations []datasource.Row `json:"top_operations"`
	Summary       StatsSummary     `json:"summary"`
	Period        models.Period    `json:"period"`
}

func (b *Builder) ProductionStats(s *models.ProductionStats) Envelope {
	daily := rows(s.DailyStats)
	var hours, workers float64
	for _, d := range daily {
		hours += num(d, "total_hours")
		workers += num(d, "workers_count")
	}

	summary := StatsSummary{TotalHours: Round2(hours), DaysCount: len(daily)}
	if n := float64(len(daily)); n > 0 {
		summary.AverageWorkersPerDay = round1(workers / n)
		summary.AverageHoursPerDay = Round2(hours / n)
	}

	period := s.Period
	return b.success(
		Action{Type: "open_window", Window: "production_stats", Period: &period},
		StatsData{
			DailyStats:    daily,
			TopOperations: rows(s.TopOperations),
			Summary:       summary,
			Period:        period,
		},
		fmt.Sprintf("Statistiky výroby za období %s - %s", period.From, period.To),
	)
}
