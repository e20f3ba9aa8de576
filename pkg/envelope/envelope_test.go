package envelope

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/emistr-mcp/pkg/adapters/datasource"
	"github.com/ekaya-inc/emistr-mcp/pkg/apperrors"
	"github.com/ekaya-inc/emistr-mcp/pkg/models"
)

var fixedNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

func newTestBuilder() *Builder {
	return NewBuilderWithClock(func() time.Time { return fixedNow })
}

func TestFailure_ExpectedErrorsKeepMessage(t *testing.T) {
	b := newTestBuilder()

	env := b.Failure(apperrors.Validation("Musíte zadat order_id nebo order_code"))

	assert.Equal(t, StatusError, env.Status)
	assert.Equal(t, "Musíte zadat order_id nebo order_code", env.Message)
	assert.Equal(t, "show_message", env.Action.Type)
	assert.Equal(t, env.Message, env.Action.Message)

	env = b.Failure(apperrors.NotFound("Zakázka nenalezena"))
	assert.Equal(t, "Zakázka nenalezena", env.Message)
}

func TestFailure_HidesInternalDetail(t *testing.T) {
	b := newTestBuilder()
	errs := []error{
		apperrors.Database(errors.New("dial tcp 10.0.0.5:3306: connection refused")),
		apperrors.SchemaMismatch("orders.list", errors.New("Unknown column 'o.priorita'")),
		errors.New("boom"),
	}
	for _, err := range errs {
		env := b.Failure(err)
		assert.Equal(t, StatusError, env.Status)
		assert.Equal(t, MsgProcessingFailed, env.Message)
	}
}

func TestEnvelope_JSONShape(t *testing.T) {
	env := newTestBuilder().Error("Zakázka nenalezena")

	data, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	for _, key := range []string{"status", "timestamp", "action", "data", "message"} {
		assert.Contains(t, decoded, key)
	}
	assert.Equal(t, "2024-03-15T10:30:00Z", decoded["timestamp"])
	assert.Equal(t, map[string]any{}, decoded["data"])
}

func TestOrders_Summary(t *testing.T) {
	list := &models.OrderList{
		Orders: []datasource.Row{
			datasource.RowOf("id", int64(1), "code", "Z-001", "name", "Rám"),
			datasource.RowOf("id", int64(2), "code", "Z-002", "name", "Hřídel"),
		},
		Stats: datasource.RowOf("total", int64(40), "active_count", int64(12), "delayed_count", int64(3)),
	}
	filters := map[string]any{"status": "ANO"}

	env := newTestBuilder().Orders(list, filters, nil)

	require.Equal(t, StatusSuccess, env.Status)
	assert.Equal(t, "open_window", env.Action.Type)
	assert.Equal(t, "order_list", env.Action.Window)
	assert.Equal(t, filters, env.Action.Filters)

	data := env.Data.(OrdersData)
	assert.Equal(t, 2, data.Summary.TotalCount)
	assert.Equal(t, 2, data.Summary.DisplayedCount)
	assert.Equal(t, float64(12), data.Summary.ActiveCount)
	assert.Equal(t, float64(3), data.Summary.DelayedCount)
	assert.Len(t, data.Metadata.Columns, len(OrderColumns))
	assert.Equal(t, "Nalezeno 2 zakázek, 3 zpožděno", env.Message)
}

func TestOrders_ColumnProjection(t *testing.T) {
	list := &models.OrderList{
		Orders: []datasource.Row{datasource.RowOf("id", int64(1), "code", "Z-001", "name", "Rám", "note", "x")},
	}

	env := newTestBuilder().Orders(list, nil, []string{"code", "name", "missing"})

	data := env.Data.(OrdersData)
	assert.Equal(t, []string{"code", "name"}, data.Items[0].Keys())
	require.Len(t, data.Metadata.Columns, 2)
	assert.Equal(t, "code", data.Metadata.Columns[0].Key)
	assert.Equal(t, "Nalezeno 1 zakázek", env.Message)
}

func TestOrders_EmptyListSerializesAsArray(t *testing.T) {
	env := newTestBuilder().Orders(&models.OrderList{}, nil, nil)

	data, err := json.Marshal(env.Data)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"items":[]`)
}

func TestOrderDetail_Summary(t *testing.T) {
	detail := &models.OrderDetail{
		Order: datasource.RowOf("id", int64(5), "code", "Z-005", "name", "Rám", "user_time", 10.0, "real_time", 8.0),
		Operations: []datasource.Row{
			datasource.RowOf("vyrobenocelkem", int64(10), "units", int64(10)),
			datasource.RowOf("vyrobenocelkem", int64(4), "units", int64(10)),
			datasource.RowOf("vyrobenocelkem", nil, "units", nil),
		},
		Materials: []datasource.Row{datasource.RowOf("id", int64(1))},
	}

	env := newTestBuilder().OrderDetail(detail)

	data := env.Data.(OrderDetailData)
	assert.Equal(t, 80.0, data.Summary.CompletionPercent)
	assert.Equal(t, 125.0, data.Summary.EfficiencyPercent)
	assert.Equal(t, 3, data.Summary.OperationsCount)
	assert.Equal(t, 2, data.Summary.OperationsCompleted)
	assert.Equal(t, 1, data.Summary.MaterialsCount)
	assert.Equal(t, int64(5), env.Action.ItemID)
	assert.Equal(t, "Detail zakázky Z-005 - Rám", env.Message)
}

func TestOrderDetail_ZeroDenominators(t *testing.T) {
	detail := &models.OrderDetail{
		Order: datasource.RowOf("id", int64(5), "user_time", nil, "real_time", 0.0),
	}

	env := newTestBuilder().OrderDetail(detail)

	data := env.Data.(OrderDetailData)
	assert.Equal(t, 0.0, data.Summary.CompletionPercent)
	assert.Equal(t, 0.0, data.Summary.EfficiencyPercent)
	assert.NotNil(t, data.Operations)
	assert.NotNil(t, data.Materials)
}

func TestSearch(t *testing.T) {
	env := newTestBuilder().Search([]datasource.Row{datasource.RowOf("id", int64(1))}, "rám")

	data := env.Data.(SearchData)
	assert.Equal(t, 1, data.Summary.ResultsCount)
	assert.Equal(t, "rám", env.Action.SearchTerm)
	assert.Equal(t, "Nalezeno 1 zakázek pro hledaný výraz 'rám'", env.Message)
}

func TestWorkers_ActiveCount(t *testing.T) {
	items := []datasource.Row{
		datasource.RowOf("id", int64(1), "active", "ANO"),
		datasource.RowOf("id", int64(2), "active", "NE"),
		datasource.RowOf("id", int64(3), "active", "ANO"),
	}

	env := newTestBuilder().Workers(items, nil)

	data := env.Data.(WorkersData)
	assert.Equal(t, WorkersSummary{TotalCount: 3, ActiveCount: 2}, data.Summary)
	assert.Equal(t, "Nalezeno 3 zaměstnanců", env.Message)
}

func TestWorkerDetail_Summary(t *testing.T) {
	detail := &models.WorkerDetail{
		Worker: datasource.RowOf("id", int64(8), "bar_id", "W008"),
		Stats:  datasource.RowOf("orders_count", int64(4), "total_hours", 31.5, "avg_hours_per_order", 7.876, "last_work_date", "2024-03-14"),
	}

	env := newTestBuilder().WorkerDetail(detail)

	data := env.Data.(WorkerDetailData)
	assert.Equal(t, 4.0, data.Summary.OrdersLast30Days)
	assert.Equal(t, 31.5, data.Summary.TotalHoursLast30Days)
	assert.Equal(t, 7.88, data.Summary.AvgHoursPerOrder)
	assert.Equal(t, "2024-03-14", data.Summary.LastWorkDate)
	assert.Equal(t, "Detail zaměstnance W008", env.Message)
}

func TestWorkerDetail_NoStats(t *testing.T) {
	env := newTestBuilder().WorkerDetail(&models.WorkerDetail{Worker: datasource.RowOf("id", int64(8))})

	data := env.Data.(WorkerDetailData)
	assert.Zero(t, data.Summary.AvgHoursPerOrder)
	assert.Nil(t, data.Summary.LastWorkDate)
}

func TestMaterials_LowStock(t *testing.T) {
	items := []datasource.Row{
		datasource.RowOf("stock_quantity", 5.0, "min_quantity", 10.0, "cena_nakup", 2.0),
		datasource.RowOf("stock_quantity", 20.0, "min_quantity", 10.0, "cena_nakup", 1.5),
	}

	env := newTestBuilder().Materials(items, nil)

	data := env.Data.(MaterialsData)
	assert.Equal(t, 1, data.Summary.LowStockCount)
	assert.Equal(t, 40.0, data.Summary.TotalValue)
	require.NotNil(t, env.Action.HighlightLowStock)
	assert.True(t, *env.Action.HighlightLowStock)
	assert.Equal(t, "Nalezeno 2 materiálů, 1 pod minimální zásobou", env.Message)

	env = newTestBuilder().Materials(nil, nil)
	assert.False(t, *env.Action.HighlightLowStock)
	assert.Equal(t, "Nalezeno 0 materiálů", env.Message)
}

func TestMovements_Totals(t *testing.T) {
	items := []datasource.Row{
		datasource.RowOf("typ_pohybu", MovementIn, "mnozstvi", 100.0),
		datasource.RowOf("typ_pohybu", MovementOut, "mnozstvi", 30.0),
		datasource.RowOf("typ_pohybu", MovementOut, "mnozstvi", 12.5),
		datasource.RowOf("typ_pohybu", "I", "mnozstvi", 7.0),
	}

	env := newTestBuilder().Movements(items, nil)

	data := env.Data.(MovementsData)
	assert.Equal(t, MovementsSummary{MovementsCount: 4, TotalIn: 100, TotalOut: 42.5}, data.Summary)
}

func TestMachines_StatusCounts(t *testing.T) {
	items := []datasource.Row{
		datasource.RowOf("current_status", "busy"),
		datasource.RowOf("current_status", "idle"),
		datasource.RowOf("current_status", nil),
	}

	env := newTestBuilder().Machines(items, nil)

	data := env.Data.(MachinesData)
	assert.Equal(t, MachinesSummary{TotalCount: 3, BusyCount: 1, IdleCount: 1}, data.Summary)
	assert.Equal(t, "Nalezeno 3 strojů (1 v provozu, 1 nečinných)", env.Message)
}

func TestProductionStats_Summary(t *testing.T) {
	stats := &models.ProductionStats{
		Period: models.Period{From: "2024-03-01", To: "2024-03-31"},
		DailyStats: []datasource.Row{
			datasource.RowOf("date", "2024-03-01", "total_hours", 16.0, "workers_count", int64(2)),
			datasource.RowOf("date", "2024-03-02", "total_hours", 8.5, "workers_count", int64(1)),
		},
	}

	env := newTestBuilder().ProductionStats(stats)

	data := env.Data.(StatsData)
	assert.Equal(t, StatsSummary{TotalHours: 24.5, AverageWorkersPerDay: 1.5, DaysCount: 2, AverageHoursPerDay: 12.25}, data.Summary)
	assert.Equal(t, "2024-03-01", env.Action.Period.From)
	assert.NotNil(t, data.TopOperations)
	assert.Equal(t, "Statistiky výroby za období 2024-03-01 - 2024-03-31", env.Message)
}

func TestProductionStats_NoDays(t *testing.T) {
	env := newTestBuilder().ProductionStats(&models.ProductionStats{})

	data := env.Data.(StatsData)
	assert.Equal(t, StatsSummary{}, data.Summary)
}
