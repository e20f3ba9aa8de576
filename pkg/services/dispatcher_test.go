package services

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ekaya-inc/emistr-mcp/pkg/adapters/datasource"
	"github.com/ekaya-inc/emistr-mcp/pkg/anonymizer"
	"github.com/ekaya-inc/emistr-mcp/pkg/apperrors"
	"github.com/ekaya-inc/emistr-mcp/pkg/envelope"
	"github.com/ekaya-inc/emistr-mcp/pkg/query"
	"github.com/ekaya-inc/emistr-mcp/pkg/schema"
	"github.com/ekaya-inc/emistr-mcp/pkg/testhelpers"
)

var fixedNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

// countingDB counts leases and queries so tests can assert that validation
// happens before the database is touched.
type countingDB struct {
	db      ConnProvider
	leases  atomic.Int32
	queries atomic.Int32
}

type countingQuerier struct {
	q       datasource.Querier
	queries *atomic.Int32
}

func (c countingQuerier) Query(ctx context.Context, query string, args ...any) ([]datasource.Row, error) {
	c.queries.Add(1)
	return c.q.Query(ctx, query, args...)
}

func (c *countingDB) WithConn(ctx context.Context, fn func(ctx context.Context, q datasource.Querier) error) error {
	c.leases.Add(1)
	return c.db.WithConn(ctx, func(ctx context.Context, q datasource.Querier) error {
		return fn(ctx, countingQuerier{q: q, queries: &c.queries})
	})
}

type panicDB struct{}

func (panicDB) WithConn(ctx context.Context, fn func(ctx context.Context, q datasource.Querier) error) error {
	panic("driver exploded")
}

type failingDB struct{ err error }

func (f failingDB) WithConn(context.Context, func(context.Context, datasource.Querier) error) error {
	return f.err
}

func newTestDispatcher(t *testing.T, s testhelpers.Schema, anonymize bool) (*Dispatcher, *countingDB) {
	t.Helper()
	db := testhelpers.NewSQLiteDBWithSchema(t, s)
	logger := zaptest.NewLogger(t)
	introspector := schema.NewIntrospector(db.Dialect(), db.Schema(), logger)
	runner := query.NewRunner(introspector, logger)

	counting := &countingDB{db: db}
	d := NewDispatcher(counting,
		NewRepositories(db.Dialect(), runner, introspector),
		anonymizer.New(anonymize),
		logger,
		WithBuilder(envelope.NewBuilderWithClock(func() time.Time { return fixedNow })),
	)
	return d, counting
}

func TestDispatcher_GetOrders(t *testing.T) {
	d, _ := newTestDispatcher(t, testhelpers.CurrentSchema, true)

	env := d.Invoke(context.Background(), OpGetOrders, map[string]any{"status": "ANO"})

	require.Equal(t, envelope.StatusSuccess, env.Status, env.Message)
	assert.Equal(t, "2024-03-15T10:30:00Z", env.Timestamp)
	assert.Equal(t, map[string]any{"status": "ANO"}, env.Action.Filters)

	data := env.Data.(envelope.OrdersData)
	require.Len(t, data.Items, 2)
	pattern := regexp.MustCompile(`^ZÁKAZNÍK_[0-9A-F]{6}$`)
	for _, item := range data.Items {
		assert.Regexp(t, pattern, item.Value("customer_name"))
	}
	assert.NotContains(t, data.Items[1].Value("note"), "jan@firma.cz")
	assert.Equal(t, "Nalezeno 2 zakázek, 1 zpožděno", env.Message)
}

func TestDispatcher_GetOrdersWithoutAnonymization(t *testing.T) {
	d, _ := newTestDispatcher(t, testhelpers.CurrentSchema, false)

	env := d.Invoke(context.Background(), OpGetOrders, map[string]any{"customer_id": "2"})

	require.Equal(t, envelope.StatusSuccess, env.Status, env.Message)
	data := env.Data.(envelope.OrdersData)
	require.Len(t, data.Items, 1)
	assert.Equal(t, "Kovo Plzeň s.r.o.", data.Items[0].Value("customer_name"))
	assert.Equal(t, map[string]any{"customer_id": int64(2)}, env.Action.Filters)
}

func TestDispatcher_GetOrdersColumns(t *testing.T) {
	d, _ := newTestDispatcher(t, testhelpers.CurrentSchema, true)

	env := d.Invoke(context.Background(), OpGetOrders, map[string]any{"columns": []any{"code", "name"}})

	require.Equal(t, envelope.StatusSuccess, env.Status, env.Message)
	data := env.Data.(envelope.OrdersData)
	assert.Equal(t, []string{"code", "name"}, data.Items[0].Keys())
}

func TestDispatcher_GetOrdersZeroLimitRunsNoQuery(t *testing.T) {
	d, db := newTestDispatcher(t, testhelpers.CurrentSchema, true)

	env := d.Invoke(context.Background(), OpGetOrders, map[string]any{"limit": 0})

	assert.Equal(t, envelope.StatusError, env.Status)
	assert.Equal(t, "limit musí být kladné číslo", env.Message)
	assert.Zero(t, db.leases.Load())
	assert.Zero(t, db.queries.Load())
}

func TestDispatcher_OrderDetailRequiresIdentifier(t *testing.T) {
	d, db := newTestDispatcher(t, testhelpers.CurrentSchema, true)

	env := d.Invoke(context.Background(), OpGetOrderDetail, map[string]any{})

	assert.Equal(t, envelope.StatusError, env.Status)
	assert.Equal(t, "Musíte zadat order_id nebo order_code", env.Message)
	assert.Equal(t, "show_message", env.Action.Type)
	assert.Zero(t, db.queries.Load())
}

func TestDispatcher_OrderDetailNotFound(t *testing.T) {
	d, _ := newTestDispatcher(t, testhelpers.CurrentSchema, true)

	env := d.Invoke(context.Background(), OpGetOrderDetail, map[string]any{"order_id": "999"})

	assert.Equal(t, envelope.StatusError, env.Status)
	assert.Equal(t, "Zakázka nenalezena", env.Message)
}

func TestDispatcher_OrderDetail(t *testing.T) {
	d, db := newTestDispatcher(t, testhelpers.CurrentSchema, true)

	env := d.Invoke(context.Background(), OpGetOrderDetail, map[string]any{"order_id": float64(testhelpers.SeedOrderActiveID)})

	require.Equal(t, envelope.StatusSuccess, env.Status, env.Message)
	assert.EqualValues(t, 1, db.leases.Load())

	data := env.Data.(envelope.OrderDetailData)
	assert.Equal(t, anonymizer.MaskedICO, data.Order.Value("ico"))
	assert.Equal(t, anonymizer.MaskedDIC, data.Order.Value("dic"))
	assert.Equal(t, "volat [telefon]", data.Operations[0].Value("comment"))
	assert.Equal(t, 80.0, data.Summary.CompletionPercent)
	assert.Equal(t, 1, data.Summary.OperationsCompleted)
	assert.Equal(t, "Detail zakázky Z-2024-001 - Rám svařovaný", env.Message)
}

func TestDispatcher_OrderDetailLegacySchema(t *testing.T) {
	d, _ := newTestDispatcher(t, testhelpers.LegacySchema, true)

	env := d.Invoke(context.Background(), OpGetOrderDetail, map[string]any{"order_code": testhelpers.SeedOrderActiveCode})

	require.Equal(t, envelope.StatusSuccess, env.Status, env.Message)
	data := env.Data.(envelope.OrderDetailData)
	require.Len(t, data.Materials, 2)
	assert.True(t, data.Materials[0].Has("vydano_mnozstvi"))
}

func TestDispatcher_SearchOrders(t *testing.T) {
	d, _ := newTestDispatcher(t, testhelpers.CurrentSchema, true)

	env := d.Invoke(context.Background(), OpSearchOrders, map[string]any{"search_term": "OBJ-300"})

	require.Equal(t, envelope.StatusSuccess, env.Status, env.Message)
	data := env.Data.(envelope.SearchData)
	assert.Equal(t, 1, data.Summary.ResultsCount)
	assert.Equal(t, "OBJ-300", env.Action.SearchTerm)

	env = d.Invoke(context.Background(), OpSearchOrders, map[string]any{})
	assert.Equal(t, envelope.StatusError, env.Status)
	assert.Equal(t, "Musíte zadat search_term", env.Message)
}

func TestDispatcher_Workers(t *testing.T) {
	d, _ := newTestDispatcher(t, testhelpers.CurrentSchema, true)

	env := d.Invoke(context.Background(), OpGetWorkers, map[string]any{"status": "ANO"})
	require.Equal(t, envelope.StatusSuccess, env.Status, env.Message)
	data := env.Data.(envelope.WorkersData)
	assert.Equal(t, envelope.WorkersSummary{TotalCount: 2, ActiveCount: 2}, data.Summary)
	for _, item := range data.Items {
		assert.Regexp(t, `^ZAMĚSTNANEC_[0-9A-F]{6}$`, item.Value("name"))
		assert.Equal(t, anonymizer.MaskedEmail, item.Value("email"))
	}

	env = d.Invoke(context.Background(), OpGetWorkerDetail, map[string]any{"worker_id": 1})
	require.Equal(t, envelope.StatusSuccess, env.Status, env.Message)
	detail := env.Data.(envelope.WorkerDetailData)
	assert.Nil(t, detail.Worker.Value("birthdate"))
	assert.Equal(t, anonymizer.MaskedCard, detail.Worker.Value("card"))
	assert.Equal(t, 2.0, detail.Summary.OrdersLast30Days)
	assert.Equal(t, 12.0, detail.Summary.TotalHoursLast30Days)

	env = d.Invoke(context.Background(), OpGetWorkerDetail, map[string]any{})
	assert.Equal(t, envelope.StatusError, env.Status)
	assert.Equal(t, "Musíte zadat worker_id", env.Message)

	env = d.Invoke(context.Background(), OpGetWorkerDetail, map[string]any{"worker_id": 999})
	assert.Equal(t, "Zaměstnanec nenalezen", env.Message)
}

func TestDispatcher_Materials(t *testing.T) {
	d, _ := newTestDispatcher(t, testhelpers.CurrentSchema, true)

	env := d.Invoke(context.Background(), OpGetMaterials, map[string]any{"low_stock_only": "true"})
	require.Equal(t, envelope.StatusSuccess, env.Status, env.Message)
	data := env.Data.(envelope.MaterialsData)
	assert.Equal(t, 2, data.Summary.TotalCount)
	assert.Equal(t, 2, data.Summary.LowStockCount)
	assert.True(t, *env.Action.HighlightLowStock)

	env = d.Invoke(context.Background(), OpGetMaterialMovements, map[string]any{"material_id": 1})
	require.Equal(t, envelope.StatusSuccess, env.Status, env.Message)
	movements := env.Data.(envelope.MovementsData)
	assert.Equal(t, envelope.MovementsSummary{MovementsCount: 2, TotalIn: 50, TotalOut: 4}, movements.Summary)
}

func TestDispatcher_OperationsAndMachines(t *testing.T) {
	d, _ := newTestDispatcher(t, testhelpers.LegacySchema, true)

	env := d.Invoke(context.Background(), OpGetOperations, map[string]any{"operation_group": "SVAR"})
	require.Equal(t, envelope.StatusSuccess, env.Status, env.Message)
	assert.Len(t, env.Data.(envelope.OperationsData).Items, 1)

	env = d.Invoke(context.Background(), OpGetMachines, map[string]any{"status_filter": "busy"})
	require.Equal(t, envelope.StatusSuccess, env.Status, env.Message)
	assert.Equal(t, 3, env.Data.(envelope.MachinesData).Summary.TotalCount)
}

func TestDispatcher_ProductionStats(t *testing.T) {
	d, _ := newTestDispatcher(t, testhelpers.CurrentSchema, true)

	env := d.Invoke(context.Background(), OpGetProductionStats, map[string]any{"date_from": "2024-03-01", "date_to": "2024-03-31"})
	require.Equal(t, envelope.StatusSuccess, env.Status, env.Message)
	data := env.Data.(envelope.StatsData)
	assert.Equal(t, 2, data.Summary.DaysCount)
	assert.InDelta(t, 16.5, data.Summary.TotalHours, 0.01)

	env = d.Invoke(context.Background(), OpGetProductionStats, map[string]any{"date_from": "1.3.2024", "date_to": "2024-03-31"})
	assert.Equal(t, envelope.StatusError, env.Status)
}

func TestDispatcher_UnknownTool(t *testing.T) {
	d, db := newTestDispatcher(t, testhelpers.CurrentSchema, true)

	env := d.Invoke(context.Background(), "drop_everything", nil)

	assert.Equal(t, envelope.StatusError, env.Status)
	assert.Equal(t, "Neznámý tool: drop_everything", env.Message)
	assert.Zero(t, db.leases.Load())
}

func TestDispatcher_RecoversPanics(t *testing.T) {
	d := NewDispatcher(panicDB{}, Repositories{}, nil, zaptest.NewLogger(t))

	var env envelope.Envelope
	require.NotPanics(t, func() {
		env = d.Invoke(context.Background(), OpGetMachines, nil)
	})
	assert.Equal(t, envelope.StatusError, env.Status)
	assert.Equal(t, envelope.MsgProcessingFailed, env.Message)
}

func TestDispatcher_HidesDatabaseErrors(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	d := NewDispatcher(failingDB{err: errors.New("dial tcp 10.0.0.5:3306: connection refused")}, Repositories{}, nil, zap.New(core))

	env := d.Invoke(context.Background(), OpGetMachines, nil)

	assert.Equal(t, envelope.MsgProcessingFailed, env.Message)
	raw, err := json.Marshal(env)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "10.0.0.5")

	failed := logs.FilterMessage("Tool failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "internal_error", failed[0].ContextMap()["code"])
}

type recordingRecorder struct {
	codes      []string
	suspicious []string
}

func (r *recordingRecorder) Observe(_ context.Context, tool, code string, _ time.Duration) {
	r.codes = append(r.codes, tool+":"+code)
}

func (r *recordingRecorder) Suspicious(tool, param string) {
	r.suspicious = append(r.suspicious, tool+":"+param)
}

func TestDispatcher_RecordsMetricsAndScreensArguments(t *testing.T) {
	db := testhelpers.NewSQLiteDB(t)
	logger := zaptest.NewLogger(t)
	introspector := schema.NewIntrospector(db.Dialect(), db.Schema(), logger)
	rec := &recordingRecorder{}
	d := NewDispatcher(db, NewRepositories(db.Dialect(), query.NewRunner(introspector, logger), introspector), nil, logger, WithRecorder(rec))

	env := d.Invoke(context.Background(), OpSearchOrders, map[string]any{"search_term": "1' OR '1'='1"})
	require.Equal(t, envelope.StatusSuccess, env.Status, env.Message)
	assert.Empty(t, env.Data.(envelope.SearchData).Items)

	d.Invoke(context.Background(), OpGetOrders, map[string]any{"limit": -1})

	assert.Equal(t, []string{"search_orders:ok", "get_orders:validation_error"}, rec.codes)
	assert.Equal(t, []string{"search_orders:search_term"}, rec.suspicious)
}

func TestDispatcher_SpanStatus(t *testing.T) {
	sqlite := testhelpers.NewSQLiteDB(t)
	logger := zaptest.NewLogger(t)
	introspector := schema.NewIntrospector(sqlite.Dialect(), sqlite.Schema(), logger)
	repos := NewRepositories(sqlite.Dialect(), query.NewRunner(introspector, logger), introspector)

	tests := []struct {
		name     string
		db       ConnProvider
		tool     string
		args     map[string]any
		wantCode codes.Code
		result   string
	}{
		{"success", sqlite, OpGetMachines, nil, codes.Ok, "ok"},
		{"validation", sqlite, OpGetOrders, map[string]any{"limit": 0}, codes.Ok, "validation_error"},
		{"not found", sqlite, OpGetOrderDetail, map[string]any{"order_id": "999"}, codes.Ok, "entity_not_found"},
		{"database", failingDB{err: apperrors.Database(errors.New("connection reset"))}, OpGetMachines, nil, codes.Error, "database_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := tracetest.NewSpanRecorder()
			tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
			defer tp.Shutdown(context.Background())

			core, logs := observer.New(zap.InfoLevel)
			d := NewDispatcher(tt.db, repos, nil, zap.New(core), WithTracer(tp.Tracer("test")))
			d.Invoke(context.Background(), tt.tool, tt.args)

			spans := recorder.Ended()
			require.Len(t, spans, 1)
			span := spans[0]
			assert.Equal(t, "tool "+tt.tool, span.Name())
			assert.Equal(t, tt.wantCode, span.Status().Code)

			attrs := map[string]string{}
			for _, kv := range span.Attributes() {
				attrs[string(kv.Key)] = kv.Value.Emit()
			}
			assert.Equal(t, tt.tool, attrs["mcp.tool"])
			assert.Equal(t, tt.result, attrs["emistr.result"])
			assert.NotEmpty(t, attrs["emistr.invocation_id"])

			if tt.wantCode == codes.Error {
				assert.NotEmpty(t, span.Events(), "failure must be recorded on the span")
			}

			called := logs.FilterMessage("Tool called").All()
			require.Len(t, called, 1)
			assert.Equal(t, span.SpanContext().TraceID().String(), called[0].ContextMap()["trace_id"])
		})
	}
}
