package services

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/ekaya-inc/emistr-mcp/pkg/adapters/datasource"
	"github.com/ekaya-inc/emistr-mcp/pkg/anonymizer"
	"github.com/ekaya-inc/emistr-mcp/pkg/apperrors"
	"github.com/ekaya-inc/emistr-mcp/pkg/envelope"
	"github.com/ekaya-inc/emistr-mcp/pkg/logging"
	"github.com/ekaya-inc/emistr-mcp/pkg/metrics"
	"github.com/ekaya-inc/emistr-mcp/pkg/models"
	"github.com/ekaya-inc/emistr-mcp/pkg/query"
	"github.com/ekaya-inc/emistr-mcp/pkg/repositories"
	"github.com/ekaya-inc/emistr-mcp/pkg/schema"
	sqlguard "github.com/ekaya-inc/emistr-mcp/pkg/sql"
)

// TracerName is the instrumentation scope of tool invocation spans.
const TracerName = "github.com/ekaya-inc/emistr-mcp/pkg/services"

// ConnProvider leases one database connection for the duration of fn.
// *datasource.DB satisfies it.
type ConnProvider interface {
	WithConn(ctx context.Context, fn func(ctx context.Context, q datasource.Querier) error) error
}

// Repositories groups the eMISTR readers used by the dispatcher.
type Repositories struct {
	Orders     repositories.OrderRepository
	Workers    repositories.WorkerRepository
	Materials  repositories.MaterialRepository
	Operations repositories.OperationRepository
	Machines   repositories.MachineRepository
	Production repositories.ProductionRepository
}

// NewRepositories builds every repository over one dialect and runner.
func NewRepositories(dialect datasource.Dialect, runner *query.Runner, introspector *schema.Introspector) Repositories {
	return Repositories{
		Orders:     repositories.NewOrderRepository(dialect, runner),
		Workers:    repositories.NewWorkerRepository(dialect, runner, introspector),
		Materials:  repositories.NewMaterialRepository(dialect, runner),
		Operations: repositories.NewOperationRepository(dialect, runner),
		Machines:   repositories.NewMachineRepository(dialect, runner, introspector),
		Production: repositories.NewProductionRepository(dialect, runner, introspector),
	}
}

// Dispatcher runs tool invocations through validation, query, anonymization
// and envelope building. Invoke never fails: every outcome is an envelope.
type Dispatcher struct {
	db         ConnProvider
	repos      Repositories
	anonymizer *anonymizer.Anonymizer
	builder    *envelope.Builder
	limits     Limits
	recorder   metrics.Recorder
	tracer     trace.Tracer
	logger     *zap.Logger
}

// DispatcherOption customizes a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) DispatcherOption {
	return func(d *Dispatcher) {
		if r != nil {
			d.recorder = r
		}
	}
}

// WithTracer sets the tracer. The global tracer provider is used otherwise.
func WithTracer(t trace.Tracer) DispatcherOption {
	return func(d *Dispatcher) {
		if t != nil {
			d.tracer = t
		}
	}
}

// WithLimits sets the page size bounds.
func WithLimits(l Limits) DispatcherOption {
	return func(d *Dispatcher) { d.limits = l.withDefaults() }
}

// WithBuilder replaces the envelope builder, e.g. to fix the clock in tests.
func WithBuilder(b *envelope.Builder) DispatcherOption {
	return func(d *Dispatcher) {
		if b != nil {
			d.builder = b
		}
	}
}

// NewDispatcher creates a dispatcher over db.
func NewDispatcher(db ConnProvider, repos Repositories, anon *anonymizer.Anonymizer, logger *zap.Logger, opts ...DispatcherOption) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if anon == nil {
		anon = anonymizer.New(true)
	}
	d := &Dispatcher{
		db:         db,
		repos:      repos,
		anonymizer: anon,
		builder:    envelope.NewBuilder(),
		limits:     DefaultLimits,
		recorder:   metrics.NopRecorder{},
		tracer:     otel.Tracer(TracerName),
		logger:     logger.Named("dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Catalog is the tool catalog under the dispatcher's limits.
func (d *Dispatcher) Catalog() []OperationSpec {
	return Catalog(d.limits)
}

// Invoke runs one tool call and returns its envelope.
func (d *Dispatcher) Invoke(ctx context.Context, name string, args map[string]any) envelope.Envelope {
	env, _ := d.Call(ctx, name, args)
	return env
}

// Call is Invoke that also returns the pipeline error behind an error
// envelope, for transports that map it to a status code. err is nil exactly
// when the envelope status is success.
func (d *Dispatcher) Call(ctx context.Context, name string, args map[string]any) (env envelope.Envelope, err error) {
	start := time.Now()
	invocationID := uuid.NewString()

	ctx, span := d.tracer.Start(ctx, "tool "+name, trace.WithAttributes(
		attribute.String("mcp.tool", name),
		attribute.String("emistr.invocation_id", invocationID),
	))
	defer span.End()

	logger := d.logger.With(zap.String("tool", name), zap.String("invocation_id", invocationID))
	if sc := span.SpanContext(); sc.IsValid() {
		logger = logger.With(zap.String("trace_id", sc.TraceID().String()))
	}
	logger.Info("Tool called", zap.String("args", logging.SummarizeArguments(args)))

	defer func() {
		if p := recover(); p != nil {
			err = apperrors.Internal(fmt.Errorf("panic in %s: %v", name, p))
			logger.Error("Tool panicked",
				zap.Any("panic", p),
				zap.String("stack", string(debug.Stack())))
			env = d.builder.Failure(err)
		}
		d.finish(ctx, span, logger, name, start, err)
	}()

	d.screen(name, args, logger)

	req, err := ParseOptions(name, args, d.limits)
	if err != nil {
		return d.builder.Failure(err), err
	}

	err = d.db.WithConn(ctx, func(ctx context.Context, q datasource.Querier) error {
		var runErr error
		env, runErr = d.run(ctx, q, req)
		return runErr
	})
	if err != nil {
		return d.builder.Failure(err), err
	}
	return env, nil
}

func (d *Dispatcher) finish(ctx context.Context, span trace.Span, logger *zap.Logger, name string, start time.Time, err error) {
	duration := time.Since(start)
	code := apperrors.Code(err)
	d.recorder.Observe(ctx, name, code, duration)
	span.SetAttributes(attribute.String("emistr.result", code))

	switch {
	case err == nil:
		span.SetStatus(codes.Ok, "")
		logger.Info("Tool completed", zap.Duration("duration", duration))
	case apperrors.IsExpected(err):
		span.SetStatus(codes.Ok, code)
		logger.Info("Tool rejected",
			zap.String("code", code),
			zap.String("message", apperrors.UserMessage(err)),
			zap.Duration("duration", duration))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, code)
		logger.Error("Tool failed",
			zap.String("code", code),
			zap.String("error", logging.SanitizeError(err)),
			zap.Duration("duration", duration))
	}
}

// screen logs arguments that look like SQL. Arguments are always bound, so
// a hit does not reject the call.
func (d *Dispatcher) screen(name string, args map[string]any, logger *zap.Logger) {
	for _, hit := range sqlguard.ScreenArguments(args) {
		d.recorder.Suspicious(name, hit.ParamName)
		logger.Warn("Suspicious tool argument",
			zap.String("param", hit.ParamName),
			zap.String("fingerprint", hit.Fingerprint))
	}
}

func (d *Dispatcher) run(ctx context.Context, q datasource.Querier, req *Request) (envelope.Envelope, error) {
	switch opts := req.Options.(type) {
	case models.OrderListOptions:
		list, err := d.repos.Orders.List(ctx, q, opts)
		if err != nil {
			return envelope.Envelope{}, err
		}
		list.Orders = d.anonymizer.Orders(list.Orders)
		return d.builder.Orders(list, req.Filters, req.Columns), nil

	case models.OrderDetailOptions:
		detail, err := d.repos.Orders.GetDetail(ctx, q, opts)
		if err != nil {
			return envelope.Envelope{}, err
		}
		return d.builder.OrderDetail(d.anonymizer.OrderDetail(detail)), nil

	case models.OrderSearchOptions:
		rows, err := d.repos.Orders.Search(ctx, q, opts)
		if err != nil {
			return envelope.Envelope{}, err
		}
		return d.builder.Search(d.anonymizer.Orders(rows), opts.SearchTerm), nil

	case models.WorkerListOptions:
		rows, err := d.repos.Workers.List(ctx, q, opts)
		if err != nil {
			return envelope.Envelope{}, err
		}
		return d.builder.Workers(d.anonymizer.Workers(rows), req.Filters), nil

	case models.WorkerDetailOptions:
		detail, err := d.repos.Workers.GetDetail(ctx, q, opts)
		if err != nil {
			return envelope.Envelope{}, err
		}
		return d.builder.WorkerDetail(d.anonymizer.WorkerDetail(detail)), nil

	case models.MaterialListOptions:
		rows, err := d.repos.Materials.List(ctx, q, opts)
		if err != nil {
			return envelope.Envelope{}, err
		}
		return d.builder.Materials(rows, req.Filters), nil

	case models.MaterialMovementOptions:
		rows, err := d.repos.Materials.ListMovements(ctx, q, opts)
		if err != nil {
			return envelope.Envelope{}, err
		}
		return d.builder.Movements(rows, req.Filters), nil

	case models.OperationListOptions:
		rows, err := d.repos.Operations.List(ctx, q, opts)
		if err != nil {
			return envelope.Envelope{}, err
		}
		return d.builder.Operations(rows, req.Filters), nil

	case models.MachineListOptions:
		rows, err := d.repos.Machines.List(ctx, q, opts)
		if err != nil {
			return envelope.Envelope{}, err
		}
		return d.builder.Machines(rows, req.Filters), nil

	case models.ProductionStatsOptions:
		stats, err := d.repos.Production.Stats(ctx, q, opts)
		if err != nil {
			return envelope.Envelope{}, err
		}
		return d.builder.ProductionStats(stats), nil
	}
	return envelope.Envelope{}, apperrors.Internal(fmt.Errorf("no handler for %s", req.Operation))
}
