// Package tracing builds the OpenTelemetry tracer provider that records one
// span per tool invocation.
package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// ServiceName is the service.name resource attribute.
const ServiceName = "emistr-mcp"

// Exporter names accepted by NewProvider.
const (
	ExporterNone = "none"
	ExporterLog  = "log"
)

// NewProvider creates the tracer provider. Spans are sampled by trace id
// ratio and always get real ids; exporter decides whether finished spans
// leave the process. The caller must Shutdown the provider.
func NewProvider(exporter string, sampleRatio float64, version string, logger *zap.Logger) (*sdktrace.TracerProvider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	res := resource.NewSchemaless(
		attribute.String("service.name", ServiceName),
		attribute.String("service.version", version),
	)
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(sampleRatio))),
	}

	switch exporter {
	case "", ExporterNone:
	case ExporterLog:
		opts = append(opts, sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(NewLogExporter(logger))))
	default:
		return nil, fmt.Errorf("unknown tracing exporter %q", exporter)
	}

	return sdktrace.NewTracerProvider(opts...), nil
}

// LogExporter writes finished spans to a zap logger at debug level.
type LogExporter struct {
	logger *zap.Logger
}

var _ sdktrace.SpanExporter = (*LogExporter)(nil)

func NewLogExporter(logger *zap.Logger) *LogExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogExporter{logger: logger.Named("trace")}
}

// ExportSpans logs each span. It never fails, so a logging problem cannot
// stall the span pipeline.
func (e *LogExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		sc := span.SpanContext()
		fields := make([]zap.Field, 0, 6+len(span.Attributes()))
		fields = append(fields,
			zap.String("span", span.Name()),
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
			zap.Duration("duration", span.EndTime().Sub(span.StartTime())),
			zap.String("status", span.Status().Code.String()),
		)
		if desc := span.Status().Description; desc != "" {
			fields = append(fields, zap.String("status_description", desc))
		}
		for _, kv := range span.Attributes() {
			fields = append(fields, zap.String(string(kv.Key), kv.Value.Emit()))
		}
		e.logger.Debug("Span finished", fields...)
	}
	return nil
}

func (e *LogExporter) Shutdown(context.Context) error {
	return nil
}
