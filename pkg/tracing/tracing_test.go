package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewProvider_LogExporterWritesSpans(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	tp, err := NewProvider(ExporterLog, 1, "1.2.3", zap.New(core))
	require.NoError(t, err)
	defer tp.Shutdown(context.Background())

	_, span := tp.Tracer("test").Start(context.Background(), "tool get_machines")
	span.SetAttributes(attribute.String("mcp.tool", "get_machines"))
	span.SetStatus(codes.Error, "database_error")
	span.End()

	entries := logs.FilterMessage("Span finished").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "tool get_machines", fields["span"])
	assert.Equal(t, "Error", fields["status"])
	assert.Equal(t, "database_error", fields["status_description"])
	assert.Equal(t, "get_machines", fields["mcp.tool"])
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
}

func TestNewProvider_NoneStillAssignsTraceIDs(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	tp, err := NewProvider(ExporterNone, 1, "1.2.3", zap.New(core))
	require.NoError(t, err)
	defer tp.Shutdown(context.Background())

	_, span := tp.Tracer("test").Start(context.Background(), "tool get_orders")
	span.End()

	assert.True(t, span.SpanContext().IsValid())
	assert.True(t, span.SpanContext().IsSampled())
	assert.Zero(t, logs.Len(), "nothing is exported without an exporter")
}

func TestNewProvider_ZeroRatioSamplesNothing(t *testing.T) {
	tp, err := NewProvider(ExporterLog, 0, "1.2.3", nil)
	require.NoError(t, err)
	defer tp.Shutdown(context.Background())

	_, span := tp.Tracer("test").Start(context.Background(), "tool get_orders")
	defer span.End()

	assert.False(t, span.SpanContext().IsSampled())
	assert.False(t, span.IsRecording())
}

func TestNewProvider_UnknownExporter(t *testing.T) {
	_, err := NewProvider("jaeger", 1, "1.2.3", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jaeger")
}
