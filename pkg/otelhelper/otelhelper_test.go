package otelhelper_test

import (
	"errors"
	"testing"

	"github.com/dukex/nodeflow/pkg/otelhelper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpanAndSetError(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter)).Tracer("test")

	_, span := otelhelper.StartSpan(t.Context(), tracer, "node.execute", attribute.String(otelhelper.NodeIDKey, "fetch"))
	otelhelper.SetError(span, errors.New("boom"), attribute.String(otelhelper.NodeTypeKey, "http"))
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "node.execute", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "boom", spans[0].Status.Description)
	assert.Contains(t, spans[0].Attributes, attribute.String(otelhelper.NodeIDKey, "fetch"))

	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "exception", spans[0].Events[0].Name)
	assert.Contains(t, spans[0].Events[0].Attributes, attribute.String(otelhelper.NodeTypeKey, "http"))
	assert.Contains(t, spans[0].Events[0].Attributes, attribute.String(otelhelper.ErrorTypeKey, "*errors.errorString"))
}

func TestSetErrorIgnoresNil(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter)).Tracer("test")

	_, span := tracer.Start(t.Context(), "ok")
	otelhelper.SetError(span, nil)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Unset, spans[0].Status.Code)
	assert.Empty(t, spans[0].Events)
}

func TestNoopTracer(t *testing.T) {
	_, span := otelhelper.NoopTracer().Start(t.Context(), "noop")
	assert.False(t, span.IsRecording())
	span.End()
}

func TestEndNodeSpanRecordsStatus(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tracer := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter)).Tracer("test")

	_, span := otelhelper.StartSpan(t.Context(), tracer, "node.execute")
	otelhelper.EndNodeSpan(span, "completed")

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Contains(t, spans[0].Attributes, attribute.String(otelhelper.NodeStatusKey, "completed"))
}
