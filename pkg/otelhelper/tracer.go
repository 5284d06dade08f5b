// Package otelhelper provides distributed tracing for workflow executions.
package otelhelper

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otlptracehttp "go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Span attribute keys shared by the executor and node handlers.
const (
	WorkflowIDKey  = "nodeflow.workflow.id"
	ExecutionIDKey = "nodeflow.execution.id"
	NodeIDKey      = "nodeflow.node.id"
	NodeTypeKey    = "nodeflow.node.type"
	NodeStatusKey  = "nodeflow.node.status"
	WorkerIDKey    = "nodeflow.worker.id"
)

// ShutdownFunc flushes buffered spans and stops the exporter.
type ShutdownFunc func(ctx context.Context) error

// NewTracer installs a global OTLP/HTTP tracer provider for serviceName and
// returns its tracer. Extra resource attributes, such as the worker id, are
// attached to every span. Callers must invoke the returned ShutdownFunc
// before exiting or batched spans are lost.
// nolint:ireturn // Returning interface is intentional for OpenTelemetry tracing
func NewTracer(ctx context.Context, serviceName string, attrs ...attribute.KeyValue) (trace.Tracer, ShutdownFunc, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(semconv.SchemaURL, append(attrs, semconv.ServiceName(serviceName))...),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build trace resource: %w", err)
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create otlp exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return provider.Tracer(serviceName), provider.Shutdown, nil
}

// NoopTracer returns a tracer that records nothing.
// nolint:ireturn // Returning interface is intentional for OpenTelemetry tracing
func NoopTracer() trace.Tracer {
	return noop.NewTracerProvider().Tracer("nodeflow")
}

// nolint:ireturn,spancheck // Returning interface is intentional for OpenTelemetry tracing
func StartSpan(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// EndNodeSpan records the final node status on span and ends it.
func EndNodeSpan(span trace.Span, status string) {
	span.SetAttributes(attribute.String(NodeStatusKey, status))
	span.End()
}
