package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukex/nodeflow/pkg/metrics"
	"github.com/dukex/nodeflow/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// NewTracer returns an OTLP tracer for serviceName when enabled and a no-op
// tracer otherwise. The exporter reads the standard OTEL_EXPORTER_OTLP_*
// environment variables. The returned func flushes pending spans.
// nolint:ireturn // Returning interface is intentional for OpenTelemetry tracing
func NewTracer(ctx context.Context, enabled bool, serviceName, workerID string) (trace.Tracer, otelhelper.ShutdownFunc, error) {
	if !enabled {
		return otelhelper.NoopTracer(), func(context.Context) error { return nil }, nil
	}

	var attrs []attribute.KeyValue
	if workerID != "" {
		attrs = append(attrs, attribute.String(otelhelper.WorkerIDKey, workerID))
	}

	return otelhelper.NewTracer(ctx, serviceName, attrs...)
}

// ServeMetrics exposes /metrics on addr until ctx is done. An empty addr
// disables the listener.
func ServeMetrics(ctx context.Context, addr string, logger *slog.Logger) {
	if addr == "" {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()

		_ = server.Shutdown(shutdownCtx)
	}()

	go func() {
		logger.InfoContext(ctx, "Serving metrics", "addr", addr)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorContext(ctx, "Metrics listener failed", "error", err)
		}
	}()
}
