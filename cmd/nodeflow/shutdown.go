package main

import (
	"context"
	"log/slog"

	"github.com/dukex/nodeflow/pkg/eventbus"
	"github.com/dukex/nodeflow/pkg/persistence"
)

func closePersistence(ctx context.Context, p persistence.Persistence) {
	if err := p.Close(ctx); err != nil {
		slog.ErrorContext(ctx, "Failed to close persistence", "error", err)
	}
}

func closeEventBus(ctx context.Context, bus eventbus.EventBus) {
	if err := bus.Close(); err != nil {
		slog.ErrorContext(ctx, "Failed to close event bus", "error", err)
	}
}
