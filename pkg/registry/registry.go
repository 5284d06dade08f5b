// Package registry maps node types to node factories and dispatches node
// executions to them.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/protocol"
	"github.com/dukex/nodeflow/pkg/state"
)

// DurationKey is the result entry holding the handler wall-clock duration.
const DurationKey = "_duration_ms"

type Registry struct {
	logger    *slog.Logger
	mu        sync.RWMutex
	factories map[models.NodeType]protocol.NodeFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:    log.With("module", "registry"),
		factories: make(map[models.NodeType]protocol.NodeFactory),
	}
}

// RegisterNode registers factory for every node type it serves. A later
// registration for the same type replaces the earlier one.
func (r *Registry) RegisterNode(factory protocol.NodeFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, nodeType := range factory.Types() {
		r.factories[nodeType] = factory
	}
}

func (r *Registry) Factory(nodeType models.NodeType) (protocol.NodeFactory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[nodeType]

	return factory, ok
}

// Types returns the registered node types in sorted order.
func (r *Registry) Types() []models.NodeType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return slices.Sorted(maps.Keys(r.factories))
}

// Schema returns the configuration schema of a node type.
func (r *Registry) Schema(nodeType models.NodeType) (map[string]any, bool) {
	factory, ok := r.Factory(nodeType)
	if !ok {
		return nil, false
	}

	return factory.Schema(), true
}

// Dispatch creates the node for nodeType and executes it. Unknown types are
// skipped without error. The result always carries DurationKey.
func (r *Registry) Dispatch(ctx context.Context, nodeType models.NodeType, nodeID string, config map[string]any, st *state.ExecutionState) (map[string]any, error) {
	start := time.Now()

	factory, ok := r.Factory(nodeType)
	if !ok {
		r.logger.WarnContext(ctx, "no handler for node type", "node_id", nodeID, "node_type", nodeType)

		return map[string]any{
			"skipped":   true,
			"reason":    fmt.Sprintf("unknown node type %q", nodeType),
			DurationKey: time.Since(start).Milliseconds(),
		}, nil
	}

	node, err := factory.Create(ctx, nodeID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s node %s: %w", nodeType, nodeID, err)
	}

	result, err := node.Execute(ctx, st)
	if err != nil {
		return nil, err
	}

	if result == nil {
		result = make(map[string]any)
	}

	if _, ok := result[DurationKey]; !ok {
		result[DurationKey] = time.Since(start).Milliseconds()
	}

	return result, nil
}
