// Package protocol defines the interfaces and contracts for pluggable nodes.
package protocol

import (
	"context"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/state"
)

// Node is a configured node instance ready to run against an execution state.
type Node interface {
	// ID returns the workflow node id this instance was created for
	ID() string

	// Execute runs the node and returns its result map. A returned error means
	// the handler raised; integration failures are reported inside the map.
	Execute(ctx context.Context, st *state.ExecutionState) (map[string]any, error)
}

// NodeFactory creates node instances and provides metadata about the node type.
type NodeFactory interface {
	// Create creates a new node instance with the given resolved configuration
	Create(ctx context.Context, id string, config map[string]any) (Node, error)

	// ID returns the unique identifier for this node factory
	ID() string

	// Types returns the node types served by this factory
	Types() []models.NodeType

	// Name returns the human-readable name for this node type
	Name() string

	// Description returns a description of what this node does
	Description() string

	// Schema returns the JSON schema for configuring this node
	Schema() map[string]any
}
