// Package loop provides the loop node, which expands a collection into the
// items the executor iterates over.
package loop

import (
	"context"

	"github.com/dukex/nodeflow/pkg/nodes/values"
	"github.com/dukex/nodeflow/pkg/state"
)

const (
	DefaultMaxIterations = 100
	// HardMaxIterations caps max_iterations whatever the configuration says.
	HardMaxIterations   = 1000
	DefaultItemVariable = "item"
)

type LoopNode struct {
	id            string
	collection    any
	maxIterations int
	itemVariable  string
	parallel      bool
}

func NewLoopNode(id string, config map[string]any) *LoopNode {
	maxIterations := DefaultMaxIterations
	if n, ok := values.ToInt(config["max_iterations"]); ok && n > 0 {
		maxIterations = n
	}

	maxIterations = min(maxIterations, HardMaxIterations)

	itemVariable, _ := config["item_variable"].(string)
	if itemVariable == "" {
		itemVariable = DefaultItemVariable
	}

	parallel, _ := config["parallel"].(bool)

	return &LoopNode{
		id:            id,
		collection:    config["collection"],
		maxIterations: maxIterations,
		itemVariable:  itemVariable,
		parallel:      parallel,
	}
}

func (n *LoopNode) ID() string {
	return n.id
}

// Execute normalises the collection into a list. A missing collection is
// empty and a scalar or object becomes a single item.
func (n *LoopNode) Execute(_ context.Context, st *state.ExecutionState) (map[string]any, error) {
	collection := n.collection
	if s, ok := collection.(string); ok {
		collection = st.ResolveVariable(s)
	}

	var items []any

	if collection != nil {
		if list, ok := values.ToSlice(collection); ok {
			items = list
		} else {
			items = []any{collection}
		}
	}

	truncated := len(items) > n.maxIterations
	if truncated {
		items = items[:n.maxIterations]
	}

	if items == nil {
		items = []any{}
	}

	return map[string]any{
		"items":         items,
		"total_count":   len(items),
		"truncated":     truncated,
		"parallel":      n.parallel,
		"item_variable": n.itemVariable,
	}, nil
}
