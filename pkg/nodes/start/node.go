// Package start provides the entry node for workflow graph execution.
package start

import (
	"context"
	"maps"

	"github.com/dukex/nodeflow/pkg/state"
)

// StartNode marks the entry of a workflow and exposes the trigger input.
type StartNode struct {
	id string
}

func NewStartNode(id string) *StartNode {
	return &StartNode{id: id}
}

func (n *StartNode) ID() string {
	return n.id
}

// Execute returns a started marker merged with the trigger input. Input keys
// win, so an input named "started" is passed through unchanged.
func (n *StartNode) Execute(_ context.Context, st *state.ExecutionState) (map[string]any, error) {
	result := map[string]any{"started": true}
	maps.Copy(result, st.InputData())

	return result, nil
}
