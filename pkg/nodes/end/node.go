// Package end provides the terminal node that collects workflow outputs.
package end

import (
	"context"

	"github.com/dukex/nodeflow/pkg/state"
)

// EndNode stops traversal along its path and produces the workflow output.
type EndNode struct {
	id            string
	outputMapping map[string]any
}

func NewEndNode(id string, config map[string]any) *EndNode {
	mapping, _ := config["output_mapping"].(map[string]any)

	return &EndNode{id: id, outputMapping: mapping}
}

func (n *EndNode) ID() string {
	return n.id
}

// Execute returns the mapped outputs, or every node output when no mapping is
// configured. Mapping values are resolved only when they are a whole
// "{{ path }}" expression; other values are kept literally.
func (n *EndNode) Execute(_ context.Context, st *state.ExecutionState) (map[string]any, error) {
	if n.outputMapping == nil {
		return map[string]any{"outputs": st.NodeOutputs()}, nil
	}

	result := make(map[string]any, len(n.outputMapping))

	for key, expr := range n.outputMapping {
		if s, ok := expr.(string); ok {
			result[key] = st.ResolveVariable(s)

			continue
		}

		result[key] = expr
	}

	return result, nil
}
