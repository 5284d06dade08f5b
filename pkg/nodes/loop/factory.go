package loop

import (
	"context"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/protocol"
)

// LoopNodeFactory creates LoopNode instances.
type LoopNodeFactory struct{}

func (f *LoopNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewLoopNode(id, config), nil
}

func (f *LoopNodeFactory) ID() string {
	return "loop"
}

func (f *LoopNodeFactory) Types() []models.NodeType {
	return []models.NodeType{models.NodeTypeLoop}
}

func (f *LoopNodeFactory) Name() string {
	return "Loop"
}

func (f *LoopNodeFactory) Description() string {
	return "Iterates over a collection, running the nodes connected through item edges once per element."
}

func (f *LoopNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"collection": map[string]any{
				"description": "List to iterate, usually a template such as {{fetch.data.items}}",
			},
			"item_variable": map[string]any{
				"type":        "string",
				"description": "Variable holding the current element",
				"default":     DefaultItemVariable,
			},
			"max_iterations": map[string]any{
				"type":        "integer",
				"description": "Upper bound on iterations, capped at 1000",
				"default":     DefaultMaxIterations,
				"minimum":     1,
			},
			"parallel": map[string]any{
				"type":        "boolean",
				"description": "Requests parallel iterations. Iterations currently run sequentially",
				"default":     false,
			},
		},
	}
}

func NewLoopNodeFactory() protocol.NodeFactory {
	return &LoopNodeFactory{}
}
