package end

import (
	"context"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/protocol"
)

// EndNodeFactory creates EndNode instances for end and output nodes.
type EndNodeFactory struct{}

func NewEndNodeFactory() protocol.NodeFactory {
	return &EndNodeFactory{}
}

func (f *EndNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewEndNode(id, config), nil
}

func (f *EndNodeFactory) ID() string {
	return "end"
}

func (f *EndNodeFactory) Types() []models.NodeType {
	return []models.NodeType{models.NodeTypeEnd, models.NodeTypeOutput}
}

func (f *EndNodeFactory) Name() string {
	return "End"
}

func (f *EndNodeFactory) Description() string {
	return "Terminates a workflow path and selects the values exposed as the execution output."
}

func (f *EndNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"output_mapping": map[string]any{
				"type":        "object",
				"description": "Output key to expression. Whole {{ path }} expressions are resolved, other values are copied literally",
				"examples": []map[string]any{
					{"status": "{{fetch.status_code}}", "user": "{{input.user}}"},
				},
			},
		},
	}
}
