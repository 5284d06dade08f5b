package tool

import (
	"context"
	"errors"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/protocol"
)

var errNoCatalog = errors.New("tool node requires a tool registry")

type ToolNodeFactory struct {
	catalog Catalog
}

func NewToolNodeFactory(catalog Catalog) protocol.NodeFactory {
	return &ToolNodeFactory{catalog: catalog}
}

func (f *ToolNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	if f.catalog == nil {
		return nil, errNoCatalog
	}

	return NewToolNode(id, config, f.catalog), nil
}

func (f *ToolNodeFactory) ID() string {
	return "tool"
}

func (f *ToolNodeFactory) Types() []models.NodeType {
	return []models.NodeType{models.NodeTypeTool}
}

func (f *ToolNodeFactory) Name() string {
	return "Tool"
}

func (f *ToolNodeFactory) Description() string {
	return "Invokes a registered tool with parameters validated against its input schema"
}

func (f *ToolNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tool_name": map[string]any{
				"type": "string",
			},
			"parameters": map[string]any{
				"type":        "object",
				"description": "Tool parameters. Whole-value {{ path }} references are resolved",
			},
		},
		"required": []string{"tool_name"},
	}
}
