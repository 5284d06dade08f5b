// Package tool provides the tool node, which invokes a registered tool.
package tool

import (
	"context"
	"fmt"

	"github.com/dukex/nodeflow/pkg/state"
	"github.com/dukex/nodeflow/pkg/tools"
)

// Catalog looks up tools and records their usage. *tools.Registry satisfies it.
type Catalog interface {
	Get(name string) (*tools.Tool, bool)
	RecordUsage(name string)
}

type ToolNode struct {
	id         string
	toolName   string
	parameters map[string]any
	catalog    Catalog
}

func NewToolNode(id string, config map[string]any, catalog Catalog) *ToolNode {
	toolName, _ := config["tool_name"].(string)

	parameters, _ := config["parameters"].(map[string]any)
	if parameters == nil {
		parameters = map[string]any{}
	}

	return &ToolNode{
		id:         id,
		toolName:   toolName,
		parameters: parameters,
		catalog:    catalog,
	}
}

func (n *ToolNode) ID() string {
	return n.id
}

// Execute invokes the tool. Unknown tools, unbound handlers, invalid
// parameters and handler errors are all reported with success=false.
func (n *ToolNode) Execute(ctx context.Context, _ *state.ExecutionState) (map[string]any, error) {
	definition, ok := n.catalog.Get(n.toolName)
	if !ok {
		return map[string]any{
			"error":   fmt.Sprintf("%s: %q", tools.ErrToolNotFound, n.toolName),
			"tool":    n.toolName,
			"success": false,
		}, nil
	}

	if definition.Handler == nil {
		return map[string]any{
			"tool":              definition.Name,
			"description":       definition.Description,
			"parameters_schema": definition.InputSchema,
			"categories":        definition.Categories,
			"handler_missing":   true,
			"success":           false,
		}, nil
	}

	if err := definition.ValidateParameters(n.parameters); err != nil {
		return map[string]any{
			"error":   err.Error(),
			"tool":    definition.Name,
			"success": false,
		}, nil
	}

	n.catalog.RecordUsage(definition.Name)

	result, err := definition.Handler(ctx, n.parameters)
	if err != nil {
		return map[string]any{
			"error":   err.Error(),
			"tool":    definition.Name,
			"success": false,
		}, nil
	}

	return map[string]any{
		"result":  result,
		"tool":    definition.Name,
		"success": true,
	}, nil
}
