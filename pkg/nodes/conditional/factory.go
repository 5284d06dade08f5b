// Package conditional provides conditional branching node factory for registry integration.
package conditional

import (
	"context"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/protocol"
)

// ConditionalNodeFactory creates ConditionalNode instances.
type ConditionalNodeFactory struct{}

// Create creates a new ConditionalNode instance.
func (f *ConditionalNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	return NewConditionalNode(id, config), nil
}

// ID returns the factory ID.
func (f *ConditionalNodeFactory) ID() string {
	return "conditional"
}

// Types returns the node types served by the factory.
func (f *ConditionalNodeFactory) Types() []models.NodeType {
	return []models.NodeType{models.NodeTypeConditional, models.NodeTypeLogic}
}

// Name returns the factory name.
func (f *ConditionalNodeFactory) Name() string {
	return "Conditional"
}

// Description returns the factory description.
func (f *ConditionalNodeFactory) Description() string {
	return "Evaluates a condition and routes execution to true or false paths. Essential for workflow branching logic."
}

// Schema returns the JSON schema for Conditional node configuration.
func (f *ConditionalNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"operator": map[string]any{
				"type":        "string",
				"description": "Structured comparison between left_value and right_value",
				"enum": []string{
					OperatorEq, OperatorNe, OperatorGt, OperatorGte, OperatorLt, OperatorLte,
					OperatorContains, OperatorNotContains, OperatorIsEmpty, OperatorIsNotEmpty,
				},
			},
			"left_value": map[string]any{
				"description": "Left operand. Strings support {{ path }} interpolation",
			},
			"right_value": map[string]any{
				"description": "Right operand. Strings support {{ path }} interpolation",
			},
			"condition": map[string]any{
				"type":        []string{"string", "boolean"},
				"description": "Bounded expression used when no operator is set. Supports literals, comparisons, and/or/not and + - * /",
				"examples": []string{
					`{{input.n}} > 10`,
					`'{{fetch.status}}' == 'active' and {{vars.retries}} < 3`,
					`true`,
				},
			},
		},
		"examples": []map[string]any{
			{"operator": "gt", "left_value": "{{input.n}}", "right_value": "10"},
			{"condition": "{{score.value}} >= 75"},
		},
	}
}

// NewConditionalNodeFactory creates a new factory instance.
func NewConditionalNodeFactory() protocol.NodeFactory {
	return &ConditionalNodeFactory{}
}
