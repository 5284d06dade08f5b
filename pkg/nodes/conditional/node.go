// Package conditional provides conditional branching node implementation for workflow graph execution.
package conditional

import (
	"context"
	"fmt"

	"github.com/dukex/nodeflow/pkg/expr"
	"github.com/dukex/nodeflow/pkg/nodes/values"
	"github.com/dukex/nodeflow/pkg/state"
)

// Structured comparison operators.
const (
	OperatorEq          = "eq"
	OperatorNe          = "ne"
	OperatorGt          = "gt"
	OperatorGte         = "gte"
	OperatorLt          = "lt"
	OperatorLte         = "lte"
	OperatorContains    = "contains"
	OperatorNotContains = "not_contains"
	OperatorIsEmpty     = "is_empty"
	OperatorIsNotEmpty  = "is_not_empty"
)

// ConditionalNode evaluates a condition. The executor follows true edges when
// the result holds and false edges otherwise.
type ConditionalNode struct {
	id         string
	operator   string
	leftValue  any
	rightValue any
	condition  any
}

func NewConditionalNode(id string, config map[string]any) *ConditionalNode {
	operator, _ := config["operator"].(string)

	return &ConditionalNode{
		id:         id,
		operator:   operator,
		leftValue:  config["left_value"],
		rightValue: config["right_value"],
		condition:  config["condition"],
	}
}

func (n *ConditionalNode) ID() string {
	return n.id
}

// Execute evaluates the structured operator when present, otherwise the
// bounded expression in condition. Evaluation failures yield a false
// condition with an evaluation_error entry.
func (n *ConditionalNode) Execute(_ context.Context, st *state.ExecutionState) (map[string]any, error) {
	if n.operator != "" {
		return n.evaluateStructured(st), nil
	}

	return n.evaluateExpression(st), nil
}

func (n *ConditionalNode) evaluateStructured(st *state.ExecutionState) map[string]any {
	left := interpolate(st, n.leftValue)
	right := interpolate(st, n.rightValue)

	result := map[string]any{
		"operator":    n.operator,
		"left_value":  left,
		"right_value": right,
	}

	condition, err := compare(n.operator, left, right)
	if err != nil {
		result["evaluation_error"] = err.Error()
	}

	result["condition"] = condition

	return result
}

func compare(operator string, left, right any) (bool, error) {
	switch operator {
	case OperatorEq:
		return values.Equal(left, right), nil
	case OperatorNe:
		return !values.Equal(left, right), nil
	case OperatorGt, OperatorGte, OperatorLt, OperatorLte:
		l, lok := values.ToFloat(left)
		r, rok := values.ToFloat(right)

		if !lok || !rok {
			return false, fmt.Errorf("operator %s requires numeric operands", operator)
		}

		switch operator {
		case OperatorGt:
			return l > r, nil
		case OperatorGte:
			return l >= r, nil
		case OperatorLt:
			return l < r, nil
		default:
			return l <= r, nil
		}
	case OperatorContains:
		return values.Contains(left, right), nil
	case OperatorNotContains:
		return !values.Contains(left, right), nil
	case OperatorIsEmpty:
		return values.IsEmpty(left), nil
	case OperatorIsNotEmpty:
		return !values.IsEmpty(left), nil
	default:
		return false, fmt.Errorf("unknown operator %q", operator)
	}
}

func (n *ConditionalNode) evaluateExpression(st *state.ExecutionState) map[string]any {
	switch condition := n.condition.(type) {
	case nil:
		return map[string]any{"condition": false, "evaluation_error": "no condition configured"}
	case bool:
		return map[string]any{"condition": condition, "expression": condition}
	case string:
		rendered := st.InterpolateString(condition)

		held, err := expr.EvaluateBool(rendered)
		if err != nil {
			return map[string]any{"condition": false, "expression": rendered, "evaluation_error": err.Error()}
		}

		return map[string]any{"condition": held, "expression": rendered}
	default:
		return map[string]any{"condition": expr.Truthy(condition), "expression": condition}
	}
}

func interpolate(st *state.ExecutionState, value any) any {
	if s, ok := value.(string); ok {
		return st.InterpolateString(s)
	}

	return value
}
