// Package verification provides the verification node, which checks values
// produced earlier in the workflow against a list of rules.
package verification

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/dukex/nodeflow/pkg/nodes/values"
	"github.com/dukex/nodeflow/pkg/protocol"
	"github.com/dukex/nodeflow/pkg/state"
)

// Rule checks.
const (
	CheckRequired  = "required"
	CheckEquals    = "equals"
	CheckNotEquals = "not_equals"
	CheckContains  = "contains"
	CheckType      = "type"
	CheckMinLength = "min_length"
	CheckMaxLength = "max_length"
	CheckRegex     = "regex"
)

// Rule is one verification rule. Field is a value or a {{ path }} reference.
type Rule struct {
	Field    any    `json:"field"`
	Check    string `json:"check"`
	Expected any    `json:"expected"`
	Message  string `json:"message"`
}

// VerificationConfig defines the configuration for verification nodes.
type VerificationConfig struct {
	Rules  []Rule `json:"rules"`
	Strict *bool  `json:"strict"`
}

type VerificationNode struct {
	id     string
	rules  []Rule
	strict bool
}

func NewVerificationNode(id string, config map[string]any) (*VerificationNode, error) {
	var verificationConfig VerificationConfig
	if err := protocol.DecodeConfig(config, &verificationConfig); err != nil {
		return nil, err
	}

	strict := true
	if verificationConfig.Strict != nil {
		strict = *verificationConfig.Strict
	}

	return &VerificationNode{
		id:     id,
		rules:  verificationConfig.Rules,
		strict: strict,
	}, nil
}

func (n *VerificationNode) ID() string {
	return n.id
}

// Execute applies the rules in order. In strict mode evaluation stops at the
// first violation.
func (n *VerificationNode) Execute(_ context.Context, st *state.ExecutionState) (map[string]any, error) {
	violations := make([]any, 0)
	checked := 0

	for i, rule := range n.rules {
		value := rule.Field
		if s, ok := value.(string); ok {
			value = st.ResolveVariable(s)
		}

		checked++

		if reason, ok := apply(rule, value); !ok {
			message := rule.Message
			if message == "" {
				message = reason
			}

			violations = append(violations, map[string]any{
				"index":    i,
				"check":    rule.Check,
				"message":  message,
				"value":    value,
				"expected": rule.Expected,
			})

			if n.strict {
				break
			}
		}
	}

	return map[string]any{
		"passed":        len(violations) == 0,
		"violations":    violations,
		"rules_checked": checked,
	}, nil
}

// apply evaluates one rule and returns a failure reason when it does not hold.
func apply(rule Rule, value any) (string, bool) {
	switch rule.Check {
	case CheckRequired:
		return "value is required", !values.IsEmpty(value)
	case CheckEquals:
		return fmt.Sprintf("expected %v, got %v", rule.Expected, value), values.Equal(value, rule.Expected)
	case CheckNotEquals:
		return fmt.Sprintf("value must not equal %v", rule.Expected), !values.Equal(value, rule.Expected)
	case CheckContains:
		return fmt.Sprintf("value does not contain %v", rule.Expected), values.Contains(value, rule.Expected)
	case CheckType:
		expected := strings.ToLower(state.Stringify(rule.Expected))
		actual := values.TypeName(value)

		return fmt.Sprintf("expected type %s, got %s", expected, actual), typeMatches(actual, expected)
	case CheckMinLength, CheckMaxLength:
		return checkLength(rule, value)
	case CheckRegex:
		pattern, err := regexp.Compile(state.Stringify(rule.Expected))
		if err != nil {
			return fmt.Sprintf("invalid pattern: %v", err), false
		}

		return fmt.Sprintf("value does not match %s", pattern), value != nil && pattern.MatchString(state.Stringify(value))
	default:
		return fmt.Sprintf("unknown check %q", rule.Check), false
	}
}

func checkLength(rule Rule, value any) (string, bool) {
	limit, ok := values.ToInt(rule.Expected)
	if !ok {
		return fmt.Sprintf("%s requires a numeric expected value", rule.Check), false
	}

	length, ok := values.Length(value)
	if !ok {
		return fmt.Sprintf("value of type %s has no length", values.TypeName(value)), false
	}

	if rule.Check == CheckMinLength {
		return fmt.Sprintf("length %d is below %d", length, limit), length >= limit
	}

	return fmt.Sprintf("length %d exceeds %d", length, limit), length <= limit
}

func typeMatches(actual, expected string) bool {
	switch expected {
	case "number", "float":
		return actual == "number" || actual == "integer"
	case "int":
		return actual == "integer"
	case "str":
		return actual == "string"
	case "bool":
		return actual == "boolean"
	case "list":
		return actual == "array"
	case "dict", "map":
		return actual == "object"
	case "none":
		return actual == "null"
	default:
		return actual == expected
	}
}
