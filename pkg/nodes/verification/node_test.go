package verification

import (
	"testing"

	"github.com/dukex/nodeflow/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newState() *state.ExecutionState {
	st := state.New("exec-1", "wf-1", "", map[string]any{"email": "alice@example.test", "age": 30}, nil)
	st.SetNodeOutput("fetch", map[string]any{"tags": []any{"a", "b"}, "name": "Alice", "empty": ""})

	return st
}

func TestVerificationNode_Checks(t *testing.T) {
	tests := []struct {
		name   string
		rule   map[string]any
		passed bool
	}{
		{"required present", map[string]any{"field": "{{fetch.name}}", "check": "required"}, true},
		{"required empty", map[string]any{"field": "{{fetch.empty}}", "check": "required"}, false},
		{"required missing", map[string]any{"field": "{{fetch.nope}}", "check": "required"}, false},
		{"equals", map[string]any{"field": "{{input.age}}", "check": "equals", "expected": 30}, true},
		{"equals mismatch", map[string]any{"field": "{{fetch.name}}", "check": "equals", "expected": "Bob"}, false},
		{"not_equals", map[string]any{"field": "{{fetch.name}}", "check": "not_equals", "expected": "Bob"}, true},
		{"contains list", map[string]any{"field": "{{fetch.tags}}", "check": "contains", "expected": "b"}, true},
		{"contains string", map[string]any{"field": "{{input.email}}", "check": "contains", "expected": "@"}, true},
		{"type array", map[string]any{"field": "{{fetch.tags}}", "check": "type", "expected": "array"}, true},
		{"type number accepts integer", map[string]any{"field": "{{input.age}}", "check": "type", "expected": "number"}, true},
		{"type mismatch", map[string]any{"field": "{{fetch.name}}", "check": "type", "expected": "integer"}, false},
		{"min_length", map[string]any{"field": "{{fetch.tags}}", "check": "min_length", "expected": 2}, true},
		{"max_length", map[string]any{"field": "{{fetch.name}}", "check": "max_length", "expected": 3}, false},
		{"length of number", map[string]any{"field": "{{input.age}}", "check": "min_length", "expected": 1}, false},
		{"regex", map[string]any{"field": "{{input.email}}", "check": "regex", "expected": `^[^@]+@[^@]+$`}, true},
		{"regex invalid pattern", map[string]any{"field": "{{input.email}}", "check": "regex", "expected": `(`}, false},
		{"literal field", map[string]any{"field": "constant", "check": "equals", "expected": "constant"}, true},
		{"unknown check", map[string]any{"field": "x", "check": "is_prime"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			node, err := NewVerificationNode("verify", map[string]any{"rules": []any{tt.rule}})
			require.NoError(t, err)

			result, err := node.Execute(t.Context(), newState())
			require.NoError(t, err)

			assert.Equal(t, tt.passed, result["passed"])
			assert.Equal(t, 1, result["rules_checked"])
		})
	}
}

func TestVerificationNode_StrictStopsAtFirstViolation(t *testing.T) {
	rules := []any{
		map[string]any{"field": "{{fetch.empty}}", "check": "required", "message": "empty must be set"},
		map[string]any{"field": "{{fetch.name}}", "check": "equals", "expected": "Bob"},
		map[string]any{"field": "{{fetch.name}}", "check": "required"},
	}

	node, err := NewVerificationNode("verify", map[string]any{"rules": rules})
	require.NoError(t, err)

	result, err := node.Execute(t.Context(), newState())
	require.NoError(t, err)

	assert.Equal(t, false, result["passed"])
	assert.Equal(t, 1, result["rules_checked"])

	violations, _ := result["violations"].([]any)
	require.Len(t, violations, 1)

	violation, _ := violations[0].(map[string]any)
	assert.Equal(t, "empty must be set", violation["message"])
	assert.Equal(t, 0, violation["index"])
}

func TestVerificationNode_NonStrictCollectsAll(t *testing.T) {
	rules := []any{
		map[string]any{"field": "{{fetch.empty}}", "check": "required"},
		map[string]any{"field": "{{fetch.name}}", "check": "equals", "expected": "Bob"},
		map[string]any{"field": "{{fetch.name}}", "check": "required"},
	}

	node, err := NewVerificationNode("verify", map[string]any{"rules": rules, "strict": false})
	require.NoError(t, err)

	result, err := node.Execute(t.Context(), newState())
	require.NoError(t, err)

	assert.Equal(t, false, result["passed"])
	assert.Equal(t, 3, result["rules_checked"])
	assert.Len(t, result["violations"], 2)
}

func TestVerificationNode_NoRules(t *testing.T) {
	node, err := NewVerificationNode("verify", map[string]any{})
	require.NoError(t, err)

	result, err := node.Execute(t.Context(), newState())
	require.NoError(t, err)

	assert.Equal(t, true, result["passed"])
	assert.Equal(t, 0, result["rules_checked"])
	assert.Equal(t, []any{}, result["violations"])
}
