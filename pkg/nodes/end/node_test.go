package end

import (
	"testing"

	"github.com/dukex/nodeflow/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newState() *state.ExecutionState {
	st := state.New("exec-1", "wf-1", "", map[string]any{"user": "alice"}, map[string]any{"total": 3})
	st.SetNodeOutput("fetch", map[string]any{"status_code": 200})

	return st
}

func TestEndNode_WithoutMapping(t *testing.T) {
	result, err := NewEndNode("end", nil).Execute(t.Context(), newState())
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"outputs": map[string]any{"fetch": map[string]any{"status_code": 200}},
	}, result)
}

func TestEndNode_WithMapping(t *testing.T) {
	node := NewEndNode("end", map[string]any{
		"output_mapping": map[string]any{
			"status":  "{{fetch.status_code}}",
			"user":    "{{ input.user }}",
			"total":   "{{vars.total}}",
			"literal": "done",
			"mixed":   "user {{input.user}}",
			"number":  7,
		},
	})

	result, err := node.Execute(t.Context(), newState())
	require.NoError(t, err)

	assert.Equal(t, 200, result["status"])
	assert.Equal(t, "alice", result["user"])
	assert.Equal(t, 3, result["total"])
	assert.Equal(t, "done", result["literal"])
	assert.Equal(t, "user {{input.user}}", result["mixed"])
	assert.Equal(t, 7, result["number"])
}
