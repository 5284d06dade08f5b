package code

import (
	"io"
	"log/slog"
	"testing"

	"github.com/dukex/nodeflow/pkg/sandbox"
	"github.com/dukex/nodeflow/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRunner() *sandbox.Runner {
	return sandbox.NewRunner(slog.New(slog.NewTextHandler(io.Discard, nil)), sandbox.Options{})
}

func TestCodeNode_Execute(t *testing.T) {
	st := state.New("exec-1", "wf-1", "", map[string]any{"n": 21}, map[string]any{"factor": 2})
	st.SetNodeOutput("fetch", map[string]any{"data": []any{1, 2, 3}})

	node := NewCodeNode("code", map[string]any{
		"code": "result = {'doubled': input_data['n'] * variables['factor'], 'total': sum(inputs['fetch']['data'])}",
	}, newRunner())

	result, err := node.Execute(t.Context(), st)
	require.NoError(t, err)

	assert.Equal(t, true, result["success"])
	assert.Equal(t, map[string]any{"doubled": int64(42), "total": int64(6)}, result["result"])
}

func TestCodeNode_SecurityViolation(t *testing.T) {
	st := state.New("exec-1", "wf-1", "", nil, nil)

	node := NewCodeNode("code", map[string]any{"source": "import os\nresult = 1"}, newRunner())

	result, err := node.Execute(t.Context(), st)
	require.NoError(t, err)

	assert.Equal(t, false, result["success"])
	assert.Equal(t, sandbox.ErrorTypeSecurity, result["error_type"])
	assert.Contains(t, result["error"], "Security violation")
}

func TestCodeNode_UnsupportedLanguage(t *testing.T) {
	node := NewCodeNode("code", map[string]any{"code": "result = 1", "language": "ruby"}, newRunner())

	result, err := node.Execute(t.Context(), state.New("exec-1", "wf-1", "", nil, nil))
	require.NoError(t, err)

	assert.Equal(t, false, result["success"])
	assert.Equal(t, sandbox.ErrorTypeLanguage, result["error_type"])
}

func TestCodeNodeFactory_RequiresRunner(t *testing.T) {
	_, err := NewCodeNodeFactory(nil).Create(t.Context(), "code", map[string]any{})
	require.Error(t, err)

	node, err := NewCodeNodeFactory(newRunner()).Create(t.Context(), "code", map[string]any{"code": "result = 1"})
	require.NoError(t, err)
	assert.Equal(t, "code", node.ID())
}
