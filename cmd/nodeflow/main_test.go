package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runApp(t *testing.T, args ...string) (map[string]any, error) {
	t.Helper()

	var out bytes.Buffer

	app := newApp()
	app.Writer = &out

	err := app.Run(t.Context(), append([]string{"nodeflow", "--log-level", "error"}, args...))

	result := map[string]any{}
	if out.Len() > 0 {
		require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	}

	return result, err
}

func TestCompileCommand(t *testing.T) {
	result, err := runApp(t, "compile", "--file", filepath.Join("testdata", "double.yaml"))
	require.NoError(t, err)

	assert.Equal(t, true, result["valid"])
	assert.Equal(t, "start", result["entry"])
	assert.Equal(t, []any{"start", "double", "end"}, result["execution_order"])
}

func TestCompileCommand_Cycle(t *testing.T) {
	result, err := runApp(t, "compile", "--file", filepath.Join("testdata", "cycle.json"))
	require.Error(t, err)

	assert.Equal(t, false, result["valid"])
	diagnostics, ok := result["diagnostics"].([]any)
	require.True(t, ok)
	require.NotEmpty(t, diagnostics)
	assert.Contains(t, diagnostics[0], "workflow contains a cycle through nodes")
}

func TestExecuteCommand(t *testing.T) {
	result, err := runApp(t, "execute", "--file", filepath.Join("testdata", "double.yaml"), "--input", `{"n": 21}`)
	require.NoError(t, err)

	execution, ok := result["execution"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "completed", execution["status"])
	assert.Equal(t, map[string]any{"doubled": 42.0}, execution["output_data"])

	logs, ok := result["logs"].([]any)
	require.True(t, ok)
	assert.Len(t, logs, 3)
}

func TestStoredExecutionLifecycle(t *testing.T) {
	databaseURL := "file://" + t.TempDir()

	workflow, err := runApp(t, "create", "--file", filepath.Join("testdata", "double.yaml"), "--database-url", databaseURL)
	require.NoError(t, err)

	workflowID, ok := workflow["id"].(string)
	require.True(t, ok)

	requested, err := runApp(t, "request", "--database-url", databaseURL, "--workflow-id", workflowID,
		"--event-bus", "gochannel", "--input", `{"n": 5}`)
	require.NoError(t, err)
	assert.Equal(t, "pending", requested["status"])

	executionID, ok := requested["id"].(string)
	require.True(t, ok)

	finished, err := runApp(t, "run", "--database-url", databaseURL, "--execution-id", executionID)
	require.NoError(t, err)
	assert.Equal(t, "completed", finished["status"])
	assert.Equal(t, map[string]any{"doubled": 10.0}, finished["output_data"])

	_, err = runApp(t, "cancel", "--database-url", databaseURL, "--execution-id", executionID)
	require.Error(t, err)
}
