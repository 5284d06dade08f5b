package definition

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatOf(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatOf("flow.yaml"))
	assert.Equal(t, FormatYAML, FormatOf("FLOW.YML"))
	assert.Equal(t, FormatJSON, FormatOf("flow.json"))
	assert.Equal(t, FormatJSON, FormatOf("flow"))
}

func TestLoadWorkflow_YAML(t *testing.T) {
	workflow, err := LoadWorkflow(filepath.Join("testdata", "loop.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "shout", workflow.ID)
	require.Len(t, workflow.Nodes, 4)
	assert.Equal(t, models.NodeTypeLoop, workflow.Nodes[1].Type)
	assert.Equal(t, "word", workflow.Nodes[1].Config["item_variable"])

	require.Len(t, workflow.Edges, 3)
	assert.Equal(t, models.EdgeTypeDefault, workflow.Edges[0].EdgeType)
	assert.Equal(t, models.EdgeTypeItem, workflow.Edges[1].EdgeType)

	require.NoError(t, models.ValidateWorkflow(workflow))
}

func TestLoadWorkflow_JSON(t *testing.T) {
	workflow, err := LoadWorkflow(filepath.Join("testdata", "linear.json"))
	require.NoError(t, err)

	assert.Equal(t, "Double", workflow.Name)
	assert.Equal(t, models.EdgeTypeSuccess, workflow.Edges[1].EdgeType)
	assert.Equal(t, map[string]any{"doubled": "{{double.result}}"}, workflow.Nodes[2].Config["output_mapping"])
}

func TestLoadWorkflow_Errors(t *testing.T) {
	_, err := LoadWorkflow(filepath.Join("testdata", "missing.json"))
	require.Error(t, err)

	dir := t.TempDir()

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0o600))

	_, err = LoadWorkflow(empty)
	require.ErrorIs(t, err, ErrEmptyDefinition)

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte(`{"nodes": [`), 0o600))

	_, err = LoadWorkflow(broken)
	require.ErrorContains(t, err, "failed to parse JSON")
}

func TestParseInput(t *testing.T) {
	input, err := ParseInput("")
	require.NoError(t, err)
	assert.Empty(t, input)

	input, err = ParseInput(`{"n": 3}`)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, input["n"], 1e-9)

	input, err = ParseInput("@" + filepath.Join("testdata", "input.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, input["words"])

	_, err = ParseInput("[1, 2]")
	require.Error(t, err)
}
