package models_test

import (
	"testing"
	"time"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validWorkflow() *models.Workflow {
	return &models.Workflow{
		ID:   "wf-1",
		Name: "Example",
		Nodes: []*models.Node{
			{ID: "start", Type: models.NodeTypeStart},
			{ID: "end", Type: models.NodeTypeEnd},
		},
		Edges: []*models.Edge{
			{SourceID: "start", TargetID: "end"},
		},
	}
}

func TestValidateWorkflow(t *testing.T) {
	t.Run("valid workflow", func(t *testing.T) {
		workflow := validWorkflow()

		require.NoError(t, models.ValidateWorkflow(workflow))
		assert.Equal(t, models.EdgeTypeDefault, workflow.Edges[0].EdgeType)
	})

	t.Run("missing name", func(t *testing.T) {
		workflow := validWorkflow()
		workflow.Name = ""

		err := models.ValidateWorkflow(workflow)
		require.ErrorIs(t, err, models.ErrInvalidWorkflow)
		assert.Contains(t, err.Error(), "Name")
	})

	t.Run("unknown node type", func(t *testing.T) {
		workflow := validWorkflow()
		workflow.Nodes[0].Type = "teleport"

		require.ErrorIs(t, models.ValidateWorkflow(workflow), models.ErrInvalidWorkflow)
	})

	t.Run("unknown edge type", func(t *testing.T) {
		workflow := validWorkflow()
		workflow.Edges[0].EdgeType = "sometimes"

		require.ErrorIs(t, models.ValidateWorkflow(workflow), models.ErrInvalidWorkflow)
	})

	t.Run("nil workflow", func(t *testing.T) {
		require.ErrorIs(t, models.ValidateWorkflow(nil), models.ErrInvalidWorkflow)
	})
}

func TestNodeClassification(t *testing.T) {
	assert.True(t, (&models.Node{Type: models.NodeTypeTrigger}).IsEntry())
	assert.True(t, (&models.Node{Type: models.NodeTypeOutput}).IsTerminal())
	assert.True(t, (&models.Node{Type: models.NodeTypeLogic}).IsConditional())
	assert.True(t, (&models.Node{Type: models.NodeTypeLoop}).IsLoop())
	assert.False(t, (&models.Node{Type: models.NodeTypeCode}).IsEntry())
	assert.Equal(t, models.EdgeTypeDefault, (&models.Edge{}).Type())
}

func TestExecutionUpdateApply(t *testing.T) {
	execution := &models.Execution{ID: "e1", Status: models.ExecutionStatusPending, CurrentNodeID: "a"}
	now := time.Now()

	models.ExecutionUpdate{
		Status:      models.Ptr(models.ExecutionStatusCompleted),
		CompletedAt: &now,
		OutputData:  map[string]any{"k": "v"},
	}.Apply(execution)

	assert.Equal(t, models.ExecutionStatusCompleted, execution.Status)
	assert.Equal(t, &now, execution.CompletedAt)
	assert.Equal(t, "a", execution.CurrentNodeID)
	assert.Equal(t, map[string]any{"k": "v"}, execution.OutputData)
	assert.True(t, execution.Status.IsTerminal())
	assert.False(t, models.ExecutionStatusRunning.IsTerminal())
}

func TestLogUpdateApply(t *testing.T) {
	log := &models.ExecutionLog{ID: "l1", Status: models.NodeStatusRunning}

	models.LogUpdate{
		Status:     models.Ptr(models.NodeStatusFailed),
		Error:      models.Ptr("boom"),
		DurationMs: models.Ptr(int64(12)),
	}.Apply(log)

	assert.Equal(t, models.NodeStatusFailed, log.Status)
	assert.Equal(t, "boom", log.Error)
	assert.Equal(t, int64(12), *log.DurationMs)
	assert.Nil(t, log.CompletedAt)
}
