package services

import (
	"testing"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/persistence/file"
	"github.com/dukex/nodeflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupNodeService(t *testing.T) (*Node, *models.Workflow) {
	t.Helper()

	persistence := file.NewPersistence(t.TempDir())

	workflow, err := NewWorkflow(persistence, nil).Create(t.Context(), newLinearWorkflow())
	require.NoError(t, err)

	return NewNode(persistence), workflow
}

func TestNode_AddAndGet(t *testing.T) {
	service, workflow := setupNodeService(t)

	added, err := service.AddNode(t.Context(), workflow.ID, &models.Node{Type: models.NodeTypeLLM, Label: "Summarise"})
	require.NoError(t, err)
	assert.NotEmpty(t, added.ID)
	assert.NotNil(t, added.Config)

	loaded, err := service.GetNode(t.Context(), workflow.ID, added.ID)
	require.NoError(t, err)
	assert.Equal(t, "Summarise", loaded.Label)
	assert.Equal(t, models.NodeTypeLLM, loaded.Type)

	_, err = service.GetNode(t.Context(), workflow.ID, "missing")
	require.ErrorIs(t, err, ErrNodeNotFound)
}

func TestNode_AddRejectsDuplicatesAndInvalidTypes(t *testing.T) {
	service, workflow := setupNodeService(t)

	_, err := service.AddNode(t.Context(), workflow.ID, &models.Node{ID: "start", Type: models.NodeTypeCode})
	require.ErrorIs(t, err, ErrDuplicateNode)
	assert.True(t, IsConflictError(err))

	_, err = service.AddNode(t.Context(), workflow.ID, &models.Node{ID: "odd", Type: "teleport"})
	require.ErrorIs(t, err, ErrInvalidWorkflow)

	_, err = service.AddNode(t.Context(), "missing", &models.Node{Type: models.NodeTypeCode})
	require.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestNode_Update(t *testing.T) {
	service, workflow := setupNodeService(t)

	updated, err := service.UpdateNode(t.Context(), workflow.ID, "double", &UpdateNodeRequest{
		Label:   "Triple",
		Config:  map[string]any{"code": "result = input_data['n'] * 3"},
		Outputs: map[string]string{"result": "tripled"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.NodeTypeCode, updated.Type)

	loaded, err := service.GetNode(t.Context(), workflow.ID, "double")
	require.NoError(t, err)
	assert.Equal(t, "Triple", loaded.Label)
	assert.Equal(t, map[string]string{"result": "tripled"}, loaded.Outputs)

	_, err = service.UpdateNode(t.Context(), workflow.ID, "missing", &UpdateNodeRequest{})
	require.ErrorIs(t, err, ErrNodeNotFound)
}

func TestNode_DeleteRemovesAttachedEdges(t *testing.T) {
	service, workflow := setupNodeService(t)

	require.NoError(t, service.DeleteNode(t.Context(), workflow.ID, "double"))

	stored, err := NewWorkflow(service.persistence, nil).FetchByID(t.Context(), workflow.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Nodes, 2)
	assert.Empty(t, stored.Edges)

	err = service.DeleteNode(t.Context(), workflow.ID, "double")
	require.ErrorIs(t, err, ErrNodeNotFound)
}

func TestNode_ConnectAndDisconnect(t *testing.T) {
	service, workflow := setupNodeService(t)

	edge, err := service.Connect(t.Context(), workflow.ID, &models.Edge{SourceID: "start", TargetID: "end"})
	require.NoError(t, err)
	assert.NotEmpty(t, edge.ID)
	assert.Equal(t, models.EdgeTypeDefault, edge.EdgeType)

	_, err = service.Connect(t.Context(), workflow.ID, testutil.Edge("start", "ghost"))
	require.ErrorIs(t, err, ErrInvalidEdge)
	assert.True(t, IsValidationError(err))

	require.NoError(t, service.Disconnect(t.Context(), workflow.ID, edge.ID))

	stored, err := NewWorkflow(service.persistence, nil).FetchByID(t.Context(), workflow.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Edges, 2)

	err = service.Disconnect(t.Context(), workflow.ID, edge.ID)
	require.ErrorIs(t, err, ErrEdgeNotFound)
}
