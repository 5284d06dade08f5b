package services

import (
	"errors"
	"testing"

	"github.com/dukex/nodeflow/pkg/compiler"
	"github.com/dukex/nodeflow/pkg/mocks"
	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/persistence"
	"github.com/dukex/nodeflow/pkg/persistence/file"
	"github.com/dukex/nodeflow/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newLinearWorkflow() *models.Workflow {
	workflow := testutil.CreateTestWorkflowWithNodes()
	workflow.ID = ""
	workflow.Version = ""

	return workflow
}

func TestNewWorkflow(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewWorkflow(persistence, nil)

	assert.NotNil(t, service)
	assert.Equal(t, persistence, service.persistence)
	assert.NotNil(t, service.compiler)
}

func TestWorkflow_HealthCheck(t *testing.T) {
	service := NewWorkflow(file.NewPersistence(t.TempDir()), nil)

	message, ok := service.HealthCheck(t.Context())
	assert.True(t, ok)
	assert.Equal(t, "Persistence layer is healthy", message)

	unhealthy := &mocks.MockPersistence{}
	unhealthy.On("HealthCheck", mock.Anything).Return(errors.New("disk gone"))

	message, ok = NewWorkflow(unhealthy, nil).HealthCheck(t.Context())
	assert.False(t, ok)
	assert.Contains(t, message, "disk gone")
	unhealthy.AssertExpectations(t)
}

func TestWorkflow_Create(t *testing.T) {
	persistence := file.NewPersistence(t.TempDir())
	service := NewWorkflow(persistence, nil)

	created, err := service.Create(t.Context(), newLinearWorkflow())
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "1", created.Version)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)

	loaded, err := service.FetchByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Len(t, loaded.Nodes, 3)
	assert.Len(t, loaded.Edges, 2)
}

func TestWorkflow_CreateRejectsInvalidDefinitions(t *testing.T) {
	service := NewWorkflow(file.NewPersistence(t.TempDir()), nil)

	_, err := service.Create(t.Context(), nil)
	require.ErrorIs(t, err, ErrWorkflowNil)

	empty := newLinearWorkflow()
	empty.Nodes = nil
	_, err = service.Create(t.Context(), empty)
	require.ErrorIs(t, err, ErrNodesRequired)

	unnamed := newLinearWorkflow()
	unnamed.Name = ""
	_, err = service.Create(t.Context(), unnamed)
	require.ErrorIs(t, err, ErrInvalidWorkflow)
	assert.True(t, IsValidationError(err))

	noEnd := newLinearWorkflow()
	noEnd.Nodes = noEnd.Nodes[:2]
	noEnd.Edges = noEnd.Edges[:1]
	_, err = service.Create(t.Context(), noEnd)
	require.ErrorIs(t, err, compiler.ErrCompilation)
	assert.True(t, IsValidationError(err))

	var serviceErr *ServiceError
	require.ErrorAs(t, err, &serviceErr)
	assert.Equal(t, "COMPILATION_FAILED", serviceErr.Code)
}

func TestWorkflow_CreatePersistenceFailure(t *testing.T) {
	repo := &mocks.MockWorkflowRepository{}
	repo.On("Save", mock.Anything, mock.AnythingOfType("*models.Workflow")).Return(persistence.ErrPersistence)

	store := &mocks.MockPersistence{}
	store.On("WorkflowRepository").Return(repo)

	_, err := NewWorkflow(store, nil).Create(t.Context(), newLinearWorkflow())
	require.ErrorIs(t, err, persistence.ErrPersistence)
	assert.Contains(t, err.Error(), "failed to create workflow")
	repo.AssertExpectations(t)
}

func TestWorkflow_Update(t *testing.T) {
	service := NewWorkflow(file.NewPersistence(t.TempDir()), nil)

	created, err := service.Create(t.Context(), newLinearWorkflow())
	require.NoError(t, err)

	replacement := newLinearWorkflow()
	replacement.Name = "Renamed"

	updated, err := service.Update(t.Context(), created.ID, replacement)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.True(t, created.CreatedAt.Equal(updated.CreatedAt))
	assert.Equal(t, "1", updated.Version)
	assert.False(t, updated.UpdatedAt.Before(created.UpdatedAt))

	loaded, err := service.FetchByID(t.Context(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", loaded.Name)

	_, err = service.Update(t.Context(), "missing", newLinearWorkflow())
	require.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestWorkflow_ListAndDelete(t *testing.T) {
	service := NewWorkflow(file.NewPersistence(t.TempDir()), nil)

	first, err := service.Create(t.Context(), newLinearWorkflow())
	require.NoError(t, err)
	_, err = service.Create(t.Context(), newLinearWorkflow())
	require.NoError(t, err)

	workflows, err := service.List(t.Context())
	require.NoError(t, err)
	assert.Len(t, workflows, 2)

	require.NoError(t, service.Delete(t.Context(), first.ID))

	_, err = service.FetchByID(t.Context(), first.ID)
	require.ErrorIs(t, err, ErrWorkflowNotFound)

	err = service.Delete(t.Context(), first.ID)
	require.ErrorIs(t, err, ErrWorkflowNotFound)
}
