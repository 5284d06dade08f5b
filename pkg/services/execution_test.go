package services

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dukex/nodeflow/pkg/events"
	"github.com/dukex/nodeflow/pkg/mocks"
	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/persistence/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupExecutionService(t *testing.T, publisher *mocks.MockEventBus) (*Execution, *models.Workflow) {
	t.Helper()

	persistence := file.NewPersistence(t.TempDir())

	workflow, err := NewWorkflow(persistence, nil).Create(t.Context(), newLinearWorkflow())
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if publisher == nil {
		return NewExecution(persistence, nil, nil, logger), workflow
	}

	return NewExecution(persistence, nil, publisher, logger), workflow
}

func TestExecution_Request(t *testing.T) {
	bus := &mocks.MockEventBus{}
	service, workflow := setupExecutionService(t, bus)

	bus.On("Publish", mock.Anything, mock.AnythingOfType("string"), mock.MatchedBy(func(event events.ExecutionRequested) bool {
		return event.WorkflowID == workflow.ID && event.UserID == "user-1" && event.InputData["n"] == 3
	})).Return(nil).Once()

	execution, err := service.Request(t.Context(), workflow.ID, "user-1", map[string]any{"n": 3})
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusPending, execution.Status)
	assert.NotEmpty(t, execution.ID)

	stored, err := service.FetchByID(t.Context(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusPending, stored.Status)
	assert.Equal(t, "user-1", stored.UserID)

	bus.AssertExpectations(t)
	bus.AssertCalled(t, "Publish", mock.Anything, execution.ID, mock.Anything)
}

func TestExecution_RequestPublishFailureKeepsPendingRow(t *testing.T) {
	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("broker down"))

	service, workflow := setupExecutionService(t, bus)

	execution, err := service.Request(t.Context(), workflow.ID, "", nil)
	require.ErrorContains(t, err, "broker down")
	require.NotNil(t, execution)

	pending, err := service.ListByStatus(t.Context(), models.ExecutionStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, execution.ID, pending[0].ID)
	assert.Empty(t, pending[0].InputData)
}

func TestExecution_RequestUnknownWorkflow(t *testing.T) {
	service, _ := setupExecutionService(t, nil)

	_, err := service.Request(t.Context(), "missing", "", nil)
	require.ErrorIs(t, err, ErrWorkflowNotFound)
}

func TestExecution_Cancel(t *testing.T) {
	service, workflow := setupExecutionService(t, nil)

	execution, err := service.Request(t.Context(), workflow.ID, "", nil)
	require.NoError(t, err)

	cancelled, err := service.Cancel(t.Context(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CompletedAt)

	_, err = service.Cancel(t.Context(), execution.ID)
	require.ErrorIs(t, err, ErrExecutionFinished)
	assert.True(t, IsConflictError(err))

	_, err = service.Cancel(t.Context(), "missing")
	require.ErrorIs(t, err, ErrExecutionNotFound)
}

func TestExecution_CancelRunningLeavesCompletionToExecutor(t *testing.T) {
	service, workflow := setupExecutionService(t, nil)

	execution, err := service.Request(t.Context(), workflow.ID, "", nil)
	require.NoError(t, err)

	require.NoError(t, service.persistence.ExecutionRepository().Update(t.Context(), execution.ID, models.ExecutionUpdate{
		Status: models.Ptr(models.ExecutionStatusRunning),
	}))

	cancelled, err := service.Cancel(t.Context(), execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCancelled, cancelled.Status)
	assert.Nil(t, cancelled.CompletedAt)
}

func TestExecution_Logs(t *testing.T) {
	service, workflow := setupExecutionService(t, nil)

	execution, err := service.Request(t.Context(), workflow.ID, "", nil)
	require.NoError(t, err)

	logs, err := service.Logs(t.Context(), execution.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)

	_, err = service.Logs(t.Context(), "missing")
	require.ErrorIs(t, err, ErrExecutionNotFound)
}
