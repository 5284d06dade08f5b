package persistence_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dukex/nodeflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
)

func TestStandardizedErrors(t *testing.T) {
	t.Parallel()

	t.Run("error checking functions work correctly", func(t *testing.T) {
		workflowErr := persistence.NewWorkflowError("GetByID", "workflow-123", persistence.ErrWorkflowNotFound)
		executionErr := persistence.NewExecutionError("Update", "exec-1", persistence.ErrExecutionNotFound)
		logErr := persistence.NewLogError("UpdateLog", "log-1", persistence.ErrLogNotFound)

		assert.True(t, persistence.IsWorkflowNotFound(workflowErr))
		assert.True(t, persistence.IsExecutionNotFound(executionErr))
		assert.True(t, persistence.IsLogNotFound(logErr))
		assert.True(t, persistence.IsNotFound(fmt.Errorf("wrapped: %w", logErr)))
		assert.False(t, persistence.IsNotFound(errors.New("boom")))

		assert.ErrorIs(t, workflowErr, persistence.ErrWorkflowNotFound)
		assert.NotErrorIs(t, workflowErr, persistence.ErrExecutionNotFound)
	})

	t.Run("workflow error contains context", func(t *testing.T) {
		err := persistence.NewWorkflowError("Save", "workflow-123", persistence.ErrPersistence)

		assert.Contains(t, err.Error(), "Save")
		assert.Contains(t, err.Error(), "workflow-123")
		assert.Contains(t, err.Error(), "persistence failure")
	})

	t.Run("execution error names the log row", func(t *testing.T) {
		err := persistence.NewLogError("UpdateLog", "log-9", persistence.ErrLogNotFound)

		assert.Equal(t, "UpdateLog operation failed for execution log log-9: execution log not found", err.Error())
	})
}
