package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/nodeflow/pkg/compiler"
	"github.com/dukex/nodeflow/pkg/eventbus"
	"github.com/dukex/nodeflow/pkg/events"
	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/persistence"
	"github.com/google/uuid"
)

// ErrExecutionNotFound is returned when an execution is not found.
var ErrExecutionNotFound = persistence.ErrExecutionNotFound

// Execution creates execution requests and manages their lifecycle outside
// the executor.
type Execution struct {
	persistence persistence.Persistence
	compiler    *compiler.Compiler
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

// NewExecution creates a new execution service. publisher may be nil, in
// which case requested executions are only stored as pending.
func NewExecution(persistence persistence.Persistence, c *compiler.Compiler, publisher eventbus.EventPublisher, logger *slog.Logger) *Execution {
	if c == nil {
		c = compiler.New()
	}

	return &Execution{
		persistence: persistence,
		compiler:    c,
		publisher:   publisher,
		logger:      logger.With("module", "execution_service"),
	}
}

// Request checks that the workflow compiles, stores a pending execution and
// announces it to the workers. When publishing fails the pending execution is
// still returned with the error.
func (s *Execution) Request(ctx context.Context, workflowID, userID string, input map[string]any) (*models.Execution, error) {
	workflow, err := s.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if _, err := s.compiler.CompileWorkflow(workflow); err != nil {
		return nil, NewValidationError("Request", "COMPILATION_FAILED", err.Error(), err)
	}

	if input == nil {
		input = make(map[string]any)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate execution id: %w", err)
	}

	now := time.Now().UTC()
	execution := &models.Execution{
		ID:         id.String(),
		WorkflowID: workflowID,
		UserID:     userID,
		Status:     models.ExecutionStatusPending,
		InputData:  input,
		Variables:  make(map[string]any),
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.persistence.ExecutionRepository().Create(ctx, execution); err != nil {
		return nil, fmt.Errorf("failed to create execution: %w", err)
	}

	s.logger.InfoContext(ctx, "execution requested", "execution_id", execution.ID, "workflow_id", workflowID)

	if s.publisher == nil {
		return execution, nil
	}

	event := events.ExecutionRequested{
		BaseEvent: events.NewBaseEvent(events.ExecutionRequestedEvent, workflowID, execution.ID),
		UserID:    userID,
		InputData: input,
	}

	if err := s.publisher.Publish(ctx, execution.ID, event); err != nil {
		return execution, fmt.Errorf("failed to publish execution request %s: %w", execution.ID, err)
	}

	return execution, nil
}

// Cancel marks a pending or running execution as cancelled. A running
// executor observes the change before its next node.
func (s *Execution) Cancel(ctx context.Context, executionID string) (*models.Execution, error) {
	execution, err := s.persistence.ExecutionRepository().GetByID(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if execution.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: execution %s is %s", ErrExecutionFinished, executionID, execution.Status)
	}

	update := models.ExecutionUpdate{Status: models.Ptr(models.ExecutionStatusCancelled)}
	if execution.Status == models.ExecutionStatusPending {
		// no executor will ever pick it up
		update.CompletedAt = models.Ptr(time.Now().UTC())
	}

	if err := s.persistence.ExecutionRepository().Update(ctx, executionID, update); err != nil {
		return nil, fmt.Errorf("failed to cancel execution: %w", err)
	}

	update.Apply(execution)
	s.logger.InfoContext(ctx, "execution cancelled", "execution_id", executionID)

	return execution, nil
}

// FetchByID retrieves an execution by its ID.
func (s *Execution) FetchByID(ctx context.Context, executionID string) (*models.Execution, error) {
	return s.persistence.ExecutionRepository().GetByID(ctx, executionID)
}

// Logs returns the node log rows of an execution in start order.
func (s *Execution) Logs(ctx context.Context, executionID string) ([]*models.ExecutionLog, error) {
	if _, err := s.persistence.ExecutionRepository().GetByID(ctx, executionID); err != nil {
		return nil, err
	}

	return s.persistence.ExecutionRepository().ListLogs(ctx, executionID)
}

// ListByStatus returns the executions in status, oldest first.
func (s *Execution) ListByStatus(ctx context.Context, status models.ExecutionStatus) ([]*models.Execution, error) {
	return s.persistence.ExecutionRepository().ListByStatus(ctx, status)
}
