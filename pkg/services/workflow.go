package services

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/nodeflow/pkg/compiler"
	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/persistence"
	"github.com/google/uuid"
)

var (
	// ErrWorkflowNotFound is returned when a workflow is not found.
	ErrWorkflowNotFound = persistence.ErrWorkflowNotFound
	// ErrInvalidWorkflow is returned when a definition fails structural validation.
	ErrInvalidWorkflow = models.ErrInvalidWorkflow
)

const defaultVersion = "1"

type Workflow struct {
	persistence persistence.Persistence
	compiler    *compiler.Compiler
}

// NewWorkflow creates a new workflow service. A nil compiler selects one
// without configuration schemas.
func NewWorkflow(persistence persistence.Persistence, c *compiler.Compiler) *Workflow {
	if c == nil {
		c = compiler.New()
	}

	return &Workflow{
		persistence: persistence,
		compiler:    c,
	}
}

// HealthCheck checks the health of the persistence layer.
func (w *Workflow) HealthCheck(ctx context.Context) (string, bool) {
	if w.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := w.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// List returns every stored workflow, most recent first.
func (w *Workflow) List(ctx context.Context) ([]*models.Workflow, error) {
	workflows, err := w.persistence.WorkflowRepository().GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}

	return workflows, nil
}

// FetchByID retrieves a workflow by its ID.
func (w *Workflow) FetchByID(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := w.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if workflow == nil {
		return nil, ErrWorkflowNotFound
	}

	return workflow, nil
}

// Validate checks the definition and compiles it.
func (w *Workflow) Validate(workflow *models.Workflow) (*compiler.CompiledWorkflow, error) {
	if workflow == nil {
		return nil, ErrWorkflowNil
	}

	if len(workflow.Nodes) == 0 {
		return nil, ErrNodesRequired
	}

	if err := models.ValidateWorkflow(workflow); err != nil {
		return nil, NewValidationError("Validate", "INVALID_WORKFLOW", err.Error(), err)
	}

	plan, err := w.compiler.CompileWorkflow(workflow)
	if err != nil {
		return nil, NewValidationError("Validate", "COMPILATION_FAILED", err.Error(), err)
	}

	return plan, nil
}

// Create validates and stores a new workflow. An ID is generated when the
// definition carries none.
func (w *Workflow) Create(ctx context.Context, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow == nil {
		return nil, ErrWorkflowNil
	}

	now := time.Now().UTC()

	if workflow.ID == "" {
		workflow.ID = uuid.New().String()
	}

	if workflow.Version == "" {
		workflow.Version = defaultVersion
	}

	workflow.CreatedAt = now
	workflow.UpdatedAt = now

	if _, err := w.Validate(workflow); err != nil {
		return nil, err
	}

	if err := w.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	return workflow, nil
}

// Update replaces the definition of an existing workflow.
func (w *Workflow) Update(ctx context.Context, workflowID string, workflow *models.Workflow) (*models.Workflow, error) {
	if workflow == nil {
		return nil, ErrWorkflowNil
	}

	existing, err := w.FetchByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	workflow.ID = workflowID
	workflow.CreatedAt = existing.CreatedAt
	workflow.UpdatedAt = time.Now().UTC()

	if workflow.Version == "" {
		workflow.Version = existing.Version
	}

	if _, err := w.Validate(workflow); err != nil {
		return nil, err
	}

	if err := w.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return nil, fmt.Errorf("failed to update workflow: %w", err)
	}

	return workflow, nil
}

// Delete removes a workflow together with its nodes and edges.
func (w *Workflow) Delete(ctx context.Context, workflowID string) error {
	if _, err := w.FetchByID(ctx, workflowID); err != nil {
		return err
	}

	if err := w.persistence.WorkflowRepository().Delete(ctx, workflowID); err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}

	return nil
}
