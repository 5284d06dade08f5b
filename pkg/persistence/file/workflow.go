package file

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/persistence"
)

// WorkflowRepository handles workflow-related file operations. Nodes and
// edges live inside the workflow document.
type WorkflowRepository struct {
	mu   sync.RWMutex
	root string
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root}
}

func (wr *WorkflowRepository) path(id string) string {
	return filepath.Join(wr.root, "workflows", id+".json")
}

// GetAll returns every stored workflow, newest first.
func (wr *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()

	ids, err := jsonFiles(filepath.Join(wr.root, "workflows"))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list workflow files: %w", persistence.ErrPersistence, err)
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		workflow, err := wr.read(id)
		if err != nil {
			return nil, err
		}

		workflows = append(workflows, workflow)
	}

	slices.SortFunc(workflows, func(a, b *models.Workflow) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}

		return cmp.Compare(a.ID, b.ID)
	})

	return workflows, nil
}

// GetByID retrieves a workflow by its ID from the file system.
func (wr *WorkflowRepository) GetByID(_ context.Context, id string) (*models.Workflow, error) {
	if err := validateID(id); err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	wr.mu.RLock()
	defer wr.mu.RUnlock()

	return wr.read(id)
}

func (wr *WorkflowRepository) read(id string) (*models.Workflow, error) {
	var workflow models.Workflow

	err := readJSON(wr.path(id), &workflow)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("GetByID", id, fmt.Errorf("%w: %w", persistence.ErrPersistence, err))
	}

	return &workflow, nil
}

// Save creates or replaces a workflow document.
func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	if err := validateID(workflow.ID); err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	wr.mu.Lock()
	defer wr.mu.Unlock()

	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if err := writeJSON(wr.path(workflow.ID), workflow); err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, fmt.Errorf("%w: %w", persistence.ErrPersistence, err))
	}

	return nil
}

// Delete removes a workflow document.
func (wr *WorkflowRepository) Delete(_ context.Context, id string) error {
	if err := validateID(id); err != nil {
		return persistence.NewWorkflowError("Delete", id, err)
	}

	wr.mu.Lock()
	defer wr.mu.Unlock()

	err := os.Remove(wr.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
		}

		return persistence.NewWorkflowError("Delete", id, fmt.Errorf("%w: %w", persistence.ErrPersistence, err))
	}

	return nil
}
