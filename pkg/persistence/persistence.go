// Package persistence defines the storage contract for workflows, executions
// and their per-node logs.
package persistence

import (
	"context"

	"github.com/dukex/nodeflow/pkg/knowledge"
	"github.com/dukex/nodeflow/pkg/models"
)

// Persistence groups the repositories of a backing store.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	KnowledgeRepository() KnowledgeRepository

	// HealthCheck verifies the backing store is reachable.
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow definitions. Nodes and edges are owned
// by their workflow and are always loaded eagerly.
type WorkflowRepository interface {
	Save(ctx context.Context, workflow *models.Workflow) error
	// GetByID returns ErrWorkflowNotFound when no workflow has the id.
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	GetAll(ctx context.Context) ([]*models.Workflow, error)
	// Delete removes the workflow together with its nodes and edges.
	Delete(ctx context.Context, id string) error
}

// ExecutionRepository stores execution rows and their log rows.
type ExecutionRepository interface {
	Create(ctx context.Context, execution *models.Execution) error
	// GetByID returns ErrExecutionNotFound when no execution has the id.
	GetByID(ctx context.Context, id string) (*models.Execution, error)
	// Update applies a partial update atomically.
	Update(ctx context.Context, id string, update models.ExecutionUpdate) error
	ListByStatus(ctx context.Context, status models.ExecutionStatus) ([]*models.Execution, error)
	// Delete removes the execution and its log rows.
	Delete(ctx context.Context, id string) error

	// CreateLog stores a log row and returns its id. An empty ID is generated.
	CreateLog(ctx context.Context, log *models.ExecutionLog) (string, error)
	UpdateLog(ctx context.Context, id string, update models.LogUpdate) error
	// ListLogs returns the log rows of an execution ordered by start time.
	ListLogs(ctx context.Context, executionID string) ([]*models.ExecutionLog, error)
}

// KnowledgeRepository stores embedded knowledge chunks and answers
// similarity queries over them.
type KnowledgeRepository interface {
	knowledge.VectorStore

	SaveChunks(ctx context.Context, chunks []knowledge.Chunk) error
}
