package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/persistence"
	"github.com/google/uuid"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// GetAll returns all workflows from the database, newest first.
func (r *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	query := `
		SELECT
			id
		  , name
		  , version
		  , description
		  , created_at
		  , updated_at
		FROM workflows
		ORDER BY created_at DESC, id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query workflows: %w", persistence.ErrPersistence, err)
	}

	defer closeRows(ctx, r.logger, rows)

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := r.scanWorkflowBase(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan workflow: %w", persistence.ErrPersistence, err)
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating workflows: %w", persistence.ErrPersistence, err)
	}

	for _, workflow := range workflows {
		if err := r.loadNodesAndEdges(ctx, workflow); err != nil {
			return nil, persistence.NewWorkflowError("GetAll", workflow.ID, err)
		}
	}

	return workflows, nil
}

// GetByID returns a workflow with its nodes and edges.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `
		SELECT
			id
		  , name
		  , version
		  , description
		  , created_at
		  , updated_at
		FROM workflows
		WHERE id = $1
	`

	workflow, err := r.scanWorkflowBase(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
		}

		return nil, persistence.NewWorkflowError("GetByID", id, fmt.Errorf("%w: %w", persistence.ErrPersistence, err))
	}

	if err := r.loadNodesAndEdges(ctx, workflow); err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	return workflow, nil
}

// Save upserts a workflow and replaces its nodes and edges in one transaction.
func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) (err error) {
	now := time.Now().UTC()
	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if workflow.ID == "" {
		workflow.ID = uuid.Must(uuid.NewV7()).String()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, fmt.Errorf("%w: failed to begin transaction: %w", persistence.ErrPersistence, err))
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	workflowQuery := `
		INSERT INTO workflows (id, name, version, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			version = EXCLUDED.version,
			description = EXCLUDED.description,
			updated_at = EXCLUDED.updated_at
	`

	_, err = tx.ExecContext(ctx, workflowQuery,
		workflow.ID,
		workflow.Name,
		workflow.Version,
		workflow.Description,
		workflow.CreatedAt,
		workflow.UpdatedAt,
	)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, fmt.Errorf("%w: failed to save workflow base: %w", persistence.ErrPersistence, err))
	}

	// Delete existing nodes and edges (for updates)
	_, err = tx.ExecContext(ctx, "DELETE FROM workflow_edges WHERE workflow_id = $1", workflow.ID)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, fmt.Errorf("%w: failed to delete existing edges: %w", persistence.ErrPersistence, err))
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM workflow_nodes WHERE workflow_id = $1", workflow.ID)
	if err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, fmt.Errorf("%w: failed to delete existing nodes: %w", persistence.ErrPersistence, err))
	}

	if err = r.saveNodes(ctx, tx, workflow); err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	if err = r.saveEdges(ctx, tx, workflow); err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, err)
	}

	if err = tx.Commit(); err != nil {
		return persistence.NewWorkflowError("Save", workflow.ID, fmt.Errorf("%w: failed to commit transaction: %w", persistence.ErrPersistence, err))
	}

	return nil
}

// Delete removes a workflow. Nodes, edges and executions cascade.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, fmt.Errorf("%w: %w", persistence.ErrPersistence, err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewWorkflowError("Delete", id, fmt.Errorf("%w: failed to get rows affected: %w", persistence.ErrPersistence, err))
	}

	if rowsAffected == 0 {
		return persistence.NewWorkflowError("Delete", id, persistence.ErrWorkflowNotFound)
	}

	return nil
}

func (r *WorkflowRepository) scanWorkflowBase(row rowScanner) (*models.Workflow, error) {
	var workflow models.Workflow

	err := row.Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.Version,
		&workflow.Description,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &workflow, nil
}

func (r *WorkflowRepository) loadNodesAndEdges(ctx context.Context, workflow *models.Workflow) error {
	nodesQuery := `
		SELECT id, node_type, label, config, inputs, outputs
		FROM workflow_nodes
		WHERE workflow_id = $1
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, nodesQuery, workflow.ID)
	if err != nil {
		return fmt.Errorf("%w: failed to query workflow nodes: %w", persistence.ErrPersistence, err)
	}

	defer closeRows(ctx, r.logger, rows)

	nodes := make([]*models.Node, 0)

	for rows.Next() {
		var (
			node                                models.Node
			configJSON, inputsJSON, outputsJSON []byte
		)

		err := rows.Scan(&node.ID, &node.Type, &node.Label, &configJSON, &inputsJSON, &outputsJSON)
		if err != nil {
			return fmt.Errorf("%w: failed to scan node: %w", persistence.ErrPersistence, err)
		}

		if err := unmarshalNullable(configJSON, &node.Config); err != nil {
			return fmt.Errorf("%w: failed to unmarshal node configuration: %w", persistence.ErrPersistence, err)
		}

		if err := unmarshalNullable(inputsJSON, &node.Inputs); err != nil {
			return fmt.Errorf("%w: failed to unmarshal node inputs: %w", persistence.ErrPersistence, err)
		}

		if err := unmarshalNullable(outputsJSON, &node.Outputs); err != nil {
			return fmt.Errorf("%w: failed to unmarshal node outputs: %w", persistence.ErrPersistence, err)
		}

		nodes = append(nodes, &node)
	}

	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: error iterating nodes: %w", persistence.ErrPersistence, err)
	}

	workflow.Nodes = nodes

	edgesQuery := `
		SELECT id, source_id, target_id, edge_type, edge_condition, source_handle, target_handle
		FROM workflow_edges
		WHERE workflow_id = $1
		ORDER BY position
	`

	edgeRows, err := r.db.QueryContext(ctx, edgesQuery, workflow.ID)
	if err != nil {
		return fmt.Errorf("%w: failed to query workflow edges: %w", persistence.ErrPersistence, err)
	}

	defer closeRows(ctx, r.logger, edgeRows)

	edges := make([]*models.Edge, 0)

	for edgeRows.Next() {
		var edge models.Edge

		err := edgeRows.Scan(
			&edge.ID,
			&edge.SourceID,
			&edge.TargetID,
			&edge.EdgeType,
			&edge.Condition,
			&edge.SourceHandle,
			&edge.TargetHandle,
		)
		if err != nil {
			return fmt.Errorf("%w: failed to scan edge: %w", persistence.ErrPersistence, err)
		}

		edges = append(edges, &edge)
	}

	if err := edgeRows.Err(); err != nil {
		return fmt.Errorf("%w: error iterating edges: %w", persistence.ErrPersistence, err)
	}

	workflow.Edges = edges

	return nil
}

func (r *WorkflowRepository) saveNodes(ctx context.Context, tx *sql.Tx, workflow *models.Workflow) error {
	query := `
		INSERT INTO workflow_nodes (workflow_id, id, position, node_type, label, config, inputs, outputs)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	for position, node := range workflow.Nodes {
		configJSON, err := marshalNullable(node.Config)
		if err != nil {
			return fmt.Errorf("failed to marshal node configuration: %w", err)
		}

		inputsJSON, err := marshalNullable(node.Inputs)
		if err != nil {
			return fmt.Errorf("failed to marshal node inputs: %w", err)
		}

		outputsJSON, err := marshalNullable(node.Outputs)
		if err != nil {
			return fmt.Errorf("failed to marshal node outputs: %w", err)
		}

		_, err = tx.ExecContext(ctx, query,
			workflow.ID,
			node.ID,
			position,
			node.Type,
			node.Label,
			configJSON,
			inputsJSON,
			outputsJSON,
		)
		if err != nil {
			return fmt.Errorf("%w: failed to save node %s: %w", persistence.ErrPersistence, node.ID, err)
		}
	}

	return nil
}

func (r *WorkflowRepository) saveEdges(ctx context.Context, tx *sql.Tx, workflow *models.Workflow) error {
	query := `
		INSERT INTO workflow_edges (workflow_id, position, id, source_id, target_id, edge_type, edge_condition, source_handle, target_handle)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	for position, edge := range workflow.Edges {
		_, err := tx.ExecContext(ctx, query,
			workflow.ID,
			position,
			edge.ID,
			edge.SourceID,
			edge.TargetID,
			edge.Type(),
			edge.Condition,
			edge.SourceHandle,
			edge.TargetHandle,
		)
		if err != nil {
			return fmt.Errorf("%w: failed to save edge %s -> %s: %w", persistence.ErrPersistence, edge.SourceID, edge.TargetID, err)
		}
	}

	return nil
}

// marshalNullable encodes v as JSON, mapping nil maps to SQL NULL.
func marshalNullable[T any](v map[string]T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}

	return json.Marshal(v)
}

func unmarshalNullable(data []byte, target any) error {
	if data == nil {
		return nil
	}

	return json.Unmarshal(data, target)
}
