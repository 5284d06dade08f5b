package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/persistence"
	"github.com/google/uuid"
)

const executionColumns = `
	id
  , workflow_id
  , user_id
  , status
  , started_at
  , completed_at
  , input_data
  , variables
  , output_data
  , error
  , current_node_id
  , created_at
  , updated_at
`

const logColumns = `
	id
  , execution_id
  , node_id
  , node_type
  , status
  , input
  , output
  , error
  , started_at
  , completed_at
  , duration_ms
`

// ExecutionRepository handles execution and execution log database operations.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

func (r *ExecutionRepository) Create(ctx context.Context, execution *models.Execution) error {
	if execution.ID == "" {
		execution.ID = uuid.Must(uuid.NewV7()).String()
	}

	now := time.Now().UTC()
	if execution.CreatedAt.IsZero() {
		execution.CreatedAt = now
	}

	execution.UpdatedAt = now

	if execution.Status == "" {
		execution.Status = models.ExecutionStatusPending
	}

	inputJSON, err := json.Marshal(orEmpty(execution.InputData))
	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, fmt.Errorf("failed to marshal input data: %w", err))
	}

	variablesJSON, err := json.Marshal(orEmpty(execution.Variables))
	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, fmt.Errorf("failed to marshal variables: %w", err))
	}

	outputJSON, err := marshalNullable(execution.OutputData)
	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, fmt.Errorf("failed to marshal output data: %w", err))
	}

	query := `
		INSERT INTO executions (` + executionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID,
		execution.WorkflowID,
		execution.UserID,
		execution.Status,
		execution.StartedAt,
		execution.CompletedAt,
		inputJSON,
		variablesJSON,
		outputJSON,
		execution.Error,
		execution.CurrentNodeID,
		execution.CreatedAt,
		execution.UpdatedAt,
	)
	if err != nil {
		return persistence.NewExecutionError("Create", execution.ID, fmt.Errorf("%w: %w", persistence.ErrPersistence, err))
	}

	return nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE id = $1`

	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewExecutionError("GetByID", id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError("GetByID", id, fmt.Errorf("%w: %w", persistence.ErrPersistence, err))
	}

	return execution, nil
}

// Update applies the non-nil fields of update in a single statement.
func (r *ExecutionRepository) Update(ctx context.Context, id string, update models.ExecutionUpdate) error {
	var (
		sets []string
		args []any
	)

	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Status != nil {
		set("status", *update.Status)
	}

	if update.StartedAt != nil {
		set("started_at", *update.StartedAt)
	}

	if update.CompletedAt != nil {
		set("completed_at", *update.CompletedAt)
	}

	if update.Variables != nil {
		data, err := json.Marshal(update.Variables)
		if err != nil {
			return persistence.NewExecutionError("Update", id, fmt.Errorf("failed to marshal variables: %w", err))
		}

		set("variables", data)
	}

	if update.OutputData != nil {
		data, err := json.Marshal(update.OutputData)
		if err != nil {
			return persistence.NewExecutionError("Update", id, fmt.Errorf("failed to marshal output data: %w", err))
		}

		set("output_data", data)
	}

	if update.Error != nil {
		set("error", *update.Error)
	}

	if update.CurrentNodeID != nil {
		set("current_node_id", *update.CurrentNodeID)
	}

	set("updated_at", time.Now().UTC())
	args = append(args, id)

	query := fmt.Sprintf("UPDATE executions SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return persistence.NewExecutionError("Update", id, fmt.Errorf("%w: %w", persistence.ErrPersistence, err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewExecutionError("Update", id, fmt.Errorf("%w: failed to get rows affected: %w", persistence.ErrPersistence, err))
	}

	if rowsAffected == 0 {
		return persistence.NewExecutionError("Update", id, persistence.ErrExecutionNotFound)
	}

	return nil
}

func (r *ExecutionRepository) ListByStatus(ctx context.Context, status models.ExecutionStatus) ([]*models.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE status = $1 ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query executions: %w", persistence.ErrPersistence, err)
	}

	defer closeRows(ctx, r.logger, rows)

	executions := make([]*models.Execution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan execution: %w", persistence.ErrPersistence, err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating executions: %w", persistence.ErrPersistence, err)
	}

	return executions, nil
}

// Delete removes an execution. Log rows cascade.
func (r *ExecutionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM executions WHERE id = $1`, id)
	if err != nil {
		return persistence.NewExecutionError("Delete", id, fmt.Errorf("%w: %w", persistence.ErrPersistence, err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewExecutionError("Delete", id, fmt.Errorf("%w: failed to get rows affected: %w", persistence.ErrPersistence, err))
	}

	if rowsAffected == 0 {
		return persistence.NewExecutionError("Delete", id, persistence.ErrExecutionNotFound)
	}

	return nil
}

func (r *ExecutionRepository) CreateLog(ctx context.Context, log *models.ExecutionLog) (string, error) {
	if log.ID == "" {
		log.ID = uuid.Must(uuid.NewV7()).String()
	}

	if log.StartedAt.IsZero() {
		log.StartedAt = time.Now().UTC()
	}

	inputJSON, err := marshalNullable(log.Input)
	if err != nil {
		return "", persistence.NewLogError("CreateLog", log.ID, fmt.Errorf("failed to marshal input: %w", err))
	}

	outputJSON, err := marshalNullable(log.Output)
	if err != nil {
		return "", persistence.NewLogError("CreateLog", log.ID, fmt.Errorf("failed to marshal output: %w", err))
	}

	var exists bool

	err = r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM executions WHERE id = $1)`, log.ExecutionID).Scan(&exists)
	if err != nil {
		return "", persistence.NewExecutionError("CreateLog", log.ExecutionID, fmt.Errorf("%w: %w", persistence.ErrPersistence, err))
	}

	if !exists {
		return "", persistence.NewExecutionError("CreateLog", log.ExecutionID, persistence.ErrExecutionNotFound)
	}

	query := `
		INSERT INTO execution_logs (` + logColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.db.ExecContext(ctx, query,
		log.ID,
		log.ExecutionID,
		log.NodeID,
		log.NodeType,
		log.Status,
		inputJSON,
		outputJSON,
		log.Error,
		log.StartedAt,
		log.CompletedAt,
		log.DurationMs,
	)
	if err != nil {
		return "", persistence.NewLogError("CreateLog", log.ID, fmt.Errorf("%w: %w", persistence.ErrPersistence, err))
	}

	return log.ID, nil
}

func (r *ExecutionRepository) UpdateLog(ctx context.Context, id string, update models.LogUpdate) error {
	var (
		sets []string
		args []any
	)

	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Status != nil {
		set("status", *update.Status)
	}

	if update.Output != nil {
		data, err := json.Marshal(update.Output)
		if err != nil {
			return persistence.NewLogError("UpdateLog", id, fmt.Errorf("failed to marshal output: %w", err))
		}

		set("output", data)
	}

	if update.Error != nil {
		set("error", *update.Error)
	}

	if update.CompletedAt != nil {
		set("completed_at", *update.CompletedAt)
	}

	if update.DurationMs != nil {
		set("duration_ms", *update.DurationMs)
	}

	var (
		result sql.Result
		err    error
	)

	if len(sets) == 0 {
		result, err = r.db.ExecContext(ctx, `UPDATE execution_logs SET id = id WHERE id = $1`, id)
	} else {
		args = append(args, id)
		query := fmt.Sprintf("UPDATE execution_logs SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
		result, err = r.db.ExecContext(ctx, query, args...)
	}

	if err != nil {
		return persistence.NewLogError("UpdateLog", id, fmt.Errorf("%w: %w", persistence.ErrPersistence, err))
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return persistence.NewLogError("UpdateLog", id, fmt.Errorf("%w: failed to get rows affected: %w", persistence.ErrPersistence, err))
	}

	if rowsAffected == 0 {
		return persistence.NewLogError("UpdateLog", id, persistence.ErrLogNotFound)
	}

	return nil
}

func (r *ExecutionRepository) ListLogs(ctx context.Context, executionID string) ([]*models.ExecutionLog, error) {
	query := `SELECT ` + logColumns + ` FROM execution_logs WHERE execution_id = $1 ORDER BY started_at, id`

	rows, err := r.db.QueryContext(ctx, query, executionID)
	if err != nil {
		return nil, persistence.NewExecutionError("ListLogs", executionID, fmt.Errorf("%w: %w", persistence.ErrPersistence, err))
	}

	defer closeRows(ctx, r.logger, rows)

	logs := make([]*models.ExecutionLog, 0)

	for rows.Next() {
		var (
			log                   models.ExecutionLog
			inputJSON, outputJSON []byte
			completedAt           sql.NullTime
			durationMs            sql.NullInt64
		)

		err := rows.Scan(
			&log.ID,
			&log.ExecutionID,
			&log.NodeID,
			&log.NodeType,
			&log.Status,
			&inputJSON,
			&outputJSON,
			&log.Error,
			&log.StartedAt,
			&completedAt,
			&durationMs,
		)
		if err != nil {
			return nil, persistence.NewExecutionError("ListLogs", executionID, fmt.Errorf("%w: failed to scan log: %w", persistence.ErrPersistence, err))
		}

		if err := unmarshalNullable(inputJSON, &log.Input); err != nil {
			return nil, persistence.NewExecutionError("ListLogs", executionID, fmt.Errorf("failed to unmarshal log input: %w", err))
		}

		if err := unmarshalNullable(outputJSON, &log.Output); err != nil {
			return nil, persistence.NewExecutionError("ListLogs", executionID, fmt.Errorf("failed to unmarshal log output: %w", err))
		}

		if completedAt.Valid {
			log.CompletedAt = &completedAt.Time
		}

		if durationMs.Valid {
			log.DurationMs = &durationMs.Int64
		}

		logs = append(logs, &log)
	}

	if err := rows.Err(); err != nil {
		return nil, persistence.NewExecutionError("ListLogs", executionID, fmt.Errorf("%w: error iterating logs: %w", persistence.ErrPersistence, err))
	}

	return logs, nil
}

func scanExecution(row rowScanner) (*models.Execution, error) {
	var (
		execution                            models.Execution
		startedAt, completedAt               sql.NullTime
		inputJSON, variablesJSON, outputJSON []byte
	)

	err := row.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&execution.UserID,
		&execution.Status,
		&startedAt,
		&completedAt,
		&inputJSON,
		&variablesJSON,
		&outputJSON,
		&execution.Error,
		&execution.CurrentNodeID,
		&execution.CreatedAt,
		&execution.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if startedAt.Valid {
		execution.StartedAt = &startedAt.Time
	}

	if completedAt.Valid {
		execution.CompletedAt = &completedAt.Time
	}

	if err := unmarshalNullable(inputJSON, &execution.InputData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal input data: %w", err)
	}

	if err := unmarshalNullable(variablesJSON, &execution.Variables); err != nil {
		return nil, fmt.Errorf("failed to unmarshal variables: %w", err)
	}

	if err := unmarshalNullable(outputJSON, &execution.OutputData); err != nil {
		return nil, fmt.Errorf("failed to unmarshal output data: %w", err)
	}

	return &execution, nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}

	return m
}
