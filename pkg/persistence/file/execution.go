package file

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/persistence"
	"github.com/google/uuid"
)

var errExecutionExists = errors.New("execution already exists")

// ExecutionRepository stores each execution as executions/<id>.json and its
// log rows as a single array in execution_logs/<id>.json.
type ExecutionRepository struct {
	mu   sync.Mutex
	root string
	// logOwners maps a log id to the execution that owns it.
	logOwners map[string]string
}

// NewExecutionRepository creates a new execution repository.
func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{root: root, logOwners: make(map[string]string)}
}

func (er *ExecutionRepository) executionPath(id string) string {
	return filepath.Join(er.root, "executions", id+".json")
}

func (er *ExecutionRepository) logsPath(executionID string) string {
	return filepath.Join(er.root, "execution_logs", executionID+".json")
}

// Create stores a new execution. An empty ID is generated.
func (er *ExecutionRepository) Create(_ context.Context, execution *models.Execution) error {
	if execution.ID == "" {
		execution.ID = uuid.Must(uuid.NewV7()).String()
	}

	if err := validateID(execution.ID); err != nil {
		return persistence.NewExecutionError("Create", execution.ID, err)
	}

	er.mu.Lock()
	defer er.mu.Unlock()

	if _, err := os.Stat(er.executionPath(execution.ID)); err == nil {
		return persistence.NewExecutionError("Create", execution.ID, fmt.Errorf("%w: %w", persistence.ErrPersistence, errExecutionExists))
	}

	now := time.Now().UTC()
	if execution.CreatedAt.IsZero() {
		execution.CreatedAt = now
	}

	execution.UpdatedAt = now

	if execution.Status == "" {
		execution.Status = models.ExecutionStatusPending
	}

	if execution.InputData == nil {
		execution.InputData = make(map[string]any)
	}

	if execution.Variables == nil {
		execution.Variables = make(map[string]any)
	}

	if err := writeJSON(er.executionPath(execution.ID), execution); err != nil {
		return persistence.NewExecutionError("Create", execution.ID, fmt.Errorf("%w: %w", persistence.ErrPersistence, err))
	}

	return nil
}

func (er *ExecutionRepository) GetByID(_ context.Context, id string) (*models.Execution, error) {
	if err := validateID(id); err != nil {
		return nil, persistence.NewExecutionError("GetByID", id, err)
	}

	er.mu.Lock()
	defer er.mu.Unlock()

	return er.readExecution("GetByID", id)
}

func (er *ExecutionRepository) readExecution(op, id string) (*models.Execution, error) {
	var execution models.Execution

	err := readJSON(er.executionPath(id), &execution)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewExecutionError(op, id, persistence.ErrExecutionNotFound)
		}

		return nil, persistence.NewExecutionError(op, id, fmt.Errorf("%w: %w", persistence.ErrPersistence, err))
	}

	return &execution, nil
}

// Update applies a partial update under the repository lock.
func (er *ExecutionRepository) Update(_ context.Context, id string, update models.ExecutionUpdate) error {
	if err := validateID(id); err != nil {
		return persistence.NewExecutionError("Update", id, err)
	}

	er.mu.Lock()
	defer er.mu.Unlock()

	execution, err := er.readExecution("Update", id)
	if err != nil {
		return err
	}

	update.Apply(execution)
	execution.UpdatedAt = time.Now().UTC()

	if err := writeJSON(er.executionPath(id), execution); err != nil {
		return persistence.NewExecutionError("Update", id, fmt.Errorf("%w: %w", persistence.ErrPersistence, err))
	}

	return nil
}

// ListByStatus returns the executions in the given status, oldest first.
func (er *ExecutionRepository) ListByStatus(_ context.Context, status models.ExecutionStatus) ([]*models.Execution, error) {
	er.mu.Lock()
	defer er.mu.Unlock()

	ids, err := jsonFiles(filepath.Join(er.root, "executions"))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list execution files: %w", persistence.ErrPersistence, err)
	}

	executions := make([]*models.Execution, 0)

	for _, id := range ids {
		execution, err := er.readExecution("ListByStatus", id)
		if err != nil {
			return nil, err
		}

		if execution.Status == status {
			executions = append(executions, execution)
		}
	}

	slices.SortFunc(executions, func(a, b *models.Execution) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}

		return cmp.Compare(a.ID, b.ID)
	})

	return executions, nil
}

// Delete removes the execution and its log file.
func (er *ExecutionRepository) Delete(_ context.Context, id string) error {
	if err := validateID(id); err != nil {
		return persistence.NewExecutionError("Delete", id, err)
	}

	er.mu.Lock()
	defer er.mu.Unlock()

	if err := os.Remove(er.executionPath(id)); err != nil {
		if os.IsNotExist(err) {
			return persistence.NewExecutionError("Delete", id, persistence.ErrExecutionNotFound)
		}

		return persistence.NewExecutionError("Delete", id, fmt.Errorf("%w: %w", persistence.ErrPersistence, err))
	}

	if err := os.Remove(er.logsPath(id)); err != nil && !os.IsNotExist(err) {
		return persistence.NewExecutionError("Delete", id, fmt.Errorf("%w: %w", persistence.ErrPersistence, err))
	}

	for logID, owner := range er.logOwners {
		if owner == id {
			delete(er.logOwners, logID)
		}
	}

	return nil
}

// CreateLog appends a log row to the execution's log file.
func (er *ExecutionRepository) CreateLog(_ context.Context, log *models.ExecutionLog) (string, error) {
	if err := validateID(log.ExecutionID); err != nil {
		return "", persistence.NewExecutionError("CreateLog", log.ExecutionID, err)
	}

	if log.ID == "" {
		log.ID = uuid.Must(uuid.NewV7()).String()
	}

	if log.StartedAt.IsZero() {
		log.StartedAt = time.Now().UTC()
	}

	er.mu.Lock()
	defer er.mu.Unlock()

	if _, err := os.Stat(er.executionPath(log.ExecutionID)); err != nil {
		return "", persistence.NewExecutionError("CreateLog", log.ExecutionID, persistence.ErrExecutionNotFound)
	}

	logs, err := er.readLogs(log.ExecutionID)
	if err != nil {
		return "", persistence.NewExecutionError("CreateLog", log.ExecutionID, err)
	}

	logs = append(logs, log)

	if err := writeJSON(er.logsPath(log.ExecutionID), logs); err != nil {
		return "", persistence.NewExecutionError("CreateLog", log.ExecutionID, fmt.Errorf("%w: %w", persistence.ErrPersistence, err))
	}

	er.logOwners[log.ID] = log.ExecutionID

	return log.ID, nil
}

// UpdateLog applies a partial update to a log row.
func (er *ExecutionRepository) UpdateLog(_ context.Context, id string, update models.LogUpdate) error {
	er.mu.Lock()
	defer er.mu.Unlock()

	executionID, err := er.ownerOf(id)
	if err != nil {
		return persistence.NewLogError("UpdateLog", id, err)
	}

	logs, err := er.readLogs(executionID)
	if err != nil {
		return persistence.NewLogError("UpdateLog", id, err)
	}

	index := slices.IndexFunc(logs, func(l *models.ExecutionLog) bool { return l.ID == id })
	if index < 0 {
		return persistence.NewLogError("UpdateLog", id, persistence.ErrLogNotFound)
	}

	update.Apply(logs[index])

	if err := writeJSON(er.logsPath(executionID), logs); err != nil {
		return persistence.NewLogError("UpdateLog", id, fmt.Errorf("%w: %w", persistence.ErrPersistence, err))
	}

	return nil
}

// ListLogs returns the log rows of an execution ordered by start time.
func (er *ExecutionRepository) ListLogs(_ context.Context, executionID string) ([]*models.ExecutionLog, error) {
	if err := validateID(executionID); err != nil {
		return nil, persistence.NewExecutionError("ListLogs", executionID, err)
	}

	er.mu.Lock()
	defer er.mu.Unlock()

	logs, err := er.readLogs(executionID)
	if err != nil {
		return nil, persistence.NewExecutionError("ListLogs", executionID, err)
	}

	slices.SortStableFunc(logs, func(a, b *models.ExecutionLog) int {
		return a.StartedAt.Compare(b.StartedAt)
	})

	return logs, nil
}

func (er *ExecutionRepository) readLogs(executionID string) ([]*models.ExecutionLog, error) {
	logs := make([]*models.ExecutionLog, 0)

	err := readJSON(er.logsPath(executionID), &logs)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %w", persistence.ErrPersistence, err)
	}

	return logs, nil
}

// ownerOf finds the execution owning a log row, scanning the log files when
// the row was written by another process.
func (er *ExecutionRepository) ownerOf(logID string) (string, error) {
	if owner, ok := er.logOwners[logID]; ok {
		return owner, nil
	}

	executionIDs, err := jsonFiles(filepath.Join(er.root, "execution_logs"))
	if err != nil {
		return "", fmt.Errorf("%w: %w", persistence.ErrPersistence, err)
	}

	for _, executionID := range executionIDs {
		logs, err := er.readLogs(executionID)
		if err != nil {
			return "", err
		}

		for _, log := range logs {
			er.logOwners[log.ID] = executionID
		}
	}

	if owner, ok := er.logOwners[logID]; ok {
		return owner, nil
	}

	return "", persistence.ErrLogNotFound
}
