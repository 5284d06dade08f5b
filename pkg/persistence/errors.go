package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrExecutionNotFound indicates an execution was not found by the given identifier.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrLogNotFound indicates an execution log row was not found.
	ErrLogNotFound = errors.New("execution log not found")

	// ErrInvalidID indicates an identifier that cannot be stored safely.
	ErrInvalidID = errors.New("invalid identifier")

	// ErrPersistence marks failures of the backing store itself.
	ErrPersistence = errors.New("persistence failure")
)

// WorkflowError wraps workflow-related errors with additional context.
type WorkflowError struct {
	Op         string // Operation being performed (e.g., "GetByID", "Save", "Delete")
	WorkflowID string
	Err        error
	Message    string
}

func (e *WorkflowError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s operation failed for workflow %s: %s (%v)", e.Op, e.WorkflowID, e.Message, e.Err)
	}

	return fmt.Sprintf("%s operation failed for workflow %s: %v", e.Op, e.WorkflowID, e.Err)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for workflow errors.
func (e *WorkflowError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkflowError creates a new workflow error with context.
func NewWorkflowError(op, workflowID string, err error) *WorkflowError {
	return &WorkflowError{
		Op:         op,
		WorkflowID: workflowID,
		Err:        err,
	}
}

// ExecutionError wraps execution and execution log errors with context.
type ExecutionError struct {
	Op          string
	ExecutionID string
	LogID       string
	Err         error
}

func (e *ExecutionError) Error() string {
	if e.LogID != "" {
		return fmt.Sprintf("%s operation failed for execution log %s: %v", e.Op, e.LogID, e.Err)
	}

	return fmt.Sprintf("%s operation failed for execution %s: %v", e.Op, e.ExecutionID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func (e *ExecutionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewExecutionError creates a new execution error with context.
func NewExecutionError(op, executionID string, err error) *ExecutionError {
	return &ExecutionError{
		Op:          op,
		ExecutionID: executionID,
		Err:         err,
	}
}

// NewLogError creates a new execution error for a log row.
func NewLogError(op, logID string, err error) *ExecutionError {
	return &ExecutionError{
		Op:    op,
		LogID: logID,
		Err:   err,
	}
}

// IsWorkflowNotFound checks if an error indicates a workflow was not found.
func IsWorkflowNotFound(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound)
}

// IsExecutionNotFound checks if an error indicates an execution was not found.
func IsExecutionNotFound(err error) bool {
	return errors.Is(err, ErrExecutionNotFound)
}

// IsLogNotFound checks if an error indicates a log row was not found.
func IsLogNotFound(err error) bool {
	return errors.Is(err, ErrLogNotFound)
}

// IsNotFound reports any of the not-found errors.
func IsNotFound(err error) bool {
	return IsWorkflowNotFound(err) || IsExecutionNotFound(err) || IsLogNotFound(err)
}
