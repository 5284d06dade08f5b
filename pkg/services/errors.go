// Package services provides the workflow authoring and execution request
// operations shared by the command line tools and workers.
package services

import (
	"errors"
	"fmt"

	"github.com/dukex/nodeflow/pkg/compiler"
)

// Business Logic Errors.
var (
	// Validation errors.
	ErrInvalidRequest = errors.New("invalid request")
	ErrWorkflowNil    = errors.New("workflow cannot be nil")
	ErrNodesRequired  = errors.New("workflow must have at least one node")
	ErrInvalidNode    = errors.New("invalid node")
	ErrInvalidEdge    = errors.New("invalid edge")

	// Lookup errors.
	ErrNodeNotFound = errors.New("node not found")
	ErrEdgeNotFound = errors.New("edge not found")

	// Conflicts.
	ErrDuplicateNode     = errors.New("node already exists")
	ErrExecutionFinished = errors.New("execution already finished")
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Machine readable error code
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is caused by invalid caller input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrWorkflowNil) ||
		errors.Is(err, ErrNodesRequired) ||
		errors.Is(err, ErrInvalidWorkflow) ||
		errors.Is(err, compiler.ErrCompilation) ||
		errors.Is(err, ErrInvalidNode) ||
		errors.Is(err, ErrInvalidEdge)
}

// IsConflictError checks if an error is a business logic conflict.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrDuplicateNode) ||
		errors.Is(err, ErrExecutionFinished)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}
