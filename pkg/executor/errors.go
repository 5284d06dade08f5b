package executor

import (
	"errors"
	"fmt"

	"github.com/dukex/nodeflow/pkg/models"
)

var (
	ErrExecutionNotPending = errors.New("execution is not pending")
	ErrCancelled           = errors.New("execution cancelled")
)

// HandlerError is a failure raised by a node handler.
type HandlerError struct {
	NodeID   string
	NodeType models.NodeType
	Err      error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("node %s (%s) failed: %v", e.NodeID, e.NodeType, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// ExecutionError is a terminal failure of an execution. Its message is
// recorded on the execution row.
type ExecutionError struct {
	ExecutionID string
	NodeID      string
	Err         error
}

func (e *ExecutionError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("execution %s failed at node %s: %v", e.ExecutionID, e.NodeID, e.Err)
	}

	return fmt.Sprintf("execution %s failed: %v", e.ExecutionID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsCancelled reports whether err is the result of a cancelled execution.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
