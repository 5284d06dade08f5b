package compiler

import (
	"errors"
	"fmt"
	"strings"
)

// ErrCompilation is matched by every *CompilationError.
var ErrCompilation = errors.New("workflow compilation failed")

// CompilationError carries every diagnostic found while compiling a workflow.
type CompilationError struct {
	WorkflowID  string
	Diagnostics []string
}

func (e *CompilationError) Error() string {
	return fmt.Sprintf("workflow %s failed to compile: %s", e.WorkflowID, strings.Join(e.Diagnostics, "; "))
}

// Is implements error comparison for compilation errors.
func (e *CompilationError) Is(target error) bool {
	return target == ErrCompilation
}

// IsCompilationError checks if an error is a compilation error.
func IsCompilationError(err error) bool {
	return errors.Is(err, ErrCompilation)
}
