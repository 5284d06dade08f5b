// Package models defines the core domain models for graph-based workflow execution
package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Workflow is an authored directed graph of typed nodes. A workflow exclusively
// owns its nodes and edges.
type Workflow struct {
	ID          string    `json:"id"                    yaml:"id"                    validate:"required"`
	Name        string    `json:"name"                  yaml:"name"                  validate:"required,min=1"`
	Version     string    `json:"version"               yaml:"version"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Nodes       []*Node   `json:"nodes"                 yaml:"nodes"                 validate:"dive"`
	Edges       []*Edge   `json:"edges"                 yaml:"edges"                 validate:"dive"`
	CreatedAt   time.Time `json:"created_at"            yaml:"-"`
	UpdatedAt   time.Time `json:"updated_at"            yaml:"-"`
}

// NodeByID returns the node with the given id, or nil.
func (w *Workflow) NodeByID(id string) *Node {
	for _, node := range w.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrInvalidWorkflow is wrapped by every error returned from ValidateWorkflow.
var ErrInvalidWorkflow = errors.New("invalid workflow")

// ValidateWorkflow performs structural validation of a workflow definition.
// Graph rules (entry count, cycles, endpoints) are left to the compiler.
func ValidateWorkflow(workflow *Workflow) error {
	if workflow == nil {
		return fmt.Errorf("%w: workflow is nil", ErrInvalidWorkflow)
	}

	for _, edge := range workflow.Edges {
		if edge != nil && edge.EdgeType == "" {
			edge.EdgeType = EdgeTypeDefault
		}
	}

	if err := validate.Struct(workflow); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidWorkflow, err)
	}

	return nil
}
