// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/google/uuid"
)

// CreateTestNode creates a test Node with default values that can be overridden.
func CreateTestNode(overrides ...func(*models.Node)) *models.Node {
	node := &models.Node{
		ID:     uuid.NewString(),
		Type:   models.NodeTypeCode,
		Label:  "Test Node",
		Config: map[string]any{"code": "result = 1"},
	}

	for _, override := range overrides {
		override(node)
	}

	return node
}

// Node is a shorthand for CreateTestNode with an id, a type and a config.
func Node(id string, nodeType models.NodeType, config map[string]any) *models.Node {
	return CreateTestNode(WithID(id), WithType(nodeType), WithConfig(config))
}

// WithID sets the node ID.
func WithID(id string) func(*models.Node) {
	return func(n *models.Node) {
		n.ID = id
	}
}

// WithType sets the node type.
func WithType(nodeType models.NodeType) func(*models.Node) {
	return func(n *models.Node) {
		n.Type = nodeType
	}
}

// WithConfig sets the node configuration.
func WithConfig(config map[string]any) func(*models.Node) {
	return func(n *models.Node) {
		n.Config = config
	}
}

// WithLabel sets the node label.
func WithLabel(label string) func(*models.Node) {
	return func(n *models.Node) {
		n.Label = label
	}
}

// WithOutputs sets the output promotion mapping.
func WithOutputs(outputs map[string]string) func(*models.Node) {
	return func(n *models.Node) {
		n.Outputs = outputs
	}
}

// CreateTestEdge creates an edge between two nodes.
func CreateTestEdge(sourceID, targetID string, edgeType models.EdgeType) *models.Edge {
	return &models.Edge{
		ID:       uuid.NewString(),
		SourceID: sourceID,
		TargetID: targetID,
		EdgeType: edgeType,
	}
}

// Edge is a shorthand for a default edge.
func Edge(sourceID, targetID string) *models.Edge {
	return CreateTestEdge(sourceID, targetID, models.EdgeTypeDefault)
}

// CreateTestWorkflow creates a test workflow from nodes and edges.
func CreateTestWorkflow(nodes []*models.Node, edges []*models.Edge) *models.Workflow {
	now := time.Now().UTC()

	return &models.Workflow{
		ID:          uuid.NewString(),
		Name:        "Test Workflow",
		Version:     "1",
		Description: "A workflow for testing",
		Nodes:       nodes,
		Edges:       edges,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// CreateTestWorkflowWithNodes creates a linear start -> code -> end workflow.
func CreateTestWorkflowWithNodes() *models.Workflow {
	return CreateTestWorkflow(
		[]*models.Node{
			Node("start", models.NodeTypeStart, nil),
			Node("double", models.NodeTypeCode, map[string]any{"code": "result = input_data.get('n', 0) * 2"}),
			Node("end", models.NodeTypeEnd, nil),
		},
		[]*models.Edge{
			Edge("start", "double"),
			Edge("double", "end"),
		},
	)
}

// CreateTestExecution creates a pending execution of workflowID.
func CreateTestExecution(workflowID string, inputData map[string]any) *models.Execution {
	now := time.Now().UTC()

	return &models.Execution{
		ID:         uuid.NewString(),
		WorkflowID: workflowID,
		UserID:     "test-user",
		Status:     models.ExecutionStatusPending,
		InputData:  inputData,
		Variables:  map[string]any{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
