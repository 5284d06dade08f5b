package services

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/persistence"
	"github.com/google/uuid"
)

// UpdateNodeRequest represents the request to update an existing workflow node.
// The node type cannot change.
type UpdateNodeRequest struct {
	Label   string
	Config  map[string]any
	Inputs  map[string]any
	Outputs map[string]string
}

// Node handles graph editing on stored workflows. Edits are validated
// structurally only; a workflow being edited may not compile yet.
type Node struct {
	persistence persistence.Persistence
}

// NewNode creates a new node service.
func NewNode(persistence persistence.Persistence) *Node {
	return &Node{
		persistence: persistence,
	}
}

func (n *Node) load(ctx context.Context, workflowID string) (*models.Workflow, error) {
	workflow, err := n.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		if persistence.IsWorkflowNotFound(err) {
			return nil, persistence.ErrWorkflowNotFound
		}

		return nil, fmt.Errorf("failed to get workflow: %w", err)
	}

	if workflow == nil {
		return nil, persistence.ErrWorkflowNotFound
	}

	return workflow, nil
}

func (n *Node) save(ctx context.Context, workflow *models.Workflow) error {
	if err := models.ValidateWorkflow(workflow); err != nil {
		return NewValidationError("save", "INVALID_WORKFLOW", err.Error(), err)
	}

	workflow.UpdatedAt = time.Now().UTC()

	if err := n.persistence.WorkflowRepository().Save(ctx, workflow); err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}

	return nil
}

// GetNode retrieves a specific node from the specified workflow.
func (n *Node) GetNode(ctx context.Context, workflowID, nodeID string) (*models.Node, error) {
	workflow, err := n.load(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	node := workflow.NodeByID(nodeID)
	if node == nil {
		return nil, ErrNodeNotFound
	}

	return node, nil
}

// AddNode adds node to the workflow, generating an ID when it has none.
func (n *Node) AddNode(ctx context.Context, workflowID string, node *models.Node) (*models.Node, error) {
	if node == nil {
		return nil, ErrInvalidNode
	}

	workflow, err := n.load(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if node.ID == "" {
		node.ID = uuid.New().String()
	}

	if workflow.NodeByID(node.ID) != nil {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, node.ID)
	}

	if node.Config == nil {
		node.Config = make(map[string]any)
	}

	workflow.Nodes = append(workflow.Nodes, node)

	if err := n.save(ctx, workflow); err != nil {
		return nil, err
	}

	return node, nil
}

// UpdateNode replaces the editable fields of a node.
func (n *Node) UpdateNode(ctx context.Context, workflowID, nodeID string, req *UpdateNodeRequest) (*models.Node, error) {
	workflow, err := n.load(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	node := workflow.NodeByID(nodeID)
	if node == nil {
		return nil, ErrNodeNotFound
	}

	node.Label = req.Label
	node.Config = req.Config
	node.Inputs = req.Inputs
	node.Outputs = req.Outputs

	if node.Config == nil {
		node.Config = make(map[string]any)
	}

	if err := n.save(ctx, workflow); err != nil {
		return nil, err
	}

	return node, nil
}

// DeleteNode deletes a node and every edge attached to it.
func (n *Node) DeleteNode(ctx context.Context, workflowID, nodeID string) error {
	workflow, err := n.load(ctx, workflowID)
	if err != nil {
		return err
	}

	if workflow.NodeByID(nodeID) == nil {
		return ErrNodeNotFound
	}

	workflow.Nodes = slices.DeleteFunc(workflow.Nodes, func(node *models.Node) bool {
		return node.ID == nodeID
	})
	workflow.Edges = slices.DeleteFunc(workflow.Edges, func(edge *models.Edge) bool {
		return edge.SourceID == nodeID || edge.TargetID == nodeID
	})

	return n.save(ctx, workflow)
}

// Connect adds an edge between two existing nodes.
func (n *Node) Connect(ctx context.Context, workflowID string, edge *models.Edge) (*models.Edge, error) {
	if edge == nil {
		return nil, ErrInvalidEdge
	}

	workflow, err := n.load(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	for _, endpoint := range []string{edge.SourceID, edge.TargetID} {
		if workflow.NodeByID(endpoint) == nil {
			return nil, NewValidationError("Connect", "UNKNOWN_ENDPOINT",
				fmt.Sprintf("edge endpoint %q is not a node of workflow %s", endpoint, workflowID), ErrInvalidEdge)
		}
	}

	if edge.ID == "" {
		edge.ID = uuid.New().String()
	}

	workflow.Edges = append(workflow.Edges, edge)

	if err := n.save(ctx, workflow); err != nil {
		return nil, err
	}

	return edge, nil
}

// Disconnect removes an edge by its ID.
func (n *Node) Disconnect(ctx context.Context, workflowID, edgeID string) error {
	workflow, err := n.load(ctx, workflowID)
	if err != nil {
		return err
	}

	index := slices.IndexFunc(workflow.Edges, func(edge *models.Edge) bool {
		return edge.ID == edgeID
	})
	if index < 0 {
		return ErrEdgeNotFound
	}

	workflow.Edges = slices.Delete(workflow.Edges, index, index+1)

	return n.save(ctx, workflow)
}
