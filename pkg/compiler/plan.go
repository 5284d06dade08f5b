package compiler

import (
	"slices"

	"github.com/dukex/nodeflow/pkg/models"
)

// CompiledWorkflow is the validated execution plan of a workflow. It is not
// modified after Compile returns and may be shared between goroutines.
type CompiledWorkflow struct {
	WorkflowID       string
	Nodes            map[string]*models.Node
	Edges            []*models.Edge
	ExecutionOrder   []string
	Adjacency        map[string][]*models.Edge
	ReverseAdjacency map[string][]*models.Edge
	EntryID          string
	TerminalIDs      []string
	LoopNodeIDs      []string
	Reachable        map[string]bool
	BackEdges        map[*models.Edge]bool
}

// Node returns the node with the given id.
func (c *CompiledWorkflow) Node(id string) (*models.Node, bool) {
	node, ok := c.Nodes[id]

	return node, ok
}

// Entry returns the entry node.
func (c *CompiledWorkflow) Entry() *models.Node {
	return c.Nodes[c.EntryID]
}

// Outgoing returns the edges leaving id in definition order.
func (c *CompiledWorkflow) Outgoing(id string) []*models.Edge {
	return c.Adjacency[id]
}

// Incoming returns the edges entering id in definition order.
func (c *CompiledWorkflow) Incoming(id string) []*models.Edge {
	return c.ReverseAdjacency[id]
}

// IsBackEdge reports whether edge closes a cycle into a loop node, that is
// its target is a loop and its source is reachable from that loop.
func (c *CompiledWorkflow) IsBackEdge(edge *models.Edge) bool {
	return c.BackEdges[edge]
}

func (c *CompiledWorkflow) IsReachable(id string) bool {
	return c.Reachable[id]
}

func (c *CompiledWorkflow) IsTerminal(id string) bool {
	return slices.Contains(c.TerminalIDs, id)
}
