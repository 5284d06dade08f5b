// Package compiler validates a workflow graph and turns it into an immutable
// execution plan.
package compiler

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/xeipuuv/gojsonschema"
)

// SchemaProvider returns the configuration schema of a node type.
type SchemaProvider interface {
	Schema(nodeType models.NodeType) (map[string]any, bool)
}

type Option func(*Compiler)

// WithLogger sets the logger used for non-fatal findings such as unreachable nodes.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) {
		c.logger = logger
	}
}

// WithSchemas enables validation of node configurations against the schemas
// of their node types.
func WithSchemas(schemas SchemaProvider) Option {
	return func(c *Compiler) {
		c.schemas = schemas
	}
}

type Compiler struct {
	logger  *slog.Logger
	schemas SchemaProvider
}

func New(opts ...Option) *Compiler {
	c := &Compiler{logger: slog.Default()}

	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.With("module", "compiler")

	return c
}

// Compile compiles a graph with the default compiler.
func Compile(workflowID string, nodes []*models.Node, edges []*models.Edge) (*CompiledWorkflow, error) {
	return New().Compile(workflowID, nodes, edges)
}

// CompileWorkflow compiles the nodes and edges of workflow.
func (c *Compiler) CompileWorkflow(workflow *models.Workflow) (*CompiledWorkflow, error) {
	return c.Compile(workflow.ID, workflow.Nodes, workflow.Edges)
}

// Compile validates the graph and computes its execution plan. Every
// structural problem is reported in a single *CompilationError.
func (c *Compiler) Compile(workflowID string, nodes []*models.Node, edges []*models.Edge) (*CompiledWorkflow, error) {
	var diagnostics []string

	fail := func() error {
		return &CompilationError{WorkflowID: workflowID, Diagnostics: diagnostics}
	}

	nodeMap := make(map[string]*models.Node, len(nodes))

	for _, node := range nodes {
		if node == nil {
			continue
		}

		if _, exists := nodeMap[node.ID]; exists {
			diagnostics = append(diagnostics, fmt.Sprintf("duplicate node id %q", node.ID))

			continue
		}

		nodeMap[node.ID] = node
	}

	if len(nodeMap) == 0 {
		diagnostics = append(diagnostics, "workflow has no nodes")

		return nil, fail()
	}

	plan := &CompiledWorkflow{
		WorkflowID:       workflowID,
		Nodes:            nodeMap,
		Adjacency:        make(map[string][]*models.Edge, len(nodeMap)),
		ReverseAdjacency: make(map[string][]*models.Edge, len(nodeMap)),
		Reachable:        make(map[string]bool, len(nodeMap)),
		BackEdges:        make(map[*models.Edge]bool),
	}

	for i, edge := range edges {
		if edge == nil {
			continue
		}

		_, sourceOK := nodeMap[edge.SourceID]
		_, targetOK := nodeMap[edge.TargetID]

		if !sourceOK {
			diagnostics = append(diagnostics, fmt.Sprintf("edge %s references unknown source node %q", edgeName(edge, i), edge.SourceID))
		}

		if !targetOK {
			diagnostics = append(diagnostics, fmt.Sprintf("edge %s references unknown target node %q", edgeName(edge, i), edge.TargetID))
		}

		if !sourceOK || !targetOK {
			continue
		}

		plan.Edges = append(plan.Edges, edge)
		plan.Adjacency[edge.SourceID] = append(plan.Adjacency[edge.SourceID], edge)
		plan.ReverseAdjacency[edge.TargetID] = append(plan.ReverseAdjacency[edge.TargetID], edge)
	}

	var entries []string

	for _, id := range sortedIDs(nodeMap) {
		node := nodeMap[id]

		switch {
		case node.IsEntry():
			entries = append(entries, id)
		case node.IsTerminal():
			plan.TerminalIDs = append(plan.TerminalIDs, id)
		case node.IsLoop():
			plan.LoopNodeIDs = append(plan.LoopNodeIDs, id)
		}
	}

	switch len(entries) {
	case 0:
		diagnostics = append(diagnostics, "workflow has no entry node (start or trigger)")
	case 1:
		plan.EntryID = entries[0]
	default:
		diagnostics = append(diagnostics, fmt.Sprintf("workflow has %d entry nodes, expected exactly one: %s", len(entries), strings.Join(entries, ", ")))
	}

	if len(plan.TerminalIDs) == 0 {
		diagnostics = append(diagnostics, "workflow has no terminal node (end or output)")
	}

	diagnostics = append(diagnostics, c.validateConfigs(nodeMap)...)

	if len(diagnostics) > 0 {
		return nil, fail()
	}

	c.markReachable(plan)

	c.markBackEdges(plan)

	order, residual := topologicalOrder(plan)
	if len(residual) > 0 {
		diagnostics = append(diagnostics, fmt.Sprintf("workflow contains a cycle through nodes: %s", strings.Join(findCycle(plan, residual), " -> ")))

		return nil, fail()
	}

	plan.ExecutionOrder = order

	return plan, nil
}

// markReachable runs a breadth first search from the entry node.
func (c *Compiler) markReachable(plan *CompiledWorkflow) {
	queue := []string{plan.EntryID}
	plan.Reachable[plan.EntryID] = true

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		for _, edge := range plan.Adjacency[id] {
			if !plan.Reachable[edge.TargetID] {
				plan.Reachable[edge.TargetID] = true
				queue = append(queue, edge.TargetID)
			}
		}
	}

	for _, id := range sortedIDs(plan.Nodes) {
		if !plan.Reachable[id] {
			c.logger.Warn("node is unreachable from the entry node", "workflow_id", plan.WorkflowID, "node_id", id)
		}
	}
}

// markBackEdges flags the edges that close a cycle through a loop node: the
// target is a loop and the source is reachable from that loop.
func (c *Compiler) markBackEdges(plan *CompiledWorkflow) {
	for _, loopID := range plan.LoopNodeIDs {
		if !plan.Reachable[loopID] {
			continue
		}

		fromLoop := descendants(plan, loopID)

		for _, edge := range plan.ReverseAdjacency[loopID] {
			if plan.Reachable[edge.SourceID] && fromLoop[edge.SourceID] {
				plan.BackEdges[edge] = true
			}
		}
	}
}

// descendants returns the nodes reachable from id, including id itself when
// it lies on a cycle.
func descendants(plan *CompiledWorkflow, id string) map[string]bool {
	seen := make(map[string]bool)
	queue := []string{id}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, edge := range plan.Adjacency[current] {
			if !seen[edge.TargetID] {
				seen[edge.TargetID] = true
				queue = append(queue, edge.TargetID)
			}
		}
	}

	return seen
}

// topologicalOrder runs Kahn's algorithm over reachable nodes, ignoring back
// edges and breaking ties by node id. residual holds the nodes that could not
// be ordered.
func topologicalOrder(plan *CompiledWorkflow) ([]string, map[string]bool) {
	inDegree := make(map[string]int, len(plan.Reachable))

	for id := range plan.Reachable {
		inDegree[id] = 0
	}

	for _, edge := range plan.Edges {
		if countsTowardsOrder(plan, edge) {
			inDegree[edge.TargetID]++
		}
	}

	var ready []string

	for id, degree := range inDegree {
		if degree == 0 {
			ready = append(ready, id)
		}
	}

	slices.Sort(ready)

	order := make([]string, 0, len(inDegree))

	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		for _, edge := range plan.Adjacency[id] {
			if !countsTowardsOrder(plan, edge) {
				continue
			}

			inDegree[edge.TargetID]--
			if inDegree[edge.TargetID] == 0 {
				position, _ := slices.BinarySearch(ready, edge.TargetID)
				ready = slices.Insert(ready, position, edge.TargetID)
			}
		}
	}

	residual := make(map[string]bool)

	for id, degree := range inDegree {
		if degree > 0 {
			residual[id] = true
		}
	}

	return order, residual
}

func countsTowardsOrder(plan *CompiledWorkflow, edge *models.Edge) bool {
	return plan.Reachable[edge.SourceID] && plan.Reachable[edge.TargetID] && !plan.BackEdges[edge]
}

// findCycle returns the node ids of one cycle among the residual nodes of a
// failed topological sort, closing the path with its first node.
func findCycle(plan *CompiledWorkflow, residual map[string]bool) []string {
	const (
		unvisited = iota
		visiting
		done
	)

	marks := make(map[string]int, len(residual))

	var (
		path  []string
		cycle []string
		visit func(id string) bool
	)

	visit = func(id string) bool {
		marks[id] = visiting
		path = append(path, id)

		for _, edge := range plan.Adjacency[id] {
			if !residual[edge.TargetID] || !countsTowardsOrder(plan, edge) {
				continue
			}

			switch marks[edge.TargetID] {
			case visiting:
				start := slices.Index(path, edge.TargetID)
				cycle = append(slices.Clone(path[start:]), edge.TargetID)

				return true
			case unvisited:
				if visit(edge.TargetID) {
					return true
				}
			}
		}

		marks[id] = done
		path = path[:len(path)-1]

		return false
	}

	for _, id := range slices.Sorted(maps.Keys(residual)) {
		if marks[id] == unvisited && visit(id) {
			return cycle
		}
	}

	return slices.Sorted(maps.Keys(residual))
}

// validateConfigs checks node configurations against the node type schemas.
// Properties holding a {{ path }} template are only resolved at run time and
// accept any value here.
func (c *Compiler) validateConfigs(nodes map[string]*models.Node) []string {
	if c.schemas == nil {
		return nil
	}

	var diagnostics []string

	for _, id := range sortedIDs(nodes) {
		node := nodes[id]

		schema, ok := c.schemas.Schema(node.Type)
		if !ok || len(schema) == 0 {
			continue
		}

		config := node.Config
		if config == nil {
			config = map[string]any{}
		}

		result, err := gojsonschema.Validate(
			gojsonschema.NewGoLoader(relaxTemplates(schema, config)),
			gojsonschema.NewGoLoader(config),
		)
		if err != nil {
			diagnostics = append(diagnostics, fmt.Sprintf("node %q: failed to validate config: %v", id, err))

			continue
		}

		for _, desc := range result.Errors() {
			diagnostics = append(diagnostics, fmt.Sprintf("node %q: invalid config: %s", id, desc.String()))
		}
	}

	return diagnostics
}

func relaxTemplates(schema, config map[string]any) map[string]any {
	properties, ok := schema["properties"].(map[string]any)
	if !ok {
		return schema
	}

	relaxed := maps.Clone(properties)

	for key, value := range config {
		if s, isString := value.(string); isString && strings.Contains(s, "{{") {
			relaxed[key] = map[string]any{}
		}
	}

	out := maps.Clone(schema)
	out["properties"] = relaxed

	return out
}

func sortedIDs(nodes map[string]*models.Node) []string {
	return slices.Sorted(maps.Keys(nodes))
}

func edgeName(edge *models.Edge, index int) string {
	if edge.ID != "" {
		return edge.ID
	}

	return fmt.Sprintf("#%d", index)
}
