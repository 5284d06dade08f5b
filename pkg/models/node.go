package models

// NodeType is the closed set of node kinds a workflow may contain.
type NodeType string

const (
	NodeTypeStart        NodeType = "start"
	NodeTypeTrigger      NodeType = "trigger"
	NodeTypeEnd          NodeType = "end"
	NodeTypeOutput       NodeType = "output"
	NodeTypeLLM          NodeType = "llm"
	NodeTypeAgent        NodeType = "agent"
	NodeTypeHTTP         NodeType = "http"
	NodeTypeCode         NodeType = "code"
	NodeTypeConditional  NodeType = "conditional"
	NodeTypeLogic        NodeType = "logic"
	NodeTypeLoop         NodeType = "loop"
	NodeTypeTool         NodeType = "tool"
	NodeTypeAction       NodeType = "action"
	NodeTypeKnowledge    NodeType = "knowledge"
	NodeTypeVerification NodeType = "verification"
)

// NodeTypes lists every valid node type.
var NodeTypes = []NodeType{
	NodeTypeStart, NodeTypeTrigger, NodeTypeEnd, NodeTypeOutput, NodeTypeLLM,
	NodeTypeAgent, NodeTypeHTTP, NodeTypeCode, NodeTypeConditional, NodeTypeLogic,
	NodeTypeLoop, NodeTypeTool, NodeTypeAction, NodeTypeKnowledge, NodeTypeVerification,
}

// EdgeType selects when the executor follows an edge.
type EdgeType string

const (
	EdgeTypeDefault EdgeType = "default"
	EdgeTypeTrue    EdgeType = "true"
	EdgeTypeFalse   EdgeType = "false"
	EdgeTypeSuccess EdgeType = "success"
	EdgeTypeError   EdgeType = "error"
	EdgeTypeItem    EdgeType = "item"
)

// Node is a node instance in a workflow.
type Node struct {
	ID     string         `json:"id"                yaml:"id"                validate:"required"`
	Type   NodeType       `json:"type"              yaml:"type"              validate:"required,oneof=start trigger end output llm agent http code conditional logic loop tool action knowledge verification"`
	Label  string         `json:"label,omitempty"   yaml:"label,omitempty"`
	Config map[string]any `json:"config,omitempty"  yaml:"config,omitempty"`
	Inputs map[string]any `json:"inputs,omitempty"  yaml:"inputs,omitempty"`
	// Outputs maps a handler result key to the variable it is promoted into.
	Outputs map[string]string `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}

func (n *Node) IsEntry() bool {
	return n.Type == NodeTypeStart || n.Type == NodeTypeTrigger
}

func (n *Node) IsTerminal() bool {
	return n.Type == NodeTypeEnd || n.Type == NodeTypeOutput
}

func (n *Node) IsLoop() bool {
	return n.Type == NodeTypeLoop
}

func (n *Node) IsConditional() bool {
	return n.Type == NodeTypeConditional || n.Type == NodeTypeLogic
}

// Edge connects two nodes.
type Edge struct {
	ID           string   `json:"id,omitempty"            yaml:"id,omitempty"`
	SourceID     string   `json:"source_id"               yaml:"source_id"               validate:"required"`
	TargetID     string   `json:"target_id"               yaml:"target_id"               validate:"required"`
	EdgeType     EdgeType `json:"edge_type"               yaml:"edge_type"               validate:"omitempty,oneof=default true false success error item"`
	Condition    string   `json:"condition,omitempty"     yaml:"condition,omitempty"`
	SourceHandle string   `json:"source_handle,omitempty" yaml:"source_handle,omitempty"`
	TargetHandle string   `json:"target_handle,omitempty" yaml:"target_handle,omitempty"`
}

// Type returns the edge type, treating an empty value as default.
func (e *Edge) Type() EdgeType {
	if e.EdgeType == "" {
		return EdgeTypeDefault
	}

	return e.EdgeType
}

// NodeStatus defines the possible states of a node execution.
type NodeStatus string

const (
	NodeStatusPending   NodeStatus = "pending"
	NodeStatusRunning   NodeStatus = "running"
	NodeStatusCompleted NodeStatus = "completed"
	NodeStatusFailed    NodeStatus = "failed"
	NodeStatusSkipped   NodeStatus = "skipped"
)

// NodeResult is the in-memory outcome of one node execution.
type NodeResult struct {
	NodeID     string         `json:"node_id"`
	Type       NodeType       `json:"type"`
	Status     NodeStatus     `json:"status"`
	Input      map[string]any `json:"input,omitempty"`
	Output     map[string]any `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}
