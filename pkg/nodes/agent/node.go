// Package agent provides the agent node, which delegates a task to a
// registered agent.
package agent

import (
	"context"
	"errors"
	"maps"

	"github.com/dukex/nodeflow/pkg/agents"
	"github.com/dukex/nodeflow/pkg/state"
)

var errNoAgent = errors.New("no agent available for task")

// Resolver finds agents by name or task. *agents.Registry satisfies it.
type Resolver interface {
	GetAgent(name string) (agents.Agent, bool)
	GetAgentForTask(task string) (agents.Agent, bool)
}

type AgentNode struct {
	id          string
	agentName   string
	task        string
	taskContext map[string]any
	agents      Resolver
}

func NewAgentNode(id string, config map[string]any, resolver Resolver) *AgentNode {
	agentName, _ := config["agent_name"].(string)
	task, _ := config["task"].(string)
	taskContext, _ := config["context"].(map[string]any)

	return &AgentNode{
		id:          id,
		agentName:   agentName,
		task:        task,
		taskContext: taskContext,
		agents:      resolver,
	}
}

func (n *AgentNode) ID() string {
	return n.id
}

// Execute picks an agent by exact name, then by task matching, then the
// general agent, and runs the task.
func (n *AgentNode) Execute(ctx context.Context, st *state.ExecutionState) (map[string]any, error) {
	task := st.InterpolateString(n.task)

	selected, ok := n.selectAgent(task)
	if !ok {
		return map[string]any{
			"result": nil,
			"agent":  n.agentName,
			"error":  errNoAgent.Error(),
		}, nil
	}

	taskContext := map[string]any{
		"execution_id": st.ExecutionID(),
		"workflow_id":  st.WorkflowID(),
		"node_id":      n.id,
	}
	maps.Copy(taskContext, n.taskContext)

	result, err := selected.Execute(ctx, task, taskContext)
	if err != nil {
		return map[string]any{
			"result": nil,
			"agent":  selected.Name(),
			"error":  err.Error(),
		}, nil
	}

	return map[string]any{
		"result": result,
		"agent":  selected.Name(),
		"status": "completed",
	}, nil
}

func (n *AgentNode) selectAgent(task string) (agents.Agent, bool) {
	if n.agentName != "" {
		if agent, ok := n.agents.GetAgent(n.agentName); ok {
			return agent, true
		}
	}

	if agent, ok := n.agents.GetAgentForTask(task); ok {
		return agent, true
	}

	return n.agents.GetAgent(agents.GeneralAgentName)
}
