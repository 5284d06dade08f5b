package agent

import (
	"context"
	"errors"

	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/protocol"
)

var errNoRegistry = errors.New("agent node requires an agent registry")

type AgentNodeFactory struct {
	agents Resolver
}

func NewAgentNodeFactory(resolver Resolver) protocol.NodeFactory {
	return &AgentNodeFactory{agents: resolver}
}

func (f *AgentNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	if f.agents == nil {
		return nil, errNoRegistry
	}

	return NewAgentNode(id, config, f.agents), nil
}

func (f *AgentNodeFactory) ID() string {
	return "agent"
}

func (f *AgentNodeFactory) Types() []models.NodeType {
	return []models.NodeType{models.NodeTypeAgent}
}

func (f *AgentNodeFactory) Name() string {
	return "Agent"
}

func (f *AgentNodeFactory) Description() string {
	return "Delegates a natural language task to a registered agent"
}

func (f *AgentNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"agent_name": map[string]any{
				"type":        "string",
				"description": "Exact agent name. When absent or unknown the agent is chosen from the task",
			},
			"task": map[string]any{
				"type":        "string",
				"description": "Task description. Supports {{ path }} interpolation",
			},
			"context": map[string]any{
				"type":        "object",
				"description": "Extra context passed to the agent",
			},
		},
		"required": []string{"task"},
	}
}
