package agents_test

import (
	"context"
	"testing"

	"github.com/dukex/nodeflow/pkg/agents"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAgent(name string, keywords ...string) *agents.Func {
	return &agents.Func{
		AgentName: name,
		Keywords:  keywords,
		Fn: func(_ context.Context, task string, _ map[string]any) (map[string]any, error) {
			return map[string]any{"handled_by": name, "task": task}, nil
		},
	}
}

func TestRegistry_GetAgent(t *testing.T) {
	registry := agents.NewRegistry()
	registry.Register(newAgent("researcher", "research", "search"))

	agent, ok := registry.GetAgent("researcher")
	require.True(t, ok)
	assert.Equal(t, "researcher", agent.Name())

	_, ok = registry.GetAgent("writer")
	assert.False(t, ok)
}

func TestRegistry_GetAgentForTask(t *testing.T) {
	registry := agents.NewRegistry()
	registry.Register(newAgent("researcher", "research", "search", "find"))
	registry.Register(newAgent("writer", "write", "draft", "summarize"))
	registry.Register(newAgent("editor", "write", "proofread"))
	registry.Register(newAgent(agents.GeneralAgentName, "anything", "write"))

	agent, ok := registry.GetAgentForTask("Please search and find recent papers")
	require.True(t, ok)
	assert.Equal(t, "researcher", agent.Name())

	agent, ok = registry.GetAgentForTask("Write and summarize the findings")
	require.True(t, ok)
	assert.Equal(t, "writer", agent.Name())

	agent, ok = registry.GetAgentForTask("write it")
	require.True(t, ok)
	assert.Equal(t, "editor", agent.Name(), "ties resolve by name")

	_, ok = registry.GetAgentForTask("bake a cake")
	assert.False(t, ok)

	_, ok = registry.GetAgentForTask("")
	assert.False(t, ok)

	result, err := agent.Execute(t.Context(), "write it", nil)
	require.NoError(t, err)
	assert.Equal(t, "editor", result["handled_by"])
}
