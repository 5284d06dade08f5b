package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/dukex/nodeflow/pkg/llm"
	"github.com/dukex/nodeflow/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	requests []llm.CompletionRequest
	err      error
}

func (c *fakeClient) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	c.requests = append(c.requests, req)
	if c.err != nil {
		return "", c.err
	}

	return "echo: " + req.Prompt, nil
}

func (c *fakeClient) GenerateEmbeddings(context.Context, string) ([]float64, error) {
	return nil, llm.ErrEmbeddingsUnsupported
}

type fakeRegistry struct {
	client    *fakeClient
	providers []string
}

func (r *fakeRegistry) GetClient(provider, tier string) (llm.Client, error) {
	r.providers = append(r.providers, provider+":"+tier)
	if provider == "missing" {
		return nil, llm.ErrUnknownProvider
	}

	return r.client, nil
}

func newState() *state.ExecutionState {
	return state.New("exec-1", "wf-1", "", map[string]any{"topic": "go"}, map[string]any{"tone": "terse"})
}

func TestLLMNode_Execute(t *testing.T) {
	client := &fakeClient{}
	registry := &fakeRegistry{client: client}

	node, err := NewLLMNode("llm", map[string]any{
		"prompt":        "Write about {{input.topic}}",
		"system_prompt": "Be {{vars.tone}}",
		"model":         "openai:fast",
		"temperature":   0.0,
	}, registry)
	require.NoError(t, err)

	result, err := node.Execute(t.Context(), newState())
	require.NoError(t, err)

	assert.Equal(t, "echo: Write about go", result["response"])
	assert.Equal(t, "openai", result["provider"])
	assert.Equal(t, "fast", result["tier"])
	assert.Equal(t, []string{"openai:fast"}, registry.providers)

	require.Len(t, client.requests, 1)
	assert.Equal(t, "Be terse", client.requests[0].SystemPrompt)
	assert.InDelta(t, 0.0, client.requests[0].Temperature, 1e-9)
	assert.Equal(t, DefaultMaxTokens, client.requests[0].MaxTokens)
}

func TestLLMNode_Defaults(t *testing.T) {
	client := &fakeClient{}

	node, err := NewLLMNode("llm", map[string]any{"prompt": "hi", "max_tokens": "64"}, &fakeRegistry{client: client})
	require.NoError(t, err)

	_, err = node.Execute(t.Context(), newState())
	require.NoError(t, err)

	assert.InDelta(t, DefaultTemperature, client.requests[0].Temperature, 1e-9)
	assert.Equal(t, 64, client.requests[0].MaxTokens)
}

func TestLLMNode_Failures(t *testing.T) {
	t.Run("unknown provider", func(t *testing.T) {
		node, err := NewLLMNode("llm", map[string]any{"prompt": "hi", "model": "missing:fast"}, &fakeRegistry{client: &fakeClient{}})
		require.NoError(t, err)

		result, err := node.Execute(t.Context(), newState())
		require.NoError(t, err)
		assert.Nil(t, result["response"])
		assert.Contains(t, result["error"], "unknown model provider")
	})

	t.Run("completion error", func(t *testing.T) {
		client := &fakeClient{err: errors.New("rate limited")}

		node, err := NewLLMNode("llm", map[string]any{"prompt": "hi"}, &fakeRegistry{client: client})
		require.NoError(t, err)

		result, err := node.Execute(t.Context(), newState())
		require.NoError(t, err)
		assert.Nil(t, result["response"])
		assert.Equal(t, "rate limited", result["error"])
	})
}

func TestLLMNodeFactory_RequiresRegistry(t *testing.T) {
	_, err := NewLLMNodeFactory(nil).Create(t.Context(), "llm", map[string]any{"prompt": "hi"})
	require.Error(t, err)
}
