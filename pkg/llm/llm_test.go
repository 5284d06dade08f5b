package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dukex/nodeflow/pkg/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
)

type fakeModel struct {
	messages []llms.MessageContent
	options  llms.CallOptions
	reply    string
	err      error
}

func (m *fakeModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	for _, option := range options {
		option(&m.options)
	}

	if m.err != nil {
		return nil, m.err
	}

	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.reply}}}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

type fakeEmbedder struct{}

func (fakeEmbedder) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{0.5, 0.25}
	}

	return out, nil
}

func TestLangchainClient_Complete(t *testing.T) {
	model := &fakeModel{reply: "hello"}
	client := llm.NewLangchainClient(model, nil, "test-model")

	reply, err := client.Complete(t.Context(), llm.CompletionRequest{
		Prompt:       "Say hi",
		SystemPrompt: "Be brief",
		MaxTokens:    64,
		Temperature:  0.2,
	})
	require.NoError(t, err)

	assert.Equal(t, "hello", reply)
	require.Len(t, model.messages, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, model.messages[0].Role)
	assert.Equal(t, llms.TextContent{Text: "Say hi"}, model.messages[1].Parts[0])
	assert.Equal(t, 64, model.options.MaxTokens)
	assert.InDelta(t, 0.2, model.options.Temperature, 1e-9)
	assert.Equal(t, "test-model", model.options.Model)
}

func TestLangchainClient_Errors(t *testing.T) {
	client := llm.NewLangchainClient(&fakeModel{err: errors.New("rate limited")}, nil, "")

	_, err := client.Complete(t.Context(), llm.CompletionRequest{Prompt: "x"})
	require.ErrorContains(t, err, "rate limited")

	_, err = client.GenerateEmbeddings(t.Context(), "x")
	require.ErrorIs(t, err, llm.ErrEmbeddingsUnsupported)
}

func TestLangchainClient_GenerateEmbeddings(t *testing.T) {
	client := llm.NewLangchainClient(&fakeModel{}, fakeEmbedder{}, "")

	embedding, err := client.GenerateEmbeddings(t.Context(), "query")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0.25}, embedding)
}

func TestProviderRegistry_GetClient(t *testing.T) {
	created := map[string]int{}

	registry := llm.NewProviderRegistry()
	for _, name := range []string{"alpha", "beta"} {
		registry.Register(&llm.Provider{
			Name:        name,
			Tiers:       map[string]string{llm.TierFast: name + "-small", llm.TierPowerful: name + "-large"},
			DefaultTier: llm.TierFast,
			Factory: func(model string) (llm.Client, error) {
				created[model]++

				return llm.NewLangchainClient(&fakeModel{reply: model}, nil, model), nil
			},
		})
	}

	client, err := registry.GetClient("", "")
	require.NoError(t, err)

	reply, err := client.Complete(t.Context(), llm.CompletionRequest{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "alpha-small", reply)

	_, err = registry.GetClient("alpha", "")
	require.NoError(t, err)
	assert.Equal(t, 1, created["alpha-small"], "clients are cached per provider and tier")

	require.NoError(t, registry.SetDefault("beta"))

	client, err = registry.GetClient("", llm.TierPowerful)
	require.NoError(t, err)

	reply, err = client.Complete(t.Context(), llm.CompletionRequest{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "beta-large", reply)

	_, err = registry.GetClient("gamma", "")
	require.ErrorIs(t, err, llm.ErrUnknownProvider)

	_, err = registry.GetClient("alpha", "enormous")
	require.ErrorIs(t, err, llm.ErrUnknownTier)

	require.ErrorIs(t, registry.SetDefault("gamma"), llm.ErrUnknownProvider)
	assert.Equal(t, []string{"alpha", "beta"}, registry.Providers())

	_, err = llm.NewProviderRegistry().GetClient("", "")
	require.ErrorIs(t, err, llm.ErrNoProviders)
}

func TestParseModel(t *testing.T) {
	provider, tier := llm.ParseModel("openai:fast")
	assert.Equal(t, "openai", provider)
	assert.Equal(t, "fast", tier)

	provider, tier = llm.ParseModel("anthropic")
	assert.Equal(t, "anthropic", provider)
	assert.Empty(t, tier)

	provider, tier = llm.ParseModel("")
	assert.Empty(t, provider)
	assert.Empty(t, tier)
}
