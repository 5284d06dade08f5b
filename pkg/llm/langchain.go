package llm

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder is implemented by langchaingo models that can embed text.
type Embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// LangchainClient adapts a langchaingo model to Client.
type LangchainClient struct {
	model    llms.Model
	embedder Embedder
	name     string
}

// NewLangchainClient wraps model. embedder may be nil; name, when set, is
// sent as the model option on every call.
func NewLangchainClient(model llms.Model, embedder Embedder, name string) *LangchainClient {
	return &LangchainClient{model: model, embedder: embedder, name: name}
}

func (c *LangchainClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	messages := make([]llms.MessageContent, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, req.SystemPrompt))
	}

	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, req.Prompt))

	options := []llms.CallOption{llms.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		options = append(options, llms.WithMaxTokens(req.MaxTokens))
	}

	if c.name != "" {
		options = append(options, llms.WithModel(c.name))
	}

	resp, err := c.model.GenerateContent(ctx, messages, options...)
	if err != nil {
		return "", fmt.Errorf("completion failed: %w", err)
	}

	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	return resp.Choices[0].Content, nil
}

func (c *LangchainClient) GenerateEmbeddings(ctx context.Context, text string) ([]float64, error) {
	if c.embedder == nil {
		return nil, ErrEmbeddingsUnsupported
	}

	vectors, err := c.embedder.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}

	if len(vectors) == 0 {
		return nil, ErrEmptyResponse
	}

	embedding := make([]float64, len(vectors[0]))
	for i, v := range vectors[0] {
		embedding[i] = float64(v)
	}

	return embedding, nil
}

// OpenAIConfig configures the OpenAI provider.
type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	EmbeddingModel string
	Tiers          map[string]string
}

// NewOpenAIProvider returns an OpenAI provider definition.
func NewOpenAIProvider(cfg OpenAIConfig) *Provider {
	tiers := cfg.Tiers
	if tiers == nil {
		tiers = map[string]string{
			TierFast:     "gpt-4o-mini",
			TierBalanced: "gpt-4o",
			TierPowerful: "gpt-4.1",
		}
	}

	return &Provider{
		Name:        "openai",
		Tiers:       tiers,
		DefaultTier: TierBalanced,
		Factory: func(model string) (Client, error) {
			opts := []openai.Option{openai.WithToken(cfg.APIKey), openai.WithModel(model)}

			if cfg.BaseURL != "" {
				opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
			}

			if cfg.EmbeddingModel != "" {
				opts = append(opts, openai.WithEmbeddingModel(cfg.EmbeddingModel))
			}

			client, err := openai.New(opts...)
			if err != nil {
				return nil, err
			}

			return NewLangchainClient(client, client, ""), nil
		},
	}
}

// AnthropicConfig configures the Anthropic provider.
type AnthropicConfig struct {
	APIKey string
	Tiers  map[string]string
}

// NewAnthropicProvider returns an Anthropic provider definition. Anthropic
// models do not expose embeddings.
func NewAnthropicProvider(cfg AnthropicConfig) *Provider {
	tiers := cfg.Tiers
	if tiers == nil {
		tiers = map[string]string{
			TierFast:     "claude-3-5-haiku-latest",
			TierBalanced: "claude-sonnet-4-0",
			TierPowerful: "claude-opus-4-0",
		}
	}

	return &Provider{
		Name:        "anthropic",
		Tiers:       tiers,
		DefaultTier: TierBalanced,
		Factory: func(model string) (Client, error) {
			client, err := anthropic.New(anthropic.WithToken(cfg.APIKey), anthropic.WithModel(model))
			if err != nil {
				return nil, err
			}

			return NewLangchainClient(client, nil, ""), nil
		},
	}
}

// OllamaConfig configures a local Ollama provider.
type OllamaConfig struct {
	ServerURL string
	Tiers     map[string]string
}

func NewOllamaProvider(cfg OllamaConfig) *Provider {
	tiers := cfg.Tiers
	if tiers == nil {
		tiers = map[string]string{
			TierFast:     "llama3.2",
			TierBalanced: "llama3.1",
			TierPowerful: "llama3.3",
		}
	}

	return &Provider{
		Name:        "ollama",
		Tiers:       tiers,
		DefaultTier: TierFast,
		Factory: func(model string) (Client, error) {
			opts := []ollama.Option{ollama.WithModel(model)}
			if cfg.ServerURL != "" {
				opts = append(opts, ollama.WithServerURL(cfg.ServerURL))
			}

			client, err := ollama.New(opts...)
			if err != nil {
				return nil, err
			}

			return NewLangchainClient(client, client, ""), nil
		},
	}
}
