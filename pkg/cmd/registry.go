// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"log/slog"
	"net/http"

	"github.com/dukex/nodeflow/pkg/agents"
	"github.com/dukex/nodeflow/pkg/knowledge"
	"github.com/dukex/nodeflow/pkg/llm"
	"github.com/dukex/nodeflow/pkg/registry"
	"github.com/dukex/nodeflow/pkg/sandbox"
	"github.com/dukex/nodeflow/pkg/tools"
)

// ModelConfig selects the model providers available to llm and knowledge nodes.
type ModelConfig struct {
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnthropicAPIKey string
	OllamaURL       string
	DefaultProvider string
}

// NewModelRegistry registers every provider with credentials in cfg.
func NewModelRegistry(cfg ModelConfig) (*llm.ProviderRegistry, error) {
	models := llm.NewProviderRegistry()

	if cfg.OpenAIAPIKey != "" {
		models.Register(llm.NewOpenAIProvider(llm.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
		}))
	}

	if cfg.AnthropicAPIKey != "" {
		models.Register(llm.NewAnthropicProvider(llm.AnthropicConfig{APIKey: cfg.AnthropicAPIKey}))
	}

	if cfg.OllamaURL != "" {
		models.Register(llm.NewOllamaProvider(llm.OllamaConfig{ServerURL: cfg.OllamaURL}))
	}

	if cfg.DefaultProvider != "" {
		if err := models.SetDefault(cfg.DefaultProvider); err != nil {
			return nil, err
		}
	}

	return models, nil
}

// RegistryOptions carries the collaborators of the built-in nodes. Nil
// fields get empty in-memory registries.
type RegistryOptions struct {
	HTTPClient *http.Client
	Models     llm.Registry
	Tools      *tools.Registry
	Agents     *agents.Registry
	Knowledge  knowledge.VectorStore
	Sandbox    sandbox.Options
}

// NewRegistry creates a node registry with every built-in node registered.
func NewRegistry(log *slog.Logger, opts RegistryOptions) *registry.Registry {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	if opts.Tools == nil {
		opts.Tools = tools.NewRegistry()
	}

	if opts.Agents == nil {
		opts.Agents = agents.NewRegistry()
	}

	if opts.Knowledge == nil {
		opts.Knowledge = knowledge.NewMemoryStore()
	}

	reg := registry.NewRegistry(log)
	reg.RegisterDefaultNodes(registry.Dependencies{
		HTTPClient: opts.HTTPClient,
		Sandbox:    sandbox.NewRunner(log, opts.Sandbox),
		Models:     opts.Models,
		Tools:      opts.Tools,
		Agents:     opts.Agents,
		Knowledge:  opts.Knowledge,
	})

	return reg
}
