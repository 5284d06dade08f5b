// Package llm provides the llm node, which completes a prompt through the
// model provider registry.
package llm

import (
	"context"
	"fmt"

	"github.com/dukex/nodeflow/pkg/llm"
	"github.com/dukex/nodeflow/pkg/protocol"
	"github.com/dukex/nodeflow/pkg/state"
)

const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1024
)

// LLMConfig defines the configuration for llm nodes.
type LLMConfig struct {
	Prompt       string   `json:"prompt"`
	SystemPrompt string   `json:"system_prompt"`
	Model        string   `json:"model"`
	Temperature  *float64 `json:"temperature"`
	MaxTokens    int      `json:"max_tokens"`
}

type LLMNode struct {
	id     string
	config LLMConfig
	models llm.Registry
}

func NewLLMNode(id string, config map[string]any, models llm.Registry) (*LLMNode, error) {
	var llmConfig LLMConfig
	if err := protocol.DecodeConfig(config, &llmConfig); err != nil {
		return nil, err
	}

	if llmConfig.MaxTokens <= 0 {
		llmConfig.MaxTokens = DefaultMaxTokens
	}

	return &LLMNode{id: id, config: llmConfig, models: models}, nil
}

func (n *LLMNode) ID() string {
	return n.id
}

// Execute sends the interpolated prompt to the configured model. Provider
// failures are returned as {response: nil, error}.
func (n *LLMNode) Execute(ctx context.Context, st *state.ExecutionState) (map[string]any, error) {
	provider, tier := llm.ParseModel(n.config.Model)

	client, err := n.models.GetClient(provider, tier)
	if err != nil {
		return failure(fmt.Errorf("failed to resolve model %q: %w", n.config.Model, err)), nil
	}

	temperature := DefaultTemperature
	if n.config.Temperature != nil {
		temperature = *n.config.Temperature
	}

	response, err := client.Complete(ctx, llm.CompletionRequest{
		Prompt:       st.InterpolateString(n.config.Prompt),
		SystemPrompt: st.InterpolateString(n.config.SystemPrompt),
		MaxTokens:    n.config.MaxTokens,
		Temperature:  temperature,
	})
	if err != nil {
		return failure(err), nil
	}

	return map[string]any{
		"response": response,
		"model":    n.config.Model,
		"provider": provider,
		"tier":     tier,
	}, nil
}

func failure(err error) map[string]any {
	return map[string]any{
		"response": nil,
		"error":    err.Error(),
	}
}
