package llm

import (
	"context"
	"errors"

	"github.com/dukex/nodeflow/pkg/llm"
	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/protocol"
)

var errNoModels = errors.New("llm node requires a model registry")

type LLMNodeFactory struct {
	models llm.Registry
}

func NewLLMNodeFactory(models llm.Registry) protocol.NodeFactory {
	return &LLMNodeFactory{models: models}
}

func (f *LLMNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	if f.models == nil {
		return nil, errNoModels
	}

	return NewLLMNode(id, config, f.models)
}

func (f *LLMNodeFactory) ID() string {
	return "llm"
}

func (f *LLMNodeFactory) Types() []models.NodeType {
	return []models.NodeType{models.NodeTypeLLM}
}

func (f *LLMNodeFactory) Name() string {
	return "LLM"
}

func (f *LLMNodeFactory) Description() string {
	return "Completes a prompt with a language model chosen by provider and tier"
}

func (f *LLMNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"prompt": map[string]any{
				"type":        "string",
				"description": "Prompt text. Supports {{ path }} interpolation",
			},
			"system_prompt": map[string]any{
				"type": "string",
			},
			"model": map[string]any{
				"type":        "string",
				"description": "Model reference as provider:tier. Empty parts select the registry defaults",
				"examples":    []string{"openai:fast", "anthropic:powerful", "ollama"},
			},
			"temperature": map[string]any{
				"type":    "number",
				"default": DefaultTemperature,
				"minimum": 0,
				"maximum": 2,
			},
			"max_tokens": map[string]any{
				"type":    "integer",
				"default": DefaultMaxTokens,
				"minimum": 1,
			},
		},
		"required": []string{"prompt"},
	}
}
