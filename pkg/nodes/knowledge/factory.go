package knowledge

import (
	"context"
	"errors"

	"github.com/dukex/nodeflow/pkg/knowledge"
	"github.com/dukex/nodeflow/pkg/llm"
	"github.com/dukex/nodeflow/pkg/models"
	"github.com/dukex/nodeflow/pkg/protocol"
)

var errMissingCollaborators = errors.New("knowledge node requires a model registry and a vector store")

type KnowledgeNodeFactory struct {
	models llm.Registry
	store  knowledge.VectorStore
}

func NewKnowledgeNodeFactory(models llm.Registry, store knowledge.VectorStore) protocol.NodeFactory {
	return &KnowledgeNodeFactory{models: models, store: store}
}

func (f *KnowledgeNodeFactory) Create(_ context.Context, id string, config map[string]any) (protocol.Node, error) {
	if f.models == nil || f.store == nil {
		return nil, errMissingCollaborators
	}

	return NewKnowledgeNode(id, config, f.models, f.store)
}

func (f *KnowledgeNodeFactory) ID() string {
	return "knowledge"
}

func (f *KnowledgeNodeFactory) Types() []models.NodeType {
	return []models.NodeType{models.NodeTypeKnowledge}
}

func (f *KnowledgeNodeFactory) Name() string {
	return "Knowledge"
}

func (f *KnowledgeNodeFactory) Description() string {
	return "Searches the knowledge base for chunks similar to a query"
}

func (f *KnowledgeNodeFactory) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Search query. Supports {{ path }} interpolation",
			},
			"top_k": map[string]any{
				"type":    "integer",
				"default": DefaultTopK,
				"minimum": 1,
			},
			"model": map[string]any{
				"type":        "string",
				"description": "Embedding model as provider:tier",
			},
		},
		"required": []string{"query"},
	}
}
