// Package knowledge provides the knowledge node, which runs a similarity
// search over the knowledge store.
package knowledge

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/nodeflow/pkg/knowledge"
	"github.com/dukex/nodeflow/pkg/llm"
	"github.com/dukex/nodeflow/pkg/protocol"
	"github.com/dukex/nodeflow/pkg/state"
)

const DefaultTopK = 5

var errEmptyQuery = errors.New("query is empty")

// KnowledgeConfig defines the configuration for knowledge nodes.
type KnowledgeConfig struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
	Model string `json:"model"`
}

type KnowledgeNode struct {
	id     string
	config KnowledgeConfig
	models llm.Registry
	store  knowledge.VectorStore
}

func NewKnowledgeNode(id string, config map[string]any, models llm.Registry, store knowledge.VectorStore) (*KnowledgeNode, error) {
	var knowledgeConfig KnowledgeConfig
	if err := protocol.DecodeConfig(config, &knowledgeConfig); err != nil {
		return nil, err
	}

	if knowledgeConfig.TopK <= 0 {
		knowledgeConfig.TopK = DefaultTopK
	}

	return &KnowledgeNode{
		id:     id,
		config: knowledgeConfig,
		models: models,
		store:  store,
	}, nil
}

func (n *KnowledgeNode) ID() string {
	return n.id
}

// Execute embeds the interpolated query and returns the top_k closest chunks.
func (n *KnowledgeNode) Execute(ctx context.Context, st *state.ExecutionState) (map[string]any, error) {
	query := st.InterpolateString(n.config.Query)

	matches, err := n.search(ctx, query)
	if err != nil {
		return map[string]any{
			"query":   query,
			"results": []any{},
			"top_k":   n.config.TopK,
			"error":   err.Error(),
		}, nil
	}

	results := make([]any, 0, len(matches))
	for _, match := range matches {
		results = append(results, match.Map())
	}

	return map[string]any{
		"query":   query,
		"results": results,
		"top_k":   n.config.TopK,
	}, nil
}

func (n *KnowledgeNode) search(ctx context.Context, query string) ([]knowledge.Match, error) {
	if query == "" {
		return nil, errEmptyQuery
	}

	client, err := n.models.GetClient(llm.ParseModel(n.config.Model))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve embedding model: %w", err)
	}

	embedding, err := client.GenerateEmbeddings(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	return n.store.Search(ctx, embedding, n.config.TopK)
}
