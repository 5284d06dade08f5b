// Package knowledge provides vector similarity search over knowledge chunks.
package knowledge

import (
	"cmp"
	"context"
	"errors"
	"math"
	"slices"
	"sync"
)

// ErrDimensionMismatch indicates a query embedding does not match stored vectors.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Chunk is an embedded piece of a knowledge document.
type Chunk struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"document_id,omitempty"`
	Content    string         `json:"content"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Embedding  []float64      `json:"-"`
}

// Match is a search hit.
type Match struct {
	Chunk
	Score float64 `json:"score"`
}

// Map renders the match for node outputs.
func (m Match) Map() map[string]any {
	return map[string]any{
		"id":          m.ID,
		"document_id": m.DocumentID,
		"content":     m.Content,
		"metadata":    m.Metadata,
		"score":       m.Score,
	}
}

// VectorStore answers similarity queries.
type VectorStore interface {
	Search(ctx context.Context, embedding []float64, topK int) ([]Match, error)
}

// MemoryStore is an in-memory VectorStore using cosine similarity.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks []Chunk
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Add(chunks ...Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.chunks = append(s.chunks, chunks...)
}

func (s *MemoryStore) Search(ctx context.Context, embedding []float64, topK int) ([]Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]Match, 0, len(s.chunks))

	for _, chunk := range s.chunks {
		if len(chunk.Embedding) != len(embedding) {
			return nil, ErrDimensionMismatch
		}

		matches = append(matches, Match{Chunk: chunk, Score: CosineSimilarity(embedding, chunk.Embedding)})
	}

	slices.SortStableFunc(matches, func(a, b Match) int {
		return cmp.Compare(b.Score, a.Score)
	})

	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}

	return matches, nil
}

// CosineSimilarity returns the cosine of the angle between a and b, or 0 when
// either vector has zero length.
func CosineSimilarity(a, b []float64) float64 {
	var dot, normA, normB float64

	for i := range min(len(a), len(b)) {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
