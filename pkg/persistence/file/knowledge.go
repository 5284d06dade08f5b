package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/dukex/nodeflow/pkg/knowledge"
	"github.com/dukex/nodeflow/pkg/persistence"
)

// chunkRecord keeps the embedding that knowledge.Chunk omits from JSON.
type chunkRecord struct {
	knowledge.Chunk

	Embedding []float64 `json:"embedding"`
}

// KnowledgeRepository stores knowledge chunks in knowledge/chunks.json and
// searches them in memory.
type KnowledgeRepository struct {
	mu   sync.RWMutex
	root string
}

func NewKnowledgeRepository(root string) *KnowledgeRepository {
	return &KnowledgeRepository{root: root}
}

func (kr *KnowledgeRepository) path() string {
	return filepath.Join(kr.root, "knowledge", "chunks.json")
}

// SaveChunks inserts chunks, replacing existing chunks with the same id.
func (kr *KnowledgeRepository) SaveChunks(_ context.Context, chunks []knowledge.Chunk) error {
	kr.mu.Lock()
	defer kr.mu.Unlock()

	records, err := kr.read()
	if err != nil {
		return err
	}

	for _, chunk := range chunks {
		if chunk.ID == "" {
			return fmt.Errorf("%w: chunk id cannot be empty", persistence.ErrInvalidID)
		}

		record := chunkRecord{Chunk: chunk, Embedding: chunk.Embedding}

		index := slices.IndexFunc(records, func(r chunkRecord) bool { return r.ID == chunk.ID })
		if index >= 0 {
			records[index] = record
		} else {
			records = append(records, record)
		}
	}

	if err := writeJSON(kr.path(), records); err != nil {
		return fmt.Errorf("%w: %w", persistence.ErrPersistence, err)
	}

	return nil
}

// Search ranks the stored chunks by cosine similarity to embedding.
func (kr *KnowledgeRepository) Search(ctx context.Context, embedding []float64, topK int) ([]knowledge.Match, error) {
	kr.mu.RLock()
	records, err := kr.read()
	kr.mu.RUnlock()

	if err != nil {
		return nil, err
	}

	store := knowledge.NewMemoryStore()

	for _, record := range records {
		chunk := record.Chunk
		chunk.Embedding = record.Embedding
		store.Add(chunk)
	}

	return store.Search(ctx, embedding, topK)
}

func (kr *KnowledgeRepository) read() ([]chunkRecord, error) {
	records := make([]chunkRecord, 0)

	err := readJSON(kr.path(), &records)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %w", persistence.ErrPersistence, err)
	}

	return records, nil
}
