package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dukex/nodeflow/pkg/knowledge"
	"github.com/dukex/nodeflow/pkg/persistence"
	"github.com/lib/pq"
)

// KnowledgeRepository stores knowledge chunks with their embeddings as
// DOUBLE PRECISION arrays and ranks them by cosine similarity.
type KnowledgeRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewKnowledgeRepository(db *sql.DB, logger *slog.Logger) *KnowledgeRepository {
	return &KnowledgeRepository{db: db, logger: logger}
}

// SaveChunks upserts chunks by id in one transaction.
func (r *KnowledgeRepository) SaveChunks(ctx context.Context, chunks []knowledge.Chunk) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %w", persistence.ErrPersistence, err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := `
		INSERT INTO knowledge_chunks (id, document_id, content, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			document_id = EXCLUDED.document_id,
			content = EXCLUDED.content,
			metadata = EXCLUDED.metadata,
			embedding = EXCLUDED.embedding
	`

	for _, chunk := range chunks {
		if chunk.ID == "" {
			return fmt.Errorf("%w: chunk id cannot be empty", persistence.ErrInvalidID)
		}

		metadataJSON, merr := marshalNullable(chunk.Metadata)
		if merr != nil {
			return fmt.Errorf("failed to marshal chunk metadata: %w", merr)
		}

		_, err = tx.ExecContext(ctx, query,
			chunk.ID,
			chunk.DocumentID,
			chunk.Content,
			metadataJSON,
			pq.Array(chunk.Embedding),
		)
		if err != nil {
			return fmt.Errorf("%w: failed to save chunk %s: %w", persistence.ErrPersistence, chunk.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %w", persistence.ErrPersistence, err)
	}

	return nil
}

// Search loads the stored chunks and ranks them against embedding.
func (r *KnowledgeRepository) Search(ctx context.Context, embedding []float64, topK int) ([]knowledge.Match, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, document_id, content, metadata, embedding FROM knowledge_chunks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query knowledge chunks: %w", persistence.ErrPersistence, err)
	}

	defer closeRows(ctx, r.logger, rows)

	store := knowledge.NewMemoryStore()

	for rows.Next() {
		var (
			chunk        knowledge.Chunk
			metadataJSON []byte
		)

		err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content, &metadataJSON, pq.Array(&chunk.Embedding))
		if err != nil {
			return nil, fmt.Errorf("%w: failed to scan knowledge chunk: %w", persistence.ErrPersistence, err)
		}

		if metadataJSON != nil {
			if err := json.Unmarshal(metadataJSON, &chunk.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal chunk metadata: %w", err)
			}
		}

		store.Add(chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: error iterating knowledge chunks: %w", persistence.ErrPersistence, err)
	}

	return store.Search(ctx, embedding, topK)
}
