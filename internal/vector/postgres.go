package vector

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// queryTimeout bounds a single similarity search so a slow index cannot
// stall the chat turn it enriches.
const queryTimeout = 10 * time.Second

// Postgres is a pgvector-backed Index. The embedding_records table is
// created by the embedded migrations in the db package; its vector column
// dimension must match the configured embedder dimension.
//
// Postgres is safe for concurrent use; upserts are last-write-wins per id
// via ON CONFLICT DO UPDATE.
type Postgres struct {
	pool      *pgxpool.Pool
	dimension int
	logger    *slog.Logger
}

// NewPostgres creates a Postgres index on an existing pool. The pool is
// owned by the caller. dimension must match the vector column in the schema.
func NewPostgres(pool *pgxpool.Pool, dimension int, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{pool: pool, dimension: dimension, logger: logger}
}

const upsertRecordSQL = `
INSERT INTO embedding_records (id, namespace, embedding, content, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (namespace, id) DO UPDATE
SET embedding = EXCLUDED.embedding,
    content = EXCLUDED.content,
    metadata = EXCLUDED.metadata,
    created_at = EXCLUDED.created_at`

// Upsert stores or replaces a record.
func (p *Postgres) Upsert(ctx context.Context, namespace string, rec Record) error {
	if len(rec.Vector) == 0 {
		return ErrEmptyVector
	}
	if len(rec.Vector) != p.dimension {
		return fmt.Errorf("%w: schema holds %d-dimensional vectors, got %d",
			ErrDimensionMismatch, p.dimension, len(rec.Vector))
	}

	metadataJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	embedding := pgvector.NewVector(rec.Vector)
	_, err = p.pool.Exec(ctx, upsertRecordSQL,
		rec.ID, namespace, &embedding, rec.Content, metadataJSON, rec.Metadata.Timestamp)
	if err != nil {
		return fmt.Errorf("%w: upserting record %q: %w", ErrUnavailable, rec.ID, err)
	}

	p.logger.Debug("upserted embedding record", "id", rec.ID, "namespace", namespace)
	return nil
}

// Cosine distance: similarity = 1 - (embedding <=> query).
const queryRecordsSQL = `
SELECT id, content, metadata, 1 - (embedding <=> $1) AS similarity
FROM embedding_records
WHERE namespace = $2
ORDER BY embedding <=> $1
LIMIT $3`

// Query returns up to k matches by descending cosine similarity.
func (p *Postgres) Query(ctx context.Context, namespace string, vec []float32, k int) ([]Match, error) {
	if len(vec) == 0 {
		return nil, ErrEmptyVector
	}
	if len(vec) != p.dimension {
		return nil, fmt.Errorf("%w: schema holds %d-dimensional vectors, got %d",
			ErrDimensionMismatch, p.dimension, len(vec))
	}
	if k < 1 {
		return nil, fmt.Errorf("k must be >= 1, got %d", k)
	}

	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	embedding := pgvector.NewVector(vec)
	rows, err := p.pool.Query(queryCtx, queryRecordsSQL, &embedding, namespace, k)
	if err != nil {
		return nil, fmt.Errorf("%w: similarity search: %w", ErrUnavailable, err)
	}
	defer rows.Close()

	matches, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Match, error) {
		var m Match
		var metadataJSON []byte
		if err := row.Scan(&m.ID, &m.Content, &metadataJSON, &m.Score); err != nil {
			return Match{}, err
		}
		if err := json.Unmarshal(metadataJSON, &m.Metadata); err != nil {
			p.logger.Warn("failed to parse record metadata", "id", m.ID, "error", err)
		}
		return m, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scanning matches: %w", ErrUnavailable, err)
	}
	return matches, nil
}

const deleteRecordSQL = `DELETE FROM embedding_records WHERE namespace = $1 AND id = $2`

// Delete removes a record. Deleting an unknown id is a no-op.
func (p *Postgres) Delete(ctx context.Context, namespace string, id string) error {
	if _, err := p.pool.Exec(ctx, deleteRecordSQL, namespace, id); err != nil {
		return fmt.Errorf("%w: deleting record %q: %w", ErrUnavailable, id, err)
	}

	p.logger.Debug("deleted embedding record", "id", id, "namespace", namespace)
	return nil
}
