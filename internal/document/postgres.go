package document

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGQuerier implements Querier against PostgreSQL.
// Schema is managed by the embedded migrations in the db package.
type PGQuerier struct {
	pool *pgxpool.Pool
}

// NewPGQuerier creates a PGQuerier on an existing connection pool. The pool
// is owned by the caller.
func NewPGQuerier(pool *pgxpool.Pool) *PGQuerier {
	return &PGQuerier{pool: pool}
}

const insertDocumentSQL = `
INSERT INTO knowledge_documents (title, content, doc_type, source, owner_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id`

// InsertDocument persists a document and returns the database-assigned id.
func (q *PGQuerier) InsertDocument(ctx context.Context, doc Document) (uuid.UUID, error) {
	var id uuid.UUID
	err := q.pool.QueryRow(ctx, insertDocumentSQL,
		doc.Title, doc.Content, doc.Type, doc.Source, doc.OwnerID, doc.CreatedAt,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert document: %w", err)
	}
	return id, nil
}

const listDocumentsByOwnerSQL = `
SELECT id, title, content, doc_type, source, owner_id, created_at
FROM knowledge_documents
WHERE owner_id = $1
ORDER BY created_at DESC
LIMIT $2`

// ListDocumentsByOwner returns an owner's documents, newest first.
func (q *PGQuerier) ListDocumentsByOwner(ctx context.Context, ownerID string, limit int32) ([]Document, error) {
	rows, err := q.pool.Query(ctx, listDocumentsByOwnerSQL, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	docs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Document, error) {
		var d Document
		err := row.Scan(&d.ID, &d.Title, &d.Content, &d.Type, &d.Source, &d.OwnerID, &d.CreatedAt)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan documents: %w", err)
	}
	return docs, nil
}

const deleteDocumentSQL = `DELETE FROM knowledge_documents WHERE id = $1`

// DeleteDocument removes a document, reporting the affected row count.
func (q *PGQuerier) DeleteDocument(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.pool.Exec(ctx, deleteDocumentSQL, id)
	if err != nil {
		return 0, fmt.Errorf("delete document: %w", err)
	}
	return tag.RowsAffected(), nil
}
