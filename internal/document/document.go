// Package document manages durable knowledge documents.
//
// A Document is the source-of-truth record for a piece of free-text knowledge.
// It owns nothing about vectors: the embedding pipeline keeps a derived copy
// keyed by the same id in the vector index, and deleting a document does not
// automatically invalidate that index entry.
package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Document is a knowledge document. Immutable once created; re-ingestion is
// delete followed by create.
type Document struct {
	ID        uuid.UUID
	Title     string
	Content   string
	Type      string // free-form category, e.g. "faq", "policy", "html"
	Source    string // origin of the content, e.g. a filename or URL
	OwnerID   string
	CreatedAt time.Time
}

var (
	// ErrStoreUnavailable indicates the persistence backend rejected or
	// failed the operation. Callers see no partial state.
	ErrStoreUnavailable = errors.New("document store unavailable")

	// ErrEmptyTitle indicates the document title was blank.
	ErrEmptyTitle = errors.New("document title must not be empty")

	// ErrEmptyContent indicates the document content was blank.
	ErrEmptyContent = errors.New("document content must not be empty")

	// ErrNotFound indicates the requested document does not exist.
	ErrNotFound = errors.New("document not found")
)

// Querier defines the database operations the Store needs. The interface is
// owned by the consumer so tests can substitute a mock; the production
// implementation is PGQuerier over pgx.
type Querier interface {
	// InsertDocument persists a new document and returns its assigned id.
	InsertDocument(ctx context.Context, doc Document) (uuid.UUID, error)

	// ListDocumentsByOwner returns documents for an owner, newest first.
	ListDocumentsByOwner(ctx context.Context, ownerID string, limit int32) ([]Document, error)

	// DeleteDocument removes a document by id. Returns the number of rows removed.
	DeleteDocument(ctx context.Context, id uuid.UUID) (int64, error)
}

// Store manages document persistence.
//
// Store is safe for concurrent use when the underlying Querier is.
type Store struct {
	querier Querier
	logger  *slog.Logger
}

// New creates a Store. A nil logger falls back to slog.Default().
func New(querier Querier, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{querier: querier, logger: logger}
}

// Create validates and persists a new document, returning the assigned id.
// Input errors (blank title or content) are reported before the backend is
// touched; backend failures wrap ErrStoreUnavailable.
func (s *Store) Create(ctx context.Context, doc Document) (uuid.UUID, error) {
	if doc.Title == "" {
		return uuid.Nil, ErrEmptyTitle
	}
	if doc.Content == "" {
		return uuid.Nil, ErrEmptyContent
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}

	id, err := s.querier.InsertDocument(ctx, doc)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: inserting document: %w", ErrStoreUnavailable, err)
	}

	s.logger.Debug("created document", "id", id, "title", doc.Title, "owner_id", doc.OwnerID)
	return id, nil
}

// ListByOwner returns an owner's documents, newest first.
func (s *Store) ListByOwner(ctx context.Context, ownerID string, limit int32) ([]Document, error) {
	const maxListLimit = 1000
	if limit <= 0 || limit > maxListLimit {
		return nil, fmt.Errorf("limit must be between 1 and %d, got %d", maxListLimit, limit)
	}

	docs, err := s.querier.ListDocumentsByOwner(ctx, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: listing documents: %w", ErrStoreUnavailable, err)
	}
	return docs, nil
}

// Delete removes a document by id. Returns ErrNotFound when nothing matched.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := s.querier.DeleteDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: deleting document %s: %w", ErrStoreUnavailable, id, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	s.logger.Debug("deleted document", "id", id)
	return nil
}
