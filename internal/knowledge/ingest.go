package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/lumencrm/lumen/internal/document"
	"github.com/lumencrm/lumen/internal/vector"
)

// DocumentType classifies ingested content. HTML documents are stripped of
// markup before embedding; everything else is embedded verbatim.
const (
	TypeText     = "text"
	TypeMarkdown = "markdown"
	TypeHTML     = "html"
)

// PartialError reports an ingestion that persisted the document but failed to
// make it retrievable. DocumentID identifies the stored document so the
// embedding and indexing steps can be retried with Reingest.
type PartialError struct {
	DocumentID uuid.UUID
	Err        error
}

func (e *PartialError) Error() string {
	return fmt.Sprintf("document %s stored but not indexed: %v", e.DocumentID, e.Err)
}

func (e *PartialError) Unwrap() error { return e.Err }

// Ingestor runs the document write path: persist, embed, index.
type Ingestor struct {
	docs      *document.Store
	embedder  ai.Embedder
	index     vector.Index
	namespace string
	dimension int
	logger    *slog.Logger
}

// NewIngestor creates an Ingestor writing to the given namespace. dimension
// is requested from the embedder on every call so the vectors match the
// index schema regardless of the model's native output size.
func NewIngestor(docs *document.Store, embedder ai.Embedder, index vector.Index, namespace string, dimension int, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		docs:      docs,
		embedder:  embedder,
		index:     index,
		namespace: namespace,
		dimension: dimension,
		logger:    logger,
	}
}

// Ingest persists a document and makes it retrievable. HTML content is
// normalized to plain text before embedding; the stored document keeps the
// original markup. Returns *PartialError when the document was persisted but
// embedding or indexing failed.
func (in *Ingestor) Ingest(ctx context.Context, doc document.Document) (uuid.UUID, error) {
	id, err := in.docs.Create(ctx, doc)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to store document: %w", err)
	}

	doc.ID = id
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	if err := in.indexDocument(ctx, doc); err != nil {
		in.logger.Error("document stored but not indexed",
			"document_id", id,
			"title", doc.Title,
			"error", err)
		return id, &PartialError{DocumentID: id, Err: err}
	}

	in.logger.Info("document ingested",
		"document_id", id,
		"title", doc.Title,
		"type", doc.Type,
		"namespace", in.namespace)
	return id, nil
}

// Reingest retries the embedding and indexing steps for an already stored
// document, typically after Ingest returned *PartialError.
func (in *Ingestor) Reingest(ctx context.Context, doc document.Document) error {
	if doc.ID == uuid.Nil {
		return errors.New("reingest requires a document id")
	}
	if err := in.indexDocument(ctx, doc); err != nil {
		return &PartialError{DocumentID: doc.ID, Err: err}
	}
	return nil
}

// Remove deletes a document from both the document store and the index. The
// index delete runs first so a failure never leaves a dangling vector for a
// deleted document.
func (in *Ingestor) Remove(ctx context.Context, id uuid.UUID) error {
	if err := in.index.Delete(ctx, in.namespace, id.String()); err != nil {
		return fmt.Errorf("failed to remove from index: %w", err)
	}
	if err := in.docs.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func (in *Ingestor) indexDocument(ctx context.Context, doc document.Document) error {
	text := doc.Content
	if doc.Type == TypeHTML {
		normalized, err := NormalizeHTML(text)
		if err != nil {
			return fmt.Errorf("failed to normalize html: %w", err)
		}
		text = normalized
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("document has no embeddable text")
	}

	embedding, err := embedText(ctx, in.embedder, text, in.dimension)
	if err != nil {
		return fmt.Errorf("failed to generate embedding: %w", err)
	}

	record := vector.Record{
		ID:      doc.ID.String(),
		Vector:  embedding,
		Content: text,
		Metadata: vector.Metadata{
			Type:      doc.Type,
			Title:     doc.Title,
			Source:    doc.Source,
			Timestamp: doc.CreatedAt,
		},
	}
	if err := in.index.Upsert(ctx, in.namespace, record); err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	return nil
}

// embedText runs a single-document embed request and returns the vector.
// Gemini embedding models default to their native dimensionality, so the
// request pins the output size to the one the index schema expects.
func embedText(ctx context.Context, embedder ai.Embedder, text string, dimension int) ([]float32, error) {
	req := &ai.EmbedRequest{
		Input: []*ai.Document{
			ai.DocumentFromText(text, nil),
		},
	}
	if dimension > 0 {
		dim := int32(dimension)
		req.Options = &genai.EmbedContentConfig{OutputDimensionality: &dim}
	}
	resp, err := embedder.Embed(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, errors.New("embedder returned no embeddings")
	}
	return resp.Embeddings[0].Embedding, nil
}
