package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"

	"github.com/lumencrm/lumen/internal/vector"
)

// DefaultTopK is the number of passages retrieved when the caller does not
// ask for a specific count.
const DefaultTopK = 3

const retrieveTimeout = 10 * time.Second

// Passage is a retrieved snippet ready for prompt assembly.
type Passage struct {
	DocumentID string
	Title      string
	Content    string
	Source     string
	Score      float32
	Timestamp  time.Time
}

// Retriever runs the read path of the pipeline: embed the query, search the
// index, and rank results.
type Retriever struct {
	embedder  ai.Embedder
	index     vector.Index
	namespace string
	dimension int
	logger    *slog.Logger
}

// NewRetriever creates a Retriever reading from the given namespace. The
// embedder and dimension must be the ones used for ingestion; mixing them
// across the two paths makes similarity scores meaningless.
func NewRetriever(embedder ai.Embedder, index vector.Index, namespace string, dimension int, logger *slog.Logger) *Retriever {
	return &Retriever{
		embedder:  embedder,
		index:     index,
		namespace: namespace,
		dimension: dimension,
		logger:    logger,
	}
}

// Retrieve returns the top-k passages most similar to query, highest score
// first with ties broken by recency. A blank query returns no passages. An
// unreachable index or failing embedder degrades to an empty result; the
// conversation proceeds without grounding rather than failing.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]Passage, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	if k <= 0 {
		k = DefaultTopK
	}

	ctx, cancel := context.WithTimeout(ctx, retrieveTimeout)
	defer cancel()

	embedding, err := embedText(ctx, r.embedder, query, r.dimension)
	if err != nil {
		r.logger.Warn("query embedding failed, skipping retrieval", "error", err)
		return nil, nil
	}

	matches, err := r.index.Query(ctx, r.namespace, embedding, k)
	if err != nil {
		r.logger.Warn("vector search failed, skipping retrieval",
			"namespace", r.namespace,
			"error", err)
		return nil, nil
	}

	passages := make([]Passage, 0, len(matches))
	for _, m := range matches {
		passages = append(passages, Passage{
			DocumentID: m.ID,
			Title:      m.Metadata.Title,
			Content:    m.Content,
			Source:     m.Metadata.Source,
			Score:      m.Score,
			Timestamp:  m.Metadata.Timestamp,
		})
	}
	sort.SliceStable(passages, func(i, j int) bool {
		if passages[i].Score != passages[j].Score {
			return passages[i].Score > passages[j].Score
		}
		return passages[i].Timestamp.After(passages[j].Timestamp)
	})

	r.logger.Debug("retrieval complete",
		"query_length", len(query),
		"results", len(passages))
	return passages, nil
}

// String implements fmt.Stringer for debug logging.
func (p Passage) String() string {
	return fmt.Sprintf("%s (score=%.3f)", p.Title, p.Score)
}
