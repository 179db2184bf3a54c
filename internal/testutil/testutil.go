// Package testutil provides shared testing utilities: a deterministic
// embedder whose similarity tracks token overlap, and a PostgreSQL test
// container with the project schema applied.
package testutil

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
)

// KeywordEmbedder implements ai.Embedder deterministically with no network.
// Each token hashes to a handful of vector positions, so texts sharing words
// get high cosine similarity and disjoint texts score near zero. Good enough
// to exercise ranking end to end.
type KeywordEmbedder struct {
	Dimension int
}

// NewKeywordEmbedder returns an embedder producing vectors of dim positions.
func NewKeywordEmbedder(dim int) *KeywordEmbedder {
	if dim <= 0 {
		dim = 64
	}
	return &KeywordEmbedder{Dimension: dim}
}

func (e *KeywordEmbedder) Name() string { return "keyword-embedder" }

func (e *KeywordEmbedder) Register(r api.Registry) {}

func (e *KeywordEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	resp := &ai.EmbedResponse{}
	for _, doc := range req.Input {
		var text strings.Builder
		for _, part := range doc.Content {
			text.WriteString(part.Text)
			text.WriteByte(' ')
		}
		resp.Embeddings = append(resp.Embeddings, &ai.Embedding{
			Embedding: e.embed(text.String()),
		})
	}
	return resp, nil
}

func (e *KeywordEmbedder) embed(text string) []float32 {
	vec := make([]float32, e.Dimension)
	for _, token := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(token))
		vec[int(h.Sum32())%e.Dimension] += 1
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
}
