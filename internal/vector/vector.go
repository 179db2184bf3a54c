// Package vector provides namespaced nearest-neighbor indexes over embeddings.
//
// A Record is the derived, embedding-side copy of a knowledge document: the
// index owns it, and its lifetime is driven entirely by explicit Upsert and
// Delete calls from the ingestion pipeline. Every namespace holds vectors of
// exactly one dimensionality; mixing dimensionalities is rejected.
//
// Three backends implement Index: Postgres (pgvector), Redis (RediSearch
// HNSW), and Memory (brute-force cosine, used in tests and single-process
// deployments).
package vector

import (
	"context"
	"errors"
	"time"
)

// Metadata is the searchable payload stored alongside a vector.
type Metadata struct {
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`
}

// Record is one embedded document in a namespace, keyed by the document id.
type Record struct {
	ID       string
	Vector   []float32
	Content  string
	Metadata Metadata
}

// Match is a similarity search hit. Score is cosine similarity in [0, 1]
// for normalized vectors; higher is more similar.
type Match struct {
	ID       string
	Score    float32
	Content  string
	Metadata Metadata
}

var (
	// ErrDimensionMismatch indicates a vector whose length differs from the
	// namespace's established dimensionality.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrEmptyVector indicates a zero-length vector.
	ErrEmptyVector = errors.New("empty vector")

	// ErrUnavailable indicates the index backend could not be reached.
	// The retrieval path downgrades this to an empty result.
	ErrUnavailable = errors.New("vector index unavailable")
)

// Index is a namespaced nearest-neighbor index.
//
// Upsert is last-write-wins per id. Query returns at most k matches ordered
// by descending score. Implementations provide their own internal consistency
// for concurrent upserts.
type Index interface {
	Upsert(ctx context.Context, namespace string, rec Record) error
	Query(ctx context.Context, namespace string, vec []float32, k int) ([]Match, error)
	Delete(ctx context.Context, namespace string, id string) error
}
