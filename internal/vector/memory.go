package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Memory is a brute-force in-memory Index. It is exact rather than
// approximate, which is fine at the document counts a single process sees,
// and it is the reference implementation the tests run against.
//
// Memory is safe for concurrent use.
type Memory struct {
	mu         sync.RWMutex
	namespaces map[string]*memoryNamespace
}

type memoryNamespace struct {
	dimension int
	records   map[string]Record
}

// NewMemory creates an empty in-memory index.
func NewMemory() *Memory {
	return &Memory{namespaces: make(map[string]*memoryNamespace)}
}

// Upsert stores or replaces a record. The first record written to a
// namespace fixes its dimensionality; later writes must match it.
func (m *Memory) Upsert(_ context.Context, namespace string, rec Record) error {
	if len(rec.Vector) == 0 {
		return ErrEmptyVector
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ns, ok := m.namespaces[namespace]
	if !ok {
		ns = &memoryNamespace{
			dimension: len(rec.Vector),
			records:   make(map[string]Record),
		}
		m.namespaces[namespace] = ns
	}

	if len(rec.Vector) != ns.dimension {
		return fmt.Errorf("%w: namespace %q holds %d-dimensional vectors, got %d",
			ErrDimensionMismatch, namespace, ns.dimension, len(rec.Vector))
	}

	ns.records[rec.ID] = rec
	return nil
}

// Query returns up to k records by descending cosine similarity.
// An unknown namespace yields an empty result, not an error.
func (m *Memory) Query(_ context.Context, namespace string, vec []float32, k int) ([]Match, error) {
	if len(vec) == 0 {
		return nil, ErrEmptyVector
	}
	if k < 1 {
		return nil, fmt.Errorf("k must be >= 1, got %d", k)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	ns, ok := m.namespaces[namespace]
	if !ok {
		return nil, nil
	}
	if len(vec) != ns.dimension {
		return nil, fmt.Errorf("%w: namespace %q holds %d-dimensional vectors, got %d",
			ErrDimensionMismatch, namespace, ns.dimension, len(vec))
	}

	matches := make([]Match, 0, len(ns.records))
	for _, rec := range ns.records {
		matches = append(matches, Match{
			ID:       rec.ID,
			Score:    cosine(vec, rec.Vector),
			Content:  rec.Content,
			Metadata: rec.Metadata,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if k < len(matches) {
		matches = matches[:k]
	}
	return matches, nil
}

// Delete removes a record. Deleting an unknown id is a no-op.
func (m *Memory) Delete(_ context.Context, namespace string, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ns, ok := m.namespaces[namespace]; ok {
		delete(ns.records, id)
	}
	return nil
}

// Count reports the number of records in a namespace.
func (m *Memory) Count(namespace string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if ns, ok := m.namespaces[namespace]; ok {
		return len(ns.records)
	}
	return 0
}

// cosine computes cosine similarity. Zero vectors score 0.
func cosine(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
