package document

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryQuerier implements Querier in process memory. Used with the memory
// vector backend so the whole pipeline can run without infrastructure.
type MemoryQuerier struct {
	mu   sync.RWMutex
	docs map[uuid.UUID]Document
}

// NewMemoryQuerier returns an empty in-memory querier.
func NewMemoryQuerier() *MemoryQuerier {
	return &MemoryQuerier{docs: make(map[uuid.UUID]Document)}
}

func (m *MemoryQuerier) InsertDocument(ctx context.Context, doc Document) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := doc.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	doc.ID = id
	m.docs[id] = doc
	return id, nil
}

func (m *MemoryQuerier) ListDocumentsByOwner(ctx context.Context, ownerID string, limit int32) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Document
	for _, doc := range m.docs {
		if doc.OwnerID == ownerID {
			out = append(out, doc)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if int32(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryQuerier) DeleteDocument(ctx context.Context, id uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.docs[id]; !ok {
		return 0, nil
	}
	delete(m.docs, id)
	return 1, nil
}
