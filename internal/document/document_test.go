package document

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/lumencrm/lumen/internal/log"
)

// mockQuerier implements Querier for testing.
type mockQuerier struct {
	insertErr error
	listErr   error
	deleteErr error

	insertID     uuid.UUID
	listResult   []Document
	deletedRows  int64
	insertCalls  int
	deleteCalls  int
	lastInserted Document
	lastDeleted  uuid.UUID
}

func (m *mockQuerier) InsertDocument(_ context.Context, doc Document) (uuid.UUID, error) {
	m.insertCalls++
	m.lastInserted = doc
	if m.insertErr != nil {
		return uuid.Nil, m.insertErr
	}
	return m.insertID, nil
}

func (m *mockQuerier) ListDocumentsByOwner(_ context.Context, _ string, _ int32) ([]Document, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.listResult, nil
}

func (m *mockQuerier) DeleteDocument(_ context.Context, id uuid.UUID) (int64, error) {
	m.deleteCalls++
	m.lastDeleted = id
	if m.deleteErr != nil {
		return 0, m.deleteErr
	}
	return m.deletedRows, nil
}

func TestCreateAssignsID(t *testing.T) {
	want := uuid.New()
	q := &mockQuerier{insertID: want}
	store := New(q, log.NewNop())

	got, err := store.Create(context.Background(), Document{
		Title:   "Refund Policy",
		Content: "Refunds are issued within 30 days.",
		Type:    "policy",
		OwnerID: "user-1",
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if got != want {
		t.Errorf("Create() id = %v, want %v", got, want)
	}
	if q.lastInserted.CreatedAt.IsZero() {
		t.Error("Create() should set CreatedAt when zero")
	}
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name    string
		doc     Document
		wantErr error
	}{
		{"empty title", Document{Content: "c"}, ErrEmptyTitle},
		{"empty content", Document{Title: "t"}, ErrEmptyContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &mockQuerier{}
			store := New(q, log.NewNop())
			_, err := store.Create(context.Background(), tt.doc)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Create() = %v, want %v", err, tt.wantErr)
			}
			if q.insertCalls != 0 {
				t.Error("backend must not be touched on invalid input")
			}
		})
	}
}

func TestCreateBackendFailure(t *testing.T) {
	q := &mockQuerier{insertErr: errors.New("connection refused")}
	store := New(q, log.NewNop())

	_, err := store.Create(context.Background(), Document{Title: "t", Content: "c"})
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Create() = %v, want ErrStoreUnavailable", err)
	}
}

func TestCreatePreservesCreatedAt(t *testing.T) {
	q := &mockQuerier{insertID: uuid.New()}
	store := New(q, log.NewNop())

	want := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	_, err := store.Create(context.Background(), Document{Title: "t", Content: "c", CreatedAt: want})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if !q.lastInserted.CreatedAt.Equal(want) {
		t.Errorf("CreatedAt = %v, want %v", q.lastInserted.CreatedAt, want)
	}
}

func TestListByOwner(t *testing.T) {
	docs := []Document{
		{ID: uuid.New(), Title: "b", Content: "x", OwnerID: "user-1"},
		{ID: uuid.New(), Title: "a", Content: "y", OwnerID: "user-1"},
	}
	store := New(&mockQuerier{listResult: docs}, log.NewNop())

	got, err := store.ListByOwner(context.Background(), "user-1", 10)
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	if len(got) != 2 {
		t.Errorf("ListByOwner() returned %d documents, want 2", len(got))
	}
}

func TestListByOwnerLimitValidation(t *testing.T) {
	store := New(&mockQuerier{}, log.NewNop())

	for _, limit := range []int32{0, -1, 1001} {
		if _, err := store.ListByOwner(context.Background(), "user-1", limit); err == nil {
			t.Errorf("ListByOwner(limit=%d) expected error", limit)
		}
	}
}

func TestDelete(t *testing.T) {
	q := &mockQuerier{deletedRows: 1}
	store := New(q, log.NewNop())

	id := uuid.New()
	if err := store.Delete(context.Background(), id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if q.lastDeleted != id {
		t.Errorf("deleted id = %v, want %v", q.lastDeleted, id)
	}
}

func TestDeleteNotFound(t *testing.T) {
	store := New(&mockQuerier{deletedRows: 0}, log.NewNop())

	err := store.Delete(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete() = %v, want ErrNotFound", err)
	}
}
