package vector

import (
	"context"
	"errors"
	"testing"
	"time"
)

func rec(id string, vec []float32, ts time.Time) Record {
	return Record{
		ID:     id,
		Vector: vec,
		Metadata: Metadata{
			Type:      "faq",
			Title:     id,
			Timestamp: ts,
		},
		Content: "content of " + id,
	}
}

func TestMemoryUpsertAndQuery(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory()
	now := time.Now()

	docs := []Record{
		rec("a", []float32{1, 0, 0}, now),
		rec("b", []float32{0, 1, 0}, now),
		rec("c", []float32{0.9, 0.1, 0}, now),
	}
	for _, d := range docs {
		if err := idx.Upsert(ctx, "kb", d); err != nil {
			t.Fatalf("Upsert(%s) error = %v", d.ID, err)
		}
	}

	matches, err := idx.Query(ctx, "kb", []float32{1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("Query() returned %d matches, want 2", len(matches))
	}
	if matches[0].ID != "a" {
		t.Errorf("best match = %q, want %q", matches[0].ID, "a")
	}
	if matches[1].ID != "c" {
		t.Errorf("second match = %q, want %q", matches[1].ID, "c")
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Errorf("matches not sorted by descending score: %v", matches)
		}
	}
}

func TestMemoryUpsertReplacesRecord(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory()
	now := time.Now()

	if err := idx.Upsert(ctx, "kb", rec("a", []float32{1, 0}, now)); err != nil {
		t.Fatal(err)
	}
	// Last write wins for the same id.
	updated := rec("a", []float32{0, 1}, now)
	updated.Content = "updated"
	if err := idx.Upsert(ctx, "kb", updated); err != nil {
		t.Fatal(err)
	}

	matches, err := idx.Query(ctx, "kb", []float32{0, 1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 || matches[0].Content != "updated" {
		t.Errorf("expected updated record, got %+v", matches)
	}
	if idx.Count("kb") != 1 {
		t.Errorf("Count = %d, want 1", idx.Count("kb"))
	}
}

func TestMemoryDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory()

	if err := idx.Upsert(ctx, "kb", rec("a", []float32{1, 0, 0}, time.Now())); err != nil {
		t.Fatal(err)
	}

	err := idx.Upsert(ctx, "kb", rec("b", []float32{1, 0}, time.Now()))
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Upsert() = %v, want ErrDimensionMismatch", err)
	}

	_, err = idx.Query(ctx, "kb", []float32{1}, 1)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Query() = %v, want ErrDimensionMismatch", err)
	}

	// A different namespace establishes its own dimensionality.
	if err := idx.Upsert(ctx, "other", rec("b", []float32{1, 0}, time.Now())); err != nil {
		t.Errorf("Upsert() in fresh namespace = %v, want nil", err)
	}
}

func TestMemoryEmptyVector(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory()

	if err := idx.Upsert(ctx, "kb", rec("a", nil, time.Now())); !errors.Is(err, ErrEmptyVector) {
		t.Errorf("Upsert() = %v, want ErrEmptyVector", err)
	}
	if _, err := idx.Query(ctx, "kb", nil, 1); !errors.Is(err, ErrEmptyVector) {
		t.Errorf("Query() = %v, want ErrEmptyVector", err)
	}
}

func TestMemoryQueryUnknownNamespace(t *testing.T) {
	idx := NewMemory()

	matches, err := idx.Query(context.Background(), "missing", []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("Query() on unknown namespace = %v, want empty", matches)
	}
}

func TestMemoryDelete(t *testing.T) {
	ctx := context.Background()
	idx := NewMemory()

	if err := idx.Upsert(ctx, "kb", rec("a", []float32{1, 0}, time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := idx.Delete(ctx, "kb", "a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if idx.Count("kb") != 0 {
		t.Errorf("Count = %d after delete, want 0", idx.Count("kb"))
	}
	// Unknown id is a no-op.
	if err := idx.Delete(ctx, "kb", "missing"); err != nil {
		t.Errorf("Delete(missing) error = %v", err)
	}
}

func TestCosine(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 0}, []float32{1, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 0}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cosine(tt.a, tt.b)
			if diff := got - tt.want; diff > 1e-6 || diff < -1e-6 {
				t.Errorf("cosine(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
