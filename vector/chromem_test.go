package vector

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/eggplantiny/ai/memory"
)

func newTestIndex(t *testing.T) *ChromemIndex {
	t.Helper()
	idx := NewChromemIndex("", "thoughts", zerolog.Nop())
	if err := idx.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return idx
}

func TestChromem_UninitializedIsUnavailable(t *testing.T) {
	idx := NewChromemIndex("", "thoughts", zerolog.Nop())

	err := idx.UpsertVector(context.Background(), "a", "content", []float32{1, 0, 0})
	if !memory.IsBackendUnavailable(err) {
		t.Fatalf("expected backend unavailable, got %v", err)
	}
	if _, err := idx.FindSimilar(context.Background(), []float32{1, 0, 0}, 5); !memory.IsBackendUnavailable(err) {
		t.Fatalf("expected backend unavailable, got %v", err)
	}
}

func TestChromem_EmptyIndexYieldsEmptyResult(t *testing.T) {
	idx := newTestIndex(t)

	hits, err := idx.FindSimilar(context.Background(), []float32{1, 0, 0}, 5)
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected no hits on empty index, got %d", len(hits))
	}
}

func TestChromem_FindSimilarOrdering(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	vectors := map[string][]float32{
		"exact":      {1, 0, 0},
		"close":      {0.9, 0.1, 0},
		"orthogonal": {0, 1, 0},
	}
	for id, vec := range vectors {
		if err := idx.UpsertVector(ctx, id, id, vec); err != nil {
			t.Fatalf("UpsertVector %s: %v", id, err)
		}
	}

	hits, err := idx.FindSimilar(ctx, []float32{1, 0, 0}, 3)
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("expected 3 hits, got %d", len(hits))
	}
	if hits[0].ID != "exact" || hits[1].ID != "close" || hits[2].ID != "orthogonal" {
		t.Fatalf("expected distance-ascending order, got %v", hits)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Distance < hits[i-1].Distance {
			t.Fatalf("hits out of order: %v", hits)
		}
	}
	if hits[0].Distance > 0.001 {
		t.Fatalf("expected near-zero distance for identical vector, got %v", hits[0].Distance)
	}
}

func TestChromem_LimitClampedToCollectionSize(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.UpsertVector(ctx, "only", "only", []float32{1, 0, 0}); err != nil {
		t.Fatalf("UpsertVector: %v", err)
	}

	hits, err := idx.FindSimilar(ctx, []float32{1, 0, 0}, 10)
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected limit clamped to collection size, got %d hits", len(hits))
	}
}

func TestChromem_UpsertReplacesAndDeleteRemoves(t *testing.T) {
	idx := newTestIndex(t)
	ctx := context.Background()

	if err := idx.UpsertVector(ctx, "a", "v1", []float32{1, 0, 0}); err != nil {
		t.Fatalf("UpsertVector: %v", err)
	}
	// Re-upserting the same id must replace, not duplicate or fail.
	if err := idx.UpsertVector(ctx, "a", "v2", []float32{0, 1, 0}); err != nil {
		t.Fatalf("UpsertVector re-insert: %v", err)
	}

	hits, err := idx.FindSimilar(ctx, []float32{0, 1, 0}, 5)
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected single hit after upsert, got %d", len(hits))
	}
	if hits[0].Distance > 0.001 {
		t.Fatalf("expected replaced embedding to match query, distance %v", hits[0].Distance)
	}

	if err := idx.DeleteVector(ctx, "a"); err != nil {
		t.Fatalf("DeleteVector: %v", err)
	}
	// Deleting an unknown id is a no-op.
	if err := idx.DeleteVector(ctx, "a"); err != nil {
		t.Fatalf("repeat DeleteVector: %v", err)
	}

	hits, err = idx.FindSimilar(ctx, []float32{0, 1, 0}, 5)
	if err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected empty index after delete, got %d hits", len(hits))
	}
}
