package memory

import (
	"math"
	"testing"
)

func TestEncodeDecodeEmbedding(t *testing.T) {
	vec := []float32{0.25, -1.5, 3.75, 0}
	decoded, err := DecodeEmbedding(EncodeEmbedding(vec))
	if err != nil {
		t.Fatalf("DecodeEmbedding: %v", err)
	}
	if len(decoded) != len(vec) {
		t.Fatalf("expected %d dims, got %d", len(vec), len(decoded))
	}
	for i := range vec {
		if decoded[i] != vec[i] {
			t.Fatalf("dim %d: expected %v, got %v", i, vec[i], decoded[i])
		}
	}

	if out, err := DecodeEmbedding(nil); err != nil || out != nil {
		t.Fatalf("expected nil round-trip, got (%v, %v)", out, err)
	}
	if _, err := DecodeEmbedding([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error for truncated blob")
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{0, 1, 0}

	if sim := CosineSimilarity(a, a); math.Abs(sim-1) > 1e-9 {
		t.Fatalf("expected identical vectors to score 1, got %v", sim)
	}
	if sim := CosineSimilarity(a, b); math.Abs(sim) > 1e-9 {
		t.Fatalf("expected orthogonal vectors to score 0, got %v", sim)
	}
	if sim := CosineSimilarity(a, []float32{1, 0}); sim != 0 {
		t.Fatalf("expected mismatched lengths to score 0, got %v", sim)
	}
	if d := CosineDistance(a, b); math.Abs(d-1) > 1e-9 {
		t.Fatalf("expected distance 1 for orthogonal vectors, got %v", d)
	}
}

func TestDistanceToStrength(t *testing.T) {
	cases := []struct {
		distance float64
		want     float64
	}{
		{0, 1},
		{0.3, 0.7},
		{1, 0},
		{1.8, 0},
		{-0.1, 1},
	}
	for _, c := range cases {
		if got := DistanceToStrength(c.distance); math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("DistanceToStrength(%v): expected %v, got %v", c.distance, c.want, got)
		}
	}
}

func TestMatchesQueryDottedPath(t *testing.T) {
	item := Item{
		"content": "note",
		"metadata": map[string]any{
			"topic": "go",
			"nested": map[string]any{
				"deep": "value",
			},
		},
	}

	if !matchesQuery(item, Item{"metadata.topic": "go"}) {
		t.Fatalf("expected dotted path to match")
	}
	if !matchesQuery(item, Item{"metadata.nested.deep": "value"}) {
		t.Fatalf("expected two-level path to match")
	}
	if matchesQuery(item, Item{"metadata.topic": "rust"}) {
		t.Fatalf("expected value mismatch to fail")
	}
	if matchesQuery(item, Item{"metadata.missing": "x"}) {
		t.Fatalf("expected unresolvable path to exclude candidate")
	}
	if matchesQuery(item, Item{"content.sub": "x"}) {
		t.Fatalf("expected path through a scalar to exclude candidate")
	}
}
