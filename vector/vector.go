// Package vector abstracts the similarity-search backend behind a small
// upsert/delete/nearest-neighbor interface keyed by thought identifier.
package vector

import "context"

// Hit is one nearest-neighbor result. Distance grows with dissimilarity;
// result lists are ordered ascending by it.
type Hit struct {
	ID       string  `json:"id"`
	Distance float64 `json:"distance"`
}

// Index is the vector-similarity backend contract. Every operation fails
// with a BackendUnavailable error if the index has not been initialized or
// the backing service is unreachable. FindSimilar on an empty index returns
// an empty list, never an error.
type Index interface {
	Initialize(ctx context.Context) error
	UpsertVector(ctx context.Context, id, content string, vec []float32) error
	DeleteVector(ctx context.Context, id string) error
	FindSimilar(ctx context.Context, vec []float32, limit int) ([]Hit, error)
	Close() error
}
