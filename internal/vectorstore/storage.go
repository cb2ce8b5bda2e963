package vectorstore

import "context"

// Neighbor is one search hit: the position of the stored vector (in upsert
// order) and its distance to the query.
type Neighbor struct {
	Position int
	Distance float64
}

// Storage holds one corpus worth of vectors and answers nearest-neighbour
// queries. Results are ordered by ascending distance, ties by position.
type Storage interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, topK int) ([]Neighbor, error)
	Clear(ctx context.Context) error
}

// Factory creates an empty Storage for a named corpus.
type Factory func(corpusID string) (Storage, error)
