// Package vector provides similarity helpers and an in-memory nearest-neighbour index.
package vector

import (
	"context"
	"errors"
)

// ErrDimensionMismatch is returned when vectors of different lengths are compared or stored together.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Index stores vectors by ID and answers top-k cosine queries.
type Index interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*Result, error)
	Remove(ctx context.Context, ids []string) error
	Size() int
	Close() error
}

// Result is a single vector search hit.
type Result struct {
	ID    string
	Score float64 // cosine similarity in [-1, 1]
}
