// Package embed turns chunk text into fixed-width vectors. Every component
// that writes or reads a vector — the main indexer, the overlay indexer,
// and search — goes through a single embedder identity so that cosine
// distance between a main-table row and an overlay-table row is meaningful.
package embed

import (
	"context"
	"math"
)

const (
	// Dimensions is the fixed embedding width used across every table and
	// query in the system. Main and overlay rows are only comparable
	// because both are produced by an embedder of this width.
	Dimensions = 384

	// DefaultModelName identifies the embedder backend. Both the main and
	// overlay indexers default to this identity; a track or engine may not
	// override it without invalidating every row already written under it.
	DefaultModelName = "railyard-embed-v1"

	// DefaultBatchSize bounds how many texts are sent to the backend per
	// request.
	DefaultBatchSize = 32

	// MaxBatchSize is the hard ceiling on how many texts are sent to the
	// backend in a single request, to bound memory and request size.
	MaxBatchSize = 256
)

// Embedder turns text into vectors of Dimensions length.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
	Available(ctx context.Context) bool
	Close() error
}

func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, val := range v {
		out[i] = float32(float64(val) / magnitude)
	}
	return out
}
