// Package embed provides the embedding clients shared by ingestion (which
// embeds documents) and the vector store (which embeds queries). The task
// prefixes the embedding model expects ("search_document: " on the write
// side, "search_query: " on the read side) are applied by those callers;
// this package embeds exactly the text it is given.
package embed

import (
	"context"
	"math"
	"time"
)

const (
	// DefaultDimensions matches the sentence-embedding models this engine is
	// tuned for (nomic-embed-text and friends).
	DefaultDimensions = 768

	// DefaultBatchSize bounds one EmbedBatch round-trip to the backend.
	DefaultBatchSize = 32

	// DefaultRequestTimeout covers a warm local model; the first request
	// after model load can take longer and is retried.
	DefaultRequestTimeout = 60 * time.Second
)

// Embedder turns text into dense vectors.
type Embedder interface {
	// Embed returns the vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input text, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the width of every vector this embedder produces.
	Dimensions() int

	// ModelName identifies the backing model for index-metadata checks.
	ModelName() string

	// Available reports whether the backend is reachable right now.
	Available(ctx context.Context) bool

	// Close releases any client resources.
	Close() error
}

// normalize scales v to unit length in place and returns it. A zero vector
// is returned unchanged.
func normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
	return v
}
