// Package embed provides the embedding backends used to vectorize
// canonical search text: a deterministic hash-based embedder that works
// offline, an Ollama HTTP client, and an LRU-cached wrapper.
package embed

import (
	"context"
	"math"
	"time"
)

const (
	// DefaultBatchSize is the batch size used when none is configured.
	DefaultBatchSize = 32

	// MaxBatchSize bounds a single embedding request.
	MaxBatchSize = 256

	// DefaultTimeout applies to one remote embedding request.
	DefaultTimeout = 60 * time.Second

	// HashDimensions is the vector dimension of the hash embedder.
	HashDimensions = 256
)

// Embedder generates dense vectors for text. Implementations must be
// deterministic per model: the same text always yields the same vector.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed vector dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available reports whether the embedder is ready for use.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// Normalize scales a vector to unit length. Zero vectors pass through
// unchanged.
func Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	mag := math.Sqrt(sum)
	if mag == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / mag)
	}
	return out
}
