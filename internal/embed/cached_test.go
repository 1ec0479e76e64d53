package embed

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder wraps HashEmbedder and counts backend calls.
type countingEmbedder struct {
	*HashEmbedder
	embeds  atomic.Int64
	batches atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.embeds.Add(1)
	return c.HashEmbedder.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.batches.Add(1)
	return c.HashEmbedder.EmbedBatch(ctx, texts)
}

func TestCachedEmbedderHitsSkipBackend(t *testing.T) {
	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder()}
	c := NewCachedEmbedder(inner, 10)
	defer c.Close()

	ctx := context.Background()
	first, err := c.Embed(ctx, "findInvoice")
	require.NoError(t, err)
	second, err := c.Embed(ctx, "findInvoice")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), inner.embeds.Load())
}

func TestCachedEmbedderBatchForwardsOnlyMisses(t *testing.T) {
	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder()}
	c := NewCachedEmbedder(inner, 10)
	defer c.Close()

	ctx := context.Background()
	_, err := c.Embed(ctx, "alpha")
	require.NoError(t, err)

	out, err := c.EmbedBatch(ctx, []string{"alpha", "beta", "gamma"})
	require.NoError(t, err)
	require.Len(t, out, 3)
	for i, vec := range out {
		assert.NotEmpty(t, vec, i)
	}
	// One batch call for the two misses; alpha came from the cache.
	assert.Equal(t, int64(1), inner.batches.Load())

	// Fully cached batch never reaches the backend.
	_, err = c.EmbedBatch(ctx, []string{"beta", "gamma"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), inner.batches.Load())
}

func TestCachedEmbedderEviction(t *testing.T) {
	inner := &countingEmbedder{HashEmbedder: NewHashEmbedder()}
	c := NewCachedEmbedder(inner, 2)
	defer c.Close()

	ctx := context.Background()
	for _, text := range []string{"one", "two", "three", "one"} {
		_, err := c.Embed(ctx, text)
		require.NoError(t, err)
	}
	// "one" was evicted by "three", so it was computed twice.
	assert.Equal(t, int64(4), inner.embeds.Load())
}

func TestCachedEmbedderPassthrough(t *testing.T) {
	inner := NewHashEmbedder()
	c := NewCachedEmbedder(inner, 0)

	assert.Equal(t, HashDimensions, c.Dimensions())
	assert.Equal(t, "hash", c.ModelName())
	assert.Same(t, Embedder(inner), c.Inner())
	assert.True(t, c.Available(context.Background()))
	require.NoError(t, c.Close())
	assert.False(t, c.Available(context.Background()))
}
