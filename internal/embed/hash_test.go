package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func vectorNorm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder()
	defer e.Close()

	a, err := e.Embed(context.Background(), "function getUserById(id) { return db.find(id); }")
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "function getUserById(id) { return db.find(id); }")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestHashEmbedderNormalized(t *testing.T) {
	e := NewHashEmbedder()
	defer e.Close()

	vec, err := e.Embed(context.Background(), "validateEmail checks an address")
	require.NoError(t, err)
	require.Len(t, vec, HashDimensions)
	assert.InDelta(t, 1.0, vectorNorm(vec), 1e-5)
}

func TestHashEmbedderEmptyInput(t *testing.T) {
	e := NewHashEmbedder()
	defer e.Close()

	for _, text := range []string{"", "   ", "\n\t"} {
		vec, err := e.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, make([]float32, HashDimensions), vec, "%q", text)
	}
}

func TestHashEmbedderSimilarityOrdering(t *testing.T) {
	e := NewHashEmbedder()
	defer e.Close()

	ctx := context.Background()
	base, err := e.Embed(ctx, "fetchUserProfile loads the user profile from the api")
	require.NoError(t, err)
	near, err := e.Embed(ctx, "fetchUserProfile loads a user profile from the api")
	require.NoError(t, err)
	far, err := e.Embed(ctx, "renderChart draws the revenue graph")
	require.NoError(t, err)

	dot := func(a, b []float32) float64 {
		var sum float64
		for i := range a {
			sum += float64(a[i]) * float64(b[i])
		}
		return sum
	}
	assert.Greater(t, dot(base, near), dot(base, far))
}

func TestIdentifierTokens(t *testing.T) {
	tokens := identifierTokens("const getUserByID = fetch_user_record")
	assert.Contains(t, tokens, "get")
	assert.Contains(t, tokens, "user")
	assert.Contains(t, tokens, "by")
	assert.Contains(t, tokens, "id")
	assert.Contains(t, tokens, "fetch")
	assert.Contains(t, tokens, "record")
	// Stop words are dropped.
	assert.NotContains(t, tokens, "const")
}

func TestSplitCamel(t *testing.T) {
	assert.Equal(t, []string{"parse", "HTTP", "Response"}, splitCamel("parseHTTPResponse"))
	assert.Equal(t, []string{"get", "User"}, splitCamel("getUser"))
	assert.Equal(t, []string{"URL"}, splitCamel("URL"))
	assert.Nil(t, splitCamel(""))
}

func TestHashEmbedderBatchPreservesOrder(t *testing.T) {
	e := NewHashEmbedder()
	defer e.Close()

	texts := []string{"alpha one", "beta two", "gamma three"}
	batch, err := e.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	for i, text := range texts {
		single, err := e.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i], text)
	}
}

func TestHashEmbedderClosed(t *testing.T) {
	e := NewHashEmbedder()
	require.True(t, e.Available(context.Background()))
	require.NoError(t, e.Close())

	assert.False(t, e.Available(context.Background()))
	_, err := e.Embed(context.Background(), "anything")
	assert.Error(t, err)
}
