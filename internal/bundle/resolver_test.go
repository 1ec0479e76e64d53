package bundle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas/codeatlas/internal/chunk"
	"github.com/codeatlas/codeatlas/internal/store"
)

func seedStore(t *testing.T) store.Store {
	t.Helper()
	s := store.NewMemoryStore()
	ctx := context.Background()

	add := func(path, name, purpose string, patterns ...string) {
		require.NoError(t, s.ReplaceFile(ctx, path, []store.ClassifiedUnit{{
			RawUnit:  chunk.RawUnit{Name: name, Kind: chunk.KindFunction, FilePath: path, StartLine: 1},
			Purpose:  purpose,
			Patterns: patterns,
		}}))
	}
	add("src/api/users.ts", "getUser", "Data Access", "async")
	add("src/api/orders.ts", "getOrders", "Data Access", "async", "caching")
	add("src/pages/home.tsx", "HomePage", "Component", "component")
	add("src/hooks/cart.ts", "useCart", "Hook", "hook", "async")
	return s
}

func TestListDynamicLabels(t *testing.T) {
	r := NewResolver(seedStore(t))

	labels, err := r.ListDynamicLabels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Component", "Data Access", "Hook",
		"async", "caching", "component", "hook",
	}, labels)
}

func TestResolvePurposeLabel(t *testing.T) {
	r := NewResolver(seedStore(t))

	paths, err := r.Resolve(context.Background(), "Data Access")
	require.NoError(t, err)
	assert.Equal(t, []string{"src/api/orders.ts", "src/api/users.ts"}, paths)
}

func TestResolveSlugInsensitive(t *testing.T) {
	r := NewResolver(seedStore(t))

	for _, label := range []string{"data access", "DATA   ACCESS", "data-access", "  Data Access  "} {
		paths, err := r.Resolve(context.Background(), label)
		require.NoError(t, err)
		assert.Equal(t, []string{"src/api/orders.ts", "src/api/users.ts"}, paths, label)
	}
}

func TestResolvePatternLabel(t *testing.T) {
	r := NewResolver(seedStore(t))

	paths, err := r.Resolve(context.Background(), "async")
	require.NoError(t, err)
	assert.Equal(t, []string{"src/api/orders.ts", "src/api/users.ts", "src/hooks/cart.ts"}, paths)
}

func TestResolvePatternWinsOverPurpose(t *testing.T) {
	s := store.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.ReplaceFile(ctx, "src/api/cache.ts", []store.ClassifiedUnit{{
		RawUnit:  chunk.RawUnit{Name: "readThrough", Kind: chunk.KindFunction, FilePath: "src/api/cache.ts", StartLine: 1},
		Purpose:  "Data Access",
		Patterns: []string{"caching"},
	}}))
	require.NoError(t, s.ReplaceFile(ctx, "src/jobs/warm.ts", []store.ClassifiedUnit{{
		RawUnit: chunk.RawUnit{Name: "warmCaches", Kind: chunk.KindFunction, FilePath: "src/jobs/warm.ts", StartLine: 1},
		Purpose: "Caching",
	}}))
	r := NewResolver(s)

	// "caching" names both a pattern and a purpose; the pattern match
	// takes the bundle, so the purpose-only file stays out.
	paths, err := r.Resolve(ctx, "caching")
	require.NoError(t, err)
	assert.Equal(t, []string{"src/api/cache.ts"}, paths)

	// With no pattern match the purpose fallback still applies.
	require.NoError(t, s.DeleteFile(ctx, "src/api/cache.ts"))
	paths, err = r.Resolve(ctx, "caching")
	require.NoError(t, err)
	assert.Equal(t, []string{"src/jobs/warm.ts"}, paths)
}

func TestResolveUnmatchedLabel(t *testing.T) {
	r := NewResolver(seedStore(t))

	paths, err := r.Resolve(context.Background(), "no-such-bundle")
	require.NoError(t, err)
	assert.Empty(t, paths)

	paths, err = r.Resolve(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestResolveStableAcrossCalls(t *testing.T) {
	r := NewResolver(seedStore(t))
	ctx := context.Background()

	first, err := r.Resolve(ctx, "async")
	require.NoError(t, err)
	second, err := r.Resolve(ctx, "async")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "data-access", Slug("Data Access"))
	assert.Equal(t, "data-access", Slug("  data\taccess "))
	assert.Equal(t, "hook", Slug("Hook"))
	assert.Equal(t, "", Slug("   "))
}
