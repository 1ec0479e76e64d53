package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeatlas/codeatlas/internal/chunk"
	"github.com/codeatlas/codeatlas/internal/rules"
)

func testUnit(name, path string, line int, purpose string, patterns ...string) ClassifiedUnit {
	return ClassifiedUnit{
		RawUnit: chunk.RawUnit{
			Name:      name,
			Kind:      chunk.KindFunction,
			FilePath:  path,
			StartLine: line,
			EndLine:   line + 5,
			Code:      "function " + name + "() { return 1; }",
			Signature: "function " + name + "()",
			Context:   chunk.Context{Imports: []string{"react"}},
		},
		Purpose:    purpose,
		Confidence: 0.9,
		Patterns:   patterns,
		Domains:    []string{"ui"},
		Complexity: rules.Complexity{Score: 3, Level: rules.ComplexityLow},
		Tags:       []string{"ui"},
	}
}

// runStoreTests exercises the Store contract against an implementation.
func runStoreTests(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("replace and read back", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		units := []ClassifiedUnit{
			testUnit("getUser", "src/api/users.ts", 10, "Data Access", "async"),
			testUnit("createUser", "src/api/users.ts", 30, "Data Mutation", "async", "factory"),
		}
		require.NoError(t, s.ReplaceFile(ctx, "src/api/users.ts", units))

		got, err := s.File(ctx, "src/api/users.ts")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "getUser", got[0].Name)
		assert.Equal(t, "createUser", got[1].Name)
		assert.Equal(t, []string{"react"}, got[1].Context.Imports)
		assert.Equal(t, rules.ComplexityLow, got[1].Complexity.Level)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("rescan overwrites", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		require.NoError(t, s.ReplaceFile(ctx, "src/a.ts", []ClassifiedUnit{
			testUnit("old", "src/a.ts", 1, "Utility"),
		}))
		require.NoError(t, s.ReplaceFile(ctx, "src/a.ts", []ClassifiedUnit{
			testUnit("fresh", "src/a.ts", 1, "Validation", "validation"),
		}))

		got, err := s.File(ctx, "src/a.ts")
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "fresh", got[0].Name)

		// Old pattern labels are gone with the old units.
		labels, err := s.PatternLabels(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"validation"}, labels)
	})

	t.Run("replace with empty removes path", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		require.NoError(t, s.ReplaceFile(ctx, "src/a.ts", []ClassifiedUnit{
			testUnit("f", "src/a.ts", 1, "Utility"),
		}))
		require.NoError(t, s.ReplaceFile(ctx, "src/a.ts", nil))

		paths, err := s.Paths(ctx)
		require.NoError(t, err)
		assert.Empty(t, paths)
	})

	t.Run("delete file", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		require.NoError(t, s.ReplaceFile(ctx, "src/a.ts", []ClassifiedUnit{
			testUnit("f", "src/a.ts", 1, "Utility"),
		}))
		require.NoError(t, s.DeleteFile(ctx, "src/a.ts"))
		require.NoError(t, s.DeleteFile(ctx, "src/never-there.ts"))

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("unknown path reads empty", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		got, err := s.File(ctx, "src/missing.ts")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("label queries", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		require.NoError(t, s.ReplaceFile(ctx, "src/b.ts", []ClassifiedUnit{
			testUnit("HomePage", "src/b.ts", 1, "Component", "component"),
		}))
		require.NoError(t, s.ReplaceFile(ctx, "src/a.ts", []ClassifiedUnit{
			testUnit("useCart", "src/a.ts", 1, "Hook", "hook", "async"),
		}))
		require.NoError(t, s.ReplaceFile(ctx, "src/c.ts", []ClassifiedUnit{
			testUnit("CartPanel", "src/c.ts", 1, "Component", "component"),
		}))

		purposes, err := s.PurposeLabels(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"Component", "Hook"}, purposes)

		patterns, err := s.PatternLabels(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"async", "component", "hook"}, patterns)

		paths, err := s.PathsWithPurpose(ctx, "Component")
		require.NoError(t, err)
		assert.Equal(t, []string{"src/b.ts", "src/c.ts"}, paths)

		paths, err = s.PathsWithPattern(ctx, "hook")
		require.NoError(t, err)
		assert.Equal(t, []string{"src/a.ts"}, paths)

		// Exact membership: substrings never match.
		paths, err = s.PathsWithPattern(ctx, "hoo")
		require.NoError(t, err)
		assert.Empty(t, paths)
	})

	t.Run("units ordered by path", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		require.NoError(t, s.ReplaceFile(ctx, "src/z.ts", []ClassifiedUnit{
			testUnit("zed", "src/z.ts", 1, "Utility"),
		}))
		require.NoError(t, s.ReplaceFile(ctx, "src/a.ts", []ClassifiedUnit{
			testUnit("first", "src/a.ts", 1, "Utility"),
			testUnit("second", "src/a.ts", 20, "Utility"),
		}))

		units, err := s.Units(ctx)
		require.NoError(t, err)
		require.Len(t, units, 3)
		assert.Equal(t, "first", units[0].Name)
		assert.Equal(t, "second", units[1].Name)
		assert.Equal(t, "zed", units[2].Name)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store {
		return NewMemoryStore()
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) Store {
		s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "atlas.db"))
		require.NoError(t, err)
		return s
	})
}

func TestSQLiteStorePersistsAcrossOpens(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "atlas.db")

	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	require.NoError(t, s.ReplaceFile(ctx, "src/a.ts", []ClassifiedUnit{
		testUnit("keeper", "src/a.ts", 1, "Utility", "caching"),
	}))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.File(ctx, "src/a.ts")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "keeper", got[0].Name)
	assert.Equal(t, []string{"caching"}, got[0].Patterns)
}

func TestMemoryStoreClosed(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Close())

	_, err := s.Paths(context.Background())
	assert.Error(t, err)
	assert.Error(t, s.ReplaceFile(context.Background(), "a", nil))
}
