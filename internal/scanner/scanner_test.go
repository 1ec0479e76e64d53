package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

func newScanner(t *testing.T) *Scanner {
	t.Helper()
	s, err := New(nil)
	require.NoError(t, err)
	return s
}

func TestDiscoverDefaultExtensions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/app.ts", "export const a = 1\n")
	writeFile(t, root, "src/util.js", "function f() {}\n")
	writeFile(t, root, "README.md", "# readme\n")
	writeFile(t, root, "picture.png", "not code")

	paths, err := newScanner(t).Discover(context.Background(), Options{Root: root})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/app.ts", "src/util.js"}, paths)
}

func TestDiscoverIncludePatterns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/app.ts", "a")
	writeFile(t, root, "src/app.test.ts", "b")
	writeFile(t, root, "lib/helper.go", "package lib")

	paths, err := newScanner(t).Discover(context.Background(), Options{
		Root:    root,
		Include: []string{"**/*.go"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"lib/helper.go"}, paths)
}

func TestDiscoverExcludePatterns(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/app.ts", "a")
	writeFile(t, root, "node_modules/pkg/index.js", "b")
	writeFile(t, root, "dist/bundle.min.js", "c")
	writeFile(t, root, "src/vendor.min.js", "d")

	paths, err := newScanner(t).Discover(context.Background(), Options{
		Root:    root,
		Exclude: []string{"**/node_modules/**", "**/dist/**", "**/*.min.js"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/app.ts"}, paths)
}

func TestDiscoverRespectsGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "generated/\n*.snapshot.ts\n")
	writeFile(t, root, "src/app.ts", "a")
	writeFile(t, root, "generated/types.ts", "b")
	writeFile(t, root, "src/ui.snapshot.ts", "c")

	paths, err := newScanner(t).Discover(context.Background(), Options{Root: root})
	require.NoError(t, err)
	assert.Equal(t, []string{"src/app.ts"}, paths)
}

func TestDiscoverNestedGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/.gitignore", "local.ts\n")
	writeFile(t, root, "src/app.ts", "a")
	writeFile(t, root, "src/local.ts", "b")
	writeFile(t, root, "other/local.ts", "c")

	paths, err := newScanner(t).Discover(context.Background(), Options{Root: root})
	require.NoError(t, err)
	assert.Equal(t, []string{"other/local.ts", "src/app.ts"}, paths)
}

func TestDiscoverGitignoreNegation(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "*.ts\n!keep.ts\n")
	writeFile(t, root, "drop.ts", "a")
	writeFile(t, root, "keep.ts", "b")

	paths, err := newScanner(t).Discover(context.Background(), Options{Root: root})
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.ts"}, paths)
}

func TestDiscoverSkipGitignore(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "*.ts\n")
	writeFile(t, root, "app.ts", "a")

	paths, err := newScanner(t).Discover(context.Background(), Options{
		Root:          root,
		SkipGitignore: true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"app.ts"}, paths)
}

func TestDiscoverSkipsBinary(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app.ts", "const a = 1")
	writeFile(t, root, "blob.ts", "ab\x00cd")

	paths, err := newScanner(t).Discover(context.Background(), Options{Root: root})
	require.NoError(t, err)
	assert.Equal(t, []string{"app.ts"}, paths)
}

func TestDiscoverSkipsOversizedFiles(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "small.ts", "const a = 1")
	writeFile(t, root, "big.ts", string(make([]byte, 64)))

	paths, err := newScanner(t).Discover(context.Background(), Options{
		Root:        root,
		MaxFileSize: 32,
	})
	require.NoError(t, err)
	// The zero-filled file is also binary, but size rejects it first.
	assert.Equal(t, []string{"small.ts"}, paths)
}

func TestDiscoverFileCap(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.ts", "1")
	writeFile(t, root, "b.ts", "2")
	writeFile(t, root, "c.ts", "3")

	paths, err := newScanner(t).Discover(context.Background(), Options{
		Root:     root,
		MaxFiles: 2,
	})
	require.NoError(t, err)
	assert.Len(t, paths, 2)
}

func TestDiscoverSkipsDotGitAndDataDir(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".git/hooks/pre-commit.js", "a")
	writeFile(t, root, ".codeatlas/cache.ts", "b")
	writeFile(t, root, "app.ts", "c")

	paths, err := newScanner(t).Discover(context.Background(), Options{Root: root})
	require.NoError(t, err)
	assert.Equal(t, []string{"app.ts"}, paths)
}

func TestDiscoverCancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "app.ts", "a")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newScanner(t).Discover(ctx, Options{Root: root})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestInvalidateIgnoreCache(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "*.ts\n")
	writeFile(t, root, "app.ts", "a")

	s := newScanner(t)
	paths, err := s.Discover(context.Background(), Options{Root: root})
	require.NoError(t, err)
	assert.Empty(t, paths)

	// Loosen the gitignore; a stale cache would still hide the file.
	writeFile(t, root, ".gitignore", "# nothing ignored\n")
	s.InvalidateIgnoreCache()

	paths, err = s.Discover(context.Background(), Options{Root: root})
	require.NoError(t, err)
	assert.Equal(t, []string{"app.ts"}, paths)
}

func TestMatchConfigPattern(t *testing.T) {
	tests := []struct {
		pattern string
		rel     string
		want    bool
	}{
		{"**/node_modules/**", "node_modules/pkg/index.js", true},
		{"**/node_modules/**", "src/node_modules/pkg/index.js", true},
		{"**/node_modules/**", "src/app.ts", false},
		{"**/*.min.js", "dist/app.min.js", true},
		{"**/*.min.js", "dist/app.js", false},
		{"*.lock", "yarn.lock", true},
		{"*.lock", "sub/yarn.lock", true},
		{"src/**/*.ts", "src/deep/nested/app.ts", true},
		{"src/**/*.ts", "lib/app.ts", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, matchConfigPattern(tt.pattern, tt.rel),
			"pattern %q against %q", tt.pattern, tt.rel)
	}
}

func TestIgnores(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, ".gitignore", "dist/\n")

	s := newScanner(t)
	opts := Options{Root: root, Exclude: []string{"**/vendor/**"}}

	assert.True(t, s.Ignores(".git", true, opts))
	assert.True(t, s.Ignores("src/vendor", true, opts))
	assert.True(t, s.Ignores("dist", true, opts))
	assert.True(t, s.Ignores("README.md", false, opts))
	assert.False(t, s.Ignores("src/app.ts", false, opts))
	assert.False(t, s.Ignores(".gitignore", false, opts))
	assert.False(t, s.Ignores("src", true, opts))
}
