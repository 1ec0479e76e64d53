package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, root string, opts Options) *Watcher {
	t.Helper()
	if opts.DebounceWindow == 0 {
		opts.DebounceWindow = 20 * time.Millisecond
	}
	w, err := New(opts, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background(), root))
	t.Cleanup(func() { _ = w.Stop() })
	return w
}

func waitForEvent(t *testing.T, w *Watcher, match func(Event) bool) Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case batch, ok := <-w.Events():
			require.True(t, ok, "event channel closed")
			for _, ev := range batch {
				if match(ev) {
					return ev
				}
			}
		case <-deadline:
			t.Fatal("expected event not delivered")
		}
	}
}

func TestWatcherSeesCreate(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root, Options{})

	require.NoError(t, os.WriteFile(filepath.Join(root, "new.ts"), []byte("a"), 0o644))

	ev := waitForEvent(t, w, func(ev Event) bool { return ev.Path == "new.ts" })
	assert.Equal(t, OpCreate, ev.Op)
}

func TestWatcherSeesModify(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "app.ts")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))

	w := startWatcher(t, root, Options{})
	require.NoError(t, os.WriteFile(path, []byte("ab"), 0o644))

	ev := waitForEvent(t, w, func(ev Event) bool { return ev.Path == "app.ts" })
	assert.Contains(t, []Op{OpModify, OpCreate}, ev.Op)
}

func TestWatcherSeesDelete(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "gone.ts")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))

	w := startWatcher(t, root, Options{})
	require.NoError(t, os.Remove(path))

	ev := waitForEvent(t, w, func(ev Event) bool { return ev.Path == "gone.ts" })
	assert.Equal(t, OpDelete, ev.Op)
}

func TestWatcherSeesNewSubdirectory(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root, Options{})

	sub := filepath.Join(root, "src")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// Give the watcher a moment to register the new directory.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "inner.ts"), []byte("a"), 0o644))

	ev := waitForEvent(t, w, func(ev Event) bool { return ev.Path == "src/inner.ts" })
	assert.Equal(t, OpCreate, ev.Op)
}

func TestWatcherIgnoreFilter(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(root, "node_modules"), 0o755))

	w := startWatcher(t, root, Options{
		Ignore: func(rel string, isDir bool) bool {
			return rel == "node_modules" || strings.HasPrefix(rel, "node_modules/")
		},
	})

	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "dep.js"), []byte("a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "visible.ts"), []byte("b"), 0o644))

	ev := waitForEvent(t, w, func(ev Event) bool { return ev.Path == "visible.ts" })
	assert.Equal(t, OpCreate, ev.Op)

	// Nothing from the ignored tree should ever surface.
	select {
	case batch := <-w.Events():
		for _, got := range batch {
			assert.NotContains(t, got.Path, "node_modules")
		}
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcherStopClosesEvents(t *testing.T) {
	root := t.TempDir()
	w := startWatcher(t, root, Options{})

	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())

	_, open := <-w.Events()
	assert.False(t, open)
}

func TestWatcherContextCancelStops(t *testing.T) {
	root := t.TempDir()
	w, err := New(Options{DebounceWindow: 20 * time.Millisecond}, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx, root))
	cancel()

	select {
	case _, open := <-w.Events():
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("events channel not closed after cancel")
	}
}
