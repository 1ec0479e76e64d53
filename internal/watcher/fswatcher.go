package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches a project tree with fsnotify. New subdirectories are
// added to the watch set as they appear; ignored directories are never
// watched.
type Watcher struct {
	fsw       *fsnotify.Watcher
	debouncer *debouncer
	opts      Options
	logger    *slog.Logger

	mu      sync.Mutex
	root    string
	stopped bool
	stopCh  chan struct{}
}

// New creates a Watcher. Call Start to begin delivery.
func New(opts Options, logger *slog.Logger) (*Watcher, error) {
	if opts.DebounceWindow <= 0 {
		opts.DebounceWindow = DefaultDebounceWindow
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		fsw:       fsw,
		debouncer: newDebouncer(opts.DebounceWindow),
		opts:      opts,
		logger:    logger,
		stopCh:    make(chan struct{}),
	}, nil
}

// Events returns the batch channel. It is closed on Stop.
func (w *Watcher) Events() <-chan []Event {
	return w.debouncer.output
}

// Start registers the tree rooted at root and runs the event loop until
// ctx is cancelled or Stop is called. It returns once watching is
// active; delivery continues in the background.
func (w *Watcher) Start(ctx context.Context, root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve watch root: %w", err)
	}
	w.mu.Lock()
	w.root = absRoot
	w.mu.Unlock()

	if err := w.addTree(absRoot); err != nil {
		return fmt.Errorf("register watch tree: %w", err)
	}

	go w.loop(ctx)
	return nil
}

// Stop ends delivery and closes the event channel. Safe to call twice.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.stopCh)
	err := w.fsw.Close()
	w.debouncer.stop()
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			_ = w.Stop()
			return
		case <-w.stopCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	info, statErr := os.Stat(ev.Name)
	isDir := statErr == nil && info.IsDir()

	if w.opts.Ignore != nil && w.opts.Ignore(rel, isDir) {
		return
	}

	// A created directory needs to join the watch set so files born
	// inside it are seen.
	if ev.Op.Has(fsnotify.Create) && isDir {
		if err := w.addTree(ev.Name); err != nil {
			w.logger.Warn("watch new directory", "path", rel, "error", err)
		}
		return
	}
	if isDir {
		return
	}

	op, ok := mapOp(ev.Op)
	if !ok {
		return
	}
	w.debouncer.add(Event{Path: rel, Op: op, At: time.Now()})
}

func mapOp(op fsnotify.Op) (Op, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return OpCreate, true
	case op.Has(fsnotify.Write):
		return OpModify, true
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		// A rename's old path disappears; the new path arrives as a
		// separate create event.
		return OpDelete, true
	default:
		return 0, false
	}
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(w.root, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if rel != "." && w.opts.Ignore != nil && w.opts.Ignore(rel, true) {
			return filepath.SkipDir
		}
		if addErr := w.fsw.Add(p); addErr != nil {
			w.logger.Warn("watch directory", "path", rel, "error", addErr)
		}
		return nil
	})
}
