package rules

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"
	"gopkg.in/yaml.v3"
)

// reloadDebounce coalesces editor write bursts into one reload.
const reloadDebounce = 200 * time.Millisecond

// Loader owns the active rule snapshot. Readers call Active and get an
// immutable *Config; writers go through Reload or Update, which swap
// the snapshot atomically. Invalid input never replaces a valid
// snapshot: a failed parse falls back to the previous config, or to the
// built-in defaults when there is none yet.
type Loader struct {
	path   string
	active atomic.Pointer[Config]
	logger *slog.Logger

	flock *flock.Flock

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	timer   *time.Timer
	closed  bool
}

// NewLoader reads the rules file at path and activates it, substituting
// the built-in defaults if the file is missing or invalid. The loader
// is usable even when the initial load failed.
func NewLoader(path string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{
		path:   path,
		logger: logger,
		flock:  flock.New(path + ".lock"),
	}

	cfg, err := loadFile(path)
	if err != nil {
		logger.Warn("rules file unusable, using built-in defaults",
			"path", path, "error", err)
		cfg = DefaultConfig()
	}
	l.active.Store(cfg)
	return l
}

// Active returns the current snapshot. Never nil.
func (l *Loader) Active() *Config {
	return l.active.Load()
}

// Reload re-reads the backing file and swaps the snapshot if it parses
// and validates. On failure the previous snapshot stays active.
func (l *Loader) Reload() error {
	cfg, err := loadFile(l.path)
	if err != nil {
		l.logger.Warn("rules reload rejected, keeping active snapshot",
			"path", l.path, "error", err)
		return err
	}
	l.active.Store(cfg)
	l.logger.Info("rules reloaded", "path", l.path, "version", cfg.Version)
	return nil
}

// Update validates doc, persists it to the backing file under a
// cross-process lock, then activates it. The write is atomic
// (temp file + rename) so a concurrent Reload never sees a torn file.
func (l *Loader) Update(doc *Document) error {
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("invalid rules document: %w", err)
	}
	cfg, warnings := Compile(doc)
	for _, w := range warnings {
		l.logger.Warn("malformed condition", "condition", w)
	}

	if err := l.flock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire rules lock: %w", err)
	}
	defer l.flock.Unlock()

	if err := writeFileAtomic(l.path, doc); err != nil {
		return err
	}

	l.active.Store(cfg)
	l.logger.Info("rules updated", "path", l.path, "version", cfg.Version)
	return nil
}

// Watch starts reloading on modification events for the backing file.
// Events within the debounce window collapse into a single reload.
func (l *Loader) Watch() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.watcher != nil || l.closed {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create rules watcher: %w", err)
	}
	// Watch the directory: editors replace files via rename, which
	// drops a watch registered on the file itself.
	if err := w.Add(filepath.Dir(l.path)); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch rules directory: %w", err)
	}
	l.watcher = w

	go l.watchLoop(w)
	return nil
}

func (l *Loader) watchLoop(w *fsnotify.Watcher) {
	for {
		select {
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(l.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			l.scheduleReload()
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			l.logger.Warn("rules watcher error", "error", err)
		}
	}
}

func (l *Loader) scheduleReload() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	if l.timer != nil {
		l.timer.Stop()
	}
	l.timer = time.AfterFunc(reloadDebounce, func() {
		_ = l.Reload()
	})
}

// Close stops the watcher. The active snapshot remains readable.
func (l *Loader) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	if l.timer != nil {
		l.timer.Stop()
	}
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rules document: %w", err)
	}

	cfg, warnings := Compile(&doc)
	for _, w := range warnings {
		slog.Warn("malformed condition", "path", path, "condition", w)
	}
	return cfg, nil
}

func writeFileAtomic(path string, doc *Document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal rules document: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create rules directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write rules file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace rules file: %w", err)
	}
	return nil
}
