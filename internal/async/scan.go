package async

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ScanFunc does the actual scan work, reporting through progress.
type ScanFunc func(ctx context.Context, progress *Progress) error

// BackgroundScan runs one scan in a goroutine. Start returns
// immediately; Wait blocks until the scan finishes. A lock file in the
// data directory marks a scan in flight so an interrupted run can be
// detected on the next start.
type BackgroundScan struct {
	dataDir  string
	scan     ScanFunc
	progress *Progress

	stopCh chan struct{}
	doneCh chan struct{}

	mu      sync.Mutex
	running bool
	err     error
}

// NewBackgroundScan creates a scan runner.
func NewBackgroundScan(dataDir string, scan ScanFunc) *BackgroundScan {
	return &BackgroundScan{
		dataDir:  dataDir,
		scan:     scan,
		progress: NewProgress(),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Progress returns the progress tracker.
func (b *BackgroundScan) Progress() *Progress {
	return b.progress
}

// Running reports whether the scan goroutine is active.
func (b *BackgroundScan) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Start launches the scan. A second call while running is a no-op.
func (b *BackgroundScan) Start(ctx context.Context) {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return
	}
	b.running = true
	b.mu.Unlock()

	go b.run(ctx)
}

func (b *BackgroundScan) run(ctx context.Context) {
	defer close(b.doneCh)
	defer func() {
		b.mu.Lock()
		b.running = false
		b.mu.Unlock()
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-b.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := b.writeLock(); err != nil {
		b.fail(err)
		return
	}
	defer func() { _ = os.Remove(lockPath(b.dataDir)) }()

	if b.scan != nil {
		if err := b.scan(ctx, b.progress); err != nil {
			b.fail(err)
			return
		}
	}
	b.progress.SetReady()
}

func (b *BackgroundScan) fail(err error) {
	b.progress.SetError(err.Error())
	b.mu.Lock()
	b.err = err
	b.mu.Unlock()
}

func (b *BackgroundScan) writeLock() error {
	if err := os.MkdirAll(b.dataDir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(lockPath(b.dataDir), []byte(time.Now().Format(time.RFC3339)), 0o644)
}

// Stop cancels a running scan and waits for it to exit.
func (b *BackgroundScan) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()

	close(b.stopCh)
	<-b.doneCh
}

// Wait blocks until the scan finishes and returns its error, if any.
func (b *BackgroundScan) Wait() error {
	<-b.doneCh
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// HasStaleLock reports whether a previous scan left its lock behind,
// meaning it was interrupted before finishing.
func HasStaleLock(dataDir string) bool {
	_, err := os.Stat(lockPath(dataDir))
	return err == nil
}

func lockPath(dataDir string) string {
	return filepath.Join(dataDir, "scan.lock")
}
