package async

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackgroundScanCompletes(t *testing.T) {
	dataDir := t.TempDir()

	b := NewBackgroundScan(dataDir, func(ctx context.Context, p *Progress) error {
		p.SetTotal(4)
		p.Update(4, 12)
		return nil
	})
	b.Start(context.Background())
	require.NoError(t, b.Wait())

	snap := b.Progress().Snapshot()
	assert.Equal(t, StatusReady, snap.Status)
	assert.Equal(t, 4, snap.FilesScanned)
	assert.Equal(t, 12, snap.UnitsIndexed)
	assert.InDelta(t, 100.0, snap.ProgressPct, 0.01)
	assert.False(t, b.Running())
}

func TestBackgroundScanError(t *testing.T) {
	dataDir := t.TempDir()
	scanErr := errors.New("embedder unavailable")

	b := NewBackgroundScan(dataDir, func(ctx context.Context, p *Progress) error {
		return scanErr
	})
	b.Start(context.Background())

	assert.ErrorIs(t, b.Wait(), scanErr)
	snap := b.Progress().Snapshot()
	assert.Equal(t, StatusError, snap.Status)
	assert.Contains(t, snap.ErrorMessage, "embedder unavailable")
}

func TestBackgroundScanLockLifecycle(t *testing.T) {
	dataDir := t.TempDir()
	release := make(chan struct{})

	b := NewBackgroundScan(dataDir, func(ctx context.Context, p *Progress) error {
		<-release
		return nil
	})
	b.Start(context.Background())

	// Lock exists while the scan runs.
	assert.Eventually(t, func() bool {
		return HasStaleLock(dataDir)
	}, 2*time.Second, 10*time.Millisecond)

	close(release)
	require.NoError(t, b.Wait())
	assert.False(t, HasStaleLock(dataDir))
}

func TestBackgroundScanStopCancels(t *testing.T) {
	dataDir := t.TempDir()
	started := make(chan struct{})

	b := NewBackgroundScan(dataDir, func(ctx context.Context, p *Progress) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})
	b.Start(context.Background())
	<-started

	b.Stop()
	assert.ErrorIs(t, b.Wait(), context.Canceled)
}

func TestBackgroundScanDoubleStart(t *testing.T) {
	dataDir := t.TempDir()
	calls := 0
	release := make(chan struct{})

	b := NewBackgroundScan(dataDir, func(ctx context.Context, p *Progress) error {
		calls++
		<-release
		return nil
	})
	b.Start(context.Background())
	b.Start(context.Background())
	close(release)
	require.NoError(t, b.Wait())

	assert.Equal(t, 1, calls)
}

func TestHasStaleLock(t *testing.T) {
	dataDir := t.TempDir()
	assert.False(t, HasStaleLock(dataDir))

	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "scan.lock"), []byte("x"), 0o644))
	assert.True(t, HasStaleLock(dataDir))
}

func TestProgressSnapshotScanning(t *testing.T) {
	p := NewProgress()
	assert.True(t, p.Scanning())

	p.SetTotal(10)
	p.Update(5, 20)
	snap := p.Snapshot()
	assert.Equal(t, StatusScanning, snap.Status)
	assert.InDelta(t, 50.0, snap.ProgressPct, 0.01)

	p.SetReady()
	assert.False(t, p.Scanning())
}
