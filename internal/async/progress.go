// Package async runs the initial project scan in the background so the
// MCP server can begin serving immediately. Clients see scan progress
// through the status snapshot until the index is ready.
package async

import (
	"sync"
	"time"
)

// Status is the overall state of a background scan.
type Status string

const (
	// StatusScanning means the scan is still running.
	StatusScanning Status = "scanning"
	// StatusReady means the index is complete and searchable.
	StatusReady Status = "ready"
	// StatusError means the scan failed.
	StatusError Status = "error"
)

// Snapshot is an immutable view of scan progress.
type Snapshot struct {
	Status         Status  `json:"status"`
	FilesTotal     int     `json:"files_total"`
	FilesScanned   int     `json:"files_scanned"`
	UnitsIndexed   int     `json:"units_indexed"`
	ProgressPct    float64 `json:"progress_pct"`
	ElapsedSeconds int     `json:"elapsed_seconds"`
	ErrorMessage   string  `json:"error_message,omitempty"`
}

// Progress tracks a running scan. Safe for concurrent use.
type Progress struct {
	mu sync.RWMutex

	status       Status
	filesTotal   int
	filesScanned int
	unitsIndexed int
	started      time.Time
	errMessage   string
}

// NewProgress creates a tracker in the scanning state.
func NewProgress() *Progress {
	return &Progress{status: StatusScanning, started: time.Now()}
}

// SetTotal records how many files the scan will process.
func (p *Progress) SetTotal(total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filesTotal = total
}

// Update records scanned-file and indexed-unit counts.
func (p *Progress) Update(filesScanned, unitsIndexed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filesScanned = filesScanned
	p.unitsIndexed = unitsIndexed
}

// SetReady marks the scan complete.
func (p *Progress) SetReady() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = StatusReady
}

// SetError marks the scan failed.
func (p *Progress) SetError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = StatusError
	p.errMessage = message
}

// Scanning reports whether the scan is still running.
func (p *Progress) Scanning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status == StatusScanning
}

// Snapshot returns a copy of the current state.
func (p *Progress) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var pct float64
	if p.filesTotal > 0 {
		pct = float64(p.filesScanned) / float64(p.filesTotal) * 100
	}
	return Snapshot{
		Status:         p.status,
		FilesTotal:     p.filesTotal,
		FilesScanned:   p.filesScanned,
		UnitsIndexed:   p.unitsIndexed,
		ProgressPct:    pct,
		ElapsedSeconds: int(time.Since(p.started).Seconds()),
		ErrorMessage:   p.errMessage,
	}
}
