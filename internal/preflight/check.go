// Package preflight validates the environment before indexing: disk
// space, write access, file descriptor limits, and embedder
// reachability. Only required checks block a run; the rest degrade to
// warnings.
package preflight

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/codeatlas/codeatlas/internal/config"
)

// Status is the outcome of one check.
type Status int

const (
	// StatusPass means the check succeeded.
	StatusPass Status = iota
	// StatusWarn means a non-blocking problem.
	StatusWarn
	// StatusFail means the check failed.
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// Result is the outcome of a single check.
type Result struct {
	Name     string `json:"name"`
	Status   Status `json:"status"`
	Message  string `json:"message"`
	Hint     string `json:"hint,omitempty"`
	Required bool   `json:"required"`
}

// Critical reports a required check that failed.
func (r Result) Critical() bool {
	return r.Required && r.Status == StatusFail
}

// MinFileDescriptors is the lowest acceptable open-file limit.
const MinFileDescriptors = 1024

// Checker runs preflight checks for a project.
type Checker struct {
	cfg *config.Config
}

// New creates a Checker. A nil cfg uses defaults.
func New(cfg *config.Config) *Checker {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	return &Checker{cfg: cfg}
}

// RunAll executes every check against the project root.
func (c *Checker) RunAll(ctx context.Context, root string) []Result {
	return []Result{
		c.CheckDiskSpace(root),
		c.CheckWriteAccess(root),
		c.CheckFileDescriptors(),
		c.CheckEmbedder(ctx),
	}
}

// HasCriticalFailures reports whether any required check failed.
func HasCriticalFailures(results []Result) bool {
	for _, r := range results {
		if r.Critical() {
			return true
		}
	}
	return false
}

// SummaryStatus folds results into "ready", "ready_with_warnings", or
// "failed".
func SummaryStatus(results []Result) string {
	warned := false
	for _, r := range results {
		if r.Critical() {
			return "failed"
		}
		if r.Status == StatusWarn || r.Status == StatusFail {
			warned = true
		}
	}
	if warned {
		return "ready_with_warnings"
	}
	return "ready"
}

// CheckWriteAccess verifies the project directory is writable.
func (c *Checker) CheckWriteAccess(root string) Result {
	res := Result{Name: "write_access", Required: true}

	probe := filepath.Join(root, ".codeatlas-preflight")
	f, err := os.Create(probe)
	if err != nil {
		res.Status = StatusFail
		res.Message = fmt.Sprintf("cannot write to project directory: %v", err)
		return res
	}
	_ = f.Close()
	_ = os.Remove(probe)

	res.Status = StatusPass
	res.Message = "project directory writable"
	return res
}

// CheckFileDescriptors verifies the open-file limit covers a scan.
func (c *Checker) CheckFileDescriptors() Result {
	res := Result{Name: "file_descriptors", Required: true}

	var lim syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &lim); err != nil {
		res.Status = StatusFail
		res.Message = fmt.Sprintf("cannot read file descriptor limit: %v", err)
		return res
	}

	if lim.Cur < MinFileDescriptors {
		res.Status = StatusFail
		res.Message = fmt.Sprintf("%d open files allowed (minimum %d)", lim.Cur, MinFileDescriptors)
		res.Hint = "run 'ulimit -n 4096' to raise the limit"
		return res
	}

	res.Status = StatusPass
	res.Message = fmt.Sprintf("%d open files allowed", lim.Cur)
	return res
}
