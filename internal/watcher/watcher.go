// Package watcher delivers debounced file-change events for a project
// tree so a running server can keep its index current. Events are
// batched: rapid saves of the same file collapse into one event per
// debounce window.
package watcher

import "time"

// Op is the kind of change observed for a path.
type Op int

const (
	// OpCreate marks a newly created file.
	OpCreate Op = iota
	// OpModify marks a content change.
	OpModify
	// OpDelete marks a removed file.
	OpDelete
)

func (op Op) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Event is one observed change. Path is slash-separated and relative
// to the watched root.
type Event struct {
	Path string
	Op   Op
	At   time.Time
}

const (
	// DefaultDebounceWindow coalesces editor save bursts.
	DefaultDebounceWindow = 300 * time.Millisecond

	// DefaultEventBuffer is the batch channel capacity.
	DefaultEventBuffer = 64
)

// Options configures a Watcher.
type Options struct {
	// DebounceWindow is how long to coalesce events before emitting a
	// batch; 0 uses DefaultDebounceWindow.
	DebounceWindow time.Duration

	// Ignore, when non-nil, suppresses events for paths it reports
	// true for. It receives the slash-relative path and whether the
	// entry is a directory.
	Ignore func(rel string, isDir bool) bool
}
