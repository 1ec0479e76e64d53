package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// debouncer coalesces rapid events for the same path within one window:
//
//	create then modify  -> create
//	create then delete  -> dropped entirely
//	modify then delete  -> delete
//	delete then create  -> modify (file replaced)
type debouncer struct {
	window time.Duration
	output chan []Event

	mu      sync.Mutex
	pending map[string]*pendingEvent
	timer   *time.Timer
	stopped bool
}

type pendingEvent struct {
	event   Event
	firstOp Op
}

func newDebouncer(window time.Duration) *debouncer {
	return &debouncer{
		window:  window,
		pending: make(map[string]*pendingEvent),
		output:  make(chan []Event, 10),
	}
}

func (d *debouncer) add(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if existing, ok := d.pending[ev.Path]; ok {
		merged, keep := coalesce(existing.firstOp, existing.event, ev)
		if !keep {
			delete(d.pending, ev.Path)
		} else {
			existing.event = merged
		}
	} else {
		d.pending[ev.Path] = &pendingEvent{event: ev, firstOp: ev.Op}
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func coalesce(firstOp Op, existing, next Event) (Event, bool) {
	switch {
	case firstOp == OpCreate && next.Op == OpModify:
		return existing, true
	case firstOp == OpCreate && next.Op == OpDelete:
		return Event{}, false
	case firstOp == OpDelete && next.Op == OpCreate:
		next.Op = OpModify
		return next, true
	default:
		return next, true
	}
}

func (d *debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || len(d.pending) == 0 {
		return
	}

	batch := make([]Event, 0, len(d.pending))
	for _, pe := range d.pending {
		batch = append(batch, pe.event)
	}
	d.pending = make(map[string]*pendingEvent)

	select {
	case d.output <- batch:
	default:
		slog.Warn("watcher batch dropped, consumer too slow", "batch_size", len(batch))
	}
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	close(d.output)
}
