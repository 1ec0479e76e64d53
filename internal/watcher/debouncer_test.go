package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collectBatch(t *testing.T, d *debouncer) []Event {
	t.Helper()
	select {
	case batch := <-d.output:
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("no batch emitted")
		return nil
	}
}

func TestDebouncerEmitsAfterWindow(t *testing.T) {
	d := newDebouncer(10 * time.Millisecond)
	defer d.stop()

	d.add(Event{Path: "src/app.ts", Op: OpModify})

	batch := collectBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, "src/app.ts", batch[0].Path)
	assert.Equal(t, OpModify, batch[0].Op)
}

func TestDebouncerCoalescesSamePath(t *testing.T) {
	d := newDebouncer(20 * time.Millisecond)
	defer d.stop()

	d.add(Event{Path: "src/app.ts", Op: OpModify})
	d.add(Event{Path: "src/app.ts", Op: OpModify})
	d.add(Event{Path: "src/app.ts", Op: OpModify})

	batch := collectBatch(t, d)
	assert.Len(t, batch, 1)
}

func TestDebouncerCreateThenDeleteCancels(t *testing.T) {
	d := newDebouncer(20 * time.Millisecond)
	defer d.stop()

	d.add(Event{Path: "tmp.ts", Op: OpCreate})
	d.add(Event{Path: "tmp.ts", Op: OpDelete})
	d.add(Event{Path: "kept.ts", Op: OpModify})

	batch := collectBatch(t, d)
	require.Len(t, batch, 1)
	assert.Equal(t, "kept.ts", batch[0].Path)
}

func TestCoalesceRules(t *testing.T) {
	tests := []struct {
		name    string
		first   Op
		next    Op
		wantOp  Op
		dropped bool
	}{
		{"create then modify stays create", OpCreate, OpModify, OpCreate, false},
		{"create then delete cancels", OpCreate, OpDelete, 0, true},
		{"modify then delete is delete", OpModify, OpDelete, OpDelete, false},
		{"delete then create is modify", OpDelete, OpCreate, OpModify, false},
		{"modify then modify is modify", OpModify, OpModify, OpModify, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			existing := Event{Path: "f.ts", Op: tt.first}
			merged, keep := coalesce(tt.first, existing, Event{Path: "f.ts", Op: tt.next})
			if tt.dropped {
				assert.False(t, keep)
				return
			}
			require.True(t, keep)
			assert.Equal(t, tt.wantOp, merged.Op)
		})
	}
}

func TestDebouncerStopIsIdempotent(t *testing.T) {
	d := newDebouncer(10 * time.Millisecond)
	d.stop()
	d.stop()

	// Adds after stop are dropped without panicking.
	d.add(Event{Path: "late.ts", Op: OpModify})

	_, open := <-d.output
	assert.False(t, open)
}
