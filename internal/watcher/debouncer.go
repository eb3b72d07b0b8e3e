package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// debouncer coalesces rapid repeat events for the same path within a time
// window, so an editor that writes a file several times in quick succession
// produces one re-index, not several. Coalescing rules, grounded on the
// teacher's Debouncer:
//   - CREATE + MODIFY = CREATE (file is still new)
//   - CREATE + DELETE = nothing (file never really existed)
//   - MODIFY + DELETE = DELETE (file is gone)
//   - DELETE + CREATE = MODIFY (file was replaced)
//
// Unlike the teacher's Debouncer, which emits []FileEvent batches on its own
// channel, this one feeds the single FileEvent channel the Watcher interface
// already exposes, emitting one event per path per flush.
type debouncer struct {
	window time.Duration
	out    chan<- FileEvent

	mu      sync.Mutex
	pending map[string]*pendingEvent
	timer   *time.Timer
	stopped bool
}

type pendingEvent struct {
	event   FileEvent
	firstOp Operation // first operation seen for this path, drives coalescing
}

func newDebouncer(window time.Duration, out chan<- FileEvent) *debouncer {
	return &debouncer{
		window:  window,
		out:     out,
		pending: make(map[string]*pendingEvent),
	}
}

// add queues an event, coalescing it with any pending event for the same path.
func (d *debouncer) add(ev FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if existing, ok := d.pending[ev.Path]; ok {
		coalesced := coalesce(existing.firstOp, existing.event, ev)
		if coalesced == nil {
			delete(d.pending, ev.Path)
		} else {
			existing.event = *coalesced
		}
	} else {
		d.pending[ev.Path] = &pendingEvent{event: ev, firstOp: ev.Operation}
	}

	d.scheduleFlush()
}

// coalesce merges two events for the same path. Returns nil if they cancel
// each other out (a file created and deleted within one debounce window).
func coalesce(firstOp Operation, existing, next FileEvent) *FileEvent {
	switch firstOp {
	case OpCreate:
		switch next.Operation {
		case OpModify:
			return &existing
		case OpDelete:
			return nil
		default:
			return &next
		}
	case OpModify:
		return &next
	case OpDelete:
		if next.Operation == OpCreate {
			result := next
			result.Operation = OpModify
			return &result
		}
		return &next
	default:
		return &next
	}
}

func (d *debouncer) scheduleFlush() {
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

func (d *debouncer) flush() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped || len(d.pending) == 0 {
		return
	}

	for path, pe := range d.pending {
		select {
		case d.out <- pe.event:
		default:
			slog.Warn("watcher event channel full, dropping event", slog.String("path", path))
		}
	}
	d.pending = make(map[string]*pendingEvent)
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
}
