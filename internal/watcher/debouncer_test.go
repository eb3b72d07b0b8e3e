package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDebouncer_SingleEvent_PassesThrough(t *testing.T) {
	out := make(chan FileEvent, 10)
	d := newDebouncer(50*time.Millisecond, out)
	defer d.stop()

	d.add(FileEvent{Path: "test.go", Operation: OpCreate, Timestamp: time.Now()})

	select {
	case ev := <-out:
		assert.Equal(t, "test.go", ev.Path)
		assert.Equal(t, OpCreate, ev.Operation)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for debounced event")
	}
}

func TestDebouncer_MultipleEventsForSameFile_Coalesces(t *testing.T) {
	out := make(chan FileEvent, 10)
	d := newDebouncer(100*time.Millisecond, out)
	defer d.stop()

	for i := 0; i < 5; i++ {
		d.add(FileEvent{Path: "test.go", Operation: OpModify, Timestamp: time.Now()})
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case ev := <-out:
		assert.Equal(t, "test.go", ev.Path)
		assert.Equal(t, OpModify, ev.Operation)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for debounced event")
	}

	select {
	case ev := <-out:
		t.Fatalf("expected only one coalesced event, got a second: %+v", ev)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestDebouncer_CreateThenDelete_NoEvent(t *testing.T) {
	out := make(chan FileEvent, 10)
	d := newDebouncer(50*time.Millisecond, out)
	defer d.stop()

	d.add(FileEvent{Path: "temp.go", Operation: OpCreate, Timestamp: time.Now()})
	d.add(FileEvent{Path: "temp.go", Operation: OpDelete, Timestamp: time.Now()})

	select {
	case ev := <-out:
		t.Fatalf("expected no event for create+delete, got %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestDebouncer_ModifyThenDelete_DeleteOnly(t *testing.T) {
	out := make(chan FileEvent, 10)
	d := newDebouncer(50*time.Millisecond, out)
	defer d.stop()

	d.add(FileEvent{Path: "existing.go", Operation: OpModify, Timestamp: time.Now()})
	d.add(FileEvent{Path: "existing.go", Operation: OpDelete, Timestamp: time.Now()})

	select {
	case ev := <-out:
		assert.Equal(t, OpDelete, ev.Operation)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for debounced event")
	}
}

func TestDebouncer_DeleteThenCreate_ModifyEvent(t *testing.T) {
	out := make(chan FileEvent, 10)
	d := newDebouncer(50*time.Millisecond, out)
	defer d.stop()

	d.add(FileEvent{Path: "replaced.go", Operation: OpDelete, Timestamp: time.Now()})
	d.add(FileEvent{Path: "replaced.go", Operation: OpCreate, Timestamp: time.Now()})

	select {
	case ev := <-out:
		assert.Equal(t, OpModify, ev.Operation)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for debounced event")
	}
}

func TestDebouncer_DifferentFiles_IndependentEvents(t *testing.T) {
	out := make(chan FileEvent, 10)
	d := newDebouncer(50*time.Millisecond, out)
	defer d.stop()

	d.add(FileEvent{Path: "a.go", Operation: OpCreate, Timestamp: time.Now()})
	d.add(FileEvent{Path: "b.go", Operation: OpModify, Timestamp: time.Now()})
	d.add(FileEvent{Path: "c.go", Operation: OpDelete, Timestamp: time.Now()})

	got := make(map[string]Operation)
	for i := 0; i < 3; i++ {
		select {
		case ev := <-out:
			got[ev.Path] = ev.Operation
		case <-time.After(200 * time.Millisecond):
			t.Fatal("timeout waiting for debounced events")
		}
	}

	assert.Equal(t, OpCreate, got["a.go"])
	assert.Equal(t, OpModify, got["b.go"])
	assert.Equal(t, OpDelete, got["c.go"])
}

func TestDebouncer_CreateThenModify_CreateOnly(t *testing.T) {
	out := make(chan FileEvent, 10)
	d := newDebouncer(50*time.Millisecond, out)
	defer d.stop()

	d.add(FileEvent{Path: "new.go", Operation: OpCreate, Timestamp: time.Now()})
	d.add(FileEvent{Path: "new.go", Operation: OpModify, Timestamp: time.Now()})

	select {
	case ev := <-out:
		assert.Equal(t, OpCreate, ev.Operation)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for debounced event")
	}
}

func TestDebouncer_Stop_StopsFlushing(t *testing.T) {
	out := make(chan FileEvent, 10)
	d := newDebouncer(20*time.Millisecond, out)

	d.add(FileEvent{Path: "a.go", Operation: OpCreate, Timestamp: time.Now()})
	d.stop()

	// after stop, no further events should be delivered, and calling stop
	// again or adding more must not panic.
	require.NotPanics(t, func() { d.stop() })
	d.add(FileEvent{Path: "b.go", Operation: OpCreate, Timestamp: time.Now()})

	select {
	case ev := <-out:
		t.Fatalf("expected no events after stop, got %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}
