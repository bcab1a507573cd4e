package watching

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const (
	// testDelay is the debounce window used by watcher tests.
	testDelay = 100 * time.Millisecond
	// testSettleTime is how long tests wait for debounced events to drain.
	// It needs to be comfortably larger than the debounce window.
	testSettleTime = 600 * time.Millisecond
)

// newTestWatcher creates a watcher for testing and registers cleanup.
func newTestWatcher(t *testing.T) *Watcher {
	t.Helper()
	watcher, err := NewWatcher(testDelay, nil)
	if err != nil {
		t.Fatal("unable to create watcher:", err)
	}
	t.Cleanup(func() {
		watcher.Terminate()
	})
	return watcher
}

// drain collects events from the watcher until the settle window elapses.
func drain(watcher *Watcher) []Event {
	var events []Event
	deadline := time.After(testSettleTime)
	for {
		select {
		case event, ok := <-watcher.Events():
			if !ok {
				return events
			}
			events = append(events, event)
		case <-deadline:
			return events
		}
	}
}

// TestWatcherCreateWriteCollapse verifies that a create followed by writes
// inside the debounce window surfaces as a single create.
func TestWatcherCreateWriteCollapse(t *testing.T) {
	directory := t.TempDir()
	watcher := newTestWatcher(t)
	if err := watcher.Watch(directory); err != nil {
		t.Fatal("unable to watch directory:", err)
	}

	filePath := filepath.Join(directory, "file1.log")
	file, err := os.Create(filePath)
	if err != nil {
		t.Fatal("unable to create test file:", err)
	}
	if _, err := file.WriteString("sample\n"); err != nil {
		t.Fatal("unable to write test data:", err)
	}
	file.Close()

	events := drain(watcher)
	var creates, writes int
	for _, event := range events {
		if event.Path != filePath {
			continue
		}
		switch event.Op {
		case OpCreate:
			creates++
		case OpWrite:
			writes++
		}
	}
	if creates != 1 {
		t.Errorf("expected exactly one create, got %d (events: %v)", creates, events)
	}
	if writes != 0 {
		t.Errorf("expected writes to collapse into the create, got %d", writes)
	}
}

// TestWatcherWriteCoalescing verifies that repeated writes inside the window
// coalesce into a single write event.
func TestWatcherWriteCoalescing(t *testing.T) {
	directory := t.TempDir()
	filePath := filepath.Join(directory, "file1.log")
	file, err := os.Create(filePath)
	if err != nil {
		t.Fatal("unable to create test file:", err)
	}
	defer file.Close()

	watcher := newTestWatcher(t)
	if err := watcher.Watch(directory); err != nil {
		t.Fatal("unable to watch directory:", err)
	}

	for i := 0; i < 5; i++ {
		if _, err := file.WriteString("sample line\n"); err != nil {
			t.Fatal("unable to write test data:", err)
		}
	}

	events := drain(watcher)
	var writes int
	for _, event := range events {
		if event.Op == OpWrite && event.Path == filePath {
			writes++
		}
	}
	if writes != 1 {
		t.Errorf("expected a single coalesced write, got %d (events: %v)", writes, events)
	}
}

// TestWatcherRenamePairing verifies that a move inside a watched directory
// surfaces as a paired rename rather than a remove plus a create.
func TestWatcherRenamePairing(t *testing.T) {
	directory := t.TempDir()
	oldPath := filepath.Join(directory, "a.log")
	newPath := filepath.Join(directory, "b.log")
	if file, err := os.Create(oldPath); err != nil {
		t.Fatal("unable to create test file:", err)
	} else {
		file.Close()
	}

	watcher := newTestWatcher(t)
	if err := watcher.Watch(directory); err != nil {
		t.Fatal("unable to watch directory:", err)
	}

	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatal("unable to rename test file:", err)
	}

	events := drain(watcher)
	var rename *Event
	for i, event := range events {
		if event.Op == OpRename {
			rename = &events[i]
			break
		}
	}
	if rename == nil {
		t.Fatalf("expected a rename event, got: %v", events)
	}
	if rename.OldPath != oldPath || rename.Path != newPath {
		t.Errorf("rename paths mismatched: %s -> %s", rename.OldPath, rename.Path)
	}
	for _, event := range events {
		if event.Op == OpCreate && event.Path == newPath {
			t.Error("paired create surfaced separately")
		}
	}
}

// TestWatcherRemoveNotice verifies that removals surface promptly.
func TestWatcherRemoveNotice(t *testing.T) {
	directory := t.TempDir()
	filePath := filepath.Join(directory, "doomed.log")
	if file, err := os.Create(filePath); err != nil {
		t.Fatal("unable to create test file:", err)
	} else {
		file.Close()
	}

	watcher := newTestWatcher(t)
	if err := watcher.Watch(directory); err != nil {
		t.Fatal("unable to watch directory:", err)
	}

	if err := os.Remove(filePath); err != nil {
		t.Fatal("unable to remove test file:", err)
	}

	events := drain(watcher)
	var removed bool
	for _, event := range events {
		if event.Op == OpRemove && event.Path == filePath {
			removed = true
		}
	}
	if !removed {
		t.Errorf("expected a remove notice, got: %v", events)
	}
}

// TestWatcherUnwatchIdempotent verifies that unwatching an unknown path is a
// non-error.
func TestWatcherUnwatchIdempotent(t *testing.T) {
	watcher := newTestWatcher(t)
	if err := watcher.Unwatch(filepath.Join(t.TempDir(), "never-watched")); err != nil {
		t.Error("expected idempotent unwatch, got:", err)
	}
}

// TestWatcherTerminateClosesEvents verifies that termination closes the event
// channel so consumers unblock.
func TestWatcherTerminateClosesEvents(t *testing.T) {
	watcher, err := NewWatcher(testDelay, nil)
	if err != nil {
		t.Fatal("unable to create watcher:", err)
	}
	if err := watcher.Terminate(); err != nil {
		t.Error("termination failed:", err)
	}
	select {
	case _, ok := <-watcher.Events():
		if ok {
			t.Error("expected closed event channel")
		}
	case <-time.After(time.Second):
		t.Error("event channel not closed after termination")
	}
}
