// Package watching provides the watch adapter that sits between the OS
// notification primitive and the filesystem cache. It owns a single native
// watcher handle, accepts per-path watch/unwatch calls, and produces a
// debounced, single-consumer sequence of events.
package watching

import (
	"context"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/logtide-io/logtide/pkg/logging"
)

const (
	// watchEventChannelCapacity is the capacity of the outbound event
	// channel. The consumer is expected to drain promptly; the buffer only
	// absorbs bursts within a debounce window.
	watchEventChannelCapacity = 1024
)

var (
	// ErrOverflow indicates that the kernel event queue overflowed and events
	// have presumably been lost. It is the only fatal watch error.
	ErrOverflow = errors.New("kernel event queue overflowed")
	// ErrWatchTerminated indicates that the watcher has been terminated.
	ErrWatchTerminated = errors.New("watch terminated")
)

// pendingEvent is an event waiting out its debounce window.
type pendingEvent struct {
	// op is the event kind that will be emitted.
	op Op
	// path is the affected path (the destination for renames).
	path string
	// oldPath is the rename source, if any.
	oldPath string
	// deadline is the time at which the event becomes emittable.
	deadline time.Time
	// cancelled indicates that the event was superseded and must not be
	// emitted.
	cancelled bool
}

// Watcher owns the native watcher handle and debounces its raw notifications.
// Watch and Unwatch may be called concurrently with event consumption, but
// the event channel itself is single-consumer.
type Watcher struct {
	// delay is the debounce window.
	delay time.Duration
	// notifier is the underlying native watcher.
	notifier *fsnotify.Watcher
	// events is the outbound event channel.
	events chan Event
	// cancel terminates the run loop.
	cancel context.CancelFunc
	// done tracks run loop completion.
	done sync.WaitGroup
	// logger is the watcher's logger.
	logger *logging.Logger
}

// NewWatcher creates a watcher with the specified debounce delay.
func NewWatcher(delay time.Duration, logger *logging.Logger) (*Watcher, error) {
	// Validate the delay.
	if delay <= 0 {
		return nil, errors.New("debounce delay must be positive")
	}

	// Create the native watcher.
	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "unable to create native watcher")
	}

	// Create a context to regulate the run loop.
	ctx, cancel := context.WithCancel(context.Background())

	// Create the watcher.
	watcher := &Watcher{
		delay:    delay,
		notifier: notifier,
		events:   make(chan Event, watchEventChannelCapacity),
		cancel:   cancel,
		logger:   logger,
	}

	// Start the run loop and track its termination.
	watcher.done.Add(1)
	go func() {
		watcher.run(ctx)
		watcher.done.Done()
	}()

	// Success.
	return watcher, nil
}

// Watch adds a non-recursive native watch for the specified path.
func (w *Watcher) Watch(path string) error {
	if err := w.notifier.Add(path); err != nil {
		return errors.Wrapf(err, "unable to watch %s", path)
	}
	w.logger.Debugf("watching %s", path)
	return nil
}

// Unwatch removes the native watch for the specified path. Unwatching a path
// that isn't watched is not an error.
func (w *Watcher) Unwatch(path string) error {
	if err := w.notifier.Remove(path); err != nil {
		if errors.Is(err, fsnotify.ErrNonExistentWatch) {
			w.logger.Debugf("unwatch of %s: watch did not exist", path)
			return nil
		}
		return errors.Wrapf(err, "unable to unwatch %s", path)
	}
	w.logger.Debugf("unwatched %s", path)
	return nil
}

// Events returns the debounced event channel. It is closed when the run loop
// exits, whether due to termination or an unrecoverable backend failure.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Terminate stops the run loop and releases the native watcher handle.
func (w *Watcher) Terminate() error {
	// Signal cancellation.
	w.cancel()

	// Wait for the run loop to exit.
	w.done.Wait()

	// Release the native handle.
	return w.notifier.Close()
}

// run implements the debouncing run loop.
func (w *Watcher) run(ctx context.Context) {
	// Close the event channel on exit so the consumer unblocks.
	defer close(w.events)

	// Create the coalescing timer, initially stopped and drained, and ensure
	// that it's stopped once we return.
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	// pending holds debouncing events in arrival order, with index providing
	// per-path access for coalescing. renames holds unpaired move-out notices
	// in arrival order, waiting for a matching create.
	var pending []*pendingEvent
	index := make(map[string]*pendingEvent)
	var renames []*pendingEvent

	// emit forwards an event to the consumer, bailing out on cancellation so
	// that termination never blocks behind a full channel.
	emit := func(event Event) bool {
		select {
		case w.events <- event:
			return true
		case <-ctx.Done():
			return false
		}
	}

	// rearm resets the coalescing timer to the earliest live deadline.
	rearm := func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		var earliest time.Time
		for _, event := range pending {
			if !event.cancelled && (earliest.IsZero() || event.deadline.Before(earliest)) {
				earliest = event.deadline
			}
		}
		for _, event := range renames {
			if !event.cancelled && (earliest.IsZero() || event.deadline.Before(earliest)) {
				earliest = event.deadline
			}
		}
		if !earliest.IsZero() {
			delay := time.Until(earliest)
			if delay < 0 {
				delay = 0
			}
			timer.Reset(delay)
		}
	}

	// flush emits all live events whose debounce window has elapsed. Expired
	// unpaired renames degrade to removal notices for their source paths.
	flush := func(now time.Time) bool {
		var remaining []*pendingEvent
		for _, event := range pending {
			if event.cancelled {
				continue
			}
			if event.deadline.After(now) {
				remaining = append(remaining, event)
				continue
			}
			delete(index, event.path)
			if !emit(Event{Op: event.op, Path: event.path, OldPath: event.oldPath}) {
				return false
			}
		}
		pending = remaining

		var remainingRenames []*pendingEvent
		for _, event := range renames {
			if event.cancelled {
				continue
			}
			if event.deadline.After(now) {
				remainingRenames = append(remainingRenames, event)
				continue
			}
			if !emit(Event{Op: OpRemove, Path: event.path}) {
				return false
			}
		}
		renames = remainingRenames
		return true
	}

	// discard cancels any pending event for the specified path.
	discard := func(path string) {
		if event, ok := index[path]; ok {
			event.cancelled = true
			delete(index, path)
		}
	}

	// schedule records a pending event for the specified path, replacing any
	// existing one.
	schedule := func(event *pendingEvent) {
		discard(event.path)
		pending = append(pending, event)
		index[event.path] = event
	}

	// Loop indefinitely, polling for cancellation, raw events, errors, and
	// timer expiration.
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-w.notifier.Events:
			if !ok {
				emit(Event{Op: OpError, Err: errors.New("native event channel closed")})
				return
			}
			now := time.Now()
			deadline := now.Add(w.delay)
			switch {
			case raw.Op&fsnotify.Create != 0:
				if len(renames) > 0 {
					// Pair the oldest outstanding move-out with this
					// appearance. The kernel orders move notices before their
					// corresponding arrivals.
					source := renames[0]
					renames = renames[1:]
					schedule(&pendingEvent{
						op:       OpRename,
						path:     raw.Name,
						oldPath:  source.path,
						deadline: deadline,
					})
				} else if event, ok := index[raw.Name]; ok {
					// Creates outrank pending writes for the same path.
					if event.op == OpWrite {
						event.op = OpCreate
					}
					event.deadline = deadline
				} else {
					schedule(&pendingEvent{op: OpCreate, path: raw.Name, deadline: deadline})
				}
			case raw.Op&fsnotify.Write != 0:
				if event, ok := index[raw.Name]; ok {
					// A write while a create (or paired rename) is pending
					// collapses into it; only the window restarts.
					event.deadline = deadline
				} else {
					schedule(&pendingEvent{op: OpWrite, path: raw.Name, deadline: deadline})
				}
			case raw.Op&fsnotify.Remove != 0:
				// Removal notices are prompt: supersede anything pending for
				// the path and emit immediately.
				discard(raw.Name)
				if !emit(Event{Op: OpRemove, Path: raw.Name}) {
					return
				}
			case raw.Op&fsnotify.Rename != 0:
				// A move-out notice. Hold it for pairing with a subsequent
				// create; if none arrives within the window, it becomes a
				// removal. A moved entry that is itself watched produces a
				// second notice for the same path, which is folded in.
				discard(raw.Name)
				duplicate := false
				for _, event := range renames {
					if !event.cancelled && event.path == raw.Name {
						duplicate = true
						break
					}
				}
				if !duplicate {
					renames = append(renames, &pendingEvent{path: raw.Name, deadline: deadline})
				}
			default:
				// Attribute-only changes are not interesting.
				continue
			}
			rearm()
		case err, ok := <-w.notifier.Errors:
			if !ok {
				emit(Event{Op: OpError, Err: errors.New("native error channel closed")})
				return
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				if !emit(Event{Op: OpError, Err: ErrOverflow}) {
					return
				}
			} else if !emit(Event{Op: OpError, Err: err}) {
				return
			}
		case <-timer.C:
			if !flush(time.Now()) {
				return
			}
			rearm()
		}
	}
}
