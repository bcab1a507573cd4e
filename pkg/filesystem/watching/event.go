package watching

import (
	"fmt"
)

// Op identifies the kind of a debounced watch event.
type Op uint8

const (
	// OpCreate indicates that a new filesystem entry appeared and no further
	// activity was detected for its path within the debounce window. A write
	// observed while a create is pending collapses into the create.
	OpCreate Op = iota
	// OpWrite indicates that an entry's content changed and no further
	// activity was detected for its path within the debounce window.
	OpWrite
	// OpRemove is a prompt notice of pending removal for a path. The entry
	// may continue to exist until its last open handle is closed.
	OpRemove
	// OpRename indicates that an entry moved within the watched set, with
	// both paths observed inside the debounce window.
	OpRename
	// OpRescan indicates that the watcher lost state and the mirrored tree
	// must be refreshed from scratch.
	OpRescan
	// OpError carries a watch error. All errors are non-fatal except
	// ErrOverflow, after which the event stream can no longer be trusted.
	OpError
)

// String provides a human-readable representation of the op.
func (o Op) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpWrite:
		return "write"
	case OpRemove:
		return "remove"
	case OpRename:
		return "rename"
	case OpRescan:
		return "rescan"
	case OpError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a debounced watch event, decoupled from the notification library's
// own event vocabulary so that backend changes stay contained to this package.
type Event struct {
	// Op is the event kind.
	Op Op
	// Path is the affected path. For OpRename it is the destination; for
	// OpError it may be empty.
	Path string
	// OldPath is the rename source. It is only set for OpRename.
	OldPath string
	// Err is the underlying error for OpError events.
	Err error
}

// String provides a human-readable representation of the event.
func (e Event) String() string {
	switch e.Op {
	case OpRename:
		return fmt.Sprintf("rename %s -> %s", e.OldPath, e.Path)
	case OpError:
		return fmt.Sprintf("error: %v (%s)", e.Err, e.Path)
	default:
		return fmt.Sprintf("%s %s", e.Op, e.Path)
	}
}
