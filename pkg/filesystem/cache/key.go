package cache

import (
	"fmt"
)

// EntryKey is an opaque stable identifier for an entry in an EntryMap. Keys
// are comparable and remain valid until the entry they reference is removed.
// A slot freed by removal may be reused, but reuse bumps the slot generation,
// so stale keys never resolve. The zero value references no entry.
type EntryKey struct {
	// index is the slot index within the arena.
	index uint32
	// generation is the slot generation at the time the key was issued.
	// Generations start at 1, so the zero key is always invalid.
	generation uint32
}

// IsZero indicates whether or not the key is the zero (no-entry) key.
func (k EntryKey) IsZero() bool {
	return k.generation == 0
}

// String provides a human-readable representation of the key.
func (k EntryKey) String() string {
	if k.IsZero() {
		return "EntryKey(none)"
	}
	return fmt.Sprintf("EntryKey(%d.%d)", k.index, k.generation)
}
