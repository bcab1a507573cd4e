package cache

import (
	"github.com/logtide-io/logtide/pkg/rules"
)

// EntryKind identifies the shape of an entry.
type EntryKind uint8

const (
	// EntryDir is a tracked directory.
	EntryDir EntryKind = iota
	// EntryFile is a tracked regular file.
	EntryFile
	// EntrySymlink is a tracked symbolic link.
	EntrySymlink
)

// String provides a human-readable representation of the entry kind.
func (k EntryKind) String() string {
	switch k {
	case EntryDir:
		return "dir"
	case EntryFile:
		return "file"
	case EntrySymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// Entry is the in-memory record for a tracked filesystem object. The fields
// in use depend on the kind: directories carry children, symlinks carry a
// link target and a local rule scope, files carry tail state. Parent links
// are stored as keys rather than pointers; ownership flows strictly from
// parent to child through the children map.
type Entry struct {
	// kind is the entry's shape.
	kind EntryKind
	// name is the entry's leaf path component.
	name string
	// parent is the key of the containing directory entry, if tracked.
	parent EntryKey
	// children maps leaf path components to child entry keys. Only set for
	// directories.
	children map[string]EntryKey
	// wd is the absolute path used as the entry's watch identifier.
	wd string
	// link is the symlink's target path. Only set for symlinks.
	link string
	// rules is the symlink's local admission scope, granting its target (and
	// the target's subtree) passage through the master rules. Only set for
	// symlinks.
	rules *rules.Set
	// tail is the file's tail state, released when the entry is dropped.
	// Only set for files.
	tail *TailedFile
}

// Kind returns the entry's kind.
func (e *Entry) Kind() EntryKind {
	return e.kind
}

// Name returns the entry's leaf path component.
func (e *Entry) Name() string {
	return e.name
}

// Path returns the absolute path identifying the entry's watch.
func (e *Entry) Path() string {
	return e.wd
}

// Parent returns the key of the entry's parent, which may be zero.
func (e *Entry) Parent() EntryKey {
	return e.parent
}

// Link returns the symlink's target path, or an empty string for other kinds.
func (e *Entry) Link() string {
	return e.link
}

// Tail returns the file's tail state, or nil for other kinds.
func (e *Entry) Tail() *TailedFile {
	return e.tail
}

// EntryView is a copy of an entry's externally relevant state, safe to retain
// after the reconciler's lock is released.
type EntryView struct {
	// Kind is the entry's kind.
	Kind EntryKind
	// Name is the entry's leaf path component.
	Name string
	// Path is the entry's absolute path.
	Path string
	// Link is the symlink target, if the entry is a symlink.
	Link string
}
