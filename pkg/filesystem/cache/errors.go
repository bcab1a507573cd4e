package cache

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrWatchOverflow indicates that the kernel event queue has overflowed
	// and events have presumably been lost. The mirrored tree can no longer
	// be trusted, so this error is fatal.
	ErrWatchOverflow = errors.New("the kernel event queue has overflowed and events have presumably been lost")
	// ErrExistingEntry indicates an attempt to attach a child to a parent
	// that already has a child at that name.
	ErrExistingEntry = errors.New("unexpected existing entry")
	// ErrLookup indicates a failure to find an entry.
	ErrLookup = errors.New("failed to find entry")
	// ErrParentLookup indicates a failure to find a parent entry.
	ErrParentLookup = errors.New("failed to find parent entry")
	// ErrParentNotValid indicates that a presumed parent is not a directory.
	ErrParentNotValid = errors.New("parent should be a directory")
)

// WatchError indicates a failure to add or remove a kernel watch.
type WatchError struct {
	// Path is the path whose watch operation failed.
	Path string
	// Reason is the underlying failure.
	Reason error
}

// Error implements error.Error.
func (e *WatchError) Error() string {
	return fmt.Sprintf("error watching %s: %v", e.Path, e.Reason)
}

// Unwrap returns the underlying failure.
func (e *WatchError) Unwrap() error {
	return e.Reason
}

// UntrackedWatchError indicates an event for a path absent from the
// watch-descriptor index.
type UntrackedWatchError struct {
	// Path is the untracked path.
	Path string
}

// Error implements error.Error.
func (e *UntrackedWatchError) Error() string {
	return fmt.Sprintf("got event for untracked watch descriptor: %s", e.Path)
}

// PathNotValidError indicates that a path was lost between classification and
// action.
type PathNotValidError struct {
	// Path is the path that is no longer valid.
	Path string
}

// Error implements error.Error.
func (e *PathNotValidError) Error() string {
	return fmt.Sprintf("path is not valid: %s", e.Path)
}

// DirectoryListError indicates a failure to enumerate a directory's contents.
type DirectoryListError struct {
	// Path is the directory whose enumeration failed.
	Path string
	// Reason is the underlying failure.
	Reason error
}

// Error implements error.Error.
func (e *DirectoryListError) Error() string {
	return fmt.Sprintf("unable to list directory %s: %v", e.Path, e.Reason)
}

// Unwrap returns the underlying failure.
func (e *DirectoryListError) Unwrap() error {
	return e.Reason
}

// FileError indicates a failure to open a file's tail state.
type FileError struct {
	// Reason is the underlying failure.
	Reason error
}

// Error implements error.Error.
func (e *FileError) Error() string {
	return fmt.Sprintf("error reading file: %v", e.Reason)
}

// Unwrap returns the underlying failure.
func (e *FileError) Unwrap() error {
	return e.Reason
}
