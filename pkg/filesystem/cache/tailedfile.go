package cache

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// tailedFileReadChunkSize is the maximum number of bytes returned by a single
// ReadAvailable call.
const tailedFileReadChunkSize = 64 * 1024

// TailedFile is the tail state owned by a file entry: an open handle plus the
// byte offset up to which content has been consumed. The handle keeps the
// underlying inode readable even after the directory entry is unlinked. It is
// released when the owning entry is dropped.
type TailedFile struct {
	// file is the open handle.
	file *os.File
	// offset is the number of bytes consumed so far.
	offset int64
}

// NewTailedFile opens tail state for the specified path, positioned at the
// start of the file.
func NewTailedFile(path string) (*TailedFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open file for tailing")
	}
	return &TailedFile{file: file}, nil
}

// SeekEnd advances the consumed offset to the current end of the file. It is
// used for files discovered at bootstrap, whose historical content is not
// replayed.
func (t *TailedFile) SeekEnd() error {
	info, err := t.file.Stat()
	if err != nil {
		return errors.Wrap(err, "unable to probe file size")
	}
	t.offset = info.Size()
	return nil
}

// Offset returns the consumed byte offset.
func (t *TailedFile) Offset() int64 {
	return t.offset
}

// ReadAvailable reads newly appended bytes, up to an internal chunk size,
// advancing the consumed offset. If the file shrank below the consumed
// offset, the file is assumed to have been truncated in place and reading
// restarts from the beginning. A nil slice is returned when no new content is
// available.
func (t *TailedFile) ReadAvailable() ([]byte, error) {
	// Probe the current size.
	info, err := t.file.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "unable to probe file size")
	}
	size := info.Size()

	// Handle in-place truncation.
	if size < t.offset {
		t.offset = 0
	}

	// Check if there's anything to read.
	if size == t.offset {
		return nil, nil
	}

	// Compute the read size.
	available := size - t.offset
	if available > tailedFileReadChunkSize {
		available = tailedFileReadChunkSize
	}

	// Read from the consumed offset.
	buffer := make([]byte, available)
	read, err := t.file.ReadAt(buffer, t.offset)
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "unable to read appended content")
	}
	t.offset += int64(read)

	// Done.
	return buffer[:read], nil
}

// Close releases the underlying handle.
func (t *TailedFile) Close() error {
	return t.file.Close()
}
