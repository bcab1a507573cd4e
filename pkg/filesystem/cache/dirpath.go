package cache

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// DirPath is a path that referenced a directory at the time of construction.
// It is the required form for the cache's initial roots.
type DirPath struct {
	// path is the validated absolute path.
	path string
}

// NewDirPath validates that the specified path references a directory and
// returns it in absolute form.
func NewDirPath(path string) (DirPath, error) {
	// Compute the absolute form.
	absolute, err := filepath.Abs(path)
	if err != nil {
		return DirPath{}, errors.Wrap(err, "unable to compute absolute path")
	}

	// Verify that the path references a directory.
	info, err := os.Stat(absolute)
	if err != nil {
		return DirPath{}, errors.Wrapf(err, "unable to probe %s", absolute)
	} else if !info.IsDir() {
		return DirPath{}, errors.Errorf("%s is not a directory", absolute)
	}

	// Success.
	return DirPath{path: absolute}, nil
}

// String returns the validated path.
func (d DirPath) String() string {
	return d.path
}
