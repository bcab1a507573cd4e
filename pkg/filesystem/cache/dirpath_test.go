package cache

import (
	"os"
	"path/filepath"
	"testing"
)

// TestNewDirPath verifies directory validation.
func TestNewDirPath(t *testing.T) {
	directory := t.TempDir()
	dir, err := NewDirPath(directory)
	if err != nil {
		t.Fatal("expected directory to validate:", err)
	}
	if dir.String() != directory {
		t.Error("unexpected validated path:", dir.String())
	}
}

// TestNewDirPathRejectsFiles verifies that regular files are rejected.
func TestNewDirPathRejectsFiles(t *testing.T) {
	filePath := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(filePath, []byte("data"), 0600); err != nil {
		t.Fatal("unable to create test file:", err)
	}
	if _, err := NewDirPath(filePath); err == nil {
		t.Error("expected a file path to be rejected")
	}
}

// TestNewDirPathRejectsMissing verifies that missing paths are rejected.
func TestNewDirPathRejectsMissing(t *testing.T) {
	if _, err := NewDirPath(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected a missing path to be rejected")
	}
}
