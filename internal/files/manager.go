package files

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// AtomicFile is written under a temporary name in the target directory and
// renamed into place by Commit. Readers of the target path never observe a
// partially written artifact.
type AtomicFile struct {
	*os.File
	target string
	done   bool
}

// CreateAtomic opens a temporary file next to target, creating the
// directory if needed
func CreateAtomic(target string) (*AtomicFile, error) {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.CreateTemp(dir, "."+filepath.Base(target)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	return &AtomicFile{File: f, target: target}, nil
}

// TempPath returns the temporary file name
func (a *AtomicFile) TempPath() string {
	return a.File.Name()
}

// Commit syncs, closes and renames the file onto its target
func (a *AtomicFile) Commit() error {
	if a.done {
		return fmt.Errorf("atomic file %s already finished", a.target)
	}
	a.done = true
	tmp := a.File.Name()

	if err := a.File.Sync(); err != nil {
		a.File.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to sync %s: %w", tmp, err)
	}
	if err := a.File.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	if err := os.Chmod(tmp, 0644); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to chmod %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, a.target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename into %s: %w", a.target, err)
	}

	slog.Debug("Committed file", slog.String("path", a.target))
	return nil
}

// Abort discards the temporary file. It is a no-op after Commit, so it can
// be deferred.
func (a *AtomicFile) Abort() {
	if a.done {
		return
	}
	a.done = true
	a.File.Close()
	os.Remove(a.File.Name())
}

// WriteFileAtomic writes the output of fn to path atomically
func WriteFileAtomic(path string, fn func(w io.Writer) error) error {
	f, err := CreateAtomic(path)
	if err != nil {
		return err
	}
	defer f.Abort()

	if err := fn(f); err != nil {
		return err
	}
	return f.Commit()
}

// ReplaceFile renames an already written file onto path, used when a
// library writes the temporary file itself
func ReplaceFile(tmp, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename into %s: %w", path, err)
	}
	return nil
}

// TempPathFor returns an unused temporary path next to path that keeps its
// extension
func TempPathFor(path string) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*"+filepath.Ext(path))
	if err != nil {
		return "", fmt.Errorf("failed to reserve temp path: %w", err)
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return name, nil
}
