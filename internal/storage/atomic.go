package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// AtomicWriter replaces files by writing a sibling temp file, syncing it and
// renaming it over the target. Rename is swappable so tests can simulate a
// crash between the write and the replace.
type AtomicWriter struct {
	Rename func(oldpath, newpath string) error
}

// WriteFileAtomic replaces path with data using os.Rename.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	return AtomicWriter{}.WriteFile(path, data, perm)
}

func (w AtomicWriter) WriteFile(path string, data []byte, perm os.FileMode) error {
	rename := w.Rename
	if rename == nil {
		rename = os.Rename
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	committed = true
	syncDir(dir)
	return nil
}

// syncDir persists the rename itself. Not every platform supports fsync on
// directories, so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}
