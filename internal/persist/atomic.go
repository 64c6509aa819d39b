// Package persist implements the write-temp-in-same-directory →
// fsync → rename-over-existing → optional .bak-promotion pattern for
// every critical write, plus a read path that falls back to the
// previous .bak on parse failure. This is a deliberate, justified
// standard-library implementation (see DESIGN.md).
package persist

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteJSONAtomic marshals v as indented JSON and writes it to path
// using write-temp+fsync+rename, promoting the previous version of
// path to path+".bak" first so a reader never observes a partial
// write.
func WriteJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	return WriteFileAtomic(path, data)
}

// WriteFileAtomic writes data to path via a temp file in the same
// directory, fsyncs it, then renames it over path. If path already
// exists it is copied to path+".bak" immediately before the rename so
// the previous good version is always recoverable.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp for %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsync temp for %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp for %s: %w", path, err)
	}

	if _, err := os.Stat(path); err == nil {
		_ = copyFile(path, path+".bak")
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp over %s: %w", path, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

// ReadJSON reads and unmarshals path into v. On parse failure it
// retries against path+".bak" before giving up — the reader-side half
// of the .bak-fallback contract.
func ReadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err == nil {
		if jerr := json.Unmarshal(data, v); jerr == nil {
			return nil
		}
	}

	bakData, bakErr := os.ReadFile(path + ".bak")
	if bakErr != nil {
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		return fmt.Errorf("parse %s and no .bak available", path)
	}
	if jerr := json.Unmarshal(bakData, v); jerr != nil {
		return fmt.Errorf("parse %s and its .bak both failed: %w", path, jerr)
	}
	return nil
}

// Exists reports whether path is present on disk.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
