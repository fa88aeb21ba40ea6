// Package atomicfile provides write-then-rename durability for the small
// JSON state files the mesh persists (manifest, queue mirror, peer registry,
// keystore, pid file),
// generalizing the teacher's file-backed key storage pattern
// (pkg/agent/crypto/storage/file.go) with the temp-file-then-rename step
// the spec requires (§4.6, §4.7, §5) that the teacher's single os.WriteFile
// call does not provide.
package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"
)

// Write durably replaces path's contents with data. It writes to a sibling
// temp file and renames over path so readers never observe a partial write.
func Write(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("atomicfile: create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("atomicfile: create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("atomicfile: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("atomicfile: close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("atomicfile: chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("atomicfile: rename into place: %w", err)
	}
	return nil
}

// ReadIfExists reads path's contents, returning (nil, nil) if the file is absent so
// callers can treat a missing mirror as empty state rather than an error.
func ReadIfExists(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("atomicfile: read %s: %w", path, err)
	}
	return data, nil
}
