package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage persists files on disk under a base directory.
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("storage directory required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

// Save atomically writes data under filename and returns the stored path
// (base directory joined with filename).
func (s *LocalStorage) Save(filename string, data []byte) (string, error) {
	path, err := s.resolve(filename)
	if err != nil {
		return "", err
	}
	if err := WriteFileAtomic(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", filename, err)
	}
	return path, nil
}

// Read loads a stored file.
func (s *LocalStorage) Read(filename string) ([]byte, error) {
	path, err := s.resolve(filename)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}
	return data, nil
}

// Exists reports whether filename is a regular file in storage.
func (s *LocalStorage) Exists(filename string) bool {
	path, err := s.resolve(filename)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Delete removes a stored file if present.
func (s *LocalStorage) Delete(filename string) error {
	path, err := s.resolve(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", filename, err)
	}
	return nil
}

// Clear removes every file in the base directory and returns how many went.
func (s *LocalStorage) Clear() (int, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, os.MkdirAll(s.baseDir, 0o755)
		}
		return 0, fmt.Errorf("list %s: %w", s.baseDir, err)
	}
	removed := 0
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(s.baseDir, entry.Name())); err != nil {
			return removed, fmt.Errorf("clear %s: %w", entry.Name(), err)
		}
		removed++
	}
	return removed, nil
}

// Move renames a stored file to filename and returns its new path. A missing
// source is reported with os.ErrNotExist.
func (s *LocalStorage) Move(from, filename string) (string, error) {
	src, err := s.resolve(from)
	if err != nil {
		return "", err
	}
	dst, err := s.resolve(filename)
	if err != nil {
		return "", err
	}
	if src == dst {
		if _, err := os.Stat(src); err != nil {
			return "", fmt.Errorf("move %s: %w", from, err)
		}
		return dst, nil
	}
	if err := os.Rename(src, dst); err != nil {
		return "", fmt.Errorf("move %s to %s: %w", from, filename, err)
	}
	return dst, nil
}

// resolve keeps every name inside the base directory. Paths already rooted at
// the base directory (as returned by Save) are accepted; anything else is
// reduced to its base name.
func (s *LocalStorage) resolve(filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("filename required")
	}
	base := filepath.Clean(s.baseDir)
	clean := filepath.Clean(filename)
	if rel, err := filepath.Rel(base, clean); err == nil && rel != "." && !strings.HasPrefix(rel, "..") {
		return filepath.Join(base, rel), nil
	}
	name := filepath.Base(clean)
	if name == "." || name == ".." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid filename %q", filename)
	}
	return filepath.Join(base, name), nil
}
