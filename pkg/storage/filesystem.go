package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage serves objects from disk, one directory per bucket.
type LocalStorage struct {
	baseDir string
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./storage"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir}, nil
}

// Exists reports whether bucket/key is a regular file.
func (s *LocalStorage) Exists(_ context.Context, bucket, key string) (bool, error) {
	path, err := s.resolve(bucket, key)
	if err != nil {
		return false, nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat object: %w", err)
	}
	return info.Mode().IsRegular(), nil
}

// Open returns a read-only handle for the stored object.
func (s *LocalStorage) Open(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	path, err := s.resolve(bucket, key)
	if err != nil {
		return nil, ErrObjectNotFound
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("open object: %w", err)
	}
	return file, nil
}

// Save writes data to bucket/key, creating parent directories.
func (s *LocalStorage) Save(bucket, key string, data []byte) error {
	path, err := s.resolve(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("prepare object directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write object: %w", err)
	}
	return nil
}

// Close is a no-op for the filesystem backend.
func (s *LocalStorage) Close() error { return nil }

// resolve keeps every object path inside baseDir.
func (s *LocalStorage) resolve(bucket, key string) (string, error) {
	if bucket == "" || key == "" {
		return "", fmt.Errorf("bucket and key required")
	}
	path := filepath.Join(s.baseDir, bucket, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.baseDir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("object path escapes storage root")
	}
	return path, nil
}
