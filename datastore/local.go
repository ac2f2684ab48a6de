package datastore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalStore is a Store backed by a directory on the local filesystem,
// mirroring the teacher's FileStore checkpoint backend: a validated root
// directory, files addressed by a relative key beneath it.
type LocalStore struct {
	dir string
}

// NewLocalStore constructs a LocalStore rooted at dir. dir must already
// exist; NewLocalStore does not create it.
func NewLocalStore(dir string) (*LocalStore, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("stat data directory %q: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%q is not a directory", dir)
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) path(key string) string {
	return filepath.Join(s.dir, key)
}

// List returns the names of regular files directly under the store's
// directory.
func (s *LocalStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", s.dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Download reads the full contents of key.
func (s *LocalStore) Download(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", key, err)
	}
	return data, nil
}

// Upload writes data to key, creating or truncating it.
func (s *LocalStore) Upload(ctx context.Context, key string, data []byte) error {
	if err := os.WriteFile(s.path(key), data, 0o644); err != nil {
		return fmt.Errorf("write %q: %w", key, err)
	}
	return nil
}

// Exists reports whether key exists in the store's directory.
func (s *LocalStore) Exists(key string) bool {
	_, err := os.Stat(s.path(key))
	return err == nil
}

// ResolvePath performs the three-tier resolution CSV blocks apply to a
// configured file_path: absolute, relative to dataDir, relative to rootDir,
// in that order. It returns the first candidate that exists on disk.
func ResolvePath(filePath, dataDir, rootDir string) (string, bool) {
	if filepath.IsAbs(filePath) {
		if _, err := os.Stat(filePath); err == nil {
			return filePath, true
		}
		return "", false
	}

	dataCandidate := filepath.Join(dataDir, filePath)
	if _, err := os.Stat(dataCandidate); err == nil {
		return dataCandidate, true
	}

	rootCandidate := filepath.Join(rootDir, filePath)
	if _, err := os.Stat(rootCandidate); err == nil {
		return rootCandidate, true
	}

	return "", false
}
