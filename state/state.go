// Package state persists orchestrator results between invocations. The
// orchestrator only talks to the Store interface; the file implementation
// keeps one JSON document per key.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store is a minimal key-value store for run results and timestamps
type Store interface {
	// Get unmarshals the value under key into v. The boolean reports
	// whether the key existed.
	Get(key string, v any) (bool, error)
	// Set marshals v and stores it under key, replacing any prior value
	Set(key string, v any) error
	// Delete removes a key; deleting a missing key is not an error
	Delete(key string) error
}

// FileStore keeps each key as a JSON file inside a directory
type FileStore struct {
	dir string
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates the backing directory if needed
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Get(key string, v any) (bool, error) {
	data, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading state key %q: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decoding state key %q: %w", key, err)
	}
	return true, nil
}

func (s *FileStore) Set(key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state key %q: %w", key, err)
	}
	if err := os.WriteFile(s.path(key), data, 0o644); err != nil {
		return fmt.Errorf("writing state key %q: %w", key, err)
	}
	return nil
}

func (s *FileStore) Delete(key string) error {
	err := os.Remove(s.path(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("deleting state key %q: %w", key, err)
	}
	return nil
}

// path flattens the key into a safe filename
func (s *FileStore) path(key string) string {
	name := strings.ReplaceAll(key, string(filepath.Separator), "_")
	return filepath.Join(s.dir, name+".json")
}
