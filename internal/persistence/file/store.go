// Package file stores dashboard blob entries in a single JSON document on disk.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"example.com/learnlog/internal/persistence"
)

// Store is a persistence.BlobStore backed by one JSON object keyed by entry name.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore returns a Store writing to path. The parent directory is created on
// first write.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Get implements persistence.BlobStore.
func (s *Store) Get(_ context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.readLocked()
	if err != nil {
		return nil, err
	}
	payload, ok := doc[name]
	if !ok {
		return nil, nil
	}
	return payload, nil
}

// Put implements persistence.BlobStore. The document is replaced atomically by
// writing a temporary file and renaming it over the original.
func (s *Store) Put(ctx context.Context, entries ...persistence.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := s.readLocked()
	if errors.Is(err, persistence.ErrCorrupt) {
		doc = make(map[string]json.RawMessage)
	} else if err != nil {
		return err
	}
	for _, entry := range entries {
		doc[entry.Name] = json.RawMessage(entry.Payload)
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) readLocked() (map[string]json.RawMessage, error) {
	body, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return make(map[string]json.RawMessage), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	doc := make(map[string]json.RawMessage)
	if len(body) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", persistence.ErrCorrupt, s.path, err)
	}
	return doc, nil
}
