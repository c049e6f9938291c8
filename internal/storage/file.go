package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sugawarayuuta/sonnet"
)

// FileStore persists snapshots as a JSON file, replaced atomically on save.
type FileStore struct {
	path string
}

var _ Store = (*FileStore)(nil)

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(_ context.Context) (*Snapshot, bool, error) {
	stat, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: stat checkpoint: %w", ErrIO, err)
	}
	if stat.IsDir() {
		return nil, false, fmt.Errorf("%w: checkpoint path %s is a directory", ErrIO, s.path)
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, false, fmt.Errorf("%w: read checkpoint: %w", ErrIO, err)
	}

	var snapshot Snapshot
	if err := sonnet.Unmarshal(data, &snapshot); err != nil {
		return nil, false, fmt.Errorf("%w: parse checkpoint: %w", ErrSerialization, err)
	}
	return &snapshot, true, nil
}

func (s *FileStore) Save(_ context.Context, snapshot *Snapshot) error {
	if snapshot == nil {
		return fmt.Errorf("%w: nil snapshot", ErrSerialization)
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create checkpoint dir: %w", ErrIO, err)
		}
	}

	data, err := sonnet.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("%w: marshal checkpoint: %w", ErrSerialization, err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("%w: write checkpoint tmp: %w", ErrIO, err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("%w: rename checkpoint: %w", ErrIO, err)
	}
	return nil
}
