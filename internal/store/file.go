package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
	"go.uber.org/zap"
)

const lockSuffix = ".lock"

// FileStore implements the KV interface on a single JSON file.
// The whole file is rewritten on every Set through a temporary file and a rename.
// An exclusive lock on a sibling ".lock" file is held until Close, so only one
// process writes the file at a time.
type FileStore struct {
	path   string
	flk    *flock.Flock
	logger *zap.Logger

	mu     sync.Mutex
	data   map[string]string
	closed bool
}

// NewFileStore opens (or creates) the JSON file at path and locks it.
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file store path is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	flk := flock.New(path + lockSuffix)
	locked, err := flk.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock for %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}

	s := &FileStore{
		path:   path,
		flk:    flk,
		logger: logger,
	}
	if err := s.load(); err != nil {
		_ = flk.Unlock()
		return nil, err
	}

	logger.Debug("file store opened", zap.String("path", path), zap.Int("keys", len(s.data)))
	return s, nil
}

func (s *FileStore) load() error {
	s.data = make(map[string]string)

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read data file %s: %w", s.path, err)
	}
	if len(raw) == 0 {
		return nil
	}

	if err := json.Unmarshal(raw, &s.data); err != nil {
		return fmt.Errorf("failed to unmarshal data file %s: %w", s.path, err)
	}
	return nil
}

// Get returns the value stored under key.
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}
	if key == "" {
		return nil, false, ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, false, ErrClosed
	}

	value, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return []byte(value), true, nil
}

// Set stores value under key and rewrites the file.
func (s *FileStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	if key == "" {
		return ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	next := make(map[string]string, len(s.data)+1)
	for k, v := range s.data {
		next[k] = v
	}
	next[key] = string(value)

	if err := s.write(next); err != nil {
		return err
	}
	s.data = next
	return nil
}

func (s *FileStore) write(data map[string]string) error {
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal data file: %w", err)
	}
	encoded = append(encoded, '\n')

	tmp := s.path + ".tmp"
	defer func() { _ = os.Remove(tmp) }()

	if err := os.WriteFile(tmp, encoded, 0o644); err != nil {
		return fmt.Errorf("failed to write temporary data file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", tmp, s.path, err)
	}
	return nil
}

// Close releases the file lock. It is safe to call more than once.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.flk.Unlock()
}
