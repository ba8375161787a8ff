// Package store provides the key-value slots the todo list is persisted to.
package store

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Supported storage drivers.
const (
	DriverSQLite = "sqlite"
	DriverFile   = "file"
	DriverMemory = "memory"
)

// Store errors.
var (
	ErrEmptyKey      = errors.New("key cannot be empty")
	ErrClosed        = errors.New("store is closed")
	ErrUnknownDriver = errors.New("unknown storage driver")
	ErrLocked        = errors.New("storage file is locked by another process")
)

// KV defines the interface for a persistent key-value slot.
type KV interface {
	// Get returns the value stored under key. ok is false when the key is absent.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)

	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Close releases the underlying resources.
	Close() error
}

// Open creates the KV backend named by driver. path is ignored by the memory driver.
func Open(driver, path string, logger *zap.Logger) (KV, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch driver {
	case DriverSQLite, "":
		s, err := NewSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		version, _, err := s.SchemaVersion(context.Background())
		if err != nil {
			s.Close()
			return nil, err
		}
		logger.Info("opened sqlite store", zap.String("path", path), zap.Int("schema_version", version))
		return s, nil
	case DriverFile:
		return NewFileStore(path, logger)
	case DriverMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}
