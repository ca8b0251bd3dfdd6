package storage

import (
	"context"
	"errors"

	"github.com/goodtune/focuswatch/internal/eventlog"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// ErrLocked is returned when another process holds an exclusive lock on the
// store, such as a running tracker on a bolt database.
var ErrLocked = errors.New("storage: database locked by another process")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Events() eventlog.Backend
	Checkpoints() CheckpointStore
}

// CheckpointStore keeps small named JSON documents, such as tracker state.
// Put replaces the whole document.
type CheckpointStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
