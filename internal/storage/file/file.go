// Package file stores the event log as a JSON lines file and checkpoints as
// individual JSON documents next to it.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/goodtune/focuswatch/internal/eventlog"
	"github.com/goodtune/focuswatch/internal/storage"
)

const checkpointDir = "checkpoints"

var validKey = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Store implements storage.Store on the local filesystem.
type Store struct {
	events      *eventlog.FileBackend
	checkpoints *checkpointStore
}

// Open returns a store for the log file at path. The file is created on the
// first append.
func Open(path string) (*Store, error) {
	if err := storage.EnsureParentDir(path); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	dir := filepath.Join(filepath.Dir(path), checkpointDir)
	if err := storage.EnsureDir(dir); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	return &Store{
		events:      eventlog.NewFileBackend(path),
		checkpoints: &checkpointStore{dir: dir},
	}, nil
}

// Close is a no-op; files are opened per operation.
func (s *Store) Close() error {
	return nil
}

// Events returns the event log backend.
func (s *Store) Events() eventlog.Backend { return s.events }

// Checkpoints returns the checkpoint store.
func (s *Store) Checkpoints() storage.CheckpointStore { return s.checkpoints }

type checkpointStore struct {
	dir string
}

func (c *checkpointStore) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("invalid checkpoint key %q", key)
	}
	return filepath.Join(c.dir, key+".json"), nil
}

func (c *checkpointStore) Get(ctx context.Context, key string) ([]byte, error) {
	path, err := c.path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	return data, nil
}

// Put writes to a temporary file and renames it over the previous document.
func (c *checkpointStore) Put(ctx context.Context, key string, value []byte) error {
	path, err := c.path(key)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(c.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}
	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}

func (c *checkpointStore) Delete(ctx context.Context, key string) error {
	path, err := c.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}
