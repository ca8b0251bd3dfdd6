package bolt

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/goodtune/focuswatch/internal/eventlog"
	"github.com/goodtune/focuswatch/internal/storage"
	"go.etcd.io/bbolt"
)

const (
	bucketEvents      = "events"
	bucketCheckpoints = "checkpoints"
)

// lockTimeout bounds the wait for the file lock. bbolt locks the whole file,
// so a writer excludes every other process, readers included.
var lockTimeout = 2 * time.Second

// Store implements the storage.Store interface using bbolt.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed store for reading and writing.
func Open(path string) (*Store, error) {
	if err := storage.EnsureParentDir(path); err != nil {
		return nil, err
	}

	db, err := openDB(path, false)
	if err != nil {
		return nil, err
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// OpenReadOnly opens an existing store with a shared lock. Several readers
// may hold it at once, but not while a writer has the database open; that
// case returns storage.ErrLocked.
func OpenReadOnly(path string) (*Store, error) {
	db, err := openDB(path, true)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func openDB(path string, readOnly bool) (*bbolt.DB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: lockTimeout, ReadOnly: readOnly})
	if errors.Is(err, bbolt.ErrTimeout) {
		return nil, fmt.Errorf("open bolt db %s: %w", path, storage.ErrLocked)
	}
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}
	return db, nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{bucketEvents, bucketCheckpoints} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

// Close closes the underlying store database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Events returns the event log backend.
func (s *Store) Events() eventlog.Backend { return &eventStore{db: s.db} }

// Checkpoints returns the checkpoint store.
func (s *Store) Checkpoints() storage.CheckpointStore { return &checkpointStore{db: s.db} }

// sequenceKey encodes seq big-endian so cursor order equals append order.
func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

type eventStore struct {
	db *bbolt.DB
}

func (s *eventStore) Append(ctx context.Context, line []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bucket := tx.Bucket([]byte(bucketEvents))
		if bucket == nil {
			return fmt.Errorf("events bucket missing")
		}
		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}
		return bucket.Put(sequenceKey(seq), line)
	})
}

func (s *eventStore) Scan(ctx context.Context, fn func(line []byte) error) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketEvents))
		if bucket == nil {
			return nil
		}
		cursor := bucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// v is only valid inside the transaction.
			line := make([]byte, len(v))
			copy(line, v)
			if err := fn(line); err != nil {
				return err
			}
		}
		return nil
	})
}

// Size returns the bucket sequence, which grows with every append.
func (s *eventStore) Size(ctx context.Context) (int64, error) {
	var size int64
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketEvents))
		if bucket == nil {
			return nil
		}
		size = int64(bucket.Sequence())
		return nil
	})
	return size, err
}

type checkpointStore struct {
	db *bbolt.DB
}

func (s *checkpointStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketCheckpoints))
		if bucket == nil {
			return storage.ErrNotFound
		}
		data := bucket.Get([]byte(key))
		if data == nil {
			return storage.ErrNotFound
		}
		value = make([]byte, len(data))
		copy(value, data)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *checkpointStore) Put(ctx context.Context, key string, value []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		bucket := tx.Bucket([]byte(bucketCheckpoints))
		if bucket == nil {
			return fmt.Errorf("checkpoints bucket missing")
		}
		return bucket.Put([]byte(key), value)
	})
}

func (s *checkpointStore) Delete(ctx context.Context, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketCheckpoints))
		if bucket == nil {
			return fmt.Errorf("checkpoints bucket missing")
		}
		return bucket.Delete([]byte(key))
	})
}
