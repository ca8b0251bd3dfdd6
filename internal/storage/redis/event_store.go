package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/goodtune/focuswatch/internal/storage"
	"github.com/redis/go-redis/v9"
)

type eventStore struct {
	client *redis.Client
	keys   keyspace
}

var appendScript = redis.NewScript(appendEventScript)

// Append stores one encoded record at the tail of the events list
func (s *eventStore) Append(ctx context.Context, line []byte) error {
	keys := []string{s.keys.events(), s.keys.sequence()}
	if err := appendScript.Run(ctx, s.client, keys, string(line)).Err(); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

// Scan walks the events list in pages from head to tail
func (s *eventStore) Scan(ctx context.Context, fn func(line []byte) error) error {
	var start int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		page, err := s.client.LRange(ctx, s.keys.events(), start, start+scanPageSize-1).Result()
		if err != nil {
			return fmt.Errorf("range events: %w", err)
		}
		for _, record := range page {
			if err := fn([]byte(record)); err != nil {
				return err
			}
		}
		if len(page) < scanPageSize {
			return nil
		}
		start += int64(len(page))
	}
}

// Size returns the append counter
func (s *eventStore) Size(ctx context.Context) (int64, error) {
	n, err := s.client.Get(ctx, s.keys.sequence()).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read event sequence: %w", err)
	}
	return n, nil
}

type checkpointStore struct {
	client *redis.Client
	keys   keyspace
}

// Get returns the checkpoint document stored under name
func (s *checkpointStore) Get(ctx context.Context, name string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.keys.checkpoint(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get checkpoint: %w", err)
	}
	return data, nil
}

// Put replaces the checkpoint document stored under name
func (s *checkpointStore) Put(ctx context.Context, name string, value []byte) error {
	if err := s.client.Set(ctx, s.keys.checkpoint(name), value, 0).Err(); err != nil {
		return fmt.Errorf("put checkpoint: %w", err)
	}
	return nil
}

// Delete removes the checkpoint document stored under name
func (s *checkpointStore) Delete(ctx context.Context, name string) error {
	if err := s.client.Del(ctx, s.keys.checkpoint(name)).Err(); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}
