package file

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/goodtune/focuswatch/internal/storage"
)

func TestCheckpointRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Checkpoints().Get(ctx, "tracker"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.Checkpoints().Put(ctx, "tracker", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Checkpoints().Put(ctx, "tracker", []byte(`{"a":2}`)); err != nil {
		t.Fatalf("put again: %v", err)
	}

	data, err := store.Checkpoints().Get(ctx, "tracker")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != `{"a":2}` {
		t.Fatalf("unexpected checkpoint: %s", data)
	}

	if err := store.Checkpoints().Delete(ctx, "tracker"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Checkpoints().Delete(ctx, "tracker"); err != nil {
		t.Fatalf("delete missing: %v", err)
	}
}

func TestCheckpointRejectsPathKeys(t *testing.T) {
	store := openTestStore(t)

	if err := store.Checkpoints().Put(context.Background(), "../escape", []byte("{}")); err == nil {
		t.Fatal("expected invalid key error")
	}
}

func TestEventsAppendScan(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for _, line := range []string{`{"n":1}`, `{"n":2}`} {
		if err := store.Events().Append(ctx, []byte(line)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	var lines []string
	if err := store.Events().Scan(ctx, func(line []byte) error {
		lines = append(lines, string(line))
		return nil
	}); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(lines) != 2 || lines[0] != `{"n":1}` || lines[1] != `{"n":2}` {
		t.Fatalf("unexpected lines: %v", lines)
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "data", "activity.jsonl"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
