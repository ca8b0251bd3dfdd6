package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/goodtune/focuswatch/internal/storage"
)

func TestEventRepositoryScanOrder(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	total := scanBatchSize + 3
	for i := 0; i < total; i++ {
		if err := store.Events().Append(ctx, []byte(fmt.Sprintf(`{"n":%d}`, i))); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	i := 0
	err := store.Events().Scan(ctx, func(line []byte) error {
		if want := fmt.Sprintf(`{"n":%d}`, i); string(line) != want {
			return fmt.Errorf("record %d: expected %s, got %s", i, want, line)
		}
		i++
		return nil
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if i != total {
		t.Fatalf("expected %d records, got %d", total, i)
	}

	size, err := store.Events().Size(ctx)
	if err != nil {
		t.Fatalf("size: %v", err)
	}
	if size != int64(total) {
		t.Fatalf("expected size %d, got %d", total, size)
	}
}

func TestEventRepositoryScanStops(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.Events().Append(ctx, []byte(`{}`)); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	stop := errors.New("stop")
	calls := 0
	err := store.Events().Scan(ctx, func([]byte) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) {
		t.Fatalf("expected stop error, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
}

func TestCheckpointRepositoryUpsert(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	if _, err := store.Checkpoints().Get(ctx, "tracker"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	for _, value := range []string{`{"v":1}`, `{"v":2}`} {
		if err := store.Checkpoints().Put(ctx, "tracker", []byte(value)); err != nil {
			t.Fatalf("put %s: %v", value, err)
		}
	}

	data, err := store.Checkpoints().Get(ctx, "tracker")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != `{"v":2}` {
		t.Fatalf("unexpected checkpoint: %s", data)
	}

	if err := store.Checkpoints().Delete(ctx, "tracker"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Checkpoints().Get(ctx, "tracker"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "focuswatch.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
