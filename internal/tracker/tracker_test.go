package tracker

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/goodtune/focuswatch/internal/eventlog"
	"github.com/goodtune/focuswatch/internal/storage"
	"github.com/rs/zerolog"
)

type memoryLog struct {
	mu     sync.Mutex
	events []eventlog.Event
	err    error
}

func (m *memoryLog) Append(_ context.Context, event eventlog.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

func (m *memoryLog) ofType(typ eventlog.Type) []eventlog.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []eventlog.Event
	for _, e := range m.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

type memoryCheckpoints struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryCheckpoints() *memoryCheckpoints {
	return &memoryCheckpoints{data: make(map[string][]byte)}
}

func (m *memoryCheckpoints) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return v, nil
}

func (m *memoryCheckpoints) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = append([]byte(nil), value...)
	return nil
}

func (m *memoryCheckpoints) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func at(seconds int) time.Time {
	return t0.Add(time.Duration(seconds) * time.Second)
}

func newTestTracker(t *testing.T) (*Tracker, *memoryLog, *memoryCheckpoints) {
	t.Helper()
	log := &memoryLog{}
	checkpoints := newMemoryCheckpoints()
	return New(log, checkpoints, Config{}, zerolog.Nop()), log, checkpoints
}

func observe(t *testing.T, tr *Tracker, title string, seconds int) {
	t.Helper()
	if err := tr.Observe(context.Background(), title, at(seconds)); err != nil {
		t.Fatalf("observe %q at %d: %v", title, seconds, err)
	}
}

func TestObserveAccumulatesDwell(t *testing.T) {
	tr, _, _ := newTestTracker(t)

	observe(t, tr, "W1", 0)
	observe(t, tr, "W1", 10)
	observe(t, tr, "W2", 20)
	observe(t, tr, "W1", 50)
	observe(t, tr, "W1", 55)

	snap := tr.Snapshot()
	if got := snap["W1"]; got != (Record{TotalSeconds: 25, ConsecutiveSeconds: 5}) {
		t.Fatalf("unexpected W1 record: %+v", got)
	}
	if got := snap["W2"]; got != (Record{TotalSeconds: 30, ConsecutiveSeconds: 0}) {
		t.Fatalf("unexpected W2 record: %+v", got)
	}
}

func TestConsecutiveNeverExceedsTotal(t *testing.T) {
	tr, _, _ := newTestTracker(t)

	titles := []string{"A", "A", "B", "A", "A", "A", "C", "C", "A"}
	for i, title := range titles {
		observe(t, tr, title, i*7)
		for name, rec := range tr.Snapshot() {
			if rec.ConsecutiveSeconds < 0 || rec.ConsecutiveSeconds > rec.TotalSeconds {
				t.Fatalf("step %d: invariant broken for %s: %+v", i, name, rec)
			}
		}
	}
}

func TestMaybeEvictAndFlush(t *testing.T) {
	tr, log, _ := newTestTracker(t)
	ctx := context.Background()

	observe(t, tr, "A", 0)
	observe(t, tr, "B", 400)
	observe(t, tr, "C", 430)
	observe(t, tr, "D", 500)
	observe(t, tr, "D", 1800)

	result, err := tr.MaybeEvictAndFlush(ctx, at(1800))
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if result.Skipped {
		t.Fatal("expected cleanup pass to run")
	}
	if want := []string{"B"}; !reflect.DeepEqual(result.Evicted, want) {
		t.Fatalf("evicted: expected %v, got %v", want, result.Evicted)
	}
	if want := []string{"A", "C", "D"}; !reflect.DeepEqual(result.Kept, want) {
		t.Fatalf("kept: expected %v, got %v", want, result.Kept)
	}
	if want := []string{"A", "D"}; !reflect.DeepEqual(result.Flushed, want) {
		t.Fatalf("flushed: expected %v, got %v", want, result.Flushed)
	}

	kept := make(map[string]bool)
	for _, k := range result.Kept {
		kept[k] = true
	}
	for _, f := range result.Flushed {
		if !kept[f] {
			t.Fatalf("flushed key %s not kept", f)
		}
	}

	snapshots := log.ofType(eventlog.TypeWindowDurations)
	if len(snapshots) != 1 {
		t.Fatalf("expected one snapshot, got %d", len(snapshots))
	}
	var payload eventlog.WindowDurations
	if err := snapshots[0].Decode(&payload); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	want := eventlog.WindowDurations{
		"A": {Total: 400, Consecutive: 0},
		"D": {Total: 1300, Consecutive: 1300},
	}
	if !reflect.DeepEqual(payload, want) {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if !snapshots[0].Timestamp.Equal(at(1800)) {
		t.Fatalf("unexpected snapshot time %s", snapshots[0].Timestamp)
	}

	if _, ok := tr.Snapshot()["B"]; ok {
		t.Fatal("evicted window still tracked")
	}
}

func TestMaybeEvictAndFlushRateLimited(t *testing.T) {
	tr, log, _ := newTestTracker(t)
	ctx := context.Background()

	observe(t, tr, "A", 0)
	observe(t, tr, "A", 1800)

	if res, err := tr.MaybeEvictAndFlush(ctx, at(1800)); err != nil || res.Skipped {
		t.Fatalf("first pass: %+v %v", res, err)
	}
	before := tr.Snapshot()

	observe(t, tr, "B", 1810)
	res, err := tr.MaybeEvictAndFlush(ctx, at(1810))
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if !res.Skipped {
		t.Fatal("expected second pass inside interval to be skipped")
	}
	if got := len(log.ofType(eventlog.TypeWindowDurations)); got != 1 {
		t.Fatalf("expected one snapshot, got %d", got)
	}
	if _, ok := tr.Snapshot()["B"]; !ok {
		t.Fatal("short window evicted by skipped pass")
	}
	if tr.Snapshot()["A"].TotalSeconds != before["A"].TotalSeconds+10 {
		t.Fatalf("unexpected A total after switch: %+v", tr.Snapshot()["A"])
	}
}

func TestFirstCleanupCallOnlyArmsTimer(t *testing.T) {
	tr, log, _ := newTestTracker(t)

	res, err := tr.MaybeEvictAndFlush(context.Background(), at(0))
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if !res.Skipped {
		t.Fatal("expected first call to be skipped")
	}
	if len(log.events) != 0 {
		t.Fatalf("expected no events, got %d", len(log.events))
	}
}

func TestFlushWritesNothingWithoutSignificantWindows(t *testing.T) {
	tr, log, _ := newTestTracker(t)

	observe(t, tr, "A", 0)
	observe(t, tr, "B", 100)

	res, err := tr.Flush(context.Background(), at(150))
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if len(res.Flushed) != 0 {
		t.Fatalf("expected nothing flushed, got %v", res.Flushed)
	}
	if len(log.events) != 0 {
		t.Fatalf("expected no snapshot, got %d events", len(log.events))
	}
}

func TestPauseStopsAccounting(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	ctx := context.Background()

	observe(t, tr, "A", 0)
	if err := tr.Pause(ctx, at(100)); err != nil {
		t.Fatalf("pause: %v", err)
	}
	observe(t, tr, "A", 400)
	observe(t, tr, "A", 410)

	rec := tr.Snapshot()["A"]
	if rec.TotalSeconds != 110 || rec.ConsecutiveSeconds != 10 {
		t.Fatalf("unexpected record after pause: %+v", rec)
	}
	if tr.State().CurrentWindow != "A" {
		t.Fatalf("expected A focused, got %q", tr.State().CurrentWindow)
	}
}

func TestDayRollover(t *testing.T) {
	tr, log, _ := newTestTracker(t)
	ctx := context.Background()

	late := time.Date(2024, 5, 1, 23, 50, 0, 0, time.UTC)
	if err := tr.Observe(ctx, "A", late); err != nil {
		t.Fatalf("observe: %v", err)
	}
	if err := tr.Observe(ctx, "A", late.Add(9*time.Minute)); err != nil {
		t.Fatalf("observe: %v", err)
	}
	next := time.Date(2024, 5, 2, 0, 0, 1, 0, time.UTC)
	if err := tr.Observe(ctx, "A", next); err != nil {
		t.Fatalf("observe after midnight: %v", err)
	}

	snapshots := log.ofType(eventlog.TypeWindowDurations)
	if len(snapshots) != 1 {
		t.Fatalf("expected rollover snapshot, got %d", len(snapshots))
	}
	if eventlog.DateOf(snapshots[0].Timestamp) != "2024-05-01" {
		t.Fatalf("rollover snapshot stamped %s", snapshots[0].Timestamp)
	}
	var payload eventlog.WindowDurations
	if err := snapshots[0].Decode(&payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["A"].Total != 540 {
		t.Fatalf("expected 540s for previous day, got %+v", payload)
	}

	state := tr.State()
	if state.Day != "2024-05-02" {
		t.Fatalf("expected new day, got %s", state.Day)
	}
	if rec := tr.Snapshot()["A"]; rec.TotalSeconds != 0 {
		t.Fatalf("expected fresh counters, got %+v", rec)
	}
}

func TestCheckpointRestore(t *testing.T) {
	tr, log, checkpoints := newTestTracker(t)
	ctx := context.Background()

	observe(t, tr, "A", 0)
	observe(t, tr, "B", 120)
	observe(t, tr, "B", 150)

	restored := New(log, checkpoints, Config{}, zerolog.Nop())
	if err := restored.Restore(ctx, at(200)); err != nil {
		t.Fatalf("restore: %v", err)
	}

	snap := restored.Snapshot()
	if snap["A"].TotalSeconds != 120 || snap["B"].TotalSeconds != 30 {
		t.Fatalf("unexpected restored state: %+v", snap)
	}
	if snap["B"].ConsecutiveSeconds != 0 {
		t.Fatalf("restored window should not resume its streak: %+v", snap["B"])
	}
	if restored.State().CurrentWindow != "" {
		t.Fatal("restored tracker should not have a focused window")
	}

	// A checkpoint from another day is ignored.
	other := New(log, checkpoints, Config{}, zerolog.Nop())
	if err := other.Restore(ctx, at(0).Add(24*time.Hour)); err != nil {
		t.Fatalf("restore next day: %v", err)
	}
	if len(other.Snapshot()) != 0 {
		t.Fatalf("expected empty state, got %+v", other.Snapshot())
	}
	if _, err := checkpoints.Get(ctx, CheckpointKey); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected stale checkpoint to be deleted, got %v", err)
	}
}

func TestRestoredCountersKeepAccumulating(t *testing.T) {
	tr, log, checkpoints := newTestTracker(t)
	ctx := context.Background()

	observe(t, tr, "A", 0)
	observe(t, tr, "A", 100)

	restarted := New(log, checkpoints, Config{}, zerolog.Nop())
	if err := restarted.Restore(ctx, at(200)); err != nil {
		t.Fatalf("restore: %v", err)
	}
	observe(t, restarted, "A", 200)
	observe(t, restarted, "A", 700)

	if got := restarted.Snapshot()["A"]; got != (Record{TotalSeconds: 600, ConsecutiveSeconds: 500}) {
		t.Fatalf("unexpected A record after restart: %+v", got)
	}
}

func TestRestoreWithoutCheckpoint(t *testing.T) {
	tr, _, _ := newTestTracker(t)
	if err := tr.Restore(context.Background(), at(0)); err != nil {
		t.Fatalf("restore: %v", err)
	}
}

func TestFlushAppendFailure(t *testing.T) {
	tr, log, _ := newTestTracker(t)
	ctx := context.Background()

	observe(t, tr, "A", 0)
	observe(t, tr, "A", 1800)

	log.err = errors.New("disk full")
	if _, err := tr.MaybeEvictAndFlush(ctx, at(1800)); err == nil {
		t.Fatal("expected append error")
	}

	log.err = nil
	res, err := tr.MaybeEvictAndFlush(ctx, at(1801))
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if !res.Skipped {
		t.Fatal("expected failed pass to still reset the cleanup timer")
	}
}

func TestCloseFlushesAll(t *testing.T) {
	tr, log, checkpoints := newTestTracker(t)
	ctx := context.Background()

	observe(t, tr, "A", 0)
	observe(t, tr, "A", 600)

	if err := tr.Close(ctx, at(601)); err != nil {
		t.Fatalf("close: %v", err)
	}
	snapshots := log.ofType(eventlog.TypeWindowDurations)
	if len(snapshots) != 1 {
		t.Fatalf("expected snapshot on close, got %d", len(snapshots))
	}
	if _, err := checkpoints.Get(ctx, CheckpointKey); err != nil {
		t.Fatalf("expected checkpoint on close: %v", err)
	}
}
