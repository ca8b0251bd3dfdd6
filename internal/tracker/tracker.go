package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goodtune/focuswatch/internal/eventlog"
	"github.com/goodtune/focuswatch/internal/metrics"
	"github.com/goodtune/focuswatch/internal/storage"
	"github.com/rs/zerolog"
)

const (
	// DefaultKeepThreshold is the total below which a window is evicted
	DefaultKeepThreshold = 60 * time.Second

	// DefaultSignificantThreshold is the total at which a window is flushed
	DefaultSignificantThreshold = 300 * time.Second

	// DefaultCleanupInterval is the minimum spacing between eviction passes
	DefaultCleanupInterval = 1800 * time.Second

	// CheckpointKey names the tracker document in the checkpoint store
	CheckpointKey = "tracker"
)

// EventWriter appends activity records. *eventlog.Log satisfies it.
type EventWriter interface {
	Append(ctx context.Context, event eventlog.Event) error
}

// Config holds tracker configuration
type Config struct {
	KeepThreshold        time.Duration
	SignificantThreshold time.Duration
	CleanupInterval      time.Duration
}

// Record is the externally visible duration state of one window.
type Record struct {
	TotalSeconds       int64 `json:"total"`
	ConsecutiveSeconds int64 `json:"consecutive"`
}

// FlushResult describes one eviction and flush pass.
type FlushResult struct {
	Skipped bool     `json:"skipped"`
	Evicted []string `json:"evicted,omitempty"`
	Kept    []string `json:"kept,omitempty"`
	Flushed []string `json:"flushed,omitempty"`
}

type windowRecord struct {
	total       time.Duration
	consecutive time.Duration
}

// Tracker measures how long each window title holds focus.
type Tracker struct {
	cfg         Config
	events      EventWriter
	checkpoints storage.CheckpointStore
	logger      zerolog.Logger

	mu      sync.Mutex
	windows map[string]*windowRecord
	day     string

	// current is empty while no window is focused (startup, idle).
	current     string
	windowStart time.Time
	accountedAt time.Time // dwell before this instant is folded into total
	lastSeen    time.Time
	lastCleanup time.Time
}

// New creates a tracker. checkpoints may be nil to disable persistence.
func New(events EventWriter, checkpoints storage.CheckpointStore, cfg Config, logger zerolog.Logger) *Tracker {
	if cfg.KeepThreshold <= 0 {
		cfg.KeepThreshold = DefaultKeepThreshold
	}
	if cfg.SignificantThreshold <= 0 {
		cfg.SignificantThreshold = DefaultSignificantThreshold
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = DefaultCleanupInterval
	}

	return &Tracker{
		cfg:         cfg,
		events:      events,
		checkpoints: checkpoints,
		logger:      logger.With().Str("component", "tracker").Logger(),
		windows:     make(map[string]*windowRecord),
	}
}

// Observe records that title held focus at now. An empty title pauses
// tracking. When now falls on a new calendar day the previous day is
// flushed and the tracker starts over.
func (t *Tracker) Observe(ctx context.Context, title string, now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if title == "" {
		t.finalizeLocked(now)
		return t.checkpointLocked(ctx)
	}

	var errs []error
	day := eventlog.DateOf(now)
	if t.day != "" && t.day != day {
		if err := t.rolloverLocked(ctx, now); err != nil {
			errs = append(errs, err)
		}
	}
	t.day = day
	if t.lastCleanup.IsZero() {
		t.lastCleanup = now
	}

	if title != t.current {
		t.finalizeLocked(now)

		if _, ok := t.windows[title]; !ok {
			t.windows[title] = &windowRecord{}
			metrics.TrackerTrackedWindows.Set(float64(len(t.windows)))
		}
		t.current = title
		t.windowStart = now
		t.accountedAt = now

		t.logger.Debug().Str("window", title).Msg("Window focused")
	} else if w := t.windows[title]; w != nil && now.After(t.windowStart) {
		w.consecutive = now.Sub(t.windowStart)
	}
	if now.After(t.lastSeen) {
		t.lastSeen = now
	}

	if err := t.checkpointLocked(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Pause ends the current focus streak without starting another one.
func (t *Tracker) Pause(ctx context.Context, now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current == "" {
		return nil
	}
	t.logger.Debug().Str("window", t.current).Msg("Tracking paused")
	t.finalizeLocked(now)
	return t.checkpointLocked(ctx)
}

// MaybeEvictAndFlush runs an eviction and flush pass when the cleanup
// interval has elapsed since the previous one; otherwise it does nothing.
func (t *Tracker) MaybeEvictAndFlush(ctx context.Context, now time.Time) (FlushResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.lastCleanup.IsZero() {
		t.lastCleanup = now
		return FlushResult{Skipped: true}, nil
	}
	if now.Sub(t.lastCleanup) < t.cfg.CleanupInterval {
		return FlushResult{Skipped: true}, nil
	}
	return t.flushLocked(ctx, now, now)
}

// Flush runs an eviction and flush pass regardless of the cleanup interval.
func (t *Tracker) Flush(ctx context.Context, now time.Time) (FlushResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.flushLocked(ctx, now, now)
}

// Close pauses tracking, flushes and writes a final checkpoint.
func (t *Tracker) Close(ctx context.Context, now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.finalizeLocked(now)
	if len(t.windows) == 0 {
		return t.checkpointLocked(ctx)
	}
	_, err := t.flushLocked(ctx, now, now)
	return err
}

// Snapshot returns the current duration state keyed by window title.
func (t *Tracker) Snapshot() map[string]Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]Record, len(t.windows))
	for title := range t.windows {
		out[title] = t.recordLocked(title)
	}
	return out
}

// WindowState is one row of State.
type WindowState struct {
	Title string `json:"window_title"`
	Record
}

// State is a point-in-time view of the tracker.
type State struct {
	Day           string        `json:"day"`
	CurrentWindow string        `json:"current_window,omitempty"`
	LastCleanup   time.Time     `json:"last_cleanup"`
	Windows       []WindowState `json:"windows"`
}

// State returns the tracker state with windows sorted by total descending.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()

	state := State{
		Day:           t.day,
		CurrentWindow: t.current,
		LastCleanup:   t.lastCleanup,
		Windows:       make([]WindowState, 0, len(t.windows)),
	}
	for title := range t.windows {
		state.Windows = append(state.Windows, WindowState{Title: title, Record: t.recordLocked(title)})
	}
	sort.Slice(state.Windows, func(i, j int) bool {
		a, b := state.Windows[i], state.Windows[j]
		if a.TotalSeconds != b.TotalSeconds {
			return a.TotalSeconds > b.TotalSeconds
		}
		return a.Title < b.Title
	})
	return state
}

// recordLocked folds in-progress dwell up to the last observation.
func (t *Tracker) recordLocked(title string) Record {
	w := t.windows[title]
	total := w.total
	consecutive := w.consecutive
	if title == t.current {
		if pending := t.lastSeen.Sub(t.accountedAt); pending > 0 {
			total += pending
		}
	} else {
		consecutive = 0
	}
	if consecutive > total {
		consecutive = total
	}
	return Record{
		TotalSeconds:       int64(total / time.Second),
		ConsecutiveSeconds: int64(consecutive / time.Second),
	}
}

// finalizeLocked closes the current streak at now.
func (t *Tracker) finalizeLocked(now time.Time) {
	if t.current == "" {
		return
	}
	if w := t.windows[t.current]; w != nil {
		if now.After(t.accountedAt) {
			w.total += now.Sub(t.accountedAt)
		}
		w.consecutive = 0
	}
	t.current = ""
	t.accountedAt = now
}

func (t *Tracker) foldLocked(now time.Time) {
	if t.current == "" || !now.After(t.accountedAt) {
		return
	}
	if w := t.windows[t.current]; w != nil {
		w.total += now.Sub(t.accountedAt)
	}
	t.accountedAt = now
}

// flushLocked evicts short-lived windows and writes a snapshot of the
// significant ones stamped at stamp.
func (t *Tracker) flushLocked(ctx context.Context, now, stamp time.Time) (FlushResult, error) {
	t.foldLocked(now)

	var result FlushResult
	payload := make(eventlog.WindowDurations)
	for title, w := range t.windows {
		if title != t.current && w.total < t.cfg.KeepThreshold {
			delete(t.windows, title)
			result.Evicted = append(result.Evicted, title)
			continue
		}
		result.Kept = append(result.Kept, title)
		if w.total >= t.cfg.SignificantThreshold {
			result.Flushed = append(result.Flushed, title)
			rec := t.recordLocked(title)
			payload[title] = eventlog.Duration{Total: rec.TotalSeconds, Consecutive: rec.ConsecutiveSeconds}
		}
	}
	sort.Strings(result.Evicted)
	sort.Strings(result.Kept)
	sort.Strings(result.Flushed)

	t.lastCleanup = now
	metrics.TrackerEvictionsTotal.Add(float64(len(result.Evicted)))
	metrics.TrackerTrackedWindows.Set(float64(len(t.windows)))

	var errs []error
	if len(payload) > 0 {
		if err := t.writeSnapshot(ctx, stamp, payload); err != nil {
			errs = append(errs, err)
		}
	}
	if err := t.checkpointLocked(ctx); err != nil {
		errs = append(errs, err)
	}

	t.logger.Info().
		Int("evicted", len(result.Evicted)).
		Int("kept", len(result.Kept)).
		Int("flushed", len(result.Flushed)).
		Msg("Cleanup pass complete")

	return result, errors.Join(errs...)
}

func (t *Tracker) writeSnapshot(ctx context.Context, stamp time.Time, payload eventlog.WindowDurations) error {
	event, err := eventlog.NewEvent(eventlog.TypeWindowDurations, stamp, payload)
	if err != nil {
		return err
	}
	if err := t.events.Append(ctx, event); err != nil {
		return fmt.Errorf("write window durations: %w", err)
	}
	metrics.TrackerFlushesTotal.Inc()
	return nil
}

// rolloverLocked writes the final snapshot of the finished day, stamped at
// the last observation, and clears all records.
func (t *Tracker) rolloverLocked(ctx context.Context, now time.Time) error {
	stamp := t.lastSeen
	if stamp.IsZero() {
		stamp = now
	}
	t.finalizeLocked(stamp)

	_, err := t.flushLocked(ctx, stamp, stamp)

	t.logger.Info().
		Str("day", t.day).
		Str("next_day", eventlog.DateOf(now)).
		Msg("Day rollover")

	t.windows = make(map[string]*windowRecord)
	t.lastCleanup = now
	metrics.TrackerTrackedWindows.Set(0)
	return err
}

type checkpointWindow struct {
	TotalMS       int64 `json:"total_ms"`
	ConsecutiveMS int64 `json:"consecutive_ms"`
}

type checkpoint struct {
	Day         string                      `json:"day"`
	Current     string                      `json:"current,omitempty"`
	WindowStart time.Time                   `json:"window_start"`
	LastSeen    time.Time                   `json:"last_seen"`
	LastCleanup time.Time                   `json:"last_cleanup"`
	Windows     map[string]checkpointWindow `json:"windows"`
}

// checkpointLocked writes the complete tracker state.
func (t *Tracker) checkpointLocked(ctx context.Context) error {
	if t.checkpoints == nil {
		return nil
	}

	cp := checkpoint{
		Day:         t.day,
		Current:     t.current,
		WindowStart: t.windowStart,
		LastSeen:    t.lastSeen,
		LastCleanup: t.lastCleanup,
		Windows:     make(map[string]checkpointWindow, len(t.windows)),
	}
	for title, w := range t.windows {
		total := w.total
		if title == t.current {
			if pending := t.lastSeen.Sub(t.accountedAt); pending > 0 {
				total += pending
			}
		}
		consecutive := w.consecutive
		if consecutive > total {
			consecutive = total
		}
		cp.Windows[title] = checkpointWindow{
			TotalMS:       total.Milliseconds(),
			ConsecutiveMS: consecutive.Milliseconds(),
		}
	}

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := t.checkpoints.Put(ctx, CheckpointKey, data); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// Restore loads counters saved by a previous run on the same day as now.
// The previously focused window is not resumed.
func (t *Tracker) Restore(ctx context.Context, now time.Time) error {
	if t.checkpoints == nil {
		return nil
	}

	data, err := t.checkpoints.Get(ctx, CheckpointKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}

	var cp checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return fmt.Errorf("decode checkpoint: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	today := eventlog.DateOf(now)
	if cp.Day != today {
		t.logger.Info().
			Str("checkpoint_day", cp.Day).
			Str("today", today).
			Msg("Discarding checkpoint from another day")
		if err := t.checkpoints.Delete(ctx, CheckpointKey); err != nil {
			return fmt.Errorf("delete stale checkpoint: %w", err)
		}
		return nil
	}

	t.windows = make(map[string]*windowRecord, len(cp.Windows))
	for title, w := range cp.Windows {
		t.windows[title] = &windowRecord{total: time.Duration(w.TotalMS) * time.Millisecond}
	}
	t.day = cp.Day
	t.current = ""
	t.lastSeen = cp.LastSeen
	t.accountedAt = cp.LastSeen
	t.lastCleanup = cp.LastCleanup
	metrics.TrackerTrackedWindows.Set(float64(len(t.windows)))

	t.logger.Info().
		Int("windows", len(t.windows)).
		Str("day", t.day).
		Msg("Restored tracker checkpoint")
	return nil
}
