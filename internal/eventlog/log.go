package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goodtune/focuswatch/internal/metrics"
	"github.com/rs/zerolog"
)

var (
	// ErrLogUnavailable is returned when the underlying log cannot be read or written.
	ErrLogUnavailable = errors.New("eventlog: log unavailable")
	// ErrMalformed marks a record that cannot be decoded.
	ErrMalformed = errors.New("eventlog: malformed record")
	// ErrUndated marks a record whose timestamp cannot be parsed.
	ErrUndated = errors.New("eventlog: unparseable timestamp")
)

// Backend stores encoded records in write order.
type Backend interface {
	// Append durably stores one encoded record as a single unit.
	Append(ctx context.Context, line []byte) error
	// Scan calls fn for every stored record in write order.
	Scan(ctx context.Context, fn func(line []byte) error) error
	// Size reports a value that changes whenever a record is appended.
	Size(ctx context.Context) (int64, error)
}

// ScanStats summarizes records skipped during a scan.
type ScanStats struct {
	Records   int `json:"records"`
	Malformed int `json:"malformed"`
	Undated   int `json:"undated"`
}

// Skipped returns the total number of records that were dropped.
func (s ScanStats) Skipped() int {
	return s.Malformed + s.Undated
}

// Log is an append-only activity log on top of a Backend.
type Log struct {
	mu      sync.Mutex
	backend Backend
	loc     *time.Location
	logger  zerolog.Logger
}

// New wraps backend. Naive timestamps are read in loc (time.Local when nil).
func New(backend Backend, loc *time.Location, logger zerolog.Logger) *Log {
	if loc == nil {
		loc = time.Local
	}
	return &Log{
		backend: backend,
		loc:     loc,
		logger:  logger.With().Str("component", "eventlog").Logger(),
	}
}

// Location returns the zone used for naive timestamps.
func (l *Log) Location() *time.Location {
	return l.loc
}

// Append writes one event. Writes are serialized.
func (l *Log) Append(ctx context.Context, event Event) error {
	line, err := Encode(event)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.backend.Append(ctx, line); err != nil {
		metrics.LogAppendErrors.Inc()
		return fmt.Errorf("%w: append: %w", ErrLogUnavailable, err)
	}
	metrics.LogRecordsAppended.WithLabelValues(string(event.Type)).Inc()
	return nil
}

// Scan decodes every record in write order and passes it to fn. Malformed
// and undated records are skipped and counted. An error from fn stops the
// scan and is returned unchanged.
func (l *Log) Scan(ctx context.Context, fn func(Event) error) (ScanStats, error) {
	var stats ScanStats
	var fnErr error

	err := l.backend.Scan(ctx, func(line []byte) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		event, err := Decode(line, l.loc)
		if err != nil {
			switch {
			case errors.Is(err, ErrUndated):
				stats.Undated++
				metrics.LogRecordsSkipped.WithLabelValues("undated").Inc()
			default:
				stats.Malformed++
				metrics.LogRecordsSkipped.WithLabelValues("malformed").Inc()
			}
			l.logger.Debug().Err(err).Msg("Skipping record")
			return nil
		}
		stats.Records++
		if err := fn(event); err != nil {
			fnErr = err
			return err
		}
		return nil
	})

	if fnErr != nil {
		return stats, fnErr
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return stats, err
		}
		return stats, fmt.Errorf("%w: scan: %w", ErrLogUnavailable, err)
	}
	return stats, nil
}

// Size reports the backend's current size marker.
func (l *Log) Size(ctx context.Context) (int64, error) {
	size, err := l.backend.Size(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: size: %w", ErrLogUnavailable, err)
	}
	return size, nil
}

type wireRecord struct {
	ID        string          `json:"id,omitempty"`
	Timestamp string          `json:"timestamp"`
	Type      Type            `json:"type"`
	Data      json.RawMessage `json:"data"`
}

// Encode renders an event as a single JSON line without the trailing newline.
func Encode(event Event) ([]byte, error) {
	if event.Type == "" {
		return nil, fmt.Errorf("encode event: missing type")
	}
	data := event.Data
	if len(data) == 0 {
		data = json.RawMessage("{}")
	}
	line, err := json.Marshal(wireRecord{
		ID:        event.ID,
		Timestamp: FormatTimestamp(event.Timestamp),
		Type:      event.Type,
		Data:      data,
	})
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return line, nil
}

// Decode parses one encoded record. Naive timestamps are read in loc.
func Decode(line []byte, loc *time.Location) (Event, error) {
	var rec wireRecord
	if err := json.Unmarshal(line, &rec); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if rec.Type == "" {
		return Event{}, fmt.Errorf("%w: missing type", ErrMalformed)
	}
	if !rec.Type.Valid() {
		return Event{}, fmt.Errorf("%w: unknown type %q", ErrMalformed, rec.Type)
	}
	ts, err := ParseTimestamp(rec.Timestamp, loc)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:        rec.ID,
		Timestamp: ts,
		Type:      rec.Type,
		Data:      rec.Data,
	}, nil
}
