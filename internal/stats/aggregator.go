// Package stats derives daily, period and recent-usage statistics from the
// activity log. Every query re-reads the log; daily results are cached
// against the log's size marker so repeated dashboard refreshes stay cheap.
package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/goodtune/focuswatch/internal/clock"
	"github.com/goodtune/focuswatch/internal/eventlog"
	"github.com/goodtune/focuswatch/internal/metrics"
)

const (
	DefaultTopN       = 10
	DefaultTickLength = time.Second
	DefaultFreshness  = 2 * time.Second
	DefaultCacheSize  = 64
)

// Source is the read side of the activity log.
type Source interface {
	Scan(ctx context.Context, fn func(eventlog.Event) error) (eventlog.ScanStats, error)
	Size(ctx context.Context) (int64, error)
	Location() *time.Location
}

// Options tunes the aggregator. Zero values select the defaults.
type Options struct {
	TopN       int
	TickLength time.Duration
	Freshness  time.Duration
	CacheSize  int
	Clock      clock.Clock
}

type cacheKey struct {
	date string
	size int64
}

// Aggregator answers statistics queries over a Source.
type Aggregator struct {
	source Source
	opts   Options
	cache  *lru.Cache[cacheKey, *DailyStats]
	logger zerolog.Logger
}

// New creates an Aggregator.
func New(source Source, opts Options, logger zerolog.Logger) (*Aggregator, error) {
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	if opts.TickLength <= 0 {
		opts.TickLength = DefaultTickLength
	}
	if opts.Freshness <= 0 {
		opts.Freshness = DefaultFreshness
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}

	cache, err := lru.New[cacheKey, *DailyStats](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create stats cache: %w", err)
	}

	return &Aggregator{
		source: source,
		opts:   opts,
		cache:  cache,
		logger: logger.With().Str("component", "stats").Logger(),
	}, nil
}

// AvailableDates lists every date with at least one record, newest first.
func (a *Aggregator) AvailableDates(ctx context.Context) ([]string, error) {
	defer observe("dates", time.Now())

	seen := make(map[string]struct{})
	if _, err := a.source.Scan(ctx, func(e eventlog.Event) error {
		seen[eventlog.DateOf(e.Timestamp)] = struct{}{}
		return nil
	}); err != nil {
		return nil, err
	}

	dates := make([]string, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates, nil
}

func observe(query string, start time.Time) {
	metrics.StatsQueryDuration.WithLabelValues(query).Observe(time.Since(start).Seconds())
}

// ParseDate validates a YYYY-MM-DD date.
func ParseDate(value string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
	}
	return d, nil
}
