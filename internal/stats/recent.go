package stats

import (
	"context"
	"sort"
	"time"

	"github.com/goodtune/focuswatch/internal/eventlog"
)

type windowKey struct {
	title   string
	process string
}

// MostUsedWindows ranks the windows sampled within the last lookback by
// tick count. A window is still active when it was the most recent sample
// in the whole log and that sample is no older than the freshness window.
func (a *Aggregator) MostUsedWindows(ctx context.Context, lookback time.Duration, count int) ([]WindowUsage, error) {
	defer observe("recent", time.Now())

	if count <= 0 {
		count = a.opts.TopN
	}
	now := a.opts.Clock.Now()
	since := now.Add(-lookback)
	loc := a.source.Location()

	ticks := make(map[windowKey]int)
	var (
		latest   windowKey
		latestTS time.Time
		found    bool
	)

	if _, err := a.source.Scan(ctx, func(e eventlog.Event) error {
		if e.Type != eventlog.TypeWindowInfo {
			return nil
		}
		var info eventlog.WindowInfo
		if err := e.Decode(&info); err != nil {
			return nil
		}
		if info.Error != "" || (info.WindowTitle == "" && info.ProcessName == "") {
			return nil
		}

		ts := e.Timestamp
		if info.Timestamp != "" {
			if parsed, err := eventlog.ParseTimestamp(info.Timestamp, loc); err == nil {
				ts = parsed
			}
		}

		key := windowKey{title: info.WindowTitle, process: info.ProcessName}
		if !found || !ts.Before(latestTS) {
			latest, latestTS, found = key, ts, true
		}
		if !ts.Before(since) && !ts.After(now) {
			ticks[key]++
		}
		return nil
	}); err != nil {
		return nil, err
	}

	usage := make([]WindowUsage, 0, len(ticks))
	for key, n := range ticks {
		active := time.Duration(n) * a.opts.TickLength
		age := now.Sub(latestTS)
		usage = append(usage, WindowUsage{
			WindowTitle:   key.title,
			ProcessName:   key.process,
			ActiveTime:    active,
			ActiveSeconds: active.Seconds(),
			StillActive:   found && key == latest && age >= 0 && age <= a.opts.Freshness,
		})
	}

	sort.Slice(usage, func(i, j int) bool {
		if usage[i].ActiveTime != usage[j].ActiveTime {
			return usage[i].ActiveTime > usage[j].ActiveTime
		}
		if usage[i].WindowTitle != usage[j].WindowTitle {
			return usage[i].WindowTitle < usage[j].WindowTitle
		}
		return usage[i].ProcessName < usage[j].ProcessName
	})
	if len(usage) > count {
		usage = usage[:count]
	}
	return usage, nil
}
