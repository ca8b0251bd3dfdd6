package stats

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"
)

// PeriodStats aggregates DailyStats over the inclusive range [start, end].
// Dates without activity are skipped.
func (a *Aggregator) PeriodStats(ctx context.Context, start, end string) (*PeriodStats, error) {
	defer observe("period", time.Now())

	from, err := ParseDate(start)
	if err != nil {
		return nil, err
	}
	to, err := ParseDate(end)
	if err != nil {
		return nil, err
	}
	if from.After(to) {
		return nil, ErrInvalidRange
	}

	type windowAcc struct {
		total     int64
		processes map[string]struct{}
	}

	ps := &PeriodStats{
		Start:               start,
		End:                 end,
		Distractions:        []Distraction{},
		MissingSnapshotDays: []string{},
	}
	windows := make(map[string]*windowAcc)

	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		date := d.Format(time.DateOnly)
		day, err := a.daily(ctx, date)
		if errors.Is(err, ErrNoActivity) {
			continue
		}
		if err != nil {
			return nil, err
		}

		ps.DaysWithData++
		ps.TotalTimeMS += day.TotalTimeMS
		ps.TotalFocusMS += day.TotalFocusMS
		ps.Distractions = append(ps.Distractions, day.Distractions...)
		if day.MissingSnapshot {
			ps.MissingSnapshotDays = append(ps.MissingSnapshotDays, date)
		}

		for _, w := range day.windows {
			acc, ok := windows[w.WindowTitle]
			if !ok {
				acc = &windowAcc{processes: make(map[string]struct{})}
				windows[w.WindowTitle] = acc
			}
			acc.total += w.TotalSeconds
			for p := range day.titleProcesses[w.WindowTitle] {
				acc.processes[p] = struct{}{}
			}
		}
	}

	all := make([]WindowTotal, 0, len(windows))
	processes := make(map[string]int64)
	for title, acc := range windows {
		names := make([]string, 0, len(acc.processes))
		for p := range acc.processes {
			names = append(names, p)
		}
		if len(names) == 0 {
			names = append(names, UnknownProcess)
		}
		sort.Strings(names)
		all = append(all, WindowTotal{
			WindowTitle:  title,
			ProcessName:  strings.Join(names, ", "),
			TotalSeconds: acc.total,
		})
		// A title seen under several processes is credited to the first.
		processes[names[0]] += acc.total
	}
	sortWindows(all)
	ps.TopWindows = truncate(all, a.opts.TopN)
	ps.TopProcesses = truncate(rankProcesses(processes), a.opts.TopN)

	sort.SliceStable(ps.Distractions, func(i, j int) bool {
		return ps.Distractions[i].Timestamp.After(ps.Distractions[j].Timestamp)
	})
	return ps, nil
}
