package stats

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/goodtune/focuswatch/internal/eventlog"
	"github.com/goodtune/focuswatch/internal/metrics"
)

const reasonPreview = 100

var titleCaser = cases.Title(language.English)

// DailyStats summarizes the given YYYY-MM-DD date. It returns ErrNoActivity
// when no record falls on that date.
func (a *Aggregator) DailyStats(ctx context.Context, date string) (*DailyStats, error) {
	defer observe("daily", time.Now())
	return a.daily(ctx, date)
}

func (a *Aggregator) daily(ctx context.Context, date string) (*DailyStats, error) {
	if _, err := ParseDate(date); err != nil {
		return nil, err
	}

	size, err := a.source.Size(ctx)
	if err != nil {
		return nil, err
	}
	key := cacheKey{date: date, size: size}
	if cached, ok := a.cache.Get(key); ok {
		metrics.StatsCacheHits.Inc()
		return cached, nil
	}
	metrics.StatsCacheMisses.Inc()

	ds, err := a.computeDaily(ctx, date)
	if err != nil {
		return nil, err
	}
	a.cache.Add(key, ds)
	return ds, nil
}

// dayBuilder accumulates one day's records in log order.
type dayBuilder struct {
	stats      *DailyStats
	records    int
	snapshot   eventlog.WindowDurations
	latestProc map[string]string
	lastWindow *eventlog.WindowInfo
	openFocus  *eventlog.Event
	openDesc   string
	screenFrom time.Time
}

func (a *Aggregator) computeDaily(ctx context.Context, date string) (*DailyStats, error) {
	b := &dayBuilder{
		stats: &DailyStats{
			Date:           date,
			titleProcesses: make(map[string]map[string]struct{}),
		},
		latestProc: make(map[string]string),
	}

	scan, err := a.source.Scan(ctx, func(e eventlog.Event) error {
		if eventlog.DateOf(e.Timestamp) != date {
			return nil
		}
		b.add(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if b.records == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoActivity, date)
	}

	ds := b.finish(a.opts.TopN)
	ds.Scan.Records = scan.Records
	ds.Scan.Malformed += scan.Malformed
	ds.Scan.Undated += scan.Undated
	if ds.Scan.Skipped() > 0 {
		a.logger.Debug().
			Str("date", date).
			Int("malformed", ds.Scan.Malformed).
			Int("undated", ds.Scan.Undated).
			Msg("Skipped unusable records")
	}
	return ds, nil
}

func (b *dayBuilder) add(e eventlog.Event) {
	ds := b.stats
	b.records++
	if ds.FirstActivity.IsZero() || e.Timestamp.Before(ds.FirstActivity) {
		ds.FirstActivity = e.Timestamp
	}
	if e.Timestamp.After(ds.LastActivity) {
		ds.LastActivity = e.Timestamp
	}

	// Screen time credits each window_info with the gap to the next record.
	if !b.screenFrom.IsZero() {
		if gap := e.Timestamp.Sub(b.screenFrom); gap > 0 {
			ds.ScreenTimeMS += gap.Milliseconds()
		}
		b.screenFrom = time.Time{}
	}

	details := ""
	switch e.Type {
	case eventlog.TypeWindowInfo:
		var info eventlog.WindowInfo
		if err := e.Decode(&info); err != nil {
			ds.Scan.Malformed++
			return
		}
		b.lastWindow = &info
		b.screenFrom = e.Timestamp
		if info.WindowTitle != "" {
			b.latestProc[info.WindowTitle] = info.ProcessName
			if info.ProcessName != "" {
				procs, ok := ds.titleProcesses[info.WindowTitle]
				if !ok {
					procs = make(map[string]struct{})
					ds.titleProcesses[info.WindowTitle] = procs
				}
				procs[info.ProcessName] = struct{}{}
			}
		}
		details = fmt.Sprintf("App: %s - Title: %s", info.ProcessName, info.WindowTitle)

	case eventlog.TypeWindowDurations:
		var snap eventlog.WindowDurations
		if err := e.Decode(&snap); err != nil {
			ds.Scan.Malformed++
			return
		}
		b.snapshot = snap
		details = fmt.Sprintf("%d windows", len(snap))

	case eventlog.TypeAIAnalysis:
		var analysis eventlog.AIAnalysis
		if err := e.Decode(&analysis); err != nil {
			ds.Scan.Malformed++
			return
		}
		status := "Not Distracted"
		if analysis.Analysis.IsDistracted {
			status = "Distracted"
			d := Distraction{
				Timestamp:      e.Timestamp,
				WindowTitle:    NotAvailable,
				ProcessName:    NotAvailable,
				Reason:         analysis.Analysis.Reason,
				TimeoutSeconds: analysis.Analysis.Timeout,
				AnalysisType:   analysis.AnalysisType,
				TokenUsage:     analysis.TokenUsage,
			}
			if b.lastWindow != nil {
				d.WindowTitle = b.lastWindow.WindowTitle
				d.ProcessName = b.lastWindow.ProcessName
			}
			ds.Distractions = append(ds.Distractions, d)
		}
		details = fmt.Sprintf("Status: %s. Reason: %s", status, preview(analysis.Analysis.Reason))

	case eventlog.TypeFocusModeStart:
		var focus eventlog.FocusMode
		_ = e.Decode(&focus)
		ev := e
		b.openFocus = &ev
		b.openDesc = focus.Description
		details = "Desc: " + focus.Description

	case eventlog.TypeFocusModeEnd:
		if b.openFocus != nil {
			end := e.Timestamp
			ds.FocusSessions = append(ds.FocusSessions, FocusSession{
				Description:     b.openDesc,
				Start:           b.openFocus.Timestamp,
				End:             &end,
				DurationSeconds: int64(end.Sub(b.openFocus.Timestamp) / time.Second),
			})
			if d := end.Sub(b.openFocus.Timestamp); d > 0 {
				ds.TotalFocusMS += d.Milliseconds()
			}
			b.openFocus = nil
			b.openDesc = ""
		}
		details = "Focus session ended."

	case eventlog.TypeSystemIdle:
		var idle eventlog.SystemIdle
		if err := e.Decode(&idle); err == nil {
			details = fmt.Sprintf("Idle for %.0fs", idle.IdleTime)
		}

	case eventlog.TypeScreenshot:
		var shot eventlog.Screenshot
		if err := e.Decode(&shot); err == nil {
			details = shot.Path
		}
	}

	ds.Timeline = append(ds.Timeline, TimelineEntry{
		Timestamp: e.Timestamp,
		Type:      e.Type,
		Label:     typeLabel(e.Type),
		Details:   details,
	})
}

func (b *dayBuilder) finish(topN int) *DailyStats {
	ds := b.stats

	if b.openFocus != nil {
		ds.FocusSessions = append(ds.FocusSessions, FocusSession{
			Description: b.openDesc,
			Start:       b.openFocus.Timestamp,
			Open:        true,
		})
	}
	sort.SliceStable(ds.FocusSessions, func(i, j int) bool {
		return ds.FocusSessions[i].Start.After(ds.FocusSessions[j].Start)
	})

	reverse(ds.Distractions)
	sort.SliceStable(ds.Distractions, func(i, j int) bool {
		return ds.Distractions[i].Timestamp.After(ds.Distractions[j].Timestamp)
	})

	if b.snapshot == nil {
		ds.MissingSnapshot = true
	}

	ds.windows = make([]WindowTotal, 0, len(b.snapshot))
	processes := make(map[string]int64)
	for title, d := range b.snapshot {
		proc := b.latestProc[title]
		if proc == "" {
			proc = UnknownProcess
		}
		ds.windows = append(ds.windows, WindowTotal{WindowTitle: title, ProcessName: proc, TotalSeconds: d.Total})
		processes[proc] += d.Total
		ds.TotalTimeMS += d.Total * 1000
	}
	sortWindows(ds.windows)
	ds.TopWindows = truncate(ds.windows, topN)
	ds.TopProcesses = truncate(rankProcesses(processes), topN)

	if ds.Distractions == nil {
		ds.Distractions = []Distraction{}
	}
	if ds.FocusSessions == nil {
		ds.FocusSessions = []FocusSession{}
	}
	return ds
}

func sortWindows(ws []WindowTotal) {
	sort.Slice(ws, func(i, j int) bool {
		if ws[i].TotalSeconds != ws[j].TotalSeconds {
			return ws[i].TotalSeconds > ws[j].TotalSeconds
		}
		return ws[i].WindowTitle < ws[j].WindowTitle
	})
}

func rankProcesses(totals map[string]int64) []ProcessTotal {
	out := make([]ProcessTotal, 0, len(totals))
	for name, total := range totals {
		out = append(out, ProcessTotal{ProcessName: name, TotalSeconds: total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalSeconds != out[j].TotalSeconds {
			return out[i].TotalSeconds > out[j].TotalSeconds
		}
		return out[i].ProcessName < out[j].ProcessName
	})
	return out
}

func truncate[T any](s []T, n int) []T {
	if len(s) > n {
		s = s[:n]
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}

func reverse[T any](s []T) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func typeLabel(t eventlog.Type) string {
	return titleCaser.String(strings.ReplaceAll(string(t), "_", " "))
}

func preview(reason string) string {
	runes := []rune(reason)
	if len(runes) <= reasonPreview {
		return reason
	}
	return string(runes[:reasonPreview]) + "..."
}
