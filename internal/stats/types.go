package stats

import (
	"errors"
	"time"

	"github.com/goodtune/focuswatch/internal/eventlog"
)

var (
	// ErrNoActivity is returned when no record falls on the requested date.
	ErrNoActivity = errors.New("stats: no activity recorded for date")
	// ErrInvalidRange is returned when a period starts after it ends.
	ErrInvalidRange = errors.New("stats: start date is after end date")
	// ErrInvalidDate is returned for dates not in YYYY-MM-DD form.
	ErrInvalidDate = errors.New("stats: invalid date")
)

// UnknownProcess labels windows that were never seen in a window_info record.
const UnknownProcess = "Unknown"

// NotAvailable stands in for the window of a distraction with no preceding
// window_info record.
const NotAvailable = "N/A"

// WindowTotal is the accumulated time of one window title.
type WindowTotal struct {
	WindowTitle  string `json:"window_title"`
	ProcessName  string `json:"process_name"`
	TotalSeconds int64  `json:"total_seconds"`
}

// ProcessTotal is the accumulated time of one process.
type ProcessTotal struct {
	ProcessName  string `json:"process_name"`
	TotalSeconds int64  `json:"total_seconds"`
}

// Distraction is an ai_analysis verdict linked to the window that preceded it.
type Distraction struct {
	Timestamp      time.Time           `json:"timestamp"`
	WindowTitle    string              `json:"window_title"`
	ProcessName    string              `json:"process_name"`
	Reason         string              `json:"reason"`
	TimeoutSeconds int64               `json:"timeout"`
	AnalysisType   string              `json:"analysis_type"`
	TokenUsage     eventlog.TokenUsage `json:"token_usage"`
}

// FocusSession pairs a focus_mode_start with the following focus_mode_end.
type FocusSession struct {
	Description     string     `json:"description"`
	Start           time.Time  `json:"start"`
	End             *time.Time `json:"end,omitempty"`
	DurationSeconds int64      `json:"duration_seconds"`
	Open            bool       `json:"open"`
}

// TimelineEntry is one record of the day rendered for display.
type TimelineEntry struct {
	Timestamp time.Time     `json:"timestamp"`
	Type      eventlog.Type `json:"type"`
	Label     string        `json:"label"`
	Details   string        `json:"details"`
}

// DailyStats summarizes one calendar day. Values returned by the Aggregator
// are shared with its cache and must not be modified.
type DailyStats struct {
	Date            string             `json:"date"`
	TotalTimeMS     int64              `json:"total_time_ms"`
	TopWindows      []WindowTotal      `json:"top_windows"`
	TopProcesses    []ProcessTotal     `json:"top_processes"`
	Distractions    []Distraction      `json:"distractions"`
	MissingSnapshot bool               `json:"missing_snapshot"`
	FocusSessions   []FocusSession     `json:"focus_sessions"`
	TotalFocusMS    int64              `json:"total_focus_ms"`
	ScreenTimeMS    int64              `json:"screen_time_ms"`
	FirstActivity   time.Time          `json:"first_activity"`
	LastActivity    time.Time          `json:"last_activity"`
	Timeline        []TimelineEntry    `json:"timeline"`
	Scan            eventlog.ScanStats `json:"scan"`

	// windows is the full sorted snapshot before truncation.
	windows []WindowTotal
	// titleProcesses holds every process seen with each title that day.
	titleProcesses map[string]map[string]struct{}
}

// PeriodStats rolls DailyStats up over an inclusive date range.
type PeriodStats struct {
	Start               string         `json:"start"`
	End                 string         `json:"end"`
	TotalTimeMS         int64          `json:"total_time_ms"`
	TopWindows          []WindowTotal  `json:"top_windows"`
	TopProcesses        []ProcessTotal `json:"top_processes"`
	Distractions        []Distraction  `json:"distractions"`
	DaysWithData        int            `json:"days_with_data"`
	MissingSnapshotDays []string       `json:"missing_snapshot_days"`
	TotalFocusMS        int64          `json:"total_focus_ms"`
}

// WindowUsage is one row of the recent-usage ranking.
type WindowUsage struct {
	WindowTitle   string        `json:"window_title"`
	ProcessName   string        `json:"process_name"`
	ActiveTime    time.Duration `json:"-"`
	ActiveSeconds float64       `json:"active_time"`
	StillActive   bool          `json:"still_active"`
}
