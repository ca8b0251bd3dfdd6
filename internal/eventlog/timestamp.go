package eventlog

import (
	"fmt"
	"strings"
	"time"
)

// naiveLayouts are accepted for timestamps without zone information.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp. Zone-aware values keep their
// own offset. Naive values are interpreted in loc; a nil loc means time.Local.
func ParseTimestamp(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: empty timestamp", ErrUndated)
	}
	if loc == nil {
		loc = time.Local
	}

	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	// Python isoformat with an offset but a space separator.
	if ts, err := time.Parse("2006-01-02 15:04:05.999999999Z07:00", value); err == nil {
		return ts, nil
	}

	for _, layout := range naiveLayouts {
		if ts, err := time.ParseInLocation(layout, value, loc); err == nil {
			return ts, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrUndated, value)
}

// FormatTimestamp renders ts the way records are written.
func FormatTimestamp(ts time.Time) string {
	return ts.Format(time.RFC3339Nano)
}

// DateOf returns the calendar day of ts in its own location.
func DateOf(ts time.Time) string {
	return ts.Format(time.DateOnly)
}
