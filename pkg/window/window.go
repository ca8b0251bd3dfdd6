package window

import (
	"context"
	"errors"
	"time"
)

// ErrNoActiveWindow is returned when no window currently has focus.
var ErrNoActiveWindow = errors.New("window: no active window")

// Info describes the currently focused window
type Info struct {
	Title       string `json:"window_title"`
	ProcessName string `json:"process_name"`
	PID         int    `json:"pid,omitempty"`
	Class       string `json:"class,omitempty"` // WM_CLASS class part when available
}

// Detector queries the desktop for the focused window and user idle time.
type Detector interface {
	// ActiveWindow returns the window that currently has input focus
	ActiveWindow(ctx context.Context) (*Info, error)

	// IdleTime returns how long the user has not touched keyboard or mouse
	IdleTime(ctx context.Context) (time.Duration, error)

	// Close releases any display connection held by the detector
	Close() error
}
