package eventlog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of activity record.
type Type string

const (
	TypeWindowInfo      Type = "window_info"
	TypeWindowDurations Type = "window_durations"
	TypeAIAnalysis      Type = "ai_analysis"
	TypeFocusModeStart  Type = "focus_mode_start"
	TypeFocusModeEnd    Type = "focus_mode_end"
	TypeSystemIdle      Type = "system_idle"
	TypeScreenshot      Type = "screenshot"
)

// Valid reports whether t is a known record type.
func (t Type) Valid() bool {
	switch t {
	case TypeWindowInfo, TypeWindowDurations, TypeAIAnalysis,
		TypeFocusModeStart, TypeFocusModeEnd, TypeSystemIdle, TypeScreenshot:
		return true
	}
	return false
}

// Event is one immutable activity record.
type Event struct {
	ID        string
	Timestamp time.Time
	Type      Type
	Data      json.RawMessage
}

// NewEvent builds an event of the given type with a marshalled payload.
func NewEvent(typ Type, ts time.Time, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	return Event{
		ID:        uuid.NewString(),
		Timestamp: ts,
		Type:      typ,
		Data:      data,
	}, nil
}

// Decode unmarshals the payload into out.
func (e Event) Decode(out any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%w: %s record has no data", ErrMalformed, e.Type)
	}
	if err := json.Unmarshal(e.Data, out); err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformed, e.Type, err)
	}
	return nil
}

// WindowInfo is the payload of a window_info record.
type WindowInfo struct {
	WindowTitle string `json:"window_title"`
	ProcessName string `json:"process_name"`
	PID         int    `json:"pid,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Duration is a single window entry inside a window_durations snapshot.
type Duration struct {
	Total       int64 `json:"total"`
	Consecutive int64 `json:"consecutive"`
}

// WindowDurations is the payload of a window_durations record, keyed by title.
type WindowDurations map[string]Duration

// Analysis is the classifier verdict embedded in an ai_analysis record.
type Analysis struct {
	IsDistracted bool   `json:"is_distracted"`
	Reason       string `json:"reason"`
	Timeout      int64  `json:"timeout,omitempty"`
}

// TokenUsage reports classifier token consumption.
type TokenUsage struct {
	TotalTokens      int64 `json:"total_tokens"`
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

// AIAnalysis is the payload of an ai_analysis record.
type AIAnalysis struct {
	Analysis     Analysis   `json:"analysis"`
	AnalysisType string     `json:"analysis_type"`
	TokenUsage   TokenUsage `json:"token_usage"`
}

// FocusMode is the payload of focus_mode_start and focus_mode_end records.
type FocusMode struct {
	Description string `json:"description,omitempty"`
}

// SystemIdle is the payload of a system_idle record.
type SystemIdle struct {
	IdleTime float64 `json:"idle_time"`
}

// Screenshot is the payload of a screenshot record.
type Screenshot struct {
	Path string `json:"path"`
}
