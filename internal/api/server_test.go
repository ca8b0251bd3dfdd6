package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/goodtune/focuswatch/internal/clock"
	"github.com/goodtune/focuswatch/internal/eventlog"
	"github.com/goodtune/focuswatch/internal/stats"
	"github.com/goodtune/focuswatch/internal/tracker"
)

var t0 = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

type fakeLive struct {
	focus tracker.FocusState
}

func (f *fakeLive) State() tracker.State {
	return tracker.State{Day: "2024-05-01", CurrentWindow: "Editor"}
}

func (f *fakeLive) Focus() tracker.FocusState { return f.focus }

func (f *fakeLive) StartFocus(ctx context.Context, description string) (tracker.FocusState, error) {
	if description == "" {
		return tracker.FocusState{}, tracker.ErrEmptyFocusGoal
	}
	f.focus = tracker.FocusState{Active: true, Description: description, StartedAt: t0}
	return f.focus, nil
}

func (f *fakeLive) EndFocus(ctx context.Context) (tracker.FocusState, error) {
	if !f.focus.Active {
		return tracker.FocusState{}, tracker.ErrFocusInactive
	}
	ended := f.focus
	f.focus = tracker.FocusState{}
	return ended, nil
}

func newTestServer(t *testing.T, live Live, populate bool) *Server {
	t.Helper()
	path := filepath.Join(t.TempDir(), "activity.jsonl")
	log := eventlog.New(eventlog.NewFileBackend(path), time.UTC, zerolog.Nop())

	if populate {
		add := func(typ eventlog.Type, ts time.Time, payload any) {
			e, err := eventlog.NewEvent(typ, ts, payload)
			if err != nil {
				t.Fatalf("new event: %v", err)
			}
			if err := log.Append(context.Background(), e); err != nil {
				t.Fatalf("append: %v", err)
			}
		}
		add(eventlog.TypeWindowInfo, t0, eventlog.WindowInfo{WindowTitle: "A", ProcessName: "editor", Timestamp: eventlog.FormatTimestamp(t0)})
		add(eventlog.TypeWindowDurations, t0.Add(time.Minute), eventlog.WindowDurations{"A": {Total: 120, Consecutive: 5}})
	}

	agg, err := stats.New(log, stats.Options{Clock: clock.NewTestClock(t0.Add(time.Second))}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}
	srv := NewServer(Config{Location: time.UTC}, agg, live, zerolog.Nop())
	srv.now = func() time.Time { return t0 }
	return srv
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestStatsRoutes(t *testing.T) {
	srv := newTestServer(t, nil, true)

	tests := []struct {
		name   string
		target string
		status int
		check  func(t *testing.T, body []byte)
	}{
		{
			name:   "daily defaults to today",
			target: "/api/stats/daily",
			status: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var ds stats.DailyStats
				if err := json.Unmarshal(body, &ds); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if ds.Date != "2024-05-01" || ds.TotalTimeMS != 120000 {
					t.Fatalf("unexpected daily stats %+v", ds)
				}
			},
		},
		{name: "daily without activity", target: "/api/stats/daily?date=2024-04-01", status: http.StatusNotFound},
		{name: "daily bad date", target: "/api/stats/daily?date=yesterday", status: http.StatusBadRequest},
		{
			name:   "period",
			target: "/api/stats/period?start=2024-04-30&end=2024-05-02",
			status: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var ps stats.PeriodStats
				if err := json.Unmarshal(body, &ps); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if ps.DaysWithData != 1 || ps.TotalTimeMS != 120000 {
					t.Fatalf("unexpected period stats %+v", ps)
				}
			},
		},
		{name: "period reversed", target: "/api/stats/period?start=2024-05-02&end=2024-05-01", status: http.StatusBadRequest},
		{name: "period missing end", target: "/api/stats/period?start=2024-05-02", status: http.StatusBadRequest},
		{
			name:   "recent",
			target: "/api/stats/recent?minutes=5&count=1",
			status: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				var resp struct {
					Windows []stats.WindowUsage `json:"windows"`
				}
				if err := json.Unmarshal(body, &resp); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if len(resp.Windows) != 1 || resp.Windows[0].WindowTitle != "A" || !resp.Windows[0].StillActive {
					t.Fatalf("unexpected recent usage %+v", resp.Windows)
				}
			},
		},
		{name: "recent bad minutes", target: "/api/stats/recent?minutes=-1", status: http.StatusBadRequest},
		{
			name:   "dates",
			target: "/api/dates",
			status: http.StatusOK,
			check: func(t *testing.T, body []byte) {
				if !strings.Contains(string(body), `"2024-05-01"`) {
					t.Fatalf("unexpected dates body %s", body)
				}
			},
		},
		{name: "tracker not registered without live", target: "/api/tracker", status: http.StatusNotFound},
		{name: "health", target: "/health", status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodGet, tt.target, "")
			if rec.Code != tt.status {
				t.Fatalf("expected status %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if tt.check != nil {
				tt.check(t, rec.Body.Bytes())
			}
		})
	}
}

func TestLogUnavailable(t *testing.T) {
	srv := newTestServer(t, nil, false)

	rec := do(t, srv, http.MethodGet, "/api/dates", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("unexpected error body %+v", resp)
	}
}

func TestFocusRoutes(t *testing.T) {
	live := &fakeLive{}
	srv := newTestServer(t, live, true)

	if rec := do(t, srv, http.MethodPost, "/api/focus/end", ""); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 without session, got %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodPost, "/api/focus/start", `{"description":""}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty description, got %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodPost, "/api/focus/start", `not json`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad body, got %d", rec.Code)
	}

	rec := do(t, srv, http.MethodPost, "/api/focus/start", `{"description":"write report"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("start focus: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, srv, http.MethodGet, "/api/tracker", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("tracker: %d", rec.Code)
	}
	var resp struct {
		Tracker tracker.State      `json:"tracker"`
		Focus   tracker.FocusState `json:"focus"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Tracker.CurrentWindow != "Editor" || resp.Focus.Description != "write report" {
		t.Fatalf("unexpected tracker response %+v", resp)
	}

	if rec := do(t, srv, http.MethodPost, "/api/focus/end", ""); rec.Code != http.StatusOK {
		t.Fatalf("end focus: %d", rec.Code)
	}
}
