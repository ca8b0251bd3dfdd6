package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/goodtune/focuswatch/internal/eventlog"
	"github.com/goodtune/focuswatch/internal/stats"
	"github.com/goodtune/focuswatch/internal/tracker"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"tracker": s.live != nil,
	})
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = s.now().In(s.config.Location).Format(time.DateOnly)
	}

	ds, err := s.stats.DailyStats(r.Context(), date)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

func (s *Server) handlePeriod(w http.ResponseWriter, r *http.Request) {
	start := r.URL.Query().Get("start")
	end := r.URL.Query().Get("end")
	if start == "" || end == "" {
		writeError(w, http.StatusBadRequest, "start and end are required")
		return
	}

	ps, err := s.stats.PeriodStats(r.Context(), start, end)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	minutes, err := positiveInt(r, "minutes", s.config.RecentMinutes)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	count, err := positiveInt(r, "count", s.config.RecentCount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	usage, err := s.stats.MostUsedWindows(r.Context(), time.Duration(minutes)*time.Minute, count)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"minutes": minutes,
		"windows": usage,
	})
}

func (s *Server) handleDates(w http.ResponseWriter, r *http.Request) {
	dates, err := s.stats.AvailableDates(r.Context())
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"dates": dates,
	})
}

func (s *Server) handleTracker(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tracker": s.live.State(),
		"focus":   s.live.Focus(),
	})
}

// FocusRequest is the body of POST /api/focus/start.
type FocusRequest struct {
	Description string `json:"description"`
}

func (s *Server) handleFocusStart(w http.ResponseWriter, r *http.Request) {
	var req FocusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	state, err := s.live.StartFocus(r.Context(), req.Description)
	switch {
	case errors.Is(err, tracker.ErrEmptyFocusGoal):
		writeError(w, http.StatusBadRequest, "description is required")
		return
	case err != nil:
		s.logger.Error().Err(err).Msg("Failed to start focus session")
		writeError(w, http.StatusInternalServerError, "Failed to start focus session")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleFocusEnd(w http.ResponseWriter, r *http.Request) {
	state, err := s.live.EndFocus(r.Context())
	switch {
	case errors.Is(err, tracker.ErrFocusInactive):
		writeError(w, http.StatusConflict, "no focus session is active")
		return
	case err != nil:
		s.logger.Error().Err(err).Msg("Failed to end focus session")
		writeError(w, http.StatusInternalServerError, "Failed to end focus session")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// writeQueryError maps aggregator errors onto HTTP statuses.
func (s *Server) writeQueryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, stats.ErrNoActivity):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, stats.ErrInvalidDate), errors.Is(err, stats.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, eventlog.ErrLogUnavailable):
		s.logger.Warn().Err(err).Msg("Activity log unavailable")
		writeError(w, http.StatusServiceUnavailable, "activity log unavailable")
	default:
		s.logger.Error().Err(err).Msg("Stats query failed")
		writeError(w, http.StatusInternalServerError, "stats query failed")
	}
}

type paramError struct {
	name string
}

func (e paramError) Error() string {
	return e.name + " must be a positive integer"
}

func positiveInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, paramError{name: name}
	}
	return n, nil
}
