// Package api serves activity statistics and focus-mode control as JSON
// over HTTP.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/goodtune/focuswatch/internal/stats"
	"github.com/goodtune/focuswatch/internal/tracker"
)

// Stats is the query side of the aggregator.
type Stats interface {
	DailyStats(ctx context.Context, date string) (*stats.DailyStats, error)
	PeriodStats(ctx context.Context, start, end string) (*stats.PeriodStats, error)
	MostUsedWindows(ctx context.Context, lookback time.Duration, count int) ([]stats.WindowUsage, error)
	AvailableDates(ctx context.Context) ([]string, error)
}

// Live exposes the in-process tracker. It is nil when the server only reads
// the log.
type Live interface {
	State() tracker.State
	Focus() tracker.FocusState
	StartFocus(ctx context.Context, description string) (tracker.FocusState, error)
	EndFocus(ctx context.Context) (tracker.FocusState, error)
}

// Config holds the API server configuration.
type Config struct {
	ListenAddr    string
	Location      *time.Location // for the default daily date
	RecentMinutes int
	RecentCount   int
}

// Server is the query API HTTP server.
type Server struct {
	config   Config
	stats    Stats
	live     Live
	server   *http.Server
	router   *mux.Router
	listener net.Listener // set for systemd socket activation
	now      func() time.Time
	logger   zerolog.Logger
}

// NewServer creates an API server. live may be nil.
func NewServer(cfg Config, st Stats, live Live, logger zerolog.Logger) *Server {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.RecentMinutes <= 0 {
		cfg.RecentMinutes = 10
	}
	if cfg.RecentCount <= 0 {
		cfg.RecentCount = 3
	}

	s := &Server{
		config: cfg,
		stats:  st,
		live:   live,
		router: mux.NewRouter(),
		now:    time.Now,
		logger: logger.With().Str("component", "api").Logger(),
	}
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(LoggingMiddleware(s.logger))

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/stats/daily", s.handleDaily).Methods("GET")
	api.HandleFunc("/stats/period", s.handlePeriod).Methods("GET")
	api.HandleFunc("/stats/recent", s.handleRecent).Methods("GET")
	api.HandleFunc("/dates", s.handleDates).Methods("GET")

	if s.live != nil {
		api.HandleFunc("/tracker", s.handleTracker).Methods("GET")
		api.HandleFunc("/focus/start", s.handleFocusStart).Methods("POST")
		api.HandleFunc("/focus/end", s.handleFocusEnd).Methods("POST")
	}
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the API server in the background.
func (s *Server) Start() error {
	s.logger.Info().
		Str("addr", s.config.ListenAddr).
		Bool("live", s.live != nil).
		Msg("Starting API server")

	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated API listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("API server error")
		}
	}()

	return nil
}

// Stop gracefully stops the API server.
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping API server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	return nil
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		http.Error(w, `{"error":"Internal Server Error","message":"Failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf.Bytes())
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}
