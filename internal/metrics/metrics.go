package metrics

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	// Event log metrics
	LogRecordsAppended = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focuswatch_log_records_appended_total",
			Help: "Total activity records appended to the event log",
		},
		[]string{"type"},
	)

	LogRecordsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focuswatch_log_records_skipped_total",
			Help: "Records skipped while scanning the event log",
		},
		[]string{"reason"},
	)

	LogAppendErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "focuswatch_log_append_errors_total",
			Help: "Failed event log appends",
		},
	)

	// Tracker metrics
	TrackerTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focuswatch_tracker_ticks_total",
			Help: "Poll loop ticks by outcome",
		},
		[]string{"outcome"},
	)

	TrackerTrackedWindows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "focuswatch_tracker_windows",
			Help: "Number of windows currently held in tracker memory",
		},
	)

	TrackerEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "focuswatch_tracker_evictions_total",
			Help: "Window records evicted below the keep threshold",
		},
	)

	TrackerFlushesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "focuswatch_tracker_flushes_total",
			Help: "Window duration snapshots written to the event log",
		},
	)

	// Classifier metrics
	ClassificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focuswatch_classifications_total",
			Help: "Window classifications by verdict",
		},
		[]string{"analysis_type", "verdict"},
	)

	ClassificationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "focuswatch_classification_duration_seconds",
			Help:    "Classifier call duration in seconds",
			Buckets: []float64{.001, .01, .1, .5, 1, 2.5, 5, 10},
		},
		[]string{"analysis_type"},
	)

	// Stats metrics
	StatsQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "focuswatch_stats_query_duration_seconds",
			Help:    "Statistics query duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"query"},
	)

	StatsCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "focuswatch_stats_cache_hits_total",
			Help: "Daily statistics cache hits",
		},
	)

	StatsCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "focuswatch_stats_cache_misses_total",
			Help: "Daily statistics cache misses",
		},
	)

	// API metrics
	APIRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "focuswatch_api_requests_total",
			Help: "Total query API requests",
		},
		[]string{"route", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		LogRecordsAppended,
		LogRecordsSkipped,
		LogAppendErrors,
		TrackerTicksTotal,
		TrackerTrackedWindows,
		TrackerEvictionsTotal,
		TrackerFlushesTotal,
		ClassificationsTotal,
		ClassificationDuration,
		StatsQueryDuration,
		StatsCacheHits,
		StatsCacheMisses,
		APIRequestsTotal,
	)
}

// Server is the metrics HTTP server
type Server struct {
	server   *http.Server
	logger   zerolog.Logger
	listener net.Listener // set for systemd socket activation
}

// NewServer creates a new metrics server
func NewServer(addr string, logger zerolog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: logger.With().Str("component", "metrics").Logger(),
	}
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// SetListener sets a pre-created listener for systemd socket activation
func (s *Server) SetListener(ln net.Listener) {
	s.listener = ln
}

// Start starts the metrics server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting metrics server")
	go func() {
		var err error
		if s.listener != nil {
			s.logger.Debug().Msg("Using systemd socket-activated metrics listener")
			err = s.server.Serve(s.listener)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("Metrics server error")
		}
	}()
	return nil
}

// Stop stops the metrics server
func (s *Server) Stop() error {
	s.logger.Info().Msg("Stopping metrics server")
	return s.server.Close()
}
