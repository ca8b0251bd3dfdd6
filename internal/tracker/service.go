package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goodtune/focuswatch/internal/classify"
	"github.com/goodtune/focuswatch/internal/clock"
	"github.com/goodtune/focuswatch/internal/eventlog"
	"github.com/goodtune/focuswatch/internal/metrics"
	"github.com/goodtune/focuswatch/pkg/window"
	"github.com/rs/zerolog"
)

const (
	// DefaultPollInterval is how often the focused window is sampled
	DefaultPollInterval = time.Second

	// DefaultAnalysisInterval re-classifies an unchanged window this often
	DefaultAnalysisInterval = 5 * time.Minute

	shutdownTimeout = 5 * time.Second
)

var (
	// ErrFocusInactive is returned by EndFocus outside a focus session.
	ErrFocusInactive = errors.New("tracker: no focus session active")
	// ErrEmptyFocusGoal is returned by StartFocus without a description.
	ErrEmptyFocusGoal = errors.New("tracker: focus description is required")
)

// ServiceConfig holds poll loop settings
type ServiceConfig struct {
	PollInterval     time.Duration
	IdleThreshold    time.Duration // zero disables idle detection
	AnalysisInterval time.Duration
}

// FocusState describes the current focus session.
type FocusState struct {
	Active      bool      `json:"active"`
	Description string    `json:"description,omitempty"`
	StartedAt   time.Time `json:"started_at,omitempty"`
}

// Service samples the desktop on a fixed cadence and feeds the tracker.
type Service struct {
	tracker    *Tracker
	events     EventWriter
	detector   window.Detector
	classifier classify.Classifier
	clock      clock.Clock
	cfg        ServiceConfig
	logger     zerolog.Logger

	mu           sync.Mutex
	idle         bool
	lastTitle    string
	lastAnalysis time.Time
	focus        FocusState
}

// NewService wires a poll loop. classifier may be nil.
func NewService(tr *Tracker, events EventWriter, detector window.Detector, classifier classify.Classifier, clk clock.Clock, cfg ServiceConfig, logger zerolog.Logger) *Service {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.AnalysisInterval <= 0 {
		cfg.AnalysisInterval = DefaultAnalysisInterval
	}
	if clk == nil {
		clk = clock.RealClock{}
	}

	return &Service{
		tracker:    tr,
		events:     events,
		detector:   detector,
		classifier: classifier,
		clock:      clk,
		cfg:        cfg,
		logger:     logger.With().Str("component", "tracker-service").Logger(),
	}
}

// Tracker returns the tracker fed by this service.
func (s *Service) Tracker() *Tracker {
	return s.tracker
}

// State returns the live tracker state.
func (s *Service) State() State {
	return s.tracker.State()
}

// Run polls until ctx is cancelled, then flushes and checkpoints the tracker.
func (s *Service) Run(ctx context.Context) error {
	s.logger.Info().
		Dur("poll_interval", s.cfg.PollInterval).
		Dur("idle_threshold", s.cfg.IdleThreshold).
		Bool("classifier", s.classifier != nil).
		Msg("Starting window tracking")

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn().Err(err).Msg("Tracking tick failed")
		}

		select {
		case <-ctx.Done():
			return s.shutdown()
		case <-ticker.C:
		}
	}
}

func (s *Service) shutdown() error {
	s.logger.Info().Msg("Stopping window tracking")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.tracker.Close(ctx, s.clock.Now()); err != nil {
		return fmt.Errorf("close tracker: %w", err)
	}
	return nil
}

// Tick performs one poll. Detector failures skip the tick and are not
// returned; log write failures are.
func (s *Service) Tick(ctx context.Context) error {
	now := s.clock.Now()

	pollCtx, cancel := context.WithTimeout(ctx, s.cfg.PollInterval)
	defer cancel()

	if s.cfg.IdleThreshold > 0 {
		idle, err := s.detector.IdleTime(pollCtx)
		if err != nil {
			s.logger.Debug().Err(err).Msg("Idle query failed, skipping tick")
			metrics.TrackerTicksTotal.WithLabelValues("error").Inc()
			return nil
		}
		if idle > s.cfg.IdleThreshold {
			metrics.TrackerTicksTotal.WithLabelValues("idle").Inc()
			return s.handleIdle(ctx, idle, now)
		}
	}

	info, err := s.detector.ActiveWindow(pollCtx)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Active window query failed, skipping tick")
		metrics.TrackerTicksTotal.WithLabelValues("error").Inc()
		return nil
	}

	s.mu.Lock()
	s.idle = false
	s.mu.Unlock()

	if info.Title == "" {
		metrics.TrackerTicksTotal.WithLabelValues("untitled").Inc()
		return s.tracker.Pause(ctx, now)
	}

	var errs []error
	if err := s.append(ctx, eventlog.TypeWindowInfo, now, eventlog.WindowInfo{
		WindowTitle: info.Title,
		ProcessName: info.ProcessName,
		PID:         info.PID,
		Timestamp:   eventlog.FormatTimestamp(now),
	}); err != nil {
		errs = append(errs, err)
	}

	if err := s.tracker.Observe(ctx, info.Title, now); err != nil {
		errs = append(errs, err)
	}

	if err := s.maybeClassify(ctx, *info, now); err != nil {
		errs = append(errs, err)
	}

	if res, err := s.tracker.MaybeEvictAndFlush(ctx, now); err != nil {
		errs = append(errs, err)
	} else if !res.Skipped {
		s.logger.Debug().Strs("flushed", res.Flushed).Strs("evicted", res.Evicted).Msg("Flushed window durations")
	}

	metrics.TrackerTicksTotal.WithLabelValues("observed").Inc()
	return errors.Join(errs...)
}

// handleIdle logs one system_idle record per idle spell and pauses tracking.
func (s *Service) handleIdle(ctx context.Context, idle time.Duration, now time.Time) error {
	s.mu.Lock()
	first := !s.idle
	s.idle = true
	s.lastTitle = ""
	s.mu.Unlock()

	var errs []error
	if first {
		s.logger.Info().Dur("idle", idle).Msg("User idle, pausing tracking")
		if err := s.append(ctx, eventlog.TypeSystemIdle, now, eventlog.SystemIdle{IdleTime: idle.Seconds()}); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.tracker.Pause(ctx, now); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *Service) maybeClassify(ctx context.Context, info window.Info, now time.Time) error {
	if s.classifier == nil {
		return nil
	}

	s.mu.Lock()
	due := info.Title != s.lastTitle || now.Sub(s.lastAnalysis) >= s.cfg.AnalysisInterval
	s.lastTitle = info.Title
	if due {
		s.lastAnalysis = now
	}
	goal := s.focus.Description
	s.mu.Unlock()

	if !due {
		return nil
	}

	start := time.Now()
	result, err := s.classifier.Classify(ctx, info, goal)
	if err != nil {
		s.logger.Warn().Err(err).Str("window", info.Title).Msg("Classification failed")
		return nil
	}
	metrics.ClassificationDuration.WithLabelValues(result.AnalysisType).Observe(time.Since(start).Seconds())

	verdict := "focused"
	if result.Analysis.IsDistracted {
		verdict = "distracted"
		s.logger.Info().
			Str("window", info.Title).
			Str("reason", result.Analysis.Reason).
			Msg("Distraction detected")
	}
	metrics.ClassificationsTotal.WithLabelValues(result.AnalysisType, verdict).Inc()

	return s.append(ctx, eventlog.TypeAIAnalysis, now, result.Payload())
}

// StartFocus begins a focus session, ending any session already running.
func (s *Service) StartFocus(ctx context.Context, description string) (FocusState, error) {
	if description == "" {
		return FocusState{}, ErrEmptyFocusGoal
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if s.focus.Active {
		if err := s.append(ctx, eventlog.TypeFocusModeEnd, now, eventlog.FocusMode{Description: s.focus.Description}); err != nil {
			return s.focus, err
		}
	}
	if err := s.append(ctx, eventlog.TypeFocusModeStart, now, eventlog.FocusMode{Description: description}); err != nil {
		s.focus = FocusState{}
		return s.focus, err
	}

	s.focus = FocusState{Active: true, Description: description, StartedAt: now}
	// The next tick re-classifies against the new goal.
	s.lastTitle = ""
	s.logger.Info().Str("description", description).Msg("Focus session started")
	return s.focus, nil
}

// EndFocus ends the running focus session.
func (s *Service) EndFocus(ctx context.Context) (FocusState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.focus.Active {
		return FocusState{}, ErrFocusInactive
	}

	ended := s.focus
	if err := s.append(ctx, eventlog.TypeFocusModeEnd, s.clock.Now(), eventlog.FocusMode{Description: ended.Description}); err != nil {
		return s.focus, err
	}
	s.focus = FocusState{}
	s.lastTitle = ""
	s.logger.Info().Str("description", ended.Description).Msg("Focus session ended")
	return ended, nil
}

// Focus returns the current focus session.
func (s *Service) Focus() FocusState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.focus
}

func (s *Service) append(ctx context.Context, typ eventlog.Type, ts time.Time, payload any) error {
	event, err := eventlog.NewEvent(typ, ts, payload)
	if err != nil {
		return err
	}
	return s.events.Append(ctx, event)
}
