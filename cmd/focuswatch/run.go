package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/goodtune/focuswatch/internal/api"
	"github.com/goodtune/focuswatch/internal/classify"
	"github.com/goodtune/focuswatch/internal/clock"
	"github.com/goodtune/focuswatch/internal/metrics"
	"github.com/goodtune/focuswatch/internal/systemd"
	"github.com/goodtune/focuswatch/internal/tracker"
	"github.com/goodtune/focuswatch/pkg/window/x11"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Track the focused window",
	Long: `Sample the focused X11 window, record dwell time and classification
verdicts to the activity log, and serve the query API and metrics.`,
	RunE: runTracker,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runTracker(cmd *cobra.Command, args []string) error {
	env, err := loadEnvironment(os.Stdout, false)
	if err != nil {
		return err
	}
	defer env.close()

	cfg := env.cfg
	logger := env.logger
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Str("storage", cfg.Storage.Type).
		Msg("Starting FocusWatch")

	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	detector, err := x11.NewDetector()
	if err != nil {
		return fmt.Errorf("failed to initialize window detector: %w", err)
	}
	defer func() {
		if err := detector.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close window detector")
		}
	}()

	clk := clock.RealClock{}

	tr := tracker.New(env.log, env.store.Checkpoints(), tracker.Config{
		KeepThreshold:        parseDuration(cfg.Tracker.KeepThreshold, tracker.DefaultKeepThreshold),
		SignificantThreshold: parseDuration(cfg.Tracker.SignificantThreshold, tracker.DefaultSignificantThreshold),
		CleanupInterval:      parseDuration(cfg.Tracker.CleanupInterval, tracker.DefaultCleanupInterval),
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := tr.Restore(ctx, clk.Now()); err != nil {
		logger.Warn().Err(err).Msg("Failed to restore tracker checkpoint, starting fresh")
	}

	var classifier classify.Classifier
	if cfg.Classifier.Enabled {
		classifier = classify.NewKeyword(cfg.Classifier.Keywords, parseDuration(cfg.Classifier.Timeout, 5*time.Minute))
		logger.Info().Strs("keywords", cfg.Classifier.Keywords).Msg("Keyword classifier enabled")
	}

	svc := tracker.NewService(tr, env.log, detector, classifier, clk, tracker.ServiceConfig{
		PollInterval:     parseDuration(cfg.Tracker.PollInterval, tracker.DefaultPollInterval),
		IdleThreshold:    parseDuration(cfg.Tracker.IdleThreshold, 5*time.Minute),
		AnalysisInterval: parseDuration(cfg.Tracker.AnalysisInterval, tracker.DefaultAnalysisInterval),
	}, logger)

	srv, err := startServers(env, svc, sdListeners)
	if err != nil {
		return err
	}

	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	}
	notifyStatus(logger, fmt.Sprintf("Tracking focused window, storage %s", cfg.Storage.Type))

	runErr := svc.Run(ctx)

	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}
	srv.stop(logger)

	if runErr != nil {
		return fmt.Errorf("tracker shutdown: %w", runErr)
	}
	logger.Info().Msg("FocusWatch stopped")
	return nil
}

// notifyStatus reports a status line to systemd when running as a unit.
func notifyStatus(logger zerolog.Logger, status string) {
	if !systemd.IsSystemdService() {
		return
	}
	if err := systemd.NotifyStatus(status); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd status")
	}
}

type servers struct {
	api     *api.Server
	metrics *metrics.Server
}

// startServers starts the API and metrics listeners that are enabled. live
// may be nil for a read-only API.
func startServers(env *environment, live api.Live, sd *systemd.Listeners) (*servers, error) {
	cfg := env.cfg
	var s servers

	if cfg.API.Enabled {
		agg, err := env.aggregator()
		if err != nil {
			return nil, err
		}

		addr := fmt.Sprintf("%s:%d", cfg.API.BindAddress, cfg.API.Port)
		s.api = api.NewServer(api.Config{
			ListenAddr: addr,
			Location:   cfg.NaiveLocation(),
		}, agg, live, env.logger)
		if sd.Activated && sd.API != nil {
			s.api.SetListener(sd.API)
		}
		if err := s.api.Start(); err != nil {
			return nil, fmt.Errorf("failed to start API server: %w", err)
		}
	}

	if cfg.Metrics.Enabled {
		addr := fmt.Sprintf("%s:%d", cfg.Metrics.BindAddress, cfg.Metrics.Port)
		s.metrics = metrics.NewServer(addr, env.logger)
		if sd.Activated && sd.Metrics != nil {
			s.metrics.SetListener(sd.Metrics)
		}
		if err := s.metrics.Start(); err != nil {
			s.stop(env.logger)
			return nil, fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	return &s, nil
}

func (s *servers) stop(logger zerolog.Logger) {
	if s.api != nil {
		if err := s.api.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping API server")
		}
	}
	if s.metrics != nil {
		if err := s.metrics.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping metrics server")
		}
	}
}
