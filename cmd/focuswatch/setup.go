package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/goodtune/focuswatch/internal/config"
	"github.com/goodtune/focuswatch/internal/eventlog"
	"github.com/goodtune/focuswatch/internal/stats"
	"github.com/goodtune/focuswatch/internal/storage"
	"github.com/goodtune/focuswatch/internal/storage/bolt"
	"github.com/goodtune/focuswatch/internal/storage/file"
	"github.com/goodtune/focuswatch/internal/storage/redis"
	"github.com/goodtune/focuswatch/internal/storage/sqlite"
)

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	if cfg.File != "" {
		rotating := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		// Rotated files are always JSON; the console copy follows the format.
		if cfg.Format == "text" {
			out = zerolog.MultiLevelWriter(zerolog.ConsoleWriter{Out: out}, rotating)
		} else {
			out = zerolog.MultiLevelWriter(out, rotating)
		}
		return zerolog.New(out).With().Timestamp().Logger()
	}

	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(out).With().Timestamp().Logger()
}

// openStorage opens the configured backend. readOnly only changes the bolt
// backend, whose file lock would otherwise conflict with a running tracker.
func openStorage(cfg config.StorageConfig, readOnly bool) (storage.Store, error) {
	switch cfg.Type {
	case "", "file":
		return file.Open(cfg.Path)
	case "bolt":
		if readOnly {
			return bolt.OpenReadOnly(cfg.Path)
		}
		return bolt.Open(cfg.Path)
	case "redis":
		return redis.Open(cfg.Redis)
	case "sqlite":
		return sqlite.Open(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

// environment holds what every command needs once configuration is loaded.
type environment struct {
	cfg    *config.Config
	logger zerolog.Logger
	store  storage.Store
	log    *eventlog.Log
}

func loadEnvironment(logOut io.Writer, readOnly bool) (*environment, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogger(cfg.Logging, logOut)

	store, err := openStorage(cfg.Storage, readOnly)
	if errors.Is(err, storage.ErrLocked) {
		return nil, fmt.Errorf("failed to initialize storage: %w (is `focuswatch run` using it?)", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	logger.Debug().
		Str("type", cfg.Storage.Type).
		Str("path", cfg.Storage.Path).
		Msg("Storage initialized")

	return &environment{
		cfg:    cfg,
		logger: logger,
		store:  store,
		log:    eventlog.New(store.Events(), cfg.NaiveLocation(), logger),
	}, nil
}

func (e *environment) close() {
	if err := e.store.Close(); err != nil {
		e.logger.Error().Err(err).Msg("Failed to close storage")
	}
}

func (e *environment) aggregator() (*stats.Aggregator, error) {
	return stats.New(e.log, stats.Options{
		TopN:       e.cfg.Stats.TopN,
		TickLength: parseDuration(e.cfg.Stats.TickLength, stats.DefaultTickLength),
		Freshness:  parseDuration(e.cfg.Stats.Freshness, stats.DefaultFreshness),
		CacheSize:  e.cfg.Stats.CacheSize,
	}, e.logger)
}

// parseDuration parses a duration string with a fallback
func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
