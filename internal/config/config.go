package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Tracker    TrackerConfig    `mapstructure:"tracker" yaml:"tracker"`
	EventLog   EventLogConfig   `mapstructure:"eventlog" yaml:"eventlog"`
	Storage    StorageConfig    `mapstructure:"storage" yaml:"storage"`
	Stats      StatsConfig      `mapstructure:"stats" yaml:"stats"`
	Classifier ClassifierConfig `mapstructure:"classifier" yaml:"classifier"`
	API        APIConfig        `mapstructure:"api" yaml:"api"`
	Metrics    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
	Logging    LoggingConfig    `mapstructure:"logging" yaml:"logging"`
}

// TrackerConfig defines the window tracker thresholds and poll cadence
type TrackerConfig struct {
	PollInterval         string `mapstructure:"poll_interval" yaml:"poll_interval"`
	IdleThreshold        string `mapstructure:"idle_threshold" yaml:"idle_threshold"`
	KeepThreshold        string `mapstructure:"keep_threshold" yaml:"keep_threshold"`               // evict windows below this total
	SignificantThreshold string `mapstructure:"significant_threshold" yaml:"significant_threshold"` // flush windows at or above this total
	CleanupInterval      string `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
	AnalysisInterval     string `mapstructure:"analysis_interval" yaml:"analysis_interval"`
}

// EventLogConfig defines how log records are interpreted
type EventLogConfig struct {
	NaiveTimezone string `mapstructure:"naive_timezone" yaml:"naive_timezone"` // "Local" or an IANA zone name
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type" yaml:"type"` // file, bolt, redis or sqlite
	Path  string      `mapstructure:"path" yaml:"path"`
	Redis RedisConfig `mapstructure:"redis" yaml:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host" yaml:"host"`
	Port         int    `mapstructure:"port" yaml:"port"`
	Password     string `mapstructure:"password" yaml:"password"`
	DB           int    `mapstructure:"db" yaml:"db"`
	KeyPrefix    string `mapstructure:"key_prefix" yaml:"key_prefix"`
	PoolSize     int    `mapstructure:"pool_size" yaml:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns" yaml:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// StatsConfig defines aggregation settings
type StatsConfig struct {
	TopN       int    `mapstructure:"top_n" yaml:"top_n"`
	TickLength string `mapstructure:"tick_length" yaml:"tick_length"`
	Freshness  string `mapstructure:"freshness" yaml:"freshness"`
	CacheSize  int    `mapstructure:"cache_size" yaml:"cache_size"`
}

// ClassifierConfig defines the distraction classifier
type ClassifierConfig struct {
	Enabled  bool     `mapstructure:"enabled" yaml:"enabled"`
	Keywords []string `mapstructure:"keywords" yaml:"keywords"`
	Timeout  string   `mapstructure:"timeout" yaml:"timeout"` // suggested break length for distractions
}

// APIConfig defines the query API listener
type APIConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	BindAddress string `mapstructure:"bind_address" yaml:"bind_address"`
	Port        int    `mapstructure:"port" yaml:"port"`
}

// MetricsConfig defines the Prometheus listener
type MetricsConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	BindAddress string `mapstructure:"bind_address" yaml:"bind_address"`
	Port        int    `mapstructure:"port" yaml:"port"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	}
	v.SetEnvPrefix("FOCUSWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			// Config file not found, use defaults and environment variables
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// DefaultDataDir returns the directory used for default storage paths.
func DefaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "focuswatch")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "focuswatch")
	}
	return "focuswatch"
}

// Defaults returns the configuration used when no file or environment
// overrides are present.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// KnownKeys returns the set of configuration keys Load understands.
func KnownKeys() map[string]bool {
	v := viper.New()
	setDefaults(v)

	keys := make(map[string]bool)
	for _, key := range v.AllKeys() {
		keys[key] = true
	}
	return keys
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Tracker defaults
	v.SetDefault("tracker.poll_interval", "1s")
	v.SetDefault("tracker.idle_threshold", "5m")
	v.SetDefault("tracker.keep_threshold", "60s")
	v.SetDefault("tracker.significant_threshold", "300s")
	v.SetDefault("tracker.cleanup_interval", "1800s")
	v.SetDefault("tracker.analysis_interval", "5m")

	v.SetDefault("eventlog.naive_timezone", "Local")

	// Storage defaults
	v.SetDefault("storage.type", "file")
	v.SetDefault("storage.path", filepath.Join(DefaultDataDir(), "activity.jsonl"))
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.key_prefix", "focuswatch")
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Stats defaults
	v.SetDefault("stats.top_n", 10)
	v.SetDefault("stats.tick_length", "1s")
	v.SetDefault("stats.freshness", "2s")
	v.SetDefault("stats.cache_size", 64)

	// Classifier defaults
	v.SetDefault("classifier.enabled", false)
	v.SetDefault("classifier.keywords", []string{"youtube", "reddit", "twitter", "facebook", "netflix"})
	v.SetDefault("classifier.timeout", "5m")

	v.SetDefault("api.enabled", true)
	v.SetDefault("api.bind_address", "127.0.0.1")
	v.SetDefault("api.port", 5000)

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.bind_address", "127.0.0.1")
	v.SetDefault("metrics.port", 9090)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
}

// validate validates the configuration
func validate(cfg *Config) error {
	durations := map[string]string{
		"tracker.poll_interval":         cfg.Tracker.PollInterval,
		"tracker.idle_threshold":        cfg.Tracker.IdleThreshold,
		"tracker.keep_threshold":        cfg.Tracker.KeepThreshold,
		"tracker.significant_threshold": cfg.Tracker.SignificantThreshold,
		"tracker.cleanup_interval":      cfg.Tracker.CleanupInterval,
		"tracker.analysis_interval":     cfg.Tracker.AnalysisInterval,
		"stats.tick_length":             cfg.Stats.TickLength,
		"stats.freshness":               cfg.Stats.Freshness,
		"classifier.timeout":            cfg.Classifier.Timeout,
	}
	for key, value := range durations {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
		if d < 0 {
			return fmt.Errorf("invalid %s %q: must not be negative", key, value)
		}
	}

	if _, err := time.LoadLocation(cfg.EventLog.NaiveTimezone); err != nil {
		return fmt.Errorf("invalid eventlog.naive_timezone %q: %w", cfg.EventLog.NaiveTimezone, err)
	}

	if cfg.Stats.TopN <= 0 {
		return fmt.Errorf("invalid stats.top_n: %d", cfg.Stats.TopN)
	}

	if cfg.API.Port <= 0 || cfg.API.Port > 65535 {
		return fmt.Errorf("invalid API port: %d", cfg.API.Port)
	}
	if cfg.Metrics.Port <= 0 || cfg.Metrics.Port > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Metrics.Port)
	}

	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "file"
	}

	switch cfg.Storage.Type {
	case "file", "bolt", "sqlite":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required")
		}
		storageDir := filepath.Dir(cfg.Storage.Path)
		if err := os.MkdirAll(storageDir, 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	case "redis":
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("storage.redis.host is required")
		}
	default:
		return fmt.Errorf("unsupported storage type %q", cfg.Storage.Type)
	}

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging level %q", cfg.Logging.Level)
	}

	return nil
}

// NaiveLocation resolves eventlog.naive_timezone.
func (c *Config) NaiveLocation() *time.Location {
	loc, err := time.LoadLocation(c.EventLog.NaiveTimezone)
	if err != nil {
		return time.Local
	}
	return loc
}
