package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment override, e.g. ROMA_API_TIMEOUT
const EnvPrefix = "ROMA"

var (
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Config is the console configuration
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	Poller    PollerConfig    `mapstructure:"poller"`
	Health    HealthConfig    `mapstructure:"health"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	NATS      NATSConfig      `mapstructure:"nats"`
	History   HistoryConfig   `mapstructure:"history"`
	Log       LogConfig       `mapstructure:"log"`
}

type APIConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type PollerConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Backoff  BackoffConfig `mapstructure:"backoff"`
}

// BackoffConfig stretches the poll interval while status fetches fail
type BackoffConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	MaxInterval time.Duration `mapstructure:"max_interval"`
	Multiplier  float64       `mapstructure:"multiplier"`
}

type HealthConfig struct {
	Interval time.Duration `mapstructure:"interval"`
}

type DashboardConfig struct {
	PageSize        int    `mapstructure:"page_size"`
	RefreshSchedule string `mapstructure:"refresh_schedule"`
}

// NATSConfig configures notification publishing; an empty URL disables it
type NATSConfig struct {
	URL            string        `mapstructure:"url"`
	Name           string        `mapstructure:"name"`
	Stream         string        `mapstructure:"stream"`
	Subject        string        `mapstructure:"subject"`
	MaxReconnects  int           `mapstructure:"max_reconnects"`
	ReconnectWait  time.Duration `mapstructure:"reconnect_wait"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// HistoryConfig configures the notification journal; an empty path disables it
type HistoryConfig struct {
	Path          string        `mapstructure:"path"`
	Retention     time.Duration `mapstructure:"retention"`
	PruneSchedule string        `mapstructure:"prune_schedule"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", "http://localhost:8000")
	v.SetDefault("api.timeout", 30*time.Second)

	v.SetDefault("poller.interval", 2*time.Second)
	v.SetDefault("poller.backoff.enabled", false)
	v.SetDefault("poller.backoff.max_interval", 30*time.Second)
	v.SetDefault("poller.backoff.multiplier", 2.0)

	v.SetDefault("health.interval", 30*time.Second)

	v.SetDefault("dashboard.page_size", 20)
	v.SetDefault("dashboard.refresh_schedule", "@every 15s")

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.name", "roma-console")
	v.SetDefault("nats.stream", "NOTIFICATIONS")
	v.SetDefault("nats.subject", "console.notifications")
	v.SetDefault("nats.max_reconnects", 5)
	v.SetDefault("nats.reconnect_wait", 2*time.Second)
	v.SetDefault("nats.connect_timeout", 5*time.Second)

	v.SetDefault("history.path", "console_history.db")
	v.SetDefault("history.retention", 30*24*time.Hour)
	v.SetDefault("history.prune_schedule", "@daily")

	v.SetDefault("log.level", "error")
	v.SetDefault("log.development", false)
}

// Load reads configuration from defaults, an optional YAML file and ROMA_* environment variables.
// With an empty path ./config/console.yaml is used when present.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("api.base_url", "ROMA_API_URL", "ROMA_API_BASE_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("console")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.API.BaseURL) == "":
		return fmt.Errorf("%w: api.base_url must not be empty", ErrInvalidConfig)
	case c.API.Timeout <= 0:
		return fmt.Errorf("%w: api.timeout must be positive", ErrInvalidConfig)
	case c.Poller.Interval <= 0:
		return fmt.Errorf("%w: poller.interval must be positive", ErrInvalidConfig)
	case c.Poller.Backoff.Enabled && c.Poller.Backoff.Multiplier < 1:
		return fmt.Errorf("%w: poller.backoff.multiplier must be >= 1", ErrInvalidConfig)
	case c.Health.Interval <= 0:
		return fmt.Errorf("%w: health.interval must be positive", ErrInvalidConfig)
	case c.Dashboard.PageSize <= 0:
		return fmt.Errorf("%w: dashboard.page_size must be positive", ErrInvalidConfig)
	case c.History.Retention < 0:
		return fmt.Errorf("%w: history.retention must not be negative", ErrInvalidConfig)
	}

	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalidConfig, err)
	}
	return nil
}

// NewLogger builds a zap logger from the log section
func (c LogConfig) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if c.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}
