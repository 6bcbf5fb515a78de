package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log       LoggingConfig   `yaml:"log"`
	REST      RESTConfig      `yaml:"rest"`
	Hedge     HedgeConfig     `yaml:"hedge"`
	HTTP      HTTPConfig      `yaml:"http"`
	State     StateConfig     `yaml:"state"`
	Timescale TimescaleConfig `yaml:"timescale"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Telegram  TelegramConfig  `yaml:"telegram"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type RESTConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// HedgeConfig seeds the engine settings at start-up. Runtime changes go
// through the engine and are not written back to the file.
type HedgeConfig struct {
	DeltaThreshold *float64      `yaml:"delta_threshold"`
	CheckInterval  time.Duration `yaml:"check_interval"`
	MinHedgeSize   float64       `yaml:"min_hedge_size"`
	HedgeProductID int           `yaml:"hedge_product_id"`
	AutoStart      bool          `yaml:"auto_start"`
}

// DefaultDeltaThreshold applies when delta_threshold is absent. An explicit
// zero hedges on any delta above the minimum size.
const DefaultDeltaThreshold = 0.15

func (h HedgeConfig) DeltaThresholdValue() float64 {
	if h.DeltaThreshold == nil {
		return DefaultDeltaThreshold
	}
	return *h.DeltaThreshold
}

type HTTPConfig struct {
	Enabled         *bool         `yaml:"enabled"`
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	PingInterval    time.Duration `yaml:"ping_interval"`
	// AllowedOrigins are host patterns permitted to open /ws cross-origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

func (h HTTPConfig) EnabledValue() bool {
	if h.Enabled == nil {
		return true
	}
	return *h.Enabled
}

type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

type TimescaleConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	Schema          string        `yaml:"schema"`
	QueueSize       int           `yaml:"queue_size"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type MetricsConfig struct {
	Enabled *bool  `yaml:"enabled"`
	Path    string `yaml:"path"`
}

func (m MetricsConfig) EnabledValue() bool {
	if m.Enabled == nil {
		return true
	}
	return *m.Enabled
}

type TelegramConfig struct {
	Enabled                bool          `yaml:"enabled"`
	Token                  string        `yaml:"token"`
	ChatID                 string        `yaml:"chat_id"`
	OperatorEnabled        bool          `yaml:"operator_enabled"`
	OperatorPollInterval   time.Duration `yaml:"operator_poll_interval"`
	OperatorAllowedUserIDs []int64       `yaml:"operator_allowed_user_ids"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, validate(&cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.REST.BaseURL == "" {
		cfg.REST.BaseURL = "https://api.india.delta.exchange"
	}
	cfg.REST.BaseURL = strings.TrimRight(cfg.REST.BaseURL, "/")
	if cfg.REST.Timeout == 0 {
		cfg.REST.Timeout = 10 * time.Second
	}
	if cfg.Hedge.CheckInterval == 0 {
		cfg.Hedge.CheckInterval = 30 * time.Second
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = "127.0.0.1:8080"
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 5 * time.Second
	}
	if cfg.HTTP.PingInterval == 0 {
		cfg.HTTP.PingInterval = 20 * time.Second
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/delta-hedge-bot.db"
	}
	if cfg.Timescale.Schema == "" {
		cfg.Timescale.Schema = "public"
	}
	if cfg.Timescale.QueueSize == 0 {
		cfg.Timescale.QueueSize = 256
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Telegram.OperatorPollInterval == 0 {
		cfg.Telegram.OperatorPollInterval = 3 * time.Second
	}
}

func validate(cfg *Config) error {
	if cfg.Hedge.DeltaThresholdValue() < 0 {
		return errors.New("hedge.delta_threshold must be >= 0")
	}
	if cfg.Hedge.CheckInterval < time.Millisecond {
		return errors.New("hedge.check_interval must be >= 1ms")
	}
	if cfg.Hedge.MinHedgeSize < 0 {
		return errors.New("hedge.min_hedge_size must be >= 0")
	}
	if cfg.Hedge.HedgeProductID <= 0 {
		return errors.New("hedge.hedge_product_id is required")
	}
	if cfg.REST.Timeout < 0 {
		return errors.New("rest.timeout must be >= 0")
	}
	if cfg.Timescale.Enabled && strings.TrimSpace(cfg.Timescale.DSN) == "" {
		return errors.New("timescale.dsn is required when timescale is enabled")
	}
	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return errors.New("metrics.path must start with /")
	}
	if cfg.Telegram.OperatorEnabled && !cfg.Telegram.Enabled {
		return errors.New("telegram.operator_enabled requires telegram.enabled")
	}
	return nil
}
