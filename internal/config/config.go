// Package config loads and validates dashboard configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. HOTDASH_BACKEND_BASE_URL.
const EnvPrefix = "HOTDASH"

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Backend   BackendConfig   `mapstructure:"backend"`
	Refresh   RefreshConfig   `mapstructure:"refresh"`
	Crawl     CrawlConfig     `mapstructure:"crawl"`
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// BackendConfig points at the crawler service.
type BackendConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIPrefix string        `mapstructure:"api_prefix"`
	Timeout   time.Duration `mapstructure:"timeout"`
	ListLimit int           `mapstructure:"list_limit"`
	// RateLimitRPS caps calls per second per operation; 0 disables it.
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// RefreshConfig controls the polling loop.
type RefreshConfig struct {
	Auto     bool          `mapstructure:"auto"`
	Interval time.Duration `mapstructure:"interval"`
}

// CrawlConfig controls the post-crawl reload.
type CrawlConfig struct {
	RefetchDelay time.Duration `mapstructure:"refetch_delay"`
}

// ServerConfig controls the renderer-facing HTTP server.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// NotifyConfig sizes the notice hub.
type NotifyConfig struct {
	BufferSize   int           `mapstructure:"buffer_size"`
	MaxBatchWait time.Duration `mapstructure:"max_batch_wait"`
	Recent       int           `mapstructure:"recent"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// TelemetryConfig toggles OpenTelemetry tracing.
type TelemetryConfig struct {
	Tracing     bool   `mapstructure:"tracing"`
	Exporter    string `mapstructure:"exporter"`
	ServiceName string `mapstructure:"service_name"`
}

// Trace exporters.
const (
	ExporterNone   = "none"
	ExporterStdout = "stdout"
)

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend.base_url", "http://localhost:8000")
	v.SetDefault("backend.api_prefix", "/api")
	v.SetDefault("backend.timeout", "30s")
	v.SetDefault("backend.list_limit", 50)
	v.SetDefault("backend.rate_limit_rps", 0)
	v.SetDefault("backend.rate_limit_burst", 5)
	v.SetDefault("refresh.auto", false)
	v.SetDefault("refresh.interval", "30s")
	v.SetDefault("crawl.refetch_delay", "2s")
	v.SetDefault("server.port", 8080)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("notify.buffer_size", 256)
	v.SetDefault("notify.max_batch_wait", "100ms")
	v.SetDefault("notify.recent", 20)
	v.SetDefault("logging.development", true)
	v.SetDefault("telemetry.tracing", false)
	v.SetDefault("telemetry.exporter", ExporterNone)
	v.SetDefault("telemetry.service_name", "hotdash")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.base_url must be an absolute URL, got %q", c.Backend.BaseURL)
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be > 0")
	}
	if c.Backend.ListLimit < 0 {
		return fmt.Errorf("backend.list_limit must be >= 0")
	}
	if c.Backend.RateLimitRPS < 0 {
		return fmt.Errorf("backend.rate_limit_rps must be >= 0")
	}
	if c.Backend.RateLimitBurst < 0 {
		return fmt.Errorf("backend.rate_limit_burst must be >= 0")
	}
	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh.interval must be > 0")
	}
	if c.Crawl.RefetchDelay < 0 {
		return fmt.Errorf("crawl.refetch_delay must be >= 0")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Notify.BufferSize <= 0 {
		return fmt.Errorf("notify.buffer_size must be > 0")
	}
	switch c.Telemetry.Exporter {
	case "", ExporterNone, ExporterStdout:
	default:
		return fmt.Errorf("telemetry.exporter must be %q or %q, got %q", ExporterNone, ExporterStdout, c.Telemetry.Exporter)
	}
	return nil
}
