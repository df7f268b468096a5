// Package config loads application configuration from defaults, an
// optional YAML file and JOBWATCH_* environment variables, in that
// order of precedence (later wins).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix for environment overrides. Double underscore separates
// nesting levels so keys containing underscores stay addressable, e.g.
// JOBWATCH_SERVER__METRICS_PORT -> server.metrics_port.
const envPrefix = "JOBWATCH_"

// Config is the root application configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Database      DatabaseConfig      `koanf:"database"`
	Log           LogConfig           `koanf:"log"`
	CORS          CORSConfig          `koanf:"cors"`
	Feed          FeedConfig          `koanf:"feed"`
	Engine        EngineConfig        `koanf:"engine"`
	Notifications NotificationsConfig `koanf:"notifications"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host              string        `koanf:"host"`
	Port              string        `koanf:"port"`
	MetricsPort       string        `koanf:"metrics_port"`
	ReadTimeout       time.Duration `koanf:"read_timeout"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	WriteTimeout      time.Duration `koanf:"write_timeout"`
	IdleTimeout       time.Duration `koanf:"idle_timeout"`
}

// DatabaseConfig contains PostgreSQL settings.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	MaxOpenConns    int           `koanf:"max_open_conns"`
	MaxIdleConns    int           `koanf:"max_idle_conns"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `koanf:"connect_timeout"`
	ConnectAttempts int           `koanf:"connect_attempts"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// CORSConfig contains CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// FeedConfig contains upstream status feed settings.
type FeedConfig struct {
	URL          string        `koanf:"url"`
	Timeout      time.Duration `koanf:"timeout"`
	PollInterval time.Duration `koanf:"poll_interval"`
}

// EngineConfig contains incident lifecycle engine tunables.
type EngineConfig struct {
	SlowResponseThreshold time.Duration `koanf:"slow_response_threshold"`
}

// NotificationsConfig contains outbound webhook notification settings.
type NotificationsConfig struct {
	Enabled   bool          `koanf:"enabled"`
	BaseURL   string        `koanf:"base_url"`
	RateLimit float64       `koanf:"rate_limit"`
	Timeout   time.Duration `koanf:"timeout"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"server.host":                    "0.0.0.0",
		"server.port":                    "8080",
		"server.metrics_port":            "9090",
		"server.read_timeout":            "10s",
		"server.read_header_timeout":     "5s",
		"server.write_timeout":           "30s",
		"server.idle_timeout":            "120s",
		"database.max_open_conns":        10,
		"database.max_idle_conns":        2,
		"database.conn_max_lifetime":     "30m",
		"database.connect_timeout":       "30s",
		"database.connect_attempts":      5,
		"log.level":                      "info",
		"log.format":                     "json",
		"cors.allowed_origins":           []string{"*"},
		"feed.timeout":                   "10s",
		"feed.poll_interval":             "10s",
		"engine.slow_response_threshold": "20s",
		"notifications.enabled":          false,
		"notifications.rate_limit":       5.0,
		"notifications.timeout":          "10s",
	}
}

// Load reads configuration. path may be empty to use only defaults and
// environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(envPrefix, ".", func(key string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(key, envPrefix)), "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.Feed.URL == "" {
		return fmt.Errorf("feed.url is required")
	}
	if c.Notifications.Enabled && c.Notifications.BaseURL == "" {
		return fmt.Errorf("notifications.base_url is required when notifications are enabled")
	}
	return nil
}
