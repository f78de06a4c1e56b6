package config

import (
	"fmt"
	"net/url"
	"slices"
	"time"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	App       AppConfig       `koanf:"app"`
	Store     StoreConfig     `koanf:"store"`
	Database  DatabaseConfig  `koanf:"database"`
	Redis     RedisConfig     `koanf:"redis"`
	Engine    EngineConfig    `koanf:"engine"`
	JWT       JWTConfig       `koanf:"jwt"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Monitor   MonitorConfig   `koanf:"monitor"`
}

// AppConfig holds application configuration
type AppConfig struct {
	Name           string   `koanf:"name"`
	Version        string   `koanf:"version"`
	Port           int      `koanf:"port"`
	Env            string   `koanf:"env"`
	LogLevel       string   `koanf:"log_level"`
	AllowedOrigins []string `koanf:"allowed_origins"`
}

// StoreConfig selects the record store backend.
type StoreConfig struct {
	Driver string `koanf:"driver"`
}

type DatabaseConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Name     string `koanf:"name"`
	SSLMode  string `koanf:"ssl_mode"`
	MaxConns int32  `koanf:"max_conns"`
	MinConns int32  `koanf:"min_conns"`
}

// RedisConfig enables the shared summary cache. With an empty URL the memory
// store caches in process and the postgres store does not cache at all.
type RedisConfig struct {
	URL      string        `koanf:"url"`
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

// EngineConfig tunes the attendance engine itself.
type EngineConfig struct {
	DefaultTimezone   string        `koanf:"default_timezone"`
	ValidateEmployees bool          `koanf:"validate_employees"`
	RetryAttempts     int           `koanf:"retry_attempts"`
	RetryBaseDelay    time.Duration `koanf:"retry_base_delay"`
	StoreTimeout      time.Duration `koanf:"store_timeout"`
	ReportConcurrency int           `koanf:"report_concurrency"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string        `koanf:"secret"`
	AccessExpiration time.Duration `koanf:"access_expiration"`
}

// RateLimitConfig throttles clock-in/clock-out per employee. A zero RPS
// disables it.
type RateLimitConfig struct {
	RPS   float64 `koanf:"rps"`
	Burst int     `koanf:"burst"`
}

// MonitorConfig drives the stale open-record check.
type MonitorConfig struct {
	StaleAfter time.Duration `koanf:"stale_after"`
	Interval   time.Duration `koanf:"interval"`
}

// Default returns the configuration used before any file or env override.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name:           "attendance-engine",
			Version:        "dev",
			Port:           8080,
			Env:            "development",
			LogLevel:       "info",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Store: StoreConfig{Driver: StorePostgres},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Name:     "attendance",
			SSLMode:  "disable",
			MaxConns: 25,
			MinConns: 5,
		},
		Redis: RedisConfig{CacheTTL: 15 * time.Minute},
		Engine: EngineConfig{
			DefaultTimezone:   "UTC",
			RetryAttempts:     3,
			RetryBaseDelay:    100 * time.Millisecond,
			StoreTimeout:      5 * time.Second,
			ReportConcurrency: 8,
		},
		JWT:       JWTConfig{AccessExpiration: time.Hour},
		RateLimit: RateLimitConfig{RPS: 1, Burst: 5},
		Monitor: MonitorConfig{
			StaleAfter: 16 * time.Hour,
			Interval:   time.Hour,
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("app.port must be between 1 and 65535")
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, c.App.LogLevel) {
		return fmt.Errorf("app.log_level must be one of debug, info, warn, error")
	}

	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres:
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required for the postgres store")
		}
	default:
		return fmt.Errorf("store.driver must be %q or %q", StoreMemory, StorePostgres)
	}

	if _, err := time.LoadLocation(c.Engine.DefaultTimezone); err != nil {
		return fmt.Errorf("engine.default_timezone: %w", err)
	}
	if c.Engine.RetryAttempts < 1 {
		return fmt.Errorf("engine.retry_attempts must be at least 1")
	}
	if c.Engine.RetryBaseDelay < 0 || c.Engine.StoreTimeout < 0 {
		return fmt.Errorf("engine durations must not be negative")
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required")
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit values must not be negative")
	}
	if c.Monitor.Interval <= 0 || c.Monitor.StaleAfter <= 0 {
		return fmt.Errorf("monitor.interval and monitor.stale_after must be positive")
	}
	return nil
}

// Location returns the engine's default calendar. Call after Validate.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Engine.DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.Database.User, c.Database.Password),
		Host:     fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:     c.Database.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.Database.SSLMode),
	}
	return u.String()
}
