package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog/log"

	"github.com/onoff-automations/schedule-modes/internal/model"
)

// Environment represents different deployment environments
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvProduction  Environment = "production"
)

// Config holds the configuration for the modes service.
// Environment variables are parsed from the MODES_ prefix.
type Config struct {
	Environment Environment `envconfig:"ENVIRONMENT" default:"development"`

	// HTTP Configuration
	HTTPPort int `envconfig:"HTTP_PORT" default:"8080"`

	// Store driver: sqlite | postgres | memory
	StoreDriver string `envconfig:"STORE_DRIVER" default:"sqlite"`
	SQLitePath  string `envconfig:"SQLITE_PATH" default:"data/modes.db"`
	PostgresDSN string `envconfig:"POSTGRES_DSN" default:""`

	// Calendar provider: "store" serves events from the store driver,
	// "remote" proxies them to an external calendar service.
	CalendarProvider  string `envconfig:"CALENDAR_PROVIDER" default:"store"`
	RemoteCalendarURL string `envconfig:"REMOTE_CALENDAR_URL" default:""`

	// Engine timing
	TickSeconds    int    `envconfig:"TICK_SECONDS" default:"30"`
	AutoResetTime  string `envconfig:"AUTO_RESET_TIME" default:""` // HH:MM, empty disables
	RetentionHours int    `envconfig:"RETENTION_HOURS" default:"24"`
	Timezone       string `envconfig:"TIMEZONE" default:""`

	// Mode selection and defaults
	EnabledModes     []string       `envconfig:"ENABLED_MODES" default:""`
	DefaultDurations map[string]int `envconfig:"DEFAULT_DURATIONS" default:""`

	// Link propagation (source mode's events mirrored onto the target)
	LinkEnabled    bool   `envconfig:"LINK_ENABLED" default:"false"`
	LinkSourceMode string `envconfig:"LINK_SOURCE_MODE" default:"bris"`
	LinkTargetMode string `envconfig:"LINK_TARGET_MODE" default:"no_tachnun"`

	// Health monitoring
	HealthIntervalSeconds     int `envconfig:"HEALTH_INTERVAL_SECONDS" default:"30"`
	HealthProbeTimeoutSeconds int `envconfig:"HEALTH_PROBE_TIMEOUT_SECONDS" default:"5"`
}

// ResolveDefaults validates the configuration and fills derived values.
func (c *Config) ResolveDefaults() error {
	allowedDB := map[string]bool{"sqlite": true, "postgres": true, "memory": true}
	if !allowedDB[c.StoreDriver] {
		return fmt.Errorf("unsupported STORE_DRIVER: %s", c.StoreDriver)
	}
	if c.StoreDriver == "postgres" && c.PostgresDSN == "" {
		return fmt.Errorf("STORE_DRIVER=postgres requires POSTGRES_DSN")
	}

	switch c.CalendarProvider {
	case "store":
	case "remote":
		if c.RemoteCalendarURL == "" {
			return fmt.Errorf("CALENDAR_PROVIDER=remote requires REMOTE_CALENDAR_URL")
		}
	default:
		return fmt.Errorf("unsupported CALENDAR_PROVIDER: %s", c.CalendarProvider)
	}

	if c.TickSeconds <= 0 {
		c.TickSeconds = 30
	}
	if c.RetentionHours <= 0 {
		c.RetentionHours = 24
	}

	if c.AutoResetTime != "" {
		if _, _, err := ParseClock(c.AutoResetTime); err != nil {
			return fmt.Errorf("invalid AUTO_RESET_TIME %q: %w", c.AutoResetTime, err)
		}
	}

	if len(c.EnabledModes) == 0 {
		c.EnabledModes = model.AllModeKeys()
	} else {
		for _, k := range c.EnabledModes {
			if _, ok := model.LookupModeDef(k); !ok {
				return fmt.Errorf("unknown mode key in ENABLED_MODES: %s", k)
			}
		}
	}

	if c.LinkEnabled {
		if c.LinkSourceMode == c.LinkTargetMode {
			return fmt.Errorf("link source and target modes must differ")
		}
		for _, k := range []string{c.LinkSourceMode, c.LinkTargetMode} {
			if _, ok := model.LookupModeDef(k); !ok {
				return fmt.Errorf("unknown link mode key: %s", k)
			}
		}
	}

	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
		}
	}
	return nil
}

// New creates a Config by parsing MODES_-prefixed environment variables.
func New() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("MODES", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}
	if err := cfg.ResolveDefaults(); err != nil {
		return nil, err
	}

	log.Info().
		Str("environment", string(cfg.Environment)).
		Str("store_driver", cfg.StoreDriver).
		Str("calendar_provider", cfg.CalendarProvider).
		Int("port", cfg.HTTPPort).
		Int("tick_seconds", cfg.TickSeconds).
		Str("auto_reset_time", cfg.AutoResetTime).
		Bool("link_enabled", cfg.LinkEnabled).
		Int("enabled_modes", len(cfg.EnabledModes)).
		Msg("Configuration loaded")

	return &cfg, nil
}

// NewForTesting creates a config for unit tests: memory store, fast ticks,
// no auto reset, link enabled for bris -> no_tachnun.
func NewForTesting() *Config {
	cfg := &Config{
		Environment:               EnvTesting,
		HTTPPort:                  8080,
		StoreDriver:               "memory",
		CalendarProvider:          "store",
		TickSeconds:               1,
		RetentionHours:            24,
		LinkEnabled:               true,
		LinkSourceMode:            "bris",
		LinkTargetMode:            "no_tachnun",
		EnabledModes:              model.AllModeKeys(),
		DefaultDurations:          map[string]int{},
		HealthIntervalSeconds:     30,
		HealthProbeTimeoutSeconds: 5,
	}
	return cfg
}

// IsTesting returns true if the environment is set to testing
func (c *Config) IsTesting() bool { return c.Environment == EnvTesting }

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool { return c.Environment == EnvProduction }

// GetHTTPAddr returns the HTTP server address
func (c *Config) GetHTTPAddr() string { return fmt.Sprintf(":%d", c.HTTPPort) }

// TickInterval returns the engine tick period.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickSeconds) * time.Second
}

// Retention returns the archived-event retention window.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

// Location returns the configured timezone, defaulting to the local zone.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// ParseClock parses an HH:MM wall-clock string.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM")
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour %q", parts[0])
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute %q", parts[1])
	}
	return hour, minute, nil
}
