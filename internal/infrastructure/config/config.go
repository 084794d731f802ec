package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application-manager configuration.
type Config struct {
	Server    ServerConfig
	Catalog   CatalogConfig
	Lifecycle LifecycleConfig
	Native    NativeConfig
	Memory    MemoryConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8300"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// CatalogConfig holds application catalog configuration.
type CatalogConfig struct {
	Dir string `envconfig:"CATALOG_DIR" default:""`
}

// LifecycleConfig holds orchestrator timing configuration.
type LifecycleConfig struct {
	// LoadingAppTimeout expires stale loading-app entries.
	LoadingAppTimeout time.Duration `envconfig:"LOADING_APP_TIMEOUT" default:"90s"`
	// ReplyTimeout bounds how long an API caller waits for a terminal reply.
	ReplyTimeout time.Duration `envconfig:"REPLY_TIMEOUT" default:"60s"`
}

// NativeConfig holds native runtime supervision configuration.
type NativeConfig struct {
	// RegistrationTimeout is the grace window for a spawned process to
	// register itself over the bus.
	RegistrationTimeout time.Duration `envconfig:"REGISTRATION_TIMEOUT" default:"20s"`
	// KillTimeout is armed after a graceful close notification.
	KillTimeout time.Duration `envconfig:"KILL_TIMEOUT" default:"10s"`
	// MemoryReclaimKillTimeout replaces KillTimeout for memory-reclaim closes.
	MemoryReclaimKillTimeout time.Duration `envconfig:"MEMORY_RECLAIM_KILL_TIMEOUT" default:"3s"`
	// KillGrace is the SIGTERM to SIGKILL escalation window.
	KillGrace time.Duration `envconfig:"KILL_GRACE" default:"2s"`
	// JailerPath wraps untrusted app processes when non-empty.
	JailerPath string `envconfig:"JAILER_PATH" default:""`
	// NoJailApps bypass the jailer regardless of trust level.
	NoJailApps []string `envconfig:"NO_JAIL_APPS" default:""`
}

// MemoryConfig holds memory admission configuration.
type MemoryConfig struct {
	// MinFreeMB rejects foreground launches when available memory drops below.
	// Zero disables the check.
	MinFreeMB uint64 `envconfig:"MIN_FREE_MB" default:"0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8300",
			Host: "0.0.0.0",
		},
		Lifecycle: LifecycleConfig{
			LoadingAppTimeout: 90 * time.Second,
			ReplyTimeout:      60 * time.Second,
		},
		Native: NativeConfig{
			RegistrationTimeout:      20 * time.Second,
			KillTimeout:              10 * time.Second,
			MemoryReclaimKillTimeout: 3 * time.Second,
			KillGrace:                2 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}
