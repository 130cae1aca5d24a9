package config

import (
	"fmt"
	"time"
)

// Config holds runtime configuration for the botweaver agent.
type Config struct {
	AppEnv string `mapstructure:"-"`

	Bot       BotConfig       `mapstructure:"bot" validate:"required"`
	Graph     GraphConfig     `mapstructure:"graph" validate:"required"`
	Engine    EngineConfig    `mapstructure:"engine"`
	Redis     RedisConfig     `mapstructure:"redis" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Broadcast BroadcastConfig `mapstructure:"broadcast"`
}

// BotConfig configures the Telegram transport.
type BotConfig struct {
	Token       string        `mapstructure:"token" validate:"required"`
	Mode        string        `mapstructure:"mode" validate:"oneof=polling webhook"`
	Timeout     time.Duration `mapstructure:"timeout"`
	WebhookPort string        `mapstructure:"webhook_port"`
}

// GraphConfig locates the compiled conversation graph.
type GraphConfig struct {
	Path  string `mapstructure:"path" validate:"required"`
	Watch bool   `mapstructure:"watch"`
}

// EngineConfig tunes the rendering engine.
type EngineConfig struct {
	MaxAutoHops    int    `mapstructure:"max_auto_hops" validate:"gte=0"`
	SessionBackend string `mapstructure:"session_backend" validate:"omitempty,oneof=memory redis"`
}

// RedisConfig configures the Redis connection shared by the variable store,
// rate limiter and dedupe.
type RedisConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db"`
	PoolSize        int           `mapstructure:"pool_size"`
	MinIdleConns    int           `mapstructure:"min_idle_conns"`
	PoolTimeout     time.Duration `mapstructure:"pool_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	MinRetryBackoff time.Duration `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff time.Duration `mapstructure:"max_retry_backoff"`
}

// DatabaseConfig configures the Postgres connection backing the user-id
// ledger. Optional: without it the ledger is disabled.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

// Enabled reports whether a ledger database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != "" && d.Name != ""
}

// DSN returns the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, sslMode,
	)
}

// ServerConfig configures the health/metrics HTTP server.
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig configures the structured logger.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	File  string `mapstructure:"file"`
}

// SentryConfig configures error reporting.
type SentryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn" validate:"required_if=Enabled true"`
}

// RateLimitConfig configures the per-user sliding window.
type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   int           `mapstructure:"limit" validate:"required_if=Enabled true,omitempty,gt=0"`
	Window  time.Duration `mapstructure:"window" validate:"required_if=Enabled true"`
	Backend string        `mapstructure:"backend" validate:"omitempty,oneof=memory redis"`
}

// BroadcastConfig configures the asynq-backed bulk messaging worker.
type BroadcastConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	Concurrency int  `mapstructure:"concurrency" validate:"omitempty,gt=0"`
}
