/*
config.go - Service configuration

PURPOSE:
  Typed configuration for the benefit engine. Values come from defaults,
  an optional YAML file, BENEFITS_* environment variables and CLI flags,
  in that order of precedence (see loader.go).

SECTIONS:
  server:    HTTP listen port, timeouts, CORS origins
  database:  SQLite path (":memory:" for ephemeral runs)
  logging:   level and format
  issuance:  voucher validity window, issuer tag, per-request parallelism
  notify:    external delivery endpoint for voucher e-mails
  events:    optional Redis relay for domain events
  scheduler: voucher expiry sweep
  metrics:   Prometheus endpoint

SEE ALSO:
  - loader.go: Viper wiring
  - cmd/server/main.go: flag bindings
*/
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Issuance  IssuanceConfig  `mapstructure:"issuance"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Events    EventsConfig    `mapstructure:"events"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type IssuanceConfig struct {
	// ValidityDays is added to the issuance date to compute the expiry date.
	ValidityDays int `mapstructure:"validity_days"`
	// Issuer is the source tag written into every scannable payload.
	Issuer string `mapstructure:"issuer"`
	// Concurrency bounds how many selected benefits are processed at once.
	// 1 keeps the pipeline strictly sequential.
	Concurrency int `mapstructure:"concurrency"`
}

type NotifyConfig struct {
	// Endpoint is the delivery service URL. Empty disables e-mail delivery,
	// which the pipeline then reports as "not notified".
	Endpoint   string        `mapstructure:"endpoint"`
	APIKey     string        `mapstructure:"api_key"`
	SenderName string        `mapstructure:"sender_name"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type EventsConfig struct {
	RedisAddr    string `mapstructure:"redis_addr"`
	RedisChannel string `mapstructure:"redis_channel"`
}

type SchedulerConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	ExpiryInterval time.Duration `mapstructure:"expiry_interval"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// DefaultConfig returns the configuration used when nothing else is set.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			AllowedOrigins:  []string{"http://localhost:5173", "http://localhost:8080"},
		},
		Database: DatabaseConfig{Path: "benefits.db"},
		Logging:  LoggingConfig{Level: "info", Format: "console"},
		Issuance: IssuanceConfig{
			ValidityDays: 30,
			Issuer:       "benefits-portal",
			Concurrency:  1,
		},
		Notify: NotifyConfig{
			SenderName: "Portal do Colaborador",
			Timeout:    10 * time.Second,
		},
		Events: EventsConfig{RedisChannel: "benefits.events"},
		Scheduler: SchedulerConfig{
			Enabled:        true,
			ExpiryInterval: time.Hour,
		},
		Metrics: MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Issuance.ValidityDays <= 0 {
		errs = append(errs, fmt.Errorf("issuance.validity_days must be positive: %d", c.Issuance.ValidityDays))
	}
	if c.Issuance.Issuer == "" {
		errs = append(errs, errors.New("issuance.issuer is required"))
	}
	if c.Issuance.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("issuance.concurrency must be at least 1: %d", c.Issuance.Concurrency))
	}
	if c.Notify.Timeout <= 0 {
		errs = append(errs, errors.New("notify.timeout must be positive"))
	}
	if c.Scheduler.Enabled && c.Scheduler.ExpiryInterval <= 0 {
		errs = append(errs, errors.New("scheduler.expiry_interval must be positive"))
	}
	return errors.Join(errs...)
}
