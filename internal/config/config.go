// Package config provides the configuration schema for the mandate
// authority service: the server listener, the persistence DSN, the
// distributed state backend, and the ambient observability toggles.
// Grounded on the teacher's internal/config package (top-level struct
// with mapstructure/yaml tags, SetDefaults/Validate split, viper-backed
// loader), rewritten from an MCP-proxy schema (upstream, HTTP gateway,
// file-based identities) to this service's own deployment concerns.
package config

import "github.com/spf13/viper"

// Config is the top-level configuration for the mandate authority
// service.
type Config struct {
	// Environment is the deployment environment, reused as the default
	// for agents registered without an explicit one.
	Environment string `yaml:"environment" mapstructure:"environment" validate:"required,oneof=development staging production"`

	// DatabaseURL is the DSN for the versioned policy/rule/mandate
	// store. Required: the service refuses to start without durable
	// storage configured.
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url" validate:"required"`

	// AuthSecret seeds mandate ID entropy and authenticates admin
	// bootstrap operations. Not a signing key (spec's Non-goals exclude
	// mandate signing) — at least 32 characters so it carries enough
	// entropy for that role.
	AuthSecret string `yaml:"auth_secret" mapstructure:"auth_secret" validate:"required,min=32"`

	// Server configures the HTTP listener.
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Redis configures the distributed state-manager backend (C10).
	// Optional: when disabled, the in-process memory backend is used,
	// suitable for a single-replica deployment.
	Redis RedisConfig `yaml:"redis" mapstructure:"redis"`

	// Audit configures the async audit sink (C13).
	Audit AuditConfig `yaml:"audit" mapstructure:"audit"`

	// Metrics configures Prometheus metrics collection.
	Metrics MetricsConfig `yaml:"metrics" mapstructure:"metrics"`

	// Tracing configures optional OpenTelemetry tracing.
	Tracing TracingConfig `yaml:"tracing" mapstructure:"tracing"`

	// SeedFile, if set, points at a YAML file of agents/policies/rules
	// loaded at startup by the seed CLI command.
	SeedFile string `yaml:"seed_file" mapstructure:"seed_file"`

	// DevMode relaxes startup requirements for local development (see
	// SetDevDefaults).
	DevMode bool `yaml:"dev_mode" mapstructure:"dev_mode"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	// HTTPAddr is the address to listen on (e.g. "127.0.0.1:8080").
	// Defaults to "127.0.0.1:8080" if empty.
	HTTPAddr string `yaml:"http_addr" mapstructure:"http_addr" validate:"omitempty,hostname_port"`

	// LogLevel sets the minimum log level: debug, info, warn, error.
	// Defaults to "info". DevMode=true overrides to "debug".
	LogLevel string `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn warning error"`
}

// RedisConfig configures the distributed state-manager backend.
type RedisConfig struct {
	// Enabled selects the redisstate.Manager backend over the
	// in-process memory backend.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Addr is the Redis server address (e.g. "localhost:6379").
	// Required when Enabled is true.
	Addr string `yaml:"addr" mapstructure:"addr" validate:"required_if=Enabled true"`

	// DB selects the Redis logical database index.
	DB int `yaml:"db" mapstructure:"db"`
}

// AuditConfig configures the async audit sink's batching behavior.
type AuditConfig struct {
	// ChannelSize is the buffer size for the audit channel. Defaults to
	// 1000.
	ChannelSize int `yaml:"channel_size" mapstructure:"channel_size" validate:"omitempty,min=1"`

	// BatchSize is the number of records batched before a store write.
	// Defaults to 100.
	BatchSize int `yaml:"batch_size" mapstructure:"batch_size" validate:"omitempty,min=1"`

	// FlushInterval is how often to flush pending records (e.g. "1s").
	// Defaults to "1s".
	FlushInterval string `yaml:"flush_interval" mapstructure:"flush_interval" validate:"omitempty"`

	// SendTimeout bounds how long Record blocks when the channel is
	// full before dropping (spec §4.8's "never blocks the caller"
	// guarantee — this is the bound on that non-blocking promise).
	// Defaults to "100ms".
	SendTimeout string `yaml:"send_timeout" mapstructure:"send_timeout" validate:"omitempty"`

	// WarningThreshold is the channel-depth percentage (0-100) at which
	// a backpressure warning is logged. Defaults to 80.
	WarningThreshold int `yaml:"warning_threshold" mapstructure:"warning_threshold" validate:"omitempty,min=0,max=100"`

	// Dir is the directory the file-backed audit store rotates entries
	// into. Defaults to "./audit-logs".
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// MetricsConfig configures Prometheus metrics collection.
type MetricsConfig struct {
	// Enabled turns on the /metrics endpoint and request/issuance
	// instrumentation. Defaults to true.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// TracingConfig configures optional OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled turns on span emission around the issuance orchestrator
	// and the two-phase executor. Defaults to false: tracing is never a
	// load-bearing correctness mechanism, so it stays opt-in.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// ServiceName is the resource attribute reported to the exporter.
	ServiceName string `yaml:"service_name" mapstructure:"service_name"`
}

// SetDevDefaults applies permissive defaults for local development,
// applied BEFORE validation so required fields are satisfied without a
// hand-written config file.
func (c *Config) SetDevDefaults() {
	if !c.DevMode {
		return
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = "file:mandate-authority-dev.db"
	}
	if c.AuthSecret == "" {
		c.AuthSecret = "dev-only-secret-do-not-use-in-production!!"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	c.Server.LogLevel = "debug"
}

// SetDefaults applies sensible default values to the configuration.
func (c *Config) SetDefaults() {
	if c.Server.HTTPAddr == "" {
		c.Server.HTTPAddr = "127.0.0.1:8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}

	if c.Audit.ChannelSize == 0 {
		c.Audit.ChannelSize = 1000
	}
	if c.Audit.BatchSize == 0 {
		c.Audit.BatchSize = 100
	}
	if c.Audit.FlushInterval == "" {
		c.Audit.FlushInterval = "1s"
	}
	if c.Audit.SendTimeout == "" {
		c.Audit.SendTimeout = "100ms"
	}
	if c.Audit.WarningThreshold == 0 {
		c.Audit.WarningThreshold = 80
	}
	if c.Audit.Dir == "" {
		c.Audit.Dir = "./audit-logs"
	}

	// Metrics default to enabled; only applied when the key truly
	// wasn't set (viper.IsSet distinguishes "unset" from "set false").
	if !viper.IsSet("metrics.enabled") {
		c.Metrics.Enabled = true
	}
}
