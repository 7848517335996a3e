// Package config loads the service configuration from YAML, with defaults
// for every field and hot reload support for values that are safe to swap at
// runtime.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied when the corresponding field is absent.
const (
	DefaultPort             = 8080
	DefaultShutdownTimeout  = 10 * time.Second
	DefaultWriteTimeout     = 10 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultReadLimit        = 8192
	DefaultRetention        = 7 * 24 * time.Hour
	DefaultPruneSchedule    = "@hourly"
	DefaultMetricsNamespace = "wsbridge"
)

// Config is the full service configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Socket  SocketConfig  `yaml:"socket"`
	Audit   AuditConfig   `yaml:"audit"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	// Port is the HTTP port the server listens on (default 8080).
	Port int `yaml:"port"`

	// ShutdownTimeout bounds graceful shutdown on SIGINT/SIGTERM.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// SocketConfig tunes WebSocket connections.
type SocketConfig struct {
	// ReadLimit is the maximum message size in bytes accepted from a peer.
	ReadLimit int64 `yaml:"read_limit"`

	// WriteTimeout is the deadline for a single write to a peer.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// HandshakeTimeout bounds the upgrade handshake.
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`

	// AllowedOrigins is the Origin header allowlist. Empty allows all
	// origins. This list is hot-reloadable: edits to the config file take
	// effect on live traffic without a restart.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// AuditConfig controls the connection audit trail.
type AuditConfig struct {
	// Enabled turns the audit trail on (default off).
	Enabled bool `yaml:"enabled"`

	// DBPath is the SQLite database file path.
	DBPath string `yaml:"db_path"`

	// Retention is how long closed-connection records are kept.
	Retention time.Duration `yaml:"retention"`

	// PruneSchedule is the cron spec for the retention sweep (default
	// "@hourly").
	PruneSchedule string `yaml:"prune_schedule"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled turns the /metrics endpoint on (default off).
	Enabled bool `yaml:"enabled"`

	// Namespace prefixes every metric name (default "wsbridge").
	Namespace string `yaml:"namespace"`
}

// Default returns a Config with every field at its default.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the YAML file at path, applying defaults for any
// omitted field.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.Socket.ReadLimit == 0 {
		c.Socket.ReadLimit = DefaultReadLimit
	}
	if c.Socket.WriteTimeout == 0 {
		c.Socket.WriteTimeout = DefaultWriteTimeout
	}
	if c.Socket.HandshakeTimeout == 0 {
		c.Socket.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Audit.DBPath == "" {
		c.Audit.DBPath = "data/connections.db"
	}
	if c.Audit.Retention == 0 {
		c.Audit.Retention = DefaultRetention
	}
	if c.Audit.PruneSchedule == "" {
		c.Audit.PruneSchedule = DefaultPruneSchedule
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = DefaultMetricsNamespace
	}
}
