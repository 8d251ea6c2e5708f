package config

import "time"

// Config represents the main configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Detection DetectionConfig `yaml:"detection" mapstructure:"detection"`
	Access    AccessConfig    `yaml:"access" mapstructure:"access"`
	Audit     AuditConfig     `yaml:"audit" mapstructure:"audit"`
	Usage     UsageConfig     `yaml:"usage" mapstructure:"usage"`
	RateLimit RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	WebSocket WebSocketConfig `yaml:"websocket" mapstructure:"websocket"`
	Metrics   MetricsConfig   `yaml:"metrics" mapstructure:"metrics"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// DetectionConfig selects detectors and the masking policy
type DetectionConfig struct {
	Detectors []string `yaml:"detectors" mapstructure:"detectors"`
	AutoMask  bool     `yaml:"auto_mask" mapstructure:"auto_mask"`
}

// AccessConfig points at an optional role/tool table that replaces the built-in one
type AccessConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// AuditConfig contains audit log storage and retention configuration
type AuditConfig struct {
	Backend       string `yaml:"backend" mapstructure:"backend"` // memory, sqlite or postgres
	DSN           string `yaml:"dsn" mapstructure:"dsn"`
	MaxOpenConns  int    `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	PreviewLength int    `yaml:"preview_length" mapstructure:"preview_length"`
	RetentionDays int    `yaml:"retention_days" mapstructure:"retention_days"`
	MaxRecords    int    `yaml:"max_records" mapstructure:"max_records"`
	PruneSchedule string `yaml:"prune_schedule" mapstructure:"prune_schedule"`
}

// UsageConfig contains per-user usage counter configuration
type UsageConfig struct {
	Backend   string        `yaml:"backend" mapstructure:"backend"` // memory or redis
	RedisURL  string        `yaml:"redis_url" mapstructure:"redis_url"`
	KeyPrefix string        `yaml:"key_prefix" mapstructure:"key_prefix"`
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// RateLimitConfig contains per-user rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled" mapstructure:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_min" mapstructure:"requests_per_min"`
	Burst          int  `yaml:"burst" mapstructure:"burst"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
	File   struct {
		Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
		Path    string `yaml:"path" mapstructure:"path"`
	} `yaml:"file" mapstructure:"file"`
}

// WebSocketConfig contains the live dashboard feed configuration
type WebSocketConfig struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	Path           string        `yaml:"path" mapstructure:"path"`
	Username       string        `yaml:"username" mapstructure:"username"`
	Password       string        `yaml:"password" mapstructure:"password"`
	MaxConnections int           `yaml:"max_connections" mapstructure:"max_connections"`
	PingInterval   time.Duration `yaml:"ping_interval" mapstructure:"ping_interval"`
	PongTimeout    time.Duration `yaml:"pong_timeout" mapstructure:"pong_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	MaxMessageSize int64         `yaml:"max_message_size" mapstructure:"max_message_size"`
	AllowedOrigins []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	Events         struct {
		BroadcastDetections  bool `yaml:"broadcast_detections" mapstructure:"broadcast_detections"`
		BroadcastDecisions   bool `yaml:"broadcast_decisions" mapstructure:"broadcast_decisions"`
		BroadcastSystem      bool `yaml:"broadcast_system" mapstructure:"broadcast_system"`
		BroadcastConnections bool `yaml:"broadcast_connections" mapstructure:"broadcast_connections"`
	} `yaml:"events" mapstructure:"events"`
}

// MetricsConfig contains Prometheus exposition configuration
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
}

// GetDefaults returns a configuration with sensible defaults
func GetDefaults() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Detection: DetectionConfig{
			Detectors: []string{"all"},
			AutoMask:  true,
		},
		Audit: AuditConfig{
			Backend:       "memory",
			MaxOpenConns:  10,
			PreviewLength: 200,
			RetentionDays: 90,
			MaxRecords:    100000,
			PruneSchedule: "0 3 * * *", // daily at 03:00
		},
		Usage: UsageConfig{
			Backend:   "memory",
			RedisURL:  "redis://localhost:6379/0",
			KeyPrefix: "aishield:usage:",
			Timeout:   2 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			RequestsPerMin: 60,
			Burst:          10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		WebSocket: WebSocketConfig{
			Enabled:        true,
			Path:           "/ws",
			Username:       "admin",
			Password:       "changeme",
			MaxConnections: 100,
			PingInterval:   54 * time.Second,
			PongTimeout:    60 * time.Second,
			WriteTimeout:   10 * time.Second,
			MaxMessageSize: 512,
			AllowedOrigins: []string{"*"},
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "aishield",
		},
	}

	cfg.Logging.File.Path = "logs/aishield.log"
	cfg.WebSocket.Events.BroadcastDetections = true
	cfg.WebSocket.Events.BroadcastDecisions = true
	cfg.WebSocket.Events.BroadcastSystem = true
	cfg.WebSocket.Events.BroadcastConnections = true

	return cfg
}
