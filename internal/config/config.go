package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	config := GetDefaults()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/ai-shield/")
	viper.AddConfigPath("$HOME/.ai-shield/")

	// Environment variable overrides, e.g. SHIELD_AUDIT_BACKEND=sqlite
	viper.SetEnvPrefix("SHIELD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	registerDefaults(config)

	if configPath != "" {
		viper.SetConfigFile(configPath)
	}

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found is not an error - we'll use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// registerDefaults makes every scalar key known to viper so AutomaticEnv can override it
// even when the config file does not mention it.
func registerDefaults(c *Config) {
	defaults := map[string]interface{}{
		"server.host":             c.Server.Host,
		"server.port":             c.Server.Port,
		"server.read_timeout":     c.Server.ReadTimeout,
		"server.write_timeout":    c.Server.WriteTimeout,
		"server.idle_timeout":     c.Server.IdleTimeout,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"server.max_body_bytes":   c.Server.MaxBodyBytes,

		"detection.detectors": c.Detection.Detectors,
		"detection.auto_mask": c.Detection.AutoMask,

		"access.file": c.Access.File,

		"audit.backend":        c.Audit.Backend,
		"audit.dsn":            c.Audit.DSN,
		"audit.max_open_conns": c.Audit.MaxOpenConns,
		"audit.preview_length": c.Audit.PreviewLength,
		"audit.retention_days": c.Audit.RetentionDays,
		"audit.max_records":    c.Audit.MaxRecords,
		"audit.prune_schedule": c.Audit.PruneSchedule,

		"usage.backend":    c.Usage.Backend,
		"usage.redis_url":  c.Usage.RedisURL,
		"usage.key_prefix": c.Usage.KeyPrefix,
		"usage.timeout":    c.Usage.Timeout,

		"rate_limit.enabled":          c.RateLimit.Enabled,
		"rate_limit.requests_per_min": c.RateLimit.RequestsPerMin,
		"rate_limit.burst":            c.RateLimit.Burst,

		"logging.level":        c.Logging.Level,
		"logging.format":       c.Logging.Format,
		"logging.file.enabled": c.Logging.File.Enabled,
		"logging.file.path":    c.Logging.File.Path,

		"websocket.enabled":  c.WebSocket.Enabled,
		"websocket.username": c.WebSocket.Username,
		"websocket.password": c.WebSocket.Password,

		"metrics.enabled":   c.Metrics.Enabled,
		"metrics.namespace": c.Metrics.Namespace,
	}

	for key, value := range defaults {
		viper.SetDefault(key, value)
	}
}

// validateConfig validates the loaded configuration
func validateConfig(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if len(config.Detection.Detectors) == 0 {
		return fmt.Errorf("detection.detectors must name at least one detector or \"all\"")
	}

	switch config.Audit.Backend {
	case "memory":
	case "sqlite", "postgres":
		if config.Audit.DSN == "" {
			return fmt.Errorf("audit backend %s requires a dsn", config.Audit.Backend)
		}
	default:
		return fmt.Errorf("invalid audit backend: %s (must be memory, sqlite, or postgres)", config.Audit.Backend)
	}

	if config.Audit.PreviewLength <= 0 {
		return fmt.Errorf("invalid audit preview length: %d", config.Audit.PreviewLength)
	}

	if config.Audit.RetentionDays < 0 || config.Audit.MaxRecords < 0 {
		return fmt.Errorf("audit retention_days and max_records must not be negative")
	}

	if config.Usage.Backend != "memory" && config.Usage.Backend != "redis" {
		return fmt.Errorf("invalid usage backend: %s (must be memory or redis)", config.Usage.Backend)
	}

	if config.RateLimit.Enabled && (config.RateLimit.RequestsPerMin <= 0 || config.RateLimit.Burst <= 0) {
		return fmt.Errorf("rate limit requires positive requests_per_min and burst")
	}

	if config.Logging.Level != "debug" && config.Logging.Level != "info" && config.Logging.Level != "warn" && config.Logging.Level != "error" {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", config.Logging.Level)
	}

	if config.Logging.Format != "json" && config.Logging.Format != "console" {
		return fmt.Errorf("invalid log format: %s (must be json or console)", config.Logging.Format)
	}

	return nil
}

// Watch starts watching the configuration file for changes. Invalid updates are reported
// to onError (when set) and never reach callback.
func Watch(callback func(*Config), onError func(error)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		newConfig := GetDefaults()
		if err := viper.Unmarshal(newConfig); err != nil {
			if onError != nil {
				onError(fmt.Errorf("failed to reload %s: %w", e.Name, err))
			}
			return
		}

		if err := validateConfig(newConfig); err != nil {
			if onError != nil {
				onError(fmt.Errorf("rejected reload of %s: %w", e.Name, err))
			}
			return
		}

		callback(newConfig)
	})
	viper.WatchConfig()
}

// FileUsed returns the path of the loaded config file, or "" when only defaults and
// environment variables were used
func FileUsed() string {
	return viper.ConfigFileUsed()
}
