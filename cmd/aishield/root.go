package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raaihank/ai-shield/internal/audit"
	"github.com/raaihank/ai-shield/internal/config"
	"github.com/raaihank/ai-shield/internal/logger"
)

var (
	// Global flags
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "aishield",
	Short: "AI Shield - sensitive data guard for AI tools",
	Long: `AI Shield inspects text before it reaches an AI tool. It detects personal,
financial, health and credential data, classifies the text into a sensitivity tier and
compares it with the ceiling the user's role has for the tool. The result is to allow,
mask or block the request, and every decision is written to an audit log.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}

// loadConfig reads configuration and applies global flag overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*logger.Logger, error) {
	loggerConfig := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	}
	if cfg.Logging.File.Enabled {
		loggerConfig.File = &logger.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		}
	}

	log, err := logger.New(loggerConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return log, nil
}

// openAuditStore opens the configured audit backend
func openAuditStore(ctx context.Context, cfg config.AuditConfig, log *zap.Logger) (audit.Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return audit.NewMemoryStore(), nil
	case "sqlite", "postgres":
		store, err := audit.NewSQLStore(ctx, audit.SQLConfig{
			Driver:       cfg.Backend,
			DSN:          cfg.DSN,
			MaxOpenConns: cfg.MaxOpenConns,
		}, log)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown audit backend: %s", cfg.Backend)
	}
}

func retentionConfig(cfg config.AuditConfig) audit.RetentionConfig {
	return audit.RetentionConfig{
		RetentionDays: cfg.RetentionDays,
		MaxRecords:    cfg.MaxRecords,
		PruneSchedule: cfg.PruneSchedule,
	}
}
