package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/raaihank/ai-shield/internal/access"
	"github.com/raaihank/ai-shield/internal/audit"
	"github.com/raaihank/ai-shield/internal/config"
	"github.com/raaihank/ai-shield/internal/detection"
	"github.com/raaihank/ai-shield/internal/logger"
	"github.com/raaihank/ai-shield/internal/metrics"
	"github.com/raaihank/ai-shield/internal/security"
	"github.com/raaihank/ai-shield/internal/server"
	"github.com/raaihank/ai-shield/internal/shield"
	"github.com/raaihank/ai-shield/internal/usage"
	"github.com/raaihank/ai-shield/internal/websocket"
)

const (
	statusInterval         = 30 * time.Second
	limiterCleanupInterval = 10 * time.Minute
)

var serveFlags struct {
	port int
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the AI Shield HTTP API",
	Long: `Start the HTTP API that evaluates requests, records the audit log and streams
decisions to dashboard clients over WebSocket.

Examples:
  # Start with default config
  aishield serve

  # Start with a config file and a different port
  aishield serve --config /etc/ai-shield/config.yaml --port 9090`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVarP(&serveFlags.port, "port", "p", 0, "override listen port")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveFlags.port != 0 {
		cfg.Server.Port = serveFlags.port
	}

	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("Starting AI Shield",
		zap.String("version", Version),
		zap.String("commit", GitCommit),
		zap.String("build_date", BuildDate),
		zap.Int("port", cfg.Server.Port),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, err := detection.New(cfg.Detection, log)
	if err != nil {
		return err
	}

	table, err := access.Load(cfg.Access.File)
	if err != nil {
		return err
	}

	store, err := openAuditStore(ctx, cfg.Audit, log.Logger)
	if err != nil {
		return fmt.Errorf("failed to open audit store: %w", err)
	}
	defer store.Close()

	counter, err := openUsageCounter(cfg.Usage, log.Logger)
	if err != nil {
		return fmt.Errorf("failed to open usage counter: %w", err)
	}
	defer counter.Close()

	stopCleanup := make(chan struct{})
	defer close(stopCleanup)
	limiter := security.NewRateLimiter(cfg.RateLimit)
	limiter.StartCleanupRoutine(limiterCleanupInterval, stopCleanup)

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(cfg.Metrics, prometheus.NewRegistry())
	}

	deps := shield.Deps{
		Engine:   engine,
		Access:   table,
		Recorder: audit.NewRecorder(store, cfg.Audit.PreviewLength, log.Logger),
		Usage:    counter,
		Limiter:  limiter,
		Metrics:  collector,
		Logger:   log,
		AutoMask: cfg.Detection.AutoMask,
	}

	var hub *websocket.Hub
	if cfg.WebSocket.Enabled {
		hub = websocket.NewHub(websocket.HubConfigFrom(cfg.WebSocket), log.Logger)
		go hub.Run(ctx)
		deps.Events = hub
	}

	svc, err := shield.New(deps)
	if err != nil {
		return err
	}

	scheduler := audit.NewScheduler(audit.NewPruner(store, retentionConfig(cfg.Audit), log.Logger))
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start audit retention: %w", err)
	}
	defer scheduler.Stop()

	if config.FileUsed() != "" {
		watchConfig(svc, log)
	}

	srv := server.New(cfg, svc, server.Options{Hub: hub, Metrics: collector, Version: Version}, log)
	srv.StartStatusBroadcast(ctx, statusInterval)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server error", zap.Error(err))
			return err
		}
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancelShutdown()

		if err := srv.Stop(shutdownCtx); err != nil {
			log.Error("Failed to shutdown server gracefully", zap.Error(err))
			return err
		}

		log.Info("Server shutdown complete")
	}

	return nil
}

func openUsageCounter(cfg config.UsageConfig, log *zap.Logger) (usage.Counter, error) {
	if cfg.Backend != "redis" {
		return usage.NewMemoryCounter(), nil
	}
	counter, err := usage.NewRedisCounter(&usage.Config{
		RedisURL:  cfg.RedisURL,
		KeyPrefix: cfg.KeyPrefix,
		Timeout:   cfg.Timeout,
	}, log)
	if err != nil {
		return nil, err
	}
	return counter, nil
}

// watchConfig applies the settings that can change without a restart: the auto-mask
// switch and the access table
func watchConfig(svc *shield.Service, log *logger.Logger) {
	config.Watch(func(newCfg *config.Config) {
		svc.SetAutoMask(newCfg.Detection.AutoMask)

		table, err := access.Load(newCfg.Access.File)
		if err != nil {
			log.Error("Keeping previous access table", zap.Error(err))
			return
		}
		svc.SetAccess(table)
	}, func(err error) {
		log.Warn("Ignoring configuration change", zap.Error(err))
	})
}
