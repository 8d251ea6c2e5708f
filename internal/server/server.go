// Package server exposes the shield over HTTP: the JSON API, Prometheus metrics and
// the dashboard's live WebSocket feed.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/raaihank/ai-shield/internal/config"
	"github.com/raaihank/ai-shield/internal/detection"
	"github.com/raaihank/ai-shield/internal/logger"
	"github.com/raaihank/ai-shield/internal/metrics"
	"github.com/raaihank/ai-shield/internal/shield"
	"github.com/raaihank/ai-shield/internal/web"
	"github.com/raaihank/ai-shield/internal/websocket"
)

// Options carries the optional collaborators of a Server
type Options struct {
	Hub     *websocket.Hub
	Metrics *metrics.Collector
	Version string
}

// Server represents the HTTP API server
type Server struct {
	config   *config.Config
	logger   *logger.Logger
	shield   *shield.Service
	hub      *websocket.Hub
	metrics  *metrics.Collector
	validate *validator.Validate
	router   *mux.Router
	server   *http.Server
	version  string
	started  time.Time
}

// New creates a new server instance
func New(cfg *config.Config, svc *shield.Service, opts Options, log *logger.Logger) *Server {
	if opts.Version == "" {
		opts.Version = "dev"
	}

	s := &Server{
		config:   cfg,
		logger:   log.WithComponent("server"),
		shield:   svc,
		hub:      opts.Hub,
		metrics:  opts.Metrics,
		validate: newValidator(),
		router:   mux.NewRouter(),
		version:  opts.Version,
		started:  time.Now(),
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return s
}

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("sensitivity_level", func(fl validator.FieldLevel) bool {
		_, err := detection.ParseLevel(fl.Field().String())
		return err == nil
	})
	return v
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.recoveryMiddleware)
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)

	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/info", s.handleInfo).Methods(http.MethodGet)

	if s.metrics.Enabled() {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}

	if s.hub != nil && s.config.WebSocket.Enabled {
		path := s.config.WebSocket.Path
		if path == "" {
			path = "/ws"
		}
		s.router.HandleFunc(path, s.hub.HandleWebSocket).Methods(http.MethodGet)

		dashboard, err := web.NewDashboard(path, s.config.WebSocket.Username, s.config.WebSocket.Password)
		if err != nil {
			s.logger.Error("Dashboard disabled", zap.Error(err))
		} else {
			s.router.Handle("/", dashboard).Methods(http.MethodGet)
			s.router.Handle("/dashboard", dashboard).Methods(http.MethodGet)
		}
	}

	api := s.router.PathPrefix("/v1").Subrouter()
	api.HandleFunc("/detect", s.handleDetect).Methods(http.MethodPost)
	api.HandleFunc("/decide", s.handleDecide).Methods(http.MethodPost)
	api.HandleFunc("/evaluate", s.handleEvaluate).Methods(http.MethodPost)
	api.HandleFunc("/activity", s.handleActivity).Methods(http.MethodPost)
	api.HandleFunc("/audit", s.handleAuditQuery).Methods(http.MethodGet)
	api.HandleFunc("/audit/stats", s.handleAuditStats).Methods(http.MethodGet)
	api.HandleFunc("/audit/export", s.handleAuditExport).Methods(http.MethodGet)
	api.HandleFunc("/users/{id}/usage", s.handleUsage).Methods(http.MethodGet)
	api.HandleFunc("/access/{role}", s.handleAccess).Methods(http.MethodGet)
}

// Handler returns the root handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("Starting AI Shield server",
		zap.String("addr", s.server.Addr),
		zap.Strings("detectors", s.shield.Engine().EnabledDetectors()),
		zap.Bool("auto_mask", s.shield.AutoMask()),
		zap.String("audit_backend", s.config.Audit.Backend),
		zap.String("usage_backend", s.config.Usage.Backend),
	)

	return s.server.ListenAndServe()
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping AI Shield server")
	return s.server.Shutdown(ctx)
}

// StartStatusBroadcast pushes a system status event to the live feed every interval
func (s *Server) StartStatusBroadcast(ctx context.Context, interval time.Duration) {
	if s.hub == nil || interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.hub.BroadcastEvent(websocket.Event{
					Type:      websocket.EventTypeSystemStatus,
					Timestamp: time.Now(),
					Data:      s.systemStatus(),
				})
			}
		}
	}()
}

func (s *Server) systemStatus() websocket.SystemStatusEvent {
	counters := s.shield.Counters()
	clients := 0
	if s.hub != nil {
		clients = s.hub.ClientCount()
	}
	return websocket.SystemStatusEvent{
		Status:           "healthy",
		Uptime:           time.Since(s.started).Round(time.Second).String(),
		TotalEvaluations: counters.Evaluations,
		TotalBlocked:     counters.Blocked,
		EnabledDetectors: s.shield.Engine().EnabledDetectors(),
		ConnectedClients: clients,
	}
}
