package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/raaihank/ai-shield/internal/config"
)

// Collector owns the shield's Prometheus metrics.
//
// Metrics:
//   - <ns>_evaluations_total: decisions by action and sensitivity level
//   - <ns>_evaluation_duration_seconds: detection + decision latency
//   - <ns>_risk_score: distribution of risk scores
//   - <ns>_detections_total: pattern matches by detector type
//   - <ns>_rate_limited_total: requests rejected by the per-user limiter
//   - <ns>_access_denied_total: requests for tools the role may not use
//   - <ns>_store_errors_total: audit and usage persistence failures
//   - <ns>_http_requests_total / <ns>_http_request_duration_seconds
type Collector struct {
	config   config.MetricsConfig
	registry *prometheus.Registry

	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	riskScore          prometheus.Histogram
	detectionsTotal    *prometheus.CounterVec
	rateLimitedTotal   prometheus.Counter
	accessDeniedTotal  *prometheus.CounterVec
	storeErrorsTotal   *prometheus.CounterVec
	httpRequestsTotal  *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

// NewCollector creates and registers all metrics. A nil registry gets a fresh one.
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = "aishield"
	}
	ns := cfg.Namespace

	c := &Collector{
		config:   cfg,
		registry: registry,

		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "evaluations_total",
				Help:      "Total number of policy decisions by action and sensitivity level",
			},
			[]string{"action", "level"},
		),

		evaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "evaluation_duration_seconds",
				Help:      "Time spent detecting and deciding on one request",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 15), // 10µs to ~160ms
			},
		),

		riskScore: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "risk_score",
				Help:      "Distribution of request risk scores",
				Buckets:   prometheus.LinearBuckets(0, 10, 11),
			},
		),

		detectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "detections_total",
				Help:      "Total number of sensitive pattern matches by type",
			},
			[]string{"type"},
		),

		rateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "rate_limited_total",
				Help:      "Total number of requests rejected by the rate limiter",
			},
		),

		accessDeniedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "access_denied_total",
				Help:      "Total number of requests for tools the role may not use",
			},
			[]string{"role", "tool"},
		),

		storeErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "store_errors_total",
				Help:      "Total number of audit or usage persistence failures",
			},
			[]string{"store"},
		),

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by route and status",
			},
			[]string{"method", "route", "status"},
		),

		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	registry.MustRegister(
		c.evaluationsTotal,
		c.evaluationDuration,
		c.riskScore,
		c.detectionsTotal,
		c.rateLimitedTotal,
		c.accessDeniedTotal,
		c.storeErrorsTotal,
		c.httpRequestsTotal,
		c.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// Enabled reports whether recording is switched on
func (c *Collector) Enabled() bool {
	return c != nil && c.config.Enabled
}

// RecordEvaluation records one decision with its risk score and latency
func (c *Collector) RecordEvaluation(action, level string, riskScore int, duration time.Duration) {
	if !c.Enabled() {
		return
	}
	c.evaluationsTotal.WithLabelValues(action, level).Inc()
	c.riskScore.Observe(float64(riskScore))
	c.evaluationDuration.Observe(duration.Seconds())
}

// RecordDetections counts each matched pattern type
func (c *Collector) RecordDetections(types []string) {
	if !c.Enabled() {
		return
	}
	for _, t := range types {
		c.detectionsTotal.WithLabelValues(t).Inc()
	}
}

func (c *Collector) RecordRateLimited() {
	if !c.Enabled() {
		return
	}
	c.rateLimitedTotal.Inc()
}

func (c *Collector) RecordAccessDenied(role, tool string) {
	if !c.Enabled() {
		return
	}
	c.accessDeniedTotal.WithLabelValues(role, tool).Inc()
}

// RecordStoreError counts a failed write; store is "audit" or "usage"
func (c *Collector) RecordStoreError(store string) {
	if !c.Enabled() {
		return
	}
	c.storeErrorsTotal.WithLabelValues(store).Inc()
}

// RecordHTTPRequest records a served request. route is the mux path template.
func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if !c.Enabled() {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Registry exposes the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the exposition handler for /metrics
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(
		c.registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			ErrorHandling:     promhttp.ContinueOnError,
		},
	)
}
