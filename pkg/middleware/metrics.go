package middleware

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vango-dev/chunk/pkg/chunk"
)

// MetricsConfig configures the Prometheus metrics interceptor.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "chunk").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for call duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics interceptor.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "chunk",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// metrics holds the collectors registered on one registry.
type metrics struct {
	actionsTotal   *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec
	actionErrors   *prometheus.CounterVec
	inFlight       *prometheus.GaugeVec
}

// Collectors are registered once per registry; registering twice panics.
var (
	registeredMetrics   = make(map[prometheus.Registerer]*metrics)
	registeredMetricsMu sync.Mutex
)

func initMetrics(config MetricsConfig) *metrics {
	factory := promauto.With(config.Registry)

	return &metrics{
		actionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "actions_total",
			Help:        "Total number of store actions called",
			ConstLabels: config.ConstLabels,
		}, []string{"chunk", "action", "status"}),

		actionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "action_duration_seconds",
			Help:        "Store action duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"chunk", "action"}),

		actionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "action_errors_total",
			Help:        "Total number of store actions that returned an error",
			ConstLabels: config.ConstLabels,
		}, []string{"chunk", "action", "error_type"}),

		inFlight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "actions_in_flight",
			Help:        "Number of store actions currently running",
			ConstLabels: config.ConstLabels,
		}, []string{"chunk", "action"}),
	}
}

func metricsFor(config MetricsConfig) *metrics {
	registeredMetricsMu.Lock()
	defer registeredMetricsMu.Unlock()

	m, ok := registeredMetrics[config.Registry]
	if !ok {
		m = initMetrics(config)
		registeredMetrics[config.Registry] = m
	}
	return m
}

// Metrics creates an interceptor that collects Prometheus metrics for
// every action call. Only the first call per registry decides the
// namespace and buckets; later calls share its collectors.
//
// Example:
//
//	reg := prometheus.NewRegistry()
//	chunk.AddInterceptor(middleware.Metrics(
//	    middleware.WithNamespace("myapp"),
//	    middleware.WithRegistry(reg),
//	))
func Metrics(opts ...MetricsOption) chunk.Interceptor {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	m := metricsFor(config)

	return func(ac *chunk.ActionContext, next func() (any, error)) (any, error) {
		inFlight := m.inFlight.WithLabelValues(ac.Chunk, ac.Action)
		inFlight.Inc()
		defer inFlight.Dec()

		start := time.Now()
		result, err := next()
		m.actionDuration.WithLabelValues(ac.Chunk, ac.Action).Observe(time.Since(start).Seconds())

		status := "success"
		if err != nil {
			status = "error"
			m.actionErrors.WithLabelValues(ac.Chunk, ac.Action, categorizeError(err)).Inc()
		}
		m.actionsTotal.WithLabelValues(ac.Chunk, ac.Action, status).Inc()

		return result, err
	}
}

// categorizeError returns a category for the error type.
// This prevents high-cardinality labels from error messages.
func categorizeError(err error) string {
	var panicErr *chunk.PanicError
	var guardErr *GuardError
	switch {
	case errors.As(err, &panicErr):
		return "panic"
	case errors.As(err, &guardErr):
		return "guard"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "timeout"):
		return "timeout"
	case strings.Contains(msg, "not found"):
		return "not_found"
	case strings.Contains(msg, "unauthorized"):
		return "unauthorized"
	case strings.Contains(msg, "validation"):
		return "validation"
	default:
		return "internal"
	}
}
