// Package metrics exposes Prometheus metrics for the attendance engine.
// A nil *Manager is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "attendance"

// Manager owns the engine's collectors and the registry they live in.
type Manager struct {
	namespace string
	registry  *prometheus.Registry

	clockEvents         *prometheus.CounterVec
	aggregationDuration *prometheus.HistogramVec
	cacheLookups        *prometheus.CounterVec
	reportsBuilt        *prometheus.CounterVec
	storeRetries        prometheus.Counter
	staleOpenRecords    prometheus.Gauge
}

// Option configures a Manager.
type Option func(*Manager)

// WithNamespace overrides the metric namespace.
func WithNamespace(ns string) Option {
	return func(m *Manager) {
		if ns != "" {
			m.namespace = ns
		}
	}
}

// WithRegistry registers collectors on reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(m *Manager) {
		if reg != nil {
			m.registry = reg
		}
	}
}

// NewManager creates a Manager with its own registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: defaultNamespace,
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	f := promauto.With(m.registry)

	m.clockEvents = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "clock_events_total",
		Help:      "Clock-in/clock-out attempts by action and result.",
	}, []string{"action", "result"})

	m.aggregationDuration = f.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "aggregation_duration_seconds",
		Help:      "Latency of summary and report computations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})

	m.cacheLookups = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "summary_cache_lookups_total",
		Help:      "Summary cache lookups by result.",
	}, []string{"result"})

	m.reportsBuilt = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "reports_built_total",
		Help:      "Reports built by type.",
	}, []string{"type"})

	m.storeRetries = f.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "store_retries_total",
		Help:      "Record store calls retried after a transient failure.",
	})

	m.staleOpenRecords = f.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "stale_open_records",
		Help:      "Open records older than the configured threshold at the last check.",
	})

	return m
}

// Registry returns the registry collectors are registered on.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Manager) ClockEvent(action, result string) {
	if m == nil {
		return
	}
	m.clockEvents.WithLabelValues(action, result).Inc()
}

func (m *Manager) ObserveAggregation(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.aggregationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *Manager) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

func (m *Manager) ReportBuilt(reportType string) {
	if m == nil {
		return
	}
	m.reportsBuilt.WithLabelValues(reportType).Inc()
}

func (m *Manager) StoreRetry() {
	if m == nil {
		return
	}
	m.storeRetries.Inc()
}

func (m *Manager) SetStaleOpenRecords(n int) {
	if m == nil {
		return
	}
	m.staleOpenRecords.Set(float64(n))
}
