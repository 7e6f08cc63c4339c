// Package observability provides metrics and tracing for the tool-calling
// runtime. Providers are constructed explicitly and injected; nothing is
// registered through global state.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig configures the Prometheus metrics provider
type MetricsConfig struct {
	// Namespace is the Prometheus namespace (default: toolgrid)
	Namespace string

	// Subsystem is the Prometheus subsystem
	Subsystem string

	// HistogramBuckets overrides the latency histogram buckets
	HistogramBuckets []float64

	// ConstLabels are added to all metrics
	ConstLabels prometheus.Labels
}

// Metrics records runtime events into a dedicated Prometheus registry
type Metrics struct {
	registry *prometheus.Registry

	toolCalls        *prometheus.CounterVec
	toolDuration     *prometheus.HistogramVec
	transportEvents  *prometheus.CounterVec
	permissionChecks *prometheus.CounterVec
	poolAcquires     *prometheus.CounterVec
	poolConnections  *prometheus.GaugeVec
	violations       *prometheus.CounterVec
}

// NewMetrics creates a metrics provider with its own registry
func NewMetrics(config MetricsConfig) *Metrics {
	if config.Namespace == "" {
		config.Namespace = "toolgrid"
	}
	buckets := config.HistogramBuckets
	if buckets == nil {
		buckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}
	}

	m := &Metrics{registry: prometheus.NewRegistry()}

	m.toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   config.Namespace,
		Subsystem:   config.Subsystem,
		Name:        "tool_calls_total",
		Help:        "Tool executions by tool name and outcome.",
		ConstLabels: config.ConstLabels,
	}, []string{"tool", "outcome"})

	m.toolDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   config.Namespace,
		Subsystem:   config.Subsystem,
		Name:        "tool_call_duration_seconds",
		Help:        "Tool execution latency in seconds.",
		Buckets:     buckets,
		ConstLabels: config.ConstLabels,
	}, []string{"tool"})

	m.transportEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   config.Namespace,
		Subsystem:   config.Subsystem,
		Name:        "transport_events_total",
		Help:        "Transport lifecycle and I/O events by transport kind.",
		ConstLabels: config.ConstLabels,
	}, []string{"transport", "event"})

	m.permissionChecks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   config.Namespace,
		Subsystem:   config.Subsystem,
		Name:        "permission_checks_total",
		Help:        "RBAC permission checks by outcome.",
		ConstLabels: config.ConstLabels,
	}, []string{"outcome"})

	m.poolAcquires = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   config.Namespace,
		Subsystem:   config.Subsystem,
		Name:        "pool_acquires_total",
		Help:        "Connection pool acquisitions by outcome.",
		ConstLabels: config.ConstLabels,
	}, []string{"outcome"})

	m.poolConnections = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   config.Namespace,
		Subsystem:   config.Subsystem,
		Name:        "pool_connections",
		Help:        "Connection pool occupancy by state.",
		ConstLabels: config.ConstLabels,
	}, []string{"state"})

	m.violations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   config.Namespace,
		Subsystem:   config.Subsystem,
		Name:        "compliance_violations_total",
		Help:        "Compliance violations recorded by report type and severity.",
		ConstLabels: config.ConstLabels,
	}, []string{"report_type", "severity"})

	m.registry.MustRegister(
		m.toolCalls, m.toolDuration, m.transportEvents,
		m.permissionChecks, m.poolAcquires, m.poolConnections, m.violations,
	)
	return m
}

// RecordToolCall records one tool execution
func (m *Metrics) RecordToolCall(tool, outcome string, duration time.Duration) {
	m.toolCalls.WithLabelValues(tool, outcome).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordTransportEvent records a transport lifecycle or I/O event
func (m *Metrics) RecordTransportEvent(transport, event string) {
	m.transportEvents.WithLabelValues(transport, event).Inc()
}

// RecordPermissionCheck records an RBAC decision
func (m *Metrics) RecordPermissionCheck(granted bool) {
	outcome := "denied"
	if granted {
		outcome = "granted"
	}
	m.permissionChecks.WithLabelValues(outcome).Inc()
}

// RecordPoolAcquire records a pool acquisition outcome
func (m *Metrics) RecordPoolAcquire(outcome string) {
	m.poolAcquires.WithLabelValues(outcome).Inc()
}

// SetPoolConnections updates the pool occupancy gauges
func (m *Metrics) SetPoolConnections(total, idle int) {
	m.poolConnections.WithLabelValues("total").Set(float64(total))
	m.poolConnections.WithLabelValues("idle").Set(float64(idle))
}

// RecordViolation records a compliance violation
func (m *Metrics) RecordViolation(reportType, severity string) {
	m.violations.WithLabelValues(reportType, severity).Inc()
}

// Registry exposes the underlying registry for test gathering
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler returns an HTTP handler serving the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
