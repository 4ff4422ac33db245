package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. Every Record/Set method is safe on a
// nil receiver so components can run without instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Workspace metrics
	StoreOps      *prometheus.CounterVec
	BuffersTotal  prometheus.Gauge
	PersistErrors prometheus.Counter

	// Preview metrics
	DebounceEmits  *prometheus.CounterVec
	Renders        *prometheus.CounterVec
	RenderDuration prometheus.Histogram
	BoundariesLive prometheus.Gauge

	// Operation timings
	OperationDuration *prometheus.HistogramVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot MetricsSnapshot

	mu sync.RWMutex
}

// MetricsSnapshot holds current metric values for JSON API
type MetricsSnapshot struct {
	TotalRequests     int64   `json:"total_requests"`
	TotalErrors       int64   `json:"total_errors"`
	TotalRenders      int64   `json:"total_renders"`
	ActiveConnections int64   `json:"active_connections"`
	AvgRequestSeconds float64 `json:"avg_request_seconds"`
	UptimeSeconds     float64 `json:"uptime_seconds"`

	totalDuration float64
}

// NewMetrics creates a metrics collector on its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livepen_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "livepen_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "livepen_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "livepen_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Workspace metrics
		StoreOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livepen_store_operations_total",
				Help: "Buffer store operations by outcome",
			},
			[]string{"op", "applied"},
		),
		BuffersTotal: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "livepen_buffers",
				Help: "Number of buffers in the workspace",
			},
		),
		PersistErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "livepen_persist_errors_total",
				Help: "Failed writes to the persistence collaborator",
			},
		),

		// Preview metrics
		DebounceEmits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livepen_debounce_emits_total",
				Help: "Settled values emitted per buffer kind",
			},
			[]string{"kind"},
		),
		Renders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livepen_renders_total",
				Help: "Render requests by outcome",
			},
			[]string{"outcome"},
		),
		RenderDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "livepen_render_duration_seconds",
				Help:    "Time to tear down and rebuild the execution context",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
		),
		BoundariesLive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "livepen_boundaries_live",
				Help: "Number of live execution contexts",
			},
		),

		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "livepen_operation_duration_seconds",
				Help:    "Duration of internal operations",
				Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"component", "op", "status"},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "livepen_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livepen_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "livepen_uptime_seconds",
			Help: "Server uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.totalDuration += duration.Seconds()
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordStoreOp records one buffer store mutation
func (m *Metrics) RecordStoreOp(op string, applied bool) {
	if m == nil {
		return
	}
	label := "false"
	if applied {
		label = "true"
	}
	m.StoreOps.WithLabelValues(op, label).Inc()
}

// SetBuffers sets the number of buffers in the workspace
func (m *Metrics) SetBuffers(count int) {
	if m == nil {
		return
	}
	m.BuffersTotal.Set(float64(count))
}

// IncPersistErrors counts a failed persistence write
func (m *Metrics) IncPersistErrors() {
	if m == nil {
		return
	}
	m.PersistErrors.Inc()
}

// RecordDebounceEmit counts a settled value for kind
func (m *Metrics) RecordDebounceEmit(kind string) {
	if m == nil {
		return
	}
	m.DebounceEmits.WithLabelValues(kind).Inc()
}

// RecordRender records a render outcome: built, reused or failed.
// Duration is only observed for built contexts.
func (m *Metrics) RecordRender(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Renders.WithLabelValues(outcome).Inc()
	if outcome == "built" {
		m.RenderDuration.Observe(duration.Seconds())
		m.mu.Lock()
		m.snapshot.TotalRenders++
		m.mu.Unlock()
	}
}

// IncBoundaries increments live execution contexts
func (m *Metrics) IncBoundaries() {
	if m == nil {
		return
	}
	m.BoundariesLive.Inc()
}

// DecBoundaries decrements live execution contexts
func (m *Metrics) DecBoundaries() {
	if m == nil {
		return
	}
	m.BoundariesLive.Dec()
}

// RecordOperation records the duration of an internal operation
func (m *Metrics) RecordOperation(component, op, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(component, op, status).Observe(duration.Seconds())
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	if m == nil {
		return
	}
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// Snapshot returns current values for the JSON API
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil {
		return MetricsSnapshot{}
	}
	m.mu.RLock()
	snap := m.snapshot
	m.mu.RUnlock()

	if snap.TotalRequests > 0 {
		snap.AvgRequestSeconds = snap.totalDuration / float64(snap.TotalRequests)
	}
	snap.UptimeSeconds = time.Since(m.startTime).Seconds()
	return snap
}
