package monitoring

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/GriffinCanCode/scriptbridge/internal/bridge"
	"github.com/GriffinCanCode/scriptbridge/internal/marshal"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Context metrics
	ContextsActive prometheus.Gauge
	ContextsTotal  prometheus.Counter

	// Operation metrics
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	OperationErrors   *prometheus.CounterVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current metric values for the JSON API
type Snapshot struct {
	TotalRequests   int64   `json:"total_requests"`
	TotalErrors     int64   `json:"total_errors"`
	ActiveContexts  int64   `json:"active_contexts"`
	TotalContexts   int64   `json:"total_contexts"`
	TotalOperations int64   `json:"total_operations"`
	OperationErrors int64   `json:"operation_errors"`
	UptimeSeconds   float64 `json:"uptime_seconds"`
}

var _ bridge.Recorder = (*Metrics)(nil)

// NewMetrics registers the collectors with reg. Tests pass a fresh
// prometheus.NewRegistry(); the server passes prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptbridge_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scriptbridge_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scriptbridge_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scriptbridge_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000},
			},
			[]string{"method", "path"},
		),

		ContextsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "scriptbridge_contexts_active",
				Help: "Number of live execution contexts",
			},
		),
		ContextsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "scriptbridge_contexts_created_total",
				Help: "Total number of execution contexts created",
			},
		),

		Operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptbridge_operations_total",
				Help: "Context operations by name and outcome",
			},
			[]string{"op", "status"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scriptbridge_operation_duration_seconds",
				Help:    "Context operation duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"op"},
		),
		OperationErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scriptbridge_operation_errors_total",
				Help: "Failed context operations by error class",
			},
			[]string{"op", "class"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "scriptbridge_uptime_seconds",
			Help: "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// ContextCreated counts a new execution context.
func (m *Metrics) ContextCreated() {
	m.ContextsActive.Inc()
	m.ContextsTotal.Inc()

	m.mu.Lock()
	m.snapshot.ActiveContexts++
	m.snapshot.TotalContexts++
	m.mu.Unlock()
}

// ContextDestroyed counts a destroyed execution context.
func (m *Metrics) ContextDestroyed() {
	m.ContextsActive.Dec()

	m.mu.Lock()
	m.snapshot.ActiveContexts--
	m.mu.Unlock()
}

// RecordOperation records one context operation and its outcome.
func (m *Metrics) RecordOperation(op string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		m.OperationErrors.WithLabelValues(op, ErrorClass(err)).Inc()
	}
	m.Operations.WithLabelValues(op, status).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(d.Seconds())

	m.mu.Lock()
	m.snapshot.TotalOperations++
	if err != nil {
		m.snapshot.OperationErrors++
	}
	m.mu.Unlock()
}

// Snapshot returns the current values for the JSON API.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.snapshot
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}

// ErrorClass buckets an operation error for metric labels.
func ErrorClass(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, bridge.ErrTimeout):
		return "timeout"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	case errors.Is(err, bridge.ErrSyntax):
		return "syntax"
	case errors.Is(err, bridge.ErrException):
		return "exception"
	case errors.Is(err, bridge.ErrNotFound), errors.Is(err, bridge.ErrNotFunction):
		return "lookup"
	case errors.Is(err, bridge.ErrInvalidPath):
		return "path"
	case errors.Is(err, bridge.ErrDestroyed):
		return "destroyed"
	}
	var merr *marshal.Error
	if errors.As(err, &merr) {
		return "marshal"
	}
	return "other"
}
