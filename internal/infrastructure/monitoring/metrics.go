package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Launch pipeline metrics
	LaunchesTotal    *prometheus.CounterVec
	LaunchDuration   *prometheus.HistogramVec
	ActiveLaunches   prometheus.Gauge
	PendingQueueSize *prometheus.GaugeVec

	// Close metrics
	ClosesTotal *prometheus.CounterVec

	// Runtime supervision metrics
	RunningApps          prometheus.Gauge
	KillEscalations      prometheus.Counter
	RegistrationTimeouts prometheus.Counter
	SpawnFailures        prometheus.Counter

	// Status router metrics
	StatusTransitions *prometheus.CounterVec
	IgnoredRequests   *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time
}

// NewMetrics creates a new metrics collector
func NewMetrics() *Metrics {
	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appmanager_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "appmanager_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		LaunchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appmanager_launches_total",
				Help: "Total number of launch requests by terminal result",
			},
			[]string{"result"},
		),
		LaunchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "appmanager_launch_duration_seconds",
				Help:    "Launch duration from admission to terminal reply",
				Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"result"},
		),
		ActiveLaunches: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "appmanager_launches_active",
				Help: "Number of in-flight launch items",
			},
		),
		PendingQueueSize: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "appmanager_pending_queue_size",
				Help: "Items parked in the gate queues",
			},
			[]string{"queue"},
		),

		ClosesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appmanager_closes_total",
				Help: "Total number of close requests by result",
			},
			[]string{"result"},
		),

		RunningApps: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "appmanager_running_apps",
				Help: "Number of running applications",
			},
		),
		KillEscalations: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "appmanager_kill_escalations_total",
				Help: "Forced terminations after a graceful close timed out",
			},
		),
		RegistrationTimeouts: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "appmanager_registration_timeouts_total",
				Help: "Native apps that missed the registration window",
			},
		),
		SpawnFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "appmanager_spawn_failures_total",
				Help: "Process spawn attempts that failed",
			},
		),

		StatusTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appmanager_status_transitions_total",
				Help: "Applied life-status transitions",
			},
			[]string{"from", "to"},
		),
		IgnoredRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "appmanager_status_ignored_total",
				Help: "Structurally invalid status requests ignored by the router",
			},
			[]string{"from", "to"},
		),

		WSConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "appmanager_ws_connections",
				Help: "Number of active WebSocket subscribers",
			},
		),

		Uptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "appmanager_uptime_seconds",
				Help: "Application manager uptime in seconds",
			},
		),
	}

	go m.updateUptime()

	return m
}

// updateUptime continuously updates the uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordLaunch records a terminal launch result
func (m *Metrics) RecordLaunch(result string, duration time.Duration) {
	m.LaunchesTotal.WithLabelValues(result).Inc()
	m.LaunchDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// RecordTransition records a life-status transition decision
func (m *Metrics) RecordTransition(from, to string, ignored bool) {
	if ignored {
		m.IgnoredRequests.WithLabelValues(from, to).Inc()
		return
	}
	m.StatusTransitions.WithLabelValues(from, to).Inc()
}
