// Package metrics provides Prometheus metrics for the hurdle timing service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the timing service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Sensor feed
	notificationsReceived  prometheus.Counter
	notificationsMalformed prometheus.Counter
	notificationsDropped   *prometheus.CounterVec

	// Race
	splitsRecorded    prometheus.Counter
	splitsIgnored     *prometheus.CounterVec
	sessionsCommitted *prometheus.CounterVec
	sessionTotalTime  prometheus.Histogram
	raceActive        prometheus.Gauge

	// Connection
	connectionState    *prometheus.GaugeVec
	connectionFailures *prometheus.CounterVec
	connectionsLost    prometheus.Counter
	livenessChecks     prometheus.Counter

	// Host plumbing
	commandQueueSize  prometheus.Gauge
	commandLatency    prometheus.Histogram
	persistenceErrors *prometheus.CounterVec
	rosterSize        prometheus.Gauge
	sessionsStored    prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// connectionStates are the label values of the connection state gauge.
var connectionStates = []string{"disconnected", "scanning", "connecting", "connected", "lost"}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "hurdletime",
		subsystem:        "timer",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one block per metric
	auto := promauto.With(m.registry)

	m.notificationsReceived = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notifications_received_total",
		Help:      "Raw notifications delivered by the sensor transport",
	})

	m.notificationsMalformed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notifications_malformed_total",
		Help:      "Notifications dropped because they were shorter than 4 bytes",
	})

	m.notificationsDropped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notifications_dropped_total",
		Help:      "Notifications dropped outside the connected state or refused by a full command queue",
	}, []string{"state"})

	m.splitsRecorded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "splits_recorded_total",
		Help:      "Splits appended to an active race",
	})

	m.splitsIgnored = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "splits_ignored_total",
		Help:      "Splits ignored by the race state machine",
	}, []string{"reason"})

	m.sessionsCommitted = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_committed_total",
		Help:      "Training sessions committed, by how the race ended",
	}, []string{"trigger"})

	m.sessionTotalTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "session_total_time_milliseconds",
		Help:      "Total time of committed sessions",
		Buckets:   []float64{1000, 2500, 5000, 7500, 10000, 12500, 15000, 20000, 30000, 60000},
	})

	m.raceActive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "race_active",
		Help:      "1 while a race is active",
	})

	m.connectionState = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "connection_state",
		Help:      "1 for the current device connection state, 0 otherwise",
	}, []string{"state"})

	m.connectionFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "connection_failures_total",
		Help:      "Failed scan_and_connect attempts by cause",
	}, []string{"cause"})

	m.connectionsLost = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "connections_lost_total",
		Help:      "Links reported dead by the liveness check",
	})

	m.livenessChecks = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "liveness_checks_total",
		Help:      "Liveness checks executed while connected",
	})

	m.commandQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "command_queue_size",
		Help:      "Commands waiting for the state actor",
	})

	m.commandLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "command_latency_milliseconds",
		Help:      "Time between enqueue and completion of actor commands",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100},
	})

	m.persistenceErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "persistence_errors_total",
		Help:      "Best-effort persistence failures by operation",
	}, []string{"op"})

	m.rosterSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "roster_size",
		Help:      "Athletes in the roster",
	})

	m.sessionsStored = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_stored",
		Help:      "Sessions held by the repository",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
}

// RecordNotificationReceived increments the raw notification counter.
func RecordNotificationReceived() {
	globalManager.notificationsReceived.Inc()
}

// RecordNotificationMalformed increments the malformed notification counter.
func RecordNotificationMalformed() {
	globalManager.notificationsMalformed.Inc()
}

// RecordNotificationDropped counts a notification that never reached the
// race, labelled by link state or "backpressure".
func RecordNotificationDropped(state string) {
	globalManager.notificationsDropped.WithLabelValues(state).Inc()
}

// RecordSplit increments the recorded split counter.
func RecordSplit() {
	globalManager.splitsRecorded.Inc()
}

// RecordSplitIgnored counts a split the race machine did not append.
func RecordSplitIgnored(reason string) {
	globalManager.splitsIgnored.WithLabelValues(reason).Inc()
}

// RecordSessionCommitted counts a committed session and observes its total time.
func RecordSessionCommitted(trigger string, totalTimeMs uint32) {
	globalManager.sessionsCommitted.WithLabelValues(trigger).Inc()
	globalManager.sessionTotalTime.Observe(float64(totalTimeMs))
}

// UpdateRaceActive sets the race active gauge.
func UpdateRaceActive(active bool) {
	if active {
		globalManager.raceActive.Set(1)
		return
	}
	globalManager.raceActive.Set(0)
}

// UpdateConnectionState flips the one-hot connection state gauge.
func UpdateConnectionState(state string) {
	for _, s := range connectionStates {
		v := 0.0
		if s == state {
			v = 1
		}
		globalManager.connectionState.WithLabelValues(s).Set(v)
	}
}

// RecordConnectionFailure counts a failed connect attempt.
func RecordConnectionFailure(cause string) {
	globalManager.connectionFailures.WithLabelValues(cause).Inc()
}

// RecordConnectionLost counts a liveness failure.
func RecordConnectionLost() {
	globalManager.connectionsLost.Inc()
}

// RecordLivenessCheck counts a liveness probe.
func RecordLivenessCheck() {
	globalManager.livenessChecks.Inc()
}

// UpdateCommandQueueSize sets the actor backlog gauge.
func UpdateCommandQueueSize(size int) {
	globalManager.commandQueueSize.Set(float64(size))
}

// RecordCommandLatency observes how long a command took end to end.
func RecordCommandLatency(latencyMs float64) {
	globalManager.commandLatency.Observe(latencyMs)
}

// RecordPersistenceError counts a failed load or save.
func RecordPersistenceError(op string) {
	globalManager.persistenceErrors.WithLabelValues(op).Inc()
}

// UpdateRepositorySize sets roster and session gauges.
func UpdateRepositorySize(athletes, sessions int) {
	globalManager.rosterSize.Set(float64(athletes))
	globalManager.sessionsStored.Set(float64(sessions))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
