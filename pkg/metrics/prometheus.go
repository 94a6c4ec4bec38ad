// Package metrics provides Prometheus metrics for the liftcall dispatch client.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values shared by the counters below.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeAbandoned = "abandoned"
	OutcomeStale     = "stale"
	OutcomeSkipped   = "skipped"
)

// latencyBuckets covers LAN round trips up to slow remote timeouts, in ms.
var latencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// Manager owns every Prometheus collector of the client.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Request backlog
	backlogSize     prometheus.Gauge
	queueState      prometheus.Gauge
	deliveries      *prometheus.CounterVec
	deliveryLatency prometheus.Histogram

	// Remote service
	remoteCalls        *prometheus.CounterVec
	remoteCallDuration *prometheus.HistogramVec

	// Position polling
	polls *prometheus.CounterVec

	// Dispatch session
	dispatchCycles  *prometheus.CounterVec
	dispatchLatency prometheus.Histogram
	sessionState    prometheus.Gauge

	// Local status API
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by the package-level helpers

// customRegistry keeps the exposition free of default Go collectors.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // shared registry served on /healthz

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "liftcall",
		subsystem:        "dispatch",
		histogramBuckets: latencyBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.backlogSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "backlog_size",
		Help:        "Number of floor requests waiting for delivery, including the head",
		ConstLabels: m.constLabels,
	})
	m.queueState = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "queue_state",
		Help:        "Request queue state: 0=clear 1=queued 2=processing",
		ConstLabels: m.constLabels,
	})
	m.deliveries = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "deliveries_total",
		Help:        "Delivery attempts of queued floor requests by outcome",
		ConstLabels: m.constLabels,
	}, []string{"outcome"})
	m.deliveryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "delivery_latency_milliseconds",
		Help:        "Latency of a single delivery attempt in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})

	m.remoteCalls = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "remote_calls_total",
		Help:        "Calls to the remote elevator service by call and outcome",
		ConstLabels: m.constLabels,
	}, []string{"call", "outcome"})
	m.remoteCallDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "remote_call_duration_milliseconds",
		Help:        "Remote elevator service call duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"call"})

	m.polls = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "polls_total",
		Help:        "Position polls by outcome",
		ConstLabels: m.constLabels,
	}, []string{"outcome"})

	m.dispatchCycles = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "dispatch_cycles_total",
		Help:        "Dispatch cycles (floor choice to assignment) by outcome",
		ConstLabels: m.constLabels,
	}, []string{"outcome"})
	m.dispatchLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "dispatch_latency_milliseconds",
		Help:        "Duration of a dispatch cycle join in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})
	m.sessionState = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "session_state",
		Help:        "Dispatch session state ordinal (0=unconfigured .. 5=assigned)",
		ConstLabels: m.constLabels,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_requests_total",
		Help:        "Status API requests by endpoint, method and status code",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "Status API request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_by_component_total",
		Help:        "Errors by component and error type",
		ConstLabels: m.constLabels,
	}, []string{"component", "error_type"})
}

// UpdateBacklogSize sets the number of pending floor requests.
func (m *Manager) UpdateBacklogSize(n int) { m.backlogSize.Set(float64(n)) }

// UpdateQueueState sets the request queue state ordinal.
func (m *Manager) UpdateQueueState(state int) { m.queueState.Set(float64(state)) }

// RecordDelivery counts one delivery attempt and its latency.
func (m *Manager) RecordDelivery(outcome string, latencyMs float64) {
	m.deliveries.WithLabelValues(outcome).Inc()
	if outcome != OutcomeAbandoned {
		m.deliveryLatency.Observe(latencyMs)
	}
}

// RecordRemoteCall counts one remote service call and its duration.
func (m *Manager) RecordRemoteCall(call, outcome string, durationMs float64) {
	m.remoteCalls.WithLabelValues(call, outcome).Inc()
	m.remoteCallDuration.WithLabelValues(call).Observe(durationMs)
}

// RecordPoll counts one position poll.
func (m *Manager) RecordPoll(outcome string) { m.polls.WithLabelValues(outcome).Inc() }

// RecordDispatchCycle counts one dispatch cycle and its join latency.
func (m *Manager) RecordDispatchCycle(outcome string, latencyMs float64) {
	m.dispatchCycles.WithLabelValues(outcome).Inc()
	m.dispatchLatency.Observe(latencyMs)
}

// UpdateSessionState sets the session state ordinal.
func (m *Manager) UpdateSessionState(state int) { m.sessionState.Set(float64(state)) }

// RecordHTTPRequest counts one status API request.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordError counts an error attributed to a component.
func (m *Manager) RecordError(component, errorType string) {
	m.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// Package-level helpers delegate to the global manager.

func UpdateBacklogSize(n int)    { globalManager.UpdateBacklogSize(n) }
func UpdateQueueState(state int) { globalManager.UpdateQueueState(state) }
func RecordDelivery(outcome string, latencyMs float64) {
	globalManager.RecordDelivery(outcome, latencyMs)
}
func RecordRemoteCall(call, outcome string, durationMs float64) {
	globalManager.RecordRemoteCall(call, outcome, durationMs)
}
func RecordPoll(outcome string) { globalManager.RecordPoll(outcome) }
func RecordDispatchCycle(outcome string, latencyMs float64) {
	globalManager.RecordDispatchCycle(outcome, latencyMs)
}
func UpdateSessionState(state int) { globalManager.UpdateSessionState(state) }
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode, durationMs)
}
func RecordError(component, errorType string) { globalManager.RecordError(component, errorType) }

// GetRegistry returns the registry the global manager registers on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
