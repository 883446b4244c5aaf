package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Outcome string

const (
	OutcomeOK             Outcome = "ok"
	OutcomeRPCError       Outcome = "rpc_error"
	OutcomeTransportError Outcome = "transport_error"
	OutcomeParseError     Outcome = "parse_error"
	OutcomeRejected       Outcome = "rejected"
)

type Metrics struct {
	registry           *prometheus.Registry
	requests           *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	sandboxEvaluations *prometheus.CounterVec
	activeSessions     prometheus.Gauge
	eventSubscriptions prometheus.Gauge
}

func NewMetrics() *Metrics {
	metrics := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rpc_tester_requests_total",
			Help: "The total number of JSON-RPC requests dispatched",
		}, []string{"method", "outcome"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rpc_tester_request_duration_seconds",
			Help:    "Time from dispatch to a fully read response",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		sandboxEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rpc_tester_sandbox_evaluations_total",
			Help: "The total number of sandbox script evaluations",
		}, []string{"outcome"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rpc_tester_active_sessions",
			Help: "The number of open tester sessions",
		}),
		eventSubscriptions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rpc_tester_event_subscriptions",
			Help: "The number of connected session event streams",
		}),
	}
	metrics.register()
	return metrics
}

func (m *Metrics) register() {
	m.registry.MustRegister(
		m.requests,
		m.requestDuration,
		m.sandboxEvaluations,
		m.activeSessions,
		m.eventSubscriptions,
	)
}

// Handler serves this instance's registry only.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) ObserveRequest(method string, outcome Outcome, elapsed time.Duration) {
	m.requests.WithLabelValues(method, string(outcome)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// IncrementRejectedRequests counts a request that failed before dispatch.
func (m *Metrics) IncrementRejectedRequests(method string) {
	m.requests.WithLabelValues(method, string(OutcomeRejected)).Inc()
}

func (m *Metrics) IncrementSandboxEvaluations(outcome Outcome) {
	m.sandboxEvaluations.WithLabelValues(string(outcome)).Inc()
}

func (m *Metrics) IncrementActiveSessions() {
	m.activeSessions.Inc()
}

func (m *Metrics) DecrementActiveSessions() {
	m.activeSessions.Dec()
}

func (m *Metrics) IncrementEventSubscriptions() {
	m.eventSubscriptions.Inc()
}

func (m *Metrics) DecrementEventSubscriptions() {
	m.eventSubscriptions.Dec()
}
