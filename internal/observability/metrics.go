package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the deliberation service.
type Metrics struct {
	registry       *prometheus.Registry
	CouncilRuns    *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
	GatewayLatency *prometheus.HistogramVec
	ActiveStreams  *prometheus.GaugeVec
	TransportErrs  *prometheus.CounterVec
	ModelUsage     *prometheus.CounterVec
	ModelFailures  *prometheus.CounterVec
}

// NewMetrics constructs a metrics registry with deliberation collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quorum_council_runs_total",
		Help: "Total council deliberations by outcome",
	}, []string{"outcome"})

	durs := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quorum_stage_duration_seconds",
		Help:    "Pipeline stage duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "quorum_gateway_latency_seconds",
		Help:    "Model gateway call latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"model"})

	active := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "quorum_active_streams",
		Help: "Active event streams by transport",
	}, []string{"transport"})

	trErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quorum_transport_errors_total",
		Help: "Transport-level errors (handler/streaming) by transport and reason",
	}, []string{"transport", "reason"})

	modelUsage := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quorum_model_usage_total",
		Help: "Model invocations by pipeline stage",
	}, []string{"stage", "model"})

	modelFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "quorum_model_failures_total",
		Help: "Model failures by pipeline stage and model",
	}, []string{"stage", "model"})

	reg.MustRegister(runs, durs, latency, active, trErrors, modelUsage, modelFailures)

	return &Metrics{
		registry:       reg,
		CouncilRuns:    runs,
		StageDuration:  durs,
		GatewayLatency: latency,
		ActiveStreams:  active,
		TransportErrs:  trErrors,
		ModelUsage:     modelUsage,
		ModelFailures:  modelFailures,
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordCouncilRun records the outcome of one deliberation.
func (m *Metrics) RecordCouncilRun(outcome string) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.CouncilRuns.WithLabelValues(outcome).Inc()
}

// RecordStageDuration observes how long a pipeline stage took.
func (m *Metrics) RecordStageDuration(stage string, d time.Duration) {
	if m == nil {
		return
	}
	if stage == "" {
		stage = "unknown"
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordGatewayLatency observes one model gateway call's duration.
func (m *Metrics) RecordGatewayLatency(model string, d time.Duration) {
	if m == nil {
		return
	}
	if model == "" {
		model = "unknown"
	}
	m.GatewayLatency.WithLabelValues(model).Observe(d.Seconds())
}

// IncActiveStreams increments the active stream gauge.
func (m *Metrics) IncActiveStreams(transport string) {
	if m == nil {
		return
	}
	m.ActiveStreams.WithLabelValues(transport).Inc()
}

// DecActiveStreams decrements the active stream gauge.
func (m *Metrics) DecActiveStreams(transport string) {
	if m == nil {
		return
	}
	m.ActiveStreams.WithLabelValues(transport).Dec()
}

// RecordTransportError records a transport-level error.
func (m *Metrics) RecordTransportError(transport, reason string) {
	if m == nil {
		return
	}
	if transport == "" {
		transport = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	m.TransportErrs.WithLabelValues(transport, reason).Inc()
}

// RecordModelUsage increments the usage counter for a stage/model invocation.
func (m *Metrics) RecordModelUsage(stage, model string) {
	if m == nil {
		return
	}
	if stage == "" {
		stage = "unknown"
	}
	if model == "" {
		model = "unknown"
	}
	m.ModelUsage.WithLabelValues(stage, model).Inc()
}

// RecordModelFailure increments the failure counter for a stage/model invocation.
func (m *Metrics) RecordModelFailure(stage, model string) {
	if m == nil {
		return
	}
	if stage == "" {
		stage = "unknown"
	}
	if model == "" {
		model = "unknown"
	}
	m.ModelFailures.WithLabelValues(stage, model).Inc()
}
