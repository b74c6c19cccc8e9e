// Package metrics implements component I's counters and histograms. It is
// grounded in the teacher's own internal/metrics/prometheus.go — the same
// promauto-vec-per-signal shape and a namespaced Counter/HistogramVec
// family — narrowed from LiteLLM's full cost/spend/deployment surface down
// to exactly the signals named in spec §4.I, and wrapped in a struct bound
// to its own prometheus.Registry instead of the default global one so a
// test (or a second gateway instance in the same process) can construct an
// independent Metrics without colliding registrations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/blueberrycongee/agentgate/pkg/types"
)

const namespace = "agentgate"

// latencyBuckets mirrors the teacher's LatencyBuckets shape, trimmed to the
// range a single-backend local gateway actually sees.
var latencyBuckets = []float64{
	0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13, 21, 34, 60,
}

// Metrics holds every Prometheus collector required by spec §4.I, bound to
// its own registry.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	backendLatency   *prometheus.HistogramVec
	endToEndLatency  *prometheus.HistogramVec
	cacheStatus      *prometheus.CounterVec
	coalesced        prometheus.Counter
	rateLimited      *prometheus.CounterVec
	retries          *prometheus.CounterVec
	backendStatus    *prometheus.CounterVec
	promptTokens     *prometheus.CounterVec
	completionTokens *prometheus.CounterVec
	inFlight         prometheus.Gauge
}

// New constructs a Metrics bound to a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		requestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Requests received, by model and outcome.",
		}, []string{"model", "outcome"}),

		backendLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "backend_latency_seconds",
			Help:      "Backend call latency.",
			Buckets:   latencyBuckets,
		}, []string{"model"}),

		endToEndLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "end_to_end_latency_seconds",
			Help:      "Full pipeline latency as observed by the caller.",
			Buckets:   latencyBuckets,
		}, []string{"model"}),

		cacheStatus: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_status_total",
			Help:      "Cache outcomes, by status (hit/miss/refresh/bypass).",
		}, []string{"status"}),

		coalesced: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "single_flight_coalesced_total",
			Help:      "Requests served by an in-flight single-flight computation rather than leading one.",
		}),

		rateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_rejections_total",
			Help:      "Requests rejected by the rate limiter, by quota identity.",
		}, []string{"identity"}),

		retries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_retries_total",
			Help:      "Backend call retries, by cause.",
		}, []string{"cause"}),

		backendStatus: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backend_status_total",
			Help:      "Backend HTTP responses, by status class (4xx/5xx).",
		}, []string{"class"}),

		promptTokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prompt_tokens_total",
			Help:      "Prompt tokens consumed, by model.",
		}, []string{"model"}),

		completionTokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_tokens_total",
			Help:      "Completion tokens produced, by model.",
		}, []string{"model"}),

		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipelines_in_flight",
			Help:      "Pipeline executions currently in progress.",
		}),
	}
}

// Registry exposes the bound registry for an HTTP /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// The following methods implement pipeline.Recorder.

func (m *Metrics) ObserveRequest(model, outcome string) {
	m.requestsTotal.WithLabelValues(model, outcome).Inc()
}

func (m *Metrics) ObserveBackendLatency(model string, d time.Duration) {
	m.backendLatency.WithLabelValues(model).Observe(d.Seconds())
}

func (m *Metrics) ObserveEndToEndLatency(model string, d time.Duration) {
	m.endToEndLatency.WithLabelValues(model).Observe(d.Seconds())
}

func (m *Metrics) ObserveCacheStatus(status types.CacheStatus) {
	m.cacheStatus.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) ObserveCoalesced() {
	m.coalesced.Inc()
}

func (m *Metrics) ObserveTokens(model string, prompt, completion int) {
	m.promptTokens.WithLabelValues(model).Add(float64(prompt))
	m.completionTokens.WithLabelValues(model).Add(float64(completion))
}

func (m *Metrics) IncInFlight() { m.inFlight.Inc() }
func (m *Metrics) DecInFlight() { m.inFlight.Dec() }

// The following are not part of the pipeline's Recorder hook, and neither
// the rate limiter, the HTTP middleware nor the backend client calls them;
// their series change only when a caller invokes them directly.

func (m *Metrics) ObserveRateLimited(identity string) {
	m.rateLimited.WithLabelValues(identity).Inc()
}

func (m *Metrics) ObserveRetry(cause string) {
	m.retries.WithLabelValues(cause).Inc()
}

// ObserveBackendStatus records a single backend HTTP response by status
// class ("4xx" or "5xx"); callers should not call this for 2xx responses.
func (m *Metrics) ObserveBackendStatus(statusCode int) {
	class := "4xx"
	if statusCode >= 500 {
		class = "5xx"
	}
	m.backendStatus.WithLabelValues(class).Inc()
}
