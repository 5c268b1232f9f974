// Package metrics provides Prometheus metrics export for digest invocations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chatdigest"

// Stage names used for the stage latency histogram.
const (
	StageFetch    = "fetch"
	StageGenerate = "generate"
	StageRender   = "render"
	StageSend     = "send"
)

// PrometheusExporter exports digest metrics in Prometheus format.
type PrometheusExporter struct {
	registry *prometheus.Registry

	invocations     *prometheus.CounterVec
	invocationTime  *prometheus.HistogramVec
	active          prometheus.Gauge
	stageLatency    *prometheus.HistogramVec
	transcriptLines *prometheus.HistogramVec

	llmTokensUsed   *prometheus.CounterVec
	llmTokensCached *prometheus.CounterVec

	webhookEvents *prometheus.CounterVec
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{registry: registry}

	e.invocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "digest",
			Name:      "invocations_total",
			Help:      "Total number of digest command invocations",
		},
		[]string{"flow", "outcome"},
	)

	e.invocationTime = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "digest",
			Name:      "invocation_duration_seconds",
			Help:      "End-to-end digest invocation latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"flow"},
	)

	e.active = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "digest",
			Name:      "active",
			Help:      "Number of digest invocations in flight",
		},
	)

	e.stageLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "digest",
			Name:      "stage_latency_seconds",
			Help:      "Latency of each digest stage in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"stage"},
	)

	e.transcriptLines = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "digest",
			Name:      "transcript_lines",
			Help:      "Number of transcript lines submitted for generation",
			Buckets:   []float64{1, 10, 50, 100, 200, 500, 1000},
		},
		[]string{"flow"},
	)

	e.llmTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Total LLM tokens consumed",
		},
		[]string{"model", "token_type"},
	)

	e.llmTokensCached = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_cached_total",
			Help:      "Total LLM tokens served from cache",
		},
		[]string{"model"},
	)

	e.webhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Inbound platform events by result",
		},
		[]string{"platform", "result"},
	)

	registry.MustRegister(
		e.invocations,
		e.invocationTime,
		e.active,
		e.stageLatency,
		e.transcriptLines,
		e.llmTokensUsed,
		e.llmTokensCached,
		e.webhookEvents,
	)

	return e
}

// InvocationStarted marks a digest invocation as in flight.
func (e *PrometheusExporter) InvocationStarted() {
	e.active.Inc()
}

// RecordInvocation records the terminal outcome of an invocation.
func (e *PrometheusExporter) RecordInvocation(flow, outcome string, latency time.Duration) {
	e.active.Dec()
	e.invocations.WithLabelValues(flow, outcome).Inc()
	e.invocationTime.WithLabelValues(flow).Observe(latency.Seconds())
}

// RecordStage records the latency of a single stage.
func (e *PrometheusExporter) RecordStage(stage string, latency time.Duration) {
	e.stageLatency.WithLabelValues(stage).Observe(latency.Seconds())
}

// RecordTranscript records the size of a transcript handed to the model.
func (e *PrometheusExporter) RecordTranscript(flow string, lines int) {
	e.transcriptLines.WithLabelValues(flow).Observe(float64(lines))
}

// RecordLLMTokens records LLM token usage.
func (e *PrometheusExporter) RecordLLMTokens(model, tokenType string, count int) {
	e.llmTokensUsed.WithLabelValues(model, tokenType).Add(float64(count))
}

// RecordLLMCachedTokens records cached LLM tokens.
func (e *PrometheusExporter) RecordLLMCachedTokens(model string, count int) {
	e.llmTokensCached.WithLabelValues(model).Add(float64(count))
}

// RecordWebhook records one inbound event.
func (e *PrometheusExporter) RecordWebhook(platform, result string) {
	e.webhookEvents.WithLabelValues(platform, result).Inc()
}

// Handler returns an HTTP handler for the metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// ServeHTTP implements http.Handler for the metrics endpoint.
func (e *PrometheusExporter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e.Handler().ServeHTTP(w, r)
}

// GetRegistry returns the Prometheus registry.
func (e *PrometheusExporter) GetRegistry() *prometheus.Registry {
	return e.registry
}
