// Package metrics provides Prometheus metrics for the resolution engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter owns a private Prometheus registry so tests can create
// independent instances without collisions.
type Exporter struct {
	registry *prometheus.Registry

	resolutions      *prometheus.CounterVec
	fallbacks        *prometheus.CounterVec
	stageLatency     *prometheus.HistogramVec
	candidateCount   prometheus.Histogram
	feedbackEvents   *prometheus.CounterVec
	exemplarCount    prometheus.Gauge
	feedbackAccuracy prometheus.Gauge
}

// Config configures the exporter.
type Config struct {
	// Registry to use (if nil, creates a new one).
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds).
	LatencyBuckets []float64
}

// DefaultConfig returns the default exporter configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
	}
}

// NewExporter creates a metrics exporter with all collectors registered.
func NewExporter(cfg Config) *Exporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &Exporter{registry: registry}

	e.resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intentd",
			Subsystem: "engine",
			Name:      "resolutions_total",
			Help:      "Total number of resolutions by outcome and candidate source",
		},
		[]string{"outcome", "source"},
	)

	e.fallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intentd",
			Subsystem: "engine",
			Name:      "fallbacks_total",
			Help:      "Total number of uncertainty fallbacks by reason",
		},
		[]string{"reason"},
	)

	e.stageLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "intentd",
			Subsystem: "engine",
			Name:      "stage_latency_seconds",
			Help:      "Per-stage resolution latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"stage"},
	)

	e.candidateCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "intentd",
			Subsystem: "engine",
			Name:      "candidates_per_resolution",
			Help:      "Number of Stage 1 candidates per resolution",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		},
	)

	e.feedbackEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "intentd",
			Subsystem: "feedback",
			Name:      "events_total",
			Help:      "Total number of feedback events by action",
		},
		[]string{"action"},
	)

	e.exemplarCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "intentd",
			Subsystem: "feedback",
			Name:      "memory_exemplars",
			Help:      "Current number of Fast Memory exemplars",
		},
	)

	e.feedbackAccuracy = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "intentd",
			Subsystem: "feedback",
			Name:      "accuracy",
			Help:      "Resolution accuracy as reported by user feedback",
		},
	)

	registry.MustRegister(
		e.resolutions,
		e.fallbacks,
		e.stageLatency,
		e.candidateCount,
		e.feedbackEvents,
		e.exemplarCount,
		e.feedbackAccuracy,
	)
	return e
}

// RecordResolution counts one finished resolution.
func (e *Exporter) RecordResolution(outcome, source string) {
	e.resolutions.WithLabelValues(outcome, source).Inc()
}

// RecordFallback counts one uncertainty fallback.
func (e *Exporter) RecordFallback(reason string) {
	e.fallbacks.WithLabelValues(reason).Inc()
}

// RecordStageLatency records one stage duration.
func (e *Exporter) RecordStageLatency(stage string, d time.Duration) {
	e.stageLatency.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordCandidateCount records the Stage 1 candidate count.
func (e *Exporter) RecordCandidateCount(n int) {
	e.candidateCount.Observe(float64(n))
}

// RecordFeedback counts one feedback event by its resulting action.
func (e *Exporter) RecordFeedback(action string) {
	e.feedbackEvents.WithLabelValues(action).Inc()
}

// SetExemplarCount updates the Fast Memory size gauge.
func (e *Exporter) SetExemplarCount(n int64) {
	e.exemplarCount.Set(float64(n))
}

// SetAccuracy updates the feedback accuracy gauge.
func (e *Exporter) SetAccuracy(rate float64) {
	e.feedbackAccuracy.Set(rate)
}

// Handler returns the HTTP handler for the /metrics endpoint.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}
