package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	cacheHits        *prometheus.CounterVec
	cacheMisses      *prometheus.CounterVec
	latency          *prometheus.HistogramVec
	sourceFailures   *prometheus.CounterVec
	reasonerAttempts *prometheus.CounterVec
	fallbacks        *prometheus.CounterVec
	analyses         *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
}

// New creates a recorder registered on reg. Pass prometheus.DefaultRegisterer in
// production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		cacheHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finfusion_cache_hits_total",
				Help: "Total number of memoized results served from cache",
			},
			[]string{"cache"},
		),
		cacheMisses: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finfusion_cache_misses_total",
				Help: "Total number of cache misses that triggered a computation",
			},
			[]string{"cache"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finfusion_operation_duration_seconds",
				Help:    "Duration of pipeline stages in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		sourceFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finfusion_source_failures_total",
				Help: "Total number of failed sentiment or market data fetches",
			},
			[]string{"source"},
		),
		reasonerAttempts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finfusion_reasoner_attempts_total",
				Help: "Reasoner attempts by outcome",
			},
			[]string{"outcome"},
		),
		fallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finfusion_fallbacks_total",
				Help: "Deterministic fallback recommendations produced",
			},
			[]string{"symbol"},
		),
		analyses: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finfusion_analyses_total",
				Help: "Completed analyses by recommendation",
			},
			[]string{"recommendation"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finfusion_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

func (r *Recorder) RecordCacheHit(cache string) {
	r.cacheHits.WithLabelValues(cache).Inc()
}

func (r *Recorder) RecordCacheMiss(cache string) {
	r.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordSourceFailure(source string) {
	r.sourceFailures.WithLabelValues(source).Inc()
}

func (r *Recorder) RecordReasonerAttempt(outcome string) {
	r.reasonerAttempts.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordFallback(symbol string) {
	r.fallbacks.WithLabelValues(symbol).Inc()
}

func (r *Recorder) RecordAnalysis(recommendation string) {
	r.analyses.WithLabelValues(recommendation).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
