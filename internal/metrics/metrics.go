// Package metrics exposes the scanner's Prometheus instrumentation. All
// collectors hang off one Set bound to its own registry so tests and
// embedded use never fight over the global default registry. Every helper
// is nil-safe: a component handed a nil *Set simply runs unobserved.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Set holds every collector the scanner emits.
type Set struct {
	registry *prometheus.Registry

	ScanDuration     *prometheus.HistogramVec
	SymbolsEvaluated *prometheus.CounterVec
	Accepted         *prometheus.CounterVec
	Rejections       *prometheus.CounterVec
	Skips            *prometheus.CounterVec
	SignalsEmitted   *prometheus.CounterVec

	ProviderRequests *prometheus.HistogramVec
	CacheHits        *prometheus.CounterVec
	CacheMisses      *prometheus.CounterVec

	ActiveScans prometheus.Gauge
	ScansTotal  prometheus.Counter
}

// NewSet builds and registers all collectors on a fresh registry.
func NewSet() *Set {
	s := &Set{
		registry: prometheus.NewRegistry(),

		ScanDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalrun_scan_duration_seconds",
				Help:    "Full scan duration per strategy in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"strategy"},
		),
		SymbolsEvaluated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalrun_symbols_evaluated_total",
				Help: "Symbols run through the entry pipeline",
			},
			[]string{"strategy", "profile"},
		),
		Accepted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalrun_candidates_accepted_total",
				Help: "Candidates accepted by the pipeline",
			},
			[]string{"strategy", "profile"},
		),
		Rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalrun_rejections_total",
				Help: "Rejections by pipeline step",
			},
			[]string{"strategy", "step"},
		),
		Skips: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalrun_symbols_skipped_total",
				Help: "Symbols skipped on provider failure, by error code",
			},
			[]string{"strategy", "code"},
		),
		SignalsEmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalrun_signals_emitted_total",
				Help: "Signals emitted after ranking and capping",
			},
			[]string{"strategy"},
		),

		ProviderRequests: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "signalrun_provider_request_seconds",
				Help:    "Venue request latency by operation and outcome",
				Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"venue", "op", "code"},
		),
		CacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalrun_cache_hits_total",
				Help: "Market data cache hits by venue",
			},
			[]string{"venue"},
		),
		CacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "signalrun_cache_misses_total",
				Help: "Market data cache misses by venue",
			},
			[]string{"venue"},
		),

		ActiveScans: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "signalrun_active_scans",
				Help: "Scans currently in flight",
			},
		),
		ScansTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "signalrun_scans_total",
				Help: "Scans started",
			},
		),
	}

	s.registry.MustRegister(
		s.ScanDuration,
		s.SymbolsEvaluated,
		s.Accepted,
		s.Rejections,
		s.Skips,
		s.SignalsEmitted,
		s.ProviderRequests,
		s.CacheHits,
		s.CacheMisses,
		s.ActiveScans,
		s.ScansTotal,
	)
	return s
}

// Registry exposes the underlying registry for test gathers.
func (s *Set) Registry() *prometheus.Registry {
	if s == nil {
		return nil
	}
	return s.registry
}

// Handler serves this set over HTTP.
func (s *Set) Handler() http.Handler {
	if s == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

func (s *Set) ScanStarted() {
	if s == nil {
		return
	}
	s.ActiveScans.Inc()
	s.ScansTotal.Inc()
}

func (s *Set) ScanFinished(strategy string, d time.Duration) {
	if s == nil {
		return
	}
	s.ActiveScans.Dec()
	s.ScanDuration.WithLabelValues(strategy).Observe(d.Seconds())
}

func (s *Set) IncEvaluated(strategy, profile string) {
	if s == nil {
		return
	}
	s.SymbolsEvaluated.WithLabelValues(strategy, profile).Inc()
}

func (s *Set) IncAccepted(strategy, profile string) {
	if s == nil {
		return
	}
	s.Accepted.WithLabelValues(strategy, profile).Inc()
}

func (s *Set) IncRejected(strategy, step string) {
	if s == nil {
		return
	}
	s.Rejections.WithLabelValues(strategy, step).Inc()
}

func (s *Set) IncSkipped(strategy, code string) {
	if s == nil {
		return
	}
	s.Skips.WithLabelValues(strategy, code).Inc()
}

func (s *Set) AddSignals(strategy string, n int) {
	if s == nil || n <= 0 {
		return
	}
	s.SignalsEmitted.WithLabelValues(strategy).Add(float64(n))
}

// RecordProviderRequest satisfies provider.Recorder.
func (s *Set) RecordProviderRequest(venue, op, code string, seconds float64) {
	if s == nil {
		return
	}
	s.ProviderRequests.WithLabelValues(venue, op, code).Observe(seconds)
}

// RecordCacheHit satisfies provider.Recorder.
func (s *Set) RecordCacheHit(venue string) {
	if s == nil {
		return
	}
	s.CacheHits.WithLabelValues(venue).Inc()
}

// RecordCacheMiss satisfies provider.Recorder.
func (s *Set) RecordCacheMiss(venue string) {
	if s == nil {
		return
	}
	s.CacheMisses.WithLabelValues(venue).Inc()
}
