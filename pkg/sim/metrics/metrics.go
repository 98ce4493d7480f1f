// Package metrics provides Prometheus metrics for the simulation service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SimMetrics collects and exposes simulation-related Prometheus metrics.
type SimMetrics struct {
	registry *prometheus.Registry

	// Per-game simulation
	GamesSimulated *prometheus.CounterVec
	GameFailures   *prometheus.CounterVec
	TradesTotal    *prometheus.CounterVec
	AlignedPoints  prometheus.Histogram

	// Cache
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Bulk runs
	BulkRuns      *prometheus.CounterVec
	BulkDuration  prometheus.Histogram
	ActiveWorkers prometheus.Gauge
}

// New creates a simulation metrics collector with its own registry.
func New() *SimMetrics {
	registry := prometheus.NewRegistry()

	m := &SimMetrics{
		registry: registry,

		GamesSimulated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "divergence_games_simulated_total",
				Help: "Games simulated, by result source",
			},
			[]string{"source"}, // "cache" or "computed"
		),
		GameFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "divergence_game_failures_total",
				Help: "Per-game failures, by reason",
			},
			[]string{"reason"},
		),
		TradesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "divergence_trades_total",
				Help: "Simulated trades produced, by position type",
			},
			[]string{"position"},
		),
		AlignedPoints: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "divergence_aligned_points",
				Help:    "Aligned points surviving per game",
				Buckets: prometheus.ExponentialBuckets(8, 2, 10), // 8 to ~4k
			},
		),

		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "divergence_cache_hits_total",
			Help: "Completed-game results served from cache",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "divergence_cache_misses_total",
			Help: "Cache lookups that required a fresh simulation",
		}),

		BulkRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "divergence_bulk_runs_total",
				Help: "Bulk backtest runs, by final status",
			},
			[]string{"status"},
		),
		BulkDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "divergence_bulk_duration_seconds",
				Help:    "Wall time of bulk backtest runs",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~400s
			},
		),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "divergence_active_workers",
			Help: "Workers currently simulating games",
		}),
	}

	registry.MustRegister(
		m.GamesSimulated,
		m.GameFailures,
		m.TradesTotal,
		m.AlignedPoints,
		m.CacheHits,
		m.CacheMisses,
		m.BulkRuns,
		m.BulkDuration,
		m.ActiveWorkers,
	)

	return m
}

// Registry returns the prometheus registry for serving /metrics.
func (m *SimMetrics) Registry() *prometheus.Registry {
	return m.registry
}
