package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"meridian-hq/feedwatch/pkg/config"
)

// ProviderMetrics tracks metrics derived from provider health reports.
//
// Metrics:
//   - feedwatch_failover_provider_reports_total: Reports by provider and outcome
//   - feedwatch_failover_provider_latency_seconds: Reported delivery latency
//   - feedwatch_failover_provider_quality_score: Last reported quality score
//   - feedwatch_failover_provider_consecutive_failures: Current failure streak
//   - feedwatch_failover_provider_stale_total: Times a provider went silent
type ProviderMetrics struct {
	reports             *prometheus.CounterVec
	latency             *prometheus.HistogramVec
	quality             *prometheus.GaugeVec
	consecutiveFailures *prometheus.GaugeVec
	stale               *prometheus.CounterVec
}

// LatencyBuckets covers market data delivery latencies from 1ms to 10s.
var LatencyBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// NewProviderMetrics creates and registers provider metrics with the provided registry.
func NewProviderMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ProviderMetrics {
	pm := &ProviderMetrics{
		reports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_reports_total",
				Help:      "Total number of provider health reports by outcome",
			},
			[]string{"provider", "outcome"},
		),

		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_latency_seconds",
				Help:      "Reported provider delivery latency in seconds",
				Buckets:   LatencyBuckets,
			},
			[]string{"provider"},
		),

		quality: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_quality_score",
				Help:      "Last reported data quality score (0-1)",
			},
			[]string{"provider"},
		),

		consecutiveFailures: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_consecutive_failures",
				Help:      "Current consecutive failure count per provider",
			},
			[]string{"provider"},
		),

		stale: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "provider_stale_total",
				Help:      "Total number of times a provider was marked stale",
			},
			[]string{"provider"},
		),
	}

	registry.MustRegister(
		pm.reports,
		pm.latency,
		pm.quality,
		pm.consecutiveFailures,
		pm.stale,
	)

	return pm
}

// RecordReport counts one report.
func (pm *ProviderMetrics) RecordReport(provider, outcome string) {
	pm.reports.WithLabelValues(provider, outcome).Inc()
}

// RecordLatency observes a latency sample given in milliseconds.
func (pm *ProviderMetrics) RecordLatency(provider string, latencyMs float64) {
	if latencyMs < 0 {
		latencyMs = 0
	}
	pm.latency.WithLabelValues(provider).Observe(latencyMs / 1000)
}

// UpdateQuality sets the last quality score.
func (pm *ProviderMetrics) UpdateQuality(provider string, score float64) {
	pm.quality.WithLabelValues(provider).Set(score)
}

// UpdateConsecutiveFailures sets the current failure streak.
func (pm *ProviderMetrics) UpdateConsecutiveFailures(provider string, failures uint64) {
	pm.consecutiveFailures.WithLabelValues(provider).Set(float64(failures))
}

// RecordStale counts a stale transition.
func (pm *ProviderMetrics) RecordStale(provider string) {
	pm.stale.WithLabelValues(provider).Inc()
}
