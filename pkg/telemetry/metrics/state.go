package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"meridian-hq/feedwatch/pkg/config"
	"meridian-hq/feedwatch/pkg/failover"
)

// StateSource supplies the current rule and provider state at scrape time.
// *failover.Service satisfies it.
type StateSource interface {
	GetRuleSnapshots() []failover.RuleSnapshot
	GetProviderHealthSnapshots() []failover.ProviderHealthSnapshot
}

// StateSourceFunc adapts a lookup that may find no service, such as a
// failover.Registry, to StateSource.
type StateSourceFunc func() (StateSource, bool)

// GetRuleSnapshots implements StateSource.
func (f StateSourceFunc) GetRuleSnapshots() []failover.RuleSnapshot {
	if src, ok := f(); ok {
		return src.GetRuleSnapshots()
	}
	return nil
}

// GetProviderHealthSnapshots implements StateSource.
func (f StateSourceFunc) GetProviderHealthSnapshots() []failover.ProviderHealthSnapshot {
	if src, ok := f(); ok {
		return src.GetProviderHealthSnapshots()
	}
	return nil
}

// StateCollector exports rule and provider state as gauges computed on scrape.
//
// Metrics:
//   - feedwatch_failover_rule_in_failover: 1 while a rule is served by a backup
//   - feedwatch_failover_rule_degraded: 1 while a rule has no healthy provider
//   - feedwatch_failover_rule_manual_override: 1 while an override is active
//   - feedwatch_failover_rule_active_provider: 1 for the provider serving a rule
//   - feedwatch_failover_provider_healthy: 1 for healthy providers
//   - feedwatch_failover_provider_latency_ewma_ms: smoothed latency
type StateCollector struct {
	source StateSource

	inFailover     *prometheus.Desc
	degraded       *prometheus.Desc
	manualOverride *prometheus.Desc
	activeProvider *prometheus.Desc
	healthy        *prometheus.Desc
	latencyEWMA    *prometheus.Desc
}

// NewStateCollector creates a collector reading from source.
func NewStateCollector(cfg *config.MetricsConfig, source StateSource) *StateCollector {
	name := func(n string) string {
		return prometheus.BuildFQName(cfg.Namespace, cfg.Subsystem, n)
	}
	return &StateCollector{
		source: source,
		inFailover: prometheus.NewDesc(name("rule_in_failover"),
			"Whether the rule is currently served by a backup provider", []string{"rule"}, nil),
		degraded: prometheus.NewDesc(name("rule_degraded"),
			"Whether the rule has no healthy provider to serve it", []string{"rule"}, nil),
		manualOverride: prometheus.NewDesc(name("rule_manual_override"),
			"Whether the rule is pinned by a manual override", []string{"rule"}, nil),
		activeProvider: prometheus.NewDesc(name("rule_active_provider"),
			"Provider currently serving the rule", []string{"rule", "provider", "mode"}, nil),
		healthy: prometheus.NewDesc(name("provider_healthy"),
			"Provider health (1=healthy, 0=unhealthy)", []string{"provider"}, nil),
		latencyEWMA: prometheus.NewDesc(name("provider_latency_ewma_ms"),
			"Smoothed provider latency in milliseconds", []string{"provider"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (sc *StateCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- sc.inFailover
	ch <- sc.degraded
	ch <- sc.manualOverride
	ch <- sc.activeProvider
	ch <- sc.healthy
	ch <- sc.latencyEWMA
}

// Collect implements prometheus.Collector.
func (sc *StateCollector) Collect(ch chan<- prometheus.Metric) {
	for _, snap := range sc.source.GetRuleSnapshots() {
		ch <- prometheus.MustNewConstMetric(sc.inFailover, prometheus.GaugeValue, boolValue(snap.InFailover), snap.RuleID)
		ch <- prometheus.MustNewConstMetric(sc.degraded, prometheus.GaugeValue, boolValue(snap.Degraded), snap.RuleID)
		ch <- prometheus.MustNewConstMetric(sc.manualOverride, prometheus.GaugeValue, boolValue(snap.ManualOverride != nil), snap.RuleID)
		ch <- prometheus.MustNewConstMetric(sc.activeProvider, prometheus.GaugeValue, 1,
			snap.RuleID, string(snap.ActiveProviderID), string(snap.Mode))
	}

	for _, h := range sc.source.GetProviderHealthSnapshots() {
		ch <- prometheus.MustNewConstMetric(sc.healthy, prometheus.GaugeValue, boolValue(h.Healthy), string(h.ProviderID))
		if h.TotalSuccesses > 0 {
			ch <- prometheus.MustNewConstMetric(sc.latencyEWMA, prometheus.GaugeValue, h.AverageLatencyMs, string(h.ProviderID))
		}
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
