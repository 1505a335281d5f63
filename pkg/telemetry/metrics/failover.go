package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"meridian-hq/feedwatch/pkg/config"
)

// FailoverMetrics tracks failover transitions.
//
// Metrics:
//   - feedwatch_failover_events_total: Events by rule, type and trigger
type FailoverMetrics struct {
	events *prometheus.CounterVec
}

// NewFailoverMetrics creates and registers failover metrics with the provided registry.
func NewFailoverMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *FailoverMetrics {
	fm := &FailoverMetrics{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "events_total",
				Help:      "Total number of failover events by rule and type",
			},
			[]string{"rule", "type", "automatic"},
		),
	}

	registry.MustRegister(fm.events)

	return fm
}

// RecordEvent counts one event. Provider-scoped events have an empty rule.
func (fm *FailoverMetrics) RecordEvent(ruleID, eventType string, automatic bool) {
	fm.events.WithLabelValues(ruleID, eventType, strconv.FormatBool(automatic)).Inc()
}
