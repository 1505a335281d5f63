// Package metrics provides Prometheus metrics collection for feedwatch.
//
// # Overview
//
// A Collector attaches to a failover.Service as both an event sink and a
// report observer, and additionally exports the current rule and provider
// state through a scrape-time collector.
//
// # Metrics Categories
//
//   - Failover Metrics: transition events by rule, type and trigger
//   - Provider Metrics: reports by outcome, latency, quality, failure streaks
//   - State Metrics: in-failover, degraded, override and active provider per rule
//   - HTTP Metrics: API request count and duration
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	svc.AddEventSink(collector)
//	svc.AddReportObserver(collector)
//	_ = collector.WatchState(svc)
//
//	mux.Handle("GET /metrics", collector.Handler())
//
// # Prometheus Endpoint
//
//	# HELP feedwatch_failover_events_total Total number of failover events by rule and type
//	# TYPE feedwatch_failover_events_total counter
//	feedwatch_failover_events_total{automatic="true",rule="equities",type="failover"} 3
//
// # Cardinality Management
//
// Provider IDs arrive from the push endpoint and are therefore bounded: after
// DefaultMaxProviderLabels distinct values, new providers are reported as
// "other". HTTP metrics are labelled by route pattern rather than raw path.
package metrics
