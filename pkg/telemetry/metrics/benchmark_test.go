package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"meridian-hq/feedwatch/pkg/failover"
)

func Benchmark_Collector_ObserveReport(b *testing.B) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	r := failover.Report{ProviderID: "ib", Outcome: failover.OutcomeSuccess, LatencyMs: 12}
	h := failover.ProviderHealth{ProviderID: "ib"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		collector.ObserveReport(r, h)
	}
}

func Benchmark_Collector_ObserveReport_Parallel(b *testing.B) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	r := failover.Report{ProviderID: "ib", Outcome: failover.OutcomeFailure, Reason: "timeout"}
	h := failover.ProviderHealth{ProviderID: "ib", ConsecutiveFailures: 1}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			collector.ObserveReport(r, h)
		}
	})
}

func Benchmark_Collector_HandleEvent(b *testing.B) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())
	ev := failover.Event{Type: failover.EventFailover, RuleID: "r1", Automatic: true}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		collector.HandleEvent(ev)
	}
}
