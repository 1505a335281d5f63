package failover

import (
	"math"
	"reflect"
	"testing"
	"time"
)

func TestHealthTracker_CounterReset(t *testing.T) {
	tracker := NewHealthTracker(TrackerConfig{})

	tracker.ReportFailure("ib", "timeout")
	tracker.ReportFailure("ib", "timeout")
	h := tracker.ReportSuccess("ib", 12)
	if h.ConsecutiveFailures != 0 || h.ConsecutiveSuccesses != 1 {
		t.Errorf("after success: failures=%d successes=%d, want 0 and 1",
			h.ConsecutiveFailures, h.ConsecutiveSuccesses)
	}

	tracker.ReportSuccess("ib", 12)
	h = tracker.ReportFailure("ib", "reset by peer")
	if h.ConsecutiveSuccesses != 0 || h.ConsecutiveFailures != 1 {
		t.Errorf("after failure: failures=%d successes=%d, want 1 and 0",
			h.ConsecutiveFailures, h.ConsecutiveSuccesses)
	}
	if h.TotalSuccesses != 2 || h.TotalFailures != 3 {
		t.Errorf("totals = %d/%d, want 2/3", h.TotalSuccesses, h.TotalFailures)
	}
	if h.LastSuccessTime == nil || h.LastFailureTime == nil {
		t.Error("last success and failure times should be set")
	}
}

func TestHealthTracker_LatencyEWMA(t *testing.T) {
	tests := []struct {
		name    string
		alpha   float64
		samples []float64
		want    float64
	}{
		{name: "first sample seeds", alpha: 0.2, samples: []float64{100}, want: 100},
		{name: "default alpha smoothing", alpha: 0, samples: []float64{100, 200}, want: 120},
		{name: "alpha one tracks last", alpha: 1, samples: []float64{100, 40}, want: 40},
		{name: "negative clamps to zero", alpha: 0.5, samples: []float64{100, -50}, want: 50},
		{name: "nan ignored", alpha: 0.5, samples: []float64{80, math.NaN()}, want: 80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewHealthTracker(TrackerConfig{LatencyAlpha: tt.alpha})
			var h ProviderHealth
			for _, s := range tt.samples {
				h = tracker.ReportSuccess("p", s)
			}
			if math.Abs(h.AverageLatencyMs-tt.want) > 1e-9 {
				t.Errorf("AverageLatencyMs = %v, want %v", h.AverageLatencyMs, tt.want)
			}
		})
	}
}

func TestHealthTracker_RecentIssuesRing(t *testing.T) {
	tracker := NewHealthTracker(TrackerConfig{IssueCapacity: 3})

	for _, reason := range []string{"a", "b", "", "c", "d"} {
		tracker.ReportFailure("p", reason)
	}

	h, ok := tracker.Snapshot("p")
	if !ok {
		t.Fatal("Snapshot() ok = false")
	}
	if want := []string{"b", "c", "d"}; !reflect.DeepEqual(h.RecentIssues, want) {
		t.Errorf("RecentIssues = %v, want %v", h.RecentIssues, want)
	}

	h.RecentIssues[0] = "mutated"
	again, _ := tracker.Snapshot("p")
	if again.RecentIssues[0] != "b" {
		t.Error("snapshot shares RecentIssues with the tracker")
	}
}

func TestHealthTracker_ReportQuality(t *testing.T) {
	tests := []struct {
		score float64
		want  float64
	}{
		{score: 0.75, want: 0.75},
		{score: 1.5, want: 1},
		{score: -0.1, want: 0},
	}

	for _, tt := range tests {
		tracker := NewHealthTracker(TrackerConfig{})
		h := tracker.ReportQuality("p", tt.score)
		if h.DataQualityScore == nil || *h.DataQualityScore != tt.want {
			t.Errorf("ReportQuality(%v) score = %v, want %v", tt.score, h.DataQualityScore, tt.want)
		}
		if h.ConsecutiveSuccesses != 0 || h.ConsecutiveFailures != 0 {
			t.Errorf("ReportQuality(%v) changed counters", tt.score)
		}
	}
}

func TestHealthTracker_SnapshotUnknown(t *testing.T) {
	tracker := NewHealthTracker(TrackerConfig{})
	if _, ok := tracker.Snapshot("missing"); ok {
		t.Error("Snapshot() ok = true for a provider that never reported")
	}
	if got := tracker.SnapshotAll(); len(got) != 0 {
		t.Errorf("SnapshotAll() = %v, want empty", got)
	}
}

func TestHealthTracker_SnapshotAllSorted(t *testing.T) {
	tracker := NewHealthTracker(TrackerConfig{})
	for _, id := range []ProviderID{"polygon", "alpaca", "ib"} {
		tracker.ReportSuccess(id, 1)
	}

	all := tracker.SnapshotAll()
	var got []ProviderID
	for _, h := range all {
		got = append(got, h.ProviderID)
	}
	if want := []ProviderID{"alpaca", "ib", "polygon"}; !reflect.DeepEqual(got, want) {
		t.Errorf("SnapshotAll() order = %v, want %v", got, want)
	}
}

func TestHealthTracker_MarkStale(t *testing.T) {
	clock := newFakeClock()
	tracker := NewHealthTracker(TrackerConfig{Clock: clock.Now})

	tracker.ReportSuccess("ib", 5)
	clock.Advance(30 * time.Second)
	tracker.ReportFailure("alpaca", "timeout")
	tracker.ReportQuality("polygon", 0.9)

	clock.Advance(45 * time.Second)
	marked := tracker.MarkStale(time.Minute, clock.Now())
	if want := []ProviderID{"ib"}; !reflect.DeepEqual(marked, want) {
		t.Fatalf("MarkStale() = %v, want %v", marked, want)
	}

	if again := tracker.MarkStale(time.Minute, clock.Now()); len(again) != 0 {
		t.Errorf("second MarkStale() = %v, want none", again)
	}

	h := tracker.ReportSuccess("ib", 5)
	if h.Stale {
		t.Error("report should clear the stale flag")
	}
}
