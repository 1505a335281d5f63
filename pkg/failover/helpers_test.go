package failover

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 4, 14, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) HandleEvent(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *eventRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *eventRecorder) Types() []EventType {
	events := r.Events()
	out := make([]EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("evt-%d", n)
	}
}

func r1Rule() Rule {
	return Rule{
		ID:                "r1",
		PrimaryProviderID: "ib",
		BackupProviderIDs: []ProviderID{"alpaca"},
		FailoverThreshold: 3,
		RecoveryThreshold: 2,
	}
}

func threeProviderRule() Rule {
	return Rule{
		ID:                "equities",
		PrimaryProviderID: "ib",
		BackupProviderIDs: []ProviderID{"alpaca", "polygon"},
		FailoverThreshold: 3,
		RecoveryThreshold: 2,
	}
}

// newTestService builds a service with a fake clock and an attached event recorder.
func newTestService(t *testing.T, cfg Config, rules ...Rule) (*Service, *eventRecorder, *fakeClock) {
	t.Helper()

	clock := newFakeClock()
	cfg.Clock = clock.Now
	cfg.NewEventID = sequentialIDs()

	svc, err := NewService(cfg, rules)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	rec := &eventRecorder{}
	svc.AddEventSink(rec)
	return svc, rec, clock
}

func mustSnapshot(t *testing.T, svc *Service, ruleID string) RuleSnapshot {
	t.Helper()
	snap, err := svc.GetRuleSnapshot(ruleID)
	if err != nil {
		t.Fatalf("GetRuleSnapshot(%q) error = %v", ruleID, err)
	}
	return snap
}

func equalTypes(a, b []EventType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func floatPtr(v float64) *float64 { return &v }
