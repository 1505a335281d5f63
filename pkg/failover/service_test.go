package failover

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"
)

func TestService_R1Scenario(t *testing.T) {
	svc, rec, _ := newTestService(t, Config{}, r1Rule())

	for i := 0; i < 3; i++ {
		svc.ReportFailure("ib", "websocket closed")
	}
	snap := mustSnapshot(t, svc, "r1")
	if !snap.InFailover || snap.ActiveProviderID != "alpaca" || snap.Mode != ModeFailover {
		t.Fatalf("after 3 failures: %+v, want failover to alpaca", snap)
	}

	svc.ReportSuccess("ib", 20)
	snap = mustSnapshot(t, svc, "r1")
	if snap.ActiveProviderID != "alpaca" {
		t.Fatalf("after 1 success: active = %s, want alpaca", snap.ActiveProviderID)
	}

	svc.ReportSuccess("ib", 20)
	snap = mustSnapshot(t, svc, "r1")
	if snap.InFailover || snap.ActiveProviderID != "ib" || snap.Mode != ModePrimary {
		t.Fatalf("after 2 successes: %+v, want recovery to ib", snap)
	}

	want := []EventType{EventFailover, EventRecovery}
	if got := rec.Types(); !equalTypes(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
	events := rec.Events()
	if events[0].FromProvider != "ib" || events[0].ToProvider != "alpaca" || !events[0].Automatic {
		t.Errorf("failover event = %+v", events[0])
	}
	if events[1].FromProvider != "alpaca" || events[1].ToProvider != "ib" {
		t.Errorf("recovery event = %+v", events[1])
	}
}

func TestService_ThresholdTrigger(t *testing.T) {
	for _, k := range []uint32{1, 2, 5} {
		t.Run(fmt.Sprintf("threshold_%d", k), func(t *testing.T) {
			rule := r1Rule()
			rule.FailoverThreshold = k
			svc, _, _ := newTestService(t, Config{}, rule)

			for i := uint32(1); i < k; i++ {
				svc.ReportFailure("ib", "timeout")
			}
			if snap := mustSnapshot(t, svc, "r1"); snap.InFailover {
				t.Fatalf("failed over after %d failures, threshold %d", k-1, k)
			}

			svc.ReportFailure("ib", "timeout")
			snap := mustSnapshot(t, svc, "r1")
			if !snap.InFailover || snap.ActiveProviderID != "alpaca" {
				t.Errorf("after %d failures: %+v, want failover", k, snap)
			}
		})
	}
}

func TestService_RecoveryHysteresis(t *testing.T) {
	rule := r1Rule()
	rule.RecoveryThreshold = 3
	svc, _, _ := newTestService(t, Config{}, rule)

	for i := 0; i < 3; i++ {
		svc.ReportFailure("ib", "timeout")
	}

	svc.ReportSuccess("ib", 10)
	svc.ReportSuccess("ib", 10)
	svc.ReportFailure("ib", "flap")
	svc.ReportSuccess("ib", 10)
	svc.ReportSuccess("ib", 10)
	if snap := mustSnapshot(t, svc, "r1"); snap.ActiveProviderID != "alpaca" {
		t.Fatalf("recovered without %d consecutive successes: %+v", rule.RecoveryThreshold, snap)
	}

	svc.ReportSuccess("ib", 10)
	if snap := mustSnapshot(t, svc, "r1"); snap.ActiveProviderID != "ib" {
		t.Fatalf("did not recover after %d consecutive successes: %+v", rule.RecoveryThreshold, snap)
	}

	// a single failure right after recovery must not fail over again
	svc.ReportFailure("ib", "flap")
	if snap := mustSnapshot(t, svc, "r1"); snap.InFailover {
		t.Errorf("single failure after recovery triggered failover: %+v", snap)
	}
}

func TestService_PriorityOrder(t *testing.T) {
	rule := Rule{
		ID:                "feed",
		PrimaryProviderID: "p",
		BackupProviderIDs: []ProviderID{"a", "b", "c"},
		FailoverThreshold: 2,
		RecoveryThreshold: 2,
	}
	svc, _, _ := newTestService(t, Config{}, rule)

	svc.ReportFailure("a", "down")
	svc.ReportFailure("a", "down")
	svc.ReportFailure("p", "down")
	svc.ReportFailure("p", "down")

	snap := mustSnapshot(t, svc, "feed")
	if snap.ActiveProviderID != "b" {
		t.Fatalf("active = %s, want first healthy backup b", snap.ActiveProviderID)
	}

	svc.ReportFailure("b", "down")
	svc.ReportFailure("b", "down")
	snap = mustSnapshot(t, svc, "feed")
	if snap.ActiveProviderID != "c" || !snap.InFailover {
		t.Fatalf("active = %s, want secondary failover to c", snap.ActiveProviderID)
	}
}

func TestService_NoHealthyBackup(t *testing.T) {
	rule := Rule{
		ID:                "feed",
		PrimaryProviderID: "p",
		BackupProviderIDs: []ProviderID{"a", "b"},
		FailoverThreshold: 2,
		RecoveryThreshold: 2,
	}
	svc, rec, _ := newTestService(t, Config{}, rule)

	for _, id := range []ProviderID{"a", "a", "b", "b", "p", "p", "p", "p"} {
		svc.ReportFailure(id, "down")
	}

	snap := mustSnapshot(t, svc, "feed")
	if snap.ActiveProviderID != "p" || !snap.Degraded || snap.InFailover {
		t.Fatalf("snapshot = %+v, want degraded on p", snap)
	}
	if got, want := rec.Types(), []EventType{EventNoHealthyBackup}; !equalTypes(got, want) {
		t.Errorf("events = %v, want %v (emitted once)", got, want)
	}

	svc.ReportSuccess("b", 15)
	snap = mustSnapshot(t, svc, "feed")
	if snap.ActiveProviderID != "b" || snap.Degraded {
		t.Errorf("snapshot = %+v, want failover to recovered backup b", snap)
	}
}

func TestService_ForceFailoverValidation(t *testing.T) {
	tests := []struct {
		name    string
		ruleID  string
		target  ProviderID
		wantErr error
	}{
		{name: "unknown rule", ruleID: "nope", target: "alpaca", wantErr: ErrUnknownRule},
		{name: "target outside rule", ruleID: "r1", target: "polygon", wantErr: ErrInvalidTarget},
		{name: "empty target", ruleID: "r1", target: "", wantErr: ErrInvalidTarget},
		{name: "backup", ruleID: "r1", target: "alpaca"},
		{name: "primary", ruleID: "r1", target: "ib"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, rec, _ := newTestService(t, Config{}, r1Rule())
			before := svc.GetRuleSnapshots()

			err := svc.ForceFailoverErr(tt.ruleID, tt.target)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ForceFailoverErr() error = %v, want %v", err, tt.wantErr)
				}
				if svc.ForceFailover(tt.ruleID, tt.target) {
					t.Error("ForceFailover() = true for rejected command")
				}
				if after := svc.GetRuleSnapshots(); !reflect.DeepEqual(before, after) {
					t.Errorf("state changed after rejected command: %+v", after)
				}
				if len(rec.Events()) != 0 {
					t.Errorf("rejected command emitted events: %v", rec.Types())
				}
				return
			}

			if err != nil {
				t.Fatalf("ForceFailoverErr() error = %v", err)
			}
			snap := mustSnapshot(t, svc, tt.ruleID)
			if snap.ActiveProviderID != tt.target || snap.Mode != ModeManualOverride {
				t.Errorf("snapshot = %+v, want manual override on %s", snap, tt.target)
			}
			if snap.ManualOverride == nil || *snap.ManualOverride != tt.target {
				t.Errorf("ManualOverride = %v, want %s", snap.ManualOverride, tt.target)
			}
			if snap.InFailover != (tt.target != "ib") {
				t.Errorf("InFailover = %v for target %s", snap.InFailover, tt.target)
			}
		})
	}
}

func TestService_InvalidTargetError(t *testing.T) {
	svc, _, _ := newTestService(t, Config{}, threeProviderRule())

	err := svc.ForceFailoverErr("equities", "binance")
	var target *InvalidTargetError
	if !errors.As(err, &target) {
		t.Fatalf("error = %T, want *InvalidTargetError", err)
	}
	if want := []ProviderID{"ib", "alpaca", "polygon"}; !reflect.DeepEqual(target.Allowed, want) {
		t.Errorf("Allowed = %v, want %v", target.Allowed, want)
	}
}

func TestService_StickyOverride(t *testing.T) {
	svc, rec, _ := newTestService(t, Config{OverridePolicy: OverrideSticky}, threeProviderRule())

	if !svc.ForceFailover("equities", "alpaca") {
		t.Fatal("ForceFailover() = false")
	}

	for i := 0; i < 5; i++ {
		svc.ReportSuccess("ib", 10)
	}
	for i := 0; i < 3; i++ {
		svc.ReportFailure("alpaca", "stream stalled")
	}

	snap := mustSnapshot(t, svc, "equities")
	if snap.Mode != ModeManualOverride || snap.ActiveProviderID != "alpaca" {
		t.Fatalf("sticky override released: %+v", snap)
	}
	if !snap.Degraded {
		t.Error("held provider breached but rule not degraded")
	}

	cleared, err := svc.ClearOverride("equities")
	if err != nil || !cleared {
		t.Fatalf("ClearOverride() = %v, %v; want true, nil", cleared, err)
	}
	snap = mustSnapshot(t, svc, "equities")
	if snap.Mode != ModePrimary || snap.ActiveProviderID != "ib" {
		t.Errorf("after clear: %+v, want recovery to ib", snap)
	}

	want := []EventType{EventManualOverride, EventOverrideCleared, EventRecovery}
	if got := rec.Types(); !equalTypes(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}

	cleared, err = svc.ClearOverride("equities")
	if err != nil || cleared {
		t.Errorf("second ClearOverride() = %v, %v; want false, nil", cleared, err)
	}
	if _, err := svc.ClearOverride("missing"); !errors.Is(err, ErrUnknownRule) {
		t.Errorf("ClearOverride(missing) error = %v, want ErrUnknownRule", err)
	}
}

func TestService_ClearOverrideResumesFailover(t *testing.T) {
	svc, rec, _ := newTestService(t, Config{}, threeProviderRule())

	svc.ForceFailover("equities", "alpaca")
	for i := 0; i < 3; i++ {
		svc.ReportFailure("alpaca", "stream stalled")
	}
	if _, err := svc.ClearOverride("equities"); err != nil {
		t.Fatalf("ClearOverride() error = %v", err)
	}

	snap := mustSnapshot(t, svc, "equities")
	if snap.ActiveProviderID != "polygon" || snap.Mode != ModeFailover {
		t.Errorf("after clear: %+v, want failover to polygon", snap)
	}
	want := []EventType{EventManualOverride, EventOverrideCleared, EventFailover}
	if got := rec.Types(); !equalTypes(got, want) {
		t.Errorf("events = %v, want %v", got, want)
	}
}

func TestService_AutoReleaseOverride(t *testing.T) {
	t.Run("held provider breaches", func(t *testing.T) {
		svc, rec, _ := newTestService(t, Config{OverridePolicy: OverrideAutoRelease}, threeProviderRule())

		svc.ForceFailover("equities", "alpaca")
		for i := 0; i < 3; i++ {
			svc.ReportFailure("alpaca", "stream stalled")
		}

		snap := mustSnapshot(t, svc, "equities")
		if snap.ManualOverride != nil || snap.ActiveProviderID != "polygon" || snap.Mode != ModeFailover {
			t.Fatalf("snapshot = %+v, want released and failed over to polygon", snap)
		}
		want := []EventType{EventManualOverride, EventOverrideReleased, EventFailover}
		if got := rec.Types(); !equalTypes(got, want) {
			t.Errorf("events = %v, want %v", got, want)
		}
	})

	t.Run("primary recovers", func(t *testing.T) {
		svc, rec, _ := newTestService(t, Config{OverridePolicy: OverrideAutoRelease}, threeProviderRule())

		svc.ForceFailover("equities", "polygon")
		svc.ReportSuccess("ib", 10)
		if snap := mustSnapshot(t, svc, "equities"); snap.Mode != ModeManualOverride {
			t.Fatalf("released before recovery threshold: %+v", snap)
		}
		svc.ReportSuccess("ib", 10)

		snap := mustSnapshot(t, svc, "equities")
		if snap.ManualOverride != nil || snap.ActiveProviderID != "ib" || snap.Mode != ModePrimary {
			t.Fatalf("snapshot = %+v, want release and recovery to ib", snap)
		}
		want := []EventType{EventManualOverride, EventOverrideReleased, EventRecovery}
		if got := rec.Types(); !equalTypes(got, want) {
			t.Errorf("events = %v, want %v", got, want)
		}
	})

	t.Run("healthy override holds", func(t *testing.T) {
		svc, _, _ := newTestService(t, Config{OverridePolicy: OverrideAutoRelease}, threeProviderRule())

		svc.ForceFailover("equities", "ib")
		for i := 0; i < 10; i++ {
			svc.ReportSuccess("ib", 10)
			svc.ReportFailure("alpaca", "down")
		}
		if snap := mustSnapshot(t, svc, "equities"); snap.Mode != ModeManualOverride {
			t.Errorf("override on a healthy primary released: %+v", snap)
		}
	})
}

func TestService_LatencyAndQualityBreach(t *testing.T) {
	t.Run("latency", func(t *testing.T) {
		rule := r1Rule()
		rule.MaxLatencyMs = floatPtr(100)
		svc, _, _ := newTestService(t, Config{LatencyAlpha: 1}, rule)

		svc.ReportSuccess("ib", 500)
		if snap := mustSnapshot(t, svc, "r1"); snap.ActiveProviderID != "alpaca" {
			t.Fatalf("latency breach did not fail over: %+v", snap)
		}

		svc.ReportSuccess("ib", 450)
		if snap := mustSnapshot(t, svc, "r1"); snap.ActiveProviderID != "alpaca" {
			t.Fatalf("recovered while latency still breached: %+v", snap)
		}

		svc.ReportSuccess("ib", 20)
		if snap := mustSnapshot(t, svc, "r1"); snap.ActiveProviderID != "ib" {
			t.Errorf("did not recover once latency dropped: %+v", snap)
		}
	})

	t.Run("quality", func(t *testing.T) {
		rule := r1Rule()
		rule.DataQualityThreshold = floatPtr(0.8)
		svc, rec, _ := newTestService(t, Config{}, rule)

		svc.ReportQuality("ib", 0.9)
		if snap := mustSnapshot(t, svc, "r1"); snap.InFailover {
			t.Fatalf("failed over on acceptable quality: %+v", snap)
		}

		svc.ReportQuality("ib", 0.5)
		snap := mustSnapshot(t, svc, "r1")
		if snap.ActiveProviderID != "alpaca" {
			t.Fatalf("quality breach did not fail over: %+v", snap)
		}
		if events := rec.Events(); len(events) != 1 || events[0].Reason == "" {
			t.Errorf("events = %+v, want one failover with a reason", events)
		}
	})
}

func TestService_IdempotentReads(t *testing.T) {
	svc, rec, _ := newTestService(t, Config{}, r1Rule(), threeProviderRule())
	svc.ReportFailure("ib", "timeout")
	svc.ReportSuccess("alpaca", 14)
	svc.ForceFailover("equities", "polygon")
	eventsBefore := len(rec.Events())

	rules1 := svc.GetRuleSnapshots()
	rules2 := svc.GetRuleSnapshots()
	if !reflect.DeepEqual(rules1, rules2) {
		t.Errorf("rule snapshots differ:\n%+v\n%+v", rules1, rules2)
	}

	health1 := svc.GetProviderHealthSnapshots()
	health2 := svc.GetProviderHealthSnapshots()
	if !reflect.DeepEqual(health1, health2) {
		t.Errorf("provider snapshots differ:\n%+v\n%+v", health1, health2)
	}

	if len(rec.Events()) != eventsBefore {
		t.Error("reads emitted events")
	}
	if rules1[0].RuleID != "equities" || rules1[1].RuleID != "r1" {
		t.Errorf("rule snapshots not sorted: %s, %s", rules1[0].RuleID, rules1[1].RuleID)
	}
}

func TestService_ProviderHealthSnapshots(t *testing.T) {
	svc, _, _ := newTestService(t, Config{}, threeProviderRule(), r1Rule())
	for i := 0; i < 3; i++ {
		svc.ReportFailure("ib", "timeout")
	}
	svc.ReportSuccess("unlisted", 3)

	snaps := svc.GetProviderHealthSnapshots()
	byID := make(map[ProviderID]ProviderHealthSnapshot, len(snaps))
	var order []ProviderID
	for _, s := range snaps {
		byID[s.ProviderID] = s
		order = append(order, s.ProviderID)
	}

	if want := []ProviderID{"alpaca", "ib", "polygon", "unlisted"}; !reflect.DeepEqual(order, want) {
		t.Fatalf("providers = %v, want %v", order, want)
	}

	ib := byID["ib"]
	if ib.Healthy || !ib.Observed || ib.ConsecutiveFailures != 3 || len(ib.ActiveForRules) != 0 {
		t.Errorf("ib = %+v", ib)
	}
	alpaca := byID["alpaca"]
	if !alpaca.Healthy || alpaca.Observed {
		t.Errorf("alpaca = %+v, want healthy and unobserved", alpaca)
	}
	if want := []string{"equities", "r1"}; !reflect.DeepEqual(alpaca.ActiveForRules, want) {
		t.Errorf("alpaca.ActiveForRules = %v, want %v", alpaca.ActiveForRules, want)
	}
	if !byID["unlisted"].Healthy {
		t.Error("unlisted provider with no failures should be healthy")
	}
}

func TestService_SyncRules(t *testing.T) {
	svc, rec, _ := newTestService(t, Config{}, r1Rule(), threeProviderRule())
	for i := 0; i < 3; i++ {
		svc.ReportFailure("ib", "timeout")
	}

	t.Run("invalid set rejected", func(t *testing.T) {
		before := svc.GetRuleSnapshots()
		bad := r1Rule()
		bad.BackupProviderIDs = nil
		err := svc.SyncRules([]Rule{bad, threeProviderRule()})
		if !errors.Is(err, ErrInvalidRule) {
			t.Fatalf("SyncRules() error = %v, want ErrInvalidRule", err)
		}
		if after := svc.GetRuleSnapshots(); !reflect.DeepEqual(before, after) {
			t.Error("rejected sync changed state")
		}
	})

	t.Run("duplicate ids rejected", func(t *testing.T) {
		if err := svc.SyncRules([]Rule{r1Rule(), r1Rule()}); !errors.Is(err, ErrInvalidRule) {
			t.Errorf("SyncRules() error = %v, want ErrInvalidRule", err)
		}
	})

	t.Run("changes applied", func(t *testing.T) {
		changed := threeProviderRule()
		changed.BackupProviderIDs = []ProviderID{"polygon", "alpaca"}
		reset := r1Rule()
		reset.BackupProviderIDs = []ProviderID{"polygon"}
		added := Rule{
			ID:                "crypto",
			PrimaryProviderID: "binance",
			BackupProviderIDs: []ProviderID{"coinbase"},
			FailoverThreshold: 2,
			RecoveryThreshold: 2,
		}
		before := len(rec.Events())

		if err := svc.SyncRules([]Rule{changed, reset, added}); err != nil {
			t.Fatalf("SyncRules() error = %v", err)
		}

		if snap := mustSnapshot(t, svc, "equities"); snap.ActiveProviderID != "alpaca" || !snap.InFailover {
			t.Errorf("equities = %+v, want state kept on alpaca", snap)
		}
		// reset to ib, then failed over at once since ib still has 3 failures
		if snap := mustSnapshot(t, svc, "r1"); snap.ActiveProviderID != "polygon" || !snap.InFailover {
			t.Errorf("r1 = %+v, want reset then failover to polygon", snap)
		}
		if snap := mustSnapshot(t, svc, "crypto"); snap.ActiveProviderID != "binance" || snap.Mode != ModePrimary {
			t.Errorf("crypto = %+v, want new rule on primary", snap)
		}

		got := rec.Types()[before:]
		want := []EventType{EventRuleReset, EventRuleAdded, EventFailover}
		if !equalTypes(got, want) {
			t.Errorf("events = %v, want %v", got, want)
		}

		if err := svc.SyncRules([]Rule{added}); err != nil {
			t.Fatalf("SyncRules() error = %v", err)
		}
		if _, err := svc.GetRuleSnapshot("r1"); !errors.Is(err, ErrUnknownRule) {
			t.Errorf("removed rule still present: %v", err)
		}
		if len(svc.Rules()) != 1 {
			t.Errorf("Rules() = %v, want only crypto", svc.Rules())
		}

		// reports for providers of removed rules are still tracked but evaluate nothing
		svc.ReportFailure("polygon", "down")
		if _, ok := svc.Tracker().Snapshot("polygon"); !ok {
			t.Error("tracker dropped report for unreferenced provider")
		}
	})
}

func TestService_SyncRulesReevaluates(t *testing.T) {
	rule := r1Rule()
	rule.FailoverThreshold = 5
	svc, rec, _ := newTestService(t, Config{}, rule)
	for i := 0; i < 3; i++ {
		svc.ReportFailure("ib", "timeout")
	}
	if snap := mustSnapshot(t, svc, "r1"); snap.InFailover {
		t.Fatalf("r1 = %+v, want primary below threshold 5", snap)
	}

	rule.FailoverThreshold = 2
	if err := svc.SyncRules([]Rule{rule}); err != nil {
		t.Fatalf("SyncRules() error = %v", err)
	}

	if snap := mustSnapshot(t, svc, "r1"); snap.ActiveProviderID != "alpaca" || !snap.InFailover {
		t.Errorf("r1 = %+v, want failover to alpaca under the lowered threshold", snap)
	}
	if got := rec.Types(); !equalTypes(got, []EventType{EventFailover}) {
		t.Errorf("events = %v, want [failover]", got)
	}
}

func TestService_RuleCopies(t *testing.T) {
	svc, _, _ := newTestService(t, Config{}, threeProviderRule())

	r, ok := svc.Rule("equities")
	if !ok {
		t.Fatal("Rule() ok = false")
	}
	r.BackupProviderIDs[0] = "mutated"

	again, _ := svc.Rule("equities")
	if again.BackupProviderIDs[0] != "alpaca" {
		t.Error("Rule() returned shared backing array")
	}
	if _, ok := svc.Rule("missing"); ok {
		t.Error("Rule(missing) ok = true")
	}
}

func TestService_CheckStaleness(t *testing.T) {
	svc, rec, clock := newTestService(t, Config{}, r1Rule())

	svc.ReportSuccess("ib", 10)
	clock.Advance(3 * time.Minute)

	marked := svc.CheckStaleness(2 * time.Minute)
	if want := []ProviderID{"alpaca", "ib"}; !reflect.DeepEqual(marked, want) {
		t.Fatalf("CheckStaleness() = %v, want %v", marked, want)
	}
	if again := svc.CheckStaleness(2 * time.Minute); len(again) != 0 {
		t.Errorf("second CheckStaleness() = %v, want none", again)
	}

	events := rec.Events()
	if len(events) != 2 || events[0].Type != EventProviderStale || events[0].ProviderID != "alpaca" {
		t.Fatalf("events = %+v, want two provider_stale events", events)
	}
	if snap := mustSnapshot(t, svc, "r1"); snap.InFailover {
		t.Error("staleness triggered failover")
	}

	svc.ReportSuccess("ib", 10)
	if h, _ := svc.Tracker().Snapshot("ib"); h.Stale {
		t.Error("report did not clear stale flag")
	}

	clock.Advance(3 * time.Minute)
	if marked := svc.CheckStaleness(2 * time.Minute); !reflect.DeepEqual(marked, []ProviderID{"ib"}) {
		t.Errorf("new silence episode = %v, want [ib]", marked)
	}
}

func TestService_SilentProvidersStayUnobserved(t *testing.T) {
	svc, _, clock := newTestService(t, Config{}, r1Rule())
	clock.Advance(3 * time.Minute)

	if marked := svc.CheckStaleness(time.Minute); !reflect.DeepEqual(marked, []ProviderID{"alpaca", "ib"}) {
		t.Fatalf("CheckStaleness() = %v, want [alpaca ib]", marked)
	}

	for _, p := range svc.GetProviderHealthSnapshots() {
		if p.Observed {
			t.Errorf("%s observed = true with no reports", p.ProviderID)
		}
		if !p.Stale || p.Healthy {
			t.Errorf("%s stale = %v healthy = %v, want stale and unhealthy", p.ProviderID, p.Stale, p.Healthy)
		}
	}

	svc.ReportQuality("ib", 0.9)
	for _, p := range svc.GetProviderHealthSnapshots() {
		if want := p.ProviderID == "ib"; p.Observed != want {
			t.Errorf("%s observed = %v, want %v", p.ProviderID, p.Observed, want)
		}
	}
}

func TestService_ReportObserver(t *testing.T) {
	svc, _, _ := newTestService(t, Config{}, r1Rule())

	var got []Report
	svc.AddReportObserver(ReportObserverFunc(func(r Report, h ProviderHealth) {
		if h.ProviderID != r.ProviderID {
			t.Errorf("observer health for %s, report for %s", h.ProviderID, r.ProviderID)
		}
		got = append(got, r)
	}))

	svc.ReportSuccess("ib", 12)
	svc.ReportFailure("alpaca", "timeout")
	svc.ReportQuality("ib", 0.7)

	if len(got) != 3 {
		t.Fatalf("observed %d reports, want 3", len(got))
	}
	want := []Outcome{OutcomeSuccess, OutcomeFailure, OutcomeQuality}
	for i, r := range got {
		if r.Outcome != want[i] {
			t.Errorf("report %d outcome = %s, want %s", i, r.Outcome, want[i])
		}
	}
}

func TestNewService_InvalidPolicy(t *testing.T) {
	if _, err := NewService(Config{OverridePolicy: "forever"}, nil); err == nil {
		t.Error("NewService() accepted unknown override policy")
	}
	svc, err := NewService(Config{}, nil)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	if svc.OverridePolicy() != OverrideSticky {
		t.Errorf("default policy = %s, want sticky", svc.OverridePolicy())
	}
}

func TestService_ConcurrentAccess(t *testing.T) {
	svc, _, _ := newTestService(t, Config{OverridePolicy: OverrideAutoRelease}, r1Rule(), threeProviderRule())
	providers := []ProviderID{"ib", "alpaca", "polygon"}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 300; i++ {
				p := providers[(w+i)%len(providers)]
				switch (w * i) % 5 {
				case 0, 1:
					svc.ReportFailure(p, "timeout")
				case 2:
					svc.ReportQuality(p, 0.9)
				default:
					svc.ReportSuccess(p, float64(i%50))
				}
				if i%50 == 0 {
					svc.ForceFailover("equities", providers[w%len(providers)])
				}
				if i%75 == 0 {
					_, _ = svc.ClearOverride("equities")
				}
			}
		}(w)
	}

	for r := 0; r < 2; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_ = svc.GetRuleSnapshots()
				_ = svc.GetProviderHealthSnapshots()
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			_ = svc.SyncRules([]Rule{r1Rule(), threeProviderRule()})
		}
	}()

	wg.Wait()

	for _, snap := range svc.GetRuleSnapshots() {
		rule, ok := svc.Rule(snap.RuleID)
		if !ok {
			t.Fatalf("rule %s missing", snap.RuleID)
		}
		if !rule.HasProvider(snap.ActiveProviderID) {
			t.Errorf("rule %s active provider %s outside provider set", snap.RuleID, snap.ActiveProviderID)
		}
	}
}
