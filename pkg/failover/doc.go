// Package failover implements the streaming failover coordinator for market-data
// providers.
//
// # Overview
//
// A logical data feed is described by a Rule: one primary provider and an ordered list
// of backups, plus the thresholds that decide when to leave the primary and when to come
// back to it. Ingestion paths report per-provider outcomes (success with latency, failure
// with a reason, data-quality scores) to the Service. Every report is applied to the
// HealthTracker and then every rule that references the reporting provider is evaluated
// against the post-update counters.
//
// # Decision Engine
//
// Each rule is in one of three modes:
//
//   - primary: the primary provider is active
//   - failover: a backup is active after the active provider breached its thresholds
//   - manual_override: an operator pinned the active provider with ForceFailover
//
// Failover picks the first healthy backup in priority order. A backup is healthy while
// its consecutive failures stay below the rule's failover threshold. Recovery to the
// primary requires RecoveryThreshold consecutive primary successes, so a provider that
// flaps once after recovering does not immediately trigger another failover.
//
// When no backup is healthy the rule stays on its current provider and is flagged
// Degraded, and a no_healthy_backup event is emitted.
//
// # Manual Overrides
//
// ForceFailover pins a provider. Under the sticky policy (default) the pin holds until
// ClearOverride or another ForceFailover. Under the auto_release policy the engine drops
// the pin itself once the pinned provider breaches the failover condition, or once the
// primary meets the recovery threshold while a backup is pinned.
//
// # Concurrency
//
// Health entries and rule states each carry their own mutex; the rule map is guarded by a
// service-level RWMutex that only SyncRules write-locks. Snapshots copy fields under those
// locks and never call out. Events are dispatched after every lock is released.
//
// # Registry
//
// Processes that do not run a streaming session (for example backfill-only mode) leave
// the Registry empty. Callers treat an empty registry as a normal state and answer with
// simulated responses.
//
// Example:
//
//	svc, err := failover.NewService(failover.Config{}, []failover.Rule{{
//	    ID:                "equities",
//	    PrimaryProviderID: "ib",
//	    BackupProviderIDs: []failover.ProviderID{"alpaca", "polygon"},
//	    FailoverThreshold: 3,
//	    RecoveryThreshold: 2,
//	}})
//	if err != nil {
//	    return err
//	}
//	svc.ReportFailure("ib", "websocket closed")
package failover
