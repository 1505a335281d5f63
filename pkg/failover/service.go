package failover

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Config configures a Service. Zero values select the defaults.
type Config struct {
	// OverridePolicy controls how manual overrides are released. Defaults to sticky.
	OverridePolicy OverridePolicy

	// LatencyAlpha is the EWMA smoothing factor for provider latency.
	LatencyAlpha float64

	// RecentIssueCapacity bounds each provider's RecentIssues ring.
	RecentIssueCapacity int

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time

	// Logger receives transition logs. Defaults to slog.Default().
	Logger *slog.Logger

	// NewEventID generates event IDs. Defaults to uuid.NewString.
	NewEventID func() string
}

// ruleEntry pairs a rule definition with its runtime state under one lock.
type ruleEntry struct {
	mu    sync.Mutex
	rule  Rule
	state RuleState
}

func (e *ruleEntry) snapshot() RuleSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	snap := RuleSnapshot{
		RuleID:            e.rule.ID,
		InFailover:        e.state.InFailover,
		ActiveProviderID:  e.state.ActiveProviderID,
		PrimaryProviderID: e.rule.PrimaryProviderID,
		Mode:              e.state.Mode(),
		Degraded:          e.state.Degraded,
		LastReason:        e.state.LastReason,
	}
	if e.state.ManualOverride != nil {
		p := *e.state.ManualOverride
		snap.ManualOverride = &p
	}
	if !e.state.LastTransition.IsZero() {
		ts := e.state.LastTransition
		snap.LastTransition = &ts
	}
	return snap
}

// Service is the streaming failover decision engine. It owns the health tracker and
// the runtime state of every rule, evaluates rules on each report and accepts operator
// commands. All methods are safe for concurrent use.
type Service struct {
	policy    OverridePolicy
	tracker   *HealthTracker
	logger    *slog.Logger
	now       func() time.Time
	newID     func() string
	startedAt time.Time

	mu         sync.RWMutex
	rules      map[string]*ruleEntry
	byProvider map[ProviderID][]*ruleEntry

	sinkMu    sync.RWMutex
	sinks     []EventSink
	observers []ReportObserver
}

// NewService creates a service and registers the given rules. Every rule starts on its
// primary provider.
func NewService(cfg Config, rules []Rule) (*Service, error) {
	if cfg.OverridePolicy == "" {
		cfg.OverridePolicy = OverrideSticky
	}
	if !cfg.OverridePolicy.IsValid() {
		return nil, fmt.Errorf("unknown override policy %q (valid: %s, %s)",
			cfg.OverridePolicy, OverrideSticky, OverrideAutoRelease)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.NewEventID == nil {
		cfg.NewEventID = uuid.NewString
	}

	s := &Service{
		policy: cfg.OverridePolicy,
		tracker: NewHealthTracker(TrackerConfig{
			LatencyAlpha:  cfg.LatencyAlpha,
			IssueCapacity: cfg.RecentIssueCapacity,
			Clock:         cfg.Clock,
		}),
		logger:     cfg.Logger.With("component", "failover"),
		now:        cfg.Clock,
		newID:      cfg.NewEventID,
		startedAt:  cfg.Clock(),
		rules:      make(map[string]*ruleEntry),
		byProvider: make(map[ProviderID][]*ruleEntry),
	}

	if err := s.SyncRules(rules); err != nil {
		return nil, err
	}
	return s, nil
}

// OverridePolicy returns the configured override policy.
func (s *Service) OverridePolicy() OverridePolicy {
	return s.policy
}

// Tracker returns the underlying health tracker.
func (s *Service) Tracker() *HealthTracker {
	return s.tracker
}

// AddEventSink registers a sink for transition events.
func (s *Service) AddEventSink(sink EventSink) {
	s.sinkMu.Lock()
	defer s.sinkMu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// AddReportObserver registers an observer for applied reports.
func (s *Service) AddReportObserver(obs ReportObserver) {
	s.sinkMu.Lock()
	defer s.sinkMu.Unlock()
	s.observers = append(s.observers, obs)
}

// ReportSuccess records a successful observation for a provider and re-evaluates every
// rule that references it.
func (s *Service) ReportSuccess(id ProviderID, latencyMs float64) {
	h := s.tracker.ReportSuccess(id, latencyMs)
	s.afterReport(Report{ProviderID: id, Outcome: OutcomeSuccess, LatencyMs: latencyMs, Time: s.now()}, h)
}

// ReportFailure records a failed observation for a provider and re-evaluates every rule
// that references it.
func (s *Service) ReportFailure(id ProviderID, reason string) {
	h := s.tracker.ReportFailure(id, reason)
	s.afterReport(Report{ProviderID: id, Outcome: OutcomeFailure, Reason: reason, Time: s.now()}, h)
}

// ReportQuality records a data-quality score in [0, 1] for a provider and re-evaluates
// every rule that references it.
func (s *Service) ReportQuality(id ProviderID, score float64) {
	h := s.tracker.ReportQuality(id, score)
	s.afterReport(Report{ProviderID: id, Outcome: OutcomeQuality, Quality: score, Time: s.now()}, h)
}

func (s *Service) afterReport(r Report, h ProviderHealth) {
	s.sinkMu.RLock()
	observers := s.observers
	s.sinkMu.RUnlock()
	for _, obs := range observers {
		obs.ObserveReport(r, h)
	}

	s.dispatch(s.evaluateProvider(r.ProviderID))
}

func (s *Service) evaluateProvider(id ProviderID) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var events []Event
	for _, e := range s.byProvider[id] {
		events = append(events, s.evaluate(e)...)
	}
	return events
}

// evaluate applies the transition rules to one rule entry. The caller must hold s.mu
// for reading.
func (s *Service) evaluate(e *ruleEntry) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.rule
	st := &e.state
	now := s.now()
	var events []Event

	if st.ManualOverride != nil {
		held := *st.ManualOverride
		if s.policy != OverrideAutoRelease {
			st.Degraded = s.breach(r, held) != ""
			return nil
		}
		reason := s.releaseReason(r, held)
		if reason == "" {
			st.Degraded = false
			return nil
		}
		st.ManualOverride = nil
		st.LastTransition = now
		st.LastReason = reason
		events = append(events, s.newEvent(EventOverrideReleased, r.ID, held, held, reason, true, now))
	}

	active := st.ActiveProviderID

	if active != r.PrimaryProviderID && s.recovered(r) {
		reason := "primary recovered"
		st.ActiveProviderID = r.PrimaryProviderID
		st.InFailover = false
		st.Degraded = false
		st.LastTransition = now
		st.LastReason = reason
		return append(events, s.newEvent(EventRecovery, r.ID, active, r.PrimaryProviderID, reason, true, now))
	}

	reason := s.breach(r, active)
	if reason == "" {
		st.Degraded = false
		return events
	}

	target, ok := s.firstHealthyBackup(r, active)
	if !ok {
		if !st.Degraded {
			st.Degraded = true
			st.LastReason = reason
			events = append(events, s.newEvent(EventNoHealthyBackup, r.ID, active, "",
				fmt.Sprintf("%s: %s", ErrNoHealthyBackup, reason), true, now))
		}
		return events
	}

	st.ActiveProviderID = target
	st.InFailover = true
	st.Degraded = false
	st.LastTransition = now
	st.LastReason = reason
	return append(events, s.newEvent(EventFailover, r.ID, active, target, reason, true, now))
}

// breach returns a non-empty reason when p violates the rule's failover condition.
// Providers without observations never breach.
func (s *Service) breach(r Rule, p ProviderID) string {
	h, ok := s.tracker.Snapshot(p)
	if !ok {
		return ""
	}
	if h.ConsecutiveFailures >= uint64(r.FailoverThreshold) {
		return fmt.Sprintf("%s reached %d consecutive failures", p, h.ConsecutiveFailures)
	}
	if r.MaxLatencyMs != nil && h.TotalSuccesses > 0 && h.AverageLatencyMs > *r.MaxLatencyMs {
		return fmt.Sprintf("%s average latency %.1fms exceeds %.1fms", p, h.AverageLatencyMs, *r.MaxLatencyMs)
	}
	if r.DataQualityThreshold != nil && h.DataQualityScore != nil && *h.DataQualityScore < *r.DataQualityThreshold {
		return fmt.Sprintf("%s data quality %.2f below %.2f", p, *h.DataQualityScore, *r.DataQualityThreshold)
	}
	return ""
}

// healthy reports whether p can take over for the rule.
func (s *Service) healthy(r Rule, p ProviderID) bool {
	h, ok := s.tracker.Snapshot(p)
	if !ok {
		return true
	}
	return h.ConsecutiveFailures < uint64(r.FailoverThreshold)
}

// recovered reports whether the primary met the recovery threshold without breaching
// the latency or quality limits.
func (s *Service) recovered(r Rule) bool {
	h, ok := s.tracker.Snapshot(r.PrimaryProviderID)
	if !ok || h.ConsecutiveSuccesses < uint64(r.RecoveryThreshold) {
		return false
	}
	return s.breach(r, r.PrimaryProviderID) == ""
}

func (s *Service) firstHealthyBackup(r Rule, exclude ProviderID) (ProviderID, bool) {
	for _, b := range r.BackupProviderIDs {
		if b == exclude {
			continue
		}
		if s.healthy(r, b) {
			return b, true
		}
	}
	return "", false
}

// releaseReason returns why an auto-release override should be dropped, or "".
func (s *Service) releaseReason(r Rule, held ProviderID) string {
	if reason := s.breach(r, held); reason != "" {
		return "override target breached: " + reason
	}
	if held != r.PrimaryProviderID && s.recovered(r) {
		return "primary recovered while override held"
	}
	return ""
}

// ForceFailover pins the rule to target. It returns false when the rule is unknown or
// target is not part of the rule; the state is unchanged in that case.
func (s *Service) ForceFailover(ruleID string, target ProviderID) bool {
	return s.ForceFailoverErr(ruleID, target) == nil
}

// ForceFailoverErr is ForceFailover with a typed error: *UnknownRuleError or
// *InvalidTargetError.
func (s *Service) ForceFailoverErr(ruleID string, target ProviderID) error {
	ev, err := s.force(ruleID, target)
	if err != nil {
		s.logger.Warn("force failover rejected", "rule", ruleID, "target", target, "error", err)
		return err
	}
	s.dispatch([]Event{ev})
	return nil
}

func (s *Service) force(ruleID string, target ProviderID) (Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.rules[ruleID]
	if !ok {
		return Event{}, &UnknownRuleError{RuleID: ruleID}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.rule.HasProvider(target) {
		return Event{}, &InvalidTargetError{RuleID: ruleID, Target: target, Allowed: e.rule.Providers()}
	}

	now := s.now()
	from := e.state.ActiveProviderID
	pinned := target
	e.state = RuleState{
		ActiveProviderID: target,
		InFailover:       target != e.rule.PrimaryProviderID,
		ManualOverride:   &pinned,
		LastTransition:   now,
		LastReason:       "manual override",
	}
	return s.newEvent(EventManualOverride, ruleID, from, target, "manual override", false, now), nil
}

// ClearOverride drops a rule's manual override and resumes automatic evaluation against
// the current health. It reports whether an override was present.
func (s *Service) ClearOverride(ruleID string) (bool, error) {
	events, err := s.clearOverride(ruleID)
	if err != nil {
		return false, err
	}
	s.dispatch(events)
	return len(events) > 0, nil
}

func (s *Service) clearOverride(ruleID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.rules[ruleID]
	if !ok {
		return nil, &UnknownRuleError{RuleID: ruleID}
	}

	e.mu.Lock()
	if e.state.ManualOverride == nil {
		e.mu.Unlock()
		return nil, nil
	}
	now := s.now()
	held := *e.state.ManualOverride
	e.state.ManualOverride = nil
	e.state.LastTransition = now
	e.state.LastReason = "override cleared"
	ev := s.newEvent(EventOverrideCleared, ruleID, held, held, "override cleared", false, now)
	e.mu.Unlock()

	return append([]Event{ev}, s.evaluate(e)...), nil
}

// SyncRules replaces the rule set. New rules start on their primary, removed rules are
// dropped, and changed rules keep their state while the active provider is still part
// of the new definition; otherwise they reset to the primary. Added and changed rules
// are then evaluated against the current health. The whole set is rejected when any
// rule is invalid.
func (s *Service) SyncRules(rules []Rule) error {
	if err := validateRuleSet(rules); err != nil {
		return err
	}

	now := s.now()
	var events []Event
	var touched []*ruleEntry

	s.mu.Lock()
	next := make(map[string]*ruleEntry, len(rules))
	for _, r := range rules {
		r = r.clone()
		e, ok := s.rules[r.ID]
		if !ok {
			e = &ruleEntry{rule: r, state: RuleState{ActiveProviderID: r.PrimaryProviderID}}
			next[r.ID] = e
			touched = append(touched, e)
			events = append(events, s.newEvent(EventRuleAdded, r.ID, "", r.PrimaryProviderID, "rule added", true, now))
			continue
		}

		e.mu.Lock()
		if !e.rule.Equal(r) {
			touched = append(touched, e)
			e.rule = r
			if from := e.state.ActiveProviderID; !r.HasProvider(from) {
				e.state = RuleState{
					ActiveProviderID: r.PrimaryProviderID,
					LastTransition:   now,
					LastReason:       "active provider removed from rule",
				}
				events = append(events, s.newEvent(EventRuleReset, r.ID, from, r.PrimaryProviderID,
					"active provider removed from rule", true, now))
			} else {
				e.state.InFailover = from != r.PrimaryProviderID
				e.state.Degraded = false
			}
		}
		e.mu.Unlock()
		next[r.ID] = e
	}

	var removed []string
	for id := range s.rules {
		if _, ok := next[id]; !ok {
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)
	for _, id := range removed {
		events = append(events, s.newEvent(EventRuleRemoved, id, "", "", "rule removed", true, now))
	}

	s.rules = next
	s.byProvider = indexByProvider(next)
	s.mu.Unlock()

	for _, e := range touched {
		events = append(events, s.evaluate(e)...)
	}

	s.dispatch(events)
	return nil
}

func indexByProvider(rules map[string]*ruleEntry) map[ProviderID][]*ruleEntry {
	ids := make([]string, 0, len(rules))
	for id := range rules {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	index := make(map[ProviderID][]*ruleEntry)
	for _, id := range ids {
		e := rules[id]
		for _, p := range e.rule.Providers() {
			index[p] = append(index[p], e)
		}
	}
	return index
}

// Rules returns copies of the registered rule definitions sorted by ID.
func (s *Service) Rules() []Rule {
	s.mu.RLock()
	out := make([]Rule, 0, len(s.rules))
	for _, e := range s.rules {
		e.mu.Lock()
		out = append(out, e.rule.clone())
		e.mu.Unlock()
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Rule returns a copy of one rule definition.
func (s *Service) Rule(id string) (Rule, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.rules[id]
	if !ok {
		return Rule{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rule.clone(), true
}

// GetRuleSnapshots returns the runtime state of every rule sorted by rule ID.
func (s *Service) GetRuleSnapshots() []RuleSnapshot {
	s.mu.RLock()
	out := make([]RuleSnapshot, 0, len(s.rules))
	for _, e := range s.rules {
		out = append(out, e.snapshot())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].RuleID < out[j].RuleID })
	return out
}

// GetRuleSnapshot returns the runtime state of one rule.
func (s *Service) GetRuleSnapshot(ruleID string) (RuleSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.rules[ruleID]
	if !ok {
		return RuleSnapshot{}, &UnknownRuleError{RuleID: ruleID}
	}
	return e.snapshot(), nil
}

// providerContext is the rule-derived information attached to a provider snapshot.
type providerContext struct {
	minThreshold uint32
	activeFor    []string
}

// GetProviderHealthSnapshots returns every tracked or rule-referenced provider sorted
// by provider ID.
func (s *Service) GetProviderHealthSnapshots() []ProviderHealthSnapshot {
	contexts := make(map[ProviderID]*providerContext)
	ctxFor := func(p ProviderID) *providerContext {
		c, ok := contexts[p]
		if !ok {
			c = &providerContext{}
			contexts[p] = c
		}
		return c
	}

	s.mu.RLock()
	for id, e := range s.rules {
		e.mu.Lock()
		threshold := e.rule.FailoverThreshold
		providers := e.rule.Providers()
		active := e.state.ActiveProviderID
		e.mu.Unlock()

		for _, p := range providers {
			c := ctxFor(p)
			if c.minThreshold == 0 || threshold < c.minThreshold {
				c.minThreshold = threshold
			}
		}
		c := ctxFor(active)
		c.activeFor = append(c.activeFor, id)
	}
	s.mu.RUnlock()

	health := s.tracker.SnapshotAll()
	out := make([]ProviderHealthSnapshot, 0, len(health)+len(contexts))
	seen := make(map[ProviderID]bool, len(health))
	for _, h := range health {
		seen[h.ProviderID] = true
		out = append(out, buildProviderSnapshot(h, h.Reported(), contexts[h.ProviderID]))
	}
	for p, c := range contexts {
		if !seen[p] {
			out = append(out, buildProviderSnapshot(ProviderHealth{ProviderID: p, RecentIssues: []string{}}, false, c))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ProviderID < out[j].ProviderID })
	return out
}

func buildProviderSnapshot(h ProviderHealth, observed bool, c *providerContext) ProviderHealthSnapshot {
	threshold := uint64(1)
	activeFor := []string{}
	if c != nil {
		if c.minThreshold > 0 {
			threshold = uint64(c.minThreshold)
		}
		activeFor = append(activeFor, c.activeFor...)
		sort.Strings(activeFor)
	}
	return ProviderHealthSnapshot{
		ProviderHealth: h,
		Observed:       observed,
		Healthy:        !h.Stale && h.ConsecutiveFailures < threshold,
		ActiveForRules: activeFor,
	}
}

// CheckStaleness flags providers silent for longer than maxSilence and emits one
// provider_stale event per newly stale provider. Rule-referenced providers that never
// reported are flagged once the service itself is older than maxSilence. Staleness does
// not trigger failover.
func (s *Service) CheckStaleness(maxSilence time.Duration) []ProviderID {
	now := s.now()
	marked := s.tracker.MarkStale(maxSilence, now)

	if now.Sub(s.startedAt) > maxSilence {
		s.mu.RLock()
		referenced := make([]ProviderID, 0, len(s.byProvider))
		for p := range s.byProvider {
			referenced = append(referenced, p)
		}
		s.mu.RUnlock()

		for _, p := range referenced {
			if s.tracker.markSilent(p) {
				marked = append(marked, p)
			}
		}
	}
	if len(marked) == 0 {
		return nil
	}
	sort.Slice(marked, func(i, j int) bool { return marked[i] < marked[j] })

	reason := fmt.Sprintf("no reports for %s", maxSilence)
	events := make([]Event, 0, len(marked))
	for _, p := range marked {
		ev := s.newEvent(EventProviderStale, "", "", "", reason, true, now)
		ev.ProviderID = p
		events = append(events, ev)
	}
	s.dispatch(events)
	return marked
}

func (s *Service) newEvent(t EventType, ruleID string, from, to ProviderID, reason string, automatic bool, at time.Time) Event {
	return Event{
		ID:           s.newID(),
		Type:         t,
		RuleID:       ruleID,
		FromProvider: from,
		ToProvider:   to,
		Reason:       reason,
		Automatic:    automatic,
		Timestamp:    at,
	}
}

// dispatch logs events and hands them to every sink. Callers must not hold any lock.
func (s *Service) dispatch(events []Event) {
	if len(events) == 0 {
		return
	}

	s.sinkMu.RLock()
	sinks := s.sinks
	s.sinkMu.RUnlock()

	for _, ev := range events {
		s.logEvent(ev)
		for _, sink := range sinks {
			sink.HandleEvent(ev)
		}
	}
}

func (s *Service) logEvent(ev Event) {
	switch ev.Type {
	case EventFailover:
		s.logger.Warn("failover triggered",
			"rule", ev.RuleID, "from", ev.FromProvider, "to", ev.ToProvider, "reason", ev.Reason)
	case EventNoHealthyBackup:
		s.logger.Error("no healthy backup available",
			"rule", ev.RuleID, "active", ev.FromProvider, "reason", ev.Reason)
	case EventProviderStale:
		s.logger.Warn("provider stale", "provider", ev.ProviderID, "reason", ev.Reason)
	case EventRuleAdded, EventRuleRemoved:
		s.logger.Debug("rule set changed", "rule", ev.RuleID, "type", ev.Type)
	default:
		s.logger.Info("failover state changed",
			"rule", ev.RuleID, "type", ev.Type, "from", ev.FromProvider, "to", ev.ToProvider, "reason", ev.Reason)
	}
}
