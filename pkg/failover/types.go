package failover

import (
	"time"
)

// ProviderID identifies a data provider. Provider IDs are opaque keys supplied by
// configuration; the engine never interprets them.
type ProviderID string

// RuleMode is the externally visible state of a rule.
type RuleMode string

const (
	// ModePrimary means the primary provider is active.
	ModePrimary RuleMode = "primary"

	// ModeFailover means a backup provider is active after an automatic failover.
	ModeFailover RuleMode = "failover"

	// ModeManualOverride means an operator pinned the active provider.
	ModeManualOverride RuleMode = "manual_override"
)

// OverridePolicy controls when a manual override is released.
type OverridePolicy string

const (
	// OverrideSticky keeps a manual override until it is cleared or replaced.
	OverrideSticky OverridePolicy = "sticky"

	// OverrideAutoRelease lets the engine drop a manual override when the pinned
	// provider breaches the failover condition, or when the primary recovers while a
	// backup is pinned.
	OverrideAutoRelease OverridePolicy = "auto_release"
)

// IsValid reports whether p is a known policy.
func (p OverridePolicy) IsValid() bool {
	switch p {
	case OverrideSticky, OverrideAutoRelease:
		return true
	}
	return false
}

// ProviderHealth is a copy of one provider's rolling health counters.
type ProviderHealth struct {
	ProviderID           ProviderID `json:"providerId"`
	ConsecutiveFailures  uint64     `json:"consecutiveFailures"`
	ConsecutiveSuccesses uint64     `json:"consecutiveSuccesses"`
	TotalSuccesses       uint64     `json:"totalSuccesses"`
	TotalFailures        uint64     `json:"totalFailures"`
	LastSuccessTime      *time.Time `json:"lastSuccessTime,omitempty"`
	LastFailureTime      *time.Time `json:"lastFailureTime,omitempty"`
	AverageLatencyMs     float64    `json:"averageLatencyMs"`
	DataQualityScore     *float64   `json:"dataQualityScore,omitempty"`
	RecentIssues         []string   `json:"recentIssues"`
	Stale                bool       `json:"stale"`
}

// Reported reports whether the provider ever delivered an outcome or a quality
// score. Entries created only to flag silence have not.
func (h ProviderHealth) Reported() bool {
	return h.TotalSuccesses+h.TotalFailures > 0 || h.DataQualityScore != nil
}

// LastReportTime returns the most recent success or failure time, or the zero time if
// the provider has never reported an outcome.
func (h ProviderHealth) LastReportTime() time.Time {
	var last time.Time
	if h.LastSuccessTime != nil {
		last = *h.LastSuccessTime
	}
	if h.LastFailureTime != nil && h.LastFailureTime.After(last) {
		last = *h.LastFailureTime
	}
	return last
}

// ProviderHealthSnapshot is the flattened per-provider view served to readers. It adds
// the rule context that the tracker itself does not know about.
type ProviderHealthSnapshot struct {
	ProviderHealth

	// Observed is false for providers referenced by a rule that never reported.
	Observed bool `json:"observed"`

	// Healthy is true while ConsecutiveFailures stays below the lowest failover
	// threshold of the rules referencing the provider and the provider is not stale.
	Healthy bool `json:"healthy"`

	// ActiveForRules lists the rules currently routed to this provider.
	ActiveForRules []string `json:"activeForRules"`
}

// RuleState is the runtime state the service keeps for each rule.
type RuleState struct {
	ActiveProviderID ProviderID
	InFailover       bool
	ManualOverride   *ProviderID
	Degraded         bool
	LastTransition   time.Time
	LastReason       string
}

// Mode derives the rule mode from the state flags.
func (s RuleState) Mode() RuleMode {
	switch {
	case s.ManualOverride != nil:
		return ModeManualOverride
	case s.InFailover:
		return ModeFailover
	default:
		return ModePrimary
	}
}

// RuleSnapshot is a point-in-time copy of one rule's runtime state.
type RuleSnapshot struct {
	RuleID            string      `json:"ruleId"`
	InFailover        bool        `json:"isInFailoverState"`
	ActiveProviderID  ProviderID  `json:"currentActiveProviderId"`
	PrimaryProviderID ProviderID  `json:"primaryProviderId"`
	Mode              RuleMode    `json:"mode"`
	ManualOverride    *ProviderID `json:"manualOverrideProviderId,omitempty"`
	Degraded          bool        `json:"degraded"`
	LastTransition    *time.Time  `json:"lastTransition,omitempty"`
	LastReason        string      `json:"lastReason,omitempty"`
}

// Outcome is the kind of observation carried by a Report.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeQuality Outcome = "quality"
)

// Report is one observation applied to the health tracker. Report observers receive it
// together with the provider's post-update health.
type Report struct {
	ProviderID ProviderID
	Outcome    Outcome
	LatencyMs  float64
	Reason     string
	Quality    float64
	Time       time.Time
}
