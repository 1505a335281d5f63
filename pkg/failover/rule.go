package failover

import (
	"fmt"
	"slices"
	"sort"
)

// Rule is the declarative failover policy for one logical data feed.
type Rule struct {
	ID                string       `json:"id"`
	PrimaryProviderID ProviderID   `json:"primaryProviderId"`
	BackupProviderIDs []ProviderID `json:"backupProviderIds"`

	// FailoverThreshold is the number of consecutive failures that marks a provider
	// unhealthy for this rule.
	FailoverThreshold uint32 `json:"failoverThreshold"`

	// RecoveryThreshold is the number of consecutive primary successes required before
	// switching back to the primary.
	RecoveryThreshold uint32 `json:"recoveryThreshold"`

	// DataQualityThreshold, when set, fails over once the active provider's latest
	// data-quality score drops below it.
	DataQualityThreshold *float64 `json:"dataQualityThreshold,omitempty"`

	// MaxLatencyMs, when set, fails over once the active provider's average latency
	// exceeds it.
	MaxLatencyMs *float64 `json:"maxLatencyMs,omitempty"`
}

// Validate checks the rule invariants and returns a *RuleError listing every problem.
func (r Rule) Validate() error {
	var problems []string

	if r.ID == "" {
		problems = append(problems, "id is required")
	}
	if r.PrimaryProviderID == "" {
		problems = append(problems, "primary provider is required")
	}
	if len(r.BackupProviderIDs) == 0 {
		problems = append(problems, "at least one backup provider is required")
	}

	seen := make(map[ProviderID]bool, len(r.BackupProviderIDs))
	for i, b := range r.BackupProviderIDs {
		switch {
		case b == "":
			problems = append(problems, fmt.Sprintf("backup %d is empty", i))
		case b == r.PrimaryProviderID:
			problems = append(problems, fmt.Sprintf("backup %q duplicates the primary", b))
		case seen[b]:
			problems = append(problems, fmt.Sprintf("backup %q is listed more than once", b))
		}
		seen[b] = true
	}

	if r.FailoverThreshold < 1 {
		problems = append(problems, "failover threshold must be at least 1")
	}
	if r.RecoveryThreshold < 1 {
		problems = append(problems, "recovery threshold must be at least 1")
	}
	if r.DataQualityThreshold != nil && (*r.DataQualityThreshold < 0 || *r.DataQualityThreshold > 1) {
		problems = append(problems, "data quality threshold must be within [0, 1]")
	}
	if r.MaxLatencyMs != nil && *r.MaxLatencyMs <= 0 {
		problems = append(problems, "max latency must be positive")
	}

	if len(problems) > 0 {
		return &RuleError{RuleID: r.ID, Problems: problems}
	}
	return nil
}

// Providers returns the primary followed by the backups in priority order.
func (r Rule) Providers() []ProviderID {
	out := make([]ProviderID, 0, len(r.BackupProviderIDs)+1)
	out = append(out, r.PrimaryProviderID)
	return append(out, r.BackupProviderIDs...)
}

// HasProvider reports whether id is the primary or one of the backups.
func (r Rule) HasProvider(id ProviderID) bool {
	return id == r.PrimaryProviderID || slices.Contains(r.BackupProviderIDs, id)
}

// Equal reports whether two rule definitions are identical.
func (r Rule) Equal(o Rule) bool {
	return r.ID == o.ID &&
		r.PrimaryProviderID == o.PrimaryProviderID &&
		slices.Equal(r.BackupProviderIDs, o.BackupProviderIDs) &&
		r.FailoverThreshold == o.FailoverThreshold &&
		r.RecoveryThreshold == o.RecoveryThreshold &&
		floatPtrEqual(r.DataQualityThreshold, o.DataQualityThreshold) &&
		floatPtrEqual(r.MaxLatencyMs, o.MaxLatencyMs)
}

func (r Rule) clone() Rule {
	c := r
	c.BackupProviderIDs = slices.Clone(r.BackupProviderIDs)
	if r.DataQualityThreshold != nil {
		v := *r.DataQualityThreshold
		c.DataQualityThreshold = &v
	}
	if r.MaxLatencyMs != nil {
		v := *r.MaxLatencyMs
		c.MaxLatencyMs = &v
	}
	return c
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// validateRuleSet validates each rule and rejects duplicate IDs.
func validateRuleSet(rules []Rule) error {
	var errs []error
	ids := make(map[string]bool, len(rules))
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		if ids[r.ID] {
			errs = append(errs, &RuleError{RuleID: r.ID, Problems: []string{"duplicate rule id"}})
		}
		ids[r.ID] = true
	}
	return joinErrors(errs)
}

func joinErrors(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	return &MultiRuleError{Errors: errs}
}

// MultiRuleError aggregates validation errors for several rules.
type MultiRuleError struct {
	Errors []error
}

// Error implements the error interface.
func (e *MultiRuleError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	sort.Strings(msgs)
	return fmt.Sprintf("%d invalid failover rules: %v", len(e.Errors), msgs)
}

// Unwrap returns the individual errors for errors.Is traversal.
func (e *MultiRuleError) Unwrap() []error {
	return e.Errors
}
