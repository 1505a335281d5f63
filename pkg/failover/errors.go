package failover

import (
	"errors"
	"fmt"
	"strings"
)

// Common failover errors that can be checked with errors.Is().
var (
	// ErrUnknownRule is returned when a command names a rule that is not registered.
	ErrUnknownRule = errors.New("unknown failover rule")

	// ErrInvalidTarget is returned when a force-failover target is neither the rule's
	// primary nor one of its backups.
	ErrInvalidTarget = errors.New("invalid failover target")

	// ErrNoHealthyBackup describes a rule that breached its thresholds with no healthy
	// backup left. It is surfaced through RuleSnapshot.Degraded and an event, never
	// returned from a report.
	ErrNoHealthyBackup = errors.New("no healthy backup provider")

	// ErrServiceAbsent is returned by Registry.Require when no streaming session is
	// registered.
	ErrServiceAbsent = errors.New("streaming failover service not registered")

	// ErrInvalidRule is returned when a rule definition violates its invariants.
	ErrInvalidRule = errors.New("invalid failover rule")
)

// UnknownRuleError is returned when a rule ID is not registered.
type UnknownRuleError struct {
	// RuleID is the requested rule.
	RuleID string
}

// Error implements the error interface.
func (e *UnknownRuleError) Error() string {
	return fmt.Sprintf("unknown failover rule %q", e.RuleID)
}

// Is implements error matching for errors.Is().
func (e *UnknownRuleError) Is(target error) bool {
	return target == ErrUnknownRule
}

// InvalidTargetError is returned when ForceFailover names a provider outside the
// rule's provider set.
type InvalidTargetError struct {
	// RuleID is the rule the command addressed.
	RuleID string

	// Target is the rejected provider.
	Target ProviderID

	// Allowed contains the primary followed by the backups.
	Allowed []ProviderID
}

// Error implements the error interface.
func (e *InvalidTargetError) Error() string {
	allowed := make([]string, len(e.Allowed))
	for i, p := range e.Allowed {
		allowed[i] = string(p)
	}
	return fmt.Sprintf("provider %q is not part of rule %q (allowed: %s)",
		e.Target, e.RuleID, strings.Join(allowed, ", "))
}

// Is implements error matching for errors.Is().
func (e *InvalidTargetError) Is(target error) bool {
	return target == ErrInvalidTarget
}

// RuleError reports every invariant a rule definition violates.
type RuleError struct {
	// RuleID is the offending rule; it may be empty when the ID itself is missing.
	RuleID string

	// Problems lists the individual violations.
	Problems []string
}

// Error implements the error interface.
func (e *RuleError) Error() string {
	id := e.RuleID
	if id == "" {
		id = "<unnamed>"
	}
	return fmt.Sprintf("invalid failover rule %q: %s", id, strings.Join(e.Problems, "; "))
}

// Is implements error matching for errors.Is().
func (e *RuleError) Is(target error) bool {
	return target == ErrInvalidRule
}
