package failover

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorsIs(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{name: "unknown rule", err: &UnknownRuleError{RuleID: "r1"}, target: ErrUnknownRule},
		{name: "invalid target", err: &InvalidTargetError{RuleID: "r1", Target: "x"}, target: ErrInvalidTarget},
		{name: "rule error", err: &RuleError{RuleID: "r1", Problems: []string{"bad"}}, target: ErrInvalidRule},
		{name: "wrapped", err: fmt.Errorf("force: %w", &UnknownRuleError{RuleID: "r1"}), target: ErrUnknownRule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, tt.target) {
				t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.target)
			}
			if errors.Is(tt.err, ErrServiceAbsent) {
				t.Errorf("errors.Is(%v, ErrServiceAbsent) = true", tt.err)
			}
		})
	}
}

func TestInvalidTargetError_Message(t *testing.T) {
	err := &InvalidTargetError{RuleID: "r1", Target: "polygon", Allowed: []ProviderID{"ib", "alpaca"}}
	want := `provider "polygon" is not part of rule "r1" (allowed: ib, alpaca)`
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
