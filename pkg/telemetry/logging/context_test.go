package logging

import (
	"context"
	"testing"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	if GetRequestID(ctx) != "" || GetRuleID(ctx) != "" || GetProvider(ctx) != "" {
		t.Fatal("empty context should have no fields")
	}
	if fields := ContextFields(ctx); len(fields) != 0 {
		t.Errorf("ContextFields() = %v, want empty", fields)
	}

	ctx = WithRequestID(ctx, "req-42")
	ctx = WithRuleID(ctx, "fx")
	ctx = WithProvider(ctx, "oanda")

	if got := GetRequestID(ctx); got != "req-42" {
		t.Errorf("GetRequestID() = %q", got)
	}
	if got := GetRuleID(ctx); got != "fx" {
		t.Errorf("GetRuleID() = %q", got)
	}
	if got := GetProvider(ctx); got != "oanda" {
		t.Errorf("GetProvider() = %q", got)
	}

	fields := ContextFields(ctx)
	want := []any{"request_id", "req-42", "rule_id", "fx", "provider", "oanda"}
	if len(fields) != len(want) {
		t.Fatalf("ContextFields() = %v, want %v", fields, want)
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Errorf("fields[%d] = %v, want %v", i, fields[i], want[i])
		}
	}
}
