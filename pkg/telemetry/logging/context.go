package logging

import (
	"context"
)

// Context keys for common log fields.
type contextKey string

const (
	// RequestIDKey is the context key for request IDs.
	RequestIDKey contextKey = "request_id"

	// RuleIDKey is the context key for failover rule IDs.
	RuleIDKey contextKey = "rule_id"

	// ProviderKey is the context key for provider IDs.
	ProviderKey contextKey = "provider"
)

// WithRequestID adds a request ID to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// WithRuleID adds a failover rule ID to the context.
func WithRuleID(ctx context.Context, ruleID string) context.Context {
	return context.WithValue(ctx, RuleIDKey, ruleID)
}

// GetRuleID retrieves the failover rule ID from the context.
func GetRuleID(ctx context.Context) string {
	if ruleID, ok := ctx.Value(RuleIDKey).(string); ok {
		return ruleID
	}
	return ""
}

// WithProvider adds a provider ID to the context.
func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, ProviderKey, provider)
}

// GetProvider retrieves the provider ID from the context.
func GetProvider(ctx context.Context) string {
	if provider, ok := ctx.Value(ProviderKey).(string); ok {
		return provider
	}
	return ""
}

// ContextFields returns the context's log fields as key-value pairs.
func ContextFields(ctx context.Context) []any {
	var fields []any

	if requestID := GetRequestID(ctx); requestID != "" {
		fields = append(fields, "request_id", requestID)
	}
	if ruleID := GetRuleID(ctx); ruleID != "" {
		fields = append(fields, "rule_id", ruleID)
	}
	if provider := GetProvider(ctx); provider != "" {
		fields = append(fields, "provider", provider)
	}

	return fields
}
