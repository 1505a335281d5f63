package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"meridian-hq/feedwatch/pkg/failover"
)

// Attribute keys. HTTP keys follow the OpenTelemetry semantic conventions;
// domain keys live under "feedwatch.".
const (
	AttrHTTPMethod = "http.request.method"
	AttrHTTPRoute  = "http.route"
	AttrHTTPStatus = "http.response.status_code"
	AttrURLFull    = "url.full"

	AttrRequestID = "feedwatch.request_id"
	AttrRuleID    = "feedwatch.rule_id"
	AttrProvider  = "feedwatch.provider"

	AttrErrorMessage = "error.message"
)

// SetHTTPAttributes sets request attributes on a server span.
func SetHTTPAttributes(span trace.Span, method, route string, status int) {
	span.SetAttributes(
		attribute.String(AttrHTTPMethod, method),
		attribute.String(AttrHTTPRoute, route),
		attribute.Int(AttrHTTPStatus, status),
	)
}

// SetRuleAttributes sets the rule and, when non-empty, the provider.
func SetRuleAttributes(span trace.Span, ruleID string, provider failover.ProviderID) {
	attrs := []attribute.KeyValue{attribute.String(AttrRuleID, ruleID)}
	if provider != "" {
		attrs = append(attrs, attribute.String(AttrProvider, string(provider)))
	}
	span.SetAttributes(attrs...)
}
