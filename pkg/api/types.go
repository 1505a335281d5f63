package api

import (
	"meridian-hq/feedwatch/pkg/events"
	"meridian-hq/feedwatch/pkg/failover"
)

// ConfigResponse is returned by GET /failover/config.
type ConfigResponse struct {
	IsSimulated    bool                    `json:"isSimulated"`
	Mode           string                  `json:"mode"`
	OverridePolicy failover.OverridePolicy `json:"overridePolicy"`
	Rules          []failover.Rule         `json:"rules"`
}

// RulesResponse is returned by GET /failover/rules.
type RulesResponse struct {
	IsSimulated bool                    `json:"isSimulated"`
	Rules       []failover.RuleSnapshot `json:"rules"`
}

// RuleResponse is returned by GET /failover/rules/{ruleId}.
type RuleResponse struct {
	IsSimulated bool                   `json:"isSimulated"`
	Rule        *failover.RuleSnapshot `json:"rule,omitempty"`
}

// HealthResponse is returned by GET /failover/health.
type HealthResponse struct {
	IsSimulated bool                              `json:"isSimulated"`
	Providers   []failover.ProviderHealthSnapshot `json:"providers"`
}

// ForceRequest is the body of POST /failover/{ruleId}/force.
type ForceRequest struct {
	ProviderID string `json:"providerId"`
}

// CommandResponse is returned by the force and clear-override commands.
type CommandResponse struct {
	IsSimulated bool                   `json:"isSimulated"`
	Success     bool                   `json:"success"`
	Changed     bool                   `json:"changed"`
	Message     string                 `json:"message,omitempty"`
	Rule        *failover.RuleSnapshot `json:"rule,omitempty"`
}

// ReportRequest is the body of POST /failover/health/report. Success and
// Quality may be combined; at least one is required.
type ReportRequest struct {
	ProviderID string   `json:"providerId"`
	Success    *bool    `json:"success,omitempty"`
	LatencyMs  float64  `json:"latencyMs"`
	Reason     string   `json:"reason,omitempty"`
	Quality    *float64 `json:"quality,omitempty"`
}

// ReportResponse is returned by POST /failover/health/report.
type ReportResponse struct {
	IsSimulated bool                     `json:"isSimulated"`
	Accepted    bool                     `json:"accepted"`
	Provider    *failover.ProviderHealth `json:"provider,omitempty"`
}

// EventsResponse is returned by GET /failover/events.
type EventsResponse struct {
	Events []*events.Record `json:"events"`
	Total  int64            `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}
