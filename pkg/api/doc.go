// Package api implements the failover HTTP surface.
//
// Handlers read state through a failover.Registry so the same routes work
// whether or not a streaming session is running. Without a registered
// service, read endpoints answer with empty payloads flagged
// "isSimulated": true and command endpoints answer 501 with the same flag.
//
// # Routes
//
//	GET    /failover/config               override policy and rule definitions
//	GET    /failover/rules                rule snapshots
//	GET    /failover/rules/{ruleId}       one rule snapshot
//	POST   /failover/{ruleId}/force       pin the active provider
//	DELETE /failover/{ruleId}/override    clear a manual override
//	GET    /failover/health               provider health snapshots
//	POST   /failover/health/report        push a health observation
//	GET    /failover/events               recorded transition events
//	GET    /failover/stream               websocket event stream
//
// Errors use a JSON envelope:
//
//	{"error": {"code": "unknown_rule", "message": "...", "requestId": "..."}}
package api
