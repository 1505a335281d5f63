// Package probe actively checks provider health endpoints and feeds the
// results into the failover service.
//
// Each provider with a health_url gets its own goroutine issuing GET
// requests. A 2xx response is reported as a success carrying the round-trip
// latency; anything else, including transport errors and timeouts, is a
// failure. While a provider keeps failing, probes back off exponentially
// (capped at 10x the interval and at 5 minutes) to avoid hammering an outage.
//
// Probes complement, not replace, the reports pushed by ingestion pipelines:
// both land in the same health tracker.
package probe
