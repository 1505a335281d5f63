// Package health provides liveness, readiness and version endpoints.
//
// Liveness (/health) only reports that the process is serving HTTP.
// Readiness (/ready) runs every registered check concurrently with a per-check
// timeout. Critical checks (the failover service, the event store) turn the
// status "unhealthy" and the response 503. Optional checks (degraded rules,
// the NATS connection) only downgrade it to "degraded".
//
//	checker := health.New(5 * time.Second)
//	checker.RegisterCheck("failover", health.ServiceCheck(registry, true))
//	checker.RegisterOptionalCheck("rules", health.DegradedRulesCheck(registry))
//	health.Register(mux, checker, health.NewVersionInfo(version, commit, buildTime))
package health
