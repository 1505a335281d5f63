// Package server runs the feedwatch HTTP server.
//
// The server mounts the failover API, the health and version endpoints and
// the Prometheus handler on one ServeMux and wraps it in the middleware chain
// from pkg/api/middleware (recovery, request ID, logging). Start blocks until
// the context is cancelled, then shuts down gracefully within the configured
// shutdown timeout.
//
// Example:
//
//	srv := server.NewServer(&cfg.Server, server.Routes{
//		Failover: api.NewHandlers(registry, opts),
//		Health:   checker,
//		Version:  health.NewVersionInfo(version, commit, date),
//		Metrics:  collector.Handler(),
//	})
//	if err := srv.Start(ctx); err != nil {
//		return err
//	}
package server
