// Package telemetry groups the observability packages of feedwatch.
//
// # Components
//
//   - logging: structured slog logging with credential redaction
//   - metrics: Prometheus collectors for failover state, provider health and HTTP traffic
//   - tracing: OpenTelemetry spans exported over OTLP/gRPC
//   - health: liveness, readiness and version endpoints
//
// # Usage
//
//	logger, _ := logging.New(logging.Config{Level: "info", Format: "json"})
//	slog.SetDefault(logger.Slog())
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, prometheus.NewRegistry())
//	service.AddEventSink(collector)
//
//	tracer, _ := tracing.New(&cfg.Telemetry.Tracing, version)
//	defer tracer.Shutdown(ctx)
//
// The packages are independent; each is wired by cmd/feedwatch.
package telemetry
