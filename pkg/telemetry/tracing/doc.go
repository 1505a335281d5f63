// Package tracing provides OpenTelemetry distributed tracing for feedwatch.
//
// # Overview
//
// A Tracer installs a global OpenTelemetry tracer provider that exports spans to
// an OTLP gRPC collector, and the W3C Trace Context propagator. Packages create
// spans through the global provider, so nothing is exported until New is called
// with tracing enabled.
//
// Spans are created for:
//   - Every HTTP request (pkg/api/middleware.Tracing)
//   - Every provider probe (pkg/probe), with trace context injected into the
//     outgoing request
//
// # Sampling Strategies
//
// Three sampling strategies are supported:
//   - always: Sample all traces (development/debugging)
//   - never: Sample no traces
//   - ratio: Sample a percentage of traces (production)
//
// Samplers are parent-based, so an upstream sampling decision carried in a
// traceparent header is respected.
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing, version)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, "failover.force")
//	defer span.End()
//	tracing.SetRuleAttributes(span, "equities-rt", "alpaca")
package tracing
