// Package middleware provides the HTTP middleware chain wrapped around the
// feedwatch API: panic recovery, request IDs, tracing spans and request
// logging with per-route metrics.
//
// The server applies them innermost first:
//
//	handler = Logging(recorder)(mux)
//	handler = Tracing(handler)
//	handler = RequestID(handler)
//	handler = Recovery(handler)
package middleware
