package middleware

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"meridian-hq/feedwatch/pkg/telemetry/logging"
	"meridian-hq/feedwatch/pkg/telemetry/tracing"
)

// TraceIDHeader echoes the trace ID of sampled requests.
const TraceIDHeader = "X-Trace-ID"

// Tracing starts a server span for every request, continuing any trace found in
// the request headers. Spans go to the global tracer provider, which is a noop
// until tracing.New installs one.
//
// The span is renamed to the matched route, read back from the request it
// passes on, so only Logging may sit between Tracing and the ServeMux.
func Tracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := tracing.Extract(r.Context(), r.Header)
		ctx, span := otel.Tracer(tracing.InstrumentationName).Start(ctx, "HTTP "+r.Method,
			trace.WithSpanKind(trace.SpanKindServer),
		)
		defer span.End()

		if sc := span.SpanContext(); sc.IsSampled() {
			w.Header().Set(TraceIDHeader, sc.TraceID().String())
		}
		if id := logging.GetRequestID(ctx); id != "" {
			span.SetAttributes(attribute.String(tracing.AttrRequestID, id))
		}

		rw := newResponseWriter(w)
		traced := r.WithContext(ctx)
		next.ServeHTTP(rw, traced)

		route := traced.Pattern
		if route == "" {
			route = unmatchedRoute
		} else {
			span.SetName(route)
		}
		tracing.SetHTTPAttributes(span, r.Method, route, rw.statusCode)
		if rw.statusCode >= 500 {
			span.SetStatus(codes.Error, http.StatusText(rw.statusCode))
		}
	})
}
