package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"meridian-hq/feedwatch/pkg/api"
	"meridian-hq/feedwatch/pkg/telemetry/logging"
)

// Recovery recovers from panics in HTTP handlers and returns a 500 error
// envelope. The panic and stack trace are logged; clients see a generic
// message.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				if err == http.ErrAbortHandler {
					panic(err)
				}

				slog.ErrorContext(r.Context(), "panic in handler",
					"error", err,
					"request_id", logging.GetRequestID(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)

				api.WriteError(w, r, http.StatusInternalServerError, api.CodeInternal,
					"An internal error occurred. Please try again later.")
			}
		}()

		next.ServeHTTP(w, r)
	})
}
