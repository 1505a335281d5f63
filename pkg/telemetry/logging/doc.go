// Package logging provides structured logging with credential redaction.
//
// # Overview
//
// The logging package wraps Go's standard log/slog package to provide:
//   - Structured logging in JSON or text format
//   - Redaction of provider credentials (API keys, bearer tokens, secrets in URLs)
//   - Context-aware logging with request, rule and provider IDs
//
// Redaction is implemented as a slog.Handler, so installing the logger with
// slog.SetDefault also covers packages that log through slog.Default().
//
// # Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:  "info",
//	    Format: "json",
//	    Redact: true,
//	})
//	if err != nil {
//	    return err
//	}
//	slog.SetDefault(logger.Slog())
//
//	logger.Info("probe failed",
//	    "provider", "polygon",
//	    "url", "https://api.polygon.io/v1/status?apiKey=abc123", // apiKey value masked
//	)
//
//	ctx = logging.WithRuleID(ctx, "equities")
//	logger.WithContext(ctx).Warn("failover triggered") // includes rule_id
package logging
