package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"

	"meridian-hq/feedwatch/pkg/failover"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateFailover(&cfg.Failover)...)
	errs = append(errs, validateProviders(cfg.Providers)...)
	errs = append(errs, validateEvents(&cfg.Events)...)
	errs = append(errs, validatePublisher(&cfg.Publisher)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

// validateServer validates server configuration.
func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	}
	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.read_timeout",
			Message: "read timeout must be positive",
		})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.write_timeout",
			Message: "write timeout must be positive",
		})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.idle_timeout",
			Message: "idle timeout must be positive",
		})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "server.shutdown_timeout",
			Message: "shutdown timeout must be positive",
		})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{
			Field:   "server.max_header_bytes",
			Message: "max header bytes must be non-negative",
		})
	}

	return errs
}

// validateFailover validates the failover section including every rule.
func validateFailover(cfg *FailoverConfig) []FieldError {
	var errs []FieldError

	if cfg.Mode != ModeStreaming && cfg.Mode != ModeBackfill {
		errs = append(errs, FieldError{
			Field:   "failover.mode",
			Message: fmt.Sprintf("invalid mode %q: must be '%s' or '%s'", cfg.Mode, ModeStreaming, ModeBackfill),
		})
	}
	if !failover.OverridePolicy(cfg.OverridePolicy).IsValid() {
		errs = append(errs, FieldError{
			Field: "failover.override_policy",
			Message: fmt.Sprintf("invalid override policy %q: must be '%s' or '%s'",
				cfg.OverridePolicy, failover.OverrideSticky, failover.OverrideAutoRelease),
		})
	}
	if cfg.LatencyEWMAAlpha <= 0 || cfg.LatencyEWMAAlpha > 1 {
		errs = append(errs, FieldError{
			Field:   "failover.latency_ewma_alpha",
			Message: "latency EWMA alpha must be in (0, 1]",
		})
	}
	if cfg.RecentIssueCapacity < 1 {
		errs = append(errs, FieldError{
			Field:   "failover.recent_issue_capacity",
			Message: "recent issue capacity must be at least 1",
		})
	}
	if cfg.Staleness.Enabled {
		if cfg.Staleness.CheckInterval <= 0 {
			errs = append(errs, FieldError{
				Field:   "failover.staleness.check_interval",
				Message: "check interval must be positive",
			})
		}
		if cfg.Staleness.MaxSilence <= 0 {
			errs = append(errs, FieldError{
				Field:   "failover.staleness.max_silence",
				Message: "max silence must be positive",
			})
		}
	}

	ids := make(map[string]int, len(cfg.Rules))
	for i, rc := range cfg.Rules {
		field := fmt.Sprintf("failover.rules[%d]", i)
		if rc.ID != "" {
			field = fmt.Sprintf("failover.rules[%s]", rc.ID)
			if first, dup := ids[rc.ID]; dup {
				errs = append(errs, FieldError{
					Field:   field + ".id",
					Message: fmt.Sprintf("duplicate rule id (first defined at index %d)", first),
				})
			}
			ids[rc.ID] = i
		}

		var ruleErr *failover.RuleError
		if err := rc.Rule().Validate(); errors.As(err, &ruleErr) {
			for _, p := range ruleErr.Problems {
				errs = append(errs, FieldError{Field: field, Message: p})
			}
		}
	}

	return errs
}

// validateProviders validates provider probe configurations.
func validateProviders(providers map[string]ProviderConfig) []FieldError {
	var errs []FieldError

	for name, provider := range providers {
		prefix := fmt.Sprintf("providers.%s", name)

		if provider.HealthURL != "" {
			u, err := url.Parse(provider.HealthURL)
			if err != nil {
				errs = append(errs, FieldError{
					Field:   prefix + ".health_url",
					Message: fmt.Sprintf("invalid URL format: %v", err),
				})
			} else if u.Scheme != "http" && u.Scheme != "https" {
				errs = append(errs, FieldError{
					Field:   prefix + ".health_url",
					Message: "health URL must use http or https",
				})
			}
		}
		if provider.ProbeInterval < 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".probe_interval",
				Message: "probe interval must be positive",
			})
		}
		if provider.Timeout < 0 {
			errs = append(errs, FieldError{
				Field:   prefix + ".timeout",
				Message: "timeout must be positive",
			})
		}
	}

	return errs
}

// validateEvents validates event log configuration.
func validateEvents(cfg *EventsConfig) []FieldError {
	var errs []FieldError

	if !cfg.Enabled {
		return errs
	}

	switch cfg.Backend {
	case BackendMemory:
		if cfg.Memory.MaxRecords < 1 {
			errs = append(errs, FieldError{
				Field:   "events.memory.max_records",
				Message: "max records must be at least 1",
			})
		}
	case BackendSQLite:
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "events.sqlite.path",
				Message: "SQLite path is required for the sqlite backend",
			})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "events.backend",
			Message: fmt.Sprintf("invalid backend %q: must be '%s' or '%s'", cfg.Backend, BackendMemory, BackendSQLite),
		})
	}

	if cfg.BufferSize < 1 {
		errs = append(errs, FieldError{
			Field:   "events.buffer_size",
			Message: "buffer size must be at least 1",
		})
	}
	if cfg.Retention.Days < 0 {
		errs = append(errs, FieldError{
			Field:   "events.retention.days",
			Message: "retention days must be non-negative",
		})
	}
	if cfg.Retention.MaxRecords < 0 {
		errs = append(errs, FieldError{
			Field:   "events.retention.max_records",
			Message: "max records must be non-negative",
		})
	}
	if _, err := cron.ParseStandard(cfg.Retention.PruneSchedule); err != nil {
		errs = append(errs, FieldError{
			Field:   "events.retention.prune_schedule",
			Message: fmt.Sprintf("invalid cron expression: %v", err),
		})
	}
	if cfg.QueryDefaultLimit < 1 || cfg.QueryMaxLimit < cfg.QueryDefaultLimit {
		errs = append(errs, FieldError{
			Field:   "events.query_max_limit",
			Message: "query limits must satisfy 1 <= default <= max",
		})
	}

	return errs
}

// validatePublisher validates publisher configuration.
func validatePublisher(cfg *PublisherConfig) []FieldError {
	var errs []FieldError

	if !cfg.NATS.Enabled {
		return errs
	}
	if len(cfg.NATS.Servers) == 0 {
		errs = append(errs, FieldError{
			Field:   "publisher.nats.servers",
			Message: "at least one server is required when NATS publishing is enabled",
		})
	}
	if cfg.NATS.SubjectPrefix == "" || strings.ContainsAny(cfg.NATS.SubjectPrefix, " *>") {
		errs = append(errs, FieldError{
			Field:   "publisher.nats.subject_prefix",
			Message: "subject prefix must be non-empty and contain no spaces or wildcards",
		})
	}
	if cfg.NATS.BufferSize < 1 {
		errs = append(errs, FieldError{
			Field:   "publisher.nats.buffer_size",
			Message: "buffer size must be at least 1",
		})
	}

	return errs
}

// validateTelemetry validates telemetry configuration.
func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{
			Field:   "telemetry.metrics.path",
			Message: "metrics path must start with /",
		})
	}

	if cfg.Tracing.Enabled {
		switch cfg.Tracing.Sampler {
		case "always", "never", "ratio":
		default:
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sampler",
				Message: fmt.Sprintf("invalid sampler %q: must be 'always', 'never', or 'ratio'", cfg.Tracing.Sampler),
			})
		}
		if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.sample_ratio",
				Message: "sample ratio must be within [0, 1]",
			})
		}
		if cfg.Tracing.Endpoint == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.endpoint",
				Message: "endpoint is required when tracing is enabled",
			})
		}
	}

	return errs
}
