package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable override.
const EnvPrefix = "FEEDWATCH_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML on top of the defaults. It does not validate.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention FEEDWATCH_SECTION_FIELD (e.g., FEEDWATCH_SERVER_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment. Missing files are skipped and variables already set in the
// environment are left untouched. With no arguments ".env" is tried.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to stat env file %q: %w", p, err)
		}
		existing = append(existing, p)
	}
	if len(existing) == 0 {
		return nil
	}

	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env files: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables use the format FEEDWATCH_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	envString("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	envDuration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	envInt("SERVER_MAX_HEADER_BYTES", &cfg.Server.MaxHeaderBytes)

	// Failover overrides
	envBool("FAILOVER_ENABLED", &cfg.Failover.Enabled)
	envString("FAILOVER_MODE", &cfg.Failover.Mode)
	envString("FAILOVER_OVERRIDE_POLICY", &cfg.Failover.OverridePolicy)
	envFloat("FAILOVER_LATENCY_EWMA_ALPHA", &cfg.Failover.LatencyEWMAAlpha)
	envInt("FAILOVER_RECENT_ISSUE_CAPACITY", &cfg.Failover.RecentIssueCapacity)
	envBool("FAILOVER_WATCH", &cfg.Failover.Watch)
	envBool("FAILOVER_STALENESS_ENABLED", &cfg.Failover.Staleness.Enabled)
	envDuration("FAILOVER_STALENESS_CHECK_INTERVAL", &cfg.Failover.Staleness.CheckInterval)
	envDuration("FAILOVER_STALENESS_MAX_SILENCE", &cfg.Failover.Staleness.MaxSilence)

	// Provider overrides, one set per configured provider
	for name := range cfg.Providers {
		applyProviderEnvOverrides(cfg, name)
	}

	// Events overrides
	envBool("EVENTS_ENABLED", &cfg.Events.Enabled)
	envString("EVENTS_BACKEND", &cfg.Events.Backend)
	envString("EVENTS_SQLITE_PATH", &cfg.Events.SQLite.Path)
	envDuration("EVENTS_SQLITE_BUSY_TIMEOUT", &cfg.Events.SQLite.BusyTimeout)
	envInt("EVENTS_BUFFER_SIZE", &cfg.Events.BufferSize)
	envInt("EVENTS_RETENTION_DAYS", &cfg.Events.Retention.Days)
	envString("EVENTS_RETENTION_PRUNE_SCHEDULE", &cfg.Events.Retention.PruneSchedule)
	if val := os.Getenv(EnvPrefix + "EVENTS_RETENTION_MAX_RECORDS"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Events.Retention.MaxRecords = i
		}
	}

	// Publisher overrides
	envBool("PUBLISHER_NATS_ENABLED", &cfg.Publisher.NATS.Enabled)
	if val := os.Getenv(EnvPrefix + "PUBLISHER_NATS_SERVERS"); val != "" {
		var servers []string
		for _, s := range strings.Split(val, ",") {
			if s = strings.TrimSpace(s); s != "" {
				servers = append(servers, s)
			}
		}
		cfg.Publisher.NATS.Servers = servers
	}
	envString("PUBLISHER_NATS_SUBJECT_PREFIX", &cfg.Publisher.NATS.SubjectPrefix)
	envString("PUBLISHER_NATS_CLIENT_ID", &cfg.Publisher.NATS.ClientID)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_LOGGING_ADD_SOURCE", &cfg.Telemetry.Logging.AddSource)
	envBool("TELEMETRY_LOGGING_REDACT", &cfg.Telemetry.Logging.Redact)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envString("TELEMETRY_TRACING_SAMPLER", &cfg.Telemetry.Tracing.Sampler)
	envFloat("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)
	envBool("TELEMETRY_TRACING_OTLP_INSECURE", &cfg.Telemetry.Tracing.OTLP.Insecure)
}

// applyProviderEnvOverrides applies environment variable overrides for a specific provider.
// Provider environment variables follow the format FEEDWATCH_PROVIDERS_<NAME>_<FIELD>
// where NAME is the uppercase provider name with dashes replaced by underscores.
func applyProviderEnvOverrides(cfg *Config, providerName string) {
	provider := cfg.Providers[providerName]
	key := strings.ToUpper(strings.ReplaceAll(providerName, "-", "_"))
	prefix := fmt.Sprintf("PROVIDERS_%s_", key)

	envString(prefix+"HEALTH_URL", &provider.HealthURL)
	envString(prefix+"API_KEY", &provider.APIKey)
	envDuration(prefix+"PROBE_INTERVAL", &provider.ProbeInterval)
	envDuration(prefix+"TIMEOUT", &provider.Timeout)

	cfg.Providers[providerName] = provider
}

func envString(name string, dst *string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		*dst = val
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envFloat(name string, dst *float64) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			*dst = f
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
