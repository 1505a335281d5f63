package config

import "time"

// Config is the root configuration structure for feedwatch.
// It contains every section: the HTTP server, the failover engine, provider probes,
// the event log, event publishing and telemetry.
type Config struct {
	// Server contains HTTP server configuration including listen address and timeouts.
	Server ServerConfig `yaml:"server"`

	// Failover contains the failover engine settings and the rule set.
	Failover FailoverConfig `yaml:"failover"`

	// Providers contains per-provider probe settings. Keys are provider IDs as used
	// in failover rules (e.g., "ib", "alpaca").
	Providers map[string]ProviderConfig `yaml:"providers"`

	// Events contains configuration for the failover event log.
	Events EventsConfig `yaml:"events"`

	// Publisher contains configuration for publishing events to a message bus.
	Publisher PublisherConfig `yaml:"publisher"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig contains configuration for the HTTP server.
type ServerConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8090"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 15s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the response.
	// Default: 15s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits request header size.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// AllowedOrigins lists origins accepted on the event stream websocket.
	// Empty accepts same-origin requests only; "*" accepts any origin.
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Session modes.
const (
	// ModeStreaming runs the streaming failover service.
	ModeStreaming = "streaming"

	// ModeBackfill runs without a streaming session; failover endpoints answer
	// with simulated payloads.
	ModeBackfill = "backfill"
)

// FailoverConfig contains failover engine configuration.
type FailoverConfig struct {
	// Enabled controls whether a failover service is created at all.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Mode selects the session mode.
	// Options: "streaming", "backfill"
	// Default: "streaming"
	Mode string `yaml:"mode"`

	// OverridePolicy controls how manual overrides are released.
	// Options: "sticky", "auto_release"
	// Default: "sticky"
	OverridePolicy string `yaml:"override_policy"`

	// LatencyEWMAAlpha is the smoothing factor for average provider latency.
	// Default: 0.2
	LatencyEWMAAlpha float64 `yaml:"latency_ewma_alpha"`

	// RecentIssueCapacity bounds the per-provider list of recent failure reasons.
	// Default: 10
	RecentIssueCapacity int `yaml:"recent_issue_capacity"`

	// Staleness configures detection of providers that stopped reporting.
	Staleness StalenessConfig `yaml:"staleness"`

	// Watch reloads the rule set when the configuration file changes.
	// Default: false
	Watch bool `yaml:"watch"`

	// Rules is the failover rule set.
	Rules []RuleConfig `yaml:"rules"`
}

// StalenessConfig contains staleness monitor configuration.
type StalenessConfig struct {
	// Enabled controls whether the staleness monitor runs.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// CheckInterval is how often silence is checked.
	// Default: 15s
	CheckInterval time.Duration `yaml:"check_interval"`

	// MaxSilence is how long a provider may go without reporting.
	// Default: 2m
	MaxSilence time.Duration `yaml:"max_silence"`
}

// RuleConfig is the YAML form of a failover rule.
type RuleConfig struct {
	ID                   string   `yaml:"id"`
	Primary              string   `yaml:"primary"`
	Backups              []string `yaml:"backups"`
	FailoverThreshold    uint32   `yaml:"failover_threshold"`
	RecoveryThreshold    uint32   `yaml:"recovery_threshold"`
	DataQualityThreshold *float64 `yaml:"data_quality_threshold"`
	MaxLatencyMs         *float64 `yaml:"max_latency_ms"`
}

// ProviderConfig contains probe configuration for a single provider.
type ProviderConfig struct {
	// HealthURL is probed with GET requests; empty disables probing.
	HealthURL string `yaml:"health_url"`

	// ProbeInterval is the time between probes while healthy.
	// Default: 30s
	ProbeInterval time.Duration `yaml:"probe_interval"`

	// Timeout bounds a single probe.
	// Default: 5s
	Timeout time.Duration `yaml:"timeout"`

	// APIKey is sent as a bearer token when set.
	APIKey string `yaml:"api_key"`
}

// Event store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// EventsConfig contains event log configuration.
type EventsConfig struct {
	// Enabled controls whether events are recorded.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend selects the storage backend.
	// Options: "memory", "sqlite"
	// Default: "memory"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite backend configuration.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Memory contains in-memory backend configuration.
	Memory MemoryConfig `yaml:"memory"`

	// BufferSize is the async recorder queue length.
	// Default: 1000
	BufferSize int `yaml:"buffer_size"`

	// Retention contains pruning configuration.
	Retention RetentionConfig `yaml:"retention"`

	// QueryDefaultLimit is the default number of events returned by a query.
	// Default: 100
	QueryDefaultLimit int `yaml:"query_default_limit"`

	// QueryMaxLimit caps the number of events returned by a query.
	// Default: 1000
	QueryMaxLimit int `yaml:"query_max_limit"`
}

// SQLiteConfig contains SQLite-specific configuration.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/feedwatch.db"
	Path string `yaml:"path"`

	// BusyTimeout is the SQLite busy timeout.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// MemoryConfig contains in-memory store configuration.
type MemoryConfig struct {
	// MaxRecords bounds the in-memory log; the oldest events are evicted first.
	// Default: 10000
	MaxRecords int `yaml:"max_records"`
}

// RetentionConfig contains event retention configuration.
type RetentionConfig struct {
	// Days is how long events are kept. 0 keeps events forever.
	// Default: 30
	Days int `yaml:"days"`

	// MaxRecords caps the number of stored events. 0 means unlimited.
	// Default: 0
	MaxRecords int64 `yaml:"max_records"`

	// PruneSchedule is a standard cron expression.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`
}

// PublisherConfig contains event publisher configuration.
type PublisherConfig struct {
	// NATS contains NATS publisher configuration.
	NATS NATSConfig `yaml:"nats"`
}

// NATSConfig contains NATS connection configuration.
type NATSConfig struct {
	// Enabled controls whether events are published to NATS.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Servers lists NATS server URLs.
	// Default: ["nats://127.0.0.1:4222"]
	Servers []string `yaml:"servers"`

	// SubjectPrefix is prepended to event subjects.
	// Default: "feedwatch.failover"
	SubjectPrefix string `yaml:"subject_prefix"`

	// ClientID is the connection name.
	// Default: "feedwatch"
	ClientID string `yaml:"client_id"`

	// ConnectTimeout bounds the initial connection.
	// Default: 5s
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// ReconnectWait is the delay between reconnect attempts.
	// Default: 2s
	ReconnectWait time.Duration `yaml:"reconnect_wait"`

	// MaxReconnects limits reconnect attempts; -1 retries forever.
	// Default: -1
	MaxReconnects int `yaml:"max_reconnects"`

	// BufferSize is the publish queue length.
	// Default: 1000
	BufferSize int `yaml:"buffer_size"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// Redact masks provider credentials in log output.
	// Default: true
	Redact bool `yaml:"redact"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics collection is active.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace is the metric name prefix.
	// Default: "feedwatch"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem name.
	// Default: "failover"
	Subsystem string `yaml:"subsystem"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	// Enabled controls whether spans are exported.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Sampler determines the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces to sample (0.0 to 1.0).
	// Only used when Sampler is "ratio".
	// Default: 0.1
	SampleRatio float64 `yaml:"sample_ratio"`

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// ServiceName is the service name in traces.
	// Default: "feedwatch"
	ServiceName string `yaml:"service_name"`

	// OTLP contains OTLP exporter specific configuration.
	OTLP OTLPConfig `yaml:"otlp"`
}

// OTLPConfig contains OTLP exporter configuration.
type OTLPConfig struct {
	// Insecure disables TLS for the collector connection.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// Timeout bounds a single export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}
