package config

import "time"

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8090"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB

	// Failover defaults
	DefaultFailoverEnabled        = true
	DefaultFailoverMode           = ModeStreaming
	DefaultOverridePolicy         = "sticky"
	DefaultLatencyEWMAAlpha       = 0.2
	DefaultRecentIssueCapacity    = 10
	DefaultStalenessEnabled       = true
	DefaultStalenessCheckInterval = 15 * time.Second
	DefaultStalenessMaxSilence    = 2 * time.Minute
	DefaultRuleFailoverThreshold  = 3
	DefaultRuleRecoveryThreshold  = 2
	DefaultProviderProbeInterval  = 30 * time.Second
	DefaultProviderProbeTimeout   = 5 * time.Second

	// Events defaults
	DefaultEventsEnabled          = true
	DefaultEventsBackend          = BackendMemory
	DefaultEventsSQLitePath       = "data/feedwatch.db"
	DefaultEventsSQLiteBusy       = 5 * time.Second
	DefaultEventsMemoryMaxRecords = 10000
	DefaultEventsBufferSize       = 1000
	DefaultRetentionDays          = 30
	DefaultRetentionSchedule      = "0 3 * * *"
	DefaultQueryDefaultLimit      = 100
	DefaultQueryMaxLimit          = 1000

	// Publisher defaults
	DefaultNATSServer         = "nats://127.0.0.1:4222"
	DefaultNATSSubjectPrefix  = "feedwatch.failover"
	DefaultNATSClientID       = "feedwatch"
	DefaultNATSConnectTimeout = 5 * time.Second
	DefaultNATSReconnectWait  = 2 * time.Second
	DefaultNATSMaxReconnects  = -1
	DefaultNATSBufferSize     = 1000

	// Telemetry defaults
	DefaultLoggingLevel     = "info"
	DefaultLoggingFormat    = "json"
	DefaultLoggingRedact    = true
	DefaultMetricsEnabled   = true
	DefaultMetricsPath      = "/metrics"
	DefaultMetricsNamespace = "feedwatch"
	DefaultMetricsSubsystem = "failover"
	DefaultTracingSampler   = "ratio"
	DefaultTracingRatio     = 0.1
	DefaultTracingEndpoint  = "localhost:4317"
	DefaultTracingService   = "feedwatch"
	DefaultTracingTimeout   = 10 * time.Second
)

// Default returns a configuration with every default applied. Boolean sections that
// default to true are set here so that a YAML file can still turn them off.
func Default() *Config {
	cfg := &Config{
		Failover: FailoverConfig{
			Enabled:   DefaultFailoverEnabled,
			Staleness: StalenessConfig{Enabled: DefaultStalenessEnabled},
		},
		Events: EventsConfig{Enabled: DefaultEventsEnabled},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{Redact: DefaultLoggingRedact},
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
		},
		Publisher: PublisherConfig{
			NATS: NATSConfig{MaxReconnects: DefaultNATSMaxReconnects},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults applies default values to a Config struct.
// It sets defaults for any fields that have zero values.
// This function is idempotent and safe to call multiple times.
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.MaxHeaderBytes == 0 {
		cfg.Server.MaxHeaderBytes = DefaultMaxHeaderBytes
	}

	// Failover defaults
	if cfg.Failover.Mode == "" {
		cfg.Failover.Mode = DefaultFailoverMode
	}
	if cfg.Failover.OverridePolicy == "" {
		cfg.Failover.OverridePolicy = DefaultOverridePolicy
	}
	if cfg.Failover.LatencyEWMAAlpha == 0 {
		cfg.Failover.LatencyEWMAAlpha = DefaultLatencyEWMAAlpha
	}
	if cfg.Failover.RecentIssueCapacity == 0 {
		cfg.Failover.RecentIssueCapacity = DefaultRecentIssueCapacity
	}
	if cfg.Failover.Staleness.CheckInterval == 0 {
		cfg.Failover.Staleness.CheckInterval = DefaultStalenessCheckInterval
	}
	if cfg.Failover.Staleness.MaxSilence == 0 {
		cfg.Failover.Staleness.MaxSilence = DefaultStalenessMaxSilence
	}
	for i := range cfg.Failover.Rules {
		rule := &cfg.Failover.Rules[i]
		if rule.FailoverThreshold == 0 {
			rule.FailoverThreshold = DefaultRuleFailoverThreshold
		}
		if rule.RecoveryThreshold == 0 {
			rule.RecoveryThreshold = DefaultRuleRecoveryThreshold
		}
	}

	// Provider defaults - applied to each provider
	for name, provider := range cfg.Providers {
		if provider.ProbeInterval == 0 {
			provider.ProbeInterval = DefaultProviderProbeInterval
		}
		if provider.Timeout == 0 {
			provider.Timeout = DefaultProviderProbeTimeout
		}
		cfg.Providers[name] = provider
	}

	// Events defaults
	if cfg.Events.Backend == "" {
		cfg.Events.Backend = DefaultEventsBackend
	}
	if cfg.Events.SQLite.Path == "" {
		cfg.Events.SQLite.Path = DefaultEventsSQLitePath
	}
	if cfg.Events.SQLite.BusyTimeout == 0 {
		cfg.Events.SQLite.BusyTimeout = DefaultEventsSQLiteBusy
	}
	if cfg.Events.Memory.MaxRecords == 0 {
		cfg.Events.Memory.MaxRecords = DefaultEventsMemoryMaxRecords
	}
	if cfg.Events.BufferSize == 0 {
		cfg.Events.BufferSize = DefaultEventsBufferSize
	}
	if cfg.Events.Retention.Days == 0 {
		cfg.Events.Retention.Days = DefaultRetentionDays
	}
	if cfg.Events.Retention.PruneSchedule == "" {
		cfg.Events.Retention.PruneSchedule = DefaultRetentionSchedule
	}
	if cfg.Events.QueryDefaultLimit == 0 {
		cfg.Events.QueryDefaultLimit = DefaultQueryDefaultLimit
	}
	if cfg.Events.QueryMaxLimit == 0 {
		cfg.Events.QueryMaxLimit = DefaultQueryMaxLimit
	}

	// Publisher defaults
	if len(cfg.Publisher.NATS.Servers) == 0 {
		cfg.Publisher.NATS.Servers = []string{DefaultNATSServer}
	}
	if cfg.Publisher.NATS.SubjectPrefix == "" {
		cfg.Publisher.NATS.SubjectPrefix = DefaultNATSSubjectPrefix
	}
	if cfg.Publisher.NATS.ClientID == "" {
		cfg.Publisher.NATS.ClientID = DefaultNATSClientID
	}
	if cfg.Publisher.NATS.ConnectTimeout == 0 {
		cfg.Publisher.NATS.ConnectTimeout = DefaultNATSConnectTimeout
	}
	if cfg.Publisher.NATS.ReconnectWait == 0 {
		cfg.Publisher.NATS.ReconnectWait = DefaultNATSReconnectWait
	}
	if cfg.Publisher.NATS.BufferSize == 0 {
		cfg.Publisher.NATS.BufferSize = DefaultNATSBufferSize
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingRatio
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingService
	}
	if cfg.Telemetry.Tracing.OTLP.Timeout == 0 {
		cfg.Telemetry.Tracing.OTLP.Timeout = DefaultTracingTimeout
	}
}
