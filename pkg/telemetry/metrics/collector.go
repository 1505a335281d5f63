package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"meridian-hq/feedwatch/pkg/config"
	"meridian-hq/feedwatch/pkg/failover"
)

// DefaultMaxProviderLabels bounds the number of distinct provider label values.
const DefaultMaxProviderLabels = 1000

// OtherLabel replaces label values once the cardinality limit is reached.
const OtherLabel = "other"

// Collector is the main orchestrator for all Prometheus metrics in feedwatch.
// It implements failover.EventSink and failover.ReportObserver so it can be
// attached directly to a failover.Service.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	failoverMetrics *FailoverMetrics
	providerMetrics *ProviderMetrics
	httpMetrics     *HTTPMetrics

	providerLimiter *CardinalityLimiter
}

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a fresh registry is created.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	svc.AddEventSink(collector)
//	svc.AddReportObserver(collector)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = config.DefaultMetricsSubsystem
	}

	c := &Collector{
		config:          cfg,
		registry:        registry,
		providerLimiter: NewCardinalityLimiter(DefaultMaxProviderLabels),
	}

	c.failoverMetrics = NewFailoverMetrics(cfg, registry)
	c.providerMetrics = NewProviderMetrics(cfg, registry)
	c.httpMetrics = NewHTTPMetrics(cfg, registry)

	return c
}

// HandleEvent records a failover event. It implements failover.EventSink.
func (c *Collector) HandleEvent(ev failover.Event) {
	if !c.config.Enabled {
		return
	}

	c.failoverMetrics.RecordEvent(ev.RuleID, string(ev.Type), ev.Automatic)
	if ev.Type == failover.EventProviderStale {
		c.providerMetrics.RecordStale(c.providerLabel(ev.ProviderID))
	}
}

// ObserveReport records a health report. It implements failover.ReportObserver.
func (c *Collector) ObserveReport(r failover.Report, h failover.ProviderHealth) {
	if !c.config.Enabled {
		return
	}

	provider := c.providerLabel(r.ProviderID)
	c.providerMetrics.RecordReport(provider, string(r.Outcome))

	switch r.Outcome {
	case failover.OutcomeSuccess:
		c.providerMetrics.RecordLatency(provider, r.LatencyMs)
	case failover.OutcomeQuality:
		c.providerMetrics.UpdateQuality(provider, r.Quality)
	}
	c.providerMetrics.UpdateConsecutiveFailures(provider, h.ConsecutiveFailures)
}

// RecordHTTPRequest records a completed API request.
func (c *Collector) RecordHTTPRequest(method, route string, status int, seconds float64) {
	if !c.config.Enabled {
		return
	}

	c.httpMetrics.RecordRequest(method, route, status, seconds)
}

// WatchState registers a scrape-time collector that exports rule and provider
// state read from source.
func (c *Collector) WatchState(source StateSource) error {
	return c.registry.Register(NewStateCollector(c.config, source))
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) providerLabel(id failover.ProviderID) string {
	if !c.providerLimiter.Allow(string(id)) {
		return OtherLabel
	}
	return string(id)
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label value is allowed. Returns true if the value
// already exists or if the cardinality limit has not been reached.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
