package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"meridian-hq/feedwatch/pkg/config"
	"meridian-hq/feedwatch/pkg/failover"
	"meridian-hq/feedwatch/pkg/telemetry/logging"
	"meridian-hq/feedwatch/pkg/telemetry/tracing"
)

const (
	// DefaultInterval is used for targets without an interval.
	DefaultInterval = 30 * time.Second

	// DefaultTimeout is used for targets without a timeout.
	DefaultTimeout = 5 * time.Second

	// MaxBackoff caps the delay between probes of a failing provider.
	MaxBackoff = 5 * time.Minute

	maxBodyDrain = 64 << 10
)

// Reporter receives probe outcomes. *failover.Service satisfies it.
type Reporter interface {
	ReportSuccess(id failover.ProviderID, latencyMs float64)
	ReportFailure(id failover.ProviderID, reason string)
}

// Target is one provider health endpoint.
type Target struct {
	ProviderID failover.ProviderID
	URL        string
	Interval   time.Duration
	Timeout    time.Duration
	APIKey     string
}

// TargetsFromConfig returns a target for every provider with a health URL,
// sorted by provider ID.
func TargetsFromConfig(providers map[string]config.ProviderConfig) []Target {
	targets := make([]Target, 0, len(providers))
	for name, p := range providers {
		if p.HealthURL == "" {
			continue
		}
		targets = append(targets, Target{
			ProviderID: failover.ProviderID(name),
			URL:        p.HealthURL,
			Interval:   p.ProbeInterval,
			Timeout:    p.Timeout,
			APIKey:     p.APIKey,
		})
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].ProviderID < targets[j].ProviderID })
	return targets
}

// Prober runs periodic probes for a set of targets.
type Prober struct {
	client   *http.Client
	reporter Reporter
	targets  []Target
	redactor *logging.Redactor
	logger   *slog.Logger

	mu       sync.Mutex
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	failures map[failover.ProviderID]int
}

// NewProber creates a prober. A nil client uses a dedicated http.Client; per
// probe timeouts come from the target.
func NewProber(client *http.Client, reporter Reporter, targets []Target) *Prober {
	if client == nil {
		client = &http.Client{}
	}
	normalized := make([]Target, len(targets))
	for i, t := range targets {
		if t.Interval <= 0 {
			t.Interval = DefaultInterval
		}
		if t.Timeout <= 0 {
			t.Timeout = DefaultTimeout
		}
		normalized[i] = t
	}
	return &Prober{
		client:   client,
		reporter: reporter,
		targets:  normalized,
		redactor: logging.NewRedactor(),
		logger:   slog.Default().With("component", "probe"),
		failures: make(map[failover.ProviderID]int),
	}
}

// Targets returns the normalized targets.
func (p *Prober) Targets() []Target {
	return append([]Target(nil), p.targets...)
}

// Start launches one probe loop per target. Calling Start on a running
// prober is a no-op.
func (p *Prober) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)

	for _, t := range p.targets {
		p.wg.Add(1)
		go p.run(ctx, t)
	}

	p.logger.Info("provider probes started", "targets", len(p.targets))
}

// Stop cancels all probe loops and waits for them to exit.
func (p *Prober) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
	p.logger.Info("provider probes stopped")
}

// run is the probe loop for one target. The first probe fires immediately.
func (p *Prober) run(ctx context.Context, t Target) {
	defer p.wg.Done()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			p.Probe(ctx, t)

			next := calculateBackoff(p.consecutiveFailures(t.ProviderID), t.Interval)
			if next != t.Interval {
				p.logger.Debug("probe backoff",
					"provider", t.ProviderID,
					"next_check_in", next,
				)
			}
			timer.Reset(next)
		}
	}
}

// Probe performs one check of t and reports the outcome. It returns the
// probe error, if any.
func (p *Prober) Probe(ctx context.Context, t Target) error {
	ctx, span := otel.Tracer(tracing.InstrumentationName).Start(ctx, "probe "+string(t.ProviderID),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(tracing.AttrProvider, string(t.ProviderID)),
			attribute.String(tracing.AttrURLFull, p.redactor.RedactString(t.URL)),
		),
	)
	defer span.End()

	latency, err := p.check(ctx, t)
	if err != nil {
		// A cancelled parent means shutdown, not a provider failure.
		if ctx.Err() != nil {
			return ctx.Err()
		}
		reason := p.redactor.RedactString(err.Error())
		tracing.SetStatus(span, errors.New(reason))
		p.recordFailure(t.ProviderID)
		p.reporter.ReportFailure(t.ProviderID, reason)
		p.logger.Warn("provider probe failed",
			"provider", t.ProviderID,
			"error", reason,
		)
		return err
	}

	if prev := p.recordSuccess(t.ProviderID); prev > 0 {
		p.logger.Info("provider probe recovered",
			"provider", t.ProviderID,
			"previous_failures", prev,
		)
	}
	ms := float64(latency.Microseconds()) / 1000
	tracing.SetStatus(span, nil)
	p.reporter.ReportSuccess(t.ProviderID, ms)
	return nil
}

// check issues the GET request and returns the round-trip latency.
func (p *Prober) check(ctx context.Context, t Target) (time.Duration, error) {
	checkCtx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, t.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("build probe request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "feedwatch-probe")
	tracing.Inject(checkCtx, req.Header)
	if t.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.APIKey)
	}

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, fmt.Errorf("probe timed out after %s", t.Timeout)
		}
		return 0, fmt.Errorf("probe request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyDrain))
	latency := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return latency, fmt.Errorf("probe returned HTTP %d", resp.StatusCode)
	}
	return latency, nil
}

func (p *Prober) recordFailure(id failover.ProviderID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[id]++
}

func (p *Prober) recordSuccess(id failover.ProviderID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	prev := p.failures[id]
	p.failures[id] = 0
	return prev
}

func (p *Prober) consecutiveFailures(id failover.ProviderID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures[id]
}

// calculateBackoff calculates the probe interval based on consecutive
// failures: base * 2^failures, capped at 10x the base and at MaxBackoff.
func calculateBackoff(consecutiveFailures int, baseInterval time.Duration) time.Duration {
	if consecutiveFailures <= 0 {
		return baseInterval
	}

	multiplier := 10
	if consecutiveFailures < 4 {
		multiplier = 1 << uint(consecutiveFailures)
	}

	backoff := baseInterval * time.Duration(multiplier)
	if backoff > MaxBackoff {
		backoff = MaxBackoff
	}
	if backoff < baseInterval {
		backoff = baseInterval
	}

	return backoff
}
