package failover

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// DefaultStalenessInterval is how often the monitor checks for silent providers.
	DefaultStalenessInterval = 15 * time.Second

	// DefaultMaxSilence is how long a provider may go without reporting.
	DefaultMaxSilence = 2 * time.Minute
)

// StalenessMonitor periodically flags providers that stopped reporting.
type StalenessMonitor struct {
	svc        *Service
	interval   time.Duration
	maxSilence time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewStalenessMonitor creates a monitor for svc. Non-positive durations select the
// defaults.
func NewStalenessMonitor(svc *Service, interval, maxSilence time.Duration) *StalenessMonitor {
	if interval <= 0 {
		interval = DefaultStalenessInterval
	}
	if maxSilence <= 0 {
		maxSilence = DefaultMaxSilence
	}
	return &StalenessMonitor{
		svc:        svc,
		interval:   interval,
		maxSilence: maxSilence,
	}
}

// Start launches the check loop. It is a no-op if the monitor is already running.
func (m *StalenessMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	go m.run(ctx, m.stopCh, m.doneCh)
}

// Stop signals the loop to exit and waits for it.
func (m *StalenessMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopCh)
	done := m.doneCh
	m.mu.Unlock()

	<-done
}

// Check runs a single staleness pass.
func (m *StalenessMonitor) Check() []ProviderID {
	return m.svc.CheckStaleness(m.maxSilence)
}

func (m *StalenessMonitor) run(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	slog.Info("staleness monitor started",
		"interval", m.interval,
		"max_silence", m.maxSilence,
	)

	for {
		select {
		case <-ctx.Done():
			slog.Debug("staleness monitor stopped (context cancelled)")
			return
		case <-stop:
			slog.Debug("staleness monitor stopped")
			return
		case <-ticker.C:
			if marked := m.Check(); len(marked) > 0 {
				slog.Debug("staleness check flagged providers", "count", len(marked))
			}
		}
	}
}
