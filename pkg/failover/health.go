package failover

import (
	"math"
	"sort"
	"sync"
	"time"
)

const (
	// DefaultLatencyAlpha is the EWMA smoothing factor for average latency.
	DefaultLatencyAlpha = 0.2

	// DefaultIssueCapacity is the number of recent failure reasons kept per provider.
	DefaultIssueCapacity = 10
)

// TrackerConfig configures a HealthTracker.
type TrackerConfig struct {
	// LatencyAlpha is the EWMA weight of the newest latency sample, in (0, 1].
	LatencyAlpha float64

	// IssueCapacity bounds RecentIssues.
	IssueCapacity int

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// healthEntry holds one provider's counters behind its own lock.
type healthEntry struct {
	mu            sync.Mutex
	health        ProviderHealth
	latencySeeded bool
}

// HealthTracker keeps rolling per-provider counters. Entries are created lazily on the
// first observation and never removed.
type HealthTracker struct {
	mu      sync.RWMutex
	entries map[ProviderID]*healthEntry

	alpha    float64
	capacity int
	now      func() time.Time
}

// NewHealthTracker creates a tracker, filling zero config fields with defaults.
func NewHealthTracker(cfg TrackerConfig) *HealthTracker {
	if cfg.LatencyAlpha <= 0 || cfg.LatencyAlpha > 1 {
		cfg.LatencyAlpha = DefaultLatencyAlpha
	}
	if cfg.IssueCapacity <= 0 {
		cfg.IssueCapacity = DefaultIssueCapacity
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &HealthTracker{
		entries:  make(map[ProviderID]*healthEntry),
		alpha:    cfg.LatencyAlpha,
		capacity: cfg.IssueCapacity,
		now:      cfg.Clock,
	}
}

func (t *HealthTracker) entry(id ProviderID) *healthEntry {
	t.mu.RLock()
	e, ok := t.entries[id]
	t.mu.RUnlock()
	if ok {
		return e
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok = t.entries[id]; ok {
		return e
	}
	e = &healthEntry{health: ProviderHealth{ProviderID: id}}
	t.entries[id] = e
	return e
}

// ReportSuccess records a successful observation and returns the post-update health.
// Negative latencies are treated as zero; NaN and infinite latencies leave the average
// unchanged.
func (t *HealthTracker) ReportSuccess(id ProviderID, latencyMs float64) ProviderHealth {
	now := t.now()
	e := t.entry(id)

	e.mu.Lock()
	defer e.mu.Unlock()

	h := &e.health
	h.ConsecutiveSuccesses++
	h.ConsecutiveFailures = 0
	h.TotalSuccesses++
	h.LastSuccessTime = &now
	h.Stale = false

	if !math.IsNaN(latencyMs) && !math.IsInf(latencyMs, 0) {
		if latencyMs < 0 {
			latencyMs = 0
		}
		if e.latencySeeded {
			h.AverageLatencyMs = t.alpha*latencyMs + (1-t.alpha)*h.AverageLatencyMs
		} else {
			h.AverageLatencyMs = latencyMs
			e.latencySeeded = true
		}
	}

	return copyHealth(h)
}

// ReportFailure records a failed observation and returns the post-update health.
func (t *HealthTracker) ReportFailure(id ProviderID, reason string) ProviderHealth {
	now := t.now()
	e := t.entry(id)

	e.mu.Lock()
	defer e.mu.Unlock()

	h := &e.health
	h.ConsecutiveFailures++
	h.ConsecutiveSuccesses = 0
	h.TotalFailures++
	h.LastFailureTime = &now
	h.Stale = false

	if reason != "" {
		if len(h.RecentIssues) >= t.capacity {
			n := copy(h.RecentIssues, h.RecentIssues[len(h.RecentIssues)-t.capacity+1:])
			h.RecentIssues = h.RecentIssues[:n]
		}
		h.RecentIssues = append(h.RecentIssues, reason)
	}

	return copyHealth(h)
}

// ReportQuality records the latest data-quality score, clamped to [0, 1]. Quality
// reports do not touch the success and failure counters. NaN scores are ignored.
func (t *HealthTracker) ReportQuality(id ProviderID, score float64) ProviderHealth {
	e := t.entry(id)

	e.mu.Lock()
	defer e.mu.Unlock()

	h := &e.health
	if !math.IsNaN(score) {
		score = math.Max(0, math.Min(1, score))
		h.DataQualityScore = &score
	}
	return copyHealth(h)
}

// Snapshot returns a copy of one provider's health.
func (t *HealthTracker) Snapshot(id ProviderID) (ProviderHealth, bool) {
	t.mu.RLock()
	e, ok := t.entries[id]
	t.mu.RUnlock()
	if !ok {
		return ProviderHealth{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return copyHealth(&e.health), true
}

// SnapshotAll returns copies of every provider's health sorted by provider ID.
func (t *HealthTracker) SnapshotAll() []ProviderHealth {
	t.mu.RLock()
	entries := make([]*healthEntry, 0, len(t.entries))
	for _, e := range t.entries {
		entries = append(entries, e)
	}
	t.mu.RUnlock()

	out := make([]ProviderHealth, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, copyHealth(&e.health))
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProviderID < out[j].ProviderID })
	return out
}

// MarkStale flags providers whose latest success or failure is older than olderThan
// and returns the ones that became stale during this call, sorted. Providers already
// flagged are not returned again until a new report clears the flag. Providers that
// only ever reported quality scores are skipped.
func (t *HealthTracker) MarkStale(olderThan time.Duration, now time.Time) []ProviderID {
	t.mu.RLock()
	entries := make([]*healthEntry, 0, len(t.entries))
	for _, e := range t.entries {
		entries = append(entries, e)
	}
	t.mu.RUnlock()

	var marked []ProviderID
	for _, e := range entries {
		e.mu.Lock()
		last := e.health.LastReportTime()
		if !e.health.Stale && !last.IsZero() && now.Sub(last) > olderThan {
			e.health.Stale = true
			marked = append(marked, e.health.ProviderID)
		}
		e.mu.Unlock()
	}
	sort.Slice(marked, func(i, j int) bool { return marked[i] < marked[j] })
	return marked
}

// markSilent records the silence of a provider that never reported by creating its
// entry already flagged stale. It returns false when the provider has an entry.
func (t *HealthTracker) markSilent(id ProviderID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[id]; ok {
		return false
	}
	t.entries[id] = &healthEntry{health: ProviderHealth{ProviderID: id, Stale: true}}
	return true
}

func copyHealth(h *ProviderHealth) ProviderHealth {
	c := *h
	if h.LastSuccessTime != nil {
		ts := *h.LastSuccessTime
		c.LastSuccessTime = &ts
	}
	if h.LastFailureTime != nil {
		ts := *h.LastFailureTime
		c.LastFailureTime = &ts
	}
	if h.DataQualityScore != nil {
		s := *h.DataQualityScore
		c.DataQualityScore = &s
	}
	c.RecentIssues = append([]string(nil), h.RecentIssues...)
	if c.RecentIssues == nil {
		c.RecentIssues = []string{}
	}
	return c
}
