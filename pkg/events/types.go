package events

import (
	"context"
	"time"

	"meridian-hq/feedwatch/pkg/failover"
)

// Record is a persisted failover event.
type Record struct {
	failover.Event

	// RecordedAt is when the record reached the store.
	RecordedAt time.Time `json:"recordedAt"`
}

// MatchesProvider reports whether provider took part in the event in any role.
func (r *Record) MatchesProvider(provider failover.ProviderID) bool {
	return r.ProviderID == provider || r.FromProvider == provider || r.ToProvider == provider
}

// Query defines filter parameters for querying event records.
type Query struct {
	// Time range on the event timestamp
	StartTime *time.Time `json:"startTime,omitempty"` // Inclusive start time
	EndTime   *time.Time `json:"endTime,omitempty"`   // Inclusive end time

	// Filters
	RuleID     string              `json:"ruleId,omitempty"`
	ProviderID failover.ProviderID `json:"providerId,omitempty"` // Matches provider, from or to
	Type       failover.EventType  `json:"type,omitempty"`

	// Pagination
	Limit  int `json:"limit,omitempty"`  // Max records to return, 0 for no limit
	Offset int `json:"offset,omitempty"` // Skip N records

	// SortOrder is "asc" or "desc" on the event timestamp
	SortOrder string `json:"sortOrder,omitempty"`
}

// Store defines the interface for event storage backends.
// Implementations must be safe for concurrent use.
type Store interface {
	// Store persists an event record.
	Store(ctx context.Context, record *Record) error

	// Query retrieves records matching the filters. Returns an empty slice if
	// nothing matches.
	Query(ctx context.Context, query *Query) ([]*Record, error)

	// Count returns the number of records matching the filters. Pagination
	// fields are ignored.
	Count(ctx context.Context, query *Query) (int64, error)

	// Delete removes records matching the filters and returns how many were
	// deleted. Pagination fields are ignored.
	Delete(ctx context.Context, query *Query) (int64, error)

	// Ping verifies the backend is usable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the backend.
	Close() error
}

// Matches reports whether r satisfies the query filters. Pagination and
// sorting are not considered.
func (q *Query) Matches(r *Record) bool {
	if q.StartTime != nil && r.Timestamp.Before(*q.StartTime) {
		return false
	}
	if q.EndTime != nil && r.Timestamp.After(*q.EndTime) {
		return false
	}
	if q.RuleID != "" && r.RuleID != q.RuleID {
		return false
	}
	if q.ProviderID != "" && !r.MatchesProvider(q.ProviderID) {
		return false
	}
	if q.Type != "" && r.Type != q.Type {
		return false
	}
	return true
}
