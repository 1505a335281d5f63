package events

import (
	"fmt"

	"meridian-hq/feedwatch/pkg/failover"
)

const (
	// DefaultLimit is the default number of records to return if not specified.
	DefaultLimit = 100

	// MaxLimit is the maximum number of records that can be returned in a single query.
	MaxLimit = 1000

	SortAsc  = "asc"
	SortDesc = "desc"
)

// Validate validates a query against maxLimit and returns a *QueryError if any
// parameter is invalid. A maxLimit of 0 means MaxLimit.
func Validate(q *Query, maxLimit int) error {
	if maxLimit <= 0 {
		maxLimit = MaxLimit
	}

	if q.Limit < 0 {
		return NewQueryError(q, fmt.Errorf("limit must be >= 0, got %d", q.Limit))
	}
	if q.Limit > maxLimit {
		return NewQueryError(q, fmt.Errorf("limit must be <= %d, got %d", maxLimit, q.Limit))
	}
	if q.Offset < 0 {
		return NewQueryError(q, fmt.Errorf("offset must be >= 0, got %d", q.Offset))
	}
	if q.SortOrder != "" && q.SortOrder != SortAsc && q.SortOrder != SortDesc {
		return NewQueryError(q, fmt.Errorf("invalid sort order: %s (must be 'asc' or 'desc')", q.SortOrder))
	}
	if q.StartTime != nil && q.EndTime != nil && q.StartTime.After(*q.EndTime) {
		return NewQueryError(q, fmt.Errorf("start time must be before end time"))
	}
	if q.Type != "" && !knownType(q.Type) {
		return NewQueryError(q, fmt.Errorf("unknown event type: %s", q.Type))
	}

	return nil
}

// ApplyDefaults fills in the limit and sort order. A defaultLimit of 0 means
// DefaultLimit.
func ApplyDefaults(q *Query, defaultLimit int) {
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	if q.Limit == 0 {
		q.Limit = defaultLimit
	}
	if q.SortOrder == "" {
		q.SortOrder = SortDesc
	}
}

func knownType(t failover.EventType) bool {
	for _, known := range failover.EventTypes() {
		if t == known {
			return true
		}
	}
	return false
}
