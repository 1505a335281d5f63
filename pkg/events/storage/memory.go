package storage

import (
	"context"
	"sort"
	"sync"

	"meridian-hq/feedwatch/pkg/events"
)

// DefaultMemoryMaxRecords bounds a MemoryStorage created with a non-positive limit.
const DefaultMemoryMaxRecords = 10000

// MemoryStorage implements events.Store with a bounded in-memory log. When
// full, the oldest inserted record is evicted.
type MemoryStorage struct {
	records    []*events.Record
	maxRecords int
	closed     bool
	mu         sync.RWMutex
}

// NewMemoryStorage creates a new in-memory storage backend holding at most
// maxRecords records.
func NewMemoryStorage(maxRecords int) *MemoryStorage {
	if maxRecords <= 0 {
		maxRecords = DefaultMemoryMaxRecords
	}
	return &MemoryStorage{
		records:    make([]*events.Record, 0, min(maxRecords, 1024)),
		maxRecords: maxRecords,
	}
}

// Store persists an event record to memory.
func (s *MemoryStorage) Store(ctx context.Context, record *events.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return events.NewStorageError("memory", "store", events.ErrClosed)
	}

	if len(s.records) >= s.maxRecords {
		n := len(s.records) - s.maxRecords + 1
		copy(s.records, s.records[n:])
		for i := len(s.records) - n; i < len(s.records); i++ {
			s.records[i] = nil
		}
		s.records = s.records[:len(s.records)-n]
	}

	// Create a copy to avoid mutation
	recordCopy := *record
	s.records = append(s.records, &recordCopy)

	return nil
}

// Query retrieves event records matching the query filters.
func (s *MemoryStorage) Query(ctx context.Context, query *events.Query) ([]*events.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, events.NewStorageError("memory", "query", events.ErrClosed)
	}

	results := []*events.Record{}
	for _, record := range s.records {
		if query.Matches(record) {
			recordCopy := *record
			results = append(results, &recordCopy)
		}
	}

	asc := query.SortOrder == events.SortAsc
	sort.SliceStable(results, func(i, j int) bool {
		if asc {
			return results[i].Timestamp.Before(results[j].Timestamp)
		}
		return results[i].Timestamp.After(results[j].Timestamp)
	})

	// Apply pagination
	start := query.Offset
	if start > len(results) {
		return []*events.Record{}, nil
	}
	results = results[start:]
	if query.Limit > 0 && query.Limit < len(results) {
		results = results[:query.Limit]
	}

	return results, nil
}

// Count returns the number of event records matching the query filters.
func (s *MemoryStorage) Count(ctx context.Context, query *events.Query) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, events.NewStorageError("memory", "count", events.ErrClosed)
	}

	var count int64
	for _, record := range s.records {
		if query.Matches(record) {
			count++
		}
	}

	return count, nil
}

// Delete removes event records matching the query filters.
func (s *MemoryStorage) Delete(ctx context.Context, query *events.Query) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, events.NewStorageError("memory", "delete", events.ErrClosed)
	}

	kept := s.records[:0]
	var deleted int64
	for _, record := range s.records {
		if query.Matches(record) {
			deleted++
			continue
		}
		kept = append(kept, record)
	}
	for i := len(kept); i < len(s.records); i++ {
		s.records[i] = nil
	}
	s.records = kept

	return deleted, nil
}

// DeleteOldest removes the n records with the oldest event timestamps.
func (s *MemoryStorage) DeleteOldest(ctx context.Context, n int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, events.NewStorageError("memory", "delete_oldest", events.ErrClosed)
	}
	if n <= 0 {
		return 0, nil
	}
	if n >= int64(len(s.records)) {
		deleted := int64(len(s.records))
		clear(s.records)
		s.records = s.records[:0]
		return deleted, nil
	}

	byAge := make([]*events.Record, len(s.records))
	copy(byAge, s.records)
	sort.SliceStable(byAge, func(i, j int) bool {
		return byAge[i].Timestamp.Before(byAge[j].Timestamp)
	})
	victims := make(map[*events.Record]struct{}, n)
	for _, r := range byAge[:n] {
		victims[r] = struct{}{}
	}

	kept := s.records[:0]
	for _, r := range s.records {
		if _, ok := victims[r]; !ok {
			kept = append(kept, r)
		}
	}
	for i := len(kept); i < len(s.records); i++ {
		s.records[i] = nil
	}
	s.records = kept

	return n, nil
}

// Ping reports whether the store is open.
func (s *MemoryStorage) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return events.NewStorageError("memory", "ping", events.ErrClosed)
	}
	return nil
}

// Close releases the records. Further calls fail with events.ErrClosed.
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.closed = true
	return nil
}

// Size returns the number of records held.
func (s *MemoryStorage) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.records)
}
