// Package events records failover events so they can be queried after the fact.
//
// The package is split the same way as the data flow:
//
//   - recorder: a failover.EventSink that buffers events and writes them
//     asynchronously, so the failover service never waits on storage
//   - storage: Store implementations (bounded in-memory ring, SQLite)
//   - retention: age and count based pruning on a cron schedule
//
// Records carry the event exactly as emitted plus the time it was persisted.
// Queries filter by rule, provider, type and time range and are returned
// newest first unless SortOrder is "asc".
package events
