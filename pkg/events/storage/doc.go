// Package storage provides event store backends.
//
// MemoryStorage keeps a bounded number of records and is the default: the
// event log is diagnostic, and the authoritative failover state lives in the
// service. SQLiteStorage persists records across restarts using the pure-Go
// modernc.org/sqlite driver in WAL mode.
package storage
