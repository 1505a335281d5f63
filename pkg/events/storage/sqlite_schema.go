package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the event database schema.
// Timestamps are stored as Unix nanoseconds so range filters and ordering
// compare integers.
const Schema = `
CREATE TABLE IF NOT EXISTS failover_events (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    rule_id TEXT NOT NULL DEFAULT '',
    provider_id TEXT NOT NULL DEFAULT '',
    from_provider TEXT NOT NULL DEFAULT '',
    to_provider TEXT NOT NULL DEFAULT '',
    reason TEXT NOT NULL DEFAULT '',
    automatic INTEGER NOT NULL DEFAULT 0,
    event_time INTEGER NOT NULL,
    recorded_time INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_failover_events_time ON failover_events(event_time);
CREATE INDEX IF NOT EXISTS idx_failover_events_rule ON failover_events(rule_id, event_time);
CREATE INDEX IF NOT EXISTS idx_failover_events_type ON failover_events(type);
`

// InsertSchemaVersion inserts the schema version into the schema_version table.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`

const selectColumns = `id, type, rule_id, provider_id, from_provider, to_provider, reason, automatic, event_time, recorded_time`
