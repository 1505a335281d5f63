package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"meridian-hq/feedwatch/pkg/events"
	"meridian-hq/feedwatch/pkg/failover"
)

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path. Parent directories are created.
	Path string

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:        "data/feedwatch.db",
		WALMode:     true,
		BusyTimeout: 5 * time.Second,
	}
}

// SQLiteStorage implements events.Store using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	insert *sql.Stmt
	logger *slog.Logger
}

// NewSQLiteStorage opens the database, creates the schema and verifies its
// version.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Path == "" {
		return nil, events.NewStorageError("sqlite", "open", errors.New("path cannot be empty"))
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = 5 * time.Second
	}

	logger := slog.Default().With("component", "events.storage.sqlite")

	if dir := filepath.Dir(config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, events.NewStorageError("sqlite", "mkdir", err)
		}
	}

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, events.NewStorageError("sqlite", "open", err)
	}

	// SQLite only supports a single writer; one connection also keeps the
	// per-connection pragmas below in effect.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.insert, err = db.Prepare(`INSERT INTO failover_events (` + selectColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`)
	if err != nil {
		db.Close()
		return nil, events.NewStorageError("sqlite", "prepare", err)
	}

	logger.Info("SQLite event storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)

	return s, nil
}

// initialize sets up pragmas and the schema.
func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return events.NewStorageError("sqlite", "enable_wal", err)
		}
		s.logger.Debug("WAL mode enabled")
	}

	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return events.NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return events.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return events.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil {
		return events.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return events.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	s.logger.Debug("schema version verified", "version", version)
	return nil
}

// Store persists an event record. Storing an ID twice keeps the first record.
func (s *SQLiteStorage) Store(ctx context.Context, record *events.Record) error {
	recorded := record.RecordedAt
	if recorded.IsZero() {
		recorded = time.Now()
	}

	_, err := s.insert.ExecContext(ctx,
		record.ID, string(record.Type), record.RuleID,
		string(record.ProviderID), string(record.FromProvider), string(record.ToProvider),
		record.Reason, record.Automatic,
		record.Timestamp.UnixNano(), recorded.UnixNano(),
	)
	if err != nil {
		return events.NewStorageError("sqlite", "store", err)
	}

	return nil
}

// Query retrieves event records matching the query filters.
func (s *SQLiteStorage) Query(ctx context.Context, query *events.Query) ([]*events.Record, error) {
	whereClause, args := buildWhereClause(query)

	sqlQuery := "SELECT " + selectColumns + " FROM failover_events"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}

	order := "DESC"
	if query.SortOrder == events.SortAsc {
		order = "ASC"
	}
	sqlQuery += fmt.Sprintf(" ORDER BY event_time %s, id %s", order, order)

	// SQLite requires a LIMIT clause before OFFSET; -1 means no limit.
	limit := -1
	if query.Limit > 0 {
		limit = query.Limit
	}
	sqlQuery += fmt.Sprintf(" LIMIT %d", limit)
	if query.Offset > 0 {
		sqlQuery += fmt.Sprintf(" OFFSET %d", query.Offset)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, events.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	records := []*events.Record{}
	for rows.Next() {
		record, err := scanRow(rows)
		if err != nil {
			return nil, events.NewStorageError("sqlite", "scan", err)
		}
		records = append(records, record)
	}

	if err := rows.Err(); err != nil {
		return nil, events.NewStorageError("sqlite", "query", err)
	}

	return records, nil
}

// Count returns the number of event records matching the query filters.
func (s *SQLiteStorage) Count(ctx context.Context, query *events.Query) (int64, error) {
	whereClause, args := buildWhereClause(query)

	sqlQuery := "SELECT COUNT(*) FROM failover_events"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&count); err != nil {
		return 0, events.NewStorageError("sqlite", "count", err)
	}

	return count, nil
}

// Delete removes event records matching the query filters.
func (s *SQLiteStorage) Delete(ctx context.Context, query *events.Query) (int64, error) {
	whereClause, args := buildWhereClause(query)

	sqlQuery := "DELETE FROM failover_events"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}

	result, err := s.db.ExecContext(ctx, sqlQuery, args...)
	if err != nil {
		return 0, events.NewStorageError("sqlite", "delete", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, events.NewStorageError("sqlite", "delete", err)
	}

	return count, nil
}

// DeleteOldest removes the n oldest records. It backs count-based retention
// without loading every record.
func (s *SQLiteStorage) DeleteOldest(ctx context.Context, n int64) (int64, error) {
	if n <= 0 {
		return 0, nil
	}

	result, err := s.db.ExecContext(ctx, `DELETE FROM failover_events WHERE id IN (
		SELECT id FROM failover_events ORDER BY event_time ASC, id ASC LIMIT ?)`, n)
	if err != nil {
		return 0, events.NewStorageError("sqlite", "delete_oldest", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, events.NewStorageError("sqlite", "delete_oldest", err)
	}
	return count, nil
}

// Ping verifies the database connection.
func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return events.NewStorageError("sqlite", "ping", err)
	}
	return nil
}

// Close releases resources held by the storage backend.
func (s *SQLiteStorage) Close() error {
	if s.insert != nil {
		s.insert.Close()
	}

	if err := s.db.Close(); err != nil {
		return events.NewStorageError("sqlite", "close", err)
	}

	s.logger.Info("SQLite event storage closed")
	return nil
}

// buildWhereClause builds a SQL WHERE clause from query filters.
// Returns the clause (without "WHERE") and its arguments.
func buildWhereClause(query *events.Query) (string, []any) {
	var conditions []string
	var args []any

	if query.StartTime != nil {
		conditions = append(conditions, "event_time >= ?")
		args = append(args, query.StartTime.UnixNano())
	}
	if query.EndTime != nil {
		conditions = append(conditions, "event_time <= ?")
		args = append(args, query.EndTime.UnixNano())
	}
	if query.RuleID != "" {
		conditions = append(conditions, "rule_id = ?")
		args = append(args, query.RuleID)
	}
	if query.ProviderID != "" {
		conditions = append(conditions, "(provider_id = ? OR from_provider = ? OR to_provider = ?)")
		p := string(query.ProviderID)
		args = append(args, p, p, p)
	}
	if query.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, string(query.Type))
	}

	return strings.Join(conditions, " AND "), args
}

// scanRow scans a database row into a Record.
func scanRow(row *sql.Rows) (*events.Record, error) {
	var (
		record                    events.Record
		eventType                 string
		provider, from, to        string
		eventNanos, recordedNanos int64
	)

	err := row.Scan(
		&record.ID, &eventType, &record.RuleID,
		&provider, &from, &to,
		&record.Reason, &record.Automatic,
		&eventNanos, &recordedNanos,
	)
	if err != nil {
		return nil, err
	}

	record.Type = failover.EventType(eventType)
	record.ProviderID = failover.ProviderID(provider)
	record.FromProvider = failover.ProviderID(from)
	record.ToProvider = failover.ProviderID(to)
	record.Timestamp = time.Unix(0, eventNanos).UTC()
	record.RecordedAt = time.Unix(0, recordedNanos).UTC()

	return &record, nil
}
