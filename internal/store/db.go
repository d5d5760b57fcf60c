// Package store provides SQLite-backed persistence for the DaleFocus
// service: tasks, steps, focus sessions, and the per-principal rate-limit
// windows. It is the only shared mutable state between concurrent calls;
// all cross-call coordination happens through its transactions.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps an SQLite database connection with DaleFocus-specific operations.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens an SQLite database at the given path, creating parent
// directories if needed. WAL mode is enabled for concurrent reads and a
// busy timeout keeps concurrent write transactions from failing fast.
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Pragmas go in the DSN so the driver applies them to every pooled
	// connection, not just the one a bare PRAGMA statement happens to
	// run on. UpdateWindow acquires dedicated connections and relies on
	// busy_timeout being set there.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return &DB{conn: conn, path: path}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the path to the database file.
func (db *DB) Path() string {
	return db.path
}

// Migrate applies all pending schema migrations.
func (db *DB) Migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var currentVersion int
	row := db.conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []struct {
		version int
		sql     string
	}{
		{1, migrationV1Tasks},
		{2, migrationV2Sessions},
		{3, migrationV3RateLimits},
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}

		tx, err := db.conn.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}

		if _, err := tx.Exec(m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration v%d: %w", m.version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration v%d: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration v%d: %w", m.version, err)
		}
	}

	return nil
}

const migrationV1Tasks = `
CREATE TABLE tasks (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	title TEXT NOT NULL,
	barrier TEXT NOT NULL,
	strategy TEXT NOT NULL,
	estimated_pomodoros INTEGER NOT NULL,
	status TEXT NOT NULL,
	created_at TEXT NOT NULL,
	first_session_at TEXT,
	completed_at TEXT
);
CREATE INDEX idx_tasks_owner ON tasks(owner_id);
CREATE INDEX idx_tasks_owner_status ON tasks(owner_id, status);

CREATE TABLE steps (
	id TEXT PRIMARY KEY,
	task_id TEXT NOT NULL REFERENCES tasks(id),
	title TEXT NOT NULL,
	action TEXT NOT NULL,
	estimate_minutes INTEGER NOT NULL,
	acceptance_criteria TEXT NOT NULL,
	step_order INTEGER NOT NULL,
	status TEXT NOT NULL,
	completed_at TEXT
);
CREATE INDEX idx_steps_task ON steps(task_id);
`

const migrationV2Sessions = `
CREATE TABLE focus_sessions (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	task_id TEXT,
	step_id TEXT,
	start_at TEXT NOT NULL,
	end_at TEXT NOT NULL,
	duration_minutes INTEGER NOT NULL,
	completed INTEGER NOT NULL
);
CREATE INDEX idx_sessions_owner ON focus_sessions(owner_id);
CREATE INDEX idx_sessions_task ON focus_sessions(task_id);
`

const migrationV3RateLimits = `
CREATE TABLE rate_limit_windows (
	principal TEXT PRIMARY KEY,
	window_start TEXT NOT NULL,
	count INTEGER NOT NULL
);
`

// withTx runs fn inside a transaction, committing on nil and rolling back
// on error.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// formatTime serializes a timestamp for storage.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime deserializes a stored timestamp.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// formatNullableTime serializes an optional timestamp.
func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

// parseNullableTime deserializes an optional stored timestamp.
func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil
	}
	return &t
}
