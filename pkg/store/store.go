// Package store owns the durable sqlite database shared by the session
// store and the event ledger.
//
// Invariants:
// - The schema is created on open; opening an existing database is a no-op.
// - Foreign keys are enforced; deleting a session cascades to its events.
// - WAL mode is enabled so cleanup batches can run alongside request traffic.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DB wraps the shared sql.DB handle.
type DB struct {
	sql    *sql.DB
	logger zerolog.Logger
}

// Open opens (or creates) the tracking database at path.
func Open(path string, logger zerolog.Logger) (*DB, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	// foreign_keys is per-connection, so it lives in the DSN where every
	// pooled connection picks it up
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	d := &DB{sql: db, logger: logger}

	if err := d.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.logger.Info().Str("path", path).Msg("Tracking database opened")
	return d, nil
}

// initSchema creates database tables
func (d *DB) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			token TEXT NOT NULL UNIQUE,
			created_at INTEGER NOT NULL,
			last_activity INTEGER NOT NULL,
			metadata TEXT NOT NULL DEFAULT '{}',
			is_active INTEGER NOT NULL DEFAULT 1
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_token ON sessions(token);
		CREATE INDEX IF NOT EXISTS idx_sessions_last_activity ON sessions(last_activity);

		CREATE TABLE IF NOT EXISTS events (
			id TEXT NOT NULL,
			time INTEGER NOT NULL,
			session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
			model TEXT,
			provider TEXT,
			endpoint TEXT,
			tokens_prompt INTEGER NOT NULL DEFAULT 0,
			tokens_completion INTEGER NOT NULL DEFAULT 0,
			tokens_total INTEGER NOT NULL DEFAULT 0,
			latency_ms INTEGER,
			cost_usd REAL NOT NULL DEFAULT 0,
			messages TEXT,
			response TEXT,
			status TEXT NOT NULL,
			has_error INTEGER NOT NULL DEFAULT 0,
			error_message TEXT,
			PRIMARY KEY (id, time)
		);
		CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);
		CREATE INDEX IF NOT EXISTS idx_events_time ON events(time);
	`

	if _, err := d.sql.Exec(schema); err != nil {
		return err
	}

	return nil
}

// SQL returns the underlying database handle.
func (d *DB) SQL() *sql.DB {
	return d.sql
}

// Close closes the database.
func (d *DB) Close() error {
	d.logger.Info().Msg("Closing tracking database")
	return d.sql.Close()
}
