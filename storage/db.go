// Package storage keeps a local SQLite log of every hotkey action for the
// history and statistics views.
package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const fileName = "smartanychat.db"

type DB struct {
	conn *sql.DB
}

// Open opens the database in dir and initializes the schema
func Open(dir string) (*DB, error) {
	return OpenPath(filepath.Join(dir, fileName))
}

// OpenPath opens the database file at path
func OpenPath(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer at a time; the agent and the web UI share the handle.
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the database schema
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS completions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
		activation_id TEXT NOT NULL,
		action TEXT NOT NULL,

		-- Backend
		role TEXT NOT NULL,
		provider TEXT NOT NULL,
		model TEXT NOT NULL,

		-- Text
		prompt_text TEXT NOT NULL,
		response_text TEXT NOT NULL,
		prompt_chars INTEGER NOT NULL,
		response_chars INTEGER NOT NULL,

		-- Timing metrics
		capture_ms INTEGER NOT NULL,
		generate_ms INTEGER NOT NULL,
		inject_ms INTEGER NOT NULL,
		total_ms INTEGER NOT NULL,

		-- Status
		success BOOLEAN NOT NULL,
		error_message TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_completions_timestamp ON completions(timestamp);
	CREATE INDEX IF NOT EXISTS idx_completions_action ON completions(action);
	CREATE INDEX IF NOT EXISTS idx_completions_provider ON completions(provider);
	`

	_, err := db.conn.Exec(schema)
	return err
}
