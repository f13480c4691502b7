// Package store persists workspaces, boards and their side records in SQLite.
// Boards are stored as versioned JSON documents; optional FTS5 powers item search.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS workspaces (
	id          TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	owner_id    TEXT NOT NULL,
	members     TEXT NOT NULL DEFAULT '[]',
	color       TEXT NOT NULL DEFAULT '',
	is_default  INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS folders (
	id           TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
	parent_id    TEXT REFERENCES folders(id) ON DELETE CASCADE,
	name         TEXT NOT NULL,
	color        TEXT NOT NULL DEFAULT '',
	created_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS boards (
	id           TEXT PRIMARY KEY,
	workspace_id TEXT NOT NULL REFERENCES workspaces(id) ON DELETE CASCADE,
	folder_id    TEXT REFERENCES folders(id) ON DELETE SET NULL,
	name         TEXT NOT NULL,
	business_app TEXT NOT NULL DEFAULT '',
	item_count   INTEGER NOT NULL DEFAULT 0,
	version      INTEGER NOT NULL,
	doc          TEXT NOT NULL,
	created_at   DATETIME NOT NULL,
	updated_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS items_search (
	board_id TEXT NOT NULL REFERENCES boards(id) ON DELETE CASCADE,
	item_id  TEXT NOT NULL,
	title    TEXT NOT NULL DEFAULT '',
	body     TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (board_id, item_id)
);

CREATE TABLE IF NOT EXISTS activities (
	id         TEXT PRIMARY KEY,
	board_id   TEXT NOT NULL,
	item_id    TEXT NOT NULL DEFAULT '',
	type       TEXT NOT NULL,
	user_id    TEXT NOT NULL DEFAULT '',
	message    TEXT NOT NULL DEFAULT '',
	data       TEXT NOT NULL DEFAULT '{}',
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS notifications (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	board_id   TEXT NOT NULL,
	item_id    TEXT NOT NULL DEFAULT '',
	type       TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	message    TEXT NOT NULL DEFAULT '',
	read       INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS deferred_actions (
	id            TEXT PRIMARY KEY,
	board_id      TEXT NOT NULL REFERENCES boards(id) ON DELETE CASCADE,
	automation_id TEXT NOT NULL,
	payload       TEXT NOT NULL,
	run_at        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS date_triggers (
	automation_id TEXT NOT NULL,
	item_id       TEXT NOT NULL,
	date          TEXT NOT NULL,
	fired_at      DATETIME NOT NULL,
	PRIMARY KEY (automation_id, item_id, date)
);

CREATE INDEX IF NOT EXISTS idx_boards_workspace ON boards(workspace_id);
CREATE INDEX IF NOT EXISTS idx_folders_workspace ON folders(workspace_id);
CREATE INDEX IF NOT EXISTS idx_activities_board ON activities(board_id, created_at);
CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at);
CREATE INDEX IF NOT EXISTS idx_deferred_run_at ON deferred_actions(run_at);
`

// DB wraps a sql.DB with store operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("store: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
