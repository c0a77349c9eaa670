// Package store persists reconciliation state to SQLite. It implements the
// engine's Committer: every commit set is applied in one database
// transaction, so a crash mid-write never leaves a half-applied operation.
package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// InitDB opens (or creates) a SQLite database at the given path and ensures
// all required tables exist. Pass ":memory:" for an in-memory database.
func InitDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set wal mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS transactions (
			serial TEXT PRIMARY KEY,
			date DATETIME NOT NULL,
			description TEXT NOT NULL,
			amount TEXT NOT NULL,
			recon_type TEXT NOT NULL,
			reference TEXT NOT NULL,
			importer_id TEXT NOT NULL,
			status TEXT NOT NULL,
			match_id TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_match ON transactions(match_id)`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date)`,

		`CREATE TABLE IF NOT EXISTS match_groups (
			id TEXT PRIMARY KEY,
			ref TEXT UNIQUE NOT NULL,
			left_total TEXT NOT NULL,
			right_total TEXT NOT NULL,
			difference TEXT NOT NULL,
			comment TEXT NOT NULL,
			status TEXT NOT NULL,
			created_by TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			approved_by TEXT NOT NULL DEFAULT '',
			approved_at DATETIME
		)`,

		`CREATE TABLE IF NOT EXISTS match_members (
			match_id TEXT NOT NULL,
			serial TEXT NOT NULL,
			side TEXT NOT NULL CHECK (side IN ('L','R')),
			position INTEGER NOT NULL,
			PRIMARY KEY (match_id, serial),
			FOREIGN KEY (match_id) REFERENCES match_groups(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_match_members_serial ON match_members(serial)`,

		`CREATE TABLE IF NOT EXISTS audit_log (
			seq INTEGER PRIMARY KEY,
			timestamp DATETIME NOT NULL,
			actor_id TEXT NOT NULL,
			actor_role TEXT NOT NULL,
			session_id TEXT NOT NULL,
			action TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			summary TEXT NOT NULL,
			justification TEXT NOT NULL,
			before_state TEXT NOT NULL,
			after_state TEXT NOT NULL,
			prev_hash TEXT NOT NULL,
			hash TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_actor ON audit_log(actor_id)`,

		`CREATE TABLE IF NOT EXISTS snapshots (
			id TEXT PRIMARY KEY,
			label TEXT NOT NULL,
			type TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_by TEXT NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS workflow_transitions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			workflow_id TEXT NOT NULL,
			from_state TEXT NOT NULL,
			to_state TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			actor_role TEXT NOT NULL,
			justification TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			forced INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_workflow_transitions_wf ON workflow_transitions(workflow_id)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}

	return nil
}
