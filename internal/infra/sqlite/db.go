// Package sqlite persists accounts and ledger entries.
// It uses the pure-Go modernc.org/sqlite driver via database/sql.
package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection and implements the domain store interfaces.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies migrations.
// Use ":memory:" for ephemeral test databases.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// Serialized writes keep the per-account update paths simple; reads
	// remain concurrent through WAL.
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite pragmas: %w", err)
	}

	db := &DB{db: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error { return db.db.Close() }

// Migrations returns the schema migration statements.
// Each string is a single SQL statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id                TEXT PRIMARY KEY,
			user_id           TEXT NOT NULL,
			name              TEXT NOT NULL,
			type              TEXT NOT NULL,
			currency          TEXT NOT NULL,
			balance_minor     INTEGER NOT NULL DEFAULT 0,
			connection_health TEXT NOT NULL DEFAULT 'not_connected',
			sync_frequency    TEXT NOT NULL DEFAULT 'manual',
			provider_ref      TEXT NOT NULL DEFAULT '',
			credential        TEXT NOT NULL DEFAULT '',
			last_sync_at      TEXT,
			last_success_at   TEXT,
			last_sync_error   TEXT NOT NULL DEFAULT '',
			last_reconciliation TEXT,
			active            INTEGER NOT NULL DEFAULT 1,
			created_at        TEXT NOT NULL,
			updated_at        TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_user ON accounts(user_id, active)`,
		`CREATE INDEX IF NOT EXISTS idx_accounts_syncable ON accounts(active, sync_frequency)`,

		`CREATE TABLE IF NOT EXISTS transactions (
			id              TEXT PRIMARY KEY,
			user_id         TEXT NOT NULL,
			account_id      TEXT NOT NULL,
			amount_minor    INTEGER NOT NULL,
			currency        TEXT NOT NULL,
			description     TEXT NOT NULL DEFAULT '',
			merchant        TEXT NOT NULL DEFAULT '',
			tx_date         TEXT NOT NULL,
			status          TEXT NOT NULL DEFAULT 'posted',
			reconciliation  INTEGER NOT NULL DEFAULT 0,
			adjustment_type TEXT NOT NULL DEFAULT '',
			created_by      TEXT NOT NULL DEFAULT '',
			provider_ref    TEXT NOT NULL DEFAULT '',
			created_at      TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_account ON transactions(account_id, tx_date)`,
		`CREATE INDEX IF NOT EXISTS idx_tx_recon ON transactions(account_id, reconciliation, tx_date)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_tx_provider_ref
			ON transactions(account_id, provider_ref) WHERE provider_ref != ''`,
	}
}

// migrate applies all schema statements.
func (db *DB) migrate() error {
	for _, stmt := range Migrations() {
		if _, err := db.db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// ─── Time Helpers ───────────────────────────────────────────────────────────
// Timestamps are stored as RFC3339 text, nullable columns via NullString.

func fmtTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func parseTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := parseTime(s.String)
	return &t
}
