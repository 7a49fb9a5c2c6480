package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/finsync-io/finsync/internal/domain"
)

// ─── Account Operations ─────────────────────────────────────────────────────

const accountColumns = `id, user_id, name, type, currency, balance_minor,
	connection_health, sync_frequency, provider_ref, credential,
	last_sync_at, last_success_at, last_sync_error, last_reconciliation,
	active, created_at, updated_at`

// InsertAccount creates a new account row.
func (db *DB) InsertAccount(a domain.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	var report any
	if a.LastReconciliation != nil {
		data, err := json.Marshal(a.LastReconciliation)
		if err != nil {
			return fmt.Errorf("marshal reconciliation report: %w", err)
		}
		report = string(data)
	}
	active := 0
	if a.Active {
		active = 1
	}
	_, err := db.db.Exec(`
		INSERT INTO accounts (`+accountColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.UserID, a.Name, string(a.Type), a.Currency, a.BalanceMinor,
		string(a.ConnectionHealth), string(a.SyncFrequency), a.ProviderRef, a.Credential,
		fmtTimePtr(a.LastSyncAt), fmtTimePtr(a.LastSuccessfulSyncAt), a.LastSyncError, report,
		active, fmtTime(a.CreatedAt), fmtTime(a.UpdatedAt))
	return err
}

// GetAccount retrieves an account by id, or domain.ErrAccountNotFound.
func (db *DB) GetAccount(id string) (*domain.Account, error) {
	row := db.db.QueryRow(`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query account %s: %w", id, err)
	}
	return a, nil
}

// ListAccounts returns all accounts owned by a user, including inactive ones.
func (db *DB) ListAccounts(userID string) ([]domain.Account, error) {
	return db.listAccounts(`SELECT `+accountColumns+` FROM accounts WHERE user_id = ? ORDER BY created_at`, userID)
}

// ListActiveAccounts returns the user's active accounts.
func (db *DB) ListActiveAccounts(userID string) ([]domain.Account, error) {
	return db.listAccounts(`SELECT `+accountColumns+` FROM accounts
		WHERE user_id = ? AND active = 1 ORDER BY created_at`, userID)
}

// ListSyncable returns active, connected accounts on an automatic cadence.
func (db *DB) ListSyncable() ([]domain.Account, error) {
	return db.listAccounts(`SELECT ` + accountColumns + ` FROM accounts
		WHERE active = 1 AND credential != '' AND sync_frequency != 'manual'
		ORDER BY created_at`)
}

func (db *DB) listAccounts(query string, args ...any) ([]domain.Account, error) {
	rows, err := db.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	return result, rows.Err()
}

// UpdateBalance sets the recorded balance in minor units.
func (db *DB) UpdateBalance(id string, balanceMinor int64) error {
	return db.touchAccount(id, `UPDATE accounts SET balance_minor = ?, updated_at = ? WHERE id = ?`,
		balanceMinor, fmtTime(time.Now()), id)
}

// UpdateSyncState records the outcome of a sync attempt.
func (db *DB) UpdateSyncState(id string, health domain.ConnectionHealth, lastSync, lastSuccess *time.Time, syncErr string) error {
	return db.touchAccount(id, `
		UPDATE accounts SET
			connection_health = ?,
			last_sync_at      = COALESCE(?, last_sync_at),
			last_success_at   = COALESCE(?, last_success_at),
			last_sync_error   = ?,
			updated_at        = ?
		WHERE id = ?
	`, string(health), fmtTimePtr(lastSync), fmtTimePtr(lastSuccess), syncErr, fmtTime(time.Now()), id)
}

// UpdateSyncFrequency persists a validated cadence.
func (db *DB) UpdateSyncFrequency(id string, f domain.SyncFrequency) error {
	return db.touchAccount(id, `UPDATE accounts SET sync_frequency = ?, updated_at = ? WHERE id = ?`,
		string(f), fmtTime(time.Now()), id)
}

// SaveReconciliation stores the latest reconciliation report on the account.
// Last write wins; there is no report history table.
func (db *DB) SaveReconciliation(id string, r *domain.ReconciliationReport) error {
	var report any
	if r != nil {
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal reconciliation report: %w", err)
		}
		report = string(data)
	}
	return db.touchAccount(id, `UPDATE accounts SET last_reconciliation = ?, updated_at = ? WHERE id = ?`,
		report, fmtTime(time.Now()), id)
}

// DeactivateAccount soft-deletes an account. Rows are never hard-deleted.
func (db *DB) DeactivateAccount(id string) error {
	return db.touchAccount(id, `UPDATE accounts SET active = 0, updated_at = ? WHERE id = ?`,
		fmtTime(time.Now()), id)
}

func (db *DB) touchAccount(id, query string, args ...any) error {
	res, err := db.db.Exec(query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// ─── Scanning ───────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*domain.Account, error) {
	var a domain.Account
	var typ, health, freq string
	var lastSync, lastSuccess, report sql.NullString
	var active int
	var createdAt, updatedAt string

	err := row.Scan(&a.ID, &a.UserID, &a.Name, &typ, &a.Currency, &a.BalanceMinor,
		&health, &freq, &a.ProviderRef, &a.Credential,
		&lastSync, &lastSuccess, &a.LastSyncError, &report,
		&active, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	a.Type = domain.AccountType(typ)
	a.ConnectionHealth = domain.ConnectionHealth(health)
	a.SyncFrequency = domain.SyncFrequency(freq)
	a.LastSyncAt = parseTimePtr(lastSync)
	a.LastSuccessfulSyncAt = parseTimePtr(lastSuccess)
	a.Active = active == 1
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)

	if report.Valid && report.String != "" {
		var r domain.ReconciliationReport
		if err := json.Unmarshal([]byte(report.String), &r); err != nil {
			return nil, fmt.Errorf("unmarshal reconciliation report for %s: %w", a.ID, err)
		}
		a.LastReconciliation = &r
	}
	return &a, nil
}
