package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/finsync-io/finsync/internal/domain"
)

// ─── Transaction Operations ─────────────────────────────────────────────────

const txColumns = `id, user_id, account_id, amount_minor, currency,
	description, merchant, tx_date, status, reconciliation, adjustment_type,
	created_by, provider_ref, created_at`

// InsertTransaction stores a ledger entry. Imports whose provider_ref is
// already present for the account are skipped (INSERT OR IGNORE against the
// partial unique index); inserted reports whether a row was written.
func (db *DB) InsertTransaction(t domain.Transaction) (bool, error) {
	if err := t.Validate(); err != nil {
		return false, err
	}
	recon := 0
	if t.Reconciliation {
		recon = 1
	}
	res, err := db.db.Exec(`
		INSERT OR IGNORE INTO transactions (`+txColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.UserID, t.AccountID, t.AmountMinor, t.Currency,
		t.Description, t.Merchant, fmtTime(t.Date), string(t.Status), recon, t.AdjustmentType,
		t.CreatedBy, t.ProviderRef, fmtTime(t.CreatedAt))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// GetTransaction retrieves a ledger entry by id.
func (db *DB) GetTransaction(id string) (*domain.Transaction, error) {
	row := db.db.QueryRow(`SELECT `+txColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query transaction %s: %w", id, err)
	}
	return t, nil
}

// ListByAccount returns an account's entries filtered to the given statuses
// (all when none given), in canonical ledger order: transaction date, then
// insertion order.
func (db *DB) ListByAccount(accountID string, statuses ...domain.TxStatus) ([]domain.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions WHERE account_id = ?`
	args := []any{accountID}

	if len(statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(statuses)), ",")
		query += ` AND status IN (` + placeholders + `)`
		for _, s := range statuses {
			args = append(args, string(s))
		}
	}
	query += ` ORDER BY tx_date, created_at, id`

	return db.listTransactions(query, args...)
}

// ListReconciliationEntries returns reconciliation-marked entries dated on
// or after since, newest first. This is the audit trail substituting for a
// separate history table.
func (db *DB) ListReconciliationEntries(accountID string, since time.Time) ([]domain.Transaction, error) {
	return db.listTransactions(`
		SELECT `+txColumns+` FROM transactions
		WHERE account_id = ? AND reconciliation = 1 AND tx_date >= ?
		ORDER BY tx_date DESC, created_at DESC
	`, accountID, fmtTime(since))
}

// MarkRemoved transitions an entry to removed, keeping the row for audit.
func (db *DB) MarkRemoved(id string) error {
	res, err := db.db.Exec(`UPDATE transactions SET status = 'removed' WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

func (db *DB) listTransactions(query string, args ...any) ([]domain.Transaction, error) {
	rows, err := db.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *t)
	}
	return result, rows.Err()
}

func scanTransaction(row rowScanner) (*domain.Transaction, error) {
	var t domain.Transaction
	var status, txDate, createdAt string
	var recon int

	err := row.Scan(&t.ID, &t.UserID, &t.AccountID, &t.AmountMinor, &t.Currency,
		&t.Description, &t.Merchant, &txDate, &status, &recon, &t.AdjustmentType,
		&t.CreatedBy, &t.ProviderRef, &createdAt)
	if err != nil {
		return nil, err
	}

	t.Status = domain.TxStatus(status)
	t.Reconciliation = recon == 1
	t.Date = parseTime(txDate)
	t.CreatedAt = parseTime(createdAt)
	return &t, nil
}
