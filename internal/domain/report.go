package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Reconciliation Report ──────────────────────────────────────────────────

// ReconciliationReport describes the gap between an account's recorded
// balance and the balance implied by its transaction history. It is derived,
// not a primary entity: the latest report is persisted on the account
// (last-write-wins) and applied corrections become ordinary transactions.
type ReconciliationReport struct {
	AccountID   string `json:"account_id"`
	AccountName string `json:"account_name"`
	Currency    string `json:"currency"`

	RecordedMinor   int64 `json:"recorded_minor"`
	CalculatedMinor int64 `json:"calculated_minor"`

	// DiscrepancyMinor = recorded − calculated, in minor units.
	// DiscrepancyMajor is the same value converted exactly to major units
	// for display.
	DiscrepancyMinor int64           `json:"discrepancy_minor"`
	DiscrepancyMajor decimal.Decimal `json:"discrepancy_major"`

	IsReconciled   bool  `json:"is_reconciled"`
	ToleranceMinor int64 `json:"tolerance_minor"`

	TransactionCount int       `json:"transaction_count"`
	CheckedAt        time.Time `json:"checked_at"`

	Suggestions []string `json:"suggestions,omitempty"`
}

// AccountReconciliation is one account's slot in a batch result. Exactly one
// of Report and Err is set — a failed account never aborts the batch.
type AccountReconciliation struct {
	AccountID   string                `json:"account_id"`
	AccountName string                `json:"account_name,omitempty"`
	Report      *ReconciliationReport `json:"report,omitempty"`
	Err         string                `json:"error,omitempty"`
}

// BatchReport aggregates a reconcile-all run across a user's active accounts.
type BatchReport struct {
	UserID                   string                  `json:"user_id"`
	TotalAccounts            int                     `json:"total_accounts"`
	Reconciled               int                     `json:"reconciled"`
	WithDiscrepancy          int                     `json:"with_discrepancy"`
	Failed                   int                     `json:"failed"`
	TotalAbsDiscrepancyMinor int64                   `json:"total_abs_discrepancy_minor"`
	Results                  []AccountReconciliation `json:"results"`
	CheckedAt                time.Time               `json:"checked_at"`
}

// ─── Sync Views ─────────────────────────────────────────────────────────────

// SyncStatus is a read-only view of one account's sync health.
type SyncStatus struct {
	AccountID   string      `json:"account_id"`
	AccountName string      `json:"account_name"`
	AccountType AccountType `json:"account_type"`

	Connected bool             `json:"connected"`
	Health    ConnectionHealth `json:"health"`
	Frequency SyncFrequency    `json:"frequency"`

	LastSyncAt           *time.Time `json:"last_sync_at,omitempty"`
	LastSuccessfulSyncAt *time.Time `json:"last_successful_sync_at,omitempty"`
	NextScheduledSync    *time.Time `json:"next_scheduled_sync,omitempty"`
	LastSyncError        string     `json:"last_sync_error,omitempty"`

	Recommendations []string `json:"recommendations,omitempty"`
}

// SyncOverview aggregates per-account statuses for one user.
type SyncOverview struct {
	UserID       string       `json:"user_id"`
	Total        int          `json:"total"`
	Healthy      int          `json:"healthy"`
	Degraded     int          `json:"degraded"`
	Failed       int          `json:"failed"`
	NotConnected int          `json:"not_connected"`
	Accounts     []SyncStatus `json:"accounts"`
}

// ─── Scheduler Results ──────────────────────────────────────────────────────

// SyncResult records the effect of one completed account sync.
type SyncResult struct {
	AccountID            string    `json:"account_id"`
	Currency             string    `json:"currency"`
	OldBalanceMinor      int64     `json:"old_balance_minor"`
	NewBalanceMinor      int64     `json:"new_balance_minor"`
	ChangeMinor          int64     `json:"change_minor"`
	TransactionsImported int       `json:"transactions_imported"`
	SyncedAt             time.Time `json:"synced_at"`
}

// SyncOutcome is the structured result of an immediate-sync request.
// Failures are data, not panics: Success is false and Message explains why.
type SyncOutcome struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Result  *SyncResult `json:"result,omitempty"`
}

// SchedulerStatus reports the background scheduler's state and the counts
// from its most recent sweep.
type SchedulerStatus struct {
	Running          bool       `json:"running"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	LastSweepAt      *time.Time `json:"last_sweep_at,omitempty"`
	LastSweepDue     int        `json:"last_sweep_due"`
	LastSweepSynced  int        `json:"last_sweep_synced"`
	LastSweepErrors  int        `json:"last_sweep_errors"`
	InFlight         int        `json:"in_flight"`
	SweepIntervalSec int        `json:"sweep_interval_sec"`
}
