package domain

import (
	"context"
	"time"
)

// ─── Store Interfaces ───────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// AccountStore abstracts persistent account storage.
type AccountStore interface {
	InsertAccount(a Account) error
	GetAccount(id string) (*Account, error)
	ListAccounts(userID string) ([]Account, error)
	ListActiveAccounts(userID string) ([]Account, error)

	// ListSyncable returns active, externally connected accounts whose
	// frequency is not manual, across all users. The sweep drives from it.
	ListSyncable() ([]Account, error)

	UpdateBalance(id string, balanceMinor int64) error
	UpdateSyncState(id string, health ConnectionHealth, lastSync, lastSuccess *time.Time, syncErr string) error
	UpdateSyncFrequency(id string, f SyncFrequency) error
	SaveReconciliation(id string, r *ReconciliationReport) error
	DeactivateAccount(id string) error
}

// TransactionStore abstracts persistent ledger-entry storage.
type TransactionStore interface {
	// InsertTransaction stores a transaction. Imports carrying a
	// ProviderRef already present for the account are silently skipped;
	// inserted reports whether a row was written.
	InsertTransaction(t Transaction) (inserted bool, err error)
	GetTransaction(id string) (*Transaction, error)

	// ListByAccount returns the account's transactions with the given
	// statuses (all statuses when none given), ordered by transaction
	// date with ties broken by insertion order.
	ListByAccount(accountID string, statuses ...TxStatus) ([]Transaction, error)

	// ListReconciliationEntries returns reconciliation-marked entries for
	// an account dated on or after since, newest first.
	ListReconciliationEntries(accountID string, since time.Time) ([]Transaction, error)

	// MarkRemoved transitions a transaction to removed. The row is kept
	// for audit; only its status changes.
	MarkRemoved(id string) error
}

// ─── External Provider ──────────────────────────────────────────────────────

// ProviderBalance is one account balance as reported by the external
// bank-data provider.
type ProviderBalance struct {
	AccountRef   string `json:"account_ref"`
	BalanceMinor int64  `json:"balance_minor"`
	Currency     string `json:"currency"`
}

// ProviderTransaction is one transaction as reported by the provider.
type ProviderTransaction struct {
	Ref         string    `json:"ref"`
	AccountRef  string    `json:"account_ref"`
	AmountMinor int64     `json:"amount_minor"`
	Currency    string    `json:"currency"`
	Description string    `json:"description"`
	Merchant    string    `json:"merchant,omitempty"`
	Date        time.Time `json:"date"`
	Pending     bool      `json:"pending"`
}

// BankDataProvider abstracts the external bank-data service. Both calls are
// network suspension points; failures surface as errors wrapping ErrProvider
// and are recorded on the account, never re-raised to API callers.
type BankDataProvider interface {
	FetchBalances(ctx context.Context, credential string) ([]ProviderBalance, error)
	FetchTransactions(ctx context.Context, credential string, from, to time.Time) ([]ProviderTransaction, error)
}
