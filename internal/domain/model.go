// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture — it depends on nothing.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// ─── Account Types ──────────────────────────────────────────────────────────

// AccountType classifies an account.
type AccountType string

const (
	AccountChecking   AccountType = "checking"
	AccountSavings    AccountType = "savings"
	AccountCredit     AccountType = "credit"
	AccountInvestment AccountType = "investment"
	AccountOther      AccountType = "other"
)

// Valid reports whether t is a known account type.
func (t AccountType) Valid() bool {
	switch t {
	case AccountChecking, AccountSavings, AccountCredit, AccountInvestment, AccountOther:
		return true
	}
	return false
}

// ConnectionHealth is the coarse external-link status of an account.
// It is independent of any reconciliation discrepancy.
type ConnectionHealth string

const (
	HealthNotConnected ConnectionHealth = "not_connected"
	HealthHealthy      ConnectionHealth = "healthy"
	HealthDegraded     ConnectionHealth = "degraded"
	HealthFailed       ConnectionHealth = "failed"
)

// SyncFrequency is the configured cadence at which an account's external
// data is refreshed. The set is closed — anything else is rejected at the
// boundary via ParseSyncFrequency.
type SyncFrequency string

const (
	FrequencyManual SyncFrequency = "manual"
	FrequencyDaily  SyncFrequency = "daily"
	FrequencyWeekly SyncFrequency = "weekly"
)

// ParseSyncFrequency validates a frequency string. The legacy value "stale"
// still appears on old rows and is normalized to weekly.
func ParseSyncFrequency(s string) (SyncFrequency, error) {
	switch SyncFrequency(strings.ToLower(strings.TrimSpace(s))) {
	case FrequencyManual:
		return FrequencyManual, nil
	case FrequencyDaily:
		return FrequencyDaily, nil
	case FrequencyWeekly, "stale":
		return FrequencyWeekly, nil
	}
	return "", fmt.Errorf("%w: %q (want manual, daily or weekly)", ErrInvalidFrequency, s)
}

// Interval returns the expected refresh interval, or 0 for manual accounts.
func (f SyncFrequency) Interval() time.Duration {
	switch f {
	case FrequencyDaily:
		return 24 * time.Hour
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	}
	return 0
}

// Account is a user-owned financial account. The balance is always an
// integer amount of minor currency units (cents) — never floating point.
type Account struct {
	ID               string           `json:"id"`
	UserID           string           `json:"user_id"`
	Name             string           `json:"name"`
	Type             AccountType      `json:"type"`
	Currency         string           `json:"currency"`
	BalanceMinor     int64            `json:"balance_minor"`
	ConnectionHealth ConnectionHealth `json:"connection_health"`
	SyncFrequency    SyncFrequency    `json:"sync_frequency"`

	// ProviderRef identifies this account at the external bank-data
	// provider; Credential is the opaque access token obtained when the
	// bank link was exchanged. An account is externally connected iff
	// Credential is non-empty.
	ProviderRef string `json:"provider_ref,omitempty"`
	Credential  string `json:"-"`

	LastSyncAt           *time.Time `json:"last_sync_at,omitempty"`
	LastSuccessfulSyncAt *time.Time `json:"last_successful_sync_at,omitempty"`
	LastSyncError        string     `json:"last_sync_error,omitempty"`

	// LastReconciliation holds the most recent reconciliation report,
	// last-write-wins. History is reconstructed from correcting
	// transactions, not from here.
	LastReconciliation *ReconciliationReport `json:"last_reconciliation,omitempty"`

	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Connected reports whether the account has an external bank link.
func (a Account) Connected() bool { return a.Credential != "" }

// Validate checks the account's boundary invariants.
func (a Account) Validate() error {
	if a.UserID == "" {
		return fmt.Errorf("%w: account user id is required", ErrValidation)
	}
	if a.Name == "" {
		return fmt.Errorf("%w: account name is required", ErrValidation)
	}
	if !a.Type.Valid() {
		return fmt.Errorf("%w: unknown account type %q", ErrValidation, a.Type)
	}
	if a.Currency == "" {
		return fmt.Errorf("%w: account currency is required", ErrValidation)
	}
	return nil
}

// ─── Transaction Types ──────────────────────────────────────────────────────

// TxStatus is the lifecycle status of a ledger entry.
type TxStatus string

const (
	TxPending TxStatus = "pending"
	TxPosted  TxStatus = "posted"
	TxRemoved TxStatus = "removed"
)

// AdjustmentBalanceReconciliation marks a correcting entry created by the
// reconciliation entry writer.
const AdjustmentBalanceReconciliation = "balance_reconciliation"

// Transaction is a single ledger entry. AmountMinor is signed: positive
// amounts increase the balance (income), negative amounts decrease it
// (expenses). The sign convention is fixed here and applied everywhere —
// the ledger calculator never infers sign from category or description.
type Transaction struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	AccountID   string    `json:"account_id"`
	AmountMinor int64     `json:"amount_minor"`
	Currency    string    `json:"currency"`
	Description string    `json:"description"`
	Merchant    string    `json:"merchant,omitempty"`
	Date        time.Time `json:"date"`
	Status      TxStatus  `json:"status"`

	// Reconciliation marker fields. When Reconciliation is true the entry
	// was written by the reconciliation entry writer and AdjustmentType /
	// CreatedBy describe it. These replace the source system's untyped
	// metadata map.
	Reconciliation bool   `json:"reconciliation,omitempty"`
	AdjustmentType string `json:"adjustment_type,omitempty"`
	CreatedBy      string `json:"created_by,omitempty"`

	// ProviderRef is the external provider's transaction id, used to
	// deduplicate imports across sync runs. Empty for manual entries.
	ProviderRef string `json:"provider_ref,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the transaction's boundary invariants.
func (t Transaction) Validate() error {
	if t.AccountID == "" {
		return fmt.Errorf("%w: transaction account id is required", ErrValidation)
	}
	if t.UserID == "" {
		return fmt.Errorf("%w: transaction user id is required", ErrValidation)
	}
	if t.Currency == "" {
		return fmt.Errorf("%w: transaction currency is required", ErrValidation)
	}
	switch t.Status {
	case TxPending, TxPosted, TxRemoved:
	default:
		return fmt.Errorf("%w: unknown transaction status %q", ErrValidation, t.Status)
	}
	return nil
}

// Counts reports whether the entry contributes to the calculated balance.
func (t Transaction) Counts() bool { return t.Status != TxRemoved }

// ─── Money Display ──────────────────────────────────────────────────────────
// All arithmetic stays in int64 minor units. Conversion to major units
// happens only at the display edge, and exactly, via decimal shifts.

// CurrencyFraction returns the number of minor-unit digits for a currency
// code (2 for USD/EUR, 0 for JPY, ...).
func CurrencyFraction(code string) int {
	if c := money.GetCurrency(strings.ToUpper(code)); c != nil {
		return c.Fraction
	}
	return 2
}

// DisplayAmount converts a minor-unit amount to its exact major-unit value.
func DisplayAmount(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -int32(CurrencyFraction(currency)))
}

// FormatAmount renders a minor-unit amount with its currency symbol,
// e.g. FormatAmount(11800, "USD") == "$118.00".
func FormatAmount(minor int64, currency string) string {
	return money.New(minor, strings.ToUpper(currency)).Display()
}
