package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Resource errors
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrNotOwned            = errors.New("account does not belong to caller")

	// Input errors
	ErrValidation       = errors.New("invalid input")
	ErrInvalidFrequency = errors.New("unsupported sync frequency")
	ErrNotConnected     = errors.New("account has no external bank connection")

	// Sync errors
	ErrSyncInFlight = errors.New("sync already in progress for account")
	ErrProvider     = errors.New("bank data provider request failed")

	// Reconciliation errors
	ErrReconcileUnavailable = errors.New("unable to reconcile account")
)
