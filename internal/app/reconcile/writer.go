package reconcile

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/finsync-io/finsync/internal/domain"
	"github.com/finsync-io/finsync/internal/infra/observability"
)

// entryPrefix marks reconciliation adjustments in transaction descriptions.
const entryPrefix = "[reconciliation] "

// defaultHistoryDays is the lookback window for History when none is given.
const defaultHistoryDays = 30

// Writer records manual reconciliation adjustments as ordinary ledger
// entries. An adjustment of d shifts the calculated balance by d, so an
// entry equal to the reported discrepancy closes the gap on the next run.
type Writer struct {
	accounts domain.AccountStore
	txs      domain.TransactionStore
	now      func() time.Time
}

// WriterOption customizes a Writer.
type WriterOption func(*Writer)

// WithWriterClock injects a clock for testing.
func WithWriterClock(now func() time.Time) WriterOption {
	return func(w *Writer) { w.now = now }
}

// NewWriter creates a reconciliation entry writer over the given stores.
func NewWriter(accounts domain.AccountStore, txs domain.TransactionStore, opts ...WriterOption) *Writer {
	w := &Writer{accounts: accounts, txs: txs, now: time.Now}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// CreateEntry writes a manual adjustment transaction against the account.
// adjustmentMinor is signed: positive credits the account, negative debits
// it. The entry is dated now, carries the reconciliation marker fields and
// is attributed to userID.
func (w *Writer) CreateEntry(accountID string, adjustmentMinor int64, description, userID string) (*domain.Transaction, error) {
	account, err := w.accounts.GetAccount(accountID)
	if err != nil {
		return nil, err
	}
	if userID != "" && account.UserID != userID {
		return nil, domain.ErrNotOwned
	}
	if adjustmentMinor == 0 {
		return nil, fmt.Errorf("%w: adjustment amount required", domain.ErrValidation)
	}

	description = strings.TrimSpace(description)
	if description == "" {
		description = "balance adjustment"
	}

	now := w.now().UTC()
	tx := domain.Transaction{
		ID:             uuid.NewString(),
		UserID:         account.UserID,
		AccountID:      account.ID,
		AmountMinor:    adjustmentMinor,
		Currency:       account.Currency,
		Description:    entryPrefix + description,
		Date:           now,
		Status:         domain.TxPosted,
		Reconciliation: true,
		AdjustmentType: domain.AdjustmentBalanceReconciliation,
		CreatedBy:      userID,
		CreatedAt:      now,
	}
	if _, err := w.txs.InsertTransaction(tx); err != nil {
		return nil, fmt.Errorf("writing reconciliation entry: %w", err)
	}

	observability.ReconciliationEntriesTotal.Inc()
	return &tx, nil
}

// History returns the account's reconciliation entries from the last `days`
// days, newest first. days <= 0 means the default 30-day window.
func (w *Writer) History(accountID, userID string, days int) ([]domain.Transaction, error) {
	account, err := w.accounts.GetAccount(accountID)
	if err != nil {
		return nil, err
	}
	if userID != "" && account.UserID != userID {
		return nil, domain.ErrNotOwned
	}
	if days <= 0 {
		days = defaultHistoryDays
	}
	since := w.now().UTC().AddDate(0, 0, -days)
	return w.txs.ListReconciliationEntries(account.ID, since)
}
