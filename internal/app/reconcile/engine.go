// Package reconcile detects and corrects gaps between an account's recorded
// balance and the balance implied by its transaction history.
//
// The engine reads stores, computes through internal/app/ledger, persists
// the resulting report on the account (last-write-wins) and returns it.
// Corrections are ordinary ledger entries written by the Writer — once
// applied, the calculator treats them like any other transaction, which is
// exactly how recorded and calculated balances converge.
package reconcile

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/finsync-io/finsync/internal/app/ledger"
	"github.com/finsync-io/finsync/internal/domain"
	"github.com/finsync-io/finsync/internal/infra/observability"
)

// DefaultToleranceMinor is the reconciliation tolerance: discrepancies of at
// most one minor unit (one cent) are treated as reconciled. A single global
// constant, not per-account configuration.
const DefaultToleranceMinor = 1

// Engine compares recorded and calculated balances.
type Engine struct {
	accounts  domain.AccountStore
	txs       domain.TransactionStore
	tolerance int64
	tracer    *observability.Tracer
	now       func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithTolerance overrides the reconciliation tolerance in minor units.
func WithTolerance(minor int64) Option {
	return func(e *Engine) { e.tolerance = minor }
}

// WithClock injects a clock for testing.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithTracer records a span per reconciliation run.
func WithTracer(tr *observability.Tracer) Option {
	return func(e *Engine) { e.tracer = tr }
}

// NewEngine creates a reconciliation engine over the given stores.
func NewEngine(accounts domain.AccountStore, txs domain.TransactionStore, opts ...Option) *Engine {
	e := &Engine{
		accounts:  accounts,
		txs:       txs,
		tolerance: DefaultToleranceMinor,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reconcile computes a reconciliation report for one account.
//
// Returns domain.ErrAccountNotFound if the account does not exist and
// domain.ErrNotOwned if userID is set and does not own it. Any store
// failure is logged with full context and surfaced as the generic
// domain.ErrReconcileUnavailable — retrying belongs to the scheduler, not
// to this component.
func (e *Engine) Reconcile(accountID, userID string) (rep *domain.ReconciliationReport, err error) {
	if e.tracer != nil {
		span := e.tracer.StartSpan("reconcile", accountID)
		defer func() { e.tracer.EndSpan(span, err) }()
	}

	account, err := e.accounts.GetAccount(accountID)
	if err != nil {
		if errors.Is(err, domain.ErrAccountNotFound) {
			return nil, err
		}
		log.Printf("[reconcile] account lookup failed for %s: %v", accountID, err)
		return nil, fmt.Errorf("%w: account lookup failed", domain.ErrReconcileUnavailable)
	}
	if userID != "" && account.UserID != userID {
		return nil, domain.ErrNotOwned
	}

	return e.reconcileAccount(*account)
}

// reconcileAccount runs the comparison for an already-authorized account.
func (e *Engine) reconcileAccount(account domain.Account) (*domain.ReconciliationReport, error) {
	txs, err := e.txs.ListByAccount(account.ID, domain.TxPosted, domain.TxPending)
	if err != nil {
		observability.ReconciliationsTotal.WithLabelValues("error").Inc()
		log.Printf("[reconcile] transaction query failed for account %s: %v", account.ID, err)
		return nil, fmt.Errorf("%w: transaction query failed", domain.ErrReconcileUnavailable)
	}

	calculated := ledger.Balance(txs)
	discrepancy := account.BalanceMinor - calculated
	absDiscrepancy := discrepancy
	if absDiscrepancy < 0 {
		absDiscrepancy = -absDiscrepancy
	}

	report := &domain.ReconciliationReport{
		AccountID:        account.ID,
		AccountName:      account.Name,
		Currency:         account.Currency,
		RecordedMinor:    account.BalanceMinor,
		CalculatedMinor:  calculated,
		DiscrepancyMinor: discrepancy,
		DiscrepancyMajor: domain.DisplayAmount(discrepancy, account.Currency),
		IsReconciled:     absDiscrepancy <= e.tolerance,
		ToleranceMinor:   e.tolerance,
		TransactionCount: len(txs),
		CheckedAt:        e.now().UTC(),
	}
	if !report.IsReconciled {
		report.Suggestions = suggestions(discrepancy, account.Currency)
	}

	if err := e.accounts.SaveReconciliation(account.ID, report); err != nil {
		observability.ReconciliationsTotal.WithLabelValues("error").Inc()
		log.Printf("[reconcile] saving report failed for account %s: %v", account.ID, err)
		return nil, fmt.Errorf("%w: report persistence failed", domain.ErrReconcileUnavailable)
	}

	observability.ReconciliationDiscrepancy.Observe(float64(absDiscrepancy))
	if report.IsReconciled {
		observability.ReconciliationsTotal.WithLabelValues("reconciled").Inc()
	} else {
		observability.ReconciliationsTotal.WithLabelValues("discrepancy").Inc()
	}
	return report, nil
}

// ReconcileAll reconciles every active account owned by the user. One
// account's failure lands in its slot of the batch result and never aborts
// the remaining accounts.
func (e *Engine) ReconcileAll(userID string) (*domain.BatchReport, error) {
	accounts, err := e.accounts.ListActiveAccounts(userID)
	if err != nil {
		log.Printf("[reconcile] listing accounts failed for user %s: %v", userID, err)
		return nil, fmt.Errorf("%w: account listing failed", domain.ErrReconcileUnavailable)
	}

	batch := &domain.BatchReport{
		UserID:        userID,
		TotalAccounts: len(accounts),
		CheckedAt:     e.now().UTC(),
	}

	for _, account := range accounts {
		slot := domain.AccountReconciliation{
			AccountID:   account.ID,
			AccountName: account.Name,
		}
		report, err := e.reconcileAccount(account)
		if err != nil {
			slot.Err = err.Error()
			batch.Failed++
		} else {
			slot.Report = report
			if report.IsReconciled {
				batch.Reconciled++
			} else {
				batch.WithDiscrepancy++
			}
			abs := report.DiscrepancyMinor
			if abs < 0 {
				abs = -abs
			}
			batch.TotalAbsDiscrepancyMinor += abs
		}
		batch.Results = append(batch.Results, slot)
	}
	return batch, nil
}

// ─── Suggestions ────────────────────────────────────────────────────────────

// suggestions builds direction-specific remediation text for an
// out-of-tolerance discrepancy. discrepancy is recorded − calculated.
func suggestions(discrepancy int64, currency string) []string {
	abs := discrepancy
	if abs < 0 {
		abs = -abs
	}
	gap := domain.FormatAmount(abs, currency)

	var out []string
	if discrepancy > 0 {
		// Bank reports more money than the ledger explains.
		out = append(out,
			fmt.Sprintf("Your bank balance is %s higher than your transaction history explains. Look for income, refunds or pending deposits that were never entered.", gap),
			"Check for interest payments or fee reversals missing from the ledger.",
		)
	} else {
		out = append(out,
			fmt.Sprintf("Your bank balance is %s lower than your transaction history explains. Look for expenses or bank fees that were never entered.", gap),
			"Check for card payments or withdrawals missing from the ledger.",
		)
	}
	out = append(out,
		"Resync with your bank to pick up recent transactions.",
		"Review recent transactions for duplicates or wrong amounts.",
		"If the gap is expected, create a manual reconciliation entry to close it.",
	)
	return out
}
