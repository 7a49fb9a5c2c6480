// Package syncsched runs account synchronization: a background sweep over
// externally connected accounts whose refresh is due, plus on-demand
// immediate syncs. A per-account in-flight set guarantees no account is
// synced twice concurrently, whichever path triggered it.
package syncsched

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finsync-io/finsync/internal/domain"
	"github.com/finsync-io/finsync/internal/infra/observability"
)

// Config controls sweep cadence and sync behavior. Zero values fall back to
// the defaults below.
type Config struct {
	// SweepInterval is how often the background loop scans for due accounts.
	SweepInterval time.Duration

	// MaxConcurrent bounds how many accounts one sweep syncs in parallel.
	MaxConcurrent int

	// ImportLookback is how far back transaction imports reach.
	ImportLookback time.Duration

	// Now is the clock, injectable for tests.
	Now func() time.Time
}

const (
	defaultSweepInterval  = 15 * time.Minute
	defaultMaxConcurrent  = 4
	defaultImportLookback = 30 * 24 * time.Hour
)

func (c Config) withDefaults() Config {
	if c.SweepInterval <= 0 {
		c.SweepInterval = defaultSweepInterval
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = defaultMaxConcurrent
	}
	if c.ImportLookback <= 0 {
		c.ImportLookback = defaultImportLookback
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Scheduler owns the sweep loop and the per-account sync pipeline.
type Scheduler struct {
	accounts domain.AccountStore
	txs      domain.TransactionStore
	provider domain.BankDataProvider
	cfg      Config
	tracer   *observability.Tracer

	mu        sync.Mutex
	running   bool
	startedAt time.Time
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	inFlight  map[string]struct{}

	lastSweepAt     time.Time
	lastSweepDue    int
	lastSweepSynced int
	lastSweepErrors int
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithTracer records a span per account sync.
func WithTracer(tr *observability.Tracer) Option {
	return func(s *Scheduler) { s.tracer = tr }
}

// New creates a sync scheduler. It does nothing until Start is called;
// ImmediateSync works without the background loop.
func New(accounts domain.AccountStore, txs domain.TransactionStore, provider domain.BankDataProvider, cfg Config, opts ...Option) *Scheduler {
	s := &Scheduler{
		accounts: accounts,
		txs:      txs,
		provider: provider,
		cfg:      cfg.withDefaults(),
		inFlight: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ─── Lifecycle ──────────────────────────────────────────────────────────────

// Start launches the background sweep loop. Calling Start on a running
// scheduler is a no-op; the loop stops when ctx is canceled or Stop is
// called.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.startedAt = s.cfg.Now().UTC()
	s.mu.Unlock()

	observability.SchedulerRunning.Set(1)
	log.Printf("[syncsched] started, sweep interval %s", s.cfg.SweepInterval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.cfg.SweepInterval)
		defer ticker.Stop()

		// First sweep immediately so a restart does not wait a full interval.
		s.sweep(ctx)
		for {
			select {
			case <-ctx.Done():
				s.mu.Lock()
				s.running = false
				s.mu.Unlock()
				observability.SchedulerRunning.Set(0)
				log.Printf("[syncsched] stopped")
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for in-flight syncs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// Status reports the scheduler's state and last-sweep counters.
func (s *Scheduler) Status() domain.SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := domain.SchedulerStatus{
		Running:          s.running,
		LastSweepDue:     s.lastSweepDue,
		LastSweepSynced:  s.lastSweepSynced,
		LastSweepErrors:  s.lastSweepErrors,
		InFlight:         len(s.inFlight),
		SweepIntervalSec: int(s.cfg.SweepInterval / time.Second),
	}
	if s.running {
		started := s.startedAt
		status.StartedAt = &started
	}
	if !s.lastSweepAt.IsZero() {
		at := s.lastSweepAt
		status.LastSweepAt = &at
	}
	return status
}

// ─── Sweep ──────────────────────────────────────────────────────────────────

// sweep syncs every due account, at most cfg.MaxConcurrent at a time.
func (s *Scheduler) sweep(ctx context.Context) {
	accounts, err := s.accounts.ListSyncable()
	if err != nil {
		log.Printf("[syncsched] sweep: listing syncable accounts: %v", err)
		return
	}

	now := s.cfg.Now().UTC()
	var due []domain.Account
	for _, account := range accounts {
		if s.isDue(account, now) {
			due = append(due, account)
		}
	}
	observability.SweepAccountsDue.Set(float64(len(due)))

	var synced, failed int
	if len(due) > 0 {
		log.Printf("[syncsched] sweep: %d of %d syncable accounts due", len(due), len(accounts))

		sem := make(chan struct{}, s.cfg.MaxConcurrent)
		var wg sync.WaitGroup
		var mu sync.Mutex
		for _, account := range due {
			if ctx.Err() != nil {
				break
			}
			if !s.tryAcquire(account.ID) {
				continue // already syncing via another path
			}
			sem <- struct{}{}
			wg.Add(1)
			go func(account domain.Account) {
				defer wg.Done()
				defer func() { <-sem }()
				defer s.release(account.ID)

				_, err := s.syncAccount(ctx, account, "sweep")
				mu.Lock()
				if err != nil {
					failed++
				} else {
					synced++
				}
				mu.Unlock()
			}(account)
		}
		wg.Wait()
	}

	s.mu.Lock()
	s.lastSweepAt = now
	s.lastSweepDue = len(due)
	s.lastSweepSynced = synced
	s.lastSweepErrors = failed
	s.mu.Unlock()
}

// isDue reports whether the account's next refresh has come around. Never
// synced means due now.
func (s *Scheduler) isDue(account domain.Account, now time.Time) bool {
	interval := account.SyncFrequency.Interval()
	if interval <= 0 {
		return false
	}
	if account.LastSyncAt == nil {
		return true
	}
	return !now.Before(account.LastSyncAt.Add(interval))
}

// ─── Immediate Sync ─────────────────────────────────────────────────────────

// ImmediateSync syncs one account on demand, regardless of schedule.
// Unknown or foreign accounts are errors; everything else comes back as a
// structured outcome so callers can show the user what happened.
func (s *Scheduler) ImmediateSync(ctx context.Context, accountID, userID string) (*domain.SyncOutcome, error) {
	account, err := s.accounts.GetAccount(accountID)
	if err != nil {
		return nil, err
	}
	if userID != "" && account.UserID != userID {
		return nil, domain.ErrNotOwned
	}
	if !account.Connected() {
		return &domain.SyncOutcome{
			Success: false,
			Message: "account is not connected to a bank",
		}, nil
	}
	if !s.tryAcquire(account.ID) {
		return &domain.SyncOutcome{
			Success: false,
			Message: "a sync for this account is already in progress",
		}, nil
	}
	defer s.release(account.ID)

	result, err := s.syncAccount(ctx, *account, "immediate")
	if err != nil {
		return &domain.SyncOutcome{
			Success: false,
			Message: fmt.Sprintf("sync failed: %v", err),
		}, nil
	}
	return &domain.SyncOutcome{
		Success: true,
		Message: fmt.Sprintf("synced %d transactions", result.TransactionsImported),
		Result:  result,
	}, nil
}

// UpdateFrequency validates and stores a new sync frequency for the account.
func (s *Scheduler) UpdateFrequency(accountID, userID, raw string) (domain.SyncFrequency, error) {
	freq, err := domain.ParseSyncFrequency(raw)
	if err != nil {
		return "", err
	}
	account, err := s.accounts.GetAccount(accountID)
	if err != nil {
		return "", err
	}
	if userID != "" && account.UserID != userID {
		return "", domain.ErrNotOwned
	}
	if err := s.accounts.UpdateSyncFrequency(account.ID, freq); err != nil {
		return "", err
	}
	return freq, nil
}

// ─── Sync Pipeline ──────────────────────────────────────────────────────────

// syncAccount pulls the account's balance and recent transactions from the
// provider. Provider failures are recorded on the account as a failed sync
// attempt and returned; the stored balance is never touched on failure.
func (s *Scheduler) syncAccount(ctx context.Context, account domain.Account, trigger string) (result *domain.SyncResult, err error) {
	start := s.cfg.Now()
	observability.SyncsInFlight.Inc()
	defer observability.SyncsInFlight.Dec()
	if s.tracer != nil {
		span := s.tracer.StartSpan("sync", account.ID)
		defer func() { s.tracer.EndSpan(span, err) }()
	}
	defer func() {
		observability.SyncDuration.Observe(s.cfg.Now().Sub(start).Seconds())
		if err != nil {
			observability.SyncsTotal.WithLabelValues("error", trigger).Inc()
		} else {
			observability.SyncsTotal.WithLabelValues("success", trigger).Inc()
		}
	}()

	now := s.cfg.Now().UTC()

	balances, err := s.provider.FetchBalances(ctx, account.Credential)
	if err != nil {
		s.recordFailure(account.ID, now, err)
		return nil, fmt.Errorf("%w: fetching balances: %v", domain.ErrProvider, err)
	}
	var balance *domain.ProviderBalance
	for i := range balances {
		if balances[i].AccountRef == account.ProviderRef {
			balance = &balances[i]
			break
		}
	}
	if balance == nil {
		err = fmt.Errorf("%w: provider returned no balance for this account", domain.ErrProvider)
		s.recordFailure(account.ID, now, err)
		return nil, err
	}

	from := now.Add(-s.cfg.ImportLookback)
	providerTxs, err := s.provider.FetchTransactions(ctx, account.Credential, from, now)
	if err != nil {
		s.recordFailure(account.ID, now, err)
		return nil, fmt.Errorf("%w: fetching transactions: %v", domain.ErrProvider, err)
	}

	imported := 0
	for _, pt := range providerTxs {
		if pt.AccountRef != account.ProviderRef {
			continue
		}
		inserted, err := s.txs.InsertTransaction(importedTransaction(account, pt, now))
		if err != nil {
			log.Printf("[syncsched] importing transaction %s for account %s: %v", pt.Ref, account.ID, err)
			continue
		}
		if inserted {
			imported++
		}
	}

	if err := s.accounts.UpdateBalance(account.ID, balance.BalanceMinor); err != nil {
		s.recordFailure(account.ID, now, err)
		return nil, fmt.Errorf("storing balance: %w", err)
	}
	if err := s.accounts.UpdateSyncState(account.ID, domain.HealthHealthy, &now, &now, ""); err != nil {
		return nil, fmt.Errorf("storing sync state: %w", err)
	}

	result = &domain.SyncResult{
		AccountID:            account.ID,
		Currency:             account.Currency,
		OldBalanceMinor:      account.BalanceMinor,
		NewBalanceMinor:      balance.BalanceMinor,
		ChangeMinor:          balance.BalanceMinor - account.BalanceMinor,
		TransactionsImported: imported,
		SyncedAt:             now,
	}
	log.Printf("[syncsched] synced account %s (%s): balance %d -> %d, %d imported",
		account.ID, trigger, result.OldBalanceMinor, result.NewBalanceMinor, imported)
	return result, nil
}

// recordFailure marks the attempt on the account. The attempt timestamp
// advances so a broken account does not get re-picked every sweep; the
// last-success timestamp stays put.
func (s *Scheduler) recordFailure(accountID string, at time.Time, cause error) {
	if err := s.accounts.UpdateSyncState(accountID, domain.HealthFailed, &at, nil, cause.Error()); err != nil {
		log.Printf("[syncsched] recording sync failure for account %s: %v", accountID, err)
	}
}

// importedTransaction maps a provider transaction onto the ledger.
func importedTransaction(account domain.Account, pt domain.ProviderTransaction, now time.Time) domain.Transaction {
	status := domain.TxPosted
	if pt.Pending {
		status = domain.TxPending
	}
	return domain.Transaction{
		ID:          uuid.NewString(),
		UserID:      account.UserID,
		AccountID:   account.ID,
		AmountMinor: pt.AmountMinor,
		Currency:    pt.Currency,
		Description: pt.Description,
		Merchant:    pt.Merchant,
		Date:        pt.Date,
		Status:      status,
		ProviderRef: pt.Ref,
		CreatedAt:   now,
	}
}

// ─── In-Flight Set ──────────────────────────────────────────────────────────

func (s *Scheduler) tryAcquire(accountID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[accountID]; busy {
		return false
	}
	s.inFlight[accountID] = struct{}{}
	return true
}

func (s *Scheduler) release(accountID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, accountID)
}
