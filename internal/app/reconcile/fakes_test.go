package reconcile

import (
	"sort"
	"sync"
	"time"

	"github.com/finsync-io/finsync/internal/domain"
)

// fakeAccounts is an in-memory domain.AccountStore with fault injection.
type fakeAccounts struct {
	mu       sync.Mutex
	accounts map[string]domain.Account

	getErr  error
	listErr error
	saveErr map[string]error // per-account SaveReconciliation failures
}

func newFakeAccounts(accounts ...domain.Account) *fakeAccounts {
	f := &fakeAccounts{
		accounts: make(map[string]domain.Account),
		saveErr:  make(map[string]error),
	}
	for _, a := range accounts {
		f.accounts[a.ID] = a
	}
	return f
}

func (f *fakeAccounts) InsertAccount(a domain.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[a.ID] = a
	return nil
}

func (f *fakeAccounts) GetAccount(id string) (*domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	a, ok := f.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &a, nil
}

func (f *fakeAccounts) ListAccounts(userID string) ([]domain.Account, error) {
	return f.list(userID, false)
}

func (f *fakeAccounts) ListActiveAccounts(userID string) ([]domain.Account, error) {
	return f.list(userID, true)
}

func (f *fakeAccounts) list(userID string, activeOnly bool) ([]domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.Account
	for _, a := range f.accounts {
		if a.UserID != userID {
			continue
		}
		if activeOnly && !a.Active {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeAccounts) ListSyncable() ([]domain.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Account
	for _, a := range f.accounts {
		if a.Active && a.Credential != "" && a.SyncFrequency != domain.FrequencyManual {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeAccounts) UpdateBalance(id string, balanceMinor int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.BalanceMinor = balanceMinor
	f.accounts[id] = a
	return nil
}

func (f *fakeAccounts) UpdateSyncState(id string, health domain.ConnectionHealth, lastSync, lastSuccess *time.Time, syncErr string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.ConnectionHealth = health
	if lastSync != nil {
		a.LastSyncAt = lastSync
	}
	if lastSuccess != nil {
		a.LastSuccessfulSyncAt = lastSuccess
	}
	a.LastSyncError = syncErr
	f.accounts[id] = a
	return nil
}

func (f *fakeAccounts) UpdateSyncFrequency(id string, freq domain.SyncFrequency) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.SyncFrequency = freq
	f.accounts[id] = a
	return nil
}

func (f *fakeAccounts) SaveReconciliation(id string, r *domain.ReconciliationReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.saveErr[id]; err != nil {
		return err
	}
	a, ok := f.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.LastReconciliation = r
	f.accounts[id] = a
	return nil
}

func (f *fakeAccounts) DeactivateAccount(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.accounts[id]
	if !ok {
		return domain.ErrAccountNotFound
	}
	a.Active = false
	f.accounts[id] = a
	return nil
}

// fakeTxs is an in-memory domain.TransactionStore.
type fakeTxs struct {
	mu  sync.Mutex
	txs []domain.Transaction

	listErr error
}

func newFakeTxs(txs ...domain.Transaction) *fakeTxs {
	return &fakeTxs{txs: txs}
}

func (f *fakeTxs) InsertTransaction(t domain.Transaction) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ProviderRef != "" {
		for _, have := range f.txs {
			if have.AccountID == t.AccountID && have.ProviderRef == t.ProviderRef {
				return false, nil
			}
		}
	}
	f.txs = append(f.txs, t)
	return true, nil
}

func (f *fakeTxs) GetTransaction(id string) (*domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.txs {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, domain.ErrTransactionNotFound
}

func (f *fakeTxs) ListByAccount(accountID string, statuses ...domain.TxStatus) ([]domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []domain.Transaction
	for _, t := range f.txs {
		if t.AccountID != accountID {
			continue
		}
		if len(statuses) > 0 {
			match := false
			for _, s := range statuses {
				if t.Status == s {
					match = true
					break
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (f *fakeTxs) ListReconciliationEntries(accountID string, since time.Time) ([]domain.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Transaction
	for _, t := range f.txs {
		if t.AccountID != accountID || !t.Reconciliation || t.Date.Before(since) {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func (f *fakeTxs) MarkRemoved(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.txs {
		if t.ID == id {
			f.txs[i].Status = domain.TxRemoved
			return nil
		}
	}
	return domain.ErrTransactionNotFound
}
