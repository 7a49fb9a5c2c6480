// Package syncmon derives read-only sync-health views over accounts. It
// never mutates store state and never calls the external provider.
package syncmon

import (
	"fmt"
	"time"

	"github.com/finsync-io/finsync/internal/domain"
)

// Monitor builds sync status views from the account store.
type Monitor struct {
	accounts domain.AccountStore
	now      func() time.Time
}

// Option customizes a Monitor.
type Option func(*Monitor)

// WithClock injects a clock for testing.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// NewMonitor creates a sync status monitor over the given store.
func NewMonitor(accounts domain.AccountStore, opts ...Option) *Monitor {
	m := &Monitor{accounts: accounts, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AccountStatus returns the derived sync status for one account.
func (m *Monitor) AccountStatus(accountID, userID string) (*domain.SyncStatus, error) {
	account, err := m.accounts.GetAccount(accountID)
	if err != nil {
		return nil, err
	}
	if userID != "" && account.UserID != userID {
		return nil, domain.ErrNotOwned
	}
	status := m.status(*account)
	return &status, nil
}

// UserOverview aggregates derived statuses for all of a user's active
// accounts.
func (m *Monitor) UserOverview(userID string) (*domain.SyncOverview, error) {
	accounts, err := m.accounts.ListActiveAccounts(userID)
	if err != nil {
		return nil, err
	}
	overview := &domain.SyncOverview{UserID: userID, Total: len(accounts)}
	for _, account := range accounts {
		status := m.status(account)
		switch status.Health {
		case domain.HealthHealthy:
			overview.Healthy++
		case domain.HealthDegraded:
			overview.Degraded++
		case domain.HealthFailed:
			overview.Failed++
		default:
			overview.NotConnected++
		}
		overview.Accounts = append(overview.Accounts, status)
	}
	return overview, nil
}

// status derives one account's view. Health is recomputed here rather than
// read verbatim: a connected account whose last sync has drifted past its
// configured interval is degraded even if the last attempt succeeded.
func (m *Monitor) status(account domain.Account) domain.SyncStatus {
	now := m.now().UTC()
	status := domain.SyncStatus{
		AccountID:            account.ID,
		AccountName:          account.Name,
		AccountType:          account.Type,
		Connected:            account.Connected(),
		Frequency:            account.SyncFrequency,
		LastSyncAt:           account.LastSyncAt,
		LastSuccessfulSyncAt: account.LastSuccessfulSyncAt,
		LastSyncError:        account.LastSyncError,
	}
	status.Health = deriveHealth(account, now)
	status.NextScheduledSync = nextScheduledSync(account, now)
	status.Recommendations = recommendations(account, status.Health)
	return status
}

// deriveHealth classifies an account's connection.
func deriveHealth(account domain.Account, now time.Time) domain.ConnectionHealth {
	if !account.Connected() {
		return domain.HealthNotConnected
	}
	if account.ConnectionHealth == domain.HealthFailed {
		return domain.HealthFailed
	}
	// Connected but never synced: data is missing, not merely old.
	if account.LastSuccessfulSyncAt == nil {
		return domain.HealthDegraded
	}
	if interval := account.SyncFrequency.Interval(); interval > 0 {
		if now.Sub(*account.LastSuccessfulSyncAt) > interval {
			return domain.HealthDegraded
		}
	}
	return domain.HealthHealthy
}

// nextScheduledSync predicts when the scheduler will next pick the account
// up. Manual accounts are never scheduled; nil means no prediction.
func nextScheduledSync(account domain.Account, now time.Time) *time.Time {
	interval := account.SyncFrequency.Interval()
	if interval <= 0 || !account.Connected() {
		return nil
	}
	if account.LastSyncAt == nil {
		// Due on the next sweep; report the interval boundary from now.
		next := now.Add(interval)
		return &next
	}
	next := account.LastSyncAt.Add(interval)
	return &next
}

// recommendations suggests user actions for unhealthy accounts.
func recommendations(account domain.Account, health domain.ConnectionHealth) []string {
	var out []string
	switch health {
	case domain.HealthNotConnected:
		out = append(out, "Connect this account to a bank to enable automatic syncing.")
	case domain.HealthFailed:
		out = append(out, "The last sync failed. Reconnect the account or update its credentials.")
		if account.LastSyncError != "" {
			out = append(out, fmt.Sprintf("Last error: %s", account.LastSyncError))
		}
	case domain.HealthDegraded:
		if account.LastSuccessfulSyncAt == nil {
			out = append(out, "This account has never synced. Trigger a manual sync to pull initial data.")
		} else {
			out = append(out, "Data is older than the configured sync interval. Trigger a manual sync to refresh it.")
		}
	}
	if account.Connected() && account.SyncFrequency == domain.FrequencyManual {
		out = append(out, "Automatic syncing is off. Set a daily or weekly frequency to keep balances fresh.")
	}
	return out
}
