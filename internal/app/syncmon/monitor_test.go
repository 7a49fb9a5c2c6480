package syncmon

import (
	"errors"
	"testing"
	"time"

	"github.com/finsync-io/finsync/internal/domain"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

// statusStore serves accounts read-only; the monitor never writes.
type statusStore struct {
	domain.AccountStore
	accounts map[string]domain.Account
	listErr  error
}

func newStatusStore(accounts ...domain.Account) *statusStore {
	s := &statusStore{accounts: make(map[string]domain.Account)}
	for _, a := range accounts {
		s.accounts[a.ID] = a
	}
	return s
}

func (s *statusStore) GetAccount(id string) (*domain.Account, error) {
	a, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &a, nil
}

func (s *statusStore) ListActiveAccounts(userID string) ([]domain.Account, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []domain.Account
	for _, a := range s.accounts {
		if a.UserID == userID && a.Active {
			out = append(out, a)
		}
	}
	return out, nil
}

func connectedAccount(id string, freq domain.SyncFrequency) domain.Account {
	return domain.Account{
		ID:               id,
		UserID:           "u1",
		Name:             "Account " + id,
		Type:             domain.AccountChecking,
		Currency:         "USD",
		ConnectionHealth: domain.HealthHealthy,
		SyncFrequency:    freq,
		Credential:       "token-" + id,
		Active:           true,
	}
}

func TestAccountStatus_HealthDerivation(t *testing.T) {
	recent := testNow.Add(-2 * time.Hour)
	old := testNow.Add(-30 * time.Hour)

	tests := []struct {
		name    string
		mutate  func(*domain.Account)
		want    domain.ConnectionHealth
	}{
		{
			"no credential means not connected",
			func(a *domain.Account) { a.Credential = "" },
			domain.HealthNotConnected,
		},
		{
			"stored failure wins",
			func(a *domain.Account) {
				a.ConnectionHealth = domain.HealthFailed
				a.LastSuccessfulSyncAt = &recent
			},
			domain.HealthFailed,
		},
		{
			"connected but never synced is degraded",
			func(a *domain.Account) {},
			domain.HealthDegraded,
		},
		{
			"recent success within interval is healthy",
			func(a *domain.Account) { a.LastSuccessfulSyncAt = &recent },
			domain.HealthHealthy,
		},
		{
			"daily account 30h stale is degraded",
			func(a *domain.Account) { a.LastSuccessfulSyncAt = &old },
			domain.HealthDegraded,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account := connectedAccount("a1", domain.FrequencyDaily)
			tt.mutate(&account)
			monitor := NewMonitor(newStatusStore(account), WithClock(fixedClock))

			status, err := monitor.AccountStatus("a1", "u1")
			if err != nil {
				t.Fatalf("AccountStatus: %v", err)
			}
			if status.Health != tt.want {
				t.Errorf("Health = %q, want %q", status.Health, tt.want)
			}
		})
	}
}

func TestAccountStatus_WeeklyStaleness(t *testing.T) {
	// 30h old is stale for a daily account but fresh for a weekly one.
	old := testNow.Add(-30 * time.Hour)
	account := connectedAccount("a1", domain.FrequencyWeekly)
	account.LastSuccessfulSyncAt = &old
	monitor := NewMonitor(newStatusStore(account), WithClock(fixedClock))

	status, err := monitor.AccountStatus("a1", "u1")
	if err != nil {
		t.Fatalf("AccountStatus: %v", err)
	}
	if status.Health != domain.HealthHealthy {
		t.Errorf("Health = %q, want healthy", status.Health)
	}
}

func TestAccountStatus_NextScheduledSync(t *testing.T) {
	last := testNow.Add(-6 * time.Hour)

	t.Run("daily account: last sync plus 24h", func(t *testing.T) {
		account := connectedAccount("a1", domain.FrequencyDaily)
		account.LastSyncAt = &last
		monitor := NewMonitor(newStatusStore(account), WithClock(fixedClock))

		status, _ := monitor.AccountStatus("a1", "u1")
		want := last.Add(24 * time.Hour)
		if status.NextScheduledSync == nil || !status.NextScheduledSync.Equal(want) {
			t.Errorf("NextScheduledSync = %v, want %v", status.NextScheduledSync, want)
		}
	})

	t.Run("never synced: now plus interval", func(t *testing.T) {
		account := connectedAccount("a1", domain.FrequencyDaily)
		monitor := NewMonitor(newStatusStore(account), WithClock(fixedClock))

		status, _ := monitor.AccountStatus("a1", "u1")
		want := testNow.Add(24 * time.Hour)
		if status.NextScheduledSync == nil || !status.NextScheduledSync.Equal(want) {
			t.Errorf("NextScheduledSync = %v, want %v", status.NextScheduledSync, want)
		}
	})

	t.Run("manual account: no prediction", func(t *testing.T) {
		account := connectedAccount("a1", domain.FrequencyManual)
		account.LastSyncAt = &last
		monitor := NewMonitor(newStatusStore(account), WithClock(fixedClock))

		status, _ := monitor.AccountStatus("a1", "u1")
		if status.NextScheduledSync != nil {
			t.Errorf("NextScheduledSync = %v, want nil for manual", status.NextScheduledSync)
		}
	})
}

func TestAccountStatus_Recommendations(t *testing.T) {
	t.Run("failed account names the error", func(t *testing.T) {
		account := connectedAccount("a1", domain.FrequencyDaily)
		account.ConnectionHealth = domain.HealthFailed
		account.LastSyncError = "credential expired"
		monitor := NewMonitor(newStatusStore(account), WithClock(fixedClock))

		status, _ := monitor.AccountStatus("a1", "u1")
		if len(status.Recommendations) < 2 {
			t.Fatalf("Recommendations = %v, want reconnect hint plus error", status.Recommendations)
		}
	})

	t.Run("connected manual account suggests a frequency", func(t *testing.T) {
		recent := testNow.Add(-time.Hour)
		account := connectedAccount("a1", domain.FrequencyManual)
		account.LastSuccessfulSyncAt = &recent
		monitor := NewMonitor(newStatusStore(account), WithClock(fixedClock))

		status, _ := monitor.AccountStatus("a1", "u1")
		if len(status.Recommendations) == 0 {
			t.Error("want a frequency recommendation for connected manual account")
		}
	})

	t.Run("healthy scheduled account has none", func(t *testing.T) {
		recent := testNow.Add(-time.Hour)
		account := connectedAccount("a1", domain.FrequencyDaily)
		account.LastSuccessfulSyncAt = &recent
		monitor := NewMonitor(newStatusStore(account), WithClock(fixedClock))

		status, _ := monitor.AccountStatus("a1", "u1")
		if len(status.Recommendations) != 0 {
			t.Errorf("Recommendations = %v, want none", status.Recommendations)
		}
	})
}

func TestAccountStatus_Errors(t *testing.T) {
	monitor := NewMonitor(newStatusStore(connectedAccount("a1", domain.FrequencyDaily)), WithClock(fixedClock))

	if _, err := monitor.AccountStatus("missing", "u1"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("err = %v, want ErrAccountNotFound", err)
	}
	if _, err := monitor.AccountStatus("a1", "u2"); !errors.Is(err, domain.ErrNotOwned) {
		t.Errorf("err = %v, want ErrNotOwned", err)
	}
}

func TestUserOverview(t *testing.T) {
	recent := testNow.Add(-time.Hour)

	healthy := connectedAccount("a1", domain.FrequencyDaily)
	healthy.LastSuccessfulSyncAt = &recent

	failed := connectedAccount("a2", domain.FrequencyDaily)
	failed.ConnectionHealth = domain.HealthFailed

	degraded := connectedAccount("a3", domain.FrequencyDaily) // never synced

	unconnected := connectedAccount("a4", domain.FrequencyManual)
	unconnected.Credential = ""

	inactive := connectedAccount("a5", domain.FrequencyDaily)
	inactive.Active = false

	foreign := connectedAccount("a6", domain.FrequencyDaily)
	foreign.UserID = "u2"

	monitor := NewMonitor(
		newStatusStore(healthy, failed, degraded, unconnected, inactive, foreign),
		WithClock(fixedClock),
	)

	overview, err := monitor.UserOverview("u1")
	if err != nil {
		t.Fatalf("UserOverview: %v", err)
	}
	if overview.Total != 4 {
		t.Errorf("Total = %d, want 4", overview.Total)
	}
	if overview.Healthy != 1 || overview.Degraded != 1 || overview.Failed != 1 || overview.NotConnected != 1 {
		t.Errorf("buckets = %d/%d/%d/%d, want 1/1/1/1",
			overview.Healthy, overview.Degraded, overview.Failed, overview.NotConnected)
	}
	if len(overview.Accounts) != 4 {
		t.Errorf("Accounts = %d entries, want 4", len(overview.Accounts))
	}
}
