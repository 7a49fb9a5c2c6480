package reconcile

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/finsync-io/finsync/internal/domain"
)

var testNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func checkingAccount(id, userID string, balanceMinor int64) domain.Account {
	return domain.Account{
		ID:           id,
		UserID:       userID,
		Name:         "Checking " + id,
		Type:         domain.AccountChecking,
		Currency:     "USD",
		BalanceMinor: balanceMinor,
		Active:       true,
		CreatedAt:    testNow.AddDate(0, -6, 0),
		UpdatedAt:    testNow.AddDate(0, -6, 0),
	}
}

func postedTx(id, accountID string, amountMinor int64, daysAgo int) domain.Transaction {
	return domain.Transaction{
		ID:          id,
		UserID:      "u1",
		AccountID:   accountID,
		AmountMinor: amountMinor,
		Currency:    "USD",
		Description: "tx " + id,
		Date:        testNow.AddDate(0, 0, -daysAgo),
		Status:      domain.TxPosted,
		CreatedAt:   testNow.AddDate(0, 0, -daysAgo),
	}
}

func TestReconcile_Balanced(t *testing.T) {
	// 10000 − 500 − 1500 + 200 = 8200 recorded and calculated.
	accounts := newFakeAccounts(checkingAccount("a1", "u1", 8200))
	txs := newFakeTxs(
		postedTx("t1", "a1", 10000, 30),
		postedTx("t2", "a1", -500, 20),
		postedTx("t3", "a1", -1500, 10),
		postedTx("t4", "a1", 200, 5),
	)
	engine := NewEngine(accounts, txs, WithClock(fixedClock))

	report, err := engine.Reconcile("a1", "u1")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if !report.IsReconciled {
		t.Errorf("IsReconciled = false, want true")
	}
	if report.CalculatedMinor != 8200 {
		t.Errorf("CalculatedMinor = %d, want 8200", report.CalculatedMinor)
	}
	if report.DiscrepancyMinor != 0 {
		t.Errorf("DiscrepancyMinor = %d, want 0", report.DiscrepancyMinor)
	}
	if report.TransactionCount != 4 {
		t.Errorf("TransactionCount = %d, want 4", report.TransactionCount)
	}
	if len(report.Suggestions) != 0 {
		t.Errorf("Suggestions = %v, want none for reconciled account", report.Suggestions)
	}
	if !report.CheckedAt.Equal(testNow) {
		t.Errorf("CheckedAt = %v, want %v", report.CheckedAt, testNow)
	}

	// The report is persisted on the account.
	saved, _ := accounts.GetAccount("a1")
	if saved.LastReconciliation == nil || !saved.LastReconciliation.IsReconciled {
		t.Errorf("report not persisted on account: %+v", saved.LastReconciliation)
	}
}

func TestReconcile_Discrepancy(t *testing.T) {
	tests := []struct {
		name            string
		recorded        int64
		amounts         []int64
		wantDiscrepancy int64
		wantReconciled  bool
		wantHigherHint  bool
	}{
		{"recorded above calculated", 12000, []int64{10000}, 2000, false, true},
		{"recorded below calculated", 9000, []int64{10000}, -1000, false, false},
		{"one cent inside tolerance", 10001, []int64{10000}, 1, true, false},
		{"two cents outside tolerance", 10002, []int64{10000}, 2, false, true},
		{"empty ledger zero balance", 0, nil, 0, true, false},
		{"negative calculated balance", 10000, []int64{-500, -1500, 200}, 11800, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			accounts := newFakeAccounts(checkingAccount("a1", "u1", tt.recorded))
			store := newFakeTxs()
			for i, amt := range tt.amounts {
				store.txs = append(store.txs, postedTx("t"+string(rune('a'+i)), "a1", amt, i+1))
			}
			engine := NewEngine(accounts, store, WithClock(fixedClock))

			report, err := engine.Reconcile("a1", "u1")
			if err != nil {
				t.Fatalf("Reconcile: %v", err)
			}
			if report.DiscrepancyMinor != tt.wantDiscrepancy {
				t.Errorf("DiscrepancyMinor = %d, want %d", report.DiscrepancyMinor, tt.wantDiscrepancy)
			}
			if report.IsReconciled != tt.wantReconciled {
				t.Errorf("IsReconciled = %v, want %v", report.IsReconciled, tt.wantReconciled)
			}
			if tt.wantReconciled {
				return
			}
			if len(report.Suggestions) == 0 {
				t.Fatal("want suggestions for out-of-tolerance discrepancy")
			}
			higher := strings.Contains(report.Suggestions[0], "higher")
			if higher != tt.wantHigherHint {
				t.Errorf("first suggestion %q direction mismatch", report.Suggestions[0])
			}
		})
	}
}

func TestReconcile_ZeroToleranceOneCent(t *testing.T) {
	accounts := newFakeAccounts(checkingAccount("a1", "u1", 10001))
	txs := newFakeTxs(postedTx("t1", "a1", 10000, 1))
	engine := NewEngine(accounts, txs, WithClock(fixedClock), WithTolerance(0))

	report, err := engine.Reconcile("a1", "u1")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.IsReconciled {
		t.Error("IsReconciled = true, want false at tolerance 0")
	}
	if len(report.Suggestions) == 0 {
		t.Error("want non-empty suggestions")
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	accounts := newFakeAccounts(checkingAccount("a1", "u1", 11800))
	txs := newFakeTxs(postedTx("t1", "a1", 10000, 3))
	engine := NewEngine(accounts, txs, WithClock(fixedClock))

	first, err := engine.Reconcile("a1", "u1")
	if err != nil {
		t.Fatalf("first Reconcile: %v", err)
	}
	second, err := engine.Reconcile("a1", "u1")
	if err != nil {
		t.Fatalf("second Reconcile: %v", err)
	}
	if first.DiscrepancyMinor != second.DiscrepancyMinor || first.IsReconciled != second.IsReconciled {
		t.Errorf("reports differ: %+v vs %+v", first, second)
	}
}

func TestReconcile_RemovedExcludedPendingCounted(t *testing.T) {
	accounts := newFakeAccounts(checkingAccount("a1", "u1", 9500))
	removed := postedTx("t2", "a1", -9999, 2)
	removed.Status = domain.TxRemoved
	pending := postedTx("t3", "a1", -500, 1)
	pending.Status = domain.TxPending
	txs := newFakeTxs(postedTx("t1", "a1", 10000, 3), removed, pending)
	engine := NewEngine(accounts, txs, WithClock(fixedClock))

	report, err := engine.Reconcile("a1", "u1")
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if report.CalculatedMinor != 9500 {
		t.Errorf("CalculatedMinor = %d, want 9500", report.CalculatedMinor)
	}
	if !report.IsReconciled {
		t.Error("IsReconciled = false, want true")
	}
}

func TestReconcile_Errors(t *testing.T) {
	t.Run("account not found", func(t *testing.T) {
		engine := NewEngine(newFakeAccounts(), newFakeTxs())
		if _, err := engine.Reconcile("missing", "u1"); !errors.Is(err, domain.ErrAccountNotFound) {
			t.Errorf("err = %v, want ErrAccountNotFound", err)
		}
	})
	t.Run("not owned", func(t *testing.T) {
		engine := NewEngine(newFakeAccounts(checkingAccount("a1", "u1", 0)), newFakeTxs())
		if _, err := engine.Reconcile("a1", "u2"); !errors.Is(err, domain.ErrNotOwned) {
			t.Errorf("err = %v, want ErrNotOwned", err)
		}
	})
	t.Run("transaction query failure surfaces generic error", func(t *testing.T) {
		txs := newFakeTxs()
		txs.listErr = errors.New("disk on fire")
		engine := NewEngine(newFakeAccounts(checkingAccount("a1", "u1", 0)), txs)
		_, err := engine.Reconcile("a1", "u1")
		if !errors.Is(err, domain.ErrReconcileUnavailable) {
			t.Errorf("err = %v, want ErrReconcileUnavailable", err)
		}
		if strings.Contains(err.Error(), "disk on fire") {
			t.Errorf("internal detail leaked to caller: %v", err)
		}
	})
	t.Run("save failure surfaces generic error", func(t *testing.T) {
		accounts := newFakeAccounts(checkingAccount("a1", "u1", 0))
		accounts.saveErr["a1"] = errors.New("write refused")
		engine := NewEngine(accounts, newFakeTxs())
		if _, err := engine.Reconcile("a1", "u1"); !errors.Is(err, domain.ErrReconcileUnavailable) {
			t.Errorf("err = %v, want ErrReconcileUnavailable", err)
		}
	})
}

func TestReconcileAll_PartialFailure(t *testing.T) {
	a1 := checkingAccount("a1", "u1", 10000)
	a2 := checkingAccount("a2", "u1", 5000) // SaveReconciliation will fail
	a3 := checkingAccount("a3", "u1", 3000) // 500 off
	accounts := newFakeAccounts(a1, a2, a3)
	accounts.saveErr["a2"] = errors.New("constraint violation")
	txs := newFakeTxs(
		postedTx("t1", "a1", 10000, 5),
		postedTx("t2", "a2", 5000, 5),
		postedTx("t3", "a3", 2500, 5),
	)
	engine := NewEngine(accounts, txs, WithClock(fixedClock))

	batch, err := engine.ReconcileAll("u1")
	if err != nil {
		t.Fatalf("ReconcileAll: %v", err)
	}
	if batch.TotalAccounts != 3 {
		t.Errorf("TotalAccounts = %d, want 3", batch.TotalAccounts)
	}
	if batch.Reconciled != 1 || batch.WithDiscrepancy != 1 || batch.Failed != 1 {
		t.Errorf("counts = %d/%d/%d, want 1/1/1",
			batch.Reconciled, batch.WithDiscrepancy, batch.Failed)
	}
	if batch.TotalAbsDiscrepancyMinor != 500 {
		t.Errorf("TotalAbsDiscrepancyMinor = %d, want 500", batch.TotalAbsDiscrepancyMinor)
	}
	if len(batch.Results) != 3 {
		t.Fatalf("Results = %d entries, want 3", len(batch.Results))
	}
	for _, slot := range batch.Results {
		switch slot.AccountID {
		case "a2":
			if slot.Err == "" || slot.Report != nil {
				t.Errorf("a2 slot = %+v, want error only", slot)
			}
		default:
			if slot.Err != "" || slot.Report == nil {
				t.Errorf("%s slot = %+v, want report only", slot.AccountID, slot)
			}
		}
	}
}

func TestReconcileAll_SkipsInactiveAndOtherUsers(t *testing.T) {
	inactive := checkingAccount("a2", "u1", 0)
	inactive.Active = false
	accounts := newFakeAccounts(
		checkingAccount("a1", "u1", 0),
		inactive,
		checkingAccount("a3", "u2", 0),
	)
	engine := NewEngine(accounts, newFakeTxs(), WithClock(fixedClock))

	batch, err := engine.ReconcileAll("u1")
	if err != nil {
		t.Fatalf("ReconcileAll: %v", err)
	}
	if batch.TotalAccounts != 1 || len(batch.Results) != 1 || batch.Results[0].AccountID != "a1" {
		t.Errorf("batch covered %+v, want only a1", batch.Results)
	}
}
