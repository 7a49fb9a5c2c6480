package bankfeed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/finsync-io/finsync/internal/domain"
)

func TestFetchBalances(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/balances" {
			t.Errorf("path = %q, want /v1/balances", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"balances":[
			{"account_ref":"ref-1","balance":"118.00","currency":"USD"},
			{"account_ref":"ref-2","balance":"-15.50","currency":"EUR"},
			{"account_ref":"ref-3","balance":"500","currency":"JPY"}
		]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	balances, err := client.FetchBalances(context.Background(), "secret-token")
	if err != nil {
		t.Fatalf("FetchBalances: %v", err)
	}
	if gotAuth != "Bearer secret-token" {
		t.Errorf("Authorization = %q, want Bearer secret-token", gotAuth)
	}
	want := []domain.ProviderBalance{
		{AccountRef: "ref-1", BalanceMinor: 11800, Currency: "USD"},
		{AccountRef: "ref-2", BalanceMinor: -1550, Currency: "EUR"},
		{AccountRef: "ref-3", BalanceMinor: 500, Currency: "JPY"},
	}
	if len(balances) != len(want) {
		t.Fatalf("got %d balances, want %d", len(balances), len(want))
	}
	for i, b := range balances {
		if b != want[i] {
			t.Errorf("balance[%d] = %+v, want %+v", i, b, want[i])
		}
	}
}

func TestFetchTransactions(t *testing.T) {
	from := time.Date(2026, 2, 13, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("from"); got != from.Format(time.RFC3339) {
			t.Errorf("from = %q, want %q", got, from.Format(time.RFC3339))
		}
		if got := r.URL.Query().Get("to"); got != to.Format(time.RFC3339) {
			t.Errorf("to = %q, want %q", got, to.Format(time.RFC3339))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"transactions":[
			{"ref":"p1","account_ref":"ref-1","amount":"-5.00","currency":"USD",
			 "description":"coffee","merchant":"Blue Bottle","date":"2026-03-14T09:30:00Z","pending":false},
			{"ref":"p2","account_ref":"ref-1","amount":"20.00","currency":"USD",
			 "description":"refund","date":"2026-03-14T15:00:00Z","pending":true}
		]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	txs, err := client.FetchTransactions(context.Background(), "secret-token", from, to)
	if err != nil {
		t.Fatalf("FetchTransactions: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("got %d transactions, want 2", len(txs))
	}
	if txs[0].AmountMinor != -500 || txs[0].Merchant != "Blue Bottle" {
		t.Errorf("tx[0] = %+v, want -500 minor at Blue Bottle", txs[0])
	}
	if txs[1].AmountMinor != 2000 || !txs[1].Pending {
		t.Errorf("tx[1] = %+v, want 2000 minor pending", txs[1])
	}
}

func TestClient_ErrorResponses(t *testing.T) {
	t.Run("non-200 wraps ErrProvider", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "credential expired", http.StatusUnauthorized)
		}))
		defer server.Close()

		_, err := NewClient(server.URL).FetchBalances(context.Background(), "bad")
		if !errors.Is(err, domain.ErrProvider) {
			t.Errorf("err = %v, want ErrProvider", err)
		}
	})

	t.Run("connection refused wraps ErrProvider", func(t *testing.T) {
		_, err := NewClient("http://127.0.0.1:1").FetchBalances(context.Background(), "token")
		if !errors.Is(err, domain.ErrProvider) {
			t.Errorf("err = %v, want ErrProvider", err)
		}
	})

	t.Run("malformed body wraps ErrProvider", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer server.Close()

		_, err := NewClient(server.URL).FetchBalances(context.Background(), "token")
		if !errors.Is(err, domain.ErrProvider) {
			t.Errorf("err = %v, want ErrProvider", err)
		}
	})
}

func TestToMinor(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		want     int64
		wantErr  bool
	}{
		{"118.00", "USD", 11800, false},
		{"118", "USD", 11800, false},
		{"-1.50", "USD", -150, false},
		{"500", "JPY", 500, false},
		{"0", "USD", 0, false},
		{"1.005", "USD", 0, true}, // sub-cent precision rejected, not rounded
		{"abc", "USD", 0, true},
	}
	for _, tt := range tests {
		got, err := toMinor(tt.amount, tt.currency)
		if (err != nil) != tt.wantErr {
			t.Errorf("toMinor(%q, %s) err = %v, wantErr %v", tt.amount, tt.currency, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("toMinor(%q, %s) = %d, want %d", tt.amount, tt.currency, got, tt.want)
		}
	}
}
