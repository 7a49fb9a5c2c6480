package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/finsync-io/finsync/internal/domain"
)

// ─── Accounts API ───────────────────────────────────────────────────────────
//
// Minimal account and transaction surface: enough to create the data the
// reconciliation and sync endpoints operate on.
//
// GET    /api/accounts                   — list the caller's accounts
// POST   /api/accounts                   — create a manual account
// DELETE /api/accounts/{id}              — deactivate (rows are kept)
// GET    /api/accounts/{id}/transactions — list ledger entries
// POST   /api/accounts/{id}/transactions — record a ledger entry

type createAccountRequest struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	Currency      string `json:"currency"`
	BalanceMinor  int64  `json:"balance_minor"`
	SyncFrequency string `json:"sync_frequency"`
	ProviderRef   string `json:"provider_ref"`
	Credential    string `json:"credential"`
}

// handleCreateAccount creates an account for the caller.
// POST /api/accounts
func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	uid := requireUser(w, r)
	if uid == "" {
		return
	}
	var req createAccountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	freq := domain.FrequencyManual
	if req.SyncFrequency != "" {
		parsed, err := domain.ParseSyncFrequency(req.SyncFrequency)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		freq = parsed
	}

	now := time.Now().UTC()
	account := domain.Account{
		ID:               uuid.NewString(),
		UserID:           uid,
		Name:             req.Name,
		Type:             domain.AccountType(req.Type),
		Currency:         req.Currency,
		BalanceMinor:     req.BalanceMinor,
		ConnectionHealth: domain.HealthNotConnected,
		SyncFrequency:    freq,
		ProviderRef:      req.ProviderRef,
		Credential:       req.Credential,
		Active:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if account.Connected() {
		account.ConnectionHealth = domain.HealthHealthy
	}
	if err := account.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}
	if err := s.accounts.InsertAccount(account); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// handleListAccounts lists the caller's accounts, active ones only unless
// ?all=true.
// GET /api/accounts
func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	uid := requireUser(w, r)
	if uid == "" {
		return
	}
	var (
		accounts []domain.Account
		err      error
	)
	if r.URL.Query().Get("all") == "true" {
		accounts, err = s.accounts.ListAccounts(uid)
	} else {
		accounts, err = s.accounts.ListActiveAccounts(uid)
	}
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if accounts == nil {
		accounts = []domain.Account{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

// handleDeactivateAccount soft-deletes an account. The row and its ledger
// survive for audit; the account just stops appearing in active listings.
// DELETE /api/accounts/{id}
func (s *Server) handleDeactivateAccount(w http.ResponseWriter, r *http.Request) {
	uid := requireUser(w, r)
	if uid == "" {
		return
	}
	account, err := s.accounts.GetAccount(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if account.UserID != uid {
		writeDomainError(w, domain.ErrNotOwned)
		return
	}
	if err := s.accounts.DeactivateAccount(account.ID); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "deactivated",
	})
}

type createTransactionRequest struct {
	AmountMinor int64     `json:"amount_minor"`
	Description string    `json:"description"`
	Merchant    string    `json:"merchant"`
	Date        time.Time `json:"date"`
	Pending     bool      `json:"pending"`
}

// handleCreateTransaction records a manual ledger entry on an account.
// POST /api/accounts/{id}/transactions
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	uid := requireUser(w, r)
	if uid == "" {
		return
	}
	account, err := s.accounts.GetAccount(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if account.UserID != uid {
		writeDomainError(w, domain.ErrNotOwned)
		return
	}
	var req createTransactionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	now := time.Now().UTC()
	date := req.Date
	if date.IsZero() {
		date = now
	}
	status := domain.TxPosted
	if req.Pending {
		status = domain.TxPending
	}
	tx := domain.Transaction{
		ID:          uuid.NewString(),
		UserID:      account.UserID,
		AccountID:   account.ID,
		AmountMinor: req.AmountMinor,
		Currency:    account.Currency,
		Description: req.Description,
		Merchant:    req.Merchant,
		Date:        date,
		Status:      status,
		CreatedAt:   now,
	}
	if err := tx.Validate(); err != nil {
		writeDomainError(w, err)
		return
	}
	if _, err := s.txs.InsertTransaction(tx); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

// handleListTransactions lists an account's ledger entries, oldest first.
// GET /api/accounts/{id}/transactions
func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	uid := requireUser(w, r)
	if uid == "" {
		return
	}
	account, err := s.accounts.GetAccount(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if account.UserID != uid {
		writeDomainError(w, domain.ErrNotOwned)
		return
	}
	txs, err := s.txs.ListByAccount(account.ID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"transactions": txs,
		"count":        len(txs),
	})
}
