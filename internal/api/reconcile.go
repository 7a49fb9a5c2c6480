package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/finsync-io/finsync/internal/domain"
)

// ─── Reconciliation API ─────────────────────────────────────────────────────
//
// POST /api/accounts/{id}/reconcile              — reconcile one account
// POST /api/reconcile                            — reconcile all active accounts
// POST /api/accounts/{id}/reconciliation-entries — record a manual adjustment
// GET  /api/accounts/{id}/reconciliation-history — past adjustments, newest first

// handleReconcile runs a reconciliation for one account.
// POST /api/accounts/{id}/reconcile
func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	uid := requireUser(w, r)
	if uid == "" {
		return
	}
	report, err := s.engine.Reconcile(chi.URLParam(r, "id"), uid)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleReconcileAll reconciles every active account the caller owns.
// POST /api/reconcile
func (s *Server) handleReconcileAll(w http.ResponseWriter, r *http.Request) {
	uid := requireUser(w, r)
	if uid == "" {
		return
	}
	batch, err := s.engine.ReconcileAll(uid)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

type createEntryRequest struct {
	AmountMinor int64  `json:"amount_minor"`
	Description string `json:"description"`
}

// handleCreateEntry records a manual reconciliation adjustment.
// POST /api/accounts/{id}/reconciliation-entries
func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	uid := requireUser(w, r)
	if uid == "" {
		return
	}
	var req createEntryRequest
	if !decodeBody(w, r, &req) {
		return
	}
	entry, err := s.writer.CreateEntry(chi.URLParam(r, "id"), req.AmountMinor, req.Description, uid)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// handleHistory lists past reconciliation adjustments for an account.
// GET /api/accounts/{id}/reconciliation-history?days=30
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	uid := requireUser(w, r)
	if uid == "" {
		return
	}
	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "days must be a non-negative integer")
			return
		}
		days = parsed
	}
	entries, err := s.writer.History(chi.URLParam(r, "id"), uid, days)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.Transaction{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}
