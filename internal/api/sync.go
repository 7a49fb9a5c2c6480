package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ─── Sync API ───────────────────────────────────────────────────────────────
//
// GET  /api/accounts/{id}/sync-status    — one account's derived sync health
// GET  /api/sync/overview                — aggregate across the user's accounts
// POST /api/accounts/{id}/sync           — immediate sync, structured outcome
// PUT  /api/accounts/{id}/sync-frequency — change sync cadence
// POST /api/sync/scheduler/start         — start the background scheduler
// GET  /api/sync/scheduler/status        — scheduler state and sweep counters

// handleSyncStatus returns the derived sync status for one account.
// GET /api/accounts/{id}/sync-status
func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	uid := requireUser(w, r)
	if uid == "" {
		return
	}
	status, err := s.monitor.AccountStatus(chi.URLParam(r, "id"), uid)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleSyncOverview aggregates sync statuses across the user's accounts.
// GET /api/sync/overview
func (s *Server) handleSyncOverview(w http.ResponseWriter, r *http.Request) {
	uid := requireUser(w, r)
	if uid == "" {
		return
	}
	overview, err := s.monitor.UserOverview(uid)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

// handleImmediateSync triggers a sync for one account right now. Sync
// failures are part of the response body, not HTTP errors: only unknown or
// foreign accounts produce a non-200 status.
// POST /api/accounts/{id}/sync
func (s *Server) handleImmediateSync(w http.ResponseWriter, r *http.Request) {
	uid := requireUser(w, r)
	if uid == "" {
		return
	}
	outcome, err := s.scheduler.ImmediateSync(r.Context(), chi.URLParam(r, "id"), uid)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

type updateFrequencyRequest struct {
	Frequency string `json:"frequency"`
}

// handleUpdateFrequency changes an account's sync cadence.
// PUT /api/accounts/{id}/sync-frequency
func (s *Server) handleUpdateFrequency(w http.ResponseWriter, r *http.Request) {
	uid := requireUser(w, r)
	if uid == "" {
		return
	}
	var req updateFrequencyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	freq, err := s.scheduler.UpdateFrequency(chi.URLParam(r, "id"), uid, req.Frequency)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"frequency": string(freq),
	})
}

// handleSchedulerStart starts the background sweep loop. Already running is
// fine; the response reports the current state either way.
// POST /api/sync/scheduler/start
func (s *Server) handleSchedulerStart(w http.ResponseWriter, r *http.Request) {
	// Outlives the request: the loop runs on the server's lifetime.
	s.scheduler.Start(s.baseCtx)
	writeJSON(w, http.StatusOK, s.scheduler.Status())
}

// handleSchedulerStatus reports scheduler state and last-sweep counters.
// GET /api/sync/scheduler/status
func (s *Server) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.scheduler.Status())
}
