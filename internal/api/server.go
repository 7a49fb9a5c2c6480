// Package api provides the HTTP server for finsync.
// It exposes account reconciliation, sync status, and scheduler control
// endpoints. Callers identify themselves with the X-User-ID header; every
// account-scoped operation checks ownership in the service layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/finsync-io/finsync/internal/app/reconcile"
	"github.com/finsync-io/finsync/internal/app/syncmon"
	"github.com/finsync-io/finsync/internal/app/syncsched"
	"github.com/finsync-io/finsync/internal/domain"
)

// Version is the API version string served at /api/version.
const Version = "0.1.0"

// Server is the finsync HTTP API server.
type Server struct {
	accounts  domain.AccountStore
	txs       domain.TransactionStore
	engine    *reconcile.Engine
	writer    *reconcile.Writer
	monitor   *syncmon.Monitor
	scheduler *syncsched.Scheduler

	metricsEnabled bool

	// baseCtx governs background work started through the API, such as the
	// sweep loop. It must outlive individual requests.
	baseCtx context.Context
}

// NewServer creates a new API server over the application services.
func NewServer(
	accounts domain.AccountStore,
	txs domain.TransactionStore,
	engine *reconcile.Engine,
	writer *reconcile.Writer,
	monitor *syncmon.Monitor,
	scheduler *syncsched.Scheduler,
) *Server {
	return &Server{
		accounts:  accounts,
		txs:       txs,
		engine:    engine,
		writer:    writer,
		monitor:   monitor,
		scheduler: scheduler,
		baseCtx:   context.Background(),
	}
}

// SetBaseContext sets the context governing API-started background work.
func (s *Server) SetBaseContext(ctx context.Context) { s.baseCtx = ctx }

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version": Version,
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/reconcile", s.handleReconcileAll)

		r.Route("/accounts", func(r chi.Router) {
			r.Get("/", s.handleListAccounts)
			r.Post("/", s.handleCreateAccount)

			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", s.handleDeactivateAccount)

				r.Post("/reconcile", s.handleReconcile)
				r.Post("/reconciliation-entries", s.handleCreateEntry)
				r.Get("/reconciliation-history", s.handleHistory)

				r.Get("/sync-status", s.handleSyncStatus)
				r.Post("/sync", s.handleImmediateSync)
				r.Put("/sync-frequency", s.handleUpdateFrequency)

				r.Get("/transactions", s.handleListTransactions)
				r.Post("/transactions", s.handleCreateTransaction)
			})
		})

		r.Route("/sync", func(r chi.Router) {
			r.Get("/overview", s.handleSyncOverview)
			r.Post("/scheduler/start", s.handleSchedulerStart)
			r.Get("/scheduler/status", s.handleSchedulerStatus)
		})
	})

	// Prometheus metrics endpoint
	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// userID extracts the caller identity. Empty means the request carried no
// X-User-ID header; handlers reject that with 401.
func userID(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

// requireUser writes a 401 and returns "" when the caller is anonymous.
func requireUser(w http.ResponseWriter, r *http.Request) string {
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusUnauthorized, "missing X-User-ID header")
	}
	return uid
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": msg,
			"type":    "error",
		},
	})
}

// writeDomainError maps domain sentinels onto HTTP statuses. Anything
// unmatched stays a generic 500 so internals never leak to callers.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrTransactionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrNotOwned):
		writeError(w, http.StatusForbidden, "account belongs to another user")
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrInvalidFrequency):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrReconcileUnavailable):
		writeError(w, http.StatusServiceUnavailable, domain.ErrReconcileUnavailable.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeBody decodes a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// corsMiddleware adds CORS headers for local development.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-User-ID")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}
