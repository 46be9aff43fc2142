// Package httpapi exposes the engine's read surface and operator
// callbacks over HTTP: overall status, recent opportunities and trades,
// and the approval decision endpoint an operator notification links
// back to.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/sawpanic/arbengine/internal/arb/approval"
	"github.com/sawpanic/arbengine/internal/arb/domain"
	"github.com/sawpanic/arbengine/internal/arb/store"
)

// Config tunes the HTTP server's listening address and timeouts.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DefaultConfig returns sane local-development defaults.
func DefaultConfig() Config {
	return Config{
		Addr:         ":8000",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// VenueHealth reports the engine's current view of one venue connection.
type VenueHealth interface {
	Status(venue domain.Venue) (domain.VenueStatus, bool)
	All() []domain.VenueStatus
}

// Server is the engine's HTTP surface.
type Server struct {
	router   *mux.Router
	server   *http.Server
	repo     store.Repository
	health   VenueHealth
	approver *approval.Manager
	log      zerolog.Logger
}

// New builds a Server over the given durable-log repository, venue
// health tracker and approval manager.
func New(cfg Config, repo store.Repository, health VenueHealth, approver *approval.Manager, log zerolog.Logger) *Server {
	router := mux.NewRouter()
	s := &Server{router: router, repo: repo, health: health, approver: approver, log: log}
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.jsonContentTypeMiddleware)

	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/opportunities", s.handleOpportunities).Methods(http.MethodGet)
	s.router.HandleFunc("/opportunities/{id}", s.handleOpportunity).Methods(http.MethodGet)
	s.router.HandleFunc("/opportunities/{id}/trades", s.handleTrades).Methods(http.MethodGet)
	s.router.HandleFunc("/transfers/pending", s.handlePendingTransfers).Methods(http.MethodGet)
	s.router.HandleFunc("/approvals/{id}", s.handleDecide).Methods(http.MethodPost)
	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapped.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func (s *Server) jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var venues []domain.VenueStatus
	if s.health != nil {
		venues = s.health.All()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"venues": venues,
		"time":   time.Now().UTC(),
	})
}

func (s *Server) handleOpportunities(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	status := r.URL.Query().Get("status")

	var (
		records []store.OpportunityRecord
		err     error
	)
	if status != "" {
		records, err = s.repo.Opportunities.ListByStatus(r.Context(), status, limit)
	} else {
		records, err = s.repo.Opportunities.ListRecent(r.Context(), store.TimeRange{}, limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleOpportunity(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	record, err := s.repo.Opportunities.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	if record == nil {
		writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("opportunity %s not found", id))
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	trades, err := s.repo.Trades.ListByOpportunity(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handlePendingTransfers(w http.ResponseWriter, r *http.Request) {
	transfers, err := s.repo.Transfers.ListPending(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "query_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, transfers)
}

type decideRequest struct {
	Decision string `json:"decision"`
}

func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if s.approver == nil {
		writeError(w, http.StatusServiceUnavailable, "no_approver", "approval manager not configured")
		return
	}

	var body decideRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", err.Error())
		return
	}

	decision := approval.Decision(body.Decision)
	if decision != approval.DecisionApprove && decision != approval.DecisionReject {
		writeError(w, http.StatusBadRequest, "invalid_decision", "decision must be approve or reject")
		return
	}

	if err := s.approver.Decide(id, decision); err != nil {
		writeError(w, http.StatusNotFound, "not_pending", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not_found", "no such route")
}

// ListenAndServe starts the HTTP server, blocking until it stops.
func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("http server starting")
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}
