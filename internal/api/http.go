// Package api exposes the guardian read surface over local HTTP. All
// endpoints are read-only; lifecycle changes go through the CLI verbs.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/realyn/dtguard/internal/engine"
	"github.com/realyn/dtguard/internal/model"
)

const defaultFeedPageSize = 50

// Server serves the alert feed, incident list and engine status.
type Server struct {
	engine *engine.Engine
	logger *slog.Logger
}

// NewServer builds the read-only API around a running engine.
func NewServer(e *engine.Engine, logger *slog.Logger) *Server {
	return &Server{engine: e, logger: logger}
}

// Router returns the configured route set, including Prometheus metrics.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/feed", s.handleFeed).Methods(http.MethodGet)
	r.HandleFunc("/api/incidents", s.handleIncidents).Methods(http.MethodGet)
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	limit := defaultFeedPageSize
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	entries, err := s.engine.Feed().ReadRecent(limit)
	if err != nil {
		s.logger.Error("feed read failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "feed unavailable")
		return
	}
	if entries == nil {
		entries = []model.AlertFeedEntry{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *Server) handleIncidents(w http.ResponseWriter, _ *http.Request) {
	incidents := s.engine.Incidents().List()
	if incidents == nil {
		incidents = []model.Incident{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"incidents": incidents})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	incidents := s.engine.Incidents().List()
	counts := map[model.IncidentStatus]int{}
	for _, inc := range incidents {
		counts[inc.Status]++
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"time":             time.Now().UTC(),
		"last_fingerprint": s.engine.Feed().LastFingerprint(),
		"incidents": map[string]int{
			"open":        counts[model.StatusOpen],
			"in_progress": counts[model.StatusInProgress],
			"resolved":    counts[model.StatusResolved],
		},
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
