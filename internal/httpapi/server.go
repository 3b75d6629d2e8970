package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joelkehle/normanpd/internal/incident"
	"github.com/joelkehle/normanpd/internal/store"
)

const (
	CodeValidation = "validation"
	CodeNotFound   = "not_found"
	CodeInternal   = "internal"

	defaultListLimit = 100
	maxListLimit     = 1000
)

type Server struct {
	store  store.API
	logger *slog.Logger
}

// NewServer exposes the incident store read-only. registry may be nil, in
// which case /metrics is not mounted.
func NewServer(st store.API, registry *prometheus.Registry, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{store: st, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Get("/v1/health", s.handleHealth)
	r.Get("/v1/status", s.handleStatus)
	r.Get("/v1/incidents", s.handleListIncidents)
	r.Get("/v1/incidents/{caseNumber}", s.handleGetIncident)
	if registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	}
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeValidation, "method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http.request", "method", r.Method, "path", r.URL.Path, "status", ww.Status(), "elapsed_ms", time.Since(start).Milliseconds())
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"ok": false,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, CodeNotFound, err.Error())
		return
	}
	s.logger.Error("http.store.failed", "err", err)
	writeError(w, http.StatusInternalServerError, CodeInternal, "store unavailable")
}

func parseInt(value string, def int) (int, error) {
	if strings.TrimSpace(value) == "" {
		return def, nil
	}
	return strconv.Atoi(value)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.Count(r.Context()); err != nil {
		s.logger.Warn("http.health.degraded", "err", err)
		writeError(w, http.StatusServiceUnavailable, CodeInternal, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.AggregateByCategory(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	total, err := s.store.Count(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	breakdown := make([]incident.CategoryCount, 0, len(counts))
	for _, c := range counts {
		breakdown = append(breakdown, incident.CategoryCount{Category: incident.DisplayCategory(c.Category), Count: c.Count})
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "total": total, "breakdown": breakdown})
}

func (s *Server) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	limit, err := parseInt(r.URL.Query().Get("limit"), defaultListLimit)
	if err != nil || limit < 1 {
		writeError(w, http.StatusBadRequest, CodeValidation, "limit must be a positive integer")
		return
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	records, err := s.store.List(r.Context(), store.Filter{
		Category: r.URL.Query().Get("category"),
		Limit:    limit,
	})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	out := make([]incident.Record, 0, len(records))
	for _, rec := range records {
		out = append(out, displayRecord(rec))
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "count": len(out), "incidents": out})
}

func (s *Server) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Get(r.Context(), chi.URLParam(r, "caseNumber"))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "incident": displayRecord(rec)})
}

// displayRecord blanks the unassigned-category sentinel like every other
// output does.
func displayRecord(rec incident.Record) incident.Record {
	rec.Category = incident.DisplayCategory(rec.Category)
	return rec
}
