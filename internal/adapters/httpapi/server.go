// Package httpapi exposes the stored dataset and the classifier over the
// dashboard JSON API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/TheRocketCodeMX/sura-classifier-app/internal/core"
)

// Server carries the API's dependencies and the embedded http.Server.
type Server struct {
	addr    string
	service *core.ClassifierService
	store   core.Store
	logger  *zap.Logger
	http    *http.Server
}

// NewServer creates the API server listening on addr once started.
func NewServer(addr string, service *core.ClassifierService, store core.Store, logger *zap.Logger) *Server {
	return &Server{
		addr:    addr,
		service: service,
		store:   store,
		logger:  logger,
	}
}

// Routes builds the router. Exposed so tests can drive handlers directly.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", s.handleHealthz)
	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.handleStats)
		r.Get("/search", s.handleSearch)
		r.Get("/emails/{emailID}", s.handleEmail)
		r.Get("/emails/{emailID}/results", s.handleEmailResults)
		r.Post("/classify", s.handleClassify)
	})
	return r
}

// Start begins serving in the background.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:         s.addr,
		Handler:      s.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.logger.Info("Starting HTTP API", zap.String("addr", s.addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server failed", zap.Error(err))
		}
	}()
	return nil
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop() error {
	if s.http == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.logger.Info("Stopping HTTP API")
	return s.http.Shutdown(ctx)
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("Handled request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.Error("Failed to load stats", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q, err := parseQuery(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	page, err := s.store.SearchRecords(r.Context(), q)
	if err != nil {
		s.logger.Error("Search failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	s.writeJSON(w, http.StatusOK, page)
}

type emailDetail struct {
	Email        *core.EmailRecord          `json:"email"`
	LatestResult *core.ClassificationResult `json:"latest_result,omitempty"`
}

func (s *Server) handleEmail(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "emailID")

	rec, err := s.store.GetRecord(r.Context(), id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "email not found")
			return
		}
		s.logger.Error("Failed to load record", zap.String("email_id", id), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load email")
		return
	}

	detail := emailDetail{Email: rec}
	latest, err := s.store.LatestResult(r.Context(), id)
	switch {
	case err == nil:
		detail.LatestResult = latest
	case !errors.Is(err, core.ErrNotFound):
		s.logger.Error("Failed to load latest result", zap.String("email_id", id), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load email")
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleEmailResults(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "emailID")

	if _, err := s.store.GetRecord(r.Context(), id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "email not found")
			return
		}
		s.logger.Error("Failed to load record", zap.String("email_id", id), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load email")
		return
	}

	hist, err := s.store.ResultHistory(r.Context(), id)
	if err != nil {
		s.logger.Error("Failed to load result history", zap.String("email_id", id), zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to load results")
		return
	}
	if hist == nil {
		hist = []*core.ClassificationResult{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"email_id": id, "results": hist})
}

// handleClassify scores an ad-hoc record payload without persisting anything.
func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var rec core.EmailRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid email payload")
		return
	}
	s.writeJSON(w, http.StatusOK, s.service.ClassifyRecord(&rec))
}

func parseQuery(r *http.Request) (core.RecordQuery, error) {
	qs := r.URL.Query()
	q := core.RecordQuery{
		Text:   qs.Get("query"),
		Folder: qs.Get("folder"),
	}

	if v := qs.Get("category"); v != "" {
		cat, err := core.ParseCategory(v)
		if err != nil {
			return q, fmt.Errorf("invalid category %q", v)
		}
		q.Category = cat
	}
	if v := qs.Get("has_attachments"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return q, fmt.Errorf("invalid has_attachments %q", v)
		}
		q.HasAttachments = &b
	}
	if v := qs.Get("date_from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return q, fmt.Errorf("invalid date_from %q", v)
		}
		q.From = t
	}
	if v := qs.Get("date_to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return q, fmt.Errorf("invalid date_to %q", v)
		}
		// The whole end day is included.
		q.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	if v := qs.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return q, fmt.Errorf("invalid page %q", v)
		}
		q.Page = n
	}
	if v := qs.Get("per_page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 200 {
			return q, fmt.Errorf("invalid per_page %q", v)
		}
		q.PerPage = n
	}
	return q, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
