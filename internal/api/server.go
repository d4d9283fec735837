package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/wikicrawler/internal/crawler"
	"github.com/JakeFAU/wikicrawler/internal/metrics"
	"github.com/JakeFAU/wikicrawler/internal/status"
)

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 100
	storeTimeout       = 3 * time.Second
)

// Server serves read-only views of a crawl run and its store.
type Server struct {
	router  chi.Router
	repo    crawler.DocumentRepository
	stats   *crawler.Stats
	runID   string
	target  int64
	started time.Time
	clock   crawler.Clock
	logger  *zap.Logger
}

// Config describes the run the server reports on.
type Config struct {
	RunID  string
	Target int64
}

type statsResponse struct {
	RunID         string                `json:"run_id"`
	UptimeSeconds float64               `json:"uptime_seconds"`
	Run           crawler.StatsSnapshot `json:"run"`
	Progress      crawler.Progress      `json:"progress"`
	Summary       string                `json:"summary"`
}

// NewServer constructs a Server with middleware and routes. stats may be nil
// when no crawl is running in this process.
func NewServer(
	repo crawler.DocumentRepository,
	stats *crawler.Stats,
	clock crawler.Clock,
	cfg Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if stats == nil {
		stats = crawler.NewStats()
	}
	s := &Server{
		repo:    repo,
		stats:   stats,
		runID:   cfg.RunID,
		target:  cfg.Target,
		started: clock.Now(),
		clock:   clock,
		logger:  logger.Named("api"),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(30 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/stats", s.getStats)
		r.Get("/sources", s.getSources)
		r.Get("/recent", s.getRecent)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()
	if _, err := s.repo.Count(ctx); err != nil {
		s.logger.Warn("store not ready", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()
	total, err := s.repo.Count(ctx)
	if err != nil {
		s.logger.Error("count documents failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to count documents")
		return
	}
	progress := crawler.NewProgress(total, s.target)
	writeJSON(w, http.StatusOK, statsResponse{
		RunID:         s.runID,
		UptimeSeconds: s.clock.Now().Sub(s.started).Seconds(),
		Run:           s.stats.Snapshot(),
		Progress:      progress,
		Summary:       progress.String(),
	})
}

func (s *Server) getSources(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()
	counts, err := s.repo.CountBySource(ctx)
	if err != nil {
		s.logger.Error("count by source failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to count sources")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": status.SortSources(counts)})
}

func (s *Server) getRecent(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r, defaultRecentLimit, maxRecentLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), storeTimeout)
	defer cancel()
	rep, err := status.Collect(ctx, s.repo, s.target, limit)
	if err != nil {
		s.logger.Error("collect status failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read documents")
		return
	}
	recent := rep.Recent
	if recent == nil {
		recent = []status.Entry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"recent": recent})
}

func parseLimit(r *http.Request, def, maxLimit int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil || val <= 0 {
		return 0, errors.New("invalid limit")
	}
	return min(val, maxLimit), nil
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		reqID, _ := r.Context().Value(requestIDKey{}).(string)
		s.logger.Debug("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", reqID),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("panic", rec), zap.String("path", r.URL.Path))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

type requestIDKey struct{}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
