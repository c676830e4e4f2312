// Package web serves the operator HTTP surface: health, Prometheus metrics,
// the stored logs and a snapshot of the settings cache.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomasmach/fishie/cache"
	"github.com/tomasmach/fishie/logstore"
)

const maxLogLimit = 500

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LogLister is implemented by *logstore.Store.
type LogLister interface {
	List(ctx context.Context, f logstore.Filter) ([]logstore.Entry, int, error)
}

type Options struct {
	Store  Pinger
	Logs   LogLister
	Cache  *cache.Cache
	Logger *slog.Logger
}

type Server struct {
	store      Pinger
	logs       LogLister
	cache      *cache.Cache
	logger     *slog.Logger
	httpServer *http.Server
}

func New(addr string, opts Options) *Server {
	s := &Server{
		store:  opts.Store,
		logs:   opts.Logs,
		cache:  opts.Cache,
		logger: opts.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/logs", s.handleListLogs)
	mux.HandleFunc("GET /api/cache", s.handleCache)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the server's router, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start blocks serving until Shutdown is called, after which it returns nil.
func (s *Server) Start() error {
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok", "database": "ok"}
	code := http.StatusOK
	if s.store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.store.Ping(ctx); err != nil {
			s.logger.Warn("health check: database unreachable", "error", err)
			status["status"] = "degraded"
			status["database"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, status)
}

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		http.Error(w, "log store not configured", http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	f := logstore.Filter{
		GuildID: q.Get("guild_id"),
		Level:   q.Get("level"),
		Command: q.Get("command"),
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		f.Limit = min(n, maxLogLimit)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			http.Error(w, "invalid offset", http.StatusBadRequest)
			return
		}
		f.Offset = n
	}

	entries, total, err := s.logs.List(r.Context(), f)
	if err != nil {
		s.logger.Error("list logs", "error", err)
		http.Error(w, "failed to list logs", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []logstore.Entry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"logs":  entries,
		"total": total,
	})
}

func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		http.Error(w, "cache not configured", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, s.cache.Snapshot())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
