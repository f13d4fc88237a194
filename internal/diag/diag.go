// Package diag exposes a small HTTP surface for worker health and queue
// depth inspection
package diag

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"graphpipe/internal/platform/logger"
	"graphpipe/internal/platform/queue"
	"graphpipe/internal/platform/store"
)

// Server is the diagnostics listener. Counts are best effort and never used
// for control flow
type Server struct {
	log    logger.Logger
	store  *store.Store
	queues []queue.Queue
	http   *http.Server
}

// New builds a diagnostics server on addr watching the given queues
func New(log logger.Logger, addr string, st *store.Store, queues ...queue.Queue) *Server {
	s := &Server{log: log, store: st, queues: queues}
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the route tree; split out so tests can hit it directly
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))
	r.Get("/healthz", s.healthz)
	r.Get("/queues", s.queueDepths)
	return r
}

// Start serves in the background until Shutdown
func (s *Server) Start() {
	go func() {
		s.log.Info().Str("addr", s.http.Addr).Msg("diagnostics listening")
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("diagnostics server failed")
		}
	}()
}

// Shutdown stops the listener gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Guard(r.Context()); err != nil {
			s.log.Error().Err(err).Msg("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) queueDepths(w http.ResponseWriter, r *http.Request) {
	depths := make(map[string]int, len(s.queues))
	for _, q := range s.queues {
		n, err := q.Count(r.Context())
		if err != nil {
			s.log.Warn().Err(err).Str("queue", q.Name()).Msg("queue count failed")
			n = -1
		}
		depths[q.Name()] = n
	}
	writeJSON(w, http.StatusOK, depths)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
