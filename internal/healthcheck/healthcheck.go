// Package healthcheck exposes a small HTTP surface for container probes:
// /healthz for liveness and /status for a JSON snapshot.
package healthcheck

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Status struct {
	Status    string   `json:"status"`
	UptimeSec int64    `json:"uptime_sec"`
	Models    []string `json:"models"`
	Providers []string `json:"providers"`
}

type Server struct {
	srv     *http.Server
	logger  *slog.Logger
	started time.Time

	models    []string
	providers []string
}

func New(addr string, models, providers []string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		logger:    logger,
		started:   time.Now(),
		models:    models,
		providers: providers,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start runs the listener in the background and returns immediately.
func (s *Server) Start() {
	go func() {
		s.logger.Info("healthcheck_listen", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("healthcheck_error", "error", err.Error())
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(Status{
		Status:    "ok",
		UptimeSec: int64(time.Since(s.started).Seconds()),
		Models:    s.models,
		Providers: s.providers,
	})
}
