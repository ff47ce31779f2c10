package server

import (
	"context"
	"net/http"

	"tipbridge/internal/config"

	"github.com/go-chi/chi/v5"
)

// Server owns the listener; routes are added to Router before Run.
type Server struct {
	http   *http.Server
	Router *chi.Mux
}

func NewServer(cfg config.HTTPConfig) *Server {
	router := chi.NewRouter()
	return &Server{
		http: &http.Server{
			Addr:              ":" + cfg.Port,
			Handler:           router,
			ReadHeaderTimeout: cfg.ReadTimeout,
			ReadTimeout:       cfg.ReadTimeout,
			// Sends can sit in engine retries for well over a minute.
			WriteTimeout:   cfg.WriteTimeout,
			IdleTimeout:    cfg.IdleTimeout,
			MaxHeaderBytes: 1 << 20,
		},
		Router: router,
	}
}

func (s *Server) Addr() string { return s.http.Addr }

// Run blocks until the server stops. It returns http.ErrServerClosed after Shutdown.
func (s *Server) Run() error {
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
