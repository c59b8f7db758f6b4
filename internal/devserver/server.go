// Package devserver is a compact reference implementation of the jam
// server: the REST mutation API and the broadcast channel the client
// synchronizes against. It exists so the client can run end to end
// locally; it is not production software.
package devserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/jamqueueapp/jamqueue-client/internal/config"
	"github.com/jamqueueapp/jamqueue-client/internal/logger"
	"github.com/jamqueueapp/jamqueue-client/internal/ratelimit"
	"github.com/jamqueueapp/jamqueue-client/internal/response"
)

const (
	rateLimitRPS   = 25
	rateLimitBurst = 50
)

// Server bundles the HTTP API, the broadcast hub, and the store.
type Server struct {
	cfg     *config.Config
	log     *logger.Logger
	store   *Store
	hub     *Hub
	limiter *ratelimit.KeyedRateLimiter
	http    *http.Server
}

// New wires a server around an open store.
func New(cfg *config.Config, store *Store, log *logger.Logger) *Server {
	if log == nil {
		log = logger.New(logger.Config{})
	}
	s := &Server{
		cfg:     cfg,
		log:     log.Named("devserver"),
		store:   store,
		hub:     NewHub(log),
		limiter: ratelimit.New(rateLimitRPS, rateLimitBurst),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/ws", s.hub.HandleWS)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Get("/health", s.handleHealth)

		r.Post("/jams", s.handleCreateJam)
		r.Get("/jams/{jamID}", s.handleGetJam)
		r.Post("/jams/{jamID}/songs", s.handleAddSong)
		r.Post("/jams/{jamID}/songs/{entryID}/vote", s.handleVote)
		r.Post("/jams/{jamID}/songs/{entryID}/played", s.handleSetPlayed)
		r.Delete("/jams/{jamID}/songs/{entryID}", s.handleRemoveSong)
		r.Post("/jams/{jamID}/songs/{entryID}/captains", s.handleAddCaptain)
		r.Post("/jams/{jamID}/songs/{entryID}/captains/remove", s.handleRemoveCaptain)

		r.Post("/songs", s.handleCreateSong)
		r.Get("/songs", s.handleListSongs)
		r.Put("/songs/{songID}", s.handleEditSong)
	})

	s.http = &http.Server{
		Addr:         ":" + cfg.Dev.Port,
		Handler:      r,
		ReadTimeout:  cfg.Dev.ReadTimeout,
		WriteTimeout: cfg.Dev.WriteTimeout,
		IdleTimeout:  cfg.Dev.IdleTimeout,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Hub exposes the broadcast hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start serves until the context is canceled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s.hub.Close()
	s.limiter.Stop()
	err := s.http.Shutdown(shutdownCtx)
	s.log.Info("stopped")
	return err
}

// rateLimit rejects clients that exceed the per-address rate.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !s.limiter.Allow(host) {
			response.TooManyRequests(w, "slow down", s.log.Logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}
