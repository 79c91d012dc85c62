// Package server exposes the pricing engines over a small JSON API.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"option-pricer/internal/config"
	"option-pricer/internal/logging"
	"option-pricer/internal/performance"
	"option-pricer/internal/store"
)

// Server hosts the HTTP API. The store is optional; journal endpoints
// respond 503 without one.
type Server struct {
	cfg     *config.Config
	logger  zerolog.Logger
	store   store.Store
	limiter *performance.RateLimiter
}

// NewServer creates the API server.
func NewServer(cfg *config.Config, logger zerolog.Logger, st store.Store) *Server {
	s := &Server{
		cfg:    cfg,
		logger: logger,
		store:  st,
	}
	if cfg.Server.RateLimit > 0 {
		s.limiter = performance.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	}
	return s
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.Use(s.rateLimit)

	r.HandleFunc("/api/v1/price", s.handlePrice).Methods("POST")
	r.HandleFunc("/api/v1/greeks", s.handleGreeks).Methods("POST")
	r.HandleFunc("/api/v1/methods", s.handleMethods).Methods("GET")
	r.HandleFunc("/api/v1/valuations", s.handleValuations).Methods("GET")
	r.HandleFunc("/api/v1/valuations/{id}", s.handleValuationByID).Methods("GET")
	r.HandleFunc("/api/v1/healthz", s.handleHealth).Methods("GET")

	// Unversioned alias for load balancer probes.
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")

	return r
}

// ListenAndServe runs the server until the context is cancelled, then
// shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Server.Addr,
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	s.logger.Info().Str("addr", s.cfg.Server.Addr).Msg("API server listening")

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		s.logger.Info().Msg("Shutting down API server")
		return srv.Shutdown(shutdownCtx)
	}
}

// statusRecorder captures the response status for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		reqLogger := logging.WithOperation(s.logger, r.Method+" "+r.URL.Path)
		next.ServeHTTP(rec, r.WithContext(logging.WithLogger(r.Context(), reqLogger)))
		logging.LogRequest(s.logger, r.Method, r.URL.Path, rec.status, time.Since(start))
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
