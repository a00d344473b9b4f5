// Package server provides the HTTP API for the holokernel.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hyperjump/holokernel/internal/config"
	"github.com/hyperjump/holokernel/internal/kernel"
	"github.com/hyperjump/holokernel/internal/metrics"
)

// Server is the HTTP server for the holokernel API.
type Server struct {
	kernel  *kernel.Kernel
	config  *config.Config
	logger  *zap.Logger
	limiter *rateLimiter
	server  *http.Server
}

// NewServer creates a server for a booted kernel.
func NewServer(k *kernel.Kernel, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		kernel:  k,
		config:  cfg,
		logger:  logger,
		limiter: newRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(s.observe)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/memories", s.handleListMemories)
		r.Get("/memories/{fingerprint}", s.handleGetMemory)
		r.Get("/entities", s.handleListEntities)
		r.Get("/status", s.handleStatus)
		r.Get("/console", s.handleConsole)
		r.Post("/encode", s.handleEncode)
		r.Post("/recall", s.handleRecall)
		r.Get("/journal/sessions", s.handleListSessions)
		r.Get("/journal/sessions/{id}", s.handleGetSession)
		r.Get("/journal/sessions/{id}/events", s.handleListEvents)

		r.Group(func(r chi.Router) {
			r.Use(s.limiter.middleware)
			r.Post("/memories", s.handleAssociate)
			r.Post("/entities/{kind}/tasks", s.handleDispatch)
			r.Post("/selftest", s.handleSelfTest)
		})
	})
	r.Get("/health", s.handleHealth)
	if s.config.Metrics.Enabled {
		r.Handle(s.config.Metrics.Path, promhttp.Handler())
	}
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// observe records request latency by route pattern and logs each request at debug.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		metrics.HTTPRequestDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(elapsed.Seconds())
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
