// Package core provides the API chassis for the signup service.
// It creates a chi router that serves both standard HTTP (for local dev)
// and AWS Lambda (via lambdaproxy), and applies the cross-cutting concerns
// (request ids, logging, metrics, tracing, compression, error envelopes)
// before requests reach domain handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"subscribe/internal/config"
)

// RouteRegistrar mounts domain routes on the /api sub-router.
type RouteRegistrar func(r chi.Router)

// Server encapsulates all dependencies for the API, allowing for easy
// injection during testing and distinct configuration for different
// environments.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator
	Metrics   MetricsCollector

	// MetricsHandler, when set, is served at GET /metrics.
	MetricsHandler http.Handler

	HealthProbes    []HealthProbe
	RouteRegistrars []RouteRegistrar

	// anyMethod holds /api routes that accept every request method.
	anyMethod map[string]http.HandlerFunc

	// Internal router
	router *chi.Mux
}

// NewServer validates its inputs and prepares an empty router. The caller
// populates RouteRegistrars, HealthProbes and Metrics, then calls
// MountRoutes.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// HandleAnyMethod mounts h at /api+pattern for every request method,
// including methods chi does not recognize. chi answers those with its
// 405 handler before any sub-router runs, so handleMethodNotAllowed
// forwards them here. Call before MountRoutes.
func (s *Server) HandleAnyMethod(pattern string, h http.HandlerFunc) {
	if s.anyMethod == nil {
		s.anyMethod = make(map[string]http.HandlerFunc)
	}
	s.anyMethod[pattern] = h
}

// Handler returns the http.Handler interface for the router.
// Used by http.Server (local) and lambdaproxy.Adapter (Lambda).
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown releases server resources. The chassis holds no pools or
// connections of its own, so it only records the event.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.InfoContext(ctx, "server shutdown complete")
	return nil
}
