package core

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"subscribe/internal/types"
)

// defaultRequestTimeout is the soft deadline applied to request contexts.
// It sits above the Stripe client timeout so two sequential provider calls
// can finish.
const defaultRequestTimeout = 55 * time.Second

// defaultRedactedHeaders lists header names whose values are masked in request
// logs to prevent accidental leakage of credentials or session tokens.
var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
	"X-CSRF-Token",
}

// MountRoutes registers the global middleware chain, the /api group and
// the top-level operational routes.
func (s *Server) MountRoutes() {
	s.registerGlobalMiddleware()

	s.router.NotFound(s.handleNotFound)
	s.router.MethodNotAllowed(s.handleMethodNotAllowed)

	s.router.Route("/api", s.mountAPI)

	s.router.Get("/health", s.HandleHealth)
	if s.MetricsHandler != nil {
		s.router.Method(http.MethodGet, "/metrics", s.MetricsHandler)
	}
}

// registerGlobalMiddleware applies middleware in strict order.
//
//  1. Recoverer        - Catches panics; outermost to catch all failures.
//  2. ContextTimeout   - Soft deadline on the request context.
//  3. RequestID        - Correlation id in context and response header.
//  4. SecurityHeaders  - Present on every response, errors included.
//  5. Tracing          - Server span per request (when enabled).
//  6. RequestLogger    - Structured logging (redacted headers).
//  7. Metrics          - Request latency and count recording.
//  8. Compress         - gzip for clients that accept it.
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(defaultRequestTimeout))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(s.SecurityHeadersMiddleware)
	if s.Config.Observability.EnableTracing {
		s.router.Use(TracingMiddleware(s.Config.Service))
	}
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
	s.router.Use(s.MetricsMiddleware)
	s.router.Use(CompressMiddleware)
}

// mountAPI runs the registrars populated by the entry point. The
// indirection keeps core free of handler imports.
func (s *Server) mountAPI(r chi.Router) {
	for _, registrar := range s.RouteRegistrars {
		registrar(r)
	}
	for pattern, h := range s.anyMethod {
		r.HandleFunc(pattern, h)
	}
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	Error(w, r, types.NewAppError(types.ErrCodeNotFoundRoute, "Not Found", nil))
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	if rest, ok := strings.CutPrefix(r.URL.Path, "/api"); ok {
		if h, found := s.anyMethod[rest]; found {
			h(w, r)
			return
		}
	}
	Error(w, r, types.NewAppError(types.ErrCodeMethodNotAllowed, "Method Not Allowed", nil))
}

// ContextTimeoutMiddleware sets a deadline on the request context.
func ContextTimeoutMiddleware(duration time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), duration)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
