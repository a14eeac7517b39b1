package core

import (
	"net/http"
	"strconv"
	"strings"

	"subscribe/internal/config"
)

// CORSPolicy is the fixed set of cross-origin headers attached to every
// signup response. It is built once at startup and never mutated.
type CORSPolicy struct {
	origin      string
	methods     string
	headers     string
	maxAge      string
	credentials bool
}

// NewCORSPolicy builds a policy from configuration. Credentials are only
// advertised for a fixed origin; config validation rejects the wildcard
// pairing, and the policy drops it as well.
func NewCORSPolicy(cfg config.CORSConfig) *CORSPolicy {
	origin := cfg.AllowedOrigin
	if origin == "" {
		origin = "*"
	}
	p := &CORSPolicy{
		origin:      origin,
		methods:     strings.Join(cfg.AllowedMethods, ", "),
		headers:     strings.Join(cfg.AllowedHeaders, ", "),
		credentials: cfg.AllowCredentials && origin != "*",
	}
	if cfg.MaxAge > 0 {
		p.maxAge = strconv.Itoa(cfg.MaxAge)
	}
	return p
}

// Apply writes the policy's headers onto h.
func (p *CORSPolicy) Apply(h http.Header) {
	h.Set("Access-Control-Allow-Origin", p.origin)
	if p.methods != "" {
		h.Set("Access-Control-Allow-Methods", p.methods)
	}
	if p.headers != "" {
		h.Set("Access-Control-Allow-Headers", p.headers)
	}
	if p.maxAge != "" {
		h.Set("Access-Control-Max-Age", p.maxAge)
	}
	if p.credentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	}
	// A fixed origin makes the response origin-specific for caches.
	if p.origin != "*" {
		h.Add("Vary", "Origin")
	}
	h.Set("Access-Control-Expose-Headers", "X-Request-Id")
}

// Origin returns the configured allowed origin.
func (p *CORSPolicy) Origin() string {
	return p.origin
}
