// loader.go implements the configuration loading lifecycle for the signup service.
//
// The loading sequence is:
//  1. Enforce UTC so sale-window arithmetic never depends on host TZ.
//  2. Load .env via godotenv (non-fatal if absent).
//  3. Resolve X_SSM_PARAM pointers into X when APP_ENV != "local".
//  4. Populate Config with envconfig.
//  5. Stamp BuildInfo from linker-injected variables.
//  6. Validate with go-playground/validator, including cross-field CORS rules.
package config

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ConfigError is a diagnostic error type returned by LoadConfig to aid debugging.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

const (
	// ssmParamSuffix marks an env var whose value is an SSM parameter path.
	// STRIPE_SECRET_KEY_SSM_PARAM=/prod/subscribe/stripe_secret_key resolves
	// into STRIPE_SECRET_KEY.
	ssmParamSuffix = "_SSM_PARAM"

	// localEnv is the APP_ENV value that bypasses SSM resolution.
	localEnv = "local"

	ssmResolveTimeout = 30 * time.Second
)

// env abstracts process environment access so tests never touch os state.
type env struct {
	lookup  func(key string) (string, bool)
	set     func(key, value string) error
	environ func() []string
}

func osEnv() env {
	return env{lookup: os.LookupEnv, set: os.Setenv, environ: os.Environ}
}

// LoadConfig loads and validates the service configuration. provider may be
// nil when APP_ENV is "local" or no _SSM_PARAM variables are present.
func LoadConfig(ctx context.Context, provider SecretProvider) (*Config, error) {
	return load(ctx, provider, osEnv())
}

func load(ctx context.Context, provider SecretProvider, e env) (*Config, error) {
	time.Local = time.UTC

	// godotenv never overrides variables already present in the process.
	_ = godotenv.Load()

	if appEnv, _ := e.lookup("APP_ENV"); appEnv != localEnv {
		if err := resolveSecrets(ctx, provider, e); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}
	cfg.Build = NewBuildInfo()

	if err := newValidator().Struct(cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}

	return &cfg, nil
}

// ResolveSecrets runs only the SSM step against the real process
// environment. It is a no-op in local mode.
func ResolveSecrets(ctx context.Context, provider SecretProvider) error {
	if appEnv, _ := os.LookupEnv("APP_ENV"); appEnv == localEnv {
		return nil
	}
	return resolveSecrets(ctx, provider, osEnv())
}

// ssmBindings maps SSM path -> target env var for every pointer whose target
// is still unset (OS env and .env both outrank SSM).
func ssmBindings(e env) map[string]string {
	bindings := make(map[string]string)
	for _, kv := range e.environ() {
		key, path, ok := strings.Cut(kv, "=")
		if !ok || path == "" || !strings.HasSuffix(key, ssmParamSuffix) {
			continue
		}
		target := strings.TrimSuffix(key, ssmParamSuffix)
		if _, set := e.lookup(target); set {
			continue
		}
		bindings[path] = target
	}
	return bindings
}

func resolveSecrets(ctx context.Context, provider SecretProvider, e env) error {
	bindings := ssmBindings(e)
	if len(bindings) == 0 {
		return nil
	}

	paths := make([]string, 0, len(bindings))
	for path := range bindings {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	targets := make([]string, 0, len(paths))
	for _, p := range paths {
		targets = append(targets, bindings[p])
	}

	if provider == nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SecretProvider is required for non-local environments (need to resolve: %s)", strings.Join(targets, ", ")),
		}
	}

	ctx, cancel := context.WithTimeout(ctx, ssmResolveTimeout)
	defer cancel()

	resolved, err := provider.GetParametersBatch(ctx, paths)
	if err != nil {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("failed to resolve SSM parameters for: %s", strings.Join(targets, ", ")),
			Err:     err,
		}
	}

	var missing []string
	for _, path := range paths {
		target := bindings[path]
		value, ok := resolved[path]
		if !ok {
			missing = append(missing, target)
			continue
		}
		if err := e.set(target, value); err != nil {
			return &ConfigError{
				Type:    ErrSSMResolution,
				Message: fmt.Sprintf("failed to set resolved value for %s", target),
				Err:     err,
			}
		}
	}
	if len(missing) > 0 {
		return &ConfigError{
			Type:    ErrSSMResolution,
			Message: fmt.Sprintf("SSM parameters not found for: %s", strings.Join(missing, ", ")),
		}
	}

	return nil
}

// newValidator returns a validator with the service's cross-field rules
// registered.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(validateCORS, CORSConfig{})
	return v
}

// validateCORS rejects a credentialed policy on a wildcard origin; browsers
// refuse that combination and every preflight would fail.
func validateCORS(sl validator.StructLevel) {
	c := sl.Current().Interface().(CORSConfig)
	if c.AllowCredentials && c.AllowedOrigin == "*" {
		sl.ReportError(c.AllowCredentials, "AllowCredentials", "AllowCredentials", "cors_credentials_wildcard", "")
	}
}
