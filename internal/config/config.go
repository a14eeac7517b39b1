// Package config defines the configuration structure for the subscription
// signup service. Configuration is loaded once at process initialization
// (Lambda cold start or server boot) and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any invalid format causes startup to fail fast. The Stripe secret key is
// deliberately not required here: a missing key is reported per request as a
// server configuration error so the CORS preflight keeps working.
package config

import (
	"time"

	"subscribe/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Plan keys accepted by the signup endpoint.
const (
	PlanInitiate = "initiate"
	PlanWarrior  = "warrior"
	PlanGuardian = "guardian"
)

// Redirect styles for the post-signup landing page.
const (
	RedirectStyleQuery = "query"
	RedirectStylePath  = "path"
)

// Metrics backends.
const (
	MetricsNone       = "none"
	MetricsCloudWatch = "cloudwatch"
	MetricsPrometheus = "prometheus"
)

// Config is the top-level configuration struct for the signup service.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"OTEL_SERVICE_NAME" default:"subscribe-api"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	IsTestMode  bool   `envconfig:"IS_TEST_MODE" default:"false"`

	// Domain Configurations
	Server        ServerConfig
	Stripe        StripeConfig
	Plans         PlanConfig
	Sale          SaleConfig
	CORS          CORSConfig
	Redirect      RedirectConfig
	AWS           AWSConfig
	Observability ObservabilityConfig
	Feature       FeatureConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration for local mode.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8080"`
}

// StripeConfig holds the payment provider credentials and transport settings.
type StripeConfig struct {
	SecretKey  SecretString  `envconfig:"STRIPE_SECRET_KEY"`
	APIBaseURL string        `envconfig:"STRIPE_API_BASE_URL" default:"https://api.stripe.com" validate:"url"`
	Timeout    time.Duration `envconfig:"STRIPE_TIMEOUT" default:"20s" validate:"gt=0"`
}

// PlanConfig maps plan keys to Stripe price identifiers.
type PlanConfig struct {
	PriceInitiate string `envconfig:"PRICE_ID_INITIATE"`
	PriceWarrior  string `envconfig:"PRICE_ID_WARRIOR"`
	PriceGuardian string `envconfig:"PRICE_ID_GUARDIAN"`
}

// PriceIDs returns the plan key to price id mapping. Keys with an empty
// price id are included so callers can tell "unknown plan" from
// "plan not configured" when they need to.
func (p PlanConfig) PriceIDs() map[string]string {
	return map[string]string{
		PlanInitiate: p.PriceInitiate,
		PlanWarrior:  p.PriceWarrior,
		PlanGuardian: p.PriceGuardian,
	}
}

// SaleConfig holds the optional sale opening instant.
type SaleConfig struct {
	StartTime string `envconfig:"SALE_START_TIME" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// Start returns the parsed sale start time and whether the gate is enabled.
func (s SaleConfig) Start() (time.Time, bool) {
	if s.StartTime == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s.StartTime)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// CORSConfig holds the cross-origin policy applied to the signup endpoint.
type CORSConfig struct {
	AllowedOrigin    string   `envconfig:"CORS_ALLOWED_ORIGIN" default:"*" validate:"required"`
	AllowCredentials bool     `envconfig:"CORS_ALLOW_CREDENTIALS" default:"false"`
	AllowedMethods   []string `envconfig:"CORS_ALLOWED_METHODS" default:"GET,POST,OPTIONS"`
	AllowedHeaders   []string `envconfig:"CORS_ALLOWED_HEADERS" default:"Content-Type,Accept,Authorization"`
	MaxAge           int      `envconfig:"CORS_MAX_AGE" default:"86400" validate:"gte=0"`
}

// RedirectConfig controls the redirect_url returned after a successful signup.
type RedirectConfig struct {
	BaseURL string `envconfig:"REDIRECT_BASE_URL" default:"/thank-you.html" validate:"required"`
	Style   string `envconfig:"REDIRECT_STYLE" default:"query" validate:"oneof=query path"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// Optional; empty disables signup event publishing.
	SignupEventsQueue string `envconfig:"SQS_SIGNUP_EVENTS" validate:"omitempty,url"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// ObservabilityConfig holds telemetry and monitoring settings.
type ObservabilityConfig struct {
	MetricsBackend  string `envconfig:"METRICS_BACKEND" default:"none" validate:"oneof=none cloudwatch prometheus"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"SubscribeAPI"`
	EnableTracing   bool   `envconfig:"ENABLE_TRACING" default:"false"`
}

// FeatureConfig holds switches for optional behavior.
type FeatureConfig struct {
	// CardErrorLocalize replaces provider card error messages with the
	// localized table where a translation exists.
	CardErrorLocalize bool `envconfig:"CARD_ERROR_LOCALIZE" default:"true"`
	// DiagnosticsEnabled exposes GET /api/test. Nil means "default for the
	// environment" (on everywhere except prod).
	DiagnosticsEnabled *bool `envconfig:"DIAGNOSTICS_ENABLED"`
}

// Diagnostics reports whether the diagnostics endpoint should be mounted.
func (c *Config) Diagnostics() bool {
	if c.Feature.DiagnosticsEnabled != nil {
		return *c.Feature.DiagnosticsEnabled
	}
	return c.Environment != "prod"
}

// UseStubProvider reports whether the in-process payment provider stub
// should replace Stripe.
func (c *Config) UseStubProvider() bool {
	return c.IsTestMode || c.Environment == "local"
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrMissingEnv indicates a required environment variable was not found.
	ErrMissingEnv ConfigErrorType = "MISSING_ENV"
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
