package external

import (
	"log/slog"
	"net/http"

	"subscribe/internal/config"
)

// ClientRegistry holds the external clients the service talks to.
type ClientRegistry struct {
	Payments PaymentProvider
	// Stub is true when Payments never leaves the process.
	Stub bool
}

// RegistryOption is a functional option for configuring a ClientRegistry.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	httpClient  *http.Client
	baseOptions []BaseClientOption
}

// WithHTTPClient overrides the HTTP client used for Stripe (tests).
func WithHTTPClient(c *http.Client) RegistryOption {
	return func(rc *registryConfig) {
		rc.httpClient = c
	}
}

// WithBaseClientOptions forwards options to the Stripe BaseClient.
func WithBaseClientOptions(opts ...BaseClientOption) RegistryOption {
	return func(rc *registryConfig) {
		rc.baseOptions = append(rc.baseOptions, opts...)
	}
}

// NewClientRegistry wires the payment provider. Local and test-mode
// processes get StubPaymentProvider; everything else talks to Stripe with
// the configured timeout.
func NewClientRegistry(cfg *config.Config, logger *slog.Logger, opts ...RegistryOption) *ClientRegistry {
	if logger == nil {
		logger = slog.Default()
	}

	rc := &registryConfig{}
	for _, opt := range opts {
		opt(rc)
	}

	if cfg.UseStubProvider() {
		logger.Info("initializing payment provider in STUB mode",
			"is_test_mode", cfg.IsTestMode,
			"environment", cfg.Environment,
		)
		return &ClientRegistry{
			Payments: NewStubPaymentProvider(logger.With("mode", "stub")),
			Stub:     true,
		}
	}

	httpClient := rc.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Stripe.Timeout}
	}

	logger.Info("initializing payment provider",
		"environment", cfg.Environment,
		"stripe_key_mode", cfg.Stripe.SecretKey.StripeKeyMode(),
		"timeout", cfg.Stripe.Timeout,
	)
	return &ClientRegistry{
		Payments: NewStripeClient(httpClient, StripeClientConfig{
			SecretKey: cfg.Stripe.SecretKey,
			BaseURL:   cfg.Stripe.APIBaseURL,
			Logger:    logger.With("client", "stripe"),
		}, rc.baseOptions...),
	}
}
