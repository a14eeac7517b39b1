package handlers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subscribe/internal/external"
)

// breakerProvider is a provider that reports a fixed breaker state.
type breakerProvider struct {
	mockProvider
	open bool
}

func (b *breakerProvider) CircuitOpen() bool { return b.open }

func TestConfigProbe(t *testing.T) {
	t.Run("fully configured", func(t *testing.T) {
		p := NewConfigProbe(testConfig())
		assert.Equal(t, "config", p.Name())
		assert.NoError(t, p.Check(context.Background()))
	})

	t.Run("missing key", func(t *testing.T) {
		cfg := testConfig()
		cfg.Stripe.SecretKey = ""
		err := NewConfigProbe(cfg).Check(context.Background())
		require.Error(t, err)
		assert.Equal(t, "STRIPE_SECRET_KEY not set", err.Error())
	})

	t.Run("missing key tolerated by stub", func(t *testing.T) {
		cfg := testConfig()
		cfg.Stripe.SecretKey = ""
		cfg.Environment = "local"
		assert.NoError(t, NewConfigProbe(cfg).Check(context.Background()))
	})

	t.Run("missing prices and key", func(t *testing.T) {
		cfg := testConfig()
		cfg.Stripe.SecretKey = ""
		cfg.Plans.PriceInitiate = ""
		cfg.Plans.PriceGuardian = ""
		err := NewConfigProbe(cfg).Check(context.Background())
		require.Error(t, err)
		assert.Equal(t, "STRIPE_SECRET_KEY not set; price id missing for: guardian, initiate", err.Error())
	})
}

func TestProviderProbe(t *testing.T) {
	t.Run("closed breaker", func(t *testing.T) {
		p := NewProviderProbe(&breakerProvider{})
		assert.Equal(t, "stripe", p.Name())
		assert.NoError(t, p.Check(context.Background()))
	})

	t.Run("open breaker", func(t *testing.T) {
		err := NewProviderProbe(&breakerProvider{open: true}).Check(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "circuit breaker open")
	})

	t.Run("provider without breaker", func(t *testing.T) {
		assert.NoError(t, NewProviderProbe(&mockProvider{}).Check(context.Background()))
	})

	t.Run("stub provider", func(t *testing.T) {
		assert.NoError(t, NewProviderProbe(external.NewStubPaymentProvider(discardLogger())).Check(context.Background()))
	})
}
