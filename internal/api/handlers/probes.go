package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"subscribe/internal/billing"
	"subscribe/internal/config"
	"subscribe/internal/core"
	"subscribe/internal/external"
)

// circuitReporter is implemented by providers that sit behind a breaker.
type circuitReporter interface {
	CircuitOpen() bool
}

// ConfigProbe fails when the signup endpoint would answer every request
// with a configuration or invalid-plan error.
type ConfigProbe struct {
	credentialed bool
	plans        *billing.PlanCatalog
}

var _ core.HealthProbe = (*ConfigProbe)(nil)

// NewConfigProbe snapshots cfg.
func NewConfigProbe(cfg *config.Config) *ConfigProbe {
	return &ConfigProbe{
		credentialed: !cfg.Stripe.SecretKey.IsZero() || cfg.UseStubProvider(),
		plans:        billing.NewPlanCatalog(cfg.Plans.PriceIDs()),
	}
}

func (p *ConfigProbe) Name() string { return "config" }

func (p *ConfigProbe) Check(_ context.Context) error {
	var problems []string
	if !p.credentialed {
		problems = append(problems, "STRIPE_SECRET_KEY not set")
	}
	if missing := p.plans.Unconfigured(); len(missing) > 0 {
		problems = append(problems, "price id missing for: "+strings.Join(missing, ", "))
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// ProviderProbe reports the payment provider's circuit breaker. It never
// calls the provider.
type ProviderProbe struct {
	provider external.PaymentProvider
}

var _ core.HealthProbe = (*ProviderProbe)(nil)

func NewProviderProbe(p external.PaymentProvider) *ProviderProbe {
	return &ProviderProbe{provider: p}
}

func (p *ProviderProbe) Name() string { return "stripe" }

func (p *ProviderProbe) Check(_ context.Context) error {
	if cr, ok := p.provider.(circuitReporter); ok && cr.CircuitOpen() {
		return fmt.Errorf("circuit breaker open")
	}
	return nil
}
