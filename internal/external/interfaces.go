package external

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v82"
)

// PaymentProvider creates the billing objects behind a signup. Neither call
// is idempotent: each invocation creates a new object at the provider.
type PaymentProvider interface {
	CreateCustomer(ctx context.Context, params CustomerParams) (*Customer, error)
	CreateSubscription(ctx context.Context, params SubscriptionParams) (*Subscription, error)
}

// CustomerParams describes the customer to create. Source is the
// tokenized card from the browser.
type CustomerParams struct {
	Email    string
	Name     string
	Source   string
	Metadata map[string]string
}

// SubscriptionParams describes a single-item recurring subscription.
type SubscriptionParams struct {
	CustomerID string
	PriceID    string
	Metadata   map[string]string
}

// Customer is the provider's customer record.
type Customer struct {
	ID string
}

// Subscription is the provider's subscription record.
type Subscription struct {
	ID     string
	Status string
}

// ProviderError is an error reported by the payment provider itself, as
// opposed to a transport failure.
type ProviderError struct {
	Type        string
	Code        string
	DeclineCode string
	Message     string
	Param       string
	RequestID   string
	HTTPStatus  int
	Operation   string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: stripe %s (%s, status %d): %s", e.Operation, e.Type, e.Code, e.HTTPStatus, e.Message)
	}
	return fmt.Sprintf("%s: stripe %s (status %d): %s", e.Operation, e.Type, e.HTTPStatus, e.Message)
}

// IsCardError reports whether the card itself was the problem.
func (e *ProviderError) IsCardError() bool {
	return e.Type == string(stripe.ErrorTypeCard)
}
