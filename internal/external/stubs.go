package external

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/stripe/stripe-go/v82"

	"subscribe/internal/types"
)

// Magic tokens understood by StubPaymentProvider. The card tokens mirror
// Stripe's own test tokens so the same frontend fixtures work against both.
const (
	StubTokenDeclined        = "tok_chargeDeclined"
	StubTokenExpiredCard     = "tok_chargeDeclinedExpiredCard"
	StubTokenProcessingError = "tok_chargeDeclinedProcessingError"
	StubTokenAPIError        = "tok_apiError"
)

// StubPaymentProvider implements PaymentProvider without network access.
// It is wired when APP_ENV=local or IS_TEST_MODE=true.
type StubPaymentProvider struct {
	logger *slog.Logger
	seq    atomic.Uint64
}

// NewStubPaymentProvider creates a new StubPaymentProvider.
func NewStubPaymentProvider(logger *slog.Logger) *StubPaymentProvider {
	return &StubPaymentProvider{logger: logger}
}

func (s *StubPaymentProvider) CreateCustomer(ctx context.Context, p CustomerParams) (*Customer, error) {
	s.logger.InfoContext(ctx, "stub: CreateCustomer called",
		"email", types.RedactEmail(p.Email),
		"source", types.RedactToken(p.Source),
		"plan", p.Metadata["plan"],
	)

	if err := stubTokenError(p.Source); err != nil {
		return nil, err
	}
	return &Customer{ID: fmt.Sprintf("cus_stub_%06d", s.seq.Add(1))}, nil
}

func (s *StubPaymentProvider) CreateSubscription(ctx context.Context, p SubscriptionParams) (*Subscription, error) {
	s.logger.InfoContext(ctx, "stub: CreateSubscription called",
		"customer_id", p.CustomerID,
		"price_id", p.PriceID,
	)
	return &Subscription{ID: fmt.Sprintf("sub_stub_%06d", s.seq.Add(1)), Status: "active"}, nil
}

// CircuitOpen always reports closed; the stub has no breaker.
func (s *StubPaymentProvider) CircuitOpen() bool {
	return false
}

func stubTokenError(token string) error {
	card := func(code stripe.ErrorCode, decline, msg string) error {
		return &ProviderError{
			Type:        string(stripe.ErrorTypeCard),
			Code:        string(code),
			DeclineCode: decline,
			Message:     msg,
			Param:       "source",
			HTTPStatus:  http.StatusPaymentRequired,
			Operation:   "CreateCustomer",
		}
	}

	switch token {
	case StubTokenDeclined:
		return card(stripe.ErrorCodeCardDeclined, "generic_decline", "Your card was declined.")
	case StubTokenExpiredCard:
		return card(stripe.ErrorCodeExpiredCard, "", "Your card has expired.")
	case StubTokenProcessingError:
		return card(stripe.ErrorCodeProcessingError, "", "An error occurred while processing your card. Try again in a little bit.")
	case StubTokenAPIError:
		return &ProviderError{
			Type:       string(stripe.ErrorTypeAPI),
			Message:    "An unknown error occurred",
			HTTPStatus: http.StatusInternalServerError,
			Operation:  "CreateCustomer",
		}
	}
	return nil
}

var (
	_ PaymentProvider = (*StubPaymentProvider)(nil)
	_ PaymentProvider = (*StripeClient)(nil)
)
