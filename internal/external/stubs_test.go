package external

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStubPaymentProvider_Success(t *testing.T) {
	stub := NewStubPaymentProvider(discardLogger())

	cust, err := stub.CreateCustomer(context.Background(), CustomerParams{Email: "a@b.c", Source: "tok_visa"})
	require.NoError(t, err)
	sub, err := stub.CreateSubscription(context.Background(), SubscriptionParams{CustomerID: cust.ID, PriceID: "price_1"})
	require.NoError(t, err)

	assert.Regexp(t, `^cus_stub_\d{6}$`, cust.ID)
	assert.Regexp(t, `^sub_stub_\d{6}$`, sub.ID)
	assert.Equal(t, "active", sub.Status)

	again, err := stub.CreateCustomer(context.Background(), CustomerParams{Email: "a@b.c", Source: "tok_visa"})
	require.NoError(t, err)
	assert.NotEqual(t, cust.ID, again.ID, "each call creates a new customer")
	assert.False(t, stub.CircuitOpen())
}

func TestStubPaymentProvider_MagicTokens(t *testing.T) {
	tests := []struct {
		token    string
		wantCard bool
		wantCode string
	}{
		{StubTokenDeclined, true, "card_declined"},
		{StubTokenExpiredCard, true, "expired_card"},
		{StubTokenProcessingError, true, "processing_error"},
		{StubTokenAPIError, false, ""},
	}

	stub := NewStubPaymentProvider(discardLogger())
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			_, err := stub.CreateCustomer(context.Background(), CustomerParams{Source: tt.token})

			var pe *ProviderError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.wantCard, pe.IsCardError())
			assert.Equal(t, tt.wantCode, pe.Code)
			assert.NotEmpty(t, pe.Message)
		})
	}
}
