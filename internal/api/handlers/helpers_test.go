package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"subscribe/internal/config"
	"subscribe/internal/external"
	"subscribe/internal/queue"
	"subscribe/internal/types"
)

// =============================================================================
// Mock Implementations
// =============================================================================

// mockProvider implements external.PaymentProvider with testify/mock.
type mockProvider struct {
	mock.Mock
}

var _ external.PaymentProvider = (*mockProvider)(nil)

func (m *mockProvider) CreateCustomer(ctx context.Context, p external.CustomerParams) (*external.Customer, error) {
	args := m.Called(ctx, p)
	c, _ := args.Get(0).(*external.Customer)
	return c, args.Error(1)
}

func (m *mockProvider) CreateSubscription(ctx context.Context, p external.SubscriptionParams) (*external.Subscription, error) {
	args := m.Called(ctx, p)
	s, _ := args.Get(0).(*external.Subscription)
	return s, args.Error(1)
}

// mockPublisher implements queue.Publisher with testify/mock.
type mockPublisher struct {
	mock.Mock
}

var _ queue.Publisher = (*mockPublisher)(nil)

func (m *mockPublisher) Publish(ctx context.Context, evt queue.SignupEvent) error {
	return m.Called(ctx, evt).Error(0)
}

// recordingOutcomes implements OutcomeRecorder.
type recordingOutcomes struct {
	mu       sync.Mutex
	outcomes []types.SignupOutcome
}

func (r *recordingOutcomes) RecordSignupOutcome(_ context.Context, o types.SignupOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *recordingOutcomes) last() types.SignupOutcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.outcomes) == 0 {
		return ""
	}
	return r.outcomes[len(r.outcomes)-1]
}

// =============================================================================
// Helpers
// =============================================================================

func testConfig() *config.Config {
	return &config.Config{
		Environment: "prod",
		Service:     "subscribe-api",
		Stripe: config.StripeConfig{
			SecretKey: "sk_test_51Habcdefghijklmnop",
		},
		Plans: config.PlanConfig{
			PriceInitiate: "price_initiate_1",
			PriceWarrior:  "price_warrior_1",
			PriceGuardian: "price_guardian_1",
		},
		CORS: config.CORSConfig{
			AllowedOrigin:  "*",
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Accept", "Authorization"},
			MaxAge:         86400,
		},
		Redirect: config.RedirectConfig{BaseURL: "/thank-you.html", Style: config.RedirectStyleQuery},
		Feature:  config.FeatureConfig{CardErrorLocalize: true},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func validBody() map[string]string {
	return map[string]string{
		"stripeToken": "tok_visa_4242424242424242",
		"name":        "Taro Yamada",
		"email":       "taro@example.com",
		"plan":        "warrior",
	}
}

func jsonRequest(t *testing.T, method string, body any) *http.Request {
	t.Helper()
	var r io.Reader = http.NoBody
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, "/api/subscribe", r)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func formRequest(fields map[string]string) *http.Request {
	vals := url.Values{}
	for k, v := range fields {
		vals.Set(k, v)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/subscribe", strings.NewReader(vals.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func serve(h *SubscribeHandler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.Subscribe(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	return env
}

// expectSuccess programs the provider to create one customer and one
// subscription with fixed ids.
func expectSuccess(p *mockProvider) {
	p.On("CreateCustomer", mock.Anything, mock.Anything).
		Return(&external.Customer{ID: "cus_123"}, nil).Once()
	p.On("CreateSubscription", mock.Anything, mock.Anything).
		Return(&external.Subscription{ID: "sub_456", Status: "active"}, nil).Once()
}
