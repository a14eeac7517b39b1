package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v82"

	"subscribe/internal/types"
)

// stripeAPIBase is the default Stripe API base URL.
const stripeAPIBase = "https://api.stripe.com"

const stripeUserAgent = "subscribe-api/1.0"

// StripeClientConfig holds the configuration for creating a StripeClient.
type StripeClientConfig struct {
	SecretKey types.SecretString
	BaseURL   string // defaults to stripeAPIBase
	Logger    *slog.Logger
}

// StripeClient implements PaymentProvider against the Stripe REST API with
// form-encoded requests sent through BaseClient. Calls are never retried.
type StripeClient struct {
	base      *BaseClient
	secretKey types.SecretString
	baseURL   string
	logger    *slog.Logger
}

// NewStripeClient creates a StripeClient. httpClient's Timeout bounds each
// provider call.
func NewStripeClient(httpClient *http.Client, cfg StripeClientConfig, opts ...BaseClientOption) *StripeClient {
	base := NewBaseClient(httpClient, "stripe", NoRetries, stripeUserAgent, opts...)
	return NewStripeClientWithBase(base, cfg)
}

// NewStripeClientWithBase creates a StripeClient over a pre-built BaseClient.
func NewStripeClientWithBase(base *BaseClient, cfg StripeClientConfig) *StripeClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = stripeAPIBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &StripeClient{
		base:      base,
		secretKey: cfg.SecretKey,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		logger:    logger,
	}
}

// CircuitOpen reports whether the Stripe breaker is currently rejecting calls.
func (s *StripeClient) CircuitOpen() bool {
	return s.base.BreakerState() == gobreaker.StateOpen
}

// CreateCustomer creates a customer with the card token attached as its
// default source.
func (s *StripeClient) CreateCustomer(ctx context.Context, p CustomerParams) (*Customer, error) {
	form := url.Values{}
	form.Set("email", p.Email)
	form.Set("name", p.Name)
	form.Set("source", p.Source)
	setMetadata(form, p.Metadata)

	var out stripeCustomer
	if err := s.post(ctx, "CreateCustomer", "/v1/customers", form, &out); err != nil {
		return nil, err
	}
	return &Customer{ID: out.ID}, nil
}

// CreateSubscription subscribes the customer to a single price.
func (s *StripeClient) CreateSubscription(ctx context.Context, p SubscriptionParams) (*Subscription, error) {
	form := url.Values{}
	form.Set("customer", p.CustomerID)
	form.Set("items[0][price]", p.PriceID)
	setMetadata(form, p.Metadata)

	var out stripeSubscription
	if err := s.post(ctx, "CreateSubscription", "/v1/subscriptions", form, &out); err != nil {
		return nil, err
	}
	return &Subscription{ID: out.ID, Status: out.Status}, nil
}

// setMetadata writes metadata in Stripe's bracket notation, sorted for a
// deterministic body.
func setMetadata(form url.Values, md map[string]string) {
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		form.Set("metadata["+k+"]", md[k])
	}
}

// ---------------------------------------------------------------------------
// HTTP Helpers
// ---------------------------------------------------------------------------

// post sends an authenticated form POST and decodes a 2xx body into out.
func (s *StripeClient) post(ctx context.Context, op, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, op+": building request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+s.secretKey.Unmask())
	req.Header.Set("Stripe-Version", stripe.APIVersion)

	resp, err := s.base.Do(req)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		// A 429/5xx that still carries Stripe's error JSON surfaces as a
		// ProviderError so its message reaches the buyer.
		if resp != nil {
			if pe, ok := s.decodeErrorResponse(resp, op); ok {
				return pe
			}
		}
		return s.wrapTransportError(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return s.handleErrorResponse(resp, op)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamStripe, op+": decoding Stripe response", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Error Handling
// ---------------------------------------------------------------------------

// stripeErrorResponse is the JSON error body returned by the Stripe API.
type stripeErrorResponse struct {
	Error stripeErrorBody `json:"error"`
}

type stripeErrorBody struct {
	Type        string `json:"type"`
	Code        string `json:"code"`
	DeclineCode string `json:"decline_code"`
	Message     string `json:"message"`
	Param       string `json:"param"`
	DocURL      string `json:"doc_url"`
}

// handleErrorResponse converts a non-2xx Stripe reply into a *ProviderError.
// An unreadable or non-JSON body still yields an api_error so the caller
// sees a single error shape for anything Stripe rejected.
func (s *StripeClient) handleErrorResponse(resp *http.Response, op string) error {
	pe, _ := s.decodeErrorResponse(resp, op)
	return pe
}

// decodeErrorResponse reads Stripe's error JSON. ok is false when the body
// is unreadable or carries no error object; pe then holds only the status.
func (s *StripeClient) decodeErrorResponse(resp *http.Response, op string) (pe *ProviderError, ok bool) {
	pe = &ProviderError{
		Type:       string(stripe.ErrorTypeAPI),
		HTTPStatus: resp.StatusCode,
		RequestID:  resp.Header.Get("Request-Id"),
		Operation:  op,
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		s.logger.Warn("unreadable Stripe error body", "operation", op, "status", resp.StatusCode, "error", err)
		return pe, false
	}

	var parsed stripeErrorResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Error.Type == "" {
		s.logger.Warn("non-JSON Stripe error body", "operation", op, "status", resp.StatusCode)
		return pe, false
	}

	e := parsed.Error
	pe.Type = e.Type
	pe.Code = e.Code
	pe.DeclineCode = e.DeclineCode
	pe.Message = e.Message
	pe.Param = e.Param
	return pe, true
}

// wrapTransportError keeps BaseClient's AppError codes and labels the
// operation that failed.
func (s *StripeClient) wrapTransportError(op string, err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr.WithDetails(map[string]any{"operation": op})
	}
	return types.NewAppError(types.ErrCodeUpstreamStripe, fmt.Sprintf("%s: Stripe request failed", op), err)
}

// ---------------------------------------------------------------------------
// Stripe Response Types
// ---------------------------------------------------------------------------

type stripeCustomer struct {
	ID string `json:"id"`
}

type stripeSubscription struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}
