package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v82"
)

// defaultStripeAPIBase is where the secret key probe is sent.
const defaultStripeAPIBase = "https://api.stripe.com"

// ValidationResult is a pass/fail signal plus a message for the operator.
type ValidationResult struct {
	Valid   bool
	Message string
}

// HTTPClient is the interface used by validators that make outbound calls.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Validator holds what the input checks need.
type Validator struct {
	httpClient HTTPClient
	stripeBase string
	now        func() time.Time
}

// NewValidator creates a Validator with a 10 second HTTP client.
func NewValidator(stripeBase string) *Validator {
	return NewValidatorWithDeps(&http.Client{Timeout: 10 * time.Second}, stripeBase, time.Now)
}

// NewValidatorWithDeps creates a Validator with injected dependencies.
func NewValidatorWithDeps(httpClient HTTPClient, stripeBase string, now func() time.Time) *Validator {
	if stripeBase == "" {
		stripeBase = defaultStripeAPIBase
	}
	return &Validator{
		httpClient: httpClient,
		stripeBase: strings.TrimRight(stripeBase, "/"),
		now:        now,
	}
}

const validateTimeout = 15 * time.Second

var (
	stripeKeyRegex = regexp.MustCompile(`^(sk|rk)_(test|live)_[0-9a-zA-Z]{24,}$`)
	priceIDRegex   = regexp.MustCompile(`^price_[0-9a-zA-Z]{8,}$`)
)

// ValidateStripeKey checks the key format, then calls GET /v1/account to
// confirm the key is accepted.
func (v *Validator) ValidateStripeKey(ctx context.Context, key string) ValidationResult {
	key = strings.TrimSpace(key)
	if key == "" {
		return ValidationResult{Valid: false, Message: "Stripe secret key must not be empty"}
	}
	if !stripeKeyRegex.MatchString(key) {
		return ValidationResult{
			Valid:   false,
			Message: "Stripe key must match format (sk|rk)_(test|live)_[alphanumeric 24+ chars]",
		}
	}

	probeCtx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, v.stripeBase+"/v1/account", nil)
	if err != nil {
		return ValidationResult{Valid: false, Message: fmt.Sprintf("failed to create request: %v", err)}
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Stripe-Version", stripe.APIVersion)
	req.Header.Set("User-Agent", "Subscribe-Bootstrap/1.0")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return ValidationResult{Valid: false, Message: fmt.Sprintf("Stripe API probe failed: %v", err)}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode == http.StatusUnauthorized {
		return ValidationResult{Valid: false, Message: "Stripe API returned 401 Unauthorized: key is invalid or revoked"}
	}
	if resp.StatusCode != http.StatusOK {
		return ValidationResult{
			Valid:   false,
			Message: fmt.Sprintf("Stripe API returned HTTP %d: %s", resp.StatusCode, truncateBody(body, 200)),
		}
	}

	var account struct {
		ID              string `json:"id"`
		BusinessProfile struct {
			Name string `json:"name"`
		} `json:"business_profile"`
	}
	displayInfo := ""
	if err := json.Unmarshal(body, &account); err == nil {
		if account.BusinessProfile.Name != "" {
			displayInfo = fmt.Sprintf(" (account: %s, name: %s)", account.ID, account.BusinessProfile.Name)
		} else if account.ID != "" {
			displayInfo = fmt.Sprintf(" (account: %s)", account.ID)
		}
	}

	mode := "test"
	if strings.Contains(key, "_live_") {
		mode = "live"
	}

	return ValidationResult{
		Valid:   true,
		Message: fmt.Sprintf("Stripe key verified [%s mode]%s", mode, displayInfo),
	}
}

// ValidatePriceID checks the price_ prefix and shape. Existence is not
// probed; a wrong id surfaces as invalid_request_error on first signup.
func (v *Validator) ValidatePriceID(_ context.Context, id string) ValidationResult {
	id = strings.TrimSpace(id)
	if !priceIDRegex.MatchString(id) {
		return ValidationResult{Valid: false, Message: "price id must look like price_XXXXXXXX"}
	}
	return ValidationResult{Valid: true, Message: "price id format OK"}
}

// ValidateSaleStart accepts an RFC 3339 instant. A past instant is allowed
// (the gate is then simply open) but called out.
func (v *Validator) ValidateSaleStart(_ context.Context, raw string) ValidationResult {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return ValidationResult{Valid: false, Message: fmt.Sprintf("not an RFC 3339 timestamp: %v", err)}
	}
	utc := t.UTC().Format(time.RFC3339)
	if !t.After(v.now()) {
		return ValidationResult{Valid: true, Message: fmt.Sprintf("sale start %s is in the past; the gate will be open", utc)}
	}
	return ValidationResult{Valid: true, Message: fmt.Sprintf("sale opens at %s", utc)}
}

// ValidateRedirectURL accepts an absolute http(s) URL or a site-relative
// path.
func (v *Validator) ValidateRedirectURL(_ context.Context, raw string) ValidationResult {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") {
		return ValidationResult{Valid: true, Message: "site-relative path"}
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return ValidationResult{Valid: false, Message: "must be an absolute http(s) URL or a path starting with /"}
	}
	if u.Scheme == "http" {
		return ValidationResult{Valid: true, Message: "absolute URL (plain http)"}
	}
	return ValidationResult{Valid: true, Message: "absolute URL"}
}

func truncateBody(body []byte, n int) string {
	s := string(body)
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
