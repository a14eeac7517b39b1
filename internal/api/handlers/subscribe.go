// Package handlers contains the HTTP handlers for the signup API.
//
// subscribe.go implements the signup pipeline: CORS headers, preflight,
// method gate, sale-time gate, field presence, provider credential, plan
// lookup, then customer and subscription creation at the payment provider.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"subscribe/internal/billing"
	"subscribe/internal/config"
	"subscribe/internal/core"
	"subscribe/internal/external"
	"subscribe/internal/queue"
	"subscribe/internal/types"
)

// anonymousName is sent to the provider when the buyer leaves name blank.
const anonymousName = "名無し"

// publishTimeout bounds the best-effort signup event publish.
const publishTimeout = 3 * time.Second

// saleTimeLayout renders instants with milliseconds and a Z suffix.
const saleTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// OutcomeRecorder receives the terminal stage of every signup attempt.
// telemetry.Collector satisfies it.
type OutcomeRecorder interface {
	RecordSignupOutcome(ctx context.Context, outcome types.SignupOutcome)
}

// --- Request/Response Models ---

// SubscriptionRequest is the body of POST /api/subscribe, sent either as
// JSON or as a URL-encoded form.
type SubscriptionRequest struct {
	StripeToken string `json:"stripeToken" validate:"required"`
	Name        string `json:"name"`
	Email       string `json:"email" validate:"required"`
	Plan        string `json:"plan" validate:"required"`
}

// Envelope is the response body for every pipeline outcome. Only the
// constructors below build one, so a success payload never travels with an
// error status and vice versa.
type Envelope struct {
	Status         string     `json:"status"`
	SubscriptionID string     `json:"subscription_id,omitempty"`
	CustomerID     string     `json:"customer_id,omitempty"`
	RedirectURL    string     `json:"redirect_url,omitempty"`
	ErrorType      string     `json:"error_type,omitempty"`
	ErrorCode      string     `json:"error_code,omitempty"`
	Message        string     `json:"message,omitempty"`
	Debug          *SaleDebug `json:"debug,omitempty"`
}

// SaleDebug tells the frontend how long until the sale opens.
type SaleDebug struct {
	CurrentTimeUTC        string `json:"current_time_utc"`
	SaleStartTimeUTC      string `json:"sale_start_time_utc"`
	TimeUntilStartSeconds int64  `json:"time_until_start_seconds"`
}

const (
	errorTypeCard = "card_error"
	errorTypeAPI  = "api_error"
)

// reply pairs an HTTP status with its envelope. code is the internal
// classification; it is logged, never sent.
type reply struct {
	status int
	code   types.ErrorCode
	body   Envelope
}

func successReply(sub *external.Subscription, cus *external.Customer, redirectURL string) reply {
	return reply{status: http.StatusOK, body: Envelope{
		Status:         "success",
		SubscriptionID: sub.ID,
		CustomerID:     cus.ID,
		RedirectURL:    redirectURL,
	}}
}

// errorReply builds an error envelope whose status comes from code, so the
// status class always agrees with the envelope.
func errorReply(code types.ErrorCode, message string) reply {
	return reply{
		status: code.HTTPStatus(),
		code:   code,
		body:   Envelope{Status: "error", Message: message},
	}
}

func cardErrorReply(providerCode, message string) reply {
	r := errorReply(types.ErrCodePaymentCardError, message)
	r.body.ErrorType = errorTypeCard
	r.body.ErrorCode = providerCode
	return r
}

// apiErrorReply is always a 500, whatever code classified the failure.
func apiErrorReply(code types.ErrorCode, message string) reply {
	r := errorReply(code, message)
	r.status = http.StatusInternalServerError
	r.body.ErrorType = errorTypeAPI
	return r
}

func saleClosedReply(st billing.SaleStatus) reply {
	r := errorReply(types.ErrCodePolicySaleNotOpen, billing.MsgSaleNotOpen)
	r.body.Debug = &SaleDebug{
		CurrentTimeUTC:        st.Now.Format(saleTimeLayout),
		SaleStartTimeUTC:      st.Start.Format(saleTimeLayout),
		TimeUntilStartSeconds: st.WaitSeconds,
	}
	return r
}

// --- Subscribe Handler ---

// SubscribeHandler runs the signup pipeline. Everything it holds is built
// once at startup and only read afterwards.
type SubscribeHandler struct {
	provider     external.PaymentProvider
	plans        *billing.PlanCatalog
	sale         billing.SaleWindow
	cors         *core.CORSPolicy
	messages     billing.CardErrorMessages
	redirect     billing.RedirectTarget
	credentialed bool
	validator    *core.Validator
	publisher    queue.Publisher
	outcomes     OutcomeRecorder
	now          func() time.Time
	newSignupID  func() string
	logger       *slog.Logger
}

// SubscribeOption is a functional option for SubscribeHandler.
type SubscribeOption func(*SubscribeHandler)

// WithClock replaces time.Now for the sale gate.
func WithClock(now func() time.Time) SubscribeOption {
	return func(h *SubscribeHandler) { h.now = now }
}

// WithPublisher sets where successful signups are announced.
func WithPublisher(p queue.Publisher) SubscribeOption {
	return func(h *SubscribeHandler) { h.publisher = p }
}

// WithOutcomeRecorder sets the signup outcome metric sink.
func WithOutcomeRecorder(r OutcomeRecorder) SubscribeOption {
	return func(h *SubscribeHandler) { h.outcomes = r }
}

// WithSignupIDFunc replaces the signup id generator (tests).
func WithSignupIDFunc(fn func() string) SubscribeOption {
	return func(h *SubscribeHandler) { h.newSignupID = fn }
}

// NewSubscribeHandler builds the pipeline from configuration.
func NewSubscribeHandler(
	provider external.PaymentProvider,
	cfg *config.Config,
	v *core.Validator,
	l *slog.Logger,
	opts ...SubscribeOption,
) *SubscribeHandler {
	if l == nil {
		l = slog.Default()
	}
	if v == nil {
		v = core.NewValidator(l)
	}

	h := &SubscribeHandler{
		provider:     provider,
		plans:        billing.NewPlanCatalog(cfg.Plans.PriceIDs()),
		cors:         core.NewCORSPolicy(cfg.CORS),
		messages:     billing.NewCardErrorMessages(cfg.Feature.CardErrorLocalize),
		redirect:     billing.NewRedirectTarget(cfg.Redirect.BaseURL, cfg.Redirect.Style),
		credentialed: !cfg.Stripe.SecretKey.IsZero() || cfg.UseStubProvider(),
		validator:    v,
		publisher:    queue.NoopPublisher{},
		now:          time.Now,
		newSignupID:  uuid.NewString,
		logger:       l,
	}
	if start, ok := cfg.Sale.Start(); ok {
		h.sale = billing.NewSaleWindow(start)
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Mount serves /api/subscribe for every request method, unknown ones
// included; the pipeline itself answers preflight and rejects everything
// but POST.
func (h *SubscribeHandler) Mount(s *core.Server) {
	s.HandleAnyMethod("/subscribe", h.Subscribe)
}

// Subscribe handles /api/subscribe. Each stage either writes exactly one
// response and returns, or hands over to the next.
func (h *SubscribeHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := types.LoggerFromContext(ctx, h.logger).With(
		slog.String("method", r.Method),
	)

	// 1. CORS headers go on every response, errors and preflight included.
	h.cors.Apply(w.Header())

	// 2. Preflight.
	if r.Method == http.MethodOptions {
		core.NoContent(w, http.StatusOK)
		return
	}

	// 3. Method gate.
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST, OPTIONS")
		logger.WarnContext(ctx, "signup rejected: method not allowed")
		h.finish(w, r, types.OutcomeMethodNotAllowed, errorReply(types.ErrCodeMethodNotAllowed, billing.MsgMethodNotAllowed))
		return
	}

	// 4. Sale-time gate. Runs before the body is read.
	if h.sale.Enabled() {
		if st := h.sale.Check(h.now()); !st.Open {
			logger.InfoContext(ctx, "signup rejected: sale not open",
				"sale_start", st.Start,
				"wait_seconds", st.WaitSeconds,
			)
			h.finish(w, r, types.OutcomeSaleNotOpen, saleClosedReply(st))
			return
		}
	}

	// 5. Field presence.
	req, present, decodeErr := h.decodeRequest(w, r)
	logger = logger.With(slog.Any("fields_present", present))
	if decodeErr != nil {
		logger.WarnContext(ctx, "signup body could not be decoded", "error", decodeErr)
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		logger.WarnContext(ctx, "signup rejected: missing fields",
			"missing", core.MissingFields(err),
		)
		h.finish(w, r, types.OutcomeMissingFields, errorReply(types.ErrCodeValidationMissingField, billing.MsgMissingFields))
		return
	}

	logger = logger.With(
		slog.String("plan", req.Plan),
		slog.String("email", types.RedactEmail(req.Email)),
		slog.String("email_fingerprint", types.Fingerprint(req.Email)),
		slog.String("token", types.RedactToken(req.StripeToken)),
	)

	// 6. Provider credential.
	if !h.credentialed {
		logger.ErrorContext(ctx, "signup failed: STRIPE_SECRET_KEY is not configured")
		h.finish(w, r, types.OutcomeMisconfigured, errorReply(types.ErrCodeInternalConfig, billing.MsgServerConfig))
		return
	}

	// 7. Plan lookup.
	priceID, ok := h.plans.Lookup(req.Plan)
	if !ok {
		logger.WarnContext(ctx, "signup rejected: invalid plan",
			"configured", h.plans.Configured(req.Plan),
		)
		h.finish(w, r, types.OutcomeInvalidPlan, errorReply(types.ErrCodeValidationInvalidPlan, billing.MsgInvalidPlan))
		return
	}

	// 8. Provider delegation. A client disconnect does not abort these
	// calls; the provider client's own timeout bounds them.
	signupID := h.newSignupID()
	logger = logger.With(slog.String("signup_id", signupID))
	pctx := context.WithoutCancel(ctx)
	metadata := map[string]string{"plan": req.Plan, "signup_id": signupID}

	name := req.Name
	if name == "" {
		name = anonymousName
	}

	customer, err := h.provider.CreateCustomer(pctx, external.CustomerParams{
		Email:    req.Email,
		Name:     name,
		Source:   req.StripeToken,
		Metadata: metadata,
	})
	if err != nil {
		h.providerFailure(w, r, logger, "create_customer", err)
		return
	}

	subscription, err := h.provider.CreateSubscription(pctx, external.SubscriptionParams{
		CustomerID: customer.ID,
		PriceID:    priceID,
		Metadata:   metadata,
	})
	if err != nil {
		h.providerFailure(w, r, logger.With(slog.String("customer_id", customer.ID)), "create_subscription", err)
		return
	}

	// 9. Success.
	logger.InfoContext(ctx, "signup succeeded",
		"customer_id", customer.ID,
		"subscription_id", subscription.ID,
		"subscription_status", subscription.Status,
	)
	h.publish(pctx, logger, queue.NewSignupEvent(signupID, req.Plan, customer.ID, subscription.ID))
	h.finish(w, r, types.OutcomeSuccess, successReply(subscription, customer, h.redirect.For(req.Plan)))
}

// providerFailure shapes a provider-side failure into a card_error (400)
// or api_error (500) reply.
func (h *SubscribeHandler) providerFailure(w http.ResponseWriter, r *http.Request, logger *slog.Logger, stage string, err error) {
	ctx := r.Context()

	var pe *external.ProviderError
	if errors.As(err, &pe) {
		attrs := []any{
			"stage", stage,
			"error_type", pe.Type,
			"error_code", pe.Code,
			"decline_code", pe.DeclineCode,
			"provider_request_id", pe.RequestID,
			"provider_status", pe.HTTPStatus,
		}
		if pe.IsCardError() {
			logger.WarnContext(ctx, "signup failed: card error", attrs...)
			msg := h.messages.Message(pe.Code, pe.DeclineCode, pe.Message)
			h.finish(w, r, types.OutcomeCardError, cardErrorReply(pe.Code, msg))
			return
		}

		logger.ErrorContext(ctx, "signup failed: provider error", append(attrs, "error", pe.Message)...)
		msg := pe.Message
		if msg == "" {
			msg = billing.MsgServerError
		}
		h.finish(w, r, types.OutcomeAPIError, apiErrorReply(types.ErrCodeUpstreamStripe, msg))
		return
	}

	// Transport failures and an open breaker never expose their text.
	attrs := []any{"stage", stage, "error", err.Error()}
	code := types.ErrCodeUpstreamUnavailable
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		code = appErr.Code
		attrs = append(attrs, "error_code", string(code))
	}
	logger.ErrorContext(ctx, "signup failed: provider unreachable", attrs...)
	h.finish(w, r, types.OutcomeAPIError, apiErrorReply(code, billing.MsgServerError))
}

// publish announces a completed signup. Failures are logged only; the buyer
// already has a subscription.
func (h *SubscribeHandler) publish(ctx context.Context, logger *slog.Logger, evt queue.SignupEvent) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := h.publisher.Publish(ctx, evt); err != nil {
		logger.ErrorContext(ctx, "failed to publish signup event",
			"event_id", evt.EventID,
			"error", err,
		)
	}
}

func (h *SubscribeHandler) finish(w http.ResponseWriter, r *http.Request, outcome types.SignupOutcome, resp reply) {
	if resp.code != "" {
		types.LoggerFromContext(r.Context(), h.logger).DebugContext(r.Context(), "signup response",
			"status", resp.status,
			"error_code", string(resp.code),
			"outcome", string(outcome),
		)
	}
	if h.outcomes != nil {
		h.outcomes.RecordSignupOutcome(r.Context(), outcome)
	}
	core.JSON(w, r, resp.status, resp.body)
}

// decodeRequest reads a JSON or form body. A body that cannot be decoded
// yields an empty request, which the presence gate then rejects; the
// decode error is returned for logging only. present lists the non-empty
// fields by wire name.
func (h *SubscribeHandler) decodeRequest(w http.ResponseWriter, r *http.Request) (SubscriptionRequest, []string, error) {
	var req SubscriptionRequest

	if core.IsFormRequest(r) {
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBodySize)
		if err := r.ParseForm(); err != nil {
			return SubscriptionRequest{}, nil, err
		}
		req = SubscriptionRequest{
			StripeToken: r.PostForm.Get("stripeToken"),
			Name:        r.PostForm.Get("name"),
			Email:       r.PostForm.Get("email"),
			Plan:        r.PostForm.Get("plan"),
		}
	} else if err := core.DecodeJSON(w, r, &req); err != nil {
		return SubscriptionRequest{}, nil, err
	}

	return req, req.presentFields(), nil
}

// maxFormBodySize caps URL-encoded bodies.
const maxFormBodySize = 64 << 10

func (s SubscriptionRequest) presentFields() []string {
	present := make([]string, 0, 4)
	if s.StripeToken != "" {
		present = append(present, "stripeToken")
	}
	if s.Name != "" {
		present = append(present, "name")
	}
	if s.Email != "" {
		present = append(present, "email")
	}
	if s.Plan != "" {
		present = append(present, "plan")
	}
	return present
}
