package handlers

import (
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"

	"subscribe/internal/billing"
	"subscribe/internal/config"
	"subscribe/internal/core"
	"subscribe/internal/types"
)

// DiagnosticsResponse is the body of GET /api/test. It reports which
// settings are present without revealing any of them.
type DiagnosticsResponse struct {
	Status    string   `json:"status"`
	Message   string   `json:"message"`
	Timestamp string   `json:"timestamp"`
	EnvCheck  EnvCheck `json:"env_check"`
}

// EnvCheck summarizes configuration presence.
type EnvCheck struct {
	StripeKeyExists     bool   `json:"stripe_key_exists"`
	StripeKeyMode       string `json:"stripe_key_mode"`
	PriceInitiateExists bool   `json:"price_initiate_exists"`
	PriceWarriorExists  bool   `json:"price_warrior_exists"`
	PriceGuardianExists bool   `json:"price_guardian_exists"`
	SaleWindowEnabled   bool   `json:"sale_window_enabled"`
	StubProvider        bool   `json:"stub_provider"`
	GoVersion           string `json:"go_version"`
}

// DiagnosticsHandler serves GET /api/test.
type DiagnosticsHandler struct {
	enabled bool
	check   EnvCheck
	now     func() time.Time
}

// NewDiagnosticsHandler snapshots the configuration once; it is immutable
// afterwards.
func NewDiagnosticsHandler(cfg *config.Config) *DiagnosticsHandler {
	plans := billing.NewPlanCatalog(cfg.Plans.PriceIDs())
	_, saleEnabled := cfg.Sale.Start()

	mode := string(cfg.Stripe.SecretKey.StripeKeyMode())
	if mode == string(types.KeyModeUnset) {
		mode = "NOT SET"
	}

	return &DiagnosticsHandler{
		enabled: cfg.Diagnostics(),
		check: EnvCheck{
			StripeKeyExists:     !cfg.Stripe.SecretKey.IsZero(),
			StripeKeyMode:       mode,
			PriceInitiateExists: plans.Configured(config.PlanInitiate),
			PriceWarriorExists:  plans.Configured(config.PlanWarrior),
			PriceGuardianExists: plans.Configured(config.PlanGuardian),
			SaleWindowEnabled:   saleEnabled,
			StubProvider:        cfg.UseStubProvider(),
			GoVersion:           runtime.Version(),
		},
		now: time.Now,
	}
}

// RegisterRoutes mounts GET /test.
func (h *DiagnosticsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/test", h.Get)
}

// Get reports configuration presence, or 404 when diagnostics are off.
func (h *DiagnosticsHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.enabled {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundRoute, billing.MsgNotFound, nil))
		return
	}

	core.JSON(w, r, http.StatusOK, DiagnosticsResponse{
		Status:    "ok",
		Message:   "API is working",
		Timestamp: h.now().UTC().Format(time.RFC3339Nano),
		EnvCheck:  h.check,
	})
}
