package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subscribe/internal/core"
	"subscribe/internal/external"
)

// newTestRouter wires the signup and diagnostics handlers into the real
// chassis, backed by the in-process stub provider.
func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := testConfig()
	cfg.Environment = "local"
	logger := discardLogger()

	srv, err := core.NewServer(cfg, logger)
	require.NoError(t, err)

	provider := external.NewStubPaymentProvider(logger)
	subscribe := NewSubscribeHandler(provider, cfg, srv.Validator, logger)
	diagnostics := NewDiagnosticsHandler(cfg)

	subscribe.Mount(srv)
	srv.RouteRegistrars = append(srv.RouteRegistrars, diagnostics.RegisterRoutes)
	srv.HealthProbes = append(srv.HealthProbes, NewConfigProbe(cfg), NewProviderProbe(provider))
	srv.MountRoutes()
	return srv.Handler()
}

func TestRouter_SignupThroughChassis(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name       string
		token      string
		wantStatus int
		wantType   string
		wantMsg    string
	}{
		{name: "success", token: "tok_visa", wantStatus: http.StatusOK},
		{name: "declined", token: external.StubTokenDeclined, wantStatus: http.StatusBadRequest, wantType: "card_error", wantMsg: "カードが拒否されました。"},
		{name: "expired", token: external.StubTokenExpiredCard, wantStatus: http.StatusBadRequest, wantType: "card_error", wantMsg: "カードの有効期限が切れています。"},
		{name: "api error", token: external.StubTokenAPIError, wantStatus: http.StatusInternalServerError, wantType: "api_error", wantMsg: "An unknown error occurred"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := validBody()
			body["stripeToken"] = tt.token
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, jsonRequest(t, http.MethodPost, body))

			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
			assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

			env := decodeEnvelope(t, rec)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "success", env.Status)
				assert.Contains(t, env.CustomerID, "cus_stub_")
				assert.Contains(t, env.SubscriptionID, "sub_stub_")
				return
			}
			assert.Equal(t, tt.wantType, env.ErrorType)
			assert.Equal(t, tt.wantMsg, env.Message)
		})
	}
}

func TestRouter_PreflightThroughChassis(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/subscribe", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_GetSubscribeIsRejectedByPipeline(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/subscribe", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRouter_UnknownMethodsReachPipeline(t *testing.T) {
	router := newTestRouter(t)

	for _, method := range []string{"PROPFIND", "PURGE", "PUT", "DELETE"} {
		t.Run(method, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(method, "/api/subscribe", nil))

			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
			assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Allow"))
			assert.JSONEq(t, `{"status":"error","message":"Method Not Allowed"}`, rec.Body.String())
		})
	}
}

func TestRouter_UnknownMethodElsewhereUsesChassisEnvelope(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("PROPFIND", "/health", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Body.String(), `"code":"method_not_allowed"`)
}

func TestRouter_DiagnosticsAndHealth(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/test", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var diag DiagnosticsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &diag))
	assert.True(t, diag.EnvCheck.StubProvider)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var health map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health["status"])
	components := health["components"].(map[string]any)
	assert.Contains(t, components, "config")
	assert.Contains(t, components, "stripe")
}

func TestRouter_UnknownRoute(t *testing.T) {
	router := newTestRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/unknown", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
