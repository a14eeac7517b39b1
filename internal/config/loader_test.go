package config

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testSecretProvider is a configurable fake for SSM resolution.
type testSecretProvider struct {
	values     map[string]string
	err        error
	calledWith []string
	callCount  int
}

func (p *testSecretProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	p.callCount++
	p.calledWith = append(p.calledWith, keys...)
	if p.err != nil {
		return nil, p.err
	}
	result := make(map[string]string)
	for _, k := range keys {
		if v, ok := p.values[k]; ok {
			result[k] = v
		}
	}
	return result, nil
}

// testEnv reads the real environment but routes writes through t.Setenv so
// resolved secrets are rolled back after each test.
func testEnv(t *testing.T) env {
	return env{
		lookup:  os.LookupEnv,
		environ: os.Environ,
		set: func(k, v string) error {
			t.Setenv(k, v)
			return nil
		},
	}
}

func TestLoadSSMResolution(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	unsetEnv(t, "STRIPE_SECRET_KEY")
	unsetEnv(t, "PRICE_ID_WARRIOR")
	t.Setenv("STRIPE_SECRET_KEY_SSM_PARAM", "/dev/subscribe/stripe_secret_key")
	t.Setenv("PRICE_ID_WARRIOR_SSM_PARAM", "/dev/subscribe/price_warrior")

	provider := &testSecretProvider{values: map[string]string{
		"/dev/subscribe/stripe_secret_key": "sk_live_resolved",
		"/dev/subscribe/price_warrior":     "price_warrior_resolved",
	}}

	cfg, err := load(t.Context(), provider, testEnv(t))
	require.NoError(t, err)

	assert.Equal(t, "sk_live_resolved", cfg.Stripe.SecretKey.Unmask())
	assert.Equal(t, "price_warrior_resolved", cfg.Plans.PriceWarrior)
	assert.Equal(t, 1, provider.callCount, "expected a single batch call")
	assert.ElementsMatch(t, []string{"/dev/subscribe/stripe_secret_key", "/dev/subscribe/price_warrior"}, provider.calledWith)
}

func TestLoadSSMSkippedForLocal(t *testing.T) {
	t.Setenv("APP_ENV", "local")
	t.Setenv("SOME_SECRET_SSM_PARAM", "/local/some/path")

	provider := &testSecretProvider{values: map[string]string{"/local/some/path": "unused"}}

	_, err := load(t.Context(), provider, testEnv(t))
	require.NoError(t, err)
	assert.Zero(t, provider.callCount)
}

func TestLoadSSMDirectEnvWins(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	t.Setenv("STRIPE_SECRET_KEY", "sk_test_direct")
	t.Setenv("STRIPE_SECRET_KEY_SSM_PARAM", "/dev/subscribe/stripe_secret_key")

	provider := &testSecretProvider{values: map[string]string{"/dev/subscribe/stripe_secret_key": "sk_live_ssm"}}

	cfg, err := load(t.Context(), provider, testEnv(t))
	require.NoError(t, err)
	assert.Equal(t, "sk_test_direct", cfg.Stripe.SecretKey.Unmask())
	assert.Zero(t, provider.callCount)
}

func TestLoadSSMFailures(t *testing.T) {
	tests := []struct {
		name     string
		provider SecretProvider
	}{
		{"provider error", &testSecretProvider{err: errors.New("SSM throttled")}},
		{"nil provider", nil},
		{"parameter missing", &testSecretProvider{values: map[string]string{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("APP_ENV", "dev")
			unsetEnv(t, "STRIPE_SECRET_KEY")
			t.Setenv("STRIPE_SECRET_KEY_SSM_PARAM", "/dev/subscribe/stripe_secret_key")

			_, err := load(t.Context(), tt.provider, testEnv(t))
			require.Error(t, err)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, ErrSSMResolution, cfgErr.Type)
			assert.Contains(t, err.Error(), "STRIPE_SECRET_KEY")
		})
	}
}

func TestLoadSSMSetFailure(t *testing.T) {
	t.Setenv("APP_ENV", "dev")
	unsetEnv(t, "STRIPE_SECRET_KEY")
	t.Setenv("STRIPE_SECRET_KEY_SSM_PARAM", "/dev/subscribe/stripe_secret_key")

	e := testEnv(t)
	e.set = func(string, string) error { return errors.New("read-only environment") }
	provider := &testSecretProvider{values: map[string]string{"/dev/subscribe/stripe_secret_key": "sk"}}

	err := resolveSecrets(t.Context(), provider, e)

	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, ErrSSMResolution, cfgErr.Type)
}

func TestSSMBindingsIgnoresEmptyPaths(t *testing.T) {
	e := env{
		lookup: func(k string) (string, bool) { return "", k == "ALREADY_SET" },
		environ: func() []string {
			return []string{
				"A_SSM_PARAM=/p/a",
				"B_SSM_PARAM=",
				"ALREADY_SET_SSM_PARAM=/p/set",
				"UNRELATED=x",
				"malformed",
			}
		},
	}

	assert.Equal(t, map[string]string{"/p/a": "A"}, ssmBindings(e))
}

func TestConfigErrorFormat(t *testing.T) {
	cause := errors.New("boom")
	err := &ConfigError{Type: ErrValidation, Message: "bad", Err: cause}

	assert.Equal(t, "[VALIDATION_FAILED] bad: boom", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "[MISSING_ENV] gone", (&ConfigError{Type: ErrMissingEnv, Message: "gone"}).Error())
}
