package types

import (
	"log/slog"
	"strings"
)

// redactedPlaceholder is the string used to replace secret values in logs and serialization.
const redactedPlaceholder = "***REDACTED***"

// redactedJSON is the pre-computed JSON encoding of the redacted placeholder.
var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString is a string type that prevents accidental logging or serialization
// of sensitive values such as the payment provider's secret key. It overrides
// String(), MarshalJSON() and LogValue() to return a redacted placeholder.
//
// Use Unmask() to retrieve the raw plaintext value when it is genuinely needed
// (e.g., building the provider's Authorization header).
type SecretString string

// String returns a redacted placeholder instead of the raw value.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// LogValue keeps the raw value out of slog output, including when the secret
// is nested inside a logged struct.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(redactedPlaceholder)
}

// Unmask returns the raw plaintext value of the secret.
// Usage of this method should be strictly audited.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsZero reports whether the secret is unset.
func (s SecretString) IsZero() bool {
	return s == ""
}

// KeyMode classifies a Stripe secret key by its prefix without revealing it.
type KeyMode string

const (
	KeyModeUnset      KeyMode = "unset"
	KeyModeTest       KeyMode = "test"
	KeyModeLive       KeyMode = "live"
	KeyModeRestricted KeyMode = "restricted"
	KeyModeUnknown    KeyMode = "unknown"
)

// StripeKeyMode reports which kind of key the secret holds.
func (s SecretString) StripeKeyMode() KeyMode {
	raw := string(s)
	switch {
	case raw == "":
		return KeyModeUnset
	case strings.HasPrefix(raw, "sk_test_"):
		return KeyModeTest
	case strings.HasPrefix(raw, "sk_live_"):
		return KeyModeLive
	case strings.HasPrefix(raw, "rk_"):
		return KeyModeRestricted
	default:
		return KeyModeUnknown
	}
}
