package types

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// fingerprintLen is the number of hex characters kept from the BLAKE2b digest.
const fingerprintLen = 16

// RedactEmail masks an email address for safe logging by replacing all but
// the first character of the local part with asterisks. For example,
// "john@gmail.com" becomes "j***@gmail.com".
//
// If the email does not contain an "@" symbol, the entire string is masked
// to prevent accidental PII exposure in logs.
func RedactEmail(email string) string {
	if email == "" {
		return ""
	}

	parts := strings.SplitN(email, "@", 2)
	if len(parts) != 2 {
		return "***"
	}

	local := parts[0]
	domain := parts[1]

	if len(local) == 0 {
		return "***@" + domain
	}

	return string(local[0]) + "***@" + domain
}

// RedactToken masks a tokenized payment reference, keeping the type prefix
// ("tok_", "pm_", "src_") and the last four characters: "tok_…4242".
// Short tokens are fully masked.
func RedactToken(token string) string {
	if token == "" {
		return ""
	}
	prefix := ""
	if i := strings.IndexByte(token, '_'); i > 0 && i < 5 {
		prefix = token[:i+1]
	}
	rest := token[len(prefix):]
	if len(rest) <= 8 {
		return prefix + "***"
	}
	return prefix + "…" + rest[len(rest)-4:]
}

// Fingerprint returns a short, stable BLAKE2b-256 digest of a normalized
// identifier (lowercased, trimmed). It lets logs correlate repeated signups
// from the same address without recording the address itself.
func Fingerprint(value string) string {
	if value == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(strings.ToLower(strings.TrimSpace(value))))
	return hex.EncodeToString(sum[:])[:fingerprintLen]
}
