package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
)

// VerifySignature checks an HMAC-SHA-256 signature of the raw webhook
// body against the configured secret, using a constant-time comparison.
// An empty secret bypasses verification entirely (development mode) and
// logs a warning — this must never happen in production.
func VerifySignature(logger *slog.Logger, secret string, body []byte, signature string) bool {
	if secret == "" {
		logger.Warn("billing: webhook signature verification bypassed, no secret configured")
		return true
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}
