package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"testing"
)

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignatureAccepts(t *testing.T) {
	body := []byte(`{"action":"membership.went_valid"}`)
	secret := "whsec_test"

	if !VerifySignature(noopLogger(), secret, body, sign(secret, body)) {
		t.Error("VerifySignature() = false, want true for a correctly signed body")
	}
}

func TestVerifySignatureRejectsWrongSignature(t *testing.T) {
	body := []byte(`{"action":"membership.went_valid"}`)

	if VerifySignature(noopLogger(), "whsec_test", body, "deadbeef") {
		t.Error("VerifySignature() = true, want false for a mismatched signature")
	}
}

func TestVerifySignatureRejectsTamperedBody(t *testing.T) {
	secret := "whsec_test"
	signature := sign(secret, []byte(`{"action":"a"}`))

	if VerifySignature(noopLogger(), secret, []byte(`{"action":"b"}`), signature) {
		t.Error("VerifySignature() = true, want false when the body doesn't match the signature")
	}
}

func TestVerifySignatureBypassedWhenSecretEmpty(t *testing.T) {
	if !VerifySignature(noopLogger(), "", []byte("anything"), "garbage") {
		t.Error("VerifySignature() = false, want true (dev-mode bypass) when no secret is configured")
	}
}
