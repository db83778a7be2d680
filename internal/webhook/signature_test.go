package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func signed(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestValidSignature(t *testing.T) {
	body := []byte(`{"object":"whatsapp_business_account"}`)
	assert.True(t, ValidSignature(body, signed(body, "secret"), "secret"))
}

func TestValidSignatureRejectsMismatch(t *testing.T) {
	body := []byte(`{"object":"whatsapp_business_account"}`)

	assert.False(t, ValidSignature(body, signed(body, "other-secret"), "secret"))
	assert.False(t, ValidSignature([]byte("tampered"), signed(body, "secret"), "secret"))
}

func TestValidSignatureRejectsMalformedHeader(t *testing.T) {
	body := []byte("{}")
	assert.False(t, ValidSignature(body, "", "secret"))
	assert.False(t, ValidSignature(body, "md5=abcdef", "secret"))
	assert.False(t, ValidSignature(body, "sha256=not-hex", "secret"))
}

func TestValidSignatureRejectsEmptySecret(t *testing.T) {
	body := []byte("{}")
	assert.False(t, ValidSignature(body, signed(body, ""), ""),
		"an unconfigured secret must reject everything rather than disable checking")
}

func TestVerifyHandshake(t *testing.T) {
	challenge, ok := VerifyHandshake("subscribe", "tok", "12345", "tok")
	assert.True(t, ok)
	assert.Equal(t, "12345", challenge)
}

func TestVerifyHandshakeRejects(t *testing.T) {
	_, ok := VerifyHandshake("subscribe", "wrong", "12345", "tok")
	assert.False(t, ok)

	_, ok = VerifyHandshake("unsubscribe", "tok", "12345", "tok")
	assert.False(t, ok)

	_, ok = VerifyHandshake("subscribe", "", "12345", "")
	assert.False(t, ok, "empty configured token must never verify")
}
