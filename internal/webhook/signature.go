package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const signaturePrefix = "sha256="

// ValidSignature verifies the provider's X-Hub-Signature-256 header against
// the HMAC-SHA256 of the raw request body keyed with the app secret. The
// comparison is constant-time. An empty configured secret rejects
// everything: signature checking cannot be silently disabled.
func ValidSignature(body []byte, header, appSecret string) bool {
	if appSecret == "" {
		return false
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return false
	}

	want, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(appSecret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), want)
}

// VerifyHandshake answers the provider's subscription handshake: a GET with
// hub.mode=subscribe and the configured verify token echoes the challenge.
func VerifyHandshake(mode, token, challenge, verifyToken string) (string, bool) {
	if mode != "subscribe" || verifyToken == "" || token != verifyToken {
		return "", false
	}
	return challenge, true
}
