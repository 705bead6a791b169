package lemonsqueezy

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// verifySignature checks the X-Signature header against an HMAC-SHA256 hex
// digest of the exact raw request bytes. It fails closed when the secret or
// header is missing. The length check before hmac.Equal is fine: digest
// length reveals nothing secret-dependent.
func verifySignature(secret, signatureHeader string, rawBody []byte) bool {
	if secret == "" || signatureHeader == "" {
		return false
	}

	sig := strings.TrimPrefix(signatureHeader, "sha256=")
	sig = strings.ToLower(strings.TrimSpace(sig))

	provided, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	computed := mac.Sum(nil)

	if len(provided) != len(computed) {
		return false
	}
	return hmac.Equal(computed, provided)
}
