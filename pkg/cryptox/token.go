package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/base64"
	"fmt"
)

// OTPSecretSize is the HOTP shared-secret length in bytes (160 bits, the
// HMAC-SHA1 block recommendation from RFC 4226).
const OTPSecretSize = 20

// GenerateOTPSecret creates a random HOTP shared secret and returns it as an
// unpadded base32 string, which is the encoding the otp package expects.
func GenerateOTPSecret() (string, error) {
	buf := make([]byte, OTPSecretSize)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate otp secret: %w", err)
	}

	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf), nil
}

// FingerprintToken returns a deterministic SHA-256 fingerprint of a token,
// truncated to 12 base64url characters. It lets logs correlate a bearer
// token without ever writing the token itself.
func FingerprintToken(token string) string {
	if token == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])[:12]
}
