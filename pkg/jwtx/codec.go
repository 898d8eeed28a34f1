package jwtx

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Decode reads the claims out of a token without checking its signature.
// Signatures are the identity provider's business; clients only need the
// claims to know when their session runs out.
func Decode(token string) (Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, ErrMalformed
	}

	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	return claims, nil
}

// ExpiresAt returns the token's embedded exp claim. A token without exp is
// treated as malformed since its lifetime can't be known.
func ExpiresAt(token string) (time.Time, error) {
	claims, err := Decode(token)
	if err != nil {
		return time.Time{}, err
	}

	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("%w: missing exp claim", ErrMalformed)
	}

	return claims.ExpiresAt.Time, nil
}

// Expired reports whether the token is unusable at now, either because it
// can't be decoded or because exp <= now.
func Expired(token string, now time.Time) bool {
	exp, err := ExpiresAt(token)
	if err != nil {
		return true
	}
	return !exp.After(now)
}
