package jwtx_test

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/aussiebroadwan/consign/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

// unsignedToken builds a token with an arbitrary payload and a junk
// signature; Decode must not care about the signature.
func unsignedToken(t *testing.T, claims jwt.Claims) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("not-the-idp-key"))
	require.NoError(t, err)
	return tok
}

func TestDecodeIgnoresSignature(t *testing.T) {
	t.Parallel()

	exp := time.Unix(1_900_000_000, 0)
	tok := unsignedToken(t, jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(exp),
		},
		Email: "a@b.com",
		Role:  "admin",
	})

	claims, err := jwtx.Decode(tok)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "a@b.com", claims.Email)
	require.Equal(t, "admin", claims.Role)

	got, err := jwtx.ExpiresAt(tok)
	require.NoError(t, err)
	require.True(t, exp.Equal(got))
}

func TestDecodeMalformed(t *testing.T) {
	t.Parallel()

	garbage := base64.RawURLEncoding.EncodeToString([]byte("{not json"))

	for name, tok := range map[string]string{
		"empty":          "",
		"whitespace":     "   ",
		"single segment": "abc",
		"bad payload":    "eyJhbGciOiJIUzI1NiJ9." + garbage + ".sig",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := jwtx.Decode(tok)
			require.ErrorIs(t, err, jwtx.ErrMalformed)

			_, err = jwtx.ExpiresAt(tok)
			require.ErrorIs(t, err, jwtx.ErrMalformed)
		})
	}
}

func TestExpiresAtRequiresExp(t *testing.T) {
	t.Parallel()

	tok := unsignedToken(t, jwtx.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "x"}})

	_, err := jwtx.ExpiresAt(tok)
	require.ErrorIs(t, err, jwtx.ErrMalformed)
	require.True(t, jwtx.Expired(tok, time.Now()))
}

func TestExpiredBoundary(t *testing.T) {
	t.Parallel()

	exp := time.Unix(1_800_000_000, 0)
	tok := unsignedToken(t, jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)},
	})

	require.False(t, jwtx.Expired(tok, exp.Add(-time.Second)))
	require.True(t, jwtx.Expired(tok, exp), "exp <= now counts as expired")
	require.True(t, jwtx.Expired(tok, exp.Add(time.Second)))
	require.True(t, jwtx.Expired("nope", exp.Add(-time.Hour)))
}
