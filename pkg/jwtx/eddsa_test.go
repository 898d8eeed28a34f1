package jwtx_test

import (
	"testing"
	"time"

	"github.com/aussiebroadwan/consign/pkg/cryptox"
	"github.com/aussiebroadwan/consign/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func newTestSigner(t *testing.T, kid string) jwtx.Signer {
	t.Helper()
	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)
	signer, err := jwtx.NewSignerEdDSA(kid, pemKey)
	require.NoError(t, err)
	return signer
}

func TestEdDSASignAndVerify(t *testing.T) {
	signer := newTestSigner(t, "idp-key-1")
	require.NoError(t, signer.Validate())
	require.Equal(t, "EdDSA", signer.Alg())
	require.Equal(t, "idp-key-1", signer.KID())

	claims := jwtx.NewSessionClaims("user-456", "c@d.com", "Cee", "clerk", 5*time.Minute, exampleIssuer, []string{"api"}, time.Now().UTC())
	token, err := signer.Sign(claims)
	require.NoError(t, err)

	keyset := jwtx.NewKeySet()
	require.NoError(t, keyset.AddSigner(signer))
	require.True(t, keyset.IsReady())

	jwks := keyset.PublicJWKS()
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "OKP", jwks.Keys[0].Kty)
	require.Equal(t, "Ed25519", jwks.Keys[0].Crv)

	verifier := jwtx.NewCommonEdDSA(keyset, jwtx.VerifyOptions{Issuer: exampleIssuer, Audience: []string{"api"}})
	parsed, err := verifier.Verify(token)
	require.NoError(t, err)
	require.Equal(t, claims.Subject, parsed.Subject)
	require.Equal(t, claims.Email, parsed.Email)
	require.Equal(t, claims.Role, parsed.Role)

	// The client-side codec sees the same expiry without a key.
	exp, err := jwtx.ExpiresAt(token)
	require.NoError(t, err)
	require.Equal(t, claims.ExpiresAt.Unix(), exp.Unix())
}

func TestEdDSAVerifyFailures(t *testing.T) {
	signer := newTestSigner(t, "k1")
	other := newTestSigner(t, "k2")

	keyset := jwtx.NewKeySet()
	require.NoError(t, keyset.AddSigner(signer))

	now := time.Now().UTC()

	t.Run("wrong issuer", func(t *testing.T) {
		tok, err := signer.Sign(jwtx.NewSessionClaims("u", "", "", "", time.Minute, exampleIssuer, nil, now))
		require.NoError(t, err)
		_, err = jwtx.NewVerifierEdDSA(keyset, jwtx.VerifyOptions{Issuer: "wrong"}).Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrIssuer)
	})

	t.Run("unknown key", func(t *testing.T) {
		tok, err := other.Sign(jwtx.NewSessionClaims("u", "", "", "", time.Minute, exampleIssuer, nil, now))
		require.NoError(t, err)
		_, err = jwtx.NewVerifierEdDSA(keyset, jwtx.VerifyOptions{}).Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrUnknownKID)
	})

	t.Run("expired", func(t *testing.T) {
		tok, err := signer.Sign(jwtx.NewSessionClaims("u", "", "", "", time.Minute, exampleIssuer, nil, now.Add(-time.Hour)))
		require.NoError(t, err)
		_, err = jwtx.NewVerifierEdDSA(keyset, jwtx.VerifyOptions{}).Verify(tok)
		require.ErrorIs(t, err, jwtx.ErrExpired)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := jwtx.NewVerifierEdDSA(keyset, jwtx.VerifyOptions{}).Verify("a.b.c")
		require.Error(t, err)
	})
}

func TestEdDSADerivedKID(t *testing.T) {
	pemKey, err := cryptox.GenerateEd25519Key()
	require.NoError(t, err)

	first, err := jwtx.NewSignerEdDSA("", pemKey)
	require.NoError(t, err)
	second, err := jwtx.NewSignerEdDSA("", pemKey)
	require.NoError(t, err)

	require.NotEmpty(t, first.KID())
	require.Equal(t, first.KID(), second.KID())
	require.Equal(t, first.KID(), first.PublicJWK().Kid)
	require.NoError(t, first.Validate())

	other := newTestSigner(t, "")
	require.NotEqual(t, first.KID(), other.KID())
}

func TestEdDSARejectsBadPEM(t *testing.T) {
	_, err := jwtx.NewSignerEdDSA("k", []byte("not a key"))
	require.Error(t, err)
}
