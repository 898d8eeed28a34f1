package idp_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/aussiebroadwan/consign/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestHealthEndpoints(t *testing.T) {
	c := setupIdPContainer(t, nil)
	ctx := context.Background()

	client := newClient(c)

	live, err := client.GetLiveness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)
	require.NotEmpty(t, live.Version)

	ready, err := client.GetReadiness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", ready.Status)
	require.NotNil(t, ready.Checks)
	require.Equal(t, "ok", ready.Checks.Database)
	require.Equal(t, "ok", ready.Checks.Signer)
}

func TestJWKSVerifiesIssuedTokens(t *testing.T) {
	c := setupIdPContainer(t, nil)

	resp, err := http.Get(c.BaseURL + "/.well-known/jwks.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var jwks jwtx.JWKS
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&jwks))
	require.Len(t, jwks.Keys, 1)
	require.Equal(t, "OKP", jwks.Keys[0].Kty)

	keys := jwtx.NewKeySet()
	require.NoError(t, keys.AddJWK(jwks.Keys[0]))

	auth, _, _ := newAuthenticator(t, c)
	sess := login(t, c, auth, clerkEmail)

	claims, err := jwtx.NewCommonEdDSA(keys, jwtx.VerifyOptions{Issuer: "consign-idp"}).Verify(sess.Token)
	require.NoError(t, err)
	require.Equal(t, clerkEmail, claims.Email)
}

func TestSwaggerUI(t *testing.T) {
	c := setupIdPContainer(t, nil)

	resp, err := http.Get(c.BaseURL + "/swagger/doc.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc struct {
		Paths map[string]any `json:"paths"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
	require.Contains(t, doc.Paths, "/v1/otp/verify")
}
