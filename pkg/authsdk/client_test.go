package authsdk_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/consign/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// newIDPStub serves a minimal identity provider that accepts "123456" for
// any address at example.com.
func newIDPStub(t *testing.T) *httptest.Server {
	t.Helper()

	user := authsdk.User{ID: "u1", Name: "Ann", Email: "ann@example.com", Role: "clerk"}
	token := makeToken(t, user, time.Now().Add(time.Hour))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/otp/request", func(w http.ResponseWriter, r *http.Request) {
		var req authsdk.CodeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Email == "ghost@example.com" {
			writeJSON(w, http.StatusNotFound, authsdk.ErrorResponse{
				Error:            authsdk.ErrorCodeUnknownUser,
				ErrorDescription: "no account for that address",
			})
			return
		}
		writeJSON(w, http.StatusAccepted, authsdk.CodeAccepted{Accepted: true, ExpiresIn: 300})
	})
	mux.HandleFunc("POST /v1/otp/resend", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusTooManyRequests, authsdk.ErrorResponse{
			Error:            authsdk.ErrorCodeResendNotYetAllowed,
			ErrorDescription: "wait 120 seconds",
		})
	})
	mux.HandleFunc("POST /v1/otp/verify", func(w http.ResponseWriter, r *http.Request) {
		var req authsdk.VerifyRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Code != "123456" {
			writeJSON(w, http.StatusBadRequest, authsdk.ErrorResponse{
				Error:            authsdk.ErrorCodeInvalidCode,
				ErrorDescription: "that code didn't match",
			})
			return
		}
		writeJSON(w, http.StatusOK, authsdk.VerifyResponse{
			Token: token, TokenType: "Bearer", ExpiresIn: 3600, User: user,
		})
	})
	mux.HandleFunc("GET /v1/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="bad token"`)
			writeJSON(w, http.StatusUnauthorized, authsdk.ErrorResponse{Error: authsdk.ErrorCodeInvalidToken})
			return
		}
		writeJSON(w, http.StatusOK, user)
	})
	mux.HandleFunc("GET /livez", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, authsdk.HealthResponse{Status: "ok"})
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, authsdk.HealthResponse{Status: "unavailable"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestSDKClientRequestCode(t *testing.T) {
	t.Parallel()

	client := authsdk.NewSDKClient(newIDPStub(t).URL + "/")
	ctx := context.Background()

	require.NoError(t, client.RequestCode(ctx, "ann@example.com"))

	err := client.RequestCode(ctx, "ghost@example.com")
	require.ErrorIs(t, err, authsdk.ErrProviderUnavailable)

	var ae *authsdk.AuthError
	require.ErrorAs(t, err, &ae)
	require.Equal(t, "no account for that address", ae.Description)
}

func TestSDKClientResendMapsCooldown(t *testing.T) {
	t.Parallel()

	client := authsdk.NewSDKClient(newIDPStub(t).URL)

	err := client.ResendCode(context.Background(), "ann@example.com")
	require.ErrorIs(t, err, authsdk.ErrResendNotYetAllowed)

	var ae *authsdk.AuthError
	require.ErrorAs(t, err, &ae)
	require.Equal(t, "wait 120 seconds", ae.Description)
}

func TestSDKClientVerifyCode(t *testing.T) {
	t.Parallel()

	client := authsdk.NewSDKClient(newIDPStub(t).URL)
	ctx := context.Background()

	_, err := client.VerifyCode(ctx, "ann@example.com", "000000")
	require.ErrorIs(t, err, authsdk.ErrInvalidCode)

	resp, err := client.VerifyCode(ctx, "ann@example.com", "123456")
	require.NoError(t, err)
	require.Equal(t, "Bearer", resp.TokenType)
	require.Equal(t, "ann@example.com", resp.User.Email)
}

func TestSDKClientUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := authsdk.NewSDKClient(url)
	err := client.RequestCode(context.Background(), "ann@example.com")
	require.ErrorIs(t, err, authsdk.ErrProviderUnavailable)
}

func TestSDKClientHealth(t *testing.T) {
	t.Parallel()

	client := authsdk.NewSDKClient(newIDPStub(t).URL)
	ctx := context.Background()

	live, err := client.GetLiveness(ctx)
	require.NoError(t, err)
	require.Equal(t, "ok", live.Status)

	_, err = client.GetReadiness(ctx)
	require.Error(t, err)
}

func TestEndToEndWithAuthenticator(t *testing.T) {
	t.Parallel()

	client := authsdk.NewSDKClient(newIDPStub(t).URL)
	auth, err := authsdk.NewAuthenticator(authsdk.Config{Provider: client})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, auth.StartLogin(ctx, "ann@example.com"))

	_, err = auth.SubmitCode(ctx, "000000")
	require.ErrorIs(t, err, authsdk.ErrInvalidCode)

	_, err = auth.SubmitCode(ctx, "123456")
	require.NoError(t, err)

	user, err := client.GetUserInfo(ctx, auth.HTTPClient())
	require.NoError(t, err)
	require.Equal(t, "ann@example.com", user.Email)
}

func TestGetUserInfoUnauthorized(t *testing.T) {
	t.Parallel()

	client := authsdk.NewSDKClient(newIDPStub(t).URL)

	store := authsdk.NewMemoryStore()
	user := authsdk.User{ID: "u1", Email: "ann@example.com"}
	sess, err := authsdk.NewSession(makeToken(t, user, time.Now().Add(time.Hour)), user)
	require.NoError(t, err)
	require.NoError(t, store.Set(sess))

	auth, err := authsdk.NewAuthenticator(authsdk.Config{Provider: client, Store: store})
	require.NoError(t, err)

	var events int
	auth.Subscribe(func(authsdk.Invalidation) { events++ })

	_, err = client.GetUserInfo(context.Background(), auth.HTTPClient())
	require.ErrorIs(t, err, authsdk.ErrUnauthorized)

	var ae *authsdk.AuthError
	require.ErrorAs(t, err, &ae)
	require.Equal(t, "bad token", ae.Description)
	require.Equal(t, 1, events)
}
