package idp_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/aussiebroadwan/consign/pkg/authsdk"
	"github.com/aussiebroadwan/consign/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestLoginFlow(t *testing.T) {
	c := setupIdPContainer(t, nil)
	ctx := context.Background()

	auth, client, _ := newAuthenticator(t, c)

	require.NoError(t, auth.StartLogin(ctx, clerkEmail))

	snap, ok := auth.Challenge()
	require.True(t, ok)
	require.Equal(t, authsdk.StateAwaitingVerification, snap.State)
	require.Equal(t, authsdk.ResendWindowSeconds, snap.SecondsRemaining)

	code := c.latestCode(t, clerkEmail)
	require.Len(t, code, authsdk.CodeLength)

	sess, err := auth.SubmitCode(ctx, code)
	require.NoError(t, err)
	require.Equal(t, clerkEmail, sess.User.Email)
	require.Equal(t, "clerk", sess.User.Role)
	require.WithinDuration(t, time.Now().Add(time.Hour), sess.ExpiresAt, time.Minute)

	_, ok = auth.Challenge()
	require.False(t, ok, "challenge ends on success")

	user, err := client.GetUserInfo(ctx, auth.HTTPClient())
	require.NoError(t, err)
	require.Equal(t, sess.User, *user)

	claims, err := jwtx.Decode(sess.Token)
	require.NoError(t, err)
	require.Equal(t, "consign-idp", claims.Issuer)
	require.Equal(t, user.ID, claims.Subject)
}

func TestWrongCodeKeepsChallenge(t *testing.T) {
	c := setupIdPContainer(t, nil)
	ctx := context.Background()

	auth, _, _ := newAuthenticator(t, c)
	require.NoError(t, auth.StartLogin(ctx, clerkEmail))
	code := c.latestCode(t, clerkEmail)

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	_, err := auth.SubmitCode(ctx, wrong)
	require.ErrorIs(t, err, authsdk.ErrInvalidCode)

	var ae *authsdk.AuthError
	require.ErrorAs(t, err, &ae)
	require.Equal(t, "the code is incorrect", ae.Description)

	snap, ok := auth.Challenge()
	require.True(t, ok)
	require.Equal(t, authsdk.StateAwaitingVerification, snap.State)
	require.Empty(t, snap.AttemptCode)

	_, err = auth.SubmitCode(ctx, code)
	require.NoError(t, err)
}

func TestUnknownEmail(t *testing.T) {
	c := setupIdPContainer(t, nil)
	ctx := context.Background()

	auth, _, _ := newAuthenticator(t, c)
	err := auth.StartLogin(ctx, "stranger@example.com")
	require.ErrorIs(t, err, authsdk.ErrProviderUnavailable)

	snap, ok := auth.Challenge()
	require.True(t, ok)
	require.Equal(t, authsdk.StateFailed, snap.State)
}

func TestResendAfterCountdown(t *testing.T) {
	c := setupIdPContainer(t, map[string]string{"OTP_RESEND_COOLDOWN": "1s"})
	ctx := context.Background()

	auth, _, clk := newAuthenticator(t, c)
	require.NoError(t, auth.StartLogin(ctx, clerkEmail))
	first := c.latestCode(t, clerkEmail)

	require.ErrorIs(t, auth.Resend(ctx), authsdk.ErrResendNotYetAllowed)

	clk.Advance(authsdk.ResendWindowSeconds * time.Second)
	snap, _ := auth.Challenge()
	require.Equal(t, authsdk.StateCooldown, snap.State)
	require.True(t, snap.ResendAllowed())

	require.NoError(t, auth.Resend(ctx))
	require.Eventually(t, func() bool { return c.codeCount(t, clerkEmail) == 2 },
		10*time.Second, 100*time.Millisecond)

	snap, _ = auth.Challenge()
	require.Equal(t, authsdk.StateAwaitingVerification, snap.State)
	require.Equal(t, authsdk.ResendWindowSeconds, snap.SecondsRemaining)

	second := c.latestCode(t, clerkEmail)
	if first != second {
		_, err := auth.SubmitCode(ctx, first)
		require.ErrorIs(t, err, authsdk.ErrInvalidCode, "old code stops working")
	}

	_, err := auth.SubmitCode(ctx, second)
	require.NoError(t, err)
}

func TestServerRejectsEarlyResend(t *testing.T) {
	c := setupIdPContainer(t, nil)
	ctx := context.Background()

	client := authsdk.NewSDKClient(c.BaseURL)
	require.NoError(t, client.RequestCode(ctx, clerkEmail))

	err := client.ResendCode(ctx, clerkEmail)
	require.ErrorIs(t, err, authsdk.ErrResendNotYetAllowed)
}

func TestRejectedTokenInvalidatesSession(t *testing.T) {
	c := setupIdPContainer(t, nil)
	ctx := context.Background()

	auth, client, _ := newAuthenticator(t, c)
	login(t, c, auth, clerkEmail)

	// A session minted by a different identity provider is refused here.
	other := setupIdPContainer(t, nil)
	otherAuth, _, _ := newAuthenticator(t, other)
	foreign := login(t, other, otherAuth, clerkEmail)

	store := authsdk.NewMemoryStore()
	require.NoError(t, store.Set(foreign))
	victim, err := authsdk.NewAuthenticator(authsdk.Config{Provider: client, Store: store})
	require.NoError(t, err)

	events := make(chan authsdk.Invalidation, 2)
	victim.Subscribe(func(ev authsdk.Invalidation) { events <- ev })

	_, err = client.GetUserInfo(ctx, victim.HTTPClient())
	require.ErrorIs(t, err, authsdk.ErrUnauthorized)

	select {
	case ev := <-events:
		require.Equal(t, authsdk.ReasonUnauthorized, ev.Reason)
		require.Equal(t, clerkEmail, ev.User.Email)
	case <-time.After(5 * time.Second):
		t.Fatal("no invalidation broadcast")
	}

	_, ok := victim.Session()
	require.False(t, ok)

	// The original session is unaffected.
	_, err = client.GetUserInfo(ctx, auth.HTTPClient())
	require.NoError(t, err)
}

func TestAdminListsUsers(t *testing.T) {
	c := setupIdPContainer(t, nil)

	auth, _, _ := newAuthenticator(t, c)
	login(t, c, auth, adminEmail)

	resp, err := auth.HTTPClient().Get(c.BaseURL + "/v1/users")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
