package idp_test

import (
	"context"
	"testing"

	"github.com/aussiebroadwan/consign/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestOTPRateLimit runs against production limits: five OTP calls per
// address and email per minute.
func TestOTPRateLimit(t *testing.T) {
	c := setupIdPContainer(t, map[string]string{
		"RATELIMIT_STRICT_REQUESTS":   "",
		"RATELIMIT_STRICT_WINDOW_SEC": "",
		"RATELIMIT_STRICT_BURST":      "",
	})
	ctx := context.Background()
	client := newClient(c)

	for i := range 5 {
		_, err := client.VerifyCode(ctx, clerkEmail, "123456")
		require.ErrorIs(t, err, authsdk.ErrInvalidCode, "attempt %d", i+1)
	}

	_, err := client.VerifyCode(ctx, clerkEmail, "123456")
	require.ErrorIs(t, err, authsdk.ErrProviderUnavailable)

	var ae *authsdk.AuthError
	require.ErrorAs(t, err, &ae)
	require.Contains(t, ae.Description, "too many requests")

	// Another address is still served.
	require.NoError(t, client.RequestCode(ctx, adminEmail))
}
