package authsdk

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

// SDKClient is an HTTP client for the identity provider. It provides the
// unauthenticated OTP operations and implements IdentityProvider.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

var _ IdentityProvider = (*SDKClient)(nil)

// NewSDKClient creates a new identity provider client.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// RequestCode asks the identity provider to email a new code.
func (c *SDKClient) RequestCode(ctx context.Context, email string) error {
	return c.postCode(ctx, "/v1/otp/request", email)
}

// ResendCode asks the identity provider to email a replacement code.
func (c *SDKClient) ResendCode(ctx context.Context, email string) error {
	return c.postCode(ctx, "/v1/otp/resend", email)
}

// VerifyCode submits a code and returns the issued session on success.
func (c *SDKClient) VerifyCode(ctx context.Context, email, code string) (*VerifyResponse, error) {
	resp, err := c.postJSON(ctx, "/v1/otp/verify", VerifyRequest{Email: email, Code: code})
	if err != nil {
		return nil, err
	}

	var out VerifyResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}

	return &out, nil
}

// GetUserInfo fetches the signed-in user's profile. hc must be an
// authorized client, normally Authenticator.HTTPClient().
func (c *SDKClient) GetUserInfo(ctx context.Context, hc *http.Client) (*User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("/v1/userinfo"), nil)
	if err != nil {
		return nil, err
	}

	resp, err := hc.Do(req)
	if err != nil {
		// Surface the interceptor's own error rather than *url.Error.
		var ae *AuthError
		if errors.As(err, &ae) {
			return nil, ae
		}
		return nil, ErrProviderUnavailable.wrap(err)
	}

	var user User
	if err := decodeJSON(resp, &user, http.StatusOK); err != nil {
		return nil, err
	}

	return &user, nil
}

func (c *SDKClient) postCode(ctx context.Context, path, email string) error {
	resp, err := c.postJSON(ctx, path, CodeRequest{Email: email})
	if err != nil {
		return err
	}

	var accepted CodeAccepted
	return decodeJSON(resp, &accepted, http.StatusAccepted)
}
