package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// url builds a complete URL by appending the path to the base URL.
func (c *SDKClient) url(path string) string {
	return c.BaseURL + path
}

// doRequest performs an HTTP request with the SDKClient's HTTP client.
// Transport failures are reported as ErrProviderUnavailable.
func (c *SDKClient) doRequest(
	ctx context.Context,
	method, path string,
	body io.Reader,
	headers map[string]string,
) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, ErrProviderUnavailable.wrap(fmt.Errorf("failed to send request: %w", err))
	}

	return resp, nil
}

// postJSON marshals v and POSTs it as application/json.
func (c *SDKClient) postJSON(ctx context.Context, path string, v any) (*http.Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	return c.doRequest(ctx, http.MethodPost, path, bytes.NewReader(body), map[string]string{
		"Content-Type": "application/json",
	})
}

// decodeJSON decodes a JSON response into target. Any other status than
// expectedStatus is mapped to an *AuthError.
func decodeJSON(resp *http.Response, target any, expectedStatus int) error {
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return ErrProviderUnavailable.wrap(fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode == http.StatusUnauthorized {
		return unauthorizedFromResponse(resp, bodyBytes)
	}

	if resp.StatusCode != expectedStatus {
		if err := parseErrorResponse(resp, bodyBytes); err != nil {
			return err
		}
		return ErrProviderUnavailable.wrap(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	if err := json.Unmarshal(bodyBytes, target); err != nil {
		return ErrProviderUnavailable.wrap(fmt.Errorf("failed to decode response: %w", err))
	}

	return nil
}
