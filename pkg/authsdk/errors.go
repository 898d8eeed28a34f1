package authsdk

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// ============================================================================
// Error Codes
// ============================================================================

const (
	ErrorCodeInvalidEmail            = "invalid_email"
	ErrorCodeProviderUnavailable     = "provider_unavailable"
	ErrorCodeInvalidCode             = "invalid_code"
	ErrorCodeResendNotYetAllowed     = "resend_not_allowed"
	ErrorCodeResendAlreadyInProgress = "resend_in_progress"
	ErrorCodeSessionExpired          = "session_expired"
	ErrorCodeUnauthorized            = "unauthorized"
	ErrorCodeNoPendingLogin          = "no_pending_login"
	ErrorCodeLoginSuperseded         = "login_superseded"

	// Codes the identity provider puts on the wire.
	ErrorCodeUnknownUser  = "unknown_user"
	ErrorCodeInvalidToken = "invalid_token"
	ErrorCodeServerError  = "server_error"
)

// ============================================================================
// AuthError
// ============================================================================

// AuthError is the error type returned by every operation in this package.
// Two AuthErrors match under errors.Is when their codes match, so a
// provider-specific description never gets in the way of
// errors.Is(err, authsdk.ErrInvalidCode).
type AuthError struct {
	// Code is the machine-readable kind (e.g. "invalid_code")
	Code string `json:"error"`

	// Description is human-readable and safe to show to the user. It is the
	// identity provider's own message when one was supplied.
	Description string `json:"error_description"`

	// Err is the underlying cause, if any (network error, decode error...)
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Unwrap exposes the underlying cause.
func (e *AuthError) Unwrap() error { return e.Err }

// Is matches any *AuthError with the same Code.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Code == e.Code
}

// WithDescription returns a copy of e with msg as its description. An empty
// msg keeps the default. Providers use it to pass their own wording through.
func (e *AuthError) WithDescription(msg string) *AuthError {
	out := *e
	if msg = strings.TrimSpace(msg); msg != "" {
		out.Description = msg
	}
	return &out
}

// wrap copies e with cause attached.
func (e *AuthError) wrap(cause error) *AuthError {
	out := *e
	out.Err = cause
	return &out
}

// ============================================================================
// Predefined Errors
// ============================================================================

var (
	// ErrInvalidEmail is returned when the email is empty or has no domain part.
	ErrInvalidEmail = &AuthError{
		Code:        ErrorCodeInvalidEmail,
		Description: "enter a valid email address",
	}

	// ErrProviderUnavailable is returned when the identity provider could not
	// dispatch or check a code.
	ErrProviderUnavailable = &AuthError{
		Code:        ErrorCodeProviderUnavailable,
		Description: "the sign-in service is unavailable, please try again",
	}

	// ErrInvalidCode is returned when the submitted code was rejected.
	ErrInvalidCode = &AuthError{
		Code:        ErrorCodeInvalidCode,
		Description: "the code is incorrect",
	}

	// ErrResendNotYetAllowed is returned when resend is requested before the
	// countdown has reached zero.
	ErrResendNotYetAllowed = &AuthError{
		Code:        ErrorCodeResendNotYetAllowed,
		Description: "a new code can't be requested yet",
	}

	// ErrResendAlreadyInProgress is returned when a resend is requested while
	// another one is still waiting on the identity provider.
	ErrResendAlreadyInProgress = &AuthError{
		Code:        ErrorCodeResendAlreadyInProgress,
		Description: "a new code is already being sent",
	}

	// ErrSessionExpired is returned, without touching the network, when the
	// session token is malformed or past its expiry.
	ErrSessionExpired = &AuthError{
		Code:        ErrorCodeSessionExpired,
		Description: "your session has expired, please log in again",
	}

	// ErrUnauthorized is returned when a call carrying the session token was
	// answered with 401.
	ErrUnauthorized = &AuthError{
		Code:        ErrorCodeUnauthorized,
		Description: "your session is no longer valid, please log in again",
	}

	// ErrNoPendingLogin is returned by SubmitCode and Resend when no login has
	// been started, or the last one already finished.
	ErrNoPendingLogin = &AuthError{
		Code:        ErrorCodeNoPendingLogin,
		Description: "start a login first",
	}

	// ErrLoginSuperseded is returned when a provider answer arrives for a
	// login that was replaced or abandoned while the call was in flight.
	ErrLoginSuperseded = &AuthError{
		Code:        ErrorCodeLoginSuperseded,
		Description: "this login was replaced by a newer one",
	}
)

// ============================================================================
// Error Parsing Helpers
// ============================================================================

// parseErrorResponse maps an identity provider error response onto the
// package taxonomy. Returns nil for 2xx responses.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp ErrorResponse
	_ = json.Unmarshal(body, &errResp)

	switch errResp.Error {
	case ErrorCodeInvalidCode:
		return ErrInvalidCode.WithDescription(errResp.ErrorDescription)
	case ErrorCodeResendNotYetAllowed:
		return ErrResendNotYetAllowed.WithDescription(errResp.ErrorDescription)
	case ErrorCodeInvalidEmail:
		return ErrInvalidEmail.WithDescription(errResp.ErrorDescription)
	}

	if errResp.ErrorDescription != "" {
		return ErrProviderUnavailable.WithDescription(errResp.ErrorDescription)
	}

	return ErrProviderUnavailable.wrap(
		fmt.Errorf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	)
}

// unauthorizedFromResponse builds ErrUnauthorized from a 401, preferring the
// server's JSON error_description and falling back to the RFC 6750
// WWW-Authenticate error_description parameter.
func unauthorizedFromResponse(resp *http.Response, body []byte) *AuthError {
	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.ErrorDescription != "" {
		return ErrUnauthorized.WithDescription(errResp.ErrorDescription)
	}

	return ErrUnauthorized.WithDescription(bearerErrorDescription(resp.Header.Get("WWW-Authenticate")))
}

// bearerErrorDescription pulls error_description="..." out of a
// WWW-Authenticate: Bearer challenge.
func bearerErrorDescription(header string) string {
	const key = `error_description="`
	i := strings.Index(header, key)
	if i < 0 {
		return ""
	}
	rest := header[i+len(key):]
	j := strings.IndexByte(rest, '"')
	if j < 0 {
		return ""
	}
	return rest[:j]
}
