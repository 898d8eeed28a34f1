package authsdk

import (
	"github.com/aussiebroadwan/consign/pkg/jwtx"
)

// ============================================================================
// Wire Error Type
// ============================================================================

// ErrorResponse is the error body the identity provider returns.
// Client code should use the AuthError values from errors.go instead.
type ErrorResponse struct {
	// Error is the machine-readable code (e.g. "invalid_code")
	Error string `json:"error" example:"invalid_code"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description" example:"the code is incorrect"`
}

// ============================================================================
// Identity Types
// ============================================================================

// User is the identity record returned by the identity provider after a
// successful verification.
type User struct {
	ID    string `json:"id" example:"01HZX3Q5R8ZK8V4M6J5N2C7D9E"`
	Name  string `json:"name" example:"Ann Example"`
	Email string `json:"email" example:"ann@example.com"`
	Role  string `json:"role" example:"clerk"`
}

// UserFromClaims builds a User from session-token claims.
func UserFromClaims(c jwtx.Claims) User {
	return User{
		ID:    c.Subject,
		Name:  c.Name,
		Email: c.Email,
		Role:  c.Role,
	}
}

// ============================================================================
// OTP Types
// ============================================================================

// CodeRequest asks the identity provider to dispatch (or re-dispatch) a code.
// Used by POST /v1/otp/request and POST /v1/otp/resend.
type CodeRequest struct {
	Email string `json:"email" example:"ann@example.com"`
}

// CodeAccepted is returned when a code has been dispatched.
type CodeAccepted struct {
	// Accepted is always true
	Accepted bool `json:"accepted" example:"true"`

	// ExpiresIn is how long the code stays valid, in seconds
	ExpiresIn int `json:"expires_in" example:"300"`
}

// VerifyRequest submits a code for the given email.
// Used by POST /v1/otp/verify.
type VerifyRequest struct {
	Email string `json:"email" example:"ann@example.com"`
	Code  string `json:"code" example:"123456"`
}

// VerifyResponse is the session payload issued after a successful verification.
type VerifyResponse struct {
	// Token is the bearer credential; its exp claim bounds the session
	Token string `json:"token"`

	// TokenType is always "Bearer"
	TokenType string `json:"token_type" example:"Bearer"`

	// ExpiresIn is the lifetime of Token in seconds
	ExpiresIn int `json:"expires_in" example:"28800"`

	// User is the authenticated identity
	User User `json:"user"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status" example:"ok"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	Database string `json:"database"`
	Signer   string `json:"signer"`
}
