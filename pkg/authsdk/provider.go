package authsdk

import "context"

// IdentityProvider is the contract the login flow needs from whoever issues
// codes and sessions. SDKClient implements it over HTTP; tests use fakes.
//
// Implementations should return *AuthError values (ErrInvalidCode for a
// rejected code) and put any human-readable message in the Description;
// any other error is reported to the user as ErrProviderUnavailable.
type IdentityProvider interface {
	// RequestCode dispatches a fresh code to email.
	RequestCode(ctx context.Context, email string) error

	// VerifyCode checks code for email and, when it matches, issues a session.
	VerifyCode(ctx context.Context, email, code string) (*VerifyResponse, error)

	// ResendCode dispatches a replacement code to email.
	ResendCode(ctx context.Context, email string) error
}
