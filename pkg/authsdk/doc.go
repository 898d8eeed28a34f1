/*
Package authsdk implements the client side of a one-time-passcode login and
the bearer-token session that follows it.

# Overview

An Authenticator drives a single login at a time:

	auth, err := authsdk.NewAuthenticator(authsdk.Config{
		Provider:  authsdk.NewSDKClient("https://idp.example.com"),
		Store:     store,                  // MemoryStore or sqlitestore.Store
		Scheduler: clock.TickerScheduler{}, // drives the resend countdown
	})

	err = auth.StartLogin(ctx, "ada@example.com") // code is emailed
	sess, err := auth.SubmitCode(ctx, "123456")     // session stored

Until the code is accepted the pending Challenge counts down from
ResendWindowSeconds. Resend is refused while the countdown is above zero and
while another resend is still in flight. A rejected code clears the typed
code but leaves the countdown running.

# Authorized calls

Authenticator.HTTPClient returns a client whose Transport attaches the
session token to every request. Before each call the token's exp claim is
read (without verifying the signature). An expired or unreadable token ends
the session locally and the call fails with ErrSessionExpired without being
sent. A 401 answer ends the session too and fails with ErrUnauthorized.

Either way subscribers are told exactly once per session:

	unsubscribe := auth.Subscribe(func(ev authsdk.Invalidation) {
		fmt.Println("session expired, please log in again")
	})
	defer unsubscribe()

The store is always cleared before subscribers run. Logout clears the store
without notifying anyone.

# Errors

Every operation returns *AuthError values. Match them with errors.Is against
the predefined errors (ErrInvalidCode, ErrResendNotYetAllowed and so on);
the Description carries the identity provider's message when it sent one.

# Thread Safety

Authenticator, Transport, MemoryStore and Signal are safe for concurrent use.
Provider calls are never made while a lock is held.
*/
package authsdk
