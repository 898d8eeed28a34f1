package authsdk

import (
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/consign/pkg/clock"
	"github.com/aussiebroadwan/consign/pkg/cryptox"
	"github.com/aussiebroadwan/consign/pkg/jwtx"
)

// maxErrorBody caps how much of a 401 body is read for its description.
const maxErrorBody = 64 << 10

// Transport is an http.RoundTripper that authorizes outbound calls with the
// current session and ends the session when the token expires or a server
// rejects it.
//
// Per request:
//  1. No session: the request goes out untouched (public endpoints).
//  2. Session whose token is unreadable or has exp <= now: the session is
//     invalidated and ErrSessionExpired is returned; nothing is sent.
//  3. Otherwise the request is sent with "Authorization: Bearer <token>".
//     A 401 answer invalidates the session and yields ErrUnauthorized.
//
// Invalidation clears the store before broadcasting, and only the caller
// whose clear removed the session broadcasts, so concurrent callers racing
// on the same expired token produce exactly one Invalidation.
type Transport struct {
	Base   http.RoundTripper
	Store  SessionStore
	Clock  clock.Clock
	Signal *Signal
	Logger *slog.Logger
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	sess, ok := t.Store.Get()
	if !ok {
		return t.base().RoundTrip(req)
	}

	if jwtx.Expired(sess.Token, t.now()) {
		closeBody(req)
		t.invalidate(sess, ReasonExpired)
		return nil, ErrSessionExpired
	}

	authed := req.Clone(req.Context())
	authed.Header.Set("Authorization", "Bearer "+sess.Token)

	resp, err := t.base().RoundTrip(authed)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()

		t.invalidate(sess, ReasonUnauthorized)
		return nil, unauthorizedFromResponse(resp, body)
	}

	return resp, nil
}

// Invalidate runs the expiry procedure for sess as if the token had been
// found expired. It reports whether this call ended the session.
func (t *Transport) Invalidate(sess Session, reason InvalidationReason) bool {
	return t.invalidate(sess, reason)
}

func (t *Transport) invalidate(sess Session, reason InvalidationReason) bool {
	log := t.logger()

	cleared, err := t.Store.ClearToken(sess.Token)
	if err != nil {
		log.Error("failed to persist session clear", "err", err)
	}
	if !cleared {
		log.Debug("session already invalidated", "token_fp", cryptox.FingerprintToken(sess.Token))
		return false
	}

	log.Info("session_invalidated",
		"reason", string(reason),
		"user_id", sess.User.ID,
		"token_fp", cryptox.FingerprintToken(sess.Token),
	)

	if t.Signal != nil {
		t.Signal.Broadcast(Invalidation{Reason: reason, User: sess.User, At: t.now()})
	}
	return true
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) now() time.Time {
	if t.Clock != nil {
		return t.Clock.Now()
	}
	return time.Now()
}

func (t *Transport) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

// closeBody honours the RoundTripper contract of always closing the request
// body, including when the request is never sent.
func closeBody(req *http.Request) {
	if req.Body != nil {
		_ = req.Body.Close()
	}
}
