package authsdk

import (
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/consign/pkg/jwtx"
)

// ErrIncompleteSession is returned when storing a session that lacks either
// its token or its user.
var ErrIncompleteSession = errors.New("authsdk: session requires both token and user")

// Session is the authenticated state granted after a successful OTP
// challenge. It is immutable; a new login produces a new Session.
type Session struct {
	// Token is the bearer credential sent on every protected call
	Token string `json:"token"`

	// User is the identity the token was issued to
	User User `json:"user"`

	// ExpiresAt is read from the token's exp claim once, when the session is
	// created
	ExpiresAt time.Time `json:"expires_at"`
}

// NewSession builds a Session, deriving ExpiresAt from the token.
func NewSession(token string, user User) (Session, error) {
	s := Session{Token: token, User: user}
	if err := s.Validate(); err != nil {
		return Session{}, err
	}

	exp, err := jwtx.ExpiresAt(token)
	if err != nil {
		return Session{}, fmt.Errorf("authsdk: session token: %w", err)
	}
	s.ExpiresAt = exp

	return s, nil
}

// Expired reports whether the session's recorded expiry has passed at now.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.After(now)
}

// Validate reports ErrIncompleteSession unless both token and user are set.
func (s Session) Validate() error {
	if s.Token == "" || (s.User.ID == "" && s.User.Email == "") {
		return ErrIncompleteSession
	}
	return nil
}
