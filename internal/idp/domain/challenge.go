package domain

import "time"

// OTPChallenge is the server side of one login attempt. Codes are HOTP
// values derived from Secret and Counter; a resend bumps Counter so the
// previous code stops working.
type OTPChallenge struct {
	ID        string
	UserID    string
	Email     string
	Secret    string // base32, never leaves the server
	Counter   uint64
	Attempts  int
	ExpiresAt time.Time

	// ResendAt is the earliest time a replacement code may be sent.
	ResendAt  time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Expired reports whether the current code can no longer be used.
func (c OTPChallenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// ResendIn returns how long until a resend is allowed; zero when it is.
func (c OTPChallenge) ResendIn(now time.Time) time.Duration {
	return max(c.ResendAt.Sub(now), 0)
}
