package domain

import "time"

// User is an account that can sign in by email code. Accounts are
// provisioned by an operator; there is no self sign-up.
type User struct {
	ID        string
	Email     string // unique, stored lower-cased
	Name      string
	Role      string // e.g. "admin", "clerk"
	CreatedAt time.Time
	UpdatedAt time.Time
}
