package store

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/consign/internal/idp/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")
)

// Store is the root data access interface. Drivers expose one repository
// per aggregate so multi-step work can be scoped to a transaction.
type Store interface {
	Users() Users
	Challenges() Challenges

	ApplyMigrations() error

	// WithTx runs fn in a transaction, committing when it returns nil.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
	Ping(ctx context.Context) error
}

// Tx is a Store scoped to one transaction.
type Tx interface {
	Users() Users
	Challenges() Challenges
}

type Users interface {
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByEmail matches case-insensitively.
	GetUserByEmail(ctx context.Context, email string) (domain.User, error)

	// CreateUser inserts u; ErrAlreadyExists when the email is taken.
	CreateUser(ctx context.Context, u domain.User) error

	ListUsers(ctx context.Context) ([]domain.User, error)
}

type Challenges interface {
	// GetChallengeByEmail returns the pending challenge for email.
	GetChallengeByEmail(ctx context.Context, email string) (domain.OTPChallenge, error)

	// PutChallenge stores c as the only pending challenge for its email,
	// replacing any earlier one.
	PutChallenge(ctx context.Context, c domain.OTPChallenge) error

	// IncrementAttempts records a failed verification and returns the new
	// attempt count.
	IncrementAttempts(ctx context.Context, id string) (int, error)

	DeleteChallenge(ctx context.Context, id string) error

	// DeleteExpiredChallenges removes challenges whose code expired and
	// whose resend cooldown passed before now, returning how many were
	// removed.
	DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error)
}
