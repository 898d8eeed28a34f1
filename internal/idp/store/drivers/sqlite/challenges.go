package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/aussiebroadwan/consign/internal/idp/domain"
	"github.com/aussiebroadwan/consign/internal/idp/store"
)

type challengesRepo struct {
	q dbtx
}

const challengeColumns = `id, user_id, email, secret, counter, attempts,
	expires_at, resend_at, created_at, updated_at`

func (r *challengesRepo) GetChallengeByEmail(ctx context.Context, email string) (domain.OTPChallenge, error) {
	var (
		c                                 domain.OTPChallenge
		counter                           int64
		expires, resend, created, updated int64
	)

	err := r.q.QueryRowContext(ctx,
		`SELECT `+challengeColumns+` FROM otp_challenges WHERE email = ?`,
		strings.ToLower(strings.TrimSpace(email)),
	).Scan(&c.ID, &c.UserID, &c.Email, &c.Secret, &counter, &c.Attempts,
		&expires, &resend, &created, &updated)
	if err != nil {
		return domain.OTPChallenge{}, mapNotFound(err)
	}

	c.Counter = uint64(counter)
	c.ExpiresAt = fromMillis(expires)
	c.ResendAt = fromMillis(resend)
	c.CreatedAt = fromMillis(created)
	c.UpdatedAt = fromMillis(updated)
	return c, nil
}

func (r *challengesRepo) PutChallenge(ctx context.Context, c domain.OTPChallenge) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO otp_challenges (`+challengeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(email) DO UPDATE SET
			id         = excluded.id,
			user_id    = excluded.user_id,
			secret     = excluded.secret,
			counter    = excluded.counter,
			attempts   = excluded.attempts,
			expires_at = excluded.expires_at,
			resend_at  = excluded.resend_at,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		c.ID, c.UserID, strings.ToLower(strings.TrimSpace(c.Email)), c.Secret,
		int64(c.Counter), c.Attempts,
		toMillis(c.ExpiresAt), toMillis(c.ResendAt),
		toMillis(c.CreatedAt), toMillis(c.UpdatedAt),
	)
	return err
}

func (r *challengesRepo) IncrementAttempts(ctx context.Context, id string) (int, error) {
	var attempts int
	err := r.q.QueryRowContext(ctx,
		`UPDATE otp_challenges SET attempts = attempts + 1 WHERE id = ? RETURNING attempts`, id,
	).Scan(&attempts)
	if err != nil {
		return 0, mapNotFound(err)
	}
	return attempts, nil
}

func (r *challengesRepo) DeleteChallenge(ctx context.Context, id string) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM otp_challenges WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *challengesRepo) DeleteExpiredChallenges(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.q.ExecContext(ctx, `DELETE FROM otp_challenges WHERE expires_at <= ? AND resend_at <= ?`, toMillis(now), toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
