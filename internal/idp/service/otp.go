package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aussiebroadwan/consign/internal/idp/domain"
	"github.com/aussiebroadwan/consign/internal/idp/store"
	"github.com/aussiebroadwan/consign/pkg/clock"
	"github.com/aussiebroadwan/consign/pkg/cryptox"
	"github.com/aussiebroadwan/consign/pkg/idx"
	"github.com/aussiebroadwan/consign/pkg/jwtx"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
)

const (
	DefaultCodeTTL        = 10 * time.Minute
	DefaultResendCooldown = 300 * time.Second
	DefaultMaxAttempts    = 5
)

var (
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrUnknownUser     = errors.New("no account for that email address")
	ErrNoChallenge     = errors.New("no code has been requested for this address")
	ErrInvalidCode     = errors.New("the code is incorrect")
	ErrCodeExpired     = errors.New("the code has expired, request a new one")
	ErrTooManyAttempts = errors.New("too many incorrect codes, request a new one")
)

// ResendTooSoonError is returned when a resend comes before the cooldown
// has elapsed.
type ResendTooSoonError struct {
	RetryIn time.Duration
}

func (e *ResendTooSoonError) Error() string {
	return fmt.Sprintf("a new code can be requested in %d seconds", int(e.RetryIn.Round(time.Second).Seconds()))
}

var hotpOpts = hotp.ValidateOpts{
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// IssuedSession is what a successful verification produces.
type IssuedSession struct {
	Token     string
	ExpiresIn time.Duration
	User      domain.User
}

// OTPService issues, resends and verifies email codes and mints session
// tokens for verified users.
type OTPService struct {
	Store  store.Store
	Signer jwtx.Signer
	Mailer Mailer
	Clock  clock.Clock
	Logger *slog.Logger

	Issuer   string
	Audience []string
	TokenTTL time.Duration

	CodeTTL        time.Duration
	ResendCooldown time.Duration
	MaxAttempts    int
}

// RequestCode starts a fresh challenge for email, replacing any pending one,
// and mails the first code.
func (s *OTPService) RequestCode(ctx context.Context, email string) (domain.OTPChallenge, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return domain.OTPChallenge{}, err
	}

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return domain.OTPChallenge{}, ErrUnknownUser
	}
	if err != nil {
		return domain.OTPChallenge{}, fmt.Errorf("load user: %w", err)
	}

	secret, err := cryptox.GenerateOTPSecret()
	if err != nil {
		return domain.OTPChallenge{}, fmt.Errorf("generate secret: %w", err)
	}

	now := s.Clock.Now()
	ch := domain.OTPChallenge{
		ID:        idx.NewAt(now).String(),
		UserID:    user.ID,
		Email:     email,
		Secret:    secret,
		ExpiresAt: now.Add(s.codeTTL()),
		ResendAt:  now.Add(s.resendCooldown()),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.Store.Challenges().PutChallenge(ctx, ch); err != nil {
		return domain.OTPChallenge{}, fmt.Errorf("store challenge: %w", err)
	}

	if err := s.send(ctx, ch); err != nil {
		return domain.OTPChallenge{}, err
	}

	s.Logger.Info("otp_requested", "user_id", user.ID, "challenge_id", ch.ID)
	return ch, nil
}

// ResendCode mails a replacement code once the cooldown has passed. The
// previous code stops working and the attempt count resets. Expired and
// burned challenges can be resent too; when none is left a fresh one is
// started.
func (s *OTPService) ResendCode(ctx context.Context, email string) (domain.OTPChallenge, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return domain.OTPChallenge{}, err
	}

	ch, err := s.Store.Challenges().GetChallengeByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		// Housekeeping already removed it, so its cooldown has passed.
		return s.RequestCode(ctx, email)
	}
	if err != nil {
		return domain.OTPChallenge{}, fmt.Errorf("load challenge: %w", err)
	}

	now := s.Clock.Now()
	if wait := ch.ResendIn(now); wait > 0 {
		return domain.OTPChallenge{}, &ResendTooSoonError{RetryIn: wait}
	}

	ch.Counter++
	ch.Attempts = 0
	ch.ExpiresAt = now.Add(s.codeTTL())
	ch.ResendAt = now.Add(s.resendCooldown())
	ch.UpdatedAt = now

	if err := s.Store.Challenges().PutChallenge(ctx, ch); err != nil {
		return domain.OTPChallenge{}, fmt.Errorf("store challenge: %w", err)
	}

	if err := s.send(ctx, ch); err != nil {
		return domain.OTPChallenge{}, err
	}

	s.Logger.Info("otp_resent", "user_id", ch.UserID, "challenge_id", ch.ID, "counter", ch.Counter)
	return ch, nil
}

// VerifyCode checks code and, when it matches, consumes the challenge and
// signs a session token. Each wrong code counts against MaxAttempts; once
// they run out the challenge refuses every code until it is resent.
func (s *OTPService) VerifyCode(ctx context.Context, email, code string) (IssuedSession, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return IssuedSession{}, err
	}
	code = strings.TrimSpace(code)
	now := s.Clock.Now()

	// Rejections still commit so the attempt count sticks; they are
	// reported through outcome rather than rolling the transaction back.
	var (
		user    domain.User
		outcome error
	)
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		ch, err := tx.Challenges().GetChallengeByEmail(ctx, email)
		if errors.Is(err, store.ErrNotFound) {
			outcome = ErrNoChallenge
			return nil
		}
		if err != nil {
			return fmt.Errorf("load challenge: %w", err)
		}

		// Burned and expired rows stay until housekeeping so a resend
		// still honours their cooldown.
		if ch.Attempts >= s.maxAttempts() {
			outcome = ErrTooManyAttempts
			return nil
		}
		if ch.Expired(now) {
			outcome = ErrCodeExpired
			return nil
		}

		if valid, _ := hotp.ValidateCustom(code, ch.Counter, ch.Secret, hotpOpts); !valid {
			attempts, err := tx.Challenges().IncrementAttempts(ctx, ch.ID)
			if err != nil {
				return fmt.Errorf("record attempt: %w", err)
			}
			outcome = ErrInvalidCode
			if attempts >= s.maxAttempts() {
				outcome = ErrTooManyAttempts
			}
			return nil
		}

		if err := tx.Challenges().DeleteChallenge(ctx, ch.ID); err != nil {
			return fmt.Errorf("consume challenge: %w", err)
		}

		user, err = tx.Users().GetUserByID(ctx, ch.UserID)
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		return nil
	})
	if err != nil {
		return IssuedSession{}, err
	}
	if outcome != nil {
		s.Logger.Info("otp_rejected", "email", email, "reason", outcome.Error())
		return IssuedSession{}, outcome
	}

	ttl := s.TokenTTL
	if ttl <= 0 {
		ttl = jwtx.DefaultSessionTTL
	}

	claims := jwtx.NewSessionClaims(user.ID, user.Email, user.Name, user.Role, ttl, s.Issuer, s.Audience, now)
	token, err := s.Signer.Sign(claims)
	if err != nil {
		return IssuedSession{}, fmt.Errorf("sign token: %w", err)
	}

	s.Logger.Info("session_issued",
		"user_id", user.ID,
		"jti", claims.ID,
		"token_fp", cryptox.FingerprintToken(token),
	)
	return IssuedSession{Token: token, ExpiresIn: ttl, User: user}, nil
}

// CurrentCode returns the code valid for ch right now. Tests use it in place
// of reading mail.
func CurrentCode(ch domain.OTPChallenge) (string, error) {
	return hotp.GenerateCodeCustom(ch.Secret, ch.Counter, hotpOpts)
}

func (s *OTPService) send(ctx context.Context, ch domain.OTPChallenge) error {
	code, err := CurrentCode(ch)
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	if err := s.Mailer.SendCode(ctx, ch.Email, code, ch.ExpiresAt); err != nil {
		return fmt.Errorf("send code: %w", err)
	}
	return nil
}

func (s *OTPService) codeTTL() time.Duration {
	if s.CodeTTL > 0 {
		return s.CodeTTL
	}
	return DefaultCodeTTL
}

func (s *OTPService) resendCooldown() time.Duration {
	if s.ResendCooldown > 0 {
		return s.ResendCooldown
	}
	return DefaultResendCooldown
}

func (s *OTPService) maxAttempts() int {
	if s.MaxAttempts > 0 {
		return s.MaxAttempts
	}
	return DefaultMaxAttempts
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return "", ErrInvalidEmail
	}
	return email, nil
}
