package authsdk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/consign/pkg/clock"
	"github.com/aussiebroadwan/consign/pkg/cryptox"
)

// Config wires an Authenticator to its collaborators.
type Config struct {
	// Provider issues and checks codes. Required.
	Provider IdentityProvider

	// Store holds the session. Defaults to a fresh MemoryStore.
	Store SessionStore

	// Scheduler drives the resend countdown once per second. When nil the
	// host must call Authenticator.Tick itself.
	Scheduler clock.Scheduler

	// Clock is used for token expiry checks. Defaults to clock.System.
	Clock clock.Clock

	// Base is the RoundTripper authorized calls are forwarded to. Defaults
	// to http.DefaultTransport.
	Base http.RoundTripper

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Authenticator is the login flow and session lifecycle behind a small
// surface for presentation code. At most one Challenge is pending at a time;
// starting a login discards whatever came before it.
type Authenticator struct {
	provider  IdentityProvider
	store     SessionStore
	scheduler clock.Scheduler
	clock     clock.Clock
	logger    *slog.Logger
	signal    *Signal
	transport *Transport

	mu        sync.Mutex
	challenge *Challenge
	ticker    clock.Stopper
}

// NewAuthenticator validates cfg and fills in defaults.
func NewAuthenticator(cfg Config) (*Authenticator, error) {
	if cfg.Provider == nil {
		return nil, errors.New("authsdk: identity provider is required")
	}
	if cfg.Store == nil {
		cfg.Store = NewMemoryStore()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.System{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	signal := NewSignal()

	return &Authenticator{
		provider:  cfg.Provider,
		store:     cfg.Store,
		scheduler: cfg.Scheduler,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
		signal:    signal,
		transport: &Transport{
			Base:   cfg.Base,
			Store:  cfg.Store,
			Clock:  cfg.Clock,
			Signal: signal,
			Logger: cfg.Logger,
		},
	}, nil
}

// ============================================================================
// Login flow
// ============================================================================

// StartLogin begins a new challenge for email and asks the provider to send
// the first code. Any previous challenge is discarded first.
func (a *Authenticator) StartLogin(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if !validEmail(email) {
		return ErrInvalidEmail
	}

	ch := newChallenge(email)
	a.replaceChallenge(ch)

	if err := a.provider.RequestCode(ctx, email); err != nil {
		ch.dispatchFailed()
		a.logger.Warn("otp_request_failed", "email", email, "err", err)
		return providerError(err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.challenge != ch {
		return ErrLoginSuperseded
	}

	ch.codeSent()
	if a.scheduler != nil {
		a.ticker = a.scheduler.Every(time.Second, ch.Tick)
	}

	a.logger.Info("otp_requested", "email", email)
	return nil
}

// SubmitCode checks code against the pending challenge. On success the
// session is stored, the challenge ends and the new Session is returned.
func (a *Authenticator) SubmitCode(ctx context.Context, code string) (Session, error) {
	ch := a.current()
	if ch == nil {
		return Session{}, ErrNoPendingLogin
	}

	code, err := ch.beginVerify(code)
	if err != nil {
		return Session{}, err
	}

	resp, err := a.provider.VerifyCode(ctx, ch.Email(), code)
	if err != nil {
		if errors.Is(err, ErrInvalidCode) {
			ch.rejectCode()
		}
		return Session{}, providerError(err)
	}

	sess, err := NewSession(resp.Token, resp.User)
	if err != nil {
		return Session{}, ErrProviderUnavailable.
			WithDescription("the sign-in service returned an unusable token").
			wrap(err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.challenge != ch {
		return Session{}, ErrLoginSuperseded
	}

	if err := a.store.Set(sess); err != nil {
		return Session{}, fmt.Errorf("authsdk: store session: %w", err)
	}

	ch.verified()
	a.dropChallengeLocked()

	a.logger.Info("session_started",
		"user_id", sess.User.ID,
		"email", sess.User.Email,
		"expires_at", sess.ExpiresAt,
		"token_fp", cryptox.FingerprintToken(sess.Token),
	)
	return sess, nil
}

// Resend asks the provider for a replacement code. It is only allowed once
// the countdown has reached zero, and only one resend may be in flight.
func (a *Authenticator) Resend(ctx context.Context) error {
	ch := a.current()
	if ch == nil {
		return ErrNoPendingLogin
	}

	if err := ch.beginResend(); err != nil {
		return err
	}

	sendErr := a.provider.ResendCode(ctx, ch.Email())
	finishErr := ch.finishResend(sendErr == nil)
	if sendErr != nil {
		a.logger.Warn("otp_resend_failed", "email", ch.Email(), "err", sendErr)
		return providerError(sendErr)
	}
	if finishErr != nil {
		return finishErr
	}

	a.logger.Info("otp_resent", "email", ch.Email())
	return nil
}

// Logout ends the session and abandons any pending challenge. It does not
// notify subscribers.
func (a *Authenticator) Logout() error {
	a.mu.Lock()
	if a.challenge != nil {
		a.challenge.discard()
	}
	a.dropChallengeLocked()
	a.mu.Unlock()

	cleared, err := a.store.Clear()
	if err != nil {
		return fmt.Errorf("authsdk: clear session: %w", err)
	}
	if cleared {
		a.logger.Info("logout")
	}
	return nil
}

// Cancel abandons the pending challenge and stops its countdown. The
// session, if any, is left alone. It reports whether a challenge was pending.
func (a *Authenticator) Cancel() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.challenge == nil {
		return false
	}
	a.challenge.discard()
	a.dropChallengeLocked()
	a.logger.Info("login_cancelled")
	return true
}

// Tick advances the pending challenge's countdown by one second. Hosts that
// configured a Scheduler never need to call it.
func (a *Authenticator) Tick() {
	if ch := a.current(); ch != nil {
		ch.Tick()
	}
}

// SetAttemptCode records the code as typed so far.
func (a *Authenticator) SetAttemptCode(code string) {
	if ch := a.current(); ch != nil {
		ch.SetAttemptCode(code)
	}
}

// Challenge returns the pending challenge, if there is one. A challenge whose
// first code could not be sent stays visible in StateFailed until the next
// StartLogin or Logout.
func (a *Authenticator) Challenge() (ChallengeSnapshot, bool) {
	ch := a.current()
	if ch == nil {
		return ChallengeSnapshot{}, false
	}
	return ch.Snapshot(), true
}

// ============================================================================
// Session
// ============================================================================

// CurrentUser returns the signed-in user.
func (a *Authenticator) CurrentUser() (User, bool) {
	sess, ok := a.store.Get()
	if !ok {
		return User{}, false
	}
	return sess.User, true
}

// Session returns the stored session.
func (a *Authenticator) Session() (Session, bool) {
	return a.store.Get()
}

// CheckExpiry runs the expiry procedure when the stored token has already
// expired, as the next authorized call would. It reports whether a usable
// session remains.
func (a *Authenticator) CheckExpiry() bool {
	sess, ok := a.store.Get()
	if !ok {
		return false
	}
	if sess.Expired(a.clock.Now()) {
		a.transport.Invalidate(sess, ReasonExpired)
		return false
	}
	return true
}

// Subscribe registers fn for session invalidations and returns the function
// that removes it.
func (a *Authenticator) Subscribe(fn func(Invalidation)) func() {
	return a.signal.Subscribe(fn)
}

// Transport returns the authorizing RoundTripper bound to this session.
func (a *Authenticator) Transport() *Transport {
	return a.transport
}

// HTTPClient returns a client whose requests carry the session token.
func (a *Authenticator) HTTPClient() *http.Client {
	return &http.Client{Transport: a.transport, Timeout: 30 * time.Second}
}

// ============================================================================
// Helpers
// ============================================================================

func (a *Authenticator) current() *Challenge {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.challenge
}

// replaceChallenge installs ch, discarding and stopping its predecessor.
func (a *Authenticator) replaceChallenge(ch *Challenge) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.challenge != nil {
		a.challenge.discard()
	}
	a.dropChallengeLocked()
	a.challenge = ch
}

func (a *Authenticator) dropChallengeLocked() {
	if a.ticker != nil {
		a.ticker.Stop()
		a.ticker = nil
	}
	a.challenge = nil
}

// providerError passes taxonomy errors through and reports anything else as
// the provider being unavailable.
func providerError(err error) error {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae
	}
	return ErrProviderUnavailable.wrap(err)
}

// validEmail requires a non-empty local part and domain around the last '@'.
func validEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	return at > 0 && at < len(email)-1
}
