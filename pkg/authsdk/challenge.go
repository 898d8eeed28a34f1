package authsdk

import (
	"strings"
	"sync"
	"unicode/utf8"
)

const (
	// CodeLength is the number of characters in a one-time passcode.
	CodeLength = 6

	// ResendWindowSeconds is the countdown started whenever a code is sent.
	// A new code may only be requested once it reaches zero.
	ResendWindowSeconds = 300
)

// ChallengeState is the position of a Challenge in the login flow.
type ChallengeState int

const (
	// StateIdle: created, the first code has not been confirmed as sent.
	StateIdle ChallengeState = iota
	// StateAwaitingVerification: a code is out and the countdown is running.
	StateAwaitingVerification
	// StateCooldown: the countdown hit zero; a resend is allowed.
	StateCooldown
	// StateVerified: a code was accepted. Terminal.
	StateVerified
	// StateFailed: the first code could not be dispatched. Terminal.
	StateFailed
)

func (s ChallengeState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingVerification:
		return "awaiting_verification"
	case StateCooldown:
		return "cooldown"
	case StateVerified:
		return "verified"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ChallengeSnapshot is a point-in-time copy of a Challenge for display.
type ChallengeSnapshot struct {
	Email            string
	State            ChallengeState
	SecondsRemaining int
	AttemptCode      string
	ResendInFlight   bool
}

// ResendAllowed is exactly "the countdown has reached zero".
func (s ChallengeSnapshot) ResendAllowed() bool {
	return s.SecondsRemaining == 0 && (s.State == StateAwaitingVerification || s.State == StateCooldown)
}

// Challenge is the state of one login attempt. It performs no I/O and owns
// no goroutine: time only moves when Tick is called, and the provider calls
// are made by the Authenticator between the begin/finish transitions below.
type Challenge struct {
	mu sync.Mutex

	email            string
	state            ChallengeState
	secondsRemaining int
	attemptCode      string
	resendInFlight   bool

	// discarded is set once the challenge is verified, abandoned or replaced;
	// every later transition becomes a no-op or ErrLoginSuperseded.
	discarded bool
}

func newChallenge(email string) *Challenge {
	return &Challenge{email: email, state: StateIdle}
}

// Email returns the identity being authenticated.
func (c *Challenge) Email() string {
	return c.email
}

// Snapshot returns a copy of the current state.
func (c *Challenge) Snapshot() ChallengeSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	return ChallengeSnapshot{
		Email:            c.email,
		State:            c.state,
		SecondsRemaining: c.secondsRemaining,
		AttemptCode:      c.attemptCode,
		ResendInFlight:   c.resendInFlight,
	}
}

// Tick advances the countdown by one second. It is the only time-driven
// transition; at zero the challenge enters StateCooldown.
func (c *Challenge) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.discarded {
		return
	}
	if c.state != StateAwaitingVerification && c.state != StateCooldown {
		return
	}

	if c.secondsRemaining > 0 {
		c.secondsRemaining--
	}
	if c.secondsRemaining == 0 {
		c.state = StateCooldown
	}
}

// SetAttemptCode records what the user is currently typing.
func (c *Challenge) SetAttemptCode(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.discarded {
		c.attemptCode = code
	}
}

// codeSent moves the challenge into a fresh countdown.
func (c *Challenge) codeSent() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = StateAwaitingVerification
	c.secondsRemaining = ResendWindowSeconds
	c.attemptCode = ""
}

func (c *Challenge) dispatchFailed() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = StateFailed
	c.discarded = true
}

// pendingLocked reports whether codes may be submitted or resent.
func (c *Challenge) pendingLocked() error {
	if c.discarded {
		if c.state == StateFailed || c.state == StateVerified {
			return ErrNoPendingLogin
		}
		return ErrLoginSuperseded
	}
	if c.state != StateAwaitingVerification && c.state != StateCooldown {
		return ErrNoPendingLogin
	}
	return nil
}

// beginVerify validates code locally and records it as the attempt.
func (c *Challenge) beginVerify(code string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.pendingLocked(); err != nil {
		return "", err
	}

	code = strings.TrimSpace(code)
	if utf8.RuneCountInString(code) != CodeLength {
		c.attemptCode = ""
		return "", ErrInvalidCode.WithDescription("the code must be 6 characters")
	}

	c.attemptCode = code
	return code, nil
}

// rejectCode clears the attempt. State and countdown are left alone: the
// timer runs independently of verification attempts.
func (c *Challenge) rejectCode() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.discarded {
		c.attemptCode = ""
	}
}

func (c *Challenge) verified() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = StateVerified
	c.attemptCode = ""
	c.discarded = true
}

// beginResend checks the resend rules and marks a resend as in flight.
func (c *Challenge) beginResend() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.pendingLocked(); err != nil {
		return err
	}
	if c.resendInFlight {
		return ErrResendAlreadyInProgress
	}
	if c.secondsRemaining > 0 {
		return ErrResendNotYetAllowed
	}

	c.resendInFlight = true
	c.attemptCode = ""
	return nil
}

// finishResend completes a resend started by beginResend. On success the
// countdown restarts at the full window.
func (c *Challenge) finishResend(sent bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resendInFlight = false
	if c.discarded {
		return ErrLoginSuperseded
	}
	if sent {
		c.state = StateAwaitingVerification
		c.secondsRemaining = ResendWindowSeconds
		c.attemptCode = ""
	}
	return nil
}

func (c *Challenge) discard() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.discarded = true
	c.resendInFlight = false
}
