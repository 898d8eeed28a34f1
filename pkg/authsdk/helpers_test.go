package authsdk_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/consign/pkg/authsdk"
	"github.com/aussiebroadwan/consign/pkg/clock"
	"github.com/aussiebroadwan/consign/pkg/jwtx"
	"github.com/aussiebroadwan/consign/pkg/slogx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// makeToken returns a token for user expiring at exp. The signature is
// meaningless; the client never verifies it.
func makeToken(t *testing.T, user authsdk.User, exp time.Time) string {
	t.Helper()

	claims := jwtx.NewSessionClaims(user.ID, user.Email, user.Name, user.Role,
		0, "test-idp", nil, exp.Add(-time.Hour))
	claims.ExpiresAt = jwt.NewNumericDate(exp)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test"))
	require.NoError(t, err)
	return tok
}

// fakeProvider accepts exactly one code per email and issues tokens valid
// for ttl from clk's current time.
type fakeProvider struct {
	t   *testing.T
	clk clock.Clock
	ttl time.Duration

	mu         sync.Mutex
	codes      map[string]string
	requestErr error
	resendErr  error
	verifyErr  error
	badToken   bool
	requests   int
	resends    int
	verifies   int

	// resendGate, when set, blocks ResendCode until it is closed.
	resendGate chan struct{}
	// resendStarted is signalled when ResendCode begins.
	resendStarted chan struct{}
}

func newFakeProvider(t *testing.T, clk clock.Clock) *fakeProvider {
	return &fakeProvider{
		t:     t,
		clk:   clk,
		ttl:   8 * time.Hour,
		codes: make(map[string]string),
	}
}

func (p *fakeProvider) RequestCode(_ context.Context, email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests++
	if p.requestErr != nil {
		return p.requestErr
	}
	if _, ok := p.codes[email]; !ok {
		p.codes[email] = "123456"
	}
	return nil
}

func (p *fakeProvider) ResendCode(_ context.Context, email string) error {
	p.mu.Lock()
	gate, started := p.resendGate, p.resendStarted
	p.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.resends++
	return p.resendErr
}

func (p *fakeProvider) VerifyCode(_ context.Context, email, code string) (*authsdk.VerifyResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.verifies++
	if p.verifyErr != nil {
		return nil, p.verifyErr
	}
	if p.codes[email] != code {
		return nil, authsdk.ErrInvalidCode
	}

	user := authsdk.User{
		ID:    "u-" + strings.SplitN(email, "@", 2)[0],
		Name:  "Test User",
		Email: email,
		Role:  "clerk",
	}

	token := makeToken(p.t, user, p.clk.Now().Add(p.ttl))
	if p.badToken {
		token = "garbage"
	}

	return &authsdk.VerifyResponse{
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int(p.ttl.Seconds()),
		User:      user,
	}, nil
}

func (p *fakeProvider) setCode(email, code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.codes[email] = code
}

type harness struct {
	clk      *clock.Manual
	provider *fakeProvider
	store    *authsdk.MemoryStore
	auth     *authsdk.Authenticator
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	clk := clock.NewManual(testStart)
	provider := newFakeProvider(t, clk)
	store := authsdk.NewMemoryStore()

	auth, err := authsdk.NewAuthenticator(authsdk.Config{
		Provider:  provider,
		Store:     store,
		Scheduler: clk,
		Clock:     clk,
		Logger:    slogx.Discard(),
	})
	require.NoError(t, err)

	return &harness{clk: clk, provider: provider, store: store, auth: auth}
}

func (h *harness) login(t *testing.T, email string) authsdk.Session {
	t.Helper()

	ctx := context.Background()
	require.NoError(t, h.auth.StartLogin(ctx, email))
	sess, err := h.auth.SubmitCode(ctx, "123456")
	require.NoError(t, err)
	return sess
}

func (h *harness) seconds(t *testing.T) int {
	t.Helper()
	snap, ok := h.auth.Challenge()
	require.True(t, ok, "expected a pending challenge")
	return snap.SecondsRemaining
}
