package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aussiebroadwan/consign/pkg/authsdk"
	"github.com/peterh/liner"
)

// prompter is the part of *liner.State the shell uses.
type prompter interface {
	Prompt(prompt string) (string, error)
}

// historian is implemented by *liner.State. Codes are never added.
type historian interface {
	AppendHistory(item string)
}

type shell struct {
	in     prompter
	auth   *authsdk.Authenticator
	client *authsdk.SDKClient

	mu  sync.Mutex
	out io.Writer
}

func newShell(in prompter, out io.Writer, auth *authsdk.Authenticator, client *authsdk.SDKClient) *shell {
	s := &shell{in: in, out: out, auth: auth, client: client}
	auth.Subscribe(func(authsdk.Invalidation) {
		s.printf("session expired, please log in again\n")
	})
	return s
}

const helpText = `commands:
  login [email]   start a login; you will be asked for the code
  whoami          fetch your profile from the identity provider
  status          show the current session or pending login
  logout          forget the session
  quit            exit
`

func (s *shell) run(ctx context.Context) error {
	if user, ok := s.auth.CurrentUser(); ok && s.auth.CheckExpiry() {
		s.printf("signed in as %s <%s>\n", user.Name, user.Email)
	} else {
		s.printf("not signed in; type \"login\" to start\n")
	}

	for ctx.Err() == nil {
		input, err := s.in.Prompt("otplogin> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				s.printf("\n")
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if h, ok := s.in.(historian); ok {
			h.AppendHistory(input)
		}

		if quit := s.exec(ctx, input); quit {
			return nil
		}
	}
	return nil
}

// exec runs one command line and reports whether the shell should exit.
func (s *shell) exec(ctx context.Context, input string) bool {
	cmd, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(cmd) {
	case "login":
		s.login(ctx, arg)
	case "whoami":
		s.whoami(ctx)
	case "status":
		s.status()
	case "logout":
		if err := s.auth.Logout(); err != nil {
			s.printf("logout failed: %s\n", describe(err))
			return false
		}
		s.printf("signed out\n")
	case "help", "?":
		s.printf("%s", helpText)
	case "quit", "exit":
		return true
	default:
		s.printf("unknown command %q; type \"help\"\n", cmd)
	}
	return false
}

func (s *shell) login(ctx context.Context, email string) {
	if email == "" {
		var err error
		if email, err = s.in.Prompt("email: "); err != nil {
			return
		}
	}

	if err := s.auth.StartLogin(ctx, email); err != nil {
		s.printf("could not send a code: %s\n", describe(err))
		return
	}
	s.printf("a %d digit code was sent to %s\n", authsdk.CodeLength, strings.TrimSpace(email))
	s.awaitCode(ctx)
}

// awaitCode prompts until the code is accepted or the user cancels.
func (s *shell) awaitCode(ctx context.Context) {
	for ctx.Err() == nil {
		snap, ok := s.auth.Challenge()
		if !ok {
			return
		}

		input, err := s.in.Prompt(fmt.Sprintf("code [%s] (resend, cancel): ", countdown(snap)))
		if err != nil {
			s.auth.Cancel()
			return
		}
		input = strings.TrimSpace(input)

		switch strings.ToLower(input) {
		case "":
			continue
		case "cancel":
			s.auth.Cancel()
			s.printf("login cancelled\n")
			return
		case "resend":
			if err := s.auth.Resend(ctx); err != nil {
				s.printf("%s\n", describe(err))
				continue
			}
			s.printf("a new code was sent\n")
			continue
		}

		s.auth.SetAttemptCode(input)
		sess, err := s.auth.SubmitCode(ctx, input)
		if err != nil {
			s.printf("%s\n", describe(err))
			if errors.Is(err, authsdk.ErrNoPendingLogin) || errors.Is(err, authsdk.ErrLoginSuperseded) {
				return
			}
			continue
		}

		s.printf("signed in as %s <%s>, session valid until %s\n",
			sess.User.Name, sess.User.Email, sess.ExpiresAt.Local().Format("15:04 Mon 2 Jan"))
		return
	}
}

func (s *shell) whoami(ctx context.Context) {
	user, err := s.client.GetUserInfo(ctx, s.auth.HTTPClient())
	if err != nil {
		// Expiry and rejection are announced by the subscriber.
		if !errors.Is(err, authsdk.ErrSessionExpired) && !errors.Is(err, authsdk.ErrUnauthorized) {
			s.printf("%s\n", describe(err))
		}
		return
	}
	s.printf("%s <%s> role=%s id=%s\n", user.Name, user.Email, user.Role, user.ID)
}

func (s *shell) status() {
	if snap, ok := s.auth.Challenge(); ok {
		s.printf("login for %s: %s, %s\n", snap.Email, snap.State, countdown(snap))
	}
	sess, ok := s.auth.Session()
	if !ok {
		s.printf("not signed in\n")
		return
	}
	s.printf("signed in as %s <%s> until %s\n",
		sess.User.Name, sess.User.Email, sess.ExpiresAt.Local().Format("15:04 Mon 2 Jan"))
}

func (s *shell) printf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, format, args...)
}

// countdown renders the resend timer.
func countdown(snap authsdk.ChallengeSnapshot) string {
	switch {
	case snap.ResendInFlight:
		return "sending"
	case snap.ResendAllowed():
		return "resend available"
	default:
		return fmt.Sprintf("resend in %d:%02d", snap.SecondsRemaining/60, snap.SecondsRemaining%60)
	}
}

// describe prefers the user-facing description of an AuthError.
func describe(err error) string {
	var ae *authsdk.AuthError
	if errors.As(err, &ae) {
		return ae.Description
	}
	return err.Error()
}
