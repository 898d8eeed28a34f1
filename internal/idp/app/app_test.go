package app

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aussiebroadwan/consign/pkg/slogx"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Setenv("IDP_ISSUER", "https://idp.example.com")
	t.Setenv("IDP_AUDIENCE", "consign, tills ,")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("HOUSEKEEPING_INTERVAL", "5")
	t.Setenv("PORT", "not-a-number")

	cfg := LoadConfig()
	require.Equal(t, "https://idp.example.com", cfg.Issuer)
	require.Equal(t, []string{"consign", "tills"}, cfg.Audience)
	require.Equal(t, 2*time.Hour, cfg.TokenTTL)
	require.Equal(t, 5*time.Minute, cfg.HousekeepingInterval)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "log", cfg.Mailer)
	require.Equal(t, 5, cfg.MaxAttempts)
}

func testConfig(t *testing.T) Config {
	dir := t.TempDir()
	return Config{
		Issuer:               "consign-idp",
		DatabaseFile:         filepath.Join(dir, "idp.db"),
		SigningKeyFile:       filepath.Join(dir, "signing.pem"),
		SeedUsers:            "ada@example.com|Ada|admin",
		TokenTTL:             time.Hour,
		Mailer:               "log",
		LogLevel:             "error",
		Port:                 0,
		ShutdownGracePeriod:  time.Second,
		HousekeepingInterval: time.Hour,
	}
}

func TestNewServesHealth(t *testing.T) {
	cfg := testConfig(t)

	app, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.db.Close() })

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	users, err := app.userService.ListUsers(t.Context())
	require.NoError(t, err)
	require.Len(t, users, 1)

	_, err = os.Stat(cfg.SigningKeyFile)
	require.NoError(t, err, "signing key persisted")
}

func TestSigningKeyStableAcrossRestarts(t *testing.T) {
	cfg := testConfig(t)

	first, keys, err := InitSigningKey(cfg, discard())
	require.NoError(t, err)
	require.True(t, keys.IsReady())

	second, _, err := InitSigningKey(cfg, discard())
	require.NoError(t, err)
	require.Equal(t, first.KID(), second.KID())
	require.NotEmpty(t, first.KID())
}

func TestNewRejectsUnknownMailer(t *testing.T) {
	cfg := testConfig(t)
	cfg.Mailer = "pigeon"

	_, err := New(cfg)
	require.ErrorContains(t, err, "unknown mailer")

	cfg = testConfig(t)
	cfg.Mailer = "smtp"
	_, err = New(cfg)
	require.ErrorContains(t, err, "SMTP_ADDR")
}

func discard() *slog.Logger { return slogx.Discard() }
