// Command otplogin signs in to a consign identity provider by email code and
// keeps the session in a local sqlite file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aussiebroadwan/consign/pkg/authsdk"
	"github.com/aussiebroadwan/consign/pkg/authsdk/sqlitestore"
	"github.com/aussiebroadwan/consign/pkg/clock"
	"github.com/aussiebroadwan/consign/pkg/slogx"
	"github.com/peterh/liner"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "otplogin: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slogx.New(slogx.Config{
		Service: "otplogin",
		Env:     "cli",
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Output:  os.Stderr,
	})

	store, err := sqlitestore.Open(ctx, cfg.SessionDB)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer store.Close()

	client := authsdk.NewSDKClient(cfg.IdPURL)
	client.HTTPClient.Timeout = cfg.HTTPTimeout

	auth, err := authsdk.NewAuthenticator(authsdk.Config{
		Provider:  client,
		Store:     store,
		Scheduler: clock.TickerScheduler{},
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	sh := newShell(line, os.Stdout, auth, client)
	return sh.run(ctx)
}
