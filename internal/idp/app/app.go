package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/consign/internal/idp/http"
	"github.com/aussiebroadwan/consign/internal/idp/service"
	"github.com/aussiebroadwan/consign/internal/idp/store"
	"github.com/aussiebroadwan/consign/internal/idp/store/drivers/sqlite"
	"github.com/aussiebroadwan/consign/pkg/clock"
	"github.com/aussiebroadwan/consign/pkg/jwtx"
	"github.com/aussiebroadwan/consign/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application wires the identity provider together.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	signer   jwtx.Signer
	keys     *jwtx.KeySet
	verifier jwtx.Verifier

	otpService          *service.OTPService
	userService         *service.UserService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New creates an Application with every dependency initialised.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "idp",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	signer, keys, err := InitSigningKey(app.cfg, app.logger)
	if err != nil {
		_ = app.db.Close()
		return nil, err
	}
	app.signer = signer
	app.keys = keys
	app.verifier = jwtx.NewCommonEdDSA(keys, jwtx.VerifyOptions{
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
		Leeway:   30 * time.Second,
	})

	mailer, err := app.newMailer()
	if err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initServices(mailer)

	if err := app.seedUsers(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	app.initHTTP()
	return app, nil
}

// Handler exposes the routed HTTP handler.
func (app *Application) Handler() http.Handler { return app.router }

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("idp starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains in-flight requests and releases resources.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down idp...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("idp stopped")
	return nil
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)",
		app.cfg.DatabaseFile,
	)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) newMailer() (service.Mailer, error) {
	switch app.cfg.Mailer {
	case "", "log":
		app.logger.Warn("codes are written to the log, not emailed")
		return &service.LogMailer{Logger: app.logger}, nil
	case "smtp":
		if app.cfg.SMTPAddr == "" {
			return nil, errors.New("IDP_MAILER=smtp needs SMTP_ADDR")
		}
		return &service.SMTPMailer{
			Addr:     app.cfg.SMTPAddr,
			From:     app.cfg.SMTPFrom,
			Username: app.cfg.SMTPUsername,
			Password: app.cfg.SMTPPassword,
		}, nil
	default:
		return nil, fmt.Errorf("unknown mailer %q", app.cfg.Mailer)
	}
}

func (app *Application) initServices(mailer service.Mailer) {
	clk := clock.System{}

	app.otpService = &service.OTPService{
		Store:          app.db,
		Signer:         app.signer,
		Mailer:         mailer,
		Clock:          clk,
		Logger:         app.logger,
		Issuer:         app.cfg.Issuer,
		Audience:       app.cfg.Audience,
		TokenTTL:       app.cfg.TokenTTL,
		CodeTTL:        app.cfg.CodeTTL,
		ResendCooldown: app.cfg.ResendCooldown,
		MaxAttempts:    app.cfg.MaxAttempts,
	}

	app.userService = &service.UserService{Store: app.db, Clock: clk}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		clk,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

func (app *Application) seedUsers() error {
	if app.cfg.SeedUsers == "" {
		return nil
	}

	n, err := app.userService.SeedUsers(context.Background(), app.cfg.SeedUsers)
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}
	app.logger.Info("seeded users", "created", n)
	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keys,
		app.verifier,
		BuildVersion,
		app.db,
		app.logger,
	)

	router.OTPService = app.otpService
	router.UserService = app.userService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
