// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"codeberg.org/coursemix/coursemix/internal/config"
	"codeberg.org/coursemix/coursemix/internal/database"
	"codeberg.org/coursemix/coursemix/internal/gradecipher"
	"codeberg.org/coursemix/coursemix/internal/handlers"
	"codeberg.org/coursemix/coursemix/internal/i18n"
	"codeberg.org/coursemix/coursemix/internal/ratelimit"
	"codeberg.org/coursemix/coursemix/internal/repository"
	"codeberg.org/coursemix/coursemix/internal/services/auth"
	"codeberg.org/coursemix/coursemix/internal/services/codes"
	"codeberg.org/coursemix/coursemix/internal/services/email"
	"codeberg.org/coursemix/coursemix/internal/services/grades"
	"codeberg.org/coursemix/coursemix/internal/services/session"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
)

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	// Database, migrated on open
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := database.Close(db); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	// i18n
	if initErr := i18n.Init(); initErr != nil {
		return fmt.Errorf("failed to init i18n: %w", initErr)
	}

	e, cleanup, err := newEcho(ctx, cfg, db)
	if err != nil {
		return err
	}
	defer cleanup()

	return startWithGracefulShutdown(ctx, e, cfg)
}

// newEcho wires services, middleware and routes on an open database.
// The returned cleanup releases the Redis client, if any.
func newEcho(ctx context.Context, cfg *config.Config, db *sqlx.DB) (*echo.Echo, func(), error) {
	repo := repository.New(db)

	cipher := gradecipher.New(
		gradecipher.FirstSecret(gradecipher.EnvSecret, gradecipher.StaticSecret(cfg.Grades.Secret)),
		gradecipher.WithIterations(cfg.Grades.Iterations),
	)
	if !cipher.Configured() {
		slog.Warn("grade_encryption_disabled", "reason", "no grade encryption secret configured")
	}

	mailer, err := newMailer(&cfg.SMTP)
	if err != nil {
		return nil, nil, err
	}

	limiter, cleanup := newLimiter(ctx, cfg)

	secure := strings.HasPrefix(cfg.Server.BaseURL, "https://")
	sessMgr, err := session.NewManager(&cfg.Session, secure)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to create session manager: %w", err)
	}

	users := auth.NewService(repo)
	codeMgr := codes.NewManager(repo, codes.WithTTL(cfg.Codes.TTL))

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewValidator()

	setupMiddleware(e, cfg, AuthMiddleware(sessMgr, repo))
	setupRoutes(e, routeHandlers{
		base:   handlers.New(repo),
		auth:   handlers.NewAuth(users, codeMgr, sessMgr, mailer, limiter, cfg.Codes.TTL),
		grades: handlers.NewGrades(grades.NewService(repo, cipher)),
	})

	return e, cleanup, nil
}

// newMailer returns an SMTP sender, or a log-only sender when no host is set.
func newMailer(cfg *config.SMTPConfig) (email.Sender, error) {
	if !cfg.Enabled() {
		slog.Warn("email_delivery_disabled", "reason", "no smtp-host configured")
		return email.LogSender{}, nil
	}
	svc, err := email.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to configure email: %w", err)
	}
	return svc, nil
}

// newLimiter connects the Redis send limiter. Without Redis, or when it is
// unreachable at startup, sends are not throttled.
func newLimiter(ctx context.Context, cfg *config.Config) (ratelimit.Limiter, func()) {
	noop := func() {}
	if cfg.Redis.URL == "" || cfg.Codes.SendLimit <= 0 {
		return ratelimit.Noop{}, noop
	}

	client, err := ratelimit.NewClient(ctx, cfg.Redis.URL)
	if err != nil {
		slog.Warn("ratelimit_disabled", "error", err)
		return ratelimit.Noop{}, noop
	}

	limiter := ratelimit.NewRedisLimiter(client, "coursemix:send:", cfg.Codes.SendLimit, cfg.Codes.SendWindow)
	return limiter, func() {
		if err := client.Close(); err != nil {
			slog.Error("failed to close redis client", "error", err)
		}
	}
}

// startWithGracefulShutdown serves until ctx is cancelled, SIGINT or SIGTERM
// arrives, or a listener fails.
func startWithGracefulShutdown(ctx context.Context, e *echo.Echo, cfg *config.Config) error {
	tlsResult, err := SetupTLS(cfg)
	if err != nil {
		return fmt.Errorf("TLS setup failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 2)
	run := func(name string, start func() error) {
		go func() {
			if err := start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	var redirect *http.Server

	switch tlsResult.Mode {
	case TLSModeOff:
		run("http", func() error { return e.Start(addr) })
	case TLSModeManual:
		run("https", func() error { return startTLSServer(e, addr, tlsResult.TLSConfig) })
	case TLSModeACME:
		run("https", func() error { return startTLSServer(e, ":443", tlsResult.TLSConfig) })
		redirect = &http.Server{
			Addr:              ":80",
			Handler:           tlsResult.HTTPHandler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		run("acme redirect", redirect.ListenAndServe)
	}
	slog.Info("server_running", "url", cfg.Server.BaseURL, "tls", tlsResult.Mode)

	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}
	if redirect != nil {
		if err := redirect.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shutdown redirect server", "error", err)
		}
	}

	slog.Info("server stopped")
	return nil
}

// startTLSServer starts the Echo server with a custom TLS configuration.
func startTLSServer(e *echo.Echo, addr string, tlsConfig *tls.Config) error {
	lc := &net.ListenConfig{}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return err
	}
	e.TLSListener = tls.NewListener(ln, tlsConfig)
	e.TLSServer.TLSConfig = tlsConfig
	return e.Server.Serve(e.TLSListener)
}
