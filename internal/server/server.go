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
	"strconv"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"

	"codeberg.org/oliverandrich/ballot/internal/config"
	"codeberg.org/oliverandrich/ballot/internal/database"
	"codeberg.org/oliverandrich/ballot/internal/handlers"
	"codeberg.org/oliverandrich/ballot/internal/i18n"
	"codeberg.org/oliverandrich/ballot/internal/repository"
	"codeberg.org/oliverandrich/ballot/internal/telemetry"
)

const shutdownTimeout = 10 * time.Second

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
	)

	shutdownTracing, err := telemetry.Setup(ctx, &cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			slog.Error("failed to flush traces", "error", err)
		}
	}()

	// Database, migrated on open
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	// i18n
	if initErr := i18n.Init(); initErr != nil {
		return fmt.Errorf("failed to init i18n: %w", initErr)
	}

	repo := repository.New(db)

	app, err := newApp(ctx, cfg, repo)
	if err != nil {
		return err
	}
	defer app.Close()

	e := newEcho(cfg, app)

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go runJanitor(janitorCtx, repo, time.Duration(cfg.Session.MaxAge)*time.Second, time.Hour)

	return serve(ctx, e, cfg)
}

// newEcho creates the Echo instance with middleware and routes.
func newEcho(cfg *config.Config, app *App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handlers.ErrorHandler

	setupMiddleware(e, cfg, app.Sessions)
	setupRoutes(e, app)

	// Live feed streams would otherwise hold Shutdown until its timeout.
	e.Server.RegisterOnShutdown(app.Handlers.CloseStreams)
	e.TLSServer.RegisterOnShutdown(app.Handlers.CloseStreams)

	return e
}

// runJanitor periodically removes verification sessions older than maxAge.
func runJanitor(ctx context.Context, repo *repository.Repository, maxAge, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := repo.DeleteStaleVerificationSessions(ctx, time.Now().Add(-maxAge))
			if err != nil {
				slog.Error("failed to remove stale verification sessions", "error", err)
				continue
			}
			if removed > 0 {
				slog.Info("stale verification sessions removed", "count", removed)
			}
		}
	}
}

// serve runs e until ctx is cancelled or a termination signal arrives,
// then drains open connections.
func serve(ctx context.Context, e *echo.Echo, cfg *config.Config) error {
	tlsResult, err := SetupTLS(cfg)
	if err != nil {
		return fmt.Errorf("TLS setup failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	errChan := make(chan error, 1)
	go func() {
		slog.Info("server_listening", "url", cfg.Server.BaseURL, "tls", tlsResult.Mode)
		var err error
		if tlsResult.TLSConfig == nil {
			err = e.Start(addr)
		} else {
			err = startTLSServer(e, addr, tlsResult.TLSConfig)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}

// startTLSServer serves e on a TLS listener with the given configuration.
func startTLSServer(e *echo.Echo, addr string, tlsConfig *tls.Config) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return err
	}
	e.TLSListener = tls.NewListener(ln, tlsConfig)
	e.TLSServer.TLSConfig = tlsConfig
	e.TLSServer.Handler = e
	return e.TLSServer.Serve(e.TLSListener)
}
