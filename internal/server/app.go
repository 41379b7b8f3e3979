// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"codeberg.org/oliverandrich/ballot/internal/config"
	"codeberg.org/oliverandrich/ballot/internal/handlers"
	"codeberg.org/oliverandrich/ballot/internal/repository"
	"codeberg.org/oliverandrich/ballot/internal/services/admin"
	"codeberg.org/oliverandrich/ballot/internal/services/analytics"
	"codeberg.org/oliverandrich/ballot/internal/services/auth"
	"codeberg.org/oliverandrich/ballot/internal/services/email"
	"codeberg.org/oliverandrich/ballot/internal/services/geocode"
	"codeberg.org/oliverandrich/ballot/internal/services/otp"
	"codeberg.org/oliverandrich/ballot/internal/services/otp/redisstore"
	"codeberg.org/oliverandrich/ballot/internal/services/session"
	"codeberg.org/oliverandrich/ballot/internal/services/voting"
	"codeberg.org/oliverandrich/ballot/internal/sse"
	"codeberg.org/oliverandrich/ballot/internal/storage"
	"codeberg.org/oliverandrich/ballot/internal/stream"
)

// UploadsPrefix is the URL path local objects are served from.
const UploadsPrefix = "/uploads"

// App holds the wired services of a running server.
type App struct {
	Handlers *handlers.Handlers
	Sessions *session.Manager
	// UploadsDir is set when objects are stored on local disk.
	UploadsDir string
	closers    []func() error
}

// Close releases external connections.
func (a *App) Close() {
	for _, c := range a.closers {
		if err := c(); err != nil {
			slog.Error("failed to close resource", "error", err)
		}
	}
}

func newApp(ctx context.Context, cfg *config.Config, repo *repository.Repository) (*App, error) {
	app := &App{}

	sessions, err := session.NewManager(&cfg.Session, strings.HasPrefix(cfg.Server.BaseURL, "https://"))
	if err != nil {
		return nil, fmt.Errorf("failed to create session manager: %w", err)
	}
	app.Sessions = sessions

	mailer, err := email.NewService(&cfg.SMTP)
	if err != nil {
		return nil, fmt.Errorf("failed to create email service: %w", err)
	}

	otpStore, err := newOTPStore(ctx, cfg, repo, app)
	if err != nil {
		app.Close()
		return nil, err
	}
	otpSvc := otp.NewService(otpStore, mailer, otp.Options{
		TTL:         cfg.OTP.TTL,
		MaxRequests: cfg.OTP.MaxRequests,
	})

	objects, err := newObjectStore(ctx, cfg, app)
	if err != nil {
		app.Close()
		return nil, err
	}

	authSvc, err := auth.NewService(cfg.Admin.Username, cfg.Admin.Password)
	if err != nil {
		app.Close()
		return nil, err
	}

	hub := sse.NewHub()
	publisher := newPublisher(cfg, hub, app)

	geocoder := geocode.New(geocode.Options{
		BaseURL:   cfg.Geocoder.URL,
		UserAgent: cfg.Geocoder.UserAgent,
		Timeout:   cfg.Geocoder.Timeout,
	})

	app.Handlers = handlers.New(handlers.Deps{
		Sessions:  sessions,
		OTP:       otpSvc,
		Voting:    voting.NewService(repo, otpSvc, geocoder, publisher, mailer),
		Admin:     admin.NewService(repo, objects),
		Auth:      authSvc,
		Analytics: analytics.NewService(repo),
		Hub:       hub,
	})

	return app, nil
}

func newOTPStore(ctx context.Context, cfg *config.Config, repo *repository.Repository, app *App) (otp.Store, error) {
	if cfg.OTP.Store != "redis" {
		return otp.NewDBStore(repo), nil
	}

	client, err := redisstore.Connect(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	app.closers = append(app.closers, client.Close)

	slog.Info("verification sessions stored in redis")
	// Sessions outlive their code so the spent budget is remembered.
	return redisstore.New(client, sessionTTL(cfg)), nil
}

func newObjectStore(ctx context.Context, cfg *config.Config, app *App) (storage.ObjectStore, error) {
	if cfg.Storage.Bucket != "" {
		s3, err := storage.NewS3Store(ctx, storage.S3Options{
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			Endpoint:  cfg.Storage.Endpoint,
			PublicURL: cfg.Storage.PublicURL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create s3 store: %w", err)
		}
		return s3, nil
	}

	prefix := UploadsPrefix
	if cfg.Storage.PublicURL != "" {
		prefix = cfg.Storage.PublicURL
	}
	dir, err := storage.NewDirStore(cfg.Storage.Dir, prefix)
	if err != nil {
		return nil, err
	}
	app.UploadsDir = dir.Root()
	return dir, nil
}

func newPublisher(cfg *config.Config, hub *sse.Hub, app *App) stream.Publisher {
	live := stream.NewHubPublisher(hub)
	if len(cfg.Kafka.Brokers) == 0 {
		return live
	}

	kafka := stream.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	app.closers = append(app.closers, kafka.Close)
	return stream.FanOut{kafka, live}
}

func sessionTTL(cfg *config.Config) time.Duration {
	ttl := time.Duration(cfg.Session.MaxAge) * time.Second
	if ttl < cfg.OTP.TTL {
		ttl = cfg.OTP.TTL
	}
	return ttl
}
