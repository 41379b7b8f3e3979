// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"codeberg.org/oliverandrich/ballot/internal/config"
	"codeberg.org/oliverandrich/ballot/internal/database"
	"codeberg.org/oliverandrich/ballot/internal/services/archive"
)

// Archive consumes the vote topic and writes every event to object storage.
func Archive(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log)

	if len(cfg.Kafka.Brokers) == 0 {
		return fmt.Errorf("archive requires KAFKA_BROKERS")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := &App{}
	defer app.Close()

	objects, err := newObjectStore(ctx, cfg, app)
	if err != nil {
		return err
	}

	reader := archive.NewKafkaReader(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID)
	app.closers = append(app.closers, reader.Close)

	slog.Info("archiver running", "topic", cfg.Kafka.Topic, "group_id", cfg.Kafka.GroupID)
	if err := archive.New(reader, objects, archive.Options{}).Run(ctx); err != nil {
		return err
	}

	slog.Info("archiver stopped")
	return nil
}

// Migrate applies pending migrations and reports the schema version.
func Migrate(_ context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log)

	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if cmd.Bool("down") {
		if err := database.MigrateDown(db.DB); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
	}

	version, err := database.Version(db.DB)
	if err != nil {
		return err
	}
	slog.Info("database schema", "version", version, "dsn", cfg.Database.DSN)
	return nil
}
