// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"

	"codeberg.org/oliverandrich/ballot/internal/config"
)

// setupLogger installs the process-wide logger.
func setupLogger(cfg config.LogConfig) {
	slog.SetDefault(newLogger(cfg, os.Stdout))
}

// newLogger writes colored text through tint, or one JSON object per line
// when the format is "json". Unknown levels fall back to info.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(w, &tint.Options{Level: level, NoColor: w != os.Stdout}))
}
