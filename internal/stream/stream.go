// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package stream publishes vote events to the outside world.
package stream

import (
	"context"
	"errors"
	"log/slog"

	"codeberg.org/oliverandrich/ballot/internal/models"
)

// PartitionKey is the key every vote event is published with.
const PartitionKey = "vote"

// Publisher appends a vote event to a stream.
type Publisher interface {
	Publish(ctx context.Context, key string, event models.VoteEvent) error
}

// Nop discards events. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(_ context.Context, key string, event models.VoteEvent) error {
	slog.Debug("vote_event_discarded", "key", key, "vote_id", event.VoteID)
	return nil
}

// FanOut publishes to every publisher and joins their errors.
type FanOut []Publisher

func (f FanOut) Publish(ctx context.Context, key string, event models.VoteEvent) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, key, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
