// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package stream

import (
	"context"

	"codeberg.org/oliverandrich/ballot/internal/models"
	"codeberg.org/oliverandrich/ballot/internal/sse"
)

// EventName is the SSE event name used for vote events.
const EventName = "vote"

// HubPublisher forwards vote events to live feed subscribers of the election.
type HubPublisher struct {
	hub *sse.Hub
}

// NewHubPublisher creates a publisher feeding the SSE hub.
func NewHubPublisher(hub *sse.Hub) *HubPublisher {
	return &HubPublisher{hub: hub}
}

func (p *HubPublisher) Publish(_ context.Context, _ string, event models.VoteEvent) error {
	ev, err := sse.NewJSONEvent(EventName, event.VoteID, event)
	if err != nil {
		return err
	}
	p.hub.Publish(event.ElectionID, ev.String())
	return nil
}
