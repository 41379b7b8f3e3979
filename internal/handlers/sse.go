// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/ballot/internal/sse"
)

// Events streams the vote events of an election as Server-Sent Events.
func (h *Handlers) Events(c echo.Context) error {
	ctx := c.Request().Context()
	electionID := c.Param("id")

	if _, err := h.analytics.Election(ctx, electionID); err != nil {
		return respondError(c, err)
	}

	// Set SSE headers
	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	res.WriteHeader(http.StatusOK)

	ch := h.hub.Register(electionID)
	defer h.hub.Unregister(electionID, ch)

	slog.Debug("sse_client_connected", "election_id", electionID)

	if _, err := res.Write([]byte(sse.Event{Name: "connected", Data: electionID}.String())); err != nil {
		return nil
	}
	res.Flush()

	// Heartbeat ticker to keep connection alive through proxies
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := res.Write([]byte(sse.Heartbeat)); err != nil {
				return nil // Client disconnected
			}
			res.Flush()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if _, err := res.Write([]byte(msg)); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}
