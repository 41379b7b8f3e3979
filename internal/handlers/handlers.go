// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package handlers implements the JSON API.
package handlers

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/ballot/internal/appcontext"
	"codeberg.org/oliverandrich/ballot/internal/services/admin"
	"codeberg.org/oliverandrich/ballot/internal/services/analytics"
	"codeberg.org/oliverandrich/ballot/internal/services/auth"
	"codeberg.org/oliverandrich/ballot/internal/services/otp"
	"codeberg.org/oliverandrich/ballot/internal/services/session"
	"codeberg.org/oliverandrich/ballot/internal/services/voting"
	"codeberg.org/oliverandrich/ballot/internal/sse"
)

// DefaultHeartbeat is the interval of SSE keep-alive comments.
const DefaultHeartbeat = 30 * time.Second

// Deps are the services the handlers call.
type Deps struct { //nolint:govet // fieldalignment not critical
	Sessions  *session.Manager
	OTP       *otp.Service
	Voting    *voting.Service
	Admin     *admin.Service
	Auth      *auth.Service
	Analytics *analytics.Service
	Hub       *sse.Hub
	Heartbeat time.Duration
}

// Handlers contains all HTTP handlers.
type Handlers struct { //nolint:govet // fieldalignment not critical
	sessions  *session.Manager
	otp       *otp.Service
	voting    *voting.Service
	admin     *admin.Service
	auth      *auth.Service
	analytics *analytics.Service
	hub       *sse.Hub
	heartbeat time.Duration
}

// New creates a new Handlers instance.
func New(d Deps) *Handlers {
	if d.Heartbeat <= 0 {
		d.Heartbeat = DefaultHeartbeat
	}
	return &Handlers{
		sessions:  d.Sessions,
		otp:       d.OTP,
		voting:    d.Voting,
		admin:     d.Admin,
		auth:      d.Auth,
		analytics: d.Analytics,
		hub:       d.Hub,
		heartbeat: d.Heartbeat,
	}
}

// HealthResponse reports liveness and the size of the live feed.
type HealthResponse struct {
	Status        string `json:"status"`
	LiveClients   int    `json:"live_clients"`
	LiveElections int    `json:"live_elections"`
}

// Health returns the health status.
func (h *Handlers) Health(c echo.Context) error {
	res := HealthResponse{Status: "ok"}
	if h.hub != nil {
		res.LiveClients = h.hub.ClientCount()
		res.LiveElections = h.hub.TopicCount()
	}
	return c.JSON(http.StatusOK, res)
}

// CloseStreams tells live feed clients the server is going away and ends
// their streams.
func (h *Handlers) CloseStreams() {
	if h.hub == nil {
		return
	}
	h.hub.Broadcast(sse.Event{Name: "shutdown"}.String())
	h.hub.Close()
}

// SessionResponse describes the caller's session.
type SessionResponse struct {
	CSRFToken    string      `json:"csrf_token"`
	Verification *otp.Status `json:"verification"`
	Admin        bool        `json:"admin"`
}

// Session returns the CSRF token and the verification status.
func (h *Handlers) Session(c echo.Context) error {
	cc := appcontext.From(c)
	if cc == nil || cc.Session == nil {
		return respondError(c, errNoSession)
	}

	status, err := h.otp.Status(c.Request().Context(), cc.SessionID())
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, SessionResponse{
		CSRFToken:    cc.CSRFToken(),
		Verification: status,
		Admin:        cc.IsAdmin(),
	})
}

// sessionID returns the caller's session ID or errNoSession.
func sessionID(c echo.Context) (string, error) {
	cc := appcontext.From(c)
	if cc == nil || cc.SessionID() == "" {
		return "", errNoSession
	}
	return cc.SessionID(), nil
}

// saveSession replaces the caller's session and sets its cookie.
func (h *Handlers) saveSession(c echo.Context, data *session.Data) error {
	cookie, err := h.sessions.Create(data)
	if err != nil {
		return err
	}
	c.SetCookie(cookie)
	if cc := appcontext.From(c); cc != nil {
		cc.Session = data
	}
	return nil
}
