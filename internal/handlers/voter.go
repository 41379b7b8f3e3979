// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/ballot/internal/appcontext"
)

// RequestCodeRequest is the request body for requesting a verification code.
type RequestCodeRequest struct {
	Email string `json:"email" form:"email"`
}

// RequestCode sends a verification code to the given address.
func (h *Handlers) RequestCode(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return respondError(c, err)
	}

	var req RequestCodeRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, errInvalidRequest)
	}

	status, err := h.otp.RequestCode(c.Request().Context(), id, req.Email)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

// VerifyCodeRequest is the request body for verifying a code.
type VerifyCodeRequest struct {
	Code string `json:"code" form:"code"`
}

// VerifyCode checks a code against the session's pending code.
func (h *Handlers) VerifyCode(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return respondError(c, err)
	}

	var req VerifyCodeRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, errInvalidRequest)
	}

	status, err := h.otp.VerifyCode(c.Request().Context(), id, req.Code)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

// VoterStatus returns the verification status of the session.
func (h *Handlers) VoterStatus(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return respondError(c, err)
	}

	status, err := h.otp.Status(c.Request().Context(), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, status)
}

// VoterLogout ends the verification session and starts a new one.
func (h *Handlers) VoterLogout(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return respondError(c, err)
	}

	if err := h.otp.Forget(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}

	next := h.sessions.New()
	next.Admin = appcontext.From(c).IsAdmin()
	if err := h.saveSession(c, next); err != nil {
		slog.Error("failed to create session", "error", err)
		return respondError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}
