// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/ballot/internal/appcontext"
	"codeberg.org/oliverandrich/ballot/internal/models"
	"codeberg.org/oliverandrich/ballot/internal/services/admin"
)

// RequireAdmin rejects requests without an administrator session.
func (h *Handlers) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !appcontext.From(c).IsAdmin() {
			return respondError(c, errForbidden)
		}
		return next(c)
	}
}

// LoginRequest is the request body for the admin login.
type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// AdminLogin starts an administrator session.
func (h *Handlers) AdminLogin(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return respondError(c, errInvalidRequest)
	}

	if err := h.auth.Login(req.Username, req.Password); err != nil {
		return respondError(c, err)
	}

	// New session ID on privilege change
	next := h.sessions.New()
	next.Admin = true
	if err := h.saveSession(c, next); err != nil {
		return respondError(c, err)
	}

	slog.Info("admin_logged_in", "username", req.Username)
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// AdminLogout clears the session cookie.
func (h *Handlers) AdminLogout(c echo.Context) error {
	c.SetCookie(h.sessions.Clear())
	if cc := appcontext.From(c); cc != nil {
		cc.Session = nil
	}
	return c.NoContent(http.StatusNoContent)
}

// AdminElections lists all elections.
func (h *Handlers) AdminElections(c echo.Context) error {
	elections, err := h.admin.Elections(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, elections)
}

// CreateElection stores a new election.
func (h *Handlers) CreateElection(c echo.Context) error {
	var in admin.ElectionInput
	if err := c.Bind(&in); err != nil {
		return respondError(c, errInvalidRequest)
	}

	election, err := h.admin.CreateElection(c.Request().Context(), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, election)
}

// AdminCandidates lists the candidates of an election.
func (h *Handlers) AdminCandidates(c echo.Context) error {
	candidates, err := h.admin.Candidates(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, candidates)
}

// AddCandidate stores a candidate from a multipart form with an optional
// "image" file.
func (h *Handlers) AddCandidate(c echo.Context) error {
	in := admin.CandidateInput{
		Name:  c.FormValue("name"),
		Party: c.FormValue("party"),
		Bio:   c.FormValue("bio"),
	}
	if raw := strings.TrimSpace(c.FormValue("age")); raw != "" {
		age, err := strconv.Atoi(raw)
		if err != nil {
			return respondError(c, &models.ValidationError{Field: "age", Reason: "must be a number"})
		}
		in.Age = age
	}

	var img *admin.Image
	file, err := c.FormFile("image")
	switch {
	case err == nil:
		src, openErr := file.Open()
		if openErr != nil {
			return respondError(c, openErr)
		}
		defer func() { _ = src.Close() }()
		img = &admin.Image{Filename: file.Filename, Body: src}
	case errors.Is(err, http.ErrMissingFile):
	default:
		return respondError(c, errInvalidRequest)
	}

	candidate, err := h.admin.AddCandidate(c.Request().Context(), c.Param("id"), in, img)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, candidate)
}

// ExportVotes downloads the votes of an election as CSV.
func (h *Handlers) ExportVotes(c echo.Context) error {
	ctx := c.Request().Context()
	electionID := c.Param("id")
	if _, err := h.analytics.Election(ctx, electionID); err != nil {
		return respondError(c, err)
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	res.Header().Set(echo.HeaderContentDisposition, `attachment; filename="votes-`+electionID+`.csv"`)
	res.WriteHeader(http.StatusOK)

	if err := h.analytics.ExportVotes(ctx, electionID, res); err != nil {
		slog.Error("vote_export_failed", "election_id", electionID, "error", err)
	}
	return nil
}
