// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"codeberg.org/oliverandrich/ballot/internal/models"
	"codeberg.org/oliverandrich/ballot/internal/services/voting"
)

// ListElections returns all elections.
func (h *Handlers) ListElections(c echo.Context) error {
	elections, err := h.voting.Elections(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, elections)
}

// ListCandidates returns the candidates of an election.
func (h *Handlers) ListCandidates(c echo.Context) error {
	candidates, err := h.voting.Candidates(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, candidates)
}

// VoteResponse is returned for an accepted ballot.
type VoteResponse struct {
	VoteID string       `json:"vote_id"`
	Vote   *models.Vote `json:"vote"`
}

// SubmitVote records the ballot of a verified voter.
func (h *Handlers) SubmitVote(c echo.Context) error {
	id, err := sessionID(c)
	if err != nil {
		return respondError(c, err)
	}

	var ballot voting.Ballot
	if err := c.Bind(&ballot); err != nil {
		return respondError(c, errInvalidRequest)
	}

	vote, err := h.voting.SubmitVote(c.Request().Context(), id, ballot)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, VoteResponse{VoteID: vote.ID, Vote: vote})
}
