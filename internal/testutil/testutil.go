// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package testutil provides test helpers and fixtures.
package testutil

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/vinovest/sqlx"

	"codeberg.org/oliverandrich/ballot/internal/database"
	"codeberg.org/oliverandrich/ballot/internal/models"
	"codeberg.org/oliverandrich/ballot/internal/repository"
)

// NewTestDB creates an in-memory SQLite database for tests.
// Returns both the database connection and the repository for convenience.
func NewTestDB(t *testing.T) (*sqlx.DB, *repository.Repository) {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	repo := repository.New(db)
	return db, repo
}

// NewTestElection creates an election running for a week from today.
func NewTestElection(t *testing.T, repo *repository.Repository, name string) *models.Election {
	t.Helper()
	start := time.Now().UTC().Truncate(24 * time.Hour)
	election := &models.Election{
		Name:        name,
		Description: name + " description",
		StartDate:   start,
		EndDate:     start.AddDate(0, 0, 7),
	}
	require.NoError(t, repo.CreateElection(context.Background(), election))
	return election
}

// NewTestCandidate creates a candidate in the given election.
func NewTestCandidate(t *testing.T, repo *repository.Repository, electionID, name, party string) *models.Candidate {
	t.Helper()
	candidate := &models.Candidate{
		ElectionID: electionID,
		Name:       name,
		Party:      party,
		Age:        42,
	}
	require.NoError(t, repo.CreateCandidate(context.Background(), candidate))
	return candidate
}

// NewTestVote stores a vote for the candidate without geocoding.
func NewTestVote(t *testing.T, repo *repository.Repository, c *models.Candidate, voterID string) *models.Vote {
	t.Helper()
	vote := &models.Vote{
		ID:            uuid.NewString(),
		VoterID:       voterID,
		VoterName:     "Voter " + voterID,
		Email:         voterID + "@example.com",
		ElectionID:    c.ElectionID,
		CandidateID:   c.ID,
		CandidateName: c.Name,
		Party:         c.Party,
		City:          "Berlin",
		State:         "Berlin",
		Country:       "Germany",
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, repo.InsertVote(context.Background(), vote))
	return vote
}

// NewEchoContext creates an Echo context for handler tests.
func NewEchoContext(e *echo.Echo, method, path string, body io.Reader) (echo.Context, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(method, path, body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	return c, rec
}
