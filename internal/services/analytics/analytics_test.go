// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package analytics_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/oliverandrich/ballot/internal/models"
	"codeberg.org/oliverandrich/ballot/internal/repository"
	"codeberg.org/oliverandrich/ballot/internal/services/analytics"
	"codeberg.org/oliverandrich/ballot/internal/testutil"
)

func geocodedVote(t *testing.T, repo *repository.Repository, c *models.Candidate, voterID string, lat, lon float64) {
	t.Helper()
	require.NoError(t, repo.InsertVote(context.Background(), &models.Vote{
		ID:            uuid.NewString(),
		VoterID:       voterID,
		VoterName:     "Voter",
		Email:         "voter@example.com",
		ElectionID:    c.ElectionID,
		CandidateID:   c.ID,
		CandidateName: c.Name,
		Party:         c.Party,
		City:          "Paris",
		State:         "Ile-de-France",
		Country:       "France",
		Latitude:      &lat,
		Longitude:     &lon,
		CreatedAt:     time.Now().UTC(),
	}))
}

func TestResults(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	svc := analytics.NewService(repo)

	election := testutil.NewTestElection(t, repo, "Council")
	ada := testutil.NewTestCandidate(t, repo, election.ID, "Ada", "Engines")
	grace := testutil.NewTestCandidate(t, repo, election.ID, "Grace", "Compilers")
	testutil.NewTestCandidate(t, repo, election.ID, "Zed", "Nobody")
	testutil.NewTestVote(t, repo, ada, "V-1")
	testutil.NewTestVote(t, repo, grace, "V-2")
	geocodedVote(t, repo, grace, "V-3", 48.85, 2.35)

	res, err := svc.Results(context.Background(), election.ID)

	require.NoError(t, err)
	assert.Equal(t, "Council", res.Election.Name)
	assert.Len(t, res.Candidates, 3)
	assert.Equal(t, int64(3), res.TotalVotes)
	require.Len(t, res.Tallies, 3)
	assert.Equal(t, "Grace", res.Tallies[0].Name)
	assert.InDelta(t, 2.0/3.0, res.Tallies[0].Share, 0.0001)
	assert.Equal(t, int64(0), res.Tallies[2].Votes)

	require.NotNil(t, res.Leader)
	assert.Equal(t, grace.ID, res.Leader.CandidateID)
	assert.False(t, res.Tie)

	require.Len(t, res.Regions, 2)
	assert.Equal(t, "Germany", res.Regions[0].Country)
	assert.Equal(t, int64(2), res.Regions[0].Votes)

	require.Len(t, res.Points, 1)
	assert.InDelta(t, 48.85, res.Points[0].Latitude, 0.001)
	assert.Equal(t, "Grace", res.Points[0].CandidateName)
}

func TestResults_NoVotes(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	svc := analytics.NewService(repo)
	election := testutil.NewTestElection(t, repo, "Council")
	testutil.NewTestCandidate(t, repo, election.ID, "Ada", "Engines")

	res, err := svc.Results(context.Background(), election.ID)

	require.NoError(t, err)
	assert.Zero(t, res.TotalVotes)
	assert.Nil(t, res.Leader)
	assert.Empty(t, res.Points)
	require.Len(t, res.Tallies, 1)
	assert.Zero(t, res.Tallies[0].Share)
}

func TestResults_Tie(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	svc := analytics.NewService(repo)
	election := testutil.NewTestElection(t, repo, "Council")
	testutil.NewTestVote(t, repo, testutil.NewTestCandidate(t, repo, election.ID, "Ada", "Engines"), "V-1")
	testutil.NewTestVote(t, repo, testutil.NewTestCandidate(t, repo, election.ID, "Grace", "Compilers"), "V-2")

	res, err := svc.Results(context.Background(), election.ID)

	require.NoError(t, err)
	assert.True(t, res.Tie)
}

func TestResults_UnknownElection(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	_, err := analytics.NewService(repo).Results(context.Background(), "missing")

	assert.ErrorIs(t, err, analytics.ErrElectionNotFound)
}

func TestExportVotes(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	svc := analytics.NewService(repo)
	election := testutil.NewTestElection(t, repo, "Council")
	grace := testutil.NewTestCandidate(t, repo, election.ID, "Grace", "Compilers")
	testutil.NewTestVote(t, repo, grace, "V-1")
	geocodedVote(t, repo, grace, "V-2", 48.85, 2.35)

	var buf bytes.Buffer
	require.NoError(t, svc.ExportVotes(context.Background(), election.ID, &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "vote_id", records[0][0])
	assert.Equal(t, "V-1", records[1][1])
	assert.Empty(t, records[1][9])
	assert.Equal(t, "48.850000", records[2][9])

	assert.ErrorIs(t, svc.ExportVotes(context.Background(), "missing", &buf), analytics.ErrElectionNotFound)
}
