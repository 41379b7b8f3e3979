// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/oliverandrich/ballot/internal/models"
	"codeberg.org/oliverandrich/ballot/internal/repository"
	"codeberg.org/oliverandrich/ballot/internal/testutil"
)

var testCandidate = models.Candidate{ElectionID: "nope", Name: "Nobody", Party: "None", Age: 30}

func newVote(c *models.Candidate, voterID string) *models.Vote {
	return &models.Vote{
		ID:            uuid.NewString(),
		VoterID:       voterID,
		VoterName:     "Voter",
		Email:         "voter@example.com",
		ElectionID:    c.ElectionID,
		CandidateID:   c.ID,
		CandidateName: c.Name,
		Party:         c.Party,
		City:          "Hamburg",
		State:         "Hamburg",
		Country:       "Germany",
		CreatedAt:     time.Now().UTC(),
	}
}

func TestInsertVote(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	election := testutil.NewTestElection(t, repo, "Council")
	c := testutil.NewTestCandidate(t, repo, election.ID, "Ada", "Engines")

	lat, lon := 53.55, 9.99
	v := newVote(c, "V-1")
	v.Latitude, v.Longitude = &lat, &lon
	require.NoError(t, repo.InsertVote(ctx, v))

	got, err := repo.GetVote(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "V-1", got.VoterID)
	require.True(t, got.HasLocation())
	assert.InDelta(t, 53.55, *got.Latitude, 0.0001)
}

func TestInsertVote_WithoutLocation(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	election := testutil.NewTestElection(t, repo, "Council")
	c := testutil.NewTestCandidate(t, repo, election.ID, "Ada", "Engines")
	v := testutil.NewTestVote(t, repo, c, "V-1")

	got, err := repo.GetVote(ctx, v.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Latitude)
	assert.Nil(t, got.Longitude)
}

func TestInsertVote_Duplicate(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	election := testutil.NewTestElection(t, repo, "Council")
	a := testutil.NewTestCandidate(t, repo, election.ID, "Ada", "Engines")
	b := testutil.NewTestCandidate(t, repo, election.ID, "Grace", "Compilers")
	testutil.NewTestVote(t, repo, a, "V-1")

	err := repo.InsertVote(ctx, newVote(b, "V-1"))

	assert.ErrorIs(t, err, repository.ErrDuplicate)
	count, err := repo.CountVotesByElection(ctx, election.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestInsertVote_SameVoterOtherElection(t *testing.T) {
	_, repo := testutil.NewTestDB(t)

	e1 := testutil.NewTestElection(t, repo, "One")
	e2 := testutil.NewTestElection(t, repo, "Two")
	testutil.NewTestVote(t, repo, testutil.NewTestCandidate(t, repo, e1.ID, "Ada", "Engines"), "V-1")

	err := repo.InsertVote(context.Background(),
		newVote(testutil.NewTestCandidate(t, repo, e2.ID, "Grace", "Compilers"), "V-1"))

	assert.NoError(t, err)
}

func TestInsertVote_ConcurrentSubmissions(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	election := testutil.NewTestElection(t, repo, "Council")
	c := testutil.NewTestCandidate(t, repo, election.ID, "Ada", "Engines")

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.InsertVote(ctx, newVote(c, "V-race"))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, repository.ErrDuplicate)
		}
	}
	assert.Equal(t, 1, succeeded)
}

func TestGetVoteByVoter(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	election := testutil.NewTestElection(t, repo, "Council")
	c := testutil.NewTestCandidate(t, repo, election.ID, "Ada", "Engines")
	v := testutil.NewTestVote(t, repo, c, "V-1")

	got, err := repo.GetVoteByVoterAndElection(ctx, "V-1", election.ID)
	require.NoError(t, err)
	assert.Equal(t, v.ID, got.ID)

	got, err = repo.GetVoteByVoterID(ctx, "V-1")
	require.NoError(t, err)
	assert.Equal(t, v.ID, got.ID)

	_, err = repo.GetVoteByVoterAndElection(ctx, "V-2", election.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestTallies(t *testing.T) {
	_, repo := testutil.NewTestDB(t)
	ctx := context.Background()

	election := testutil.NewTestElection(t, repo, "Council")
	a := testutil.NewTestCandidate(t, repo, election.ID, "Ada", "Engines")
	b := testutil.NewTestCandidate(t, repo, election.ID, "Grace", "Compilers")
	testutil.NewTestCandidate(t, repo, election.ID, "Zed", "Nobody")
	testutil.NewTestVote(t, repo, a, "V-1")
	testutil.NewTestVote(t, repo, b, "V-2")
	testutil.NewTestVote(t, repo, b, "V-3")

	tallies, err := repo.TallyByCandidate(ctx, election.ID)
	require.NoError(t, err)
	require.Len(t, tallies, 3)
	assert.Equal(t, "Grace", tallies[0].Name)
	assert.Equal(t, int64(2), tallies[0].Votes)
	assert.Equal(t, "Ada", tallies[1].Name)
	assert.Equal(t, int64(0), tallies[2].Votes)

	regions, err := repo.TallyByRegion(ctx, election.ID)
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, "Germany", regions[0].Country)
	assert.Equal(t, int64(3), regions[0].Votes)

	votes, err := repo.ListVotesByElection(ctx, election.ID)
	require.NoError(t, err)
	assert.Len(t, votes, 3)
}
