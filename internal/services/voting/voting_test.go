// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package voting_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/oliverandrich/ballot/internal/models"
	"codeberg.org/oliverandrich/ballot/internal/repository"
	"codeberg.org/oliverandrich/ballot/internal/services/email"
	"codeberg.org/oliverandrich/ballot/internal/services/geocode"
	"codeberg.org/oliverandrich/ballot/internal/services/otp"
	"codeberg.org/oliverandrich/ballot/internal/services/voting"
	"codeberg.org/oliverandrich/ballot/internal/testutil"
)

type fakeVerifier struct {
	states map[string]*otp.Status
}

func (f *fakeVerifier) Status(_ context.Context, sessionID string) (*otp.Status, error) {
	if st, ok := f.states[sessionID]; ok {
		return st, nil
	}
	return &otp.Status{State: otp.StateNoCode, AttemptsRemaining: 3}, nil
}

type fakeGeocoder struct {
	coords *geocode.Coordinates
	err    error
}

func (g *fakeGeocoder) Resolve(context.Context, string, string, string) (*geocode.Coordinates, error) {
	return g.coords, g.err
}

type fakePublisher struct {
	mu     sync.Mutex
	keys   []string
	events []models.VoteEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, key string, event models.VoteEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.keys = append(p.keys, key)
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

type fakeMailer struct {
	mu       sync.Mutex
	receipts []email.Receipt
	err      error
}

func (m *fakeMailer) SendReceipt(_ context.Context, r email.Receipt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.receipts = append(m.receipts, r)
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.receipts)
}

type failingStore struct {
	*repository.Repository
}

func (failingStore) InsertVote(context.Context, *models.Vote) error {
	return errors.New("disk full")
}

type fixture struct {
	repo      *repository.Repository
	svc       *voting.Service
	geocoder  *fakeGeocoder
	publisher *fakePublisher
	mailer    *fakeMailer
	election  *models.Election
	candidate *models.Candidate
}

const verifiedSession = "verified"

func newFixture(t *testing.T) *fixture {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	f := &fixture{
		repo:      repo,
		geocoder:  &fakeGeocoder{coords: &geocode.Coordinates{Latitude: 52.52, Longitude: 13.40}},
		publisher: &fakePublisher{},
		mailer:    &fakeMailer{},
	}
	f.election = testutil.NewTestElection(t, repo, "Council")
	f.candidate = testutil.NewTestCandidate(t, repo, f.election.ID, "Grace", "Compilers")
	testutil.NewTestCandidate(t, repo, f.election.ID, "Ada", "Engines")
	f.svc = f.service(repo, f.geocoder)
	return f
}

func (f *fixture) service(store voting.Store, geocoder voting.Geocoder) *voting.Service {
	verifier := &fakeVerifier{states: map[string]*otp.Status{
		verifiedSession: {State: otp.StateVerified, Email: "ada@example.com", AttemptsUsed: 1},
		"pending":       {State: otp.StatePending, Email: "ada@example.com", AttemptsUsed: 1},
	}}
	return voting.NewService(store, verifier, geocoder, f.publisher, f.mailer)
}

func (f *fixture) ballot() voting.Ballot {
	return voting.Ballot{
		Identity: models.Identity{
			VoterID:   "V-1",
			VoterName: "Ada Lovelace",
			Email:     "ada@example.com",
			City:      "Berlin",
			State:     "Berlin",
			Country:   "Germany",
		},
		ElectionID:  f.election.ID,
		CandidateID: f.candidate.ID,
	}
}

func TestSubmitVote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	vote, err := f.svc.SubmitVote(ctx, verifiedSession, f.ballot())

	require.NoError(t, err)
	_, err = uuid.Parse(vote.ID)
	assert.NoError(t, err, "vote id should be a UUID")
	assert.Equal(t, "Grace", vote.CandidateName)
	assert.Equal(t, "Compilers", vote.Party)
	require.True(t, vote.HasLocation())
	assert.InDelta(t, 52.52, *vote.Latitude, 0.001)

	stored, err := f.repo.GetVote(ctx, vote.ID)
	require.NoError(t, err)
	assert.Equal(t, "V-1", stored.VoterID)

	require.Equal(t, 1, f.publisher.count())
	assert.Equal(t, "vote", f.publisher.keys[0])
	assert.Equal(t, vote.ID, f.publisher.events[0].VoteID)

	require.Equal(t, 1, f.mailer.count())
	receipt := f.mailer.receipts[0]
	assert.Equal(t, "ada@example.com", receipt.To)
	assert.Equal(t, "Council", receipt.ElectionName)
	assert.Equal(t, vote.ID, receipt.VoteID)
}

func TestSubmitVote_NotVerified(t *testing.T) {
	f := newFixture(t)

	for _, session := range []string{"pending", "unknown"} {
		_, err := f.svc.SubmitVote(context.Background(), session, f.ballot())
		assert.ErrorIs(t, err, voting.ErrNotVerified)
	}
	assert.Zero(t, f.publisher.count())
}

func TestSubmitVote_AlreadyVoted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SubmitVote(ctx, verifiedSession, f.ballot())
	require.NoError(t, err)

	_, err = f.svc.SubmitVote(ctx, verifiedSession, f.ballot())

	assert.ErrorIs(t, err, voting.ErrAlreadyVoted)
	count, err := f.repo.CountVotesByElection(ctx, f.election.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, 1, f.publisher.count())
	assert.Equal(t, 1, f.mailer.count())
}

func TestSubmitVote_SameVoterOtherElection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.SubmitVote(ctx, verifiedSession, f.ballot())
	require.NoError(t, err)

	other := testutil.NewTestElection(t, f.repo, "Mayor")
	c := testutil.NewTestCandidate(t, f.repo, other.ID, "Linus", "Kernels")
	b := f.ballot()
	b.ElectionID, b.CandidateID = other.ID, c.ID

	_, err = f.svc.SubmitVote(ctx, verifiedSession, b)

	assert.NoError(t, err)
}

func TestSubmitVote_ConcurrentDuplicates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 6
	var wg sync.WaitGroup
	var succeeded atomic.Int32
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.SubmitVote(ctx, verifiedSession, f.ballot())
			if err == nil {
				succeeded.Add(1)
				return
			}
			assert.ErrorIs(t, err, voting.ErrAlreadyVoted)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
	assert.Equal(t, 1, f.publisher.count())
}

func TestSubmitVote_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		edit  func(*voting.Ballot)
		field string
	}{
		{"missing voter id", func(b *voting.Ballot) { b.VoterID = " " }, "voter_id"},
		{"missing city", func(b *voting.Ballot) { b.City = "" }, "city"},
		{"missing election", func(b *voting.Ballot) { b.ElectionID = "" }, "election_id"},
		{"missing candidate", func(b *voting.Ballot) { b.CandidateID = "" }, "candidate_id"},
		{"unverified email", func(b *voting.Ballot) { b.Email = "eve@example.com" }, "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := f.ballot()
			tt.edit(&b)

			_, err := f.svc.SubmitVote(context.Background(), verifiedSession, b)

			var verr *models.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestSubmitVote_EmailDefaultsToVerifiedAddress(t *testing.T) {
	f := newFixture(t)
	b := f.ballot()
	b.Email = ""

	vote, err := f.svc.SubmitVote(context.Background(), verifiedSession, b)

	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", vote.Email)
}

func TestSubmitVote_UnknownElection(t *testing.T) {
	f := newFixture(t)
	b := f.ballot()
	b.ElectionID = "missing"

	_, err := f.svc.SubmitVote(context.Background(), verifiedSession, b)

	assert.ErrorIs(t, err, voting.ErrElectionNotFound)
}

func TestSubmitVote_NoCandidates(t *testing.T) {
	f := newFixture(t)
	empty := testutil.NewTestElection(t, f.repo, "Empty")
	b := f.ballot()
	b.ElectionID = empty.ID

	_, err := f.svc.SubmitVote(context.Background(), verifiedSession, b)

	assert.ErrorIs(t, err, voting.ErrNoCandidates)
}

func TestSubmitVote_CandidateOfOtherElection(t *testing.T) {
	f := newFixture(t)
	other := testutil.NewTestElection(t, f.repo, "Other")
	c := testutil.NewTestCandidate(t, f.repo, other.ID, "Linus", "Kernels")
	b := f.ballot()
	b.CandidateID = c.ID

	_, err := f.svc.SubmitVote(context.Background(), verifiedSession, b)

	assert.ErrorIs(t, err, voting.ErrCandidateNotFound)
}

func TestSubmitVote_GeocoderFailure(t *testing.T) {
	f := newFixture(t)
	f.geocoder.coords = nil
	f.geocoder.err = errors.New("service unavailable")

	vote, err := f.svc.SubmitVote(context.Background(), verifiedSession, f.ballot())

	require.NoError(t, err)
	assert.Nil(t, vote.Latitude)
	assert.Nil(t, vote.Longitude)
	assert.Nil(t, f.publisher.events[0].Latitude)
}

func TestSubmitVote_GeocoderTimesOutTwice(t *testing.T) {
	f := newFixture(t)
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	geocoder := geocode.New(geocode.Options{
		BaseURL:    srv.URL,
		Timeout:    30 * time.Millisecond,
		RetryDelay: time.Millisecond,
	})
	svc := f.service(f.repo, geocoder)

	vote, err := svc.SubmitVote(context.Background(), verifiedSession, f.ballot())

	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	assert.False(t, vote.HasLocation())
	_, err = uuid.Parse(vote.ID)
	assert.NoError(t, err)
}

func TestSubmitVote_PersistenceFailure(t *testing.T) {
	f := newFixture(t)
	svc := f.service(failingStore{f.repo}, f.geocoder)

	_, err := svc.SubmitVote(context.Background(), verifiedSession, f.ballot())

	assert.ErrorIs(t, err, voting.ErrSubmissionFailed)
	assert.Zero(t, f.publisher.count())
	assert.Zero(t, f.mailer.count())
}

func TestSubmitVote_PostCommitFailuresAreSwallowed(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")
	f.mailer.err = errors.New("smtp down")

	vote, err := f.svc.SubmitVote(context.Background(), verifiedSession, f.ballot())

	require.NoError(t, err)
	_, err = f.repo.GetVote(context.Background(), vote.ID)
	assert.NoError(t, err)
}

func TestCandidates(t *testing.T) {
	f := newFixture(t)

	candidates, err := f.svc.Candidates(context.Background(), f.election.ID)
	require.NoError(t, err)
	assert.Len(t, candidates, 2)

	_, err = f.svc.Candidates(context.Background(), "missing")
	assert.ErrorIs(t, err, voting.ErrElectionNotFound)

	elections, err := f.svc.Elections(context.Background())
	require.NoError(t, err)
	assert.Len(t, elections, 1)
}
