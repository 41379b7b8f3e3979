// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package voting accepts ballots from verified voters.
package voting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"codeberg.org/oliverandrich/ballot/internal/models"
	"codeberg.org/oliverandrich/ballot/internal/repository"
	"codeberg.org/oliverandrich/ballot/internal/services/email"
	"codeberg.org/oliverandrich/ballot/internal/services/geocode"
	"codeberg.org/oliverandrich/ballot/internal/services/otp"
	"codeberg.org/oliverandrich/ballot/internal/stream"
)

var (
	ErrNotVerified        = errors.New("session is not verified")
	ErrAlreadyVoted       = errors.New("voter has already voted in this election")
	ErrNoCandidates       = errors.New("no candidates available")
	ErrElectionNotFound   = errors.New("election not found")
	ErrCandidateNotFound  = errors.New("candidate not found")
	ErrSubmissionFailed   = errors.New("vote submission failed")
	errEmailNotVerified   = &models.ValidationError{Field: "email", Reason: "must match the verified address"}
	errElectionIDRequired = &models.ValidationError{Field: "election_id", Reason: "is required"}
	errCandidateRequired  = &models.ValidationError{Field: "candidate_id", Reason: "is required"}
)

// Store is the persistence the guard needs.
type Store interface {
	ListElections(ctx context.Context) ([]models.Election, error)
	GetElection(ctx context.Context, id string) (*models.Election, error)
	GetCandidate(ctx context.Context, id string) (*models.Candidate, error)
	ListCandidatesByElection(ctx context.Context, electionID string) ([]models.Candidate, error)
	GetVoteByVoterAndElection(ctx context.Context, voterID, electionID string) (*models.Vote, error)
	InsertVote(ctx context.Context, v *models.Vote) error
}

// Verifier reports the verification state of a browser session.
type Verifier interface {
	Status(ctx context.Context, sessionID string) (*otp.Status, error)
}

// Geocoder resolves a place to coordinates.
type Geocoder interface {
	Resolve(ctx context.Context, city, state, country string) (*geocode.Coordinates, error)
}

// ReceiptMailer confirms a recorded vote to the voter.
type ReceiptMailer interface {
	SendReceipt(ctx context.Context, r email.Receipt) error
}

// Ballot is a voter's submission.
type Ballot struct {
	models.Identity
	ElectionID  string `json:"election_id"`
	CandidateID string `json:"candidate_id"`
}

// Service runs the vote submission guard.
type Service struct {
	store     Store
	verifier  Verifier
	geocoder  Geocoder
	publisher stream.Publisher
	mailer    ReceiptMailer
	now       func() time.Time
	tracer    trace.Tracer
}

// NewService creates a new voting service.
func NewService(store Store, verifier Verifier, geocoder Geocoder, publisher stream.Publisher, mailer ReceiptMailer) *Service {
	return &Service{
		store:     store,
		verifier:  verifier,
		geocoder:  geocoder,
		publisher: publisher,
		mailer:    mailer,
		now:       time.Now,
		tracer:    otel.Tracer("codeberg.org/oliverandrich/ballot/internal/services/voting"),
	}
}

// Elections lists all elections.
func (s *Service) Elections(ctx context.Context) ([]models.Election, error) {
	return s.store.ListElections(ctx)
}

// Candidates lists the candidates of an existing election.
func (s *Service) Candidates(ctx context.Context, electionID string) ([]models.Candidate, error) {
	if _, err := s.getElection(ctx, electionID); err != nil {
		return nil, err
	}
	return s.store.ListCandidatesByElection(ctx, electionID)
}

// SubmitVote records the ballot of a verified session. Publishing the
// event and mailing the receipt happen after the vote is stored; their
// failures are logged and do not fail the submission.
func (s *Service) SubmitVote(ctx context.Context, sessionID string, b Ballot) (*models.Vote, error) {
	ctx, span := s.tracer.Start(ctx, "voting.SubmitVote")
	defer span.End()

	vote, err := s.submit(ctx, sessionID, b)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("vote.id", vote.ID),
		attribute.String("vote.election_id", vote.ElectionID),
		attribute.Bool("vote.geocoded", vote.HasLocation()),
	)
	return vote, nil
}

func (s *Service) submit(ctx context.Context, sessionID string, b Ballot) (*models.Vote, error) {
	status, err := s.verifier.Status(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("verification status: %w", err)
	}
	if status.State != otp.StateVerified {
		return nil, ErrNotVerified
	}

	b.Normalize()
	b.ElectionID = strings.TrimSpace(b.ElectionID)
	b.CandidateID = strings.TrimSpace(b.CandidateID)
	if b.Email == "" {
		b.Email = status.Email
	} else if !strings.EqualFold(b.Email, status.Email) {
		return nil, errEmailNotVerified
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if b.ElectionID == "" {
		return nil, errElectionIDRequired
	}
	if b.CandidateID == "" {
		return nil, errCandidateRequired
	}

	election, candidate, err := s.resolveChoice(ctx, b.ElectionID, b.CandidateID)
	if err != nil {
		return nil, err
	}

	if _, err := s.store.GetVoteByVoterAndElection(ctx, b.VoterID, b.ElectionID); err == nil {
		slog.Info("vote_rejected_duplicate", "voter_id", b.VoterID, "election_id", b.ElectionID)
		return nil, ErrAlreadyVoted
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}

	vote := &models.Vote{
		ID:            uuid.NewString(),
		VoterID:       b.VoterID,
		VoterName:     b.VoterName,
		Email:         b.Email,
		ElectionID:    election.ID,
		CandidateID:   candidate.ID,
		CandidateName: candidate.Name,
		Party:         candidate.Party,
		City:          b.City,
		State:         b.State,
		Country:       b.Country,
		CreatedAt:     s.now().UTC(),
	}
	s.locate(ctx, vote)

	if err := s.store.InsertVote(ctx, vote); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			slog.Info("vote_rejected_duplicate", "voter_id", b.VoterID, "election_id", b.ElectionID)
			return nil, ErrAlreadyVoted
		}
		slog.Error("vote_persist_failed", "voter_id", b.VoterID, "election_id", b.ElectionID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}

	slog.Info("vote_recorded",
		"vote_id", vote.ID,
		"election_id", vote.ElectionID,
		"candidate_id", vote.CandidateID,
		"geocoded", vote.HasLocation(),
	)

	// The vote is committed; the request may be gone by now.
	s.afterCommit(context.WithoutCancel(ctx), election, vote)

	return vote, nil
}

func (s *Service) getElection(ctx context.Context, id string) (*models.Election, error) {
	election, err := s.store.GetElection(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrElectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get election: %w", err)
	}
	return election, nil
}

func (s *Service) resolveChoice(ctx context.Context, electionID, candidateID string) (*models.Election, *models.Candidate, error) {
	election, err := s.getElection(ctx, electionID)
	if err != nil {
		return nil, nil, err
	}

	candidates, err := s.store.ListCandidatesByElection(ctx, electionID)
	if err != nil {
		return nil, nil, fmt.Errorf("list candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil, ErrNoCandidates
	}

	for i := range candidates {
		if candidates[i].ID == candidateID {
			return election, &candidates[i], nil
		}
	}
	return nil, nil, ErrCandidateNotFound
}

// locate fills in the coordinates of the vote when the geocoder knows
// the place. Any failure leaves them empty.
func (s *Service) locate(ctx context.Context, vote *models.Vote) {
	coords, err := s.geocoder.Resolve(ctx, vote.City, vote.State, vote.Country)
	switch {
	case errors.Is(err, geocode.ErrDisabled):
		return
	case err != nil:
		slog.Warn("vote_geocode_failed", "city", vote.City, "country", vote.Country, "error", err)
		return
	}
	lat, lon := coords.Latitude, coords.Longitude
	vote.Latitude = &lat
	vote.Longitude = &lon
}

func (s *Service) afterCommit(ctx context.Context, election *models.Election, vote *models.Vote) {
	if err := s.publisher.Publish(ctx, stream.PartitionKey, vote.Event()); err != nil {
		slog.Error("vote_publish_failed", "vote_id", vote.ID, "error", err)
	}

	err := s.mailer.SendReceipt(ctx, email.Receipt{
		To:            vote.Email,
		VoterName:     vote.VoterName,
		ElectionName:  election.Name,
		CandidateName: vote.CandidateName,
		Party:         vote.Party,
		VoteID:        vote.ID,
		Timestamp:     vote.CreatedAt,
		City:          vote.City,
		State:         vote.State,
		Country:       vote.Country,
	})
	if err != nil {
		slog.Error("vote_receipt_failed", "vote_id", vote.ID, "error", err)
	}
}
