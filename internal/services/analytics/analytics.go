// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package analytics computes election results from the stored votes.
package analytics

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/samber/lo"

	"codeberg.org/oliverandrich/ballot/internal/models"
	"codeberg.org/oliverandrich/ballot/internal/repository"
)

// ErrElectionNotFound is returned for unknown elections.
var ErrElectionNotFound = errors.New("election not found")

// Store is the persistence analytics reads from.
type Store interface {
	GetElection(ctx context.Context, id string) (*models.Election, error)
	ListCandidatesByElection(ctx context.Context, electionID string) ([]models.Candidate, error)
	ListVotesByElection(ctx context.Context, electionID string) ([]models.Vote, error)
	TallyByCandidate(ctx context.Context, electionID string) ([]repository.CandidateTally, error)
	TallyByRegion(ctx context.Context, electionID string) ([]repository.RegionTally, error)
}

// CandidateResult is the outcome for one candidate.
type CandidateResult struct {
	CandidateID string  `json:"candidate_id"`
	Name        string  `json:"name"`
	Party       string  `json:"party"`
	Votes       int64   `json:"votes"`
	Share       float64 `json:"share"`
}

// RegionResult is the vote count of a country/state pair.
type RegionResult struct {
	Country string `json:"country"`
	State   string `json:"state"`
	Votes   int64  `json:"votes"`
}

// Point is a geocoded vote for the results map.
type Point struct {
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	City          string  `json:"city"`
	Country       string  `json:"country"`
	CandidateName string  `json:"candidate_name"`
}

// Results summarizes an election.
type Results struct {
	Election   models.Election    `json:"election"`
	Candidates []models.Candidate `json:"candidates"`
	TotalVotes int64              `json:"total_votes"`
	Tallies    []CandidateResult  `json:"tallies"`
	// Leader is nil while no vote was cast. Tie is set when another
	// candidate has as many votes as the leader.
	Leader  *CandidateResult `json:"leader"`
	Tie     bool             `json:"tie"`
	Regions []RegionResult   `json:"regions"`
	Points  []Point          `json:"points"`
}

// Service computes results.
type Service struct {
	store Store
}

// NewService creates a new analytics service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Election returns an election by ID.
func (s *Service) Election(ctx context.Context, id string) (*models.Election, error) {
	election, err := s.store.GetElection(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrElectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get election: %w", err)
	}
	return election, nil
}

// Results computes the current results of an election.
func (s *Service) Results(ctx context.Context, electionID string) (*Results, error) {
	election, err := s.Election(ctx, electionID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.store.ListCandidatesByElection(ctx, electionID)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	tallies, err := s.store.TallyByCandidate(ctx, electionID)
	if err != nil {
		return nil, fmt.Errorf("tally candidates: %w", err)
	}
	regions, err := s.store.TallyByRegion(ctx, electionID)
	if err != nil {
		return nil, fmt.Errorf("tally regions: %w", err)
	}
	votes, err := s.store.ListVotesByElection(ctx, electionID)
	if err != nil {
		return nil, fmt.Errorf("list votes: %w", err)
	}

	total := lo.SumBy(tallies, func(t repository.CandidateTally) int64 { return t.Votes })

	res := &Results{
		Election:   *election,
		Candidates: candidates,
		TotalVotes: total,
		Tallies: lo.Map(tallies, func(t repository.CandidateTally, _ int) CandidateResult {
			return CandidateResult{
				CandidateID: t.CandidateID,
				Name:        t.Name,
				Party:       t.Party,
				Votes:       t.Votes,
				Share:       share(t.Votes, total),
			}
		}),
		Regions: lo.Map(regions, func(r repository.RegionTally, _ int) RegionResult {
			return RegionResult{Country: r.Country, State: r.State, Votes: r.Votes}
		}),
		Points: lo.FilterMap(votes, func(v models.Vote, _ int) (Point, bool) {
			if !v.HasLocation() {
				return Point{}, false
			}
			return Point{
				Latitude:      *v.Latitude,
				Longitude:     *v.Longitude,
				City:          v.City,
				Country:       v.Country,
				CandidateName: v.CandidateName,
			}, true
		}),
	}

	// Tallies come ordered by votes, highest first.
	if total > 0 {
		leader := res.Tallies[0]
		res.Leader = &leader
		res.Tie = len(res.Tallies) > 1 && res.Tallies[1].Votes == leader.Votes
	}

	return res, nil
}

func share(votes, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(votes) / float64(total)
}

// ExportVotes writes all votes of an election as CSV.
func (s *Service) ExportVotes(ctx context.Context, electionID string, w io.Writer) error {
	if _, err := s.Election(ctx, electionID); err != nil {
		return err
	}

	votes, err := s.store.ListVotesByElection(ctx, electionID)
	if err != nil {
		return fmt.Errorf("list votes: %w", err)
	}

	cw := csv.NewWriter(w)
	header := []string{
		"vote_id", "voter_id", "voter_name", "candidate_id", "candidate_name", "party",
		"city", "state", "country", "latitude", "longitude", "timestamp",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, v := range votes {
		record := []string{
			v.ID, v.VoterID, v.VoterName, v.CandidateID, v.CandidateName, v.Party,
			v.City, v.State, v.Country, formatCoord(v.Latitude), formatCoord(v.Longitude),
			v.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatCoord(c *float64) string {
	if c == nil {
		return ""
	}
	return strconv.FormatFloat(*c, 'f', 6, 64)
}
