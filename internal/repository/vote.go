// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"fmt"

	"codeberg.org/oliverandrich/ballot/internal/models"
)

// InsertVote stores a vote unless the voter already voted in the same
// election. The check and the insert are a single statement, so two
// concurrent submissions cannot both succeed. ErrDuplicate is returned
// for the losing submission.
func (r *Repository) InsertVote(ctx context.Context, v *models.Vote) error {
	res, err := r.db.NamedExecContext(ctx,
		`INSERT INTO votes (id, voter_id, voter_name, email, election_id, candidate_id,
			candidate_name, party, city, state, country, latitude, longitude, created_at)
		 VALUES (:id, :voter_id, :voter_name, :email, :election_id, :candidate_id,
			:candidate_name, :party, :city, :state, :country, :latitude, :longitude, :created_at)
		 ON CONFLICT (voter_id, election_id) DO NOTHING`, v)
	if err != nil {
		return fmt.Errorf("insert vote: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert vote: %w", err)
	}
	if n == 0 {
		return ErrDuplicate
	}
	return nil
}

// GetVote retrieves a vote by ID.
func (r *Repository) GetVote(ctx context.Context, id string) (*models.Vote, error) {
	var v models.Vote
	if err := r.db.GetContext(ctx, &v, `SELECT * FROM votes WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &v, nil
}

// GetVoteByVoterAndElection returns the vote a voter cast in an election.
func (r *Repository) GetVoteByVoterAndElection(ctx context.Context, voterID, electionID string) (*models.Vote, error) {
	var v models.Vote
	err := r.db.GetContext(ctx, &v,
		`SELECT * FROM votes WHERE voter_id = ? AND election_id = ?`, voterID, electionID)
	if err != nil {
		return nil, wrapError(err)
	}
	return &v, nil
}

// GetVoteByVoterID returns the most recent vote of a voter in any election.
func (r *Repository) GetVoteByVoterID(ctx context.Context, voterID string) (*models.Vote, error) {
	var v models.Vote
	err := r.db.GetContext(ctx, &v,
		`SELECT * FROM votes WHERE voter_id = ? ORDER BY created_at DESC LIMIT 1`, voterID)
	if err != nil {
		return nil, wrapError(err)
	}
	return &v, nil
}

// ListVotesByElection returns all votes of an election, oldest first.
func (r *Repository) ListVotesByElection(ctx context.Context, electionID string) ([]models.Vote, error) {
	votes := []models.Vote{}
	err := r.db.SelectContext(ctx, &votes,
		`SELECT * FROM votes WHERE election_id = ? ORDER BY created_at`, electionID)
	if err != nil {
		return nil, err
	}
	return votes, nil
}

// CountVotesByElection returns the number of votes cast in an election.
func (r *Repository) CountVotesByElection(ctx context.Context, electionID string) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM votes WHERE election_id = ?`, electionID)
	return count, err
}

// CandidateTally is the vote count of a single candidate.
type CandidateTally struct {
	CandidateID string `db:"candidate_id"`
	Name        string `db:"name"`
	Party       string `db:"party"`
	Votes       int64  `db:"votes"`
}

// TallyByCandidate counts votes per candidate of an election. Candidates
// without votes are included with a count of zero.
func (r *Repository) TallyByCandidate(ctx context.Context, electionID string) ([]CandidateTally, error) {
	tallies := []CandidateTally{}
	err := r.db.SelectContext(ctx, &tallies,
		`SELECT c.id AS candidate_id, c.name, c.party, COUNT(v.id) AS votes
		 FROM candidates c
		 LEFT JOIN votes v ON v.candidate_id = c.id AND v.election_id = c.election_id
		 WHERE c.election_id = ?
		 GROUP BY c.id, c.name, c.party
		 ORDER BY votes DESC, c.name`, electionID)
	if err != nil {
		return nil, err
	}
	return tallies, nil
}

// RegionTally is the vote count of a country/state pair.
type RegionTally struct {
	Country string `db:"country"`
	State   string `db:"state"`
	Votes   int64  `db:"votes"`
}

// TallyByRegion counts votes of an election per country and state.
func (r *Repository) TallyByRegion(ctx context.Context, electionID string) ([]RegionTally, error) {
	tallies := []RegionTally{}
	err := r.db.SelectContext(ctx, &tallies,
		`SELECT country, state, COUNT(*) AS votes
		 FROM votes
		 WHERE election_id = ?
		 GROUP BY country, state
		 ORDER BY votes DESC, country, state`, electionID)
	if err != nil {
		return nil, err
	}
	return tallies, nil
}
