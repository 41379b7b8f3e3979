// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"codeberg.org/oliverandrich/ballot/internal/models"
)

// CreateCandidate inserts a candidate for an existing election.
func (r *Repository) CreateCandidate(ctx context.Context, c *models.Candidate) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()

	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO candidates (id, election_id, name, party, age, bio, image_url, created_at)
		 VALUES (:id, :election_id, :name, :party, :age, :bio, :image_url, :created_at)`, c)
	if err != nil {
		return fmt.Errorf("insert candidate: %w", err)
	}
	return nil
}

// GetCandidate retrieves a candidate by ID.
func (r *Repository) GetCandidate(ctx context.Context, id string) (*models.Candidate, error) {
	var c models.Candidate
	if err := r.db.GetContext(ctx, &c, `SELECT * FROM candidates WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &c, nil
}

// ListCandidatesByElection returns the candidates of an election in
// insertion order. An unknown election yields an empty list.
func (r *Repository) ListCandidatesByElection(ctx context.Context, electionID string) ([]models.Candidate, error) {
	candidates := []models.Candidate{}
	err := r.db.SelectContext(ctx, &candidates,
		`SELECT * FROM candidates WHERE election_id = ? ORDER BY created_at, name`, electionID)
	if err != nil {
		return nil, err
	}
	return candidates, nil
}
