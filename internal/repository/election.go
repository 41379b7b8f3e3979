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

// CreateElection inserts a new election and assigns its ID.
func (r *Repository) CreateElection(ctx context.Context, e *models.Election) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = time.Now().UTC()

	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO elections (id, name, description, start_date, end_date, created_at)
		 VALUES (:id, :name, :description, :start_date, :end_date, :created_at)`, e)
	if err != nil {
		return fmt.Errorf("insert election: %w", err)
	}
	return nil
}

// GetElection retrieves an election by ID.
func (r *Repository) GetElection(ctx context.Context, id string) (*models.Election, error) {
	var e models.Election
	if err := r.db.GetContext(ctx, &e, `SELECT * FROM elections WHERE id = ?`, id); err != nil {
		return nil, wrapError(err)
	}
	return &e, nil
}

// ListElections returns all elections, newest first.
func (r *Repository) ListElections(ctx context.Context) ([]models.Election, error) {
	elections := []models.Election{}
	err := r.db.SelectContext(ctx, &elections, `SELECT * FROM elections ORDER BY created_at DESC, name`)
	if err != nil {
		return nil, err
	}
	return elections, nil
}
