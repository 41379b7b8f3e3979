// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package otp

import (
	"context"
	"errors"

	"codeberg.org/oliverandrich/ballot/internal/models"
	"codeberg.org/oliverandrich/ballot/internal/repository"
)

// Store persists verification sessions. Load returns a fresh session
// when none exists for the ID.
type Store interface {
	Load(ctx context.Context, id string) (*models.VerificationSession, error)
	Save(ctx context.Context, s *models.VerificationSession) error
	Delete(ctx context.Context, id string) error
}

// DBStore keeps verification sessions in the application database.
type DBStore struct {
	repo *repository.Repository
}

// NewDBStore creates a Store backed by the repository.
func NewDBStore(repo *repository.Repository) *DBStore {
	return &DBStore{repo: repo}
}

func (d *DBStore) Load(ctx context.Context, id string) (*models.VerificationSession, error) {
	s, err := d.repo.GetVerificationSession(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return &models.VerificationSession{ID: id}, nil
	}
	return s, err
}

func (d *DBStore) Save(ctx context.Context, s *models.VerificationSession) error {
	return d.repo.SaveVerificationSession(ctx, s)
}

func (d *DBStore) Delete(ctx context.Context, id string) error {
	return d.repo.DeleteVerificationSession(ctx, id)
}
