// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"fmt"
	"time"

	"codeberg.org/oliverandrich/ballot/internal/models"
)

// GetVerificationSession retrieves the verification state of a session.
func (r *Repository) GetVerificationSession(ctx context.Context, id string) (*models.VerificationSession, error) {
	var s models.VerificationSession
	err := r.db.GetContext(ctx, &s, `SELECT * FROM verification_sessions WHERE id = ?`, id)
	if err != nil {
		return nil, wrapError(err)
	}
	return &s, nil
}

// SaveVerificationSession creates or replaces the verification state of a session.
func (r *Repository) SaveVerificationSession(ctx context.Context, s *models.VerificationSession) error {
	s.UpdatedAt = time.Now().UTC()
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO verification_sessions (id, email, code_hash, issued_at, attempts_used, verified, updated_at)
		 VALUES (:id, :email, :code_hash, :issued_at, :attempts_used, :verified, :updated_at)
		 ON CONFLICT (id) DO UPDATE SET
			email = excluded.email,
			code_hash = excluded.code_hash,
			issued_at = excluded.issued_at,
			attempts_used = excluded.attempts_used,
			verified = excluded.verified,
			updated_at = excluded.updated_at`, s)
	if err != nil {
		return fmt.Errorf("save verification session: %w", err)
	}
	return nil
}

// DeleteVerificationSession removes the verification state of a session.
func (r *Repository) DeleteVerificationSession(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM verification_sessions WHERE id = ?`, id)
	return err
}

// DeleteStaleVerificationSessions removes sessions not touched since before.
func (r *Repository) DeleteStaleVerificationSessions(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM verification_sessions WHERE updated_at < ?`, before.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
