// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// VerificationSession holds the one-time-code state of a single browser
// session. It is keyed by the session ID and never shared between sessions.
type VerificationSession struct { //nolint:govet // fieldalignment: readability over optimization
	ID           string     `db:"id" json:"-"`
	Email        string     `db:"email" json:"email"`
	CodeHash     string     `db:"code_hash" json:"-"` // SHA256 hash of the live code
	IssuedAt     *time.Time `db:"issued_at" json:"issued_at,omitempty"`
	AttemptsUsed int        `db:"attempts_used" json:"attempts_used"`
	Verified     bool       `db:"verified" json:"verified"`
	UpdatedAt    time.Time  `db:"updated_at" json:"-"`
}

// HasLiveCode reports whether a code is waiting to be verified.
func (s *VerificationSession) HasLiveCode() bool {
	return s.CodeHash != "" && s.IssuedAt != nil
}

// ClearCode drops the live code. The attempt counter is left untouched.
func (s *VerificationSession) ClearCode() {
	s.CodeHash = ""
	s.IssuedAt = nil
}
