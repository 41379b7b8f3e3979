// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import (
	"strings"
	"time"
)

const (
	// MinCandidateAge and MaxCandidateAge bound the age of a candidate.
	MinCandidateAge = 18
	MaxCandidateAge = 100
)

// Election is reference data owned by the administration panel.
type Election struct { //nolint:govet // fieldalignment not critical for models
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description"`
	StartDate   time.Time `db:"start_date" json:"start_date"`
	EndDate     time.Time `db:"end_date" json:"end_date"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Validate checks the fields an administrator must supply.
func (e *Election) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if e.StartDate.IsZero() {
		return &ValidationError{Field: "start_date", Reason: "is required"}
	}
	if e.EndDate.IsZero() {
		return &ValidationError{Field: "end_date", Reason: "is required"}
	}
	if e.EndDate.Before(e.StartDate) {
		return &ValidationError{Field: "end_date", Reason: "must not be before start_date"}
	}
	return nil
}

// Candidate stands in exactly one election.
type Candidate struct { //nolint:govet // fieldalignment not critical for models
	ID         string    `db:"id" json:"id"`
	ElectionID string    `db:"election_id" json:"election_id"`
	Name       string    `db:"name" json:"name"`
	Party      string    `db:"party" json:"party"`
	Age        int       `db:"age" json:"age"`
	Bio        string    `db:"bio" json:"bio"`
	ImageURL   string    `db:"image_url" json:"image_url"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Validate checks the fields an administrator must supply.
func (c *Candidate) Validate() error {
	if strings.TrimSpace(c.ElectionID) == "" {
		return &ValidationError{Field: "election_id", Reason: "is required"}
	}
	if strings.TrimSpace(c.Name) == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if strings.TrimSpace(c.Party) == "" {
		return &ValidationError{Field: "party", Reason: "is required"}
	}
	if c.Age < MinCandidateAge || c.Age > MaxCandidateAge {
		return &ValidationError{Field: "age", Reason: "must be between 18 and 100"}
	}
	return nil
}
