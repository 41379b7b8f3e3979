// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "strings"

// Identity is what a voter types into the voting panel before verification.
// Only non-emptiness is checked; the values are taken at face value.
type Identity struct {
	VoterID   string `json:"voter_id"`
	VoterName string `json:"voter_name"`
	Email     string `json:"email"`
	City      string `json:"city"`
	State     string `json:"state"`
	Country   string `json:"country"`
}

// Normalize trims surrounding whitespace from every field.
func (i *Identity) Normalize() {
	i.VoterID = strings.TrimSpace(i.VoterID)
	i.VoterName = strings.TrimSpace(i.VoterName)
	i.Email = strings.TrimSpace(i.Email)
	i.City = strings.TrimSpace(i.City)
	i.State = strings.TrimSpace(i.State)
	i.Country = strings.TrimSpace(i.Country)
}

// Validate returns a ValidationError for the first empty field.
func (i *Identity) Validate() error {
	fields := []struct{ name, value string }{
		{"voter_id", i.VoterID},
		{"voter_name", i.VoterName},
		{"email", i.Email},
		{"city", i.City},
		{"state", i.State},
		{"country", i.Country},
	}
	for _, f := range fields {
		if err := required(f.name, strings.TrimSpace(f.value)); err != nil {
			return err
		}
	}
	return nil
}
