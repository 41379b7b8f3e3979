// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package models

import "time"

// Vote is the durable record of a cast ballot. It is never updated.
type Vote struct { //nolint:govet // fieldalignment not critical for models
	ID            string    `db:"id" json:"vote_id"`
	VoterID       string    `db:"voter_id" json:"voter_id"`
	VoterName     string    `db:"voter_name" json:"voter_name"`
	Email         string    `db:"email" json:"email"`
	ElectionID    string    `db:"election_id" json:"election_id"`
	CandidateID   string    `db:"candidate_id" json:"candidate_id"`
	CandidateName string    `db:"candidate_name" json:"candidate_name"`
	Party         string    `db:"party" json:"party"`
	City          string    `db:"city" json:"city"`
	State         string    `db:"state" json:"state"`
	Country       string    `db:"country" json:"country"`
	Latitude      *float64  `db:"latitude" json:"latitude"`
	Longitude     *float64  `db:"longitude" json:"longitude"`
	CreatedAt     time.Time `db:"created_at" json:"timestamp"`
}

// HasLocation reports whether the vote was geocoded.
func (v *Vote) HasLocation() bool {
	return v.Latitude != nil && v.Longitude != nil
}

// VoteEvent is the wire form of a vote on the event stream.
type VoteEvent struct { //nolint:govet // fieldalignment not critical for models
	VoteID        string   `json:"vote_id"`
	VoterID       string   `json:"voter_id"`
	VoterName     string   `json:"voter_name"`
	Email         string   `json:"email"`
	ElectionID    string   `json:"election_id"`
	CandidateID   string   `json:"candidate_id"`
	CandidateName string   `json:"candidate_name"`
	Party         string   `json:"party"`
	City          string   `json:"city"`
	State         string   `json:"state"`
	Country       string   `json:"country"`
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	Timestamp     string   `json:"timestamp"`
}

// Event converts the vote to its stream representation.
func (v *Vote) Event() VoteEvent {
	return VoteEvent{
		VoteID:        v.ID,
		VoterID:       v.VoterID,
		VoterName:     v.VoterName,
		Email:         v.Email,
		ElectionID:    v.ElectionID,
		CandidateID:   v.CandidateID,
		CandidateName: v.CandidateName,
		Party:         v.Party,
		City:          v.City,
		State:         v.State,
		Country:       v.Country,
		Latitude:      v.Latitude,
		Longitude:     v.Longitude,
		Timestamp:     v.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}
