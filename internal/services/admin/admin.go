// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package admin manages elections and candidates.
package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"codeberg.org/oliverandrich/ballot/internal/models"
	"codeberg.org/oliverandrich/ballot/internal/repository"
	"codeberg.org/oliverandrich/ballot/internal/storage"
)

var (
	ErrElectionNotFound = errors.New("election not found")
	ErrUnsupportedImage = errors.New("unsupported image type")
)

// DateLayout is the accepted format of election start and end dates.
const DateLayout = "2006-01-02"

// imageTypes maps accepted image extensions to their content type.
var imageTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// Store is the persistence the admin service needs.
type Store interface {
	CreateElection(ctx context.Context, e *models.Election) error
	GetElection(ctx context.Context, id string) (*models.Election, error)
	ListElections(ctx context.Context) ([]models.Election, error)
	CreateCandidate(ctx context.Context, c *models.Candidate) error
	ListCandidatesByElection(ctx context.Context, electionID string) ([]models.Candidate, error)
}

// Service manages reference data.
type Service struct {
	store   Store
	objects storage.ObjectStore
}

// NewService creates a new admin service.
func NewService(store Store, objects storage.ObjectStore) *Service {
	return &Service{store: store, objects: objects}
}

// ElectionInput is the form an administrator submits for a new election.
type ElectionInput struct {
	Name        string `json:"name" form:"name"`
	Description string `json:"description" form:"description"`
	StartDate   string `json:"start_date" form:"start_date"`
	EndDate     string `json:"end_date" form:"end_date"`
}

// CreateElection validates and stores a new election.
func (s *Service) CreateElection(ctx context.Context, in ElectionInput) (*models.Election, error) {
	start, err := parseDate("start_date", in.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseDate("end_date", in.EndDate)
	if err != nil {
		return nil, err
	}

	election := &models.Election{
		Name:        strings.TrimSpace(in.Name),
		Description: strings.TrimSpace(in.Description),
		StartDate:   start,
		EndDate:     end,
	}
	if err := election.Validate(); err != nil {
		return nil, err
	}

	if err := s.store.CreateElection(ctx, election); err != nil {
		return nil, err
	}

	slog.Info("election_created", "election_id", election.ID, "name", election.Name)
	return election, nil
}

func parseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, &models.ValidationError{Field: field, Reason: "is required"}
	}
	t, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, &models.ValidationError{Field: field, Reason: "must be a date (YYYY-MM-DD)"}
	}
	return t, nil
}

// CandidateInput is the form an administrator submits for a new candidate.
type CandidateInput struct {
	Name  string `json:"name" form:"name"`
	Party string `json:"party" form:"party"`
	Age   int    `json:"age" form:"age"`
	Bio   string `json:"bio" form:"bio"`
}

// Image is an uploaded candidate picture.
type Image struct {
	Filename string
	Body     io.Reader
}

// AddCandidate stores a candidate for an existing election. The image is
// optional; when given it is uploaded before the candidate is stored.
func (s *Service) AddCandidate(ctx context.Context, electionID string, in CandidateInput, img *Image) (*models.Candidate, error) {
	candidate := &models.Candidate{
		ElectionID: strings.TrimSpace(electionID),
		Name:       strings.TrimSpace(in.Name),
		Party:      strings.TrimSpace(in.Party),
		Age:        in.Age,
		Bio:        strings.TrimSpace(in.Bio),
	}
	if err := candidate.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.store.GetElection(ctx, candidate.ElectionID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrElectionNotFound
		}
		return nil, fmt.Errorf("get election: %w", err)
	}

	if img != nil {
		url, err := s.uploadImage(ctx, candidate.Name, img)
		if err != nil {
			return nil, err
		}
		candidate.ImageURL = url
	}

	if err := s.store.CreateCandidate(ctx, candidate); err != nil {
		return nil, err
	}

	slog.Info("candidate_added",
		"candidate_id", candidate.ID,
		"election_id", candidate.ElectionID,
		"has_image", candidate.ImageURL != "",
	)
	return candidate, nil
}

func (s *Service) uploadImage(ctx context.Context, name string, img *Image) (string, error) {
	ext := strings.ToLower(filepath.Ext(img.Filename))
	contentType, ok := imageTypes[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedImage, ext)
	}

	key := ImageKey(name, uuid.New(), ext)
	url, err := s.objects.Put(ctx, key, contentType, img.Body)
	if err != nil {
		return "", fmt.Errorf("upload candidate image: %w", err)
	}
	return url, nil
}

// ImageKey builds the object key of a candidate image.
func ImageKey(name string, id uuid.UUID, ext string) string {
	return fmt.Sprintf("candidate-images/%s_%s%s", slug(name), strings.ReplaceAll(id.String(), "-", ""), ext)
}

// slug keeps letters, digits, dash and underscore and turns everything
// else into underscores.
func slug(name string) string {
	var sb strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	if sb.Len() == 0 {
		return "candidate"
	}
	return sb.String()
}

// Elections lists all elections.
func (s *Service) Elections(ctx context.Context) ([]models.Election, error) {
	return s.store.ListElections(ctx)
}

// Candidates lists the candidates of an election.
func (s *Service) Candidates(ctx context.Context, electionID string) ([]models.Candidate, error) {
	return s.store.ListCandidatesByElection(ctx, electionID)
}
