// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package otp implements email one-time-code verification of a browser session.
package otp

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"codeberg.org/oliverandrich/ballot/internal/models"
)

// Mailer delivers a code to an email address.
type Mailer interface {
	SendOTP(ctx context.Context, to, code string, ttl time.Duration) error
}

// Status describes a verification session to the caller.
type Status struct {
	State             State      `json:"state"`
	Email             string     `json:"email,omitempty"`
	AttemptsUsed      int        `json:"attempts_used"`
	AttemptsRemaining int        `json:"attempts_remaining"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
}

// Options configures the Service.
type Options struct {
	TTL         time.Duration
	MaxRequests int
	// Now and Generate are overridden in tests.
	Now      func() time.Time
	Generate func() (string, error)
}

const lockStripes = 64

// Service runs the verification state machine against a Store.
// Operations on the same session are serialized.
type Service struct {
	store    Store
	mailer   Mailer
	m        machine
	now      func() time.Time
	generate func() (string, error)
	tracer   trace.Tracer
	locks    [lockStripes]sync.Mutex
}

// NewService creates a new OTP service.
func NewService(store Store, mailer Mailer, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxRequests <= 0 {
		opts.MaxRequests = DefaultMaxRequests
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Generate == nil {
		opts.Generate = GenerateCode
	}
	return &Service{
		store:    store,
		mailer:   mailer,
		m:        machine{ttl: opts.TTL, maxRequests: opts.MaxRequests},
		now:      opts.Now,
		generate: opts.Generate,
		tracer:   otel.Tracer("codeberg.org/oliverandrich/ballot/internal/services/otp"),
	}
}

func (s *Service) lock(sessionID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	mu := &s.locks[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// RequestCode issues a new code for the session and mails it to email.
// The code and the consumed request are only stored after the mail was
// accepted, so a failed delivery costs nothing.
func (s *Service) RequestCode(ctx context.Context, sessionID, email string) (*Status, error) {
	ctx, span := s.tracer.Start(ctx, "otp.RequestCode")
	defer span.End()

	email = strings.TrimSpace(email)
	if email == "" {
		return nil, &models.ValidationError{Field: "email", Reason: "is required"}
	}

	defer s.lock(sessionID)()

	vs, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load verification session: %w", err)
	}

	if err := s.m.checkRequest(vs); err != nil {
		slog.Info("otp_request_rejected", "session_id", sessionID, "reason", err.Error())
		return s.status(vs), err
	}

	code, err := s.generate()
	if err != nil {
		return nil, err
	}

	if err := s.mailer.SendOTP(ctx, email, code, s.m.ttl); err != nil {
		slog.Error("otp_dispatch_failed", "session_id", sessionID, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "dispatch failed")
		return s.status(vs), fmt.Errorf("%w: %w", ErrDispatchFailed, err)
	}

	s.m.issue(vs, email, code, s.now())
	if err := s.store.Save(ctx, vs); err != nil {
		return nil, fmt.Errorf("save verification session: %w", err)
	}

	span.SetAttributes(attribute.Int("otp.attempts_used", vs.AttemptsUsed))
	slog.Info("otp_sent", "session_id", sessionID, "attempts_used", vs.AttemptsUsed)
	return s.status(vs), nil
}

// VerifyCode checks input against the live code of the session.
func (s *Service) VerifyCode(ctx context.Context, sessionID, input string) (*Status, error) {
	ctx, span := s.tracer.Start(ctx, "otp.VerifyCode")
	defer span.End()

	defer s.lock(sessionID)()

	vs, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load verification session: %w", err)
	}

	changed, verr := s.m.verify(vs, input, s.now())
	if changed {
		if err := s.store.Save(ctx, vs); err != nil {
			return nil, fmt.Errorf("save verification session: %w", err)
		}
	}

	switch {
	case verr == nil:
		slog.Info("otp_verified", "session_id", sessionID)
	case errors.Is(verr, ErrMismatch), errors.Is(verr, ErrExpired):
		slog.Info("otp_verify_failed", "session_id", sessionID, "reason", verr.Error())
	}
	span.SetAttributes(attribute.String("otp.state", string(StateOf(vs, s.m.maxRequests))))

	return s.status(vs), verr
}

// Status reports the current state of the session.
func (s *Service) Status(ctx context.Context, sessionID string) (*Status, error) {
	vs, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load verification session: %w", err)
	}
	return s.status(vs), nil
}

// Forget ends the verification session.
func (s *Service) Forget(ctx context.Context, sessionID string) error {
	defer s.lock(sessionID)()
	if err := s.store.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete verification session: %w", err)
	}
	slog.Info("otp_session_forgotten", "session_id", sessionID)
	return nil
}

func (s *Service) status(vs *models.VerificationSession) *Status {
	st := &Status{
		State:             StateOf(vs, s.m.maxRequests),
		Email:             vs.Email,
		AttemptsUsed:      vs.AttemptsUsed,
		AttemptsRemaining: max(s.m.maxRequests-vs.AttemptsUsed, 0),
	}
	if vs.IssuedAt != nil {
		expires := vs.IssuedAt.Add(s.m.ttl)
		st.ExpiresAt = &expires
	}
	return st
}
