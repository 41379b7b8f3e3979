// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package auth authenticates the election administrator.
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAdminDisabled      = errors.New("admin login is disabled")
)

// dummyHash is used for constant-time login to prevent timing attacks
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), bcrypt.DefaultCost)

// Service checks administrator credentials. The configured password is
// only kept as a bcrypt hash.
type Service struct {
	username     string
	passwordHash []byte
}

// NewService hashes the configured password. An empty password disables
// admin login.
func NewService(username, password string) (*Service, error) {
	s := &Service{username: username}
	if password == "" {
		slog.Warn("admin_login_disabled", "reason", "no admin password configured")
		return s, nil
	}

	if weak := PasswordWeaknesses(password, username); len(weak) > 0 {
		slog.Warn("admin_password_weak", "username", username, "reasons", strings.Join(weak, ","))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	s.passwordHash = hash
	return s, nil
}

// Enabled reports whether an admin password is configured.
func (s *Service) Enabled() bool {
	return len(s.passwordHash) > 0
}

// Login checks a username/password pair.
func (s *Service) Login(username, password string) error {
	if !s.Enabled() {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return ErrAdminDisabled
	}

	if subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) != 1 {
		// Constant-time: always perform bcrypt comparison to prevent timing attacks
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		slog.Warn("admin_login_failed", "username", username, "reason", "unknown_user")
		return ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)); err != nil {
		slog.Warn("admin_login_failed", "username", username, "reason", "invalid_password")
		return ErrInvalidCredentials
	}

	slog.Info("admin_login_success", "username", username)
	return nil
}
