// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"codeberg.org/oliverandrich/ballot/internal/models"
)

var (
	// ErrExpired is returned when the live code is older than the TTL.
	ErrExpired = errors.New("verification code expired")
	// ErrMismatch is returned when the supplied code is wrong.
	ErrMismatch = errors.New("verification code does not match")
	// ErrBudgetExhausted is returned once all code requests are used up.
	ErrBudgetExhausted = errors.New("verification code budget exhausted")
	// ErrNoCodeIssued is returned when a code is verified before one was requested.
	ErrNoCodeIssued = errors.New("no verification code issued")
	// ErrAlreadyVerified is returned when the session is already verified.
	ErrAlreadyVerified = errors.New("session already verified")
	// ErrDispatchFailed is returned when the code could not be delivered.
	ErrDispatchFailed = errors.New("verification code could not be sent")
)

// State is the verification state of a session.
type State string

const (
	StateNoCode    State = "no_code"
	StatePending   State = "pending"
	StateVerified  State = "verified"
	StateExhausted State = "exhausted"
)

// Default limits.
const (
	DefaultTTL         = 5 * time.Minute
	DefaultMaxRequests = 3
	codeDigits         = 6
)

// StateOf derives the state of a session from its attributes.
func StateOf(s *models.VerificationSession, maxRequests int) State {
	switch {
	case s.Verified:
		return StateVerified
	case s.HasLiveCode():
		return StatePending
	case s.AttemptsUsed >= maxRequests:
		return StateExhausted
	default:
		return StateNoCode
	}
}

// machine applies transitions to a VerificationSession. It does not
// persist anything and does not talk to the outside world.
type machine struct {
	ttl         time.Duration
	maxRequests int
}

// checkRequest reports whether a new code may be issued.
func (m machine) checkRequest(s *models.VerificationSession) error {
	if s.Verified {
		return ErrAlreadyVerified
	}
	if s.AttemptsUsed >= m.maxRequests {
		return ErrBudgetExhausted
	}
	return nil
}

// issue replaces the live code and consumes one request.
func (m machine) issue(s *models.VerificationSession, email, code string, now time.Time) {
	issued := now.UTC()
	s.Email = email
	s.CodeHash = hashCode(code)
	s.IssuedAt = &issued
	s.AttemptsUsed++
}

// verify checks input against the live code. It reports whether the
// session was changed and has to be saved.
func (m machine) verify(s *models.VerificationSession, input string, now time.Time) (bool, error) {
	if s.Verified {
		return false, ErrAlreadyVerified
	}
	if !s.HasLiveCode() {
		if s.AttemptsUsed >= m.maxRequests {
			return false, ErrBudgetExhausted
		}
		return false, ErrNoCodeIssued
	}

	if now.Sub(*s.IssuedAt) > m.ttl {
		s.ClearCode()
		return true, ErrExpired
	}

	if !matches(s.CodeHash, input) {
		return false, ErrMismatch
	}

	s.ClearCode()
	s.Verified = true
	return true, nil
}

// GenerateCode returns a uniformly random 6-digit code.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%0*d", codeDigits, n.Int64()+100000), nil
}

// hashCode returns the SHA256 hash of a code as hex string.
func hashCode(code string) string {
	hash := sha256.Sum256([]byte(code))
	return hex.EncodeToString(hash[:])
}

func matches(codeHash, input string) bool {
	got := hashCode(strings.TrimSpace(input))
	return subtle.ConstantTimeCompare([]byte(got), []byte(codeHash)) == 1
}
