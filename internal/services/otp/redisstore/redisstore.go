// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package redisstore keeps verification sessions in Redis.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"codeberg.org/oliverandrich/ballot/internal/models"
)

const keyPrefix = "otp_session:"

// Store implements otp.Store on top of a Redis client. Every save
// refreshes the key TTL, so idle sessions expire on their own.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a Store. ttl bounds how long an untouched session lives.
func New(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Connect parses a redis:// or rediss:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func (s *Store) Load(ctx context.Context, id string) (*models.VerificationSession, error) {
	data, err := s.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return &models.VerificationSession{ID: id}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get verification session: %w", err)
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode verification session: %w", err)
	}
	return rec.session(id), nil
}

func (s *Store) Save(ctx context.Context, vs *models.VerificationSession) error {
	vs.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(newRecord(vs))
	if err != nil {
		return fmt.Errorf("encode verification session: %w", err)
	}
	if err := s.client.Set(ctx, keyPrefix+vs.ID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set verification session: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("delete verification session: %w", err)
	}
	return nil
}

// record is the stored form. The model hides the code hash from JSON.
type record struct {
	Email        string     `json:"email"`
	CodeHash     string     `json:"code_hash"`
	IssuedAt     *time.Time `json:"issued_at,omitempty"`
	AttemptsUsed int        `json:"attempts_used"`
	Verified     bool       `json:"verified"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func newRecord(vs *models.VerificationSession) record {
	return record{
		Email:        vs.Email,
		CodeHash:     vs.CodeHash,
		IssuedAt:     vs.IssuedAt,
		AttemptsUsed: vs.AttemptsUsed,
		Verified:     vs.Verified,
		UpdatedAt:    vs.UpdatedAt,
	}
}

func (r record) session(id string) *models.VerificationSession {
	return &models.VerificationSession{
		ID:           id,
		Email:        r.Email,
		CodeHash:     r.CodeHash,
		IssuedAt:     r.IssuedAt,
		AttemptsUsed: r.AttemptsUsed,
		Verified:     r.Verified,
		UpdatedAt:    r.UpdatedAt,
	}
}
