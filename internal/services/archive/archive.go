// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

// Package archive copies vote events from the stream into object storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sethvargo/go-retry"

	"codeberg.org/oliverandrich/ballot/internal/models"
	"codeberg.org/oliverandrich/ballot/internal/storage"
)

// MessageReader is the part of kafka.Reader the archiver needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaReader creates a consumer group reader for the vote topic.
// Offsets are committed explicitly after each archived message.
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		StartOffset:    kafka.FirstOffset,
		MaxWait:        5 * time.Second,
		ReadBackoffMin: 100 * time.Millisecond,
		ReadBackoffMax: time.Second,
	})

	slog.Info("kafka_consumer_initialized", "brokers", brokers, "topic", topic, "group_id", groupID)

	return reader
}

// Options tunes the archiver.
type Options struct {
	// MaxRetries bounds the write attempts per message after the first.
	MaxRetries uint64
	RetryDelay time.Duration
	Now        func() time.Time
}

// Archiver writes every event to votes/<vote_id>.json.
type Archiver struct {
	reader     MessageReader
	objects    storage.ObjectStore
	now        func() time.Time
	maxRetries uint64
	retryDelay time.Duration
}

// New creates an Archiver.
func New(reader MessageReader, objects storage.ObjectStore, opts Options) *Archiver {
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 500 * time.Millisecond
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Archiver{
		reader:     reader,
		objects:    objects,
		now:        opts.Now,
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
	}
}

// Run consumes until ctx is canceled. A message whose write keeps failing
// stops the archiver without committing, so it is redelivered on restart.
func (a *Archiver) Run(ctx context.Context) error {
	for {
		msg, err := a.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		if err := a.Handle(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := a.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit offset %d: %w", msg.Offset, err)
		}
	}
}

// Handle archives one message. Undecodable payloads are logged and skipped.
func (a *Archiver) Handle(ctx context.Context, msg kafka.Message) error {
	var event models.VoteEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		slog.Error("vote_archive_skipped", "offset", msg.Offset, "partition", msg.Partition, "error", err)
		return nil
	}

	key := ObjectKey(event.VoteID, a.now())

	backoff := retry.WithMaxRetries(a.maxRetries, retry.NewExponential(a.retryDelay))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		_, err := a.objects.Put(ctx, key, "application/json", bytes.NewReader(msg.Value))
		if err == nil || errors.Is(err, storage.ErrInvalidKey) {
			return err
		}
		slog.Warn("vote_archive_retry", "key", key, "error", err)
		return retry.RetryableError(err)
	})

	if errors.Is(err, storage.ErrInvalidKey) {
		slog.Error("vote_archive_skipped", "key", key, "error", err)
		return nil
	}
	if err != nil {
		return fmt.Errorf("archive %s: %w", key, err)
	}

	slog.Info("vote_archived", "key", key, "offset", msg.Offset)
	return nil
}

// ObjectKey returns the storage key of an archived vote.
func ObjectKey(voteID string, now time.Time) string {
	if voteID == "" {
		voteID = fmt.Sprintf("vote_%d", now.UnixNano())
	}
	return "votes/" + voteID + ".json"
}
