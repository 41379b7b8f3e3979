// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package archive_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/oliverandrich/ballot/internal/services/archive"
	"codeberg.org/oliverandrich/ballot/internal/storage"
)

// fakeReader hands out queued messages and then blocks until canceled.
type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []int64
	fetchErr  error
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if r.fetchErr != nil {
		r.mu.Unlock()
		return kafka.Message{}, r.fetchErr
	}
	if len(r.messages) > 0 {
		msg := r.messages[0]
		r.messages = r.messages[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Committed() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

type flakyStore struct {
	mu       sync.Mutex
	failures int
	calls    int
	objects  map[string]string
}

func (s *flakyStore) Put(_ context.Context, key, _ string, body io.Reader) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failures > 0 {
		s.failures--
		return "", errors.New("bucket unavailable")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	if s.objects == nil {
		s.objects = map[string]string{}
	}
	s.objects[key] = string(data)
	return "mem://" + key, nil
}

func fastOptions() archive.Options {
	return archive.Options{MaxRetries: 2, RetryDelay: time.Millisecond}
}

func TestObjectKey(t *testing.T) {
	now := time.Unix(0, 1700000000123456789)

	assert.Equal(t, "votes/abc.json", archive.ObjectKey("abc", now))
	assert.Equal(t, "votes/vote_1700000000123456789.json", archive.ObjectKey("", now))
}

func TestRun_ArchivesAndCommits(t *testing.T) {
	dir := t.TempDir()
	objects, err := storage.NewDirStore(dir, "/uploads")
	require.NoError(t, err)

	reader := &fakeReader{messages: []kafka.Message{
		{Offset: 1, Value: []byte(`{"vote_id":"v-1","candidate_name":"Ada"}`)},
		{Offset: 2, Value: []byte(`{"vote_id":"v-2","candidate_name":"Grace"}`)},
	}}
	a := archive.New(reader, objects, fastOptions())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return len(reader.Committed()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	data, err := os.ReadFile(filepath.Join(dir, "votes", "v-1.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"vote_id":"v-1","candidate_name":"Ada"}`, string(data))
	assert.FileExists(t, filepath.Join(dir, "votes", "v-2.json"))
	assert.Equal(t, []int64{1, 2}, reader.Committed())
}

func TestHandle_MissingVoteID(t *testing.T) {
	objects := &flakyStore{}
	now := time.Unix(0, 42)
	a := archive.New(&fakeReader{}, objects, archive.Options{Now: func() time.Time { return now }})

	require.NoError(t, a.Handle(context.Background(), kafka.Message{Value: []byte(`{"voter_id":"V-1"}`)}))

	assert.Contains(t, objects.objects, "votes/vote_42.json")
}

func TestHandle_RetriesTransientFailures(t *testing.T) {
	objects := &flakyStore{failures: 2}
	a := archive.New(&fakeReader{}, objects, fastOptions())

	require.NoError(t, a.Handle(context.Background(), kafka.Message{Value: []byte(`{"vote_id":"v-1"}`)}))

	assert.Equal(t, 3, objects.calls)
	assert.Contains(t, objects.objects, "votes/v-1.json")
}

func TestRun_StopsWithoutCommitWhenWritesKeepFailing(t *testing.T) {
	objects := &flakyStore{failures: 10}
	reader := &fakeReader{messages: []kafka.Message{{Offset: 7, Value: []byte(`{"vote_id":"v-1"}`)}}}
	a := archive.New(reader, objects, fastOptions())

	err := a.Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "votes/v-1.json")
	assert.Empty(t, reader.Committed())
	assert.Equal(t, 3, objects.calls)
}

func TestRun_SkipsUndecodableMessages(t *testing.T) {
	dir := t.TempDir()
	objects, err := storage.NewDirStore(filepath.Join(dir, "objects"), "/uploads")
	require.NoError(t, err)
	reader := &fakeReader{messages: []kafka.Message{
		{Offset: 1, Value: []byte(`not json`)},
		{Offset: 2, Value: []byte(`{"vote_id":"../escape"}`)},
	}}
	a := archive.New(reader, objects, fastOptions())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return len(reader.Committed()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.NoFileExists(t, filepath.Join(dir, "escape.json"))
	entries, err := os.ReadDir(filepath.Join(dir, "objects"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_FetchError(t *testing.T) {
	reader := &fakeReader{fetchErr: errors.New("broker down")}

	err := archive.New(reader, &flakyStore{}, fastOptions()).Run(context.Background())

	assert.ErrorContains(t, err, "broker down")
}
