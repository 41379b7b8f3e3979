// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package sse

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHub_RegisterAndUnregister(t *testing.T) {
	hub := NewHub()

	ch := hub.Register("election1")
	assert.NotNil(t, ch)
	assert.Equal(t, 1, hub.ClientCount())
	assert.Equal(t, 1, hub.TopicCount())

	// Second viewer of the same election
	ch2 := hub.Register("election1")
	assert.Equal(t, 2, hub.ClientCount())
	assert.Equal(t, 1, hub.TopicCount())

	hub.Unregister("election1", ch)
	assert.Equal(t, 1, hub.ClientCount())

	hub.Unregister("election1", ch2)
	assert.Equal(t, 0, hub.ClientCount())
	assert.Equal(t, 0, hub.TopicCount())

	_, open := <-ch
	assert.False(t, open)
}

func TestHub_Publish(t *testing.T) {
	hub := NewHub()

	ch1 := hub.Register("election1")
	ch2 := hub.Register("election2")
	defer hub.Unregister("election1", ch1)
	defer hub.Unregister("election2", ch2)

	hub.Publish("election1", "hello")

	select {
	case msg := <-ch1:
		assert.Equal(t, "hello", msg)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}

	select {
	case <-ch2:
		t.Fatal("other election should not receive message")
	default:
	}
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub()

	ch1 := hub.Register("election1")
	ch2 := hub.Register("election2")
	defer hub.Unregister("election1", ch1)
	defer hub.Unregister("election2", ch2)

	hub.Broadcast(Heartbeat)

	assert.Equal(t, Heartbeat, <-ch1)
	assert.Equal(t, Heartbeat, <-ch2)
}

func TestHub_Close(t *testing.T) {
	hub := NewHub()
	ch1 := hub.Register("election1")
	ch2 := hub.Register("election2")

	hub.Close()

	_, ok := <-ch1
	assert.False(t, ok)
	_, ok = <-ch2
	assert.False(t, ok)
	assert.Equal(t, 0, hub.ClientCount())

	// Late unregistering after Close must not panic.
	assert.NotPanics(t, func() { hub.Unregister("election1", ch1) })
}

func TestHub_PublishDropsWhenFull(t *testing.T) {
	hub := NewHub()
	ch := hub.Register("election1")
	defer hub.Unregister("election1", ch)

	for range clientBuffer + 5 {
		hub.Publish("election1", "msg")
	}

	assert.Len(t, ch, clientBuffer)
}

func TestHub_ConcurrentAccess(t *testing.T) {
	hub := NewHub()
	var wg sync.WaitGroup

	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ch := hub.Register("election1")
			hub.Publish("election1", "test")
			hub.Unregister("election1", ch)
		}()
	}

	wg.Wait()
	assert.Equal(t, 0, hub.ClientCount())
}
