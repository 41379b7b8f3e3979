// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package sse

import (
	"sync"

	"github.com/samber/lo"
)

// clientBuffer is the number of events a slow client may lag behind
// before further events are dropped for it.
const clientBuffer = 16

// Hub fans out events to SSE clients grouped by topic. The live results
// feed uses the election ID as topic.
type Hub struct {
	clients map[string][]chan string
	mu      sync.RWMutex
}

// NewHub creates a new SSE hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string][]chan string),
	}
}

// Register adds a new client for the given topic.
// Returns the channel to receive events on.
func (h *Hub) Register(topic string) chan string {
	ch := make(chan string, clientBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[topic] = append(h.clients[topic], ch)
	return ch
}

// Unregister removes a client channel and closes it. Channels already
// closed by Close are ignored.
func (h *Hub) Unregister(topic string, ch chan string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !lo.Contains(h.clients[topic], ch) {
		return
	}

	remaining := lo.Without(h.clients[topic], ch)
	if len(remaining) == 0 {
		delete(h.clients, topic)
	} else {
		h.clients[topic] = remaining
	}

	close(ch)
}

// Close disconnects every client by closing its channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for topic, clients := range h.clients {
		for _, ch := range clients {
			close(ch)
		}
		delete(h.clients, topic)
	}
}

// Publish sends a message to all clients of the topic. Clients whose
// buffer is full miss the message.
func (h *Hub) Publish(topic, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.clients[topic] {
		select {
		case ch <- message:
		default:
			// Channel full, skip (prevents blocking)
		}
	}
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, clients := range h.clients {
		for _, ch := range clients {
			select {
			case ch <- message:
			default:
				// Channel full, skip
			}
		}
	}
}

// ClientCount returns the total number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return lo.SumBy(lo.Values(h.clients), func(clients []chan string) int {
		return len(clients)
	})
}

// TopicCount returns the number of topics with active clients.
func (h *Hub) TopicCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}
