// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package sse

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Heartbeat is a comment line. Clients ignore it, proxies see traffic.
const Heartbeat = ": heartbeat\n\n"

// Event is a single message in the text/event-stream format.
type Event struct {
	Name string
	ID   string
	Data string
}

// NewJSONEvent encodes v as the data of a named event.
func NewJSONEvent(name, id string, v any) (Event, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Event{}, fmt.Errorf("encode sse event: %w", err)
	}
	return Event{Name: name, ID: id, Data: string(data)}, nil
}

// String renders the event as wire text, one data line per line of Data,
// terminated by a blank line.
func (e Event) String() string {
	var sb strings.Builder
	if e.Name != "" {
		sb.WriteString("event: " + e.Name + "\n")
	}
	if e.ID != "" {
		sb.WriteString("id: " + e.ID + "\n")
	}
	for line := range strings.SplitSeq(e.Data, "\n") {
		sb.WriteString("data: " + line + "\n")
	}
	sb.WriteString("\n")
	return sb.String()
}
