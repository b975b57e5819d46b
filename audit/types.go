// Copyright (C) 2025 Librarian AI (eng@librarian-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package audit

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event types in the audit log.
const (
	// EventValidation records one validation run and its result.
	EventValidation = "validation"

	// EventDecision records a human or automated ruling on a request.
	EventDecision = "decision"

	// EventDrift records one drift sweep and its findings.
	EventDrift = "drift_detection"
)

// Event is the audit log's sole storage unit.
//
// Events are append-only: no event is ever mutated or deleted after
// creation. The log is the single writer of immutable history.
type Event struct {
	// ID is the event identifier ("AUD-" + 12 hex chars).
	ID string `json:"id"`

	// EventType is one of EventValidation, EventDecision, EventDrift.
	EventType string `json:"event_type"`

	// RequestID links the event to an agent request, when there is
	// one. Drift events carry no request id.
	RequestID string `json:"request_id,omitempty"`

	// Actor is who caused the event (agent id, decision author, or
	// "drift-detector").
	Actor string `json:"actor,omitempty"`

	// Payload is the full event body (request + result, decision, or
	// sweep findings), stored verbatim for replay.
	Payload json.RawMessage `json:"payload"`

	// Timestamp is when the event was appended (UTC).
	Timestamp time.Time `json:"timestamp"`

	// IdempotencyKey deduplicates appends. Two appends with the same
	// key are one event: the second returns the first's id and writes
	// nothing. Empty disables deduplication.
	IdempotencyKey string `json:"-"`
}

// Stats aggregates the log's contents for reporting.
type Stats struct {
	// Total is the number of events in the log.
	Total int `json:"total"`

	// ByType counts events per event type.
	ByType map[string]int `json:"by_type"`

	// Oldest and Newest bound the log's time range. Zero when the log
	// is empty.
	Oldest time.Time `json:"oldest,omitempty"`
	Newest time.Time `json:"newest,omitempty"`
}

// NewEventID generates an audit event identifier.
func NewEventID() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "AUD-" + raw[:12]
}
