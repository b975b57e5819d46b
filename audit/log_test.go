// Copyright (C) 2025 Librarian AI (eng@librarian-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package audit

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librarian-ai/librarian/drift"
	"github.com/librarian-ai/librarian/validation"
)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open(Config{Store: InMemoryStoreConfig()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func testRequest(id string) *validation.AgentRequest {
	return &validation.AgentRequest{
		ID:          id,
		AgentID:     "agent-7",
		Action:      validation.ActionCreate,
		TargetType:  validation.TargetDesign,
		SubmittedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func testResult(id string) *validation.ValidationResult {
	return &validation.ValidationResult{
		RequestID:     id,
		Status:        validation.StatusApproved,
		Reasoning:     "All validation rules passed. Request is approved for processing.",
		RulesExecuted: 5,
		EvaluatedAt:   time.Now().UTC(),
	}
}

func TestNewEventID_Format(t *testing.T) {
	id := NewEventID()
	assert.Regexp(t, `^AUD-[0-9a-f]{12}$`, id)
	assert.NotEqual(t, id, NewEventID())
}

func TestAppend_AssignsIDAndTimestamp(t *testing.T) {
	l := newTestLog(t)

	id, err := l.Append(context.Background(), Event{
		EventType: EventValidation,
		RequestID: "req-1",
		Payload:   json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	assert.Regexp(t, `^AUD-`, id)

	events, err := l.ByRequest(context.Background(), "req-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].ID)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestAppend_IdempotencyKey(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	first, err := l.Append(ctx, Event{
		EventType:      EventValidation,
		RequestID:      "req-1",
		Payload:        json.RawMessage(`{"attempt":1}`),
		IdempotencyKey: "req-1/validation",
	})
	require.NoError(t, err)

	second, err := l.Append(ctx, Event{
		EventType:      EventValidation,
		RequestID:      "req-1",
		Payload:        json.RawMessage(`{"attempt":2}`),
		IdempotencyKey: "req-1/validation",
	})
	require.NoError(t, err)
	assert.Equal(t, first, second, "duplicate append returns the original event id")

	events, err := l.ByRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Len(t, events, 1, "duplicate append writes nothing")
}

func TestRecordValidation_IdempotentPerRequest(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	first, err := l.RecordValidation(ctx, testRequest("req-1"), testResult("req-1"))
	require.NoError(t, err)
	second, err := l.RecordValidation(ctx, testRequest("req-1"), testResult("req-1"))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	stats, err := l.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Total)
}

func TestCausalOrderPerRequest(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	_, err := l.RecordValidation(ctx, testRequest("req-1"), testResult("req-1"))
	require.NoError(t, err)

	_, err = l.RecordDecision(ctx, &validation.Decision{
		ID:           "dec-1",
		RequestID:    "req-1",
		DecisionType: "approved",
		Author:       "reviewer-9",
		AuthorType:   "human",
		Timestamp:    time.Now().UTC(),
	})
	require.NoError(t, err)

	events, err := l.ByRequest(ctx, "req-1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EventValidation, events[0].EventType, "validation precedes decision")
	assert.Equal(t, EventDecision, events[1].EventType)
}

func TestRecordDecision_IdempotentPerDecisionID(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	decision := &validation.Decision{
		ID: "dec-1", RequestID: "req-1", DecisionType: "approved",
		Author: "reviewer-9", AuthorType: "human", Timestamp: time.Now().UTC(),
	}
	first, err := l.RecordDecision(ctx, decision)
	require.NoError(t, err)
	second, err := l.RecordDecision(ctx, decision)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// A distinct decision on the same request is a new event.
	other := &validation.Decision{
		ID: "dec-2", RequestID: "req-1", DecisionType: "escalation_resolved",
		Author: "reviewer-9", AuthorType: "human", Timestamp: time.Now().UTC(),
	}
	third, err := l.RecordDecision(ctx, other)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestRecordDrift(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	violations := []drift.Violation{
		{Type: drift.TypeUncoveredRequirement, Severity: validation.SeverityMedium, SourceID: "req-open"},
	}
	id, err := l.RecordDrift(ctx, violations, drift.Summarize(violations, time.Now()))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	stats, err := l.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ByType[EventDrift])
}

func TestByAgent_TimeRange(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := l.Append(ctx, Event{
			EventType: EventValidation,
			RequestID: "req-" + string(rune('a'+i)),
			Actor:     "agent-7",
			Payload:   json.RawMessage(`{}`),
			Timestamp: base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	events, err := l.ByAgent(ctx, "agent-7", base.Add(30*time.Minute), base.Add(150*time.Minute))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "req-b", events[0].RequestID)

	all, err := l.ByAgent(ctx, "agent-7", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestByTimeRange_OldestFirst(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	// Appended out of order; the time index sorts them.
	for _, offset := range []time.Duration{2 * time.Hour, 0, time.Hour} {
		_, err := l.Append(ctx, Event{
			EventType: EventDrift,
			Actor:     "drift-detector",
			Payload:   json.RawMessage(`{}`),
			Timestamp: base.Add(offset),
		})
		require.NoError(t, err)
	}

	events, err := l.ByTimeRange(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i := 1; i < len(events); i++ {
		assert.False(t, events[i].Timestamp.Before(events[i-1].Timestamp))
	}
}

func TestRecent(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_, err := l.Append(ctx, Event{
			EventType: EventValidation,
			Payload:   json.RawMessage(`{}`),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	events, err := l.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, base.Add(4*time.Minute), events[0].Timestamp, "newest first")
	assert.Equal(t, base.Add(3*time.Minute), events[1].Timestamp)
}

func TestStats(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	t.Run("empty log", func(t *testing.T) {
		stats, err := l.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, stats.Total)
		assert.True(t, stats.Oldest.IsZero())
	})

	t.Run("mixed events", func(t *testing.T) {
		_, err := l.RecordValidation(ctx, testRequest("req-1"), testResult("req-1"))
		require.NoError(t, err)
		_, err = l.RecordValidation(ctx, testRequest("req-2"), testResult("req-2"))
		require.NoError(t, err)
		_, err = l.RecordDrift(ctx, nil, drift.Summary{})
		require.NoError(t, err)

		stats, err := l.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, stats.Total)
		assert.Equal(t, 2, stats.ByType[EventValidation])
		assert.Equal(t, 1, stats.ByType[EventDrift])
		assert.False(t, stats.Newest.Before(stats.Oldest))
	})
}

func TestPersistence_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Store: StoreConfig{Path: dir, SyncWrites: true}}

	l, err := Open(cfg)
	require.NoError(t, err)
	id, err := l.RecordValidation(context.Background(), testRequest("req-1"), testResult("req-1"))
	require.NoError(t, err)
	require.NoError(t, l.Close())

	reopened, err := Open(cfg)
	require.NoError(t, err)
	defer reopened.Close()

	events, err := reopened.ByRequest(context.Background(), "req-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].ID)
}

func TestAppend_Concurrent(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_, err := l.Append(ctx, Event{
					EventType: EventValidation,
					RequestID: "req-shared",
					Payload:   json.RawMessage(`{}`),
				})
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	stats, err := l.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 80, stats.Total)
}

func TestAppend_Cancellation(t *testing.T) {
	l := newTestLog(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Append(ctx, Event{EventType: EventValidation, Payload: json.RawMessage(`{}`)})
	assert.Error(t, err)
}
