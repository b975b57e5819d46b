// Copyright (C) 2025 Librarian AI (eng@librarian-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package audit is the append-only log of every validation, decision,
// and drift event.
//
// The log is the single writer of immutable history: events are never
// mutated or deleted after creation, and an unaudited decision has no
// standing. Storage is an embedded BadgerDB keyed for replay:
//
//	evt/<event-id>                      the event body (JSON)
//	ts/<padded-nanos>/<event-id>        time index
//	idx/req/<request-id>/<nanos>/<id>   per-request index, causal order
//	idx/agent/<agent-id>/<nanos>/<id>   per-agent index
//	idem/<idempotency-key>              dedup marker -> event id
//
// The idempotency marker is written in the same transaction as the
// event, so a duplicate append either sees the marker and returns the
// original event id, or conflicts at commit and retries its read.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/librarian-ai/librarian/drift"
	"github.com/librarian-ai/librarian/pkg/logging"
	"github.com/librarian-ai/librarian/telemetry"
	"github.com/librarian-ai/librarian/validation"
)

const (
	prefixEvent = "evt/"
	prefixTime  = "ts/"
	prefixReq   = "idx/req/"
	prefixAgent = "idx/agent/"
	prefixIdem  = "idem/"
)

// Config configures a Log.
type Config struct {
	// Store configures the BadgerDB backend.
	Store StoreConfig

	// Logger receives structured log output. Nil means Default().
	Logger *logging.Logger

	// Metrics receives append counters. Nil disables metrics.
	Metrics *telemetry.Metrics
}

// Log is the append-only audit log.
//
// # Thread Safety
//
// Safe for concurrent use. Appends are serialized per key by BadgerDB
// transactions; reads run on snapshots and never block writers.
type Log struct {
	db      *badger.DB
	log     *logging.Logger
	metrics *telemetry.Metrics
	now     func() time.Time
}

// Interface checks: the Log is the audit sink for both the validation
// engine and the drift detector.
var (
	_ validation.AuditSink = (*Log)(nil)
	_ drift.AuditSink      = (*Log)(nil)
)

// Open opens the audit log, creating its storage directory if needed.
// Call Close when done.
func Open(cfg Config) (*Log, error) {
	log := cfg.Logger
	if log == nil {
		log = logging.Default()
	}
	if cfg.Store.Logger == nil {
		cfg.Store.Logger = log.With("component", "audit-store").Slog()
	}
	db, err := openStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	return &Log{
		db:      db,
		log:     log.With("component", "audit"),
		metrics: cfg.Metrics,
		now:     time.Now,
	}, nil
}

// Close closes the underlying database.
func (l *Log) Close() error {
	return l.db.Close()
}

// Append writes one event durably and returns its id.
//
// Description:
//
//	The event body and all index keys are written in a single
//	transaction: either the full event is recorded or nothing is. When
//	the event carries an IdempotencyKey that the log has seen before,
//	nothing is written and the original event's id is returned.
//
// Outputs:
//
//	string - The event id (the original's, on a duplicate).
//	error - Non-nil if the write did not commit; the caller must treat
//	the event as not recorded.
func (l *Log) Append(ctx context.Context, e Event) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if e.ID == "" {
		e.ID = NewEventID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now()
	}
	e.Timestamp = e.Timestamp.UTC()

	body, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("audit: marshal event: %w", err)
	}

	var existingID string
	err = l.db.Update(func(txn *badger.Txn) error {
		if e.IdempotencyKey != "" {
			item, err := txn.Get([]byte(prefixIdem + e.IdempotencyKey))
			switch err {
			case nil:
				return item.Value(func(val []byte) error {
					existingID = string(val)
					return nil
				})
			case badger.ErrKeyNotFound:
				// First append for this key.
			default:
				return err
			}
			if err := txn.Set([]byte(prefixIdem+e.IdempotencyKey), []byte(e.ID)); err != nil {
				return err
			}
		}

		if err := txn.Set([]byte(prefixEvent+e.ID), body); err != nil {
			return err
		}
		nanos := fmt.Sprintf("%020d", e.Timestamp.UnixNano())
		if err := txn.Set([]byte(prefixTime+nanos+"/"+e.ID), []byte(e.ID)); err != nil {
			return err
		}
		if e.RequestID != "" {
			key := prefixReq + e.RequestID + "/" + nanos + "/" + e.ID
			if err := txn.Set([]byte(key), []byte(e.ID)); err != nil {
				return err
			}
		}
		if e.Actor != "" {
			key := prefixAgent + e.Actor + "/" + nanos + "/" + e.ID
			if err := txn.Set([]byte(key), []byte(e.ID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("audit: append: %w", err)
	}
	if existingID != "" {
		l.log.Debug("duplicate append ignored",
			"idempotency_key", e.IdempotencyKey, "event_id", existingID)
		return existingID, nil
	}

	if l.metrics != nil {
		l.metrics.AuditEventsTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("event_type", e.EventType)))
	}
	return e.ID, nil
}

// RecordValidation appends the validation event for a request.
// Idempotent per request id: revalidating a request returns the
// original event id.
func (l *Log) RecordValidation(ctx context.Context, req *validation.AgentRequest, result *validation.ValidationResult) (string, error) {
	payload, err := json.Marshal(struct {
		Request *validation.AgentRequest     `json:"request"`
		Result  *validation.ValidationResult `json:"result"`
	}{req, result})
	if err != nil {
		return "", fmt.Errorf("audit: marshal validation payload: %w", err)
	}
	return l.Append(ctx, Event{
		EventType:      EventValidation,
		RequestID:      req.ID,
		Actor:          req.AgentID,
		Payload:        payload,
		IdempotencyKey: req.ID + "/" + EventValidation,
	})
}

// RecordDecision appends a decision event. Idempotent per decision id,
// so replaying a decision does not duplicate history.
func (l *Log) RecordDecision(ctx context.Context, decision *validation.Decision) (string, error) {
	payload, err := json.Marshal(decision)
	if err != nil {
		return "", fmt.Errorf("audit: marshal decision payload: %w", err)
	}
	idem := decision.RequestID + "/" + EventDecision
	if decision.ID != "" {
		idem += "/" + decision.ID
	}
	return l.Append(ctx, Event{
		EventType:      EventDecision,
		RequestID:      decision.RequestID,
		Actor:          decision.Author,
		Payload:        payload,
		IdempotencyKey: idem,
	})
}

// RecordDrift appends one drift_detection event covering a whole
// sweep.
func (l *Log) RecordDrift(ctx context.Context, violations []drift.Violation, summary drift.Summary) (string, error) {
	payload, err := json.Marshal(struct {
		Violations []drift.Violation `json:"violations"`
		Summary    drift.Summary     `json:"summary"`
	}{violations, summary})
	if err != nil {
		return "", fmt.Errorf("audit: marshal drift payload: %w", err)
	}
	return l.Append(ctx, Event{
		EventType: EventDrift,
		Actor:     "drift-detector",
		Payload:   payload,
	})
}

// ByRequest returns every event for a request id in causal (append)
// order.
func (l *Log) ByRequest(ctx context.Context, requestID string) ([]Event, error) {
	return l.collect(ctx, prefixReq+requestID+"/", 0, false)
}

// ByAgent returns events recorded for an agent within [from, to).
// Zero bounds are open.
func (l *Log) ByAgent(ctx context.Context, agentID string, from, to time.Time) ([]Event, error) {
	events, err := l.collect(ctx, prefixAgent+agentID+"/", 0, false)
	if err != nil {
		return nil, err
	}
	return filterTimeRange(events, from, to), nil
}

// ByTimeRange returns events with timestamps in [from, to), oldest
// first. Zero bounds are open.
func (l *Log) ByTimeRange(ctx context.Context, from, to time.Time) ([]Event, error) {
	events, err := l.collect(ctx, prefixTime, 0, false)
	if err != nil {
		return nil, err
	}
	return filterTimeRange(events, from, to), nil
}

// Recent returns the newest n events, newest first.
func (l *Log) Recent(ctx context.Context, n int) ([]Event, error) {
	return l.collect(ctx, prefixTime, n, true)
}

// Stats aggregates the log's contents.
func (l *Log) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{ByType: make(map[string]int)}
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixEvent)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var e Event
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				return err
			}
			stats.Total++
			stats.ByType[e.EventType]++
			if stats.Oldest.IsZero() || e.Timestamp.Before(stats.Oldest) {
				stats.Oldest = e.Timestamp
			}
			if e.Timestamp.After(stats.Newest) {
				stats.Newest = e.Timestamp
			}
		}
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("audit: stats: %w", err)
	}
	return stats, nil
}

// collect walks an index prefix and loads the referenced events.
// limit 0 means unbounded; reverse walks newest first.
func (l *Log) collect(ctx context.Context, prefix string, limit int, reverse bool) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var events []Event
	err := l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		opts.Reverse = reverse
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := []byte(prefix)
		if reverse {
			// Reverse iteration seeks past the prefix's last key.
			seek = append([]byte(prefix), 0xFF)
		}
		for it.Seek(seek); it.Valid(); it.Next() {
			if limit > 0 && len(events) >= limit {
				break
			}
			var id string
			err := it.Item().Value(func(val []byte) error {
				id = string(val)
				return nil
			})
			if err != nil {
				return err
			}
			e, err := l.loadEvent(txn, id)
			if err != nil {
				return err
			}
			events = append(events, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	return events, nil
}

func (l *Log) loadEvent(txn *badger.Txn, id string) (Event, error) {
	var e Event
	item, err := txn.Get([]byte(prefixEvent + id))
	if err != nil {
		return e, fmt.Errorf("load event %s: %w", id, err)
	}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &e)
	})
	return e, err
}

func filterTimeRange(events []Event, from, to time.Time) []Event {
	var out []Event
	for _, e := range events {
		if !from.IsZero() && e.Timestamp.Before(from) {
			continue
		}
		if !to.IsZero() && !e.Timestamp.Before(to) {
			continue
		}
		out = append(out, e)
	}
	return out
}
