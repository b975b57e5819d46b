// Copyright (C) 2025 Librarian AI (eng@librarian-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package telemetry

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// Metrics contains the pre-defined instruments for Librarian.
//
// Description:
//
//	Provides counters and histograms for validation runs, rule
//	evaluation, drift sweeps, and audit writes. All instruments use
//	the "librarian_" prefix for consistent naming.
//
// Thread Safety: Safe for concurrent use after creation.
type Metrics struct {
	// ValidationsTotal counts validation runs by resulting status.
	ValidationsTotal metric.Int64Counter

	// ValidationDuration records end-to-end validation duration in seconds.
	ValidationDuration metric.Float64Histogram

	// RuleDuration records per-rule evaluation duration in seconds,
	// attributed by rule id.
	RuleDuration metric.Float64Histogram

	// RuleFailuresTotal counts rule evaluations that panicked or timed
	// out, attributed by rule id.
	RuleFailuresTotal metric.Int64Counter

	// DriftSweepsTotal counts drift sweeps by type and status.
	DriftSweepsTotal metric.Int64Counter

	// DriftViolationsTotal counts drift violations found, by type.
	DriftViolationsTotal metric.Int64Counter

	// AuditEventsTotal counts audit events appended, by event type.
	AuditEventsTotal metric.Int64Counter

	// GraphQueriesTotal counts graph store reads issued by the engine
	// and the drift detector.
	GraphQueriesTotal metric.Int64Counter
}

// NewMetrics creates a Metrics instance with all instruments
// registered on the given meter. Returns an error if any registration
// fails.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.ValidationsTotal, err = meter.Int64Counter(
		"librarian_validations_total",
		metric.WithDescription("Total validation runs by status"),
		metric.WithUnit("{validation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create validations_total: %w", err)
	}

	m.ValidationDuration, err = meter.Float64Histogram(
		"librarian_validation_duration_seconds",
		metric.WithDescription("End-to-end validation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, fmt.Errorf("create validation_duration: %w", err)
	}

	m.RuleDuration, err = meter.Float64Histogram(
		"librarian_rule_duration_seconds",
		metric.WithDescription("Per-rule evaluation duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1),
	)
	if err != nil {
		return nil, fmt.Errorf("create rule_duration: %w", err)
	}

	m.RuleFailuresTotal, err = meter.Int64Counter(
		"librarian_rule_failures_total",
		metric.WithDescription("Rule evaluations that panicked or timed out"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create rule_failures_total: %w", err)
	}

	m.DriftSweepsTotal, err = meter.Int64Counter(
		"librarian_drift_sweeps_total",
		metric.WithDescription("Total drift sweeps by type and status"),
		metric.WithUnit("{sweep}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create drift_sweeps_total: %w", err)
	}

	m.DriftViolationsTotal, err = meter.Int64Counter(
		"librarian_drift_violations_total",
		metric.WithDescription("Drift violations found, by type"),
		metric.WithUnit("{violation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create drift_violations_total: %w", err)
	}

	m.AuditEventsTotal, err = meter.Int64Counter(
		"librarian_audit_events_total",
		metric.WithDescription("Audit events appended, by event type"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create audit_events_total: %w", err)
	}

	m.GraphQueriesTotal, err = meter.Int64Counter(
		"librarian_graph_queries_total",
		metric.WithDescription("Graph store reads issued"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create graph_queries_total: %w", err)
	}

	return m, nil
}
