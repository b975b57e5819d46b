// Copyright (C) 2025 Librarian AI (eng@librarian-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import "time"

// Severity classifies how serious a violation is.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Rank orders severities for comparison; higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityHigh:
		return 3
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 1
	default:
		return 0
	}
}

// Rule identifiers. The rule set is closed: these five rules, always
// evaluated, always in this order.
const (
	RuleDocStandards  = "DOC-001"
	RuleVersionCompat = "VER-001"
	RuleArchAlignment = "ARCH-001"
	RuleReqCoverage   = "REQ-001"
	RuleConstitution  = "CONST-001"
)

// Violation is a single rule finding.
//
// Violations are ephemeral: they exist per validation run and are
// persisted only inside the ValidationResult audit record.
type Violation struct {
	// Rule is the identifier of the rule that produced this finding.
	Rule string `json:"rule"`

	// Severity classifies the finding.
	Severity Severity `json:"severity"`

	// Message is the human-readable description.
	Message string `json:"message"`

	// Details carries structured context (field names, versions, ids).
	Details map[string]any `json:"details,omitempty"`

	// Suggestion tells the agent how to fix the finding.
	Suggestion string `json:"suggestion,omitempty"`
}

// DecisionStatus is the terminal state of a validation run. These are
// the only decision states ever exposed to callers; engine-internal
// errors are surfaced as errors, never as APPROVED.
type DecisionStatus string

const (
	StatusApproved         DecisionStatus = "APPROVED"
	StatusRevisionRequired DecisionStatus = "REVISION_REQUIRED"
	StatusEscalated        DecisionStatus = "ESCALATED"
)

// ValidationResult is the outcome of validating one request.
//
// Written once and never mutated; it is part of the audit trail.
type ValidationResult struct {
	// RequestID identifies the validated request.
	RequestID string `json:"request_id"`

	// Status is the derived decision state.
	Status DecisionStatus `json:"status"`

	// Violations are all rule findings, ordered by rule registration
	// order so results are reproducible regardless of which rule
	// finished first.
	Violations []Violation `json:"violations"`

	// Warnings are non-blocking advisories; they never affect Status.
	Warnings []Violation `json:"warnings,omitempty"`

	// Reasoning is a deterministic human-readable summary.
	Reasoning string `json:"reasoning"`

	// RulesExecuted is how many rules ran (always the full set).
	RulesExecuted int `json:"rules_executed"`

	// ProcessingTime is how long rule evaluation took.
	ProcessingTime time.Duration `json:"processing_time"`

	// EvaluatedAt is when the validation completed (UTC).
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// CriticalViolations returns the subset of violations with CRITICAL
// severity.
func (r *ValidationResult) CriticalViolations() []Violation {
	return r.filterSeverity(SeverityCritical)
}

// HighViolations returns the subset of violations with HIGH severity.
func (r *ValidationResult) HighViolations() []Violation {
	return r.filterSeverity(SeverityHigh)
}

func (r *ValidationResult) filterSeverity(s Severity) []Violation {
	var out []Violation
	for _, v := range r.Violations {
		if v.Severity == s {
			out = append(out, v)
		}
	}
	return out
}

// Passed reports whether the request was approved outright.
func (r *ValidationResult) Passed() bool {
	return r.Status == StatusApproved
}

// Decision records a human or automated ruling on a request. Decisions
// are appended to the audit log after the validation event for the
// same request id, preserving causal order.
type Decision struct {
	// ID is the decision identifier.
	ID string `json:"id"`

	// RequestID links the decision to the request it rules on.
	RequestID string `json:"request_id"`

	// DecisionType is the ruling (e.g. "approved", "rejected",
	// "escalation_resolved").
	DecisionType string `json:"decision_type"`

	// Author is who made the decision.
	Author string `json:"author"`

	// AuthorType distinguishes "human" from "system".
	AuthorType string `json:"author_type"`

	// Rationale explains the ruling.
	Rationale string `json:"rationale"`

	// Timestamp is when the decision was made (UTC).
	Timestamp time.Time `json:"timestamp"`
}
