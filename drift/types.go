// Copyright (C) 2025 Librarian AI (eng@librarian-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package drift

import (
	"time"

	"github.com/librarian-ai/librarian/validation"
)

// Type classifies a drift finding.
type Type string

const (
	// TypeDesignAhead is a design whose version ran ahead of the
	// architecture it implements, without a superseding decision.
	TypeDesignAhead Type = "design_ahead_of_architecture"

	// TypeUndocumentedCode is a recently ingested code artifact with no
	// link to any design or requirement.
	TypeUndocumentedCode Type = "undocumented_code"

	// TypeUncoveredRequirement is an active requirement nothing
	// satisfies, excluding requirements marked deferred.
	TypeUncoveredRequirement Type = "uncovered_requirement"

	// TypeVersionMismatch is a child spec whose recorded
	// compatible-parent version no longer matches the parent.
	TypeVersionMismatch Type = "version_mismatch"
)

// Violation is one drift finding. Findings are reports, never
// triggers: remediation always goes through a new agent request, and
// no component mutates the graph from drift results.
type Violation struct {
	// Type classifies the finding.
	Type Type `json:"type"`

	// Severity uses the shared validation severity scale.
	Severity validation.Severity `json:"severity"`

	// SourceID is the node that drifted.
	SourceID string `json:"source_id"`

	// TargetIDs are the node(s) it drifted relative to, if any.
	TargetIDs []string `json:"target_ids,omitempty"`

	// Message is the human-readable description.
	Message string `json:"message"`

	// Details carries structured context (versions, timestamps).
	Details map[string]any `json:"details,omitempty"`

	// DetectedAt is when the sweep found this (UTC).
	DetectedAt time.Time `json:"detected_at"`
}

// Summary aggregates one sweep's findings for reporting.
type Summary struct {
	// Total is the number of violations found.
	Total int `json:"total"`

	// ByType counts violations per drift type.
	ByType map[Type]int `json:"by_type"`

	// BySeverity counts violations per severity.
	BySeverity map[validation.Severity]int `json:"by_severity"`

	// GeneratedAt is when the summary was computed (UTC).
	GeneratedAt time.Time `json:"generated_at"`
}

// Summarize aggregates counts by type and severity.
func Summarize(violations []Violation, at time.Time) Summary {
	s := Summary{
		Total:       len(violations),
		ByType:      make(map[Type]int),
		BySeverity:  make(map[validation.Severity]int),
		GeneratedAt: at.UTC(),
	}
	for _, v := range violations {
		s.ByType[v.Type]++
		s.BySeverity[v.Severity]++
	}
	return s
}
