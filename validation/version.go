// Copyright (C) 2025 Librarian AI (eng@librarian-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import (
	"context"
	"fmt"
)

// evaluateVersionCompat is VER-001: version consistency across the
// specification hierarchy.
//
// A malformed version string is itself a CRITICAL violation. This
// classification is deliberate and tested: the same string also trips
// DOC-001 at MEDIUM, but version compatibility cannot be reasoned
// about at all when the version does not parse, so the fail-safe
// direction is escalation.
func evaluateVersionCompat(_ context.Context, req *AgentRequest, gc *Context) []Violation {
	version := req.Version()
	if version == "" {
		return []Violation{{
			Rule:       RuleVersionCompat,
			Severity:   SeverityHigh,
			Message:    "version is required for all specifications",
			Suggestion: "add a version field to the document frontmatter",
		}}
	}

	if !IsSemver(version) {
		return []Violation{{
			Rule:       RuleVersionCompat,
			Severity:   SeverityCritical,
			Message:    "invalid semantic version format",
			Details:    map[string]any{"version": version},
			Suggestion: "use MAJOR.MINOR.PATCH with non-negative integers",
		}}
	}

	var violations []Violation

	if parentID := req.Content.Implements; parentID != "" {
		if parent, ok := gc.Specs[parentID]; ok && parent.Version != "" {
			if !IsSemver(parent.Version) {
				violations = append(violations, Violation{
					Rule:     RuleVersionCompat,
					Severity: SeverityHigh,
					Message:  fmt.Sprintf("parent specification %q has a malformed version", parentID),
					Details:  map[string]any{"parent": parentID, "parent_version": parent.Version},
				})
			} else if MajorOf(version) > MajorOf(parent.Version) {
				violations = append(violations, Violation{
					Rule:     RuleVersionCompat,
					Severity: SeverityCritical,
					Message:  "major version exceeds the parent specification's major version",
					Details: map[string]any{
						"version":        version,
						"parent":         parentID,
						"parent_version": parent.Version,
					},
					Suggestion: "align the major version with the parent, or version the parent first",
				})
			}
		}
	}

	// A major bump over the recorded node requires an explicit
	// decision on record; silent rewrites of the contract escalate.
	if gc.Target != nil && IsSemver(gc.Target.Version) {
		if MajorOf(version) > MajorOf(gc.Target.Version) && len(gc.Decisions) == 0 {
			violations = append(violations, Violation{
				Rule:     RuleVersionCompat,
				Severity: SeverityCritical,
				Message:  "major version bump without an approving decision",
				Details: map[string]any{
					"version":         version,
					"current_version": gc.Target.Version,
					"target":          gc.Target.ID,
				},
				Suggestion: "record a decision node targeting this specification before bumping the major version",
			})
		}
	}

	return violations
}
