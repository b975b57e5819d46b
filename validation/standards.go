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
	"regexp"
	"strings"
)

// requiredMeta lists the metadata keys every specification type must
// carry. Architecture additionally declares how strictly it binds its
// children and how much drift it tolerates.
var requiredMeta = map[TargetType][]string{
	TargetArchitecture: {specDocKey, specSubsystemKey, specIDKey, specVersionKey, specStatusKey, specOwnersKey, specComplianceKey, specDriftToleranceKey},
	TargetDesign:       {specDocKey, specSubsystemKey, specIDKey, specVersionKey, specStatusKey, specOwnersKey},
	TargetRequirement:  {specDocKey, specSubsystemKey, specIDKey, specVersionKey, specStatusKey, specOwnersKey},
	TargetCode:         {specDocKey, specSubsystemKey, specIDKey, specVersionKey, specStatusKey, specOwnersKey},
}

// expectedPaths is the placement convention per specification type.
// Code artifacts have no fixed location and are not checked.
var expectedPaths = map[TargetType]*regexp.Regexp{
	TargetArchitecture: regexp.MustCompile(`^docs/architecture/.*\.md$`),
	TargetDesign:       regexp.MustCompile(`^docs/design/.*\.md$`),
	TargetRequirement:  regexp.MustCompile(`^docs/requirements/.*\.md$`),
}

// evaluateDocStandards is DOC-001: document structure and metadata.
//
// Each missing required key produces its own violation (HIGH). A
// malformed version string and a misplaced document are MEDIUM
// findings here; the version's compatibility consequences are VER-001
// territory.
func evaluateDocStandards(_ context.Context, req *AgentRequest, _ *Context) []Violation {
	var violations []Violation

	if required, ok := requiredMeta[req.TargetType]; ok {
		for _, key := range required {
			if req.Meta(key) != "" {
				continue
			}
			violations = append(violations, Violation{
				Rule:       RuleDocStandards,
				Severity:   SeverityHigh,
				Message:    fmt.Sprintf("missing required metadata field %q for %s", key, req.TargetType),
				Details:    map[string]any{"field": key, "target_type": string(req.TargetType)},
				Suggestion: fmt.Sprintf("add %q to the document frontmatter", key),
			})
		}
	}

	if v := req.Version(); v != "" && !IsSemver(v) {
		violations = append(violations, Violation{
			Rule:       RuleDocStandards,
			Severity:   SeverityMedium,
			Message:    "version must use semantic versioning (MAJOR.MINOR.PATCH)",
			Details:    map[string]any{"version": v},
			Suggestion: "use a version like 1.0.0",
		})
	}

	if pattern, ok := expectedPaths[req.TargetType]; ok {
		path := strings.ReplaceAll(req.Content.Path, "\\", "/")
		if path != "" && !pattern.MatchString(path) {
			violations = append(violations, Violation{
				Rule:       RuleDocStandards,
				Severity:   SeverityMedium,
				Message:    fmt.Sprintf("document of type %s is not in its expected location", req.TargetType),
				Details:    map[string]any{"path": path, "expected_pattern": pattern.String()},
				Suggestion: fmt.Sprintf("move the document to match %s", pattern.String()),
			})
		}
	}

	return violations
}
