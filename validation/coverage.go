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

	"github.com/librarian-ai/librarian/graph"
)

// evaluateReqCoverage is REQ-001: every requirement a request claims
// to satisfy must exist and be active.
//
// The inverse direction, requirements nobody satisfies, is
// deliberately not checked here. Coverage gaps are a corpus property,
// not a request property; the drift detector sweeps for them.
func evaluateReqCoverage(_ context.Context, req *AgentRequest, gc *Context) []Violation {
	var violations []Violation

	for _, reqID := range req.Content.Satisfies {
		node, ok := gc.Specs[reqID]
		switch {
		case !ok:
			violations = append(violations, Violation{
				Rule:       RuleReqCoverage,
				Severity:   SeverityHigh,
				Message:    fmt.Sprintf("referenced requirement %q not found", reqID),
				Details:    map[string]any{"requirement_id": reqID},
				Suggestion: "check the requirement id",
			})
		case node.Type != graph.NodeRequirement:
			violations = append(violations, Violation{
				Rule:     RuleReqCoverage,
				Severity: SeverityHigh,
				Message:  fmt.Sprintf("%q is a %s, not a requirement", reqID, node.Type),
				Details:  map[string]any{"requirement_id": reqID, "type": string(node.Type)},
			})
		case node.Status != graph.StatusActive:
			violations = append(violations, Violation{
				Rule:       RuleReqCoverage,
				Severity:   SeverityHigh,
				Message:    fmt.Sprintf("referenced requirement %q is not active", reqID),
				Details:    map[string]any{"requirement_id": reqID, "status": string(node.Status)},
				Suggestion: "reference only active requirements",
			})
		}
	}

	return violations
}
