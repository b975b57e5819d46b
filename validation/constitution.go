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

// immutableTargets are the governance node kinds that may never be
// deleted. Hard deletion of any of these erases history, which is the
// one thing the audit trail exists to prevent.
var immutableTargets = map[TargetType]struct{}{
	TargetDecision:     {},
	TargetAuditEvent:   {},
	TargetAgentRequest: {},
}

var immutableNodeTypes = map[graph.NodeType]struct{}{
	graph.NodeDecision:     {},
	graph.NodeAgentRequest: {},
	graph.NodeAuditEvent:   {},
}

// authorizedRoles may modify approved specifications, provided the
// request carries a rationale.
var authorizedRoles = map[string]struct{}{
	"maintainer": {},
	"admin":      {},
}

// evaluateConstitution is CONST-001: the non-negotiable governance
// invariants.
func evaluateConstitution(_ context.Context, req *AgentRequest, gc *Context) []Violation {
	var violations []Violation

	if req.Action == ActionDelete {
		_, immutableType := immutableTargets[req.TargetType]
		if !immutableType && gc.Target != nil {
			_, immutableType = immutableNodeTypes[gc.Target.Type]
		}
		if immutableType {
			violations = append(violations, Violation{
				Rule:       RuleConstitution,
				Severity:   SeverityCritical,
				Message:    fmt.Sprintf("cannot delete %s: the audit trail is immutable", req.TargetType),
				Details:    map[string]any{"target_type": string(req.TargetType), "target_id": req.TargetID},
				Suggestion: "governance records are never deleted; supersede them instead",
			})
		}
	}

	if req.Action == ActionModify && gc.Target != nil && gc.Target.Status == graph.StatusApproved {
		if req.Rationale == "" {
			violations = append(violations, Violation{
				Rule:       RuleConstitution,
				Severity:   SeverityCritical,
				Message:    fmt.Sprintf("modifying approved specification %q requires a rationale", gc.Target.ID),
				Details:    map[string]any{"target_id": gc.Target.ID},
				Suggestion: "explain why the approved specification must change",
			})
		}
		if _, ok := authorizedRoles[req.Role]; !ok {
			violations = append(violations, Violation{
				Rule:       RuleConstitution,
				Severity:   SeverityCritical,
				Message:    fmt.Sprintf("role %q is not authorized to modify approved specifications", req.Role),
				Details:    map[string]any{"role": req.Role, "target_id": gc.Target.ID},
				Suggestion: "have a maintainer submit or co-sign the change",
			})
		}
	}

	violations = append(violations, checkHierarchyOrder(req, gc)...)
	return violations
}

// checkHierarchyOrder enforces the Architecture -> Design -> Code
// layering: a higher layer never implements a lower one, and a lower
// layer never builds on an absent or unapproved higher artifact.
func checkHierarchyOrder(req *AgentRequest, gc *Context) []Violation {
	parentID := req.Content.Implements
	if parentID == "" || (req.Action != ActionCreate && req.Action != ActionModify) {
		return nil
	}

	var violations []Violation
	parent, parentKnown := gc.Specs[parentID]

	switch req.TargetType {
	case TargetArchitecture:
		if parentKnown && (parent.Type == graph.NodeDesign || parent.Type == graph.NodeCode) {
			violations = append(violations, Violation{
				Rule:       RuleConstitution,
				Severity:   SeverityCritical,
				Message:    "architecture cannot implement a lower-level specification",
				Details:    map[string]any{"implements": parentID, "parent_type": string(parent.Type)},
				Suggestion: "architecture is the top layer; remove the implements declaration",
			})
		}
	case TargetDesign:
		if parentKnown && parent.Type == graph.NodeCode {
			violations = append(violations, Violation{
				Rule:       RuleConstitution,
				Severity:   SeverityCritical,
				Message:    "design cannot implement code",
				Details:    map[string]any{"implements": parentID},
				Suggestion: "design implements architecture, not code",
			})
		}
	case TargetCode:
		switch {
		case !parentKnown:
			violations = append(violations, Violation{
				Rule:       RuleConstitution,
				Severity:   SeverityCritical,
				Message:    fmt.Sprintf("code references absent specification %q", parentID),
				Details:    map[string]any{"implements": parentID},
				Suggestion: "ingest and approve the design before implementing it",
			})
		case parent.Status != graph.StatusApproved:
			violations = append(violations, Violation{
				Rule:       RuleConstitution,
				Severity:   SeverityCritical,
				Message:    fmt.Sprintf("code references unapproved specification %q", parentID),
				Details:    map[string]any{"implements": parentID, "status": string(parent.Status)},
				Suggestion: "get the specification approved before implementing it",
			})
		}
	}

	return violations
}
