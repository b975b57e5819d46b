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

// evaluateArchAlignment is ARCH-001: changes must align with an
// approved architecture, and the specification hierarchy must stay a
// DAG.
func evaluateArchAlignment(_ context.Context, req *AgentRequest, gc *Context) []Violation {
	var violations []Violation
	parentID := req.Content.Implements

	if req.TargetType == TargetDesign {
		switch {
		case parentID == "":
			violations = append(violations, Violation{
				Rule:       RuleArchAlignment,
				Severity:   SeverityCritical,
				Message:    "design must reference an approved architecture",
				Suggestion: "declare the architecture this design implements",
			})
		default:
			parent, ok := gc.Specs[parentID]
			switch {
			case !ok:
				violations = append(violations, Violation{
					Rule:       RuleArchAlignment,
					Severity:   SeverityCritical,
					Message:    fmt.Sprintf("referenced architecture %q not found", parentID),
					Details:    map[string]any{"implements": parentID},
					Suggestion: "check the architecture id, or ingest the architecture first",
				})
			case parent.Type != graph.NodeArchitecture:
				violations = append(violations, Violation{
					Rule:     RuleArchAlignment,
					Severity: SeverityCritical,
					Message:  fmt.Sprintf("design implements %q, which is a %s, not an architecture", parentID, parent.Type),
					Details:  map[string]any{"implements": parentID, "parent_type": string(parent.Type)},
				})
			case parent.Status != graph.StatusApproved:
				violations = append(violations, Violation{
					Rule:       RuleArchAlignment,
					Severity:   SeverityCritical,
					Message:    fmt.Sprintf("referenced architecture %q is not approved", parentID),
					Details:    map[string]any{"implements": parentID, "status": string(parent.Status)},
					Suggestion: "reference an approved architecture, or get this one approved",
				})
			}
		}
	}

	if req.TargetType == TargetCode && parentID == "" {
		violations = append(violations, Violation{
			Rule:       RuleArchAlignment,
			Severity:   SeverityHigh,
			Message:    "code must reference the design it implements",
			Suggestion: "declare the design this code implements",
		})
	}

	if parentID != "" {
		if cycle := findCycle(req.SpecID(), parentID, gc.HierarchyEdges); cycle != nil {
			violations = append(violations, Violation{
				Rule:       RuleArchAlignment,
				Severity:   SeverityCritical,
				Message:    "circular dependency in specification hierarchy",
				Details:    map[string]any{"cycle": cycle},
				Suggestion: "specification hierarchies must form a DAG; break the cycle",
			})
		}
	}

	return violations
}

// findCycle checks whether adding the proposed specID -> parentID edge
// to the reachable IMPLEMENTS/DEFINES edges closes a cycle. Returns
// the node ids on the cycle, or nil.
//
// The walk is iterative DFS with the usual three colors; the edge set
// is whatever the engine could reach from the declared parent, so the
// check is bounded even on a large corpus.
func findCycle(specID, parentID string, edges []graph.Edge) []string {
	adj := make(map[string][]string, len(edges)+1)
	for _, e := range edges {
		adj[e.From] = append(adj[e.From], e.To)
	}
	if specID != "" {
		adj[specID] = append(adj[specID], parentID)
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(adj))

	var stack []string
	var dfs func(string) []string
	dfs = func(node string) []string {
		color[node] = gray
		stack = append(stack, node)
		for _, next := range adj[node] {
			switch color[next] {
			case gray:
				// Found the back edge; slice out the cycle.
				for i, id := range stack {
					if id == next {
						return append(append([]string(nil), stack[i:]...), next)
					}
				}
				return []string{next, node, next}
			case white:
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			}
		}
		color[node] = black
		stack = stack[:len(stack)-1]
		return nil
	}

	start := specID
	if start == "" {
		start = parentID
	}
	if cycle := dfs(start); cycle != nil {
		return cycle
	}
	// The proposed edge may not be the one that closes the loop;
	// sweep any remaining components reachable from the parent side.
	for node := range adj {
		if color[node] == white {
			stack = stack[:0]
			if cycle := dfs(node); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
