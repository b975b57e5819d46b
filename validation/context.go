// Copyright (C) 2025 Librarian AI (eng@librarian-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import (
	"context"
	"errors"
	"fmt"

	"github.com/librarian-ai/librarian/graph"
)

// Context is the immutable graph snapshot a validation run evaluates
// against. The engine loads it once, before rule fan-out; rules only
// read it, so sharing one instance across concurrent rules is safe.
type Context struct {
	// Target is the existing node the request modifies or deletes.
	// Nil for create actions and for targets that do not exist.
	Target *graph.Node

	// Specs holds every referenced node (declared parent, satisfied
	// requirements) keyed by id. A referenced id that did not resolve
	// is simply absent.
	Specs map[string]*graph.Node

	// HierarchyEdges are the IMPLEMENTS/DEFINES edges reachable from
	// the declared parent. ARCH-001 runs its cycle check over these.
	HierarchyEdges []graph.Edge

	// Decisions are decision nodes with an APPROVES or TARGETS edge
	// into the request's target. VER-001 consults them for major
	// version bumps.
	Decisions []*graph.Node
}

// loadContext gathers everything the rules need in one pass.
//
// A missing node is not an error; rules decide what absence means.
// Any other graph failure aborts the whole call: per the error
// taxonomy the caller retries and nothing is logged.
func loadContext(ctx context.Context, store graph.Store, req *AgentRequest) (*Context, error) {
	gc := &Context{Specs: make(map[string]*graph.Node)}

	lookup := func(id string) (*graph.Node, error) {
		n, err := store.Node(ctx, id)
		if err != nil {
			if errors.Is(err, graph.ErrNotFound) {
				return nil, nil
			}
			return nil, fmt.Errorf("%w: load %s: %v", ErrGraphUnavailable, id, err)
		}
		return n, nil
	}

	if req.TargetID != "" {
		n, err := lookup(req.TargetID)
		if err != nil {
			return nil, err
		}
		gc.Target = n
	}

	if parent := req.Content.Implements; parent != "" {
		n, err := lookup(parent)
		if err != nil {
			return nil, err
		}
		if n != nil {
			gc.Specs[parent] = n
		}

		edges, err := store.Traverse(ctx, parent, graph.DirOut, 0,
			graph.EdgeImplements, graph.EdgeDefines)
		if err != nil {
			return nil, fmt.Errorf("%w: traverse from %s: %v", ErrGraphUnavailable, parent, err)
		}
		gc.HierarchyEdges = edges
	}

	for _, reqID := range req.Content.Satisfies {
		n, err := lookup(reqID)
		if err != nil {
			return nil, err
		}
		if n != nil {
			gc.Specs[reqID] = n
		}
	}

	if target := req.SpecID(); target != "" {
		edges, err := store.Incoming(ctx, target, graph.EdgeApproves, graph.EdgeTargets)
		if err != nil {
			return nil, fmt.Errorf("%w: decisions for %s: %v", ErrGraphUnavailable, target, err)
		}
		for _, e := range edges {
			n, err := lookup(e.From)
			if err != nil {
				return nil, err
			}
			if n != nil && n.Type == graph.NodeDecision {
				gc.Decisions = append(gc.Decisions, n)
			}
		}
	}

	return gc, nil
}
