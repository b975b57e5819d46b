// Copyright (C) 2025 Librarian AI (eng@librarian-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import "context"

// Store is the query capability the engine consumes from the
// specification graph collaborator.
//
// # Description
//
// Store exposes point lookup, traversal along named edge types up to a
// bounded depth, type sweeps, and atomic node/edge creation. There is
// no delete operation: governance-relevant history is immutable and
// retirement is a status change.
//
// # Thread Safety
//
// Implementations must support concurrent reads without lock
// contention between readers (snapshot semantics preferred over global
// locks). Drift sweeps and request validation read the graph at the
// same time.
type Store interface {
	// Node returns the node with the given ID, or ErrNotFound.
	Node(ctx context.Context, id string) (*Node, error)

	// Outgoing returns edges leaving id whose type is in types.
	// An empty types list matches every edge type.
	Outgoing(ctx context.Context, id string, types ...EdgeType) ([]Edge, error)

	// Incoming returns edges arriving at id whose type is in types.
	// An empty types list matches every edge type.
	Incoming(ctx context.Context, id string, types ...EdgeType) ([]Edge, error)

	// Traverse walks from the given node along edges of the named
	// types, in the given direction, up to maxDepth hops. A maxDepth
	// of 0 uses DefaultMaxDepth. Returns every edge crossed, in BFS
	// order. Already-visited nodes are not expanded again, so the walk
	// terminates even on cyclic inputs.
	Traverse(ctx context.Context, from string, dir Direction, maxDepth int, types ...EdgeType) ([]Edge, error)

	// NodesByType returns all nodes of the given type. Property
	// filtering (status, version comparisons) happens caller-side on
	// the returned copies.
	NodesByType(ctx context.Context, t NodeType) ([]*Node, error)

	// AddNode atomically creates a node. Returns ErrDuplicateNode if
	// the ID is taken.
	AddNode(ctx context.Context, n Node) error

	// AddEdge atomically creates an edge. Both endpoints must exist.
	AddEdge(ctx context.Context, e Edge) error

	// SetStatus updates a node's lifecycle status. This is the only
	// in-place mutation the engine ever performs (tombstoning via
	// status=deprecated).
	SetStatus(ctx context.Context, id string, s Status) error
}
