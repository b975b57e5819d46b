// Copyright (C) 2025 Librarian AI (eng@librarian-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store implementation.
//
// # Description
//
// Backed by plain maps under a RWMutex. All reads return defensive
// copies, so a caller holding results never observes later writes.
// Suitable for tests and for embedders that wire their own durable
// backend later.
//
// # Thread Safety
//
// Safe for concurrent use. Readers share the lock; a traversal holds
// it only while collecting edges, never across caller code.
type MemoryStore struct {
	mu    sync.RWMutex
	nodes map[string]*Node
	out   map[string][]Edge
	in    map[string][]Edge
}

// NewMemoryStore returns an empty in-memory graph.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes: make(map[string]*Node),
		out:   make(map[string][]Edge),
		in:    make(map[string][]Edge),
	}
}

// Node returns a copy of the node with the given ID.
func (s *MemoryStore) Node(ctx context.Context, id string) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return n.Clone(), nil
}

// Outgoing returns edges leaving id, filtered by type.
func (s *MemoryStore) Outgoing(ctx context.Context, id string, types ...EdgeType) ([]Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterEdges(s.out[id], types), nil
}

// Incoming returns edges arriving at id, filtered by type.
func (s *MemoryStore) Incoming(ctx context.Context, id string, types ...EdgeType) ([]Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterEdges(s.in[id], types), nil
}

// Traverse walks the graph BFS from the given node.
func (s *MemoryStore) Traverse(ctx context.Context, from string, dir Direction, maxDepth int, types ...EdgeType) ([]Edge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	adj := s.out
	if dir == DirIn {
		adj = s.in
	}

	var result []Edge
	visited := map[string]bool{from: true}
	frontier := []string{from}

	for depth := 0; depth < maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			for _, e := range filterEdges(adj[id], types) {
				result = append(result, e)
				if len(result) >= DefaultMaxResults {
					return result, nil
				}
				far := e.To
				if dir == DirIn {
					far = e.From
				}
				if !visited[far] {
					visited[far] = true
					next = append(next, far)
				}
			}
		}
		frontier = next
	}
	return result, nil
}

// NodesByType returns copies of all nodes of the given type, sorted by
// ID for deterministic sweeps.
func (s *MemoryStore) NodesByType(ctx context.Context, t NodeType) ([]*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Node
	for _, n := range s.nodes {
		if n.Type == t {
			result = append(result, n.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// AddNode atomically creates a node.
func (s *MemoryStore) AddNode(ctx context.Context, n Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := n.Validate(); err != nil {
		return err
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.nodes[n.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
	}
	s.nodes[n.ID] = n.Clone()
	return nil
}

// AddEdge atomically creates an edge between two existing nodes.
func (s *MemoryStore) AddEdge(ctx context.Context, e Edge) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.Validate(); err != nil {
		return err
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[e.From]; !ok {
		return fmt.Errorf("%w: %s", ErrDanglingEdge, e.From)
	}
	if _, ok := s.nodes[e.To]; !ok {
		return fmt.Errorf("%w: %s", ErrDanglingEdge, e.To)
	}
	s.out[e.From] = append(s.out[e.From], e)
	s.in[e.To] = append(s.in[e.To], e)
	return nil
}

// SetStatus updates a node's lifecycle status in place.
func (s *MemoryStore) SetStatus(ctx context.Context, id string, status Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	n.Status = status
	return nil
}

func filterEdges(edges []Edge, types []EdgeType) []Edge {
	if len(types) == 0 {
		return append([]Edge(nil), edges...)
	}
	want := make(map[EdgeType]bool, len(types))
	for _, t := range types {
		want[t] = true
	}
	var result []Edge
	for _, e := range edges {
		if want[e.Type] {
			result = append(result, e)
		}
	}
	return result
}
