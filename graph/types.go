// Copyright (C) 2025 Librarian AI (eng@librarian-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import (
	"fmt"
	"time"
)

// Default limits for graph traversal.
const (
	// DefaultMaxDepth bounds traversal depth when callers pass 0.
	DefaultMaxDepth = 50

	// DefaultMaxResults bounds result set size when callers pass 0.
	DefaultMaxResults = 1000
)

// NodeType identifies the kind of specification node.
type NodeType string

const (
	NodeArchitecture NodeType = "architecture"
	NodeDesign       NodeType = "design"
	NodeRequirement  NodeType = "requirement"
	NodeCode         NodeType = "code"
	NodeDecision     NodeType = "decision"
	NodeAgentRequest NodeType = "agent_request"
	NodeAuditEvent   NodeType = "audit_event"
)

// allowedNodeTypes is the closed set of node types. Anything outside it
// is rejected at write time so queries can trust the type column.
var allowedNodeTypes = map[NodeType]struct{}{
	NodeArchitecture: {},
	NodeDesign:       {},
	NodeRequirement:  {},
	NodeCode:         {},
	NodeDecision:     {},
	NodeAgentRequest: {},
	NodeAuditEvent:   {},
}

// ValidNodeType reports whether t is in the node type whitelist.
func ValidNodeType(t NodeType) bool {
	_, ok := allowedNodeTypes[t]
	return ok
}

// EdgeType identifies the kind of relationship between two nodes.
type EdgeType string

const (
	EdgeImplements EdgeType = "IMPLEMENTS"
	EdgeSatisfies  EdgeType = "SATISFIES"
	EdgeDefines    EdgeType = "DEFINES"
	EdgeSupersedes EdgeType = "SUPERSEDES"
	EdgeApproves   EdgeType = "APPROVES"
	EdgeTargets    EdgeType = "TARGETS"
)

var allowedEdgeTypes = map[EdgeType]struct{}{
	EdgeImplements: {},
	EdgeSatisfies:  {},
	EdgeDefines:    {},
	EdgeSupersedes: {},
	EdgeApproves:   {},
	EdgeTargets:    {},
}

// ValidEdgeType reports whether t is in the edge type whitelist.
func ValidEdgeType(t EdgeType) bool {
	_, ok := allowedEdgeTypes[t]
	return ok
}

// Status is the lifecycle state of a specification node.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusReview     Status = "review"
	StatusApproved   Status = "approved"
	StatusActive     Status = "active"
	StatusDeprecated Status = "deprecated"
)

// ComplianceLevel is how strictly an architecture binds its children.
type ComplianceLevel string

const (
	ComplianceStrict   ComplianceLevel = "strict"
	ComplianceFlexible ComplianceLevel = "flexible"
	ComplianceAdvisory ComplianceLevel = "advisory"
)

// DriftTolerance is how much divergence an architecture accepts before
// it counts as drift.
type DriftTolerance string

const (
	DriftToleranceNone     DriftTolerance = "none"
	DriftToleranceMinor    DriftTolerance = "minor"
	DriftToleranceModerate DriftTolerance = "moderate"
)

// Node is a single specification graph node.
//
// # Description
//
// Nodes are identified by a stable slug ID and versioned with semver
// strings. A node is never edited in place: a mutation creates a new
// version through a validated request, optionally linked to its
// predecessor with a SUPERSEDES edge. ComplianceLevel and
// DriftTolerance are only meaningful on architecture nodes.
type Node struct {
	// ID is the stable slug identifier (e.g. "arch-storage-layer").
	ID string `json:"id"`

	// Type is the node kind; must pass ValidNodeType.
	Type NodeType `json:"type"`

	// Version is a semver string ("1.0.0"). May be empty on nodes that
	// are not versioned (decisions, requests).
	Version string `json:"version,omitempty"`

	// Status is the lifecycle state.
	Status Status `json:"status"`

	// Owners are the identifiers responsible for this node.
	Owners []string `json:"owners,omitempty"`

	// Subsystem groups nodes by the system area they describe.
	Subsystem string `json:"subsystem,omitempty"`

	// ComplianceLevel applies to architecture nodes only.
	ComplianceLevel ComplianceLevel `json:"compliance_level,omitempty"`

	// DriftTolerance applies to architecture nodes only.
	DriftTolerance DriftTolerance `json:"drift_tolerance,omitempty"`

	// ContentHash fingerprints the node's document body.
	ContentHash string `json:"content_hash,omitempty"`

	// Priority is used by requirement nodes ("high", "medium", "low").
	Priority string `json:"priority,omitempty"`

	// Deferred marks a requirement as intentionally not yet covered.
	// Deferred requirements are excluded from coverage sweeps.
	Deferred bool `json:"deferred,omitempty"`

	// CreatedAt is when the node was first ingested.
	CreatedAt time.Time `json:"created_at"`

	// LastReviewed is the most recent human review timestamp.
	LastReviewed time.Time `json:"last_reviewed,omitempty"`

	// Props carries backend-specific properties that the engine does
	// not interpret (e.g. "compatible_with" on child specs).
	Props map[string]string `json:"props,omitempty"`
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := *n
	if n.Owners != nil {
		out.Owners = append([]string(nil), n.Owners...)
	}
	if n.Props != nil {
		out.Props = make(map[string]string, len(n.Props))
		for k, v := range n.Props {
			out.Props[k] = v
		}
	}
	return &out
}

// Validate checks the node's structural invariants.
func (n *Node) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("node: %w: empty id", ErrInvalidNode)
	}
	if !ValidNodeType(n.Type) {
		return fmt.Errorf("node %s: %w: unknown type %q", n.ID, ErrInvalidNode, n.Type)
	}
	return nil
}

// Edge is a typed, directed relationship between two nodes.
type Edge struct {
	// From is the source node ID.
	From string `json:"from"`

	// To is the target node ID.
	To string `json:"to"`

	// Type is the relationship kind; must pass ValidEdgeType.
	Type EdgeType `json:"type"`

	// CreatedAt is when the edge was recorded.
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the edge's structural invariants.
func (e *Edge) Validate() error {
	if e.From == "" || e.To == "" {
		return fmt.Errorf("edge: %w: empty endpoint", ErrInvalidEdge)
	}
	if !ValidEdgeType(e.Type) {
		return fmt.Errorf("edge %s->%s: %w: unknown type %q", e.From, e.To, ErrInvalidEdge, e.Type)
	}
	return nil
}

// Direction selects traversal direction for Traverse.
type Direction int

const (
	// DirOut follows edges from source to target.
	DirOut Direction = iota

	// DirIn follows edges from target back to source.
	DirIn
)
