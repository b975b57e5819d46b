// Copyright (C) 2025 Librarian AI (eng@librarian-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Action is the change an agent proposes.
type Action string

const (
	ActionCreate Action = "create"
	ActionModify Action = "modify"
	ActionDelete Action = "delete"
)

// TargetType is the kind of artifact a request targets. The governance
// types (decision, audit_event, agent_request) are structurally valid
// targets so that delete attempts against them reach CONST-001 and are
// rejected with a violation instead of a parse error.
type TargetType string

const (
	TargetArchitecture TargetType = "architecture"
	TargetDesign       TargetType = "design"
	TargetRequirement  TargetType = "requirement"
	TargetCode         TargetType = "code"
	TargetDecision     TargetType = "decision"
	TargetAuditEvent   TargetType = "audit_event"
	TargetAgentRequest TargetType = "agent_request"
)

// Content is the proposed document: body plus frontmatter-like
// metadata. The engine operates on already-parsed content maps; raw
// document parsing happens upstream.
type Content struct {
	// Path is the proposed file location (e.g. "docs/design/storage.md").
	Path string `json:"path,omitempty"`

	// Meta is the frontmatter metadata map (doc, subsystem, id,
	// version, status, owners, ...).
	Meta map[string]string `json:"meta"`

	// Implements is the declared parent specification id, if any.
	Implements string `json:"implements,omitempty"`

	// Satisfies lists requirement ids this change claims to satisfy.
	Satisfies []string `json:"satisfies,omitempty"`

	// Body is the document text. The engine never parses it; it is
	// carried for hashing and audit payloads.
	Body string `json:"body,omitempty"`
}

// AgentRequest is a single proposed change, immutable once created.
type AgentRequest struct {
	// ID uniquely identifies the request.
	ID string `json:"id" validate:"required"`

	// AgentID identifies the agent proposing the change.
	AgentID string `json:"agent_id" validate:"required"`

	// SessionID groups requests from one agent session.
	SessionID string `json:"session_id,omitempty"`

	// Action is what the agent wants to do.
	Action Action `json:"action" validate:"required,oneof=create modify delete"`

	// TargetType is the kind of artifact being changed.
	TargetType TargetType `json:"target_type" validate:"required,oneof=architecture design requirement code decision audit_event agent_request"`

	// TargetID names the existing node for modify/delete actions.
	TargetID string `json:"target_id,omitempty" validate:"required_unless=Action create"`

	// Content is the proposed document.
	Content Content `json:"content"`

	// Rationale is why the change is needed.
	Rationale string `json:"rationale,omitempty"`

	// Role is the caller's role claim, asserted by the API layer
	// ("agent", "maintainer", "admin"). CONST-001 consults it when a
	// protected node is modified.
	Role string `json:"role,omitempty"`

	// SubmittedAt is when the agent submitted the request (UTC).
	SubmittedAt time.Time `json:"submitted_at" validate:"required"`
}

// Meta returns the metadata value for key, or "".
func (r *AgentRequest) Meta(key string) string {
	if r.Content.Meta == nil {
		return ""
	}
	return r.Content.Meta[key]
}

// Version returns the declared version from the metadata map.
func (r *AgentRequest) Version() string {
	return r.Meta(specVersionKey)
}

// SpecID returns the id the request declares for its artifact,
// preferring the metadata map over TargetID.
func (r *AgentRequest) SpecID() string {
	if id := r.Meta(specIDKey); id != "" {
		return id
	}
	return r.TargetID
}

// Metadata keys the rules interpret.
const (
	specDocKey             = "doc"
	specIDKey              = "id"
	specVersionKey         = "version"
	specStatusKey          = "status"
	specOwnersKey          = "owners"
	specSubsystemKey       = "subsystem"
	specComplianceKey      = "compliance_level"
	specDriftToleranceKey  = "drift_tolerance"
	specCompatibleWithKey  = "compatible_with"
)

// requestValidate is the shared validator for structural checks.
// Structural failures are hard input errors, not violations: a request
// missing its identity fields is rejected before any rule runs.
var requestValidate = validator.New()

// CheckStructure verifies the request carries the structural minimum.
// Returns ErrMalformedRequest (wrapped) when it does not.
func CheckStructure(req *AgentRequest) error {
	if req == nil {
		return fmt.Errorf("%w: nil request", ErrMalformedRequest)
	}
	if err := requestValidate.Struct(req); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRequest, err)
	}
	return nil
}
