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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/librarian-ai/librarian/graph"
)

// fakeSink records appended events in memory.
type fakeSink struct {
	mu          sync.Mutex
	validations []*ValidationResult
	decisions   []*Decision
	failWrites  bool
}

func (f *fakeSink) RecordValidation(_ context.Context, req *AgentRequest, result *ValidationResult) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return "", errors.New("disk full")
	}
	f.validations = append(f.validations, result)
	return "AUD-test", nil
}

func (f *fakeSink) RecordDecision(_ context.Context, d *Decision) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return "", errors.New("disk full")
	}
	f.decisions = append(f.decisions, d)
	return "AUD-test", nil
}

// seedStore builds a graph with an approved architecture, an approved
// design under it, and one active plus one deprecated requirement.
func seedStore(t *testing.T) *graph.MemoryStore {
	t.Helper()
	s := graph.NewMemoryStore()
	ctx := context.Background()

	nodes := []graph.Node{
		{ID: "arch-storage", Type: graph.NodeArchitecture, Version: "1.2.0", Status: graph.StatusApproved,
			ComplianceLevel: graph.ComplianceStrict, DriftTolerance: graph.DriftToleranceNone},
		{ID: "design-engine", Type: graph.NodeDesign, Version: "1.0.0", Status: graph.StatusApproved},
		{ID: "req-durability", Type: graph.NodeRequirement, Status: graph.StatusActive},
		{ID: "req-legacy", Type: graph.NodeRequirement, Status: graph.StatusDeprecated},
	}
	for _, n := range nodes {
		require.NoError(t, s.AddNode(ctx, n))
	}
	require.NoError(t, s.AddEdge(ctx, graph.Edge{From: "design-engine", To: "arch-storage", Type: graph.EdgeImplements}))
	return s
}

func newTestEngine(t *testing.T, store graph.Store, sink AuditSink) *Engine {
	t.Helper()
	e, err := New(Config{Store: store, Audit: sink, RuleTimeout: 2 * time.Second})
	require.NoError(t, err)
	return e
}

// cleanDesignRequest is a request that passes every rule.
func cleanDesignRequest() *AgentRequest {
	req := newRequest(TargetDesign, ActionCreate)
	req.TargetID = ""
	req.Content.Path = "docs/design/query-planner.md"
	req.Content.Implements = "arch-storage"
	req.Content.Satisfies = []string{"req-durability"}
	return req
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestValidate_CleanRequestApproved(t *testing.T) {
	sink := &fakeSink{}
	e := newTestEngine(t, seedStore(t), sink)

	result, err := e.Validate(context.Background(), cleanDesignRequest())
	require.NoError(t, err)

	assert.Equal(t, StatusApproved, result.Status)
	assert.Empty(t, result.Violations)
	assert.True(t, result.Passed())
	assert.Equal(t, 5, result.RulesExecuted)
	assert.Equal(t, "All validation rules passed. Request is approved for processing.", result.Reasoning)
	assert.Len(t, sink.validations, 1, "result must be audit-logged")
}

func TestValidate_ScenarioA_DesignWithoutArchitecture(t *testing.T) {
	e := newTestEngine(t, seedStore(t), &fakeSink{})

	req := cleanDesignRequest()
	req.Content.Implements = ""

	result, err := e.Validate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, StatusEscalated, result.Status)
	byRule := rulesByID(result.Violations)
	require.NotEmpty(t, byRule[RuleArchAlignment])
	assert.Equal(t, SeverityCritical, byRule[RuleArchAlignment][0].Severity)
}

func TestValidate_ScenarioB_MalformedVersionEscalates(t *testing.T) {
	// The malformed-version classification: DOC-001 flags it MEDIUM,
	// VER-001 flags it CRITICAL, so the request escalates.
	e := newTestEngine(t, seedStore(t), &fakeSink{})

	req := cleanDesignRequest()
	req.Content.Meta[specVersionKey] = "1.2.x"

	result, err := e.Validate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, StatusEscalated, result.Status)
	byRule := rulesByID(result.Violations)
	require.Len(t, byRule[RuleDocStandards], 1)
	assert.Equal(t, SeverityMedium, byRule[RuleDocStandards][0].Severity)
	require.Len(t, byRule[RuleVersionCompat], 1)
	assert.Equal(t, SeverityCritical, byRule[RuleVersionCompat][0].Severity)
}

func TestValidate_ScenarioC_DeprecatedRequirement(t *testing.T) {
	e := newTestEngine(t, seedStore(t), &fakeSink{})

	req := cleanDesignRequest()
	req.Content.Satisfies = []string{"req-legacy"}

	result, err := e.Validate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, StatusRevisionRequired, result.Status)
	require.Len(t, result.Violations, 1)
	assert.Equal(t, RuleReqCoverage, result.Violations[0].Rule)
	assert.Equal(t, SeverityHigh, result.Violations[0].Severity)
}

func TestValidate_ScenarioD_NoSatisfiesIsAdvisoryOnly(t *testing.T) {
	// Leaving requirements uncovered is drift-detector territory; at
	// request time it is a warning, never a violation.
	e := newTestEngine(t, seedStore(t), &fakeSink{})

	req := cleanDesignRequest()
	req.Content.Satisfies = nil

	result, err := e.Validate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, StatusApproved, result.Status)
	assert.Empty(t, result.Violations)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, RuleReqCoverage, result.Warnings[0].Rule)
}

func TestValidate_ViolationsInRegistrationOrder(t *testing.T) {
	e := newTestEngine(t, seedStore(t), &fakeSink{})

	// Trips DOC-001 (missing fields), VER-001 (missing version),
	// ARCH-001 (no parent), REQ-001 (missing requirement).
	req := cleanDesignRequest()
	req.Content.Meta = map[string]string{specIDKey: "spec-x"}
	req.Content.Implements = ""
	req.Content.Satisfies = []string{"req-404"}

	// Concurrent completion order must not leak into the output.
	for i := 0; i < 5; i++ {
		result, err := e.Validate(context.Background(), req)
		require.NoError(t, err)

		var lastIdx int
		order := map[string]int{RuleDocStandards: 0, RuleVersionCompat: 1, RuleArchAlignment: 2, RuleReqCoverage: 3, RuleConstitution: 4}
		for _, v := range result.Violations {
			idx := order[v.Rule]
			require.GreaterOrEqual(t, idx, lastIdx, "violations out of registration order")
			lastIdx = idx
		}
	}
}

func TestValidate_ReasoningDeterministic(t *testing.T) {
	e := newTestEngine(t, seedStore(t), &fakeSink{})

	req := cleanDesignRequest()
	req.Content.Implements = ""
	req.Content.Meta[specVersionKey] = "1.2.x"

	first, err := e.Validate(context.Background(), req)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := e.Validate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, first.Reasoning, again.Reasoning)
		assert.Equal(t, first.Status, again.Status)
	}
}

func TestValidate_MalformedRequestNotLogged(t *testing.T) {
	sink := &fakeSink{}
	e := newTestEngine(t, seedStore(t), sink)

	_, err := e.Validate(context.Background(), &AgentRequest{})
	assert.ErrorIs(t, err, ErrMalformedRequest)
	assert.Empty(t, sink.validations, "malformed input is rejected before rules, nothing logged")
}

func TestValidate_GraphUnavailable(t *testing.T) {
	sink := &fakeSink{}
	e := newTestEngine(t, failingStore{}, sink)

	_, err := e.Validate(context.Background(), cleanDesignRequest())
	assert.ErrorIs(t, err, ErrGraphUnavailable)
	assert.Empty(t, sink.validations, "nothing is logged when context load fails")
}

func TestValidate_AuditWriteFailure(t *testing.T) {
	sink := &fakeSink{failWrites: true}
	e := newTestEngine(t, seedStore(t), sink)

	result, err := e.Validate(context.Background(), cleanDesignRequest())
	assert.ErrorIs(t, err, ErrAuditWrite)
	assert.Nil(t, result, "an unaudited decision has no standing")
}

func TestValidate_Cancellation(t *testing.T) {
	sink := &fakeSink{}
	e := newTestEngine(t, seedStore(t), sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Validate(ctx, cleanDesignRequest())
	assert.Error(t, err)
	assert.Empty(t, sink.validations, "cancellation must not persist a partial record")
}

func TestValidate_RuleTimeoutEscalates(t *testing.T) {
	sink := &fakeSink{}
	e := newTestEngine(t, seedStore(t), sink)
	e.ruleTimeout = 50 * time.Millisecond
	e.rules = append(Registry(), Rule{
		ID:       "HANG-001",
		Name:     "Stalling Rule",
		Severity: SeverityCritical,
		Evaluate: func(ctx context.Context, _ *AgentRequest, _ *Context) []Violation {
			time.Sleep(5 * time.Second)
			return nil
		},
	})

	result, err := e.Validate(context.Background(), cleanDesignRequest())
	require.NoError(t, err)

	assert.Equal(t, StatusEscalated, result.Status, "a timed-out rule must not silently pass")
	byRule := rulesByID(result.Violations)
	require.Len(t, byRule["HANG-001"], 1)
	assert.Equal(t, "rule evaluation failed", byRule["HANG-001"][0].Message)
	assert.Len(t, sink.validations, 1)
}

func TestValidate_RulePanicEscalates(t *testing.T) {
	e := newTestEngine(t, seedStore(t), &fakeSink{})
	e.rules = append(Registry(), Rule{
		ID:       "BOOM-001",
		Name:     "Panicking Rule",
		Severity: SeverityCritical,
		Evaluate: func(context.Context, *AgentRequest, *Context) []Violation {
			panic("unexpected nil")
		},
	})

	result, err := e.Validate(context.Background(), cleanDesignRequest())
	require.NoError(t, err)

	assert.Equal(t, StatusEscalated, result.Status)
	byRule := rulesByID(result.Violations)
	require.Len(t, byRule["BOOM-001"], 1)
	assert.Equal(t, SeverityCritical, byRule["BOOM-001"][0].Severity)
}

func TestValidate_ConcurrentCallers(t *testing.T) {
	sink := &fakeSink{}
	e := newTestEngine(t, seedStore(t), sink)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := e.Validate(context.Background(), cleanDesignRequest())
			assert.NoError(t, err)
			assert.Equal(t, StatusApproved, result.Status)
		}()
	}
	wg.Wait()
	assert.Len(t, sink.validations, 16)
}

func TestDecide(t *testing.T) {
	sink := &fakeSink{}
	e := newTestEngine(t, seedStore(t), sink)

	t.Run("records decision", func(t *testing.T) {
		err := e.Decide(context.Background(), &Decision{
			ID:           "dec-1",
			RequestID:    "req-001",
			DecisionType: "approved",
			Author:       "reviewer-9",
			AuthorType:   "human",
			Rationale:    "escalation reviewed",
		})
		require.NoError(t, err)
		require.Len(t, sink.decisions, 1)
		assert.False(t, sink.decisions[0].Timestamp.IsZero())
	})

	t.Run("missing request id", func(t *testing.T) {
		err := e.Decide(context.Background(), &Decision{ID: "dec-2"})
		assert.ErrorIs(t, err, ErrMalformedRequest)
	})

	t.Run("audit failure surfaces", func(t *testing.T) {
		sink.failWrites = true
		defer func() { sink.failWrites = false }()
		err := e.Decide(context.Background(), &Decision{ID: "dec-3", RequestID: "req-001"})
		assert.ErrorIs(t, err, ErrAuditWrite)
	})
}

func TestDeriveStatus(t *testing.T) {
	crit := Violation{Severity: SeverityCritical}
	high := Violation{Severity: SeverityHigh}
	med := Violation{Severity: SeverityMedium}
	low := Violation{Severity: SeverityLow}

	tests := []struct {
		name       string
		violations []Violation
		want       DecisionStatus
	}{
		{"no violations", nil, StatusApproved},
		{"single low", []Violation{low}, StatusRevisionRequired},
		{"single medium", []Violation{med}, StatusRevisionRequired},
		{"two high", []Violation{high, high}, StatusRevisionRequired},
		{"three high", []Violation{high, high, high}, StatusRevisionRequired},
		{"critical alone", []Violation{crit}, StatusEscalated},
		{"critical outranks everything", []Violation{high, high, high, med, crit}, StatusEscalated},
		{"critical last", []Violation{low, med, crit}, StatusEscalated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, deriveStatus(tt.violations))
		})
	}
}

func TestBuildReasoning(t *testing.T) {
	t.Run("critical lists distinct rules once", func(t *testing.T) {
		got := buildReasoning([]Violation{
			{Rule: RuleVersionCompat, Severity: SeverityCritical},
			{Rule: RuleConstitution, Severity: SeverityCritical},
			{Rule: RuleVersionCompat, Severity: SeverityCritical},
		})
		assert.Equal(t,
			"Request requires human review due to 3 critical violation(s) in rules: VER-001, CONST-001. These violations cannot be auto-resolved.",
			got)
	})

	t.Run("non-critical breakdown", func(t *testing.T) {
		got := buildReasoning([]Violation{
			{Rule: RuleDocStandards, Severity: SeverityHigh},
			{Rule: RuleDocStandards, Severity: SeverityHigh},
			{Rule: RuleDocStandards, Severity: SeverityMedium},
		})
		assert.Equal(t,
			"Request has 3 violation(s): 2 HIGH, 1 MEDIUM. Please address the violations and resubmit.",
			got)
	})
}

// failingStore simulates an unavailable graph backend.
type failingStore struct{}

var errBackend = errors.New("connection refused")

func (failingStore) Node(context.Context, string) (*graph.Node, error) { return nil, errBackend }
func (failingStore) Outgoing(context.Context, string, ...graph.EdgeType) ([]graph.Edge, error) {
	return nil, errBackend
}
func (failingStore) Incoming(context.Context, string, ...graph.EdgeType) ([]graph.Edge, error) {
	return nil, errBackend
}
func (failingStore) Traverse(context.Context, string, graph.Direction, int, ...graph.EdgeType) ([]graph.Edge, error) {
	return nil, errBackend
}
func (failingStore) NodesByType(context.Context, graph.NodeType) ([]*graph.Node, error) {
	return nil, errBackend
}
func (failingStore) AddNode(context.Context, graph.Node) error             { return errBackend }
func (failingStore) AddEdge(context.Context, graph.Edge) error             { return errBackend }
func (failingStore) SetStatus(context.Context, string, graph.Status) error { return errBackend }
