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
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/librarian-ai/librarian/graph"
	"github.com/librarian-ai/librarian/pkg/logging"
	"github.com/librarian-ai/librarian/telemetry"
)

// AuditSink receives the durable record of each validation run and
// decision. Implemented by the audit package; defined here so the
// engine does not depend on a concrete store.
type AuditSink interface {
	// RecordValidation appends the validation event for a request.
	// Returns the audit event id. Appending the same request id twice
	// must be idempotent: the original event id is returned and
	// nothing new is written.
	RecordValidation(ctx context.Context, req *AgentRequest, result *ValidationResult) (string, error)

	// RecordDecision appends a decision event. Decisions for a request
	// are written after its validation event, preserving causal order.
	RecordDecision(ctx context.Context, decision *Decision) (string, error)
}

// DefaultRuleTimeout bounds a single rule evaluation. A rule that
// exceeds it is treated as failed, not as passed.
const DefaultRuleTimeout = 5 * time.Second

// Config configures an Engine. Store is required; everything else has
// a usable default.
type Config struct {
	// Store is the specification graph the rules read.
	Store graph.Store

	// Audit receives validation and decision records. Nil disables
	// audit logging; production deployments always set it.
	Audit AuditSink

	// Logger receives structured engine logs. Nil means Default().
	Logger *logging.Logger

	// Metrics receives engine instruments. Nil disables metrics.
	Metrics *telemetry.Metrics

	// RuleTimeout bounds each rule evaluation. Zero means
	// DefaultRuleTimeout.
	RuleTimeout time.Duration
}

// Engine validates agent requests against the rule set.
//
// # Thread Safety
//
// Validate is stateless and safe for concurrent callers: the only
// shared state is the read-only graph store and the append-only audit
// sink. One Engine serves the whole process.
type Engine struct {
	store       graph.Store
	audit       AuditSink
	log         *logging.Logger
	metrics     *telemetry.Metrics
	ruleTimeout time.Duration
	rules       []Rule
	now         func() time.Time
}

// New creates an Engine. Returns an error if cfg.Store is nil.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("validation: nil graph store")
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Default()
	}
	timeout := cfg.RuleTimeout
	if timeout <= 0 {
		timeout = DefaultRuleTimeout
	}
	return &Engine{
		store:       cfg.Store,
		audit:       cfg.Audit,
		log:         log.With("component", "validation"),
		metrics:     cfg.Metrics,
		ruleTimeout: timeout,
		rules:       Registry(),
		now:         time.Now,
	}, nil
}

// Validate evaluates one request against the full rule set and returns
// the decision.
//
// Description:
//
//	The call runs in four phases: structural check, context load, rule
//	fan-out, and audit write. The five rules run concurrently over one
//	immutable context snapshot; the call suspends until all finish (no
//	partial results). A rule that panics or exceeds the rule timeout
//	contributes a synthetic CRITICAL violation instead of its findings,
//	so the fail-safe direction is ESCALATED, never APPROVED.
//
// Outputs:
//
//	*ValidationResult - The decision, with violations in rule
//	registration order. Nil when error is non-nil.
//	error - ErrMalformedRequest, ErrGraphUnavailable, ErrAuditWrite,
//	or the context's cancellation error. On any error nothing has
//	been audit-logged except the ErrAuditWrite case, where the write
//	itself failed and the validation has no standing.
func (e *Engine) Validate(ctx context.Context, req *AgentRequest) (*ValidationResult, error) {
	if err := CheckStructure(req); err != nil {
		return nil, err
	}

	gc, err := loadContext(ctx, e.store, req)
	if err != nil {
		return nil, err
	}
	e.countGraphQueries(ctx, req)

	start := e.now()
	results := make([][]Violation, len(e.rules))

	g, gctx := errgroup.WithContext(ctx)
	for i, rule := range e.rules {
		i, rule := i, rule
		g.Go(func() error {
			results[i] = e.runRule(gctx, rule, req, gc)
			return nil
		})
	}
	// Rule goroutines never return errors; Wait is pure fan-in.
	_ = g.Wait()

	// Cancellation must not persist a partial record. Check after
	// fan-in and before the audit write, which is the last step.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var violations []Violation
	for _, vs := range results {
		violations = append(violations, vs...)
	}

	result := &ValidationResult{
		RequestID:      req.ID,
		Status:         deriveStatus(violations),
		Violations:     violations,
		Warnings:       advisories(req),
		Reasoning:      buildReasoning(violations),
		RulesExecuted:  len(e.rules),
		ProcessingTime: e.now().Sub(start),
		EvaluatedAt:    e.now().UTC(),
	}

	if e.audit != nil {
		if _, err := e.audit.RecordValidation(ctx, req, result); err != nil {
			e.log.Error("audit write failed", "request_id", req.ID, "error", err)
			return nil, fmt.Errorf("%w: %v", ErrAuditWrite, err)
		}
	}

	e.log.Info("validation complete",
		"request_id", req.ID,
		"status", string(result.Status),
		"violations", len(result.Violations),
		"duration", result.ProcessingTime)
	if e.metrics != nil {
		e.metrics.ValidationsTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("status", string(result.Status))))
		e.metrics.ValidationDuration.Record(ctx, result.ProcessingTime.Seconds())
	}

	return result, nil
}

// Decide records a ruling on a previously validated request. The audit
// log keeps causal order per request id, so the decision lands after
// the validation event.
func (e *Engine) Decide(ctx context.Context, decision *Decision) error {
	if decision == nil || decision.RequestID == "" {
		return fmt.Errorf("%w: decision missing request id", ErrMalformedRequest)
	}
	if decision.Timestamp.IsZero() {
		decision.Timestamp = e.now().UTC()
	}
	if e.audit == nil {
		return nil
	}
	if _, err := e.audit.RecordDecision(ctx, decision); err != nil {
		return fmt.Errorf("%w: %v", ErrAuditWrite, err)
	}
	e.log.Info("decision recorded",
		"request_id", decision.RequestID,
		"decision_type", decision.DecisionType,
		"author_type", decision.AuthorType)
	return nil
}

// runRule evaluates one rule with panic recovery and a per-rule
// deadline. Rules are not trusted to honor the context, so the
// evaluation runs in its own goroutine and the deadline is enforced
// from outside. On panic or timeout the rule contributes one synthetic
// CRITICAL violation carrying its own rule id.
func (e *Engine) runRule(ctx context.Context, rule Rule, req *AgentRequest, gc *Context) []Violation {
	ruleCtx, cancel := context.WithTimeout(ctx, e.ruleTimeout)
	defer cancel()

	start := e.now()
	done := make(chan []Violation, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.log.Error("rule panicked", "rule", rule.ID, "panic", fmt.Sprint(r))
				done <- []Violation{failedRuleViolation(rule.ID, "panic")}
			}
		}()
		done <- rule.Evaluate(ruleCtx, req, gc)
	}()

	var violations []Violation
	select {
	case violations = <-done:
	case <-ruleCtx.Done():
		e.log.Warn("rule timed out", "rule", rule.ID, "timeout", e.ruleTimeout)
		violations = []Violation{failedRuleViolation(rule.ID, "timeout")}
	}

	if e.metrics != nil {
		e.metrics.RuleDuration.Record(ctx, e.now().Sub(start).Seconds(),
			metric.WithAttributes(attribute.String("rule", rule.ID)))
		if len(violations) == 1 && violations[0].Message == failedRuleMessage {
			e.metrics.RuleFailuresTotal.Add(ctx, 1,
				metric.WithAttributes(attribute.String("rule", rule.ID)))
		}
	}
	return violations
}

const failedRuleMessage = "rule evaluation failed"

func failedRuleViolation(ruleID, reason string) Violation {
	return Violation{
		Rule:       ruleID,
		Severity:   SeverityCritical,
		Message:    failedRuleMessage,
		Details:    map[string]any{"reason": reason},
		Suggestion: "retry the request; escalate if the failure persists",
	}
}

// deriveStatus maps a violation set to the terminal decision state.
// Precedence: any CRITICAL escalates regardless of what else is
// present; three or more HIGH, or any violation at all, requires
// revision; a clean set approves.
func deriveStatus(violations []Violation) DecisionStatus {
	high := 0
	for _, v := range violations {
		switch v.Severity {
		case SeverityCritical:
			return StatusEscalated
		case SeverityHigh:
			high++
		}
	}
	if high >= 3 {
		return StatusRevisionRequired
	}
	if len(violations) > 0 {
		return StatusRevisionRequired
	}
	return StatusApproved
}

// buildReasoning produces the deterministic human-readable summary.
// Rule ids appear in first-occurrence order, which matches rule
// registration order because violations are aggregated that way.
func buildReasoning(violations []Violation) string {
	if len(violations) == 0 {
		return "All validation rules passed. Request is approved for processing."
	}

	var critical []Violation
	for _, v := range violations {
		if v.Severity == SeverityCritical {
			critical = append(critical, v)
		}
	}
	if len(critical) > 0 {
		return fmt.Sprintf(
			"Request requires human review due to %d critical violation(s) in rules: %s. These violations cannot be auto-resolved.",
			len(critical), strings.Join(uniqueRules(critical), ", "))
	}

	return fmt.Sprintf(
		"Request has %d violation(s): %s. Please address the violations and resubmit.",
		len(violations), severityBreakdown(violations))
}

// uniqueRules returns the distinct rule ids in first-occurrence order.
func uniqueRules(violations []Violation) []string {
	seen := make(map[string]struct{}, len(violations))
	var out []string
	for _, v := range violations {
		if _, ok := seen[v.Rule]; ok {
			continue
		}
		seen[v.Rule] = struct{}{}
		out = append(out, v.Rule)
	}
	return out
}

// severityBreakdown renders counts like "2 HIGH, 1 MEDIUM" in
// descending severity order.
func severityBreakdown(violations []Violation) string {
	counts := make(map[Severity]int, 4)
	for _, v := range violations {
		counts[v.Severity]++
	}
	var parts []string
	for _, s := range []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow} {
		if n := counts[s]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, s))
		}
	}
	return strings.Join(parts, ", ")
}

// advisories produces the non-blocking warnings attached to a result.
// A design or code change that claims no requirement coverage gets a
// nudge; it never blocks approval.
func advisories(req *AgentRequest) []Violation {
	if req.Action == ActionDelete {
		return nil
	}
	if req.TargetType != TargetDesign && req.TargetType != TargetCode {
		return nil
	}
	if len(req.Content.Satisfies) > 0 {
		return nil
	}
	return []Violation{{
		Rule:       RuleReqCoverage,
		Severity:   SeverityMedium,
		Message:    "change does not declare any satisfied requirements",
		Suggestion: "link the requirements this change satisfies, if any",
	}}
}

// countGraphQueries records the context-load reads. The load issues a
// bounded set of point lookups plus at most one traversal.
func (e *Engine) countGraphQueries(ctx context.Context, req *AgentRequest) {
	if e.metrics == nil {
		return
	}
	queries := int64(len(req.Content.Satisfies))
	if req.TargetID != "" {
		queries++
	}
	if req.Content.Implements != "" {
		queries += 2
	}
	if req.SpecID() != "" {
		queries++
	}
	e.metrics.GraphQueriesTotal.Add(ctx, queries,
		metric.WithAttributes(attribute.String("caller", "validation")))
}
