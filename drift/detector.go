// Copyright (C) 2025 Librarian AI (eng@librarian-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package drift sweeps the specification graph for structural drift:
// specifications that silently diverged from their approved ancestors.
//
// Sweeps are read-only and not tied to any request. A scheduler or
// caller invokes them periodically; findings are written to the audit
// log and surfaced as Violation records. The detector never mutates
// the graph. Remediation is always a new agent request through the
// validation engine.
package drift

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/librarian-ai/librarian/graph"
	"github.com/librarian-ai/librarian/pkg/logging"
	"github.com/librarian-ai/librarian/telemetry"
	"github.com/librarian-ai/librarian/validation"
)

// AuditSink receives drift sweep records. Implemented by the audit
// package; defined here so the detector does not depend on a concrete
// store.
type AuditSink interface {
	// RecordDrift appends one drift_detection event covering the whole
	// sweep. Returns the audit event id.
	RecordDrift(ctx context.Context, violations []Violation, summary Summary) (string, error)
}

// DefaultRecencyWindow is how far back the undocumented-code sweep
// looks. Older artifacts are assumed grandfathered.
const DefaultRecencyWindow = 30 * 24 * time.Hour

// Config configures a Detector. Store is required.
type Config struct {
	// Store is the specification graph to sweep.
	Store graph.Store

	// Audit receives sweep records. Nil disables audit logging.
	Audit AuditSink

	// Logger receives structured sweep logs. Nil means Default().
	Logger *logging.Logger

	// Metrics receives sweep instruments. Nil disables metrics.
	Metrics *telemetry.Metrics

	// RecencyWindow bounds the undocumented-code sweep. Zero means
	// DefaultRecencyWindow.
	RecencyWindow time.Duration

	// QueriesPerSecond paces per-node graph reads so sweeps do not
	// starve request validation on a shared backend. Zero means
	// unpaced.
	QueriesPerSecond float64
}

// Detector runs graph-wide drift sweeps.
//
// # Thread Safety
//
// Detectors are read-only over the graph and hold no mutable state
// between sweeps; one Detector may serve concurrent callers, and
// sweeps may run concurrently with request validation.
type Detector struct {
	store   graph.Store
	audit   AuditSink
	log     *logging.Logger
	metrics *telemetry.Metrics
	window  time.Duration
	limiter *rate.Limiter
	now     func() time.Time
}

// New creates a Detector. Returns an error if cfg.Store is nil.
func New(cfg Config) (*Detector, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("drift: nil graph store")
	}
	log := cfg.Logger
	if log == nil {
		log = logging.Default()
	}
	window := cfg.RecencyWindow
	if window <= 0 {
		window = DefaultRecencyWindow
	}
	limit := rate.Inf
	if cfg.QueriesPerSecond > 0 {
		limit = rate.Limit(cfg.QueriesPerSecond)
	}
	return &Detector{
		store:   cfg.Store,
		audit:   cfg.Audit,
		log:     log.With("component", "drift"),
		metrics: cfg.Metrics,
		window:  window,
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
	}, nil
}

// DetectAll runs the four sweeps concurrently and returns their
// combined findings in fixed sweep order (design ahead, undocumented
// code, uncovered requirements, version mismatches). The whole sweep
// is recorded as one audit event when a sink is configured.
func (d *Detector) DetectAll(ctx context.Context) ([]Violation, error) {
	var results [4][]Violation

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { results[0], err = d.DetectDesignDrift(gctx); return })
	g.Go(func() (err error) { results[1], err = d.DetectUndocumentedCode(gctx); return })
	g.Go(func() (err error) { results[2], err = d.DetectUncoveredRequirements(gctx); return })
	g.Go(func() (err error) { results[3], err = d.DetectVersionMismatches(gctx); return })
	if err := g.Wait(); err != nil {
		d.recordSweep(ctx, "all", 0, err)
		return nil, err
	}

	var violations []Violation
	for _, vs := range results {
		violations = append(violations, vs...)
	}

	if d.audit != nil {
		summary := Summarize(violations, d.now())
		if _, err := d.audit.RecordDrift(ctx, violations, summary); err != nil {
			return nil, fmt.Errorf("drift: record sweep: %w", err)
		}
	}

	d.log.Info("sweep complete", "violations", len(violations))
	d.recordSweep(ctx, "all", len(violations), nil)
	return violations, nil
}

// DetectDesignDrift finds designs whose version ran ahead of their
// architecture without a superseding decision on record after the
// design's last review.
func (d *Detector) DetectDesignDrift(ctx context.Context) ([]Violation, error) {
	designs, err := d.nodesByType(ctx, graph.NodeDesign)
	if err != nil {
		return nil, err
	}

	var violations []Violation
	for _, design := range designs {
		if !validation.IsSemver(design.Version) {
			continue
		}
		edges, err := d.outgoing(ctx, design.ID, graph.EdgeImplements)
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			arch, err := d.node(ctx, e.To)
			if err != nil {
				return nil, err
			}
			if arch == nil || arch.Type != graph.NodeArchitecture || !validation.IsSemver(arch.Version) {
				continue
			}
			if validation.CompareVersions(design.Version, arch.Version) <= 0 {
				continue
			}
			superseded, err := d.supersededAfter(ctx, design.ID, design.LastReviewed)
			if err != nil {
				return nil, err
			}
			if superseded {
				continue
			}
			violations = append(violations, Violation{
				Type:      TypeDesignAhead,
				Severity:  toleranceSeverity(arch.DriftTolerance),
				SourceID:  design.ID,
				TargetIDs: []string{arch.ID},
				Message: fmt.Sprintf("design %q (%s) is ahead of architecture %q (%s)",
					design.ID, design.Version, arch.ID, arch.Version),
				Details: map[string]any{
					"design_version":       design.Version,
					"architecture_version": arch.Version,
				},
				DetectedAt: d.now().UTC(),
			})
		}
	}

	d.recordSweep(ctx, string(TypeDesignAhead), len(violations), nil)
	return violations, nil
}

// DetectUndocumentedCode finds code artifacts created within the
// recency window that no design or requirement links to. An artifact
// counts as documented if it has an inbound IMPLEMENTS edge from a
// design or requirement, or declares its own outbound IMPLEMENTS edge
// to a design.
func (d *Detector) DetectUndocumentedCode(ctx context.Context) ([]Violation, error) {
	artifacts, err := d.nodesByType(ctx, graph.NodeCode)
	if err != nil {
		return nil, err
	}
	cutoff := d.now().Add(-d.window)

	var violations []Violation
	for _, artifact := range artifacts {
		if artifact.CreatedAt.Before(cutoff) {
			continue
		}
		documented, err := d.codeIsDocumented(ctx, artifact.ID)
		if err != nil {
			return nil, err
		}
		if documented {
			continue
		}
		violations = append(violations, Violation{
			Type:     TypeUndocumentedCode,
			Severity: validation.SeverityMedium,
			SourceID: artifact.ID,
			Message:  fmt.Sprintf("code artifact %q has no linked design or requirement", artifact.ID),
			Details: map[string]any{
				"created_at": artifact.CreatedAt.UTC().Format(time.RFC3339),
			},
			DetectedAt: d.now().UTC(),
		})
	}

	d.recordSweep(ctx, string(TypeUndocumentedCode), len(violations), nil)
	return violations, nil
}

// DetectUncoveredRequirements finds active requirements with no
// inbound SATISFIES edge from any design or code artifact, excluding
// requirements explicitly marked deferred. High-priority requirements
// get HIGH severity; the rest MEDIUM.
func (d *Detector) DetectUncoveredRequirements(ctx context.Context) ([]Violation, error) {
	requirements, err := d.nodesByType(ctx, graph.NodeRequirement)
	if err != nil {
		return nil, err
	}

	var violations []Violation
	for _, requirement := range requirements {
		if requirement.Status != graph.StatusActive || requirement.Deferred {
			continue
		}
		covered, err := d.requirementIsCovered(ctx, requirement.ID)
		if err != nil {
			return nil, err
		}
		if covered {
			continue
		}
		severity := validation.SeverityMedium
		if requirement.Priority == "high" {
			severity = validation.SeverityHigh
		}
		violations = append(violations, Violation{
			Type:     TypeUncoveredRequirement,
			Severity: severity,
			SourceID: requirement.ID,
			Message:  fmt.Sprintf("active requirement %q is not satisfied by any specification", requirement.ID),
			Details: map[string]any{
				"priority": requirement.Priority,
			},
			DetectedAt: d.now().UTC(),
		})
	}

	d.recordSweep(ctx, string(TypeUncoveredRequirement), len(violations), nil)
	return violations, nil
}

// DetectVersionMismatches finds child specs whose recorded
// compatible-parent version ("compatible_with" prop) no longer matches
// the current version of the parent they implement.
func (d *Detector) DetectVersionMismatches(ctx context.Context) ([]Violation, error) {
	var violations []Violation

	for _, childType := range []graph.NodeType{graph.NodeDesign, graph.NodeCode} {
		children, err := d.nodesByType(ctx, childType)
		if err != nil {
			return nil, err
		}
		for _, child := range children {
			recorded := child.Props["compatible_with"]
			if recorded == "" {
				continue
			}
			edges, err := d.outgoing(ctx, child.ID, graph.EdgeImplements, graph.EdgeDefines)
			if err != nil {
				return nil, err
			}
			for _, e := range edges {
				parent, err := d.node(ctx, e.To)
				if err != nil {
					return nil, err
				}
				if parent == nil || parent.Version == "" || parent.Version == recorded {
					continue
				}
				violations = append(violations, Violation{
					Type:      TypeVersionMismatch,
					Severity:  validation.SeverityHigh,
					SourceID:  child.ID,
					TargetIDs: []string{parent.ID},
					Message: fmt.Sprintf("%s %q records compatibility with %q version %s, but the parent is now %s",
						child.Type, child.ID, parent.ID, recorded, parent.Version),
					Details: map[string]any{
						"recorded_version": recorded,
						"parent_version":   parent.Version,
					},
					DetectedAt: d.now().UTC(),
				})
			}
		}
	}

	d.recordSweep(ctx, string(TypeVersionMismatch), len(violations), nil)
	return violations, nil
}

// supersededAfter reports whether a decision node superseded the given
// spec after the given time.
func (d *Detector) supersededAfter(ctx context.Context, id string, after time.Time) (bool, error) {
	edges, err := d.incoming(ctx, id, graph.EdgeSupersedes)
	if err != nil {
		return false, err
	}
	for _, e := range edges {
		from, err := d.node(ctx, e.From)
		if err != nil {
			return false, err
		}
		if from != nil && from.Type == graph.NodeDecision && e.CreatedAt.After(after) {
			return true, nil
		}
	}
	return false, nil
}

func (d *Detector) codeIsDocumented(ctx context.Context, id string) (bool, error) {
	inbound, err := d.incoming(ctx, id, graph.EdgeImplements)
	if err != nil {
		return false, err
	}
	for _, e := range inbound {
		from, err := d.node(ctx, e.From)
		if err != nil {
			return false, err
		}
		if from != nil && (from.Type == graph.NodeDesign || from.Type == graph.NodeRequirement) {
			return true, nil
		}
	}

	outbound, err := d.outgoing(ctx, id, graph.EdgeImplements)
	if err != nil {
		return false, err
	}
	for _, e := range outbound {
		to, err := d.node(ctx, e.To)
		if err != nil {
			return false, err
		}
		if to != nil && to.Type == graph.NodeDesign {
			return true, nil
		}
	}
	return false, nil
}

func (d *Detector) requirementIsCovered(ctx context.Context, id string) (bool, error) {
	edges, err := d.incoming(ctx, id, graph.EdgeSatisfies)
	if err != nil {
		return false, err
	}
	for _, e := range edges {
		from, err := d.node(ctx, e.From)
		if err != nil {
			return false, err
		}
		if from != nil && (from.Type == graph.NodeDesign || from.Type == graph.NodeCode) {
			return true, nil
		}
	}
	return false, nil
}

// toleranceSeverity maps an architecture's declared drift tolerance to
// the severity of drift against it.
func toleranceSeverity(t graph.DriftTolerance) validation.Severity {
	switch t {
	case graph.DriftToleranceModerate:
		return validation.SeverityLow
	case graph.DriftToleranceMinor:
		return validation.SeverityMedium
	default:
		return validation.SeverityHigh
	}
}

// Rate-limited store accessors. Every graph read waits on the limiter
// so bulk sweeps cannot starve request validation.

func (d *Detector) nodesByType(ctx context.Context, t graph.NodeType) ([]*graph.Node, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	d.countQuery(ctx)
	return d.store.NodesByType(ctx, t)
}

func (d *Detector) node(ctx context.Context, id string) (*graph.Node, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	d.countQuery(ctx)
	n, err := d.store.Node(ctx, id)
	if err != nil {
		if errors.Is(err, graph.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return n, nil
}

func (d *Detector) outgoing(ctx context.Context, id string, types ...graph.EdgeType) ([]graph.Edge, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	d.countQuery(ctx)
	return d.store.Outgoing(ctx, id, types...)
}

func (d *Detector) incoming(ctx context.Context, id string, types ...graph.EdgeType) ([]graph.Edge, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	d.countQuery(ctx)
	return d.store.Incoming(ctx, id, types...)
}

func (d *Detector) countQuery(ctx context.Context) {
	if d.metrics != nil {
		d.metrics.GraphQueriesTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("caller", "drift")))
	}
}

func (d *Detector) recordSweep(ctx context.Context, sweep string, found int, err error) {
	if d.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	d.metrics.DriftSweepsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("sweep", sweep),
		attribute.String("status", status)))
	if found > 0 {
		d.metrics.DriftViolationsTotal.Add(ctx, int64(found),
			metric.WithAttributes(attribute.String("type", sweep)))
	}
}
