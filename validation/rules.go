// Copyright (C) 2025 Librarian AI (eng@librarian-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// RuleFunc is a pure predicate over one request and a pre-loaded graph
// context. Rules are independent: no rule may observe another rule's
// output within the same evaluation pass, and none may mutate the
// context or touch the graph store.
type RuleFunc func(ctx context.Context, req *AgentRequest, gc *Context) []Violation

// Rule is one entry in the closed rule registry. There is no dynamic
// dispatch and no shared base behavior: a rule is its id, its default
// severity, and a function.
type Rule struct {
	// ID is the stable rule identifier (e.g. "DOC-001").
	ID string

	// Name is the human-readable rule name.
	Name string

	// Severity is the rule's default classification. Individual
	// findings may be less severe (a path nit inside DOC-001 is
	// MEDIUM), never more severe than the rule's class.
	Severity Severity

	// Evaluate produces the rule's findings.
	Evaluate RuleFunc
}

// Registry returns the five rules in registration order. The order is
// load-bearing: violation aggregation and reasoning text follow it, so
// validation results are reproducible regardless of which concurrent
// rule finishes first.
func Registry() []Rule {
	return []Rule{
		{ID: RuleDocStandards, Name: "Document Standards", Severity: SeverityHigh, Evaluate: evaluateDocStandards},
		{ID: RuleVersionCompat, Name: "Version Compatibility", Severity: SeverityCritical, Evaluate: evaluateVersionCompat},
		{ID: RuleArchAlignment, Name: "Architecture Alignment", Severity: SeverityCritical, Evaluate: evaluateArchAlignment},
		{ID: RuleReqCoverage, Name: "Requirement Coverage", Severity: SeverityHigh, Evaluate: evaluateReqCoverage},
		{ID: RuleConstitution, Name: "Constitution Compliance", Severity: SeverityCritical, Evaluate: evaluateConstitution},
	}
}

// semverPattern is the strict MAJOR.MINOR.PATCH form required of
// specification versions. golang.org/x/mod/semver is laxer (it accepts
// "v1" and "v1.2"), so syntax is checked here and x/mod is used only
// for ordering.
var semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)

// IsSemver reports whether s is a well-formed MAJOR.MINOR.PATCH
// version with non-negative integer parts.
func IsSemver(s string) bool {
	return semverPattern.MatchString(s)
}

// CompareVersions orders two well-formed spec versions. Returns -1, 0,
// or +1 like semver.Compare. Callers must check IsSemver first.
func CompareVersions(a, b string) int {
	return semver.Compare("v"+a, "v"+b)
}

// MajorOf returns the MAJOR component of a well-formed spec version,
// e.g. 2 for "2.3.1". Callers must check IsSemver first.
func MajorOf(v string) int {
	n, _ := strconv.Atoi(strings.SplitN(v, ".", 2)[0])
	return n
}
