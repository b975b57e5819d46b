// Copyright (C) 2025 Librarian AI (eng@librarian-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation evaluates agent change requests against the
// specification graph and derives an approval decision.
//
// # Description
//
// The package has two halves. The rule set is a closed registry of five
// pure predicates (DOC-001 through CONST-001), each evaluating one
// governance concern against a request and a pre-loaded graph context.
// The engine loads that context once, fans the rules out concurrently
// with a per-rule deadline, aggregates violations in registration
// order, and derives one of three terminal statuses:
//
//   - APPROVED: no violations.
//   - REVISION_REQUIRED: violations present, none critical.
//   - ESCALATED: at least one critical violation; a human decides.
//
// A rule that panics or misses its deadline is converted into a
// synthetic CRITICAL violation rather than silently passing. The
// fail-safe direction is always toward ESCALATED, never APPROVED.
//
// The engine's last step hands the result to an AuditSink. If that
// write fails, the validation has no standing and the caller must
// retry: an unaudited decision does not exist.
//
// # Thread Safety
//
// The Engine holds no mutable state between calls and is safe for
// concurrent use against a Store that supports concurrent reads.
package validation
