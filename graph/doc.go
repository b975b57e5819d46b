// Copyright (C) 2025 Librarian AI (eng@librarian-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package graph defines the specification graph model and the query
// interface the validation engine consumes.
//
// The graph holds typed specification nodes (architecture, design,
// requirement, code, decision, agent_request) connected by typed edges
// (IMPLEMENTS, SATISFIES, DEFINES, SUPERSEDES, APPROVES). The engine
// never talks to a concrete database directly; it depends on the Store
// interface, which any backend with point lookup, bounded traversal,
// and atomic writes can satisfy.
//
// MemoryStore is the in-process implementation used by tests and by
// embedders that have not wired a durable backend. Reads return
// defensive copies, so concurrent readers observe a consistent snapshot
// and never block each other.
//
// Governance-relevant nodes (decision, agent_request, audit_event) are
// never deleted. There is deliberately no Remove operation on Store:
// retirement is a status change to deprecated, and history is preserved
// through SUPERSEDES edges.
package graph
