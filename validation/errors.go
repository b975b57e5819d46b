// Copyright (C) 2025 Librarian AI (eng@librarian-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package validation

import "errors"

// Error taxonomy for validation calls. Rule-level failures are never
// surfaced here; they are recovered locally and converted to
// synthetic CRITICAL violations. These errors cover the cases where
// the whole call fails and the caller must retry.
var (
	// ErrMalformedRequest means the request is missing required
	// structural fields entirely. Rejected before rule evaluation;
	// nothing is logged.
	ErrMalformedRequest = errors.New("validation: malformed request")

	// ErrGraphUnavailable means the graph context could not be
	// loaded. The validation call fails as a whole; nothing is
	// logged and the caller retries.
	ErrGraphUnavailable = errors.New("validation: graph unavailable")

	// ErrAuditWrite means the result could not be durably recorded.
	// The caller must treat the validation as not having happened: an
	// unaudited decision has no standing.
	ErrAuditWrite = errors.New("validation: audit write failed")
)
