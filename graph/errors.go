// Copyright (C) 2025 Librarian AI (eng@librarian-ai.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package graph

import "errors"

var (
	// ErrNotFound is returned when a node lookup misses.
	ErrNotFound = errors.New("graph: node not found")

	// ErrInvalidNode is returned when a node fails structural validation.
	ErrInvalidNode = errors.New("graph: invalid node")

	// ErrInvalidEdge is returned when an edge fails structural validation.
	ErrInvalidEdge = errors.New("graph: invalid edge")

	// ErrDuplicateNode is returned when AddNode would overwrite an
	// existing node. Mutation happens through new versions, not
	// in-place writes.
	ErrDuplicateNode = errors.New("graph: node already exists")

	// ErrDanglingEdge is returned when an edge references a node that
	// does not exist.
	ErrDanglingEdge = errors.New("graph: edge endpoint does not exist")
)
