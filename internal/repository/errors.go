// Package repository implements raw-SQL data access for the
// inventory service.  This file defines sentinel error values reused
// across repositories so that handlers can distinguish failure
// scenarios without string matching.  ErrForbidden marks a tenant or
// ownership violation; by policy it is returned instead of
// sql.ErrNoRows whenever a record exists but belongs to another
// project site, so error codes never leak cross-tenant existence.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// record outside their tenant scope or ownership.  Handlers translate
// this into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an operation cannot proceed because of
// the record's current state, such as approving a request that has
// already been decided.  Handlers translate this into HTTP 409.
var ErrConflict = errors.New("conflict")

// ErrDuplicateName is returned when a unique name (project site) is
// already taken.  Handlers translate this into HTTP 409.
var ErrDuplicateName = errors.New("name already exists")
