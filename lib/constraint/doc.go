// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

// Package constraint evaluates temporal activation constraints against
// an explicit reference time.
//
// Check is a pure function: it reads the constraint and the reference
// time and returns the first violation, with a distinct code per failed
// sub-check (not-yet-active, expired, lock window, time-of-day,
// day-of-week) so callers can report precisely.
//
// The evaluator does not decide policy. For a user-level constraint a
// single violation fails the whole authentication; for a role binding
// the session activator drops just that role and records a warning.
// Both policies live in lib/session — this package only answers
// whether one constraint is satisfied at one instant.
//
// The inactivity timeout field is deliberately not evaluated here: the
// session owner enforces it (lib/access.ValidateSession). The evaluator
// only carries the configured limit onto the session.
package constraint
