// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

// Package session activates RBAC sessions: it authenticates a
// principal, selects the roles eligible for activation, filters them
// through temporal constraints and dynamic separation-of-duty sets,
// and produces the immutable Session value that every later access
// check consumes.
//
// Activation is a fixed pipeline. Authentication (password or trusted)
// and the user-level constraint gate abort the whole operation on any
// failure; per-role filtering degrades gracefully, dropping offending
// roles with a recorded warning and failing only when an explicitly
// requested role set filters down to nothing. Roles are evaluated in
// the caller's requested order, which matters: dynamic SoD counts
// accumulate as roles are accepted, so an excluded role is never
// reconsidered.
//
// The activator holds no mutable state. Every call re-reads the
// principal from the entity store, builds its own SoD checker, and
// hands the finished Session to the caller, who owns it exclusively.
package session
