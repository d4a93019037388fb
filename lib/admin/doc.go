// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

// Package admin provides the administrative mutation surface: user,
// role, permission, org-unit, SD-set, group, and policy lifecycle.
//
// Every mutation validates before it touches the directory — a
// validation or not-found failure aborts with no partial effect.
// Assignment-time rules live here: static separation-of-duty checks
// reject a conflicting role assignment outright, constraint blocks are
// structurally validated and copied onto bindings, and inheritance
// edges that would create a hierarchy cycle are refused.
//
// Delegated administration wraps the same operations behind an
// administrator session: the ARBAC predicates in lib/delegation are
// evaluated first, and a false result is converted into a
// security.NotAuthorized failure at this boundary. The predicates
// themselves never raise.
package admin
