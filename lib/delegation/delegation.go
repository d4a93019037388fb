// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

// Package delegation evaluates ARBAC delegated-administration
// predicates: whether an administrator's session authorizes assigning
// or deassigning a role to a user, or granting or revoking a
// permission to a role.
//
// The predicates are pure and exception-free: they return false on any
// failed pool or range test, and an error only for store failures.
// Converting a false result into a security failure is the calling
// manager's job (lib/admin.Delegated), which keeps this engine
// trivially testable.
//
// # Authority scope
//
// Each activated admin role carries an org-unit pool and a hierarchy
// range. The pool test asks whether the target entity's org-unit is in
// the admin role's user pool (assign/deassign) or permission pool
// (grant/revoke). The range test asks whether the target role's
// position in the role hierarchy lies between the admin role's junior
// endpoint (BeginRange) and senior endpoint (EndRange) — positions,
// not lexical names. The inclusivity flags apply only when the target
// equals an endpoint role; interior positions are always in range, and
// an empty endpoint leaves that side unbounded.
package delegation

import (
	"context"

	"github.com/bastion-auth/bastion/lib/hierarchy"
	"github.com/bastion-auth/bastion/lib/model"
)

// Authorizer evaluates delegated-admin predicates against the role
// hierarchy. It depends only on the hierarchy edge source; all other
// inputs arrive as arguments.
type Authorizer struct {
	// Roles supplies the hierarchy edges. The graph is rebuilt per
	// predicate call — the directory may change between calls.
	Roles hierarchy.RoleSource
}

// CanAssign reports whether the admin session may assign the target
// role to the target user: at least one activated admin role must
// have the user's org-unit in its user pool and the role inside its
// hierarchy range.
func (a *Authorizer) CanAssign(ctx context.Context, admin *model.Session, user *model.User, role *model.Role) (bool, error) {
	return a.checkUser(ctx, admin, user, role)
}

// CanDeassign applies the same test to removing an existing
// assignment.
func (a *Authorizer) CanDeassign(ctx context.Context, admin *model.Session, user *model.User, role *model.Role) (bool, error) {
	return a.checkUser(ctx, admin, user, role)
}

// CanGrant reports whether the admin session may grant the permission
// to the target role: the pool tested is the permission pool, matched
// against the permission object's org-unit.
func (a *Authorizer) CanGrant(ctx context.Context, admin *model.Session, role *model.Role, object *model.PermObject) (bool, error) {
	return a.checkPerm(ctx, admin, role, object)
}

// CanRevoke applies the same test to removing an existing grant.
func (a *Authorizer) CanRevoke(ctx context.Context, admin *model.Session, role *model.Role, object *model.PermObject) (bool, error) {
	return a.checkPerm(ctx, admin, role, object)
}

func (a *Authorizer) checkUser(ctx context.Context, admin *model.Session, user *model.User, role *model.Role) (bool, error) {
	if admin == nil || user == nil || role == nil || len(admin.AdminRoles) == 0 {
		return false, nil
	}
	graph, err := hierarchy.Load(ctx, a.Roles)
	if err != nil {
		return false, err
	}
	for i := range admin.AdminRoles {
		binding := &admin.AdminRoles[i]
		if !poolContains(binding.OSU, user.OrgUnit) {
			continue
		}
		if inRange(graph, binding, role.Name) {
			return true, nil
		}
	}
	return false, nil
}

func (a *Authorizer) checkPerm(ctx context.Context, admin *model.Session, role *model.Role, object *model.PermObject) (bool, error) {
	if admin == nil || role == nil || object == nil || len(admin.AdminRoles) == 0 {
		return false, nil
	}
	graph, err := hierarchy.Load(ctx, a.Roles)
	if err != nil {
		return false, err
	}
	for i := range admin.AdminRoles {
		binding := &admin.AdminRoles[i]
		if !poolContains(binding.OSP, object.OrgUnit) {
			continue
		}
		if inRange(graph, binding, role.Name) {
			return true, nil
		}
	}
	return false, nil
}

// poolContains reports whether the org-unit is a member of the pool.
// An empty pool confers no authority.
func poolContains(pool []string, orgUnit string) bool {
	want := model.Normalize(orgUnit)
	if want == "" {
		return false
	}
	for _, member := range pool {
		if model.Normalize(member) == want {
			return true
		}
	}
	return false
}

// inRange evaluates the hierarchy-position range test for one admin
// role binding against the target role.
func inRange(graph *hierarchy.Graph, binding *model.UserAdminRole, target string) bool {
	t := model.Normalize(target)
	begin := model.Normalize(binding.BeginRange)
	end := model.Normalize(binding.EndRange)

	// Endpoint hits are governed by the inclusivity flags alone.
	if end != "" && t == end {
		return binding.EndInclusive
	}
	if begin != "" && t == begin {
		return binding.BeginInclusive
	}

	// Interior test: the senior endpoint must be an ascendant of the
	// target, the junior endpoint a descendant. An empty endpoint
	// leaves that side unbounded.
	if end != "" && !graph.Ascendants(target)[end] {
		return false
	}
	if begin != "" && !graph.Descendants(target)[begin] {
		return false
	}
	return true
}
