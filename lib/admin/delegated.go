// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package admin

import (
	"context"

	"github.com/bastion-auth/bastion/lib/delegation"
	"github.com/bastion-auth/bastion/lib/model"
	"github.com/bastion-auth/bastion/lib/security"
)

// Delegated wraps the admin manager behind an administrator session.
// Each mutation evaluates the corresponding ARBAC predicate first and
// converts a false result into security.NotAuthorized — the predicate
// engine itself stays exception-free, and this boundary is the only
// place where a denial becomes a failure.
type Delegated struct {
	// Admin performs the mutation once authorized.
	Admin *Manager

	// Authorizer evaluates the ARBAC predicates.
	Authorizer *delegation.Authorizer

	// Session is the administrator's finalized session, carrying the
	// activated admin roles whose authority scopes are tested.
	Session *model.Session
}

// AssignUser assigns a role to a user if the administrator's scope
// covers both the user's org-unit and the role's hierarchy position.
func (d *Delegated) AssignUser(ctx context.Context, userID, role string, override *model.Constraint) error {
	user, targetRole, err := d.targets(ctx, userID, role)
	if err != nil {
		return err
	}
	allowed, err := d.Authorizer.CanAssign(ctx, d.Session, user, targetRole)
	if err != nil {
		return err
	}
	if !allowed {
		return d.deny("assign", userID, role)
	}
	return d.Admin.AssignUser(ctx, userID, role, override)
}

// DeassignUser removes a role assignment under the same scope test.
func (d *Delegated) DeassignUser(ctx context.Context, userID, role string) error {
	user, targetRole, err := d.targets(ctx, userID, role)
	if err != nil {
		return err
	}
	allowed, err := d.Authorizer.CanDeassign(ctx, d.Session, user, targetRole)
	if err != nil {
		return err
	}
	if !allowed {
		return d.deny("deassign", userID, role)
	}
	return d.Admin.DeassignUser(ctx, userID, role)
}

// GrantPermission grants a permission to a role if the
// administrator's permission pool covers the object's org-unit and
// the role is inside the hierarchy range.
func (d *Delegated) GrantPermission(ctx context.Context, object, operation, objectID, role string) error {
	targetRole, permObject, err := d.permTargets(ctx, object, role)
	if err != nil {
		return err
	}
	allowed, err := d.Authorizer.CanGrant(ctx, d.Session, targetRole, permObject)
	if err != nil {
		return err
	}
	if !allowed {
		return d.deny("grant", object+"."+operation, role)
	}
	return d.Admin.GrantPermission(ctx, object, operation, objectID, role)
}

// RevokePermission removes a grant under the same scope test.
func (d *Delegated) RevokePermission(ctx context.Context, object, operation, objectID, role string) error {
	targetRole, permObject, err := d.permTargets(ctx, object, role)
	if err != nil {
		return err
	}
	allowed, err := d.Authorizer.CanRevoke(ctx, d.Session, targetRole, permObject)
	if err != nil {
		return err
	}
	if !allowed {
		return d.deny("revoke", object+"."+operation, role)
	}
	return d.Admin.RevokePermission(ctx, object, operation, objectID, role)
}

func (d *Delegated) targets(ctx context.Context, userID, role string) (*model.User, *model.Role, error) {
	if d.Session == nil {
		return nil, nil, security.New(security.SessionRequired,
			"delegated operation requires an administrator session")
	}
	user, err := d.Admin.Store.GetUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	targetRole, err := d.Admin.Store.GetRole(ctx, role)
	if err != nil {
		return nil, nil, err
	}
	return user, targetRole, nil
}

func (d *Delegated) permTargets(ctx context.Context, object, role string) (*model.Role, *model.PermObject, error) {
	if d.Session == nil {
		return nil, nil, security.New(security.SessionRequired,
			"delegated operation requires an administrator session")
	}
	targetRole, err := d.Admin.Store.GetRole(ctx, role)
	if err != nil {
		return nil, nil, err
	}
	permObject, err := d.Admin.Store.GetPermObject(ctx, object)
	if err != nil {
		return nil, nil, err
	}
	return targetRole, permObject, nil
}

func (d *Delegated) deny(op, target, role string) error {
	d.Admin.logger().Warn("delegated operation denied",
		"admin", d.Session.UserID, "op", op, "target", target, "role", role)
	return security.New(security.NotAuthorized,
		"admin %q may not %s %q for %q", d.Session.UserID, op, role, target)
}
