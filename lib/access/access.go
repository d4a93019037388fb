// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

// Package access answers runtime authorization questions against a
// finalized session: permission checks, session introspection, active
// role adjustment, and inactivity enforcement.
//
// Permission checks expand the session's activated roles downward
// through the hierarchy — a senior role inherits the grants of its
// descendants — and also honor grants made directly to the user. All
// reads go to the entity store at call time; the only state consulted
// from memory is the session itself, which the caller owns.
package access

import (
	"context"
	"log/slog"
	"time"

	"github.com/bastion-auth/bastion/lib/cache"
	"github.com/bastion-auth/bastion/lib/constraint"
	"github.com/bastion-auth/bastion/lib/hierarchy"
	"github.com/bastion-auth/bastion/lib/model"
	"github.com/bastion-auth/bastion/lib/security"
	"github.com/bastion-auth/bastion/lib/sod"
)

// Store is the slice of the entity store the access manager needs.
type Store interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetPermission(ctx context.Context, object, operation, objectID string) (*model.Permission, error)
	ListPermissions(ctx context.Context) ([]model.Permission, error)
	ListRoles(ctx context.Context) ([]model.Role, error)
	ListSDSets(ctx context.Context, kind model.SDKind) ([]model.SDSet, error)
}

// Manager evaluates access checks. The zero value is not usable;
// populate Store. Logger and DSDCache are optional.
type Manager struct {
	Store  Store
	Logger *slog.Logger

	// DSDCache, when set, caches the dynamic SD set list for
	// AddActiveRole checks.
	DSDCache *cache.Cache[[]model.SDSet]
}

// CheckAccess reports whether the session may perform the operation on
// the object. The permission must exist — a check against an undefined
// permission is an error, not a deny, so configuration mistakes
// surface instead of reading as policy.
func (m *Manager) CheckAccess(ctx context.Context, session *model.Session, object, operation, objectID string) (bool, error) {
	if object == "" {
		return false, security.New(security.PermObjectRequired, "permission object is required")
	}
	if operation == "" {
		return false, security.New(security.PermOperationRequired, "permission operation is required")
	}

	perm, err := m.Store.GetPermission(ctx, object, operation, objectID)
	if err != nil {
		return false, err
	}
	if perm.GrantedToUser(session.UserID) {
		return true, nil
	}
	if len(perm.Roles) == 0 || len(session.Roles) == 0 {
		return false, nil
	}

	authorized, err := m.authorizedRoleSet(ctx, session)
	if err != nil {
		return false, err
	}
	for _, granted := range perm.Roles {
		if authorized[model.Normalize(granted)] {
			return true, nil
		}
	}
	return false, nil
}

// SessionPermissions returns every permission the session holds,
// through activated roles (hierarchy-expanded) or direct user grants.
func (m *Manager) SessionPermissions(ctx context.Context, session *model.Session) ([]model.Permission, error) {
	perms, err := m.Store.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	authorized, err := m.authorizedRoleSet(ctx, session)
	if err != nil {
		return nil, err
	}

	var held []model.Permission
	for _, perm := range perms {
		if perm.GrantedToUser(session.UserID) {
			held = append(held, perm)
			continue
		}
		for _, granted := range perm.Roles {
			if authorized[model.Normalize(granted)] {
				held = append(held, perm)
				break
			}
		}
	}
	return held, nil
}

// SessionRoles returns the activated role bindings. The slice is a
// copy; mutating it does not affect the session.
func (m *Manager) SessionRoles(session *model.Session) []model.UserRole {
	roles := make([]model.UserRole, len(session.Roles))
	copy(roles, session.Roles)
	return roles
}

// AddActiveRole activates one more assigned role into an existing
// session, subject to the same constraint and dynamic SoD checks as
// session creation. Unlike creation-time filtering this is a
// single-role request, so a violation is an error rather than a
// silent drop.
func (m *Manager) AddActiveRole(ctx context.Context, session *model.Session, role string, at time.Time) error {
	if session.IsRoleActive(role) {
		return security.New(security.RoleAlreadyAssigned,
			"role %q is already active in session %s", role, session.ID)
	}
	user := session.User
	if user == nil {
		// Trusted sessions reconstructed from tokens carry no
		// directory record; the authoritative bindings are in the
		// store.
		var err error
		user, err = m.Store.GetUser(ctx, session.UserID)
		if err != nil {
			return err
		}
	}
	binding := user.RoleBinding(role)
	if binding == nil {
		return security.New(security.RoleNotAssigned,
			"user %q is not assigned role %q", session.UserID, role)
	}
	if violation := constraint.Check(binding.Constraint, at); violation != nil {
		return violation
	}

	checker, err := m.dsdChecker(ctx)
	if err != nil {
		return err
	}
	if violation := checker.Check(session.RoleNames(), binding.Role); violation != nil {
		return violation
	}
	session.Roles = append(session.Roles, *binding)
	return nil
}

// DropActiveRole removes an activated role from the session.
func (m *Manager) DropActiveRole(session *model.Session, role string) error {
	want := model.Normalize(role)
	for i := range session.Roles {
		if model.Normalize(session.Roles[i].Role) == want {
			session.Roles = append(session.Roles[:i], session.Roles[i+1:]...)
			return nil
		}
	}
	return security.New(security.RoleNotActive,
		"role %q is not active in session %s", role, session.ID)
}

// ValidateSession enforces the inactivity timeout the constraint
// evaluator recorded on the session, and on success moves the
// last-access stamp forward. Sessions are single-caller by contract;
// concurrent validation of one session requires external
// synchronization.
func (m *Manager) ValidateSession(session *model.Session, at time.Time) error {
	if session.Timeout > 0 && at.Sub(session.LastAccess) > session.Timeout {
		return security.New(security.SessionTimeout,
			"session %s exceeded inactivity timeout %v", session.ID, session.Timeout)
	}
	session.LastAccess = at
	return nil
}

// authorizedRoleSet expands the activated roles through the hierarchy:
// the activated roles plus all their descendants, since parents are
// senior and inherit junior grants.
func (m *Manager) authorizedRoleSet(ctx context.Context, session *model.Session) (map[string]bool, error) {
	graph, err := hierarchy.Load(ctx, m.Store)
	if err != nil {
		return nil, err
	}
	authorized := make(map[string]bool)
	for i := range session.Roles {
		for name := range graph.Descendants(session.Roles[i].Role) {
			authorized[name] = true
		}
	}
	return authorized, nil
}

func (m *Manager) dsdChecker(ctx context.Context) (*sod.Checker, error) {
	const key = "dsd-sets"
	if sets, ok := m.DSDCache.Get(key); ok {
		return sod.NewChecker(sets), nil
	}
	sets, err := m.Store.ListSDSets(ctx, model.DynamicSD)
	if err != nil {
		return nil, err
	}
	m.DSDCache.Put(key, sets)
	return sod.NewChecker(sets), nil
}
