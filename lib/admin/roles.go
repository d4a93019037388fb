// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package admin

import (
	"context"

	"github.com/bastion-auth/bastion/lib/constraint"
	"github.com/bastion-auth/bastion/lib/hierarchy"
	"github.com/bastion-auth/bastion/lib/model"
	"github.com/bastion-auth/bastion/lib/security"
)

// AddRole validates and creates a role. Listed parents must already
// exist; a brand-new role cannot close a cycle, so only existence is
// checked here.
func (m *Manager) AddRole(ctx context.Context, role *model.Role) error {
	if role.Name == "" {
		return security.New(security.RoleNameRequired, "role name is required")
	}
	if err := constraint.Validate(role.Constraint); err != nil {
		return err
	}
	for _, parent := range role.Parents {
		if _, err := m.Store.GetRole(ctx, parent); err != nil {
			return err
		}
	}
	if err := m.Store.CreateRole(ctx, role); err != nil {
		return err
	}
	m.logger().Info("role created", "role", role.Name)
	return nil
}

// UpdateRole replaces a role's constraint and description. Parent
// edges are managed through AddInheritance/DeleteInheritance so the
// cycle check cannot be bypassed.
func (m *Manager) UpdateRole(ctx context.Context, role *model.Role) error {
	current, err := m.Store.GetRole(ctx, role.Name)
	if err != nil {
		return err
	}
	if err := constraint.Validate(role.Constraint); err != nil {
		return err
	}
	current.Constraint = role.Constraint
	current.Description = role.Description
	return m.Store.UpdateRole(ctx, current)
}

// DeleteRole removes a role, deassigning it from every user first so
// no binding dangles, and detaching it from any child's parent list.
func (m *Manager) DeleteRole(ctx context.Context, name string) error {
	role, err := m.Store.GetRole(ctx, name)
	if err != nil {
		return err
	}

	users, err := m.Store.ListUsers(ctx)
	if err != nil {
		return err
	}
	for i := range users {
		user := &users[i]
		if user.RoleBinding(role.Name) == nil {
			continue
		}
		if err := m.DeassignUser(ctx, user.ID, role.Name); err != nil {
			return err
		}
	}

	roles, err := m.Store.ListRoles(ctx)
	if err != nil {
		return err
	}
	want := model.Normalize(role.Name)
	for i := range roles {
		child := &roles[i]
		trimmed := child.Parents[:0]
		for _, parent := range child.Parents {
			if model.Normalize(parent) != want {
				trimmed = append(trimmed, parent)
			}
		}
		if len(trimmed) != len(child.Parents) {
			child.Parents = trimmed
			if err := m.Store.UpdateRole(ctx, child); err != nil {
				return err
			}
		}
	}

	if err := m.Store.DeleteRole(ctx, role.Name); err != nil {
		return err
	}
	m.logger().Info("role deleted", "role", role.Name)
	return nil
}

// AddInheritance makes parent a direct senior of child. Rejected with
// HierarchyCycle when the edge would make the graph cyclic — this is
// the only cycle protection in the system; traversal assumes acyclic.
func (m *Manager) AddInheritance(ctx context.Context, parent, child string) error {
	parentRole, err := m.Store.GetRole(ctx, parent)
	if err != nil {
		return err
	}
	childRole, err := m.Store.GetRole(ctx, child)
	if err != nil {
		return err
	}

	graph, err := hierarchy.Load(ctx, m.Store)
	if err != nil {
		return err
	}
	if graph.WouldCycle(childRole.Name, parentRole.Name) {
		return security.New(security.HierarchyCycle,
			"making %q a parent of %q would create a cycle",
			parentRole.Name, childRole.Name)
	}

	want := model.Normalize(parentRole.Name)
	for _, existing := range childRole.Parents {
		if model.Normalize(existing) == want {
			return nil // edge already present
		}
	}
	childRole.Parents = append(childRole.Parents, parentRole.Name)
	return m.Store.UpdateRole(ctx, childRole)
}

// DeleteInheritance removes a direct parent edge.
func (m *Manager) DeleteInheritance(ctx context.Context, parent, child string) error {
	childRole, err := m.Store.GetRole(ctx, child)
	if err != nil {
		return err
	}
	want := model.Normalize(parent)
	for i, existing := range childRole.Parents {
		if model.Normalize(existing) == want {
			childRole.Parents = append(childRole.Parents[:i], childRole.Parents[i+1:]...)
			return m.Store.UpdateRole(ctx, childRole)
		}
	}
	return security.New(security.RoleNotFound,
		"%q is not a parent of %q", parent, child)
}

// AddAdminRole validates and creates an administrative role. Pool
// members must exist in their partitions and range endpoints must be
// existing RBAC roles.
func (m *Manager) AddAdminRole(ctx context.Context, role *model.AdminRole) error {
	if role.Name == "" {
		return security.New(security.RoleNameRequired, "admin role name is required")
	}
	if err := constraint.Validate(role.Constraint); err != nil {
		return err
	}
	for _, unit := range role.OSU {
		if _, err := m.Store.GetOrgUnit(ctx, model.UserOU, unit); err != nil {
			return err
		}
	}
	for _, unit := range role.OSP {
		if _, err := m.Store.GetOrgUnit(ctx, model.PermOU, unit); err != nil {
			return err
		}
	}
	if role.BeginRange != "" {
		if _, err := m.Store.GetRole(ctx, role.BeginRange); err != nil {
			return err
		}
	}
	if role.EndRange != "" {
		if _, err := m.Store.GetRole(ctx, role.EndRange); err != nil {
			return err
		}
	}
	return m.Store.CreateAdminRole(ctx, role)
}

// DeleteAdminRole removes an administrative role, deassigning it from
// every user first.
func (m *Manager) DeleteAdminRole(ctx context.Context, name string) error {
	role, err := m.Store.GetAdminRole(ctx, name)
	if err != nil {
		return err
	}
	users, err := m.Store.ListUsers(ctx)
	if err != nil {
		return err
	}
	for i := range users {
		if users[i].AdminRoleBinding(role.Name) == nil {
			continue
		}
		if err := m.DeassignAdminUser(ctx, users[i].ID, role.Name); err != nil {
			return err
		}
	}
	return m.Store.DeleteAdminRole(ctx, role.Name)
}
