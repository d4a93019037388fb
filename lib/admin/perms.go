// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package admin

import (
	"context"

	"github.com/bastion-auth/bastion/lib/model"
	"github.com/bastion-auth/bastion/lib/security"
)

// AddPermObject validates and creates a permission object. Required:
// name and an existing permission org-unit.
func (m *Manager) AddPermObject(ctx context.Context, object *model.PermObject) error {
	if object.Name == "" {
		return security.New(security.PermObjectRequired, "permission object name is required")
	}
	if object.OrgUnit == "" {
		return security.New(security.OrgUnitRequired,
			"permission object %q: org-unit is required", object.Name)
	}
	if _, err := m.Store.GetOrgUnit(ctx, model.PermOU, object.OrgUnit); err != nil {
		return err
	}
	return m.Store.CreatePermObject(ctx, object)
}

// DeletePermObject removes a permission object and every operation
// defined on it.
func (m *Manager) DeletePermObject(ctx context.Context, name string) error {
	object, err := m.Store.GetPermObject(ctx, name)
	if err != nil {
		return err
	}
	perms, err := m.Store.ListPermissions(ctx)
	if err != nil {
		return err
	}
	want := model.Normalize(object.Name)
	for _, perm := range perms {
		if model.Normalize(perm.Object) == want {
			if err := m.Store.DeletePermission(ctx, perm.Object, perm.Operation, perm.ObjectID); err != nil {
				return err
			}
		}
	}
	return m.Store.DeletePermObject(ctx, object.Name)
}

// AddPermission defines an operation on an existing permission
// object.
func (m *Manager) AddPermission(ctx context.Context, perm *model.Permission) error {
	if perm.Object == "" {
		return security.New(security.PermObjectRequired, "permission object is required")
	}
	if perm.Operation == "" {
		return security.New(security.PermOperationRequired, "permission operation is required")
	}
	if _, err := m.Store.GetPermObject(ctx, perm.Object); err != nil {
		return err
	}
	return m.Store.CreatePermission(ctx, perm)
}

// DeletePermission removes a permission and its grants.
func (m *Manager) DeletePermission(ctx context.Context, object, operation, objectID string) error {
	if _, err := m.Store.GetPermission(ctx, object, operation, objectID); err != nil {
		return err
	}
	return m.Store.DeletePermission(ctx, object, operation, objectID)
}

// GrantPermission grants a permission to a role.
func (m *Manager) GrantPermission(ctx context.Context, object, operation, objectID, role string) error {
	perm, err := m.Store.GetPermission(ctx, object, operation, objectID)
	if err != nil {
		return err
	}
	roleEntity, err := m.Store.GetRole(ctx, role)
	if err != nil {
		return err
	}
	if perm.GrantedToRole(roleEntity.Name) {
		return nil // grant already present
	}
	perm.Roles = append(perm.Roles, roleEntity.Name)
	if err := m.Store.UpdatePermission(ctx, perm); err != nil {
		return err
	}
	m.logger().Info("permission granted",
		"object", perm.Object, "operation", perm.Operation, "role", roleEntity.Name)
	return nil
}

// RevokePermission removes a role grant.
func (m *Manager) RevokePermission(ctx context.Context, object, operation, objectID, role string) error {
	perm, err := m.Store.GetPermission(ctx, object, operation, objectID)
	if err != nil {
		return err
	}
	want := model.Normalize(role)
	for i, name := range perm.Roles {
		if model.Normalize(name) == want {
			perm.Roles = append(perm.Roles[:i], perm.Roles[i+1:]...)
			return m.Store.UpdatePermission(ctx, perm)
		}
	}
	return security.New(security.RoleNotFound,
		"permission %s.%s is not granted to role %q", object, operation, role)
}

// GrantPermissionToUser grants a permission directly to a user,
// outside any role.
func (m *Manager) GrantPermissionToUser(ctx context.Context, object, operation, objectID, userID string) error {
	perm, err := m.Store.GetPermission(ctx, object, operation, objectID)
	if err != nil {
		return err
	}
	user, err := m.Store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if perm.GrantedToUser(user.ID) {
		return nil
	}
	perm.Users = append(perm.Users, user.ID)
	return m.Store.UpdatePermission(ctx, perm)
}

// RevokePermissionFromUser removes a direct user grant.
func (m *Manager) RevokePermissionFromUser(ctx context.Context, object, operation, objectID, userID string) error {
	perm, err := m.Store.GetPermission(ctx, object, operation, objectID)
	if err != nil {
		return err
	}
	want := model.Normalize(userID)
	for i, id := range perm.Users {
		if model.Normalize(id) == want {
			perm.Users = append(perm.Users[:i], perm.Users[i+1:]...)
			return m.Store.UpdatePermission(ctx, perm)
		}
	}
	return security.New(security.UserNotFound,
		"permission %s.%s is not granted to user %q", object, operation, userID)
}
