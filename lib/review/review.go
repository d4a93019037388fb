// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

// Package review provides the read-only inspection surface: entity
// reads and the assigned-versus-authorized queries.
//
// "Assigned" means an exact direct binding; "authorized" includes the
// hierarchy closure — a user assigned a senior role is authorized for
// every descendant role, and a role's authorized users include anyone
// assigned one of its ascendants. Every query re-reads the store; no
// results are cached across calls except the static SD set list, which
// goes through the explicit cache component when one is configured.
package review

import (
	"context"
	"sort"

	"github.com/bastion-auth/bastion/lib/cache"
	"github.com/bastion-auth/bastion/lib/hierarchy"
	"github.com/bastion-auth/bastion/lib/model"
	"github.com/bastion-auth/bastion/lib/security"
)

// ssdCacheKey is the single key under which the manager caches the
// static SD set list.
const ssdCacheKey = "ssd-sets"

// Store is the slice of the entity store the review manager needs.
type Store interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	GetRole(ctx context.Context, name string) (*model.Role, error)
	ListRoles(ctx context.Context) ([]model.Role, error)
	GetAdminRole(ctx context.Context, name string) (*model.AdminRole, error)
	GetPermission(ctx context.Context, object, operation, objectID string) (*model.Permission, error)
	ListPermissions(ctx context.Context) ([]model.Permission, error)
	GetSDSet(ctx context.Context, name string) (*model.SDSet, error)
	ListSDSets(ctx context.Context, kind model.SDKind) ([]model.SDSet, error)
}

// Manager runs review queries. The zero value is not usable; populate
// Store. SSDCache is optional.
type Manager struct {
	Store    Store
	SSDCache *cache.Cache[[]model.SDSet]
}

// ReadUser returns the account with the credential cleared.
func (m *Manager) ReadUser(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, security.New(security.UserIDRequired, "user id is required")
	}
	user, err := m.Store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	user.Password = nil
	return user, nil
}

// ReadRole returns the role record.
func (m *Manager) ReadRole(ctx context.Context, name string) (*model.Role, error) {
	if name == "" {
		return nil, security.New(security.RoleNameRequired, "role name is required")
	}
	return m.Store.GetRole(ctx, name)
}

// ReadPermission returns the permission record with its grants.
func (m *Manager) ReadPermission(ctx context.Context, object, operation, objectID string) (*model.Permission, error) {
	if object == "" {
		return nil, security.New(security.PermObjectRequired, "permission object is required")
	}
	if operation == "" {
		return nil, security.New(security.PermOperationRequired, "permission operation is required")
	}
	return m.Store.GetPermission(ctx, object, operation, objectID)
}

// AssignedRoles returns the user's direct role bindings, in binding
// order.
func (m *Manager) AssignedRoles(ctx context.Context, userID string) ([]model.UserRole, error) {
	user, err := m.ReadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Roles, nil
}

// AuthorizedRoles returns every role name the user is authorized for:
// the assigned roles plus their descendant closures, sorted.
func (m *Manager) AuthorizedRoles(ctx context.Context, userID string) ([]string, error) {
	user, err := m.ReadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	graph, err := hierarchy.Load(ctx, m.Store)
	if err != nil {
		return nil, err
	}
	authorized := make(map[string]bool)
	for i := range user.Roles {
		for name := range graph.Descendants(user.Roles[i].Role) {
			authorized[name] = true
		}
	}
	return sortedNames(authorized), nil
}

// AssignedUsers returns the identifiers of users holding a direct
// binding to the role, sorted.
func (m *Manager) AssignedUsers(ctx context.Context, role string) ([]string, error) {
	if _, err := m.Store.GetRole(ctx, role); err != nil {
		return nil, err
	}
	users, err := m.Store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	var assigned []string
	for i := range users {
		if users[i].RoleBinding(role) != nil {
			assigned = append(assigned, users[i].ID)
		}
	}
	sort.Strings(assigned)
	return assigned, nil
}

// AuthorizedUsers returns the identifiers of users authorized for the
// role: anyone assigned the role itself or one of its ascendants.
func (m *Manager) AuthorizedUsers(ctx context.Context, role string) ([]string, error) {
	if _, err := m.Store.GetRole(ctx, role); err != nil {
		return nil, err
	}
	graph, err := hierarchy.Load(ctx, m.Store)
	if err != nil {
		return nil, err
	}
	seniors := graph.Ascendants(role)

	users, err := m.Store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	var authorized []string
	for i := range users {
		for j := range users[i].Roles {
			if seniors[model.Normalize(users[i].Roles[j].Role)] {
				authorized = append(authorized, users[i].ID)
				break
			}
		}
	}
	sort.Strings(authorized)
	return authorized, nil
}

// RolePermissions returns the permissions the role holds, including
// those inherited from descendant roles.
func (m *Manager) RolePermissions(ctx context.Context, role string) ([]model.Permission, error) {
	if _, err := m.Store.GetRole(ctx, role); err != nil {
		return nil, err
	}
	graph, err := hierarchy.Load(ctx, m.Store)
	if err != nil {
		return nil, err
	}
	held := graph.Descendants(role)

	perms, err := m.Store.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	var granted []model.Permission
	for _, perm := range perms {
		for _, name := range perm.Roles {
			if held[model.Normalize(name)] {
				granted = append(granted, perm)
				break
			}
		}
	}
	return granted, nil
}

// UserPermissions returns every permission the user is authorized
// for, through any authorized role or a direct grant.
func (m *Manager) UserPermissions(ctx context.Context, userID string) ([]model.Permission, error) {
	user, err := m.ReadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	graph, err := hierarchy.Load(ctx, m.Store)
	if err != nil {
		return nil, err
	}
	authorized := make(map[string]bool)
	for i := range user.Roles {
		for name := range graph.Descendants(user.Roles[i].Role) {
			authorized[name] = true
		}
	}

	perms, err := m.Store.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	var held []model.Permission
	for _, perm := range perms {
		if perm.GrantedToUser(user.ID) {
			held = append(held, perm)
			continue
		}
		for _, name := range perm.Roles {
			if authorized[model.Normalize(name)] {
				held = append(held, perm)
				break
			}
		}
	}
	return held, nil
}

// SDSetsFor returns the SD sets of the given kind that contain the
// role. Static sets are served through the cache when one is
// configured, mirroring how frequently assignment checks consult them.
func (m *Manager) SDSetsFor(ctx context.Context, kind model.SDKind, role string) ([]model.SDSet, error) {
	sets, err := m.sdSets(ctx, kind)
	if err != nil {
		return nil, err
	}
	var containing []model.SDSet
	for _, set := range sets {
		if set.Contains(role) {
			containing = append(containing, set)
		}
	}
	return containing, nil
}

// ReadSDSet returns one SD set by name.
func (m *Manager) ReadSDSet(ctx context.Context, name string) (*model.SDSet, error) {
	return m.Store.GetSDSet(ctx, name)
}

func (m *Manager) sdSets(ctx context.Context, kind model.SDKind) ([]model.SDSet, error) {
	if kind == model.StaticSD {
		if sets, ok := m.SSDCache.Get(ssdCacheKey); ok {
			return sets, nil
		}
	}
	sets, err := m.Store.ListSDSets(ctx, kind)
	if err != nil {
		return nil, err
	}
	if kind == model.StaticSD {
		m.SSDCache.Put(ssdCacheKey, sets)
	}
	return sets, nil
}

func sortedNames(set map[string]bool) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
