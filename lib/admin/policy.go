// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package admin

import (
	"context"

	"github.com/bastion-auth/bastion/lib/model"
	"github.com/bastion-auth/bastion/lib/security"
	"github.com/bastion-auth/bastion/lib/sod"
)

// AddSDSet validates and creates a separation-of-duty set. The
// cardinality rule (at least two, reachable by the member count) is
// enforced here, at creation time — check time assumes well-formed
// sets. Member roles must exist.
func (m *Manager) AddSDSet(ctx context.Context, set *model.SDSet) error {
	if set.Name == "" {
		return security.New(security.SDSetInvalid, "sd set name is required")
	}
	if err := sod.ValidateSet(*set); err != nil {
		return err
	}
	for _, member := range set.Members {
		if _, err := m.Store.GetRole(ctx, member); err != nil {
			return err
		}
	}
	if err := m.Store.CreateSDSet(ctx, set); err != nil {
		return err
	}
	m.invalidateSDCache(set.Kind)
	m.logger().Info("sd set created", "set", set.Name, "kind", set.Kind.String(),
		"cardinality", set.Cardinality)
	return nil
}

// UpdateSDSet replaces a set's members and cardinality, under the
// same validation as creation.
func (m *Manager) UpdateSDSet(ctx context.Context, set *model.SDSet) error {
	current, err := m.Store.GetSDSet(ctx, set.Name)
	if err != nil {
		return err
	}
	if err := sod.ValidateSet(*set); err != nil {
		return err
	}
	for _, member := range set.Members {
		if _, err := m.Store.GetRole(ctx, member); err != nil {
			return err
		}
	}
	set.Kind = current.Kind // the kind of an existing set is immutable
	if err := m.Store.UpdateSDSet(ctx, set); err != nil {
		return err
	}
	m.invalidateSDCache(set.Kind)
	return nil
}

// DeleteSDSet removes a set.
func (m *Manager) DeleteSDSet(ctx context.Context, name string) error {
	set, err := m.Store.GetSDSet(ctx, name)
	if err != nil {
		return err
	}
	if err := m.Store.DeleteSDSet(ctx, set.Name); err != nil {
		return err
	}
	m.invalidateSDCache(set.Kind)
	return nil
}

// AddOrgUnit creates an org-unit in its partition.
func (m *Manager) AddOrgUnit(ctx context.Context, unit *model.OrgUnit) error {
	if unit.Name == "" {
		return security.New(security.OrgUnitRequired, "org-unit name is required")
	}
	return m.Store.CreateOrgUnit(ctx, unit)
}

// DeleteOrgUnit removes an org-unit. Units still referenced by users
// or permission objects are refused.
func (m *Manager) DeleteOrgUnit(ctx context.Context, kind model.OrgUnitKind, name string) error {
	unit, err := m.Store.GetOrgUnit(ctx, kind, name)
	if err != nil {
		return err
	}
	want := model.Normalize(unit.Name)
	switch kind {
	case model.UserOU:
		users, err := m.Store.ListUsers(ctx)
		if err != nil {
			return err
		}
		for i := range users {
			if model.Normalize(users[i].OrgUnit) == want {
				return security.New(security.OrgUnitRequired,
					"org-unit %q is still referenced by user %q", unit.Name, users[i].ID)
			}
		}
	case model.PermOU:
		objects, err := m.Store.ListPermObjects(ctx)
		if err != nil {
			return err
		}
		for i := range objects {
			if model.Normalize(objects[i].OrgUnit) == want {
				return security.New(security.OrgUnitRequired,
					"org-unit %q is still referenced by object %q", unit.Name, objects[i].Name)
			}
		}
	}
	return m.Store.DeleteOrgUnit(ctx, kind, unit.Name)
}

// AddGroup creates a group. Listed members must exist.
func (m *Manager) AddGroup(ctx context.Context, group *model.Group) error {
	if group.Name == "" {
		return security.New(security.GroupNameRequired, "group name is required")
	}
	for _, member := range group.Members {
		if _, err := m.Store.GetUser(ctx, member); err != nil {
			return err
		}
	}
	return m.Store.CreateGroup(ctx, group)
}

// DeleteGroup removes a group.
func (m *Manager) DeleteGroup(ctx context.Context, name string) error {
	group, err := m.Store.GetGroup(ctx, name)
	if err != nil {
		return err
	}
	return m.Store.DeleteGroup(ctx, group.Name)
}

// AssignGroupUser adds a user to a group.
func (m *Manager) AssignGroupUser(ctx context.Context, groupName, userID string) error {
	group, err := m.Store.GetGroup(ctx, groupName)
	if err != nil {
		return err
	}
	user, err := m.Store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	want := model.Normalize(user.ID)
	for _, member := range group.Members {
		if model.Normalize(member) == want {
			return nil // already a member
		}
	}
	group.Members = append(group.Members, user.ID)
	return m.Store.UpdateGroup(ctx, group)
}

// DeassignGroupUser removes a user from a group.
func (m *Manager) DeassignGroupUser(ctx context.Context, groupName, userID string) error {
	group, err := m.Store.GetGroup(ctx, groupName)
	if err != nil {
		return err
	}
	want := model.Normalize(userID)
	for i, member := range group.Members {
		if model.Normalize(member) == want {
			group.Members = append(group.Members[:i], group.Members[i+1:]...)
			return m.Store.UpdateGroup(ctx, group)
		}
	}
	return security.New(security.UserNotFound,
		"user %q is not a member of group %q", userID, groupName)
}

// AddPwPolicy creates a password policy.
func (m *Manager) AddPwPolicy(ctx context.Context, policy *model.PwPolicy) error {
	if policy.Name == "" {
		return security.New(security.PwPolicyNotFound, "password policy name is required")
	}
	return m.Store.CreatePwPolicy(ctx, policy)
}

// DeletePwPolicy removes a password policy. Policies still referenced
// by users are refused.
func (m *Manager) DeletePwPolicy(ctx context.Context, name string) error {
	policy, err := m.Store.GetPwPolicy(ctx, name)
	if err != nil {
		return err
	}
	users, err := m.Store.ListUsers(ctx)
	if err != nil {
		return err
	}
	want := model.Normalize(policy.Name)
	for i := range users {
		if model.Normalize(users[i].PwPolicy) == want {
			return security.New(security.PwPolicyNotFound,
				"policy %q is still referenced by user %q", policy.Name, users[i].ID)
		}
	}
	return m.Store.DeletePwPolicy(ctx, policy.Name)
}

// ReadSettings returns the directory-resident configuration
// properties.
func (m *Manager) ReadSettings(ctx context.Context) (map[string]string, error) {
	return m.Store.GetSettings(ctx)
}

// WriteSettings merges configuration properties into the directory.
// An empty value deletes the property.
func (m *Manager) WriteSettings(ctx context.Context, props map[string]string) error {
	return m.Store.PutSettings(ctx, props)
}

func (m *Manager) invalidateSDCache(kind model.SDKind) {
	if kind == model.StaticSD {
		m.SSDCache.Invalidate(ssdCacheKey)
		return
	}
	m.DSDCache.Invalidate(dsdCacheKey)
}
