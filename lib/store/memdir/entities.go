// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package memdir

import (
	"context"
	"sort"
	"strings"

	"github.com/bastion-auth/bastion/lib/model"
	"github.com/bastion-auth/bastion/lib/security"
)

// Roles.

func (d *Directory) GetRole(_ context.Context, name string) (*model.Role, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	role, ok := d.roles[model.Normalize(name)]
	if !ok {
		return nil, security.New(security.RoleNotFound, "role %q not found", name)
	}
	return copyRole(role), nil
}

func (d *Directory) CreateRole(_ context.Context, role *model.Role) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := model.Normalize(role.Name)
	if _, exists := d.roles[key]; exists {
		return security.New(security.RoleAlreadyExists, "role %q already exists", role.Name)
	}
	d.roles[key] = copyRole(role)
	return nil
}

func (d *Directory) UpdateRole(_ context.Context, role *model.Role) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := model.Normalize(role.Name)
	if _, ok := d.roles[key]; !ok {
		return security.New(security.RoleNotFound, "role %q not found", role.Name)
	}
	d.roles[key] = copyRole(role)
	return nil
}

func (d *Directory) DeleteRole(_ context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := model.Normalize(name)
	if _, ok := d.roles[key]; !ok {
		return security.New(security.RoleNotFound, "role %q not found", name)
	}
	delete(d.roles, key)
	return nil
}

func (d *Directory) ListRoles(_ context.Context) ([]model.Role, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	roles := make([]model.Role, 0, len(d.roles))
	for _, role := range d.roles {
		roles = append(roles, *copyRole(role))
	}
	sortByName(roles, func(r model.Role) string { return r.Name })
	return roles, nil
}

// AdminRoles.

func (d *Directory) GetAdminRole(_ context.Context, name string) (*model.AdminRole, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	role, ok := d.adminRoles[model.Normalize(name)]
	if !ok {
		return nil, security.New(security.AdminRoleNotFound, "admin role %q not found", name)
	}
	return copyAdminRole(role), nil
}

func (d *Directory) CreateAdminRole(_ context.Context, role *model.AdminRole) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := model.Normalize(role.Name)
	if _, exists := d.adminRoles[key]; exists {
		return security.New(security.RoleAlreadyExists, "admin role %q already exists", role.Name)
	}
	d.adminRoles[key] = copyAdminRole(role)
	return nil
}

func (d *Directory) UpdateAdminRole(_ context.Context, role *model.AdminRole) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := model.Normalize(role.Name)
	if _, ok := d.adminRoles[key]; !ok {
		return security.New(security.AdminRoleNotFound, "admin role %q not found", role.Name)
	}
	d.adminRoles[key] = copyAdminRole(role)
	return nil
}

func (d *Directory) DeleteAdminRole(_ context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := model.Normalize(name)
	if _, ok := d.adminRoles[key]; !ok {
		return security.New(security.AdminRoleNotFound, "admin role %q not found", name)
	}
	delete(d.adminRoles, key)
	return nil
}

func (d *Directory) ListAdminRoles(_ context.Context) ([]model.AdminRole, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	roles := make([]model.AdminRole, 0, len(d.adminRoles))
	for _, role := range d.adminRoles {
		roles = append(roles, *copyAdminRole(role))
	}
	sortByName(roles, func(r model.AdminRole) string { return r.Name })
	return roles, nil
}

// Permission objects and permissions.

func (d *Directory) GetPermObject(_ context.Context, name string) (*model.PermObject, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	object, ok := d.permObjects[model.Normalize(name)]
	if !ok {
		return nil, security.New(security.PermObjectNotFound, "permission object %q not found", name)
	}
	return copyPermObject(object), nil
}

func (d *Directory) CreatePermObject(_ context.Context, object *model.PermObject) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := model.Normalize(object.Name)
	if _, exists := d.permObjects[key]; exists {
		return security.New(security.PermAlreadyExists, "permission object %q already exists", object.Name)
	}
	d.permObjects[key] = copyPermObject(object)
	return nil
}

func (d *Directory) DeletePermObject(_ context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := model.Normalize(name)
	if _, ok := d.permObjects[key]; !ok {
		return security.New(security.PermObjectNotFound, "permission object %q not found", name)
	}
	delete(d.permObjects, key)
	// Permissions on the object go with it.
	for permKey, perm := range d.permissions {
		if model.Normalize(perm.Object) == key {
			delete(d.permissions, permKey)
		}
	}
	return nil
}

func (d *Directory) ListPermObjects(_ context.Context) ([]model.PermObject, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	objects := make([]model.PermObject, 0, len(d.permObjects))
	for _, object := range d.permObjects {
		objects = append(objects, *copyPermObject(object))
	}
	sortByName(objects, func(o model.PermObject) string { return o.Name })
	return objects, nil
}

func (d *Directory) GetPermission(_ context.Context, object, operation, objectID string) (*model.Permission, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	key := model.Permission{Object: object, Operation: operation, ObjectID: objectID}.Key()
	perm, ok := d.permissions[key]
	if !ok {
		return nil, security.New(security.PermNotFound,
			"permission %s not found", key)
	}
	return copyPermission(perm), nil
}

func (d *Directory) CreatePermission(_ context.Context, perm *model.Permission) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := perm.Key()
	if _, exists := d.permissions[key]; exists {
		return security.New(security.PermAlreadyExists, "permission %s already exists", key)
	}
	d.permissions[key] = copyPermission(perm)
	return nil
}

func (d *Directory) UpdatePermission(_ context.Context, perm *model.Permission) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := perm.Key()
	if _, ok := d.permissions[key]; !ok {
		return security.New(security.PermNotFound, "permission %s not found", key)
	}
	d.permissions[key] = copyPermission(perm)
	return nil
}

func (d *Directory) DeletePermission(_ context.Context, object, operation, objectID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := model.Permission{Object: object, Operation: operation, ObjectID: objectID}.Key()
	if _, ok := d.permissions[key]; !ok {
		return security.New(security.PermNotFound, "permission %s not found", key)
	}
	delete(d.permissions, key)
	return nil
}

func (d *Directory) ListPermissions(_ context.Context) ([]model.Permission, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	perms := make([]model.Permission, 0, len(d.permissions))
	for _, perm := range d.permissions {
		perms = append(perms, *copyPermission(perm))
	}
	sortByName(perms, func(p model.Permission) string { return p.Key() })
	return perms, nil
}

// Org units.

func (d *Directory) GetOrgUnit(_ context.Context, kind model.OrgUnitKind, name string) (*model.OrgUnit, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	unit, ok := d.orgUnits[orgUnitKey(kind, name)]
	if !ok {
		return nil, security.New(security.OrgUnitNotFound, "%s org unit %q not found", kind, name)
	}
	return copyOrgUnit(unit), nil
}

func (d *Directory) CreateOrgUnit(_ context.Context, unit *model.OrgUnit) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := orgUnitKey(unit.Kind, unit.Name)
	if _, exists := d.orgUnits[key]; exists {
		return security.New(security.OrgUnitAlreadyExists, "%s org unit %q already exists", unit.Kind, unit.Name)
	}
	d.orgUnits[key] = copyOrgUnit(unit)
	return nil
}

func (d *Directory) DeleteOrgUnit(_ context.Context, kind model.OrgUnitKind, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := orgUnitKey(kind, name)
	if _, ok := d.orgUnits[key]; !ok {
		return security.New(security.OrgUnitNotFound, "%s org unit %q not found", kind, name)
	}
	delete(d.orgUnits, key)
	return nil
}

func (d *Directory) ListOrgUnits(_ context.Context, kind model.OrgUnitKind) ([]model.OrgUnit, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	prefix := kind.String() + "/"
	units := make([]model.OrgUnit, 0)
	for key, unit := range d.orgUnits {
		if strings.HasPrefix(key, prefix) {
			units = append(units, *copyOrgUnit(unit))
		}
	}
	sortByName(units, func(u model.OrgUnit) string { return u.Name })
	return units, nil
}

// Separation-of-duty sets.

func (d *Directory) GetSDSet(_ context.Context, name string) (*model.SDSet, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	set, ok := d.sdSets[model.Normalize(name)]
	if !ok {
		return nil, security.New(security.SDSetNotFound, "sd set %q not found", name)
	}
	return copySDSet(set), nil
}

func (d *Directory) CreateSDSet(_ context.Context, set *model.SDSet) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := model.Normalize(set.Name)
	if _, exists := d.sdSets[key]; exists {
		return security.New(security.SDSetAlreadyExists, "sd set %q already exists", set.Name)
	}
	d.sdSets[key] = copySDSet(set)
	return nil
}

func (d *Directory) UpdateSDSet(_ context.Context, set *model.SDSet) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := model.Normalize(set.Name)
	if _, ok := d.sdSets[key]; !ok {
		return security.New(security.SDSetNotFound, "sd set %q not found", set.Name)
	}
	d.sdSets[key] = copySDSet(set)
	return nil
}

func (d *Directory) DeleteSDSet(_ context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := model.Normalize(name)
	if _, ok := d.sdSets[key]; !ok {
		return security.New(security.SDSetNotFound, "sd set %q not found", name)
	}
	delete(d.sdSets, key)
	return nil
}

func (d *Directory) ListSDSets(_ context.Context, kind model.SDKind) ([]model.SDSet, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	sets := make([]model.SDSet, 0)
	for _, set := range d.sdSets {
		if set.Kind == kind {
			sets = append(sets, *copySDSet(set))
		}
	}
	sortByName(sets, func(s model.SDSet) string { return s.Name })
	return sets, nil
}

// Groups.

func (d *Directory) GetGroup(_ context.Context, name string) (*model.Group, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	group, ok := d.groups[model.Normalize(name)]
	if !ok {
		return nil, security.New(security.GroupNotFound, "group %q not found", name)
	}
	return copyGroup(group), nil
}

func (d *Directory) CreateGroup(_ context.Context, group *model.Group) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := model.Normalize(group.Name)
	if _, exists := d.groups[key]; exists {
		return security.New(security.GroupAlreadyExists, "group %q already exists", group.Name)
	}
	d.groups[key] = copyGroup(group)
	return nil
}

func (d *Directory) UpdateGroup(_ context.Context, group *model.Group) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := model.Normalize(group.Name)
	if _, ok := d.groups[key]; !ok {
		return security.New(security.GroupNotFound, "group %q not found", group.Name)
	}
	d.groups[key] = copyGroup(group)
	return nil
}

func (d *Directory) DeleteGroup(_ context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := model.Normalize(name)
	if _, ok := d.groups[key]; !ok {
		return security.New(security.GroupNotFound, "group %q not found", name)
	}
	delete(d.groups, key)
	return nil
}

func (d *Directory) ListGroups(_ context.Context) ([]model.Group, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	groups := make([]model.Group, 0, len(d.groups))
	for _, group := range d.groups {
		groups = append(groups, *copyGroup(group))
	}
	sortByName(groups, func(g model.Group) string { return g.Name })
	return groups, nil
}

// Password policies.

func (d *Directory) GetPwPolicy(_ context.Context, name string) (*model.PwPolicy, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	policy, ok := d.pwPolicies[model.Normalize(name)]
	if !ok {
		return nil, security.New(security.PwPolicyNotFound, "password policy %q not found", name)
	}
	clone := *policy
	return &clone, nil
}

func (d *Directory) CreatePwPolicy(_ context.Context, policy *model.PwPolicy) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := model.Normalize(policy.Name)
	if _, exists := d.pwPolicies[key]; exists {
		return security.New(security.PwPolicyAlreadyExists, "password policy %q already exists", policy.Name)
	}
	clone := *policy
	d.pwPolicies[key] = &clone
	return nil
}

func (d *Directory) DeletePwPolicy(_ context.Context, name string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := model.Normalize(name)
	if _, ok := d.pwPolicies[key]; !ok {
		return security.New(security.PwPolicyNotFound, "password policy %q not found", name)
	}
	delete(d.pwPolicies, key)
	return nil
}

func (d *Directory) ListPwPolicies(_ context.Context) ([]model.PwPolicy, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	policies := make([]model.PwPolicy, 0, len(d.pwPolicies))
	for _, policy := range d.pwPolicies {
		policies = append(policies, *policy)
	}
	sortByName(policies, func(p model.PwPolicy) string { return p.Name })
	return policies, nil
}

// Settings.

func (d *Directory) GetSettings(_ context.Context) (map[string]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	props := make(map[string]string, len(d.settings))
	for k, v := range d.settings {
		props[k] = v
	}
	return props, nil
}

func (d *Directory) PutSettings(_ context.Context, props map[string]string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for k, v := range props {
		if v == "" {
			delete(d.settings, k)
			continue
		}
		d.settings[k] = v
	}
	return nil
}

// Copy helpers. Reads hand out deep copies so callers cannot reach
// the stored records.

func sortByName[T any](items []T, name func(T) string) {
	sort.Slice(items, func(i, j int) bool {
		return model.Normalize(name(items[i])) < model.Normalize(name(items[j]))
	})
}

func copyRole(role *model.Role) *model.Role {
	clone := *role
	clone.Parents = append([]string(nil), role.Parents...)
	return &clone
}

func copyAdminRole(role *model.AdminRole) *model.AdminRole {
	clone := *role
	clone.Parents = append([]string(nil), role.Parents...)
	clone.OSU = append([]string(nil), role.OSU...)
	clone.OSP = append([]string(nil), role.OSP...)
	return &clone
}

func copyPermObject(object *model.PermObject) *model.PermObject {
	clone := *object
	clone.Props = copyProps(object.Props)
	return &clone
}

func copyPermission(perm *model.Permission) *model.Permission {
	clone := *perm
	clone.Roles = append([]string(nil), perm.Roles...)
	clone.Users = append([]string(nil), perm.Users...)
	clone.Props = copyProps(perm.Props)
	return &clone
}

func copyOrgUnit(unit *model.OrgUnit) *model.OrgUnit {
	clone := *unit
	clone.Parents = append([]string(nil), unit.Parents...)
	return &clone
}

func copySDSet(set *model.SDSet) *model.SDSet {
	clone := *set
	clone.Members = append([]string(nil), set.Members...)
	return &clone
}

func copyGroup(group *model.Group) *model.Group {
	clone := *group
	clone.Members = append([]string(nil), group.Members...)
	clone.Props = copyProps(group.Props)
	return &clone
}

func copyProps(props map[string]string) map[string]string {
	if props == nil {
		return nil
	}
	clone := make(map[string]string, len(props))
	for k, v := range props {
		clone[k] = v
	}
	return clone
}
