// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package ldapdir

import (
	"context"
	"strconv"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/bastion-auth/bastion/lib/model"
	"github.com/bastion-auth/bastion/lib/security"
)

const (
	attrName        = "cn"
	attrOrgUnitName = "ou"
	attrParents     = "bastionParent"
	attrMembers     = "bastionMember"
	attrOSU         = "bastionOSU"
	attrOSP         = "bastionOSP"
	attrBeginRange  = "bastionBeginRange"
	attrEndRange    = "bastionEndRange"
	attrBeginIncl   = "bastionBeginInclusive"
	attrEndIncl     = "bastionEndInclusive"
	attrKind        = "bastionKind"
	attrCardinality = "bastionCardinality"
	attrOperation   = "bastionOperation"
	attrObjectID    = "bastionObjectID"
	attrObject      = "bastionObject"
	attrGrantRoles  = "bastionGrantRole"
	attrGrantUsers  = "bastionGrantUser"
	attrMaxAge      = "bastionMaxAge"
	attrGraceLogins = "bastionGraceLogins"
	attrMaxFailures = "bastionMaxFailures"
	attrLockout     = "bastionLockoutDuration"

	classRole       = "bastionRole"
	classAdminRole  = "bastionAdminRole"
	classPermObject = "bastionObjectClass"
	classPermission = "bastionPermission"
	classOrgUnit    = "bastionOrgUnit"
	classSDSet      = "bastionSDSet"
	classGroup      = "bastionGroup"
	classPwPolicy   = "bastionPwPolicy"
	classSettings   = "bastionSettings"
)

// Roles.

var roleAttrs = []string{attrName, attrParents, attrConstraint, attrDescription}

func (d *Directory) GetRole(ctx context.Context, name string) (*model.Role, error) {
	entry, err := d.searchEntry(ctx, d.roleDN(name), roleAttrs)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, security.New(security.RoleNotFound, "role %q not found", name)
	}
	role, err := roleFromEntry(entry)
	if err != nil {
		return nil, err
	}
	return role, nil
}

func (d *Directory) CreateRole(ctx context.Context, role *model.Role) error {
	req := ldap.NewAddRequest(d.roleDN(role.Name), nil)
	req.Attribute("objectClass", []string{classRole})
	req.Attribute(attrName, []string{model.Normalize(role.Name)})
	setRoleAttributes(addAttr(req), role)
	return d.add(ctx, req, security.RoleAlreadyExists, "role "+role.Name)
}

func (d *Directory) UpdateRole(ctx context.Context, role *model.Role) error {
	req := ldap.NewModifyRequest(d.roleDN(role.Name), nil)
	setRoleAttributes(req.Replace, role)
	return d.modify(ctx, req, security.RoleNotFound, "role "+role.Name)
}

func (d *Directory) DeleteRole(ctx context.Context, name string) error {
	return d.del(ctx, d.roleDN(name), security.RoleNotFound, "role "+name)
}

func (d *Directory) ListRoles(ctx context.Context) ([]model.Role, error) {
	entries, err := d.search(ctx, "ou=roles,"+d.cfg.BaseDN, ldap.ScopeSingleLevel,
		"(objectClass="+classRole+")", roleAttrs)
	if err != nil {
		return nil, err
	}
	roles := make([]model.Role, 0, len(entries))
	for _, entry := range entries {
		role, err := roleFromEntry(entry)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *role)
	}
	return roles, nil
}

func setRoleAttributes(set func(string, []string), role *model.Role) {
	set(attrParents, role.Parents)
	set(attrConstraint, nonEmpty(encodeConstraint(role.Constraint)))
	set(attrDescription, nonEmpty(role.Description))
}

func roleFromEntry(entry *ldap.Entry) (*model.Role, error) {
	role := &model.Role{
		Name:        entry.GetAttributeValue(attrName),
		Parents:     entry.GetAttributeValues(attrParents),
		Description: entry.GetAttributeValue(attrDescription),
	}
	var err error
	if role.Constraint, err = decodeConstraint(entry.GetAttributeValue(attrConstraint)); err != nil {
		return nil, err
	}
	return role, nil
}

// Admin roles.

var adminRoleAttrs = []string{
	attrName, attrParents, attrConstraint, attrDescription,
	attrOSU, attrOSP, attrBeginRange, attrEndRange, attrBeginIncl, attrEndIncl,
}

func (d *Directory) GetAdminRole(ctx context.Context, name string) (*model.AdminRole, error) {
	entry, err := d.searchEntry(ctx, d.adminRoleDN(name), adminRoleAttrs)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, security.New(security.AdminRoleNotFound, "admin role %q not found", name)
	}
	return adminRoleFromEntry(entry)
}

func (d *Directory) CreateAdminRole(ctx context.Context, role *model.AdminRole) error {
	req := ldap.NewAddRequest(d.adminRoleDN(role.Name), nil)
	req.Attribute("objectClass", []string{classAdminRole})
	req.Attribute(attrName, []string{model.Normalize(role.Name)})
	setAdminRoleAttributes(addAttr(req), role)
	return d.add(ctx, req, security.RoleAlreadyExists, "admin role "+role.Name)
}

func (d *Directory) UpdateAdminRole(ctx context.Context, role *model.AdminRole) error {
	req := ldap.NewModifyRequest(d.adminRoleDN(role.Name), nil)
	setAdminRoleAttributes(req.Replace, role)
	return d.modify(ctx, req, security.AdminRoleNotFound, "admin role "+role.Name)
}

func (d *Directory) DeleteAdminRole(ctx context.Context, name string) error {
	return d.del(ctx, d.adminRoleDN(name), security.AdminRoleNotFound, "admin role "+name)
}

func (d *Directory) ListAdminRoles(ctx context.Context) ([]model.AdminRole, error) {
	entries, err := d.search(ctx, "ou=adminroles,"+d.cfg.BaseDN, ldap.ScopeSingleLevel,
		"(objectClass="+classAdminRole+")", adminRoleAttrs)
	if err != nil {
		return nil, err
	}
	roles := make([]model.AdminRole, 0, len(entries))
	for _, entry := range entries {
		role, err := adminRoleFromEntry(entry)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *role)
	}
	return roles, nil
}

func setAdminRoleAttributes(set func(string, []string), role *model.AdminRole) {
	setRoleAttributes(set, &role.Role)
	set(attrOSU, role.OSU)
	set(attrOSP, role.OSP)
	set(attrBeginRange, nonEmpty(role.BeginRange))
	set(attrEndRange, nonEmpty(role.EndRange))
	set(attrBeginIncl, flag(role.BeginInclusive))
	set(attrEndIncl, flag(role.EndInclusive))
}

func adminRoleFromEntry(entry *ldap.Entry) (*model.AdminRole, error) {
	base, err := roleFromEntry(entry)
	if err != nil {
		return nil, err
	}
	return &model.AdminRole{
		Role:           *base,
		OSU:            entry.GetAttributeValues(attrOSU),
		OSP:            entry.GetAttributeValues(attrOSP),
		BeginRange:     entry.GetAttributeValue(attrBeginRange),
		EndRange:       entry.GetAttributeValue(attrEndRange),
		BeginInclusive: entry.GetAttributeValue(attrBeginIncl) == flagTrue,
		EndInclusive:   entry.GetAttributeValue(attrEndIncl) == flagTrue,
	}, nil
}

// Permission objects and permissions. Each object entry has one child
// entry per operation defined on it; deleting an object removes the
// subtree one permission at a time.

var permObjectAttrs = []string{attrName, attrOrgUnitName, attrProps, attrDescription}

var permissionAttrs = []string{
	attrObject, attrOperation, attrObjectID,
	attrGrantRoles, attrGrantUsers, attrProps, attrDescription,
}

func (d *Directory) GetPermObject(ctx context.Context, name string) (*model.PermObject, error) {
	entry, err := d.searchEntry(ctx, d.objectDN(name), permObjectAttrs)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, security.New(security.PermObjectNotFound, "permission object %q not found", name)
	}
	return permObjectFromEntry(entry), nil
}

func (d *Directory) CreatePermObject(ctx context.Context, object *model.PermObject) error {
	req := ldap.NewAddRequest(d.objectDN(object.Name), nil)
	req.Attribute("objectClass", []string{classPermObject})
	req.Attribute(attrName, []string{model.Normalize(object.Name)})
	set := addAttr(req)
	set(attrOrgUnitName, nonEmpty(object.OrgUnit))
	set(attrProps, encodeProps(object.Props))
	set(attrDescription, nonEmpty(object.Description))
	return d.add(ctx, req, security.PermAlreadyExists, "permission object "+object.Name)
}

func (d *Directory) DeletePermObject(ctx context.Context, name string) error {
	perms, err := d.search(ctx, d.objectDN(name), ldap.ScopeSingleLevel,
		"(objectClass="+classPermission+")", []string{attrOperation, attrObjectID})
	if err != nil {
		return err
	}
	for _, entry := range perms {
		if err := d.del(ctx, entry.DN, security.PermNotFound, "permission "+entry.DN); err != nil {
			return err
		}
	}
	return d.del(ctx, d.objectDN(name), security.PermObjectNotFound, "permission object "+name)
}

func (d *Directory) ListPermObjects(ctx context.Context) ([]model.PermObject, error) {
	entries, err := d.search(ctx, "ou=objects,"+d.cfg.BaseDN, ldap.ScopeSingleLevel,
		"(objectClass="+classPermObject+")", permObjectAttrs)
	if err != nil {
		return nil, err
	}
	objects := make([]model.PermObject, 0, len(entries))
	for _, entry := range entries {
		objects = append(objects, *permObjectFromEntry(entry))
	}
	return objects, nil
}

func permObjectFromEntry(entry *ldap.Entry) *model.PermObject {
	return &model.PermObject{
		Name:        entry.GetAttributeValue(attrName),
		OrgUnit:     entry.GetAttributeValue(attrOrgUnitName),
		Props:       decodeProps(entry.GetAttributeValues(attrProps)),
		Description: entry.GetAttributeValue(attrDescription),
	}
}

func (d *Directory) GetPermission(ctx context.Context, object, operation, objectID string) (*model.Permission, error) {
	entry, err := d.searchEntry(ctx, d.permissionDN(object, operation, objectID), permissionAttrs)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, security.New(security.PermNotFound, "permission %s not found",
			model.Permission{Object: object, Operation: operation, ObjectID: objectID}.Key())
	}
	return permissionFromEntry(entry), nil
}

func (d *Directory) CreatePermission(ctx context.Context, perm *model.Permission) error {
	req := ldap.NewAddRequest(d.permissionDN(perm.Object, perm.Operation, perm.ObjectID), nil)
	req.Attribute("objectClass", []string{classPermission})
	req.Attribute(attrObject, []string{model.Normalize(perm.Object)})
	req.Attribute(attrOperation, []string{model.Normalize(perm.Operation)})
	addAttr(req)(attrObjectID, nonEmpty(perm.ObjectID))
	setGrantAttributes(addAttr(req), perm)
	return d.add(ctx, req, security.PermAlreadyExists, "permission "+perm.Key())
}

func (d *Directory) UpdatePermission(ctx context.Context, perm *model.Permission) error {
	req := ldap.NewModifyRequest(d.permissionDN(perm.Object, perm.Operation, perm.ObjectID), nil)
	setGrantAttributes(req.Replace, perm)
	return d.modify(ctx, req, security.PermNotFound, "permission "+perm.Key())
}

func (d *Directory) DeletePermission(ctx context.Context, object, operation, objectID string) error {
	key := model.Permission{Object: object, Operation: operation, ObjectID: objectID}.Key()
	return d.del(ctx, d.permissionDN(object, operation, objectID), security.PermNotFound, "permission "+key)
}

func (d *Directory) ListPermissions(ctx context.Context) ([]model.Permission, error) {
	entries, err := d.search(ctx, "ou=objects,"+d.cfg.BaseDN, ldap.ScopeWholeSubtree,
		"(objectClass="+classPermission+")", permissionAttrs)
	if err != nil {
		return nil, err
	}
	perms := make([]model.Permission, 0, len(entries))
	for _, entry := range entries {
		perms = append(perms, *permissionFromEntry(entry))
	}
	return perms, nil
}

func setGrantAttributes(set func(string, []string), perm *model.Permission) {
	set(attrGrantRoles, perm.Roles)
	set(attrGrantUsers, perm.Users)
	set(attrProps, encodeProps(perm.Props))
	set(attrDescription, nonEmpty(perm.Description))
}

func permissionFromEntry(entry *ldap.Entry) *model.Permission {
	return &model.Permission{
		Object:      entry.GetAttributeValue(attrObject),
		Operation:   entry.GetAttributeValue(attrOperation),
		ObjectID:    entry.GetAttributeValue(attrObjectID),
		Roles:       entry.GetAttributeValues(attrGrantRoles),
		Users:       entry.GetAttributeValues(attrGrantUsers),
		Props:       decodeProps(entry.GetAttributeValues(attrProps)),
		Description: entry.GetAttributeValue(attrDescription),
	}
}

// Org units.

var orgUnitAttrs = []string{attrOrgUnitName, attrParents, attrDescription}

func (d *Directory) GetOrgUnit(ctx context.Context, kind model.OrgUnitKind, name string) (*model.OrgUnit, error) {
	entry, err := d.searchEntry(ctx, d.orgUnitDN(kind, name), orgUnitAttrs)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, security.New(security.OrgUnitNotFound, "%s org unit %q not found", kind, name)
	}
	return orgUnitFromEntry(entry, kind), nil
}

func (d *Directory) CreateOrgUnit(ctx context.Context, unit *model.OrgUnit) error {
	req := ldap.NewAddRequest(d.orgUnitDN(unit.Kind, unit.Name), nil)
	req.Attribute("objectClass", []string{classOrgUnit})
	req.Attribute(attrOrgUnitName, []string{model.Normalize(unit.Name)})
	set := addAttr(req)
	set(attrParents, unit.Parents)
	set(attrDescription, nonEmpty(unit.Description))
	return d.add(ctx, req, security.OrgUnitAlreadyExists,
		unit.Kind.String()+" org unit "+unit.Name)
}

func (d *Directory) DeleteOrgUnit(ctx context.Context, kind model.OrgUnitKind, name string) error {
	return d.del(ctx, d.orgUnitDN(kind, name), security.OrgUnitNotFound,
		kind.String()+" org unit "+name)
}

func (d *Directory) ListOrgUnits(ctx context.Context, kind model.OrgUnitKind) ([]model.OrgUnit, error) {
	container := "ou=os-u," + d.cfg.BaseDN
	if kind == model.PermOU {
		container = "ou=os-p," + d.cfg.BaseDN
	}
	entries, err := d.search(ctx, container, ldap.ScopeSingleLevel,
		"(objectClass="+classOrgUnit+")", orgUnitAttrs)
	if err != nil {
		return nil, err
	}
	units := make([]model.OrgUnit, 0, len(entries))
	for _, entry := range entries {
		units = append(units, *orgUnitFromEntry(entry, kind))
	}
	return units, nil
}

func orgUnitFromEntry(entry *ldap.Entry, kind model.OrgUnitKind) *model.OrgUnit {
	return &model.OrgUnit{
		Name:        entry.GetAttributeValue(attrOrgUnitName),
		Kind:        kind,
		Parents:     entry.GetAttributeValues(attrParents),
		Description: entry.GetAttributeValue(attrDescription),
	}
}

// Separation-of-duty sets.

var sdSetAttrs = []string{attrName, attrKind, attrMembers, attrCardinality, attrDescription}

func (d *Directory) GetSDSet(ctx context.Context, name string) (*model.SDSet, error) {
	entry, err := d.searchEntry(ctx, d.sdSetDN(name), sdSetAttrs)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, security.New(security.SDSetNotFound, "sd set %q not found", name)
	}
	return sdSetFromEntry(entry)
}

func (d *Directory) CreateSDSet(ctx context.Context, set *model.SDSet) error {
	req := ldap.NewAddRequest(d.sdSetDN(set.Name), nil)
	req.Attribute("objectClass", []string{classSDSet})
	req.Attribute(attrName, []string{model.Normalize(set.Name)})
	setSDSetAttributes(addAttr(req), set)
	return d.add(ctx, req, security.SDSetAlreadyExists, "sd set "+set.Name)
}

func (d *Directory) UpdateSDSet(ctx context.Context, set *model.SDSet) error {
	req := ldap.NewModifyRequest(d.sdSetDN(set.Name), nil)
	setSDSetAttributes(req.Replace, set)
	return d.modify(ctx, req, security.SDSetNotFound, "sd set "+set.Name)
}

func (d *Directory) DeleteSDSet(ctx context.Context, name string) error {
	return d.del(ctx, d.sdSetDN(name), security.SDSetNotFound, "sd set "+name)
}

func (d *Directory) ListSDSets(ctx context.Context, kind model.SDKind) ([]model.SDSet, error) {
	filter := "(&(objectClass=" + classSDSet + ")(" + attrKind + "=" + kind.String() + "))"
	entries, err := d.search(ctx, "ou=constraints,"+d.cfg.BaseDN, ldap.ScopeSingleLevel,
		filter, sdSetAttrs)
	if err != nil {
		return nil, err
	}
	sets := make([]model.SDSet, 0, len(entries))
	for _, entry := range entries {
		set, err := sdSetFromEntry(entry)
		if err != nil {
			return nil, err
		}
		sets = append(sets, *set)
	}
	return sets, nil
}

func setSDSetAttributes(set func(string, []string), s *model.SDSet) {
	set(attrKind, []string{s.Kind.String()})
	set(attrMembers, s.Members)
	set(attrCardinality, []string{strconv.Itoa(s.Cardinality)})
	set(attrDescription, nonEmpty(s.Description))
}

func sdSetFromEntry(entry *ldap.Entry) (*model.SDSet, error) {
	cardinality, err := strconv.Atoi(entry.GetAttributeValue(attrCardinality))
	if err != nil {
		return nil, security.New(security.SDSetInvalid, "sd set %q: cardinality %q",
			entry.GetAttributeValue(attrName), entry.GetAttributeValue(attrCardinality))
	}
	kind := model.StaticSD
	if entry.GetAttributeValue(attrKind) == model.DynamicSD.String() {
		kind = model.DynamicSD
	}
	return &model.SDSet{
		Name:        entry.GetAttributeValue(attrName),
		Kind:        kind,
		Members:     entry.GetAttributeValues(attrMembers),
		Cardinality: cardinality,
		Description: entry.GetAttributeValue(attrDescription),
	}, nil
}

// Groups.

var groupAttrs = []string{attrName, attrMembers, attrProps, attrDescription}

func (d *Directory) GetGroup(ctx context.Context, name string) (*model.Group, error) {
	entry, err := d.searchEntry(ctx, d.groupDN(name), groupAttrs)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, security.New(security.GroupNotFound, "group %q not found", name)
	}
	return groupFromEntry(entry), nil
}

func (d *Directory) CreateGroup(ctx context.Context, group *model.Group) error {
	req := ldap.NewAddRequest(d.groupDN(group.Name), nil)
	req.Attribute("objectClass", []string{classGroup})
	req.Attribute(attrName, []string{model.Normalize(group.Name)})
	setGroupAttributes(addAttr(req), group)
	return d.add(ctx, req, security.GroupAlreadyExists, "group "+group.Name)
}

func (d *Directory) UpdateGroup(ctx context.Context, group *model.Group) error {
	req := ldap.NewModifyRequest(d.groupDN(group.Name), nil)
	setGroupAttributes(req.Replace, group)
	return d.modify(ctx, req, security.GroupNotFound, "group "+group.Name)
}

func (d *Directory) DeleteGroup(ctx context.Context, name string) error {
	return d.del(ctx, d.groupDN(name), security.GroupNotFound, "group "+name)
}

func (d *Directory) ListGroups(ctx context.Context) ([]model.Group, error) {
	entries, err := d.search(ctx, "ou=groups,"+d.cfg.BaseDN, ldap.ScopeSingleLevel,
		"(objectClass="+classGroup+")", groupAttrs)
	if err != nil {
		return nil, err
	}
	groups := make([]model.Group, 0, len(entries))
	for _, entry := range entries {
		groups = append(groups, *groupFromEntry(entry))
	}
	return groups, nil
}

func setGroupAttributes(set func(string, []string), group *model.Group) {
	set(attrMembers, group.Members)
	set(attrProps, encodeProps(group.Props))
	set(attrDescription, nonEmpty(group.Description))
}

func groupFromEntry(entry *ldap.Entry) *model.Group {
	return &model.Group{
		Name:        entry.GetAttributeValue(attrName),
		Members:     entry.GetAttributeValues(attrMembers),
		Props:       decodeProps(entry.GetAttributeValues(attrProps)),
		Description: entry.GetAttributeValue(attrDescription),
	}
}

// Password policies.

var pwPolicyAttrs = []string{attrName, attrMaxAge, attrGraceLogins, attrMaxFailures, attrLockout}

func (d *Directory) GetPwPolicy(ctx context.Context, name string) (*model.PwPolicy, error) {
	entry, err := d.searchEntry(ctx, d.pwPolicyDN(name), pwPolicyAttrs)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, security.New(security.PwPolicyNotFound, "password policy %q not found", name)
	}
	return pwPolicyFromEntry(entry), nil
}

func (d *Directory) CreatePwPolicy(ctx context.Context, policy *model.PwPolicy) error {
	req := ldap.NewAddRequest(d.pwPolicyDN(policy.Name), nil)
	req.Attribute("objectClass", []string{classPwPolicy})
	req.Attribute(attrName, []string{model.Normalize(policy.Name)})
	req.Attribute(attrMaxAge, []string{strconv.FormatInt(int64(policy.MaxAge/time.Second), 10)})
	req.Attribute(attrGraceLogins, []string{strconv.Itoa(policy.GraceLogins)})
	req.Attribute(attrMaxFailures, []string{strconv.Itoa(policy.MaxFailures)})
	req.Attribute(attrLockout, []string{strconv.FormatInt(int64(policy.LockoutDuration/time.Second), 10)})
	return d.add(ctx, req, security.PwPolicyAlreadyExists, "password policy "+policy.Name)
}

func (d *Directory) DeletePwPolicy(ctx context.Context, name string) error {
	return d.del(ctx, d.pwPolicyDN(name), security.PwPolicyNotFound, "password policy "+name)
}

func (d *Directory) ListPwPolicies(ctx context.Context) ([]model.PwPolicy, error) {
	entries, err := d.search(ctx, "ou=policies,"+d.cfg.BaseDN, ldap.ScopeSingleLevel,
		"(objectClass="+classPwPolicy+")", pwPolicyAttrs)
	if err != nil {
		return nil, err
	}
	policies := make([]model.PwPolicy, 0, len(entries))
	for _, entry := range entries {
		policies = append(policies, *pwPolicyFromEntry(entry))
	}
	return policies, nil
}

func pwPolicyFromEntry(entry *ldap.Entry) *model.PwPolicy {
	seconds := func(attr string) time.Duration {
		n, _ := strconv.ParseInt(entry.GetAttributeValue(attr), 10, 64)
		return time.Duration(n) * time.Second
	}
	count := func(attr string) int {
		n, _ := strconv.Atoi(entry.GetAttributeValue(attr))
		return n
	}
	return &model.PwPolicy{
		Name:            entry.GetAttributeValue(attrName),
		MaxAge:          seconds(attrMaxAge),
		GraceLogins:     count(attrGraceLogins),
		MaxFailures:     count(attrMaxFailures),
		LockoutDuration: seconds(attrLockout),
	}
}

// Settings live on one well-known entry, created on first write.

func (d *Directory) GetSettings(ctx context.Context) (map[string]string, error) {
	entry, err := d.searchEntry(ctx, d.settingsDN(), []string{attrProps})
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return map[string]string{}, nil
	}
	props := decodeProps(entry.GetAttributeValues(attrProps))
	if props == nil {
		props = map[string]string{}
	}
	return props, nil
}

func (d *Directory) PutSettings(ctx context.Context, props map[string]string) error {
	current, err := d.GetSettings(ctx)
	if err != nil {
		return err
	}
	merged := make(map[string]string, len(current)+len(props))
	for k, v := range current {
		merged[k] = v
	}
	for k, v := range props {
		if v == "" {
			delete(merged, k)
			continue
		}
		merged[k] = v
	}

	entry, err := d.searchEntry(ctx, d.settingsDN(), []string{attrName})
	if err != nil {
		return err
	}
	if entry == nil {
		req := ldap.NewAddRequest(d.settingsDN(), nil)
		req.Attribute("objectClass", []string{classSettings})
		req.Attribute(attrName, []string{"settings"})
		addAttr(req)(attrProps, encodeProps(merged))
		return d.add(ctx, req, security.StoreFailed, "settings")
	}
	req := ldap.NewModifyRequest(d.settingsDN(), nil)
	req.Replace(attrProps, encodeProps(merged))
	return d.modify(ctx, req, security.StoreFailed, "settings")
}
