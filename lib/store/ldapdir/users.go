// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package ldapdir

import (
	"context"
	"strings"

	"github.com/go-ldap/ldap/v3"

	"github.com/bastion-auth/bastion/lib/model"
	"github.com/bastion-auth/bastion/lib/security"
	"github.com/bastion-auth/bastion/lib/store"
)

// User entry attributes. Role and admin-role bindings are multi-valued
// raw strings: the role name followed by the binding's constraint
// fields, and for admin bindings the authority-scope fields.
const (
	attrUserID        = "uid"
	attrUserOrgUnit   = "ou"
	attrRoleBinding   = "bastionRoleBinding"
	attrAdminBinding  = "bastionAdminBinding"
	attrLocked        = "bastionLocked"
	attrDisabled      = "bastionDisabled"
	attrSystem        = "bastionSystem"
	attrPwPolicy      = "bastionPwPolicy"
	attrConstraint    = "bastionConstraint"
	attrProps         = "bastionProps"
	attrDescription   = "description"
	attrUserPassword  = "userPassword"
	classUser         = "bastionUser"
	flagTrue          = "TRUE"
	listDelimiter     = ","
)

var userAttrs = []string{
	attrUserID, attrUserOrgUnit, attrRoleBinding, attrAdminBinding,
	attrLocked, attrDisabled, attrSystem, attrPwPolicy,
	attrConstraint, attrProps, attrDescription,
}

func (d *Directory) GetUser(ctx context.Context, id string) (*model.User, error) {
	entry, err := d.searchEntry(ctx, d.userDN(id), userAttrs)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, security.New(security.UserNotFound, "user %q not found", id)
	}
	return userFromEntry(entry)
}

func (d *Directory) CreateUser(ctx context.Context, user *model.User) error {
	req := ldap.NewAddRequest(d.userDN(user.ID), nil)
	req.Attribute("objectClass", []string{classUser})
	req.Attribute(attrUserID, []string{model.Normalize(user.ID)})
	addUserAttributes(addAttr(req), user)
	if len(user.Password) > 0 {
		req.Attribute(attrUserPassword, []string{string(user.Password)})
	}
	if err := d.add(ctx, req, security.UserAlreadyExists, "user "+user.ID); err != nil {
		return err
	}
	user.Password = nil
	return nil
}

func (d *Directory) UpdateUser(ctx context.Context, user *model.User) error {
	req := ldap.NewModifyRequest(d.userDN(user.ID), nil)
	addUserAttributes(req.Replace, user)
	return d.modify(ctx, req, security.UserNotFound, "user "+user.ID)
}

func (d *Directory) DeleteUser(ctx context.Context, id string) error {
	return d.del(ctx, d.userDN(id), security.UserNotFound, "user "+id)
}

func (d *Directory) ListUsers(ctx context.Context) ([]model.User, error) {
	entries, err := d.search(ctx, "ou=people,"+d.cfg.BaseDN, ldap.ScopeSingleLevel,
		"(objectClass="+classUser+")", userAttrs)
	if err != nil {
		return nil, err
	}
	users := make([]model.User, 0, len(entries))
	for _, entry := range entries {
		user, err := userFromEntry(entry)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, nil
}

func (d *Directory) SetPassword(ctx context.Context, id string, password []byte) error {
	req := ldap.NewModifyRequest(d.userDN(id), nil)
	req.Replace(attrUserPassword, []string{string(password)})
	return d.modify(ctx, req, security.UserNotFound, "user "+id)
}

// VerifyPassword binds as the target user on a fresh connection. The
// directory server enforces its own lockout and aging policy; an
// account-locked result maps to a locked outcome and any other failed
// bind to a plain non-OK one.
func (d *Directory) VerifyPassword(ctx context.Context, id string, password []byte) (store.VerifyOutcome, error) {
	user, err := d.GetUser(ctx, id)
	if err != nil {
		return store.VerifyOutcome{}, err
	}
	if user.Locked {
		return store.VerifyOutcome{Locked: true}, nil
	}

	conn, err := ldap.DialURL(d.cfg.URL)
	if err != nil {
		return store.VerifyOutcome{}, security.Wrap(security.StoreFailed, err, "connecting to %s", d.cfg.URL)
	}
	defer conn.Close()
	if d.cfg.Timeout > 0 {
		conn.SetTimeout(d.cfg.Timeout)
	}

	if err := conn.Bind(d.userDN(id), string(password)); err != nil {
		switch {
		case ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials):
			return store.VerifyOutcome{}, nil
		case ldap.IsErrorWithCode(err, ldap.LDAPResultUnwillingToPerform):
			return store.VerifyOutcome{Locked: true}, nil
		}
		return store.VerifyOutcome{}, security.Wrap(security.StoreFailed, err, "binding as %s", id)
	}
	return store.VerifyOutcome{OK: true}, nil
}

// addUserAttributes writes every user attribute through set, which is
// either AddRequest.Attribute or ModifyRequest.Replace. On replace an
// empty value list clears the attribute.
func addUserAttributes(set func(string, []string), user *model.User) {
	set(attrUserOrgUnit, nonEmpty(user.OrgUnit))
	set(attrPwPolicy, nonEmpty(user.PwPolicy))
	set(attrConstraint, nonEmpty(encodeConstraint(user.Constraint)))
	set(attrDescription, nonEmpty(user.Description))
	set(attrLocked, flag(user.Locked))
	set(attrDisabled, flag(user.Disabled))
	set(attrSystem, flag(user.System))
	set(attrProps, encodeProps(user.Props))

	bindings := make([]string, 0, len(user.Roles))
	for _, binding := range user.Roles {
		bindings = append(bindings, encodeRoleBinding(binding))
	}
	set(attrRoleBinding, bindings)

	adminBindings := make([]string, 0, len(user.AdminRoles))
	for _, binding := range user.AdminRoles {
		adminBindings = append(adminBindings, encodeAdminBinding(binding))
	}
	set(attrAdminBinding, adminBindings)
}

func userFromEntry(entry *ldap.Entry) (*model.User, error) {
	user := &model.User{
		ID:          entry.GetAttributeValue(attrUserID),
		OrgUnit:     entry.GetAttributeValue(attrUserOrgUnit),
		PwPolicy:    entry.GetAttributeValue(attrPwPolicy),
		Description: entry.GetAttributeValue(attrDescription),
		Locked:      entry.GetAttributeValue(attrLocked) == flagTrue,
		Disabled:    entry.GetAttributeValue(attrDisabled) == flagTrue,
		System:      entry.GetAttributeValue(attrSystem) == flagTrue,
		Props:       decodeProps(entry.GetAttributeValues(attrProps)),
	}
	var err error
	if user.Constraint, err = decodeConstraint(entry.GetAttributeValue(attrConstraint)); err != nil {
		return nil, err
	}
	for _, raw := range entry.GetAttributeValues(attrRoleBinding) {
		binding, err := decodeRoleBinding(raw)
		if err != nil {
			return nil, err
		}
		user.Roles = append(user.Roles, binding)
	}
	for _, raw := range entry.GetAttributeValues(attrAdminBinding) {
		binding, err := decodeAdminBinding(raw)
		if err != nil {
			return nil, err
		}
		user.AdminRoles = append(user.AdminRoles, binding)
	}
	return user, nil
}

// Role binding raw form: role name then the constraint fields.
func encodeRoleBinding(binding model.UserRole) string {
	raw := encodeConstraint(binding.Constraint)
	if raw == "" {
		raw = strings.Repeat(rawDelimiter, 7)
	}
	return model.Normalize(binding.Role) + rawDelimiter + raw
}

func decodeRoleBinding(raw string) (model.UserRole, error) {
	role, rest, ok := strings.Cut(raw, rawDelimiter)
	if !ok || role == "" {
		return model.UserRole{}, security.New(security.ConstraintInvalid, "raw role binding %q", raw)
	}
	constraint, err := decodeConstraint(emptyToZero(rest))
	if err != nil {
		return model.UserRole{}, err
	}
	return model.UserRole{Role: role, Constraint: constraint}, nil
}

// Admin binding raw form appends the authority scope: the org-unit
// pools as comma lists, the hierarchy range endpoints, and the
// inclusivity flags.
func encodeAdminBinding(binding model.UserAdminRole) string {
	raw := encodeConstraint(binding.Constraint)
	if raw == "" {
		raw = strings.Repeat(rawDelimiter, 7)
	}
	fields := []string{
		model.Normalize(binding.Role),
		raw,
		strings.Join(binding.OSU, listDelimiter),
		strings.Join(binding.OSP, listDelimiter),
		binding.BeginRange,
		binding.EndRange,
		flag(binding.BeginInclusive)[0],
		flag(binding.EndInclusive)[0],
	}
	return strings.Join(fields, rawDelimiter)
}

func decodeAdminBinding(raw string) (model.UserAdminRole, error) {
	fields := strings.Split(raw, rawDelimiter)
	if len(fields) != 15 || fields[0] == "" {
		return model.UserAdminRole{}, security.New(security.ConstraintInvalid, "raw admin binding %q", raw)
	}
	constraint, err := decodeConstraint(emptyToZero(strings.Join(fields[1:9], rawDelimiter)))
	if err != nil {
		return model.UserAdminRole{}, err
	}
	return model.UserAdminRole{
		Role:           fields[0],
		Constraint:     constraint,
		OSU:            splitList(fields[9]),
		OSP:            splitList(fields[10]),
		BeginRange:     fields[11],
		EndRange:       fields[12],
		BeginInclusive: fields[13] == flagTrue,
		EndInclusive:   fields[14] == flagTrue,
	}, nil
}

func nonEmpty(value string) []string {
	if value == "" {
		return nil
	}
	return []string{value}
}

func flag(b bool) []string {
	if b {
		return []string{flagTrue}
	}
	return []string{"FALSE"}
}

func splitList(field string) []string {
	if field == "" {
		return nil
	}
	return strings.Split(field, listDelimiter)
}

// emptyToZero maps an all-empty constraint raw (bare delimiters) back
// to the empty string the codec treats as a zero constraint.
func emptyToZero(raw string) string {
	if strings.Trim(raw, rawDelimiter) == "" {
		return ""
	}
	return raw
}
