// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package model

import "strings"

// Normalize folds an identifier for case-insensitive comparison. User
// identifiers, role names, org-unit names, SD-set names, and group
// names are all compared through this function.
func Normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// User is a directory account. The identifier is a case-insensitive
// unique key; the credential is write-only after it is set (the store
// verifies it but never returns it).
type User struct {
	// ID is the unique identifier, compared case-insensitively.
	ID string

	// Password is the credential, populated only on create and
	// password-change requests. Stores hash it on write and never
	// return it on read.
	Password []byte

	// OrgUnit references the user org-unit the account belongs to.
	// Required on create.
	OrgUnit string

	// Roles are the RBAC role bindings assigned to the account.
	Roles []UserRole

	// AdminRoles are the administrative role bindings assigned to
	// the account.
	AdminRoles []UserAdminRole

	// Locked marks an administratively locked account. A locked
	// account cannot create sessions on either the password or the
	// trusted path.
	Locked bool

	// Disabled marks a soft-deleted account: the record remains in
	// the directory but cannot authenticate.
	Disabled bool

	// System protects built-in accounts: neither soft nor hard
	// delete may remove them.
	System bool

	// PwPolicy optionally references a password policy. Empty means
	// the directory default applies.
	PwPolicy string

	// Constraint is the account-level temporal constraint. A
	// failing user constraint aborts session creation entirely.
	Constraint Constraint

	// Props are free-form name/value properties.
	Props map[string]string

	// Description is optional display text.
	Description string
}

// RoleBinding returns the binding for the named role, or nil when the
// user does not hold it.
func (u *User) RoleBinding(role string) *UserRole {
	want := Normalize(role)
	for i := range u.Roles {
		if Normalize(u.Roles[i].Role) == want {
			return &u.Roles[i]
		}
	}
	return nil
}

// AdminRoleBinding returns the binding for the named admin role, or
// nil when the user does not hold it.
func (u *User) AdminRoleBinding(role string) *UserAdminRole {
	want := Normalize(role)
	for i := range u.AdminRoles {
		if Normalize(u.AdminRoles[i].Role) == want {
			return &u.AdminRoles[i]
		}
	}
	return nil
}

// RoleNames returns the assigned role names in binding order.
func (u *User) RoleNames() []string {
	names := make([]string, len(u.Roles))
	for i, binding := range u.Roles {
		names[i] = binding.Role
	}
	return names
}

// UserRole binds a user to a role. The binding carries its own
// constraint — copied from the role at assignment time unless the
// assignment supplied a narrower one — and it is the binding's
// constraint, not the role's, that participates in activation.
type UserRole struct {
	// Role is the bound role name.
	Role string

	// Constraint governs when this binding may activate.
	Constraint Constraint
}

// UserAdminRole binds a user to an administrative role. Like UserRole
// it carries a copied constraint, plus a copy of the admin role's
// authority scope so delegated-admin checks do not re-read the role.
type UserAdminRole struct {
	// Role is the bound admin role name.
	Role string

	// Constraint governs when this binding may activate.
	Constraint Constraint

	// OSU, OSP, and the range fields mirror the AdminRole's
	// authority scope at assignment time.
	OSU            []string
	OSP            []string
	BeginRange     string
	EndRange       string
	BeginInclusive bool
	EndInclusive   bool
}
