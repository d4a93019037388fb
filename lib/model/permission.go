// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package model

// PermObject is a protected resource: the object half of a permission.
// Operations are defined against it, and its org-unit places it in the
// permission partition for delegated-admin scoping.
type PermObject struct {
	// Name is the unique object key.
	Name string

	// OrgUnit references the permission org-unit the object belongs
	// to. Required on create.
	OrgUnit string

	// Props are free-form name/value properties.
	Props map[string]string

	// Description is optional display text.
	Description string
}

// Permission identifies an operation on a protected object, optionally
// qualified by an object instance. Grants relate it many-to-many to
// roles, and directly to individual users.
type Permission struct {
	// Object is the protected object name. Required.
	Object string

	// Operation is the action on the object. Required.
	Operation string

	// ObjectID optionally narrows the permission to one instance of
	// the object.
	ObjectID string

	// Roles are the role names granted this permission.
	Roles []string

	// Users are user identifiers granted this permission directly,
	// outside any role.
	Users []string

	// Props are free-form name/value properties.
	Props map[string]string

	// Description is optional display text.
	Description string
}

// Key returns the canonical identity of the permission:
// object, operation, and object instance, normalized.
func (p Permission) Key() string {
	key := Normalize(p.Object) + "::" + Normalize(p.Operation)
	if p.ObjectID != "" {
		key += "::" + Normalize(p.ObjectID)
	}
	return key
}

// GrantedToRole reports whether the permission is granted to the named
// role.
func (p Permission) GrantedToRole(role string) bool {
	want := Normalize(role)
	for _, name := range p.Roles {
		if Normalize(name) == want {
			return true
		}
	}
	return false
}

// GrantedToUser reports whether the permission is granted directly to
// the user.
func (p Permission) GrantedToUser(userID string) bool {
	want := Normalize(userID)
	for _, id := range p.Users {
		if Normalize(id) == want {
			return true
		}
	}
	return false
}
