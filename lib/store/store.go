// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

// Package store defines the entity-store collaborator interface: the
// directory that owns persistent identity records.
//
// The core never talks to a directory protocol itself — it consumes
// this interface and treats every failure as final. Store errors are
// never retried here; retry policy belongs to the implementation or
// the caller. Implementations must be safe for concurrent use: the
// core re-reads entity data on every operation and holds no shared
// mutable state of its own.
//
// Two implementations ship with bastion: lib/store/memdir (in-memory
// reference store) and lib/store/ldapdir (LDAP directory).
package store

import (
	"context"

	"github.com/bastion-auth/bastion/lib/model"
)

// VerifyOutcome is the structured result of a password verification.
// The store distinguishes the reasons so the session activator can
// report bad-credential, locked-account, and policy-expired failures
// with distinct codes.
type VerifyOutcome struct {
	// OK means the credential verified and the account may proceed.
	OK bool

	// Locked means the account is administratively locked or has
	// exceeded its failure lockout. When set, OK is false even for
	// a correct credential.
	Locked bool

	// Expired means the credential passed verification but exceeded
	// its policy age with no grace logins left.
	Expired bool

	// GracesRemaining reports how many grace logins remain when the
	// verification consumed one. Zero otherwise.
	GracesRemaining int
}

// Users persists user accounts and verifies credentials.
type Users interface {
	// GetUser returns the account, or a UserNotFound error.
	GetUser(ctx context.Context, id string) (*model.User, error)
	CreateUser(ctx context.Context, user *model.User) error

	// UpdateUser replaces the account record (bindings included).
	// The credential is updated only through SetPassword.
	UpdateUser(ctx context.Context, user *model.User) error

	// DeleteUser removes the record entirely (hard delete). Soft
	// delete is an UpdateUser with Disabled set.
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]model.User, error)

	// VerifyPassword checks the credential against the stored one
	// under the account's password policy. A missing account is an
	// error; a wrong credential is a non-OK outcome, not an error.
	VerifyPassword(ctx context.Context, id string, password []byte) (VerifyOutcome, error)
	SetPassword(ctx context.Context, id string, password []byte) error
}

// Roles persists RBAC roles. ListRoles also serves as the hierarchy
// edge source.
type Roles interface {
	GetRole(ctx context.Context, name string) (*model.Role, error)
	CreateRole(ctx context.Context, role *model.Role) error
	UpdateRole(ctx context.Context, role *model.Role) error
	DeleteRole(ctx context.Context, name string) error
	ListRoles(ctx context.Context) ([]model.Role, error)
}

// AdminRoles persists administrative roles.
type AdminRoles interface {
	GetAdminRole(ctx context.Context, name string) (*model.AdminRole, error)
	CreateAdminRole(ctx context.Context, role *model.AdminRole) error
	UpdateAdminRole(ctx context.Context, role *model.AdminRole) error
	DeleteAdminRole(ctx context.Context, name string) error
	ListAdminRoles(ctx context.Context) ([]model.AdminRole, error)
}

// Permissions persists permission objects and the operations defined
// on them, including role and user grants.
type Permissions interface {
	GetPermObject(ctx context.Context, name string) (*model.PermObject, error)
	CreatePermObject(ctx context.Context, object *model.PermObject) error
	DeletePermObject(ctx context.Context, name string) error
	ListPermObjects(ctx context.Context) ([]model.PermObject, error)

	GetPermission(ctx context.Context, object, operation, objectID string) (*model.Permission, error)
	CreatePermission(ctx context.Context, perm *model.Permission) error

	// UpdatePermission replaces the grant lists and properties.
	UpdatePermission(ctx context.Context, perm *model.Permission) error
	DeletePermission(ctx context.Context, object, operation, objectID string) error
	ListPermissions(ctx context.Context) ([]model.Permission, error)
}

// OrgUnits persists the two org-unit partitions.
type OrgUnits interface {
	GetOrgUnit(ctx context.Context, kind model.OrgUnitKind, name string) (*model.OrgUnit, error)
	CreateOrgUnit(ctx context.Context, unit *model.OrgUnit) error
	DeleteOrgUnit(ctx context.Context, kind model.OrgUnitKind, name string) error
	ListOrgUnits(ctx context.Context, kind model.OrgUnitKind) ([]model.OrgUnit, error)
}

// SDSets persists separation-of-duty sets.
type SDSets interface {
	GetSDSet(ctx context.Context, name string) (*model.SDSet, error)
	CreateSDSet(ctx context.Context, set *model.SDSet) error
	UpdateSDSet(ctx context.Context, set *model.SDSet) error
	DeleteSDSet(ctx context.Context, name string) error
	ListSDSets(ctx context.Context, kind model.SDKind) ([]model.SDSet, error)
}

// Groups persists coarse user groups.
type Groups interface {
	GetGroup(ctx context.Context, name string) (*model.Group, error)
	CreateGroup(ctx context.Context, group *model.Group) error
	UpdateGroup(ctx context.Context, group *model.Group) error
	DeleteGroup(ctx context.Context, name string) error
	ListGroups(ctx context.Context) ([]model.Group, error)
}

// PwPolicies persists password policies.
type PwPolicies interface {
	GetPwPolicy(ctx context.Context, name string) (*model.PwPolicy, error)
	CreatePwPolicy(ctx context.Context, policy *model.PwPolicy) error
	DeletePwPolicy(ctx context.Context, name string) error
	ListPwPolicies(ctx context.Context) ([]model.PwPolicy, error)
}

// Settings persists directory-resident configuration properties.
type Settings interface {
	GetSettings(ctx context.Context) (map[string]string, error)

	// PutSettings merges the given properties into the stored set.
	// An empty value deletes the property.
	PutSettings(ctx context.Context, props map[string]string) error
}

// Directory is the full entity store: everything the managers need,
// in one collaborator. Engines that need less depend on the narrower
// interfaces above.
type Directory interface {
	Users
	Roles
	AdminRoles
	Permissions
	OrgUnits
	SDSets
	Groups
	PwPolicies
	Settings
}
