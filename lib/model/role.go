// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package model

// Role is an RBAC role. Parent relations form a directed acyclic
// graph: a role may have several parents (multiple inheritance), and
// parents are senior — a user holding a parent role is authorized for
// its descendants.
type Role struct {
	// Name is the unique key, compared case-insensitively.
	Name string

	// Parents are the names of directly senior roles.
	Parents []string

	// Constraint governs when the role may activate. Copied onto
	// bindings at assignment time unless the binding narrows it.
	Constraint Constraint

	// Description is optional display text.
	Description string
}

// AdminRole is an administrative (ARBAC) role: a role plus an
// authority scope bounding which entities holders may administer.
type AdminRole struct {
	Role

	// OSU is the user org-unit pool: the admin role may administer
	// users whose org-unit is in this set. Empty confers no user
	// authority.
	OSU []string

	// OSP is the permission org-unit pool: the admin role may
	// administer permissions whose object org-unit is in this set.
	// Empty confers no permission authority.
	OSP []string

	// BeginRange and EndRange bound the slice of the role hierarchy
	// the admin role may administer: BeginRange is the junior
	// endpoint, EndRange the senior. Both empty means the whole
	// hierarchy. The inclusivity flags apply only when the target
	// role equals the endpoint itself.
	BeginRange     string
	EndRange       string
	BeginInclusive bool
	EndInclusive   bool
}

// OrgUnitKind distinguishes the two org-unit partitions.
type OrgUnitKind int

const (
	// UserOU is the partition user accounts belong to.
	UserOU OrgUnitKind = iota

	// PermOU is the partition permission objects belong to.
	PermOU
)

// String returns "user" or "perm".
func (k OrgUnitKind) String() string {
	if k == PermOU {
		return "perm"
	}
	return "user"
}

// OrgUnit is an organizational unit in one of the two partitions.
type OrgUnit struct {
	// Name is the unique key within its kind.
	Name string

	// Kind selects the partition.
	Kind OrgUnitKind

	// Parents optionally place the unit in an org-unit hierarchy.
	Parents []string

	// Description is optional display text.
	Description string
}

// Group is a named set of user members, used for coarse entitlements
// that do not need per-role activation semantics.
type Group struct {
	// Name is the unique key, compared case-insensitively.
	Name string

	// Members are user identifiers.
	Members []string

	// Props are free-form name/value properties.
	Props map[string]string

	// Description is optional display text.
	Description string
}
