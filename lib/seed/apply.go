// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/bastion-auth/bastion/lib/admin"
	"github.com/bastion-auth/bastion/lib/model"
)

// Result counts what Apply created, for operator feedback.
type Result struct {
	OrgUnits    int
	PwPolicies  int
	Roles       int
	AdminRoles  int
	SDSets      int
	PermObjects int
	Permissions int
	Users       int
	Groups      int
}

// Apply creates every entity in the file through the admin manager,
// in dependency order: org units and password policies first, then
// roles and their inheritance edges, admin roles, SoD sets,
// permission objects and permissions, users with their bindings, and
// finally groups and settings. Every write goes through the manager
// so the same validation that guards the API guards the seed path.
//
// Apply is not transactional: it stops at the first failure and
// leaves earlier entities in place. Seeding an empty directory and
// re-running after a fix is the expected recovery.
func (f *File) Apply(ctx context.Context, manager *admin.Manager) (Result, error) {
	var result Result

	for _, unit := range f.OrgUnits {
		kind, err := orgUnitKind(unit.Kind)
		if err != nil {
			return result, err
		}
		err = manager.AddOrgUnit(ctx, &model.OrgUnit{
			Name:        unit.Name,
			Kind:        kind,
			Parents:     unit.Parents,
			Description: unit.Description,
		})
		if err != nil {
			return result, fmt.Errorf("org unit %q: %w", unit.Name, err)
		}
		result.OrgUnits++
	}

	for _, policy := range f.PwPolicies {
		err := manager.AddPwPolicy(ctx, &model.PwPolicy{
			Name:            policy.Name,
			MaxAge:          time.Duration(policy.MaxAgeDays) * 24 * time.Hour,
			GraceLogins:     policy.GraceLogins,
			MaxFailures:     policy.MaxFailures,
			LockoutDuration: time.Duration(policy.LockoutMinutes) * time.Minute,
		})
		if err != nil {
			return result, fmt.Errorf("password policy %q: %w", policy.Name, err)
		}
		result.PwPolicies++
	}

	// Roles are created without parents first, then the edges are
	// added through the inheritance operation. A seed file may list
	// a role before its parent; two passes make the order in the
	// file irrelevant.
	for _, role := range f.Roles {
		constraint, err := role.Constraint.convert()
		if err != nil {
			return result, err
		}
		err = manager.AddRole(ctx, &model.Role{
			Name:        role.Name,
			Constraint:  constraint,
			Description: role.Description,
		})
		if err != nil {
			return result, fmt.Errorf("role %q: %w", role.Name, err)
		}
		result.Roles++
	}
	for _, role := range f.Roles {
		for _, parent := range role.Parents {
			if err := manager.AddInheritance(ctx, parent, role.Name); err != nil {
				return result, fmt.Errorf("role %q parent %q: %w", role.Name, parent, err)
			}
		}
	}

	for _, role := range f.AdminRoles {
		constraint, err := role.Constraint.convert()
		if err != nil {
			return result, err
		}
		err = manager.AddAdminRole(ctx, &model.AdminRole{
			Role: model.Role{
				Name:        role.Name,
				Parents:     role.Parents,
				Constraint:  constraint,
				Description: role.Description,
			},
			OSU:            role.OSU,
			OSP:            role.OSP,
			BeginRange:     role.BeginRange,
			EndRange:       role.EndRange,
			BeginInclusive: role.BeginInclusive,
			EndInclusive:   role.EndInclusive,
		})
		if err != nil {
			return result, fmt.Errorf("admin role %q: %w", role.Name, err)
		}
		result.AdminRoles++
	}

	for _, set := range f.SDSets {
		kind, err := sdKind(set.Kind)
		if err != nil {
			return result, err
		}
		err = manager.AddSDSet(ctx, &model.SDSet{
			Name:        set.Name,
			Kind:        kind,
			Members:     set.Members,
			Cardinality: set.Cardinality,
			Description: set.Description,
		})
		if err != nil {
			return result, fmt.Errorf("sd set %q: %w", set.Name, err)
		}
		result.SDSets++
	}

	for _, object := range f.PermObjects {
		err := manager.AddPermObject(ctx, &model.PermObject{
			Name:        object.Name,
			OrgUnit:     object.OrgUnit,
			Props:       object.Props,
			Description: object.Description,
		})
		if err != nil {
			return result, fmt.Errorf("permission object %q: %w", object.Name, err)
		}
		result.PermObjects++
	}

	for _, perm := range f.Permissions {
		err := manager.AddPermission(ctx, &model.Permission{
			Object:      perm.Object,
			Operation:   perm.Operation,
			ObjectID:    perm.ObjectID,
			Roles:       perm.Roles,
			Users:       perm.Users,
			Description: perm.Description,
		})
		if err != nil {
			return result, fmt.Errorf("permission %q::%q: %w", perm.Object, perm.Operation, err)
		}
		result.Permissions++
	}

	// Users are created bare and then assigned role by role, so the
	// seed path exercises the same assignment checks (static SoD
	// included) as interactive administration.
	for _, user := range f.Users {
		constraint, err := user.Constraint.convert()
		if err != nil {
			return result, err
		}
		err = manager.AddUser(ctx, &model.User{
			ID:          user.ID,
			Password:    []byte(user.Password),
			OrgUnit:     user.OrgUnit,
			PwPolicy:    user.PwPolicy,
			Constraint:  constraint,
			Props:       user.Props,
			Description: user.Description,
		})
		if err != nil {
			return result, fmt.Errorf("user %q: %w", user.ID, err)
		}
		for _, binding := range user.Roles {
			override, err := overrideConstraint(binding.Constraint)
			if err != nil {
				return result, err
			}
			if err := manager.AssignUser(ctx, user.ID, binding.Role, override); err != nil {
				return result, fmt.Errorf("user %q role %q: %w", user.ID, binding.Role, err)
			}
		}
		for _, binding := range user.AdminRoles {
			override, err := overrideConstraint(binding.Constraint)
			if err != nil {
				return result, err
			}
			if err := manager.AssignAdminUser(ctx, user.ID, binding.Role, override); err != nil {
				return result, fmt.Errorf("user %q admin role %q: %w", user.ID, binding.Role, err)
			}
		}
		result.Users++
	}

	for _, group := range f.Groups {
		err := manager.AddGroup(ctx, &model.Group{
			Name:        group.Name,
			Members:     group.Members,
			Props:       group.Props,
			Description: group.Description,
		})
		if err != nil {
			return result, fmt.Errorf("group %q: %w", group.Name, err)
		}
		result.Groups++
	}

	if len(f.Settings) > 0 {
		if err := manager.WriteSettings(ctx, f.Settings); err != nil {
			return result, fmt.Errorf("settings: %w", err)
		}
	}

	return result, nil
}

func overrideConstraint(c *Constraint) (*model.Constraint, error) {
	if c == nil {
		return nil, nil
	}
	converted, err := c.convert()
	if err != nil {
		return nil, err
	}
	return &converted, nil
}
