// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package admin

import (
	"context"
	"log/slog"

	"github.com/bastion-auth/bastion/lib/cache"
	"github.com/bastion-auth/bastion/lib/constraint"
	"github.com/bastion-auth/bastion/lib/model"
	"github.com/bastion-auth/bastion/lib/security"
	"github.com/bastion-auth/bastion/lib/sod"
	"github.com/bastion-auth/bastion/lib/store"
)

// ssdCacheKey matches the key the review manager caches static sets
// under, so mutations here invalidate reads there when the two share
// a cache.
const ssdCacheKey = "ssd-sets"

// dsdCacheKey matches the session activator's cache key.
const dsdCacheKey = "dsd-sets"

// Manager performs administrative mutations. The zero value is not
// usable; populate Store. Logger and the caches are optional — when
// the caches are shared with the review manager and the session
// activator, SD-set mutations invalidate them.
type Manager struct {
	Store  store.Directory
	Logger *slog.Logger

	// SSDCache and DSDCache are the caches shared with lib/review
	// and lib/session respectively.
	SSDCache *cache.Cache[[]model.SDSet]
	DSDCache *cache.Cache[[]model.SDSet]
}

// AddUser validates and creates an account. Required: identifier and
// an existing user org-unit. A referenced password policy must exist.
// Role bindings supplied inline are validated the same way AssignUser
// validates them, static SoD included.
func (m *Manager) AddUser(ctx context.Context, user *model.User) error {
	if err := m.validateUser(ctx, user); err != nil {
		return err
	}
	if err := m.prepareBindings(ctx, user); err != nil {
		return err
	}
	if err := m.Store.CreateUser(ctx, user); err != nil {
		return err
	}
	m.logger().Info("user created", "user", user.ID, "orgunit", user.OrgUnit)
	return nil
}

// UpdateUser validates and replaces an account record. The credential
// is not touched; use ChangePassword or ResetPassword.
func (m *Manager) UpdateUser(ctx context.Context, user *model.User) error {
	if _, err := m.Store.GetUser(ctx, user.ID); err != nil {
		return err
	}
	if err := m.validateUser(ctx, user); err != nil {
		return err
	}
	if err := m.prepareBindings(ctx, user); err != nil {
		return err
	}
	return m.Store.UpdateUser(ctx, user)
}

// DisableUser soft-deletes an account: the record stays in the
// directory, flagged so it can no longer authenticate. System
// accounts cannot be disabled.
func (m *Manager) DisableUser(ctx context.Context, id string) error {
	user, err := m.Store.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if user.System {
		return security.New(security.UserProtected,
			"user %q is a system account and cannot be deleted", user.ID)
	}
	user.Disabled = true
	if err := m.Store.UpdateUser(ctx, user); err != nil {
		return err
	}
	m.logger().Info("user disabled", "user", user.ID)
	return nil
}

// EnableUser reverses a soft delete.
func (m *Manager) EnableUser(ctx context.Context, id string) error {
	user, err := m.Store.GetUser(ctx, id)
	if err != nil {
		return err
	}
	user.Disabled = false
	return m.Store.UpdateUser(ctx, user)
}

// DeleteUser purges an account entirely. System accounts cannot be
// deleted through this path either.
func (m *Manager) DeleteUser(ctx context.Context, id string) error {
	user, err := m.Store.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if user.System {
		return security.New(security.UserProtected,
			"user %q is a system account and cannot be deleted", user.ID)
	}
	if err := m.Store.DeleteUser(ctx, user.ID); err != nil {
		return err
	}
	m.logger().Info("user deleted", "user", user.ID)
	return nil
}

// LockUser sets the administrative lock flag.
func (m *Manager) LockUser(ctx context.Context, id string) error {
	user, err := m.Store.GetUser(ctx, id)
	if err != nil {
		return err
	}
	user.Locked = true
	return m.Store.UpdateUser(ctx, user)
}

// UnlockUser clears the administrative lock flag.
func (m *Manager) UnlockUser(ctx context.Context, id string) error {
	user, err := m.Store.GetUser(ctx, id)
	if err != nil {
		return err
	}
	user.Locked = false
	return m.Store.UpdateUser(ctx, user)
}

// ChangePassword verifies the current credential before storing the
// new one.
func (m *Manager) ChangePassword(ctx context.Context, id string, current, next []byte) error {
	if _, err := m.Store.GetUser(ctx, id); err != nil {
		return err
	}
	outcome, err := m.Store.VerifyPassword(ctx, id, current)
	if err != nil {
		return err
	}
	if outcome.Locked {
		return security.New(security.UserLocked, "user %q is locked", id)
	}
	if !outcome.OK && !outcome.Expired {
		// An expired password may still be changed; a wrong one may not.
		return security.New(security.PasswordInvalid, "user %q: invalid credential", id)
	}
	return m.Store.SetPassword(ctx, id, next)
}

// ResetPassword stores a new credential without verifying the old
// one. Administrative operation.
func (m *Manager) ResetPassword(ctx context.Context, id string, next []byte) error {
	if _, err := m.Store.GetUser(ctx, id); err != nil {
		return err
	}
	if err := m.Store.SetPassword(ctx, id, next); err != nil {
		return err
	}
	m.logger().Info("password reset", "user", id)
	return nil
}

// AssignUser binds a role to a user. The binding receives a copy of
// the role's constraint unless the caller supplies its own (which is
// then validated), and the assignment is checked against every static
// SD set containing the role before anything is written.
func (m *Manager) AssignUser(ctx context.Context, userID, role string, override *model.Constraint) error {
	user, err := m.Store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	roleEntity, err := m.Store.GetRole(ctx, role)
	if err != nil {
		return err
	}
	if user.RoleBinding(role) != nil {
		return security.New(security.RoleAlreadyAssigned,
			"user %q already holds role %q", user.ID, role)
	}

	binding := model.UserRole{Role: roleEntity.Name}
	if override != nil {
		binding.Constraint = *override
	}
	if err := constraint.ValidateOrCopy(roleEntity.Constraint, &binding.Constraint); err != nil {
		return err
	}

	checker, err := m.ssdChecker(ctx)
	if err != nil {
		return err
	}
	if violation := checker.Check(user.RoleNames(), roleEntity.Name); violation != nil {
		m.logger().Warn("assignment rejected by static SoD",
			"user", user.ID, "role", roleEntity.Name)
		return violation
	}

	user.Roles = append(user.Roles, binding)
	if err := m.Store.UpdateUser(ctx, user); err != nil {
		return err
	}
	m.logger().Info("role assigned", "user", user.ID, "role", roleEntity.Name)
	return nil
}

// DeassignUser removes a role binding.
func (m *Manager) DeassignUser(ctx context.Context, userID, role string) error {
	user, err := m.Store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	want := model.Normalize(role)
	for i := range user.Roles {
		if model.Normalize(user.Roles[i].Role) == want {
			user.Roles = append(user.Roles[:i], user.Roles[i+1:]...)
			if err := m.Store.UpdateUser(ctx, user); err != nil {
				return err
			}
			m.logger().Info("role deassigned", "user", user.ID, "role", role)
			return nil
		}
	}
	return security.New(security.RoleNotAssigned,
		"user %q is not assigned role %q", user.ID, role)
}

// AssignAdminUser binds an administrative role to a user, copying the
// admin role's authority scope onto the binding.
func (m *Manager) AssignAdminUser(ctx context.Context, userID, role string, override *model.Constraint) error {
	user, err := m.Store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	adminRole, err := m.Store.GetAdminRole(ctx, role)
	if err != nil {
		return err
	}
	if user.AdminRoleBinding(role) != nil {
		return security.New(security.RoleAlreadyAssigned,
			"user %q already holds admin role %q", user.ID, role)
	}

	binding := model.UserAdminRole{
		Role:           adminRole.Name,
		OSU:            append([]string(nil), adminRole.OSU...),
		OSP:            append([]string(nil), adminRole.OSP...),
		BeginRange:     adminRole.BeginRange,
		EndRange:       adminRole.EndRange,
		BeginInclusive: adminRole.BeginInclusive,
		EndInclusive:   adminRole.EndInclusive,
	}
	if override != nil {
		binding.Constraint = *override
	}
	if err := constraint.ValidateOrCopy(adminRole.Constraint, &binding.Constraint); err != nil {
		return err
	}

	user.AdminRoles = append(user.AdminRoles, binding)
	return m.Store.UpdateUser(ctx, user)
}

// DeassignAdminUser removes an administrative role binding.
func (m *Manager) DeassignAdminUser(ctx context.Context, userID, role string) error {
	user, err := m.Store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	want := model.Normalize(role)
	for i := range user.AdminRoles {
		if model.Normalize(user.AdminRoles[i].Role) == want {
			user.AdminRoles = append(user.AdminRoles[:i], user.AdminRoles[i+1:]...)
			return m.Store.UpdateUser(ctx, user)
		}
	}
	return security.New(security.RoleNotAssigned,
		"user %q is not assigned admin role %q", user.ID, role)
}

// validateUser applies the create/update validations: identifier,
// org-unit existence, password-policy existence, constraint shape.
func (m *Manager) validateUser(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		return security.New(security.UserIDRequired, "user id is required")
	}
	if user.OrgUnit == "" {
		return security.New(security.OrgUnitRequired,
			"user %q: org-unit is required", user.ID)
	}
	if _, err := m.Store.GetOrgUnit(ctx, model.UserOU, user.OrgUnit); err != nil {
		return err
	}
	if user.PwPolicy != "" {
		if _, err := m.Store.GetPwPolicy(ctx, user.PwPolicy); err != nil {
			return err
		}
	}
	return constraint.Validate(user.Constraint)
}

// prepareBindings resolves inline role bindings on a submitted user:
// constraint copy-or-validate plus incremental static SoD checking, in
// binding order.
func (m *Manager) prepareBindings(ctx context.Context, user *model.User) error {
	if len(user.Roles) == 0 && len(user.AdminRoles) == 0 {
		return nil
	}
	var checker *sod.Checker
	var held []string
	for i := range user.Roles {
		roleEntity, err := m.Store.GetRole(ctx, user.Roles[i].Role)
		if err != nil {
			return err
		}
		if err := constraint.ValidateOrCopy(roleEntity.Constraint, &user.Roles[i].Constraint); err != nil {
			return err
		}
		if checker == nil {
			checker, err = m.ssdChecker(ctx)
			if err != nil {
				return err
			}
		}
		if violation := checker.Check(held, roleEntity.Name); violation != nil {
			return violation
		}
		held = append(held, roleEntity.Name)
	}
	for i := range user.AdminRoles {
		adminRole, err := m.Store.GetAdminRole(ctx, user.AdminRoles[i].Role)
		if err != nil {
			return err
		}
		binding := &user.AdminRoles[i]
		if err := constraint.ValidateOrCopy(adminRole.Constraint, &binding.Constraint); err != nil {
			return err
		}
		// Inline admin bindings mirror the admin role's authority
		// scope, same as AssignAdminUser.
		binding.OSU = append([]string(nil), adminRole.OSU...)
		binding.OSP = append([]string(nil), adminRole.OSP...)
		binding.BeginRange = adminRole.BeginRange
		binding.EndRange = adminRole.EndRange
		binding.BeginInclusive = adminRole.BeginInclusive
		binding.EndInclusive = adminRole.EndInclusive
	}
	return nil
}

func (m *Manager) ssdChecker(ctx context.Context) (*sod.Checker, error) {
	if sets, ok := m.SSDCache.Get(ssdCacheKey); ok {
		return sod.NewChecker(sets), nil
	}
	sets, err := m.Store.ListSDSets(ctx, model.StaticSD)
	if err != nil {
		return nil, err
	}
	m.SSDCache.Put(ssdCacheKey, sets)
	return sod.NewChecker(sets), nil
}

func (m *Manager) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.New(slog.DiscardHandler)
}
