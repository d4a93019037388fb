// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"time"

	"github.com/bastion-auth/bastion/lib/security"
)

// Warning records a role that was excluded during session activation:
// the graceful-degradation path drops the role rather than failing the
// session, but the exclusion is still observable here.
type Warning struct {
	// Role is the excluded role name.
	Role string

	// Code is the violation that caused the exclusion (a constraint
	// sub-code or DSDViolation).
	Code security.Code

	// Message describes the exclusion.
	Message string
}

// Session is the immutable-by-contract result of a session activation:
// the authorization decision for one principal at one point in time.
// It is never persisted, is owned by the caller that created it, and
// must not be mutated concurrently. Trusted accelerated sessions are
// reconstructed from signed tokens instead of directory reads; those
// are the only sessions whose state is tracked outside the caller.
type Session struct {
	// ID is a random identifier for audit correlation.
	ID string

	// UserID is the authenticated principal.
	UserID string

	// User is the directory record the session was built from, with
	// the credential cleared.
	User *User

	// Authenticated is true once the activation completed, on both
	// the password and the trusted path.
	Authenticated bool

	// Trusted marks a session created without password
	// verification for a pre-authenticated principal.
	Trusted bool

	// Roles are the activated RBAC role bindings, in the order the
	// caller requested them (or binding order when no explicit
	// subset was requested).
	Roles []UserRole

	// AdminRoles are the activated administrative role bindings.
	AdminRoles []UserAdminRole

	// Warnings record roles excluded by constraint or dynamic SoD
	// filtering.
	Warnings []Warning

	// Timeout is the inactivity limit copied from the user's
	// constraint. The access layer enforces it; the session only
	// carries it.
	Timeout time.Duration

	// LastAccess is the reference time of the most recent validated
	// operation on the session.
	LastAccess time.Time

	// GracesRemaining reports password-policy grace logins left,
	// when the store's verification consumed one.
	GracesRemaining int

	// Props are opaque audit properties supplied at creation time
	// (host name, origin address, and the like).
	Props map[string]string
}

// IsRoleActive reports whether the named role is activated in the
// session.
func (s *Session) IsRoleActive(role string) bool {
	want := Normalize(role)
	for i := range s.Roles {
		if Normalize(s.Roles[i].Role) == want {
			return true
		}
	}
	return false
}

// RoleNames returns the activated role names in activation order.
func (s *Session) RoleNames() []string {
	names := make([]string, len(s.Roles))
	for i, binding := range s.Roles {
		names[i] = binding.Role
	}
	return names
}

// AdminRoleNames returns the activated admin role names in activation
// order.
func (s *Session) AdminRoleNames() []string {
	names := make([]string, len(s.AdminRoles))
	for i, binding := range s.AdminRoles {
		names[i] = binding.Role
	}
	return names
}
