// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package security

import (
	"errors"
	"fmt"
)

// Code is a stable numeric identifier for a security failure. Codes are
// grouped by range and never reused: callers may persist them in audit
// trails and compare against them across releases.
type Code int

// User, authentication, and validation failures (1000-1099).
const (
	// UserIDRequired means an operation was invoked without a user
	// identifier.
	UserIDRequired Code = 1001

	// UserNotFound means the referenced user does not exist in the
	// directory.
	UserNotFound Code = 1002

	// PasswordRequired means a non-trusted session was requested
	// without a credential.
	PasswordRequired Code = 1003

	// PasswordInvalid means the supplied credential did not verify
	// against the stored one. Distinct from UserNotFound: existence
	// is checked first, so a bad password on a real account never
	// reports as a missing account.
	PasswordInvalid Code = 1004

	// UserLocked means the account carries the administrative lock
	// flag. Checked on both the password and the trusted path.
	UserLocked Code = 1005

	// UserDisabled means the account was soft-deleted.
	UserDisabled Code = 1006

	// PasswordExpired means the credential exceeded its policy age
	// and no grace logins remain.
	PasswordExpired Code = 1007

	// UserProtected means a delete was attempted on a system account.
	UserProtected Code = 1008

	// OrgUnitRequired means an entity was submitted without its
	// organizational unit reference.
	OrgUnitRequired Code = 1010

	// OrgUnitNotFound means the referenced organizational unit does
	// not exist.
	OrgUnitNotFound Code = 1011

	// PwPolicyNotFound means the referenced password policy does not
	// exist.
	PwPolicyNotFound Code = 1012

	// UserAlreadyExists means a create collided with an existing
	// user identifier.
	UserAlreadyExists Code = 1013

	// OrgUnitAlreadyExists means a create collided with an existing
	// organizational unit in the same partition.
	OrgUnitAlreadyExists Code = 1014

	// PwPolicyAlreadyExists means a create collided with an existing
	// password policy name.
	PwPolicyAlreadyExists Code = 1015
)

// Activation and temporal-constraint failures (1100-1199). The
// constraint evaluator reports exactly one of these per failed check so
// callers can distinguish why an entity was rejected.
const (
	// NotYetActive means the reference time precedes the begin date.
	NotYetActive Code = 1101

	// Expired means the reference time follows the end date.
	Expired Code = 1102

	// LockWindow means the reference time falls inside the entity's
	// lock-date window. Overrides an otherwise valid date range.
	LockWindow Code = 1103

	// WrongTimeOfDay means the time-of-day portion of the reference
	// time falls outside the begin/end time window.
	WrongTimeOfDay Code = 1104

	// WrongDay means the day-of-week mask excludes the reference
	// time's weekday.
	WrongDay Code = 1105

	// NoRolesActivated means every explicitly requested role was
	// filtered out of the session. Requesting roles and receiving
	// none is a hard failure; requesting nothing is not.
	NoRolesActivated Code = 1106

	// SessionTimeout means the session exceeded its inactivity
	// timeout.
	SessionTimeout Code = 1107

	// ConstraintInvalid means a constraint block failed structural
	// validation at admin time (begin after end, bad time bounds).
	ConstraintInvalid Code = 1108
)

// Role failures (2000-2099).
const (
	// RoleNameRequired means an operation was invoked without a role
	// name.
	RoleNameRequired Code = 2001

	// RoleNotFound means the referenced role does not exist.
	RoleNotFound Code = 2002

	// RoleAlreadyExists means a create collided with an existing
	// role name.
	RoleAlreadyExists Code = 2003

	// RoleNotAssigned means the user does not hold the referenced
	// role binding.
	RoleNotAssigned Code = 2004

	// RoleAlreadyAssigned means the user already holds the binding.
	RoleAlreadyAssigned Code = 2005

	// RoleNotActive means the session does not contain the
	// referenced activated role.
	RoleNotActive Code = 2006

	// HierarchyCycle means adding the requested inheritance edge
	// would create a cycle.
	HierarchyCycle Code = 2007

	// AdminRoleNotFound means the referenced administrative role
	// does not exist.
	AdminRoleNotFound Code = 2008
)

// Permission failures (3000-3099).
const (
	// PermObjectRequired means a permission was submitted without an
	// object name.
	PermObjectRequired Code = 3001

	// PermOperationRequired means a permission was submitted without
	// an operation name.
	PermOperationRequired Code = 3002

	// PermNotFound means the referenced permission does not exist.
	PermNotFound Code = 3003

	// PermObjectNotFound means the referenced permission object does
	// not exist.
	PermObjectNotFound Code = 3004

	// PermAlreadyExists means a create collided with an existing
	// permission.
	PermAlreadyExists Code = 3005
)

// Separation-of-duty failures (4000-4099).
const (
	// SSDViolation means an assignment would give the user the
	// maximum permitted number of roles from a static SD set.
	SSDViolation Code = 4001

	// DSDViolation means activating the candidate would give the
	// session the maximum permitted number of roles from a dynamic
	// SD set. During session creation this prunes the candidate
	// rather than failing the session.
	DSDViolation Code = 4002

	// SDSetInvalid means an SD set was submitted with a cardinality
	// below two or fewer members than its cardinality requires.
	SDSetInvalid Code = 4003

	// SDSetNotFound means the referenced SD set does not exist.
	SDSetNotFound Code = 4004

	// SDSetAlreadyExists means a create collided with an existing
	// SD set name.
	SDSetAlreadyExists Code = 4005
)

// Delegated-administration failures (5000-5099).
const (
	// NotAuthorized means no activated admin role of the calling
	// session passed the ARBAC range and pool tests for the
	// attempted operation.
	NotAuthorized Code = 5001

	// SessionRequired means a delegated operation was invoked
	// without an administrator session.
	SessionRequired Code = 5002
)

// Store failures (6000-6099).
const (
	// StoreFailed wraps an entity-store I/O failure. Never retried
	// by the core; the cause is preserved for the caller.
	StoreFailed Code = 6001
)

// Group failures (6100-6199).
const (
	// GroupNotFound means the referenced group does not exist.
	GroupNotFound Code = 6101

	// GroupNameRequired means a group operation was invoked without
	// a group name.
	GroupNameRequired Code = 6102

	// GroupAlreadyExists means a create collided with an existing
	// group name.
	GroupAlreadyExists Code = 6103
)

// Error is a security failure with a stable code. It satisfies the
// standard error interfaces: errors.Is matches two *Error values by
// code, and Unwrap exposes the underlying cause for StoreFailed and
// other wrapping codes.
type Error struct {
	// Code identifies the failure kind. Stable across releases.
	Code Code

	// Message is the human-readable description, including the
	// offending identifiers.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// New creates a security error with the given code and formatted
// message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a security error that preserves an underlying cause.
// Used for store failures where the directory error matters for
// diagnostics but callers dispatch on the code.
func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// Error returns "code NNNN: message" with the cause appended when
// present.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("code %d: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("code %d: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a *Error with the same code. This makes
// errors.Is(err, security.New(security.UserLocked, "")) work, though
// HasCode is the more direct form.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// CodeOf extracts the security code from err, unwrapping as needed.
// Returns 0 when err is nil or carries no code.
func CodeOf(err error) Code {
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}

// HasCode reports whether err carries the given code anywhere in its
// chain.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}
