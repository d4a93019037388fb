// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package model

import "time"

// PwPolicy is a password policy applied by the entity store at
// verification time. The store, not the core, owns hash mechanics;
// the policy describes aging and lockout behavior the store enforces
// and the session activator reports on.
type PwPolicy struct {
	// Name is the unique key, compared case-insensitively.
	Name string

	// MaxAge is how long a password remains valid after it is set.
	// Zero means passwords never expire.
	MaxAge time.Duration

	// GraceLogins is how many logins are permitted after the
	// password expires, to allow the user to change it. Zero means
	// none.
	GraceLogins int

	// MaxFailures is how many consecutive failed verifications lock
	// the account. Zero disables failure lockout.
	MaxFailures int

	// LockoutDuration is how long a failure lockout lasts. Zero
	// means the lock persists until an administrator unlocks the
	// account.
	LockoutDuration time.Duration
}
