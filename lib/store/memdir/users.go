// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package memdir

import (
	"context"
	"sort"
	"time"

	"github.com/bastion-auth/bastion/lib/model"
	"github.com/bastion-auth/bastion/lib/security"
	"github.com/bastion-auth/bastion/lib/store"
)

// GetUser returns a deep copy of the account, credential cleared.
func (d *Directory) GetUser(_ context.Context, id string) (*model.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	user, ok := d.users[model.Normalize(id)]
	if !ok {
		return nil, security.New(security.UserNotFound, "user %q not found", id)
	}
	return copyUser(user), nil
}

// CreateUser stores the account. The Password field, when present, is
// hashed and cleared; the stored record never carries the plaintext.
func (d *Directory) CreateUser(_ context.Context, user *model.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := model.Normalize(user.ID)
	if _, exists := d.users[key]; exists {
		return security.New(security.UserAlreadyExists, "user %q already exists", user.ID)
	}
	stored := copyUser(user)
	stored.Password = nil
	d.users[key] = stored
	if len(user.Password) > 0 {
		cred, err := hashPassword(user.Password)
		if err != nil {
			delete(d.users, key)
			return err
		}
		cred.setAt = d.now()
		d.credentials[key] = cred
	}
	user.Password = nil
	return nil
}

// UpdateUser replaces the account record, preserving the stored
// credential.
func (d *Directory) UpdateUser(_ context.Context, user *model.User) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := model.Normalize(user.ID)
	if _, ok := d.users[key]; !ok {
		return security.New(security.UserNotFound, "user %q not found", user.ID)
	}
	stored := copyUser(user)
	stored.Password = nil
	d.users[key] = stored
	return nil
}

// DeleteUser purges the record and its credential.
func (d *Directory) DeleteUser(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := model.Normalize(id)
	if _, ok := d.users[key]; !ok {
		return security.New(security.UserNotFound, "user %q not found", id)
	}
	delete(d.users, key)
	delete(d.credentials, key)
	return nil
}

// ListUsers returns deep copies of every account, sorted by
// identifier.
func (d *Directory) ListUsers(_ context.Context) ([]model.User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	users := make([]model.User, 0, len(d.users))
	for _, user := range d.users {
		users = append(users, *copyUser(user))
	}
	sort.Slice(users, func(i, j int) bool {
		return model.Normalize(users[i].ID) < model.Normalize(users[j].ID)
	})
	return users, nil
}

// SetPassword replaces the credential and resets policy bookkeeping.
func (d *Directory) SetPassword(_ context.Context, id string, password []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	key := model.Normalize(id)
	if _, ok := d.users[key]; !ok {
		return security.New(security.UserNotFound, "user %q not found", id)
	}
	cred, err := hashPassword(password)
	if err != nil {
		return err
	}
	cred.setAt = d.now()
	d.credentials[key] = cred
	return nil
}

// VerifyPassword checks the credential under the account's password
// policy: failure lockout, max age, and grace logins. A wrong
// credential is a non-OK outcome; only a missing account is an error.
func (d *Directory) VerifyPassword(_ context.Context, id string, password []byte) (store.VerifyOutcome, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := model.Normalize(id)
	user, ok := d.users[key]
	if !ok {
		return store.VerifyOutcome{}, security.New(security.UserNotFound, "user %q not found", id)
	}
	if user.Locked {
		return store.VerifyOutcome{Locked: true}, nil
	}
	cred, ok := d.credentials[key]
	if !ok {
		// Account without a credential: nothing can verify.
		return store.VerifyOutcome{}, nil
	}
	now := d.now()

	if !cred.lockedUntil.IsZero() {
		if now.Before(cred.lockedUntil) {
			return store.VerifyOutcome{Locked: true}, nil
		}
		// Lockout expired.
		cred.lockedUntil = time.Time{}
		cred.failures = 0
	}

	policy := d.policyFor(user)

	if !cred.matches(password) {
		cred.failures++
		if policy != nil && policy.MaxFailures > 0 && cred.failures >= policy.MaxFailures {
			if policy.LockoutDuration > 0 {
				cred.lockedUntil = now.Add(policy.LockoutDuration)
			} else {
				cred.lockedUntil = distantFuture
			}
		}
		return store.VerifyOutcome{}, nil
	}
	cred.failures = 0

	if policy != nil && policy.MaxAge > 0 && now.Sub(cred.setAt) > policy.MaxAge {
		if cred.gracesUsed >= policy.GraceLogins {
			return store.VerifyOutcome{Expired: true}, nil
		}
		cred.gracesUsed++
		return store.VerifyOutcome{
			OK:              true,
			GracesRemaining: policy.GraceLogins - cred.gracesUsed,
		}, nil
	}
	return store.VerifyOutcome{OK: true}, nil
}

// policyFor resolves the account's password policy, if any. Called
// with the lock held.
func (d *Directory) policyFor(user *model.User) *model.PwPolicy {
	if user.PwPolicy == "" {
		return nil
	}
	return d.pwPolicies[model.Normalize(user.PwPolicy)]
}

// copyUser deep-copies an account record.
func copyUser(user *model.User) *model.User {
	clone := *user
	clone.Roles = make([]model.UserRole, len(user.Roles))
	copy(clone.Roles, user.Roles)
	clone.AdminRoles = make([]model.UserAdminRole, len(user.AdminRoles))
	for i, binding := range user.AdminRoles {
		b := binding
		b.OSU = append([]string(nil), binding.OSU...)
		b.OSP = append([]string(nil), binding.OSP...)
		clone.AdminRoles[i] = b
	}
	if user.Props != nil {
		clone.Props = make(map[string]string, len(user.Props))
		for k, v := range user.Props {
			clone.Props[k] = v
		}
	}
	return &clone
}
