// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/bastion-auth/bastion/lib/cache"
	"github.com/bastion-auth/bastion/lib/constraint"
	"github.com/bastion-auth/bastion/lib/model"
	"github.com/bastion-auth/bastion/lib/security"
	"github.com/bastion-auth/bastion/lib/sod"
	"github.com/bastion-auth/bastion/lib/store"
)

// dsdCacheKey is the single key under which the activator caches the
// dynamic SD set list.
const dsdCacheKey = "dsd-sets"

// Store is the slice of the entity store the activator needs: the
// principal record, credential verification, and the dynamic SD sets.
type Store interface {
	GetUser(ctx context.Context, id string) (*model.User, error)
	VerifyPassword(ctx context.Context, id string, password []byte) (store.VerifyOutcome, error)
	ListSDSets(ctx context.Context, kind model.SDKind) ([]model.SDSet, error)
}

// Request carries the inputs to a session activation.
type Request struct {
	// UserID is the principal to activate. Required.
	UserID string

	// Password is the credential. Required unless Trusted.
	Password []byte

	// Roles optionally selects a subset of the user's assigned
	// roles for activation. Nil activates all assigned roles.
	// Activation proceeds in this order; names not assigned to the
	// user are silently skipped (intersection semantics).
	Roles []string

	// AdminRoles is the same selection for administrative roles.
	AdminRoles []string

	// Trusted skips password verification for a pre-authenticated
	// principal. The account must still exist, be unlocked, be
	// enabled, and satisfy its user-level constraint.
	Trusted bool

	// Props are opaque audit properties copied onto the session
	// (origin host, client address, and the like).
	Props map[string]string
}

// Activator builds sessions. The zero value is not usable; populate
// Store. Logger and DSDCache are optional.
type Activator struct {
	// Store is the entity-store collaborator.
	Store Store

	// Logger receives structured audit events for denied
	// authentications and excluded roles. Nil discards them.
	Logger *slog.Logger

	// DSDCache, when set, caches the dynamic SD set list between
	// activations. Nil re-reads the store on every call.
	DSDCache *cache.Cache[[]model.SDSet]
}

// Authenticate verifies the principal's credential and evaluates the
// user-level constraint, returning a session with no activated roles.
// It is the password-only half of CreateSession, for callers that
// separate credential checking from role activation.
func (a *Activator) Authenticate(ctx context.Context, userID string, password []byte) (*model.Session, error) {
	return a.AuthenticateAt(ctx, userID, password, time.Now())
}

// AuthenticateAt is Authenticate with an explicit reference time.
func (a *Activator) AuthenticateAt(ctx context.Context, userID string, password []byte, at time.Time) (*model.Session, error) {
	user, outcome, err := a.verify(ctx, userID, password)
	if err != nil {
		return nil, err
	}
	if violation := constraint.Check(user.Constraint, at); violation != nil {
		a.logger().Warn("authentication rejected by user constraint",
			"user", user.ID, "code", int(violation.Code))
		return nil, violation
	}
	return a.newSession(user, false, outcome, at), nil
}

// CreateSession authenticates the principal (or trusts the caller's
// assertion) and activates roles per the request. See the package
// documentation for the pipeline and its failure policy.
func (a *Activator) CreateSession(ctx context.Context, req Request) (*model.Session, error) {
	return a.CreateSessionAt(ctx, req, time.Now())
}

// CreateSessionAt is CreateSession with an explicit reference time, for
// deterministic evaluation of temporal constraints.
func (a *Activator) CreateSessionAt(ctx context.Context, req Request, at time.Time) (*model.Session, error) {
	var (
		user    *model.User
		outcome store.VerifyOutcome
		err     error
	)
	if req.Trusted {
		user, err = a.trusted(ctx, req.UserID)
	} else {
		user, outcome, err = a.verify(ctx, req.UserID, req.Password)
	}
	if err != nil {
		return nil, err
	}

	// The user-level constraint gates both paths: account lock
	// windows and expiry are independent of how the principal
	// authenticated.
	if violation := constraint.Check(user.Constraint, at); violation != nil {
		a.logger().Warn("session rejected by user constraint",
			"user", user.ID, "code", int(violation.Code))
		return nil, violation
	}

	session := a.newSession(user, req.Trusted, outcome, at)
	if len(req.Props) > 0 {
		session.Props = make(map[string]string, len(req.Props))
		for k, v := range req.Props {
			session.Props[k] = v
		}
	}

	checker, err := a.dsdChecker(ctx)
	if err != nil {
		return nil, err
	}

	roles, warnings := activate(selectBindings(user.Roles, req.Roles), checker, at)
	session.Roles = roles
	session.Warnings = warnings
	if len(req.Roles) > 0 && len(roles) == 0 {
		return nil, security.New(security.NoRolesActivated,
			"user %q: none of the %d requested roles could be activated",
			user.ID, len(req.Roles))
	}

	// Admin roles activate through the same constraint filter.
	// Dynamic SoD does not apply to them: SD sets constrain RBAC
	// roles only.
	adminRoles, adminWarnings := activateAdmin(selectAdminBindings(user.AdminRoles, req.AdminRoles), at)
	session.AdminRoles = adminRoles
	session.Warnings = append(session.Warnings, adminWarnings...)

	for _, w := range session.Warnings {
		a.logger().Debug("role excluded from activation",
			"user", user.ID, "role", w.Role, "code", int(w.Code))
	}
	return session, nil
}

// verify runs the password path: read the account, then check the
// credential. Existence is established first so a wrong password on a
// real account never reports as a missing account, and a missing
// account is reported before any credential handling.
func (a *Activator) verify(ctx context.Context, userID string, password []byte) (*model.User, store.VerifyOutcome, error) {
	user, err := a.lookup(ctx, userID)
	if err != nil {
		return nil, store.VerifyOutcome{}, err
	}
	if len(password) == 0 {
		return nil, store.VerifyOutcome{}, security.New(security.PasswordRequired,
			"user %q: password required for non-trusted session", user.ID)
	}

	outcome, err := a.Store.VerifyPassword(ctx, user.ID, password)
	if err != nil {
		return nil, store.VerifyOutcome{}, err
	}
	switch {
	case outcome.Locked:
		return nil, outcome, security.New(security.UserLocked, "user %q is locked", user.ID)
	case outcome.Expired:
		return nil, outcome, security.New(security.PasswordExpired,
			"user %q: password expired", user.ID)
	case !outcome.OK:
		a.logger().Warn("password verification failed", "user", user.ID)
		return nil, outcome, security.New(security.PasswordInvalid,
			"user %q: invalid credential", user.ID)
	}
	return user, outcome, nil
}

// trusted runs the pre-authenticated path: the record must exist and
// the lock and disable flags are still enforced.
func (a *Activator) trusted(ctx context.Context, userID string) (*model.User, error) {
	return a.lookup(ctx, userID)
}

// lookup fetches the account and applies the checks common to both
// paths.
func (a *Activator) lookup(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, security.New(security.UserIDRequired, "user id is required")
	}
	user, err := a.Store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Locked {
		return nil, security.New(security.UserLocked, "user %q is locked", user.ID)
	}
	if user.Disabled {
		return nil, security.New(security.UserDisabled, "user %q is disabled", user.ID)
	}
	return user, nil
}

// dsdChecker builds a conflict checker over the current dynamic SD
// sets, consulting the cache when one is configured.
func (a *Activator) dsdChecker(ctx context.Context) (*sod.Checker, error) {
	if sets, ok := a.DSDCache.Get(dsdCacheKey); ok {
		return sod.NewChecker(sets), nil
	}
	sets, err := a.Store.ListSDSets(ctx, model.DynamicSD)
	if err != nil {
		return nil, err
	}
	a.DSDCache.Put(dsdCacheKey, sets)
	return sod.NewChecker(sets), nil
}

// newSession assembles the session skeleton shared by both paths.
func (a *Activator) newSession(user *model.User, trusted bool, outcome store.VerifyOutcome, at time.Time) *model.Session {
	sanitized := *user
	sanitized.Password = nil
	return &model.Session{
		ID:              newSessionID(),
		UserID:          user.ID,
		User:            &sanitized,
		Authenticated:   true,
		Trusted:         trusted,
		Timeout:         user.Constraint.Timeout,
		LastAccess:      at,
		GracesRemaining: outcome.GracesRemaining,
	}
}

// selectBindings intersects the assigned bindings with the requested
// role names, preserving the requested order. A nil request selects
// every assigned binding in binding order. Requested names that match
// no binding are skipped silently.
func selectBindings(assigned []model.UserRole, requested []string) []model.UserRole {
	if requested == nil {
		return assigned
	}
	selected := make([]model.UserRole, 0, len(requested))
	for _, name := range requested {
		want := model.Normalize(name)
		for i := range assigned {
			if model.Normalize(assigned[i].Role) == want {
				selected = append(selected, assigned[i])
				break
			}
		}
	}
	return selected
}

func selectAdminBindings(assigned []model.UserAdminRole, requested []string) []model.UserAdminRole {
	if requested == nil {
		return assigned
	}
	selected := make([]model.UserAdminRole, 0, len(requested))
	for _, name := range requested {
		want := model.Normalize(name)
		for i := range assigned {
			if model.Normalize(assigned[i].Role) == want {
				selected = append(selected, assigned[i])
				break
			}
		}
	}
	return selected
}

// activate filters candidate bindings in order: first the binding's
// temporal constraint, then dynamic SoD against the roles accepted so
// far. An excluded role is recorded as a warning and never
// reconsidered — the DSD count only grows with accepted roles.
func activate(candidates []model.UserRole, checker *sod.Checker, at time.Time) ([]model.UserRole, []model.Warning) {
	var (
		accepted []model.UserRole
		active   []string
		warnings []model.Warning
	)
	for _, candidate := range candidates {
		if violation := constraint.Check(candidate.Constraint, at); violation != nil {
			warnings = append(warnings, model.Warning{
				Role: candidate.Role, Code: violation.Code, Message: violation.Message,
			})
			continue
		}
		if violation := checker.Check(active, candidate.Role); violation != nil {
			warnings = append(warnings, model.Warning{
				Role: candidate.Role, Code: violation.Code, Message: violation.Message,
			})
			continue
		}
		accepted = append(accepted, candidate)
		active = append(active, candidate.Role)
	}
	return accepted, warnings
}

func activateAdmin(candidates []model.UserAdminRole, at time.Time) ([]model.UserAdminRole, []model.Warning) {
	var (
		accepted []model.UserAdminRole
		warnings []model.Warning
	)
	for _, candidate := range candidates {
		if violation := constraint.Check(candidate.Constraint, at); violation != nil {
			warnings = append(warnings, model.Warning{
				Role: candidate.Role, Code: violation.Code, Message: violation.Message,
			})
			continue
		}
		accepted = append(accepted, candidate)
	}
	return accepted, warnings
}

// newSessionID returns a random 16-byte hex identifier for audit
// correlation.
func newSessionID() string {
	var buffer [16]byte
	if _, err := rand.Read(buffer[:]); err != nil {
		// crypto/rand never fails on supported platforms; an audit
		// identifier is not worth an error path in every caller.
		panic(fmt.Sprintf("session: reading random bytes: %v", err))
	}
	return hex.EncodeToString(buffer[:])
}

func (a *Activator) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.New(slog.DiscardHandler)
}
