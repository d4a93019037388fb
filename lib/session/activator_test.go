// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"bytes"
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/bastion-auth/bastion/lib/cache"
	"github.com/bastion-auth/bastion/lib/model"
	"github.com/bastion-auth/bastion/lib/security"
	"github.com/bastion-auth/bastion/lib/store"
)

// fakeStore is a minimal in-memory Store for activator tests: a fixed
// user set, passwords compared in the clear, and a fixed dynamic SD
// set list.
type fakeStore struct {
	users     map[string]*model.User
	passwords map[string][]byte
	dsdSets   []model.SDSet

	sdSetReads int
}

func (f *fakeStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	user, ok := f.users[model.Normalize(id)]
	if !ok {
		return nil, security.New(security.UserNotFound, "user %q not found", id)
	}
	copied := *user
	return &copied, nil
}

func (f *fakeStore) VerifyPassword(ctx context.Context, id string, password []byte) (store.VerifyOutcome, error) {
	want, ok := f.passwords[model.Normalize(id)]
	if !ok || !bytes.Equal(want, password) {
		return store.VerifyOutcome{}, nil
	}
	return store.VerifyOutcome{OK: true}, nil
}

func (f *fakeStore) ListSDSets(ctx context.Context, kind model.SDKind) ([]model.SDSet, error) {
	f.sdSetReads++
	return f.dsdSets, nil
}

// monday is a reference time chosen to pass weekday masks:
// 2026-03-16 is a Monday.
var monday = time.Date(2026, time.March, 16, 10, 0, 0, 0, time.UTC)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:     make(map[string]*model.User),
		passwords: make(map[string][]byte),
	}
}

func (f *fakeStore) addUser(user model.User, password string) {
	f.users[model.Normalize(user.ID)] = &user
	f.passwords[model.Normalize(user.ID)] = []byte(password)
}

func TestCreateSessionActivatesAllAssignedRoles(t *testing.T) {
	fs := newFakeStore()
	fs.addUser(model.User{
		ID:      "alice",
		OrgUnit: "engineering",
		Roles: []model.UserRole{
			{Role: "developer"},
			{Role: "reviewer"},
		},
	}, "secret")

	activator := &Activator{Store: fs}
	session, err := activator.CreateSessionAt(context.Background(), Request{
		UserID:   "alice",
		Password: []byte("secret"),
	}, monday)
	if err != nil {
		t.Fatalf("CreateSessionAt: %v", err)
	}

	if !session.Authenticated || session.Trusted {
		t.Fatalf("session flags = auth %v trusted %v, want auth, not trusted",
			session.Authenticated, session.Trusted)
	}
	if got := session.RoleNames(); !reflect.DeepEqual(got, []string{"developer", "reviewer"}) {
		t.Fatalf("roles = %v, want all assigned roles", got)
	}
	if session.ID == "" {
		t.Fatal("session has no identifier")
	}
	if session.User.Password != nil {
		t.Fatal("session carries the credential")
	}
	if len(session.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", session.Warnings)
	}
}

func TestCreateSessionWrongPassword(t *testing.T) {
	fs := newFakeStore()
	fs.addUser(model.User{ID: "alice", OrgUnit: "engineering"}, "secret")

	activator := &Activator{Store: fs}
	_, err := activator.CreateSessionAt(context.Background(), Request{
		UserID:   "alice",
		Password: []byte("wrong"),
	}, monday)

	// A bad password on a real account reports PasswordInvalid,
	// never UserNotFound.
	if !security.HasCode(err, security.PasswordInvalid) {
		t.Fatalf("error = %v, want PasswordInvalid", err)
	}
}

func TestCreateSessionUnknownUser(t *testing.T) {
	activator := &Activator{Store: newFakeStore()}
	_, err := activator.CreateSessionAt(context.Background(), Request{
		UserID:   "nobody",
		Password: []byte("secret"),
	}, monday)
	if !security.HasCode(err, security.UserNotFound) {
		t.Fatalf("error = %v, want UserNotFound", err)
	}
}

func TestCreateSessionMissingInputs(t *testing.T) {
	fs := newFakeStore()
	fs.addUser(model.User{ID: "alice"}, "secret")
	activator := &Activator{Store: fs}

	_, err := activator.CreateSessionAt(context.Background(), Request{}, monday)
	if !security.HasCode(err, security.UserIDRequired) {
		t.Fatalf("error = %v, want UserIDRequired", err)
	}

	_, err = activator.CreateSessionAt(context.Background(), Request{UserID: "alice"}, monday)
	if !security.HasCode(err, security.PasswordRequired) {
		t.Fatalf("error = %v, want PasswordRequired", err)
	}
}

func TestCreateSessionLockedAndDisabled(t *testing.T) {
	fs := newFakeStore()
	fs.addUser(model.User{ID: "locked", Locked: true}, "secret")
	fs.addUser(model.User{ID: "gone", Disabled: true}, "secret")
	activator := &Activator{Store: fs}

	// Lock and disable apply on the trusted path too.
	for _, trusted := range []bool{false, true} {
		_, err := activator.CreateSessionAt(context.Background(), Request{
			UserID: "locked", Password: []byte("secret"), Trusted: trusted,
		}, monday)
		if !security.HasCode(err, security.UserLocked) {
			t.Fatalf("trusted=%v: error = %v, want UserLocked", trusted, err)
		}

		_, err = activator.CreateSessionAt(context.Background(), Request{
			UserID: "gone", Password: []byte("secret"), Trusted: trusted,
		}, monday)
		if !security.HasCode(err, security.UserDisabled) {
			t.Fatalf("trusted=%v: error = %v, want UserDisabled", trusted, err)
		}
	}
}

func TestCreateSessionTrustedSkipsPassword(t *testing.T) {
	fs := newFakeStore()
	fs.addUser(model.User{
		ID:    "svc",
		Roles: []model.UserRole{{Role: "operator"}},
	}, "unused")

	activator := &Activator{Store: fs}
	session, err := activator.CreateSessionAt(context.Background(), Request{
		UserID:  "svc",
		Trusted: true,
	}, monday)
	if err != nil {
		t.Fatalf("CreateSessionAt: %v", err)
	}
	if !session.Trusted {
		t.Fatal("session not marked trusted")
	}
	if got := session.RoleNames(); !reflect.DeepEqual(got, []string{"operator"}) {
		t.Fatalf("roles = %v, want [operator]", got)
	}
}

func TestCreateSessionUserConstraintRejects(t *testing.T) {
	fs := newFakeStore()
	fs.addUser(model.User{
		ID:         "contractor",
		Constraint: model.Constraint{EndDate: date(2026, time.January, 31)},
		Roles:      []model.UserRole{{Role: "developer"}},
	}, "secret")

	activator := &Activator{Store: fs}
	_, err := activator.CreateSessionAt(context.Background(), Request{
		UserID:   "contractor",
		Password: []byte("secret"),
	}, monday)
	if !security.HasCode(err, security.Expired) {
		t.Fatalf("error = %v, want Expired from the user constraint", err)
	}
}

func TestCreateSessionPrunesExpiredBinding(t *testing.T) {
	fs := newFakeStore()
	fs.addUser(model.User{
		ID: "alice",
		Roles: []model.UserRole{
			{Role: "developer"},
			{Role: "release-manager", Constraint: model.Constraint{
				EndDate: date(2026, time.January, 31),
			}},
		},
	}, "secret")

	activator := &Activator{Store: fs}
	session, err := activator.CreateSessionAt(context.Background(), Request{
		UserID:   "alice",
		Password: []byte("secret"),
	}, monday)
	if err != nil {
		t.Fatalf("CreateSessionAt: %v", err)
	}

	// The expired binding is dropped, not fatal, and the drop is
	// recorded as a warning.
	if got := session.RoleNames(); !reflect.DeepEqual(got, []string{"developer"}) {
		t.Fatalf("roles = %v, want [developer]", got)
	}
	if len(session.Warnings) != 1 {
		t.Fatalf("warnings = %v, want one", session.Warnings)
	}
	w := session.Warnings[0]
	if w.Role != "release-manager" || w.Code != security.Expired {
		t.Fatalf("warning = %+v, want release-manager/Expired", w)
	}
}

func TestCreateSessionDSDPrunesSecondRole(t *testing.T) {
	fs := newFakeStore()
	fs.addUser(model.User{
		ID: "alice",
		Roles: []model.UserRole{
			{Role: "payer"},
			{Role: "approver"},
			{Role: "developer"},
		},
	}, "secret")
	fs.dsdSets = []model.SDSet{{
		Name:        "payments",
		Kind:        model.DynamicSD,
		Members:     []string{"payer", "approver"},
		Cardinality: 2,
	}}

	activator := &Activator{Store: fs}
	session, err := activator.CreateSessionAt(context.Background(), Request{
		UserID:   "alice",
		Password: []byte("secret"),
	}, monday)
	if err != nil {
		t.Fatalf("CreateSessionAt: %v", err)
	}

	// The first conflicting role wins; the second is pruned with a
	// DSD warning, and unrelated roles still activate.
	if got := session.RoleNames(); !reflect.DeepEqual(got, []string{"payer", "developer"}) {
		t.Fatalf("roles = %v, want [payer developer]", got)
	}
	if len(session.Warnings) != 1 || session.Warnings[0].Code != security.DSDViolation {
		t.Fatalf("warnings = %v, want one DSDViolation for approver", session.Warnings)
	}
}

func TestCreateSessionRequestOrderPreserved(t *testing.T) {
	fs := newFakeStore()
	fs.addUser(model.User{
		ID: "alice",
		Roles: []model.UserRole{
			{Role: "developer"},
			{Role: "reviewer"},
			{Role: "operator"},
		},
	}, "secret")

	activator := &Activator{Store: fs}
	session, err := activator.CreateSessionAt(context.Background(), Request{
		UserID:   "alice",
		Password: []byte("secret"),
		Roles:    []string{"operator", "developer", "intern"},
	}, monday)
	if err != nil {
		t.Fatalf("CreateSessionAt: %v", err)
	}

	// Request order is preserved and names not assigned to the user
	// are skipped silently.
	if got := session.RoleNames(); !reflect.DeepEqual(got, []string{"operator", "developer"}) {
		t.Fatalf("roles = %v, want [operator developer]", got)
	}
}

func TestCreateSessionNoRolesActivated(t *testing.T) {
	fs := newFakeStore()
	fs.addUser(model.User{
		ID: "alice",
		Roles: []model.UserRole{
			{Role: "developer", Constraint: model.Constraint{
				EndDate: date(2026, time.January, 31),
			}},
		},
	}, "secret")

	activator := &Activator{Store: fs}

	// Explicitly requesting roles and receiving none is a hard
	// failure.
	_, err := activator.CreateSessionAt(context.Background(), Request{
		UserID:   "alice",
		Password: []byte("secret"),
		Roles:    []string{"developer"},
	}, monday)
	if !security.HasCode(err, security.NoRolesActivated) {
		t.Fatalf("error = %v, want NoRolesActivated", err)
	}

	// Requesting nothing and receiving nothing is fine.
	session, err := activator.CreateSessionAt(context.Background(), Request{
		UserID:   "alice",
		Password: []byte("secret"),
	}, monday)
	if err != nil {
		t.Fatalf("CreateSessionAt: %v", err)
	}
	if len(session.Roles) != 0 || len(session.Warnings) != 1 {
		t.Fatalf("roles = %v warnings = %v, want empty roles and one warning",
			session.Roles, session.Warnings)
	}
}

func TestCreateSessionEmptyNonNilRequestActivatesNothing(t *testing.T) {
	fs := newFakeStore()
	fs.addUser(model.User{
		ID:    "alice",
		Roles: []model.UserRole{{Role: "developer"}},
	}, "secret")

	activator := &Activator{Store: fs}
	session, err := activator.CreateSessionAt(context.Background(), Request{
		UserID:   "alice",
		Password: []byte("secret"),
		Roles:    []string{},
	}, monday)
	if err != nil {
		t.Fatalf("CreateSessionAt: %v", err)
	}
	if len(session.Roles) != 0 {
		t.Fatalf("roles = %v, want none for an empty explicit selection", session.RoleNames())
	}
}

func TestCreateSessionTimeoutCopiedFromUserConstraint(t *testing.T) {
	fs := newFakeStore()
	fs.addUser(model.User{
		ID:         "alice",
		Constraint: model.Constraint{Timeout: 30 * time.Minute},
	}, "secret")

	activator := &Activator{Store: fs}
	session, err := activator.CreateSessionAt(context.Background(), Request{
		UserID:   "alice",
		Password: []byte("secret"),
	}, monday)
	if err != nil {
		t.Fatalf("CreateSessionAt: %v", err)
	}
	if session.Timeout != 30*time.Minute {
		t.Fatalf("timeout = %v, want 30m", session.Timeout)
	}
	if !session.LastAccess.Equal(monday) {
		t.Fatalf("last access = %v, want the reference time", session.LastAccess)
	}
}

func TestCreateSessionActivatesAdminRoles(t *testing.T) {
	fs := newFakeStore()
	fs.addUser(model.User{
		ID: "root-admin",
		AdminRoles: []model.UserAdminRole{
			{Role: "user-admin", OSU: []string{"engineering"}},
			{Role: "retired-admin", Constraint: model.Constraint{
				EndDate: date(2026, time.January, 31),
			}},
		},
	}, "secret")

	activator := &Activator{Store: fs}
	session, err := activator.CreateSessionAt(context.Background(), Request{
		UserID:   "root-admin",
		Password: []byte("secret"),
	}, monday)
	if err != nil {
		t.Fatalf("CreateSessionAt: %v", err)
	}
	if got := session.AdminRoleNames(); !reflect.DeepEqual(got, []string{"user-admin"}) {
		t.Fatalf("admin roles = %v, want [user-admin]", got)
	}
	if len(session.Warnings) != 1 || session.Warnings[0].Role != "retired-admin" {
		t.Fatalf("warnings = %v, want one for retired-admin", session.Warnings)
	}
}

func TestCreateSessionPropsCopied(t *testing.T) {
	fs := newFakeStore()
	fs.addUser(model.User{ID: "alice"}, "secret")

	props := map[string]string{"host": "bastion-01"}
	activator := &Activator{Store: fs}
	session, err := activator.CreateSessionAt(context.Background(), Request{
		UserID:   "alice",
		Password: []byte("secret"),
		Props:    props,
	}, monday)
	if err != nil {
		t.Fatalf("CreateSessionAt: %v", err)
	}

	props["host"] = "mutated"
	if session.Props["host"] != "bastion-01" {
		t.Fatal("session props alias the request map")
	}
}

func TestAuthenticateAt(t *testing.T) {
	fs := newFakeStore()
	fs.addUser(model.User{
		ID:    "alice",
		Roles: []model.UserRole{{Role: "developer"}},
	}, "secret")

	activator := &Activator{Store: fs}
	session, err := activator.AuthenticateAt(context.Background(), "alice", []byte("secret"), monday)
	if err != nil {
		t.Fatalf("AuthenticateAt: %v", err)
	}
	if !session.Authenticated || len(session.Roles) != 0 {
		t.Fatalf("session = auth %v roles %v, want authenticated with no roles",
			session.Authenticated, session.RoleNames())
	}
}

func TestDSDCacheAvoidsRepeatedReads(t *testing.T) {
	fs := newFakeStore()
	fs.addUser(model.User{ID: "alice"}, "secret")

	activator := &Activator{Store: fs, DSDCache: cache.New[[]model.SDSet](time.Minute)}
	for range 3 {
		if _, err := activator.CreateSessionAt(context.Background(), Request{
			UserID: "alice", Password: []byte("secret"),
		}, monday); err != nil {
			t.Fatalf("CreateSessionAt: %v", err)
		}
	}
	if fs.sdSetReads != 1 {
		t.Fatalf("SD set reads = %d, want 1 with a warm cache", fs.sdSetReads)
	}
}

func TestSessionIDsAreUnique(t *testing.T) {
	fs := newFakeStore()
	fs.addUser(model.User{ID: "alice"}, "secret")
	activator := &Activator{Store: fs}

	seen := make(map[string]bool)
	for range 16 {
		session, err := activator.CreateSessionAt(context.Background(), Request{
			UserID: "alice", Password: []byte("secret"),
		}, monday)
		if err != nil {
			t.Fatalf("CreateSessionAt: %v", err)
		}
		if seen[session.ID] {
			t.Fatalf("duplicate session id %s", session.ID)
		}
		seen[session.ID] = true
	}
}
