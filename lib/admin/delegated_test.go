// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package admin

import (
	"testing"

	"github.com/bastion-auth/bastion/lib/delegation"
	"github.com/bastion-auth/bastion/lib/model"
	"github.com/bastion-auth/bastion/lib/security"
)

// newDelegated builds a delegated facade over a seeded manager: the
// engineering/apps org-units, a developer role, the user alice, and a
// ledger object with a read permission.
func newDelegated(t *testing.T, session *model.Session) (*Delegated, *Manager) {
	t.Helper()
	m := newManager(t)
	addUser(t, m, "alice")
	addRole(t, m, "developer")
	mustAdd(t, m.AddPermObject(ctx, &model.PermObject{Name: "ledger", OrgUnit: "apps"}))
	mustAdd(t, m.AddPermission(ctx, &model.Permission{Object: "ledger", Operation: "read"}))
	return &Delegated{
		Admin:      m,
		Authorizer: &delegation.Authorizer{Roles: m.Store},
		Session:    session,
	}, m
}

// scopedAdmin is a session whose single admin role covers the
// engineering user pool and the apps permission pool, unbounded range.
func scopedAdmin(osu, osp []string) *model.Session {
	return &model.Session{
		ID: "admin-session", UserID: "carol", Authenticated: true,
		AdminRoles: []model.UserAdminRole{{Role: "eng-admin", OSU: osu, OSP: osp}},
	}
}

func TestDelegatedAssignAllowed(t *testing.T) {
	d, m := newDelegated(t, scopedAdmin([]string{"engineering"}, nil))

	if err := d.AssignUser(ctx, "alice", "developer", nil); err != nil {
		t.Fatalf("AssignUser: %v", err)
	}
	user, _ := m.Store.GetUser(ctx, "alice")
	if user.RoleBinding("developer") == nil {
		t.Fatal("assignment not persisted")
	}

	if err := d.DeassignUser(ctx, "alice", "developer"); err != nil {
		t.Fatalf("DeassignUser: %v", err)
	}
}

func TestDelegatedAssignDenied(t *testing.T) {
	d, m := newDelegated(t, scopedAdmin([]string{"sales"}, nil))

	err := d.AssignUser(ctx, "alice", "developer", nil)
	if !security.HasCode(err, security.NotAuthorized) {
		t.Fatalf("error = %v, want NotAuthorized", err)
	}
	user, _ := m.Store.GetUser(ctx, "alice")
	if user.RoleBinding("developer") != nil {
		t.Fatal("denied assignment was persisted")
	}
}

func TestDelegatedGrantUsesPermPool(t *testing.T) {
	// User pool alone does not authorize grants.
	d, _ := newDelegated(t, scopedAdmin([]string{"engineering"}, nil))
	err := d.GrantPermission(ctx, "ledger", "read", "", "developer")
	if !security.HasCode(err, security.NotAuthorized) {
		t.Fatalf("error = %v, want NotAuthorized", err)
	}

	d, m := newDelegated(t, scopedAdmin(nil, []string{"apps"}))
	if err := d.GrantPermission(ctx, "ledger", "read", "", "developer"); err != nil {
		t.Fatalf("GrantPermission: %v", err)
	}
	perm, _ := m.Store.GetPermission(ctx, "ledger", "read", "")
	if !perm.GrantedToRole("developer") {
		t.Fatal("grant not persisted")
	}

	if err := d.RevokePermission(ctx, "ledger", "read", "", "developer"); err != nil {
		t.Fatalf("RevokePermission: %v", err)
	}
}

func TestDelegatedRequiresSession(t *testing.T) {
	d, _ := newDelegated(t, nil)

	if err := d.AssignUser(ctx, "alice", "developer", nil); !security.HasCode(err, security.SessionRequired) {
		t.Fatalf("assign = %v, want SessionRequired", err)
	}
	if err := d.GrantPermission(ctx, "ledger", "read", "", "developer"); !security.HasCode(err, security.SessionRequired) {
		t.Fatalf("grant = %v, want SessionRequired", err)
	}
}

func TestDelegatedRangeLimitsAssignment(t *testing.T) {
	d, m := newDelegated(t, nil)
	addRole(t, m, "director")
	mustAdd(t, m.AddInheritance(ctx, "director", "developer"))

	// The admin's range covers only positions strictly below
	// director; assigning director itself is out of scope.
	d.Session = &model.Session{
		ID: "s", UserID: "carol", Authenticated: true,
		AdminRoles: []model.UserAdminRole{{
			Role: "team-admin", OSU: []string{"engineering"},
			EndRange: "director",
		}},
	}

	if err := d.AssignUser(ctx, "alice", "developer", nil); err != nil {
		t.Fatalf("in-range assign: %v", err)
	}
	if err := d.AssignUser(ctx, "alice", "director", nil); !security.HasCode(err, security.NotAuthorized) {
		t.Fatalf("out-of-range assign = %v, want NotAuthorized", err)
	}
}

func TestDelegatedMissingTargets(t *testing.T) {
	d, _ := newDelegated(t, scopedAdmin([]string{"engineering"}, []string{"apps"}))

	if err := d.AssignUser(ctx, "ghost", "developer", nil); !security.HasCode(err, security.UserNotFound) {
		t.Fatalf("unknown user = %v, want UserNotFound", err)
	}
	if err := d.AssignUser(ctx, "alice", "ghost", nil); !security.HasCode(err, security.RoleNotFound) {
		t.Fatalf("unknown role = %v, want RoleNotFound", err)
	}
	if err := d.GrantPermission(ctx, "ghost", "read", "", "developer"); !security.HasCode(err, security.PermObjectNotFound) {
		t.Fatalf("unknown object = %v, want PermObjectNotFound", err)
	}
}
