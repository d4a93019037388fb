// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package admin

import (
	"context"
	"testing"
	"time"

	"github.com/bastion-auth/bastion/lib/cache"
	"github.com/bastion-auth/bastion/lib/model"
	"github.com/bastion-auth/bastion/lib/security"
	"github.com/bastion-auth/bastion/lib/store/memdir"
)

var ctx = context.Background()

// newManager builds a manager over a fresh in-memory directory seeded
// with the engineering org-unit in both partitions.
func newManager(t *testing.T) *Manager {
	t.Helper()
	d := memdir.New()
	m := &Manager{Store: d}
	mustAdd(t, m.AddOrgUnit(ctx, &model.OrgUnit{Name: "engineering", Kind: model.UserOU}))
	mustAdd(t, m.AddOrgUnit(ctx, &model.OrgUnit{Name: "apps", Kind: model.PermOU}))
	return m
}

func mustAdd(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("fixture: %v", err)
	}
}

func addUser(t *testing.T, m *Manager, id string) {
	t.Helper()
	mustAdd(t, m.AddUser(ctx, &model.User{ID: id, OrgUnit: "engineering"}))
}

func addRole(t *testing.T, m *Manager, name string, parents ...string) {
	t.Helper()
	mustAdd(t, m.AddRole(ctx, &model.Role{Name: name, Parents: parents}))
}

func TestAddUserValidation(t *testing.T) {
	m := newManager(t)

	if err := m.AddUser(ctx, &model.User{OrgUnit: "engineering"}); !security.HasCode(err, security.UserIDRequired) {
		t.Fatalf("missing id = %v, want UserIDRequired", err)
	}
	if err := m.AddUser(ctx, &model.User{ID: "alice"}); !security.HasCode(err, security.OrgUnitRequired) {
		t.Fatalf("missing org-unit = %v, want OrgUnitRequired", err)
	}
	if err := m.AddUser(ctx, &model.User{ID: "alice", OrgUnit: "sales"}); !security.HasCode(err, security.OrgUnitNotFound) {
		t.Fatalf("unknown org-unit = %v, want OrgUnitNotFound", err)
	}
	if err := m.AddUser(ctx, &model.User{ID: "alice", OrgUnit: "engineering", PwPolicy: "nope"}); !security.HasCode(err, security.PwPolicyNotFound) {
		t.Fatalf("unknown policy = %v, want PwPolicyNotFound", err)
	}
	if err := m.AddUser(ctx, &model.User{
		ID: "alice", OrgUnit: "engineering",
		Constraint: model.Constraint{Timeout: -time.Minute},
	}); !security.HasCode(err, security.ConstraintInvalid) {
		t.Fatalf("bad constraint = %v, want ConstraintInvalid", err)
	}

	addUser(t, m, "alice")
	if err := m.AddUser(ctx, &model.User{ID: "alice", OrgUnit: "engineering"}); !security.HasCode(err, security.UserAlreadyExists) {
		t.Fatalf("duplicate = %v, want UserAlreadyExists", err)
	}
}

func TestAddUserResolvesInlineBindings(t *testing.T) {
	m := newManager(t)
	mustAdd(t, m.AddRole(ctx, &model.Role{
		Name:       "developer",
		Constraint: model.Constraint{Timeout: 30 * time.Minute},
	}))

	mustAdd(t, m.AddUser(ctx, &model.User{
		ID: "alice", OrgUnit: "engineering",
		Roles: []model.UserRole{{Role: "developer"}},
	}))

	user, err := m.Store.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	// The binding inherited the role's constraint at creation time.
	if user.Roles[0].Constraint.Timeout != 30*time.Minute {
		t.Fatalf("binding constraint = %+v, want the role's copy", user.Roles[0].Constraint)
	}
}

func TestAddUserInlineAdminBindingCopiesScope(t *testing.T) {
	m := newManager(t)
	addRole(t, m, "developer")
	addRole(t, m, "director")
	mustAdd(t, m.AddAdminRole(ctx, &model.AdminRole{
		Role:       model.Role{Name: "help-desk"},
		OSU:        []string{"engineering"},
		BeginRange: "developer", EndRange: "director",
		EndInclusive: true,
	}))

	mustAdd(t, m.AddUser(ctx, &model.User{
		ID: "alice", OrgUnit: "engineering",
		AdminRoles: []model.UserAdminRole{{Role: "help-desk"}},
	}))

	user, err := m.Store.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	binding := user.AdminRoleBinding("help-desk")
	if binding == nil {
		t.Fatal("admin binding missing")
	}
	// Inline bindings mirror the admin role's authority scope, same
	// as AssignAdminUser.
	if len(binding.OSU) != 1 || binding.OSU[0] != "engineering" {
		t.Errorf("binding OSU = %v", binding.OSU)
	}
	if binding.BeginRange != "developer" || binding.EndRange != "director" {
		t.Errorf("binding range = %q..%q", binding.BeginRange, binding.EndRange)
	}
	if binding.BeginInclusive || !binding.EndInclusive {
		t.Errorf("binding inclusivity = %v/%v", binding.BeginInclusive, binding.EndInclusive)
	}
}

func TestAssignUser(t *testing.T) {
	m := newManager(t)
	addUser(t, m, "alice")
	mustAdd(t, m.AddRole(ctx, &model.Role{
		Name:       "developer",
		Constraint: model.Constraint{DayMask: model.Weekdays},
	}))

	if err := m.AssignUser(ctx, "alice", "developer", nil); err != nil {
		t.Fatalf("AssignUser: %v", err)
	}
	user, _ := m.Store.GetUser(ctx, "alice")
	if binding := user.RoleBinding("developer"); binding == nil || binding.Constraint.DayMask != model.Weekdays {
		t.Fatalf("binding = %+v, want copied role constraint", binding)
	}

	if err := m.AssignUser(ctx, "alice", "developer", nil); !security.HasCode(err, security.RoleAlreadyAssigned) {
		t.Fatalf("double assign = %v, want RoleAlreadyAssigned", err)
	}
	if err := m.AssignUser(ctx, "alice", "ghost", nil); !security.HasCode(err, security.RoleNotFound) {
		t.Fatalf("unknown role = %v, want RoleNotFound", err)
	}
	if err := m.AssignUser(ctx, "ghost", "developer", nil); !security.HasCode(err, security.UserNotFound) {
		t.Fatalf("unknown user = %v, want UserNotFound", err)
	}
}

func TestAssignUserOverrideConstraint(t *testing.T) {
	m := newManager(t)
	addUser(t, m, "alice")
	addRole(t, m, "developer")

	override := model.Constraint{Timeout: 5 * time.Minute}
	if err := m.AssignUser(ctx, "alice", "developer", &override); err != nil {
		t.Fatalf("AssignUser: %v", err)
	}
	user, _ := m.Store.GetUser(ctx, "alice")
	if user.RoleBinding("developer").Constraint.Timeout != 5*time.Minute {
		t.Fatal("override constraint not applied")
	}

	bad := model.Constraint{Timeout: -time.Minute}
	if err := m.AssignUser(ctx, "alice", "developer2", &bad); err == nil {
		t.Fatal("invalid override accepted")
	}
}

func TestAssignUserStaticSoD(t *testing.T) {
	m := newManager(t)
	addUser(t, m, "alice")
	addRole(t, m, "payer")
	addRole(t, m, "approver")
	mustAdd(t, m.AddSDSet(ctx, &model.SDSet{
		Name: "payments", Kind: model.StaticSD,
		Members: []string{"payer", "approver"}, Cardinality: 2,
	}))

	if err := m.AssignUser(ctx, "alice", "payer", nil); err != nil {
		t.Fatalf("first assignment: %v", err)
	}
	err := m.AssignUser(ctx, "alice", "approver", nil)
	if !security.HasCode(err, security.SSDViolation) {
		t.Fatalf("conflicting assignment = %v, want SSDViolation", err)
	}

	// The rejection wrote nothing.
	user, _ := m.Store.GetUser(ctx, "alice")
	if user.RoleBinding("approver") != nil {
		t.Fatal("rejected binding was persisted")
	}
}

func TestSDSetMutationInvalidatesCache(t *testing.T) {
	m := newManager(t)
	m.SSDCache = cache.New[[]model.SDSet](time.Hour)
	addUser(t, m, "alice")
	addRole(t, m, "payer")
	addRole(t, m, "approver")

	// Warm the cache with no sets, then create a conflicting set;
	// the next assignment must see it.
	if err := m.AssignUser(ctx, "alice", "payer", nil); err != nil {
		t.Fatalf("AssignUser: %v", err)
	}
	mustAdd(t, m.AddSDSet(ctx, &model.SDSet{
		Name: "payments", Kind: model.StaticSD,
		Members: []string{"payer", "approver"}, Cardinality: 2,
	}))

	if err := m.AssignUser(ctx, "alice", "approver", nil); !security.HasCode(err, security.SSDViolation) {
		t.Fatalf("assignment after set creation = %v, want SSDViolation", err)
	}
}

func TestDeassignUser(t *testing.T) {
	m := newManager(t)
	addUser(t, m, "alice")
	addRole(t, m, "developer")
	mustAdd(t, m.AssignUser(ctx, "alice", "developer", nil))

	if err := m.DeassignUser(ctx, "alice", "developer"); err != nil {
		t.Fatalf("DeassignUser: %v", err)
	}
	if err := m.DeassignUser(ctx, "alice", "developer"); !security.HasCode(err, security.RoleNotAssigned) {
		t.Fatalf("second deassign = %v, want RoleNotAssigned", err)
	}
}

func TestSystemUserProtected(t *testing.T) {
	m := newManager(t)
	mustAdd(t, m.AddUser(ctx, &model.User{ID: "root", OrgUnit: "engineering", System: true}))

	if err := m.DeleteUser(ctx, "root"); !security.HasCode(err, security.UserProtected) {
		t.Fatalf("delete = %v, want UserProtected", err)
	}
	if err := m.DisableUser(ctx, "root"); !security.HasCode(err, security.UserProtected) {
		t.Fatalf("disable = %v, want UserProtected", err)
	}
}

func TestDisableEnableUser(t *testing.T) {
	m := newManager(t)
	addUser(t, m, "alice")

	if err := m.DisableUser(ctx, "alice"); err != nil {
		t.Fatalf("DisableUser: %v", err)
	}
	user, _ := m.Store.GetUser(ctx, "alice")
	if !user.Disabled {
		t.Fatal("user not disabled")
	}

	if err := m.EnableUser(ctx, "alice"); err != nil {
		t.Fatalf("EnableUser: %v", err)
	}
	user, _ = m.Store.GetUser(ctx, "alice")
	if user.Disabled {
		t.Fatal("user still disabled")
	}
}

func TestChangePassword(t *testing.T) {
	m := newManager(t)
	mustAdd(t, m.AddUser(ctx, &model.User{
		ID: "alice", OrgUnit: "engineering", Password: []byte("old"),
	}))

	if err := m.ChangePassword(ctx, "alice", []byte("wrong"), []byte("new")); !security.HasCode(err, security.PasswordInvalid) {
		t.Fatalf("wrong current = %v, want PasswordInvalid", err)
	}
	if err := m.ChangePassword(ctx, "alice", []byte("old"), []byte("new")); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	outcome, _ := m.Store.VerifyPassword(ctx, "alice", []byte("new"))
	if !outcome.OK {
		t.Fatal("new credential does not verify")
	}
}

func TestResetPassword(t *testing.T) {
	m := newManager(t)
	mustAdd(t, m.AddUser(ctx, &model.User{
		ID: "alice", OrgUnit: "engineering", Password: []byte("old"),
	}))

	if err := m.ResetPassword(ctx, "alice", []byte("new")); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	outcome, _ := m.Store.VerifyPassword(ctx, "alice", []byte("new"))
	if !outcome.OK {
		t.Fatal("reset credential does not verify")
	}
}

func TestAddRoleRequiresExistingParents(t *testing.T) {
	m := newManager(t)
	addRole(t, m, "employee")

	if err := m.AddRole(ctx, &model.Role{Name: "developer", Parents: []string{"employee"}}); err != nil {
		t.Fatalf("AddRole: %v", err)
	}
	if err := m.AddRole(ctx, &model.Role{Name: "intern", Parents: []string{"ghost"}}); !security.HasCode(err, security.RoleNotFound) {
		t.Fatalf("unknown parent = %v, want RoleNotFound", err)
	}
	if err := m.AddRole(ctx, &model.Role{}); !security.HasCode(err, security.RoleNameRequired) {
		t.Fatalf("empty name = %v, want RoleNameRequired", err)
	}
}

func TestAddInheritanceCycleRejected(t *testing.T) {
	m := newManager(t)
	addRole(t, m, "director")
	addRole(t, m, "lead", "director")
	addRole(t, m, "employee", "lead")

	err := m.AddInheritance(ctx, "employee", "director")
	if !security.HasCode(err, security.HierarchyCycle) {
		t.Fatalf("cycle edge = %v, want HierarchyCycle", err)
	}
	if err := m.AddInheritance(ctx, "director", "director"); !security.HasCode(err, security.HierarchyCycle) {
		t.Fatalf("self edge = %v, want HierarchyCycle", err)
	}

	// A legitimate cross edge still works.
	addRole(t, m, "oncall")
	if err := m.AddInheritance(ctx, "oncall", "employee"); err != nil {
		t.Fatalf("AddInheritance: %v", err)
	}
	role, _ := m.Store.GetRole(ctx, "employee")
	if len(role.Parents) != 2 {
		t.Fatalf("parents = %v, want lead and oncall", role.Parents)
	}
}

func TestDeleteInheritance(t *testing.T) {
	m := newManager(t)
	addRole(t, m, "director")
	addRole(t, m, "employee", "director")

	if err := m.DeleteInheritance(ctx, "director", "employee"); err != nil {
		t.Fatalf("DeleteInheritance: %v", err)
	}
	role, _ := m.Store.GetRole(ctx, "employee")
	if len(role.Parents) != 0 {
		t.Fatalf("parents = %v, want none", role.Parents)
	}
	if err := m.DeleteInheritance(ctx, "director", "employee"); !security.HasCode(err, security.RoleNotFound) {
		t.Fatalf("missing edge = %v, want RoleNotFound", err)
	}
}

func TestDeleteRoleCleansReferences(t *testing.T) {
	m := newManager(t)
	addUser(t, m, "alice")
	addRole(t, m, "developer")
	addRole(t, m, "intern", "developer")
	mustAdd(t, m.AssignUser(ctx, "alice", "developer", nil))

	if err := m.DeleteRole(ctx, "developer"); err != nil {
		t.Fatalf("DeleteRole: %v", err)
	}

	user, _ := m.Store.GetUser(ctx, "alice")
	if user.RoleBinding("developer") != nil {
		t.Fatal("binding survived the role delete")
	}
	child, _ := m.Store.GetRole(ctx, "intern")
	if len(child.Parents) != 0 {
		t.Fatalf("child parents = %v, want the edge removed", child.Parents)
	}
}

func TestAddAdminRoleValidatesScope(t *testing.T) {
	m := newManager(t)
	addRole(t, m, "employee")
	addRole(t, m, "director")

	if err := m.AddAdminRole(ctx, &model.AdminRole{
		Role:       model.Role{Name: "help-desk"},
		OSU:        []string{"engineering"},
		BeginRange: "employee",
		EndRange:   "director",
	}); err != nil {
		t.Fatalf("AddAdminRole: %v", err)
	}

	if err := m.AddAdminRole(ctx, &model.AdminRole{
		Role: model.Role{Name: "bad-pool"},
		OSU:  []string{"sales"},
	}); !security.HasCode(err, security.OrgUnitNotFound) {
		t.Fatalf("unknown pool unit = %v, want OrgUnitNotFound", err)
	}
	if err := m.AddAdminRole(ctx, &model.AdminRole{
		Role:       model.Role{Name: "bad-range"},
		BeginRange: "ghost",
	}); !security.HasCode(err, security.RoleNotFound) {
		t.Fatalf("unknown range endpoint = %v, want RoleNotFound", err)
	}
}

func TestAssignAdminUserCopiesScope(t *testing.T) {
	m := newManager(t)
	addUser(t, m, "alice")
	mustAdd(t, m.AddAdminRole(ctx, &model.AdminRole{
		Role: model.Role{Name: "help-desk"},
		OSU:  []string{"engineering"},
	}))

	if err := m.AssignAdminUser(ctx, "alice", "help-desk", nil); err != nil {
		t.Fatalf("AssignAdminUser: %v", err)
	}
	user, _ := m.Store.GetUser(ctx, "alice")
	binding := user.AdminRoleBinding("help-desk")
	if binding == nil || len(binding.OSU) != 1 || binding.OSU[0] != "engineering" {
		t.Fatalf("binding = %+v, want the admin role's scope copied", binding)
	}

	if err := m.DeassignAdminUser(ctx, "alice", "help-desk"); err != nil {
		t.Fatalf("DeassignAdminUser: %v", err)
	}
	if err := m.DeassignAdminUser(ctx, "alice", "help-desk"); !security.HasCode(err, security.RoleNotAssigned) {
		t.Fatalf("second deassign = %v, want RoleNotAssigned", err)
	}
}

func TestAddSDSetValidation(t *testing.T) {
	m := newManager(t)
	addRole(t, m, "payer")
	addRole(t, m, "approver")

	if err := m.AddSDSet(ctx, &model.SDSet{
		Name: "bad", Members: []string{"payer", "approver"}, Cardinality: 1,
	}); !security.HasCode(err, security.SDSetInvalid) {
		t.Fatalf("cardinality 1 = %v, want SDSetInvalid", err)
	}
	if err := m.AddSDSet(ctx, &model.SDSet{
		Name: "bad", Members: []string{"payer", "ghost"}, Cardinality: 2,
	}); !security.HasCode(err, security.RoleNotFound) {
		t.Fatalf("unknown member = %v, want RoleNotFound", err)
	}
}

func TestGrantRevokePermission(t *testing.T) {
	m := newManager(t)
	addRole(t, m, "accountant")
	mustAdd(t, m.AddPermObject(ctx, &model.PermObject{Name: "ledger", OrgUnit: "apps"}))
	mustAdd(t, m.AddPermission(ctx, &model.Permission{Object: "ledger", Operation: "read"}))

	if err := m.GrantPermission(ctx, "ledger", "read", "", "accountant"); err != nil {
		t.Fatalf("GrantPermission: %v", err)
	}
	// Granting again is a no-op, not an error.
	if err := m.GrantPermission(ctx, "ledger", "read", "", "accountant"); err != nil {
		t.Fatalf("repeat grant: %v", err)
	}
	perm, _ := m.Store.GetPermission(ctx, "ledger", "read", "")
	if len(perm.Roles) != 1 {
		t.Fatalf("roles = %v, want one grant", perm.Roles)
	}

	if err := m.RevokePermission(ctx, "ledger", "read", "", "accountant"); err != nil {
		t.Fatalf("RevokePermission: %v", err)
	}
	if err := m.RevokePermission(ctx, "ledger", "read", "", "accountant"); !security.HasCode(err, security.RoleNotFound) {
		t.Fatalf("second revoke = %v, want RoleNotFound", err)
	}
}

func TestPermissionRequiresExistingObject(t *testing.T) {
	m := newManager(t)

	if err := m.AddPermission(ctx, &model.Permission{Object: "ghost", Operation: "read"}); !security.HasCode(err, security.PermObjectNotFound) {
		t.Fatalf("unknown object = %v, want PermObjectNotFound", err)
	}
}

func TestDeletePermObjectCascades(t *testing.T) {
	m := newManager(t)
	mustAdd(t, m.AddPermObject(ctx, &model.PermObject{Name: "ledger", OrgUnit: "apps"}))
	mustAdd(t, m.AddPermission(ctx, &model.Permission{Object: "ledger", Operation: "read"}))
	mustAdd(t, m.AddPermission(ctx, &model.Permission{Object: "ledger", Operation: "write"}))

	if err := m.DeletePermObject(ctx, "ledger"); err != nil {
		t.Fatalf("DeletePermObject: %v", err)
	}
	perms, _ := m.Store.ListPermissions(ctx)
	if len(perms) != 0 {
		t.Fatalf("permissions = %v, want none after cascade", perms)
	}
}

func TestDeleteOrgUnitRefusedWhileReferenced(t *testing.T) {
	m := newManager(t)
	addUser(t, m, "alice")

	if err := m.DeleteOrgUnit(ctx, model.UserOU, "engineering"); err == nil {
		t.Fatal("referenced org-unit deleted")
	}
	mustAdd(t, m.DeleteUser(ctx, "alice"))
	if err := m.DeleteOrgUnit(ctx, model.UserOU, "engineering"); err != nil {
		t.Fatalf("DeleteOrgUnit after last reference: %v", err)
	}
}

func TestDeletePwPolicyRefusedWhileReferenced(t *testing.T) {
	m := newManager(t)
	mustAdd(t, m.AddPwPolicy(ctx, &model.PwPolicy{Name: "strict"}))
	mustAdd(t, m.AddUser(ctx, &model.User{ID: "alice", OrgUnit: "engineering", PwPolicy: "strict"}))

	if err := m.DeletePwPolicy(ctx, "strict"); err == nil {
		t.Fatal("referenced policy deleted")
	}
	mustAdd(t, m.DeleteUser(ctx, "alice"))
	if err := m.DeletePwPolicy(ctx, "strict"); err != nil {
		t.Fatalf("DeletePwPolicy after last reference: %v", err)
	}
}

func TestGroupMembership(t *testing.T) {
	m := newManager(t)
	addUser(t, m, "alice")
	addUser(t, m, "bob")
	mustAdd(t, m.AddGroup(ctx, &model.Group{Name: "ops", Members: []string{"alice"}}))

	if err := m.AddGroup(ctx, &model.Group{Name: "bad", Members: []string{"ghost"}}); !security.HasCode(err, security.UserNotFound) {
		t.Fatalf("unknown member = %v, want UserNotFound", err)
	}

	if err := m.AssignGroupUser(ctx, "ops", "bob"); err != nil {
		t.Fatalf("AssignGroupUser: %v", err)
	}
	// Adding an existing member is a no-op.
	if err := m.AssignGroupUser(ctx, "ops", "bob"); err != nil {
		t.Fatalf("repeat assign: %v", err)
	}
	group, _ := m.Store.GetGroup(ctx, "ops")
	if len(group.Members) != 2 {
		t.Fatalf("members = %v, want two", group.Members)
	}

	if err := m.DeassignGroupUser(ctx, "ops", "alice"); err != nil {
		t.Fatalf("DeassignGroupUser: %v", err)
	}
	if err := m.DeassignGroupUser(ctx, "ops", "alice"); !security.HasCode(err, security.UserNotFound) {
		t.Fatalf("second deassign = %v, want UserNotFound", err)
	}
}
