// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package seed

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/bastion-auth/bastion/lib/admin"
	"github.com/bastion-auth/bastion/lib/model"
	"github.com/bastion-auth/bastion/lib/security"
	"github.com/bastion-auth/bastion/lib/store/memdir"
)

var ctx = context.Background()

func TestParseStripsComments(t *testing.T) {
	data := []byte(`{
		// the engineering partition
		"orgUnits": [
			{"name": "engineering", "kind": "user"},
			{"name": "apps", "kind": "perm"}, // trailing comma below
		],
		/* block comment */
		"roles": [
			{"name": "developer"},
		],
	}`)
	file, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(file.OrgUnits) != 2 || len(file.Roles) != 1 {
		t.Fatalf("parsed %d org units, %d roles", len(file.OrgUnits), len(file.Roles))
	}
	if file.Roles[0].Name != "developer" {
		t.Errorf("role name = %q", file.Roles[0].Name)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse([]byte(`{"roles": [`)); err == nil {
		t.Fatalf("expected an error for truncated input")
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.jsonc")
	content := `{"roles": [{"name": "auditor"}]} // seed`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	file, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(file.Roles) != 1 || file.Roles[0].Name != "auditor" {
		t.Fatalf("file = %+v", file)
	}
	if _, err := ReadFile(filepath.Join(t.TempDir(), "absent.jsonc")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		file File
		want string
	}{
		{"empty org unit name", File{OrgUnits: []OrgUnit{{Kind: "user"}}}, "empty name"},
		{"bad org unit kind", File{OrgUnits: []OrgUnit{{Name: "it", Kind: "team"}}}, "unknown org unit kind"},
		{"empty policy name", File{PwPolicies: []PwPolicy{{}}}, "empty name"},
		{"empty role name", File{Roles: []Role{{}}}, "empty name"},
		{"bad role constraint", File{Roles: []Role{{Name: "r", Constraint: &Constraint{BeginDate: "01/02/2026"}}}}, "date"},
		{"empty admin role name", File{AdminRoles: []AdminRole{{}}}, "empty name"},
		{"bad sd kind", File{SDSets: []SDSet{{Name: "s", Kind: "mutual"}}}, "unknown sd set kind"},
		{"empty object name", File{PermObjects: []PermObject{{OrgUnit: "apps"}}}, "empty name"},
		{"permission missing operation", File{Permissions: []Permission{{Object: "ledger"}}}, "required"},
		{"empty user id", File{Users: []User{{OrgUnit: "engineering"}}}, "empty id"},
		{"bad user constraint", File{Users: []User{{ID: "u", Constraint: &Constraint{Days: "8"}}}}, "days"},
		{"assignment without role", File{Users: []User{{ID: "u", Roles: []Assignment{{}}}}}, "empty role"},
		{"bad assignment constraint", File{Users: []User{{ID: "u", Roles: []Assignment{{Role: "r", Constraint: &Constraint{BeginTime: "9am"}}}}}}, "time"},
		{"empty group name", File{Groups: []Group{{}}}, "empty name"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.file.Validate()
			if err == nil {
				t.Fatalf("expected a validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want substring %q", err, tc.want)
			}
		})
	}

	good := File{
		OrgUnits: []OrgUnit{{Name: "engineering", Kind: "USER"}},
		SDSets:   []SDSet{{Name: "s", Kind: "static", Members: []string{"a", "b"}, Cardinality: 2}},
		Roles:    []Role{{Name: "developer"}},
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid file rejected: %v", err)
	}
}

func TestConstraintConvert(t *testing.T) {
	c := &Constraint{
		BeginDate:      "2026-01-01",
		EndDate:        "2026-12-31",
		BeginTime:      "09:00",
		EndTime:        "17:30",
		Days:           "234567",
		TimeoutMinutes: 30,
	}
	converted, err := c.convert()
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if converted.BeginTime != 9*60 || converted.EndTime != 17*60+30 {
		t.Errorf("times = %d/%d", converted.BeginTime, converted.EndTime)
	}
	if converted.Timeout != 30*time.Minute {
		t.Errorf("timeout = %v", converted.Timeout)
	}
	if converted.DayMask&model.Sunday != 0 || converted.DayMask&model.Monday == 0 {
		t.Errorf("day mask = %#b", converted.DayMask)
	}
	if got := converted.BeginDate.Format("2006-01-02"); got != "2026-01-01" {
		t.Errorf("begin date = %s", got)
	}

	var nilConstraint *Constraint
	zero, err := nilConstraint.convert()
	if err != nil || !zero.IsZero() {
		t.Fatalf("nil constraint = %+v, %v", zero, err)
	}

	for _, bad := range []Constraint{
		{BeginDate: "Jan 1"},
		{BeginTime: "25:00"},
		{Days: "0"},
	} {
		if _, err := bad.convert(); !security.HasCode(err, security.ConstraintInvalid) {
			t.Errorf("convert(%+v) err = %v, want ConstraintInvalid", bad, err)
		}
	}
}

// fullSeed covers every section of a seed file. Roles are listed
// child-first to prove the two-pass inheritance wiring.
func fullSeed() *File {
	return &File{
		OrgUnits: []OrgUnit{
			{Name: "engineering", Kind: "user"},
			{Name: "apps", Kind: "perm"},
		},
		PwPolicies: []PwPolicy{
			{Name: "standard", MaxAgeDays: 90, GraceLogins: 3, MaxFailures: 5, LockoutMinutes: 15},
		},
		Roles: []Role{
			{Name: "developer", Parents: []string{"manager"}},
			{Name: "manager"},
			{Name: "auditor"},
		},
		AdminRoles: []AdminRole{
			{Role: Role{Name: "user-admin"}, OSU: []string{"engineering"}},
		},
		SDSets: []SDSet{
			{Name: "audit-separation", Kind: "ssd", Members: []string{"developer", "auditor"}, Cardinality: 2},
		},
		PermObjects: []PermObject{
			{Name: "ledger", OrgUnit: "apps"},
		},
		Permissions: []Permission{
			{Object: "ledger", Operation: "read", Roles: []string{"developer"}},
		},
		Users: []User{
			{
				ID:       "alice",
				Password: "alice-password-1",
				OrgUnit:  "engineering",
				PwPolicy: "standard",
				Roles:    []Assignment{{Role: "developer"}},
				AdminRoles: []Assignment{
					{Role: "user-admin"},
				},
			},
		},
		Groups: []Group{
			{Name: "on-call", Members: []string{"alice"}},
		},
		Settings: map[string]string{"org.name": "bastion"},
	}
}

func TestApply(t *testing.T) {
	d := memdir.New()
	m := &admin.Manager{Store: d}
	file := fullSeed()
	if err := file.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	result, err := file.Apply(ctx, m)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := Result{
		OrgUnits:    2,
		PwPolicies:  1,
		Roles:       3,
		AdminRoles:  1,
		SDSets:      1,
		PermObjects: 1,
		Permissions: 1,
		Users:       1,
		Groups:      1,
	}
	if !reflect.DeepEqual(result, want) {
		t.Fatalf("result = %+v, want %+v", result, want)
	}

	// The parent edge was added in the second pass even though
	// "developer" preceded "manager" in the file.
	developer, err := d.GetRole(ctx, "developer")
	if err != nil {
		t.Fatalf("GetRole: %v", err)
	}
	if !reflect.DeepEqual(developer.Parents, []string{"manager"}) {
		t.Errorf("developer parents = %v", developer.Parents)
	}

	alice, err := d.GetUser(ctx, "alice")
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if len(alice.Roles) != 1 || alice.Roles[0].Role != "developer" {
		t.Errorf("alice roles = %+v", alice.Roles)
	}
	if len(alice.AdminRoles) != 1 || alice.AdminRoles[0].Role != "user-admin" {
		t.Errorf("alice admin roles = %+v", alice.AdminRoles)
	}
	if !reflect.DeepEqual(alice.AdminRoles[0].OSU, []string{"engineering"}) {
		t.Errorf("alice admin scope = %+v", alice.AdminRoles[0])
	}

	settings, err := m.ReadSettings(ctx)
	if err != nil {
		t.Fatalf("ReadSettings: %v", err)
	}
	if settings["org.name"] != "bastion" {
		t.Errorf("settings = %v", settings)
	}

	group, err := d.GetGroup(ctx, "on-call")
	if err != nil {
		t.Fatalf("GetGroup: %v", err)
	}
	if !reflect.DeepEqual(group.Members, []string{"alice"}) {
		t.Errorf("group members = %v", group.Members)
	}
}

func TestApplyEnforcesStaticSoD(t *testing.T) {
	d := memdir.New()
	m := &admin.Manager{Store: d}
	file := fullSeed()
	file.Users[0].Roles = append(file.Users[0].Roles, Assignment{Role: "auditor"})
	result, err := file.Apply(ctx, m)
	if !security.HasCode(err, security.SSDViolation) {
		t.Fatalf("err = %v, want SSDViolation", err)
	}
	// Apply stops mid-user, so the user count never advanced.
	if result.Users != 0 {
		t.Errorf("result.Users = %d", result.Users)
	}
}

func TestApplyStopsOnMissingReference(t *testing.T) {
	d := memdir.New()
	m := &admin.Manager{Store: d}
	file := fullSeed()
	file.Permissions[0].Object = "unknown-object"
	_, err := file.Apply(ctx, m)
	if !security.HasCode(err, security.PermObjectNotFound) {
		t.Fatalf("err = %v, want PermObjectNotFound", err)
	}
}
