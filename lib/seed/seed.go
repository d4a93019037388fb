// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

// Package seed loads a directory population from a JSONC file and
// applies it through the admin manager. Seed files are authored by
// hand, so the format allows // line comments, /* block comments */,
// and trailing commas on top of plain JSON.
//
// The typical flow:
//
//  1. ReadFile or Parse: JSONC bytes → File
//  2. Validate: structural checks before any write
//  3. Apply: create entities in dependency order through lib/admin
package seed

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/bastion-auth/bastion/lib/model"
	"github.com/bastion-auth/bastion/lib/security"
)

// File is the root of a seed document.
type File struct {
	OrgUnits    []OrgUnit    `json:"orgUnits,omitempty"`
	PwPolicies  []PwPolicy   `json:"pwPolicies,omitempty"`
	Roles       []Role       `json:"roles,omitempty"`
	AdminRoles  []AdminRole  `json:"adminRoles,omitempty"`
	SDSets      []SDSet      `json:"sdSets,omitempty"`
	PermObjects []PermObject `json:"objects,omitempty"`
	Permissions []Permission `json:"permissions,omitempty"`
	Users       []User       `json:"users,omitempty"`
	Groups      []Group      `json:"groups,omitempty"`
	Settings    map[string]string `json:"settings,omitempty"`
}

// Constraint is the human-authored form of a temporal constraint.
// Dates are "2006-01-02", times are "15:04", days are the digits 1-7
// with 1 meaning Sunday, and the timeout is whole minutes.
type Constraint struct {
	BeginDate      string `json:"beginDate,omitempty"`
	EndDate        string `json:"endDate,omitempty"`
	BeginLockDate  string `json:"beginLockDate,omitempty"`
	EndLockDate    string `json:"endLockDate,omitempty"`
	BeginTime      string `json:"beginTime,omitempty"`
	EndTime        string `json:"endTime,omitempty"`
	Days           string `json:"days,omitempty"`
	TimeoutMinutes int    `json:"timeoutMinutes,omitempty"`
}

type OrgUnit struct {
	Name        string   `json:"name"`
	Kind        string   `json:"kind"` // "user" or "perm"
	Parents     []string `json:"parents,omitempty"`
	Description string   `json:"description,omitempty"`
}

type PwPolicy struct {
	Name            string `json:"name"`
	MaxAgeDays      int    `json:"maxAgeDays,omitempty"`
	GraceLogins     int    `json:"graceLogins,omitempty"`
	MaxFailures     int    `json:"maxFailures,omitempty"`
	LockoutMinutes  int    `json:"lockoutMinutes,omitempty"`
}

type Role struct {
	Name        string      `json:"name"`
	Parents     []string    `json:"parents,omitempty"`
	Constraint  *Constraint `json:"constraint,omitempty"`
	Description string      `json:"description,omitempty"`
}

type AdminRole struct {
	Role

	OSU            []string `json:"osu,omitempty"`
	OSP            []string `json:"osp,omitempty"`
	BeginRange     string   `json:"beginRange,omitempty"`
	EndRange       string   `json:"endRange,omitempty"`
	BeginInclusive bool     `json:"beginInclusive,omitempty"`
	EndInclusive   bool     `json:"endInclusive,omitempty"`
}

type SDSet struct {
	Name        string   `json:"name"`
	Kind        string   `json:"kind"` // "ssd" or "dsd"
	Members     []string `json:"members"`
	Cardinality int      `json:"cardinality"`
	Description string   `json:"description,omitempty"`
}

type PermObject struct {
	Name        string            `json:"name"`
	OrgUnit     string            `json:"orgUnit"`
	Props       map[string]string `json:"props,omitempty"`
	Description string            `json:"description,omitempty"`
}

type Permission struct {
	Object      string   `json:"object"`
	Operation   string   `json:"operation"`
	ObjectID    string   `json:"objectId,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	Users       []string `json:"users,omitempty"`
	Description string   `json:"description,omitempty"`
}

// Assignment is a role binding on a seeded user, with an optional
// constraint override narrowing the role's own constraint.
type Assignment struct {
	Role       string      `json:"role"`
	Constraint *Constraint `json:"constraint,omitempty"`
}

type User struct {
	ID          string            `json:"id"`
	Password    string            `json:"password,omitempty"`
	OrgUnit     string            `json:"orgUnit"`
	PwPolicy    string            `json:"pwPolicy,omitempty"`
	Roles       []Assignment      `json:"roles,omitempty"`
	AdminRoles  []Assignment      `json:"adminRoles,omitempty"`
	Constraint  *Constraint       `json:"constraint,omitempty"`
	Props       map[string]string `json:"props,omitempty"`
	Description string            `json:"description,omitempty"`
}

type Group struct {
	Name        string            `json:"name"`
	Members     []string          `json:"members,omitempty"`
	Props       map[string]string `json:"props,omitempty"`
	Description string            `json:"description,omitempty"`
}

// Parse strips JSONC comments and trailing commas from data, then
// unmarshals the result into a File.
func Parse(data []byte) (*File, error) {
	stripped := jsonc.ToJSON(data)

	var file File
	if err := json.Unmarshal(stripped, &file); err != nil {
		return nil, fmt.Errorf("parsing seed file: %w", err)
	}

	return &file, nil
}

// ReadFile reads a JSONC seed file from disk and parses it.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	file, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return file, nil
}

// Validate performs the structural checks that do not need a
// directory: required names, recognized kind strings, parseable
// constraints. Referential checks (does the org unit exist?) happen
// in Apply, where the admin manager performs them anyway.
func (f *File) Validate() error {
	for _, unit := range f.OrgUnits {
		if unit.Name == "" {
			return fmt.Errorf("org unit with empty name")
		}
		if _, err := orgUnitKind(unit.Kind); err != nil {
			return fmt.Errorf("org unit %q: %w", unit.Name, err)
		}
	}
	for _, policy := range f.PwPolicies {
		if policy.Name == "" {
			return fmt.Errorf("password policy with empty name")
		}
	}
	for _, role := range f.Roles {
		if role.Name == "" {
			return fmt.Errorf("role with empty name")
		}
		if _, err := role.Constraint.convert(); err != nil {
			return fmt.Errorf("role %q: %w", role.Name, err)
		}
	}
	for _, role := range f.AdminRoles {
		if role.Name == "" {
			return fmt.Errorf("admin role with empty name")
		}
		if _, err := role.Constraint.convert(); err != nil {
			return fmt.Errorf("admin role %q: %w", role.Name, err)
		}
	}
	for _, set := range f.SDSets {
		if set.Name == "" {
			return fmt.Errorf("sd set with empty name")
		}
		if _, err := sdKind(set.Kind); err != nil {
			return fmt.Errorf("sd set %q: %w", set.Name, err)
		}
	}
	for _, object := range f.PermObjects {
		if object.Name == "" {
			return fmt.Errorf("permission object with empty name")
		}
	}
	for _, perm := range f.Permissions {
		if perm.Object == "" || perm.Operation == "" {
			return fmt.Errorf("permission %q::%q: object and operation are required", perm.Object, perm.Operation)
		}
	}
	for _, user := range f.Users {
		if user.ID == "" {
			return fmt.Errorf("user with empty id")
		}
		if _, err := user.Constraint.convert(); err != nil {
			return fmt.Errorf("user %q: %w", user.ID, err)
		}
		for _, binding := range append(append([]Assignment(nil), user.Roles...), user.AdminRoles...) {
			if binding.Role == "" {
				return fmt.Errorf("user %q: assignment with empty role", user.ID)
			}
			if _, err := binding.Constraint.convert(); err != nil {
				return fmt.Errorf("user %q role %q: %w", user.ID, binding.Role, err)
			}
		}
	}
	for _, group := range f.Groups {
		if group.Name == "" {
			return fmt.Errorf("group with empty name")
		}
	}
	return nil
}

func orgUnitKind(kind string) (model.OrgUnitKind, error) {
	switch strings.ToLower(kind) {
	case "user":
		return model.UserOU, nil
	case "perm":
		return model.PermOU, nil
	}
	return 0, fmt.Errorf("unknown org unit kind %q (want \"user\" or \"perm\")", kind)
}

func sdKind(kind string) (model.SDKind, error) {
	switch strings.ToLower(kind) {
	case "ssd", "static":
		return model.StaticSD, nil
	case "dsd", "dynamic":
		return model.DynamicSD, nil
	}
	return 0, fmt.Errorf("unknown sd set kind %q (want \"ssd\" or \"dsd\")", kind)
}

// convert maps the authored constraint form onto the model type. A
// nil constraint converts to the zero (unconstrained) value.
func (c *Constraint) convert() (model.Constraint, error) {
	var out model.Constraint
	if c == nil {
		return out, nil
	}
	var err error
	if out.BeginDate, err = parseDate(c.BeginDate); err != nil {
		return out, err
	}
	if out.EndDate, err = parseDate(c.EndDate); err != nil {
		return out, err
	}
	if out.BeginLockDate, err = parseDate(c.BeginLockDate); err != nil {
		return out, err
	}
	if out.EndLockDate, err = parseDate(c.EndLockDate); err != nil {
		return out, err
	}
	if out.BeginTime, err = parseClock(c.BeginTime); err != nil {
		return out, err
	}
	if out.EndTime, err = parseClock(c.EndTime); err != nil {
		return out, err
	}
	if out.DayMask, err = parseDays(c.Days); err != nil {
		return out, err
	}
	out.Timeout = time.Duration(c.TimeoutMinutes) * time.Minute
	return out, nil
}

func parseDate(field string) (time.Time, error) {
	if field == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation("2006-01-02", field, time.UTC)
	if err != nil {
		return time.Time{}, security.New(security.ConstraintInvalid, "date %q (want YYYY-MM-DD)", field)
	}
	return t, nil
}

func parseClock(field string) (int, error) {
	if field == "" {
		return 0, nil
	}
	t, err := time.Parse("15:04", field)
	if err != nil {
		return 0, security.New(security.ConstraintInvalid, "time %q (want HH:MM)", field)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func parseDays(field string) (model.DayMask, error) {
	var mask model.DayMask
	for i := 0; i < len(field); i++ {
		digit := field[i]
		if digit < '1' || digit > '7' {
			return 0, security.New(security.ConstraintInvalid, "days %q (want digits 1-7, 1=Sunday)", field)
		}
		mask |= 1 << (digit - '1')
	}
	return mask, nil
}
