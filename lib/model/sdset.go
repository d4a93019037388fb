// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package model

// SDKind distinguishes static (assignment-time) from dynamic
// (activation-time) separation-of-duty sets.
type SDKind int

const (
	// StaticSD sets constrain how many member roles one user may
	// have simultaneously assigned.
	StaticSD SDKind = iota

	// DynamicSD sets constrain how many member roles one session
	// may have simultaneously activated.
	DynamicSD
)

// String returns "ssd" or "dsd".
func (k SDKind) String() string {
	if k == DynamicSD {
		return "dsd"
	}
	return "ssd"
}

// SDSet is a named separation-of-duty constraint: a set of member
// roles and a cardinality n. The invariant is that fewer than n member
// roles may be simultaneously assigned to one user (static) or
// activated in one session (dynamic). A cardinality below two imposes
// no real constraint and is rejected at set-creation time.
type SDSet struct {
	// Name is the unique key, compared case-insensitively.
	Name string

	// Kind selects static or dynamic enforcement.
	Kind SDKind

	// Members are the constrained role names.
	Members []string

	// Cardinality is n: the count of member roles that may never be
	// reached. Must be at least two.
	Cardinality int

	// Description is optional display text.
	Description string
}

// Contains reports whether the named role is a member of the set.
func (s SDSet) Contains(role string) bool {
	want := Normalize(role)
	for _, member := range s.Members {
		if Normalize(member) == want {
			return true
		}
	}
	return false
}
