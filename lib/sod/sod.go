// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

// Package sod evaluates separation-of-duty constraint sets.
//
// A separation-of-duty set names member roles and a cardinality n: for
// every user (static sets, checked at assignment time) or session
// (dynamic sets, checked at activation time), the count of member
// roles held simultaneously must stay below n.
//
// The two check sites apply the same counting rule but different
// policies, which belong to the callers: a static violation rejects
// the assignment outright (lib/admin), while a dynamic violation
// prunes the candidate role from activation and lets the session
// proceed (lib/session).
package sod

import (
	"github.com/bastion-auth/bastion/lib/model"
	"github.com/bastion-auth/bastion/lib/security"
)

// Checker evaluates a fixed collection of SD sets, indexed by member
// role for constant-time candidate lookup. Build one per operation
// from the store's current sets; like the hierarchy graph it is not
// cached across calls.
type Checker struct {
	byMember map[string][]model.SDSet
}

// NewChecker indexes the given sets. Sets whose cardinality is below
// two are skipped — they cannot constrain anything, and ValidateSet
// prevents them from being created in the first place.
func NewChecker(sets []model.SDSet) *Checker {
	c := &Checker{byMember: make(map[string][]model.SDSet)}
	for _, set := range sets {
		if set.Cardinality < 2 {
			continue
		}
		for _, member := range set.Members {
			key := model.Normalize(member)
			c.byMember[key] = append(c.byMember[key], set)
		}
	}
	return c
}

// Check counts, for every set containing the candidate role, how many
// of the held roles are members; if adding the candidate would reach
// the set's cardinality the offending set is reported. Returns nil
// when the candidate conflicts with nothing.
//
// The violation code is SSDViolation or DSDViolation according to the
// set's kind, so callers convert the result directly into their
// reject-or-prune policy.
func (c *Checker) Check(held []string, candidate string) *security.Error {
	sets := c.byMember[model.Normalize(candidate)]
	if len(sets) == 0 {
		return nil
	}
	for _, set := range sets {
		count := 1 // the candidate itself
		for _, name := range held {
			if set.Contains(name) {
				count++
			}
		}
		if count >= set.Cardinality {
			code := security.SSDViolation
			if set.Kind == model.DynamicSD {
				code = security.DSDViolation
			}
			return security.New(code,
				"role %q violates %s set %q (cardinality %d)",
				candidate, set.Kind, set.Name, set.Cardinality)
		}
	}
	return nil
}

// ValidateSet rejects malformed SD sets at creation time: cardinality
// must be at least two (anything lower imposes no constraint and is a
// configuration error, not a check-time concern), and the member list
// must be able to reach the cardinality at all.
func ValidateSet(set model.SDSet) error {
	if set.Cardinality < 2 {
		return security.New(security.SDSetInvalid,
			"set %q: cardinality must be at least 2, got %d",
			set.Name, set.Cardinality)
	}
	if len(set.Members) < set.Cardinality {
		return security.New(security.SDSetInvalid,
			"set %q: %d members cannot reach cardinality %d",
			set.Name, len(set.Members), set.Cardinality)
	}
	return nil
}
