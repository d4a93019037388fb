// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package model

import (
	"strings"
	"time"
)

// DayMask selects weekdays on which an entity may be active. The zero
// mask means unconstrained (every day), matching the convention that an
// absent constraint bound is open.
type DayMask uint8

// One bit per weekday, aligned with time.Weekday (Sunday = 0).
const (
	Sunday DayMask = 1 << iota
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

// Weekdays is the Monday-through-Friday mask.
const Weekdays = Monday | Tuesday | Wednesday | Thursday | Friday

// Includes reports whether the mask permits the given weekday. The
// zero mask permits every day.
func (m DayMask) Includes(day time.Weekday) bool {
	if m == 0 {
		return true
	}
	return m&(1<<uint(day)) != 0
}

// String renders the mask as the weekday initials it includes, e.g.
// "MTWRF" for Weekdays. The zero mask renders as "any".
func (m DayMask) String() string {
	if m == 0 {
		return "any"
	}
	initials := []string{"U", "M", "T", "W", "R", "F", "S"}
	var b strings.Builder
	for day := time.Sunday; day <= time.Saturday; day++ {
		if m&(1<<uint(day)) != 0 {
			b.WriteString(initials[day])
		}
	}
	return b.String()
}

// Constraint is a temporal/contextual activation constraint attached to
// a user, a role, an admin role, or (copied at assignment time) a
// role binding. The zero value is fully unconstrained.
//
// Date bounds are inclusive and compared on the calendar date only.
// Time-of-day bounds are minutes since midnight; a window whose end
// precedes its begin wraps across midnight. A zero-valued pair of
// time bounds means unconstrained. The lock window, when the reference
// time falls inside it, overrides an otherwise valid date range.
type Constraint struct {
	// BeginDate is the first date the entity is active. Zero means
	// active since forever.
	BeginDate time.Time

	// EndDate is the last date the entity is active. Zero means
	// never expires.
	EndDate time.Time

	// BeginLockDate and EndLockDate bound a window during which the
	// entity is administratively suspended regardless of the date
	// range. Both zero means no lock window.
	BeginLockDate time.Time
	EndLockDate   time.Time

	// BeginTime and EndTime bound the time of day (minutes since
	// midnight, 0-1439) during which activation is permitted.
	// Both zero means unconstrained. EndTime < BeginTime means the
	// window wraps across midnight.
	BeginTime int
	EndTime   int

	// DayMask selects permitted weekdays. Zero means every day.
	DayMask DayMask

	// Timeout is the maximum session inactivity before the session
	// owner must invalidate it. Zero means no timeout. The
	// constraint evaluator only records this on the session; the
	// access layer enforces it.
	Timeout time.Duration
}

// IsZero reports whether the constraint is fully unconstrained. Used
// at assignment time to decide whether a binding supplies its own
// constraint or inherits the role's.
func (c Constraint) IsZero() bool {
	return c.BeginDate.IsZero() && c.EndDate.IsZero() &&
		c.BeginLockDate.IsZero() && c.EndLockDate.IsZero() &&
		c.BeginTime == 0 && c.EndTime == 0 &&
		c.DayMask == 0 && c.Timeout == 0
}
