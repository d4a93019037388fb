// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package constraint

import (
	"time"

	"github.com/bastion-auth/bastion/lib/model"
	"github.com/bastion-auth/bastion/lib/security"
)

// minutesPerDay bounds the time-of-day fields.
const minutesPerDay = 24 * 60

// Check evaluates the constraint at the given reference time and
// returns the first violation, or nil when the constraint is
// satisfied. Date comparisons are calendar-date granular and
// inclusive on both ends: a constraint whose begin and end date are
// both today is satisfied exactly today.
//
// Check order: lock window, date range, day mask, time of day. The
// lock window is checked first because a lock overrides an otherwise
// valid date range.
func Check(c model.Constraint, at time.Time) *security.Error {
	day := dateOf(at)

	if !c.BeginLockDate.IsZero() || !c.EndLockDate.IsZero() {
		if withinDates(day, dateOf(c.BeginLockDate), dateOf(c.EndLockDate)) {
			return security.New(security.LockWindow,
				"locked between %s and %s",
				c.BeginLockDate.Format(time.DateOnly), c.EndLockDate.Format(time.DateOnly))
		}
	}

	if !c.BeginDate.IsZero() && day.Before(dateOf(c.BeginDate)) {
		return security.New(security.NotYetActive,
			"not active until %s", c.BeginDate.Format(time.DateOnly))
	}
	if !c.EndDate.IsZero() && day.After(dateOf(c.EndDate)) {
		return security.New(security.Expired,
			"expired on %s", c.EndDate.Format(time.DateOnly))
	}

	if !c.DayMask.Includes(at.Weekday()) {
		return security.New(security.WrongDay,
			"not active on %s (mask %s)", at.Weekday(), c.DayMask)
	}

	if c.BeginTime != 0 || c.EndTime != 0 {
		minute := at.Hour()*60 + at.Minute()
		if !withinTimeWindow(minute, c.BeginTime, c.EndTime) {
			return security.New(security.WrongTimeOfDay,
				"not active at %02d:%02d (window %02d:%02d-%02d:%02d)",
				at.Hour(), at.Minute(),
				c.BeginTime/60, c.BeginTime%60, c.EndTime/60, c.EndTime%60)
		}
	}

	return nil
}

// Validate rejects structurally invalid constraints at admin time,
// before they reach the directory. Returns a ConstraintInvalid error
// describing the first problem found.
func Validate(c model.Constraint) error {
	if !c.BeginDate.IsZero() && !c.EndDate.IsZero() &&
		dateOf(c.BeginDate).After(dateOf(c.EndDate)) {
		return security.New(security.ConstraintInvalid,
			"begin date %s is after end date %s",
			c.BeginDate.Format(time.DateOnly), c.EndDate.Format(time.DateOnly))
	}
	if c.BeginLockDate.IsZero() != c.EndLockDate.IsZero() {
		return security.New(security.ConstraintInvalid,
			"lock window requires both begin and end dates")
	}
	if !c.BeginLockDate.IsZero() &&
		dateOf(c.BeginLockDate).After(dateOf(c.EndLockDate)) {
		return security.New(security.ConstraintInvalid,
			"lock begin date %s is after lock end date %s",
			c.BeginLockDate.Format(time.DateOnly), c.EndLockDate.Format(time.DateOnly))
	}
	if c.BeginTime < 0 || c.BeginTime >= minutesPerDay ||
		c.EndTime < 0 || c.EndTime >= minutesPerDay {
		return security.New(security.ConstraintInvalid,
			"time-of-day bounds must be within 0-1439 minutes, got %d-%d",
			c.BeginTime, c.EndTime)
	}
	if c.Timeout < 0 {
		return security.New(security.ConstraintInvalid,
			"timeout must not be negative, got %v", c.Timeout)
	}
	return nil
}

// ValidateOrCopy prepares a binding's constraint at assignment time:
// a binding that supplies no constraint of its own inherits a copy of
// the role's, and a binding that does supply one must pass Validate.
// This is why activation decisions read the binding, never the role —
// the copy freezes the role's constraint as of assignment time.
func ValidateOrCopy(role model.Constraint, binding *model.Constraint) error {
	if binding.IsZero() {
		*binding = role
		return nil
	}
	return Validate(*binding)
}

// dateOf truncates a time to its calendar date in its own location.
// The zero time maps to the zero date.
func dateOf(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// withinDates reports whether day falls inclusively between begin and
// end, where a zero bound is open on that side.
func withinDates(day, begin, end time.Time) bool {
	if !begin.IsZero() && day.Before(begin) {
		return false
	}
	if !end.IsZero() && day.After(end) {
		return false
	}
	return true
}

// withinTimeWindow reports whether minute falls inside the inclusive
// [begin, end] window, wrapping across midnight when end < begin.
func withinTimeWindow(minute, begin, end int) bool {
	if begin <= end {
		return minute >= begin && minute <= end
	}
	// Window crosses midnight: 22:00-02:00 admits 23:30 and 01:15.
	return minute >= begin || minute <= end
}
