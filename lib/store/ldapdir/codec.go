// Copyright 2026 The Bastion Authors
// SPDX-License-Identifier: Apache-2.0

package ldapdir

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bastion-auth/bastion/lib/model"
	"github.com/bastion-auth/bastion/lib/security"
)

// The raw constraint attribute packs the temporal fields into one
// dollar-delimited string:
//
//	timeout$beginTime$endTime$beginDate$endDate$beginLock$endLock$dayMask
//
// Times are HHMM, dates are YYYYMMDD, the day mask is the digits 1-7
// with 1 meaning Sunday, and the timeout is whole minutes. Empty
// fields mean unconstrained. A fully zero constraint encodes as the
// empty string and the attribute is omitted.

const (
	rawDateLayout = "20060102"
	rawDelimiter  = "$"
)

func encodeConstraint(c model.Constraint) string {
	if c.IsZero() {
		return ""
	}
	fields := []string{
		encodeMinutes(int(c.Timeout / time.Minute)),
		encodeClock(c.BeginTime),
		encodeClock(c.EndTime),
		encodeDate(c.BeginDate),
		encodeDate(c.EndDate),
		encodeDate(c.BeginLockDate),
		encodeDate(c.EndLockDate),
		encodeDayMask(c.DayMask),
	}
	return strings.Join(fields, rawDelimiter)
}

func decodeConstraint(raw string) (model.Constraint, error) {
	var c model.Constraint
	if raw == "" {
		return c, nil
	}
	fields := strings.Split(raw, rawDelimiter)
	if len(fields) != 8 {
		return c, security.New(security.ConstraintInvalid, "raw constraint %q: want 8 fields, have %d", raw, len(fields))
	}
	var err error
	if fields[0] != "" {
		minutes, convErr := strconv.Atoi(fields[0])
		if convErr != nil {
			return c, security.New(security.ConstraintInvalid, "raw constraint timeout %q", fields[0])
		}
		c.Timeout = time.Duration(minutes) * time.Minute
	}
	if c.BeginTime, err = decodeClock(fields[1]); err != nil {
		return c, err
	}
	if c.EndTime, err = decodeClock(fields[2]); err != nil {
		return c, err
	}
	if c.BeginDate, err = decodeDate(fields[3]); err != nil {
		return c, err
	}
	if c.EndDate, err = decodeDate(fields[4]); err != nil {
		return c, err
	}
	if c.BeginLockDate, err = decodeDate(fields[5]); err != nil {
		return c, err
	}
	if c.EndLockDate, err = decodeDate(fields[6]); err != nil {
		return c, err
	}
	if c.DayMask, err = decodeDayMask(fields[7]); err != nil {
		return c, err
	}
	return c, nil
}

func encodeMinutes(minutes int) string {
	if minutes == 0 {
		return ""
	}
	return strconv.Itoa(minutes)
}

func encodeClock(minute int) string {
	if minute == 0 {
		return ""
	}
	return fmt.Sprintf("%02d%02d", minute/60, minute%60)
}

func decodeClock(field string) (int, error) {
	if field == "" {
		return 0, nil
	}
	if len(field) != 4 {
		return 0, security.New(security.ConstraintInvalid, "raw constraint time %q", field)
	}
	hour, errH := strconv.Atoi(field[:2])
	min, errM := strconv.Atoi(field[2:])
	if errH != nil || errM != nil || hour > 23 || min > 59 {
		return 0, security.New(security.ConstraintInvalid, "raw constraint time %q", field)
	}
	return hour*60 + min, nil
}

func encodeDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(rawDateLayout)
}

func decodeDate(field string) (time.Time, error) {
	if field == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(rawDateLayout, field, time.UTC)
	if err != nil {
		return time.Time{}, security.New(security.ConstraintInvalid, "raw constraint date %q", field)
	}
	return t, nil
}

func encodeDayMask(mask model.DayMask) string {
	if mask == 0 {
		return ""
	}
	var b strings.Builder
	for day := 0; day < 7; day++ {
		if mask&(1<<day) != 0 {
			b.WriteByte(byte('1' + day))
		}
	}
	return b.String()
}

func decodeDayMask(field string) (model.DayMask, error) {
	var mask model.DayMask
	for i := 0; i < len(field); i++ {
		digit := field[i]
		if digit < '1' || digit > '7' {
			return 0, security.New(security.ConstraintInvalid, "raw constraint day mask %q", field)
		}
		mask |= 1 << (digit - '1')
	}
	return mask, nil
}

// Properties travel as one multi-valued attribute of key=value pairs.

func encodeProps(props map[string]string) []string {
	if len(props) == 0 {
		return nil
	}
	values := make([]string, 0, len(props))
	for k, v := range props {
		values = append(values, k+"="+v)
	}
	return values
}

func decodeProps(values []string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	props := make(map[string]string, len(values))
	for _, value := range values {
		key, val, ok := strings.Cut(value, "=")
		if !ok {
			continue
		}
		props[key] = val
	}
	return props
}
