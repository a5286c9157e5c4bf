// Package busday measures elapsed working time between two instants.
// Working time is calendar time with every Saturday and Sunday removed;
// no holiday calendar is modelled.
package busday

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Unit selects how a working duration is expressed.
type Unit string

const (
	Years     Unit = "years"
	Days      Unit = "days"
	Hours     Unit = "hours"
	Minutes   Unit = "minutes"
	Seconds   Unit = "seconds"
	Composite Unit = "composite"
)

// Unit lengths in seconds. A year is the mean tropical year.
const (
	secondsPerYear   int64 = 31556926
	secondsPerDay    int64 = 86400
	secondsPerHour   int64 = 3600
	secondsPerMinute int64 = 60
)

var (
	// ErrInvalidTimestamp is returned for a zero time.Time, which carries no
	// usable instant or location.
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrUnknownUnit      = errors.New("unknown duration unit")
)

// ParseUnit maps a user-facing unit name onto a Unit. Singular forms are
// accepted.
func ParseUnit(s string) (Unit, error) {
	u := Unit(strings.ToLower(strings.TrimSpace(s)))
	switch u {
	case Years, Days, Hours, Minutes, Seconds, Composite:
		return u, nil
	case "year", "day", "hour", "minute", "second":
		return u + "s", nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownUnit, s)
}

// Seconds returns the length of one unit. Composite has no length.
func (u Unit) Seconds() (int64, error) {
	switch u {
	case Years:
		return secondsPerYear, nil
	case Days:
		return secondsPerDay, nil
	case Hours:
		return secondsPerHour, nil
	case Minutes:
		return secondsPerMinute, nil
	case Seconds:
		return 1, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownUnit, string(u))
}

// Working returns the time elapsed between a and b excluding the portion
// that falls on a Saturday or Sunday in a's location. If b precedes a the
// result is negative.
func Working(a, b time.Time) (time.Duration, error) {
	if a.IsZero() {
		return 0, fmt.Errorf("%w: start is zero", ErrInvalidTimestamp)
	}
	if b.IsZero() {
		return 0, fmt.Errorf("%w: end is zero", ErrInvalidTimestamp)
	}
	b = b.In(a.Location())
	if b.Before(a) {
		d, err := Working(b, a.In(b.Location()))
		return -d, err
	}
	return b.Sub(a) - weekendOverlap(a, b), nil
}

// weekendOverlap sums the intersection of [a, b) with each weekend day.
// Days are walked with AddDate so DST transitions keep their real length.
func weekendOverlap(a, b time.Time) time.Duration {
	var total time.Duration
	day := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, a.Location())
	for day.Before(b) {
		next := day.AddDate(0, 0, 1)
		if wd := day.Weekday(); wd == time.Saturday || wd == time.Sunday {
			lo, hi := day, next
			if a.After(lo) {
				lo = a
			}
			if b.Before(hi) {
				hi = b
			}
			if hi.After(lo) {
				total += hi.Sub(lo)
			}
		}
		day = next
	}
	return total
}

// Duration returns the working time between a and b in whole units,
// rounded towards negative infinity.
func Duration(a, b time.Time, unit Unit) (int64, error) {
	size, err := unit.Seconds()
	if err != nil {
		return 0, err
	}
	d, err := Working(a, b)
	if err != nil {
		return 0, err
	}
	return floorDiv(int64(d/time.Second), size), nil
}

// Since measures from a until the current time in a's location.
func Since(a time.Time, unit Unit) (int64, error) {
	if a.IsZero() {
		return 0, fmt.Errorf("%w: start is zero", ErrInvalidTimestamp)
	}
	return Duration(a, time.Now().In(a.Location()), unit)
}

// Describe renders the working time between a and b as
// "N years, N days, N hours, N minutes and N seconds".
func Describe(a, b time.Time) (string, error) {
	d, err := Working(a, b)
	if err != nil {
		return "", err
	}
	rem := int64(d / time.Second)
	sign := ""
	if rem < 0 {
		sign, rem = "-", -rem
	}
	years, rem := rem/secondsPerYear, rem%secondsPerYear
	days, rem := rem/secondsPerDay, rem%secondsPerDay
	hours, rem := rem/secondsPerHour, rem%secondsPerHour
	minutes, seconds := rem/secondsPerMinute, rem%secondsPerMinute
	return fmt.Sprintf("%s%d years, %d days, %d hours, %d minutes and %d seconds",
		sign, years, days, hours, minutes, seconds), nil
}

// Format renders the working time in the given unit, delegating to
// Describe for Composite.
func Format(a, b time.Time, unit Unit) (string, error) {
	if unit == Composite {
		return Describe(a, b)
	}
	n, err := Duration(a, b, unit)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n, 10), nil
}

// BusinessDays counts Monday to Friday dates in [a.date, b.date), in a's
// location. It returns a negative count when b precedes a.
func BusinessDays(a, b time.Time) int {
	b = b.In(a.Location())
	start := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, a.Location())
	end := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, a.Location())
	sign := 1
	if end.Before(start) {
		start, end, sign = end, start, -1
	}
	n := 0
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			n++
		}
	}
	return sign * n
}

func floorDiv(n, d int64) int64 {
	q := n / d
	if (n%d != 0) && ((n < 0) != (d < 0)) {
		q--
	}
	return q
}
