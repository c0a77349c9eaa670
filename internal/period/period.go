// Package period tracks closed financial periods. Transactions dated inside
// a closed period may not be matched, unmatched, or re-commented.
package period

import (
	"fmt"
	"time"
)

// Range is one closed period, inclusive on both ends. Times are compared at
// day granularity in UTC.
type Range struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether d falls inside the range.
func (r Range) Contains(d time.Time) bool {
	day := toDay(d)
	return !day.Before(toDay(r.Start)) && !day.After(toDay(r.End))
}

func (r Range) String() string {
	return fmt.Sprintf("%s..%s", r.Start.Format("2006-01-02"), r.End.Format("2006-01-02"))
}

func toDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// LockChecker answers whether a transaction date is inside a closed period.
// The engine consults it immediately before every mutating operation; an
// implementation must return the current lock state, not a cached one, since
// an administrator may close a period mid-session.
type LockChecker interface {
	IsLocked(date time.Time) (bool, error)
}

// Calendar is a fixed in-memory set of closed periods.
type Calendar struct {
	ranges []Range
}

// NewCalendar returns a Calendar over the given closed ranges.
func NewCalendar(ranges ...Range) *Calendar {
	return &Calendar{ranges: append([]Range(nil), ranges...)}
}

// IsLocked implements LockChecker.
func (c *Calendar) IsLocked(date time.Time) (bool, error) {
	for _, r := range c.ranges {
		if r.Contains(date) {
			return true, nil
		}
	}
	return false, nil
}

// Ranges returns a copy of the closed ranges.
func (c *Calendar) Ranges() []Range {
	return append([]Range(nil), c.ranges...)
}

// RereadChecker re-loads the closed-period set on every check, so lock
// changes made outside the session take effect on the very next mutation.
type RereadChecker struct {
	Load func() ([]Range, error)
}

// IsLocked implements LockChecker.
func (rc *RereadChecker) IsLocked(date time.Time) (bool, error) {
	ranges, err := rc.Load()
	if err != nil {
		return false, fmt.Errorf("loading closed periods: %w", err)
	}
	for _, r := range ranges {
		if r.Contains(date) {
			return true, nil
		}
	}
	return false, nil
}

// Open is a LockChecker with no closed periods.
var Open LockChecker = &Calendar{}
