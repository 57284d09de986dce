// Package classify holds the deadline math behind the Eisenhower matrix.
// Every function is pure: the clock reading is always an explicit argument,
// never read ambiently, so boundary conditions are testable to the second.
package classify

import "time"

// Quadrant labels from the Eisenhower prioritization method.
const (
	Q1 = "Q1" // important and urgent
	Q2 = "Q2" // important, not urgent
	Q3 = "Q3" // urgent, not important
	Q4 = "Q4" // neither
)

// UrgencyWindow is the duration-based urgency cutoff: a task is urgent when
// its deadline is within this window of now, inclusive. Expressed as a plain
// duration comparison, not a calendar-day truncation, so 3 days minus one
// second is urgent and 3 days plus one second is not.
const UrgencyWindow = 259200 * time.Second // 3 days

// Urgent reports whether a deadline falls within the urgency window of now.
// A missing deadline is never urgent; a deadline already in the past is.
func Urgent(deadline *time.Time, now time.Time) bool {
	if deadline == nil {
		return false
	}
	return deadline.Sub(now) <= UrgencyWindow
}

// DaysRemaining returns the whole days between now and the deadline, floored
// toward negative infinity, or nil when no deadline is set. A deadline later
// today reads 0; one hour ago reads -1.
func DaysRemaining(deadline *time.Time, now time.Time) *int {
	if deadline == nil {
		return nil
	}
	d := deadline.Sub(now)
	days := int(d / (24 * time.Hour))
	if d < 0 && d%(24*time.Hour) != 0 {
		days--
	}
	return &days
}

// Overdue reports whether the deadline has passed on a task that is still
// open. Completed tasks are never overdue regardless of their deadline.
func Overdue(deadline *time.Time, completed bool, now time.Time) bool {
	if deadline == nil || completed {
		return false
	}
	return deadline.Before(now)
}

// QuadrantFor maps (importance, deadline, now) onto one of the four quadrants.
// Total: every input combination yields a quadrant.
func QuadrantFor(important bool, deadline *time.Time, now time.Time) string {
	urgent := Urgent(deadline, now)
	switch {
	case important && urgent:
		return Q1
	case important:
		return Q2
	case urgent:
		return Q3
	default:
		return Q4
	}
}

// ValidQuadrant reports whether s is one of the four quadrant literals.
func ValidQuadrant(s string) bool {
	switch s {
	case Q1, Q2, Q3, Q4:
		return true
	}
	return false
}
