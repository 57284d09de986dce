package classify

import (
	"testing"
	"time"
)

var now = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func TestUrgentBoundaries(t *testing.T) {
	if Urgent(nil, now) {
		t.Fatalf("nil deadline must not be urgent")
	}
	if !Urgent(at(-time.Second), now) {
		t.Fatalf("past deadline must be urgent")
	}
	if !Urgent(at(72*time.Hour), now) {
		t.Fatalf("exactly 3 days out must be urgent (inclusive boundary)")
	}
	if Urgent(at(72*time.Hour+time.Second), now) {
		t.Fatalf("3 days and 1 second out must not be urgent")
	}
}

func TestDaysRemaining(t *testing.T) {
	if DaysRemaining(nil, now) != nil {
		t.Fatalf("nil deadline must yield nil days")
	}
	cases := []struct {
		offset time.Duration
		want   int
	}{
		{25 * time.Hour, 1},
		{24 * time.Hour, 1},
		{23 * time.Hour, 0},
		{time.Minute, 0},
		{-time.Hour, -1},
		{-24 * time.Hour, -1},
		{-25 * time.Hour, -2},
		{5 * 24 * time.Hour, 5},
	}
	for _, c := range cases {
		got := DaysRemaining(at(c.offset), now)
		if got == nil || *got != c.want {
			t.Fatalf("offset %v: want %d, got %v", c.offset, c.want, got)
		}
	}
}

func TestOverdue(t *testing.T) {
	if !Overdue(at(-time.Hour), false, now) {
		t.Fatalf("past deadline on open task must be overdue")
	}
	if Overdue(at(-time.Hour), true, now) {
		t.Fatalf("completed task must never be overdue")
	}
	if Overdue(at(time.Hour), false, now) {
		t.Fatalf("future deadline must not be overdue")
	}
	if Overdue(nil, false, now) {
		t.Fatalf("no deadline cannot be overdue")
	}
}

func TestQuadrantFor(t *testing.T) {
	soon := at(24 * time.Hour)
	far := at(10 * 24 * time.Hour)
	cases := []struct {
		important bool
		deadline  *time.Time
		want      string
	}{
		{true, soon, Q1},
		{true, far, Q2},
		{true, nil, Q2},
		{false, soon, Q3},
		{false, far, Q4},
		{false, nil, Q4},
		{true, at(-time.Hour), Q1}, // overdue counts as urgent
	}
	for _, c := range cases {
		if got := QuadrantFor(c.important, c.deadline, now); got != c.want {
			t.Fatalf("important=%v deadline=%v: want %s got %s", c.important, c.deadline, c.want, got)
		}
	}
}

func TestQuadrantIsDeterministic(t *testing.T) {
	d := at(36 * time.Hour)
	first := QuadrantFor(true, d, now)
	for i := 0; i < 100; i++ {
		if got := QuadrantFor(true, d, now); got != first {
			t.Fatalf("same inputs produced %s then %s", first, got)
		}
	}
}
