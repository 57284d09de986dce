package engine

import (
	"context"
	"sort"
	"time"
	"unicode/utf8"

	"quadra/internal/classify"
	"quadra/internal/domain"
	"quadra/internal/engine/scope"
	"quadra/internal/repo"
)

const (
	StatusCompleted = "completed"
	StatusPending   = "pending"
)

// MinSearchLength is the shortest accepted search query.
const MinSearchLength = 2

// ListOptions narrow ListTasks beyond the actor's visibility scope.
type ListOptions struct {
	Quadrant string
	Status   string
	Search   string
}

func (e Engine) ListTasks(ctx context.Context, actor domain.Actor, opts ListOptions) ([]domain.TaskView, error) {
	filters := repo.TaskFilters{OwnerID: scope.OwnerFilter(actor)}
	if opts.Quadrant != "" {
		if !classify.ValidQuadrant(opts.Quadrant) {
			return nil, validationf("invalid quadrant %q: use Q1, Q2, Q3 or Q4", opts.Quadrant)
		}
		filters.Quadrant = opts.Quadrant
	}
	if opts.Status != "" {
		completed, err := parseStatus(opts.Status)
		if err != nil {
			return nil, err
		}
		filters.Completed = &completed
	}
	if opts.Search != "" {
		if utf8.RuneCountInString(opts.Search) < MinSearchLength {
			return nil, validationf("search query must be at least %d characters", MinSearchLength)
		}
		filters.Search = opts.Search
	}
	tasks, err := e.Repo.ListTasks(ctx, filters)
	if err != nil {
		return nil, err
	}
	return e.views(tasks, e.now()), nil
}

func parseStatus(status string) (completed bool, err error) {
	switch status {
	case StatusCompleted:
		return true, nil
	case StatusPending:
		return false, nil
	default:
		return false, validationf("invalid status %q: use completed or pending", status)
	}
}

// Stats tallies the actor-visible tasks by quadrant, status and deadline
// bucket. The urgent and overdue buckets use live classification against the
// request clock, never the stored quadrant.
func (e Engine) Stats(ctx context.Context, actor domain.Actor) (domain.Stats, error) {
	tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{OwnerID: scope.OwnerFilter(actor)})
	if err != nil {
		return domain.Stats{}, err
	}
	now := e.now()
	stats := domain.Stats{
		TotalTasks: len(tasks),
		ByQuadrant: map[string]int{classify.Q1: 0, classify.Q2: 0, classify.Q3: 0, classify.Q4: 0},
		ByStatus:   map[string]int{StatusCompleted: 0, StatusPending: 0},
	}
	for _, t := range tasks {
		if _, ok := stats.ByQuadrant[t.Quadrant]; ok {
			stats.ByQuadrant[t.Quadrant]++
		}
		if t.Completed {
			stats.ByStatus[StatusCompleted]++
		} else {
			stats.ByStatus[StatusPending]++
		}
		if t.DeadlineAt == nil {
			stats.Deadlines.WithoutDeadline++
			continue
		}
		stats.Deadlines.WithDeadline++
		if classify.Urgent(t.DeadlineAt, now) {
			stats.Deadlines.Urgent++
		}
		if classify.Overdue(t.DeadlineAt, t.Completed, now) {
			stats.Deadlines.Overdue++
		}
	}
	return stats, nil
}

// Deadlines returns the actor's pending tasks that carry a deadline, soonest
// deadline first.
func (e Engine) Deadlines(ctx context.Context, actor domain.Actor) ([]domain.TaskView, error) {
	pending := false
	tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{
		OwnerID:         scope.OwnerFilter(actor),
		Completed:       &pending,
		WithDeadline:    true,
		OrderByDeadline: true,
	})
	if err != nil {
		return nil, err
	}
	return e.views(tasks, e.now()), nil
}

// UrgentTasks returns pending tasks whose live urgency is true, sorted by
// days remaining ascending; tasks without a deadline would sort last, though
// by definition none appear here.
func (e Engine) UrgentTasks(ctx context.Context, actor domain.Actor) ([]domain.TaskView, error) {
	pending := false
	tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{
		OwnerID:   scope.OwnerFilter(actor),
		Completed: &pending,
	})
	if err != nil {
		return nil, err
	}
	now := e.now()
	var urgent []domain.TaskView
	for _, t := range tasks {
		if classify.Urgent(t.DeadlineAt, now) {
			urgent = append(urgent, e.view(t, now))
		}
	}
	sort.SliceStable(urgent, func(i, j int) bool {
		return daysOrInf(urgent[i]) < daysOrInf(urgent[j])
	})
	return urgent, nil
}

func daysOrInf(v domain.TaskView) int {
	if v.DaysUntilDeadline == nil {
		return int(^uint(0) >> 1) // nil deadline sorts last
	}
	return *v.DaysUntilDeadline
}

// Productivity groups the actor's completed tasks by completion calendar
// date within the trailing window. The average divides by the requested
// window length, not by the number of active days.
func (e Engine) Productivity(ctx context.Context, actor domain.Actor, windowDays int) (domain.ProductivityReport, error) {
	if windowDays < 1 || windowDays > 365 {
		return domain.ProductivityReport{}, validationf("window must be between 1 and 365 days")
	}
	completed := true
	tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{
		OwnerID:   scope.OwnerFilter(actor),
		Completed: &completed,
	})
	if err != nil {
		return domain.ProductivityReport{}, err
	}
	now := e.now()
	windowStart := now.Add(-time.Duration(windowDays) * 24 * time.Hour)
	perDay := map[string]int{}
	total := 0
	for _, t := range tasks {
		if t.CompletedAt == nil {
			continue
		}
		done := *t.CompletedAt
		if done.Before(windowStart) || done.After(now) {
			continue
		}
		perDay[done.UTC().Format("2006-01-02")]++
		total++
	}
	report := domain.ProductivityReport{
		WindowDays:     windowDays,
		TotalCompleted: total,
		AverageDaily:   float64(total) / float64(windowDays),
	}
	dates := make([]string, 0, len(perDay))
	for d := range perDay {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	for _, d := range dates {
		report.PerDay = append(report.PerDay, domain.DayCount{Date: d, Count: perDay[d]})
	}
	return report, nil
}
