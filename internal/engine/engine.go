package engine

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"quadra/internal/classify"
	"quadra/internal/config"
	"quadra/internal/domain"
	"quadra/internal/engine/scope"
	"quadra/internal/events"
	"quadra/internal/repo"
)

const maxTitleLength = 256

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// view attaches the clock-relative fields to a stored task. Every read path
// goes through here so urgency and days-remaining always reflect the request
// clock, never a stored value.
func (e Engine) view(t domain.Task, now time.Time) domain.TaskView {
	return domain.TaskView{
		Task:              t,
		IsUrgent:          classify.Urgent(t.DeadlineAt, now),
		DaysUntilDeadline: classify.DaysRemaining(t.DeadlineAt, now),
		IsOverdue:         classify.Overdue(t.DeadlineAt, t.Completed, now),
	}
}

func (e Engine) views(tasks []domain.Task, now time.Time) []domain.TaskView {
	res := make([]domain.TaskView, 0, len(tasks))
	for _, t := range tasks {
		res = append(res, e.view(t, now))
	}
	return res
}

// audit appends an event through a writer sharing the engine's clock, so
// event timestamps follow an overridden Now.
func (e Engine) audit(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID string, actorID int64, payload events.EventPayload) error {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w.Append(ctx, tx, evtType, entityKind, entityID, actorID, payload)
}

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return validationf("title is required")
	}
	n := utf8.RuneCountInString(title)
	if n > maxTitleLength {
		return validationf("title must be at most %d characters", maxTitleLength)
	}
	return nil
}

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	Title       string
	Description string
	IsImportant bool
	DeadlineAt  *time.Time
}

func (e Engine) CreateTask(ctx context.Context, actor domain.Actor, opts TaskCreateOptions) (domain.TaskView, error) {
	if err := validateTitle(opts.Title); err != nil {
		return domain.TaskView{}, err
	}
	now := e.now()
	t := domain.Task{
		OwnerID:     actor.ID,
		Title:       opts.Title,
		Description: opts.Description,
		IsImportant: opts.IsImportant,
		Quadrant:    classify.QuadrantFor(opts.IsImportant, opts.DeadlineAt, now),
		DeadlineAt:  opts.DeadlineAt,
		CreatedAt:   now.UTC(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.TaskView{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTask(ctx, tx, &t); err != nil {
		return domain.TaskView{}, err
	}
	if err := e.audit(ctx, tx, "task.created", "task", taskRef(t.ID), actor.ID, events.EventPayload{
		"title":    t.Title,
		"quadrant": t.Quadrant,
	}); err != nil {
		return domain.TaskView{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.TaskView{}, err
	}
	return e.view(t, now), nil
}

// GetTask resolves the task by id first, then authorizes: probing another
// user's task yields forbidden, a missing id yields not-found, never the
// other way around.
func (e Engine) GetTask(ctx context.Context, actor domain.Actor, id int64) (domain.TaskView, error) {
	t, err := e.Repo.GetTask(ctx, id)
	if err != nil {
		return domain.TaskView{}, err
	}
	if err := scope.Authorize(actor, t); err != nil {
		return domain.TaskView{}, err
	}
	return e.view(t, e.now()), nil
}

// TaskUpdateOptions are sparse: nil fields are left untouched. ClearDeadline
// removes the deadline; it wins over DeadlineAt when both are set.
type TaskUpdateOptions struct {
	Title         *string
	Description   *string
	IsImportant   *bool
	DeadlineAt    *time.Time
	ClearDeadline bool
}

func (e Engine) UpdateTask(ctx context.Context, actor domain.Actor, id int64, opts TaskUpdateOptions) (domain.TaskView, error) {
	if opts.Title != nil {
		if err := validateTitle(*opts.Title); err != nil {
			return domain.TaskView{}, err
		}
	}
	now := e.now()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.TaskView{}, err
	}
	defer tx.Rollback()
	t, err := e.Repo.GetTaskTx(ctx, tx, id)
	if err != nil {
		return domain.TaskView{}, err
	}
	if err := scope.Authorize(actor, t); err != nil {
		return domain.TaskView{}, err
	}
	classificationChanged := false
	if opts.Title != nil {
		t.Title = *opts.Title
	}
	if opts.Description != nil {
		t.Description = *opts.Description
	}
	if opts.IsImportant != nil {
		t.IsImportant = *opts.IsImportant
		classificationChanged = true
	}
	if opts.ClearDeadline {
		t.DeadlineAt = nil
		classificationChanged = true
	} else if opts.DeadlineAt != nil {
		t.DeadlineAt = opts.DeadlineAt
		classificationChanged = true
	}
	if classificationChanged {
		// Write-time snapshot: the quadrant reflects the clock of this edit.
		t.Quadrant = classify.QuadrantFor(t.IsImportant, t.DeadlineAt, now)
	}
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return domain.TaskView{}, err
	}
	if err := e.audit(ctx, tx, "task.updated", "task", taskRef(t.ID), actor.ID, events.EventPayload{
		"quadrant": t.Quadrant,
	}); err != nil {
		return domain.TaskView{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.TaskView{}, err
	}
	return e.view(t, now), nil
}

// CompleteTask marks a task done. Completing an already-completed task is a
// no-op: completed_at is set exactly once and never overwritten.
func (e Engine) CompleteTask(ctx context.Context, actor domain.Actor, id int64) (domain.TaskView, error) {
	now := e.now()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.TaskView{}, err
	}
	defer tx.Rollback()
	t, err := e.Repo.GetTaskTx(ctx, tx, id)
	if err != nil {
		return domain.TaskView{}, err
	}
	if err := scope.Authorize(actor, t); err != nil {
		return domain.TaskView{}, err
	}
	if t.Completed {
		return e.view(t, now), nil
	}
	t.Completed = true
	completedAt := now.UTC()
	t.CompletedAt = &completedAt
	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return domain.TaskView{}, err
	}
	if err := e.audit(ctx, tx, "task.completed", "task", taskRef(t.ID), actor.ID, nil); err != nil {
		return domain.TaskView{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.TaskView{}, err
	}
	return e.view(t, now), nil
}

func (e Engine) DeleteTask(ctx context.Context, actor domain.Actor, id int64) (domain.DeletedTask, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.DeletedTask{}, err
	}
	defer tx.Rollback()
	t, err := e.Repo.GetTaskTx(ctx, tx, id)
	if err != nil {
		return domain.DeletedTask{}, err
	}
	if err := scope.Authorize(actor, t); err != nil {
		return domain.DeletedTask{}, err
	}
	if err := e.Repo.DeleteTask(ctx, tx, id); err != nil {
		return domain.DeletedTask{}, err
	}
	if err := e.audit(ctx, tx, "task.deleted", "task", taskRef(t.ID), actor.ID, events.EventPayload{
		"title": t.Title,
	}); err != nil {
		return domain.DeletedTask{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.DeletedTask{}, err
	}
	return domain.DeletedTask{ID: t.ID, Title: t.Title}, nil
}

func taskRef(id int64) string {
	return strconv.FormatInt(id, 10)
}

// IsNotFound reports whether err is the repository's not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound)
}
