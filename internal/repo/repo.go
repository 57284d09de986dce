package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"quadra/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const taskColumns = `id, owner_id, title, COALESCE(description,'') AS description, is_important, quadrant, completed, completed_at, deadline_at, created_at`

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func scanTask(row interface{ Scan(dest ...any) error }) (domain.Task, error) {
	var (
		t                       domain.Task
		completedAt, deadlineAt sql.NullString
		createdAt               string
	)
	err := row.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Description, &t.IsImportant, &t.Quadrant, &t.Completed, &completedAt, &deadlineAt, &createdAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return t, fmt.Errorf("task %d created_at: %w", t.ID, err)
	}
	if completedAt.Valid {
		ts, err := parseTime(completedAt.String)
		if err != nil {
			return t, fmt.Errorf("task %d completed_at: %w", t.ID, err)
		}
		t.CompletedAt = &ts
	}
	if deadlineAt.Valid {
		ts, err := parseTime(deadlineAt.String)
		if err != nil {
			return t, fmt.Errorf("task %d deadline_at: %w", t.ID, err)
		}
		t.DeadlineAt = &ts
	}
	return t, nil
}

// InsertTask stores a new task and fills in its assigned id.
func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t *domain.Task) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO tasks(owner_id, title, description, is_important, quadrant, completed, completed_at, deadline_at, created_at)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		t.OwnerID, t.Title, nullable(t.Description), t.IsImportant, t.Quadrant, t.Completed,
		formatTimePtr(t.CompletedAt), formatTimePtr(t.DeadlineAt), formatTime(t.CreatedAt))
	if err != nil {
		return err
	}
	t.ID, err = res.LastInsertId()
	return err
}

// UpdateTask persists all mutable fields of an existing task.
func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE tasks SET title=?, description=?, is_important=?, quadrant=?, completed=?, completed_at=?, deadline_at=? WHERE id=?`,
		t.Title, nullable(t.Description), t.IsImportant, t.Quadrant, t.Completed,
		formatTimePtr(t.CompletedAt), formatTimePtr(t.DeadlineAt), t.ID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	return scanTask(r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id int64) (domain.Task, error) {
	return scanTask(tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
}

func (r Repo) DeleteTask(ctx context.Context, tx *sql.Tx, id int64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id=?`, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// TaskFilters narrow ListTasks. A nil OwnerID matches every owner (the admin
// scope); the remaining fields are optional refinements.
type TaskFilters struct {
	OwnerID         *int64
	Quadrant        string
	Completed       *bool
	Search          string
	WithDeadline    bool
	OrderByDeadline bool
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	var (
		where []string
		args  []any
	)
	if f.OwnerID != nil {
		where = append(where, "owner_id=?")
		args = append(args, *f.OwnerID)
	}
	if f.Quadrant != "" {
		where = append(where, "quadrant=?")
		args = append(args, f.Quadrant)
	}
	if f.Completed != nil {
		where = append(where, "completed=?")
		args = append(args, *f.Completed)
	}
	if f.WithDeadline {
		where = append(where, "deadline_at IS NOT NULL")
	}
	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	if f.OrderByDeadline {
		query += ` ORDER BY deadline_at ASC, id ASC`
	} else {
		query += ` ORDER BY id ASC`
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tasks []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Substring matching happens here rather than in SQL: SQLite's LOWER only
	// folds ASCII, and LIKE would treat % and _ in the query as wildcards.
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		matched := tasks[:0]
		for _, t := range tasks {
			if strings.Contains(strings.ToLower(t.Title), needle) ||
				strings.Contains(strings.ToLower(t.Description), needle) {
				matched = append(matched, t)
			}
		}
		tasks = matched
	}
	return tasks, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
