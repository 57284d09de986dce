package repo

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"quadra/internal/domain"
)

const userColumns = `id, nickname, email, password_hash, role, created_at`

func scanUser(row interface{ Scan(dest ...any) error }) (domain.User, error) {
	var (
		u         domain.User
		createdAt string
	)
	err := row.Scan(&u.ID, &u.Nickname, &u.Email, &u.PasswordHash, &u.Role, &createdAt)
	if err == sql.ErrNoRows {
		return u, ErrNotFound
	}
	if err != nil {
		return u, err
	}
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return u, fmt.Errorf("user %d created_at: %w", u.ID, err)
	}
	return u, nil
}

// InsertUser stores a new user and fills in its assigned id.
func (r Repo) InsertUser(ctx context.Context, tx *sql.Tx, u *domain.User) error {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO users(nickname, email, password_hash, role, created_at) VALUES (?,?,?,?,?)`,
		u.Nickname, u.Email, u.PasswordHash, u.Role, formatTime(u.CreatedAt))
	if err != nil {
		return err
	}
	u.ID, err = res.LastInsertId()
	return err
}

func (r Repo) GetUser(ctx context.Context, id int64) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id))
}

func (r Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=?`, strings.ToLower(strings.TrimSpace(email))))
}

func (r Repo) GetUserByNickname(ctx context.Context, nickname string) (domain.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE nickname=?`, nickname))
}

func (r Repo) UpdateUserPassword(ctx context.Context, tx *sql.Tx, id int64, passwordHash string) error {
	res, err := tx.ExecContext(ctx, `UPDATE users SET password_hash=? WHERE id=?`, passwordHash, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) UpdateUserRole(ctx context.Context, id int64, role string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE users SET role=? WHERE id=?`, role, id)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListUsersWithCounts returns every user joined with task tallies, for the
// admin listing.
func (r Repo) ListUsersWithCounts(ctx context.Context) ([]domain.UserWithCounts, error) {
	rows, err := r.DB.QueryContext(ctx, `
SELECT u.id, u.nickname, u.email, u.role,
       COUNT(t.id) AS task_count,
       COALESCE(SUM(CASE WHEN t.completed THEN 1 ELSE 0 END), 0) AS completed_tasks
FROM users u
LEFT JOIN tasks t ON t.owner_id = u.id
GROUP BY u.id
ORDER BY u.id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.UserWithCounts
	for rows.Next() {
		var u domain.UserWithCounts
		if err := rows.Scan(&u.ID, &u.Nickname, &u.Email, &u.Role, &u.TaskCount, &u.CompletedTasks); err != nil {
			return nil, err
		}
		u.PendingTasks = u.TaskCount - u.CompletedTasks
		res = append(res, u)
	}
	return res, rows.Err()
}
