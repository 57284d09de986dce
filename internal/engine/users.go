package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"quadra/internal/auth"
	"quadra/internal/domain"
	"quadra/internal/engine/scope"
	"quadra/internal/events"
	"quadra/internal/repo"
)

// RegisterOptions are parameters for creating an account.
type RegisterOptions struct {
	Nickname string
	Email    string
	Password string
	Role     string
}

func (e Engine) RegisterUser(ctx context.Context, opts RegisterOptions) (domain.User, error) {
	nickname := strings.TrimSpace(opts.Nickname)
	email := strings.ToLower(strings.TrimSpace(opts.Email))
	if nickname == "" {
		return domain.User{}, validationf("nickname is required")
	}
	if !strings.Contains(email, "@") {
		return domain.User{}, validationf("a valid email is required")
	}
	role := opts.Role
	if role == "" {
		role = domain.RoleUser
	}
	if role != domain.RoleUser && role != domain.RoleAdmin {
		return domain.User{}, validationf("invalid role %q", role)
	}
	hash, err := auth.HashPassword(opts.Password, e.bcryptCost())
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			return domain.User{}, ValidationError{Msg: err.Error()}
		}
		return domain.User{}, err
	}
	if _, err := e.Repo.GetUserByEmail(ctx, email); err == nil {
		return domain.User{}, ConflictError{Msg: "a user with this email already exists"}
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, err
	}
	if _, err := e.Repo.GetUserByNickname(ctx, nickname); err == nil {
		return domain.User{}, ConflictError{Msg: "a user with this nickname already exists"}
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, err
	}
	u := domain.User{
		Nickname:     nickname,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    e.now().UTC(),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertUser(ctx, tx, &u); err != nil {
		return domain.User{}, err
	}
	if err := e.audit(ctx, tx, "user.registered", "user", strconv.FormatInt(u.ID, 10), u.ID, events.EventPayload{
		"nickname": u.Nickname,
	}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// Authenticate resolves an email/password pair to a user. The failure mode
// does not reveal whether the email exists.
func (e Engine) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	u, err := e.Repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.User{}, ErrInvalidCredentials
		}
		return domain.User{}, err
	}
	if !auth.VerifyPassword(password, u.PasswordHash) {
		return domain.User{}, ErrInvalidCredentials
	}
	return u, nil
}

// CurrentUser returns the full record behind an actor.
func (e Engine) CurrentUser(ctx context.Context, actor domain.Actor) (domain.User, error) {
	return e.Repo.GetUser(ctx, actor.ID)
}

// ChangePassword verifies the old password before replacing it. The new
// password must differ from the old one.
func (e Engine) ChangePassword(ctx context.Context, actor domain.Actor, oldPassword, newPassword string) error {
	u, err := e.Repo.GetUser(ctx, actor.ID)
	if err != nil {
		return err
	}
	if !auth.VerifyPassword(oldPassword, u.PasswordHash) {
		return validationf("old password is incorrect")
	}
	if oldPassword == newPassword {
		return validationf("new password must differ from the old one")
	}
	hash, err := auth.HashPassword(newPassword, e.bcryptCost())
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			return ValidationError{Msg: err.Error()}
		}
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateUserPassword(ctx, tx, u.ID, hash); err != nil {
		return err
	}
	if err := e.audit(ctx, tx, "user.password_changed", "user", strconv.FormatInt(u.ID, 10), u.ID, nil); err != nil {
		return err
	}
	return tx.Commit()
}

// ListUsers is the admin surface: every user with their task tallies.
func (e Engine) ListUsers(ctx context.Context, actor domain.Actor) ([]domain.UserWithCounts, error) {
	if err := scope.RequireAdmin(actor, "listing users"); err != nil {
		return nil, err
	}
	return e.Repo.ListUsersWithCounts(ctx)
}

// UserTasks returns every task of the given user, admin only. A missing user
// is not-found; the tasks themselves need no further scoping.
func (e Engine) UserTasks(ctx context.Context, actor domain.Actor, userID int64) ([]domain.TaskView, error) {
	if err := scope.RequireAdmin(actor, "listing another user's tasks"); err != nil {
		return nil, err
	}
	if _, err := e.Repo.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{OwnerID: &userID})
	if err != nil {
		return nil, err
	}
	return e.views(tasks, e.now()), nil
}

// CreateAPIKey mints a key for the actor and returns the plaintext once; only
// the hash is stored.
func (e Engine) CreateAPIKey(ctx context.Context, actor domain.Actor, name string) (string, domain.APIKey, error) {
	plaintext := "qk_" + uuid.NewString()
	key := domain.APIKey{
		ID:        uuid.NewString(),
		UserID:    actor.ID,
		Name:      name,
		KeyHash:   repo.HashAPIKey(plaintext),
		CreatedAt: e.now().UTC(),
	}
	if err := e.Repo.InsertAPIKey(ctx, nil, key); err != nil {
		return "", domain.APIKey{}, fmt.Errorf("insert api key: %w", err)
	}
	return plaintext, key, nil
}

func (e Engine) bcryptCost() int {
	if e.Config != nil {
		return e.Config.Auth.BcryptCost
	}
	return 0
}
