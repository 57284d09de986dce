package scope

import (
	"errors"
	"testing"

	"quadra/internal/domain"
)

func TestOwnerFilter(t *testing.T) {
	admin := domain.Actor{ID: 1, Role: domain.RoleAdmin}
	if OwnerFilter(admin) != nil {
		t.Fatalf("admin scope must match all tasks")
	}
	user := domain.Actor{ID: 7, Role: domain.RoleUser}
	f := OwnerFilter(user)
	if f == nil || *f != 7 {
		t.Fatalf("user scope must narrow to own id, got %v", f)
	}
}

func TestAuthorize(t *testing.T) {
	task := domain.Task{ID: 42, OwnerID: 7}
	if err := Authorize(domain.Actor{ID: 7, Role: domain.RoleUser}, task); err != nil {
		t.Fatalf("owner must be authorized: %v", err)
	}
	if err := Authorize(domain.Actor{ID: 1, Role: domain.RoleAdmin}, task); err != nil {
		t.Fatalf("admin must be authorized: %v", err)
	}
	err := Authorize(domain.Actor{ID: 8, Role: domain.RoleUser}, task)
	var fe ForbiddenError
	if !errors.As(err, &fe) || fe.TaskID != 42 {
		t.Fatalf("expected ForbiddenError for task 42, got %v", err)
	}
}

func TestRequireAdmin(t *testing.T) {
	if err := RequireAdmin(domain.Actor{Role: domain.RoleAdmin}, "list users"); err != nil {
		t.Fatalf("admin must pass: %v", err)
	}
	if err := RequireAdmin(domain.Actor{Role: domain.RoleUser}, "list users"); err == nil {
		t.Fatalf("user must be rejected")
	}
}
