// Package scope is the visibility policy: the single place deciding which
// tasks an actor may see or touch. Two capability sets exist, admin (sees
// everything) and owner-scoped (sees own tasks only); every list, fetch and
// mutation consults this package instead of re-deriving role branches.
package scope

import (
	"fmt"

	"quadra/internal/domain"
)

// ForbiddenError indicates the task exists but the actor lacks rights to it.
// Distinct from not-found: callers must be able to tell the two apart.
type ForbiddenError struct {
	TaskID int64
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("task %d is not accessible to this actor", e.TaskID)
}

// AdminOnlyError indicates an operation reserved to the admin role.
type AdminOnlyError struct {
	Operation string
}

func (e AdminOnlyError) Error() string {
	return fmt.Sprintf("%s requires the admin role", e.Operation)
}

// OwnerFilter returns the owner id list queries must be narrowed to, or nil
// when the actor may see every task.
func OwnerFilter(actor domain.Actor) *int64 {
	if actor.IsAdmin() {
		return nil
	}
	id := actor.ID
	return &id
}

// Allows reports whether the actor may operate on a task owned by ownerID.
func Allows(actor domain.Actor, ownerID int64) bool {
	return actor.IsAdmin() || actor.ID == ownerID
}

// Authorize is the post-fetch guard for single-item operations. The caller
// resolves the task first (existence check), then authorizes; a failure here
// therefore always means forbidden, never not-found.
func Authorize(actor domain.Actor, task domain.Task) error {
	if !Allows(actor, task.OwnerID) {
		return ForbiddenError{TaskID: task.ID}
	}
	return nil
}

// RequireAdmin guards admin-only surfaces such as the user listing.
func RequireAdmin(actor domain.Actor, operation string) error {
	if !actor.IsAdmin() {
		return AdminOnlyError{Operation: operation}
	}
	return nil
}
