package server

import (
	"encoding/json"
	"time"

	"quadra/internal/domain"
)

// Request payloads

type RegisterRequest struct {
	Nickname string `json:"nickname" minLength:"1" maxLength:"64"`
	Email    string `json:"email" format:"email"`
	Password string `json:"password" minLength:"6"`
}

type LoginRequest struct {
	Email    string `json:"email" format:"email"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" minLength:"6"`
	NewPassword string `json:"new_password" minLength:"6"`
}

type CreateTaskRequest struct {
	Title       string     `json:"title" minLength:"1" maxLength:"256"`
	Description *string    `json:"description,omitempty"`
	IsImportant bool       `json:"is_important,omitempty"`
	DeadlineAt  *time.Time `json:"deadline_at,omitempty" format:"date-time"`
}

// UpdateTaskRequest is sparse: absent fields leave the task untouched.
// clear_deadline removes an existing deadline, since JSON null cannot be
// told apart from an absent field here.
type UpdateTaskRequest struct {
	Title         *string    `json:"title,omitempty" minLength:"1" maxLength:"256"`
	Description   *string    `json:"description,omitempty"`
	IsImportant   *bool      `json:"is_important,omitempty"`
	DeadlineAt    *time.Time `json:"deadline_at,omitempty" format:"date-time"`
	ClearDeadline bool       `json:"clear_deadline,omitempty"`
}

// Response payloads

type UserResponse struct {
	ID        int64     `json:"id"`
	Nickname  string    `json:"nickname"`
	Email     string    `json:"email"`
	Role      string    `json:"role" enum:"user,admin"`
	CreatedAt time.Time `json:"created_at" format:"date-time"`
}

type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type" example:"bearer"`
}

type ChangePasswordResponse struct {
	Message  string `json:"message"`
	Nickname string `json:"nickname"`
}

// TaskResponse always carries is_urgent and days_until_deadline freshly
// computed at response time; quadrant stays the write-time snapshot.
type TaskResponse struct {
	ID                int64      `json:"id"`
	OwnerID           int64      `json:"owner_id"`
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	IsImportant       bool       `json:"is_important"`
	Quadrant          string     `json:"quadrant" enum:"Q1,Q2,Q3,Q4"`
	Completed         bool       `json:"completed"`
	CreatedAt         time.Time  `json:"created_at" format:"date-time"`
	CompletedAt       *time.Time `json:"completed_at,omitempty" format:"date-time"`
	DeadlineAt        *time.Time `json:"deadline_at,omitempty" format:"date-time"`
	IsUrgent          bool       `json:"is_urgent"`
	DaysUntilDeadline *int       `json:"days_until_deadline,omitempty"`
	IsOverdue         bool       `json:"is_overdue"`
}

type TaskListResponse struct {
	Count int            `json:"count"`
	Tasks []TaskResponse `json:"tasks"`
}

type SearchResponse struct {
	Query string         `json:"query"`
	Count int            `json:"count"`
	Tasks []TaskResponse `json:"tasks"`
}

func userResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Nickname:  u.Nickname,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

func taskResponse(v domain.TaskView) TaskResponse {
	return TaskResponse{
		ID:                v.ID,
		OwnerID:           v.OwnerID,
		Title:             v.Title,
		Description:       v.Description,
		IsImportant:       v.IsImportant,
		Quadrant:          v.Quadrant,
		Completed:         v.Completed,
		CreatedAt:         v.CreatedAt,
		CompletedAt:       v.CompletedAt,
		DeadlineAt:        v.DeadlineAt,
		IsUrgent:          v.IsUrgent,
		DaysUntilDeadline: v.DaysUntilDeadline,
		IsOverdue:         v.IsOverdue,
	}
}

func mapTasks(views []domain.TaskView) []TaskResponse {
	res := make([]TaskResponse, 0, len(views))
	for _, v := range views {
		res = append(res, taskResponse(v))
	}
	return res
}

type DeleteTaskResponse struct {
	Message string `json:"message" example:"task deleted"`
	ID      int64  `json:"id"`
	Title   string `json:"title"`
}

type StatsResponse struct {
	TotalTasks int                  `json:"total_tasks"`
	ByQuadrant map[string]int       `json:"by_quadrant"`
	ByStatus   map[string]int       `json:"by_status"`
	Deadlines  domain.DeadlineStats `json:"deadlines"`
}

type ProductivityResponse struct {
	WindowDays     int               `json:"window_days"`
	TotalCompleted int               `json:"total_completed"`
	AverageDaily   float64           `json:"average_daily"`
	PerDay         []domain.DayCount `json:"per_day"`
}

type UserWithCountsResponse struct {
	ID             int64  `json:"id"`
	Nickname       string `json:"nickname"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	TaskCount      int    `json:"task_count"`
	CompletedTasks int    `json:"completed_tasks"`
	PendingTasks   int    `json:"pending_tasks"`
}

type EventResponse struct {
	ID         int64           `json:"id"`
	TS         string          `json:"ts" format:"date-time"`
	Type       string          `json:"type"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	ActorID    int64           `json:"actor_id"`
	Payload    json.RawMessage `json:"payload" jsonschema:"type=object,additionalProperties=true"`
}
