package domain

import "time"

// Roles understood by the visibility policy.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Actor is the authenticated identity performing an operation.
type Actor struct {
	ID   int64  `json:"id"`
	Role string `json:"role" enum:"user,admin"`
}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

type User struct {
	ID           int64     `json:"id"`
	Nickname     string    `json:"nickname"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role" enum:"user,admin"`
	CreatedAt    time.Time `json:"created_at" format:"date-time"`
}

func (u User) Actor() Actor { return Actor{ID: u.ID, Role: u.Role} }

type Task struct {
	ID          int64      `json:"id"`
	OwnerID     int64      `json:"owner_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	IsImportant bool       `json:"is_important"`
	Quadrant    string     `json:"quadrant" enum:"Q1,Q2,Q3,Q4"`
	Completed   bool       `json:"completed"`
	CreatedAt   time.Time  `json:"created_at" format:"date-time"`
	CompletedAt *time.Time `json:"completed_at,omitempty" format:"date-time"`
	DeadlineAt  *time.Time `json:"deadline_at,omitempty" format:"date-time"`
}

// TaskView is a Task plus the clock-relative fields recomputed at read time.
// The stored Quadrant is a write-time snapshot and may disagree with IsUrgent
// once time has passed without a write.
type TaskView struct {
	Task
	IsUrgent          bool `json:"is_urgent"`
	DaysUntilDeadline *int `json:"days_until_deadline,omitempty"`
	IsOverdue         bool `json:"is_overdue"`
}

// DeletedTask is the confirmation summary returned by Delete.
type DeletedTask struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// UserWithCounts is the admin listing row: a user plus task tallies.
type UserWithCounts struct {
	ID             int64  `json:"id"`
	Nickname       string `json:"nickname"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	TaskCount      int    `json:"task_count"`
	CompletedTasks int    `json:"completed_tasks"`
	PendingTasks   int    `json:"pending_tasks"`
}

type DeadlineStats struct {
	WithDeadline    int `json:"with_deadline"`
	WithoutDeadline int `json:"without_deadline"`
	Urgent          int `json:"urgent"`
	Overdue         int `json:"overdue"`
}

type Stats struct {
	TotalTasks int            `json:"total_tasks"`
	ByQuadrant map[string]int `json:"by_quadrant"`
	ByStatus   map[string]int `json:"by_status"`
	Deadlines  DeadlineStats  `json:"deadlines"`
}

type DayCount struct {
	Date  string `json:"date" format:"date"`
	Count int    `json:"count"`
}

type ProductivityReport struct {
	WindowDays     int        `json:"window_days"`
	TotalCompleted int        `json:"total_completed"`
	AverageDaily   float64    `json:"average_daily"`
	PerDay         []DayCount `json:"per_day"`
}

type APIKey struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name,omitempty"`
	KeyHash   string    `json:"key_hash"`
	CreatedAt time.Time `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    int64  `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
