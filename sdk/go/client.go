package quadrasdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Quadra HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Task represents the API task model.
type Task struct {
	ID                int64      `json:"id"`
	OwnerID           int64      `json:"owner_id"`
	Title             string     `json:"title"`
	Description       string     `json:"description,omitempty"`
	IsImportant       bool       `json:"is_important"`
	Quadrant          string     `json:"quadrant"`
	Completed         bool       `json:"completed"`
	CreatedAt         time.Time  `json:"created_at"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	DeadlineAt        *time.Time `json:"deadline_at,omitempty"`
	IsUrgent          bool       `json:"is_urgent"`
	DaysUntilDeadline *int       `json:"days_until_deadline,omitempty"`
	IsOverdue         bool       `json:"is_overdue"`
}

// User represents an account.
type User struct {
	ID        int64     `json:"id"`
	Nickname  string    `json:"nickname"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskList wraps list and search responses.
type TaskList struct {
	Query string `json:"query,omitempty"`
	Count int    `json:"count"`
	Tasks []Task `json:"tasks"`
}

// Stats mirrors the /stats response.
type Stats struct {
	TotalTasks int            `json:"total_tasks"`
	ByQuadrant map[string]int `json:"by_quadrant"`
	ByStatus   map[string]int `json:"by_status"`
	Deadlines  struct {
		WithDeadline    int `json:"with_deadline"`
		WithoutDeadline int `json:"without_deadline"`
		Urgent          int `json:"urgent"`
		Overdue         int `json:"overdue"`
	} `json:"deadlines"`
}

// Productivity mirrors the /stats/productivity response.
type Productivity struct {
	WindowDays     int     `json:"window_days"`
	TotalCompleted int     `json:"total_completed"`
	AverageDaily   float64 `json:"average_daily"`
	PerDay         []struct {
		Date  string `json:"date"`
		Count int    `json:"count"`
	} `json:"per_day"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, nickname, email, password string) (User, error) {
	body := map[string]any{
		"nickname": nickname,
		"email":    email,
		"password": password,
	}
	var resp User
	err := c.do(ctx, http.MethodPost, "auth/register", body, &resp)
	return resp, err
}

// Login exchanges credentials for a bearer token and stores it on the client.
func (c *Client) Login(ctx context.Context, email, password string) error {
	body := map[string]any{
		"email":    email,
		"password": password,
	}
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.do(ctx, http.MethodPost, "auth/login", body, &resp); err != nil {
		return err
	}
	c.BearerToken = resp.AccessToken
	return nil
}

// Me returns the authenticated account.
func (c *Client) Me(ctx context.Context) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodGet, "auth/me", nil, &resp)
	return resp, err
}

// CreateTask creates a task. deadline may be nil.
func (c *Client) CreateTask(ctx context.Context, title, description string, important bool, deadline *time.Time) (Task, error) {
	body := map[string]any{
		"title":        title,
		"description":  description,
		"is_important": important,
	}
	if deadline != nil {
		body["deadline_at"] = deadline
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", body, &resp)
	return resp, err
}

// Task fetches a task by id.
func (c *Client) Task(ctx context.Context, id int64) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("tasks/%d", id), nil, &resp)
	return resp, err
}

// Tasks lists the caller's visible tasks. quadrant and status filters are
// optional; pass "" to skip.
func (c *Client) Tasks(ctx context.Context, quadrant, status string) (TaskList, error) {
	endpoint := "tasks"
	q := url.Values{}
	if quadrant != "" {
		q.Set("quadrant", quadrant)
	}
	if status != "" {
		q.Set("status", status)
	}
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp TaskList
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Search matches tasks by title or description.
func (c *Client) Search(ctx context.Context, query string) (TaskList, error) {
	var resp TaskList
	endpoint := "tasks/search?q=" + url.QueryEscape(query)
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// UpdateTask patches a task; fields set in patch are applied, the rest stay.
func (c *Client) UpdateTask(ctx context.Context, id int64, patch map[string]any) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("tasks/%d", id), patch, &resp)
	return resp, err
}

// CompleteTask marks a task done.
func (c *Client) CompleteTask(ctx context.Context, id int64) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("tasks/%d/complete", id), nil, &resp)
	return resp, err
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("tasks/%d", id), nil, nil)
}

// Stats returns aggregate counts for the caller's visible tasks.
func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var resp Stats
	err := c.do(ctx, http.MethodGet, "stats", nil, &resp)
	return resp, err
}

// Urgent returns live-urgent pending tasks, soonest deadline first.
func (c *Client) Urgent(ctx context.Context) ([]Task, error) {
	var resp []Task
	err := c.do(ctx, http.MethodGet, "stats/urgent", nil, &resp)
	return resp, err
}

// Productivity returns completions per day over a trailing window.
func (c *Client) Productivity(ctx context.Context, days int) (Productivity, error) {
	var resp Productivity
	endpoint := "stats/productivity"
	if days > 0 {
		endpoint = fmt.Sprintf("%s?days=%d", endpoint, days)
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/v1/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
