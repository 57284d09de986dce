package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quadra/internal/classify"
	"quadra/internal/config"
	"quadra/internal/db"
	"quadra/internal/domain"
	"quadra/internal/engine"
	"quadra/internal/engine/scope"
	"quadra/internal/migrate"
	"quadra/internal/repo"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	cfg.Auth.BcryptCost = 4
	eng := engine.New(conn, cfg)
	eng.Now = func() time.Time { return testNow }
	return testEnv{Engine: eng, Ctx: context.Background()}
}

func newUser(t *testing.T, env testEnv, nickname, role string) domain.Actor {
	t.Helper()
	u, err := env.Engine.RegisterUser(env.Ctx, engine.RegisterOptions{
		Nickname: nickname,
		Email:    nickname + "@example.com",
		Password: "hunter22",
		Role:     role,
	})
	if err != nil {
		t.Fatalf("register %s: %v", nickname, err)
	}
	return u.Actor()
}

func deadlineIn(d time.Duration) *time.Time {
	at := testNow.Add(d)
	return &at
}

func TestCreateTaskQuadrants(t *testing.T) {
	env := newTestEnv(t)
	actor := newUser(t, env, "alice", "")

	cases := []struct {
		name      string
		important bool
		deadline  *time.Time
		want      string
	}{
		{"important no deadline", true, nil, classify.Q2},
		{"important far deadline", true, deadlineIn(10 * 24 * time.Hour), classify.Q2},
		{"important near deadline", true, deadlineIn(48 * time.Hour), classify.Q1},
		{"unimportant near deadline", false, deadlineIn(time.Hour), classify.Q3},
		{"unimportant no deadline", false, nil, classify.Q4},
		{"important past deadline", true, deadlineIn(-time.Hour), classify.Q1},
	}
	for _, tc := range cases {
		v, err := env.Engine.CreateTask(env.Ctx, actor, engine.TaskCreateOptions{
			Title:       tc.name,
			IsImportant: tc.important,
			DeadlineAt:  tc.deadline,
		})
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if v.Quadrant != tc.want {
			t.Errorf("%s: quadrant = %s, want %s", tc.name, v.Quadrant, tc.want)
		}
	}
}

func TestCreateTaskTitleValidation(t *testing.T) {
	env := newTestEnv(t)
	actor := newUser(t, env, "alice", "")

	for _, title := range []string{"", "   "} {
		if _, err := env.Engine.CreateTask(env.Ctx, actor, engine.TaskCreateOptions{Title: title}); err == nil {
			t.Errorf("title %q: expected validation error", title)
		}
	}
	long := make([]rune, 257)
	for i := range long {
		long[i] = 'x'
	}
	if _, err := env.Engine.CreateTask(env.Ctx, actor, engine.TaskCreateOptions{Title: string(long)}); err == nil {
		t.Errorf("257-rune title: expected validation error")
	}
	if _, err := env.Engine.CreateTask(env.Ctx, actor, engine.TaskCreateOptions{Title: string(long[:256])}); err != nil {
		t.Errorf("256-rune title: %v", err)
	}
}

func TestSparseUpdate(t *testing.T) {
	env := newTestEnv(t)
	actor := newUser(t, env, "alice", "")
	v, err := env.Engine.CreateTask(env.Ctx, actor, engine.TaskCreateOptions{
		Title:       "write report",
		Description: "quarterly numbers",
		IsImportant: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if v.Quadrant != classify.Q2 {
		t.Fatalf("quadrant = %s, want Q2", v.Quadrant)
	}

	// description-only update leaves everything else alone
	desc := "quarterly numbers, final"
	v, err = env.Engine.UpdateTask(env.Ctx, actor, v.ID, engine.TaskUpdateOptions{Description: &desc})
	if err != nil {
		t.Fatal(err)
	}
	if v.Title != "write report" || !v.IsImportant || v.Quadrant != classify.Q2 {
		t.Fatalf("sparse update touched unrelated fields: %+v", v)
	}

	// importance flip recomputes the quadrant
	important := false
	v, err = env.Engine.UpdateTask(env.Ctx, actor, v.ID, engine.TaskUpdateOptions{IsImportant: &important})
	if err != nil {
		t.Fatal(err)
	}
	if v.Quadrant != classify.Q4 {
		t.Fatalf("quadrant after importance flip = %s, want Q4", v.Quadrant)
	}

	// setting a near deadline moves it to Q3
	v, err = env.Engine.UpdateTask(env.Ctx, actor, v.ID, engine.TaskUpdateOptions{DeadlineAt: deadlineIn(time.Hour)})
	if err != nil {
		t.Fatal(err)
	}
	if v.Quadrant != classify.Q3 || !v.IsUrgent {
		t.Fatalf("quadrant after deadline = %s urgent=%v, want Q3 urgent", v.Quadrant, v.IsUrgent)
	}

	// clearing the deadline drops urgency again
	v, err = env.Engine.UpdateTask(env.Ctx, actor, v.ID, engine.TaskUpdateOptions{ClearDeadline: true})
	if err != nil {
		t.Fatal(err)
	}
	if v.DeadlineAt != nil || v.Quadrant != classify.Q4 || v.IsUrgent {
		t.Fatalf("clear deadline: %+v", v)
	}
}

func TestCompleteIdempotent(t *testing.T) {
	env := newTestEnv(t)
	actor := newUser(t, env, "alice", "")
	v, err := env.Engine.CreateTask(env.Ctx, actor, engine.TaskCreateOptions{
		Title:      "pay invoice",
		DeadlineAt: deadlineIn(-48 * time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !v.IsOverdue {
		t.Fatalf("pending past deadline should be overdue")
	}

	v, err = env.Engine.CompleteTask(env.Ctx, actor, v.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !v.Completed || v.CompletedAt == nil {
		t.Fatalf("complete: %+v", v)
	}
	if v.IsOverdue {
		t.Fatalf("completed task must not be overdue")
	}
	first := *v.CompletedAt

	// second completion is a no-op, timestamp untouched
	env.Engine.Now = func() time.Time { return testNow.Add(time.Hour) }
	v, err = env.Engine.CompleteTask(env.Ctx, actor, v.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !v.CompletedAt.Equal(first) {
		t.Fatalf("completed_at moved on re-complete: %v vs %v", v.CompletedAt, first)
	}
}

func TestVisibilityScoping(t *testing.T) {
	env := newTestEnv(t)
	alice := newUser(t, env, "alice", "")
	bob := newUser(t, env, "bob", "")
	admin := newUser(t, env, "root", domain.RoleAdmin)

	v, err := env.Engine.CreateTask(env.Ctx, alice, engine.TaskCreateOptions{Title: "private"})
	if err != nil {
		t.Fatal(err)
	}

	// existing task owned by someone else: forbidden, not not-found
	_, err = env.Engine.GetTask(env.Ctx, bob, v.ID)
	var fe scope.ForbiddenError
	if !errors.As(err, &fe) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
	if _, err := env.Engine.UpdateTask(env.Ctx, bob, v.ID, engine.TaskUpdateOptions{}); !errors.As(err, &fe) {
		t.Fatalf("update: expected ForbiddenError, got %v", err)
	}
	if _, err := env.Engine.DeleteTask(env.Ctx, bob, v.ID); !errors.As(err, &fe) {
		t.Fatalf("delete: expected ForbiddenError, got %v", err)
	}

	// missing id is not-found for everyone
	if _, err := env.Engine.GetTask(env.Ctx, bob, 9999); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("missing id: expected not found, got %v", err)
	}

	// admin bypasses ownership
	if _, err := env.Engine.GetTask(env.Ctx, admin, v.ID); err != nil {
		t.Fatalf("admin get: %v", err)
	}

	// listing is scoped to the caller
	if _, err := env.Engine.CreateTask(env.Ctx, bob, engine.TaskCreateOptions{Title: "bob's"}); err != nil {
		t.Fatal(err)
	}
	own, err := env.Engine.ListTasks(env.Ctx, alice, engine.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(own) != 1 || own[0].OwnerID != alice.ID {
		t.Fatalf("alice sees %d tasks", len(own))
	}
	all, err := env.Engine.ListTasks(env.Ctx, admin, engine.ListOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("admin sees %d tasks, want 2", len(all))
	}
}

func TestAdminOnlySurfaces(t *testing.T) {
	env := newTestEnv(t)
	alice := newUser(t, env, "alice", "")
	admin := newUser(t, env, "root", domain.RoleAdmin)

	var ae scope.AdminOnlyError
	if _, err := env.Engine.ListUsers(env.Ctx, alice); !errors.As(err, &ae) {
		t.Fatalf("list users as user: %v", err)
	}
	if _, err := env.Engine.UserTasks(env.Ctx, alice, admin.ID); !errors.As(err, &ae) {
		t.Fatalf("user tasks as user: %v", err)
	}

	if _, err := env.Engine.CreateTask(env.Ctx, alice, engine.TaskCreateOptions{Title: "x"}); err != nil {
		t.Fatal(err)
	}
	users, err := env.Engine.ListUsers(env.Ctx, admin)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 2 {
		t.Fatalf("got %d users", len(users))
	}
	for _, u := range users {
		if u.Nickname == "alice" && (u.TaskCount != 1 || u.PendingTasks != 1) {
			t.Fatalf("alice counts: %+v", u)
		}
	}
	if _, err := env.Engine.UserTasks(env.Ctx, admin, 9999); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("tasks of missing user: %v", err)
	}
}

func TestListFiltersAndSearch(t *testing.T) {
	env := newTestEnv(t)
	actor := newUser(t, env, "alice", "")

	mk := func(title, desc string, important bool, deadline *time.Time) domain.TaskView {
		t.Helper()
		v, err := env.Engine.CreateTask(env.Ctx, actor, engine.TaskCreateOptions{
			Title: title, Description: desc, IsImportant: important, DeadlineAt: deadline,
		})
		if err != nil {
			t.Fatal(err)
		}
		return v
	}
	mk("ship release", "deploy build", true, deadlineIn(time.Hour))
	mk("plan roadmap", "next quarter", true, nil)
	done := mk("sweep floor", "", false, nil)
	if _, err := env.Engine.CompleteTask(env.Ctx, actor, done.ID); err != nil {
		t.Fatal(err)
	}

	q1, err := env.Engine.ListTasks(env.Ctx, actor, engine.ListOptions{Quadrant: classify.Q1})
	if err != nil || len(q1) != 1 {
		t.Fatalf("Q1 filter: %v len=%d", err, len(q1))
	}
	pending, err := env.Engine.ListTasks(env.Ctx, actor, engine.ListOptions{Status: engine.StatusPending})
	if err != nil || len(pending) != 2 {
		t.Fatalf("pending filter: %v len=%d", err, len(pending))
	}
	completed, err := env.Engine.ListTasks(env.Ctx, actor, engine.ListOptions{Status: engine.StatusCompleted})
	if err != nil || len(completed) != 1 {
		t.Fatalf("completed filter: %v len=%d", err, len(completed))
	}

	if _, err := env.Engine.ListTasks(env.Ctx, actor, engine.ListOptions{Quadrant: "Q5"}); err == nil {
		t.Fatalf("expected error for unknown quadrant")
	}
	if _, err := env.Engine.ListTasks(env.Ctx, actor, engine.ListOptions{Status: "archived"}); err == nil {
		t.Fatalf("expected error for unknown status")
	}
	if _, err := env.Engine.ListTasks(env.Ctx, actor, engine.ListOptions{Search: "x"}); err == nil {
		t.Fatalf("expected error for one-rune search")
	}

	// matches both title and description, case-insensitive
	hits, err := env.Engine.ListTasks(env.Ctx, actor, engine.ListOptions{Search: "DEPLOY"})
	if err != nil || len(hits) != 1 || hits[0].Title != "ship release" {
		t.Fatalf("search: %v len=%d", err, len(hits))
	}
}

func TestSearchUnicodeAndLiterals(t *testing.T) {
	env := newTestEnv(t)
	actor := newUser(t, env, "alice", "")

	for _, title := range []string{"Сдать Проект по FastAPI", "hit 100% coverage", "snake_case cleanup"} {
		if _, err := env.Engine.CreateTask(env.Ctx, actor, engine.TaskCreateOptions{Title: title}); err != nil {
			t.Fatal(err)
		}
	}

	// Cyrillic, exact case
	hits, err := env.Engine.ListTasks(env.Ctx, actor, engine.ListOptions{Search: "Проект"})
	if err != nil || len(hits) != 1 || hits[0].Title != "Сдать Проект по FastAPI" {
		t.Fatalf("exact-case Cyrillic: %v len=%d", err, len(hits))
	}
	// Cyrillic, folded case
	hits, err = env.Engine.ListTasks(env.Ctx, actor, engine.ListOptions{Search: "проект"})
	if err != nil || len(hits) != 1 {
		t.Fatalf("folded Cyrillic: %v len=%d", err, len(hits))
	}

	// % and _ are literal characters, not wildcards
	hits, err = env.Engine.ListTasks(env.Ctx, actor, engine.ListOptions{Search: "100%"})
	if err != nil || len(hits) != 1 || hits[0].Title != "hit 100% coverage" {
		t.Fatalf("percent literal: %v len=%d", err, len(hits))
	}
	hits, err = env.Engine.ListTasks(env.Ctx, actor, engine.ListOptions{Search: "e_c"})
	if err != nil || len(hits) != 1 || hits[0].Title != "snake_case cleanup" {
		t.Fatalf("underscore literal: %v len=%d", err, len(hits))
	}
	hits, err = env.Engine.ListTasks(env.Ctx, actor, engine.ListOptions{Search: "a%b"})
	if err != nil || len(hits) != 0 {
		t.Fatalf("wildcard-looking query matched: len=%d", len(hits))
	}
}

func TestStats(t *testing.T) {
	env := newTestEnv(t)
	actor := newUser(t, env, "alice", "")

	mk := func(important bool, deadline *time.Time) domain.TaskView {
		t.Helper()
		v, err := env.Engine.CreateTask(env.Ctx, actor, engine.TaskCreateOptions{
			Title: "t", IsImportant: important, DeadlineAt: deadline,
		})
		if err != nil {
			t.Fatal(err)
		}
		return v
	}
	mk(true, deadlineIn(time.Hour))            // Q1, urgent
	mk(true, nil)                              // Q2
	mk(false, deadlineIn(-24*time.Hour))       // Q3, urgent + overdue
	done := mk(false, nil)                     // Q4
	if _, err := env.Engine.CompleteTask(env.Ctx, actor, done.ID); err != nil {
		t.Fatal(err)
	}

	stats, err := env.Engine.Stats(env.Ctx, actor)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalTasks != 4 {
		t.Fatalf("total = %d", stats.TotalTasks)
	}
	for q, want := range map[string]int{classify.Q1: 1, classify.Q2: 1, classify.Q3: 1, classify.Q4: 1} {
		if stats.ByQuadrant[q] != want {
			t.Errorf("by_quadrant[%s] = %d, want %d", q, stats.ByQuadrant[q], want)
		}
	}
	if stats.ByStatus[engine.StatusPending] != 3 || stats.ByStatus[engine.StatusCompleted] != 1 {
		t.Fatalf("by_status: %+v", stats.ByStatus)
	}
	d := stats.Deadlines
	if d.WithDeadline != 2 || d.WithoutDeadline != 2 || d.Urgent != 2 || d.Overdue != 1 {
		t.Fatalf("deadlines: %+v", d)
	}
}

func TestUrgentOrdering(t *testing.T) {
	env := newTestEnv(t)
	actor := newUser(t, env, "alice", "")

	mk := func(title string, deadline *time.Time) {
		t.Helper()
		if _, err := env.Engine.CreateTask(env.Ctx, actor, engine.TaskCreateOptions{Title: title, DeadlineAt: deadline}); err != nil {
			t.Fatal(err)
		}
	}
	mk("soon", deadlineIn(26*time.Hour))
	mk("overdue", deadlineIn(-2*time.Hour))
	mk("later", deadlineIn(70*time.Hour))
	mk("calm", deadlineIn(30*24*time.Hour))
	mk("open-ended", nil)

	urgent, err := env.Engine.UrgentTasks(env.Ctx, actor)
	if err != nil {
		t.Fatal(err)
	}
	got := make([]string, 0, len(urgent))
	for _, v := range urgent {
		got = append(got, v.Title)
	}
	want := []string{"overdue", "soon", "later"}
	if len(got) != len(want) {
		t.Fatalf("urgent = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("urgent = %v, want %v", got, want)
		}
	}
}

func TestDeadlinesListing(t *testing.T) {
	env := newTestEnv(t)
	actor := newUser(t, env, "alice", "")

	later, err := env.Engine.CreateTask(env.Ctx, actor, engine.TaskCreateOptions{Title: "later", DeadlineAt: deadlineIn(96 * time.Hour)})
	if err != nil {
		t.Fatal(err)
	}
	_ = later
	if _, err := env.Engine.CreateTask(env.Ctx, actor, engine.TaskCreateOptions{Title: "sooner", DeadlineAt: deadlineIn(2 * time.Hour)}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CreateTask(env.Ctx, actor, engine.TaskCreateOptions{Title: "no deadline"}); err != nil {
		t.Fatal(err)
	}

	list, err := env.Engine.Deadlines(env.Ctx, actor)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].Title != "sooner" || list[1].Title != "later" {
		t.Fatalf("deadlines order: %+v", list)
	}
}

func TestProductivity(t *testing.T) {
	env := newTestEnv(t)
	actor := newUser(t, env, "alice", "")

	completeAt := func(at time.Time) {
		t.Helper()
		v, err := env.Engine.CreateTask(env.Ctx, actor, engine.TaskCreateOptions{Title: "t"})
		if err != nil {
			t.Fatal(err)
		}
		env.Engine.Now = func() time.Time { return at }
		if _, err := env.Engine.CompleteTask(env.Ctx, actor, v.ID); err != nil {
			t.Fatal(err)
		}
		env.Engine.Now = func() time.Time { return testNow }
	}
	twoDaysAgo := testNow.Add(-2 * 24 * time.Hour)
	completeAt(twoDaysAgo)
	completeAt(twoDaysAgo)
	completeAt(twoDaysAgo)
	completeAt(testNow.Add(-6 * 24 * time.Hour))
	completeAt(testNow.Add(-10 * 24 * time.Hour)) // outside the window

	report, err := env.Engine.Productivity(env.Ctx, actor, 7)
	if err != nil {
		t.Fatal(err)
	}
	if report.WindowDays != 7 || report.TotalCompleted != 4 {
		t.Fatalf("report: %+v", report)
	}
	if want := 4.0 / 7.0; report.AverageDaily != want {
		t.Fatalf("average = %v, want %v", report.AverageDaily, want)
	}
	byDate := map[string]int{}
	for _, d := range report.PerDay {
		byDate[d.Date] = d.Count
	}
	if byDate[twoDaysAgo.UTC().Format("2006-01-02")] != 3 {
		t.Fatalf("per_day: %+v", report.PerDay)
	}

	if _, err := env.Engine.Productivity(env.Ctx, actor, 0); err == nil {
		t.Fatalf("expected error for zero window")
	}
	if _, err := env.Engine.Productivity(env.Ctx, actor, 400); err == nil {
		t.Fatalf("expected error for oversized window")
	}
}

func TestAccountLifecycle(t *testing.T) {
	env := newTestEnv(t)
	u, err := env.Engine.RegisterUser(env.Ctx, engine.RegisterOptions{
		Nickname: "alice",
		Email:    "Alice@Example.com",
		Password: "hunter22",
	})
	if err != nil {
		t.Fatal(err)
	}
	if u.Email != "alice@example.com" {
		t.Fatalf("email not normalized: %s", u.Email)
	}

	var ce engine.ConflictError
	if _, err := env.Engine.RegisterUser(env.Ctx, engine.RegisterOptions{
		Nickname: "alice2", Email: "alice@example.com", Password: "hunter22",
	}); !errors.As(err, &ce) {
		t.Fatalf("duplicate email: %v", err)
	}
	if _, err := env.Engine.RegisterUser(env.Ctx, engine.RegisterOptions{
		Nickname: "alice", Email: "other@example.com", Password: "hunter22",
	}); !errors.As(err, &ce) {
		t.Fatalf("duplicate nickname: %v", err)
	}

	if _, err := env.Engine.Authenticate(env.Ctx, "alice@example.com", "wrong"); !errors.Is(err, engine.ErrInvalidCredentials) {
		t.Fatalf("bad password: %v", err)
	}
	if _, err := env.Engine.Authenticate(env.Ctx, "nobody@example.com", "hunter22"); !errors.Is(err, engine.ErrInvalidCredentials) {
		t.Fatalf("unknown email: %v", err)
	}
	got, err := env.Engine.Authenticate(env.Ctx, "alice@example.com", "hunter22")
	if err != nil || got.ID != u.ID {
		t.Fatalf("authenticate: %v", err)
	}

	actor := u.Actor()
	if err := env.Engine.ChangePassword(env.Ctx, actor, "wrong", "newpass77"); err == nil {
		t.Fatalf("expected error for wrong old password")
	}
	if err := env.Engine.ChangePassword(env.Ctx, actor, "hunter22", "hunter22"); err == nil {
		t.Fatalf("expected error for password reuse")
	}
	if err := env.Engine.ChangePassword(env.Ctx, actor, "hunter22", "newpass77"); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.Authenticate(env.Ctx, "alice@example.com", "hunter22"); err == nil {
		t.Fatalf("old password still works")
	}
	if _, err := env.Engine.Authenticate(env.Ctx, "alice@example.com", "newpass77"); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
}

func TestEventTrail(t *testing.T) {
	env := newTestEnv(t)
	actor := newUser(t, env, "alice", "")
	v, err := env.Engine.CreateTask(env.Ctx, actor, engine.TaskCreateOptions{Title: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.CompleteTask(env.Ctx, actor, v.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.DeleteTask(env.Ctx, actor, v.ID); err != nil {
		t.Fatal(err)
	}

	events, err := env.Engine.Repo.LatestEvents(env.Ctx, 10, "", "", actor.ID)
	if err != nil {
		t.Fatal(err)
	}
	// newest first: deleted, completed, created, registered
	want := []string{"task.deleted", "task.completed", "task.created", "user.registered"}
	if len(events) != len(want) {
		t.Fatalf("got %d events: %+v", len(events), events)
	}
	for i, ev := range events {
		if ev.Type != want[i] {
			t.Fatalf("event[%d] = %s, want %s", i, ev.Type, want[i])
		}
		// timestamps come from the engine clock, not the wall clock
		if ev.TS != testNow.Format(time.RFC3339) {
			t.Fatalf("event[%d] ts = %s, want %s", i, ev.TS, testNow.Format(time.RFC3339))
		}
	}
}
