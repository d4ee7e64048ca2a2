package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"pulse/internal/db"
	"pulse/internal/domain"
	"pulse/internal/engine"
	"pulse/internal/migrate"
	"pulse/internal/repo"
)

var testNow = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

type testEnv struct {
	Engine   engine.Engine
	Ctx      context.Context
	Admin    engine.Requester
	Employee engine.Requester
	Client   engine.Requester
	Project  domain.Project
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn, zerolog.Nop())
	eng.Now = func() time.Time { return testNow }
	ctx := context.Background()

	env := &testEnv{Engine: eng, Ctx: ctx}
	env.Admin = env.seedUser(t, "Ada Admin", "ada@acme.test", domain.RoleAdmin)
	env.Employee = env.seedUser(t, "Evan Employee", "evan@acme.test", domain.RoleEmployee)
	env.Client = env.seedUser(t, "Cleo Client", "cleo@client.test", domain.RoleClient)

	p, err := eng.CreateProject(ctx, env.Admin, engine.CreateProjectOptions{
		Name:        "Website Rollout",
		Description: "Marketing site rebuild",
		ClientID:    env.Client.ID,
		EmployeeIDs: []string{env.Employee.ID},
		StartDate:   "2024-01-01T00:00:00Z",
		EndDate:     "2024-04-30T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	env.Project = p
	return env
}

func (env *testEnv) seedUser(t *testing.T, name, email, role string) engine.Requester {
	t.Helper()
	u, err := env.Engine.Register(env.Ctx, engine.RegisterOptions{
		Name:     name,
		Email:    email,
		Password: "correct-horse-battery",
		Role:     role,
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", email, err)
	}
	return engine.Requester{ID: u.ID, Role: u.Role}
}

func (env *testEnv) submitCheckin(t *testing.T, title string, completion *int, confidence *int) domain.Event {
	t.Helper()
	evt, err := env.Engine.SubmitEvent(env.Ctx, engine.SubmitEventOptions{
		ProjectID: env.Project.ID,
		Requester: env.Employee,
		Type:      domain.EventCheckin,
		Title:     title,
		Checkin: &engine.CheckinFields{
			CompletionPercent: completion,
			ConfidenceLevel:   confidence,
		},
	})
	if err != nil {
		t.Fatalf("submit checkin: %v", err)
	}
	return evt
}

func TestCheckinUpdatesProgressAndHealth(t *testing.T) {
	env := newTestEnv(t)
	five, sixty := 5, 60

	if _, err := env.Engine.SubmitEvent(env.Ctx, engine.SubmitEventOptions{
		ProjectID: env.Project.ID,
		Requester: env.Client,
		Type:      domain.EventFeedback,
		Title:     "Looking great",
		Feedback:  &engine.FeedbackFields{SatisfactionRating: &five},
	}); err != nil {
		t.Fatalf("submit feedback: %v", err)
	}
	env.submitCheckin(t, "Week 9", &sixty, &five)

	p, err := env.Engine.GetProject(env.Ctx, env.Project.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if p.Progress == nil || *p.Progress != 60 {
		t.Fatalf("progress = %v, want 60", p.Progress)
	}
	// satisfaction 5 and confidence 5 with progress ahead of schedule
	if p.HealthScore != 100 {
		t.Fatalf("health = %d, want 100", p.HealthScore)
	}
	if p.Status != domain.StatusOnTrack {
		t.Fatalf("status = %s, want %s", p.Status, domain.StatusOnTrack)
	}
}

func TestCheckinRateLimit(t *testing.T) {
	env := newTestEnv(t)
	ten := 10
	env.submitCheckin(t, "First", &ten, nil)

	// 6d23h later is still inside the rolling window
	env.Engine.Now = func() time.Time { return testNow.Add(7*24*time.Hour - time.Hour) }
	_, err := env.Engine.SubmitEvent(env.Ctx, engine.SubmitEventOptions{
		ProjectID: env.Project.ID,
		Requester: env.Employee,
		Type:      domain.EventCheckin,
		Title:     "Too soon",
		Checkin:   &engine.CheckinFields{},
	})
	var conflict engine.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}

	// 7d1h later the window has passed
	env.Engine.Now = func() time.Time { return testNow.Add(7*24*time.Hour + time.Hour) }
	if _, err := env.Engine.SubmitEvent(env.Ctx, engine.SubmitEventOptions{
		ProjectID: env.Project.ID,
		Requester: env.Employee,
		Type:      domain.EventCheckin,
		Title:     "Next week",
		Checkin:   &engine.CheckinFields{},
	}); err != nil {
		t.Fatalf("expected checkin after window, got %v", err)
	}
}

func TestCheckinRateLimitScopedPerEmployee(t *testing.T) {
	env := newTestEnv(t)
	second := env.seedUser(t, "Tess Tester", "tess@acme.test", domain.RoleEmployee)
	if _, err := env.Engine.UpdateProject(env.Ctx, env.Admin, env.Project.ID, repo.UpdateProjectOptions{
		SetEmployees: true,
		EmployeeIDs:  []string{env.Employee.ID, second.ID},
	}); err != nil {
		t.Fatalf("assign second employee: %v", err)
	}

	ten := 10
	env.submitCheckin(t, "From the first", &ten, nil)

	// a teammate's check-in on the same day is not blocked
	if _, err := env.Engine.SubmitEvent(env.Ctx, engine.SubmitEventOptions{
		ProjectID: env.Project.ID,
		Requester: second,
		Type:      domain.EventCheckin,
		Title:     "From the second",
		Checkin:   &engine.CheckinFields{},
	}); err != nil {
		t.Fatalf("teammate checkin: %v", err)
	}

	// the original author is still inside their own window
	_, err := env.Engine.SubmitEvent(env.Ctx, engine.SubmitEventOptions{
		ProjectID: env.Project.ID,
		Requester: env.Employee,
		Type:      domain.EventCheckin,
		Title:     "Too soon",
		Checkin:   &engine.CheckinFields{},
	})
	var conflict engine.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError for repeat author, got %v", err)
	}
}

func TestSubmitPolicyDenials(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		name string
		req  engine.Requester
		typ  string
	}{
		{"employee feedback", env.Employee, domain.EventFeedback},
		{"client checkin", env.Client, domain.EventCheckin},
		{"client risk", env.Client, domain.EventRisk},
		{"employee status change", env.Employee, domain.EventStatusChange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := engine.SubmitEventOptions{
				ProjectID: env.Project.ID,
				Requester: tc.req,
				Type:      tc.typ,
				Title:     "denied",
			}
			switch tc.typ {
			case domain.EventRisk:
				opts.Risk = &engine.RiskFields{Severity: domain.SeverityLow}
			case domain.EventFeedback:
				opts.Feedback = &engine.FeedbackFields{}
			case domain.EventCheckin:
				opts.Checkin = &engine.CheckinFields{}
			}
			_, err := env.Engine.SubmitEvent(env.Ctx, opts)
			var denied engine.AuthorizationError
			if !errors.As(err, &denied) {
				t.Fatalf("expected AuthorizationError, got %v", err)
			}
		})
	}
}

func TestSubmitUnknownTypeAndMissingProject(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Engine.SubmitEvent(env.Ctx, engine.SubmitEventOptions{
		ProjectID: env.Project.ID,
		Requester: env.Admin,
		Type:      "RETRO",
		Title:     "nope",
	})
	var invalid engine.ValidationError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	_, err = env.Engine.SubmitEvent(env.Ctx, engine.SubmitEventOptions{
		ProjectID: "missing",
		Requester: env.Admin,
		Type:      domain.EventStatusChange,
		Title:     "nope",
	})
	var notFound engine.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestFlaggedFeedbackOpensRisk(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.Engine.SubmitEvent(env.Ctx, engine.SubmitEventOptions{
		ProjectID: env.Project.ID,
		Requester: env.Client,
		Type:      domain.EventFeedback,
		Title:     "Demo was broken",
		Feedback:  &engine.FeedbackFields{FlagIssue: true},
	}); err != nil {
		t.Fatalf("submit feedback: %v", err)
	}

	events, err := env.Engine.ListEvents(env.Ctx, env.Project.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	var risks []domain.Event
	for _, e := range events {
		if e.Type == domain.EventRisk {
			risks = append(risks, e)
		}
	}
	if len(risks) != 1 {
		t.Fatalf("risk count = %d, want 1", len(risks))
	}
	r := risks[0]
	if r.Severity == nil || *r.Severity != domain.SeverityMedium {
		t.Fatalf("severity = %v, want MEDIUM", r.Severity)
	}
	if r.Mitigation == nil || *r.Mitigation != "Pending owner review" {
		t.Fatalf("mitigation = %v", r.Mitigation)
	}
	if !r.IsOpenRisk() {
		t.Fatalf("auto-created risk should be open")
	}
	if r.Title != "Demo was broken" {
		t.Fatalf("title = %q", r.Title)
	}
}

func TestResolveRiskLifecycle(t *testing.T) {
	env := newTestEnv(t)
	risk, err := env.Engine.SubmitEvent(env.Ctx, engine.SubmitEventOptions{
		ProjectID: env.Project.ID,
		Requester: env.Employee,
		Type:      domain.EventRisk,
		Title:     "Vendor API unstable",
		Risk:      &engine.RiskFields{Severity: domain.SeverityHigh, Mitigation: "Investigate"},
	})
	if err != nil {
		t.Fatalf("submit risk: %v", err)
	}

	// client cannot resolve
	_, err = env.Engine.ResolveRisk(env.Ctx, env.Project.ID, risk.ID, env.Client, engine.ResolveRiskOptions{})
	var denied engine.AuthorizationError
	if !errors.As(err, &denied) {
		t.Fatalf("expected AuthorizationError for client, got %v", err)
	}

	mitigation := "Switched to fallback vendor"
	resolved, err := env.Engine.ResolveRisk(env.Ctx, env.Project.ID, risk.ID, env.Employee, engine.ResolveRiskOptions{Mitigation: &mitigation})
	if err != nil {
		t.Fatalf("resolve risk: %v", err)
	}
	if resolved.RiskStatus == nil || *resolved.RiskStatus != domain.RiskResolved {
		t.Fatalf("risk status = %v, want RESOLVED", resolved.RiskStatus)
	}
	if resolved.Mitigation == nil || *resolved.Mitigation != mitigation {
		t.Fatalf("mitigation = %v, want %q", resolved.Mitigation, mitigation)
	}

	events, err := env.Engine.ListEvents(env.Ctx, env.Project.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	found := false
	for _, e := range events {
		if e.Type == domain.EventStatusChange && e.Title == "Risk Resolved: Vendor API unstable" {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing resolution audit entry")
	}

	// resolving again is an idempotent success and still writes its own audit entry
	if _, err := env.Engine.ResolveRisk(env.Ctx, env.Project.ID, risk.ID, env.Admin, engine.ResolveRiskOptions{}); err != nil {
		t.Fatalf("re-resolve: %v", err)
	}
	events, err = env.Engine.ListEvents(env.Ctx, env.Project.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	audits := 0
	for _, e := range events {
		if e.Type == domain.EventStatusChange && e.Title == "Risk Resolved: Vendor API unstable" {
			audits++
		}
	}
	if audits != 2 {
		t.Fatalf("resolution audit entries = %d, want 2", audits)
	}
}

func TestResolveRejectsNonRiskAndUnknown(t *testing.T) {
	env := newTestEnv(t)
	ten := 10
	checkin := env.submitCheckin(t, "Week 1", &ten, nil)

	_, err := env.Engine.ResolveRisk(env.Ctx, env.Project.ID, checkin.ID, env.Admin, engine.ResolveRiskOptions{})
	var invalid engine.ValidationError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	_, err = env.Engine.ResolveRisk(env.Ctx, env.Project.ID, "nope", env.Admin, engine.ResolveRiskOptions{})
	var notFound engine.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}

	// event exists but belongs to another project
	other, err := env.Engine.CreateProject(env.Ctx, env.Admin, engine.CreateProjectOptions{
		Name:      "Other",
		ClientID:  env.Client.ID,
		StartDate: "2024-01-01T00:00:00Z",
		EndDate:   "2024-04-30T00:00:00Z",
	})
	if err != nil {
		t.Fatalf("create other project: %v", err)
	}
	_, err = env.Engine.ResolveRisk(env.Ctx, other.ID, checkin.ID, env.Admin, engine.ResolveRiskOptions{})
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError across projects, got %v", err)
	}
}

func TestProgressBackfillFromLatestCheckin(t *testing.T) {
	env := newTestEnv(t)
	forty := 40
	env.submitCheckin(t, "Week 5", &forty, nil)

	// wipe the denormalized value and make sure GetProject restores it
	if _, err := env.Engine.DB.Exec(`UPDATE projects SET progress=NULL WHERE id=?`, env.Project.ID); err != nil {
		t.Fatalf("clear progress: %v", err)
	}
	p, err := env.Engine.GetProject(env.Ctx, env.Project.ID)
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if p.Progress == nil || *p.Progress != 40 {
		t.Fatalf("progress = %v, want 40", p.Progress)
	}
}

func TestListProjectsRoleFiltering(t *testing.T) {
	env := newTestEnv(t)
	outsider := env.seedUser(t, "Nora Nobody", "nora@client.test", domain.RoleClient)
	if _, err := env.Engine.CreateProject(env.Ctx, env.Admin, engine.CreateProjectOptions{
		Name:      "Unrelated",
		ClientID:  outsider.ID,
		StartDate: "2024-02-01T00:00:00Z",
		EndDate:   "2024-06-01T00:00:00Z",
	}); err != nil {
		t.Fatalf("create project: %v", err)
	}

	cases := []struct {
		name string
		req  engine.Requester
		want int
	}{
		{"admin sees all", env.Admin, 2},
		{"client sees own", env.Client, 1},
		{"employee sees assigned", env.Employee, 1},
		{"outsider sees own", outsider, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			items, err := env.Engine.ListProjects(env.Ctx, tc.req)
			if err != nil {
				t.Fatalf("list projects: %v", err)
			}
			if len(items) != tc.want {
				t.Fatalf("count = %d, want %d", len(items), tc.want)
			}
		})
	}
}

func TestDeleteProjectCascades(t *testing.T) {
	env := newTestEnv(t)
	ten := 10
	env.submitCheckin(t, "Week 1", &ten, nil)

	// only admins may delete
	err := env.Engine.DeleteProject(env.Ctx, env.Employee, env.Project.ID)
	var denied engine.AuthorizationError
	if !errors.As(err, &denied) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}

	if err := env.Engine.DeleteProject(env.Ctx, env.Admin, env.Project.ID); err != nil {
		t.Fatalf("delete project: %v", err)
	}
	_, err = env.Engine.GetProject(env.Ctx, env.Project.ID)
	var notFound engine.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError after delete, got %v", err)
	}
	var n int
	if err := env.Engine.DB.QueryRow(`SELECT COUNT(*) FROM events WHERE project_id=?`, env.Project.ID).Scan(&n); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if n != 0 {
		t.Fatalf("orphaned events = %d, want 0", n)
	}
}

func TestSubmitEventValidation(t *testing.T) {
	env := newTestEnv(t)
	bad := 6
	_, err := env.Engine.SubmitEvent(env.Ctx, engine.SubmitEventOptions{
		ProjectID: env.Project.ID,
		Requester: env.Employee,
		Type:      domain.EventCheckin,
		Title:     "Week 1",
		Checkin:   &engine.CheckinFields{ConfidenceLevel: &bad},
	})
	var invalid engine.ValidationError
	if !errors.As(err, &invalid) {
		t.Fatalf("confidence 6: expected ValidationError, got %v", err)
	}

	_, err = env.Engine.SubmitEvent(env.Ctx, engine.SubmitEventOptions{
		ProjectID: env.Project.ID,
		Requester: env.Employee,
		Type:      domain.EventCheckin,
		Title:     "Week 1",
		Checkin:   &engine.CheckinFields{AttachmentLink: "ftp://files.internal/report"},
	})
	if !errors.As(err, &invalid) {
		t.Fatalf("ftp attachment: expected ValidationError, got %v", err)
	}

	_, err = env.Engine.SubmitEvent(env.Ctx, engine.SubmitEventOptions{
		ProjectID: env.Project.ID,
		Requester: env.Employee,
		Type:      domain.EventRisk,
		Title:     "Bad severity",
		Risk:      &engine.RiskFields{Severity: "SEVERE"},
	})
	if !errors.As(err, &invalid) {
		t.Fatalf("bad severity: expected ValidationError, got %v", err)
	}
}

func TestRegisterAndAuthenticate(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.Engine.Register(env.Ctx, engine.RegisterOptions{
		Name:     "Dup",
		Email:    "CLEO@client.test",
		Password: "another-password",
	})
	var conflict engine.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("duplicate email: expected ConflictError, got %v", err)
	}

	_, err = env.Engine.Authenticate(env.Ctx, "cleo@client.test", "wrong")
	var denied engine.AuthorizationError
	if !errors.As(err, &denied) {
		t.Fatalf("wrong password: expected AuthorizationError, got %v", err)
	}

	u, err := env.Engine.Authenticate(env.Ctx, "cleo@client.test", "correct-horse-battery")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if u.ID != env.Client.ID {
		t.Fatalf("authenticated wrong user")
	}
}

func TestEventListNewestFirst(t *testing.T) {
	env := newTestEnv(t)
	for i, title := range []string{"older", "newer"} {
		ts := testNow.Add(time.Duration(i) * time.Hour).Format(time.RFC3339)
		if _, err := env.Engine.SubmitEvent(env.Ctx, engine.SubmitEventOptions{
			ProjectID: env.Project.ID,
			Requester: env.Admin,
			Type:      domain.EventStatusChange,
			Title:     title,
			Timestamp: ts,
		}); err != nil {
			t.Fatalf("submit %s: %v", title, err)
		}
	}
	events, err := env.Engine.ListEvents(env.Ctx, env.Project.ID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) < 2 || events[0].Title != "newer" {
		t.Fatalf("expected newest first, got %+v", events[0])
	}
}
