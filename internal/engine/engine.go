package engine

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pulse/internal/domain"
	"pulse/internal/events"
	"pulse/internal/health"
	"pulse/internal/repo"
)

type Engine struct {
	DB    *sql.DB
	Repo  repo.Repo
	Audit events.Writer
	Log   zerolog.Logger
	Now   func() time.Time
}

func New(db *sql.DB, log zerolog.Logger) Engine {
	return Engine{
		DB:    db,
		Repo:  repo.Repo{DB: db},
		Audit: events.Writer{DB: db},
		Log:   log,
		Now:   time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// audit returns the ledger writer pinned to the engine's clock.
func (e Engine) audit() events.Writer {
	w := e.Audit
	if w.Now == nil {
		w.Now = e.Now
	}
	return w
}

// CheckinFields are the CHECKIN-specific submission fields.
type CheckinFields struct {
	ProgressSummary   string
	Blockers          string
	ConfidenceLevel   *int
	CompletionPercent *int
	AttachmentLink    string
}

// FeedbackFields are the FEEDBACK-specific submission fields.
type FeedbackFields struct {
	SatisfactionRating *int
	ClarityRating      *int
	FlagIssue          bool
	Comments           string
}

// RiskFields are the RISK-specific submission fields.
type RiskFields struct {
	Severity   string
	Mitigation string
}

// SubmitEventOptions is the tagged submission payload: exactly the field set
// matching Type is honored, validated once before any write.
type SubmitEventOptions struct {
	ProjectID   string
	Requester   Requester
	Type        string
	Title       string
	Description string
	// Timestamp is optional; when empty the engine assigns wall-clock time.
	Timestamp string
	Checkin   *CheckinFields
	Feedback  *FeedbackFields
	Risk      *RiskFields
}

// SubmitEvent appends one event to a project's ledger: access policy first,
// then the check-in rate limit, then the append, the progress update, the
// flagged-feedback side effect and a synchronous health recompute.
func (e Engine) SubmitEvent(ctx context.Context, opts SubmitEventOptions) (domain.Event, error) {
	if !domain.ValidEventType(opts.Type) {
		return domain.Event{}, ValidationError{Message: "Unknown event type: " + opts.Type}
	}
	if opts.Title == "" {
		return domain.Event{}, ValidationError{Message: "Title is required."}
	}
	p, err := e.Repo.GetProject(ctx, opts.ProjectID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Event{}, NotFoundError{Message: "Project not found"}
		}
		return domain.Event{}, err
	}
	if err := canSubmit(opts.Type, opts.Requester, p); err != nil {
		return domain.Event{}, err
	}
	now := e.now().UTC()
	if opts.Type == domain.EventCheckin {
		if err := e.checkCheckinAllowed(ctx, opts.ProjectID, opts.Requester.ID, now); err != nil {
			return domain.Event{}, err
		}
	}
	evt, err := buildEvent(opts, now)
	if err != nil {
		return domain.Event{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Event{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertEvent(ctx, tx, evt); err != nil {
		return domain.Event{}, err
	}
	if evt.Type == domain.EventCheckin && evt.CompletionPercent != nil {
		if err := e.Repo.SetProjectProgress(ctx, tx, p.ID, *evt.CompletionPercent, now.Format(time.RFC3339)); err != nil {
			return domain.Event{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Event{}, err
	}

	// Derived writes past this point never fail the submission.
	if evt.Type == domain.EventFeedback && evt.FlagIssue != nil && *evt.FlagIssue {
		if err := e.autoCreateRisk(ctx, opts, now); err != nil {
			e.Log.Error().Err(err).Str("project_id", p.ID).Msg("auto-create risk from flagged feedback failed")
		}
	}
	e.recompute(ctx, p.ID)
	return evt, nil
}

func buildEvent(opts SubmitEventOptions, now time.Time) (domain.Event, error) {
	ts := now.Format(time.RFC3339)
	if opts.Timestamp != "" {
		parsed, err := time.Parse(time.RFC3339, opts.Timestamp)
		if err != nil {
			return domain.Event{}, ValidationError{Message: "Timestamp must be RFC3339."}
		}
		ts = parsed.UTC().Format(time.RFC3339)
	}
	evt := domain.Event{
		ID:          uuid.New().String(),
		ProjectID:   opts.ProjectID,
		UserID:      opts.Requester.ID,
		Type:        opts.Type,
		Title:       opts.Title,
		Description: opts.Description,
		Timestamp:   ts,
	}
	switch opts.Type {
	case domain.EventCheckin:
		c := opts.Checkin
		if c == nil {
			c = &CheckinFields{}
		}
		if err := validateRating(c.ConfidenceLevel, "confidence_level"); err != nil {
			return domain.Event{}, err
		}
		if c.CompletionPercent != nil && (*c.CompletionPercent < 0 || *c.CompletionPercent > 100) {
			return domain.Event{}, ValidationError{Message: "completion_percent must be between 0 and 100."}
		}
		if c.AttachmentLink != "" {
			u, err := url.Parse(c.AttachmentLink)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
				return domain.Event{}, ValidationError{Message: "attachment_link must be an http(s) URL."}
			}
			evt.AttachmentLink = &c.AttachmentLink
		}
		evt.ProgressSummary = optionalString(c.ProgressSummary)
		evt.Blockers = optionalString(c.Blockers)
		evt.ConfidenceLevel = c.ConfidenceLevel
		evt.CompletionPercent = c.CompletionPercent
	case domain.EventFeedback:
		f := opts.Feedback
		if f == nil {
			f = &FeedbackFields{}
		}
		if err := validateRating(f.SatisfactionRating, "satisfaction_rating"); err != nil {
			return domain.Event{}, err
		}
		if err := validateRating(f.ClarityRating, "clarity_rating"); err != nil {
			return domain.Event{}, err
		}
		evt.SatisfactionRating = f.SatisfactionRating
		evt.ClarityRating = f.ClarityRating
		flag := f.FlagIssue
		evt.FlagIssue = &flag
		evt.Comments = optionalString(f.Comments)
	case domain.EventRisk:
		r := opts.Risk
		if r == nil || !domain.ValidSeverity(r.Severity) {
			return domain.Event{}, ValidationError{Message: "severity must be LOW, MEDIUM or HIGH."}
		}
		evt.Severity = &r.Severity
		evt.Mitigation = optionalString(r.Mitigation)
		open := domain.RiskOpen
		evt.RiskStatus = &open
	}
	return evt, nil
}

func validateRating(v *int, field string) error {
	if v == nil {
		return nil
	}
	if *v < 1 || *v > 5 {
		return ValidationError{Message: field + " must be between 1 and 5."}
	}
	return nil
}

// autoCreateRisk opens a MEDIUM risk whenever a client flags an issue in
// feedback.
func (e Engine) autoCreateRisk(ctx context.Context, opts SubmitEventOptions, now time.Time) error {
	title := opts.Title
	if title == "" {
		title = "Flagged Issue"
	}
	description := opts.Description
	if description == "" {
		description = "Client flagged an issue requiring attention."
	}
	severity := domain.SeverityMedium
	mitigation := "Pending owner review"
	open := domain.RiskOpen
	risk := domain.Event{
		ID:          uuid.New().String(),
		ProjectID:   opts.ProjectID,
		UserID:      opts.Requester.ID,
		Type:        domain.EventRisk,
		Title:       title,
		Description: description,
		Timestamp:   now.Format(time.RFC3339),
		Severity:    &severity,
		Mitigation:  &mitigation,
		RiskStatus:  &open,
	}
	return e.Repo.InsertEvent(ctx, nil, risk)
}

// ResolveRiskOptions carries optional overwrites applied on resolution.
type ResolveRiskOptions struct {
	Mitigation  *string
	Description *string
}

// ResolveRisk marks a RISK event resolved. The transition is one-way;
// resolving an already-resolved risk is an idempotent success that still
// appends a fresh audit entry.
func (e Engine) ResolveRisk(ctx context.Context, projectID, eventID string, req Requester, opts ResolveRiskOptions) (domain.Event, error) {
	evt, err := e.Repo.GetEvent(ctx, eventID)
	if err != nil || evt.ProjectID != projectID {
		if err != nil && !errors.Is(err, repo.ErrNotFound) {
			return domain.Event{}, err
		}
		return domain.Event{}, NotFoundError{Message: "Risk not found for this project"}
	}
	if evt.Type != domain.EventRisk {
		return domain.Event{}, ValidationError{Message: "Only risk events can be resolved"}
	}
	p, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Event{}, NotFoundError{Message: "Project not found"}
		}
		return domain.Event{}, err
	}
	if err := canResolveRisk(req, p); err != nil {
		return domain.Event{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Event{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.ResolveRiskEvent(ctx, tx, evt.ID, opts.Mitigation, opts.Description); err != nil {
		return domain.Event{}, err
	}
	if _, err := e.audit().AppendStatusChange(ctx, tx, projectID, req.ID, "Risk Resolved: "+evt.Title, "Risk marked resolved."); err != nil {
		return domain.Event{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Event{}, err
	}

	e.recompute(ctx, projectID)
	return e.Repo.GetEvent(ctx, evt.ID)
}

// CreateProjectOptions are the admin-supplied project fields.
type CreateProjectOptions struct {
	Name        string
	Description string
	ClientID    string
	EmployeeIDs []string
	StartDate   string
	EndDate     string
}

func (e Engine) CreateProject(ctx context.Context, req Requester, opts CreateProjectOptions) (domain.Project, error) {
	if err := requireAdmin(req); err != nil {
		return domain.Project{}, err
	}
	if opts.Name == "" {
		return domain.Project{}, ValidationError{Message: "Name is required."}
	}
	if opts.ClientID == "" {
		return domain.Project{}, ValidationError{Message: "client_id is required."}
	}
	start, end, err := parseWindow(opts.StartDate, opts.EndDate)
	if err != nil {
		return domain.Project{}, err
	}
	now := e.now().UTC().Format(time.RFC3339)
	p := domain.Project{
		ID:          uuid.New().String(),
		Name:        opts.Name,
		Description: opts.Description,
		ClientID:    opts.ClientID,
		EmployeeIDs: opts.EmployeeIDs,
		StartDate:   start,
		EndDate:     end,
		HealthScore: 100,
		Status:      domain.StatusOnTrack,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertProject(ctx, tx, p); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	if _, err := e.audit().AppendStatusChange(ctx, nil, p.ID, req.ID, "Project Initialized", "Project created and team assigned."); err != nil {
		e.Log.Error().Err(err).Str("project_id", p.ID).Msg("project init audit event failed")
	}
	return p, nil
}

func parseWindow(startDate, endDate string) (string, string, error) {
	start, err := time.Parse(time.RFC3339, startDate)
	if err != nil {
		return "", "", ValidationError{Message: "start_date must be RFC3339."}
	}
	end, err := time.Parse(time.RFC3339, endDate)
	if err != nil {
		return "", "", ValidationError{Message: "end_date must be RFC3339."}
	}
	if start.After(end) {
		return "", "", ValidationError{Message: "start_date must not be after end_date."}
	}
	return start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339), nil
}

func (e Engine) UpdateProject(ctx context.Context, req Requester, id string, opts repo.UpdateProjectOptions) (domain.Project, error) {
	if err := requireAdmin(req); err != nil {
		return domain.Project{}, err
	}
	p, err := e.Repo.GetProject(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Project{}, NotFoundError{Message: "Project not found"}
		}
		return domain.Project{}, err
	}
	if opts.Status != nil {
		switch *opts.Status {
		case domain.StatusOnTrack, domain.StatusAtRisk, domain.StatusCritical, domain.StatusCompleted:
		default:
			return domain.Project{}, ValidationError{Message: "Unknown project status: " + *opts.Status}
		}
	}
	if opts.Progress != nil && (*opts.Progress < 0 || *opts.Progress > 100) {
		return domain.Project{}, ValidationError{Message: "progress must be between 0 and 100."}
	}
	start := p.StartDate
	end := p.EndDate
	if opts.StartDate != nil {
		start = *opts.StartDate
	}
	if opts.EndDate != nil {
		end = *opts.EndDate
	}
	if opts.StartDate != nil || opts.EndDate != nil {
		normStart, normEnd, err := parseWindow(start, end)
		if err != nil {
			return domain.Project{}, err
		}
		if opts.StartDate != nil {
			opts.StartDate = &normStart
		}
		if opts.EndDate != nil {
			opts.EndDate = &normEnd
		}
	}
	if err := e.Repo.UpdateProject(ctx, id, opts, e.now().UTC().Format(time.RFC3339)); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Project{}, NotFoundError{Message: "Project not found"}
		}
		return domain.Project{}, err
	}
	return e.Repo.GetProject(ctx, id)
}

func (e Engine) DeleteProject(ctx context.Context, req Requester, id string) error {
	if err := requireAdmin(req); err != nil {
		return err
	}
	if err := e.Repo.DeleteProjectCascade(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NotFoundError{Message: "Project not found"}
		}
		return err
	}
	return nil
}

// GetProject fetches a project, repairing a missing progress value from the
// most recent check-in that carries one.
func (e Engine) GetProject(ctx context.Context, id string) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Project{}, NotFoundError{Message: "Project not found"}
		}
		return domain.Project{}, err
	}
	if p.Progress == nil {
		v, err := e.Repo.LatestCheckinCompletion(ctx, id)
		if err == nil {
			now := e.now().UTC().Format(time.RFC3339)
			if err := e.Repo.SetProjectProgress(ctx, nil, id, v, now); err != nil {
				e.Log.Error().Err(err).Str("project_id", id).Msg("progress backfill failed")
			} else {
				p.Progress = &v
				p.UpdatedAt = now
			}
		} else if !errors.Is(err, repo.ErrNotFound) {
			return domain.Project{}, err
		}
	}
	return p, nil
}

// ListProjects returns the projects visible to the requester.
func (e Engine) ListProjects(ctx context.Context, req Requester) ([]domain.Project, error) {
	return e.Repo.ListProjectsFor(ctx, req.Role, req.ID)
}

// ListEvents returns a project's ledger newest-first.
func (e Engine) ListEvents(ctx context.Context, projectID string) ([]domain.Event, error) {
	if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, NotFoundError{Message: "Project not found"}
		}
		return nil, err
	}
	return e.Repo.ListEvents(ctx, projectID)
}

// recompute refreshes the project's health snapshot after a ledger mutation.
// The ledger write is the source of truth; a failed snapshot write is logged
// and self-heals on the next mutation.
func (e Engine) recompute(ctx context.Context, projectID string) {
	p, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		e.Log.Error().Err(err).Str("project_id", projectID).Msg("health recompute: load project failed")
		return
	}
	// COMPLETED is terminal; the scorer never assigns or removes it.
	if p.Status == domain.StatusCompleted {
		return
	}
	evts, err := e.Repo.ListEvents(ctx, projectID)
	if err != nil {
		e.Log.Error().Err(err).Str("project_id", projectID).Msg("health recompute: load events failed")
		return
	}
	snap := health.Score(p, evts, e.now().UTC())
	if err := e.Repo.SetProjectHealth(ctx, projectID, snap.Score, snap.Status, e.now().UTC().Format(time.RFC3339)); err != nil {
		e.Log.Error().Err(err).Str("project_id", projectID).Msg("health recompute: snapshot write failed")
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
