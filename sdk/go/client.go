package pulsesdk

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

// Client is a minimal Pulse HTTP API client.
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

// User represents an account.
type User struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at"`
}

// LoginResult carries the bearer token and the authenticated user.
type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Project represents a delivery engagement.
type Project struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	ClientID    string   `json:"client_id"`
	EmployeeIDs []string `json:"employee_ids"`
	StartDate   string   `json:"start_date"`
	EndDate     string   `json:"end_date"`
	Progress    *int     `json:"progress,omitempty"`
	HealthScore int      `json:"health_score"`
	Status      string   `json:"status"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

// Event represents a ledger entry.
type Event struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	UserID      string `json:"user_id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Timestamp   string `json:"timestamp"`

	ProgressSummary   *string `json:"progress_summary,omitempty"`
	Blockers          *string `json:"blockers,omitempty"`
	ConfidenceLevel   *int    `json:"confidence_level,omitempty"`
	CompletionPercent *int    `json:"completion_percent,omitempty"`
	AttachmentLink    *string `json:"attachment_link,omitempty"`

	SatisfactionRating *int    `json:"satisfaction_rating,omitempty"`
	ClarityRating      *int    `json:"clarity_rating,omitempty"`
	FlagIssue          *bool   `json:"flag_issue,omitempty"`
	Comments           *string `json:"comments,omitempty"`

	Severity   *string `json:"severity,omitempty"`
	Mitigation *string `json:"mitigation,omitempty"`
	RiskStatus *string `json:"risk_status,omitempty"`
}

// SubmitEventRequest is the tagged submission payload; set the fields that
// match Type.
type SubmitEventRequest struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`

	ProgressSummary   string `json:"progress_summary,omitempty"`
	Blockers          string `json:"blockers,omitempty"`
	ConfidenceLevel   *int   `json:"confidence_level,omitempty"`
	CompletionPercent *int   `json:"completion_percent,omitempty"`
	AttachmentLink    string `json:"attachment_link,omitempty"`

	SatisfactionRating *int   `json:"satisfaction_rating,omitempty"`
	ClarityRating      *int   `json:"clarity_rating,omitempty"`
	FlagIssue          *bool  `json:"flag_issue,omitempty"`
	Comments           string `json:"comments,omitempty"`

	Severity   string `json:"severity,omitempty"`
	Mitigation string `json:"mitigation,omitempty"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Login exchanges credentials for a bearer token and stores it on the client.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResult, error) {
	body := map[string]string{"email": email, "password": password}
	var resp LoginResult
	if err := c.do(ctx, http.MethodPost, "v1/auth/login", body, &resp); err != nil {
		return LoginResult{}, err
	}
	c.BearerToken = resp.Token
	return resp, nil
}

// Register creates an account and stores the returned token on the client.
func (c *Client) Register(ctx context.Context, name, email, password, role string) (LoginResult, error) {
	body := map[string]string{"name": name, "email": email, "password": password}
	if role != "" {
		body["role"] = role
	}
	var resp LoginResult
	if err := c.do(ctx, http.MethodPost, "v1/auth/register", body, &resp); err != nil {
		return LoginResult{}, err
	}
	c.BearerToken = resp.Token
	return resp, nil
}

// Me returns the authenticated account.
func (c *Client) Me(ctx context.Context) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodGet, "v1/me", nil, &resp)
	return resp, err
}

// Projects lists the projects visible to the caller.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	var resp []Project
	err := c.do(ctx, http.MethodGet, "v1/projects", nil, &resp)
	return resp, err
}

// Project fetches one project.
func (c *Client) Project(ctx context.Context, projectID string) (Project, error) {
	var resp Project
	err := c.do(ctx, http.MethodGet, "v1/projects/"+url.PathEscape(projectID), nil, &resp)
	return resp, err
}

// Events lists a project's ledger newest-first.
func (c *Client) Events(ctx context.Context, projectID string) ([]Event, error) {
	var resp []Event
	err := c.do(ctx, http.MethodGet, c.projectPath(projectID, "events"), nil, &resp)
	return resp, err
}

// SubmitEvent appends an event to a project's ledger.
func (c *Client) SubmitEvent(ctx context.Context, projectID string, req SubmitEventRequest) (Event, error) {
	var resp Event
	err := c.do(ctx, http.MethodPost, c.projectPath(projectID, "events"), req, &resp)
	return resp, err
}

// ResolveRisk marks a risk event resolved, optionally updating its mitigation
// plan and description.
func (c *Client) ResolveRisk(ctx context.Context, projectID, eventID string, mitigation, description *string) (Event, error) {
	body := map[string]any{}
	if mitigation != nil {
		body["mitigation"] = *mitigation
	}
	if description != nil {
		body["description"] = *description
	}
	endpoint := c.projectPath(projectID, "events/"+url.PathEscape(eventID)+"/resolve")
	var resp Event
	err := c.do(ctx, http.MethodPatch, endpoint, body, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
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

func (c *Client) projectPath(projectID, p string) string {
	return fmt.Sprintf("v1/projects/%s/%s", url.PathEscape(projectID), strings.TrimLeft(p, "/"))
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
