package server

import (
	"pulse/internal/domain"
)

// Request payloads

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email" format:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty" enum:"ADMIN,EMPLOYEE,CLIENT"`
}

type LoginRequest struct {
	Email    string `json:"email" format:"email"`
	Password string `json:"password"`
}

type CreateProjectRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	ClientID    string   `json:"client_id"`
	EmployeeIDs []string `json:"employee_ids,omitempty"`
	StartDate   string   `json:"start_date" format:"date-time"`
	EndDate     string   `json:"end_date" format:"date-time"`
}

type UpdateProjectRequest struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	ClientID    *string  `json:"client_id,omitempty"`
	EmployeeIDs []string `json:"employee_ids,omitempty"`
	StartDate   *string  `json:"start_date,omitempty" format:"date-time"`
	EndDate     *string  `json:"end_date,omitempty" format:"date-time"`
	Progress    *int     `json:"progress,omitempty" minimum:"0" maximum:"100"`
	Status      *string  `json:"status,omitempty" enum:"ON_TRACK,AT_RISK,CRITICAL,COMPLETED"`
}

type SubmitEventRequest struct {
	Type        string `json:"type" enum:"CHECKIN,FEEDBACK,RISK,STATUS_CHANGE"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Timestamp   string `json:"timestamp,omitempty" format:"date-time"`

	// CHECKIN fields
	ProgressSummary   string `json:"progress_summary,omitempty"`
	Blockers          string `json:"blockers,omitempty"`
	ConfidenceLevel   *int   `json:"confidence_level,omitempty" minimum:"1" maximum:"5"`
	CompletionPercent *int   `json:"completion_percent,omitempty" minimum:"0" maximum:"100"`
	AttachmentLink    string `json:"attachment_link,omitempty"`

	// FEEDBACK fields
	SatisfactionRating *int   `json:"satisfaction_rating,omitempty" minimum:"1" maximum:"5"`
	ClarityRating      *int   `json:"clarity_rating,omitempty" minimum:"1" maximum:"5"`
	FlagIssue          *bool  `json:"flag_issue,omitempty"`
	Comments           string `json:"comments,omitempty"`

	// RISK fields
	Severity   string `json:"severity,omitempty" enum:"LOW,MEDIUM,HIGH"`
	Mitigation string `json:"mitigation,omitempty"`
}

type ResolveRiskRequest struct {
	Mitigation  *string `json:"mitigation,omitempty"`
	Description *string `json:"description,omitempty"`
}

// Response payloads

type UserResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email" format:"email"`
	Role      string `json:"role" enum:"ADMIN,EMPLOYEE,CLIENT"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type ProjectResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	ClientID    string   `json:"client_id"`
	EmployeeIDs []string `json:"employee_ids"`
	StartDate   string   `json:"start_date" format:"date-time"`
	EndDate     string   `json:"end_date" format:"date-time"`
	Progress    *int     `json:"progress,omitempty"`
	HealthScore int      `json:"health_score"`
	Status      string   `json:"status" enum:"ON_TRACK,AT_RISK,CRITICAL,COMPLETED"`
	CreatedAt   string   `json:"created_at" format:"date-time"`
	UpdatedAt   string   `json:"updated_at" format:"date-time"`
}

type EventResponse struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	UserID      string `json:"user_id"`
	Type        string `json:"type" enum:"CHECKIN,FEEDBACK,RISK,STATUS_CHANGE"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Timestamp   string `json:"timestamp" format:"date-time"`

	ProgressSummary   *string `json:"progress_summary,omitempty"`
	Blockers          *string `json:"blockers,omitempty"`
	ConfidenceLevel   *int    `json:"confidence_level,omitempty"`
	CompletionPercent *int    `json:"completion_percent,omitempty"`
	AttachmentLink    *string `json:"attachment_link,omitempty"`

	SatisfactionRating *int    `json:"satisfaction_rating,omitempty"`
	ClarityRating      *int    `json:"clarity_rating,omitempty"`
	FlagIssue          *bool   `json:"flag_issue,omitempty"`
	Comments           *string `json:"comments,omitempty"`

	Severity   *string `json:"severity,omitempty" enum:"LOW,MEDIUM,HIGH"`
	Mitigation *string `json:"mitigation,omitempty"`
	RiskStatus *string `json:"risk_status,omitempty" enum:"OPEN,RESOLVED"`
}

func userResponse(u domain.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

func mapUsers(items []domain.User) []UserResponse {
	res := make([]UserResponse, 0, len(items))
	for _, u := range items {
		res = append(res, userResponse(u))
	}
	return res
}

func projectResponse(p domain.Project) ProjectResponse {
	employees := p.EmployeeIDs
	if employees == nil {
		employees = []string{}
	}
	return ProjectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		ClientID:    p.ClientID,
		EmployeeIDs: employees,
		StartDate:   p.StartDate,
		EndDate:     p.EndDate,
		Progress:    p.Progress,
		HealthScore: p.HealthScore,
		Status:      p.Status,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func mapProjects(items []domain.Project) []ProjectResponse {
	res := make([]ProjectResponse, 0, len(items))
	for _, p := range items {
		res = append(res, projectResponse(p))
	}
	return res
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:                 e.ID,
		ProjectID:          e.ProjectID,
		UserID:             e.UserID,
		Type:               e.Type,
		Title:              e.Title,
		Description:        e.Description,
		Timestamp:          e.Timestamp,
		ProgressSummary:    e.ProgressSummary,
		Blockers:           e.Blockers,
		ConfidenceLevel:    e.ConfidenceLevel,
		CompletionPercent:  e.CompletionPercent,
		AttachmentLink:     e.AttachmentLink,
		SatisfactionRating: e.SatisfactionRating,
		ClarityRating:      e.ClarityRating,
		FlagIssue:          e.FlagIssue,
		Comments:           e.Comments,
		Severity:           e.Severity,
		Mitigation:         e.Mitigation,
		RiskStatus:         e.RiskStatus,
	}
}

func mapEvents(items []domain.Event) []EventResponse {
	res := make([]EventResponse, 0, len(items))
	for _, e := range items {
		res = append(res, eventResponse(e))
	}
	return res
}
