package domain

// User roles.
const (
	RoleAdmin    = "ADMIN"
	RoleEmployee = "EMPLOYEE"
	RoleClient   = "CLIENT"
)

// Project statuses. ON_TRACK/AT_RISK/CRITICAL are derived from the health
// score; COMPLETED is terminal and set by an admin edit only.
const (
	StatusOnTrack   = "ON_TRACK"
	StatusAtRisk    = "AT_RISK"
	StatusCritical  = "CRITICAL"
	StatusCompleted = "COMPLETED"
)

// Event types.
const (
	EventCheckin      = "CHECKIN"
	EventFeedback     = "FEEDBACK"
	EventRisk         = "RISK"
	EventStatusChange = "STATUS_CHANGE"
)

// Risk severities and lifecycle states.
const (
	SeverityLow    = "LOW"
	SeverityMedium = "MEDIUM"
	SeverityHigh   = "HIGH"

	RiskOpen     = "OPEN"
	RiskResolved = "RESOLVED"
)

type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"-"`
	Role         string `json:"role" enum:"ADMIN,EMPLOYEE,CLIENT"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

type Project struct {
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

// Event is a ledger entry. Rows are append-only; the only in-place mutation is
// the OPEN -> RESOLVED transition on RISK rows.
type Event struct {
	ID          string `json:"id"`
	ProjectID   string `json:"project_id"`
	UserID      string `json:"user_id"`
	Type        string `json:"type" enum:"CHECKIN,FEEDBACK,RISK,STATUS_CHANGE"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Timestamp   string `json:"timestamp" format:"date-time"`

	// CHECKIN
	ProgressSummary   *string `json:"progress_summary,omitempty"`
	Blockers          *string `json:"blockers,omitempty"`
	ConfidenceLevel   *int    `json:"confidence_level,omitempty"`
	CompletionPercent *int    `json:"completion_percent,omitempty"`
	AttachmentLink    *string `json:"attachment_link,omitempty"`

	// FEEDBACK
	SatisfactionRating *int    `json:"satisfaction_rating,omitempty"`
	ClarityRating      *int    `json:"clarity_rating,omitempty"`
	FlagIssue          *bool   `json:"flag_issue,omitempty"`
	Comments           *string `json:"comments,omitempty"`

	// RISK
	Severity   *string `json:"severity,omitempty" enum:"LOW,MEDIUM,HIGH"`
	Mitigation *string `json:"mitigation,omitempty"`
	RiskStatus *string `json:"risk_status,omitempty" enum:"OPEN,RESOLVED"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// ValidEventType reports whether t is in the closed event type set.
func ValidEventType(t string) bool {
	switch t {
	case EventCheckin, EventFeedback, EventRisk, EventStatusChange:
		return true
	}
	return false
}

// ValidSeverity reports whether s is a known risk severity.
func ValidSeverity(s string) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// ValidRole reports whether r is a known user role.
func ValidRole(r string) bool {
	switch r {
	case RoleAdmin, RoleEmployee, RoleClient:
		return true
	}
	return false
}

// IsMember reports whether userID is on the project's assigned team.
func (p Project) IsMember(userID string) bool {
	for _, id := range p.EmployeeIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// IsOpenRisk reports whether the event is a RISK that has not been resolved.
func (e Event) IsOpenRisk() bool {
	if e.Type != EventRisk {
		return false
	}
	return e.RiskStatus == nil || *e.RiskStatus != RiskResolved
}
