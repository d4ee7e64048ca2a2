package engine

import (
	"pulse/internal/domain"
)

// Requester identifies the authenticated caller of an operation. The engine
// never reads ambient auth state; every operation receives its requester
// explicitly.
type Requester struct {
	ID   string
	Role string
}

// IsAdmin reports whether the requester holds the admin role.
func (r Requester) IsAdmin() bool { return r.Role == domain.RoleAdmin }

// canSubmit is the access policy for event submission: each event type has an
// explicit rule, nothing falls through to a default allow.
func canSubmit(eventType string, req Requester, p domain.Project) error {
	switch eventType {
	case domain.EventFeedback:
		if req.ID != p.ClientID {
			return AuthorizationError{Message: "Only the assigned client can submit feedback."}
		}
	case domain.EventCheckin, domain.EventRisk:
		if !p.IsMember(req.ID) {
			return AuthorizationError{Message: "Only assigned employees can submit check-ins or risks."}
		}
	case domain.EventStatusChange:
		if !req.IsAdmin() {
			return AuthorizationError{Message: "Only admins can post status changes."}
		}
	default:
		return ValidationError{Message: "Unknown event type: " + eventType}
	}
	return nil
}

// canResolveRisk gates the risk OPEN -> RESOLVED transition.
func canResolveRisk(req Requester, p domain.Project) error {
	if req.IsAdmin() || p.IsMember(req.ID) {
		return nil
	}
	return AuthorizationError{Message: "Only assigned employees or admins can resolve risks."}
}

// requireAdmin gates project and user administration.
func requireAdmin(req Requester) error {
	if req.IsAdmin() {
		return nil
	}
	return AuthorizationError{Message: "Admin role required."}
}
