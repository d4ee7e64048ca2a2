package engine

// NotFoundError indicates a missing project or event, or an event that does
// not belong to the stated project.
type NotFoundError struct {
	Message string
}

func (e NotFoundError) Error() string { return e.Message }

// AuthorizationError indicates the requester's role or identity does not
// satisfy the access policy for the requested action.
type AuthorizationError struct {
	Message string
}

func (e AuthorizationError) Error() string { return e.Message }

// ConflictError indicates the weekly check-in rate limit was violated, or a
// uniqueness constraint such as a duplicate email.
type ConflictError struct {
	Message string
}

func (e ConflictError) Error() string { return e.Message }

// ValidationError indicates a malformed submission: event type outside the
// closed set, out-of-range ratings, or resolve attempted on a non-risk event.
type ValidationError struct {
	Message string
}

func (e ValidationError) Error() string { return e.Message }
