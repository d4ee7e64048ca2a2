package engine

import (
	"context"
	"time"
)

// checkinWindow is the rolling interval for the one-check-in-per-employee
// limit. It is anchored at submission time, not at calendar week boundaries.
const checkinWindow = 7 * 24 * time.Hour

// checkCheckinAllowed rejects a CHECKIN when the same user already checked in
// on the project within the rolling window. The read and the later append are
// not one transaction; two simultaneous submissions can both pass this check.
// That race is accepted for a single-writer sqlite deployment.
func (e Engine) checkCheckinAllowed(ctx context.Context, projectID, userID string, now time.Time) error {
	since := now.Add(-checkinWindow).UTC().Format(time.RFC3339)
	n, err := e.Repo.CountCheckinsSince(ctx, projectID, userID, since)
	if err != nil {
		return err
	}
	if n > 0 {
		return ConflictError{Message: "Weekly check-in already submitted for this project."}
	}
	return nil
}
