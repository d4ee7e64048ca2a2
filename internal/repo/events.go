package repo

import (
	"context"
	"database/sql"

	"pulse/internal/domain"
)

const eventColumns = `id,project_id,user_id,type,title,COALESCE(description,'') AS description,timestamp,
progress_summary,blockers,confidence_level,completion_percent,attachment_link,
satisfaction_rating,clarity_rating,flag_issue,comments,
severity,mitigation,risk_status`

func scanEventRow(scan func(...any) error) (domain.Event, error) {
	var e domain.Event
	var progressSummary, blockers, attachment, comments, severity, mitigation, riskStatus sql.NullString
	var confidence, completion, satisfaction, clarity sql.NullInt64
	var flagIssue sql.NullInt64
	err := scan(&e.ID, &e.ProjectID, &e.UserID, &e.Type, &e.Title, &e.Description, &e.Timestamp,
		&progressSummary, &blockers, &confidence, &completion, &attachment,
		&satisfaction, &clarity, &flagIssue, &comments,
		&severity, &mitigation, &riskStatus)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	if err != nil {
		return e, err
	}
	if progressSummary.Valid {
		e.ProgressSummary = &progressSummary.String
	}
	if blockers.Valid {
		e.Blockers = &blockers.String
	}
	if confidence.Valid {
		v := int(confidence.Int64)
		e.ConfidenceLevel = &v
	}
	if completion.Valid {
		v := int(completion.Int64)
		e.CompletionPercent = &v
	}
	if attachment.Valid {
		e.AttachmentLink = &attachment.String
	}
	if satisfaction.Valid {
		v := int(satisfaction.Int64)
		e.SatisfactionRating = &v
	}
	if clarity.Valid {
		v := int(clarity.Int64)
		e.ClarityRating = &v
	}
	if flagIssue.Valid {
		v := flagIssue.Int64 != 0
		e.FlagIssue = &v
	}
	if comments.Valid {
		e.Comments = &comments.String
	}
	if severity.Valid {
		e.Severity = &severity.String
	}
	if mitigation.Valid {
		e.Mitigation = &mitigation.String
	}
	if riskStatus.Valid {
		e.RiskStatus = &riskStatus.String
	}
	return e, nil
}

func (r Repo) InsertEvent(ctx context.Context, tx *sql.Tx, e domain.Event) error {
	exec := r.DB.ExecContext
	if tx != nil {
		exec = tx.ExecContext
	}
	_, err := exec(ctx, `INSERT INTO events(id,project_id,user_id,type,title,description,timestamp,
progress_summary,blockers,confidence_level,completion_percent,attachment_link,
satisfaction_rating,clarity_rating,flag_issue,comments,
severity,mitigation,risk_status)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.ProjectID, e.UserID, e.Type, e.Title, nullable(e.Description), e.Timestamp,
		nullableStringPtr(e.ProgressSummary), nullableStringPtr(e.Blockers),
		nullableIntPtr(e.ConfidenceLevel), nullableIntPtr(e.CompletionPercent),
		nullableStringPtr(e.AttachmentLink),
		nullableIntPtr(e.SatisfactionRating), nullableIntPtr(e.ClarityRating),
		nullableBoolPtr(e.FlagIssue), nullableStringPtr(e.Comments),
		nullableStringPtr(e.Severity), nullableStringPtr(e.Mitigation),
		nullableStringPtr(e.RiskStatus))
	return err
}

func (r Repo) GetEvent(ctx context.Context, id string) (domain.Event, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id=?`, id)
	return scanEventRow(row.Scan)
}

// ListEvents returns the project's ledger newest-first.
func (r Repo) ListEvents(ctx context.Context, projectID string) ([]domain.Event, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+eventColumns+` FROM events WHERE project_id=? ORDER BY timestamp DESC, id DESC`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		e, err := scanEventRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// CountCheckinsSince counts a user's CHECKIN events in a project at or after
// the given RFC3339 instant. Timestamps are UTC RFC3339, so lexical comparison
// matches chronological order.
func (r Repo) CountCheckinsSince(ctx context.Context, projectID, userID, since string) (int, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM events WHERE project_id=? AND user_id=? AND type=? AND timestamp>=?`,
		projectID, userID, domain.EventCheckin, since)
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// LatestCheckinCompletion returns the completion percentage of the most recent
// CHECKIN that carries one, or ErrNotFound.
func (r Repo) LatestCheckinCompletion(ctx context.Context, projectID string) (int, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT completion_percent FROM events
WHERE project_id=? AND type=? AND completion_percent IS NOT NULL
ORDER BY timestamp DESC, id DESC LIMIT 1`, projectID, domain.EventCheckin)
	var v int
	err := row.Scan(&v)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return v, err
}

// ResolveRiskEvent marks the risk RESOLVED inside the caller's transaction,
// optionally overwriting mitigation and description.
func (r Repo) ResolveRiskEvent(ctx context.Context, tx *sql.Tx, id string, mitigation, description *string) error {
	fields := `risk_status=?`
	args := []any{domain.RiskResolved}
	if mitigation != nil {
		fields += `, mitigation=?`
		args = append(args, *mitigation)
	}
	if description != nil {
		fields += `, description=?`
		args = append(args, *description)
	}
	args = append(args, id)
	res, err := tx.ExecContext(ctx, `UPDATE events SET `+fields+` WHERE id=?`, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
