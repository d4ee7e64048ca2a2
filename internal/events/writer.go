package events

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Writer appends system-authored STATUS_CHANGE audit entries to the event
// ledger inside the caller's transaction.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

func (w Writer) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

// AppendStatusChange writes one audit row. When tx is nil the write goes
// straight to the database.
func (w Writer) AppendStatusChange(ctx context.Context, tx *sql.Tx, projectID, userID, title, description string) (string, error) {
	id := uuid.New().String()
	ts := w.now().UTC().Format(time.RFC3339)
	exec := w.DB.ExecContext
	if tx != nil {
		exec = tx.ExecContext
	}
	_, err := exec(ctx, `INSERT INTO events(id,project_id,user_id,type,title,description,timestamp) VALUES (?,?,?,'STATUS_CHANGE',?,?,?)`,
		id, projectID, userID, title, nullable(description), ts)
	return id, err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
