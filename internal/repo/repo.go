package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"pulse/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const projectColumns = `id,name,COALESCE(description,'') AS description,client_id,start_date,end_date,progress,health_score,status,created_at,updated_at`

func scanProjectRow(scan func(...any) error) (domain.Project, error) {
	var p domain.Project
	var progress sql.NullInt64
	err := scan(&p.ID, &p.Name, &p.Description, &p.ClientID, &p.StartDate, &p.EndDate,
		&progress, &p.HealthScore, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	if progress.Valid {
		v := int(progress.Int64)
		p.Progress = &v
	}
	return p, nil
}

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) error {
	if _, err := tx.ExecContext(ctx, `INSERT INTO projects(id,name,description,client_id,start_date,end_date,progress,health_score,status,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		p.ID, p.Name, nullable(p.Description), p.ClientID, p.StartDate, p.EndDate,
		nullableIntPtr(p.Progress), p.HealthScore, p.Status, p.CreatedAt, p.UpdatedAt); err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return r.replaceEmployeesTx(ctx, tx, p.ID, p.EmployeeIDs)
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=?`, id)
	p, err := scanProjectRow(row.Scan)
	if err != nil {
		return p, err
	}
	p.EmployeeIDs, err = r.listEmployees(ctx, p.ID)
	return p, err
}

func (r Repo) listEmployees(ctx context.Context, projectID string) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT employee_id FROM project_employees WHERE project_id=? ORDER BY employee_id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListProjectsFor returns projects visible to the given role/identity:
// admins see all, clients see their own projects, employees see assignments.
func (r Repo) ListProjectsFor(ctx context.Context, role, userID string) ([]domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects ORDER BY created_at DESC, id DESC`
	var args []any
	switch role {
	case domain.RoleClient:
		query = `SELECT ` + projectColumns + ` FROM projects WHERE client_id=? ORDER BY created_at DESC, id DESC`
		args = append(args, userID)
	case domain.RoleEmployee:
		query = `SELECT ` + projectColumns + ` FROM projects
WHERE id IN (SELECT project_id FROM project_employees WHERE employee_id=?)
ORDER BY created_at DESC, id DESC`
		args = append(args, userID)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProjectRow(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range res {
		res[i].EmployeeIDs, err = r.listEmployees(ctx, res[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// UpdateProjectOptions carries the admin-editable project fields. Nil means
// leave unchanged; SetEmployees guards the slice so an empty team is valid.
type UpdateProjectOptions struct {
	Name         *string
	Description  *string
	ClientID     *string
	StartDate    *string
	EndDate      *string
	Progress     *int
	Status       *string
	SetEmployees bool
	EmployeeIDs  []string
}

func (r Repo) UpdateProject(ctx context.Context, id string, opts UpdateProjectOptions, now string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var fields []string
	var args []any
	if opts.Name != nil {
		fields = append(fields, "name=?")
		args = append(args, *opts.Name)
	}
	if opts.Description != nil {
		fields = append(fields, "description=?")
		args = append(args, nullable(*opts.Description))
	}
	if opts.ClientID != nil {
		fields = append(fields, "client_id=?")
		args = append(args, *opts.ClientID)
	}
	if opts.StartDate != nil {
		fields = append(fields, "start_date=?")
		args = append(args, *opts.StartDate)
	}
	if opts.EndDate != nil {
		fields = append(fields, "end_date=?")
		args = append(args, *opts.EndDate)
	}
	if opts.Progress != nil {
		fields = append(fields, "progress=?")
		args = append(args, *opts.Progress)
	}
	if opts.Status != nil {
		fields = append(fields, "status=?")
		args = append(args, *opts.Status)
	}
	if len(fields) == 0 && !opts.SetEmployees {
		return nil
	}
	fields = append(fields, "updated_at=?")
	args = append(args, now, id)
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE projects SET %s WHERE id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if opts.SetEmployees {
		if err := r.replaceEmployeesTx(ctx, tx, id, opts.EmployeeIDs); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r Repo) replaceEmployeesTx(ctx context.Context, tx *sql.Tx, projectID string, employeeIDs []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM project_employees WHERE project_id=?`, projectID); err != nil {
		return err
	}
	for _, id := range employeeIDs {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO project_employees(project_id,employee_id) VALUES (?,?)`, projectID, id); err != nil {
			return err
		}
	}
	return nil
}

// SetProjectProgress updates the last known completion percentage. When tx is
// nil the write goes straight to the database.
func (r Repo) SetProjectProgress(ctx context.Context, tx *sql.Tx, projectID string, progress int, now string) error {
	exec := r.DB.ExecContext
	if tx != nil {
		exec = tx.ExecContext
	}
	_, err := exec(ctx, `UPDATE projects SET progress=?, updated_at=? WHERE id=?`, progress, now, projectID)
	return err
}

// SetProjectHealth persists the derived health snapshot.
func (r Repo) SetProjectHealth(ctx context.Context, projectID string, score int, status, now string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE projects SET health_score=?, status=?, updated_at=? WHERE id=?`,
		score, status, now, projectID)
	return err
}

// DeleteProjectCascade removes the project, its team membership and its whole
// event ledger in one transaction.
func (r Repo) DeleteProjectCascade(ctx context.Context, id string) error {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE project_id=?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM project_employees WHERE project_id=?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil {
		return nil
	}
	if *v == "" {
		return nil
	}
	return *v
}

func nullableIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableBoolPtr(v *bool) any {
	if v == nil {
		return nil
	}
	if *v {
		return 1
	}
	return 0
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
