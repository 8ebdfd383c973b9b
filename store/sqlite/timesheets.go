package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lumina/policy-engine/generic"
	"github.com/lumina/policy-engine/timesheet"
)

// =============================================================================
// TIMESHEET STORE (timesheet.Store interface)
// =============================================================================

// Timesheets stores timesheet entries in the timesheets table.
type Timesheets struct {
	s *Store
}

var _ timesheet.Store = (*Timesheets)(nil)

// Timesheets returns the timesheet store backed by s.
func (s *Store) Timesheets() *Timesheets {
	return &Timesheets{s: s}
}

const timesheetColumns = `id, employee_id, employee_name, project, work_date, hours, description,
	status, submitted_at, reviewed_by, reviewed_at, created_at`

func (t *Timesheets) Create(ctx context.Context, e timesheet.Entry) error {
	t.s.reqMu.Lock()
	defer t.s.reqMu.Unlock()

	query := `INSERT INTO timesheets (` + timesheetColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := t.s.db.ExecContext(ctx, query, entryArgs(e)...); err != nil {
		if isUniqueConstraintError(err) {
			return &generic.ValidationError{Field: "id", Code: "duplicate", Message: "entry " + e.ID + " already exists"}
		}
		return fmt.Errorf("failed to insert timesheet: %w", err)
	}
	return nil
}

func (t *Timesheets) Get(ctx context.Context, id string) (timesheet.Entry, error) {
	row := t.s.db.QueryRowContext(ctx, `SELECT `+timesheetColumns+` FROM timesheets WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return timesheet.Entry{}, &generic.NotFoundError{Kind: "timesheet", ID: id}
	}
	return e, err
}

func (t *Timesheets) List(ctx context.Context, filter timesheet.Filter) ([]timesheet.Entry, error) {
	var (
		where []string
		args  []any
	)
	if filter.EmployeeID != "" {
		where = append(where, "employee_id = ?")
		args = append(args, filter.EmployeeID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Project != "" {
		where = append(where, "project = ?")
		args = append(args, filter.Project)
	}
	if filter.From != nil {
		where = append(where, "work_date >= ?")
		args = append(args, filter.From.String())
	}
	if filter.To != nil {
		where = append(where, "work_date <= ?")
		args = append(args, filter.To.String())
	}

	query := `SELECT ` + timesheetColumns + ` FROM timesheets`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY work_date ASC, created_at ASC"

	rows, err := t.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query timesheets: %w", err)
	}
	defer rows.Close()

	out := []timesheet.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *Timesheets) Update(ctx context.Context, id string, fn func(timesheet.Entry) (timesheet.Entry, error)) (timesheet.Entry, error) {
	t.s.reqMu.Lock()
	defer t.s.reqMu.Unlock()

	current, err := t.Get(ctx, id)
	if err != nil {
		return timesheet.Entry{}, err
	}
	next, err := fn(current)
	if err != nil {
		return timesheet.Entry{}, err
	}
	next.ID = current.ID

	query := `UPDATE timesheets SET
		employee_id = ?, employee_name = ?, project = ?, work_date = ?, hours = ?, description = ?,
		status = ?, submitted_at = ?, reviewed_by = ?, reviewed_at = ?, created_at = ?
		WHERE id = ?`
	args := append(entryArgs(next)[1:], next.ID)
	if _, err := t.s.db.ExecContext(ctx, query, args...); err != nil {
		return timesheet.Entry{}, fmt.Errorf("failed to update timesheet: %w", err)
	}
	return next, nil
}

func entryArgs(e timesheet.Entry) []any {
	return []any{
		e.ID,
		e.EmployeeID,
		nullString(e.EmployeeName),
		e.Project,
		e.Date.String(),
		e.Hours.String(),
		nullString(e.Description),
		e.Status,
		nullTime(e.SubmittedAt),
		nullString(e.ReviewedBy),
		nullTime(e.ReviewedAt),
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func scanEntry(row rowScanner) (timesheet.Entry, error) {
	var (
		e            timesheet.Entry
		employeeName sql.NullString
		workDate     string
		hours        string
		description  sql.NullString
		submittedAt  sql.NullString
		reviewedBy   sql.NullString
		reviewedAt   sql.NullString
		createdAt    string
	)
	err := row.Scan(
		&e.ID, &e.EmployeeID, &employeeName, &e.Project, &workDate, &hours, &description,
		&e.Status, &submittedAt, &reviewedBy, &reviewedAt, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return e, err
		}
		return e, fmt.Errorf("failed to scan timesheet: %w", err)
	}

	e.EmployeeName = employeeName.String
	e.Description = description.String
	e.ReviewedBy = reviewedBy.String
	if e.Date, err = generic.ParseDate(workDate); err != nil {
		return e, err
	}
	if e.Hours, err = decimal.NewFromString(hours); err != nil {
		return e, err
	}
	if e.SubmittedAt, err = parseNullTime(submittedAt); err != nil {
		return e, err
	}
	if e.ReviewedAt, err = parseNullTime(reviewedAt); err != nil {
		return e, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return e, err
	}
	return e, nil
}
