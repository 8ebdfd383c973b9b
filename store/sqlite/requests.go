package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lumina/policy-engine/generic"
	"github.com/lumina/policy-engine/timeoff"
)

// =============================================================================
// LEAVE REQUEST STORE (timeoff.RequestStore interface)
// =============================================================================

// LeaveRequests stores leave requests in the leave_requests table.
type LeaveRequests struct {
	s *Store
}

var _ timeoff.RequestStore = (*LeaveRequests)(nil)

// LeaveRequests returns the leave request store backed by s.
func (s *Store) LeaveRequests() *LeaveRequests {
	return &LeaveRequests{s: s}
}

const requestColumns = `id, employee_id, employee_name, leave_type, start_date, end_date, days,
	status, reason, redacted, reviewed_by, reviewed_at, created_at`

func (r *LeaveRequests) Create(ctx context.Context, req timeoff.LeaveRequest) error {
	r.s.reqMu.Lock()
	defer r.s.reqMu.Unlock()

	query := `INSERT INTO leave_requests (` + requestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.s.db.ExecContext(ctx, query, requestArgs(req)...)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &generic.ValidationError{Field: "id", Code: "duplicate", Message: "request " + req.ID + " already exists"}
		}
		return fmt.Errorf("failed to insert request: %w", err)
	}
	return nil
}

func (r *LeaveRequests) Get(ctx context.Context, id string) (timeoff.LeaveRequest, error) {
	return r.get(ctx, id)
}

func (r *LeaveRequests) get(ctx context.Context, id string) (timeoff.LeaveRequest, error) {
	row := r.s.db.QueryRowContext(ctx, `SELECT `+requestColumns+` FROM leave_requests WHERE id = ?`, id)
	req, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return timeoff.LeaveRequest{}, &generic.NotFoundError{Kind: "leave_request", ID: id}
	}
	return req, err
}

func (r *LeaveRequests) List(ctx context.Context, filter timeoff.RequestFilter) ([]timeoff.LeaveRequest, error) {
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
	if filter.Type != "" {
		where = append(where, "leave_type = ?")
		args = append(args, filter.Type)
	}
	if filter.EndedBefore != nil {
		where = append(where, "end_date < ?")
		args = append(args, filter.EndedBefore.String())
	}

	query := `SELECT ` + requestColumns + ` FROM leave_requests`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id ASC"

	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	out := []timeoff.LeaveRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// Update serializes writers with a store-level lock rather than a SQL
// transaction, so fn may itself open a ledger transaction. A ledger write
// made by fn stays committed when the UPDATE below fails; the approval
// path recognises its own debit on retry.
func (r *LeaveRequests) Update(ctx context.Context, id string, fn func(timeoff.LeaveRequest) (timeoff.LeaveRequest, error)) (timeoff.LeaveRequest, error) {
	r.s.reqMu.Lock()
	defer r.s.reqMu.Unlock()

	current, err := r.get(ctx, id)
	if err != nil {
		return timeoff.LeaveRequest{}, err
	}
	next, err := fn(current)
	if err != nil {
		return timeoff.LeaveRequest{}, err
	}
	next.ID = current.ID

	query := `UPDATE leave_requests SET
		employee_id = ?, employee_name = ?, leave_type = ?, start_date = ?, end_date = ?, days = ?,
		status = ?, reason = ?, redacted = ?, reviewed_by = ?, reviewed_at = ?, created_at = ?
		WHERE id = ?`
	args := append(requestArgs(next)[1:], next.ID)
	if _, err := r.s.db.ExecContext(ctx, query, args...); err != nil {
		return timeoff.LeaveRequest{}, fmt.Errorf("failed to update request: %w", err)
	}
	return next, nil
}

func requestArgs(req timeoff.LeaveRequest) []any {
	return []any{
		req.ID,
		req.EmployeeID,
		nullString(req.EmployeeName),
		req.Type,
		req.StartDate.String(),
		req.EndDate.String(),
		req.Days,
		req.Status,
		nullString(req.Reason),
		req.Redacted,
		nullString(req.ReviewedBy),
		nullTime(req.ReviewedAt),
		req.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRequest(row rowScanner) (timeoff.LeaveRequest, error) {
	var (
		req          timeoff.LeaveRequest
		employeeName sql.NullString
		startDate    string
		endDate      string
		reason       sql.NullString
		reviewedBy   sql.NullString
		reviewedAt   sql.NullString
		createdAt    string
	)
	err := row.Scan(
		&req.ID, &req.EmployeeID, &employeeName, &req.Type, &startDate, &endDate, &req.Days,
		&req.Status, &reason, &req.Redacted, &reviewedBy, &reviewedAt, &createdAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return req, err
		}
		return req, fmt.Errorf("failed to scan request: %w", err)
	}

	req.EmployeeName = employeeName.String
	req.Reason = reason.String
	req.ReviewedBy = reviewedBy.String
	if req.StartDate, err = generic.ParseDate(startDate); err != nil {
		return req, err
	}
	if req.EndDate, err = generic.ParseDate(endDate); err != nil {
		return req, err
	}
	if req.ReviewedAt, err = parseNullTime(reviewedAt); err != nil {
		return req, err
	}
	if req.CreatedAt, err = parseTime(createdAt); err != nil {
		return req, err
	}
	return req, nil
}
