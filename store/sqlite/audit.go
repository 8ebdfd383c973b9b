package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lumina/policy-engine/generic"
)

// =============================================================================
// AUDIT LOG (generic.AuditLog interface)
// =============================================================================

// AuditLog stores audit entries in the append-only audit_log table.
type AuditLog struct {
	s *Store
}

var _ generic.AuditLog = (*AuditLog)(nil)

// Audit returns the audit log backed by s.
func (s *Store) Audit() *AuditLog {
	return &AuditLog{s: s}
}

func (a *AuditLog) Append(ctx context.Context, e generic.AuditEntry) error {
	query := `INSERT INTO audit_log (id, at, actor_id, role, action, module, target, details, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := a.s.db.ExecContext(ctx, query,
		e.ID,
		e.At.UTC().Format(time.RFC3339Nano),
		nullString(e.ActorID),
		nullString(e.Role),
		e.Action,
		nullString(e.Module),
		nullString(e.Target),
		nullString(e.Details),
		e.Outcome,
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// Query returns matching entries, newest first.
func (a *AuditLog) Query(ctx context.Context, f generic.AuditFilter) ([]generic.AuditEntry, error) {
	var (
		where []string
		args  []any
	)
	if f.ActorID != "" {
		where = append(where, "actor_id = ?")
		args = append(args, f.ActorID)
	}
	if f.Module != "" {
		where = append(where, "module = ?")
		args = append(args, f.Module)
	}
	if f.Outcome != "" {
		where = append(where, "outcome = ?")
		args = append(args, f.Outcome)
	}
	if len(f.Actions) > 0 {
		marks := make([]string, len(f.Actions))
		for i, action := range f.Actions {
			marks[i] = "?"
			args = append(args, action)
		}
		where = append(where, "action IN ("+strings.Join(marks, ", ")+")")
	}
	if f.From != nil {
		where = append(where, "at >= ?")
		args = append(args, f.From.UTC().Format(time.RFC3339Nano))
	}
	if f.To != nil {
		where = append(where, "at <= ?")
		args = append(args, f.To.UTC().Format(time.RFC3339Nano))
	}

	query := `SELECT id, at, actor_id, role, action, module, target, details, outcome FROM audit_log`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := a.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var out []generic.AuditEntry
	for rows.Next() {
		var (
			e                                    generic.AuditEntry
			at                                   string
			actorID, role, module, target, details sql.NullString
		)
		if err := rows.Scan(&e.ID, &at, &actorID, &role, &e.Action, &module, &target, &details, &e.Outcome); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if e.At, err = parseTime(at); err != nil {
			return nil, err
		}
		e.ActorID = actorID.String
		e.Role = role.String
		e.Module = module.String
		e.Target = target.String
		e.Details = details.String
		out = append(out, e)
	}
	return out, rows.Err()
}
