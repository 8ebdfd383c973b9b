/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

ENVELOPE:
  Every response is wrapped: {"data": ...} on success,
  {"error": {"code": ..., "message": ...}} on failure.

DATES:
  Calendar dates are "YYYY-MM-DD" strings, instants are RFC 3339.
  Hours are decimal strings ("7.5") so no precision is lost.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/lumina/policy-engine/access"
	"github.com/lumina/policy-engine/generic"
	"github.com/lumina/policy-engine/timeoff"
	"github.com/lumina/policy-engine/timesheet"
)

// =============================================================================
// ENVELOPE
// =============================================================================

type envelope struct {
	Data  any       `json:"data,omitempty"`
	Error *ErrorDTO `json:"error,omitempty"`
}

// ErrorDTO is the error half of the envelope.
type ErrorDTO struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// =============================================================================
// ACCESS
// =============================================================================

// PermissionDTO is one matrix cell.
type PermissionDTO struct {
	Read  bool `json:"read"`
	Write bool `json:"write"`
}

// AccessProfileDTO describes the caller's entitlements.
type AccessProfileDTO struct {
	Role           string                   `json:"role"`
	Permissions    map[string]PermissionDTO `json:"permissions"`
	VisibleModules []string                 `json:"visible_modules"`
}

// AccessCheckDTO answers one hasAccess question.
type AccessCheckDTO struct {
	Role    string `json:"role"`
	Module  string `json:"module"`
	Mode    string `json:"mode"`
	Allowed bool   `json:"allowed"`
}

// MatrixDTO is the whole entitlement table.
type MatrixDTO struct {
	Roles   []string                            `json:"roles"`
	Modules []string                            `json:"modules"`
	Matrix  map[string]map[string]PermissionDTO `json:"matrix"`
}

func toPermissionMap(row map[access.Module]access.Permission) map[string]PermissionDTO {
	out := make(map[string]PermissionDTO, len(row))
	for m, p := range row {
		out[string(m)] = PermissionDTO{Read: p.Read, Write: p.Write}
	}
	return out
}

// PolicyReloadDTO reports the outcome of replacing the policy document.
type PolicyReloadDTO struct {
	Roles    int `json:"roles"`
	Holidays int `json:"holidays"`
}

// =============================================================================
// HOLIDAYS + LEAVE
// =============================================================================

// HolidayDTO is one catalog entry.
type HolidayDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Date string `json:"date"`
	Type string `json:"type"`
}

func toHolidayDTOs(hs []timeoff.Holiday) []HolidayDTO {
	out := make([]HolidayDTO, len(hs))
	for i, h := range hs {
		out[i] = HolidayDTO{ID: h.ID, Name: h.Name, Date: h.Date.String(), Type: string(h.Type)}
	}
	return out
}

// LeaveDraftRequest is the leave form body, used by quote and submit.
type LeaveDraftRequest struct {
	EmployeeID   string `json:"employee_id"`
	EmployeeName string `json:"employee_name"`
	Type         string `json:"type"`
	StartDate    string `json:"start_date"`
	EndDate      string `json:"end_date"`
	Reason       string `json:"reason"`
}

// QuoteDTO is the fail-soft evaluation of a draft.
type QuoteDTO struct {
	Days      int          `json:"days"`
	Holidays  []HolidayDTO `json:"holidays"`
	Allowed   bool         `json:"allowed"`
	Reason    string       `json:"reason,omitempty"`
	Available int          `json:"available"`
	Unmetered bool         `json:"unmetered"`
}

func toQuoteDTO(q timeoff.Quote) QuoteDTO {
	return QuoteDTO{
		Days:      q.Days,
		Holidays:  toHolidayDTOs(q.Holidays),
		Allowed:   q.Eligibility.Allowed,
		Reason:    string(q.Eligibility.Reason),
		Available: q.Eligibility.Available,
		Unmetered: q.Eligibility.Unmetered,
	}
}

// LeaveRequestDTO represents a leave request in API responses.
type LeaveRequestDTO struct {
	ID           string  `json:"id"`
	EmployeeID   string  `json:"employee_id"`
	EmployeeName string  `json:"employee_name,omitempty"`
	Type         string  `json:"type"`
	StartDate    string  `json:"start_date"`
	EndDate      string  `json:"end_date"`
	Days         int     `json:"days"`
	Status       string  `json:"status"`
	Reason       string  `json:"reason,omitempty"`
	Redacted     bool    `json:"redacted,omitempty"`
	CreatedAt    string  `json:"created_at"`
	ReviewedBy   string  `json:"reviewed_by,omitempty"`
	ReviewedAt   *string `json:"reviewed_at,omitempty"`
}

func toLeaveRequestDTO(r timeoff.LeaveRequest) LeaveRequestDTO {
	return LeaveRequestDTO{
		ID:           r.ID,
		EmployeeID:   string(r.EmployeeID),
		EmployeeName: r.EmployeeName,
		Type:         string(r.Type),
		StartDate:    r.StartDate.String(),
		EndDate:      r.EndDate.String(),
		Days:         r.Days,
		Status:       string(r.Status),
		Reason:       r.Reason,
		Redacted:     r.Redacted,
		CreatedAt:    r.CreatedAt.UTC().Format(time.RFC3339),
		ReviewedBy:   r.ReviewedBy,
		ReviewedAt:   formatInstant(r.ReviewedAt),
	}
}

// ReviewRequest carries a reviewer's decision.
type ReviewRequest struct {
	Decision string `json:"decision"`
}

// BalancesDTO lists remaining days per metered leave type.
type BalancesDTO struct {
	EmployeeID string         `json:"employee_id"`
	Year       int            `json:"year"`
	Balances   map[string]int `json:"balances"`
}

// AdjustmentRequest is a manual balance correction.
type AdjustmentRequest struct {
	Type   string `json:"type"`
	Days   int    `json:"days"`
	Reason string `json:"reason"`
}

// DayOffDTO is one approved day of leave.
type DayOffDTO struct {
	Date      string `json:"date"`
	Type      string `json:"type"`
	RequestID string `json:"request_id"`
}

// =============================================================================
// TIMESHEETS
// =============================================================================

// LogTimesheetRequest is the body for logging hours.
type LogTimesheetRequest struct {
	EmployeeID   string `json:"employee_id"`
	EmployeeName string `json:"employee_name"`
	Project      string `json:"project"`
	Date         string `json:"date"`
	Hours        string `json:"hours"`
	Description  string `json:"description"`
}

// TimesheetDTO represents a timesheet entry in API responses.
type TimesheetDTO struct {
	ID           string  `json:"id"`
	EmployeeID   string  `json:"employee_id"`
	EmployeeName string  `json:"employee_name,omitempty"`
	Project      string  `json:"project"`
	Date         string  `json:"date"`
	Hours        string  `json:"hours"`
	Description  string  `json:"description,omitempty"`
	Status       string  `json:"status"`
	SubmittedAt  *string `json:"submitted_at,omitempty"`
	ReviewedBy   string  `json:"reviewed_by,omitempty"`
	ReviewedAt   *string `json:"reviewed_at,omitempty"`
}

func toTimesheetDTO(e timesheet.Entry) TimesheetDTO {
	return TimesheetDTO{
		ID:           e.ID,
		EmployeeID:   string(e.EmployeeID),
		EmployeeName: e.EmployeeName,
		Project:      e.Project,
		Date:         e.Date.String(),
		Hours:        e.Hours.String(),
		Description:  e.Description,
		Status:       string(e.Status),
		SubmittedAt:  formatInstant(e.SubmittedAt),
		ReviewedBy:   e.ReviewedBy,
		ReviewedAt:   formatInstant(e.ReviewedAt),
	}
}

// TimesheetListDTO is a list of entries with their totals.
type TimesheetListDTO struct {
	Entries []TimesheetDTO      `json:"entries"`
	Summary TimesheetSummaryDTO `json:"summary"`
}

// TimesheetSummaryDTO mirrors timesheet.Summary with decimal strings.
type TimesheetSummaryDTO struct {
	Entries   int               `json:"entries"`
	Total     string            `json:"total"`
	ByStatus  map[string]string `json:"by_status"`
	ByProject map[string]string `json:"by_project"`
}

func toSummaryDTO(s timesheet.Summary) TimesheetSummaryDTO {
	out := TimesheetSummaryDTO{
		Entries:   s.Entries,
		Total:     s.Total.String(),
		ByStatus:  make(map[string]string, len(s.ByStatus)),
		ByProject: make(map[string]string, len(s.ByProject)),
	}
	for k, v := range s.ByStatus {
		out.ByStatus[string(k)] = v.String()
	}
	for k, v := range s.ByProject {
		out.ByProject[k] = v.String()
	}
	return out
}

// =============================================================================
// AUDIT + SCENARIOS
// =============================================================================

// AuditEntryDTO represents one audit record.
type AuditEntryDTO struct {
	ID      string `json:"id"`
	At      string `json:"at"`
	ActorID string `json:"actor_id,omitempty"`
	Role    string `json:"role,omitempty"`
	Action  string `json:"action"`
	Module  string `json:"module,omitempty"`
	Target  string `json:"target,omitempty"`
	Details string `json:"details,omitempty"`
	Outcome string `json:"outcome"`
}

func toAuditDTO(e generic.AuditEntry) AuditEntryDTO {
	return AuditEntryDTO{
		ID:      e.ID,
		At:      e.At.UTC().Format(time.RFC3339),
		ActorID: e.ActorID,
		Role:    e.Role,
		Action:  string(e.Action),
		Module:  e.Module,
		Target:  e.Target,
		Details: e.Details,
		Outcome: string(e.Outcome),
	}
}

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest is the request to load a scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

func formatInstant(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}
