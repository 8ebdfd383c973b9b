/*
Package timesheet records worked hours per employee, project and day.

PURPOSE:
  The second metered workflow next to leave. Employees log entries in
  Draft, submit them, and a reviewer approves or rejects. Approved hours
  are posted to the generic ledger so reports read from one source.

KEY DIFFERENCES FROM LEAVE:
  1. Units: fractional hours (decimal), not whole days
  2. Non-unique days: several entries on one date are normal
  3. Daily cap instead of balance: approved hours per day never exceed 24

STATE MACHINE:
  Draft --submit--> Submitted --approve--> Approved (terminal)
                              --reject---> Rejected (terminal)

HOURS:
  0 < hours <= 24, in quarter-hour steps (7.5 ok, 7.3 not).

SEE ALSO:
  - service.go: lifecycle and ledger posting
  - timeoff/: the leave counterpart
*/
package timesheet

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lumina/policy-engine/generic"
)

// =============================================================================
// TIMESHEET RESOURCE TYPE
// =============================================================================

// Resource is the ledger resource type for the timesheets domain.
type Resource string

func (r Resource) ResourceID() string     { return string(r) }
func (r Resource) ResourceDomain() string { return "timesheets" }

// Compile-time check that Resource implements generic.ResourceType
var _ generic.ResourceType = Resource("")

// ResourceApprovedHours holds one grant per approved entry.
const ResourceApprovedHours Resource = "approved_hours"

func init() {
	generic.RegisterResource(ResourceApprovedHours)
}

var (
	maxDailyHours = decimal.NewFromInt(24)
	quarterHour   = decimal.RequireFromString("0.25")
)

// =============================================================================
// ENTRIES
// =============================================================================

type Status string

const (
	StatusDraft     Status = "Draft"
	StatusSubmitted Status = "Submitted"
	StatusApproved  Status = "Approved"
	StatusRejected  Status = "Rejected"
)

// Decided reports whether the status is terminal.
func (s Status) Decided() bool { return s == StatusApproved || s == StatusRejected }

type Decision string

const (
	Approve Decision = "Approved"
	Reject  Decision = "Rejected"
)

// ParseDecision accepts "approve"/"approved"/"reject"/"rejected".
func ParseDecision(s string) (Decision, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approve", "approved":
		return Approve, true
	case "reject", "rejected":
		return Reject, true
	}
	return Decision(s), false
}

// Entry is one block of work on one day.
type Entry struct {
	ID           string
	EmployeeID   generic.EntityID
	EmployeeName string
	Project      string
	Date         generic.TimePoint
	Hours        decimal.Decimal
	Description  string
	Status       Status

	CreatedAt   time.Time
	SubmittedAt *time.Time
	ReviewedBy  string
	ReviewedAt  *time.Time
}

// Draft is the input for logging an entry.
type Draft struct {
	EmployeeID   generic.EntityID
	EmployeeName string
	Project      string
	Date         generic.TimePoint
	Hours        decimal.Decimal
	Description  string
}

// ValidateHours checks the range and the quarter-hour granularity.
func ValidateHours(h decimal.Decimal) error {
	if !h.IsPositive() || h.GreaterThan(maxDailyHours) {
		return &generic.ValidationError{Field: "hours", Code: "out_of_range", Message: fmt.Sprintf("hours must be in (0, 24], got %s", h)}
	}
	if !h.Mod(quarterHour).IsZero() {
		return &generic.ValidationError{Field: "hours", Code: "granularity", Message: fmt.Sprintf("hours must be in quarter-hour steps, got %s", h)}
	}
	return nil
}

// Validate checks a draft before it is stored.
func (d Draft) Validate() error {
	if d.EmployeeID == "" {
		return &generic.ValidationError{Field: "employee_id", Code: "required", Message: "employee is required"}
	}
	if strings.TrimSpace(d.Project) == "" {
		return &generic.ValidationError{Field: "project", Code: "required", Message: "project is required"}
	}
	if d.Date.IsZero() {
		return &generic.ValidationError{Field: "date", Code: "required", Message: "date is required"}
	}
	return ValidateHours(d.Hours)
}

// =============================================================================
// SUMMARY
// =============================================================================

// Summary totals a set of entries.
type Summary struct {
	Entries   int
	Total     decimal.Decimal
	ByStatus  map[Status]decimal.Decimal
	ByProject map[string]decimal.Decimal
}

// Summarize totals entries by status and project. Rejected hours are
// reported under ByStatus but left out of Total and ByProject.
func Summarize(entries []Entry) Summary {
	s := Summary{
		Total:     decimal.Zero,
		ByStatus:  make(map[Status]decimal.Decimal),
		ByProject: make(map[string]decimal.Decimal),
	}
	for _, e := range entries {
		s.Entries++
		s.ByStatus[e.Status] = s.ByStatus[e.Status].Add(e.Hours)
		if e.Status == StatusRejected {
			continue
		}
		s.Total = s.Total.Add(e.Hours)
		s.ByProject[e.Project] = s.ByProject[e.Project].Add(e.Hours)
	}
	return s
}
