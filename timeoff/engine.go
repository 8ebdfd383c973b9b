/*
engine.go - Pure leave workflow operations

PURPOSE:
  Submission and review as functions over explicit inputs. Nothing here
  touches a store: callers pass the calendar and balances in a
  LeaveContext and get a new LeaveRequest value back.

OPERATIONS:
  Quote:          fail-soft evaluation for interactive form edits
  Submit:         validate a draft and produce a Pending request
  ReviewDecision: move a Pending request to Approved or Rejected

STATE MACHINE:
  Pending --approve--> Approved (terminal)
  Pending --reject---> Rejected (terminal)

  Reviewing a terminal request again is a hard error
  (generic.ErrAlreadyReviewed), never a silent no-op.

SEE ALSO:
  - request.go: RequestService persists and debits approved requests
  - eligibility.go: CanSubmit / Check
*/
package timeoff

import (
	"time"

	"github.com/google/uuid"

	"github.com/lumina/policy-engine/generic"
)

// LeaveContext carries everything an evaluation depends on.
type LeaveContext struct {
	Calendar *Calendar
	Balances Balances
}

// Engine holds the sources of identity and time for new requests.
type Engine struct {
	NewID func() string
	Now   func() time.Time
}

// NewEngine returns an engine that issues UUIDs and uses the wall clock.
func NewEngine() *Engine {
	return &Engine{
		NewID: uuid.NewString,
		Now:   time.Now,
	}
}

// =============================================================================
// QUOTE
// =============================================================================

// Quote is what the leave form shows while the user edits dates.
type Quote struct {
	Days        int
	Holidays    []Holiday
	Eligibility Eligibility
}

// Quote evaluates a draft without failing. A reversed or over-long range
// costs 0 days and overlaps no holidays.
func (e *Engine) Quote(lc LeaveContext, d Draft) Quote {
	if ValidateRange(d.StartDate, d.EndDate) != nil {
		return Quote{Holidays: []Holiday{}, Eligibility: Check(d.Type, 0, lc.Balances)}
	}
	days := lc.Calendar.WorkingDays(d.StartDate, d.EndDate)
	return Quote{
		Days:        days,
		Holidays:    lc.Calendar.OverlappingHolidays(d.StartDate, d.EndDate),
		Eligibility: Check(d.Type, days, lc.Balances),
	}
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit validates a draft and returns a new Pending request with a fresh
// ID. It rejects reversed or over-long ranges and missing employees with a
// *generic.ValidationError, and failed eligibility with a *RejectionError.
func (e *Engine) Submit(lc LeaveContext, d Draft) (LeaveRequest, error) {
	if d.EmployeeID == "" {
		return LeaveRequest{}, &generic.ValidationError{Field: "employee_id", Code: "required", Message: "employee is required"}
	}
	if !d.Type.Valid() {
		return LeaveRequest{}, &RejectionError{Type: d.Type, Eligibility: Eligibility{Reason: ReasonUnknownType}}
	}
	days, err := lc.Calendar.WorkingDaysStrict(d.StartDate, d.EndDate)
	if err != nil {
		return LeaveRequest{}, err
	}

	if el := Check(d.Type, days, lc.Balances); !el.Allowed {
		return LeaveRequest{}, &RejectionError{Type: d.Type, Eligibility: el}
	}

	return LeaveRequest{
		ID:           e.NewID(),
		EmployeeID:   d.EmployeeID,
		EmployeeName: d.EmployeeName,
		Type:         d.Type,
		StartDate:    d.StartDate,
		EndDate:      d.EndDate,
		Days:         days,
		Status:       StatusPending,
		Reason:       d.Reason,
		CreatedAt:    e.Now(),
	}, nil
}

// =============================================================================
// REVIEW
// =============================================================================

// ReviewDecision returns a copy of req with the decision applied. Only
// Pending requests may be reviewed.
func ReviewDecision(req LeaveRequest, decision Decision) (LeaveRequest, error) {
	next, ok := decision.Status()
	if !ok {
		return req, &generic.ValidationError{Field: "decision", Code: "invalid_decision", Message: "decision must be Approved or Rejected"}
	}
	if req.Status != StatusPending {
		return req, &generic.TransitionError{
			Kind:    "leave_request",
			ID:      req.ID,
			From:    string(req.Status),
			To:      string(next),
			Decided: req.Status.Decided(),
		}
	}
	req.Status = next
	return req, nil
}
