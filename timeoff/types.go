// Package timeoff implements the leave accrual and calendar engine.
// It counts working days over a holiday catalog, decides whether a leave
// request may be submitted against the employee's balances, and drives the
// Pending -> Approved|Rejected review workflow on top of the generic ledger.
package timeoff

import (
	"strings"
	"time"

	"github.com/lumina/policy-engine/generic"
)

// =============================================================================
// LEAVE TYPES
// =============================================================================

// LeaveType is the category of a leave request. It doubles as the ledger
// resource type, so each metered type has its own balance.
type LeaveType string

func (t LeaveType) ResourceID() string     { return string(t) }
func (t LeaveType) ResourceDomain() string { return "leave" }

// Compile-time check that LeaveType implements generic.ResourceType
var _ generic.ResourceType = LeaveType("")

const (
	Annual             LeaveType = "Annual"
	Sick               LeaveType = "Sick"
	Personal           LeaveType = "Personal"
	MaternityPaternity LeaveType = "Maternity/Paternity"
)

var leaveTypes = []LeaveType{Annual, Sick, Personal, MaternityPaternity}

func init() {
	for _, t := range leaveTypes {
		generic.RegisterResource(t)
	}
}

// LeaveTypes returns every leave type in display order.
func LeaveTypes() []LeaveType {
	return append([]LeaveType(nil), leaveTypes...)
}

// MeteredTypes returns the leave types that draw on a balance.
func MeteredTypes() []LeaveType {
	var out []LeaveType
	for _, t := range leaveTypes {
		if !t.Unmetered() {
			out = append(out, t)
		}
	}
	return out
}

// Unmetered reports whether the type is statutory and never checked
// against a balance.
func (t LeaveType) Unmetered() bool { return t == MaternityPaternity }

// Valid reports whether t is a known leave type.
func (t LeaveType) Valid() bool {
	for _, known := range leaveTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseLeaveType matches a leave type name, ignoring case.
func ParseLeaveType(s string) (LeaveType, bool) {
	for _, t := range leaveTypes {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t, true
		}
	}
	return LeaveType(s), false
}

// Balances maps leave types to remaining whole days. Missing entries are 0.
type Balances map[LeaveType]int

// Of returns the balance for t, 0 when absent.
func (b Balances) Of(t LeaveType) int { return b[t] }

// =============================================================================
// LEAVE REQUESTS
// =============================================================================

type LeaveStatus string

const (
	StatusPending  LeaveStatus = "Pending"
	StatusApproved LeaveStatus = "Approved"
	StatusRejected LeaveStatus = "Rejected"
)

// Decided reports whether the status is terminal.
func (s LeaveStatus) Decided() bool {
	return s == StatusApproved || s == StatusRejected
}

// Decision is a reviewer's verdict on a pending request.
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

// Status is the request status a decision leads to.
func (d Decision) Status() (LeaveStatus, bool) {
	switch d {
	case Approve:
		return StatusApproved, true
	case Reject:
		return StatusRejected, true
	}
	return "", false
}

// LeaveRequest is an employee's application for leave over an inclusive
// date range. It is created Pending and moves exactly once to a
// terminal status; it is never deleted.
type LeaveRequest struct {
	ID           string
	EmployeeID   generic.EntityID
	EmployeeName string
	Type         LeaveType
	StartDate    generic.TimePoint
	EndDate      generic.TimePoint
	Days         int
	Status       LeaveStatus
	Reason       string

	CreatedAt  time.Time
	ReviewedBy string
	ReviewedAt *time.Time
	Redacted   bool // Reason removed by the retention job
}

// Draft is the form a caller fills in before submission.
type Draft struct {
	EmployeeID   generic.EntityID
	EmployeeName string
	Type         LeaveType
	StartDate    generic.TimePoint
	EndDate      generic.TimePoint
	Reason       string
}
