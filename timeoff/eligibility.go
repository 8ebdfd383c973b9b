package timeoff

import (
	"fmt"

	"github.com/lumina/policy-engine/generic"
)

// =============================================================================
// ELIGIBILITY - May this request be submitted?
// =============================================================================

// RejectionReason explains why a request may not be submitted.
type RejectionReason string

const (
	ReasonNone                RejectionReason = ""
	ReasonZeroDays            RejectionReason = "zero_days"
	ReasonInsufficientBalance RejectionReason = "insufficient_balance"
	ReasonUnknownType         RejectionReason = "unknown_type"
)

// Eligibility is the outcome of Check.
type Eligibility struct {
	Allowed   bool
	Reason    RejectionReason
	Requested int
	Available int
	Unmetered bool
}

// CanSubmit reports whether requestedDays of leaveType fit the balances.
// Every request needs at least one working day. Unmetered types then skip
// the balance check; metered ones need no more than the remaining balance
// (missing balance is 0).
func CanSubmit(leaveType LeaveType, requestedDays int, balances Balances) bool {
	return Check(leaveType, requestedDays, balances).Allowed
}

// Check is CanSubmit with the reason attached.
func Check(leaveType LeaveType, requestedDays int, balances Balances) Eligibility {
	e := Eligibility{
		Requested: requestedDays,
		Available: balances.Of(leaveType),
		Unmetered: leaveType.Unmetered(),
	}

	switch {
	case !leaveType.Valid():
		e.Reason = ReasonUnknownType
	case requestedDays <= 0:
		e.Reason = ReasonZeroDays
	case e.Unmetered:
		e.Allowed = true
	case requestedDays > e.Available:
		e.Reason = ReasonInsufficientBalance
	default:
		e.Allowed = true
	}
	return e
}

// RejectionError is returned by Submit when Check fails.
type RejectionError struct {
	Type LeaveType
	Eligibility
}

func (e *RejectionError) Error() string {
	switch e.Reason {
	case ReasonZeroDays:
		return "request covers no working days"
	case ReasonUnknownType:
		return fmt.Sprintf("unknown leave type %q", e.Type)
	default:
		return fmt.Sprintf("insufficient %s balance: requested %d, available %d", e.Type, e.Requested, e.Available)
	}
}

// Unwrap maps the reason onto the generic sentinels.
func (e *RejectionError) Unwrap() error {
	if e.Reason == ReasonInsufficientBalance {
		return generic.ErrInsufficientBalance
	}
	return generic.ErrValidation
}
