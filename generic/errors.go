/*
errors.go - Centralized error types for the policy engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Ledger errors - transaction persistence failures
  2. Validation errors - malformed input (dates, ranges, hours)
  3. Workflow errors - illegal status transitions
  4. Access errors - entitlement denials

USAGE:
  Callers branch on sentinels with errors.Is:

    if errors.Is(err, generic.ErrAlreadyReviewed) {
        // 409
    }

SEE ALSO:
  - ledger.go: Uses these errors
  - timeoff/engine.go: Wraps these errors with leave context
  - api/handlers.go: Maps errors to HTTP status codes
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrDuplicateIdempotencyKey is returned when a transaction with the same
	// idempotency key already exists. This is expected behavior for retries.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrDuplicateDayConsumption is returned when the same calendar day would
	// be consumed twice for one employee.
	ErrDuplicateDayConsumption = errors.New("duplicate consumption on same day")

	// ErrInsufficientBalance is returned when consumption exceeds available balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrValidation is the root of all input validation failures.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidRange is returned by strict date-range evaluation when the
	// end date precedes the start date.
	ErrInvalidRange = errors.New("invalid range: end before start")

	// ErrInvalidTransition is returned when a status change is not allowed.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrAlreadyReviewed is returned when a decided record is reviewed again.
	ErrAlreadyReviewed = errors.New("already reviewed")

	// ErrAccessDenied is returned when a role lacks the required entitlement.
	ErrAccessDenied = errors.New("access denied")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes one rejected input field.
type ValidationError struct {
	Field   string
	Code    string // e.g. "invalid_range", "invalid_hours"
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Field)
}

// Is lets errors.Is match both ErrValidation and ErrInvalidRange.
func (e *ValidationError) Is(target error) bool {
	if target == ErrValidation {
		return true
	}
	return target == ErrInvalidRange && e.Code == CodeInvalidRange
}

// CodeInvalidRange is the ValidationError code for end-before-start ranges.
const CodeInvalidRange = "invalid_range"

// CodeRangeTooLong is the ValidationError code for ranges past the
// request length limit.
const CodeRangeTooLong = "range_too_long"

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	EntityID  EntityID
	Resource  string
	Available Amount
	Requested Amount
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance: available %v, requested %v",
		e.Resource, e.Available.Value, e.Requested.Value)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// TransitionError reports a rejected status change on a workflow record.
type TransitionError struct {
	Kind    string // "leave_request", "timesheet_entry"
	ID      string
	From    string
	To      string
	Decided bool // From is a terminal review outcome
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s %s: cannot move from %s to %s", e.Kind, e.ID, e.From, e.To)
}

// Unwrap reports ErrAlreadyReviewed for records that already carry a decision.
func (e *TransitionError) Unwrap() []error {
	if e.Decided {
		return []error{ErrInvalidTransition, ErrAlreadyReviewed}
	}
	return []error{ErrInvalidTransition}
}

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrDuplicateDayConsumption) ||
		errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true if the error indicates a state conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyReviewed) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrDuplicateDayConsumption)
}
