/*
ledger.go - Leave ledger with day uniqueness enforcement

PURPOSE:
  Wraps the generic ledger with the leave rule that matters for approvals:
  an employee cannot be on leave twice on the same calendar day.

INVARIANT:
  No two consumption transactions for (EntityID, Date), across all leave
  types. Annual on May 21 and Sick on May 21 cannot both be approved.

WHAT IT CHECKS:
  1. Batch Append: are there duplicate days within the batch?
  2. Batch Append: does any batch day collide with an existing day off?

QUERYING:
  DaysOff(entityID, from, to) lists the consumed days in a range.

SEE ALSO:
  - generic/ledger.go: Base ledger
  - request.go: writes one consumption per approved working day
*/
package timeoff

import (
	"context"
	"fmt"

	"github.com/lumina/policy-engine/generic"
)

// =============================================================================
// LEAVE LEDGER - Wrapper with day uniqueness
// =============================================================================

type Ledger struct {
	inner generic.Ledger
	store generic.Store
}

// NewLedger wraps store with leave rules.
func NewLedger(store generic.Store) *Ledger {
	return &Ledger{inner: generic.NewLedger(store), store: store}
}

// Append adds one transaction, enforcing day uniqueness for consumptions.
func (l *Ledger) Append(ctx context.Context, tx generic.Transaction) error {
	return l.AppendBatch(ctx, []generic.Transaction{tx})
}

// AppendBatch adds transactions atomically after the uniqueness checks.
func (l *Ledger) AppendBatch(ctx context.Context, txs []generic.Transaction) error {
	seen := make(map[string]generic.TransactionID)
	for _, tx := range txs {
		if tx.Type != generic.TxConsumption {
			continue
		}
		day := tx.EffectiveAt.String()
		if existing, dup := seen[day]; dup {
			return &DuplicateDayError{EntityID: tx.EntityID, Date: tx.EffectiveAt, Type: tx.Resource(), ExistingTxID: existing, InBatch: true}
		}
		seen[day] = tx.ID

		if err := l.validateDayUniqueness(ctx, tx); err != nil {
			return err
		}
	}
	return l.inner.AppendBatch(ctx, txs)
}

// Balance returns the remaining days of t for the calendar year.
func (l *Ledger) Balance(ctx context.Context, entityID generic.EntityID, t LeaveType, year int) (int, error) {
	amount, err := l.inner.Balance(ctx, entityID, t, generic.StartOfYear(year), generic.EndOfYear(year), generic.UnitDays)
	if err != nil {
		return 0, err
	}
	return amount.Days(), nil
}

// Transactions returns the ledger for one employee and leave type.
func (l *Ledger) Transactions(ctx context.Context, entityID generic.EntityID, t LeaveType) ([]generic.Transaction, error) {
	return l.inner.Transactions(ctx, entityID, t)
}

// =============================================================================
// DAYS OFF
// =============================================================================

// DayOff is one consumed leave day.
type DayOff struct {
	Date      generic.TimePoint
	Type      string
	RequestID string
}

// DaysOff lists consumed days for an employee in [from, to], by date.
func (l *Ledger) DaysOff(ctx context.Context, entityID generic.EntityID, from, to generic.TimePoint) ([]DayOff, error) {
	txs, err := l.store.LoadByEntity(ctx, entityID, from, to)
	if err != nil {
		return nil, err
	}
	days := []DayOff{}
	for _, tx := range txs {
		if tx.Type != generic.TxConsumption {
			continue
		}
		days = append(days, DayOff{Date: tx.EffectiveAt, Type: tx.Resource(), RequestID: tx.ReferenceID})
	}
	return days, nil
}

func (l *Ledger) validateDayUniqueness(ctx context.Context, tx generic.Transaction) error {
	existing, err := l.store.LoadByEntity(ctx, tx.EntityID, tx.EffectiveAt, tx.EffectiveAt)
	if err != nil {
		return fmt.Errorf("failed to check day uniqueness: %w", err)
	}
	for _, e := range existing {
		if e.Type == generic.TxConsumption && e.EffectiveAt.Equal(tx.EffectiveAt) {
			return &DuplicateDayError{
				EntityID:     tx.EntityID,
				Date:         tx.EffectiveAt,
				Type:         e.Resource(),
				ExistingTxID: e.ID,
			}
		}
	}
	return nil
}

// =============================================================================
// ERROR TYPES
// =============================================================================

// DuplicateDayError is returned when a day is already taken.
type DuplicateDayError struct {
	EntityID     generic.EntityID
	Date         generic.TimePoint
	Type         string
	ExistingTxID generic.TransactionID
	InBatch      bool
}

func (e *DuplicateDayError) Error() string {
	if e.InBatch {
		return fmt.Sprintf("duplicate day in request: %s", e.Date)
	}
	return fmt.Sprintf("day already taken: %s is booked as %s leave (tx: %s)", e.Date, e.Type, e.ExistingTxID)
}

func (e *DuplicateDayError) Unwrap() error {
	return generic.ErrDuplicateDayConsumption
}
