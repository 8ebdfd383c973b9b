/*
Package generic provides the shared kernel of the policy engine.

PURPOSE:
  Domain-agnostic types used by both the leave engine (timeoff) and the
  timesheet module: quantities, calendar dates, ledger transactions, the
  audit trail and the error taxonomy. Nothing in this package knows what a
  leave type or a role is.

KEY CONCEPTS IN THIS FILE (types.go):
  - Amount: a quantity with a unit (leave days, timesheet hours)
  - Transaction: an immutable ledger entry recording a balance change
  - EntityID / TransactionID: type-safe identifiers

DESIGN PRINCIPLES:
  1. Immutability: transactions are never modified, only reversed
  2. Precision: decimal.Decimal for fractional hours, whole numbers for leave days
  3. Auditability: every transaction has a reason, a reference and an idempotency key

USAGE:
  tx := generic.Transaction{
      EntityID:     "emp-001",
      ResourceType: timeoff.Annual,
      Delta:        generic.DaysAmount(18),
      Type:         generic.TxGrant,
  }

SEE ALSO:
  - ledger.go: balance derived from transactions
  - store.go: persistence interfaces
  - time.go: TimePoint calendar dates
*/
package generic

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// AMOUNT - Quantity with unit
// =============================================================================

type Amount struct {
	Value decimal.Decimal
	Unit  Unit
}

type Unit string

const (
	UnitDays  Unit = "days"
	UnitHours Unit = "hours"
)

func NewAmount(value decimal.Decimal, unit Unit) Amount {
	return Amount{Value: value, Unit: unit}
}

func NewAmountFromInt(value int, unit Unit) Amount {
	return Amount{Value: decimal.NewFromInt(int64(value)), Unit: unit}
}

// DaysAmount is shorthand for a whole-day amount.
func DaysAmount(days int) Amount { return NewAmountFromInt(days, UnitDays) }

// ParseAmount reads a decimal string such as "7.5".
func ParseAmount(value string, unit Unit) (Amount, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Amount{}, err
	}
	return Amount{Value: d, Unit: unit}, nil
}

func (a Amount) Zero() Amount              { return Amount{Value: decimal.Zero, Unit: a.Unit} }
func (a Amount) Add(b Amount) Amount       { return Amount{Value: a.Value.Add(b.Value), Unit: a.Unit} }
func (a Amount) Sub(b Amount) Amount       { return Amount{Value: a.Value.Sub(b.Value), Unit: a.Unit} }
func (a Amount) Neg() Amount               { return Amount{Value: a.Value.Neg(), Unit: a.Unit} }
func (a Amount) IsNegative() bool          { return a.Value.IsNegative() }
func (a Amount) IsZero() bool              { return a.Value.IsZero() }
func (a Amount) IsPositive() bool          { return a.Value.IsPositive() }
func (a Amount) GreaterThan(b Amount) bool { return a.Value.GreaterThan(b.Value) }
func (a Amount) LessThan(b Amount) bool    { return a.Value.LessThan(b.Value) }
func (a Amount) String() string            { return a.Value.String() + " " + string(a.Unit) }

// Days truncates the amount to whole days. Leave arithmetic is integral.
func (a Amount) Days() int { return int(a.Value.IntPart()) }

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EntityID string
type TransactionID string

// ResourceType identifies what kind of quantity a transaction moves.
// Domain packages define their own concrete types:
//
//	// In timeoff/types.go
//	type LeaveType string
//	func (t LeaveType) ResourceID() string     { return string(t) }
//	func (t LeaveType) ResourceDomain() string { return "leave" }
type ResourceType interface {
	// ResourceID returns the unique identifier for this resource type.
	ResourceID() string

	// ResourceDomain returns which domain this resource belongs to.
	ResourceDomain() string
}

// =============================================================================
// TRANSACTION - Atomic change to a balance
// =============================================================================

type TransactionType string

const (
	TxGrant       TransactionType = "grant"       // Annual allowance
	TxConsumption TransactionType = "consumption" // Approved leave day
	TxAdjustment  TransactionType = "adjustment"  // Manual admin correction
	TxReversal    TransactionType = "reversal"    // Undo a previous transaction
)

type Transaction struct {
	ID             TransactionID
	EntityID       EntityID
	ResourceType   ResourceType
	EffectiveAt    TimePoint
	Delta          Amount
	Type           TransactionType
	ReferenceID    string
	Reason         string
	IdempotencyKey string
	Metadata       map[string]string

	CreatedBy string
	CreatedAt TimePoint
}

// Resource returns the transaction's resource ID, or "" when unset.
func (tx Transaction) Resource() string {
	if tx.ResourceType == nil {
		return ""
	}
	return tx.ResourceType.ResourceID()
}
