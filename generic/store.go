/*
store.go - Persistence interfaces for transactions and the audit trail

PURPOSE:
  Defines the interface between the domain logic and the database.
  The Store handles persistence while maintaining append-only semantics.
  Implementations: SQLite (store/sqlite) and in-memory (generic/store).

KEY INTERFACES:
  Store:    transaction persistence (append, load, exists)
  TxStore:  transactional operations (atomic multi-record writes)
  AuditLog: who did what when, also append-only

APPEND-ONLY CONTRACT:
  - Append(): single transaction write
  - AppendBatch(): atomic multi-transaction write
  - NO Update() or Delete() methods exist

IDEMPOTENCY:
  Every write may carry an idempotency key. If the key already exists,
  the write is rejected with ErrDuplicateIdempotencyKey. Allowance grants
  rely on this: granting the same year twice is a no-op for callers that
  ignore the duplicate.

SEE ALSO:
  - ledger.go: higher-level interface using Store
  - store/sqlite/sqlite.go: SQLite implementation
  - generic/store/memory.go: in-memory implementation
*/
package generic

import (
	"context"
	"time"
)

// =============================================================================
// STORE - Interface for transaction persistence (append-only)
// =============================================================================

// Store handles persistence of transactions.
// Store is APPEND-ONLY. Corrections are made via reversal transactions.
type Store interface {
	// Append persists a transaction. Returns error if idempotency key exists.
	Append(ctx context.Context, tx Transaction) error

	// AppendBatch persists multiple transactions atomically.
	AppendBatch(ctx context.Context, txs []Transaction) error

	// Load returns all transactions for entity+resource, ordered by EffectiveAt.
	Load(ctx context.Context, entityID EntityID, resource ResourceType) ([]Transaction, error)

	// LoadRange returns entity+resource transactions effective in [from, to].
	LoadRange(ctx context.Context, entityID EntityID, resource ResourceType, from, to TimePoint) ([]Transaction, error)

	// LoadByEntity returns every transaction for an entity in [from, to],
	// across resources. Used for day-uniqueness checks.
	LoadByEntity(ctx context.Context, entityID EntityID, from, to TimePoint) ([]Transaction, error)

	// Exists checks if idempotency key already exists.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// AUDIT LOG - Separate from ledger, tracks who did what when
// =============================================================================

// AuditEntry records one action taken through the engine.
type AuditEntry struct {
	ID      string
	At      time.Time
	ActorID string
	Role    string
	Action  AuditAction
	Module  string // entitlement module the action belongs to
	Target  string // record the action touched, e.g. a request ID
	Details string
	Outcome AuditOutcome
}

type AuditAction string

const (
	AuditLeaveSubmitted     AuditAction = "leave_submitted"
	AuditLeaveApproved      AuditAction = "leave_approved"
	AuditLeaveRejected      AuditAction = "leave_rejected"
	AuditTimesheetLogged    AuditAction = "timesheet_logged"
	AuditTimesheetSubmitted AuditAction = "timesheet_submitted"
	AuditTimesheetApproved  AuditAction = "timesheet_approved"
	AuditTimesheetRejected  AuditAction = "timesheet_rejected"
	AuditAllowanceGranted   AuditAction = "allowance_granted"
	AuditAccessDenied       AuditAction = "access_denied"
	AuditRetentionPurge     AuditAction = "retention_purge"
	AuditPolicyReloaded     AuditAction = "policy_reloaded"
)

type AuditOutcome string

const (
	OutcomeSuccess AuditOutcome = "Success"
	OutcomeFailure AuditOutcome = "Failure"
)

// AuditLog stores audit entries. Also append-only.
type AuditLog interface {
	Append(ctx context.Context, entry AuditEntry) error
	Query(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

// AuditFilter narrows a Query. Zero fields match everything.
type AuditFilter struct {
	ActorID string
	Module  string
	Outcome AuditOutcome
	Actions []AuditAction
	From    *time.Time
	To      *time.Time
	Limit   int
}

// Matches reports whether e passes every set field of the filter.
func (f AuditFilter) Matches(e AuditEntry) bool {
	if f.ActorID != "" && e.ActorID != f.ActorID {
		return false
	}
	if f.Module != "" && e.Module != f.Module {
		return false
	}
	if f.Outcome != "" && e.Outcome != f.Outcome {
		return false
	}
	if len(f.Actions) > 0 {
		found := false
		for _, a := range f.Actions {
			if a == e.Action {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.From != nil && e.At.Before(*f.From) {
		return false
	}
	if f.To != nil && e.At.After(*f.To) {
		return false
	}
	return true
}
