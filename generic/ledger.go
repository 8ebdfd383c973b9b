/*
ledger.go - Append-only transaction log

PURPOSE:
  The Ledger is the immutable source of truth for balance changes.
  Every allowance grant, approved leave day, adjustment and reversal is
  recorded here. Balance is always computed by replaying transactions;
  there is no separate "balance" field that can get out of sync.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: No Update, No Delete.
  2. IMMUTABLE: Once written, transactions cannot be modified
  3. IDEMPOTENT: Same idempotency key = same transaction (no duplicates)

CORRECTIONS:
  A mistake is corrected with a Reversal transaction of opposite sign.
  Both the original and the reversal remain in the ledger.

EXAMPLE FLOW:
  1. Annual allowance for 2024: TxGrant +18
  2. Request for 5 days approved: 5 x TxConsumption -1
  3. Balance(Annual, 2024) = 13

SEE ALSO:
  - store.go: Low-level persistence interface
  - timeoff/ledger.go: Leave wrapper with day-uniqueness
*/
package generic

import "context"

// =============================================================================
// LEDGER - Append-only transaction log
// =============================================================================

// Ledger is the source of truth for all balance changes.
type Ledger interface {
	// Append adds a transaction. Fails if idempotency key exists.
	Append(ctx context.Context, tx Transaction) error

	// AppendBatch adds multiple transactions atomically.
	AppendBatch(ctx context.Context, txs []Transaction) error

	// Transactions returns all transactions for entity+resource, chronologically.
	Transactions(ctx context.Context, entityID EntityID, resource ResourceType) ([]Transaction, error)

	// Balance sums the deltas effective in [from, to].
	Balance(ctx context.Context, entityID EntityID, resource ResourceType, from, to TimePoint, unit Unit) (Amount, error)
}

// =============================================================================
// DEFAULT LEDGER - Implementation using Store
// =============================================================================

type DefaultLedger struct {
	Store Store
}

func NewLedger(store Store) *DefaultLedger {
	return &DefaultLedger{Store: store}
}

func (l *DefaultLedger) Append(ctx context.Context, tx Transaction) error {
	if tx.IdempotencyKey != "" {
		exists, err := l.Store.Exists(ctx, tx.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.Append(ctx, tx)
}

func (l *DefaultLedger) AppendBatch(ctx context.Context, txs []Transaction) error {
	seen := make(map[string]bool, len(txs))
	for _, tx := range txs {
		if tx.IdempotencyKey == "" {
			continue
		}
		if seen[tx.IdempotencyKey] {
			return ErrDuplicateIdempotencyKey
		}
		seen[tx.IdempotencyKey] = true
		exists, err := l.Store.Exists(ctx, tx.IdempotencyKey)
		if err != nil {
			return err
		}
		if exists {
			return ErrDuplicateIdempotencyKey
		}
	}
	return l.Store.AppendBatch(ctx, txs)
}

func (l *DefaultLedger) Transactions(ctx context.Context, entityID EntityID, resource ResourceType) ([]Transaction, error) {
	return l.Store.Load(ctx, entityID, resource)
}

func (l *DefaultLedger) Balance(ctx context.Context, entityID EntityID, resource ResourceType, from, to TimePoint, unit Unit) (Amount, error) {
	txs, err := l.Store.LoadRange(ctx, entityID, resource, from, to)
	if err != nil {
		return Amount{}, err
	}
	return SumDeltas(txs, unit), nil
}

// SumDeltas adds up transaction deltas.
func SumDeltas(txs []Transaction, unit Unit) Amount {
	balance := NewAmountFromInt(0, unit)
	for _, tx := range txs {
		balance = balance.Add(tx.Delta)
	}
	return balance
}
