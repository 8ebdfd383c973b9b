// Package store provides in-memory implementations of the generic
// persistence interfaces.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/lumina/policy-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory ledger for unit tests; the server runs on store/sqlite
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	transactions map[key][]generic.Transaction
	idempotency  map[string]bool
}

type key struct {
	EntityID generic.EntityID
	Resource string
}

func NewMemory() *Memory {
	return &Memory{
		transactions: make(map[key][]generic.Transaction),
		idempotency:  make(map[string]bool),
	}
}

// Append adds a single transaction. Append-only.
func (m *Memory) Append(_ context.Context, tx generic.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if tx.IdempotencyKey != "" && m.idempotency[tx.IdempotencyKey] {
		return generic.ErrDuplicateIdempotencyKey
	}
	m.appendLocked(tx)
	return nil
}

// AppendBatch adds multiple transactions atomically.
func (m *Memory) AppendBatch(_ context.Context, txs []generic.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendBatchLocked(txs)
}

func (m *Memory) appendBatchLocked(txs []generic.Transaction) error {
	seen := make(map[string]bool, len(txs))
	for _, tx := range txs {
		if tx.IdempotencyKey == "" {
			continue
		}
		if m.idempotency[tx.IdempotencyKey] || seen[tx.IdempotencyKey] {
			return generic.ErrDuplicateIdempotencyKey
		}
		seen[tx.IdempotencyKey] = true
	}
	for _, tx := range txs {
		m.appendLocked(tx)
	}
	return nil
}

func (m *Memory) appendLocked(tx generic.Transaction) {
	k := key{EntityID: tx.EntityID, Resource: tx.Resource()}
	txs := m.transactions[k]

	// keep the slice ordered by EffectiveAt, stable for equal dates
	i := sort.Search(len(txs), func(i int) bool {
		return txs[i].EffectiveAt.After(tx.EffectiveAt)
	})
	txs = append(txs, generic.Transaction{})
	copy(txs[i+1:], txs[i:])
	txs[i] = tx
	m.transactions[k] = txs

	if tx.IdempotencyKey != "" {
		m.idempotency[tx.IdempotencyKey] = true
	}
}

func (m *Memory) Load(_ context.Context, entityID generic.EntityID, resource generic.ResourceType) ([]generic.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadLocked(entityID, resource), nil
}

func (m *Memory) loadLocked(entityID generic.EntityID, resource generic.ResourceType) []generic.Transaction {
	k := key{EntityID: entityID, Resource: resource.ResourceID()}
	result := make([]generic.Transaction, len(m.transactions[k]))
	copy(result, m.transactions[k])
	return result
}

func (m *Memory) LoadRange(_ context.Context, entityID generic.EntityID, resource generic.ResourceType, from, to generic.TimePoint) ([]generic.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return inRange(m.loadLocked(entityID, resource), from, to), nil
}

func (m *Memory) LoadByEntity(_ context.Context, entityID generic.EntityID, from, to generic.TimePoint) ([]generic.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loadByEntityLocked(entityID, from, to), nil
}

func (m *Memory) loadByEntityLocked(entityID generic.EntityID, from, to generic.TimePoint) []generic.Transaction {
	var result []generic.Transaction
	for k, txs := range m.transactions {
		if k.EntityID == entityID {
			result = append(result, inRange(txs, from, to)...)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].EffectiveAt.Before(result[j].EffectiveAt)
	})
	return result
}

func (m *Memory) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

func inRange(txs []generic.Transaction, from, to generic.TimePoint) []generic.Transaction {
	var result []generic.Transaction
	for _, tx := range txs {
		if from.BeforeOrEqual(tx.EffectiveAt) && tx.EffectiveAt.BeforeOrEqual(to) {
			result = append(result, tx)
		}
	}
	return result
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn while holding the write lock. Writes go straight to
// the maps and are rolled back from a snapshot if fn fails.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(generic.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

func (tm *TxMemory) snapshot() memorySnapshot {
	txsCopy := make(map[key][]generic.Transaction, len(tm.transactions))
	for k, v := range tm.transactions {
		txsCopy[k] = append([]generic.Transaction{}, v...)
	}
	idempCopy := make(map[string]bool, len(tm.idempotency))
	for k, v := range tm.idempotency {
		idempCopy[k] = v
	}
	return memorySnapshot{transactions: txsCopy, idempotency: idempCopy}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.transactions = s.transactions
	tm.idempotency = s.idempotency
}

type memorySnapshot struct {
	transactions map[key][]generic.Transaction
	idempotency  map[string]bool
}

// txMemoryView is the Store handed to WithTx callbacks. The parent lock is
// already held, so it works on the maps directly.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) Append(_ context.Context, tx generic.Transaction) error {
	if tx.IdempotencyKey != "" && tv.parent.idempotency[tx.IdempotencyKey] {
		return generic.ErrDuplicateIdempotencyKey
	}
	tv.parent.appendLocked(tx)
	return nil
}

func (tv *txMemoryView) AppendBatch(_ context.Context, txs []generic.Transaction) error {
	return tv.parent.appendBatchLocked(txs)
}

func (tv *txMemoryView) Load(_ context.Context, entityID generic.EntityID, resource generic.ResourceType) ([]generic.Transaction, error) {
	return tv.parent.loadLocked(entityID, resource), nil
}

func (tv *txMemoryView) LoadRange(_ context.Context, entityID generic.EntityID, resource generic.ResourceType, from, to generic.TimePoint) ([]generic.Transaction, error) {
	return inRange(tv.parent.loadLocked(entityID, resource), from, to), nil
}

func (tv *txMemoryView) LoadByEntity(_ context.Context, entityID generic.EntityID, from, to generic.TimePoint) ([]generic.Transaction, error) {
	return tv.parent.loadByEntityLocked(entityID, from, to), nil
}

func (tv *txMemoryView) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	return tv.parent.idempotency[idempotencyKey], nil
}

// =============================================================================
// MEMORY AUDIT LOG
// =============================================================================

// MemoryAudit is an append-only in-memory generic.AuditLog.
type MemoryAudit struct {
	mu      sync.RWMutex
	entries []generic.AuditEntry
}

func NewMemoryAudit() *MemoryAudit {
	return &MemoryAudit{}
}

func (a *MemoryAudit) Append(_ context.Context, entry generic.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry)
	return nil
}

// Query returns matching entries, newest first.
func (a *MemoryAudit) Query(_ context.Context, filter generic.AuditFilter) ([]generic.AuditEntry, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var result []generic.AuditEntry
	for i := len(a.entries) - 1; i >= 0; i-- {
		if filter.Matches(a.entries[i]) {
			result = append(result, a.entries[i])
			if filter.Limit > 0 && len(result) == filter.Limit {
				break
			}
		}
	}
	return result, nil
}
