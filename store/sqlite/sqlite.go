/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  One database file holds the leave ledger, leave requests, timesheet
  entries and the audit trail. The in-memory stores in generic/store and
  timeoff/timesheet are the test doubles for the same interfaces.

INTERFACES IMPLEMENTED:
  generic.TxStore:      Store (ledger transactions)
  timeoff.RequestStore: Store.LeaveRequests()
  timesheet.Store:      Store.Timesheets()
  generic.AuditLog:     Store.Audit()

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statements on transactions or audit_log
  - Requests and timesheets change status in place; their history lives
    in the ledger and the audit trail

KEY TABLES:
  transactions:   Immutable ledger of all balance changes
  leave_requests: Leave workflow records
  timesheets:     Logged hours
  audit_log:      Who did what, when, with what outcome

INDEXES:
  - idx_unique_day_consumption: one consumption per employee per day,
    across leave types
  - idx_transactions_entity_resource_date: balance queries (hot path)

CONCURRENCY:
  The pool is limited to one connection so ":memory:" databases are shared
  and writers never see SQLITE_BUSY. Inside WithTx every read and write
  goes through the open *sql.Tx.

SEE ALSO:
  - generic/store.go: Interface definitions
  - requests.go, timesheets.go, audit.go: record stores
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/lumina/policy-engine/generic"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db    *sql.DB
	mu    sync.RWMutex // ledger
	reqMu sync.Mutex   // leave request and timesheet updates
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Transactions (append-only ledger)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		entity_id TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		effective_at TEXT NOT NULL,
		delta_value TEXT NOT NULL,
		delta_unit TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		reference_id TEXT,
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		metadata_json TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	-- An employee is off at most once per day, whatever the leave type
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_day_consumption
		ON transactions(entity_id, DATE(effective_at))
		WHERE tx_type = 'consumption';

	CREATE INDEX IF NOT EXISTS idx_transactions_entity_resource_date
		ON transactions(entity_id, resource_type, effective_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_reference
		ON transactions(reference_id) WHERE reference_id IS NOT NULL;

	-- Leave requests
	CREATE TABLE IF NOT EXISTS leave_requests (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		employee_name TEXT,
		leave_type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		days INTEGER NOT NULL,
		status TEXT NOT NULL,
		reason TEXT,
		redacted BOOLEAN NOT NULL DEFAULT FALSE,
		reviewed_by TEXT,
		reviewed_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_leave_requests_employee
		ON leave_requests(employee_id);
	CREATE INDEX IF NOT EXISTS idx_leave_requests_status
		ON leave_requests(status);

	-- Timesheet entries
	CREATE TABLE IF NOT EXISTS timesheets (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		employee_name TEXT,
		project TEXT NOT NULL,
		work_date TEXT NOT NULL,
		hours TEXT NOT NULL,
		description TEXT,
		status TEXT NOT NULL,
		submitted_at TEXT,
		reviewed_by TEXT,
		reviewed_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_timesheets_employee_date
		ON timesheets(employee_id, work_date);

	-- Audit trail (append-only)
	CREATE TABLE IF NOT EXISTS audit_log (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		at TEXT NOT NULL,
		actor_id TEXT,
		role TEXT,
		action TEXT NOT NULL,
		module TEXT,
		target TEXT,
		details TEXT,
		outcome TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_log_at
		ON audit_log(at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTION STORE (generic.Store interface)
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const transactionColumns = `id, entity_id, resource_type, effective_at, delta_value, delta_unit,
	tx_type, reference_id, reason, idempotency_key, metadata_json, created_by, created_at`

// Append adds a transaction to the ledger.
func (s *Store) Append(ctx context.Context, tx generic.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return appendTx(ctx, s.db, tx)
}

func appendTx(ctx context.Context, db execer, tx generic.Transaction) error {
	metadataJSON, err := json.Marshal(tx.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	createdAt := tx.CreatedAt
	if createdAt.IsZero() {
		createdAt = generic.Today()
	}

	query := `INSERT INTO transactions (` + transactionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = db.ExecContext(ctx, query,
		tx.ID,
		tx.EntityID,
		tx.Resource(),
		tx.EffectiveAt.String(),
		tx.Delta.Value.String(),
		tx.Delta.Unit,
		tx.Type,
		nullString(tx.ReferenceID),
		nullString(tx.Reason),
		nullString(tx.IdempotencyKey),
		string(metadataJSON),
		nullString(tx.CreatedBy),
		createdAt.String(),
	)

	if err != nil {
		if isUniqueConstraintError(err) {
			// Distinguish between idempotency key and day uniqueness violations
			if isDayUniquenessError(err) {
				return generic.ErrDuplicateDayConsumption
			}
			return generic.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to append transaction: %w", err)
	}

	return nil
}

// AppendBatch adds multiple transactions atomically.
func (s *Store) AppendBatch(ctx context.Context, txs []generic.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := checkBatchKeys(txs); err != nil {
		return err
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	for _, tx := range txs {
		if err := appendTx(ctx, sqlTx, tx); err != nil {
			return err
		}
	}

	return sqlTx.Commit()
}

func checkBatchKeys(txs []generic.Transaction) error {
	idempotencyKeys := make(map[string]bool)
	for _, tx := range txs {
		if tx.IdempotencyKey != "" {
			if idempotencyKeys[tx.IdempotencyKey] {
				return generic.ErrDuplicateIdempotencyKey
			}
			idempotencyKeys[tx.IdempotencyKey] = true
		}
	}
	return nil
}

// Load returns all transactions for an entity and resource.
func (s *Store) Load(ctx context.Context, entityID generic.EntityID, resource generic.ResourceType) ([]generic.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadTx(ctx, s.db, entityID, resource)
}

// LoadRange returns transactions in a date range.
func (s *Store) LoadRange(ctx context.Context, entityID generic.EntityID, resource generic.ResourceType, from, to generic.TimePoint) ([]generic.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadRangeTx(ctx, s.db, entityID, resource, from, to)
}

// LoadByEntity returns every transaction of an entity in a date range.
func (s *Store) LoadByEntity(ctx context.Context, entityID generic.EntityID, from, to generic.TimePoint) ([]generic.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return loadByEntityTx(ctx, s.db, entityID, from, to)
}

// Exists checks if an idempotency key exists.
func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return existsTx(ctx, s.db, idempotencyKey)
}

func loadTx(ctx context.Context, q querier, entityID generic.EntityID, resource generic.ResourceType) ([]generic.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE entity_id = ? AND resource_type = ?
		ORDER BY effective_at ASC, rowid ASC`
	return queryTransactions(ctx, q, query, entityID, resource.ResourceID())
}

func loadRangeTx(ctx context.Context, q querier, entityID generic.EntityID, resource generic.ResourceType, from, to generic.TimePoint) ([]generic.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE entity_id = ? AND resource_type = ?
		  AND effective_at >= ? AND effective_at <= ?
		ORDER BY effective_at ASC, rowid ASC`
	return queryTransactions(ctx, q, query, entityID, resource.ResourceID(), from.String(), to.String())
}

func loadByEntityTx(ctx context.Context, q querier, entityID generic.EntityID, from, to generic.TimePoint) ([]generic.Transaction, error) {
	query := `SELECT ` + transactionColumns + `
		FROM transactions
		WHERE entity_id = ? AND effective_at >= ? AND effective_at <= ?
		ORDER BY effective_at ASC, rowid ASC`
	return queryTransactions(ctx, q, query, entityID, from.String(), to.String())
}

func existsTx(ctx context.Context, q querier, idempotencyKey string) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE idempotency_key = ?",
		idempotencyKey,
	).Scan(&count)
	return count > 0, err
}

func queryTransactions(ctx context.Context, q querier, query string, args ...any) ([]generic.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	transactions := []generic.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

func scanTransaction(rows *sql.Rows) (generic.Transaction, error) {
	var (
		tx             generic.Transaction
		effectiveAt    string
		resourceTypeID string
		deltaValue     string
		deltaUnit      string
		referenceID    sql.NullString
		reason         sql.NullString
		idempotencyKey sql.NullString
		metadataJSON   sql.NullString
		createdBy      sql.NullString
		createdAt      string
	)

	err := rows.Scan(
		&tx.ID, &tx.EntityID, &resourceTypeID,
		&effectiveAt, &deltaValue, &deltaUnit, &tx.Type,
		&referenceID, &reason, &idempotencyKey, &metadataJSON, &createdBy, &createdAt,
	)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	// Convert string to ResourceType via registry
	tx.ResourceType = generic.ResolveResource(resourceTypeID)
	if tx.EffectiveAt, err = generic.ParseDate(effectiveAt); err != nil {
		return tx, fmt.Errorf("transaction %s: %w", tx.ID, err)
	}
	if tx.CreatedAt, err = generic.ParseDate(createdAt); err != nil {
		return tx, fmt.Errorf("transaction %s: %w", tx.ID, err)
	}
	if tx.Delta, err = parseAmount(deltaValue, deltaUnit); err != nil {
		return tx, fmt.Errorf("transaction %s: %w", tx.ID, err)
	}
	tx.ReferenceID = referenceID.String
	tx.Reason = reason.String
	tx.IdempotencyKey = idempotencyKey.String
	tx.CreatedBy = createdBy.String

	if metadataJSON.Valid && metadataJSON.String != "" && metadataJSON.String != "null" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &tx.Metadata); err != nil {
			return tx, fmt.Errorf("transaction %s metadata: %w", tx.ID, err)
		}
	}

	return tx, nil
}

// =============================================================================
// TRANSACTIONAL STORE (generic.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store generic.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore is the Store handed to WithTx callbacks. The ledger lock is
// already held and the pool has one connection, so it must only use tx.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) Append(ctx context.Context, tx generic.Transaction) error {
	return appendTx(ctx, ts.tx, tx)
}

func (ts *txStore) AppendBatch(ctx context.Context, txs []generic.Transaction) error {
	if err := checkBatchKeys(txs); err != nil {
		return err
	}
	for _, tx := range txs {
		if err := appendTx(ctx, ts.tx, tx); err != nil {
			return err
		}
	}
	return nil
}

func (ts *txStore) Load(ctx context.Context, entityID generic.EntityID, resource generic.ResourceType) ([]generic.Transaction, error) {
	return loadTx(ctx, ts.tx, entityID, resource)
}

func (ts *txStore) LoadRange(ctx context.Context, entityID generic.EntityID, resource generic.ResourceType, from, to generic.TimePoint) ([]generic.Transaction, error) {
	return loadRangeTx(ctx, ts.tx, entityID, resource, from, to)
}

func (ts *txStore) LoadByEntity(ctx context.Context, entityID generic.EntityID, from, to generic.TimePoint) ([]generic.Transaction, error) {
	return loadByEntityTx(ctx, ts.tx, entityID, from, to)
}

func (ts *txStore) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	return existsTx(ctx, ts.tx, idempotencyKey)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for demo scenarios).
func (s *Store) Reset(ctx context.Context) error {
	// Same order as record Update callers, which take reqMu then mu.
	s.reqMu.Lock()
	defer s.reqMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"transactions", "leave_requests", "timesheets", "audit_log"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseAmount(value, unit string) (generic.Amount, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return generic.Amount{}, err
	}
	return generic.NewAmount(d, generic.Unit(unit)), nil
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isDayUniquenessError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "idx_unique_day_consumption")
}
