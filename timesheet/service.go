package timesheet

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lumina/policy-engine/generic"
)

// =============================================================================
// STORE
// =============================================================================

// Store persists timesheet entries. Update serializes writers per entry.
type Store interface {
	Create(ctx context.Context, e Entry) error
	Get(ctx context.Context, id string) (Entry, error)
	List(ctx context.Context, filter Filter) ([]Entry, error)
	Update(ctx context.Context, id string, fn func(Entry) (Entry, error)) (Entry, error)
}

// Filter narrows List. Zero fields match everything; From/To bound Date.
type Filter struct {
	EmployeeID generic.EntityID
	Status     Status
	Project    string
	From       *generic.TimePoint
	To         *generic.TimePoint
}

func (f Filter) Matches(e Entry) bool {
	if f.EmployeeID != "" && e.EmployeeID != f.EmployeeID {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if f.Project != "" && e.Project != f.Project {
		return false
	}
	if f.From != nil && e.Date.Before(*f.From) {
		return false
	}
	if f.To != nil && e.Date.After(*f.To) {
		return false
	}
	return true
}

// SortEntries orders entries by date, then creation time.
func SortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.Before(entries[j].Date)
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	Entries  Store
	Ledger   generic.TxStore
	AuditLog generic.AuditLog // optional

	NewID func() string
	Now   func() time.Time
}

func NewService(entries Store, ledger generic.TxStore) *Service {
	return &Service{
		Entries: entries,
		Ledger:  ledger,
		NewID:   uuid.NewString,
		Now:     time.Now,
	}
}

// Actor identifies who performs an operation.
type Actor struct {
	ID   string
	Role string
}

// Log stores a new Draft entry.
func (s *Service) Log(ctx context.Context, d Draft, actor Actor) (Entry, error) {
	if err := d.Validate(); err != nil {
		return Entry{}, err
	}
	e := Entry{
		ID:           s.NewID(),
		EmployeeID:   d.EmployeeID,
		EmployeeName: d.EmployeeName,
		Project:      d.Project,
		Date:         d.Date,
		Hours:        d.Hours,
		Description:  d.Description,
		Status:       StatusDraft,
		CreatedAt:    s.Now(),
	}
	if err := s.Entries.Create(ctx, e); err != nil {
		return Entry{}, fmt.Errorf("failed to store entry: %w", err)
	}
	s.audit(ctx, actor, generic.AuditTimesheetLogged, e.ID, fmt.Sprintf("%s h on %s for %s", e.Hours, e.Project, e.Date), nil)
	return e, nil
}

// Submit moves a Draft entry to Submitted.
func (s *Service) Submit(ctx context.Context, id string, actor Actor) (Entry, error) {
	e, err := s.Entries.Update(ctx, id, func(cur Entry) (Entry, error) {
		if cur.Status != StatusDraft {
			return cur, &generic.TransitionError{Kind: "timesheet", ID: id, From: string(cur.Status), To: string(StatusSubmitted), Decided: cur.Status.Decided()}
		}
		now := s.Now()
		cur.Status = StatusSubmitted
		cur.SubmittedAt = &now
		return cur, nil
	})
	s.audit(ctx, actor, generic.AuditTimesheetSubmitted, id, "submitted", err)
	return e, err
}

// Review approves or rejects a Submitted entry. Approval posts the hours
// to the ledger and fails if the employee's approved hours on that day
// would exceed 24.
func (s *Service) Review(ctx context.Context, id string, decision Decision, actor Actor) (Entry, error) {
	var next Status
	switch decision {
	case Approve:
		next = StatusApproved
	case Reject:
		next = StatusRejected
	default:
		return Entry{}, &generic.ValidationError{Field: "decision", Code: "invalid_decision", Message: "decision must be Approved or Rejected"}
	}

	e, err := s.Entries.Update(ctx, id, func(cur Entry) (Entry, error) {
		if cur.Status != StatusSubmitted {
			return cur, &generic.TransitionError{Kind: "timesheet", ID: id, From: string(cur.Status), To: string(next), Decided: cur.Status.Decided()}
		}
		if next == StatusApproved {
			if err := s.post(ctx, cur, actor); err != nil {
				return cur, err
			}
		}
		now := s.Now()
		cur.Status = next
		cur.ReviewedBy = actor.ID
		cur.ReviewedAt = &now
		return cur, nil
	})

	action := generic.AuditTimesheetApproved
	if next == StatusRejected {
		action = generic.AuditTimesheetRejected
	}
	s.audit(ctx, actor, action, id, string(next), err)
	return e, err
}

func (s *Service) post(ctx context.Context, e Entry, actor Actor) error {
	key := "timesheet-" + e.ID
	return s.Ledger.WithTx(ctx, func(txStore generic.Store) error {
		ledger := generic.NewLedger(txStore)

		approved, err := ledger.Balance(ctx, e.EmployeeID, ResourceApprovedHours, e.Date, e.Date, generic.UnitHours)
		if err != nil {
			return fmt.Errorf("daily total check failed: %w", err)
		}
		if total := approved.Value.Add(e.Hours); total.GreaterThan(maxDailyHours) {
			return &generic.ValidationError{
				Field:   "hours",
				Code:    "daily_limit",
				Message: fmt.Sprintf("%s would have %s approved hours on %s", e.EmployeeID, total, e.Date),
			}
		}

		return ledger.Append(ctx, generic.Transaction{
			ID:             generic.TransactionID(key),
			EntityID:       e.EmployeeID,
			ResourceType:   ResourceApprovedHours,
			EffectiveAt:    e.Date,
			Delta:          generic.NewAmount(e.Hours, generic.UnitHours),
			Type:           generic.TxGrant,
			ReferenceID:    e.ID,
			Reason:         e.Project,
			IdempotencyKey: key,
			Metadata:       map[string]string{"project": e.Project},
			CreatedBy:      actor.ID,
			CreatedAt:      generic.DateOf(s.Now()),
		})
	})
}

// =============================================================================
// QUERIES
// =============================================================================

func (s *Service) Get(ctx context.Context, id string) (Entry, error) {
	return s.Entries.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter Filter) ([]Entry, error) {
	return s.Entries.List(ctx, filter)
}

// Summary totals the entries matching filter.
func (s *Service) Summary(ctx context.Context, filter Filter) (Summary, error) {
	entries, err := s.Entries.List(ctx, filter)
	if err != nil {
		return Summary{}, err
	}
	return Summarize(entries), nil
}

// ApprovedHours reads the ledger total for [from, to].
func (s *Service) ApprovedHours(ctx context.Context, employeeID generic.EntityID, from, to generic.TimePoint) (decimal.Decimal, error) {
	amount, err := generic.NewLedger(s.Ledger).Balance(ctx, employeeID, ResourceApprovedHours, from, to, generic.UnitHours)
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Value, nil
}

func (s *Service) audit(ctx context.Context, actor Actor, action generic.AuditAction, target, details string, err error) {
	if s.AuditLog == nil {
		return
	}
	entry := generic.AuditEntry{
		ID:      s.NewID(),
		At:      s.Now().UTC(),
		ActorID: actor.ID,
		Role:    actor.Role,
		Action:  action,
		Module:  "timesheets",
		Target:  target,
		Details: details,
		Outcome: generic.OutcomeSuccess,
	}
	if err != nil {
		entry.Details = err.Error()
		entry.Outcome = generic.OutcomeFailure
	}
	_ = s.AuditLog.Append(ctx, entry)
}
