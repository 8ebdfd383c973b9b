package timeoff

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/lumina/policy-engine/generic"
)

// =============================================================================
// REQUEST STORE
// =============================================================================

// RequestStore persists leave requests. Update must serialize updates to
// the same request: fn sees the latest stored value and its result is
// written only if fn returns nil.
type RequestStore interface {
	Create(ctx context.Context, req LeaveRequest) error
	Get(ctx context.Context, id string) (LeaveRequest, error)
	List(ctx context.Context, filter RequestFilter) ([]LeaveRequest, error)
	Update(ctx context.Context, id string, fn func(LeaveRequest) (LeaveRequest, error)) (LeaveRequest, error)
}

// RequestFilter narrows List. Zero fields match everything.
type RequestFilter struct {
	EmployeeID  generic.EntityID
	Status      LeaveStatus
	Type        LeaveType
	EndedBefore *generic.TimePoint
}

// Matches reports whether req passes the filter.
func (f RequestFilter) Matches(req LeaveRequest) bool {
	if f.EmployeeID != "" && req.EmployeeID != f.EmployeeID {
		return false
	}
	if f.Status != "" && req.Status != f.Status {
		return false
	}
	if f.Type != "" && req.Type != f.Type {
		return false
	}
	if f.EndedBefore != nil && !req.EndDate.Before(*f.EndedBefore) {
		return false
	}
	return true
}

// SortRequests orders requests newest first, by creation time then ID.
func SortRequests(reqs []LeaveRequest) {
	sort.SliceStable(reqs, func(i, j int) bool {
		if !reqs[i].CreatedAt.Equal(reqs[j].CreatedAt) {
			return reqs[i].CreatedAt.After(reqs[j].CreatedAt)
		}
		return reqs[i].ID < reqs[j].ID
	})
}

// =============================================================================
// REQUEST SERVICE - Handles request lifecycle with transactional guarantees
// =============================================================================

// Allowances is the yearly grant per metered leave type.
type Allowances map[LeaveType]int

// DefaultAllowances is the dashboard's yearly grant.
func DefaultAllowances() Allowances {
	return Allowances{Annual: 18, Sick: 10, Personal: 2}
}

type RequestService struct {
	Engine     *Engine
	Requests   RequestStore
	Store      generic.TxStore  // ledger store
	AuditLog   generic.AuditLog // optional
	Allowances Allowances

	calendar atomic.Pointer[Calendar]
}

// NewRequestService wires a service with a calendar and allowances.
func NewRequestService(requests RequestStore, store generic.TxStore, calendar *Calendar, allowances Allowances) *RequestService {
	s := &RequestService{
		Engine:     NewEngine(),
		Requests:   requests,
		Store:      store,
		Allowances: allowances,
	}
	s.calendar.Store(calendar)
	return s
}

// Calendar returns the calendar in force.
func (s *RequestService) Calendar() *Calendar { return s.calendar.Load() }

// SetCalendar swaps the holiday calendar, e.g. after a policy reload.
func (s *RequestService) SetCalendar(c *Calendar) { s.calendar.Store(c) }

// Actor identifies who performs an operation, for the audit trail.
type Actor struct {
	ID   string
	Role string
}

// =============================================================================
// BALANCES
// =============================================================================

// Balances returns the remaining days per metered type for year. The
// year's allowance is granted on first use.
func (s *RequestService) Balances(ctx context.Context, employeeID generic.EntityID, year int) (Balances, error) {
	ledger := NewLedger(s.Store)
	out := make(Balances)
	for _, t := range MeteredTypes() {
		if err := s.ensureAllowance(ctx, ledger, employeeID, t, year); err != nil {
			return nil, err
		}
		days, err := ledger.Balance(ctx, employeeID, t, year)
		if err != nil {
			return nil, fmt.Errorf("balance for %s: %w", t, err)
		}
		out[t] = days
	}
	return out, nil
}

// ensureAllowance writes the yearly grant once. The idempotency key makes
// repeated calls harmless.
func (s *RequestService) ensureAllowance(ctx context.Context, ledger *Ledger, employeeID generic.EntityID, t LeaveType, year int) error {
	days, ok := s.Allowances[t]
	if !ok || days == 0 {
		return nil
	}
	key := fmt.Sprintf("allowance-%s-%s-%d", employeeID, t, year)
	err := ledger.Append(ctx, generic.Transaction{
		ID:             generic.TransactionID(key),
		EntityID:       employeeID,
		ResourceType:   t,
		EffectiveAt:    generic.StartOfYear(year),
		Delta:          generic.DaysAmount(days),
		Type:           generic.TxGrant,
		Reason:         fmt.Sprintf("%d %s allowance", year, t),
		IdempotencyKey: key,
		CreatedBy:      "system",
		CreatedAt:      generic.Today(),
	})
	if errors.Is(err, generic.ErrDuplicateIdempotencyKey) {
		return nil
	}
	return err
}

// Adjust records a manual balance correction (positive or negative days)
// against the current year.
func (s *RequestService) Adjust(ctx context.Context, employeeID generic.EntityID, t LeaveType, days int, reason string, actor Actor) error {
	return s.AdjustOn(ctx, employeeID, t, days, generic.DateOf(s.Engine.Now()), reason, actor)
}

// AdjustOn is Adjust effective on a given date, which selects the balance
// year it counts against.
func (s *RequestService) AdjustOn(ctx context.Context, employeeID generic.EntityID, t LeaveType, days int, on generic.TimePoint, reason string, actor Actor) error {
	if !t.Valid() || t.Unmetered() {
		return &generic.ValidationError{Field: "type", Code: "invalid_type", Message: fmt.Sprintf("%q has no balance to adjust", t)}
	}
	if days == 0 {
		return &generic.ValidationError{Field: "days", Code: "zero_adjustment", Message: "adjustment must be non-zero"}
	}
	now := s.Engine.Now()
	id := fmt.Sprintf("adjust-%s-%s", employeeID, s.Engine.NewID())
	err := NewLedger(s.Store).Append(ctx, generic.Transaction{
		ID:             generic.TransactionID(id),
		EntityID:       employeeID,
		ResourceType:   t,
		EffectiveAt:    on,
		Delta:          generic.DaysAmount(days),
		Type:           generic.TxAdjustment,
		Reason:         reason,
		IdempotencyKey: id,
		CreatedBy:      actor.ID,
		CreatedAt:      generic.DateOf(now),
	})
	if err != nil {
		return err
	}
	s.audit(ctx, generic.AuditEntry{
		ActorID: actor.ID, Role: actor.Role, Action: generic.AuditAllowanceGranted,
		Target:  string(employeeID),
		Details: fmt.Sprintf("%+d %s days for %d: %s", days, t, on.Year(), reason),
		Outcome: generic.OutcomeSuccess,
	})
	return nil
}

// =============================================================================
// SUBMIT
// =============================================================================

// Quote evaluates a draft against the employee's current balances. A
// draft with no employee is quoted against empty balances.
func (s *RequestService) Quote(ctx context.Context, d Draft) (Quote, error) {
	balances := Balances{}
	if d.EmployeeID != "" {
		var err error
		if balances, err = s.Balances(ctx, d.EmployeeID, d.StartDate.Year()); err != nil {
			return Quote{}, err
		}
	}
	return s.Engine.Quote(LeaveContext{Calendar: s.Calendar(), Balances: balances}, d), nil
}

// Submit validates and stores a new Pending request. Balances are read
// for the year the leave starts in; nothing is debited until approval.
func (s *RequestService) Submit(ctx context.Context, d Draft, actor Actor) (LeaveRequest, error) {
	balances := Balances{}
	if d.EmployeeID != "" {
		var err error
		if balances, err = s.Balances(ctx, d.EmployeeID, d.StartDate.Year()); err != nil {
			return LeaveRequest{}, err
		}
	}

	req, err := s.Engine.Submit(LeaveContext{Calendar: s.Calendar(), Balances: balances}, d)
	if err != nil {
		s.audit(ctx, generic.AuditEntry{
			ActorID: actor.ID, Role: actor.Role, Action: generic.AuditLeaveSubmitted,
			Target:  string(d.EmployeeID),
			Details: err.Error(),
			Outcome: generic.OutcomeFailure,
		})
		return LeaveRequest{}, err
	}

	if err := s.Requests.Create(ctx, req); err != nil {
		return LeaveRequest{}, fmt.Errorf("failed to store request: %w", err)
	}

	s.audit(ctx, generic.AuditEntry{
		ActorID: actor.ID, Role: actor.Role, Action: generic.AuditLeaveSubmitted,
		Target:  req.ID,
		Details: fmt.Sprintf("%s %s..%s (%d days) for %s", req.Type, req.StartDate, req.EndDate, req.Days, req.EmployeeID),
		Outcome: generic.OutcomeSuccess,
	})
	return req, nil
}

// =============================================================================
// REVIEW - The critical transactional operation
// =============================================================================

// Review applies a decision to a Pending request.
//
// Approval debits one day per working day in the range, counted on the
// calendar in force at approval; the approved record's Days is set to the
// debited count. The debit and the status change happen under the request
// store's update lock, and the debit itself is a single ledger
// transaction, so a failed debit leaves the request Pending.
//
// The ledger commit and the record update are separate writes. If the
// record update fails after the debit committed, a retry finds the
// request's consumption rows and approves without debiting again.
func (s *RequestService) Review(ctx context.Context, id string, decision Decision, actor Actor) (LeaveRequest, error) {
	reviewed, err := s.Requests.Update(ctx, id, func(current LeaveRequest) (LeaveRequest, error) {
		next, err := ReviewDecision(current, decision)
		if err != nil {
			return current, err
		}
		if next.Status == StatusApproved {
			days, err := s.debit(ctx, next, actor)
			if err != nil {
				return current, err
			}
			next.Days = days
		}
		now := s.Engine.Now()
		next.ReviewedBy = actor.ID
		next.ReviewedAt = &now
		return next, nil
	})

	action := generic.AuditLeaveApproved
	if decision == Reject {
		action = generic.AuditLeaveRejected
	}
	if err != nil {
		s.audit(ctx, generic.AuditEntry{
			ActorID: actor.ID, Role: actor.Role, Action: action,
			Target: id, Details: err.Error(), Outcome: generic.OutcomeFailure,
		})
		return LeaveRequest{}, err
	}

	s.audit(ctx, generic.AuditEntry{
		ActorID: actor.ID, Role: actor.Role, Action: action,
		Target:  id,
		Details: fmt.Sprintf("%s %s for %s (%d days)", reviewed.Status, reviewed.Type, reviewed.EmployeeID, reviewed.Days),
		Outcome: generic.OutcomeSuccess,
	})
	return reviewed, nil
}

// debit writes the consumption transactions for an approved request and
// returns the number of days debited.
func (s *RequestService) debit(ctx context.Context, req LeaveRequest, actor Actor) (int, error) {
	dates := s.Calendar().WorkingDates(req.StartDate, req.EndDate)
	if len(dates) == 0 {
		// The calendar changed since submission and nothing is left to take.
		return 0, &RejectionError{Type: req.Type, Eligibility: Eligibility{
			Reason:    ReasonZeroDays,
			Unmetered: req.Type.Unmetered(),
		}}
	}

	perYear := make(map[int]int)
	txs := make([]generic.Transaction, 0, len(dates))
	for _, d := range dates {
		perYear[d.Year()]++
		key := fmt.Sprintf("leave-%s-%s", req.ID, d)
		txs = append(txs, generic.Transaction{
			ID:             generic.TransactionID(key),
			EntityID:       req.EmployeeID,
			ResourceType:   req.Type,
			EffectiveAt:    d,
			Delta:          generic.DaysAmount(-1),
			Type:           generic.TxConsumption,
			ReferenceID:    req.ID,
			Reason:         string(req.Type) + " leave",
			IdempotencyKey: key,
			CreatedBy:      actor.ID,
			CreatedAt:      generic.DateOf(s.Engine.Now()),
		})
	}

	debited := len(dates)
	err := s.Store.WithTx(ctx, func(txStore generic.Store) error {
		ledger := NewLedger(txStore)

		prior, err := priorConsumption(ctx, txStore, req)
		if err != nil {
			return err
		}
		if prior > 0 {
			debited = prior
			return nil
		}

		// Final balance check inside the transaction so no concurrent
		// approval can overdraw.
		if !req.Type.Unmetered() {
			for year, need := range perYear {
				if err := s.ensureAllowance(ctx, ledger, req.EmployeeID, req.Type, year); err != nil {
					return err
				}
				have, err := ledger.Balance(ctx, req.EmployeeID, req.Type, year)
				if err != nil {
					return fmt.Errorf("balance check failed: %w", err)
				}
				if have < need {
					return &generic.InsufficientBalanceError{
						EntityID:  req.EmployeeID,
						Resource:  string(req.Type),
						Available: generic.DaysAmount(have),
						Requested: generic.DaysAmount(need),
					}
				}
			}
		}

		if err := ledger.AppendBatch(ctx, txs); err != nil {
			return fmt.Errorf("failed to write transactions: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return debited, nil
}

// priorConsumption counts consumption rows already written for req.
func priorConsumption(ctx context.Context, st generic.Store, req LeaveRequest) (int, error) {
	txs, err := st.LoadByEntity(ctx, req.EmployeeID, req.StartDate, req.EndDate)
	if err != nil {
		return 0, fmt.Errorf("load prior debits: %w", err)
	}
	n := 0
	for _, tx := range txs {
		if tx.Type == generic.TxConsumption && tx.ReferenceID == req.ID {
			n++
		}
	}
	return n, nil
}

// =============================================================================
// QUERIES
// =============================================================================

// Get returns one request.
func (s *RequestService) Get(ctx context.Context, id string) (LeaveRequest, error) {
	return s.Requests.Get(ctx, id)
}

// List returns matching requests, newest first.
func (s *RequestService) List(ctx context.Context, filter RequestFilter) ([]LeaveRequest, error) {
	return s.Requests.List(ctx, filter)
}

// DaysOff lists approved leave days for an employee.
func (s *RequestService) DaysOff(ctx context.Context, employeeID generic.EntityID, from, to generic.TimePoint) ([]DayOff, error) {
	return NewLedger(s.Store).DaysOff(ctx, employeeID, from, to)
}

func (s *RequestService) audit(ctx context.Context, e generic.AuditEntry) {
	if s.AuditLog == nil {
		return
	}
	if e.ID == "" {
		e.ID = s.Engine.NewID()
	}
	if e.At.IsZero() {
		e.At = s.Engine.Now().UTC()
	}
	if e.Module == "" {
		e.Module = "leave"
	}
	// The audit trail is best-effort; the ledger is the source of truth.
	_ = s.AuditLog.Append(ctx, e)
}
