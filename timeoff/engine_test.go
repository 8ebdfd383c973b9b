package timeoff_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumina/policy-engine/generic"
	"github.com/lumina/policy-engine/timeoff"
)

func fixedEngine() *timeoff.Engine {
	n := 0
	return &timeoff.Engine{
		NewID: func() string {
			n++
			return "LR-" + string(rune('A'+n-1))
		},
		Now: func() time.Time { return time.Date(2024, time.May, 10, 9, 0, 0, 0, time.UTC) },
	}
}

func weekDraft(t timeoff.LeaveType) timeoff.Draft {
	return timeoff.Draft{
		EmployeeID:   "EMP003",
		EmployeeName: "Kyle Reese",
		Type:         t,
		StartDate:    date(2024, time.May, 20),
		EndDate:      date(2024, time.May, 24),
		Reason:       "Family vacation",
	}
}

// =============================================================================
// ELIGIBILITY
// =============================================================================

func TestCanSubmit(t *testing.T) {
	balances := timeoff.Balances{timeoff.Annual: 4, timeoff.Sick: 0}

	tests := []struct {
		name string
		typ  timeoff.LeaveType
		days int
		want bool
	}{
		{"within balance", timeoff.Annual, 4, true},
		{"over balance", timeoff.Annual, 5, false},
		{"zero days", timeoff.Annual, 0, false},
		{"negative days", timeoff.Annual, -1, false},
		{"empty balance", timeoff.Sick, 1, false},
		{"missing balance counts as zero", timeoff.Personal, 1, false},
		{"unmetered ignores balance", timeoff.MaternityPaternity, 90, true},
		{"unmetered still needs a working day", timeoff.MaternityPaternity, 0, false},
		{"unknown type", timeoff.LeaveType("Sabbatical"), 1, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, timeoff.CanSubmit(tc.typ, tc.days, balances))
		})
	}
}

func TestCheck_Reasons(t *testing.T) {
	balances := timeoff.Balances{timeoff.Annual: 3}

	assert.Equal(t, timeoff.ReasonZeroDays, timeoff.Check(timeoff.Annual, 0, balances).Reason)
	assert.Equal(t, timeoff.ReasonInsufficientBalance, timeoff.Check(timeoff.Annual, 4, balances).Reason)
	assert.Equal(t, timeoff.ReasonUnknownType, timeoff.Check("Sabbatical", 1, balances).Reason)

	el := timeoff.Check(timeoff.MaternityPaternity, 10, nil)
	assert.True(t, el.Allowed)
	assert.True(t, el.Unmetered)
}

// =============================================================================
// SUBMIT
// =============================================================================

func TestSubmit_FullWeek_Pending(t *testing.T) {
	// GIVEN: Annual balance 18, no holidays in the week
	// WHEN: Submitting Mon-Fri
	// THEN: Pending, 5 days, fresh ID
	engine := fixedEngine()
	lc := timeoff.LeaveContext{Calendar: timeoff.NewCalendar(nil), Balances: timeoff.Balances{timeoff.Annual: 18}}

	req, err := engine.Submit(lc, weekDraft(timeoff.Annual))
	require.NoError(t, err)
	assert.Equal(t, timeoff.StatusPending, req.Status)
	assert.Equal(t, 5, req.Days)
	assert.Equal(t, "LR-A", req.ID)
	assert.Equal(t, "Family vacation", req.Reason)
	assert.Nil(t, req.ReviewedAt)
}

func TestSubmit_FreshIDs(t *testing.T) {
	engine := fixedEngine()
	lc := timeoff.LeaveContext{Calendar: timeoff.NewCalendar(nil), Balances: timeoff.Balances{timeoff.Annual: 18}}

	a, err := engine.Submit(lc, weekDraft(timeoff.Annual))
	require.NoError(t, err)
	b, err := engine.Submit(lc, weekDraft(timeoff.Annual))
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestSubmit_HolidayMakesBalanceSufficient(t *testing.T) {
	// GIVEN: Wednesday holiday, so the week costs 4 days
	cal := timeoff.NewCalendar([]timeoff.Holiday{
		{ID: "H", Name: "Midweek", Date: date(2024, time.May, 22), Type: timeoff.HolidayPublic},
	})
	engine := fixedEngine()

	// WHEN: Balance is exactly 4
	req, err := engine.Submit(timeoff.LeaveContext{Calendar: cal, Balances: timeoff.Balances{timeoff.Annual: 4}}, weekDraft(timeoff.Annual))
	require.NoError(t, err)
	assert.Equal(t, 4, req.Days)

	// WHEN: Balance is 3
	_, err = engine.Submit(timeoff.LeaveContext{Calendar: cal, Balances: timeoff.Balances{timeoff.Annual: 3}}, weekDraft(timeoff.Annual))
	require.Error(t, err)
	assert.True(t, errors.Is(err, generic.ErrInsufficientBalance))

	var rej *timeoff.RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, 4, rej.Requested)
	assert.Equal(t, 3, rej.Available)
}

func TestSubmit_UnmeteredWithoutBalance(t *testing.T) {
	engine := fixedEngine()
	lc := timeoff.LeaveContext{Calendar: timeoff.NewCalendar(nil), Balances: timeoff.Balances{}}

	req, err := engine.Submit(lc, weekDraft(timeoff.MaternityPaternity))
	require.NoError(t, err)
	assert.Equal(t, timeoff.StatusPending, req.Status)
}

func TestSubmit_WeekendOnlyRejected(t *testing.T) {
	engine := fixedEngine()
	lc := timeoff.LeaveContext{Calendar: timeoff.NewCalendar(nil), Balances: timeoff.Balances{timeoff.Annual: 18}}

	d := weekDraft(timeoff.Annual)
	d.StartDate, d.EndDate = date(2024, time.May, 25), date(2024, time.May, 26)

	_, err := engine.Submit(lc, d)
	var rej *timeoff.RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, timeoff.ReasonZeroDays, rej.Reason)
	assert.True(t, errors.Is(err, generic.ErrValidation))
}

func TestSubmit_UnmeteredWeekendOnlyRejected(t *testing.T) {
	// GIVEN: Unmetered leave, which skips the balance check
	// WHEN: The range covers only a weekend
	// THEN: Still rejected for covering no working day
	engine := fixedEngine()
	lc := timeoff.LeaveContext{Calendar: timeoff.NewCalendar(nil), Balances: timeoff.Balances{}}

	d := weekDraft(timeoff.MaternityPaternity)
	d.StartDate, d.EndDate = date(2024, time.May, 25), date(2024, time.May, 26)

	_, err := engine.Submit(lc, d)
	var rej *timeoff.RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, timeoff.ReasonZeroDays, rej.Reason)
	assert.True(t, rej.Unmetered)
	assert.False(t, engine.Quote(lc, d).Eligibility.Allowed)
}

func TestSubmit_ReversedRange(t *testing.T) {
	engine := fixedEngine()
	lc := timeoff.LeaveContext{Calendar: timeoff.NewCalendar(nil), Balances: timeoff.Balances{timeoff.Annual: 18}}

	d := weekDraft(timeoff.Annual)
	d.StartDate, d.EndDate = d.EndDate, d.StartDate

	_, err := engine.Submit(lc, d)
	assert.True(t, errors.Is(err, generic.ErrInvalidRange))
}

func TestSubmit_RangePastLengthLimit(t *testing.T) {
	// GIVEN: Unmetered leave spanning the whole supported date range
	engine := fixedEngine()
	lc := timeoff.LeaveContext{Calendar: timeoff.NewCalendar(nil), Balances: timeoff.Balances{}}

	d := weekDraft(timeoff.MaternityPaternity)
	d.StartDate, d.EndDate = date(1, time.January, 1), date(9999, time.December, 31)

	// WHEN: Submitting
	_, err := engine.Submit(lc, d)

	// THEN: Validation failure; the lenient quote costs nothing
	var ve *generic.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, generic.CodeRangeTooLong, ve.Code)

	q := engine.Quote(lc, d)
	assert.Equal(t, 0, q.Days)
	assert.Empty(t, q.Holidays)
	assert.False(t, q.Eligibility.Allowed)
}

func TestSubmit_MissingEmployee(t *testing.T) {
	engine := fixedEngine()
	lc := timeoff.LeaveContext{Calendar: timeoff.NewCalendar(nil), Balances: timeoff.Balances{timeoff.Annual: 18}}

	d := weekDraft(timeoff.Annual)
	d.EmployeeID = ""

	_, err := engine.Submit(lc, d)
	var ve *generic.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "employee_id", ve.Field)
}

func TestQuote_FailSoft(t *testing.T) {
	engine := fixedEngine()
	lc := timeoff.LeaveContext{Calendar: timeoff.NewCalendar(catalog2024()), Balances: timeoff.Balances{timeoff.Annual: 2}}

	d := weekDraft(timeoff.Annual)
	d.StartDate, d.EndDate = date(2024, time.April, 29), date(2024, time.May, 3)

	q := engine.Quote(lc, d)
	assert.Equal(t, 4, q.Days)
	require.Len(t, q.Holidays, 1)
	assert.Equal(t, "HOL002", q.Holidays[0].ID)
	assert.False(t, q.Eligibility.Allowed)
	assert.Equal(t, timeoff.ReasonInsufficientBalance, q.Eligibility.Reason)

	d.StartDate, d.EndDate = d.EndDate, d.StartDate
	q = engine.Quote(lc, d)
	assert.Equal(t, 0, q.Days)
	assert.Empty(t, q.Holidays)
}

// =============================================================================
// REVIEW
// =============================================================================

func TestReviewDecision_PendingToApproved(t *testing.T) {
	engine := fixedEngine()
	lc := timeoff.LeaveContext{Calendar: timeoff.NewCalendar(nil), Balances: timeoff.Balances{timeoff.Annual: 18}}
	req, err := engine.Submit(lc, weekDraft(timeoff.Annual))
	require.NoError(t, err)

	approved, err := timeoff.ReviewDecision(req, timeoff.Approve)
	require.NoError(t, err)
	assert.Equal(t, timeoff.StatusApproved, approved.Status)

	// Only the status changes
	approved.Status = req.Status
	assert.Equal(t, req, approved)
}

func TestReviewDecision_PendingToRejected(t *testing.T) {
	req := timeoff.LeaveRequest{ID: "LR1", Status: timeoff.StatusPending, Type: timeoff.Sick}

	rejected, err := timeoff.ReviewDecision(req, timeoff.Reject)
	require.NoError(t, err)
	assert.Equal(t, timeoff.StatusRejected, rejected.Status)
	assert.Equal(t, timeoff.StatusPending, req.Status, "input is not mutated")
}

func TestReviewDecision_ReReviewIsError(t *testing.T) {
	for _, status := range []timeoff.LeaveStatus{timeoff.StatusApproved, timeoff.StatusRejected} {
		for _, decision := range []timeoff.Decision{timeoff.Approve, timeoff.Reject} {
			req := timeoff.LeaveRequest{ID: "LR1", Status: status}
			_, err := timeoff.ReviewDecision(req, decision)
			require.Error(t, err, "%s -> %s", status, decision)
			assert.True(t, errors.Is(err, generic.ErrAlreadyReviewed))
			assert.True(t, errors.Is(err, generic.ErrInvalidTransition))
		}
	}
}

func TestReviewDecision_InvalidDecision(t *testing.T) {
	req := timeoff.LeaveRequest{ID: "LR1", Status: timeoff.StatusPending}
	_, err := timeoff.ReviewDecision(req, timeoff.Decision("Maybe"))
	assert.True(t, errors.Is(err, generic.ErrValidation))
}
