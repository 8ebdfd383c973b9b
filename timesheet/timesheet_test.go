package timesheet_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumina/policy-engine/generic"
	"github.com/lumina/policy-engine/generic/store"
	"github.com/lumina/policy-engine/timesheet"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

var (
	worker  = timesheet.Actor{ID: "EMP001", Role: "Employee"}
	manager = timesheet.Actor{ID: "EMP020", Role: "Ops Manager"}
)

func hours(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(year int, month time.Month, day int) generic.TimePoint {
	return generic.NewTimePoint(year, month, day)
}

func newService(t *testing.T) (*timesheet.Service, *store.MemoryAudit) {
	t.Helper()
	n := 0
	svc := timesheet.NewService(timesheet.NewMemoryStore(), store.NewTxMemory())
	svc.NewID = func() string {
		n++
		return fmt.Sprintf("TS%03d", n)
	}
	svc.Now = func() time.Time { return time.Date(2024, time.May, 21, 18, 0, 0, 0, time.UTC) }
	audit := store.NewMemoryAudit()
	svc.AuditLog = audit
	return svc, audit
}

func draft(project string, h string, day generic.TimePoint) timesheet.Draft {
	return timesheet.Draft{
		EmployeeID:   "EMP001",
		EmployeeName: "Sarah Connor",
		Project:      project,
		Date:         day,
		Hours:        hours(h),
		Description:  "work",
	}
}

// =============================================================================
// HOURS VALIDATION
// =============================================================================

func TestValidateHours(t *testing.T) {
	tests := []struct {
		in string
		ok bool
	}{
		{"8", true},
		{"7.5", true},
		{"0.25", true},
		{"24", true},
		{"0", false},
		{"-1", false},
		{"24.25", false},
		{"7.3", false},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			err := timesheet.ValidateHours(hours(tc.in))
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, generic.ErrValidation))
			}
		})
	}
}

func TestDraft_RequiresProject(t *testing.T) {
	d := draft(" ", "8", date(2024, time.May, 20))
	var ve *generic.ValidationError
	require.ErrorAs(t, d.Validate(), &ve)
	assert.Equal(t, "project", ve.Field)
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestLifecycle_LogSubmitApprove(t *testing.T) {
	// GIVEN: An entry of 7.5 hours
	svc, audit := newService(t)
	ctx := context.Background()
	day := date(2024, time.May, 20)

	e, err := svc.Log(ctx, draft("Project Skynet", "7.5", day), worker)
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusDraft, e.Status)

	// WHEN: Submitted and approved
	e, err = svc.Submit(ctx, e.ID, worker)
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusSubmitted, e.Status)
	require.NotNil(t, e.SubmittedAt)

	e, err = svc.Review(ctx, e.ID, timesheet.Approve, manager)
	require.NoError(t, err)

	// THEN: Approved and posted to the ledger
	assert.Equal(t, timesheet.StatusApproved, e.Status)
	assert.Equal(t, manager.ID, e.ReviewedBy)

	total, err := svc.ApprovedHours(ctx, "EMP001", day, day)
	require.NoError(t, err)
	assert.True(t, total.Equal(hours("7.5")), "got %s", total)

	entries, err := audit.Query(ctx, generic.AuditFilter{Module: "timesheets"})
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestLifecycle_Reject_NotPosted(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	day := date(2024, time.May, 20)

	e, err := svc.Log(ctx, draft("Project Skynet", "8", day), worker)
	require.NoError(t, err)
	_, err = svc.Submit(ctx, e.ID, worker)
	require.NoError(t, err)
	e, err = svc.Review(ctx, e.ID, timesheet.Reject, manager)
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusRejected, e.Status)

	total, err := svc.ApprovedHours(ctx, "EMP001", day, day)
	require.NoError(t, err)
	assert.True(t, total.IsZero())
}

func TestLifecycle_ReviewDraft_Rejected(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	e, err := svc.Log(ctx, draft("Project Skynet", "8", date(2024, time.May, 20)), worker)
	require.NoError(t, err)

	_, err = svc.Review(ctx, e.ID, timesheet.Approve, manager)
	assert.True(t, errors.Is(err, generic.ErrInvalidTransition))
	assert.False(t, errors.Is(err, generic.ErrAlreadyReviewed))
}

func TestLifecycle_ReReview_AlreadyReviewed(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	e, err := svc.Log(ctx, draft("Project Skynet", "8", date(2024, time.May, 20)), worker)
	require.NoError(t, err)
	_, err = svc.Submit(ctx, e.ID, worker)
	require.NoError(t, err)
	_, err = svc.Review(ctx, e.ID, timesheet.Approve, manager)
	require.NoError(t, err)

	_, err = svc.Review(ctx, e.ID, timesheet.Reject, manager)
	assert.True(t, errors.Is(err, generic.ErrAlreadyReviewed))

	_, err = svc.Submit(ctx, e.ID, worker)
	assert.True(t, errors.Is(err, generic.ErrAlreadyReviewed))
}

func TestReview_DailyLimit(t *testing.T) {
	// GIVEN: 16 approved hours on one day
	svc, _ := newService(t)
	ctx := context.Background()
	day := date(2024, time.May, 20)

	approve := func(h string) (timesheet.Entry, error) {
		e, err := svc.Log(ctx, draft("Project Skynet", h, day), worker)
		require.NoError(t, err)
		_, err = svc.Submit(ctx, e.ID, worker)
		require.NoError(t, err)
		return svc.Review(ctx, e.ID, timesheet.Approve, manager)
	}
	_, err := approve("16")
	require.NoError(t, err)

	// WHEN: Approving another 8.25
	_, err = approve("8.25")

	// THEN: Over 24, rejected and the entry stays Submitted
	var ve *generic.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "daily_limit", ve.Code)

	submitted, err := svc.List(ctx, timesheet.Filter{Status: timesheet.StatusSubmitted})
	require.NoError(t, err)
	assert.Len(t, submitted, 1)

	// Exactly 24 is fine
	_, err = approve("8")
	assert.NoError(t, err)
}

func TestReview_InvalidDecision(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Review(context.Background(), "TS001", timesheet.Decision("Maybe"), manager)
	assert.True(t, errors.Is(err, generic.ErrValidation))
}

func TestReview_NotFound(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Submit(context.Background(), "nope", worker)
	assert.True(t, generic.IsNotFound(err))
}

// =============================================================================
// SUMMARY
// =============================================================================

func TestSummary(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	a, err := svc.Log(ctx, draft("Project Skynet", "8", date(2024, time.May, 20)), worker)
	require.NoError(t, err)
	_, err = svc.Log(ctx, draft("Project Skynet", "7.5", date(2024, time.May, 21)), worker)
	require.NoError(t, err)
	c, err := svc.Log(ctx, draft("Internal", "2.25", date(2024, time.May, 21)), worker)
	require.NoError(t, err)

	_, err = svc.Submit(ctx, a.ID, worker)
	require.NoError(t, err)
	_, err = svc.Submit(ctx, c.ID, worker)
	require.NoError(t, err)
	_, err = svc.Review(ctx, c.ID, timesheet.Reject, manager)
	require.NoError(t, err)

	sum, err := svc.Summary(ctx, timesheet.Filter{EmployeeID: "EMP001"})
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Entries)
	assert.True(t, sum.Total.Equal(hours("15.5")), "total %s", sum.Total)
	assert.True(t, sum.ByProject["Project Skynet"].Equal(hours("15.5")))
	assert.True(t, sum.ByStatus[timesheet.StatusRejected].Equal(hours("2.25")))
	assert.True(t, sum.ByStatus[timesheet.StatusSubmitted].Equal(hours("8")))
	_, hasInternal := sum.ByProject["Internal"]
	assert.False(t, hasInternal)
}

func TestList_DateWindowSorted(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Log(ctx, draft("P", "1", date(2024, time.May, 22)), worker)
	require.NoError(t, err)
	_, err = svc.Log(ctx, draft("P", "1", date(2024, time.May, 20)), worker)
	require.NoError(t, err)
	_, err = svc.Log(ctx, draft("P", "1", date(2024, time.June, 3)), worker)
	require.NoError(t, err)

	from, to := date(2024, time.May, 1), date(2024, time.May, 31)
	got, err := svc.List(ctx, timesheet.Filter{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2024-05-20", got[0].Date.String())
}
