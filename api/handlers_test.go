/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Caller resolution and fail-closed role handling
- Entitlement endpoints
- Leave quote/submit/review through the reviewer rule
- Timesheet logging and review
- Audit trail access and policy replacement
*/
package api

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumina/policy-engine/factory"
	"github.com/lumina/policy-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

const (
	employee    = "Employee"
	hrManager   = "HR Manager"
	opsManager  = "Ops Manager"
	systemAdmin = "System Admin"
)

type testServer struct {
	h      *Handler
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	policy, err := factory.Default()
	require.NoError(t, err)

	h := NewHandler(store, policy, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return &testServer{h: h, router: NewRouter(h, RouterOptions{Metrics: true})}
}

type response struct {
	Status int
	Data   json.RawMessage `json:"data"`
	Error  *ErrorDTO       `json:"error"`
}

func (ts *testServer) do(t *testing.T, method, path, role string, body any) response {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if role != "" {
		req.Header.Set(RoleHeader, role)
	}
	req.Header.Set(ActorHeader, "tester")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	resp.Status = rec.Code
	return resp
}

func decode[T any](t *testing.T, resp response) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(resp.Data, &out))
	return out
}

func kyleWeek() LeaveDraftRequest {
	return LeaveDraftRequest{
		EmployeeID:   "EMP003",
		EmployeeName: "Kyle Reese",
		Type:         "Annual",
		StartDate:    "2024-05-20",
		EndDate:      "2024-05-24",
		Reason:       "Family vacation",
	}
}

// =============================================================================
// CALLER + ACCESS
// =============================================================================

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, resp.Status)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodGet, "/api/access/check?module=leave&mode=read", employee, nil)

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "lumina_access_decisions_total")
}

func TestAccessMe_FixtureRoleWhenHeaderMissing(t *testing.T) {
	// GIVEN: No role header and the default fixture role (Employee)
	// WHEN: Asking for the caller's profile
	// THEN: Employee's row, visible modules in catalog order
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/api/access/me", "", nil)
	require.Equal(t, http.StatusOK, resp.Status)

	profile := decode[AccessProfileDTO](t, resp)
	assert.Equal(t, employee, profile.Role)
	assert.Equal(t, []string{"dashboard", "leave", "timesheets"}, profile.VisibleModules)
	assert.True(t, profile.Permissions["leave"].Write)
	assert.False(t, profile.Permissions["payDetails"].Read)
}

func TestUnknownRole_ForbiddenAndAudited(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/api/access/me", "Intern", nil)
	require.Equal(t, http.StatusForbidden, resp.Status)
	assert.Equal(t, "unknown_role", resp.Error.Code)

	audit := decode[[]AuditEntryDTO](t, ts.do(t, http.MethodGet, "/api/audit?action=access_denied", hrManager, nil))
	require.Len(t, audit, 1)
	assert.Equal(t, "Intern", audit[0].Role)
	assert.Equal(t, "Failure", audit[0].Outcome)
}

func TestAccessMatrix_RequiresSettingsRead(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodGet, "/api/access/matrix", employee, nil)
	assert.Equal(t, http.StatusForbidden, resp.Status)
	assert.Equal(t, "access_denied", resp.Error.Code)

	resp = ts.do(t, http.MethodGet, "/api/access/matrix", systemAdmin, nil)
	require.Equal(t, http.StatusOK, resp.Status)
	matrix := decode[MatrixDTO](t, resp)
	assert.Len(t, matrix.Roles, 7)
	assert.Len(t, matrix.Modules, 9)
	assert.True(t, matrix.Matrix[hrManager]["compliance"].Write)
	assert.False(t, matrix.Matrix[employee]["settings"].Read)
}

func TestAccessCheck(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		query   string
		allowed bool
	}{
		{"module=leave&mode=write", true},
		{"module=payDetails&mode=read", false},
		{"module=dashboard", true},
		{"module=unknown&mode=read", false},
		{"module=leave&mode=delete", false},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			resp := ts.do(t, http.MethodGet, "/api/access/check?"+tc.query, employee, nil)
			require.Equal(t, http.StatusOK, resp.Status)
			assert.Equal(t, tc.allowed, decode[AccessCheckDTO](t, resp).Allowed)
		})
	}
}

// =============================================================================
// LEAVE
// =============================================================================

func TestLeaveWorkflow_SubmitApproveReReview(t *testing.T) {
	ts := newTestServer(t)

	// GIVEN: Kyle quotes a Monday-Friday week with no holidays
	quote := decode[QuoteDTO](t, ts.do(t, http.MethodPost, "/api/leave/quote", employee, kyleWeek()))
	assert.Equal(t, 5, quote.Days)
	assert.True(t, quote.Allowed)
	assert.Equal(t, 18, quote.Available)

	// WHEN: Submitting it
	resp := ts.do(t, http.MethodPost, "/api/leave/requests", employee, kyleWeek())
	require.Equal(t, http.StatusCreated, resp.Status)
	created := decode[LeaveRequestDTO](t, resp)
	assert.Equal(t, "Pending", created.Status)
	assert.Equal(t, 5, created.Days)

	// THEN: An Employee cannot review (no employees read)
	resp = ts.do(t, http.MethodPost, "/api/leave/requests/"+created.ID+"/review", employee, ReviewRequest{Decision: "approve"})
	assert.Equal(t, http.StatusForbidden, resp.Status)

	// An HR Manager approves and the balance drops by 5
	resp = ts.do(t, http.MethodPost, "/api/leave/requests/"+created.ID+"/review", hrManager, ReviewRequest{Decision: "approve"})
	require.Equal(t, http.StatusOK, resp.Status)
	approved := decode[LeaveRequestDTO](t, resp)
	assert.Equal(t, "Approved", approved.Status)
	assert.Equal(t, "tester", approved.ReviewedBy)
	assert.Equal(t, created.StartDate, approved.StartDate)

	balances := decode[BalancesDTO](t, ts.do(t, http.MethodGet, "/api/employees/EMP003/balances?year=2024", employee, nil))
	assert.Equal(t, 13, balances.Balances["Annual"])
	assert.Equal(t, 10, balances.Balances["Sick"])

	// Reviewing again is a conflict, not a silent no-op
	resp = ts.do(t, http.MethodPost, "/api/leave/requests/"+created.ID+"/review", hrManager, ReviewRequest{Decision: "reject"})
	assert.Equal(t, http.StatusConflict, resp.Status)
	assert.Equal(t, "already_reviewed", resp.Error.Code)

	days := decode[[]DayOffDTO](t, ts.do(t, http.MethodGet, "/api/employees/EMP003/days-off?from=2024-05-01&to=2024-05-31", employee, nil))
	assert.Len(t, days, 5)
}

func TestLeave_ReversedRange(t *testing.T) {
	ts := newTestServer(t)
	draft := kyleWeek()
	draft.StartDate, draft.EndDate = draft.EndDate, draft.StartDate

	quote := decode[QuoteDTO](t, ts.do(t, http.MethodPost, "/api/leave/quote", employee, draft))
	assert.Equal(t, 0, quote.Days)
	assert.False(t, quote.Allowed)

	resp := ts.do(t, http.MethodPost, "/api/leave/requests", employee, draft)
	assert.Equal(t, http.StatusBadRequest, resp.Status)
	assert.Equal(t, "invalid_range", resp.Error.Code)
}

func TestLeave_Rejections(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		mutate func(d *LeaveDraftRequest)
		status int
		code   string
	}{
		{"personal over balance", func(d *LeaveDraftRequest) { d.Type = "Personal" }, http.StatusUnprocessableEntity, "insufficient_balance"},
		{"weekend only", func(d *LeaveDraftRequest) { d.StartDate, d.EndDate = "2024-05-25", "2024-05-26" }, http.StatusUnprocessableEntity, "zero_days"},
		{"unmetered weekend only", func(d *LeaveDraftRequest) {
			d.Type = "Maternity/Paternity"
			d.StartDate, d.EndDate = "2024-05-25", "2024-05-26"
		}, http.StatusUnprocessableEntity, "zero_days"},
		{"unknown type", func(d *LeaveDraftRequest) { d.Type = "Sabbatical" }, http.StatusUnprocessableEntity, "unknown_type"},
		{"unmetered range past the length limit", func(d *LeaveDraftRequest) {
			d.Type = "Maternity/Paternity"
			d.StartDate, d.EndDate = "0001-01-01", "9999-12-31"
		}, http.StatusBadRequest, "range_too_long"},
		{"bad date", func(d *LeaveDraftRequest) { d.StartDate = "20/05/2024" }, http.StatusBadRequest, "invalid_date"},
		{"missing employee", func(d *LeaveDraftRequest) { d.EmployeeID = "" }, http.StatusBadRequest, "required"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			draft := kyleWeek()
			tc.mutate(&draft)
			resp := ts.do(t, http.MethodPost, "/api/leave/requests", employee, draft)
			assert.Equal(t, tc.status, resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tc.code, resp.Error.Code)
		})
	}
}

func TestLeave_UnmeteredAlwaysSubmittable(t *testing.T) {
	ts := newTestServer(t)
	draft := kyleWeek()
	draft.Type = "Maternity/Paternity"
	draft.EndDate = "2024-08-30"

	resp := ts.do(t, http.MethodPost, "/api/leave/requests", employee, draft)
	require.Equal(t, http.StatusCreated, resp.Status)
	assert.Greater(t, decode[LeaveRequestDTO](t, resp).Days, 18)
}

func TestLeave_ListFiltersAndNotFound(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/leave/requests", employee, kyleWeek()).Status)

	list := decode[[]LeaveRequestDTO](t, ts.do(t, http.MethodGet, "/api/leave/requests?status=pending&employee_id=EMP003", hrManager, nil))
	assert.Len(t, list, 1)

	list = decode[[]LeaveRequestDTO](t, ts.do(t, http.MethodGet, "/api/leave/requests?status=Approved", hrManager, nil))
	assert.Empty(t, list)

	resp := ts.do(t, http.MethodGet, "/api/leave/requests?status=maybe", hrManager, nil)
	assert.Equal(t, http.StatusBadRequest, resp.Status)

	resp = ts.do(t, http.MethodGet, "/api/leave/requests/LR404", hrManager, nil)
	assert.Equal(t, http.StatusNotFound, resp.Status)

	resp = ts.do(t, http.MethodGet, "/api/leave/requests", opsManager, nil)
	assert.Equal(t, http.StatusForbidden, resp.Status)
}

func TestCreateAdjustment(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPost, "/api/employees/EMP003/adjustments", employee, AdjustmentRequest{Type: "Annual", Days: 2, Reason: "bonus"})
	assert.Equal(t, http.StatusForbidden, resp.Status)

	resp = ts.do(t, http.MethodPost, "/api/employees/EMP003/adjustments", hrManager, AdjustmentRequest{Type: "Annual", Days: 2, Reason: "bonus"})
	require.Equal(t, http.StatusCreated, resp.Status)
	assert.Equal(t, 20, decode[BalancesDTO](t, resp).Balances["Annual"])

	resp = ts.do(t, http.MethodPost, "/api/employees/EMP003/adjustments", hrManager, AdjustmentRequest{Type: "Maternity/Paternity", Days: 2})
	assert.Equal(t, http.StatusBadRequest, resp.Status)
}

func TestHolidays_LeaveOrSettingsRead(t *testing.T) {
	ts := newTestServer(t)

	holidays := decode[[]HolidayDTO](t, ts.do(t, http.MethodGet, "/api/holidays", employee, nil))
	require.Len(t, holidays, 4)
	assert.Equal(t, "HOL001", holidays[0].ID)

	resp := ts.do(t, http.MethodGet, "/api/holidays", opsManager, nil)
	assert.Equal(t, http.StatusForbidden, resp.Status)
}

// =============================================================================
// TIMESHEETS
// =============================================================================

func TestTimesheetWorkflow(t *testing.T) {
	ts := newTestServer(t)
	body := LogTimesheetRequest{EmployeeID: "EMP003", Project: "Website Redesign", Date: "2024-05-13", Hours: "7.5"}

	resp := ts.do(t, http.MethodPost, "/api/timesheets", employee, body)
	require.Equal(t, http.StatusCreated, resp.Status)
	entry := decode[TimesheetDTO](t, resp)
	assert.Equal(t, "Draft", entry.Status)

	resp = ts.do(t, http.MethodPost, "/api/timesheets/"+entry.ID+"/submit", employee, nil)
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "Submitted", decode[TimesheetDTO](t, resp).Status)

	resp = ts.do(t, http.MethodPost, "/api/timesheets/"+entry.ID+"/review", employee, ReviewRequest{Decision: "approve"})
	assert.Equal(t, http.StatusForbidden, resp.Status)

	resp = ts.do(t, http.MethodPost, "/api/timesheets/"+entry.ID+"/review", opsManager, ReviewRequest{Decision: "approve"})
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "Approved", decode[TimesheetDTO](t, resp).Status)

	resp = ts.do(t, http.MethodPost, "/api/timesheets/"+entry.ID+"/review", opsManager, ReviewRequest{Decision: "reject"})
	assert.Equal(t, http.StatusConflict, resp.Status)

	list := decode[TimesheetListDTO](t, ts.do(t, http.MethodGet, "/api/timesheets?employee_id=EMP003&from=2024-05-01&to=2024-05-31", opsManager, nil))
	require.Len(t, list.Entries, 1)
	assert.Equal(t, "7.5", list.Summary.Total)
	assert.Equal(t, "7.5", list.Summary.ByProject["Website Redesign"])
}

func TestTimesheet_InvalidHours(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		hours string
		code  string
	}{
		{"7.3", "granularity"},
		{"0", "out_of_range"},
		{"25", "out_of_range"},
		{"lots", "invalid_hours"},
	}
	for _, tc := range tests {
		t.Run(tc.hours, func(t *testing.T) {
			body := LogTimesheetRequest{EmployeeID: "EMP003", Project: "Website Redesign", Date: "2024-05-13", Hours: tc.hours}
			resp := ts.do(t, http.MethodPost, "/api/timesheets", employee, body)
			assert.Equal(t, http.StatusBadRequest, resp.Status)
			assert.Equal(t, tc.code, resp.Error.Code)
		})
	}
}

// =============================================================================
// AUDIT + POLICY
// =============================================================================

func TestAudit_RequiresComplianceRead(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/leave/requests", employee, kyleWeek()).Status)

	resp := ts.do(t, http.MethodGet, "/api/audit", employee, nil)
	assert.Equal(t, http.StatusForbidden, resp.Status)

	entries := decode[[]AuditEntryDTO](t, ts.do(t, http.MethodGet, "/api/audit?module=leave", hrManager, nil))
	require.NotEmpty(t, entries)
	assert.Equal(t, "leave_submitted", entries[0].Action)
	assert.Equal(t, "tester", entries[0].ActorID)
}

const replacementPolicy = `
version: 1
entitlements:
  Employee:
    dashboard: r
  System Admin:
    dashboard: rw
    leave: rw
    settings: rw
    compliance: r
holidays:
  - id: HOL100
    name: Founders Day
    date: "2024-05-22"
    type: Optional
`

func TestReplacePolicy(t *testing.T) {
	ts := newTestServer(t)

	resp := ts.do(t, http.MethodPut, "/api/access/policy", employee, replacementPolicy)
	assert.Equal(t, http.StatusForbidden, resp.Status)

	resp = ts.do(t, http.MethodPut, "/api/access/policy", systemAdmin, replacementPolicy)
	require.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, 1, decode[PolicyReloadDTO](t, resp).Holidays)

	// New matrix is in force
	profile := decode[AccessProfileDTO](t, ts.do(t, http.MethodGet, "/api/access/me", employee, nil))
	assert.Equal(t, []string{"dashboard"}, profile.VisibleModules)

	// New catalog is in force: the mid-week holiday costs one day less
	quote := decode[QuoteDTO](t, ts.do(t, http.MethodPost, "/api/leave/quote", systemAdmin, kyleWeek()))
	assert.Equal(t, 4, quote.Days)
	require.Len(t, quote.Holidays, 1)
	assert.Equal(t, "HOL100", quote.Holidays[0].ID)

	// Invalid documents are refused and the current policy stays
	resp = ts.do(t, http.MethodPut, "/api/access/policy", systemAdmin, "entitlements:\n  Intern:\n    leave: rw\n")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Status)
	assert.Equal(t, "invalid_policy", resp.Error.Code)

	entries := decode[[]AuditEntryDTO](t, ts.do(t, http.MethodGet, "/api/audit?action=policy_reloaded", systemAdmin, nil))
	require.Len(t, entries, 2)
	assert.Equal(t, "Failure", entries[0].Outcome)
	assert.Equal(t, "Success", entries[1].Outcome)

	// Malformed bodies are the client's fault too
	for _, body := range []string{"entitlements: [unclosed", "holidays: 5"} {
		resp = ts.do(t, http.MethodPut, "/api/access/policy", systemAdmin, body)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.Status, body)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "invalid_policy", resp.Error.Code, body)
	}
}
