/*
handlers.go - HTTP API handlers for the policy engine

PURPOSE:
  Exposes the entitlement resolver, the leave workflow and timesheets as a
  JSON API. Handles HTTP request/response, JSON serialization, and
  delegates to domain logic.

ENDPOINTS:
  Access:
    GET    /api/access/matrix            Full matrix (settings read)
    GET    /api/access/me                Caller's row + visible modules
    GET    /api/access/check             ?module=&mode= decision
    PUT    /api/access/policy            Replace the policy document (settings write)

  Leave:
    GET    /api/holidays                 Catalog (leave or settings read)
    POST   /api/leave/quote              Fail-soft quote (leave read)
    POST   /api/leave/requests           Submit (leave write)
    GET    /api/leave/requests           List (leave read)
    GET    /api/leave/requests/{id}      One request (leave read)
    POST   /api/leave/requests/{id}/review  Approve/reject (reviewer)
    GET    /api/employees/{id}/balances  ?year= (leave read)
    GET    /api/employees/{id}/days-off  ?from=&to= (leave read)
    POST   /api/employees/{id}/adjustments  Manual correction (reviewer)

  Timesheets:
    POST   /api/timesheets               Log hours (timesheets write)
    GET    /api/timesheets               List + summary (timesheets read)
    POST   /api/timesheets/{id}/submit   Draft -> Submitted (timesheets write)
    POST   /api/timesheets/{id}/review   Approve/reject (reviewer)

  Audit:
    GET    /api/audit                    Audit trail (compliance read)

CALLER IDENTITY:
  The role comes from the X-Lumina-Role header, the actor ID from
  X-Lumina-Actor. A missing role falls back to the configured fixture
  role. Unknown roles are refused with 403. There is no authentication;
  the headers are trusted as set by the identity provider in front.

REVIEWER RULE:
  Reviewing leave or timesheets needs Write on the module and Read on the
  employee directory (access.Resolver.CanReview).

ERROR HANDLING:
  Errors are returned in the envelope with a status derived from the
  error chain:
  - 400: Validation errors, invalid input
  - 403: Access denied, unknown role
  - 404: Record not found
  - 409: Already reviewed, invalid transition, duplicate day
  - 422: Eligibility rejections, insufficient balance, bad policy document
  - 500: Internal errors (details logged, not returned)

  Every denial is written to the audit trail.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/lumina/policy-engine/access"
	"github.com/lumina/policy-engine/factory"
	"github.com/lumina/policy-engine/generic"
	"github.com/lumina/policy-engine/store/sqlite"
	"github.com/lumina/policy-engine/timeoff"
	"github.com/lumina/policy-engine/timesheet"
)

// Caller identity headers.
const (
	RoleHeader  = "X-Lumina-Role"
	ActorHeader = "X-Lumina-Actor"
)

const maxBodyBytes = 1 << 20

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store         *sqlite.Store
	Resolver      *access.Resolver
	Leave         *timeoff.RequestService
	Timesheets    *timesheet.Service
	Audit         generic.AuditLog
	PolicyFactory *factory.PolicyFactory

	// FixtureRole is used when a request carries no role header.
	FixtureRole access.Role
	Log         *slog.Logger

	metrics *engineMetrics

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires the services over one SQLite store and a policy.
func NewHandler(store *sqlite.Store, policy *factory.Policy, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	audit := store.Audit()

	leave := timeoff.NewRequestService(store.LeaveRequests(), store, policy.Calendar(), policy.Allowances)
	leave.AuditLog = audit

	sheets := timesheet.NewService(store.Timesheets(), store)
	sheets.AuditLog = audit

	return &Handler{
		Store:         store,
		Resolver:      access.NewResolver(policy.Table),
		Leave:         leave,
		Timesheets:    sheets,
		Audit:         audit,
		PolicyFactory: factory.NewPolicyFactory(),
		FixtureRole:   access.RoleEmployee,
		Log:           log,
		metrics:       globalEngineMetrics(),
	}
}

// =============================================================================
// CALLER + AUTHORIZATION
// =============================================================================

type caller struct {
	ID   string
	Role access.Role
}

func (c caller) leaveActor() timeoff.Actor { return timeoff.Actor{ID: c.ID, Role: string(c.Role)} }
func (c caller) sheetActor() timesheet.Actor {
	return timesheet.Actor{ID: c.ID, Role: string(c.Role)}
}

// caller resolves the request's role. It writes a 403 and returns false
// for roles outside the catalog.
func (h *Handler) caller(w http.ResponseWriter, r *http.Request) (caller, bool) {
	raw := strings.TrimSpace(r.Header.Get(RoleHeader))
	if raw == "" {
		raw = string(h.FixtureRole)
	}
	id := strings.TrimSpace(r.Header.Get(ActorHeader))
	if id == "" {
		id = "anonymous"
	}

	role, ok := access.ParseRole(raw)
	if !ok {
		msg := fmt.Sprintf("role %q is not recognised", raw)
		h.recordDenial(r, id, raw, "", msg)
		writeError(w, http.StatusForbidden, "unknown_role", msg)
		return caller{}, false
	}
	return caller{ID: id, Role: role}, true
}

// authorize checks one entitlement and answers 403 when it is missing.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, c caller, module access.Module, mode access.Mode) bool {
	err := h.Resolver.Authorize(c.Role, module, mode)
	h.metrics.recordDecision(string(module), string(mode), err == nil)
	if err != nil {
		h.recordDenial(r, c.ID, string(c.Role), module, err.Error())
		writeError(w, http.StatusForbidden, "access_denied", err.Error())
		return false
	}
	return true
}

// authorizeReview applies the reviewer rule for module.
func (h *Handler) authorizeReview(w http.ResponseWriter, r *http.Request, c caller, module access.Module) bool {
	ok := h.Resolver.CanReview(c.Role, module)
	h.metrics.recordDecision(string(module), "review", ok)
	if !ok {
		msg := fmt.Sprintf("role %q may not review %s records", c.Role, module)
		h.recordDenial(r, c.ID, string(c.Role), module, msg)
		writeError(w, http.StatusForbidden, "access_denied", msg)
		return false
	}
	return true
}

func (h *Handler) recordDenial(r *http.Request, actorID, role string, module access.Module, details string) {
	entry := generic.AuditEntry{
		ID:      h.Leave.Engine.NewID(),
		At:      h.Leave.Engine.Now().UTC(),
		ActorID: actorID,
		Role:    role,
		Action:  generic.AuditAccessDenied,
		Module:  string(module),
		Target:  r.Method + " " + r.URL.Path,
		Details: details,
		Outcome: generic.OutcomeFailure,
	}
	if err := h.Audit.Append(r.Context(), entry); err != nil {
		h.Log.Warn("failed to record access denial", "error", err, "path", r.URL.Path)
	}
}

// =============================================================================
// HEALTH
// =============================================================================

// Healthz reports liveness and database reachability.
// GET /healthz
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "database unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// ACCESS HANDLERS
// =============================================================================

// AccessMatrix returns the whole entitlement table.
// GET /api/access/matrix
func (h *Handler) AccessMatrix(w http.ResponseWriter, r *http.Request) {
	c, ok := h.caller(w, r)
	if !ok || !h.authorize(w, r, c, access.ModuleSettings, access.Read) {
		return
	}

	dto := MatrixDTO{Matrix: make(map[string]map[string]PermissionDTO)}
	for _, role := range access.Roles() {
		dto.Roles = append(dto.Roles, string(role))
	}
	for _, m := range access.Modules() {
		dto.Modules = append(dto.Modules, string(m))
	}
	for role, row := range h.Resolver.Matrix() {
		dto.Matrix[string(role)] = toPermissionMap(row)
	}
	writeJSON(w, http.StatusOK, dto)
}

// AccessMe describes the caller's own entitlements.
// GET /api/access/me
func (h *Handler) AccessMe(w http.ResponseWriter, r *http.Request) {
	c, ok := h.caller(w, r)
	if !ok {
		return
	}
	visible := []string{}
	for _, m := range h.Resolver.VisibleModules(c.Role) {
		visible = append(visible, string(m))
	}
	writeJSON(w, http.StatusOK, AccessProfileDTO{
		Role:           string(c.Role),
		Permissions:    toPermissionMap(h.Resolver.Describe(c.Role)),
		VisibleModules: visible,
	})
}

// AccessCheck answers one hasAccess question for the caller. Unknown
// modules and modes answer false rather than failing.
// GET /api/access/check?module=leave&mode=write
func (h *Handler) AccessCheck(w http.ResponseWriter, r *http.Request) {
	c, ok := h.caller(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	rawModule := q.Get("module")
	rawMode := q.Get("mode")
	if rawMode == "" {
		rawMode = string(access.Read)
	}

	allowed := false
	module, moduleOK := access.ParseModule(rawModule)
	mode, modeOK := access.ParseMode(rawMode)
	if moduleOK && modeOK {
		allowed = h.Resolver.HasAccess(c.Role, module, mode)
	}
	h.metrics.recordDecision(rawModule, rawMode, allowed)

	writeJSON(w, http.StatusOK, AccessCheckDTO{
		Role:    string(c.Role),
		Module:  rawModule,
		Mode:    rawMode,
		Allowed: allowed,
	})
}

// ReplacePolicy installs a new policy document (YAML or JSON). The new
// matrix and holiday catalog take effect atomically; allowances stay as
// loaded at startup.
// PUT /api/access/policy
func (h *Handler) ReplacePolicy(w http.ResponseWriter, r *http.Request) {
	c, ok := h.caller(w, r)
	if !ok || !h.authorize(w, r, c, access.ModuleSettings, access.Write) {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "failed to read body")
		return
	}

	policy, err := h.PolicyFactory.ParsePolicy(body)
	entry := generic.AuditEntry{
		ID:      h.Leave.Engine.NewID(),
		At:      h.Leave.Engine.Now().UTC(),
		ActorID: c.ID,
		Role:    string(c.Role),
		Action:  generic.AuditPolicyReloaded,
		Module:  string(access.ModuleSettings),
		Outcome: generic.OutcomeSuccess,
	}
	if err != nil {
		entry.Details = err.Error()
		entry.Outcome = generic.OutcomeFailure
		h.appendAudit(r, entry)
		h.fail(w, r, err)
		return
	}

	h.Resolver.Replace(policy.Table)
	h.Leave.SetCalendar(policy.Calendar())

	entry.Details = fmt.Sprintf("%d roles, %d holidays", len(policy.Table.Rows()), len(policy.Holidays))
	h.appendAudit(r, entry)
	h.Log.Info("policy replaced", "actor", c.ID, "holidays", len(policy.Holidays))

	writeJSON(w, http.StatusOK, PolicyReloadDTO{Roles: len(policy.Table.Rows()), Holidays: len(policy.Holidays)})
}

// =============================================================================
// LEAVE HANDLERS
// =============================================================================

// ListHolidays returns the holiday catalog in force.
// GET /api/holidays
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	c, ok := h.caller(w, r)
	if !ok {
		return
	}
	if !h.Resolver.HasAccess(c.Role, access.ModuleSettings, access.Read) &&
		!h.authorize(w, r, c, access.ModuleLeave, access.Read) {
		return
	}
	writeJSON(w, http.StatusOK, toHolidayDTOs(h.Leave.Calendar().Holidays()))
}

// QuoteLeave evaluates a draft without storing it. A reversed range
// quotes 0 days.
// POST /api/leave/quote
func (h *Handler) QuoteLeave(w http.ResponseWriter, r *http.Request) {
	c, ok := h.caller(w, r)
	if !ok || !h.authorize(w, r, c, access.ModuleLeave, access.Read) {
		return
	}

	var req LeaveDraftRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	draft, err := req.toDraft()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	quote, err := h.Leave.Quote(r.Context(), draft)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toQuoteDTO(quote))
}

// SubmitLeave stores a new Pending request.
// POST /api/leave/requests
func (h *Handler) SubmitLeave(w http.ResponseWriter, r *http.Request) {
	c, ok := h.caller(w, r)
	if !ok || !h.authorize(w, r, c, access.ModuleLeave, access.Write) {
		return
	}

	var req LeaveDraftRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	draft, err := req.toDraft()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	created, err := h.Leave.Submit(r.Context(), draft, c.leaveActor())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toLeaveRequestDTO(created))
}

// ListLeave lists requests, newest first.
// GET /api/leave/requests?status=Pending&employee_id=EMP003&type=Annual
func (h *Handler) ListLeave(w http.ResponseWriter, r *http.Request) {
	c, ok := h.caller(w, r)
	if !ok || !h.authorize(w, r, c, access.ModuleLeave, access.Read) {
		return
	}

	q := r.URL.Query()
	filter := timeoff.RequestFilter{EmployeeID: generic.EntityID(q.Get("employee_id"))}
	if s := q.Get("status"); s != "" {
		status, ok := parseLeaveStatus(s)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_status", fmt.Sprintf("unknown status %q", s))
			return
		}
		filter.Status = status
	}
	if s := q.Get("type"); s != "" {
		t, ok := timeoff.ParseLeaveType(s)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_type", fmt.Sprintf("unknown leave type %q", s))
			return
		}
		filter.Type = t
	}

	requests, err := h.Leave.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]LeaveRequestDTO, len(requests))
	for i, req := range requests {
		dtos[i] = toLeaveRequestDTO(req)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetLeave returns one request.
// GET /api/leave/requests/{id}
func (h *Handler) GetLeave(w http.ResponseWriter, r *http.Request) {
	c, ok := h.caller(w, r)
	if !ok || !h.authorize(w, r, c, access.ModuleLeave, access.Read) {
		return
	}
	req, err := h.Leave.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(req))
}

// ReviewLeave approves or rejects a Pending request. Approval debits the
// balance; reviewing a decided request is a 409.
// POST /api/leave/requests/{id}/review
func (h *Handler) ReviewLeave(w http.ResponseWriter, r *http.Request) {
	c, ok := h.caller(w, r)
	if !ok || !h.authorizeReview(w, r, c, access.ModuleLeave) {
		return
	}

	var body ReviewRequest
	if err := decodeJSON(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	decision, ok := timeoff.ParseDecision(body.Decision)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_decision", "decision must be approve or reject")
		return
	}

	reviewed, err := h.Leave.Review(r.Context(), chi.URLParam(r, "id"), decision, c.leaveActor())
	h.metrics.recordReview(string(access.ModuleLeave), string(decision), err)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toLeaveRequestDTO(reviewed))
}

// GetBalances returns remaining days per metered type.
// GET /api/employees/{id}/balances?year=2024
func (h *Handler) GetBalances(w http.ResponseWriter, r *http.Request) {
	c, ok := h.caller(w, r)
	if !ok || !h.authorize(w, r, c, access.ModuleLeave, access.Read) {
		return
	}

	year := h.Leave.Engine.Now().Year()
	if s := r.URL.Query().Get("year"); s != "" {
		y, err := strconv.Atoi(s)
		if err != nil || y < 1 {
			writeError(w, http.StatusBadRequest, "invalid_year", fmt.Sprintf("invalid year %q", s))
			return
		}
		year = y
	}

	h.writeBalances(w, r, generic.EntityID(chi.URLParam(r, "id")), year, http.StatusOK)
}

func (h *Handler) writeBalances(w http.ResponseWriter, r *http.Request, employeeID generic.EntityID, year, status int) {
	balances, err := h.Leave.Balances(r.Context(), employeeID, year)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dto := BalancesDTO{EmployeeID: string(employeeID), Year: year, Balances: make(map[string]int, len(balances))}
	for t, days := range balances {
		dto.Balances[string(t)] = days
	}
	writeJSON(w, status, dto)
}

// CreateAdjustment records a manual balance correction for the current
// year and returns the resulting balances.
// POST /api/employees/{id}/adjustments
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	c, ok := h.caller(w, r)
	if !ok || !h.authorizeReview(w, r, c, access.ModuleLeave) {
		return
	}

	var body AdjustmentRequest
	if err := decodeJSON(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	t, ok := timeoff.ParseLeaveType(body.Type)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_type", fmt.Sprintf("unknown leave type %q", body.Type))
		return
	}

	employeeID := generic.EntityID(chi.URLParam(r, "id"))
	if err := h.Leave.Adjust(r.Context(), employeeID, t, body.Days, body.Reason, c.leaveActor()); err != nil {
		h.fail(w, r, err)
		return
	}
	h.writeBalances(w, r, employeeID, h.Leave.Engine.Now().Year(), http.StatusCreated)
}

// GetDaysOff lists approved leave days in a window.
// GET /api/employees/{id}/days-off?from=2024-05-01&to=2024-05-31
func (h *Handler) GetDaysOff(w http.ResponseWriter, r *http.Request) {
	c, ok := h.caller(w, r)
	if !ok || !h.authorize(w, r, c, access.ModuleLeave, access.Read) {
		return
	}

	q := r.URL.Query()
	from, err := parseDateField("from", q.Get("from"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	to, err := parseDateField("to", q.Get("to"))
	if err != nil {
		h.fail(w, r, err)
		return
	}

	days, err := h.Leave.DaysOff(r.Context(), generic.EntityID(chi.URLParam(r, "id")), from, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]DayOffDTO, len(days))
	for i, d := range days {
		dtos[i] = DayOffDTO{Date: d.Date.String(), Type: string(d.Type), RequestID: d.RequestID}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// TIMESHEET HANDLERS
// =============================================================================

// LogTimesheet stores a Draft entry.
// POST /api/timesheets
func (h *Handler) LogTimesheet(w http.ResponseWriter, r *http.Request) {
	c, ok := h.caller(w, r)
	if !ok || !h.authorize(w, r, c, access.ModuleTimesheets, access.Write) {
		return
	}

	var body LogTimesheetRequest
	if err := decodeJSON(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	date, err := parseDateField("date", body.Date)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	hours, err := decimal.NewFromString(strings.TrimSpace(body.Hours))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_hours", fmt.Sprintf("hours %q is not a number", body.Hours))
		return
	}

	entry, err := h.Timesheets.Log(r.Context(), timesheet.Draft{
		EmployeeID:   generic.EntityID(body.EmployeeID),
		EmployeeName: body.EmployeeName,
		Project:      body.Project,
		Date:         date,
		Hours:        hours,
		Description:  body.Description,
	}, c.sheetActor())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTimesheetDTO(entry))
}

// ListTimesheets lists entries with their summary.
// GET /api/timesheets?employee_id=&status=&project=&from=&to=
func (h *Handler) ListTimesheets(w http.ResponseWriter, r *http.Request) {
	c, ok := h.caller(w, r)
	if !ok || !h.authorize(w, r, c, access.ModuleTimesheets, access.Read) {
		return
	}

	q := r.URL.Query()
	filter := timesheet.Filter{
		EmployeeID: generic.EntityID(q.Get("employee_id")),
		Status:     timesheet.Status(q.Get("status")),
		Project:    q.Get("project"),
	}
	if s := q.Get("from"); s != "" {
		from, err := parseDateField("from", s)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		filter.From = &from
	}
	if s := q.Get("to"); s != "" {
		to, err := parseDateField("to", s)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		filter.To = &to
	}

	entries, err := h.Timesheets.List(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dto := TimesheetListDTO{Entries: make([]TimesheetDTO, len(entries)), Summary: toSummaryDTO(timesheet.Summarize(entries))}
	for i, e := range entries {
		dto.Entries[i] = toTimesheetDTO(e)
	}
	writeJSON(w, http.StatusOK, dto)
}

// SubmitTimesheet moves a Draft entry to Submitted.
// POST /api/timesheets/{id}/submit
func (h *Handler) SubmitTimesheet(w http.ResponseWriter, r *http.Request) {
	c, ok := h.caller(w, r)
	if !ok || !h.authorize(w, r, c, access.ModuleTimesheets, access.Write) {
		return
	}
	entry, err := h.Timesheets.Submit(r.Context(), chi.URLParam(r, "id"), c.sheetActor())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimesheetDTO(entry))
}

// ReviewTimesheet approves or rejects a Submitted entry.
// POST /api/timesheets/{id}/review
func (h *Handler) ReviewTimesheet(w http.ResponseWriter, r *http.Request) {
	c, ok := h.caller(w, r)
	if !ok || !h.authorizeReview(w, r, c, access.ModuleTimesheets) {
		return
	}

	var body ReviewRequest
	if err := decodeJSON(r, &body); err != nil {
		h.fail(w, r, err)
		return
	}
	decision, ok := timesheet.ParseDecision(body.Decision)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_decision", "decision must be approve or reject")
		return
	}

	entry, err := h.Timesheets.Review(r.Context(), chi.URLParam(r, "id"), decision, c.sheetActor())
	h.metrics.recordReview(string(access.ModuleTimesheets), string(decision), err)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimesheetDTO(entry))
}

// =============================================================================
// AUDIT HANDLERS
// =============================================================================

// ListAudit returns the audit trail, newest first.
// GET /api/audit?module=&actor_id=&outcome=&limit=
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	c, ok := h.caller(w, r)
	if !ok || !h.authorize(w, r, c, access.ModuleCompliance, access.Read) {
		return
	}

	q := r.URL.Query()
	filter := generic.AuditFilter{
		ActorID: q.Get("actor_id"),
		Module:  q.Get("module"),
		Outcome: generic.AuditOutcome(q.Get("outcome")),
		Limit:   100,
	}
	if s := q.Get("action"); s != "" {
		filter.Actions = []generic.AuditAction{generic.AuditAction(s)}
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_limit", fmt.Sprintf("invalid limit %q", s))
			return
		}
		filter.Limit = n
	}

	entries, err := h.Audit.Query(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toAuditDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) appendAudit(r *http.Request, e generic.AuditEntry) {
	if err := h.Audit.Append(r.Context(), e); err != nil {
		h.Log.Warn("failed to append audit entry", "error", err, "action", e.Action)
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func (req LeaveDraftRequest) toDraft() (timeoff.Draft, error) {
	start, err := parseDateField("start_date", req.StartDate)
	if err != nil {
		return timeoff.Draft{}, err
	}
	end, err := parseDateField("end_date", req.EndDate)
	if err != nil {
		return timeoff.Draft{}, err
	}
	// Unknown types pass through; the engine rejects them as unknown_type.
	t, _ := timeoff.ParseLeaveType(req.Type)
	return timeoff.Draft{
		EmployeeID:   generic.EntityID(strings.TrimSpace(req.EmployeeID)),
		EmployeeName: req.EmployeeName,
		Type:         t,
		StartDate:    start,
		EndDate:      end,
		Reason:       req.Reason,
	}, nil
}

func parseLeaveStatus(s string) (timeoff.LeaveStatus, bool) {
	for _, status := range []timeoff.LeaveStatus{timeoff.StatusPending, timeoff.StatusApproved, timeoff.StatusRejected} {
		if strings.EqualFold(string(status), s) {
			return status, true
		}
	}
	return "", false
}

func parseDateField(field, s string) (generic.TimePoint, error) {
	if strings.TrimSpace(s) == "" {
		return generic.TimePoint{}, &generic.ValidationError{Field: field, Code: "required", Message: field + " is required"}
	}
	d, err := generic.ParseDate(strings.TrimSpace(s))
	if err != nil {
		return generic.TimePoint{}, &generic.ValidationError{Field: field, Code: "invalid_date", Message: fmt.Sprintf("%q is not a YYYY-MM-DD date", s)}
	}
	return d, nil
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &generic.ValidationError{Code: "invalid_body", Message: fmt.Sprintf("invalid JSON body: %v", err)}
	}
	return nil
}

// classify maps an error chain to a status and an error code.
func classify(err error) (int, string) {
	var (
		rejection  *timeoff.RejectionError
		validation *generic.ValidationError
		document   *factory.DocumentError
	)
	switch {
	case errors.Is(err, generic.ErrAccessDenied):
		return http.StatusForbidden, "access_denied"
	case generic.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, generic.ErrAlreadyReviewed):
		return http.StatusConflict, "already_reviewed"
	case errors.Is(err, generic.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, generic.ErrDuplicateDayConsumption):
		return http.StatusConflict, "duplicate_day"
	case errors.Is(err, generic.ErrDuplicateIdempotencyKey):
		return http.StatusConflict, "duplicate"
	case errors.As(err, &rejection):
		return http.StatusUnprocessableEntity, string(rejection.Reason)
	case errors.Is(err, generic.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, "insufficient_balance"
	case errors.As(err, &document):
		return http.StatusUnprocessableEntity, "invalid_policy"
	case errors.As(err, &validation):
		return http.StatusBadRequest, validation.Code
	}
	return http.StatusInternalServerError, "internal"
}

// fail writes err in the envelope. Internal errors are logged and
// replaced by a generic message.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status == http.StatusInternalServerError {
		h.Log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, status, code, "internal error")
		return
	}
	writeError(w, status, code, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Data: data})
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(envelope{Error: &ErrorDTO{Code: code, Message: message}})
}
