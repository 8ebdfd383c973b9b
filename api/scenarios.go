/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with the HR
	dashboard's sample data, so the API can be explored without typing
	requests by hand.

AVAILABLE SCENARIOS:

	lumina-demo:  LR001 pending, LR002 approved, TS001 approved, TS002 submitted
	low-balance:  Kyle Reese's 2024 Annual balance cut to 4 days

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create records with fixed IDs
 3. Drive them through the real services (review, submit, adjust) so the
    ledger and the audit trail match what the workflow would produce

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "lumina-demo"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler wiring
*/
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/lumina/policy-engine/access"
	"github.com/lumina/policy-engine/generic"
	"github.com/lumina/policy-engine/timeoff"
	"github.com/lumina/policy-engine/timesheet"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "lumina-demo",
		Name:        "Lumina Dashboard",
		Description: "Dashboard sample data: one pending and one approved leave request, two timesheet entries",
	},
	{
		ID:          "low-balance",
		Name:        "Low Annual Balance",
		Description: "Kyle Reese has 4 Annual days left in 2024, so a full week off is rejected",
	},
}

var scenarioActor = timeoff.Actor{ID: "scenario-loader", Role: string(access.RoleSystemAdmin)}

// seededAt is the creation time stamped on scenario records.
var seededAt = time.Date(2024, time.May, 10, 9, 0, 0, 0, time.UTC)

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available demo scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.caller(w, r); !ok {
		return
	}
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the last loaded scenario ID, "" if none.
// GET /api/scenarios/current
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.caller(w, r); !ok {
		return
	}
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"scenario_id": current})
}

// LoadScenario resets the database and loads a scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	c, ok := h.caller(w, r)
	if !ok || !h.authorize(w, r, c, access.ModuleSettings, access.Write) {
		return
	}

	var req LoadScenarioRequest
	if err := decodeJSON(r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.ApplyScenario(r.Context(), req.ScenarioID); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"scenario_id": req.ScenarioID})
}

// ApplyScenario resets the store and loads the named scenario.
func (h *Handler) ApplyScenario(ctx context.Context, id string) error {
	var load func(context.Context) error
	switch id {
	case "lumina-demo":
		load = h.loadLuminaDemo
	case "low-balance":
		load = h.loadLowBalance
	default:
		return &generic.NotFoundError{Kind: "scenario", ID: id}
	}

	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset store: %w", err)
	}
	if err := load(ctx); err != nil {
		return fmt.Errorf("load scenario %s: %w", id, err)
	}

	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()
	h.Log.Info("scenario loaded", "scenario", id)
	return nil
}

// =============================================================================
// LOADERS
// =============================================================================

func (h *Handler) loadLuminaDemo(ctx context.Context) error {
	if err := h.seedRequest(ctx, "LR001", "EMP003", "Kyle Reese", timeoff.Annual,
		generic.NewTimePoint(2024, time.May, 20), generic.NewTimePoint(2024, time.May, 24), "Family vacation"); err != nil {
		return err
	}
	if err := h.seedRequest(ctx, "LR002", "EMP001", "Sarah Connor", timeoff.Sick,
		generic.NewTimePoint(2024, time.May, 15), generic.NewTimePoint(2024, time.May, 16), "Medical checkup"); err != nil {
		return err
	}
	if _, err := h.Leave.Review(ctx, "LR002", timeoff.Approve, scenarioActor); err != nil {
		return err
	}

	sheetActor := timesheet.Actor{ID: scenarioActor.ID, Role: scenarioActor.Role}
	if err := h.seedEntry(ctx, "TS001", generic.NewTimePoint(2024, time.May, 15), "8", "Backend Optimization"); err != nil {
		return err
	}
	if _, err := h.Timesheets.Submit(ctx, "TS001", sheetActor); err != nil {
		return err
	}
	if _, err := h.Timesheets.Review(ctx, "TS001", timesheet.Approve, sheetActor); err != nil {
		return err
	}
	if err := h.seedEntry(ctx, "TS002", generic.NewTimePoint(2024, time.May, 16), "7.5", "Bug Fixing"); err != nil {
		return err
	}
	_, err := h.Timesheets.Submit(ctx, "TS002", sheetActor)
	return err
}

func (h *Handler) loadLowBalance(ctx context.Context) error {
	return h.Leave.AdjustOn(ctx, "EMP003", timeoff.Annual, -14,
		generic.NewTimePoint(2024, time.January, 2), "Carried-over deficit", scenarioActor)
}

func (h *Handler) seedRequest(ctx context.Context, id string, employeeID generic.EntityID, name string, t timeoff.LeaveType, start, end generic.TimePoint, reason string) error {
	return h.Leave.Requests.Create(ctx, timeoff.LeaveRequest{
		ID:           id,
		EmployeeID:   employeeID,
		EmployeeName: name,
		Type:         t,
		StartDate:    start,
		EndDate:      end,
		Days:         h.Leave.Calendar().WorkingDays(start, end),
		Status:       timeoff.StatusPending,
		Reason:       reason,
		CreatedAt:    seededAt,
	})
}

func (h *Handler) seedEntry(ctx context.Context, id string, date generic.TimePoint, hours, description string) error {
	return h.Timesheets.Entries.Create(ctx, timesheet.Entry{
		ID:           id,
		EmployeeID:   "EMP001",
		EmployeeName: "Sarah Connor",
		Project:      "Project Genesis",
		Date:         date,
		Hours:        decimal.RequireFromString(hours),
		Description:  description,
		Status:       timesheet.StatusDraft,
		CreatedAt:    seededAt,
	})
}
