package access

import (
	"fmt"
	"sync/atomic"

	"github.com/lumina/policy-engine/generic"
)

// =============================================================================
// RESOLVER - Lookups over the current table
// =============================================================================

// Resolver answers entitlement questions. It is safe for concurrent use;
// Replace swaps the whole table atomically and readers never see a
// partially built one.
type Resolver struct {
	table atomic.Pointer[Table]
}

// NewResolver creates a resolver over t. A nil table denies everything.
func NewResolver(t *Table) *Resolver {
	r := &Resolver{}
	r.table.Store(t)
	return r
}

// Table returns the table currently in force.
func (r *Resolver) Table() *Table {
	return r.table.Load()
}

// Replace installs a new table wholesale.
func (r *Resolver) Replace(t *Table) {
	r.table.Store(t)
}

// HasAccess reports whether role may use module in the given mode.
// Unknown roles, modules and modes all answer false.
func (r *Resolver) HasAccess(role Role, module Module, mode Mode) bool {
	return r.table.Load().Lookup(role, module).Allows(mode)
}

// VisibleModules returns every module role can read, in catalog order.
func (r *Resolver) VisibleModules(role Role) []Module {
	t := r.table.Load()
	visible := []Module{}
	for _, m := range moduleCatalog {
		if t.Lookup(role, m).Read {
			visible = append(visible, m)
		}
	}
	return visible
}

// Describe returns the full permission row for role. Unknown roles get an
// empty map.
func (r *Resolver) Describe(role Role) map[Module]Permission {
	t := r.table.Load()
	out := make(map[Module]Permission)
	if !t.HasRole(role) {
		return out
	}
	for _, m := range moduleCatalog {
		out[m] = t.Lookup(role, m)
	}
	return out
}

// Matrix returns Describe for every known role.
func (r *Resolver) Matrix() map[Role]map[Module]Permission {
	out := make(map[Role]map[Module]Permission, len(roleCatalog))
	for _, role := range roleCatalog {
		out[role] = r.Describe(role)
	}
	return out
}

// Authorize is HasAccess for callers that propagate errors.
func (r *Resolver) Authorize(role Role, module Module, mode Mode) error {
	if r.HasAccess(role, module, mode) {
		return nil
	}
	return &DeniedError{Role: role, Module: module, Mode: mode}
}

// CanReview reports whether role may decide other employees' records in
// module: it needs Write there and Read on the employee directory.
func (r *Resolver) CanReview(role Role, module Module) bool {
	return r.HasAccess(role, module, Write) && r.HasAccess(role, ModuleEmployees, Read)
}

// =============================================================================
// ERRORS
// =============================================================================

// DeniedError is returned by Authorize.
type DeniedError struct {
	Role   Role
	Module Module
	Mode   Mode
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("role %q has no %s access to %s", e.Role, e.Mode, e.Module)
}

func (e *DeniedError) Unwrap() error {
	return generic.ErrAccessDenied
}
