/*
Package access implements the entitlement resolver.

PURPOSE:
  Answers two questions for the dashboard: "can this role read or write
  module X?" and "which modules can this role see at all?". The answer
  comes from an entitlement table: a total function Role x Module ->
  Permission whose missing entries fall back to a declared default.

FAIL-CLOSED:
  Unknown roles and unknown modules resolve to the default entry, which
  is {Read: false, Write: false}. Absence is "no access", never an error.

KEY TYPES:
  Role:       who is asking (assigned by the identity provider)
  Module:     capability domain in the fixed catalog
  Mode:       Read or Write
  Permission: fixed-shape {Read, Write}; tables enforce Write => Read
  Table:      immutable entitlement matrix
  Resolver:   concurrent-safe lookups over an atomically swapped Table

SEE ALSO:
  - table.go: construction and validation
  - resolver.go: HasAccess, VisibleModules, Describe
  - defaults.go: the built-in matrix
  - factory/policy.go: loading a matrix from a policy document
*/
package access

import "strings"

// =============================================================================
// ROLES
// =============================================================================

// Role identifies a class of dashboard user.
type Role string

const (
	RoleEmployee     Role = "Employee"
	RoleHRExecutive  Role = "HR Executive"
	RoleHRManager    Role = "HR Manager"
	RoleOpsExecutive Role = "Ops Executive"
	RoleOpsManager   Role = "Ops Manager"
	RoleAppAdmin     Role = "Application Admin"
	RoleSystemAdmin  Role = "System Admin"
)

var roleCatalog = []Role{
	RoleEmployee,
	RoleHRExecutive,
	RoleHRManager,
	RoleOpsExecutive,
	RoleOpsManager,
	RoleAppAdmin,
	RoleSystemAdmin,
}

// Roles returns the known roles in display order.
func Roles() []Role {
	return append([]Role(nil), roleCatalog...)
}

// ParseRole matches a role name exactly, then case-insensitively.
func ParseRole(s string) (Role, bool) {
	for _, r := range roleCatalog {
		if string(r) == s {
			return r, true
		}
	}
	for _, r := range roleCatalog {
		if strings.EqualFold(string(r), strings.TrimSpace(s)) {
			return r, true
		}
	}
	return Role(s), false
}

// =============================================================================
// MODULES
// =============================================================================

// Module is a capability domain of the dashboard.
type Module string

const (
	ModuleDashboard  Module = "dashboard"
	ModuleEmployees  Module = "employees"
	ModulePayDetails Module = "payDetails"
	ModuleLeave      Module = "leave"
	ModuleTimesheets Module = "timesheets"
	ModuleCompliance Module = "compliance"
	ModuleRoadmap    Module = "roadmap"
	ModuleSettings   Module = "settings"
	ModuleAIConfig   Module = "aiConfig"
)

var moduleCatalog = []Module{
	ModuleDashboard,
	ModuleEmployees,
	ModulePayDetails,
	ModuleLeave,
	ModuleTimesheets,
	ModuleCompliance,
	ModuleRoadmap,
	ModuleSettings,
	ModuleAIConfig,
}

// Modules returns the module catalog in display order.
func Modules() []Module {
	return append([]Module(nil), moduleCatalog...)
}

// ParseModule matches a module identifier exactly, then case-insensitively.
func ParseModule(s string) (Module, bool) {
	for _, m := range moduleCatalog {
		if string(m) == s {
			return m, true
		}
	}
	for _, m := range moduleCatalog {
		if strings.EqualFold(string(m), strings.TrimSpace(s)) {
			return m, true
		}
	}
	return Module(s), false
}

func moduleIndex(m Module) int {
	for i, c := range moduleCatalog {
		if c == m {
			return i
		}
	}
	return -1
}

// =============================================================================
// MODES AND PERMISSIONS
// =============================================================================

// Mode is the kind of access being asked for.
type Mode string

const (
	Read  Mode = "read"
	Write Mode = "write"
)

// ParseMode accepts "read"/"write" in any case.
func ParseMode(s string) (Mode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "read", "r":
		return Read, true
	case "write", "w":
		return Write, true
	}
	return Mode(s), false
}

// Permission is the access granted to one role on one module.
type Permission struct {
	Read  bool `json:"read" yaml:"read"`
	Write bool `json:"write" yaml:"write"`
}

// NoAccess is the fail-closed default entry.
var NoAccess = Permission{}

// ReadOnly and ReadWrite are the two non-empty permission shapes.
var (
	ReadOnly  = Permission{Read: true}
	ReadWrite = Permission{Read: true, Write: true}
)

// Allows reports whether the permission grants mode.
func (p Permission) Allows(mode Mode) bool {
	switch mode {
	case Read:
		return p.Read
	case Write:
		return p.Write
	}
	return false
}

// Valid reports whether the permission respects Write => Read.
func (p Permission) Valid() bool {
	return !p.Write || p.Read
}
