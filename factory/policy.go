/*
Package factory converts policy documents into engine objects.

PURPOSE:
  HR owns the entitlement matrix, the holiday catalog and the yearly
  allowances. They live in one YAML (or JSON) document that the factory
  turns into an access.Table, a timeoff.Calendar and timeoff.Allowances,
  so a policy change never needs a code change.

DOCUMENT SCHEMA:
  version: 1
  entitlements:            # role -> module -> permission
    Employee:
      leave: rw            # "rw", "r", "none" or {read: true, write: false}
  holidays:
    - id: HOL001
      name: New Year Day
      date: "2024-01-01"
      type: Public         # Public | Optional
  allowances:              # whole days per calendar year
    Annual: 18

DEFAULTS:
  - entitlements omitted: access.DefaultRows()
  - allowances omitted:   timeoff.DefaultAllowances()
  - holidays omitted:     empty catalog

VALIDATION:
  Every problem in the document is collected into one *DocumentError:
  unknown roles or modules, write without read, bad dates, unknown
  holiday or leave types, negative allowances, allowances for unmetered
  leave.

SEE ALSO:
  - default_policy.yaml: the built-in document
  - access/table.go: table invariants
*/
package factory

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lumina/policy-engine/access"
	"github.com/lumina/policy-engine/generic"
	"github.com/lumina/policy-engine/timeoff"
)

//go:embed default_policy.yaml
var defaultDocument []byte

// =============================================================================
// DOCUMENT SCHEMA TYPES
// =============================================================================

// Document is the serialized policy.
type Document struct {
	Version      int                                 `yaml:"version" json:"version"`
	Entitlements map[string]map[string]PermissionDoc `yaml:"entitlements,omitempty" json:"entitlements,omitempty"`
	Holidays     []HolidayDoc                        `yaml:"holidays,omitempty" json:"holidays,omitempty"`
	Allowances   map[string]int                      `yaml:"allowances,omitempty" json:"allowances,omitempty"`
}

// HolidayDoc is one catalog entry. Date is "YYYY-MM-DD".
type HolidayDoc struct {
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`
	Date string `yaml:"date" json:"date"`
	Type string `yaml:"type" json:"type"`
}

// PermissionDoc reads either shorthand or a {read, write} mapping.
type PermissionDoc access.Permission

func (p *PermissionDoc) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		switch strings.ToLower(strings.TrimSpace(node.Value)) {
		case "rw", "read-write", "write":
			*p = PermissionDoc(access.ReadWrite)
		case "r", "read", "read-only":
			*p = PermissionDoc(access.ReadOnly)
		case "none", "-", "":
			*p = PermissionDoc(access.NoAccess)
		default:
			return fmt.Errorf("line %d: unknown permission %q", node.Line, node.Value)
		}
		return nil
	}
	var perm access.Permission
	if err := node.Decode(&perm); err != nil {
		return err
	}
	*p = PermissionDoc(perm)
	return nil
}

func (p PermissionDoc) MarshalYAML() (any, error) {
	switch {
	case p.Write && p.Read:
		return "rw", nil
	case p.Read:
		return "r", nil
	case !p.Write:
		return "none", nil
	}
	return access.Permission(p), nil
}

// DocumentError collects every problem found in a document.
type DocumentError struct {
	Problems []string
}

func (e *DocumentError) Error() string {
	return "invalid policy document: " + strings.Join(e.Problems, "; ")
}

// =============================================================================
// POLICY
// =============================================================================

// Policy is a validated document ready for use.
type Policy struct {
	Table      *access.Table
	Holidays   []timeoff.Holiday
	Allowances timeoff.Allowances
}

// Calendar builds the working-day calendar for the catalog.
func (p *Policy) Calendar() *timeoff.Calendar {
	return timeoff.NewCalendar(p.Holidays)
}

// =============================================================================
// POLICY FACTORY
// =============================================================================

// PolicyFactory converts documents to policies and back.
type PolicyFactory struct{}

// NewPolicyFactory creates a new policy factory.
func NewPolicyFactory() *PolicyFactory {
	return &PolicyFactory{}
}

// ParsePolicy parses YAML or JSON into a Policy.
func (f *PolicyFactory) ParsePolicy(data []byte) (*Policy, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &DocumentError{Problems: []string{err.Error()}}
	}
	return f.FromDocument(doc)
}

// FromDocument validates doc and builds the policy.
func (f *PolicyFactory) FromDocument(doc Document) (*Policy, error) {
	var problems []string
	if doc.Version != 0 && doc.Version != 1 {
		problems = append(problems, fmt.Sprintf("unsupported version %d", doc.Version))
	}

	table, tableProblems := parseEntitlements(doc.Entitlements)
	problems = append(problems, tableProblems...)

	holidays, holidayProblems := parseHolidays(doc.Holidays)
	problems = append(problems, holidayProblems...)

	allowances, allowanceProblems := parseAllowances(doc.Allowances)
	problems = append(problems, allowanceProblems...)

	if len(problems) > 0 {
		return nil, &DocumentError{Problems: problems}
	}
	return &Policy{Table: table, Holidays: holidays, Allowances: allowances}, nil
}

// ToDocument converts a policy back to its document form. Roles with no
// permissions are left out.
func (f *PolicyFactory) ToDocument(p *Policy) Document {
	doc := Document{Version: 1, Entitlements: make(map[string]map[string]PermissionDoc), Allowances: make(map[string]int)}

	for role, row := range p.Table.Rows() {
		out := make(map[string]PermissionDoc)
		for module, perm := range row {
			if perm.Read || perm.Write {
				out[string(module)] = PermissionDoc(perm)
			}
		}
		if len(out) > 0 {
			doc.Entitlements[string(role)] = out
		}
	}
	for _, h := range p.Holidays {
		doc.Holidays = append(doc.Holidays, HolidayDoc{ID: h.ID, Name: h.Name, Date: h.Date.String(), Type: string(h.Type)})
	}
	for t, days := range p.Allowances {
		doc.Allowances[string(t)] = days
	}
	return doc
}

// Marshal writes a document as YAML.
func (f *PolicyFactory) Marshal(doc Document) ([]byte, error) {
	return yaml.Marshal(doc)
}

// =============================================================================
// LOADING
// =============================================================================

// LoadFile reads a policy document from disk. An empty path loads the
// built-in document.
func LoadFile(path string) (*Policy, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return NewPolicyFactory().ParsePolicy(data)
}

// Default parses the built-in document.
func Default() (*Policy, error) {
	return NewPolicyFactory().ParsePolicy(defaultDocument)
}

// DefaultDocument returns the raw built-in document.
func DefaultDocument() []byte {
	return append([]byte(nil), defaultDocument...)
}

// =============================================================================
// PARSING HELPERS
// =============================================================================

func parseEntitlements(in map[string]map[string]PermissionDoc) (*access.Table, []string) {
	if in == nil {
		return access.DefaultTable(), nil
	}

	var problems []string
	rows := make(access.Rows, len(in))
	roleKeys := make(map[access.Role][]string)
	for roleName, modules := range in {
		role, ok := access.ParseRole(roleName)
		if !ok {
			problems = append(problems, fmt.Sprintf("unknown role %q", roleName))
			continue
		}
		roleKeys[role] = append(roleKeys[role], roleName)

		row := make(map[access.Module]access.Permission, len(modules))
		moduleKeys := make(map[access.Module][]string)
		for moduleName, perm := range modules {
			module, ok := access.ParseModule(moduleName)
			if !ok {
				problems = append(problems, fmt.Sprintf("%s: unknown module %q", role, moduleName))
				continue
			}
			moduleKeys[module] = append(moduleKeys[module], moduleName)
			row[module] = access.Permission(perm)
		}
		for module, keys := range moduleKeys {
			if len(keys) > 1 {
				problems = append(problems, fmt.Sprintf("%s: module %s listed more than once: %s", role, module, quoted(keys)))
			}
		}
		rows[role] = row
	}
	for role, keys := range roleKeys {
		if len(keys) > 1 {
			problems = append(problems, fmt.Sprintf("role %s listed more than once: %s", role, quoted(keys)))
			delete(rows, role)
		}
	}

	table, err := access.NewTable(rows)
	if err != nil {
		if te, ok := err.(*access.TableError); ok {
			problems = append(problems, te.Problems...)
		} else {
			problems = append(problems, err.Error())
		}
	}
	sort.Strings(problems)
	return table, problems
}

// quoted lists keys sorted, so problems read the same on every run.
func quoted(keys []string) string {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)
	for i, k := range sorted {
		sorted[i] = strconv.Quote(k)
	}
	return strings.Join(sorted, ", ")
}

func parseHolidays(in []HolidayDoc) ([]timeoff.Holiday, []string) {
	var problems []string
	holidays := make([]timeoff.Holiday, 0, len(in))
	seen := make(map[string]bool, len(in))

	for i, h := range in {
		label := h.ID
		if label == "" {
			label = fmt.Sprintf("#%d", i+1)
		}
		if h.ID != "" && seen[h.ID] {
			problems = append(problems, fmt.Sprintf("holiday %s: duplicate id", label))
		}
		seen[h.ID] = true

		date, err := generic.ParseDate(strings.TrimSpace(h.Date))
		if err != nil {
			problems = append(problems, fmt.Sprintf("holiday %s: %v", label, err))
			continue
		}
		typ, ok := parseHolidayType(h.Type)
		if !ok {
			problems = append(problems, fmt.Sprintf("holiday %s: unknown type %q", label, h.Type))
			continue
		}
		holidays = append(holidays, timeoff.Holiday{ID: h.ID, Name: h.Name, Date: date, Type: typ})
	}
	return holidays, problems
}

func parseHolidayType(s string) (timeoff.HolidayType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "public", "":
		return timeoff.HolidayPublic, true
	case "optional":
		return timeoff.HolidayOptional, true
	}
	return timeoff.HolidayType(s), false
}

func parseAllowances(in map[string]int) (timeoff.Allowances, []string) {
	if in == nil {
		return timeoff.DefaultAllowances(), nil
	}

	var problems []string
	out := make(timeoff.Allowances, len(in))
	for name, days := range in {
		t, ok := timeoff.ParseLeaveType(name)
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("allowance: unknown leave type %q", name))
		case t.Unmetered():
			problems = append(problems, fmt.Sprintf("allowance: %s is not metered", t))
		case days < 0:
			problems = append(problems, fmt.Sprintf("allowance %s: negative days", t))
		default:
			out[t] = days
		}
	}
	sort.Strings(problems)
	return out, problems
}
