package access

import (
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// TABLE - Immutable entitlement matrix
// =============================================================================

// Rows is the builder form of a table: role -> module -> permission.
type Rows map[Role]map[Module]Permission

// Table is a total function Role x Module -> Permission. Pairs that are
// not listed resolve to the default entry. A Table is never modified
// after NewTable returns.
type Table struct {
	rows map[Role]map[Module]Permission
	def  Permission
}

// TableError lists every entry that was rejected while building a table.
type TableError struct {
	Problems []string
}

func (e *TableError) Error() string {
	return "invalid entitlement table: " + strings.Join(e.Problems, "; ")
}

// NewTable copies rows into an immutable table with the NoAccess default.
//
// Every entry must satisfy Write => Read, every role and module must be in
// the catalog, and no role may appear under two spellings. All offending
// entries are reported in one *TableError.
func NewTable(rows Rows) (*Table, error) {
	var problems []string
	copied := make(map[Role]map[Module]Permission, len(rows))

	spellings := make(map[Role][]string)
	for raw := range rows {
		if role, ok := ParseRole(string(raw)); ok {
			spellings[role] = append(spellings[role], string(raw))
		}
	}
	for role, raws := range spellings {
		if len(raws) > 1 {
			sort.Strings(raws)
			problems = append(problems, fmt.Sprintf("role %s listed more than once: %s", role, strings.Join(quoteAll(raws), ", ")))
		}
	}

	for raw, perms := range rows {
		role, ok := ParseRole(string(raw))
		if !ok {
			problems = append(problems, fmt.Sprintf("unknown role %q", raw))
			continue
		}
		if len(spellings[role]) > 1 {
			continue
		}
		row := make(map[Module]Permission, len(perms))
		for module, perm := range perms {
			if moduleIndex(module) < 0 {
				problems = append(problems, fmt.Sprintf("%s: unknown module %q", role, module))
				continue
			}
			if !perm.Valid() {
				problems = append(problems, fmt.Sprintf("%s/%s: write without read", role, module))
				continue
			}
			row[module] = perm
		}
		copied[role] = row
	}

	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, &TableError{Problems: problems}
	}
	return &Table{rows: copied, def: NoAccess}, nil
}

func quoteAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = fmt.Sprintf("%q", s)
	}
	return out
}

// MustTable is NewTable for static tables; it panics on invalid input.
func MustTable(rows Rows) *Table {
	t, err := NewTable(rows)
	if err != nil {
		panic(err)
	}
	return t
}

// Lookup returns the permission for (role, module), or the default entry.
func (t *Table) Lookup(role Role, module Module) Permission {
	if t == nil {
		return NoAccess
	}
	if perm, ok := t.rows[role][module]; ok {
		return perm
	}
	return t.def
}

// Default returns the entry used for unlisted pairs.
func (t *Table) Default() Permission {
	if t == nil {
		return NoAccess
	}
	return t.def
}

// HasRole reports whether the table has a row for role.
func (t *Table) HasRole(role Role) bool {
	if t == nil {
		return false
	}
	_, ok := t.rows[role]
	return ok
}

// Rows returns a deep copy of the explicit entries.
func (t *Table) Rows() Rows {
	out := make(Rows)
	if t == nil {
		return out
	}
	for role, perms := range t.rows {
		row := make(map[Module]Permission, len(perms))
		for m, p := range perms {
			row[m] = p
		}
		out[role] = row
	}
	return out
}
