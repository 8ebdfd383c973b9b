package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAccessCheck(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"manager reads pay", []string{"HR Manager", "payDetails", "read"}, "allow\n"},
		{"employee writes pay", []string{"Employee", "payDetails", "write"}, "deny\n"},
		{"unknown role", []string{"Intern", "dashboard", "read"}, "deny\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, append([]string{"access", "check"}, tt.args...)...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}

	_, err := run(t, "access", "check", "Employee", "nowhere", "read")
	assert.Error(t, err)
}

func TestAccessDescribe(t *testing.T) {
	out, err := run(t, "access", "describe", "Employee")
	require.NoError(t, err)
	assert.Contains(t, out, "visible: dashboard, leave, timesheets")

	out, err = run(t, "access", "describe", "Intern")
	require.NoError(t, err)
	assert.Contains(t, out, "visible: (none)")
}

func TestAccessMatrix(t *testing.T) {
	out, err := run(t, "access", "matrix")
	require.NoError(t, err)
	assert.Contains(t, out, "System Admin")
	assert.Contains(t, out, "aiConfig")
}

func TestLeaveQuote(t *testing.T) {
	// GIVEN: The built-in calendar with no holiday in the week of 2024-05-20
	// WHEN: Quoting the full week
	// THEN: 5 days, allowed against the 18 day allowance
	out, err := run(t, "leave", "quote", "2024-05-20", "2024-05-24")
	require.NoError(t, err)
	assert.Contains(t, out, "days:      5")
	assert.Contains(t, out, "allowed:   yes")

	out, err = run(t, "leave", "quote", "2024-05-20", "2024-05-24", "--available", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "allowed:   no (insufficient_balance)")
}

func TestLeaveQuote_PolicyFile(t *testing.T) {
	// GIVEN: A policy that declares 2024-05-22 a public holiday
	path := filepath.Join(t.TempDir(), "policy.yaml")
	doc := `
version: 1
entitlements:
  Employee:
    dashboard: {read: true, write: false}
holidays:
  - {id: H1, name: Founders Day, date: "2024-05-22", type: Public}
allowances:
  Annual: 18
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	// WHEN: Quoting the week with that policy
	out, err := run(t, "leave", "quote", "2024-05-20", "2024-05-24", "--available", "4", "--policy-file", path)

	// THEN: The holiday costs no day and 4 days fit
	require.NoError(t, err)
	assert.Contains(t, out, "days:      4")
	assert.Contains(t, out, "Founders Day")
	assert.Contains(t, out, "allowed:   yes")
}

func TestLeaveQuote_BadInput(t *testing.T) {
	_, err := run(t, "leave", "quote", "2024-05-20", "not-a-date")
	assert.Error(t, err)

	_, err = run(t, "leave", "quote", "2024-05-20", "2024-05-24", "--type", "Vacation")
	assert.Error(t, err)
}
