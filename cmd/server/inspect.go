package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/lumina/policy-engine/access"
	"github.com/lumina/policy-engine/generic"
	"github.com/lumina/policy-engine/timeoff"
)

// =============================================================================
// ACCESS
// =============================================================================

func newAccessCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "access",
		Short: "Query the entitlement table",
	}

	check := &cobra.Command{
		Use:   "check ROLE MODULE MODE",
		Short: "Print allow or deny for one role, module and mode",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := a.resolver()
			if err != nil {
				return err
			}
			module, ok := access.ParseModule(args[1])
			if !ok {
				return fmt.Errorf("unknown module %q", args[1])
			}
			mode, ok := access.ParseMode(args[2])
			if !ok {
				return fmt.Errorf("unknown mode %q (read or write)", args[2])
			}
			// Unknown roles are answered, not rejected: they get the default.
			verdict := "deny"
			if resolver.HasAccess(access.Role(args[0]), module, mode) {
				verdict = "allow"
			}
			fmt.Fprintln(cmd.OutOrStdout(), verdict)
			return nil
		},
	}

	describe := &cobra.Command{
		Use:   "describe ROLE",
		Short: "Print a role's permission on every module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver, err := a.resolver()
			if err != nil {
				return err
			}
			role := access.Role(args[0])
			perms := resolver.Describe(role)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "MODULE\tREAD\tWRITE")
			for _, m := range access.Modules() {
				p := perms[m]
				fmt.Fprintf(w, "%s\t%s\t%s\n", m, mark(p.Read), mark(p.Write))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nvisible: %s\n", joinModules(resolver.VisibleModules(role)))
			return nil
		},
	}

	matrix := &cobra.Command{
		Use:   "matrix",
		Short: "Print the role x module matrix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			resolver, err := a.resolver()
			if err != nil {
				return err
			}
			return printMatrix(cmd.OutOrStdout(), resolver)
		},
	}

	cmd.AddCommand(check, describe, matrix)
	return cmd
}

func (a *app) resolver() (*access.Resolver, error) {
	policy, err := a.policy()
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	return access.NewResolver(policy.Table), nil
}

// printMatrix writes one row per role. Cells are "rw", "r" or "-".
func printMatrix(out io.Writer, resolver *access.Resolver) error {
	modules := access.Modules()
	matrix := resolver.Matrix()

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	header := []string{"ROLE"}
	for _, m := range modules {
		header = append(header, string(m))
	}
	fmt.Fprintln(w, strings.Join(header, "\t"))

	for _, role := range access.Roles() {
		row := []string{string(role)}
		for _, m := range modules {
			row = append(row, cell(matrix[role][m]))
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

func cell(p access.Permission) string {
	switch {
	case p.Write:
		return "rw"
	case p.Read:
		return "r"
	}
	return "-"
}

func mark(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func joinModules(ms []access.Module) string {
	if len(ms) == 0 {
		return "(none)"
	}
	names := make([]string, len(ms))
	for i, m := range ms {
		names[i] = string(m)
	}
	return strings.Join(names, ", ")
}

// =============================================================================
// LEAVE
// =============================================================================

func newLeaveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "leave",
		Short: "Evaluate leave requests against the policy calendar",
	}

	var (
		leaveType string
		available int
	)
	quote := &cobra.Command{
		Use:   "quote START END",
		Short: "Count working days between two dates and check eligibility",
		Long: "Counts Monday to Friday days between START and END inclusive, minus\n" +
			"holidays from the policy calendar. --available defaults to the yearly\n" +
			"allowance of the leave type.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			policy, err := a.policy()
			if err != nil {
				return fmt.Errorf("load policy: %w", err)
			}
			t, ok := timeoff.ParseLeaveType(leaveType)
			if !ok {
				return fmt.Errorf("unknown leave type %q", leaveType)
			}
			start, err := generic.ParseDate(args[0])
			if err != nil {
				return fmt.Errorf("start: %w", err)
			}
			end, err := generic.ParseDate(args[1])
			if err != nil {
				return fmt.Errorf("end: %w", err)
			}

			balances := timeoff.Balances{}
			for lt, days := range policy.Allowances {
				balances[lt] = days
			}
			if cmd.Flags().Changed("available") {
				balances[t] = available
			}

			q := timeoff.NewEngine().Quote(
				timeoff.LeaveContext{Calendar: policy.Calendar(), Balances: balances},
				timeoff.Draft{Type: t, StartDate: start, EndDate: end},
			)
			return printQuote(cmd.OutOrStdout(), t, q)
		},
	}
	quote.Flags().StringVar(&leaveType, "type", string(timeoff.Annual), "leave type")
	quote.Flags().IntVar(&available, "available", 0, "remaining balance for the leave type")

	cmd.AddCommand(quote)
	return cmd
}

func printQuote(out io.Writer, t timeoff.LeaveType, q timeoff.Quote) error {
	fmt.Fprintf(out, "type:      %s\n", t)
	fmt.Fprintf(out, "days:      %d\n", q.Days)
	for _, h := range q.Holidays {
		fmt.Fprintf(out, "holiday:   %s %s (%s)\n", h.Date, h.Name, h.Type)
	}
	if q.Eligibility.Unmetered {
		fmt.Fprintln(out, "available: unmetered")
	} else {
		fmt.Fprintf(out, "available: %d\n", q.Eligibility.Available)
	}
	if q.Eligibility.Allowed {
		_, err := fmt.Fprintln(out, "allowed:   yes")
		return err
	}
	_, err := fmt.Fprintf(out, "allowed:   no (%s)\n", q.Eligibility.Reason)
	return err
}
