package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/cmlabs-hris/attendance-engine/internal/app"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/employee"
	"github.com/spf13/cobra"
)

var errNoDirectory = errors.New("the configured store has no employee directory; use store.driver=postgres")

func newEmployeeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "employee",
		Aliases: []string{"employees"},
		Short:   "Manage the employee directory used for names, departments and timezones",
	}

	var emp employee.Employee
	var status string
	upsert := &cobra.Command{
		Use:   "upsert",
		Short: "Add an employee or update an existing one",
		RunE: func(cmd *cobra.Command, args []string) error {
			emp.EmploymentStatus = employee.EmploymentStatus(status)
			if err := emp.Validate(); err != nil {
				return err
			}
			return withEngine(cmd, opts, func(ctx context.Context, e *app.Engine) error {
				if e.Employees == nil {
					return errNoDirectory
				}
				if err := e.Employees.Upsert(ctx, emp); err != nil {
					return err
				}
				_, err := fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", emp.ID)
				return err
			})
		},
	}
	upsert.Flags().StringVar(&emp.ID, "id", "", "Employee id (required)")
	upsert.Flags().StringVar(&emp.Name, "name", "", "Display name (required)")
	upsert.Flags().StringVar(&emp.Department, "department", "", "Department")
	upsert.Flags().StringVar(&emp.Timezone, "timezone", "", "IANA timezone for local work dates")
	upsert.Flags().StringVar(&status, "status", string(employee.EmploymentStatusActive), "active, resigned or terminated")
	_ = upsert.MarkFlagRequired("id")
	_ = upsert.MarkFlagRequired("name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List active employees",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, opts, func(ctx context.Context, e *app.Engine) error {
				if e.Employees == nil {
					return errNoDirectory
				}
				emps, err := e.Employees.List(ctx)
				if err != nil {
					return err
				}
				if opts.asJSON {
					return printJSON(cmd.OutOrStdout(), emps)
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tNAME\tDEPARTMENT\tTIMEZONE")
				for _, emp := range emps {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", emp.ID, emp.Name, emp.Department, emp.Timezone)
				}
				return w.Flush()
			})
		},
	}

	cmd.AddCommand(upsert, list)
	return cmd
}
