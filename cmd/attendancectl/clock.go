package main

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/attendance-engine/internal/app"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/spf13/cobra"
)

func newClockCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clock",
		Short: "Clock an employee in or out on their behalf",
	}

	var employeeID, location, notes string
	addFlags := func(c *cobra.Command) {
		c.Flags().StringVarP(&employeeID, "employee", "e", "", "Employee id (required)")
		c.Flags().StringVar(&location, "location", "", "Where the event happened")
		c.Flags().StringVar(&notes, "notes", "", "Free-form note")
		_ = c.MarkFlagRequired("employee")
	}

	in := &cobra.Command{
		Use:   "in",
		Short: "Open a record for the employee",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, opts, func(ctx context.Context, e *app.Engine) error {
				rec, err := e.Attendance.ClockIn(ctx, attendance.ClockInRequest{
					EmployeeID: employeeID,
					Location:   location,
					Notes:      notes,
				})
				if err != nil {
					return err
				}
				return printRecord(cmd, opts, rec)
			})
		},
	}
	addFlags(in)

	out := &cobra.Command{
		Use:   "out",
		Short: "Close the employee's open record",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, opts, func(ctx context.Context, e *app.Engine) error {
				rec, err := e.Attendance.ClockOut(ctx, attendance.ClockOutRequest{
					EmployeeID: employeeID,
					Location:   location,
					Notes:      notes,
				})
				if err != nil {
					return err
				}
				return printRecord(cmd, opts, rec)
			})
		},
	}
	addFlags(out)

	cmd.AddCommand(in, out)
	return cmd
}

func printRecord(cmd *cobra.Command, opts *rootOptions, rec attendance.Record) error {
	resp := attendance.ToResponse(rec)
	if opts.asJSON {
		return printJSON(cmd.OutOrStdout(), resp)
	}
	line := fmt.Sprintf("%s %s %s in=%s", resp.ID, resp.EmployeeID, resp.Status, resp.ClockIn)
	if resp.ClockOut != nil {
		line += " out=" + *resp.ClockOut
	}
	if resp.HoursWorked != nil {
		line += fmt.Sprintf(" hours=%.2f", *resp.HoursWorked)
	}
	_, err := fmt.Fprintln(cmd.OutOrStdout(), line)
	return err
}
