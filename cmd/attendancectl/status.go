package main

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/attendance-engine/internal/app"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/spf13/cobra"
)

func newStatusCmd(opts *rootOptions) *cobra.Command {
	var employeeID string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether an employee is clocked in",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, opts, func(ctx context.Context, e *app.Engine) error {
				open, err := e.Attendance.CurrentStatus(ctx, employeeID)
				if err != nil {
					return err
				}
				return printStatus(cmd, opts, attendance.ToStatusResponse(employeeID, open))
			})
		},
	}

	cmd.Flags().StringVarP(&employeeID, "employee", "e", "", "Employee id (required)")
	_ = cmd.MarkFlagRequired("employee")
	return cmd
}

func printStatus(cmd *cobra.Command, opts *rootOptions, status attendance.StatusResponse) error {
	out := cmd.OutOrStdout()
	if opts.asJSON {
		return printJSON(out, status)
	}
	if status.OpenRecord == nil {
		_, err := fmt.Fprintf(out, "%s is %s\n", status.EmployeeID, status.Status)
		return err
	}
	_, err := fmt.Fprintf(out, "%s is %s since %s (record %s)\n",
		status.EmployeeID, status.Status, status.OpenRecord.ClockIn, status.OpenRecord.ID)
	return err
}
