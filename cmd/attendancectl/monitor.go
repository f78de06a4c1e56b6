package main

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/app"
	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/cmlabs-hris/attendance-engine/internal/pkg/cron"
	"github.com/spf13/cobra"
)

func newMonitorCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stale",
		Short: "Report open records older than monitor.stale_after",
		Long: `Runs the stale open-record check once. Records are only reported;
closing them stays an explicit clock-out.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, opts, func(ctx context.Context, e *app.Engine) error {
				jobs := cron.NewAttendanceJobs(e.Records, e.Config.Monitor.StaleAfter, e.Metrics)
				stale, err := jobs.StaleOpenRecords(ctx)
				if err != nil {
					return err
				}
				if opts.asJSON {
					resp := make([]attendance.RecordResponse, 0, len(stale))
					for _, rec := range stale {
						resp = append(resp, attendance.ToResponse(rec))
					}
					return printJSON(cmd.OutOrStdout(), resp)
				}
				for _, rec := range stale {
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s open since %s\n",
						rec.EmployeeID, rec.ID, rec.ClockIn.Format(time.RFC3339))
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d stale open record(s)\n", len(stale))
				return err
			})
		},
	}
}
