package main

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/attendance-engine/internal/app"
	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the attendance tables and indexes if they are missing",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd, opts, func(ctx context.Context, e *app.Engine) error {
				if e.DB == nil {
					_, err := fmt.Fprintln(cmd.OutOrStdout(), "memory store: nothing to migrate")
					return err
				}
				if err := e.Migrate(ctx); err != nil {
					return err
				}
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
				return err
			})
		},
	}
}
