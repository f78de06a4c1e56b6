package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/app"
	"github.com/cmlabs-hris/attendance-engine/internal/config"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	timeout time.Duration
	asJSON  bool
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "attendancectl",
		Short: "Operate the attendance engine from the command line",
		Long: `attendancectl talks to the same record store as the API server.
Configuration is read the same way: .env, the YAML file named by
ATTENDANCE_CONFIG, then ATTENDANCE_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "Deadline for the whole command")
	cmd.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "Print JSON instead of a table")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug output to stderr")

	cmd.AddCommand(
		newSummaryCmd(opts),
		newReportCmd(opts),
		newStatusCmd(opts),
		newClockCmd(opts),
		newEmployeeCmd(opts),
		newMonitorCmd(opts),
		newMigrateCmd(opts),
		newTokenCmd(opts),
	)
	return cmd
}

// withEngine loads configuration, builds the engine and runs fn under the
// command's deadline.
func withEngine(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, e *app.Engine) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}

	engine, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer engine.Close()

	return fn(ctx, engine)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseDay(flag, value string) (time.Time, error) {
	d, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be YYYY-MM-DD: %w", flag, err)
	}
	return d, nil
}
