package cli

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"transitportal/internal/services"
)

type schedulerRunOptions struct {
	Slot   string
	Date   string
	DryRun bool
	Force  bool
}

func newSchedulerCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Run or inspect the daily reminder scheduler",
	}
	cmd.AddCommand(newSchedulerRunCommand(opts))
	cmd.AddCommand(newSchedulerStatusCommand(opts))
	return cmd
}

func newSchedulerRunCommand(opts *RootOptions) *cobra.Command {
	runOpts := &schedulerRunOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Trigger one reminder slot now",
		Long: `Trigger one reminder slot through the same run tracker the HTTP endpoint uses.

Example:
  transitportal scheduler run --slot 17:00
  transitportal scheduler run --slot 18:00 --date 2025-11-05 --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := opts.bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()
			if app.Deps.SchedulerKey == "" {
				return errors.New("SCHEDULER_KEY is not configured")
			}

			res, runErr := app.Deps.Scheduler("cli").Trigger(cmd.Context(), services.TriggerRequest{
				SchedulerKey: app.Deps.SchedulerKey,
				TargetDate:   runOpts.Date,
				TimeSlot:     runOpts.Slot,
				DryRun:       runOpts.DryRun,
				Force:        runOpts.Force,
			})
			if res.RunID != 0 || res.Skipped {
				if err := printJSON(cmd, res); err != nil {
					return err
				}
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&runOpts.Slot, "slot", "", "time slot (17:00 or 18:00); defaults to the current hour")
	cmd.Flags().StringVar(&runOpts.Date, "date", "", "run date YYYY-MM-DD; defaults to today")
	cmd.Flags().BoolVar(&runOpts.DryRun, "dry-run", false, "count recipients without sending")
	cmd.Flags().BoolVar(&runOpts.Force, "force", false, "run even if the slot already completed")
	return cmd
}

func newSchedulerStatusCommand(opts *RootOptions) *cobra.Command {
	var (
		date     string
		detailed bool
	)
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show slot status, recommendations and statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := opts.bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			st, err := app.Deps.Scheduler("cli").Status(cmd.Context(), date, detailed)
			if err != nil {
				return err
			}
			return printJSON(cmd, st)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "date YYYY-MM-DD; defaults to today")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include 7-day statistics")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
