package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeremiapane/bar-booking/services"
)

// newSweepCmd runs one no-show and reminder sweep, for cron-driven deployments.
func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run the no-show and reminder sweeps once",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			sweeper := services.NewSweeper(a.db, a.log, a.policy, a.notifier(), a.sweepLock(), a.cfg.SweepInterval)
			res, err := sweeper.RunOnce(context.Background())
			if err != nil {
				return err
			}
			if res.Skipped {
				fmt.Fprintln(cmd.OutOrStdout(), "another instance is sweeping, skipped")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "no-shows: %d, reminders: %d\n", res.NoShows, res.Reminders)
			return nil
		},
	}
}
