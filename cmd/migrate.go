package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yeremiapane/bar-booking/database"
)

func newMigrateCmd() *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			if !seed {
				fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
				return nil
			}
			if a.cfg.AdminPassword == "" {
				return fmt.Errorf("ADMIN_PASSWORD is required to seed")
			}
			if err := database.Seed(a.db, a.log, a.cfg.AdminEmail, a.cfg.AdminPassword); err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied, demo data seeded")
			return nil
		},
	}

	cmd.Flags().BoolVar(&seed, "seed", false, "insert a demo branch, tables and an admin account")
	return cmd
}
