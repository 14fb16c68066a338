package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"transitportal/internal/db"
	"transitportal/internal/repositories"
	"transitportal/internal/utils"
)

func newMigrateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending embedded SQL migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, cleanup, err := opts.bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			ran, err := db.RunMigrations(cmd.Context(), app.DB)
			for _, name := range ran {
				fmt.Fprintln(cmd.OutOrStdout(), "applied", name)
			}
			if err != nil {
				return err
			}
			if len(ran) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")
			}

			filled, err := repositories.BookingRepository{DB: app.DB}.BackfillTicketCodes(cmd.Context(), utils.NewTicketCode)
			if err != nil {
				return fmt.Errorf("backfill ticket codes: %w", err)
			}
			if filled > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "issued %d ticket codes\n", filled)
			}
			return nil
		},
	}
}
