package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"stablehand/internal/platform/database"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Long:  "Apply the idempotent stablehand schema to DATABASE_URL.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.LoadConfig()
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return fmt.Errorf("migrate: DATABASE_URL is not set")
			}
			db, err := database.Open(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.ApplySchema(cmd.Context(), db); err != nil {
				return err
			}
			return newFormatter(rootOpts, cmd.OutOrStdout()).Success(
				map[string]bool{"migrated": true},
				func(w io.Writer) error {
					_, err := fmt.Fprintln(w, "schema applied")
					return err
				},
			)
		},
	}
}
