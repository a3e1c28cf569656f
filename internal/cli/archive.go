package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	id "stablehand/pkg/domain"
)

// NewArchiveCommand groups history archive maintenance.
func NewArchiveCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "archive",
		Short: "Maintain the selection history archive",
	}
	cmd.AddCommand(newArchiveSweepCommand(rootOpts))
	cmd.AddCommand(newArchiveProcessCommand(rootOpts))
	return cmd
}

func newArchiveSweepCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Archive recently completed processes that have no history",
		Long: `Scan completed processes within ARCHIVE_SWEEP_LOOKBACK and write the
missing history records. Safe to run repeatedly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			components, _, err := rootOpts.build(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer components.Close()

			archived, err := components.Archiver.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			result := map[string]int{"archived": archived, "pending": components.Archiver.Pending()}
			return newFormatter(rootOpts, cmd.OutOrStdout()).Success(result, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "archived %d process(es), %d pending retry\n", archived, result["pending"])
				return err
			})
		},
	}
}

func newArchiveProcessCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "process <process-id>",
		Short: "Archive one completed process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			processID, err := id.ParseProcessID(args[0])
			if err != nil {
				return err
			}
			components, _, err := rootOpts.build(cmd.Context(), cmd)
			if err != nil {
				return err
			}
			defer components.Close()

			if err := components.Archiver.Archive(cmd.Context(), processID); err != nil {
				return err
			}
			return newFormatter(rootOpts, cmd.OutOrStdout()).Success(
				map[string]string{"process_id": processID.String()},
				func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "archived %s\n", processID)
					return err
				},
			)
		},
	}
}
