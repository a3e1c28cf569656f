package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stablehand/internal/selection/models"
	"stablehand/internal/selection/service"
	id "stablehand/pkg/domain"
)

type previewOptions struct {
	orgID     string
	userID    string
	stableID  string
	algorithm string
	members   []string
	start     string
	end       string
}

// NewPreviewCommand creates the preview command.
func NewPreviewCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &previewOptions{}
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Compute a turn order without creating a process",
		Long: `Compute the turn order the given algorithm would produce for a stable.

Runs with the caller's authority: --user must manage --stable in --org.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreview(rootOpts, opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.orgID, "org", "", "organization ID")
	cmd.Flags().StringVar(&opts.userID, "user", "", "acting manager's user ID")
	cmd.Flags().StringVar(&opts.stableID, "stable", "", "stable ID")
	cmd.Flags().StringVarP(&opts.algorithm, "algorithm", "a", string(models.AlgorithmManual), "ordering algorithm")
	cmd.Flags().StringSliceVarP(&opts.members, "members", "m", nil, "member user IDs, comma separated")
	cmd.Flags().StringVar(&opts.start, "start", "", "selection start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&opts.end, "end", "", "selection end date (YYYY-MM-DD)")
	for _, name := range []string{"org", "user", "stable", "members", "start", "end"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runPreview(rootOpts *RootOptions, opts *previewOptions, cmd *cobra.Command) error {
	caller, req, err := opts.parse()
	if err != nil {
		return err
	}

	components, _, err := rootOpts.build(cmd.Context(), cmd)
	if err != nil {
		return err
	}
	defer components.Close()

	result, err := components.Service.PreviewTurnOrder(cmd.Context(), caller, req)
	if err != nil {
		return err
	}

	out := newFormatter(rootOpts, cmd.OutOrStdout())
	return out.Success(result, func(w io.Writer) error {
		if result.QuotaPerMember > 0 {
			fmt.Fprintf(w, "quota per member: %d of %d points\n", result.QuotaPerMember, result.TotalAvailablePoints)
		}
		rows := make([][]string, 0, len(result.Entries))
		for _, e := range result.Entries {
			rows = append(rows, []string{strconv.Itoa(e.Order), e.Name, e.UserID.String(), strconv.Itoa(e.Quota)})
		}
		return out.Table([]string{"ORDER", "NAME", "USER", "QUOTA"}, rows)
	})
}

func (o *previewOptions) parse() (service.Caller, service.PreviewRequest, error) {
	orgID, err := id.ParseOrganizationID(o.orgID)
	if err != nil {
		return service.Caller{}, service.PreviewRequest{}, fmt.Errorf("--org: %w", err)
	}
	userID, err := id.ParseUserID(o.userID)
	if err != nil {
		return service.Caller{}, service.PreviewRequest{}, fmt.Errorf("--user: %w", err)
	}
	stableID, err := id.ParseStableID(o.stableID)
	if err != nil {
		return service.Caller{}, service.PreviewRequest{}, fmt.Errorf("--stable: %w", err)
	}
	algorithm, err := models.ParseAlgorithm(o.algorithm)
	if err != nil {
		return service.Caller{}, service.PreviewRequest{}, fmt.Errorf("--algorithm: %w", err)
	}
	members := make([]id.UserID, 0, len(o.members))
	for _, raw := range o.members {
		m, err := id.ParseUserID(strings.TrimSpace(raw))
		if err != nil {
			return service.Caller{}, service.PreviewRequest{}, fmt.Errorf("--members: %w", err)
		}
		members = append(members, m)
	}
	start, err := time.Parse(time.DateOnly, o.start)
	if err != nil {
		return service.Caller{}, service.PreviewRequest{}, fmt.Errorf("--start: %w", err)
	}
	end, err := time.Parse(time.DateOnly, o.end)
	if err != nil {
		return service.Caller{}, service.PreviewRequest{}, fmt.Errorf("--end: %w", err)
	}

	return service.Caller{UserID: userID, OrganizationID: orgID}, service.PreviewRequest{
		StableID:           stableID,
		Algorithm:          algorithm,
		MemberIDs:          members,
		SelectionStartDate: start,
		SelectionEndDate:   end,
	}, nil
}
