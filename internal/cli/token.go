package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	jwttoken "stablehand/internal/jwt_token"
	id "stablehand/pkg/domain"
)

// NewTokenCommand creates the token command, which signs a bearer token
// with the server's JWT settings for local testing.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var orgRaw, userRaw string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an access token for a user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.LoadConfig()
			if err != nil {
				return err
			}
			userID, err := id.ParseUserID(userRaw)
			if err != nil {
				return fmt.Errorf("--user: %w", err)
			}
			orgID, err := id.ParseOrganizationID(orgRaw)
			if err != nil {
				return fmt.Errorf("--org: %w", err)
			}

			svc := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
			token, err := svc.GenerateAccessToken(userID, orgID, ttl)
			if err != nil {
				return err
			}
			return newFormatter(rootOpts, cmd.OutOrStdout()).Success(
				map[string]string{"access_token": token},
				func(w io.Writer) error {
					_, err := fmt.Fprintln(w, token)
					return err
				},
			)
		},
	}

	cmd.Flags().StringVar(&orgRaw, "org", "", "organization ID")
	cmd.Flags().StringVar(&userRaw, "user", "", "user ID")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
