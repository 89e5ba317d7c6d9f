package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iliyamo/booking-reconciler/internal/config"
	"github.com/iliyamo/booking-reconciler/internal/utils"
)

// TokenOptions holds flags for the token command.
type TokenOptions struct {
	*RootOptions
	UserID uint64
	Role   string
	TTLMin int
}

// NewTokenCommand creates the token command, which mints an access token
// for local testing.  Real tokens come from the identity provider.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development access token",
		Long: `Sign an HS256 access token with JWT_SECRET for the given user.

Example:
  curl -H "Authorization: Bearer $(booking-reconciler token --user 1)" ...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.UserID == 0 {
				return errors.New("--user must be a positive user id")
			}
			secret, ttl := config.LoadJWT()
			if secret == "" {
				return config.ErrMissingJWTSecret
			}
			if opts.TTLMin > 0 {
				ttl = opts.TTLMin
			}
			tok, err := utils.NewAccessToken(secret, opts.UserID, opts.Role, ttl)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
			return nil
		},
	}

	cmd.Flags().Uint64Var(&opts.UserID, "user", 0, "user id to put in the subject claim (required)")
	cmd.Flags().StringVar(&opts.Role, "role", "", "optional role claim")
	cmd.Flags().IntVar(&opts.TTLMin, "ttl", 0, "lifetime in minutes (default ACCESS_TOKEN_TTL_MIN)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
