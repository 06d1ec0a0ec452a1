package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"pepplus/internal/adapters/mutation"
)

// TokenOptions holds flags for the token command.
type TokenOptions struct {
	*RootOptions
	User string
	Caps []string
	TTL  time.Duration
}

// NewTokenCommand creates the token command.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TokenOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with PEPPLUS_JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.Config.JWTSecret == "" {
				return errors.New("PEPPLUS_JWT_SECRET is required to issue tokens")
			}
			auth := mutation.NewAuthenticator([]byte(opts.Config.JWTSecret), nil)
			token, err := auth.Issue(opts.User, parseCodes(opts.Caps), opts.TTL)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.User, "user", "", "token subject (audit user id)")
	cmd.Flags().StringSliceVar(&opts.Caps, "caps", nil, "granted capability codes (default: all)")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 12*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
