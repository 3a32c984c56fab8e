package cli

import (
	"errors"
	"fmt"
	"time"

	"wishsync/cmd/internal/app"
	"wishsync/cmd/internal/owner"

	"github.com/spf13/cobra"
)

// NewTokenCommand creates the token command, which issues an owner bearer
// token signed with WISHSYNC_JWT_SECRET. Meant for local development.
func NewTokenCommand() *cobra.Command {
	var (
		ownerID string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an owner bearer token (development)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret := app.EnvString("WISHSYNC_JWT_SECRET", "")
			if secret == "" {
				return errors.New("token: WISHSYNC_JWT_SECRET is not set")
			}
			v, err := owner.NewJWTVerifier(secret, owner.WithIssuer(app.EnvString("WISHSYNC_JWT_ISSUER", "")))
			if err != nil {
				return err
			}
			tok, err := v.Issue(ownerID, ttl)
			if err != nil {
				return fmt.Errorf("token: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return err
		},
	}

	cmd.Flags().StringVar(&ownerID, "owner", "", "owner id (sub claim)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}
