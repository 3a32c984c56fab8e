package cli

import (
	"fmt"
	"strings"
	"time"

	"wishsync/cmd/internal/syncclient"

	"github.com/spf13/cobra"
)

// openSession loads the persisted owner credential. Expired tokens are
// discarded by Session.Init.
func openSession(opts *RootOptions, cmd *cobra.Command) (*syncclient.Session, error) {
	store, err := syncclient.NewFileCredentialStore(opts.Credentials)
	if err != nil {
		return nil, err
	}
	sess, err := syncclient.NewSession(clientLogger(opts, cmd.ErrOrStderr()), store, time.Now)
	if err != nil {
		return nil, err
	}
	if err := sess.Init(); err != nil {
		return nil, err
	}
	return sess, nil
}

// NewLoginCommand creates the login command.
func NewLoginCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "login <bearer-token>",
		Short: "Store an owner bearer token for later commands",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession(opts, cmd)
			if err != nil {
				return err
			}
			if err := sess.Login(strings.TrimSpace(args[0])); err != nil {
				return fmt.Errorf("login: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "logged in")
			return err
		},
	}
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored owner token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := openSession(opts, cmd)
			if err != nil {
				return err
			}
			if err := sess.Logout(); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "logged out")
			return err
		},
	}
}
