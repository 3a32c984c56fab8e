package cli

import (
	"wishsync/cmd/internal/syncclient"

	"github.com/spf13/cobra"
)

type guestOptions struct {
	accessToken string
	displayName string
	amountCents int64
}

// NewGuestCommand creates the guest command group: reserve, unreserve and
// contribute through a public access token.
func NewGuestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &guestOptions{}

	cmd := &cobra.Command{
		Use:   "guest",
		Short: "Reserve or fund items through a public link",
	}
	cmd.PersistentFlags().StringVar(&opts.accessToken, "token", "", "public access token")
	_ = cmd.MarkPersistentFlagRequired("token")

	newClient := func(cmd *cobra.Command) (*syncclient.Client, error) {
		sess, err := openSession(rootOpts, cmd)
		if err != nil {
			return nil, err
		}
		return syncclient.NewClient(rootOpts.BaseURL, sess, nil)
	}

	reserve := &cobra.Command{
		Use:   "reserve <item-id>",
		Short: "Reserve an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			item, err := c.Reserve(cmd.Context(), opts.accessToken, args[0], opts.displayName)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), item)
		},
	}
	reserve.Flags().StringVar(&opts.displayName, "name", "", "display name")
	_ = reserve.MarkFlagRequired("name")

	unreserve := &cobra.Command{
		Use:   "unreserve <item-id>",
		Short: "Cancel an item's reservation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			item, err := c.Unreserve(cmd.Context(), opts.accessToken, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), item)
		},
	}

	contribute := &cobra.Command{
		Use:   "contribute <item-id>",
		Short: "Pledge money toward an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(cmd)
			if err != nil {
				return err
			}
			item, err := c.Contribute(cmd.Context(), opts.accessToken, args[0], opts.displayName, opts.amountCents)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), item)
		},
	}
	contribute.Flags().StringVar(&opts.displayName, "name", "", "display name")
	contribute.Flags().Int64Var(&opts.amountCents, "amount-cents", 0, "amount in cents")
	_ = contribute.MarkFlagRequired("name")
	_ = contribute.MarkFlagRequired("amount-cents")

	cmd.AddCommand(reserve, unreserve, contribute)
	return cmd
}
