package cli

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"wishsync/cmd/internal/syncclient"
	"wishsync/cmd/internal/wishlist"

	"github.com/spf13/cobra"
)

type watchOptions struct {
	accessToken string
	wishlistID  string
	status      string
	retryDelay  time.Duration
}

// NewWatchCommand creates the watch command. It prints the current view as a
// JSON line and a new line after every change until interrupted.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &watchOptions{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow a wishlist and print every new view",
		Long: `Follow a wishlist through the realtime gateway. With --token the public
view is followed (the owner view when logged in as the owner); with --wishlist
the owner view is followed and a stored login is required.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.accessToken, "token", "", "public access token")
	cmd.Flags().StringVar(&opts.wishlistID, "wishlist", "", "wishlist id (owner)")
	cmd.Flags().StringVar(&opts.status, "status", "active", "item filter for the owner view (active|archived|all)")
	cmd.Flags().DurationVar(&opts.retryDelay, "retry-delay", syncclient.DefaultRetryDelay, "reconnect delay")
	cmd.MarkFlagsMutuallyExclusive("token", "wishlist")
	cmd.MarkFlagsOneRequired("token", "wishlist")
	return cmd
}

func runWatch(cmd *cobra.Command, rootOpts *RootOptions, opts *watchOptions) error {
	ctx := cmd.Context()
	log := clientLogger(rootOpts, cmd.ErrOrStderr())

	sess, err := openSession(rootOpts, cmd)
	if err != nil {
		return err
	}
	client, err := syncclient.NewClient(rootOpts.BaseURL, sess, nil)
	if err != nil {
		return err
	}
	wopts := syncclient.WatcherOptions{
		RetryDelay: opts.retryDelay,
		Header:     originHeader(rootOpts.BaseURL),
	}
	out := cmd.OutOrStdout()

	if opts.accessToken != "" {
		fetch := func(ctx context.Context) (syncclient.PublicWishlist, error) {
			return client.GetPublic(ctx, opts.accessToken)
		}
		first, err := fetch(ctx)
		if err != nil {
			return err
		}
		w, err := syncclient.NewWatcher[syncclient.PublicWishlist](log, client.WatchURL(first.WishlistID()), fetch, printer(out, publicView), wopts)
		if err != nil {
			return err
		}
		return ignoreCanceled(w.Run(ctx))
	}

	if !sess.LoggedIn() {
		return errors.New("watch: --wishlist needs a stored login (wishsync login <token>)")
	}
	filter, ok := wishlist.ParseItemFilter(opts.status)
	if !ok {
		return errors.New("watch: --status must be active, archived or all")
	}
	fetch := func(ctx context.Context) (wishlist.OwnerWishlistView, error) {
		return client.GetOwner(ctx, opts.wishlistID, filter)
	}
	w, err := syncclient.NewWatcher[wishlist.OwnerWishlistView](log, client.WatchURL(opts.wishlistID), fetch, printer[wishlist.OwnerWishlistView](out, nil), wopts)
	if err != nil {
		return err
	}
	return ignoreCanceled(w.Run(ctx))
}

// publicView flattens a PublicWishlist to whichever view it carries.
func publicView(p syncclient.PublicWishlist) any {
	if p.Owner != nil {
		return p.Owner
	}
	return p.Guest
}

func printer[T any](w io.Writer, project func(T) any) func(T) {
	return func(v T) {
		if project != nil {
			_ = printJSON(w, project(v))
			return
		}
		_ = printJSON(w, v)
	}
}

// originHeader sends the server's own origin so the gateway's origin policy
// treats the CLI like a same-origin browser.
func originHeader(baseURL string) http.Header {
	u, err := url.Parse(baseURL)
	if err != nil || u.Host == "" {
		return nil
	}
	h := http.Header{}
	h.Set("Origin", u.Scheme+"://"+u.Host)
	return h
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
