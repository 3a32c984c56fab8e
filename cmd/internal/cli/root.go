// Package cli is the wishsync command line: the server, migrations and a
// small client for watching and funding wishlists.
package cli

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"wishsync/cmd/internal/app"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose     bool
	BaseURL     string
	Credentials string
}

// NewRootCommand creates the wishsync root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "wishsync",
		Short: "Shared gift lists with live funding",
		Long: `wishsync serves shared gift lists where guests reserve and fund items
and every open view converges through realtime change signals.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging for client commands")
	cmd.PersistentFlags().StringVar(&opts.BaseURL, "base-url", defaultBaseURL(), "server base url (WISHSYNC_BASE_URL)")
	cmd.PersistentFlags().StringVar(&opts.Credentials, "credentials", defaultCredentialsPath(), "owner credential file")

	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewMigrateCommand())
	cmd.AddCommand(NewTokenCommand())
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewGuestCommand(opts))

	return cmd
}

// Execute runs the root command with os.Args until SIGINT/SIGTERM.
func Execute() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Before NewRootCommand: flag defaults read the environment.
	app.LoadDotEnv()
	return NewRootCommand().ExecuteContext(ctx)
}

func defaultBaseURL() string {
	return app.EnvString("WISHSYNC_BASE_URL", "http://127.0.0.1:8080")
}

func defaultCredentialsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".wishsync-credentials"
	}
	return filepath.Join(dir, "wishsync", "credentials")
}

// clientLogger writes client-side logs to stderr so stdout stays JSON.
func clientLogger(opts *RootOptions, errOut io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))
}

// printJSON writes v as one compact JSON line.
func printJSON(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}
