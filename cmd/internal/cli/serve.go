package cli

import (
	"wishsync/cmd/internal/app"

	"github.com/spf13/cobra"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and realtime gateway",
		Long: `Run the HTTP API and realtime gateway. Configuration comes from
WISHSYNC_* environment variables (and .env / .env.local when present).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := app.LoadConfig()
			if addr != "" {
				cfg.HTTPAddr = addr
			}
			return app.Serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides WISHSYNC_HTTP_ADDR)")
	return cmd
}
