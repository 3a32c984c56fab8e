package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"wishsync/cmd/internal/app"
	"wishsync/cmd/internal/dbmigrate"

	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command group.
func NewMigrateCommand() *cobra.Command {
	var dbURL string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}
	cmd.PersistentFlags().StringVar(&dbURL, "database-url", "", "postgres url (defaults to WISHSYNC_DATABASE_URL)")

	resolve := func() (string, error) {
		if dbURL != "" {
			return dbURL, nil
		}
		if v := app.EnvString("WISHSYNC_DATABASE_URL", ""); v != "" {
			return v, nil
		}
		return "", errors.New("migrate: no database url (use --database-url or WISHSYNC_DATABASE_URL)")
	}
	logger := func(cmd *cobra.Command) *slog.Logger {
		return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := resolve()
			if err != nil {
				return err
			}
			return dbmigrate.Up(cmd.Context(), u, logger(cmd))
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := resolve()
			if err != nil {
				return err
			}
			return dbmigrate.Down(cmd.Context(), u, steps, logger(cmd))
		},
	}
	down.Flags().IntVarP(&steps, "steps", "n", 1, "number of migrations to roll back")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			u, err := resolve()
			if err != nil {
				return err
			}
			v, dirty, ok, err := dbmigrate.Version(u)
			if err != nil {
				return err
			}
			if !ok {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), "none")
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d dirty=%t\n", v, dirty)
			return err
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}
