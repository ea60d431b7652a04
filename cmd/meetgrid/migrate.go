package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd.OutOrStdout())
			if err != nil {
				return err
			}

			storage, applied, err := openStorage(cmd, cfg, logger)
			if err != nil {
				return err
			}
			if err := storage.Close(); err != nil {
				return fmt.Errorf("close storage: %w", err)
			}
			for _, version := range applied {
				fmt.Fprintf(cmd.ErrOrStderr(), "applied %s\n", version)
			}
			logger.InfoContext(cmd.Context(), "database is up to date", "path", cfg.SQLitePath, "applied", len(applied))
			return nil
		},
	}
}
