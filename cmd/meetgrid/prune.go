package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newPruneCmd(opts *rootOptions) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete cached availability last written before a cutoff",
		Long: `prune deletes availability records last published more than --older-than
ago. Without the flag MEETGRID_AVAILABILITY_RETENTION is used; a zero
retention keeps everything.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("older-than") {
				olderThan = cfg.AvailabilityRetention
			}
			if olderThan < 0 {
				return fmt.Errorf("--older-than must not be negative")
			}

			storage, _, err := openStorage(cmd, cfg, logger)
			if err != nil {
				return err
			}
			defer storage.Close()

			w, err := wire(cmd.Context(), cfg, storage, logger)
			if err != nil {
				return err
			}
			defer w.close()

			removed, err := w.availability.PruneAvailability(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "removed %d availability records\n", removed)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "delete records last written longer ago than this")
	return cmd
}
