package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/example/meetgrid/internal/config"
	"github.com/example/meetgrid/internal/logging"
	"github.com/example/meetgrid/internal/persistence/sqlite"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "meetgrid",
		Short: "Shared availability grids for scheduling links",
		Long: `meetgrid lets participants of a shared scheduling link publish their busy
time and see, for each 30 minute slot of the coming week, how many of them
are busy.

Settings come from MEETGRID_* environment variables, optionally layered over
a YAML file given with --config.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML settings file; environment variables take precedence")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newMigrateCmd(opts))
	cmd.AddCommand(newPruneCmd(opts))
	return cmd
}

// load reads the settings and builds the process logger writing to out.
func (o *rootOptions) load(out io.Writer) (config.Config, *slog.Logger, error) {
	cfg, err := config.LoadFile(o.configPath)
	if err != nil {
		return config.Config{}, nil, err
	}
	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logging.New(out, level), nil
}

// openStorage opens the SQLite database and applies pending migrations. It
// returns the versions applied by this call.
func openStorage(cmd *cobra.Command, cfg config.Config, logger *slog.Logger) (*sqlite.Storage, []string, error) {
	storage, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open storage: %w", err)
	}
	applied, err := storage.Migrate(cmd.Context(), logger)
	if err != nil {
		_ = storage.Close()
		return nil, nil, fmt.Errorf("apply migrations: %w", err)
	}
	return storage, applied, nil
}
