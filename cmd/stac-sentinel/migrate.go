package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/satstac/stac-sentinel/internal/storage"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the item index schema (DATABASE_URL)",
}

func init() {
	migrateCmd.AddCommand(
		migrationCommand("up", "Apply all pending migrations", (*storage.Migrator).Up),
		migrationCommand("down", "Roll back the last migration", (*storage.Migrator).Down),
		&cobra.Command{
			Use:   "status",
			Short: "Show the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, func(m *storage.Migrator) error {
					status, err := m.Status()
					if err != nil {
						return err
					}

					fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t available=%d\n",
						status.Version, status.Dirty, status.Available)

					return nil
				})
			},
		},
	)
}

func migrationCommand(use, short string, run func(*storage.Migrator) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, run)
		},
	}
}

func withMigrator(cmd *cobra.Command, run func(*storage.Migrator) error) error {
	logger := newLogger(cmd)
	cfg := storage.LoadConfig()

	conn, err := storage.NewConnection(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to item index: %w", err)
	}

	m, err := storage.NewMigrator(conn, logger)
	if err != nil {
		_ = conn.Close()

		return err
	}

	defer func() {
		if err := m.Close(); err != nil {
			logger.Warn("Failed to close migrator", slog.String("error", err.Error()))
		}
	}()

	logger.Info("Running migrations", slog.String("database_url", cfg.MaskDatabaseURL()))

	return run(m)
}
