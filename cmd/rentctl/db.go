package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	mysqlrepo "rentdesk/internal/storage/mysql"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the database schema",
}

var dbUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *mysqlrepo.Migrator) error {
			if err := m.Up(); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			return printVersion(cmd, m)
		})
	},
}

var dbDownCmd = &cobra.Command{
	Use:   "down [steps]",
	Short: "Roll back migrations (default: 1)",
	Example: `  rentctl db down      # roll back one migration
  rentctl db down 3    # roll back three`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps := 1
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return fmt.Errorf("steps must be a positive integer, got %q", args[0])
			}
			steps = n
		}
		return withMigrator(func(m *mysqlrepo.Migrator) error {
			if err := m.Down(steps); err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			return printVersion(cmd, m)
		})
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the applied schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withMigrator(func(m *mysqlrepo.Migrator) error { return printVersion(cmd, m) })
	},
}

func init() {
	dbCmd.AddCommand(dbUpCmd, dbDownCmd, dbStatusCmd)
	rootCmd.AddCommand(dbCmd)
}

func withMigrator(fn func(*mysqlrepo.Migrator) error) error {
	m, err := mysqlrepo.NewMigrator(cfg.MySQLDSN)
	if err != nil {
		return err
	}
	defer m.Close()
	return fn(m)
}

func printVersion(cmd *cobra.Command, m *mysqlrepo.Migrator) error {
	v, dirty, err := m.Version()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "version: %d (dirty: %v)\n", v, dirty)
	return nil
}
