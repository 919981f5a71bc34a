package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/turtacn/DataMention-Intelligence/internal/infrastructure/database/postgres"
	"github.com/turtacn/DataMention-Intelligence/pkg/errors"
)

// MigrationStatus is the schema version of the run registry.
type MigrationStatus struct {
	Version uint `json:"version"`
	Dirty   bool `json:"dirty"`
}

func (s MigrationStatus) String() string {
	if s.Dirty {
		return fmt.Sprintf("schema version %d (dirty)", s.Version)
	}
	return fmt.Sprintf("schema version %d", s.Version)
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the run registry schema",
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(cmd, func(m *postgres.Migrator) (any, error) {
				if err := m.Down(steps); err != nil {
					return nil, err
				}
				return migrationStatus(m)
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd, func(m *postgres.Migrator) (any, error) {
					if err := m.Up(); err != nil {
						return nil, err
					}
					return migrationStatus(m)
				})
			},
		},
		down,
		&cobra.Command{
			Use:   "status",
			Short: "Show the applied schema version",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(cmd, func(m *postgres.Migrator) (any, error) {
					return migrationStatus(m)
				})
			},
		},
	)
	return cmd
}

func migrationStatus(m *postgres.Migrator) (MigrationStatus, error) {
	v, dirty, err := m.Version()
	if err != nil {
		return MigrationStatus{}, err
	}
	return MigrationStatus{Version: v, Dirty: dirty}, nil
}

// withMigrator opens the database, runs fn and prints its result. The
// migrator owns the connection once created and closes it.
func withMigrator(cmd *cobra.Command, fn func(*postgres.Migrator) (any, error)) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	dbCfg := cliCtx.Config.Database
	if !dbCfg.Enabled {
		return errors.NewInvalidInput("database.enabled is false")
	}
	if dbCfg.MigrationPath == "" {
		return errors.NewInvalidInput("database.migration_path is required")
	}

	conn, err := postgres.NewConnection(dbCfg, cliCtx.Logger)
	if err != nil {
		return err
	}
	m, err := postgres.NewMigrator(conn, dbCfg.MigrationPath)
	if err != nil {
		conn.Close()
		return err
	}
	defer m.Close()

	res, err := fn(m)
	if err != nil {
		return err
	}
	return PrintResult(cmd, res)
}
