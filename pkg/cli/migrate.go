package cli

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver for database/sql (migrations)
	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-macro/pkg/database"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sqlDB, err := sql.Open("pgx", a.cfg.ConnectionString())
			if err != nil {
				return fmt.Errorf("failed to open sql connection: %w", err)
			}
			defer sqlDB.Close()

			if err := sqlDB.PingContext(cmd.Context()); err != nil {
				return fmt.Errorf("failed to reach database: %w", err)
			}
			return database.RunMigrations(sqlDB, a.logger)
		},
	}
}
