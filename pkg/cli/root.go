// Package cli wires the ekaya-macro commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-macro/pkg/config"
	"github.com/ekaya-inc/ekaya-macro/pkg/database"
	"github.com/ekaya-inc/ekaya-macro/pkg/logging"
	"github.com/ekaya-inc/ekaya-macro/pkg/retry"
)

// applicationName labels every database session of the process.
const applicationName = "ekaya-macro"

// app is the state shared by all commands, filled in before any command runs.
type app struct {
	version string
	cfg     *config.Config
	logger  *zap.Logger
	out     io.Writer
}

// NewRootCommand builds the command tree.
func NewRootCommand(version string) *cobra.Command {
	a := &app{version: version}

	root := &cobra.Command{
		Use:           "ekaya-macro",
		Short:         "Load, reconcile and validate World Bank, OECD and IMF indicators",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.AddCommand(
		newMigrateCmd(a),
		newMappingsCmd(a),
		newIngestCmd(a),
		newValidateCmd(a),
		newSummaryCmd(a),
		newServeCmd(a),
	)
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute(version string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand(version).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.version)
	if err != nil {
		return err
	}
	logger, err := logging.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	a.out = cmd.OutOrStdout()
	return nil
}

// connect opens the pool, retrying transient failures.
func (a *app) connect(ctx context.Context) (*database.DB, error) {
	dsn := a.cfg.ConnectionString()
	a.logger.Info("Connecting to database",
		zap.String("dsn", logging.SanitizeConnectionString(dsn)),
		zap.String("env", a.cfg.Env))

	db, err := retry.DoWithResult(ctx, retry.WithMaxRetries(a.cfg.Ingest.MaxRetries), func() (*database.DB, error) {
		return database.NewConnection(ctx, &database.Config{
			URL:             dsn,
			MaxConnections:  a.cfg.Database.MaxConnections,
			MaxConnLifetime: a.cfg.Database.MaxConnLifetime,
			MaxConnIdleTime: a.cfg.Database.MaxConnIdleTime,
			ConnectTimeout:  a.cfg.Database.ConnectTimeout,
			ApplicationName: applicationName,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// withDB connects, runs fn on a job-scoped connection and releases everything.
func (a *app) withDB(ctx context.Context, job string, fn func(ctx context.Context, db *database.DB) error) error {
	db, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	sctx, cleanup, err := database.NewScopeProvider(db).WithScope(ctx, job)
	if err != nil {
		return err
	}
	defer cleanup()

	return fn(sctx, db)
}
