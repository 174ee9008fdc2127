package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-macro/pkg/database"
	"github.com/ekaya-inc/ekaya-macro/pkg/handlers"
	"github.com/ekaya-inc/ekaya-macro/pkg/metrics"
	"github.com/ekaya-inc/ekaya-macro/pkg/repositories"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve health, status and metrics endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	db, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	scopes := database.NewScopeProvider(db)
	validations := repositories.NewValidationRepository()
	registry := metrics.NewRegistry(
		metrics.NewStoreCollector(validations, repositories.NewDataSourceRepository(), scopes, a.logger),
	)

	srv := &http.Server{
		Addr: net.JoinHostPort(a.cfg.BindAddr, a.cfg.Port),
		Handler: handlers.NewRouter(handlers.RouterDeps{
			Config:   a.cfg,
			Scopes:   scopes,
			Records:  repositories.NewObservationRepository(0),
			Runs:     validations,
			Registry: registry,
			Logger:   a.logger,
		}),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Starting status server",
			zap.String("addr", srv.Addr),
			zap.String("version", a.cfg.Version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("status server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down status server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down status server: %w", err)
	}
	return nil
}
