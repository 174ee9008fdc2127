package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-macro/pkg/database"
	"github.com/ekaya-inc/ekaya-macro/pkg/report"
	"github.com/ekaya-inc/ekaya-macro/pkg/repositories"
)

func newSummaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print the stored row count of each source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withDB(cmd.Context(), "summary", func(ctx context.Context, _ *database.DB) error {
				counts, err := repositories.NewObservationRepository(0).CountBySource(ctx)
				if err != nil {
					return err
				}
				return report.WriteSourceSummary(a.out, counts)
			})
		},
	}
}
