package cli

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ekaya-inc/ekaya-macro/pkg/database"
	"github.com/ekaya-inc/ekaya-macro/pkg/mappings"
	"github.com/ekaya-inc/ekaya-macro/pkg/repositories"
)

func newMappingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Manage the country and indicator mapping registry",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "seed",
		Short: "Populate data sources and cross-source mappings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.withDB(cmd.Context(), "mappings-seed", a.seedMappings)
		},
	})
	return cmd
}

func (a *app) seedMappings(ctx context.Context, _ *database.DB) error {
	seed, err := mappings.LoadSeed()
	if err != nil {
		return err
	}
	svc := mappings.NewService(
		repositories.NewMappingRepository(),
		repositories.NewDataSourceRepository(),
		repositories.NewObservationRepository(a.cfg.Ingest.BatchSize),
		seed,
		a.logger,
	)

	s, err := svc.Seed(ctx)
	if err != nil {
		return err
	}

	p := message.NewPrinter(language.English)
	p.Fprintf(a.out, "MAPPING REGISTRY\n")
	p.Fprintf(a.out, "   Data sources: %d\n", s.DataSources)
	p.Fprintf(a.out, "   WB countries: %d, indicators: %d\n", s.WBCountries, s.WBIndicators)
	p.Fprintf(a.out, "   IMF countries: %d updated, %d inserted; indicators: %d\n",
		s.IMFCountriesUpdated, s.IMFCountriesInserted, s.IMFIndicators)
	p.Fprintf(a.out, "   OECD countries: %d updated, %d inserted; indicators: %d\n",
		s.OECDCountriesUpdated, s.OECDCountriesInserted, s.OECDIndicators)
	if s.Conflicts > 0 || s.Skipped > 0 {
		p.Fprintf(a.out, "   Conflicts: %d, skipped: %d\n", s.Conflicts, s.Skipped)
	}
	return nil
}
