package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ekaya-inc/ekaya-macro/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-macro/pkg/database"
	"github.com/ekaya-inc/ekaya-macro/pkg/fetch"
	"github.com/ekaya-inc/ekaya-macro/pkg/ingest"
	"github.com/ekaya-inc/ekaya-macro/pkg/logging"
	"github.com/ekaya-inc/ekaya-macro/pkg/mappings"
	"github.com/ekaya-inc/ekaya-macro/pkg/models"
	"github.com/ekaya-inc/ekaya-macro/pkg/report"
	"github.com/ekaya-inc/ekaya-macro/pkg/repositories"
	"github.com/ekaya-inc/ekaya-macro/pkg/retry"
)

var errNoInput = errors.New("an input location is required (--url)")

// wbCSVOptions are the inputs of a World Bank bulk load.
type wbCSVOptions struct {
	url          string
	main         string
	country      string
	series       string
	availability string
}

// location returns the main extract; --main is an alias of --url.
func (o wbCSVOptions) location() (string, error) {
	switch {
	case o.url != "" && o.main != "" && o.url != o.main:
		return "", errors.New("--url and --main name different files")
	case o.url != "":
		return o.url, nil
	case o.main != "":
		return o.main, nil
	}
	return "", errNoInput
}

func newIngestCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Replace the stored observations of one source",
	}
	cmd.AddCommand(
		newWBCSVCmd(a),
		newWBAPICmd(a),
		newFileIngestCmd(a, ingest.KindOECD, "Load the OECD SDMX CSV extract"),
		newFileIngestCmd(a, ingest.KindIMF, "Load the IMF WEO CSV extract"),
	)
	return cmd
}

func newWBCSVCmd(a *app) *cobra.Command {
	var opts wbCSVOptions
	cmd := &cobra.Command{
		Use:   string(ingest.KindWorldBankCSV),
		Short: "Load the World Bank WDI bulk CSV and optional metadata files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			location, err := opts.location()
			if err != nil {
				return err
			}
			f := a.fetcher()
			open := func(ctx context.Context) (ingest.RowReader, io.Closer, error) {
				return openCSV(ctx, f, ingest.KindWorldBankCSV, location)
			}
			return a.runIngest(cmd.Context(), ingest.KindWorldBankCSV, open, func(ctx context.Context) error {
				return a.loadMetadata(ctx, f, opts)
			})
		},
	}
	cmd.Flags().StringVar(&opts.url, "url", "", "WDICSV.csv location (URL or path)")
	cmd.Flags().StringVar(&opts.main, "main", "", "alias of --url")
	cmd.Flags().StringVar(&opts.country, "country", "", "WDICountry.csv location")
	cmd.Flags().StringVar(&opts.series, "series", "", "WDISeries.csv location")
	cmd.Flags().StringVar(&opts.availability, "availability", "", "WDICountry-series.csv location")
	return cmd
}

func newWBAPICmd(a *app) *cobra.Command {
	var from, to int
	cmd := &cobra.Command{
		Use:   string(ingest.KindWorldBankAPI),
		Short: "Load classified World Bank indicators from the indicator API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("from") {
				from = a.cfg.Ingest.WBAPIFrom
			}
			if !cmd.Flags().Changed("to") {
				to = a.cfg.Ingest.WBAPITo
			}
			if from > to {
				return fmt.Errorf("--from %d is after --to %d", from, to)
			}

			f := a.fetcher()
			open := func(ctx context.Context) (ingest.RowReader, io.Closer, error) {
				r := ingest.NewWorldBankAPI(ctx, f, ingest.WorldBankAPIConfig{
					BaseURL: a.cfg.Ingest.WBAPIBaseURL,
					PerPage: a.cfg.Ingest.WBAPIPerPage,
					From:    from,
					To:      to,
					RPS:     a.cfg.Ingest.WBAPIRPS,
					Retry:   retry.WithMaxRetries(a.cfg.Ingest.MaxRetries),
				}, a.logger)
				return r, nil, nil
			}
			return a.runIngest(cmd.Context(), ingest.KindWorldBankAPI, open, nil)
		},
	}
	cmd.Flags().IntVar(&from, "from", 0, "first year requested (default from config)")
	cmd.Flags().IntVar(&to, "to", 0, "last year requested (default from config)")
	return cmd
}

func newFileIngestCmd(a *app, kind ingest.Kind, short string) *cobra.Command {
	var location string
	cmd := &cobra.Command{
		Use:   string(kind),
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if location == "" {
				return errNoInput
			}
			f := a.fetcher()
			open := func(ctx context.Context) (ingest.RowReader, io.Closer, error) {
				return openCSV(ctx, f, kind, location)
			}
			return a.runIngest(cmd.Context(), kind, open, nil)
		},
	}
	cmd.Flags().StringVar(&location, "url", "", "CSV location (URL or path)")
	return cmd
}

func (a *app) fetcher() *fetch.Fetcher {
	return fetch.New(fetch.Config{
		Timeout:      a.cfg.Ingest.DownloadTimeout,
		MaxRedirects: a.cfg.Ingest.MaxRedirects,
		UserAgent:    a.cfg.Ingest.UserAgent,
	}, a.logger)
}

func openCSV(ctx context.Context, f *fetch.Fetcher, kind ingest.Kind, location string) (ingest.RowReader, io.Closer, error) {
	rc, err := f.Open(ctx, location)
	if err != nil {
		return nil, nil, err
	}
	r, err := ingest.NewReader(kind, rc)
	if err != nil {
		rc.Close()
		return nil, nil, err
	}
	return r, rc, nil
}

// openFunc opens the input of a run; the closer may be nil.
type openFunc func(ctx context.Context) (ingest.RowReader, io.Closer, error)

// runIngest preloads the mapping snapshot, streams the input through the
// pipeline and replaces the source's rows in one transaction.
func (a *app) runIngest(ctx context.Context, kind ingest.Kind, open openFunc, after func(ctx context.Context) error) error {
	src := kind.Source()
	logger := a.logger.With(zap.String("kind", string(kind)))

	return a.withDB(ctx, "ingest-"+string(kind), func(ctx context.Context, _ *database.DB) error {
		observations := repositories.NewObservationRepository(a.cfg.Ingest.BatchSize)

		snapshot, err := mappings.Preload(ctx, repositories.NewMappingRepository(), src)
		if err != nil {
			return err
		}
		indicators, countries := snapshot.Len()
		logger.Info("Loaded mapping snapshot", zap.Int("indicators", indicators), zap.Int("countries", countries))

		var resolver ingest.Resolver = snapshot
		if src == models.SourceWorldBank {
			resolver = ingest.WithClassifierFallback(snapshot)
		}

		progress := ingest.NewTextProgress(a.out)
		pipeline := ingest.NewPipeline(kind.Policy(), resolver, progress, a.cfg.Ingest.ProgressInterval, a.logger)

		reader, closer, err := open(ctx)
		if err != nil {
			return err
		}
		res, err := pipeline.Run(ctx, reader)
		if closer != nil {
			closer.Close()
		}
		if err != nil {
			return err
		}
		if err := replaceable(res); err != nil {
			return err
		}

		inserted, err := observations.Replace(ctx, src, res.Observations, progress.Chunk)
		if err != nil {
			return err
		}
		if err := repositories.NewDataSourceRepository().Touch(ctx, src); err != nil {
			return err
		}
		logger.Info("Source replaced", zap.Int("inserted", inserted))

		if after != nil {
			if err := after(ctx); err != nil {
				return err
			}
		}

		counts, err := observations.CountBySource(ctx)
		if err != nil {
			return err
		}
		return report.WriteSourceSummary(a.out, counts)
	})
}

// replaceable refuses a result with no observations; replacing would empty
// the source.
func replaceable(res *ingest.Result) error {
	if len(res.Observations) > 0 {
		return nil
	}
	st := res.Stats
	return fmt.Errorf("%w: %s input produced no valid observations (%d rows, %d invalid, %d skipped); stored rows kept",
		apperrors.ErrNoData, st.Source, st.RowsSeen, st.ValidationErrors, st.SkippedRows)
}

// loadMetadata upserts the optional World Bank auxiliary files.
func (a *app) loadMetadata(ctx context.Context, f *fetch.Fetcher, opts wbCSVOptions) error {
	repo := repositories.NewMetadataRepository(a.cfg.Ingest.BatchSize)
	p := message.NewPrinter(language.English)

	steps := []struct {
		name     string
		location string
		load     func(r io.Reader) (int, ingest.MetadataStats, error)
	}{
		{"countries", opts.country, func(r io.Reader) (int, ingest.MetadataStats, error) {
			rows, stats, err := ingest.ReadCountryMetadata(r)
			if err != nil {
				return 0, stats, err
			}
			n, err := repo.UpsertCountries(ctx, rows)
			return n, stats, err
		}},
		{"indicator metadata", opts.series, func(r io.Reader) (int, ingest.MetadataStats, error) {
			rows, stats, err := ingest.ReadSeriesMetadata(r)
			if err != nil {
				return 0, stats, err
			}
			n, err := repo.UpsertIndicators(ctx, rows)
			return n, stats, err
		}},
		{"availability", opts.availability, func(r io.Reader) (int, ingest.MetadataStats, error) {
			rows, stats, err := ingest.ReadAvailability(r)
			if err != nil {
				return 0, stats, err
			}
			n, err := repo.UpsertAvailability(ctx, rows)
			return n, stats, err
		}},
	}

	for _, s := range steps {
		if s.location == "" {
			continue
		}
		rc, err := f.Open(ctx, s.location)
		if err != nil {
			return err
		}
		n, stats, err := s.load(rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("failed to load %s from %s: %w", s.name, logging.SanitizeURL(s.location), err)
		}
		p.Fprintf(a.out, "[WB] %s: %d rows read, %d stored, %d invalid\n", s.name, stats.Rows, n, stats.Invalid)
	}
	return nil
}
