package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-macro/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-macro/pkg/database"
	"github.com/ekaya-inc/ekaya-macro/pkg/report"
	"github.com/ekaya-inc/ekaya-macro/pkg/repositories"
	"github.com/ekaya-inc/ekaya-macro/pkg/validation"
)

type validateOptions struct {
	out      string
	xlsx     bool
	minScore float64
}

func newValidateCmd(a *app) *cobra.Command {
	var opts validateOptions
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run the cross-source validation and write the quality report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("out") {
				opts.out = a.cfg.ReportDir
			}
			if !cmd.Flags().Changed("min-score") {
				opts.minScore = a.cfg.Validation.MinScore
			}
			return a.runValidate(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.out, "out", "reports", "report directory")
	cmd.Flags().BoolVar(&opts.xlsx, "xlsx", false, "also write an XLSX workbook")
	cmd.Flags().Float64Var(&opts.minScore, "min-score", 0, "fail when the quality score is below this value")
	return cmd
}

func (a *app) runValidate(ctx context.Context, opts validateOptions) error {
	db, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	engine := validation.NewEngine(
		repositories.NewValidationRepository(),
		database.NewScopeProvider(db),
		validation.ConfigFrom(a.cfg.Validation),
		a.logger,
	)
	r, err := engine.Run(ctx)
	if err != nil {
		return err
	}

	path, err := report.WriteJSON(opts.out, r)
	if err != nil {
		return err
	}
	a.logger.Info("Validation report written", zap.String("path", path))
	if opts.xlsx {
		path, err := report.WriteXLSX(opts.out, r)
		if err != nil {
			return err
		}
		a.logger.Info("Validation workbook written", zap.String("path", path))
	}

	if err := report.WriteSummary(a.out, r); err != nil {
		return err
	}
	return qualityGate(r.Summary.QualityScore, opts.minScore)
}

// qualityGate fails when minScore is set and score is below it.
func qualityGate(score, minScore float64) error {
	if minScore > 0 && score < minScore {
		return fmt.Errorf("%w: %.2f < %.2f", apperrors.ErrQualityGateFailed, score, minScore)
	}
	return nil
}
