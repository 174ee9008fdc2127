package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-macro/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-macro/pkg/industry"
	"github.com/ekaya-inc/ekaya-macro/pkg/mappings"
	"github.com/ekaya-inc/ekaya-macro/pkg/models"
	"github.com/ekaya-inc/ekaya-macro/pkg/sanitize"
)

// DefaultProgressInterval is the number of rows between progress reports.
const DefaultProgressInterval = 50000

// Resolver maps source-native codes to the unified model.
// *mappings.Snapshot implements it.
type Resolver interface {
	IndicatorIndustry(code string) (string, bool)
	Country(code string) (mappings.CountryInfo, bool)
}

var _ Resolver = (*mappings.Snapshot)(nil)

// classifierFallback resolves indicators through the static industry table
// when the registry has no entry. The World Bank registry is populated from
// that table, so the first load works before mappings are seeded.
type classifierFallback struct {
	Resolver
}

func (c classifierFallback) IndicatorIndustry(code string) (string, bool) {
	if ind, ok := c.Resolver.IndicatorIndustry(code); ok {
		return ind, true
	}
	return industry.Classify(code)
}

// WithClassifierFallback wraps r so unmapped indicators fall back to the
// static industry classification.
func WithClassifierFallback(r Resolver) Resolver {
	return classifierFallback{Resolver: r}
}

// Stats summarizes one pipeline run.
type Stats struct {
	Source           models.Source  `json:"source"`
	RowsSeen         int            `json:"rows_seen"`
	ValidPoints      int            `json:"valid_points"`
	ValidationErrors int            `json:"validation_errors"`
	SkippedRows      int            `json:"skipped_rows"`
	Duplicates       int            `json:"duplicates"`
	SuspiciousFields int            `json:"suspicious_fields"`
	Industries       map[string]int `json:"industries"`
	FailedIndicators []string       `json:"failed_indicators,omitempty"`
}

// Result is the in-memory output of a run, ready to persist.
type Result struct {
	Observations []models.Observation
	Stats        Stats
}

// Pipeline validates, resolves and fans out rows of one source.
type Pipeline struct {
	policy   Policy
	resolver Resolver
	progress Progress
	interval int
	logger   *zap.Logger
}

// NewPipeline creates a pipeline. progress may be nil; interval <= 0 selects
// DefaultProgressInterval.
func NewPipeline(policy Policy, resolver Resolver, progress Progress, interval int, logger *zap.Logger) *Pipeline {
	if interval <= 0 {
		interval = DefaultProgressInterval
	}
	if progress == nil {
		progress = nopProgress{}
	}
	return &Pipeline{
		policy:   policy,
		resolver: resolver,
		progress: progress,
		interval: interval,
		logger:   logger.Named("ingest").With(zap.String("source", string(policy.Source))),
	}
}

// Run drains r. Row-level problems are counted in Stats; reader errors other
// than *RowError and context cancellation abort the run. A reader that
// reports failed fetches also aborts it, after the summary is printed, so a
// partial download never replaces stored rows.
func (p *Pipeline) Run(ctx context.Context, r RowReader) (*Result, error) {
	res := &Result{
		Stats: Stats{
			Source:     p.policy.Source,
			Industries: make(map[string]int),
		},
	}
	seen := make(map[models.ObservationKey]struct{})

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var rowErr *RowError
			if errors.As(err, &rowErr) {
				res.Stats.RowsSeen++
				res.Stats.ValidationErrors++
				p.logger.Debug("Malformed row", zap.Int("line", rowErr.Line), zap.Error(rowErr.Err))
				p.tick(&res.Stats)
				continue
			}
			return nil, fmt.Errorf("failed to read %s input: %w", p.policy.Source, err)
		}

		res.Stats.RowsSeen++
		p.process(row, res, seen)
		p.tick(&res.Stats)
	}

	if fr, ok := r.(FailureReporter); ok {
		res.Stats.FailedIndicators = fr.FailedIndicators()
	}
	p.progress.Summary(res.Stats)

	p.logger.Info("Ingestion pass complete",
		zap.Int("rows", res.Stats.RowsSeen),
		zap.Int("points", res.Stats.ValidPoints),
		zap.Int("validation_errors", res.Stats.ValidationErrors),
		zap.Int("skipped", res.Stats.SkippedRows),
		zap.Int("duplicates", res.Stats.Duplicates))

	if failed := res.Stats.FailedIndicators; len(failed) > 0 {
		return nil, fmt.Errorf("%w: %d %s indicators failed (%s)",
			apperrors.ErrIncompleteFetch, len(failed), p.policy.Source, strings.Join(failed, ", "))
	}
	return res, nil
}

func (p *Pipeline) tick(stats *Stats) {
	if stats.RowsSeen%p.interval == 0 {
		p.progress.Rows(*stats)
	}
}

// process handles one row: validate, resolve, apply policy, fan out.
func (p *Pipeline) process(row Row, res *Result, seen map[models.ObservationKey]struct{}) {
	pol := p.policy
	stats := &res.Stats

	countryCode, okCountry := sanitize.CountryCode(row.CountryCode, pol.Source)
	indicatorCode, okIndicator := sanitize.IndicatorCode(row.IndicatorCode)
	countryName, okCountryName := sanitize.Text(row.CountryName, pol.CountryNameLen)
	indicatorName, okIndicatorName := sanitize.Text(row.IndicatorName, pol.IndicatorNameLen)

	if !okCountry || !okIndicator ||
		(pol.RequireCountryName && !okCountryName) ||
		(pol.RequireIndicatorName && !okIndicatorName) {
		stats.ValidationErrors++
		return
	}

	for _, raw := range []string{row.CountryName, row.IndicatorName, row.Units} {
		if sanitize.LooksLikeInjection(raw) {
			stats.SuspiciousFields++
		}
	}

	// Long rows carry their own year; a bad one invalidates the row.
	var longYear int
	if row.Long {
		if len(row.Cells) != 1 {
			stats.ValidationErrors++
			return
		}
		y, ok := sanitize.Year(row.Cells[0].Year, pol.Years)
		if !ok {
			stats.ValidationErrors++
			return
		}
		longYear = y
	}

	ind, ok := p.resolver.IndicatorIndustry(indicatorCode)
	if !ok {
		if pol.OnUnmappedIndicator != IndicatorDefault {
			stats.SkippedRows++
			return
		}
		ind = pol.DefaultIndustry
	}

	country, ok := p.resolver.Country(countryCode)
	if !ok {
		if pol.OnUnmappedCountry != CountryEchoRawCode {
			stats.SkippedRows++
			return
		}
		country = mappings.CountryInfo{Name: countryCode, UnifiedCode: countryCode}
	}
	if okCountryName {
		country.Name = countryName
	}

	units, _ := sanitize.Text(row.Units, 100)
	dataflow, _ := sanitize.Text(row.Dataflow, 100)
	bounds := sanitize.BoundsFor(indicatorCode)

	base := models.Observation{
		CountryCode:      country.UnifiedCode,
		CountryName:      country.Name,
		IndicatorCode:    indicatorCode,
		IndicatorName:    indicatorName,
		Industry:         ind,
		Source:           pol.Source,
		DataQualityScore: pol.QualityScore,
		Units:            units,
		Dataflow:         dataflow,
	}
	if pol.Source == models.SourceIMF {
		base.SourceCountryCode = countryCode
	}

	if row.Long {
		value, ok := sanitize.NumericValue(row.Cells[0].Value, bounds)
		if !ok {
			stats.SkippedRows++
			return
		}
		p.emit(base, longYear, value, res, seen)
		return
	}

	for _, cell := range row.Cells {
		year, ok := sanitize.Year(cell.Year, pol.Years)
		if !ok {
			continue
		}
		value, ok := sanitize.NumericValue(cell.Value, bounds)
		if !ok {
			continue
		}
		p.emit(base, year, value, res, seen)
	}
}

// emit appends one observation unless its natural key was already produced.
func (p *Pipeline) emit(base models.Observation, year int, value float64, res *Result, seen map[models.ObservationKey]struct{}) {
	base.Year = year
	base.Value = value

	key := base.Key()
	if _, dup := seen[key]; dup {
		res.Stats.Duplicates++
		return
	}
	seen[key] = struct{}{}

	res.Observations = append(res.Observations, base)
	res.Stats.ValidPoints++
	res.Stats.Industries[base.Industry]++
}
