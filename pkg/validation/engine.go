// Package validation scores the persisted tri-source store: record counts,
// re-applied value bounds, WB/IMF consistency, coverage, statistical outliers
// and mapping integrity, rolled into one weighted quality score.
package validation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ekaya-inc/ekaya-macro/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-macro/pkg/database"
	"github.com/ekaya-inc/ekaya-macro/pkg/models"
	"github.com/ekaya-inc/ekaya-macro/pkg/repositories"
)

// Store is the read model the engine validates and the log it records runs in.
type Store interface {
	CountBySource(ctx context.Context) (map[models.Source]int64, error)
	ScanValues(ctx context.Context, src models.Source, afterID int64, limit int) ([]models.ValuePoint, error)
	FamilyValues(ctx context.Context, src models.Source, code string) ([]models.ValuePoint, error)
	FamilyPairs(ctx context.Context, wbCode, imfCode string, minAbsDiff float64) ([]models.SourcePair, error)
	CountryCoverage(ctx context.Context) ([]models.CountryCoverage, error)
	IndustryCoverage(ctx context.Context) ([]models.IndustryCoverage, error)
	OrphanedCountryMappings(ctx context.Context) ([]string, error)
	OrphanedIndicatorMappings(ctx context.Context) ([]string, error)
	UnmappedCountries(ctx context.Context, limit int) ([]string, error)
	UnmappedIndicators(ctx context.Context, limit int) ([]models.UnmappedIndicator, error)
	LatestRun(ctx context.Context) (*models.ValidationRun, error)
	SaveRun(ctx context.Context, run *models.ValidationRun) error
}

var _ Store = (repositories.ValidationRepository)(nil)

// Engine runs validation passes against a Store.
type Engine struct {
	store  Store
	scopes database.ScopeProvider
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewEngine creates a validation engine. When scopes is nil the caller's
// context must already carry a database scope, and phases run one at a time.
func NewEngine(store Store, scopes database.ScopeProvider, cfg Config, logger *zap.Logger) *Engine {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultConfig().PageSize
	}
	if cfg.UnmappedLimit <= 0 {
		cfg.UnmappedLimit = DefaultUnmappedLimit
	}
	return &Engine{
		store:  store,
		scopes: scopes,
		cfg:    cfg,
		logger: logger.Named("validation"),
		now:    time.Now,
	}
}

// rangeResult is the outcome of re-validating one source table.
type rangeResult struct {
	scanned    int64
	invalid    int64
	violations []Anomaly
}

// phaseResults collects the output of the concurrent phases. Each phase
// writes only its own fields.
type phaseResults struct {
	counts      []SourceCount
	warnings    [][]Warning
	ranges      []rangeResult
	consistency ConsistencyResult
	coverage    Coverage
	outliers    []Anomaly
	mappings    MappingIntegrity
}

// Run executes every check and records the run. Check failures are errors;
// findings are warnings and anomalies in the report.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	started := e.now()
	e.logger.Info("Starting validation run",
		zap.Int("page_size", e.cfg.PageSize),
		zap.Int("families", len(e.cfg.Families)))

	sources := models.AllSources
	res := &phaseResults{
		warnings: make([][]Warning, 3),
		ranges:   make([]rangeResult, len(sources)),
	}

	type phase struct {
		name string
		run  func(context.Context) error
	}
	phases := []phase{
		{"counts", func(ctx context.Context) error { return e.checkCounts(ctx, res) }},
		{"consistency", func(ctx context.Context) error { return e.checkConsistency(ctx, res) }},
		{"coverage", func(ctx context.Context) error { return e.checkCoverage(ctx, res) }},
		{"anomalies", func(ctx context.Context) error { return e.detectOutliers(ctx, res) }},
		{"mappings", func(ctx context.Context) error { return e.checkMappings(ctx, res) }},
	}
	for i, src := range sources {
		phases = append(phases, phase{
			name: "range-" + string(src),
			run:  func(ctx context.Context) error { return e.checkRanges(ctx, src, &res.ranges[i]) },
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	if e.scopes == nil {
		g.SetLimit(1)
	} else {
		g.SetLimit(maxConcurrentPhases)
	}
	for _, p := range phases {
		g.Go(func() error {
			if err := e.scoped(gctx, "validation-"+p.name, p.run); err != nil {
				return fmt.Errorf("validation %s: %w", p.name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := e.assemble(started, res)

	if err := e.scoped(ctx, "validation-save", func(ctx context.Context) error {
		return e.save(ctx, report)
	}); err != nil {
		return nil, err
	}

	e.logger.Info("Validation run complete",
		zap.String("run_id", report.RunID.String()),
		zap.Float64("quality_score", report.Summary.QualityScore),
		zap.String("status", report.Summary.Status),
		zap.Int64("invalid_records", report.Summary.InvalidRecords),
		zap.Int("inconsistencies", report.Summary.Inconsistencies),
		zap.Int("anomalies", report.Summary.Anomalies),
		zap.Int("warnings", report.Summary.Warnings))

	return report, nil
}

// scoped runs fn with its own job-scoped connection when a provider is set.
func (e *Engine) scoped(ctx context.Context, job string, fn func(context.Context) error) error {
	if e.scopes == nil {
		return fn(ctx)
	}
	sctx, cleanup, err := e.scopes.WithScope(ctx, job)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for %s: %w", job, err)
	}
	defer cleanup()
	return fn(sctx)
}

func (e *Engine) checkCounts(ctx context.Context, res *phaseResults) error {
	actual, err := e.store.CountBySource(ctx)
	if err != nil {
		return err
	}

	baselines, err := e.baselines(ctx)
	if err != nil {
		return err
	}

	var warnings []Warning
	for _, src := range e.cfg.RequiredSources {
		n := actual[src]
		if n == 0 {
			warnings = append(warnings, Warning{
				Code:    WarnMissingSource,
				Message: fmt.Sprintf("%s has no records", src),
			})
		}

		baseline, ok := baselines[src]
		if !ok {
			warnings = append(warnings, Warning{
				Code:    WarnNoBaseline,
				Message: fmt.Sprintf("%s has no baseline; record count %d not compared", src, n),
			})
		}

		sc := compareCount(src, n, baseline, e.cfg.CountVarianceThreshold)
		if !sc.Within {
			warnings = append(warnings, sc.warning())
			e.logger.Warn("Record count variance",
				zap.String("source", string(src)),
				zap.Int64("actual", sc.Actual),
				zap.Int64("baseline", sc.Baseline),
				zap.Float64("variance", sc.Variance))
		}
		res.counts = append(res.counts, sc)
	}

	res.warnings[0] = warnings
	return nil
}

// baselines returns the configured expected counts, completed from the most
// recent recorded run for sources without one.
func (e *Engine) baselines(ctx context.Context) (map[models.Source]int64, error) {
	out := make(map[models.Source]int64, len(e.cfg.RequiredSources))
	for src, n := range e.cfg.Baselines {
		if n > 0 {
			out[src] = n
		}
	}
	if len(out) == len(e.cfg.RequiredSources) {
		return out, nil
	}

	last, err := e.store.LatestRun(ctx)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return out, nil
		}
		return nil, err
	}
	for _, src := range e.cfg.RequiredSources {
		if _, ok := out[src]; ok {
			continue
		}
		if n := last.Counts[src]; n > 0 {
			out[src] = n
		}
	}
	return out, nil
}

// checkRanges pages through one source table by id and re-applies the bounds.
// Every violation is counted; at most MaxAnomalies are kept for the report.
func (e *Engine) checkRanges(ctx context.Context, src models.Source, out *rangeResult) error {
	var afterID int64
	for {
		page, err := e.store.ScanValues(ctx, src, afterID, e.cfg.PageSize)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			break
		}

		for _, p := range page {
			out.scanned++
			a, bad := checkPoint(&e.cfg, src, p)
			if !bad {
				continue
			}
			out.invalid++
			if len(out.violations) < e.cfg.MaxAnomalies {
				out.violations = append(out.violations, a)
			}
		}
		afterID = page[len(page)-1].ID

		e.logger.Debug("Range validation progress",
			zap.String("source", string(src)),
			zap.Int64("scanned", out.scanned),
			zap.Int64("invalid", out.invalid))

		if len(page) < e.cfg.PageSize {
			break
		}
	}
	if out.invalid > 0 {
		e.logger.Warn("Range violations found",
			zap.String("source", string(src)),
			zap.Int64("invalid", out.invalid),
			zap.Int64("scanned", out.scanned))
	}
	return nil
}

func (e *Engine) checkConsistency(ctx context.Context, res *phaseResults) error {
	result := ConsistencyResult{
		ByFamily:        make(map[string]int, len(e.cfg.Families)),
		Inconsistencies: []Inconsistency{},
	}
	for _, f := range e.cfg.Families {
		if f.WBCode == "" || f.IMFCode == "" {
			continue
		}
		pairs, err := e.store.FamilyPairs(ctx, f.WBCode, f.IMFCode, f.AbsTolerance)
		if err != nil {
			return err
		}
		found := inconsistencies(f, pairs, e.cfg.MaxInconsistencies)
		result.ByFamily[string(f.Name)] = len(found)
		result.Total += len(found)
		result.Inconsistencies = append(result.Inconsistencies, found...)
	}
	res.consistency = result
	return nil
}

func (e *Engine) checkCoverage(ctx context.Context, res *phaseResults) error {
	countries, err := e.store.CountryCoverage(ctx)
	if err != nil {
		return err
	}
	industries, err := e.store.IndustryCoverage(ctx)
	if err != nil {
		return err
	}

	cov := Coverage{
		Countries:         bucketCountries(countries),
		Industries:        industries,
		MissingIndustries: missingIndustries(e.cfg.RequiredIndustries, industries),
	}
	if cov.Industries == nil {
		cov.Industries = []models.IndustryCoverage{}
	}

	var warnings []Warning
	for _, ind := range cov.MissingIndustries {
		warnings = append(warnings, Warning{
			Code:    WarnMissingIndustry,
			Message: fmt.Sprintf("industry %s has no mapped indicators", ind),
		})
	}
	res.coverage = cov
	res.warnings[1] = warnings
	return nil
}

// detectOutliers scores each family in every source that publishes it.
func (e *Engine) detectOutliers(ctx context.Context, res *phaseResults) error {
	var all []Anomaly
	for _, f := range e.cfg.Families {
		var found []Anomaly
		for _, src := range []models.Source{models.SourceWorldBank, models.SourceIMF} {
			code := familyCode(f, src)
			if code == "" {
				continue
			}
			points, err := e.store.FamilyValues(ctx, src, code)
			if err != nil {
				return err
			}
			found = append(found, outliers(f, src, points, e.cfg.ZScoreThreshold)...)
		}
		all = append(all, topByZScore(found, e.cfg.MaxAnomalies)...)
	}
	res.outliers = all
	return nil
}

func (e *Engine) checkMappings(ctx context.Context, res *phaseResults) error {
	orphanedCountries, err := e.store.OrphanedCountryMappings(ctx)
	if err != nil {
		return err
	}
	orphanedIndicators, err := e.store.OrphanedIndicatorMappings(ctx)
	if err != nil {
		return err
	}
	unmapped, err := e.store.UnmappedCountries(ctx, e.cfg.UnmappedLimit)
	if err != nil {
		return err
	}
	unmappedIndicators, err := e.store.UnmappedIndicators(ctx, e.cfg.UnmappedLimit)
	if err != nil {
		return err
	}
	if unmappedIndicators == nil {
		unmappedIndicators = []models.UnmappedIndicator{}
	}

	m := MappingIntegrity{
		OrphanedCountries:  nonNil(orphanedCountries),
		OrphanedIndicators: nonNil(orphanedIndicators),
		UnmappedCountries:  nonNil(unmapped),
		UnmappedIndicators: unmappedIndicators,
	}

	var warnings []Warning
	if n := len(m.OrphanedCountries); n > 0 {
		warnings = append(warnings, Warning{
			Code:    WarnOrphanedCountries,
			Message: fmt.Sprintf("found %d orphaned country mappings", n),
		})
	}
	if n := len(m.UnmappedCountries); n > 0 {
		warnings = append(warnings, Warning{
			Code:    WarnUnmappedCountries,
			Message: fmt.Sprintf("found %d unmapped countries in data", n),
		})
	}
	if n := len(m.UnmappedIndicators); n > 0 {
		warnings = append(warnings, Warning{
			Code:    WarnUnmappedIndicators,
			Message: fmt.Sprintf("found %d unmapped indicators in data", n),
		})
	}
	if n := len(m.OrphanedIndicators); n > 0 {
		warnings = append(warnings, Warning{
			Code:    WarnOrphanedIndicators,
			Message: fmt.Sprintf("found %d orphaned indicator mappings", n),
		})
	}
	for _, w := range warnings {
		e.logger.Warn(w.Message, zap.String("code", w.Code))
	}

	res.mappings = m
	res.warnings[2] = warnings
	return nil
}

// assemble merges the phase results into a scored report.
func (e *Engine) assemble(started time.Time, res *phaseResults) *Report {
	var total, invalid int64
	anomalies := []Anomaly{}
	anomalyCount := len(res.outliers)
	for _, r := range res.ranges {
		total += r.scanned
		invalid += r.invalid
		anomalies = append(anomalies, r.violations...)
		anomalyCount += int(r.invalid)
	}
	anomalies = append(anomalies, res.outliers...)

	warnings := []Warning{}
	for _, w := range res.warnings {
		warnings = append(warnings, w...)
	}

	metrics := ComputeMetrics(Inputs{
		TotalRecords:    total,
		ValidRecords:    total - invalid,
		Inconsistencies: res.consistency.Total,
		Anomalies:       anomalyCount,
		Countries:       res.coverage.Countries,
	}, e.cfg)
	score := Score(metrics, e.cfg.Weights)

	finished := e.now()
	return &Report{
		RunID:           uuid.New(),
		StartedAt:       started,
		FinishedAt:      finished,
		DurationSeconds: finished.Sub(started).Seconds(),
		Summary: Summary{
			Status:          StatusFor(score),
			QualityScore:    score,
			TotalRecords:    total,
			ValidRecords:    total - invalid,
			InvalidRecords:  invalid,
			Inconsistencies: res.consistency.Total,
			Anomalies:       anomalyCount,
			Warnings:        len(warnings),
		},
		RecordCounts: res.counts,
		Metrics:      metrics,
		Consistency:  res.consistency,
		Coverage:     res.coverage,
		Anomalies:    anomalies,
		Mappings:     res.mappings,
		Warnings:     warnings,
		Families:     e.cfg.Families,
		Years:        e.cfg.Years,
	}
}

func (e *Engine) save(ctx context.Context, report *Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode validation report: %w", err)
	}

	counts := make(map[models.Source]int64, len(report.RecordCounts))
	for _, sc := range report.RecordCounts {
		counts[sc.Source] = sc.Actual
	}

	run := &models.ValidationRun{
		ID:           report.RunID,
		StartedAt:    report.StartedAt,
		FinishedAt:   report.FinishedAt,
		QualityScore: report.Summary.QualityScore,
		Status:       report.Summary.Status,
		Counts:       counts,
		Report:       data,
	}
	if err := e.store.SaveRun(ctx, run); err != nil {
		return err
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
