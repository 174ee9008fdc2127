package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-macro/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-macro/pkg/database"
	"github.com/ekaya-inc/ekaya-macro/pkg/models"
)

// ValidationRepository provides the read-only queries of the validation engine
// and persistence of its runs.
type ValidationRepository interface {
	CountBySource(ctx context.Context) (map[models.Source]int64, error)

	// ScanValues returns up to limit rows of src with id > afterID, ordered by id.
	ScanValues(ctx context.Context, src models.Source, afterID int64, limit int) ([]models.ValuePoint, error)

	// FamilyValues returns every row of src whose indicator code is code.
	FamilyValues(ctx context.Context, src models.Source, code string) ([]models.ValuePoint, error)

	// FamilyPairs joins WB and IMF rows for one concept on (country_code, year),
	// keeping pairs whose absolute difference exceeds minAbsDiff.
	FamilyPairs(ctx context.Context, wbCode, imfCode string, minAbsDiff float64) ([]models.SourcePair, error)

	CountryCoverage(ctx context.Context) ([]models.CountryCoverage, error)
	IndustryCoverage(ctx context.Context) ([]models.IndustryCoverage, error)

	// OrphanedCountryMappings lists unified codes with no observations in any source.
	OrphanedCountryMappings(ctx context.Context) ([]string, error)

	// OrphanedIndicatorMappings lists concepts with a source code that has no observations.
	OrphanedIndicatorMappings(ctx context.Context) ([]string, error)

	// UnmappedCountries lists observation country codes without a country mapping.
	UnmappedCountries(ctx context.Context, limit int) ([]string, error)

	// UnmappedIndicators lists observation indicator codes whose source has no
	// indicator mapping for them.
	UnmappedIndicators(ctx context.Context, limit int) ([]models.UnmappedIndicator, error)

	// LatestRun returns the most recent validation run or apperrors.ErrNotFound.
	LatestRun(ctx context.Context) (*models.ValidationRun, error)

	SaveRun(ctx context.Context, run *models.ValidationRun) error
}

type validationRepository struct {
	observations *observationRepository
}

// NewValidationRepository creates a new validation repository.
func NewValidationRepository() ValidationRepository {
	return &validationRepository{observations: &observationRepository{batchSize: DefaultBatchSize}}
}

var _ ValidationRepository = (*validationRepository)(nil)

func (r *validationRepository) CountBySource(ctx context.Context) (map[models.Source]int64, error) {
	return r.observations.CountBySource(ctx)
}

func (r *validationRepository) ScanValues(ctx context.Context, src models.Source, afterID int64, limit int) ([]models.ValuePoint, error) {
	spec, err := specFor(src)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, country_code, indicator_code, year, value
		FROM ` + spec.table + `
		WHERE id > $1
		ORDER BY id
		LIMIT $2`

	return r.queryValues(ctx, query, afterID, limit)
}

func (r *validationRepository) FamilyValues(ctx context.Context, src models.Source, code string) ([]models.ValuePoint, error) {
	spec, err := specFor(src)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT id, country_code, indicator_code, year, value
		FROM ` + spec.table + `
		WHERE indicator_code = $1
		ORDER BY id`

	return r.queryValues(ctx, query, code)
}

func (r *validationRepository) queryValues(ctx context.Context, query string, args ...any) ([]models.ValuePoint, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query values: %w", err)
	}

	points, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.ValuePoint, error) {
		var p models.ValuePoint
		err := row.Scan(&p.ID, &p.CountryCode, &p.IndicatorCode, &p.Year, &p.Value)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan values: %w", err)
	}
	return points, nil
}

func (r *validationRepository) FamilyPairs(ctx context.Context, wbCode, imfCode string, minAbsDiff float64) ([]models.SourcePair, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT wb.country_code, wb.year, wb.value, imf.value
		FROM indicators wb
		JOIN imf_indicators imf
		  ON imf.country_code = wb.country_code
		 AND imf.year = wb.year
		WHERE wb.indicator_code = $1
		  AND imf.indicator_code = $2
		  AND ABS(wb.value - imf.value) > $3
		ORDER BY wb.country_code, wb.year`

	rows, err := scope.Conn.Query(ctx, query, wbCode, imfCode, minAbsDiff)
	if err != nil {
		return nil, fmt.Errorf("failed to compare %s with %s: %w", wbCode, imfCode, err)
	}

	pairs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.SourcePair, error) {
		var p models.SourcePair
		err := row.Scan(&p.CountryCode, &p.Year, &p.WBValue, &p.IMFValue)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan pairs: %w", err)
	}
	return pairs, nil
}

func (r *validationRepository) CountryCoverage(ctx context.Context) ([]models.CountryCoverage, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT unified_code, country_name,
		       (CASE WHEN wb_code IS NOT NULL THEN 1 ELSE 0 END) +
		       (CASE WHEN oecd_code IS NOT NULL THEN 1 ELSE 0 END) +
		       (CASE WHEN imf_code IS NOT NULL THEN 1 ELSE 0 END) AS source_count
		FROM country_mappings
		ORDER BY source_count DESC, country_name`

	rows, err := scope.Conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query country coverage: %w", err)
	}

	coverage, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.CountryCoverage, error) {
		var c models.CountryCoverage
		err := row.Scan(&c.UnifiedCode, &c.CountryName, &c.Sources)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan country coverage: %w", err)
	}
	return coverage, nil
}

func (r *validationRepository) IndustryCoverage(ctx context.Context) ([]models.IndustryCoverage, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT industry,
		       COUNT(DISTINCT unified_concept),
		       COUNT(DISTINCT wb_code),
		       COUNT(DISTINCT oecd_code),
		       COUNT(DISTINCT imf_code)
		FROM indicator_mappings
		GROUP BY industry
		ORDER BY industry`

	rows, err := scope.Conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query industry coverage: %w", err)
	}

	coverage, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.IndustryCoverage, error) {
		var c models.IndustryCoverage
		err := row.Scan(&c.Industry, &c.TotalConcepts, &c.WBIndicators, &c.OECDIndicators, &c.IMFIndicators)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan industry coverage: %w", err)
	}
	return coverage, nil
}

func (r *validationRepository) OrphanedCountryMappings(ctx context.Context) ([]string, error) {
	query := `
		SELECT cm.unified_code
		FROM country_mappings cm
		WHERE NOT EXISTS (SELECT 1 FROM indicators i WHERE i.country_code = cm.unified_code)
		  AND NOT EXISTS (SELECT 1 FROM oecd_indicators o WHERE o.country_code = cm.unified_code)
		  AND NOT EXISTS (SELECT 1 FROM imf_indicators f WHERE f.country_code = cm.unified_code)
		ORDER BY cm.unified_code`

	return r.queryStrings(ctx, query)
}

func (r *validationRepository) OrphanedIndicatorMappings(ctx context.Context) ([]string, error) {
	query := `
		SELECT im.unified_concept
		FROM indicator_mappings im
		WHERE (im.wb_code IS NOT NULL
		       AND NOT EXISTS (SELECT 1 FROM indicators i WHERE i.indicator_code = im.wb_code))
		   OR (im.oecd_code IS NOT NULL
		       AND NOT EXISTS (SELECT 1 FROM oecd_indicators o WHERE o.indicator_code = im.oecd_code))
		   OR (im.imf_code IS NOT NULL
		       AND NOT EXISTS (SELECT 1 FROM imf_indicators f WHERE f.indicator_code = im.imf_code))
		ORDER BY im.unified_concept`

	return r.queryStrings(ctx, query)
}

func (r *validationRepository) UnmappedCountries(ctx context.Context, limit int) ([]string, error) {
	query := `
		SELECT country_code FROM (
			SELECT country_code FROM indicators
			UNION
			SELECT country_code FROM oecd_indicators
			UNION
			SELECT country_code FROM imf_indicators
		) observed
		WHERE NOT EXISTS (SELECT 1 FROM country_mappings cm WHERE cm.unified_code = observed.country_code)
		ORDER BY country_code
		LIMIT $1`

	return r.queryStrings(ctx, query, limit)
}

func (r *validationRepository) UnmappedIndicators(ctx context.Context, limit int) ([]models.UnmappedIndicator, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT source, indicator_code FROM (
			SELECT DISTINCT 'WB' AS source, i.indicator_code FROM indicators i
			WHERE NOT EXISTS (SELECT 1 FROM indicator_mappings im WHERE im.wb_code = i.indicator_code)
			UNION
			SELECT DISTINCT 'OECD', o.indicator_code FROM oecd_indicators o
			WHERE NOT EXISTS (SELECT 1 FROM indicator_mappings im WHERE im.oecd_code = o.indicator_code)
			UNION
			SELECT DISTINCT 'IMF', f.indicator_code FROM imf_indicators f
			WHERE NOT EXISTS (SELECT 1 FROM indicator_mappings im WHERE im.imf_code = f.indicator_code)
		) unmapped
		ORDER BY source, indicator_code
		LIMIT $1`

	rows, err := scope.Conn.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unmapped indicators: %w", err)
	}

	unmapped, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.UnmappedIndicator, error) {
		var u models.UnmappedIndicator
		var src string
		if err := row.Scan(&src, &u.IndicatorCode); err != nil {
			return u, err
		}
		u.Source = models.Source(src)
		return u, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan unmapped indicators: %w", err)
	}
	return unmapped, nil
}

func (r *validationRepository) queryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query mapping integrity: %w", err)
	}

	values, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan mapping integrity: %w", err)
	}
	return values, nil
}

func (r *validationRepository) LatestRun(ctx context.Context) (*models.ValidationRun, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT id, started_at, finished_at, quality_score, status, wb_count, oecd_count, imf_count, report
		FROM validation_runs
		ORDER BY finished_at DESC
		LIMIT 1`

	var run models.ValidationRun
	var wb, oecd, imf int64
	err := scope.Conn.QueryRow(ctx, query).Scan(
		&run.ID,
		&run.StartedAt,
		&run.FinishedAt,
		&run.QualityScore,
		&run.Status,
		&wb,
		&oecd,
		&imf,
		&run.Report,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get latest validation run: %w", err)
	}

	run.Counts = map[models.Source]int64{
		models.SourceWorldBank: wb,
		models.SourceOECD:      oecd,
		models.SourceIMF:       imf,
	}
	return &run, nil
}

func (r *validationRepository) SaveRun(ctx context.Context, run *models.ValidationRun) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := `
		INSERT INTO validation_runs (id, started_at, finished_at, quality_score, status, wb_count, oecd_count, imf_count, report)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := scope.Conn.Exec(ctx, query,
		run.ID,
		run.StartedAt,
		run.FinishedAt,
		run.QualityScore,
		run.Status,
		run.Counts[models.SourceWorldBank],
		run.Counts[models.SourceOECD],
		run.Counts[models.SourceIMF],
		run.Report,
	)
	if err != nil {
		return fmt.Errorf("failed to save validation run: %w", err)
	}
	return nil
}
