package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-macro/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-macro/pkg/database"
	"github.com/ekaya-inc/ekaya-macro/pkg/models"
)

// DefaultBatchSize is the number of rows per multi-row INSERT.
const DefaultBatchSize = 1000

// maxBindParams is PostgreSQL's limit on parameters in one statement.
const maxBindParams = 65535

// ChunkProgress reports one committed-to-transaction chunk of a replace.
type ChunkProgress struct {
	Source   models.Source
	Chunk    int // 1-based
	Chunks   int
	Rows     int // rows in this chunk
	Inserted int // rows inserted so far
}

// ObservationRepository persists observations, one table per source.
type ObservationRepository interface {
	// Replace atomically deletes every row of src and inserts observations.
	// On any error the previous contents of the table are left intact.
	Replace(ctx context.Context, src models.Source, observations []models.Observation, onChunk func(ChunkProgress)) (int, error)

	// CountBySource returns the row count of each source table.
	CountBySource(ctx context.Context) (map[models.Source]int64, error)

	// Count returns the row count of one source table.
	Count(ctx context.Context, src models.Source) (int64, error)

	// DistinctCountries returns the distinct countries present in the World Bank table.
	DistinctCountries(ctx context.Context) ([]models.CountryMapping, error)
}

// tableSpec is the fixed table layout of one source. Table and column names
// are never taken from input.
type tableSpec struct {
	table   string
	columns []string
	values  func(o *models.Observation) []any
}

var tableSpecs = map[models.Source]tableSpec{
	models.SourceWorldBank: {
		table: "indicators",
		columns: []string{
			"country_code", "country_name", "indicator_code", "indicator_name",
			"year", "value", "industry", "source", "data_quality_score",
		},
		values: func(o *models.Observation) []any {
			return []any{
				o.CountryCode, nullIfEmpty(o.CountryName), o.IndicatorCode, nullIfEmpty(o.IndicatorName),
				o.Year, o.Value, o.Industry, string(models.SourceWorldBank), o.DataQualityScore,
			}
		},
	},
	models.SourceOECD: {
		table: "oecd_indicators",
		columns: []string{
			"dataflow", "country_code", "indicator_code", "indicator_name",
			"year", "value", "industry", "source", "data_quality_score",
		},
		values: func(o *models.Observation) []any {
			return []any{
				nullIfEmpty(o.Dataflow), o.CountryCode, o.IndicatorCode, nullIfEmpty(o.IndicatorName),
				o.Year, o.Value, o.Industry, string(models.SourceOECD), o.DataQualityScore,
			}
		},
	},
	models.SourceIMF: {
		table: "imf_indicators",
		columns: []string{
			"weo_country_code", "country_code", "indicator_code", "indicator_name", "units",
			"year", "value", "industry", "source", "data_quality_score",
		},
		values: func(o *models.Observation) []any {
			return []any{
				o.SourceCountryCode, o.CountryCode, o.IndicatorCode, nullIfEmpty(o.IndicatorName), nullIfEmpty(o.Units),
				o.Year, o.Value, o.Industry, string(models.SourceIMF), o.DataQualityScore,
			}
		},
	},
}

func specFor(src models.Source) (tableSpec, error) {
	spec, ok := tableSpecs[src]
	if !ok {
		return tableSpec{}, fmt.Errorf("%w: %q", apperrors.ErrUnknownSource, src)
	}
	return spec, nil
}

// TableFor returns the observation table of src.
func TableFor(src models.Source) (string, error) {
	spec, err := specFor(src)
	if err != nil {
		return "", err
	}
	return spec.table, nil
}

type observationRepository struct {
	batchSize int
}

// NewObservationRepository creates an observation repository inserting
// batchSize rows per statement. Values <= 0 select DefaultBatchSize.
func NewObservationRepository(batchSize int) ObservationRepository {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &observationRepository{batchSize: batchSize}
}

func (r *observationRepository) Replace(ctx context.Context, src models.Source, observations []models.Observation, onChunk func(ChunkProgress)) (int, error) {
	spec, err := specFor(src)
	if err != nil {
		return 0, err
	}

	batchSize := r.batchSize
	if batchSize*len(spec.columns) > maxBindParams {
		batchSize = maxBindParams / len(spec.columns)
	}

	scope, ok := database.GetScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no database scope in context")
	}

	tx, err := scope.Conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	// Serializes concurrent replaces of the same source; released at commit or rollback.
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", "ekaya-macro:"+string(src)); err != nil {
		return 0, fmt.Errorf("failed to lock %s: %w", src, err)
	}

	// spec.table is a constant from tableSpecs.
	if _, err := tx.Exec(ctx, "DELETE FROM "+spec.table+" WHERE source = $1", string(src)); err != nil {
		return 0, fmt.Errorf("failed to clear %s: %w", spec.table, err)
	}

	chunks := (len(observations) + batchSize - 1) / batchSize
	inserted := 0
	for i := 0; i < chunks; i++ {
		start := i * batchSize
		end := min(start+batchSize, len(observations))
		chunk := observations[start:end]

		query, args := buildInsert(spec, chunk)
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return 0, fmt.Errorf("failed to insert chunk %d/%d into %s: %w", i+1, chunks, spec.table, err)
		}
		inserted += int(tag.RowsAffected())

		if onChunk != nil {
			onChunk(ChunkProgress{Source: src, Chunk: i + 1, Chunks: chunks, Rows: len(chunk), Inserted: inserted})
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return inserted, nil
}

// buildInsert renders one multi-row INSERT with positional placeholders.
func buildInsert(spec tableSpec, chunk []models.Observation) (string, []any) {
	width := len(spec.columns)
	args := make([]any, 0, len(chunk)*width)

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(spec.table)
	b.WriteString(" (")
	b.WriteString(strings.Join(spec.columns, ", "))
	b.WriteString(") VALUES ")

	for i := range chunk {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := 0; j < width; j++ {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", i*width+j+1)
		}
		b.WriteByte(')')
		args = append(args, spec.values(&chunk[i])...)
	}

	return b.String(), args
}

func (r *observationRepository) CountBySource(ctx context.Context) (map[models.Source]int64, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT 'WB', COUNT(*) FROM indicators WHERE source = 'WB'
		UNION ALL
		SELECT 'OECD', COUNT(*) FROM oecd_indicators WHERE source = 'OECD'
		UNION ALL
		SELECT 'IMF', COUNT(*) FROM imf_indicators WHERE source = 'IMF'`

	rows, err := scope.Conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count observations: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Source]int64, len(models.AllSources))
	for rows.Next() {
		var src string
		var n int64
		if err := rows.Scan(&src, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[models.Source(src)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating counts: %w", err)
	}

	return counts, nil
}

func (r *observationRepository) Count(ctx context.Context, src models.Source) (int64, error) {
	spec, err := specFor(src)
	if err != nil {
		return 0, err
	}

	scope, ok := database.GetScope(ctx)
	if !ok {
		return 0, fmt.Errorf("no database scope in context")
	}

	var n int64
	if err := scope.Conn.QueryRow(ctx, "SELECT COUNT(*) FROM "+spec.table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", spec.table, err)
	}
	return n, nil
}

func (r *observationRepository) DistinctCountries(ctx context.Context) ([]models.CountryMapping, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT country_code, MAX(COALESCE(country_name, country_code))
		FROM indicators
		GROUP BY country_code
		ORDER BY country_code`

	rows, err := scope.Conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list countries: %w", err)
	}

	countries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.CountryMapping, error) {
		var code, name string
		if err := row.Scan(&code, &name); err != nil {
			return models.CountryMapping{}, err
		}
		return models.CountryMapping{
			UnifiedCode:    code,
			CountryName:    name,
			WBCode:         models.StringPtr(code),
			PrioritySource: models.SourceWorldBank,
		}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan countries: %w", err)
	}

	return countries, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
