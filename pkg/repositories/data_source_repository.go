package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-macro/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-macro/pkg/database"
	"github.com/ekaya-inc/ekaya-macro/pkg/models"
)

// DataSourceRepository defines data access for the upstream agency registry.
type DataSourceRepository interface {
	// Ensure upserts the registry row of each source.
	Ensure(ctx context.Context, sources []models.DataSource) error

	// Touch records that src was refreshed now.
	Touch(ctx context.Context, src models.Source) error

	// List returns all registered sources ordered by code.
	List(ctx context.Context) ([]models.DataSource, error)
}

type dataSourceRepository struct{}

// NewDataSourceRepository creates a new data source repository.
func NewDataSourceRepository() DataSourceRepository {
	return &dataSourceRepository{}
}

var _ DataSourceRepository = (*dataSourceRepository)(nil)

func (r *dataSourceRepository) Ensure(ctx context.Context, sources []models.DataSource) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query := `
		INSERT INTO data_sources (source_code, source_name, description, base_url, update_frequency, data_quality_score)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (source_code) DO UPDATE SET
			source_name = EXCLUDED.source_name,
			description = EXCLUDED.description,
			base_url = EXCLUDED.base_url,
			update_frequency = EXCLUDED.update_frequency,
			data_quality_score = EXCLUDED.data_quality_score`

	batch := &pgx.Batch{}
	for _, ds := range sources {
		batch.Queue(query,
			string(ds.SourceCode),
			ds.SourceName,
			ds.Description,
			ds.BaseURL,
			ds.UpdateFrequency,
			ds.DataQualityScore,
		)
	}

	if err := scope.Conn.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to upsert data sources: %w", err)
	}
	return nil
}

func (r *dataSourceRepository) Touch(ctx context.Context, src models.Source) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	tag, err := scope.Conn.Exec(ctx, "UPDATE data_sources SET last_updated = now() WHERE source_code = $1", string(src))
	if err != nil {
		return fmt.Errorf("failed to touch data source %s: %w", src, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("data source %s: %w", src, apperrors.ErrNotFound)
	}
	return nil
}

func (r *dataSourceRepository) List(ctx context.Context) ([]models.DataSource, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT source_code, source_name, COALESCE(description, ''), COALESCE(base_url, ''),
		       COALESCE(update_frequency, ''), data_quality_score, last_updated
		FROM data_sources
		ORDER BY source_code`

	rows, err := scope.Conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list data sources: %w", err)
	}

	sources, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.DataSource, error) {
		var ds models.DataSource
		var code string
		err := row.Scan(&code, &ds.SourceName, &ds.Description, &ds.BaseURL,
			&ds.UpdateFrequency, &ds.DataQualityScore, &ds.LastUpdated)
		ds.SourceCode = models.Source(code)
		return ds, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan data sources: %w", err)
	}
	return sources, nil
}
