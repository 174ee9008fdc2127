package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-macro/pkg/database"
	"github.com/ekaya-inc/ekaya-macro/pkg/models"
)

// MetadataRepository persists the World Bank auxiliary metadata files.
// All writes are upserts by natural key and run in one transaction per call.
type MetadataRepository interface {
	UpsertCountries(ctx context.Context, countries []models.CountryMetadata) (int, error)
	UpsertIndicators(ctx context.Context, indicators []models.IndicatorMetadata) (int, error)
	UpsertAvailability(ctx context.Context, rows []models.Availability) (int, error)
}

type metadataRepository struct {
	batchSize int
}

// NewMetadataRepository creates a metadata repository that queues batchSize
// statements per round trip.
func NewMetadataRepository(batchSize int) MetadataRepository {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &metadataRepository{batchSize: batchSize}
}

var _ MetadataRepository = (*metadataRepository)(nil)

func (r *metadataRepository) UpsertCountries(ctx context.Context, countries []models.CountryMetadata) (int, error) {
	query := `
		INSERT INTO countries (country_code, short_name, table_name, region, income_group)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (country_code) DO UPDATE SET
			short_name = EXCLUDED.short_name,
			table_name = EXCLUDED.table_name,
			region = EXCLUDED.region,
			income_group = EXCLUDED.income_group,
			updated_at = now()`

	return upsertBatched(ctx, r.batchSize, "countries", countries, func(b *pgx.Batch, c models.CountryMetadata) {
		b.Queue(query, c.CountryCode, c.ShortName, nullIfEmpty(c.TableName), nullIfEmpty(c.Region), nullIfEmpty(c.IncomeGroup))
	})
}

func (r *metadataRepository) UpsertIndicators(ctx context.Context, indicators []models.IndicatorMetadata) (int, error) {
	query := `
		INSERT INTO indicator_metadata (indicator_code, indicator_name, definition, unit_of_measure, source_note, topic, periodicity, industry)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (indicator_code) DO UPDATE SET
			indicator_name = EXCLUDED.indicator_name,
			definition = EXCLUDED.definition,
			unit_of_measure = EXCLUDED.unit_of_measure,
			source_note = EXCLUDED.source_note,
			topic = EXCLUDED.topic,
			periodicity = EXCLUDED.periodicity,
			industry = EXCLUDED.industry,
			updated_at = now()`

	return upsertBatched(ctx, r.batchSize, "indicator_metadata", indicators, func(b *pgx.Batch, m models.IndicatorMetadata) {
		b.Queue(query, m.IndicatorCode, m.IndicatorName, nullIfEmpty(m.Definition), nullIfEmpty(m.UnitOfMeasure),
			nullIfEmpty(m.SourceNote), nullIfEmpty(m.Topic), nullIfEmpty(m.Periodicity), m.Industry)
	})
}

func (r *metadataRepository) UpsertAvailability(ctx context.Context, rows []models.Availability) (int, error) {
	query := `
		INSERT INTO country_indicator_availability (country_code, indicator_code, last_updated)
		VALUES ($1, $2, $3)
		ON CONFLICT (country_code, indicator_code) DO UPDATE SET
			last_updated = EXCLUDED.last_updated,
			updated_at = now()`

	return upsertBatched(ctx, r.batchSize, "country_indicator_availability", rows, func(b *pgx.Batch, a models.Availability) {
		b.Queue(query, a.CountryCode, a.IndicatorCode, nullIfEmpty(a.LastUpdated))
	})
}

// upsertBatched queues one statement per item and sends them batchSize at a
// time inside a single transaction.
func upsertBatched[T any](ctx context.Context, batchSize int, table string, items []T, queue func(*pgx.Batch, T)) (int, error) {
	if len(items) == 0 {
		return 0, nil
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

	for start := 0; start < len(items); start += batchSize {
		end := min(start+batchSize, len(items))
		batch := &pgx.Batch{}
		for _, item := range items[start:end] {
			queue(batch, item)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return 0, fmt.Errorf("failed to upsert %s rows %d-%d: %w", table, start+1, end, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return len(items), nil
}
