package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/ekaya-inc/ekaya-macro/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-macro/pkg/database"
	"github.com/ekaya-inc/ekaya-macro/pkg/models"
)

// MappingRepository defines data access for country and indicator mappings.
type MappingRepository interface {
	// ListIndicatorMappings returns the indicator mappings that carry a code for src.
	ListIndicatorMappings(ctx context.Context, src models.Source) ([]models.IndicatorMapping, error)

	// ListCountryMappings returns the country mappings that carry a code for src.
	ListCountryMappings(ctx context.Context, src models.Source) ([]models.CountryMapping, error)

	// UpsertCountryMapping inserts or merges a country mapping by unified code.
	// Existing source codes are never overwritten with NULL.
	UpsertCountryMapping(ctx context.Context, m *models.CountryMapping) error

	// AttachCountryCode sets src's code on the mapping whose wb_code or
	// unified_code equals match. Returns false when no mapping matched.
	// Returns apperrors.ErrConflict when code already belongs to another country.
	AttachCountryCode(ctx context.Context, src models.Source, match, code, name string) (bool, error)

	// UpsertIndicatorMapping inserts or merges an indicator mapping by unified concept.
	// Existing source codes are never overwritten with NULL.
	UpsertIndicatorMapping(ctx context.Context, m *models.IndicatorMapping) error
}

// sourceCodeColumns maps a source to its code column in the mapping tables.
var sourceCodeColumns = map[models.Source]string{
	models.SourceWorldBank: "wb_code",
	models.SourceOECD:      "oecd_code",
	models.SourceIMF:       "imf_code",
}

func codeColumn(src models.Source) (string, error) {
	col, ok := sourceCodeColumns[src]
	if !ok {
		return "", fmt.Errorf("%w: %q", apperrors.ErrUnknownSource, src)
	}
	return col, nil
}

// priorityCase resolves priority_source from the merged codes, WB > OECD > IMF.
const priorityCase = `CASE
		WHEN COALESCE(EXCLUDED.wb_code, %[1]s.wb_code) IS NOT NULL THEN 'WB'
		WHEN COALESCE(EXCLUDED.oecd_code, %[1]s.oecd_code) IS NOT NULL THEN 'OECD'
		WHEN COALESCE(EXCLUDED.imf_code, %[1]s.imf_code) IS NOT NULL THEN 'IMF'
		ELSE EXCLUDED.priority_source
	END`

type mappingRepository struct{}

// NewMappingRepository creates a new mapping repository.
func NewMappingRepository() MappingRepository {
	return &mappingRepository{}
}

var _ MappingRepository = (*mappingRepository)(nil)

func (r *mappingRepository) ListIndicatorMappings(ctx context.Context, src models.Source) ([]models.IndicatorMapping, error) {
	col, err := codeColumn(src)
	if err != nil {
		return nil, err
	}

	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT unified_concept, COALESCE(concept_description, ''), wb_code, oecd_code, imf_code,
		       industry, priority_source, created_at, updated_at
		FROM indicator_mappings
		WHERE ` + col + ` IS NOT NULL
		ORDER BY unified_concept`

	rows, err := scope.Conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list indicator mappings: %w", err)
	}

	mappings, err := pgx.CollectRows(rows, scanIndicatorMapping)
	if err != nil {
		return nil, fmt.Errorf("failed to scan indicator mappings: %w", err)
	}
	return mappings, nil
}

func (r *mappingRepository) ListCountryMappings(ctx context.Context, src models.Source) ([]models.CountryMapping, error) {
	col, err := codeColumn(src)
	if err != nil {
		return nil, err
	}

	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query := `
		SELECT unified_code, country_name, wb_code, oecd_code, imf_code,
		       priority_source, created_at, updated_at
		FROM country_mappings
		WHERE ` + col + ` IS NOT NULL
		ORDER BY unified_code`

	rows, err := scope.Conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list country mappings: %w", err)
	}

	mappings, err := pgx.CollectRows(rows, scanCountryMapping)
	if err != nil {
		return nil, fmt.Errorf("failed to scan country mappings: %w", err)
	}
	return mappings, nil
}

func (r *mappingRepository) UpsertCountryMapping(ctx context.Context, m *models.CountryMapping) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	if m.PrioritySource == "" {
		m.PrioritySource = models.PrioritySource(m.WBCode, m.OECDCode, m.IMFCode, models.SourceWorldBank)
	}

	query := `
		INSERT INTO country_mappings (unified_code, country_name, wb_code, oecd_code, imf_code, priority_source)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (unified_code) DO UPDATE SET
			country_name = EXCLUDED.country_name,
			wb_code = COALESCE(EXCLUDED.wb_code, country_mappings.wb_code),
			oecd_code = COALESCE(EXCLUDED.oecd_code, country_mappings.oecd_code),
			imf_code = COALESCE(EXCLUDED.imf_code, country_mappings.imf_code),
			priority_source = ` + fmt.Sprintf(priorityCase, "country_mappings") + `,
			updated_at = now()`

	_, err := scope.Conn.Exec(ctx, query,
		m.UnifiedCode,
		m.CountryName,
		m.WBCode,
		m.OECDCode,
		m.IMFCode,
		string(m.PrioritySource),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("country %s: %w", m.UnifiedCode, apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to upsert country mapping %s: %w", m.UnifiedCode, err)
	}

	return nil
}

func (r *mappingRepository) AttachCountryCode(ctx context.Context, src models.Source, match, code, name string) (bool, error) {
	col, err := codeColumn(src)
	if err != nil {
		return false, err
	}

	scope, ok := database.GetScope(ctx)
	if !ok {
		return false, fmt.Errorf("no database scope in context")
	}

	query := `
		UPDATE country_mappings SET
			` + col + ` = $1,
			country_name = COALESCE(NULLIF($2, ''), country_name),
			updated_at = now()
		WHERE wb_code = $3 OR unified_code = $3`

	tag, err := scope.Conn.Exec(ctx, query, code, name, match)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return false, fmt.Errorf("%s code %s: %w", src, code, apperrors.ErrConflict)
		}
		return false, fmt.Errorf("failed to attach %s code %s: %w", src, code, err)
	}

	return tag.RowsAffected() > 0, nil
}

func (r *mappingRepository) UpsertIndicatorMapping(ctx context.Context, m *models.IndicatorMapping) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	if m.PrioritySource == "" {
		m.PrioritySource = models.PrioritySource(m.WBCode, m.OECDCode, m.IMFCode, models.SourceWorldBank)
	}

	query := `
		INSERT INTO indicator_mappings (unified_concept, concept_description, wb_code, oecd_code, imf_code, industry, priority_source)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (unified_concept) DO UPDATE SET
			concept_description = COALESCE(EXCLUDED.concept_description, indicator_mappings.concept_description),
			wb_code = COALESCE(EXCLUDED.wb_code, indicator_mappings.wb_code),
			oecd_code = COALESCE(EXCLUDED.oecd_code, indicator_mappings.oecd_code),
			imf_code = COALESCE(EXCLUDED.imf_code, indicator_mappings.imf_code),
			industry = EXCLUDED.industry,
			priority_source = ` + fmt.Sprintf(priorityCase, "indicator_mappings") + `,
			updated_at = now()`

	_, err := scope.Conn.Exec(ctx, query,
		m.UnifiedConcept,
		nullIfEmpty(m.ConceptDescription),
		m.WBCode,
		m.OECDCode,
		m.IMFCode,
		m.Industry,
		string(m.PrioritySource),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert indicator mapping %s: %w", m.UnifiedConcept, err)
	}

	return nil
}

func scanIndicatorMapping(row pgx.CollectableRow) (models.IndicatorMapping, error) {
	var m models.IndicatorMapping
	var priority string
	err := row.Scan(
		&m.UnifiedConcept,
		&m.ConceptDescription,
		&m.WBCode,
		&m.OECDCode,
		&m.IMFCode,
		&m.Industry,
		&priority,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	m.PrioritySource = models.Source(priority)
	return m, err
}

func scanCountryMapping(row pgx.CollectableRow) (models.CountryMapping, error) {
	var m models.CountryMapping
	var priority string
	err := row.Scan(
		&m.UnifiedCode,
		&m.CountryName,
		&m.WBCode,
		&m.OECDCode,
		&m.IMFCode,
		&priority,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	m.PrioritySource = models.Source(priority)
	return m, err
}
