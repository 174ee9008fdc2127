package mappings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-macro/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-macro/pkg/industry"
	"github.com/ekaya-inc/ekaya-macro/pkg/models"
	"github.com/ekaya-inc/ekaya-macro/pkg/repositories"
	"github.com/ekaya-inc/ekaya-macro/pkg/sanitize"
)

// maxConceptLen bounds synthesized unified concept names.
const maxConceptLen = 250

// SeedSummary counts what one population run wrote.
type SeedSummary struct {
	DataSources           int `json:"data_sources"`
	WBCountries           int `json:"wb_countries"`
	WBIndicators          int `json:"wb_indicators"`
	IMFCountriesUpdated   int `json:"imf_countries_updated"`
	IMFCountriesInserted  int `json:"imf_countries_inserted"`
	IMFIndicators         int `json:"imf_indicators"`
	OECDCountriesUpdated  int `json:"oecd_countries_updated"`
	OECDCountriesInserted int `json:"oecd_countries_inserted"`
	OECDIndicators        int `json:"oecd_indicators"`
	Conflicts             int `json:"conflicts"`
	Skipped               int `json:"skipped"`
}

// Service populates the data source registry and the mapping tables.
// Every operation is an idempotent upsert by natural key.
type Service interface {
	EnsureDataSources(ctx context.Context) (int, error)
	PopulateWorldBank(ctx context.Context, summary *SeedSummary) error
	UpdateCountryMappingsWithIMF(ctx context.Context, summary *SeedSummary) error
	PopulateIMFIndicatorMappings(ctx context.Context, summary *SeedSummary) error
	UpdateCountryMappingsWithOECD(ctx context.Context, summary *SeedSummary) error
	PopulateOECDIndicatorMappings(ctx context.Context, summary *SeedSummary) error

	// Seed runs every population step in order.
	Seed(ctx context.Context) (*SeedSummary, error)
}

type service struct {
	mappings     repositories.MappingRepository
	dataSources  repositories.DataSourceRepository
	observations repositories.ObservationRepository
	seed         *SeedData
	logger       *zap.Logger
}

// NewService creates a mapping population service over the given seed data.
func NewService(
	mappingRepo repositories.MappingRepository,
	dataSourceRepo repositories.DataSourceRepository,
	observationRepo repositories.ObservationRepository,
	seed *SeedData,
	logger *zap.Logger,
) Service {
	return &service{
		mappings:     mappingRepo,
		dataSources:  dataSourceRepo,
		observations: observationRepo,
		seed:         seed,
		logger:       logger.Named("mappings"),
	}
}

var _ Service = (*service)(nil)

func (s *service) Seed(ctx context.Context) (*SeedSummary, error) {
	summary := &SeedSummary{}

	n, err := s.EnsureDataSources(ctx)
	if err != nil {
		return nil, err
	}
	summary.DataSources = n

	steps := []struct {
		name string
		run  func(context.Context, *SeedSummary) error
	}{
		{"world bank", s.PopulateWorldBank},
		{"imf countries", s.UpdateCountryMappingsWithIMF},
		{"imf indicators", s.PopulateIMFIndicatorMappings},
		{"oecd countries", s.UpdateCountryMappingsWithOECD},
		{"oecd indicators", s.PopulateOECDIndicatorMappings},
	}
	for _, step := range steps {
		if err := step.run(ctx, summary); err != nil {
			return nil, fmt.Errorf("%s: %w", step.name, err)
		}
	}

	s.logger.Info("Mappings seeded",
		zap.Int("wb_countries", summary.WBCountries),
		zap.Int("wb_indicators", summary.WBIndicators),
		zap.Int("imf_indicators", summary.IMFIndicators),
		zap.Int("oecd_indicators", summary.OECDIndicators),
		zap.Int("conflicts", summary.Conflicts),
		zap.Int("skipped", summary.Skipped))

	return summary, nil
}

func (s *service) EnsureDataSources(ctx context.Context) (int, error) {
	if err := s.dataSources.Ensure(ctx, models.DefaultDataSources); err != nil {
		return 0, err
	}
	return len(models.DefaultDataSources), nil
}

// PopulateWorldBank maps every country present in the World Bank table to itself
// and registers the classified World Bank indicator codes.
func (s *service) PopulateWorldBank(ctx context.Context, summary *SeedSummary) error {
	countries, err := s.observations.DistinctCountries(ctx)
	if err != nil {
		return err
	}

	for i := range countries {
		c := &countries[i]
		name, ok := sanitize.Text(c.CountryName, sanitize.DefaultTextLen)
		if !ok {
			name = c.UnifiedCode
		}
		c.CountryName = name
		written, err := s.upsertCountry(ctx, c, summary)
		if err != nil {
			return err
		}
		if written {
			summary.WBCountries++
		}
	}

	for _, ind := range industry.Order {
		for _, code := range industry.Codes(ind, models.SourceWorldBank) {
			m := &models.IndicatorMapping{
				UnifiedConcept:     concept(strings.ToUpper(ind), code),
				ConceptDescription: code,
				WBCode:             models.StringPtr(code),
				Industry:           ind,
				PrioritySource:     models.SourceWorldBank,
			}
			if err := s.mappings.UpsertIndicatorMapping(ctx, m); err != nil {
				return err
			}
			summary.WBIndicators++
		}
	}

	return nil
}

// UpdateCountryMappingsWithIMF attaches WEO codes to countries matched by
// World Bank code and inserts the rest.
func (s *service) UpdateCountryMappingsWithIMF(ctx context.Context, summary *SeedSummary) error {
	for _, c := range s.seed.IMF.Countries {
		code, okCode := sanitize.CountryCode(c.Code, models.SourceIMF)
		wb, okWB := sanitize.CountryCode(c.WBCode, models.SourceWorldBank)
		name, okName := sanitize.Text(c.Name, sanitize.DefaultTextLen)
		if !okCode || !okWB || !okName {
			s.logger.Warn("Skipping invalid IMF country mapping", zap.String("code", c.Code))
			summary.Skipped++
			continue
		}

		updated, err := s.mappings.AttachCountryCode(ctx, models.SourceIMF, wb, code, name)
		if err != nil {
			if s.conflict(err, summary) {
				continue
			}
			return err
		}
		if updated {
			summary.IMFCountriesUpdated++
			continue
		}

		m := &models.CountryMapping{
			UnifiedCode: wb,
			CountryName: name,
			WBCode:      models.StringPtr(wb),
			IMFCode:     models.StringPtr(code),
		}
		written, err := s.upsertCountry(ctx, m, summary)
		if err != nil {
			return err
		}
		if written {
			summary.IMFCountriesInserted++
		}
	}
	return nil
}

// PopulateIMFIndicatorMappings registers WEO subject codes per industry.
// The concept is the first three letters of the industry plus the description.
func (s *service) PopulateIMFIndicatorMappings(ctx context.Context, summary *SeedSummary) error {
	for _, group := range s.seed.IMF.Indicators {
		prefix := strings.ToUpper(group.Industry)
		if len(prefix) > 3 {
			prefix = prefix[:3]
		}

		for _, ind := range group.Codes {
			code, okCode := sanitize.IndicatorCode(ind.Code)
			desc, okDesc := sanitize.Text(ind.Description, sanitize.DefaultTextLen)
			if !okCode || !okDesc {
				s.logger.Warn("Skipping invalid IMF indicator mapping", zap.String("code", ind.Code))
				summary.Skipped++
				continue
			}

			m := &models.IndicatorMapping{
				UnifiedConcept:     concept(prefix, desc),
				ConceptDescription: desc,
				IMFCode:            models.StringPtr(code),
				Industry:           group.Industry,
			}
			if err := s.mappings.UpsertIndicatorMapping(ctx, m); err != nil {
				return err
			}
			summary.IMFIndicators++
		}
	}
	return nil
}

// UpdateCountryMappingsWithOECD attaches OECD codes to countries matched by
// World Bank or unified code and inserts partner economies that are missing.
func (s *service) UpdateCountryMappingsWithOECD(ctx context.Context, summary *SeedSummary) error {
	for _, c := range s.seed.OECD.Countries {
		iso, okISO := sanitize.CountryCode(c.ISO, models.SourceOECD)
		code, okCode := sanitize.CountryCode(c.Code, models.SourceOECD)
		name, okName := sanitize.Text(c.Name, sanitize.DefaultTextLen)
		if !okISO || !okCode || !okName {
			s.logger.Warn("Skipping invalid OECD country mapping", zap.String("iso", c.ISO))
			summary.Skipped++
			continue
		}

		updated, err := s.mappings.AttachCountryCode(ctx, models.SourceOECD, iso, code, "")
		if err != nil {
			if s.conflict(err, summary) {
				continue
			}
			return err
		}
		if updated {
			summary.OECDCountriesUpdated++
			continue
		}

		m := &models.CountryMapping{
			UnifiedCode: iso,
			CountryName: name,
			OECDCode:    models.StringPtr(code),
		}
		written, err := s.upsertCountry(ctx, m, summary)
		if err != nil {
			return err
		}
		if written {
			summary.OECDCountriesInserted++
		}
	}
	return nil
}

// PopulateOECDIndicatorMappings registers MSTI measures per industry, with
// the World Bank equivalent code where one is configured.
func (s *service) PopulateOECDIndicatorMappings(ctx context.Context, summary *SeedSummary) error {
	for _, group := range s.seed.OECD.Indicators {
		for _, ind := range group.Codes {
			code, okCode := sanitize.IndicatorCode(ind.Code)
			if !okCode {
				s.logger.Warn("Skipping invalid OECD indicator mapping", zap.String("code", ind.Code))
				summary.Skipped++
				continue
			}

			desc, ok := sanitize.Text(ind.Description, sanitize.DefaultTextLen)
			if !ok {
				desc, _ = sanitize.Text(ind.Name, sanitize.DefaultTextLen)
			}

			var wbCode *string
			if ind.WBEquivalent != "" {
				if wb, ok := sanitize.IndicatorCode(ind.WBEquivalent); ok {
					wbCode = models.StringPtr(wb)
				}
			}

			m := &models.IndicatorMapping{
				UnifiedConcept:     concept("OECD_"+strings.ToUpper(group.Industry), code),
				ConceptDescription: desc,
				WBCode:             wbCode,
				OECDCode:           models.StringPtr(code),
				Industry:           group.Industry,
			}
			if err := s.mappings.UpsertIndicatorMapping(ctx, m); err != nil {
				return err
			}
			summary.OECDIndicators++
		}
	}
	return nil
}

// upsertCountry reports whether the row was written; conflicts are counted, not returned.
func (s *service) upsertCountry(ctx context.Context, m *models.CountryMapping, summary *SeedSummary) (bool, error) {
	err := s.mappings.UpsertCountryMapping(ctx, m)
	if err != nil {
		if s.conflict(err, summary) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// conflict logs and counts a unique-code clash. Returns false for other errors.
func (s *service) conflict(err error, summary *SeedSummary) bool {
	if !errors.Is(err, apperrors.ErrConflict) {
		return false
	}
	s.logger.Warn("Mapping code already assigned to another country", zap.Error(err))
	summary.Conflicts++
	return true
}

func concept(prefix, name string) string {
	c := prefix + "_" + name
	if r := []rune(c); len(r) > maxConceptLen {
		c = string(r[:maxConceptLen])
	}
	return c
}
